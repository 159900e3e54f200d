package sqldb

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/insightsflow/insightsflow/internal/query"
)

const (
	listTablesSQL = `SELECT table_name FROM information_schema.tables WHERE table_schema = $1 ORDER BY table_name`
	columnsSQL    = `SELECT column_name, data_type FROM information_schema.columns WHERE table_schema = $1 AND table_name = $2 ORDER BY ordinal_position`
)

// Warehouse runs compiled reads against any database/sql driver that
// exposes information_schema and $n bind parameters.
type Warehouse struct {
	db      *sql.DB
	schema  string
	dialect query.Dialect
}

func New(db *sql.DB, schema string, dialect query.Dialect) (*Warehouse, error) {
	if db == nil {
		return nil, fmt.Errorf("db is required")
	}
	schema = strings.TrimSpace(schema)
	if schema == "" {
		return nil, fmt.Errorf("schema is required")
	}
	return &Warehouse{db: db, schema: schema, dialect: dialect}, nil
}

func (w *Warehouse) Dialect() query.Dialect {
	return w.dialect
}

func (w *Warehouse) ListTables(ctx context.Context) ([]string, error) {
	rows, err := w.db.QueryContext(ctx, listTablesSQL, w.schema)
	if err != nil {
		return nil, fmt.Errorf("list tables in %q: %w", w.schema, err)
	}
	defer func() { _ = rows.Close() }()

	tables := make([]string, 0)
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("scan table name: %w", err)
		}
		tables = append(tables, name)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate tables: %w", err)
	}
	return tables, nil
}

// FetchSchema returns columns in ordinal order. An unknown table yields an
// empty schema.
func (w *Warehouse) FetchSchema(ctx context.Context, table string) (query.Schema, error) {
	rows, err := w.db.QueryContext(ctx, columnsSQL, w.schema, table)
	if err != nil {
		return nil, fmt.Errorf("fetch columns of %q: %w", table, err)
	}
	defer func() { _ = rows.Close() }()

	schema := make(query.Schema, 0)
	for rows.Next() {
		var column query.Column
		if err := rows.Scan(&column.Name, &column.Type); err != nil {
			return nil, fmt.Errorf("scan column: %w", err)
		}
		schema = append(schema, column)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate columns: %w", err)
	}
	return schema, nil
}

func (w *Warehouse) Execute(ctx context.Context, stmt query.Statement) (query.Result, error) {
	if strings.TrimSpace(stmt.SQL) == "" {
		return query.Result{}, fmt.Errorf("sql is required")
	}
	args := make([]any, 0, len(stmt.Params))
	for _, param := range stmt.Params {
		args = append(args, param.Value)
	}

	rows, err := w.db.QueryContext(ctx, stmt.SQL, args...)
	if err != nil {
		return query.Result{}, fmt.Errorf("execute query: %w", err)
	}
	defer func() { _ = rows.Close() }()

	columns, err := rows.Columns()
	if err != nil {
		return query.Result{}, fmt.Errorf("query columns: %w", err)
	}

	resultRows := make([][]any, 0)
	for rows.Next() {
		values := make([]any, len(columns))
		scanTargets := make([]any, len(columns))
		for i := range values {
			scanTargets[i] = &values[i]
		}
		if err := rows.Scan(scanTargets...); err != nil {
			return query.Result{}, fmt.Errorf("scan row: %w", err)
		}
		resultRows = append(resultRows, normalizeValues(values))
	}
	if err := rows.Err(); err != nil {
		return query.Result{}, fmt.Errorf("iterate rows: %w", err)
	}
	return query.Result{Columns: columns, Rows: resultRows}, nil
}

func (w *Warehouse) HealthCheck(ctx context.Context) error {
	if err := w.db.PingContext(ctx); err != nil {
		return fmt.Errorf("ping warehouse: %w", err)
	}
	return nil
}

func (w *Warehouse) Close() error {
	return w.db.Close()
}

func normalizeValues(values []any) []any {
	normalized := make([]any, len(values))
	for i, value := range values {
		switch typed := value.(type) {
		case []byte:
			normalized[i] = string(typed)
		default:
			normalized[i] = typed
		}
	}
	return normalized
}
