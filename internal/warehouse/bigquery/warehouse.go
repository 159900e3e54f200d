package bigquery

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/big"
	"sort"
	"strings"
	"time"

	"cloud.google.com/go/bigquery"
	"cloud.google.com/go/civil"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"

	"github.com/insightsflow/insightsflow/internal/query"
)

const (
	CredentialsFile    = "file"
	CredentialsAmbient = "ambient"
)

type Config struct {
	Project         string
	Dataset         string
	CredentialMode  string
	CredentialsFile string
}

// Warehouse reads from one BigQuery dataset. The project id is resolved
// once when the warehouse is opened.
type Warehouse struct {
	client  client
	project string
	dataset string
}

func Open(ctx context.Context, cfg Config) (*Warehouse, error) {
	opts, err := clientOptions(cfg)
	if err != nil {
		return nil, err
	}
	c, err := newGCPClient(ctx, strings.TrimSpace(cfg.Project), opts...)
	if err != nil {
		return nil, err
	}
	w, err := NewWithClient(cfg.Dataset, c)
	if err != nil {
		_ = c.Close()
		return nil, err
	}
	return w, nil
}

func NewWithClient(dataset string, c client) (*Warehouse, error) {
	if c == nil {
		return nil, fmt.Errorf("client is required")
	}
	dataset = strings.TrimSpace(dataset)
	if dataset == "" {
		return nil, fmt.Errorf("dataset is required")
	}
	project := strings.TrimSpace(c.Project())
	if project == "" {
		return nil, fmt.Errorf("bigquery project could not be determined")
	}
	return &Warehouse{client: c, project: project, dataset: dataset}, nil
}

func clientOptions(cfg Config) ([]option.ClientOption, error) {
	switch strings.ToLower(strings.TrimSpace(cfg.CredentialMode)) {
	case CredentialsFile:
		path := strings.TrimSpace(cfg.CredentialsFile)
		if path == "" {
			return nil, fmt.Errorf("credentials file is required for credential mode %q", CredentialsFile)
		}
		return []option.ClientOption{option.WithAuthCredentialsFile(option.ServiceAccount, path)}, nil
	case CredentialsAmbient, "":
		return nil, nil
	default:
		return nil, fmt.Errorf("unknown credential mode %q", cfg.CredentialMode)
	}
}

func (w *Warehouse) Project() string {
	return w.project
}

func (w *Warehouse) Dialect() query.Dialect {
	return query.Dialect{
		Name: "bigquery",
		TableRef: func(table string) string {
			return "`" + w.project + "." + w.dataset + "." + table + "`"
		},
		ColumnRef: quoteIdent,
		Placeholder: func(_ int, name string) string {
			return "@" + name
		},
	}
}

// quoteIdent escapes backticks and backslashes inside a quoted identifier.
func quoteIdent(name string) string {
	return "`" + strings.NewReplacer("\\", "\\\\", "`", "\\`").Replace(name) + "`"
}

func (w *Warehouse) ListTables(ctx context.Context) ([]string, error) {
	tables, err := w.client.ListTables(ctx, w.dataset)
	if err != nil {
		return nil, fmt.Errorf("list tables in %s.%s: %w", w.project, w.dataset, err)
	}
	sort.Strings(tables)
	return tables, nil
}

func (w *Warehouse) FetchSchema(ctx context.Context, table string) (query.Schema, error) {
	fields, err := w.client.TableSchema(ctx, w.dataset, table)
	if err != nil {
		if errors.Is(err, errTableNotFound) {
			return nil, fmt.Errorf("table %q not found in %s.%s", table, w.project, w.dataset)
		}
		return nil, fmt.Errorf("fetch schema of %q: %w", table, err)
	}
	schema := make(query.Schema, 0, len(fields))
	for _, field := range fields {
		schema = append(schema, query.Column{Name: field.Name, Type: string(field.Type)})
	}
	return schema, nil
}

func (w *Warehouse) Execute(ctx context.Context, stmt query.Statement) (query.Result, error) {
	if strings.TrimSpace(stmt.SQL) == "" {
		return query.Result{}, fmt.Errorf("sql is required")
	}
	params := make([]bigquery.QueryParameter, 0, len(stmt.Params))
	for _, param := range stmt.Params {
		params = append(params, bigquery.QueryParameter{Name: param.Name, Value: typedValue(param)})
	}

	it, err := w.client.Query(ctx, stmt.SQL, params)
	if err != nil {
		return query.Result{}, fmt.Errorf("run query: %w", err)
	}

	var (
		columns []string
		rows    = make([][]any, 0)
	)
	for {
		var values []bigquery.Value
		err := it.Next(&values)
		if columns == nil {
			columns = schemaColumns(it.Schema())
		}
		if errors.Is(err, iterator.Done) {
			break
		}
		if err != nil {
			return query.Result{}, fmt.Errorf("read row: %w", err)
		}
		row := make([]any, len(values))
		for i, value := range values {
			row[i] = normalizeValue(value)
		}
		rows = append(rows, row)
	}
	return query.Result{Columns: columns, Rows: rows}, nil
}

// HealthCheck lists the dataset's tables, which needs both credentials and
// read access to the dataset.
func (w *Warehouse) HealthCheck(ctx context.Context) error {
	if _, err := w.client.ListTables(ctx, w.dataset); err != nil {
		return fmt.Errorf("bigquery dataset %s.%s: %w", w.project, w.dataset, err)
	}
	return nil
}

func (w *Warehouse) Close() error {
	return w.client.Close()
}

// typedValue converts string filter values for temporal columns so the
// parameter type matches the column; BigQuery does not coerce STRING
// parameters the way it coerces literals.
func typedValue(param query.Param) any {
	text, ok := param.Value.(string)
	if !ok {
		return param.Value
	}
	switch strings.ToUpper(param.ColumnType) {
	case string(bigquery.DateFieldType):
		if date, err := civil.ParseDate(text); err == nil {
			return date
		}
	case string(bigquery.DateTimeFieldType):
		if dt, err := civil.ParseDateTime(text); err == nil {
			return dt
		}
		if date, err := civil.ParseDate(text); err == nil {
			return civil.DateTime{Date: date}
		}
	case string(bigquery.TimestampFieldType):
		if ts, err := time.Parse(time.RFC3339, text); err == nil {
			return ts
		}
		if date, err := civil.ParseDate(text); err == nil {
			return date.In(time.UTC)
		}
	}
	return text
}

func schemaColumns(schema bigquery.Schema) []string {
	columns := make([]string, 0, len(schema))
	for _, field := range schema {
		columns = append(columns, field.Name)
	}
	return columns
}

func normalizeValue(value bigquery.Value) any {
	switch typed := value.(type) {
	case civil.Date:
		return typed.String()
	case civil.DateTime:
		return typed.String()
	case civil.Time:
		return typed.String()
	case *big.Rat:
		if typed == nil {
			return nil
		}
		return ratNumber(typed)
	case []byte:
		return string(typed)
	case []bigquery.Value:
		out := make([]any, len(typed))
		for i, item := range typed {
			out[i] = normalizeValue(item)
		}
		return out
	default:
		return typed
	}
}

// ratNumber keeps NUMERIC precision while still encoding as a JSON number.
func ratNumber(r *big.Rat) json.Number {
	if r.IsInt() {
		return json.Number(r.Num().String())
	}
	text := strings.TrimRight(r.FloatString(9), "0")
	return json.Number(strings.TrimSuffix(text, "."))
}
