package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/insightsflow/insightsflow/internal/audit"
)

type Store struct {
	db *sql.DB
}

func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

func (s *Store) HealthCheck(ctx context.Context) error {
	if err := s.db.PingContext(ctx); err != nil {
		return fmt.Errorf("ping audit db: %w", err)
	}
	return nil
}

func (s *Store) Record(ctx context.Context, entry audit.Entry) error {
	query := `
INSERT INTO query_audit (trace_id, table_name, sql_text, param_count, row_count, duration_ms, status, error_text)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`
	var errorText sql.NullString
	if entry.Error != "" {
		errorText = sql.NullString{String: entry.Error, Valid: true}
	}
	if _, err := s.db.ExecContext(ctx, query,
		entry.TraceID,
		entry.Table,
		entry.SQL,
		entry.Params,
		entry.Rows,
		entry.Duration.Milliseconds(),
		string(entry.Status),
		errorText,
	); err != nil {
		return fmt.Errorf("insert query audit: %w", err)
	}
	return nil
}

func (s *Store) Recent(ctx context.Context, limit int) ([]audit.RecordedEntry, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx, `
SELECT audit_id, trace_id, table_name, sql_text, param_count, row_count, duration_ms, status, error_text, recorded_at
FROM query_audit
ORDER BY audit_id DESC
LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("list query audit: %w", err)
	}
	defer func() { _ = rows.Close() }()

	entries := make([]audit.RecordedEntry, 0)
	for rows.Next() {
		var (
			item       audit.RecordedEntry
			durationMs int64
			status     string
			errorText  sql.NullString
		)
		if err := rows.Scan(
			&item.AuditID,
			&item.Entry.TraceID,
			&item.Entry.Table,
			&item.Entry.SQL,
			&item.Entry.Params,
			&item.Entry.Rows,
			&durationMs,
			&status,
			&errorText,
			&item.RecordedAt,
		); err != nil {
			return nil, fmt.Errorf("scan query audit row: %w", err)
		}
		item.Entry.Duration = time.Duration(durationMs) * time.Millisecond
		item.Entry.Status = audit.Status(status)
		item.Entry.Error = errorText.String
		entries = append(entries, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate query audit rows: %w", err)
	}
	return entries, nil
}
