package sqldb

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"strings"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	_ "github.com/marcboeker/go-duckdb/v2"
)

type DuckDBConfig struct {
	// Path is the database file; empty means in-memory.
	Path    string
	Sources []ParquetSource
	Logger  *slog.Logger
}

// OpenDuckDB opens DuckDB and exposes every parquet source as a view in
// the main schema.
func OpenDuckDB(ctx context.Context, cfg DuckDBConfig) (*Warehouse, error) {
	db, err := sql.Open("duckdb", strings.TrimSpace(cfg.Path))
	if err != nil {
		return nil, fmt.Errorf("open duckdb: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping duckdb: %w", err)
	}

	for _, source := range cfg.Sources {
		files, err := source.Collect(ctx)
		if err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("collect parquet files: %w", err)
		}
		summaries, err := RegisterViews(ctx, db, files)
		if err != nil {
			_ = db.Close()
			return nil, err
		}
		if cfg.Logger != nil {
			for _, summary := range summaries {
				cfg.Logger.InfoContext(ctx, "registered parquet view",
					slog.String("table", summary.Table),
					slog.Int("files", summary.Files),
					slog.Int64("rows", summary.Rows),
				)
			}
		}
	}
	return New(db, "main", DuckDBDialect())
}

type PostgresConfig struct {
	DSN             string
	Schema          string
	MaxOpenConns    int
	ConnMaxLifetime time.Duration
}

func OpenPostgres(ctx context.Context, cfg PostgresConfig) (*Warehouse, error) {
	if strings.TrimSpace(cfg.DSN) == "" {
		return nil, fmt.Errorf("warehouse dsn is required")
	}
	schema := strings.TrimSpace(cfg.Schema)
	if schema == "" {
		schema = "public"
	}

	db, err := sql.Open("pgx", cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("open postgres warehouse: %w", err)
	}
	if cfg.MaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.MaxOpenConns)
		db.SetMaxIdleConns(cfg.MaxOpenConns)
	}
	if cfg.ConnMaxLifetime > 0 {
		db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping postgres warehouse: %w", err)
	}
	return New(db, schema, PostgresDialect(schema))
}
