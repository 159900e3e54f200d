package seed

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/parquet-go/parquet-go"

	"github.com/insightsflow/insightsflow/internal/storage"
)

// Written describes one parquet file produced by Run.
type Written struct {
	Table string
	Path  string
	Rows  int
}

// Run writes kpi_viewers and kpi_sales as <dir>/<table>/part-00000.parquet,
// the layout the duckdb warehouse registers as views.
func Run(ctx context.Context, cfg Config, logger *slog.Logger) ([]Written, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	generator := NewGenerator(cfg.Seed, cfg.Brands, cfg.Start, cfg.Days)

	var written []Written
	viewers, err := writeTable(ctx, cfg, "kpi_viewers", generator.Viewers())
	if err != nil {
		return nil, err
	}
	written = append(written, viewers)
	sales, err := writeTable(ctx, cfg, "kpi_sales", generator.Sales())
	if err != nil {
		return nil, err
	}
	written = append(written, sales)

	if logger != nil {
		for _, item := range written {
			logger.InfoContext(ctx, "wrote demo table",
				slog.String("table", item.Table),
				slog.String("path", item.Path),
				slog.Int("rows", item.Rows),
			)
		}
	}
	return written, nil
}

func writeTable[T any](ctx context.Context, cfg Config, table string, rows []T) (Written, error) {
	if err := ctx.Err(); err != nil {
		return Written{}, err
	}
	if err := storage.ValidateTableName(table); err != nil {
		return Written{}, err
	}
	path := filepath.Join(cfg.OutputDir, table, "part-00000.parquet")
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return Written{}, fmt.Errorf("create %s: %w", filepath.Dir(path), err)
	}
	if err := parquet.WriteFile(path, rows); err != nil {
		return Written{}, fmt.Errorf("write %s: %w", path, err)
	}
	return Written{Table: table, Path: path, Rows: len(rows)}, nil
}
