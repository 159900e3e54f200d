// Package warehouse opens the configured query.Warehouse backend.
package warehouse

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/insightsflow/insightsflow/internal/config"
	"github.com/insightsflow/insightsflow/internal/query"
	"github.com/insightsflow/insightsflow/internal/storage"
	"github.com/insightsflow/insightsflow/internal/warehouse/bigquery"
	"github.com/insightsflow/insightsflow/internal/warehouse/sqldb"
)

// Handle is an opened warehouse plus the hooks the process needs around it.
type Handle struct {
	Warehouse   query.Warehouse
	Dataset     string
	HealthCheck func(ctx context.Context) error
	Close       func() error
}

// Open connects to the driver named in cfg. store is only used by the
// duckdb driver and may be nil.
func Open(ctx context.Context, cfg config.WarehouseConfig, store storage.ObjectStore, logger *slog.Logger) (Handle, error) {
	switch cfg.Driver {
	case config.DriverBigQuery:
		w, err := bigquery.Open(ctx, bigquery.Config{
			Project:         cfg.Project,
			Dataset:         cfg.Dataset,
			CredentialMode:  cfg.CredentialMode,
			CredentialsFile: cfg.CredentialsFile,
		})
		if err != nil {
			return Handle{}, err
		}
		return Handle{Warehouse: w, Dataset: cfg.Dataset, HealthCheck: w.HealthCheck, Close: w.Close}, nil

	case config.DriverPostgres:
		w, err := sqldb.OpenPostgres(ctx, sqldb.PostgresConfig{
			DSN:          cfg.DSN,
			Schema:       cfg.Dataset,
			MaxOpenConns: cfg.MaxOpenConns,
		})
		if err != nil {
			return Handle{}, err
		}
		return Handle{Warehouse: w, Dataset: cfg.Dataset, HealthCheck: w.HealthCheck, Close: w.Close}, nil

	case config.DriverDuckDB:
		sources, cleanup, err := parquetSources(cfg, store)
		if err != nil {
			return Handle{}, err
		}
		w, err := sqldb.OpenDuckDB(ctx, sqldb.DuckDBConfig{Path: cfg.DSN, Sources: sources, Logger: logger})
		if err != nil {
			cleanup()
			return Handle{}, err
		}
		return Handle{
			Warehouse:   w,
			Dataset:     "main",
			HealthCheck: w.HealthCheck,
			Close: func() error {
				defer cleanup()
				return w.Close()
			},
		}, nil

	default:
		return Handle{}, fmt.Errorf("unsupported warehouse driver %q", cfg.Driver)
	}
}

func parquetSources(cfg config.WarehouseConfig, store storage.ObjectStore) ([]sqldb.ParquetSource, func(), error) {
	var sources []sqldb.ParquetSource
	cleanup := func() {}
	if cfg.ParquetDir != "" {
		sources = append(sources, sqldb.DirSource{Dir: cfg.ParquetDir})
	}
	if store != nil {
		cacheDir, err := os.MkdirTemp("", "insightsflow-parquet-")
		if err != nil {
			return nil, cleanup, fmt.Errorf("create parquet cache dir: %w", err)
		}
		cleanup = func() { _ = os.RemoveAll(cacheDir) }
		sources = append(sources, sqldb.ObjectStoreSource{Store: store, Prefix: cfg.ObjectPrefix, CacheDir: cacheDir})
	}
	return sources, cleanup, nil
}
