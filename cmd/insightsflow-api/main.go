package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/insightsflow/insightsflow/internal/api"
	"github.com/insightsflow/insightsflow/internal/audit"
	auditpostgres "github.com/insightsflow/insightsflow/internal/audit/postgres"
	"github.com/insightsflow/insightsflow/internal/config"
	"github.com/insightsflow/insightsflow/internal/observability"
	"github.com/insightsflow/insightsflow/internal/query"
	"github.com/insightsflow/insightsflow/internal/storage"
	s3store "github.com/insightsflow/insightsflow/internal/storage/s3"
	"github.com/insightsflow/insightsflow/internal/warehouse"
)

func main() {
	if err := config.LoadDotEnv(".env"); err != nil {
		slog.Error("failed to read .env", slog.Any("error", err))
		os.Exit(1)
	}
	cfg, err := config.LoadFromEnv("insightsflow-api")
	if err != nil {
		slog.Error("failed to load config", slog.Any("error", err))
		os.Exit(1)
	}

	logger := observability.NewLogger(cfg, os.Stdout)
	startCtx, cancelStart := context.WithTimeout(context.Background(), time.Minute)
	defer cancelStart()

	readiness := []api.ReadinessCheck{}

	var objectStore storage.ObjectStore
	if cfg.ObjectStore.Enabled {
		s3, err := s3store.New(s3store.Config{
			Endpoint:        cfg.ObjectStore.Endpoint,
			Region:          cfg.ObjectStore.Region,
			Bucket:          cfg.ObjectStore.Bucket,
			AccessKeyID:     cfg.ObjectStore.AccessKeyID,
			SecretAccessKey: cfg.ObjectStore.SecretAccessKey,
			UseSSL:          cfg.ObjectStore.UseSSL,
			Prefix:          cfg.ObjectStore.Prefix,
		})
		if err != nil {
			logger.Error("failed to initialize object store", slog.Any("error", err))
			os.Exit(1)
		}
		objectStore = s3
		readiness = append(readiness, s3.HealthCheck)
	}

	wh, err := warehouse.Open(startCtx, cfg.Warehouse, objectStore, logger)
	if err != nil {
		logger.Error("failed to open warehouse", slog.String("driver", cfg.Warehouse.Driver), slog.Any("error", err))
		os.Exit(1)
	}
	defer func() { _ = wh.Close() }()
	readiness = append(readiness, wh.HealthCheck)

	var (
		recorder    audit.Recorder
		auditReader api.AuditReader
	)
	if cfg.Audit.Enabled {
		auditDB, err := auditpostgres.Open(startCtx, auditpostgres.DBConfig{
			DSN:             cfg.Audit.DSN,
			MaxOpenConns:    cfg.Audit.MaxOpenConns,
			MaxIdleConns:    cfg.Audit.MaxIdleConns,
			ConnMaxIdleTime: cfg.Audit.ConnMaxIdleTime,
			ConnMaxLifetime: cfg.Audit.ConnMaxLifetime,
		})
		if err != nil {
			logger.Error("failed to open audit db", slog.Any("error", err))
			os.Exit(1)
		}
		defer func() { _ = auditDB.Close() }()
		store := auditpostgres.NewStore(auditDB)
		recorder = store
		auditReader = store
		readiness = append(readiness, store.HealthCheck)
	}

	service, err := query.NewService(query.ServiceConfig{
		Dataset:        wh.Dataset,
		AllowedTables:  cfg.AllowList.Tables,
		BrandColumn:    cfg.Query.BrandColumn,
		DateColumn:     cfg.Query.DateColumn,
		Parameterized:  cfg.Query.Parameterized,
		Timeout:        cfg.Query.Timeout,
		MaxLimit:       cfg.Query.MaxLimit,
		SchemaCacheTTL: cfg.Query.SchemaCacheTTL,
	}, wh.Warehouse, recorder, logger)
	if err != nil {
		logger.Error("failed to build query service", slog.Any("error", err))
		os.Exit(1)
	}

	deps := api.Dependencies{
		Logger:            logger,
		Service:           service,
		Audit:             auditReader,
		Readiness:         api.CombineReadinessChecks(readiness...),
		DependencyTimeout: 2 * time.Second,
	}

	handler := api.NewHandler(cfg, deps)
	server := &http.Server{
		Addr:         cfg.HTTP.Address,
		Handler:      handler,
		ReadTimeout:  cfg.HTTP.ReadTimeout,
		WriteTimeout: cfg.HTTP.WriteTimeout,
		IdleTimeout:  cfg.HTTP.IdleTimeout,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	reload := make(chan os.Signal, 1)
	signal.Notify(reload, syscall.SIGHUP)
	defer signal.Stop(reload)
	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case <-reload:
				service.InvalidateSchemas()
				logger.Info("schema cache invalidated")
			}
		}
	}()

	go func() {
		logger.Info("starting api server",
			slog.String("addr", cfg.HTTP.Address),
			slog.String("dataset", wh.Dataset),
			slog.Any("allowed_tables", cfg.AllowList.Tables),
		)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("api server failed", slog.Any("error", err))
			stop()
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	logger.Info("shutting down api server")
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown failed", slog.Any("error", err))
		_ = server.Close()
	}
}
