package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/insightsflow/insightsflow/internal/audit"
	"github.com/insightsflow/insightsflow/internal/config"
	"github.com/insightsflow/insightsflow/internal/observability"
	"github.com/insightsflow/insightsflow/internal/query"
)

type ReadinessCheck func(ctx context.Context) error

// QueryService is the read gateway the routes delegate to.
type QueryService interface {
	Dataset() string
	ListTables(ctx context.Context) ([]string, error)
	Schema(ctx context.Context, table string) (query.Schema, error)
	Query(ctx context.Context, request query.ReadRequest) (query.QueryResult, error)
}

type AuditReader interface {
	Recent(ctx context.Context, limit int) ([]audit.RecordedEntry, error)
}

type Dependencies struct {
	Logger            *slog.Logger
	Readiness         ReadinessCheck
	DependencyTimeout time.Duration
	Service           QueryService
	Audit             AuditReader
}

func NewHandler(cfg config.Config, deps Dependencies) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /v1/health", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{"status": "ok", "service": cfg.Service.Name})
	})

	mux.HandleFunc("GET /v1/ready", func(w http.ResponseWriter, r *http.Request) {
		if deps.Readiness == nil {
			writeJSON(w, http.StatusOK, map[string]any{"status": "ready"})
			return
		}
		timeout := deps.DependencyTimeout
		if timeout <= 0 {
			timeout = 2 * time.Second
		}
		ctx, cancel := context.WithTimeout(r.Context(), timeout)
		defer cancel()
		if err := deps.Readiness(ctx); err != nil {
			writeError(r.Context(), w, http.StatusServiceUnavailable, "NOT_READY", err.Error(), true, nil)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"status": "ready"})
	})

	mux.Handle("GET /v1/metrics", promhttp.Handler())

	listTables := func(w http.ResponseWriter, r *http.Request) { handleListTables(deps, w, r) }
	getSchema := func(w http.ResponseWriter, r *http.Request) { handleGetSchema(deps, w, r) }
	queryData := func(w http.ResponseWriter, r *http.Request) { handleQueryData(deps, w, r) }

	mux.HandleFunc("GET /v1/tables", listTables)
	mux.HandleFunc("GET /v1/tables/{name}/schema", getSchema)
	mux.HandleFunc("POST /v1/query-data", queryData)
	mux.HandleFunc("GET /v1/query-audit", func(w http.ResponseWriter, r *http.Request) {
		handleQueryAudit(deps, w, r)
	})

	// Paths served by the earlier BigQuery gateway.
	mux.HandleFunc("GET /api/v1/bigquery/tables", listTables)
	mux.HandleFunc("GET /api/v1/bigquery/tables/{name}/schema", getSchema)
	mux.HandleFunc("POST /api/v1/bigquery/query-data", queryData)

	middlewares := []func(http.Handler) http.Handler{
		observability.TraceMiddleware,
	}
	if deps.Logger != nil {
		middlewares = append(middlewares, observability.LoggingMiddleware(deps.Logger))
	}
	if len(cfg.HTTP.CORSAllowedOrigins) > 0 {
		middlewares = append(middlewares, cors.Handler(cors.Options{
			AllowedOrigins: cfg.HTTP.CORSAllowedOrigins,
			AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
			AllowedHeaders: []string{"Accept", "Content-Type", "X-Trace-ID"},
			ExposedHeaders: []string{"X-Trace-ID"},
			MaxAge:         300,
		}))
	}
	if cfg.HTTP.RateLimitRPS > 0 {
		middlewares = append(middlewares, newRateLimiter(cfg.HTTP.RateLimitRPS, cfg.HTTP.RateLimitBurst).middleware)
	}
	// Metrics sits directly on the mux so the matched pattern is visible.
	middlewares = append(middlewares, observability.MetricsMiddleware)
	return chain(mux, middlewares...)
}

// CheckService fails when the warehouse cannot list the dataset's tables.
func CheckService(service QueryService) ReadinessCheck {
	return func(ctx context.Context) error {
		if service == nil {
			return errors.New("query service is not configured")
		}
		_, err := service.ListTables(ctx)
		return err
	}
}

func CombineReadinessChecks(checks ...ReadinessCheck) ReadinessCheck {
	filtered := make([]ReadinessCheck, 0, len(checks))
	for _, check := range checks {
		if check != nil {
			filtered = append(filtered, check)
		}
	}
	return func(ctx context.Context) error {
		for _, check := range filtered {
			if err := check(ctx); err != nil {
				return err
			}
		}
		return nil
	}
}

func chain(base http.Handler, middlewares ...func(http.Handler) http.Handler) http.Handler {
	wrapped := base
	for i := len(middlewares) - 1; i >= 0; i-- {
		wrapped = middlewares[i](wrapped)
	}
	return wrapped
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(ctx context.Context, w http.ResponseWriter, status int, code, message string, retryable bool, extra map[string]any) {
	writeJSON(w, status, map[string]any{
		"error_code": code,
		"message":    message,
		"retryable":  retryable,
		"context":    extra,
		"trace_id":   observability.TraceIDFromContext(ctx),
	})
}
