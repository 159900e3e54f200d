package query

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/insightsflow/insightsflow/internal/audit"
	"github.com/insightsflow/insightsflow/internal/observability"
)

type ServiceConfig struct {
	Dataset        string
	AllowedTables  []string
	BrandColumn    string
	DateColumn     string
	Parameterized  bool
	Timeout        time.Duration
	MaxLimit       int
	SchemaCacheTTL time.Duration
}

type QueryResult struct {
	Fields   []string
	Rows     []Row
	Warnings []string
	Duration time.Duration
}

// Service wires the allow-list, schema resolver, validator, compiler and
// executor around a single warehouse.
type Service struct {
	allow     *AllowList
	schemas   *SchemaResolver
	validator *Validator
	compiler  *Compiler
	executor  *Executor
	maxLimit  int
	logger    *slog.Logger
}

func NewService(cfg ServiceConfig, warehouse Warehouse, recorder audit.Recorder, logger *slog.Logger) (*Service, error) {
	if warehouse == nil {
		return nil, fmt.Errorf("warehouse is required")
	}
	allow, err := NewAllowList(cfg.Dataset, cfg.AllowedTables, warehouse)
	if err != nil {
		return nil, err
	}
	if cfg.MaxLimit < 0 {
		return nil, fmt.Errorf("max limit must be >= 0")
	}
	schemas := NewSchemaResolver(allow, warehouse, cfg.SchemaCacheTTL)
	return &Service{
		allow:     allow,
		schemas:   schemas,
		validator: NewValidator(schemas),
		compiler: NewCompiler(CompilerOptions{
			Dialect:       warehouse.Dialect(),
			BrandColumn:   cfg.BrandColumn,
			DateColumn:    cfg.DateColumn,
			Parameterized: cfg.Parameterized,
		}),
		executor: &Executor{
			Warehouse: warehouse,
			Timeout:   cfg.Timeout,
			Audit:     recorder,
			Logger:    logger,
		},
		maxLimit: cfg.MaxLimit,
		logger:   logger,
	}, nil
}

func (s *Service) Dataset() string {
	return s.allow.Dataset()
}

func (s *Service) ListTables(ctx context.Context) ([]string, error) {
	return s.allow.EffectiveTables(ctx)
}

func (s *Service) Schema(ctx context.Context, table string) (Schema, error) {
	return s.schemas.SchemaOf(ctx, table)
}

// InvalidateSchemas drops cached schemas so the next request refetches them.
func (s *Service) InvalidateSchemas() {
	s.schemas.Invalidate()
}

func (s *Service) Query(ctx context.Context, request ReadRequest) (QueryResult, error) {
	start := time.Now()
	var capWarning string
	request, capWarning = s.applyRowCap(request)

	validated, err := s.validator.Validate(ctx, request)
	if err != nil {
		outcome := "schema_unavailable"
		if IsValidation(err) {
			outcome = "rejected"
		}
		table := request.Table
		if errors.Is(err, ErrNotAllowed) || errors.Is(err, ErrWarehouseUnavailable) {
			// Unvetted table names never become label values.
			table = "unknown"
		}
		observability.ObserveQuery(table, outcome, time.Since(start), 0)
		return QueryResult{}, err
	}

	compiled := s.compiler.Compile(validated)
	if capWarning != "" {
		compiled.Warnings = append(compiled.Warnings, capWarning)
	}
	if len(compiled.Warnings) > 0 {
		observability.ObserveQueryWarnings(len(compiled.Warnings))
		if s.logger != nil {
			s.logger.WarnContext(ctx, "query projection adjusted",
				slog.String("trace_id", observability.TraceIDFromContext(ctx)),
				slog.String("table", compiled.Table),
				slog.Any("warnings", compiled.Warnings),
			)
		}
	}

	rows, err := s.executor.Execute(ctx, compiled)
	if err != nil {
		return QueryResult{}, err
	}
	return QueryResult{
		Fields:   compiled.Fields,
		Rows:     rows,
		Warnings: compiled.Warnings,
		Duration: time.Since(start),
	}, nil
}

func (s *Service) applyRowCap(request ReadRequest) (ReadRequest, string) {
	if s.maxLimit <= 0 {
		return request, ""
	}
	if request.Limit != nil && *request.Limit >= 0 && *request.Limit <= s.maxLimit {
		return request, ""
	}
	if request.Limit != nil && *request.Limit < 0 {
		return request, ""
	}
	limit := s.maxLimit
	request.Limit = &limit
	return request, fmt.Sprintf("limit was capped at %d rows", s.maxLimit)
}
