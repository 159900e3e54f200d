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

type Executor struct {
	Warehouse Warehouse
	Timeout   time.Duration
	Audit     audit.Recorder
	Logger    *slog.Logger
}

// Execute returns either every row of the result or ErrExecutionFailed.
func (e *Executor) Execute(ctx context.Context, cq CompiledQuery) ([]Row, error) {
	if e.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.Timeout)
		defer cancel()
	}

	if e.Logger != nil {
		e.Logger.DebugContext(ctx, "executing warehouse query",
			slog.String("trace_id", observability.TraceIDFromContext(ctx)),
			slog.String("table", cq.Table),
			slog.String("sql", cq.SQL),
			slog.Int("params", len(cq.Params)),
		)
	}

	start := time.Now()
	result, err := e.Warehouse.Execute(ctx, Statement{SQL: cq.SQL, Params: cq.Params})
	if err == nil {
		err = ctx.Err()
	}
	elapsed := time.Since(start)

	var rows []Row
	if err == nil {
		rows, err = materialize(result)
	}
	e.record(ctx, cq, len(rows), elapsed, err)

	if err != nil {
		observability.ObserveQuery(cq.Table, "execution_failed", elapsed, 0)
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, fmt.Errorf("%w: table %q: timed out after %s: %w", ErrExecutionFailed, cq.Table, e.Timeout, err)
		}
		return nil, fmt.Errorf("%w: table %q: %w", ErrExecutionFailed, cq.Table, err)
	}
	observability.ObserveQuery(cq.Table, "ok", elapsed, len(rows))
	return rows, nil
}

func materialize(result Result) ([]Row, error) {
	rows := make([]Row, 0, len(result.Rows))
	for index, values := range result.Rows {
		if len(values) != len(result.Columns) {
			return nil, fmt.Errorf("row %d has %d values for %d columns", index, len(values), len(result.Columns))
		}
		row := make(Row, len(values))
		for i, value := range values {
			row[i] = Field{Name: result.Columns[i], Value: value}
		}
		rows = append(rows, row)
	}
	return rows, nil
}

func (e *Executor) record(ctx context.Context, cq CompiledQuery, rowCount int, elapsed time.Duration, execErr error) {
	if e.Audit == nil {
		return
	}
	entry := audit.Entry{
		TraceID:  observability.TraceIDFromContext(ctx),
		Table:    cq.Table,
		SQL:      cq.SQL,
		Params:   len(cq.Params),
		Rows:     rowCount,
		Duration: elapsed,
		Status:   audit.StatusOK,
	}
	if execErr != nil {
		entry.Status = audit.StatusFailed
		entry.Error = execErr.Error()
	}
	// The query context may already be expired; the audit write gets its own.
	auditCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 2*time.Second)
	defer cancel()
	if err := e.Audit.Record(auditCtx, entry); err != nil && e.Logger != nil {
		e.Logger.WarnContext(ctx, "failed to record query audit entry",
			slog.String("trace_id", entry.TraceID),
			slog.String("table", cq.Table),
			slog.Any("error", err),
		)
	}
}
