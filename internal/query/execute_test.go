package query

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/insightsflow/insightsflow/internal/audit"
	"github.com/insightsflow/insightsflow/internal/observability"
)

func TestExecuteMaterializesRowsInColumnOrder(t *testing.T) {
	warehouse := newFakeWarehouse()
	warehouse.result = Result{
		Columns: []string{"revenue", "channel"},
		Rows:    [][]any{{30.5, "web"}, {5.0, "email"}},
	}
	executor := &Executor{Warehouse: warehouse}

	rows, err := executor.Execute(context.Background(), CompiledQuery{Table: "kpi_sales", SQL: "SELECT revenue, channel FROM kpi_sales"})
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("rows = %v", rows)
	}
	if value, ok := rows[0].Get("channel"); !ok || value != "web" {
		t.Fatalf("rows[0].channel = %v, %v", value, ok)
	}
	encoded, err := json.Marshal(rows)
	if err != nil {
		t.Fatalf("json.Marshal() error = %v", err)
	}
	if string(encoded) != `[{"revenue":30.5,"channel":"web"},{"revenue":5,"channel":"email"}]` {
		t.Fatalf("json = %s", encoded)
	}
}

func TestExecutePassesParams(t *testing.T) {
	warehouse := newFakeWarehouse()
	executor := &Executor{Warehouse: warehouse}
	params := []Param{{Name: "brand_id", Value: "b1", ColumnType: "STRING"}}

	if _, err := executor.Execute(context.Background(), CompiledQuery{Table: "kpi_sales", SQL: "SELECT 1", Params: params}); err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if len(warehouse.statements) != 1 || len(warehouse.statements[0].Params) != 1 || warehouse.statements[0].Params[0].Value != "b1" {
		t.Fatalf("statements = %#v", warehouse.statements)
	}
}

func TestExecuteWrapsWarehouseError(t *testing.T) {
	warehouse := newFakeWarehouse()
	warehouse.executeErr = errors.New("Access Denied: Table kpi_sales")
	executor := &Executor{Warehouse: warehouse}

	_, err := executor.Execute(context.Background(), CompiledQuery{Table: "kpi_sales", SQL: "SELECT 1"})
	if !errors.Is(err, ErrExecutionFailed) {
		t.Fatalf("error = %v, want ErrExecutionFailed", err)
	}
	if !strings.Contains(err.Error(), "Access Denied") {
		t.Fatalf("error lost warehouse message: %v", err)
	}
}

func TestExecuteRejectsRaggedRows(t *testing.T) {
	warehouse := newFakeWarehouse()
	warehouse.result = Result{Columns: []string{"a", "b"}, Rows: [][]any{{1}}}
	executor := &Executor{Warehouse: warehouse}

	rows, err := executor.Execute(context.Background(), CompiledQuery{Table: "kpi_sales", SQL: "SELECT a, b"})
	if !errors.Is(err, ErrExecutionFailed) || rows != nil {
		t.Fatalf("Execute() = %v, %v", rows, err)
	}
}

func TestExecuteTimeout(t *testing.T) {
	warehouse := newFakeWarehouse()
	warehouse.execute = func(ctx context.Context, _ Statement) (Result, error) {
		<-ctx.Done()
		return Result{}, ctx.Err()
	}
	executor := &Executor{Warehouse: warehouse, Timeout: 20 * time.Millisecond}

	_, err := executor.Execute(context.Background(), CompiledQuery{Table: "kpi_sales", SQL: "SELECT 1"})
	if !errors.Is(err, ErrExecutionFailed) || !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("error = %v", err)
	}
	if !strings.Contains(err.Error(), "timed out") {
		t.Fatalf("error = %v", err)
	}
}

func TestExecuteRecordsAudit(t *testing.T) {
	var (
		mu      sync.Mutex
		entries []audit.Entry
	)
	recorder := audit.RecorderFunc(func(ctx context.Context, entry audit.Entry) error {
		if ctx.Err() != nil {
			t.Errorf("audit context already done: %v", ctx.Err())
		}
		mu.Lock()
		defer mu.Unlock()
		entries = append(entries, entry)
		return nil
	})

	warehouse := newFakeWarehouse()
	warehouse.result = Result{Columns: []string{"a"}, Rows: [][]any{{1}, {2}}}
	executor := &Executor{Warehouse: warehouse, Audit: recorder}

	ctx := observability.ContextWithTraceID(context.Background(), "trace-1")
	if _, err := executor.Execute(ctx, CompiledQuery{Table: "kpi_sales", SQL: "SELECT a FROM kpi_sales", Params: []Param{{Name: "x"}}}); err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	warehouse.result = Result{}
	warehouse.executeErr = errors.New("boom")
	_, _ = executor.Execute(ctx, CompiledQuery{Table: "kpi_sales", SQL: "SELECT b FROM kpi_sales"})

	if len(entries) != 2 {
		t.Fatalf("entries = %+v", entries)
	}
	if e := entries[0]; e.TraceID != "trace-1" || e.Rows != 2 || e.Params != 1 || e.Status != audit.StatusOK || e.SQL != "SELECT a FROM kpi_sales" {
		t.Fatalf("entries[0] = %+v", e)
	}
	if e := entries[1]; e.Status != audit.StatusFailed || e.Error != "boom" {
		t.Fatalf("entries[1] = %+v", e)
	}
}

func TestExecuteAuditFailureDoesNotFailQuery(t *testing.T) {
	warehouse := newFakeWarehouse()
	warehouse.result = Result{Columns: []string{"a"}, Rows: [][]any{{1}}}
	executor := &Executor{
		Warehouse: warehouse,
		Audit: audit.RecorderFunc(func(context.Context, audit.Entry) error {
			return errors.New("audit db down")
		}),
	}
	rows, err := executor.Execute(context.Background(), CompiledQuery{Table: "kpi_sales", SQL: "SELECT a"})
	if err != nil || len(rows) != 1 {
		t.Fatalf("Execute() = %v, %v", rows, err)
	}
}
