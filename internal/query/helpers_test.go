package query

import (
	"context"
	"strconv"
	"sync"
)

type fakeWarehouse struct {
	mu          sync.Mutex
	tables      []string
	listErr     error
	listCalls   int
	schemas     map[string]Schema
	schemaErr   error
	schemaCalls map[string]int
	result      Result
	executeErr  error
	execute     func(ctx context.Context, stmt Statement) (Result, error)
	statements  []Statement
	dialect     Dialect
}

func newFakeWarehouse() *fakeWarehouse {
	return &fakeWarehouse{
		tables: []string{"kpi_sales", "kpi_viewers"},
		schemas: map[string]Schema{
			"kpi_sales": {
				{Name: "brandid", Type: "STRING"},
				{Name: "daydate", Type: "DATE"},
				{Name: "channel", Type: "STRING"},
				{Name: "revenue", Type: "FLOAT64"},
			},
			"kpi_viewers": {
				{Name: "brandid", Type: "STRING"},
				{Name: "viewers", Type: "INTEGER"},
			},
		},
		schemaCalls: map[string]int{},
	}
}

func (f *fakeWarehouse) ListTables(context.Context) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.listCalls++
	if f.listErr != nil {
		return nil, f.listErr
	}
	return append([]string(nil), f.tables...), nil
}

func (f *fakeWarehouse) FetchSchema(_ context.Context, table string) (Schema, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.schemaCalls[table]++
	if f.schemaErr != nil {
		return nil, f.schemaErr
	}
	return append(Schema(nil), f.schemas[table]...), nil
}

func (f *fakeWarehouse) Execute(ctx context.Context, stmt Statement) (Result, error) {
	f.mu.Lock()
	f.statements = append(f.statements, stmt)
	execute := f.execute
	f.mu.Unlock()
	if execute != nil {
		return execute(ctx, stmt)
	}
	if f.executeErr != nil {
		return Result{}, f.executeErr
	}
	return f.result, nil
}

func (f *fakeWarehouse) Dialect() Dialect {
	return f.dialect
}

func (f *fakeWarehouse) totalSchemaCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	total := 0
	for _, calls := range f.schemaCalls {
		total += calls
	}
	return total
}

func dollarDialect() Dialect {
	return Dialect{
		Name:        "test",
		TableRef:    func(table string) string { return `"` + table + `"` },
		Placeholder: func(index int, _ string) string { return "$" + strconv.Itoa(index) },
	}
}

func quotingDialect() Dialect {
	dialect := dollarDialect()
	dialect.ColumnRef = func(column string) string { return `"` + column + `"` }
	return dialect
}

func strPtr(v string) *string { return &v }

func intPtr(v int) *int { return &v }
