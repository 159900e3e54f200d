package query

import (
	"context"
	"errors"
	"testing"
)

func TestAllowListStaticTables(t *testing.T) {
	warehouse := newFakeWarehouse()
	allow, err := NewAllowList("analytics", []string{" kpi_viewers ", "kpi_sales", "kpi_viewers", ""}, warehouse)
	if err != nil {
		t.Fatalf("NewAllowList() error = %v", err)
	}

	tables, err := allow.EffectiveTables(context.Background())
	if err != nil {
		t.Fatalf("EffectiveTables() error = %v", err)
	}
	if len(tables) != 2 || tables[0] != "kpi_viewers" || tables[1] != "kpi_sales" {
		t.Fatalf("tables = %#v", tables)
	}
	if warehouse.listCalls != 0 {
		t.Fatalf("static allow-list listed the warehouse %d times", warehouse.listCalls)
	}

	ok, err := allow.Allows(context.Background(), "kpi_sales")
	if err != nil || !ok {
		t.Fatalf("Allows(kpi_sales) = %v, %v", ok, err)
	}
	ok, _ = allow.Allows(context.Background(), "KPI_SALES")
	if ok {
		t.Fatal("table names must match exactly")
	}
}

func TestAllowListWildcardUsesWarehouse(t *testing.T) {
	warehouse := newFakeWarehouse()
	allow, err := NewAllowList("analytics", []string{"*"}, warehouse)
	if err != nil {
		t.Fatalf("NewAllowList() error = %v", err)
	}
	if !allow.Wildcard() {
		t.Fatal("expected wildcard allow-list")
	}

	ok, err := allow.Allows(context.Background(), "kpi_viewers")
	if err != nil || !ok {
		t.Fatalf("Allows() = %v, %v", ok, err)
	}
	warehouse.tables = []string{"kpi_sales"}
	ok, _ = allow.Allows(context.Background(), "kpi_viewers")
	if ok {
		t.Fatal("wildcard allow-list must follow the current dataset contents")
	}
}

func TestAllowListWildcardListFailure(t *testing.T) {
	warehouse := newFakeWarehouse()
	warehouse.listErr = errors.New("permission denied")
	allow, err := NewAllowList("analytics", []string{"*"}, warehouse)
	if err != nil {
		t.Fatalf("NewAllowList() error = %v", err)
	}
	_, err = allow.EffectiveTables(context.Background())
	if !errors.Is(err, ErrWarehouseUnavailable) {
		t.Fatalf("EffectiveTables() error = %v, want ErrWarehouseUnavailable", err)
	}
}

func TestAllowListRejectsInvalidConfiguration(t *testing.T) {
	if _, err := NewAllowList("analytics", []string{"*", "kpi_sales"}, newFakeWarehouse()); err == nil {
		t.Fatal("expected error mixing wildcard and tables")
	}
	if _, err := NewAllowList("analytics", []string{"*"}, nil); err == nil {
		t.Fatal("expected error for wildcard without lister")
	}
}
