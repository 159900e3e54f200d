package seed

import (
	"reflect"
	"testing"
	"time"
)

func TestGeneratorDeterministicForSeed(t *testing.T) {
	start := time.Date(2024, 3, 1, 15, 0, 0, 0, time.UTC)
	g1 := NewGenerator(42, 2, start, 3)
	g2 := NewGenerator(42, 2, start, 3)

	if !reflect.DeepEqual(g1.Viewers(), g2.Viewers()) {
		t.Fatal("viewer rows differ for the same seed")
	}
	if !reflect.DeepEqual(g1.Sales(), g2.Sales()) {
		t.Fatal("sales rows differ for the same seed")
	}
}

func TestGeneratorCoversEveryBrandDayAndChannel(t *testing.T) {
	g := NewGenerator(7, 3, time.Date(2024, 1, 30, 0, 0, 0, 0, time.UTC), 4)
	rows := g.Sales()
	if len(rows) != 3*4*len(channels) {
		t.Fatalf("rows = %d", len(rows))
	}
	if rows[0].DayDate != "2024-01-30" || rows[len(rows)-1].DayDate != "2024-02-02" {
		t.Fatalf("date range = %s..%s", rows[0].DayDate, rows[len(rows)-1].DayDate)
	}
	seen := map[string]bool{}
	for _, row := range rows {
		seen[row.BrandID] = true
		if row.Revenue < 0 || row.Orders < 0 {
			t.Fatalf("negative values in %+v", row)
		}
	}
	if len(seen) != 3 || !seen["brand-001"] || !seen["brand-003"] {
		t.Fatalf("brands = %v", seen)
	}
}

func TestGeneratorSessionsAtLeastViewers(t *testing.T) {
	for _, row := range NewGenerator(1, 2, time.Now(), 5).Viewers() {
		if row.Sessions < row.Viewers {
			t.Fatalf("row = %+v", row)
		}
	}
}
