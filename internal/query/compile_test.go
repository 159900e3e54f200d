package query

import (
	"context"
	"strings"
	"testing"
)

func compileRequest(t *testing.T, opts CompilerOptions, request ReadRequest) CompiledQuery {
	t.Helper()
	warehouse := newFakeWarehouse()
	validated, err := newTestValidator(t, warehouse).Validate(context.Background(), request)
	if err != nil {
		t.Fatalf("Validate() error = %v", err)
	}
	return NewCompiler(opts).Compile(validated)
}

func TestCompileProjection(t *testing.T) {
	cases := []struct {
		name     string
		request  ReadRequest
		sql      string
		fields   []string
		warnings int
	}{
		{
			name:    "plain columns",
			request: ReadRequest{Table: "kpi_sales", Columns: []string{"channel", "revenue"}},
			sql:     "SELECT channel, revenue FROM kpi_sales",
			fields:  []string{"channel", "revenue"},
		},
		{
			name: "grouped aggregation",
			request: ReadRequest{
				Table:        "kpi_sales",
				Columns:      []string{"channel"},
				Aggregations: []Aggregation{{Column: "revenue", Function: "sum"}},
				GroupBy:      []string{"channel"},
			},
			sql:    "SELECT channel, SUM(revenue) AS revenue FROM kpi_sales GROUP BY channel",
			fields: []string{"channel", "revenue"},
		},
		{
			name: "aggregation without group_by drops plain columns",
			request: ReadRequest{
				Table:        "kpi_sales",
				Columns:      []string{"channel"},
				Aggregations: []Aggregation{{Column: "revenue", Function: "AVG"}},
			},
			sql:      "SELECT AVG(revenue) AS revenue FROM kpi_sales",
			fields:   []string{"revenue"},
			warnings: 1,
		},
		{
			name: "grouped drops ungrouped columns",
			request: ReadRequest{
				Table:        "kpi_sales",
				Columns:      []string{"channel", "brandid"},
				Aggregations: []Aggregation{{Column: "revenue", Function: "MAX"}},
				GroupBy:      []string{"channel"},
			},
			sql:      "SELECT channel, MAX(revenue) AS revenue FROM kpi_sales GROUP BY channel",
			fields:   []string{"channel", "revenue"},
			warnings: 1,
		},
		{
			name: "aggregated column in columns is not warned",
			request: ReadRequest{
				Table:        "kpi_sales",
				Columns:      []string{"revenue"},
				Aggregations: []Aggregation{{Column: "revenue", Function: "COUNT"}},
			},
			sql:    "SELECT COUNT(revenue) AS revenue FROM kpi_sales",
			fields: []string{"revenue"},
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			compiled := compileRequest(t, CompilerOptions{}, tc.request)
			if compiled.SQL != tc.sql {
				t.Fatalf("sql = %q, want %q", compiled.SQL, tc.sql)
			}
			if strings.Join(compiled.Fields, ",") != strings.Join(tc.fields, ",") {
				t.Fatalf("fields = %v, want %v", compiled.Fields, tc.fields)
			}
			if len(compiled.Warnings) != tc.warnings {
				t.Fatalf("warnings = %v", compiled.Warnings)
			}
		})
	}
}

func TestCompileInlineFiltersEscapeQuotes(t *testing.T) {
	compiled := compileRequest(t, CompilerOptions{}, ReadRequest{
		Table:     "kpi_sales",
		Columns:   []string{"channel"},
		BrandID:   strPtr("O'Brien"),
		StartDate: strPtr("2024-01-01"),
		EndDate:   strPtr("2024-01-31"),
	})
	want := "SELECT channel FROM kpi_sales WHERE brandid = 'O''Brien' AND daydate >= '2024-01-01' AND daydate <= '2024-01-31'"
	if compiled.SQL != want {
		t.Fatalf("sql = %q", compiled.SQL)
	}
	if len(compiled.Params) != 0 {
		t.Fatalf("params = %v", compiled.Params)
	}
}

func TestCompileSkipsEmptyFilters(t *testing.T) {
	compiled := compileRequest(t, CompilerOptions{}, ReadRequest{
		Table:     "kpi_sales",
		Columns:   []string{"channel"},
		BrandID:   strPtr(""),
		StartDate: nil,
		EndDate:   strPtr("2024-01-31"),
	})
	if compiled.SQL != "SELECT channel FROM kpi_sales WHERE daydate <= '2024-01-31'" {
		t.Fatalf("sql = %q", compiled.SQL)
	}
}

func TestCompileClauseOrderAndLimit(t *testing.T) {
	compiled := compileRequest(t, CompilerOptions{}, ReadRequest{
		Table:        "kpi_sales",
		Columns:      []string{"channel"},
		Aggregations: []Aggregation{{Column: "revenue", Function: "SUM"}},
		GroupBy:      []string{"channel"},
		OrderBy:      &OrderBy{Column: "revenue", Direction: "asc"},
		BrandID:      strPtr("b1"),
		Limit:        intPtr(0),
	})
	want := "SELECT channel, SUM(revenue) AS revenue FROM kpi_sales WHERE brandid = 'b1' GROUP BY channel ORDER BY revenue ASC LIMIT 0"
	if compiled.SQL != want {
		t.Fatalf("sql = %q", compiled.SQL)
	}

	compiled = compileRequest(t, CompilerOptions{}, ReadRequest{Table: "kpi_sales", Columns: []string{"channel"}})
	if strings.Contains(compiled.SQL, "LIMIT") {
		t.Fatalf("nil limit rendered: %q", compiled.SQL)
	}
}

func TestCompileIsDeterministic(t *testing.T) {
	request := ReadRequest{
		Table:        "kpi_sales",
		Columns:      []string{"channel", "brandid"},
		Aggregations: []Aggregation{{Column: "revenue", Function: "SUM"}, {Column: "daydate", Function: "MAX"}},
		GroupBy:      []string{"channel", "brandid"},
	}
	first := compileRequest(t, CompilerOptions{}, request)
	for range 5 {
		if again := compileRequest(t, CompilerOptions{}, request); again.SQL != first.SQL {
			t.Fatalf("sql changed: %q vs %q", again.SQL, first.SQL)
		}
	}
	if first.SQL != "SELECT channel, brandid, SUM(revenue) AS revenue, MAX(daydate) AS daydate FROM kpi_sales GROUP BY channel, brandid" {
		t.Fatalf("sql = %q", first.SQL)
	}
}

func TestCompileParameterized(t *testing.T) {
	compiled := compileRequest(t, CompilerOptions{Dialect: dollarDialect(), Parameterized: true}, ReadRequest{
		Table:     "kpi_sales",
		Columns:   []string{"channel"},
		BrandID:   strPtr("O'Brien"),
		StartDate: strPtr("2024-01-01"),
		EndDate:   strPtr("2024-01-31"),
	})
	want := `SELECT channel FROM "kpi_sales" WHERE brandid = $1 AND daydate >= $2 AND daydate <= $3`
	if compiled.SQL != want {
		t.Fatalf("sql = %q", compiled.SQL)
	}
	if len(compiled.Params) != 3 {
		t.Fatalf("params = %v", compiled.Params)
	}
	if p := compiled.Params[0]; p.Name != "brand_id" || p.Value != "O'Brien" || p.ColumnType != "STRING" {
		t.Fatalf("params[0] = %+v", p)
	}
	if p := compiled.Params[1]; p.Name != "start_date" || p.ColumnType != "DATE" {
		t.Fatalf("params[1] = %+v", p)
	}
}

func TestCompileParameterizedRequiresPlaceholder(t *testing.T) {
	compiled := compileRequest(t, CompilerOptions{Parameterized: true}, ReadRequest{
		Table:   "kpi_sales",
		Columns: []string{"channel"},
		BrandID: strPtr("b1"),
	})
	if compiled.SQL != "SELECT channel FROM kpi_sales WHERE brandid = 'b1'" || len(compiled.Params) != 0 {
		t.Fatalf("compiled = %+v", compiled)
	}
}

func TestCompileCustomFilterColumns(t *testing.T) {
	compiled := compileRequest(t, CompilerOptions{BrandColumn: "channel", DateColumn: "daydate"}, ReadRequest{
		Table:   "kpi_sales",
		Columns: []string{"revenue"},
		BrandID: strPtr("web"),
	})
	if compiled.SQL != "SELECT revenue FROM kpi_sales WHERE channel = 'web'" {
		t.Fatalf("sql = %q", compiled.SQL)
	}
}

func TestCompileQuotesEveryColumnReference(t *testing.T) {
	compiled := compileRequest(t, CompilerOptions{Dialect: quotingDialect(), Parameterized: true}, ReadRequest{
		Table:        "kpi_sales",
		Columns:      []string{"channel"},
		Aggregations: []Aggregation{{Column: "revenue", Function: "sum"}},
		GroupBy:      []string{"channel"},
		OrderBy:      &OrderBy{Column: "revenue", Direction: "desc"},
		BrandID:      strPtr("b1"),
		StartDate:    strPtr("2024-01-01"),
	})
	want := `SELECT "channel", SUM("revenue") AS "revenue" FROM "kpi_sales" WHERE "brandid" = $1 AND "daydate" >= $2 GROUP BY "channel" ORDER BY "revenue" DESC`
	if compiled.SQL != want {
		t.Fatalf("sql = %q", compiled.SQL)
	}
	if len(compiled.Fields) != 2 || compiled.Fields[0] != "channel" || compiled.Fields[1] != "revenue" {
		t.Fatalf("fields = %v", compiled.Fields)
	}
}
