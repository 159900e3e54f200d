package sqldb

import (
	"fmt"
	"strings"

	"github.com/insightsflow/insightsflow/internal/query"
)

// DuckDBDialect addresses views registered in the default schema.
func DuckDBDialect() query.Dialect {
	return query.Dialect{
		Name:        "duckdb",
		TableRef:    quoteIdent,
		ColumnRef:   quoteIdent,
		Placeholder: dollarPlaceholder,
	}
}

func PostgresDialect(schema string) query.Dialect {
	return query.Dialect{
		Name: "postgres",
		TableRef: func(table string) string {
			return quoteIdent(schema) + "." + quoteIdent(table)
		},
		ColumnRef:   quoteIdent,
		Placeholder: dollarPlaceholder,
	}
}

func dollarPlaceholder(index int, _ string) string {
	return fmt.Sprintf("$%d", index)
}

func quoteIdent(value string) string {
	return `"` + strings.ReplaceAll(value, `"`, `""`) + `"`
}

func quoteStringArray(values []string) string {
	quoted := make([]string, 0, len(values))
	for _, value := range values {
		quoted = append(quoted, `'`+strings.ReplaceAll(value, `'`, `''`)+`'`)
	}
	return "[" + strings.Join(quoted, ",") + "]"
}
