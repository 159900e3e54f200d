package query

import (
	"fmt"
	"slices"
	"strconv"
	"strings"
)

const (
	DefaultBrandColumn = "brandid"
	DefaultDateColumn  = "daydate"
)

type CompilerOptions struct {
	Dialect     Dialect
	BrandColumn string
	DateColumn  string
	// Parameterized renders filter values as bind parameters instead of
	// quoted literals.
	Parameterized bool
}

type Compiler struct {
	opts CompilerOptions
}

func NewCompiler(opts CompilerOptions) *Compiler {
	if strings.TrimSpace(opts.BrandColumn) == "" {
		opts.BrandColumn = DefaultBrandColumn
	}
	if strings.TrimSpace(opts.DateColumn) == "" {
		opts.DateColumn = DefaultDateColumn
	}
	if opts.Dialect.Placeholder == nil {
		opts.Parameterized = false
	}
	return &Compiler{opts: opts}
}

// Compile never fails: every identifier it emits was checked against the
// table schema by the Validator.
func (c *Compiler) Compile(vr ValidatedRequest) CompiledQuery {
	request := vr.request
	dialect := c.opts.Dialect
	projection, fields, warnings := buildProjection(request, dialect)

	var sb strings.Builder
	sb.WriteString("SELECT ")
	sb.WriteString(strings.Join(projection, ", "))
	sb.WriteString(" FROM ")
	sb.WriteString(dialect.tableRef(request.Table))

	where, params := c.buildFilters(request, vr.schema)
	if len(where) > 0 {
		sb.WriteString(" WHERE ")
		sb.WriteString(strings.Join(where, " AND "))
	}
	if len(request.GroupBy) > 0 {
		sb.WriteString(" GROUP BY ")
		sb.WriteString(strings.Join(dialect.columnRefs(request.GroupBy), ", "))
	}
	if request.OrderBy != nil {
		sb.WriteString(" ORDER BY ")
		sb.WriteString(dialect.columnRef(request.OrderBy.Column))
		sb.WriteString(" ")
		sb.WriteString(strings.ToUpper(request.OrderBy.Direction))
	}
	if request.Limit != nil {
		sb.WriteString(" LIMIT ")
		sb.WriteString(strconv.Itoa(*request.Limit))
	}

	return CompiledQuery{
		Table:    request.Table,
		SQL:      sb.String(),
		Params:   params,
		Fields:   fields,
		Warnings: warnings,
	}
}

func buildProjection(request ReadRequest, dialect Dialect) (projection, fields, warnings []string) {
	aggregated := make(map[string]bool, len(request.Aggregations))
	for _, aggregation := range request.Aggregations {
		aggregated[aggregation.Column] = true
	}

	switch {
	case len(request.GroupBy) > 0:
		for _, column := range request.Columns {
			if slices.Contains(request.GroupBy, column) {
				projection = append(projection, dialect.columnRef(column))
				fields = append(fields, column)
				continue
			}
			if !aggregated[column] {
				warnings = append(warnings, fmt.Sprintf("column %q was dropped from the projection because it is neither grouped nor aggregated", column))
			}
		}
	case len(request.Aggregations) > 0:
		for _, column := range request.Columns {
			if !aggregated[column] {
				warnings = append(warnings, fmt.Sprintf("column %q was dropped from the projection because aggregations without group_by return only aggregated columns", column))
			}
		}
	default:
		projection = append(projection, dialect.columnRefs(request.Columns)...)
		fields = append(fields, request.Columns...)
		return projection, fields, nil
	}

	for _, aggregation := range request.Aggregations {
		ref := dialect.columnRef(aggregation.Column)
		projection = append(projection, fmt.Sprintf("%s(%s) AS %s", aggregation.Function, ref, ref))
		fields = append(fields, aggregation.Column)
	}
	return projection, fields, warnings
}

func (c *Compiler) buildFilters(request ReadRequest, schema Schema) ([]string, []Param) {
	var (
		where  []string
		params []Param
	)
	add := func(column, operator, name, value string) {
		if c.opts.Parameterized {
			params = append(params, Param{Name: name, Value: value, ColumnType: schema.TypeOf(column)})
			where = append(where, fmt.Sprintf("%s %s %s", c.opts.Dialect.columnRef(column), operator, c.opts.Dialect.Placeholder(len(params), name)))
			return
		}
		where = append(where, fmt.Sprintf("%s %s %s", c.opts.Dialect.columnRef(column), operator, quoteLiteral(value)))
	}

	if request.BrandID != nil && *request.BrandID != "" {
		add(c.opts.BrandColumn, "=", "brand_id", *request.BrandID)
	}
	if request.StartDate != nil && *request.StartDate != "" {
		add(c.opts.DateColumn, ">=", "start_date", *request.StartDate)
	}
	if request.EndDate != nil && *request.EndDate != "" {
		add(c.opts.DateColumn, "<=", "end_date", *request.EndDate)
	}
	return where, params
}

func quoteLiteral(value string) string {
	return "'" + strings.ReplaceAll(value, "'", "''") + "'"
}
