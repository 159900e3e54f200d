package query

import (
	"context"
	"fmt"
	"slices"
	"strings"
)

var aggregateFunctions = []string{"SUM", "AVG", "COUNT", "MAX", "MIN"}

type Validator struct {
	Schemas *SchemaResolver
}

func NewValidator(schemas *SchemaResolver) *Validator {
	return &Validator{Schemas: schemas}
}

// Validate runs the checks in a fixed order and reports only the first
// failure: table permission, schema fetch, empty projection, column
// existence, grouped projection, aggregation functions, aggregate alias
// collisions, order_by shape and finally limit.
func (v *Validator) Validate(ctx context.Context, request ReadRequest) (ValidatedRequest, error) {
	request.Table = strings.TrimSpace(request.Table)

	schema, err := v.Schemas.SchemaOf(ctx, request.Table)
	if err != nil {
		return ValidatedRequest{}, err
	}

	if len(request.Columns) == 0 && len(request.Aggregations) == 0 {
		return ValidatedRequest{}, fmt.Errorf("%w: at least one of columns or aggregations is required", ErrEmptyProjection)
	}

	if err := checkColumns(request, schema); err != nil {
		return ValidatedRequest{}, err
	}
	if len(request.GroupBy) > 0 && len(request.Aggregations) == 0 && !anyGrouped(request.Columns, request.GroupBy) {
		return ValidatedRequest{}, fmt.Errorf("%w: none of the requested columns appear in group_by and no aggregations were given", ErrEmptyProjection)
	}

	normalized := request
	normalized.Columns = slices.Clone(request.Columns)
	normalized.GroupBy = slices.Clone(request.GroupBy)
	normalized.Aggregations = make([]Aggregation, 0, len(request.Aggregations))
	for _, aggregation := range request.Aggregations {
		function := normalizeFunction(aggregation.Function)
		if !slices.Contains(aggregateFunctions, function) {
			return ValidatedRequest{}, fmt.Errorf("%w: function %q on column %q; supported functions: [%s]",
				ErrUnsupportedAggregation, aggregation.Function, aggregation.Column, strings.Join(aggregateFunctions, ", "))
		}
		normalized.Aggregations = append(normalized.Aggregations, Aggregation{Column: aggregation.Column, Function: function})
	}

	if err := checkAggregateAliases(normalized); err != nil {
		return ValidatedRequest{}, err
	}

	if request.OrderBy != nil {
		orderBy, err := normalizeOrderBy(*request.OrderBy)
		if err != nil {
			return ValidatedRequest{}, err
		}
		normalized.OrderBy = &orderBy
	}

	if request.Limit != nil {
		if *request.Limit < 0 {
			return ValidatedRequest{}, fmt.Errorf("%w: limit must be >= 0, got %d", ErrInvalidLimit, *request.Limit)
		}
		limit := *request.Limit
		normalized.Limit = &limit
	}

	return ValidatedRequest{request: normalized, schema: slices.Clone(schema)}, nil
}

func checkColumns(request ReadRequest, schema Schema) error {
	unknown := func(field, column string) error {
		return &UnknownColumnError{Table: request.Table, Field: field, Column: column, Available: schema.Names()}
	}
	for _, column := range request.Columns {
		if !schema.Has(column) {
			return unknown("columns", column)
		}
	}
	for _, aggregation := range request.Aggregations {
		if !schema.Has(aggregation.Column) {
			return unknown("aggregations", aggregation.Column)
		}
	}
	for _, column := range request.GroupBy {
		if !schema.Has(column) {
			return unknown("group_by", column)
		}
	}
	// An empty order_by column is a shape problem, reported later.
	if request.OrderBy != nil && strings.TrimSpace(request.OrderBy.Column) != "" && !schema.Has(request.OrderBy.Column) {
		return unknown("order_by", request.OrderBy.Column)
	}
	return nil
}

// checkAggregateAliases rejects aggregations whose output name, the bare
// column, is already taken by a projected column or another aggregation.
func checkAggregateAliases(request ReadRequest) error {
	taken := map[string]string{}
	if len(request.GroupBy) > 0 {
		for _, column := range request.Columns {
			if slices.Contains(request.GroupBy, column) {
				taken[column] = fmt.Sprintf("grouped column %q", column)
			}
		}
	}
	for _, aggregation := range request.Aggregations {
		item := aggregation.Function + "(" + aggregation.Column + ")"
		if owner, ok := taken[aggregation.Column]; ok {
			return fmt.Errorf("%w: %s and %s would both be returned as %q", ErrDuplicateField, item, owner, aggregation.Column)
		}
		taken[aggregation.Column] = item
	}
	return nil
}

func anyGrouped(columns, groupBy []string) bool {
	for _, column := range columns {
		if slices.Contains(groupBy, column) {
			return true
		}
	}
	return false
}

func normalizeOrderBy(orderBy OrderBy) (OrderBy, error) {
	if strings.TrimSpace(orderBy.Column) == "" {
		return OrderBy{}, fmt.Errorf("%w: column is required", ErrMalformedOrderBy)
	}
	direction := strings.ToUpper(strings.TrimSpace(orderBy.Direction))
	switch direction {
	case "":
		return OrderBy{}, fmt.Errorf("%w: direction is required", ErrMalformedOrderBy)
	case "ASC", "DESC":
		return OrderBy{Column: orderBy.Column, Direction: direction}, nil
	default:
		return OrderBy{}, fmt.Errorf("%w: direction must be ASC or DESC, got %q", ErrMalformedOrderBy, orderBy.Direction)
	}
}
