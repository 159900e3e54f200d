package query

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrNotAllowed             = errors.New("table not allowed")
	ErrEmptyProjection        = errors.New("empty projection")
	ErrUnknownColumn          = errors.New("unknown column")
	ErrUnsupportedAggregation = errors.New("unsupported aggregation")
	ErrDuplicateField         = errors.New("duplicate output field")
	ErrMalformedOrderBy       = errors.New("malformed order_by")
	ErrInvalidLimit           = errors.New("invalid limit")
	ErrSchemaUnavailable      = errors.New("schema unavailable")
	ErrWarehouseUnavailable   = errors.New("warehouse unavailable")
	ErrExecutionFailed        = errors.New("execution failed")
)

type UnknownColumnError struct {
	Table     string
	Field     string
	Column    string
	Available []string
}

func (e *UnknownColumnError) Error() string {
	return fmt.Sprintf("column %q in %s does not exist in table %q; available columns: [%s]",
		e.Column, e.Field, e.Table, strings.Join(e.Available, ", "))
}

func (e *UnknownColumnError) Unwrap() error {
	return ErrUnknownColumn
}

// IsValidation reports whether err was caused by the request itself rather
// than by the warehouse or configuration.
func IsValidation(err error) bool {
	switch {
	case errors.Is(err, ErrNotAllowed),
		errors.Is(err, ErrEmptyProjection),
		errors.Is(err, ErrUnknownColumn),
		errors.Is(err, ErrUnsupportedAggregation),
		errors.Is(err, ErrDuplicateField),
		errors.Is(err, ErrMalformedOrderBy),
		errors.Is(err, ErrInvalidLimit):
		return true
	default:
		return false
	}
}
