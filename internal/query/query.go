package query

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
)

type Column struct {
	Name string `json:"name"`
	Type string `json:"type"`
}

type Schema []Column

func (s Schema) Has(name string) bool {
	for _, column := range s {
		if column.Name == name {
			return true
		}
	}
	return false
}

func (s Schema) TypeOf(name string) string {
	for _, column := range s {
		if column.Name == name {
			return column.Type
		}
	}
	return ""
}

func (s Schema) Names() []string {
	names := make([]string, 0, len(s))
	for _, column := range s {
		names = append(names, column.Name)
	}
	return names
}

type Aggregation struct {
	Column   string `json:"column"`
	Function string `json:"function"`
}

type OrderBy struct {
	Column    string `json:"column"`
	Direction string `json:"direction"`
}

// ReadRequest is the untrusted, structured description of a table read.
type ReadRequest struct {
	Table        string        `json:"table_name"`
	Columns      []string      `json:"columns"`
	Limit        *int          `json:"limit"`
	BrandID      *string       `json:"brand_id"`
	StartDate    *string       `json:"start_date"`
	EndDate      *string       `json:"end_date"`
	Aggregations []Aggregation `json:"aggregations"`
	GroupBy      []string      `json:"group_by"`
	OrderBy      *OrderBy      `json:"order_by"`
}

// ValidatedRequest can only be obtained from Validator.Validate. The
// aggregation functions and order direction are normalized to upper case.
type ValidatedRequest struct {
	request ReadRequest
	schema  Schema
}

func (v ValidatedRequest) Request() ReadRequest {
	return v.request
}

func (v ValidatedRequest) Schema() Schema {
	return v.schema
}

// Param is a bind parameter. ColumnType is the warehouse type of the
// column the value is compared against, empty when unknown.
type Param struct {
	Name       string
	Value      any
	ColumnType string
}

type CompiledQuery struct {
	Table    string
	SQL      string
	Params   []Param
	Fields   []string
	Warnings []string
}

type Field struct {
	Name  string
	Value any
}

// Row keeps fields in SELECT-list order, including when encoded as JSON.
type Row []Field

func (r Row) Get(name string) (any, bool) {
	for _, field := range r {
		if field.Name == name {
			return field.Value, true
		}
	}
	return nil, false
}

func (r Row) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, field := range r {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(field.Name)
		if err != nil {
			return nil, err
		}
		value, err := json.Marshal(field.Value)
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		buf.WriteByte(':')
		buf.Write(value)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// Statement is what a warehouse receives for execution.
type Statement struct {
	SQL    string
	Params []Param
}

type Result struct {
	Columns []string
	Rows    [][]any
}

// Dialect tells the compiler how a warehouse spells table references,
// column references and bind parameters. Nil hooks leave names bare.
type Dialect struct {
	Name        string
	TableRef    func(table string) string
	ColumnRef   func(column string) string
	Placeholder func(index int, name string) string
}

func (d Dialect) tableRef(table string) string {
	if d.TableRef == nil {
		return table
	}
	return d.TableRef(table)
}

func (d Dialect) columnRef(column string) string {
	if d.ColumnRef == nil {
		return column
	}
	return d.ColumnRef(column)
}

func (d Dialect) columnRefs(columns []string) []string {
	refs := make([]string, 0, len(columns))
	for _, column := range columns {
		refs = append(refs, d.columnRef(column))
	}
	return refs
}

type TableLister interface {
	ListTables(ctx context.Context) ([]string, error)
}

type SchemaFetcher interface {
	FetchSchema(ctx context.Context, table string) (Schema, error)
}

type Warehouse interface {
	TableLister
	SchemaFetcher
	Execute(ctx context.Context, stmt Statement) (Result, error)
	Dialect() Dialect
}

func normalizeFunction(function string) string {
	return strings.ToUpper(strings.TrimSpace(function))
}
