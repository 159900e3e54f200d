package query

import (
	"context"
	"fmt"
	"slices"
	"strings"
)

const Wildcard = "*"

// AllowList is the set of tables a request may target. It is built once at
// startup and never mutated.
type AllowList struct {
	dataset  string
	tables   []string
	wildcard bool
	lister   TableLister
}

// NewAllowList builds a static allow-list, or a wildcard one when tables is
// exactly ["*"]. Wildcard lists require a lister.
func NewAllowList(dataset string, tables []string, lister TableLister) (*AllowList, error) {
	list := &AllowList{dataset: strings.TrimSpace(dataset), lister: lister}
	for _, table := range tables {
		table = strings.TrimSpace(table)
		if table == "" {
			continue
		}
		if table == Wildcard {
			list.wildcard = true
			continue
		}
		if !slices.Contains(list.tables, table) {
			list.tables = append(list.tables, table)
		}
	}
	if list.wildcard && len(list.tables) > 0 {
		return nil, fmt.Errorf("allow-list cannot mix %q with explicit tables", Wildcard)
	}
	if list.wildcard && lister == nil {
		return nil, fmt.Errorf("wildcard allow-list requires a table lister")
	}
	return list, nil
}

func (a *AllowList) Dataset() string {
	return a.dataset
}

func (a *AllowList) Wildcard() bool {
	return a.wildcard
}

func (a *AllowList) EffectiveTables(ctx context.Context) ([]string, error) {
	if !a.wildcard {
		return slices.Clone(a.tables), nil
	}
	tables, err := a.lister.ListTables(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: list tables in dataset %q: %w", ErrWarehouseUnavailable, a.dataset, err)
	}
	return tables, nil
}

func (a *AllowList) Allows(ctx context.Context, table string) (bool, error) {
	tables, err := a.EffectiveTables(ctx)
	if err != nil {
		return false, err
	}
	return slices.Contains(tables, table), nil
}
