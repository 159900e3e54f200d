package query

import (
	"context"
	"fmt"
	"slices"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/insightsflow/insightsflow/internal/observability"
)

const schemaFetchTimeout = 30 * time.Second

type SchemaResolver struct {
	allow   *AllowList
	fetcher SchemaFetcher
	ttl     time.Duration
	now     func() time.Time

	mu      sync.Mutex
	entries map[string]schemaEntry
	group   singleflight.Group
}

type schemaEntry struct {
	schema    Schema
	expiresAt time.Time
}

// NewSchemaResolver returns a resolver that fetches the schema on every call
// when ttl is zero, and caches it per table for ttl otherwise.
func NewSchemaResolver(allow *AllowList, fetcher SchemaFetcher, ttl time.Duration) *SchemaResolver {
	if ttl < 0 {
		ttl = 0
	}
	return &SchemaResolver{
		allow:   allow,
		fetcher: fetcher,
		ttl:     ttl,
		now:     time.Now,
		entries: map[string]schemaEntry{},
	}
}

func (r *SchemaResolver) SchemaOf(ctx context.Context, table string) (Schema, error) {
	allowed, err := r.allow.Allows(ctx, table)
	if err != nil {
		return nil, err
	}
	if !allowed {
		return nil, fmt.Errorf("%w: table %q is not in the allowed tables of dataset %q", ErrNotAllowed, table, r.allow.Dataset())
	}

	if r.ttl == 0 {
		return r.fetch(ctx, table)
	}

	if schema, ok := r.cached(table); ok {
		observability.ObserveSchemaCache(true)
		return schema, nil
	}
	observability.ObserveSchemaCache(false)

	// The shared fetch outlives any single caller; each caller only waits
	// on its own context.
	results := r.group.DoChan(table, func() (any, error) {
		fetchCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), schemaFetchTimeout)
		defer cancel()
		schema, err := r.fetch(fetchCtx, table)
		if err != nil {
			return nil, err
		}
		r.mu.Lock()
		r.entries[table] = schemaEntry{schema: schema, expiresAt: r.now().Add(r.ttl)}
		r.mu.Unlock()
		return schema, nil
	})
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%w: table %q in dataset %q: %w", ErrSchemaUnavailable, table, r.allow.Dataset(), ctx.Err())
	case result := <-results:
		if result.Err != nil {
			return nil, result.Err
		}
		return slices.Clone(result.Val.(Schema)), nil
	}
}

// Invalidate drops every cached schema.
func (r *SchemaResolver) Invalidate() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries = map[string]schemaEntry{}
}

func (r *SchemaResolver) cached(table string) (Schema, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	entry, ok := r.entries[table]
	if !ok {
		return nil, false
	}
	if !r.now().Before(entry.expiresAt) {
		delete(r.entries, table)
		return nil, false
	}
	return slices.Clone(entry.schema), true
}

func (r *SchemaResolver) fetch(ctx context.Context, table string) (Schema, error) {
	schema, err := r.fetcher.FetchSchema(ctx, table)
	if err != nil {
		return nil, fmt.Errorf("%w: table %q in dataset %q: %w", ErrSchemaUnavailable, table, r.allow.Dataset(), err)
	}
	if len(schema) == 0 {
		return nil, fmt.Errorf("%w: table %q in dataset %q has no columns", ErrSchemaUnavailable, table, r.allow.Dataset())
	}
	return schema, nil
}
