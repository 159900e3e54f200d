package bigquery

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"cloud.google.com/go/bigquery"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"
)

var errTableNotFound = errors.New("table not found")

type client interface {
	Project() string
	ListTables(ctx context.Context, dataset string) ([]string, error)
	TableSchema(ctx context.Context, dataset, table string) (bigquery.Schema, error)
	Query(ctx context.Context, sql string, params []bigquery.QueryParameter) (rowIterator, error)
	Close() error
}

type rowIterator interface {
	Next(dst any) error
	Schema() bigquery.Schema
}

type gcpClient struct {
	client *bigquery.Client
}

// newGCPClient dials BigQuery. An empty project is detected from the
// credentials.
func newGCPClient(ctx context.Context, project string, opts ...option.ClientOption) (*gcpClient, error) {
	if project == "" {
		project = bigquery.DetectProjectID
	}
	c, err := bigquery.NewClient(ctx, project, opts...)
	if err != nil {
		return nil, fmt.Errorf("create bigquery client: %w", err)
	}
	return &gcpClient{client: c}, nil
}

func (g *gcpClient) Project() string {
	return g.client.Project()
}

func (g *gcpClient) ListTables(ctx context.Context, dataset string) ([]string, error) {
	it := g.client.Dataset(dataset).Tables(ctx)
	tables := make([]string, 0)
	for {
		table, err := it.Next()
		if errors.Is(err, iterator.Done) {
			return tables, nil
		}
		if err != nil {
			return nil, err
		}
		tables = append(tables, table.TableID)
	}
}

func (g *gcpClient) TableSchema(ctx context.Context, dataset, table string) (bigquery.Schema, error) {
	meta, err := g.client.Dataset(dataset).Table(table).Metadata(ctx)
	if err != nil {
		if isNotFound(err) {
			return nil, errTableNotFound
		}
		return nil, err
	}
	return meta.Schema, nil
}

func (g *gcpClient) Query(ctx context.Context, sql string, params []bigquery.QueryParameter) (rowIterator, error) {
	q := g.client.Query(sql)
	q.Parameters = params
	it, err := q.Read(ctx)
	if err != nil {
		return nil, err
	}
	return &gcpRows{it: it}, nil
}

func (g *gcpClient) Close() error {
	return g.client.Close()
}

type gcpRows struct {
	it *bigquery.RowIterator
}

func (r *gcpRows) Next(dst any) error {
	return r.it.Next(dst)
}

// Schema is only populated once Next has been called.
func (r *gcpRows) Schema() bigquery.Schema {
	return r.it.Schema
}

func isNotFound(err error) bool {
	var apiErr *googleapi.Error
	return errors.As(err, &apiErr) && apiErr.Code == http.StatusNotFound
}
