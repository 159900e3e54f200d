package sqldb

import (
	"context"
	"database/sql"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"

	"github.com/parquet-go/parquet-go"

	"github.com/insightsflow/insightsflow/internal/storage"
)

// ParquetSource produces local parquet files grouped by table name.
type ParquetSource interface {
	Collect(ctx context.Context) (map[string][]string, error)
}

// DirSource reads <dir>/<table>.parquet and <dir>/<table>/*.parquet.
type DirSource struct {
	Dir string
}

func (s DirSource) Collect(ctx context.Context) (map[string][]string, error) {
	if s.Dir == "" {
		return nil, fmt.Errorf("parquet dir is required")
	}
	grouped := map[string][]string{}
	err := filepath.WalkDir(s.Dir, func(path string, entry fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if entry.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(s.Dir, path)
		if err != nil {
			return err
		}
		table, ok := storage.TableForKey("", filepath.ToSlash(rel))
		if !ok {
			return nil
		}
		grouped[table] = append(grouped[table], path)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("scan parquet dir %q: %w", s.Dir, err)
	}
	for table := range grouped {
		sort.Strings(grouped[table])
	}
	return grouped, nil
}

// ObjectStoreSource downloads parquet objects below Prefix into CacheDir.
type ObjectStoreSource struct {
	Store    storage.ObjectStore
	Prefix   string
	CacheDir string
}

func (s ObjectStoreSource) Collect(ctx context.Context) (map[string][]string, error) {
	if s.Store == nil {
		return nil, fmt.Errorf("object store is required")
	}
	if s.CacheDir == "" {
		return nil, fmt.Errorf("cache dir is required")
	}
	objects, err := s.Store.List(ctx, s.Prefix)
	if err != nil {
		return nil, err
	}

	grouped := map[string][]string{}
	for table, keys := range storage.GroupTableFiles(s.Prefix, objects) {
		tableDir := filepath.Join(s.CacheDir, table)
		if err := os.MkdirAll(tableDir, 0o755); err != nil {
			return nil, fmt.Errorf("create cache dir for %q: %w", table, err)
		}
		for index, key := range keys {
			localPath := filepath.Join(tableDir, fmt.Sprintf("part-%05d.parquet", index))
			if err := s.download(ctx, key, localPath); err != nil {
				return nil, err
			}
			grouped[table] = append(grouped[table], localPath)
		}
	}
	return grouped, nil
}

func (s ObjectStoreSource) download(ctx context.Context, key, localPath string) error {
	reader, err := s.Store.Get(ctx, key)
	if err != nil {
		return fmt.Errorf("get object %q: %w", key, err)
	}
	if err := writeFile(localPath, reader); err != nil {
		_ = reader.Close()
		return fmt.Errorf("write local parquet file %q: %w", localPath, err)
	}
	if err := reader.Close(); err != nil {
		return fmt.Errorf("close object %q: %w", key, err)
	}
	return nil
}

// ViewSummary describes one registered view.
type ViewSummary struct {
	Table string
	Files int
	Rows  int64
}

// RegisterViews replaces one view per table over its parquet files. Every
// file is opened first so a corrupt export fails registration instead of
// the first read.
func RegisterViews(ctx context.Context, db *sql.DB, files map[string][]string) ([]ViewSummary, error) {
	tables := make([]string, 0, len(files))
	for table := range files {
		tables = append(tables, table)
	}
	sort.Strings(tables)

	summaries := make([]ViewSummary, 0, len(tables))
	for _, table := range tables {
		paths := files[table]
		if len(paths) == 0 {
			continue
		}
		summary := ViewSummary{Table: table, Files: len(paths)}
		for _, path := range paths {
			rows, err := inspectParquet(path)
			if err != nil {
				return nil, fmt.Errorf("inspect %q for table %q: %w", path, table, err)
			}
			summary.Rows += rows
		}
		viewSQL := fmt.Sprintf(`CREATE OR REPLACE VIEW %s AS SELECT * FROM read_parquet(%s, union_by_name = true)`, quoteIdent(table), quoteStringArray(paths))
		if _, err := db.ExecContext(ctx, viewSQL); err != nil {
			return nil, fmt.Errorf("create view for table %q: %w", table, err)
		}
		summaries = append(summaries, summary)
	}
	return summaries, nil
}

func inspectParquet(path string) (int64, error) {
	file, err := os.Open(path)
	if err != nil {
		return 0, err
	}
	defer func() { _ = file.Close() }()

	info, err := file.Stat()
	if err != nil {
		return 0, err
	}
	pf, err := parquet.OpenFile(file, info.Size())
	if err != nil {
		return 0, err
	}
	if len(pf.Schema().Fields()) == 0 {
		return 0, fmt.Errorf("parquet file has no columns")
	}
	return pf.NumRows(), nil
}
