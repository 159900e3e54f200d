package storage

import (
	"fmt"
	"regexp"
	"sort"
	"strings"
)

var tableNamePattern = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]{0,127}$`)

const parquetExt = ".parquet"

// TableForKey derives the table name from an object key below root.
// Both <root>/<table>.parquet and <root>/<table>/<part>.parquet layouts
// are recognised; anything else is ignored.
func TableForKey(root, key string) (string, bool) {
	root = strings.Trim(root, "/")
	key = strings.TrimPrefix(key, "/")
	if root != "" {
		if !strings.HasPrefix(key, root+"/") {
			return "", false
		}
		key = strings.TrimPrefix(key, root+"/")
	}
	if !strings.HasSuffix(key, parquetExt) {
		return "", false
	}

	parts := strings.Split(key, "/")
	var table string
	switch len(parts) {
	case 1:
		table = strings.TrimSuffix(parts[0], parquetExt)
	case 2:
		table = parts[0]
	default:
		return "", false
	}
	if ValidateTableName(table) != nil {
		return "", false
	}
	return table, true
}

// GroupTableFiles groups parquet keys by table, sorted by table then key.
func GroupTableFiles(root string, objects []ObjectInfo) map[string][]string {
	grouped := map[string][]string{}
	for _, object := range objects {
		table, ok := TableForKey(root, object.Key)
		if !ok {
			continue
		}
		grouped[table] = append(grouped[table], object.Key)
	}
	for table := range grouped {
		sort.Strings(grouped[table])
	}
	return grouped
}

func ValidateTableName(name string) error {
	if !tableNamePattern.MatchString(name) {
		return fmt.Errorf("invalid table name: %q", name)
	}
	return nil
}
