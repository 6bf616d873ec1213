package snapshot

import (
	"context"
	"os"
	"path/filepath"
	"strings"

	"github.com/rotisserie/eris"
)

// Record is one table row keyed by normalized column name.
type Record map[string]string

// Get returns the first non-empty value among the given columns.
func (r Record) Get(columns ...string) string {
	for _, c := range columns {
		if v := strings.TrimSpace(r[c]); v != "" {
			return v
		}
	}
	return ""
}

// ReadTable reads a snapshot file into Records, dispatching on extension.
func ReadTable(ctx context.Context, path string) ([]Record, error) {
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".parquet":
		return ReadParquet(path)
	case ".xlsx":
		return ReadXLSX(path, XLSXOptions{})
	case ".csv", ".json":
		f, err := os.Open(path)
		if err != nil {
			return nil, eris.Wrapf(err, "snapshot: open %s", path)
		}
		defer f.Close() //nolint:errcheck
		if ext == ".csv" {
			return readCSV(ctx, f)
		}
		return readJSON(ctx, f)
	default:
		return nil, eris.Errorf("snapshot: unsupported file type %q", ext)
	}
}

// normalizeColumn lowercases a header and joins its words with underscores,
// so "Account ID" and "account_id" address the same column.
func normalizeColumn(col string) string {
	col = strings.TrimPrefix(col, "\ufeff")
	return strings.Join(strings.Fields(strings.ToLower(col)), "_")
}
