// Package snapshot loads the versioned input tables of a linking run:
// regional accounts, contacts, and the manual linkage file.
package snapshot

import (
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/rotisserie/eris"
)

// ErrNoSnapshot is returned when no file matches a table's snapshot pattern.
var ErrNoSnapshot = eris.New("snapshot: no snapshot found")

// supportedExts lists the file formats a snapshot may be stored in.
var supportedExts = map[string]bool{
	".parquet": true,
	".csv":     true,
	".json":    true,
	".xlsx":    true,
}

// LatestSnapshot returns the newest file in dir named <prefix>_<table>_*.<ext>
// by modification time. Equal modification times go to the lexicographically
// largest name, which for timestamped names is also the newest.
func LatestSnapshot(dir, prefix, table string) (string, error) {
	pattern := filepath.Join(dir, prefix+"_"+table+"_*")
	paths, err := filepath.Glob(pattern)
	if err != nil {
		return "", eris.Wrapf(err, "snapshot: glob %s", pattern)
	}

	type candidate struct {
		path    string
		modNano int64
	}
	var candidates []candidate
	for _, p := range paths {
		if !supportedExts[strings.ToLower(filepath.Ext(p))] {
			continue
		}
		info, err := os.Stat(p)
		if err != nil {
			return "", eris.Wrapf(err, "snapshot: stat %s", p)
		}
		if info.IsDir() {
			continue
		}
		candidates = append(candidates, candidate{path: p, modNano: info.ModTime().UnixNano()})
	}

	if len(candidates) == 0 {
		return "", eris.Wrapf(ErrNoSnapshot, "snapshot: no %s files in %s", table, dir)
	}

	sort.Slice(candidates, func(i, j int) bool {
		if candidates[i].modNano != candidates[j].modNano {
			return candidates[i].modNano > candidates[j].modNano
		}
		return candidates[i].path > candidates[j].path
	})
	return candidates[0].path, nil
}
