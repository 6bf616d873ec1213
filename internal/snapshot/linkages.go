package snapshot

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"

	"github.com/sells-group/account-linker/internal/model"
)

// LoadManualLinkages reads the manual linkage mapping from path. A missing
// file yields an empty mapping. Files ending in .yaml or .yml are decoded as
// YAML; anything else as a JSON object.
func LoadManualLinkages(path string) (model.ManualLinkages, error) {
	if path == "" {
		return model.ManualLinkages{}, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return model.ManualLinkages{}, nil
		}
		return nil, eris.Wrapf(err, "snapshot: read manual linkages %s", path)
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return model.ManualLinkages{}, nil
	}

	raw := make(map[string]string)
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, &raw); err != nil {
			return nil, eris.Wrapf(err, "snapshot: parse manual linkages %s", path)
		}
	default:
		if err := json.Unmarshal(data, &raw); err != nil {
			return nil, eris.Wrapf(err, "snapshot: parse manual linkages %s", path)
		}
	}

	links := make(model.ManualLinkages, len(raw))
	for k, v := range raw {
		k, v = strings.TrimSpace(k), strings.TrimSpace(v)
		if k == "" || v == "" || k == v {
			continue
		}
		links[k] = v
	}
	return links, nil
}
