package graph

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Manifest is the on-disk release list.
type Manifest struct {
	Releases []ManifestEntry `json:"releases" yaml:"releases"`
}

// LoadManifest reads a manifest file. Format follows the extension: .json
// is JSON, anything else is YAML. Entry validation happens in Build; this
// only decodes.
func LoadManifest(path string) ([]ManifestEntry, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading manifest: %w", err)
	}

	var m Manifest
	if strings.EqualFold(filepath.Ext(path), ".json") {
		err = json.Unmarshal(raw, &m)
	} else {
		err = yaml.Unmarshal(raw, &m)
	}
	if err != nil {
		return nil, &MalformedManifestError{Reason: fmt.Sprintf("parsing %s: %v", path, err)}
	}
	return m.Releases, nil
}
