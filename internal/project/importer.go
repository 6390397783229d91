package project

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"vidforge/internal/domain"
)

// Importer converts an external project file into a timeline. Binary
// editor formats plug in behind this interface; unparseable input is a
// hard error, never substituted content.
type Importer interface {
	Import(path string) (domain.Timeline, error)
}

// JSONImporter reads timelines stored as plain JSON documents.
type JSONImporter struct{}

func NewJSONImporter() *JSONImporter {
	return &JSONImporter{}
}

// Import parses the file as a timeline document.
func (i *JSONImporter) Import(path string) (domain.Timeline, error) {
	if ext := strings.ToLower(filepath.Ext(path)); ext != ".json" {
		return domain.Timeline{}, fmt.Errorf("project: unsupported format %q, only json projects can be imported", ext)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return domain.Timeline{}, fmt.Errorf("project: read %s: %w", path, err)
	}

	var t domain.Timeline
	if err := json.Unmarshal(data, &t); err != nil {
		return domain.Timeline{}, fmt.Errorf("project: parse %s: %w", path, err)
	}

	if len(t.Tracks) == 0 {
		return domain.Timeline{}, fmt.Errorf("project: %s contains no tracks", path)
	}
	return t, nil
}
