// Package file loads flows from YAML/JSON documents and persists sessions as JSON files.
package file

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/aretw0/flowrun/pkg/domain"
	"gopkg.in/yaml.v3"
)

// Extensions recognised as flow documents.
var Extensions = []string{".yaml", ".yml", ".json"}

// Loader implements ports.FlowLoader over a directory of flow documents, or a single file.
// Flows are re-read on every LoadFlow so edits are picked up without a restart.
type Loader struct {
	Path string
}

// NewLoader creates a loader rooted at path (a directory or a single flow file).
func NewLoader(path string) *Loader {
	return &Loader{Path: path}
}

// IsFlowFile reports whether name has a flow document extension.
func IsFlowFile(name string) bool {
	ext := strings.ToLower(filepath.Ext(name))
	for _, known := range Extensions {
		if ext == known {
			return true
		}
	}
	return false
}

// LoadFlow parses the document whose flow id (or file base name) is id.
func (l *Loader) LoadFlow(_ context.Context, id string) (*domain.Flow, error) {
	files, err := l.files()
	if err != nil {
		return nil, err
	}
	for _, path := range files {
		flow, err := ParseFile(path)
		if err != nil {
			return nil, err
		}
		if flow.ID == id {
			return flow, nil
		}
	}
	return nil, fmt.Errorf("%w: %s", domain.ErrFlowNotFound, id)
}

// ListFlows returns the ids of every parseable flow.
func (l *Loader) ListFlows(_ context.Context) ([]string, error) {
	files, err := l.files()
	if err != nil {
		return nil, err
	}
	seen := make(map[string]string, len(files))
	ids := make([]string, 0, len(files))
	for _, path := range files {
		flow, err := ParseFile(path)
		if err != nil {
			return nil, err
		}
		if existing, dup := seen[flow.ID]; dup {
			return nil, fmt.Errorf("collision detected: flow '%s' is defined in both '%s' and '%s'", flow.ID, existing, path)
		}
		seen[flow.ID] = path
		ids = append(ids, flow.ID)
	}
	sort.Strings(ids)
	return ids, nil
}

func (l *Loader) files() ([]string, error) {
	info, err := os.Stat(l.Path)
	if err != nil {
		return nil, fmt.Errorf("flow source %s: %w", l.Path, err)
	}
	if !info.IsDir() {
		return []string{l.Path}, nil
	}

	entries, err := os.ReadDir(l.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to read flow directory: %w", err)
	}
	var files []string
	for _, entry := range entries {
		if !entry.IsDir() && IsFlowFile(entry.Name()) {
			files = append(files, filepath.Join(l.Path, entry.Name()))
		}
	}
	sort.Strings(files)
	return files, nil
}

// ParseFile reads one flow document. A missing id defaults to the file base name.
func ParseFile(path string) (*domain.Flow, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read flow %s: %w", path, err)
	}
	flow, err := Parse(data, filepath.Ext(path))
	if err != nil {
		return nil, fmt.Errorf("flow %s: %w", path, err)
	}
	if flow.ID == "" {
		base := filepath.Base(path)
		flow.ID = strings.TrimSuffix(base, filepath.Ext(base))
	}
	return flow, nil
}

// Parse decodes a flow document. ext selects JSON (".json") or YAML (anything else).
func Parse(data []byte, ext string) (*domain.Flow, error) {
	var flow domain.Flow
	if strings.EqualFold(ext, ".json") {
		dec := json.NewDecoder(bytes.NewReader(data))
		if err := dec.Decode(&flow); err != nil {
			return nil, fmt.Errorf("invalid json: %w", err)
		}
	} else if err := yaml.Unmarshal(data, &flow); err != nil {
		return nil, fmt.Errorf("invalid yaml: %w", err)
	}
	if flow.Nodes == nil {
		flow.Nodes = map[string]domain.Node{}
	}
	return &flow, nil
}

// Encode renders a flow as YAML.
func Encode(flow *domain.Flow) ([]byte, error) {
	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(flow); err != nil {
		return nil, err
	}
	if err := enc.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
