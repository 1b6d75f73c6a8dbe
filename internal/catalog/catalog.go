// Package catalog decodes and validates authored training content.
package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
	"training-progress-service/internal/domain"
)

// Format is the encoding of a catalog document.
type Format string

const (
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
)

// FormatFromPath picks the format by file extension.
func FormatFromPath(path string) Format {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return FormatYAML
	default:
		return FormatJSON
	}
}

// Parse decodes, schema-checks and validates a catalog document and returns
// it indexed.
func Parse(data []byte, format Format) (*domain.Catalog, error) {
	raw := data
	if format == FormatYAML {
		var doc any
		if err := yaml.Unmarshal(data, &doc); err != nil {
			return nil, fmt.Errorf("decode yaml: %w", err)
		}
		converted, err := json.Marshal(doc)
		if err != nil {
			return nil, fmt.Errorf("convert yaml: %w", err)
		}
		raw = converted
	}

	if err := checkDocument(raw); err != nil {
		return nil, err
	}

	var c domain.Catalog
	if err := json.Unmarshal(raw, &c); err != nil {
		return nil, fmt.Errorf("decode catalog: %w", err)
	}
	if err := Validate(&c); err != nil {
		return nil, err
	}
	return c.Index(), nil
}

// LoadFile reads and parses a catalog file.
func LoadFile(path string) (*domain.Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return Parse(data, FormatFromPath(path))
}

// FileLoader loads catalogs named <id>.yaml, <id>.yml or <id>.json from Dir.
type FileLoader struct {
	Dir string
}

func NewFileLoader(dir string) *FileLoader {
	return &FileLoader{Dir: dir}
}

func (l *FileLoader) LoadCatalog(_ context.Context, catalogID string) (*domain.Catalog, error) {
	for _, ext := range []string{".yaml", ".yml", ".json"} {
		path := filepath.Join(l.Dir, catalogID+ext)
		c, err := LoadFile(path)
		if errors.Is(err, os.ErrNotExist) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("load catalog %s: %w", catalogID, err)
		}
		if c.ID != catalogID {
			return nil, fmt.Errorf("load catalog %s: file declares id %q", catalogID, c.ID)
		}
		return c, nil
	}
	return nil, domain.ErrCatalogNotFound
}
