package models

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"

	"gopkg.in/yaml.v3"
)

// Catalog 외부 모델 스크립트 목록 (config/models.yaml)
type Catalog struct {
	Version int            `yaml:"version"`
	Models  []CatalogEntry `yaml:"models"`

	dir string
}

// CatalogEntry describes one external-process model
type CatalogEntry struct {
	Key         string `yaml:"key"`
	Runtime     string `yaml:"runtime"`               // r | python
	Interpreter string `yaml:"interpreter,omitempty"` // overrides the runtime executable
	Script      string `yaml:"script"`
	Description string `yaml:"description,omitempty"`
}

// Runtimes
const (
	RuntimeR      = "r"
	RuntimePython = "python"
)

// model keys never contain "-" (spec codes split on it)
var keyPattern = regexp.MustCompile(`^[a-z][a-z0-9_]*$`)

// LoadCatalog reads the YAML catalog. A missing file yields an empty catalog.
// SSOT 핵심: KnownFields(true)로 오타/미사용 필드 즉시 실패
func LoadCatalog(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return &Catalog{dir: filepath.Dir(path)}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read model catalog: %w", err)
	}
	return ParseCatalog(data, filepath.Dir(path))
}

// ParseCatalog decodes catalog YAML; relative script paths resolve against dir
func ParseCatalog(data []byte, dir string) (*Catalog, error) {
	cat := Catalog{dir: dir}
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&cat); err != nil {
		return nil, fmt.Errorf("decode model catalog: %w", err)
	}
	if err := cat.Validate(); err != nil {
		return nil, err
	}
	return &cat, nil
}

// Validate checks keys, runtimes and scripts
func (c *Catalog) Validate() error {
	seen := make(map[string]bool, len(c.Models))
	for i, m := range c.Models {
		if !keyPattern.MatchString(m.Key) {
			return fmt.Errorf("models[%d]: key %q must match %s", i, m.Key, keyPattern)
		}
		if seen[m.Key] {
			return fmt.Errorf("models[%d]: duplicate key %q", i, m.Key)
		}
		seen[m.Key] = true

		if m.Script == "" {
			return fmt.Errorf("models[%d] %s: script is required", i, m.Key)
		}
		if m.Interpreter == "" && m.Runtime != RuntimeR && m.Runtime != RuntimePython {
			return fmt.Errorf("models[%d] %s: runtime must be %q or %q", i, m.Key, RuntimeR, RuntimePython)
		}
	}
	return nil
}

// ScriptPath resolves an entry's script against the catalog directory
func (c *Catalog) ScriptPath(m CatalogEntry) string {
	if filepath.IsAbs(m.Script) || c.dir == "" {
		return m.Script
	}
	return filepath.Join(c.dir, m.Script)
}

// Hash is a SHA256 of the catalog content
func (c *Catalog) Hash() string {
	data, _ := yaml.Marshal(c.Models)
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}
