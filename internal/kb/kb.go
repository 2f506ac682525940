// SPDX-License-Identifier: MPL-2.0

// Package kb holds the version knowledge base: per component, the minimum
// supported version and the recommended version. The knowledge base is
// external data; the engine reads it and never embeds version policy in rules.
package kb

import (
	"bytes"
	_ "embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/pelletier/go-toml/v2"
	"golang.org/x/mod/semver"
	"gopkg.in/yaml.v3"
)

// ErrInvalidEntry is returned when a knowledge-base entry is malformed.
var ErrInvalidEntry = errors.New("invalid knowledge base entry")

//go:embed versions.toml
var defaultData []byte

type (
	// KnowledgeBase answers the currently supported version range of a component.
	KnowledgeBase interface {
		Current(component string) (VersionRange, bool)
	}

	// VersionRange is the supported range of one component. Minimum and
	// Recommended are canonical semver strings.
	VersionRange struct {
		Component   string `json:"component" toml:"component" yaml:"component"`
		Minimum     string `json:"minimum" toml:"minimum" yaml:"minimum"`
		Recommended string `json:"recommended" toml:"recommended" yaml:"recommended"`
		Note        string `json:"note,omitempty" toml:"note,omitempty" yaml:"note,omitempty"`
	}

	// Table is a static, read-only KnowledgeBase.
	Table struct {
		entries map[string]VersionRange
		source  string
	}

	tableFile struct {
		Components []VersionRange `toml:"components" yaml:"components"`
	}
)

// NewTable validates entries and builds a Table. Component names are matched
// case-insensitively; versions are canonicalized.
func NewTable(source string, entries []VersionRange) (*Table, error) {
	t := &Table{entries: make(map[string]VersionRange, len(entries)), source: source}
	for _, e := range entries {
		name := strings.ToLower(strings.TrimSpace(e.Component))
		if name == "" {
			return nil, fmt.Errorf("%w: missing component name", ErrInvalidEntry)
		}
		if _, dup := t.entries[name]; dup {
			return nil, fmt.Errorf("%w: duplicate component %q", ErrInvalidEntry, name)
		}
		minimum := canonical(e.Minimum)
		if minimum == "" {
			return nil, fmt.Errorf("%w: %s: minimum %q is not a version", ErrInvalidEntry, name, e.Minimum)
		}
		recommended := canonical(e.Recommended)
		if recommended == "" {
			recommended = minimum
		}
		if semver.Compare(recommended, minimum) < 0 {
			return nil, fmt.Errorf("%w: %s: recommended %s is below minimum %s", ErrInvalidEntry, name, recommended, minimum)
		}
		t.entries[name] = VersionRange{Component: name, Minimum: minimum, Recommended: recommended, Note: e.Note}
	}
	return t, nil
}

// Default returns the knowledge base shipped with the binary.
func Default() (*Table, error) {
	return Decode("builtin", "versions.toml", defaultData)
}

// LoadFile reads a TOML, YAML, or JSON knowledge base from disk.
func LoadFile(path string) (*Table, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read knowledge base: %w", err)
	}
	return Decode(path, path, data)
}

// Decode parses a knowledge base document. The name's extension selects the
// syntax; anything other than .toml is read as YAML, which also covers JSON.
func Decode(source, name string, data []byte) (*Table, error) {
	var file tableFile
	switch strings.ToLower(filepath.Ext(name)) {
	case ".toml":
		dec := toml.NewDecoder(bytes.NewReader(data))
		dec.DisallowUnknownFields()
		if err := dec.Decode(&file); err != nil {
			return nil, fmt.Errorf("decode knowledge base %s: %w", source, err)
		}
	default:
		dec := yaml.NewDecoder(bytes.NewReader(data))
		dec.KnownFields(true)
		if err := dec.Decode(&file); err != nil {
			return nil, fmt.Errorf("decode knowledge base %s: %w", source, err)
		}
	}
	return NewTable(source, file.Components)
}

// Current returns the supported range of component.
func (t *Table) Current(component string) (VersionRange, bool) {
	if t == nil {
		return VersionRange{}, false
	}
	r, ok := t.entries[strings.ToLower(strings.TrimSpace(component))]
	return r, ok
}

// Components returns every known component, sorted.
func (t *Table) Components() []string {
	out := make([]string, 0, len(t.entries))
	for name := range t.entries {
		out = append(out, name)
	}
	slices.Sort(out)
	return out
}

// Source describes where the table was loaded from.
func (t *Table) Source() string { return t.source }

func canonical(v string) string {
	v = strings.TrimSpace(v)
	if v == "" {
		return ""
	}
	if !strings.HasPrefix(v, "v") {
		v = "v" + v
	}
	return semver.Canonical(v)
}
