// SPDX-License-Identifier: MPL-2.0

package catalog

import (
	_ "embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/confaudit/confaudit/internal/consistency"
	"github.com/confaudit/confaudit/internal/document"
	"github.com/confaudit/confaudit/internal/facts"
	"github.com/confaudit/confaudit/internal/finding"
	"github.com/confaudit/confaudit/internal/rules"
	"github.com/confaudit/confaudit/pkg/cueutil"
)

// DefaultName is the source name reported for the built-in catalog.
const DefaultName = "builtin:default_catalog.yaml"

var (
	//go:embed catalog_schema.cue
	catalogSchema []byte

	//go:embed default_catalog.yaml
	defaultCatalog []byte

	// ErrInvalidCatalog is the sentinel error wrapped by InvalidCatalogError.
	ErrInvalidCatalog = errors.New("invalid catalog")
)

type (
	// Catalog is the decoded form of one catalog file.
	Catalog struct {
		Rules       []RuleSpec        `json:"rules,omitempty"`
		Facts       []facts.FactRule  `json:"facts,omitempty"`
		Consistency []ConsistencySpec `json:"consistency,omitempty"`
	}

	// RuleSpec declares one single-document rule.
	RuleSpec struct {
		ID        string            `json:"id"`
		Family    string            `json:"family,omitempty"`
		Title     string            `json:"title,omitempty"`
		AppliesTo []document.Format `json:"applies_to,omitempty"`
		Severity  finding.Severity  `json:"severity"`
		Category  string            `json:"category,omitempty"`
		Check     rules.Check       `json:"check"`
		Message   string            `json:"message"`
		Detail    string            `json:"detail,omitempty"`
		Fix       string            `json:"fix,omitempty"`
	}

	// ConsistencySpec declares one cross-document consistency rule.
	ConsistencySpec struct {
		ID         string           `json:"id"`
		Title      string           `json:"title,omitempty"`
		Keys       []string         `json:"keys"`
		Severity   finding.Severity `json:"severity"`
		Category   string           `json:"category,omitempty"`
		Comparator string           `json:"comparator,omitempty"`
		Floor      string           `json:"floor,omitempty"`
		Message    string           `json:"message"`
		Detail     string           `json:"detail,omitempty"`
		Fix        string           `json:"fix,omitempty"`
	}

	// Set is a catalog compiled into engine inputs.
	Set struct {
		Rules       []rules.Rule
		Facts       []facts.FactRule
		Consistency []consistency.ConsistencyRule
	}

	// InvalidCatalogError reports a catalog that failed to load or compile.
	InvalidCatalogError struct {
		Source string
		Cause  error
	}
)

// Error implements the error interface.
func (e *InvalidCatalogError) Error() string {
	return fmt.Sprintf("catalog %s: %v", e.Source, e.Cause)
}

// Unwrap returns both the sentinel and the cause.
func (e *InvalidCatalogError) Unwrap() []error { return []error{ErrInvalidCatalog, e.Cause} }

// Default returns the built-in catalog.
func Default() (*Catalog, error) {
	return Parse(DefaultName, defaultCatalog)
}

// LoadFile reads and parses the catalog at path.
func LoadFile(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &InvalidCatalogError{Source: path, Cause: err}
	}
	return Parse(path, data)
}

// Parse decodes catalog data. The syntax is chosen by the extension of name:
// .cue is compiled as CUE, anything else is read as YAML (which covers JSON).
func Parse(name string, data []byte) (*Catalog, error) {
	opts := []cueutil.Option{cueutil.WithFilename(filepath.Base(name))}

	var (
		result *cueutil.ParseResult[Catalog]
		err    error
	)
	if strings.EqualFold(filepath.Ext(name), ".cue") {
		result, err = cueutil.ParseAndDecode[Catalog](catalogSchema, data, "#Catalog", opts...)
	} else {
		if err = cueutil.CheckFileSize(data, cueutil.DefaultMaxFileSize, filepath.Base(name)); err != nil {
			return nil, &InvalidCatalogError{Source: name, Cause: err}
		}
		var raw any
		if err = yaml.Unmarshal(data, &raw); err != nil {
			return nil, &InvalidCatalogError{Source: name, Cause: err}
		}
		if raw == nil {
			raw = map[string]any{}
		}
		result, err = cueutil.DecodeValue[Catalog](catalogSchema, raw, "#Catalog", opts...)
	}
	if err != nil {
		return nil, &InvalidCatalogError{Source: name, Cause: err}
	}
	return result.Value, nil
}

// Merge combines catalogs in order. A rule or consistency rule whose ID was
// already defined replaces the earlier definition in place; fact rules
// accumulate.
func Merge(catalogs ...*Catalog) *Catalog {
	out := &Catalog{}
	ruleAt := map[string]int{}
	consAt := map[string]int{}
	for _, c := range catalogs {
		if c == nil {
			continue
		}
		for _, r := range c.Rules {
			if i, ok := ruleAt[r.ID]; ok {
				out.Rules[i] = r
				continue
			}
			ruleAt[r.ID] = len(out.Rules)
			out.Rules = append(out.Rules, r)
		}
		out.Facts = append(out.Facts, c.Facts...)
		for _, r := range c.Consistency {
			if i, ok := consAt[r.ID]; ok {
				out.Consistency[i] = r
				continue
			}
			consAt[r.ID] = len(out.Consistency)
			out.Consistency = append(out.Consistency, r)
		}
	}
	return out
}

// Build compiles every check and comparator in the catalog.
func (c *Catalog) Build() (*Set, error) {
	set := &Set{Facts: append([]facts.FactRule(nil), c.Facts...)}
	var errs []error
	for _, f := range c.Facts {
		if !facts.HasNormalizer(f.Unit) {
			errs = append(errs, fmt.Errorf("fact %s: unknown unit %q (valid: %s)", f.Key, f.Unit, unitNames()))
		}
	}
	for _, spec := range c.Rules {
		pred, err := spec.Check.Compile()
		if err != nil {
			errs = append(errs, fmt.Errorf("rule %s: %w", spec.ID, err))
			continue
		}
		set.Rules = append(set.Rules, rules.Rule{
			ID:        spec.ID,
			Family:    spec.Family,
			Title:     spec.Title,
			AppliesTo: spec.AppliesTo,
			Severity:  spec.Severity,
			Category:  spec.Category,
			Predicate: pred,
			Message:   spec.Message,
			Detail:    spec.Detail,
			Fix:       spec.Fix,
		})
	}
	for _, spec := range c.Consistency {
		cmp, err := spec.comparator()
		if err != nil {
			errs = append(errs, fmt.Errorf("consistency rule %s: %w", spec.ID, err))
			continue
		}
		set.Consistency = append(set.Consistency, consistency.ConsistencyRule{
			ID:         spec.ID,
			Title:      spec.Title,
			Keys:       spec.Keys,
			Severity:   spec.Severity,
			Category:   spec.Category,
			Comparator: cmp,
			Message:    spec.Message,
			Detail:     spec.Detail,
			Fix:        spec.Fix,
		})
	}
	if len(errs) > 0 {
		return nil, &InvalidCatalogError{Source: "build", Cause: errors.Join(errs...)}
	}
	return set, nil
}

func unitNames() string {
	units := facts.Units()
	names := make([]string, 0, len(units))
	for _, u := range units {
		names = append(names, string(u))
	}
	return strings.Join(names, ", ")
}

func (s ConsistencySpec) comparator() (consistency.Comparator, error) {
	switch s.Comparator {
	case "", consistency.ComparatorEqual:
		return consistency.Equal(), nil
	case consistency.ComparatorNotBelow:
		if s.Floor == "" {
			return nil, errors.New("not_below comparator needs floor")
		}
		return consistency.NotBelow(s.Floor), nil
	default:
		return nil, fmt.Errorf("unknown comparator %q", s.Comparator)
	}
}

// LoadAll returns the merged catalog for a run: the built-in catalog when
// withDefault is set, followed by each file in paths.
func LoadAll(withDefault bool, paths []string) (*Catalog, error) {
	var parts []*Catalog
	if withDefault {
		def, err := Default()
		if err != nil {
			return nil, err
		}
		parts = append(parts, def)
	}
	for _, p := range paths {
		c, err := LoadFile(p)
		if err != nil {
			return nil, err
		}
		parts = append(parts, c)
	}
	return Merge(parts...), nil
}
