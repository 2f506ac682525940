// SPDX-License-Identifier: MPL-2.0

package facts

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"slices"
	"strings"

	"github.com/confaudit/confaudit/internal/document"
)

// ErrExtraction is the sentinel error wrapped by ExtractionError.
var ErrExtraction = errors.New("fact extraction failed")

type (
	// FactRule declares how to pull one fact key out of documents.
	//
	// Path selects scalar nodes. When Pattern is set, each match of the
	// regular expression inside the scalar's text yields a fact from the
	// first capture group that took part in the match (or the whole match).
	// Context, when set, must match the scalar's text or, for prose, the
	// section heading.
	FactRule struct {
		Key         string            `json:"key"`
		AppliesTo   []document.Format `json:"applies_to,omitempty"`
		Path        string            `json:"path"`
		Unit        document.Family   `json:"unit"`
		DefaultUnit string            `json:"default_unit,omitempty"`
		Pattern     string            `json:"pattern,omitempty"`
		Context     string            `json:"context,omitempty"`
	}

	// ExtractionError reports a matched value that could not be normalized.
	ExtractionError struct {
		DocumentID string
		Key        string
		Location   document.Location
		Raw        string
		Cause      error
	}

	// Extractor applies a compiled set of FactRules to documents.
	Extractor struct {
		rules []compiledFactRule
	}

	compiledFactRule struct {
		FactRule
		path    document.Pattern
		pattern *regexp.Regexp
		context *regexp.Regexp
	}
)

// Error implements the error interface.
func (e *ExtractionError) Error() string {
	return fmt.Sprintf("extract %s from %s: %v", e.Key, e.Location, e.Cause)
}

// Unwrap returns ErrExtraction and the underlying cause.
func (e *ExtractionError) Unwrap() []error { return []error{ErrExtraction, e.Cause} }

// NewExtractor compiles fact rules. Bad paths or regular expressions are
// reported here; unknown units are reported when a value is extracted.
func NewExtractor(rules []FactRule) (*Extractor, error) {
	e := &Extractor{}
	for _, r := range rules {
		if r.Key == "" {
			return nil, fmt.Errorf("fact rule with path %q has no key", r.Path)
		}
		c := compiledFactRule{FactRule: r}
		var err error
		if c.path, err = document.ParsePattern(r.Path); err != nil {
			return nil, fmt.Errorf("fact %s: %w", r.Key, err)
		}
		if r.Pattern != "" {
			if c.pattern, err = regexp.Compile(r.Pattern); err != nil {
				return nil, fmt.Errorf("fact %s: pattern: %w", r.Key, err)
			}
		}
		if r.Context != "" {
			if c.context, err = regexp.Compile(r.Context); err != nil {
				return nil, fmt.Errorf("fact %s: context: %w", r.Key, err)
			}
		}
		e.rules = append(e.rules, c)
	}
	return e, nil
}

// Extract returns the facts found in doc, in rule order and then declaration
// order. The first value that cannot be normalized aborts extraction for the
// whole document with an *ExtractionError.
func (e *Extractor) Extract(ctx context.Context, doc *document.Document) ([]document.Fact, error) {
	var out []document.Fact
	for _, r := range e.rules {
		if len(r.AppliesTo) > 0 && !slices.Contains(r.AppliesTo, doc.Format) {
			continue
		}
		for _, n := range doc.Root.Find(r.path) {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
			if !n.IsScalar() {
				continue
			}
			found, err := r.extractNode(doc, n)
			if err != nil {
				return nil, err
			}
			out = append(out, found...)
		}
	}
	return out, nil
}

func (r compiledFactRule) extractNode(doc *document.Document, n *document.Node) ([]document.Fact, error) {
	text := n.Text()
	if r.context != nil && !r.context.MatchString(text) && !r.context.MatchString(sectionHeading(doc, n)) {
		return nil, nil
	}

	type candidate struct {
		raw  any
		text string
		loc  document.Location
	}
	var candidates []candidate
	if r.pattern == nil {
		if n.Value == nil {
			return nil, nil
		}
		candidates = append(candidates, candidate{raw: n.Value, text: text, loc: n.Location})
	} else {
		for _, m := range r.pattern.FindAllStringSubmatchIndex(text, -1) {
			start, end := m[0], m[1]
			for g := 2; g+1 < len(m); g += 2 {
				if m[g] >= 0 {
					start, end = m[g], m[g+1]
					break
				}
			}
			line := n.Location.LineStart + strings.Count(text[:start], "\n")
			loc := document.Location{DocumentID: n.Location.DocumentID, LineStart: line, LineEnd: line}
			candidates = append(candidates, candidate{raw: text[start:end], text: text[start:end], loc: loc})
		}
	}

	out := make([]document.Fact, 0, len(candidates))
	for _, c := range candidates {
		v, err := Normalize(r.Unit, c.raw, r.DefaultUnit)
		if err != nil {
			return nil, &ExtractionError{DocumentID: doc.ID, Key: r.Key, Location: c.loc, Raw: c.text, Cause: err}
		}
		out = append(out, document.Fact{
			Key:    r.Key,
			Value:  v,
			Raw:    c.text,
			Unit:   r.Unit,
			Path:   n.Path.String(),
			Source: c.loc,
		})
	}
	return out, nil
}

// sectionHeading returns the heading of the prose section containing n.
func sectionHeading(doc *document.Document, n *document.Node) string {
	if doc.Format != document.FormatProse || len(n.Path) == 0 || !n.Path[0].IsIndex {
		return ""
	}
	sec, ok := doc.Root.At(n.Path[0].Index)
	if !ok {
		return ""
	}
	h, _ := sec.Child("heading")
	return h.Text()
}
