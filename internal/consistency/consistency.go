// SPDX-License-Identifier: MPL-2.0

// Package consistency compares facts across documents.
//
// A ConsistencyRule names fact keys and a Comparator. The checker groups facts
// by key and hands each rule its facts; every mismatch becomes one finding
// that attributes all contributing documents and locations. No value is ever
// picked as the winner.
package consistency

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"io"
	"slices"
	"strings"
	"text/template"

	"github.com/charmbracelet/log"
	"github.com/sourcegraph/conc/pool"

	"github.com/confaudit/confaudit/internal/document"
	"github.com/confaudit/confaudit/internal/facts"
	"github.com/confaudit/confaudit/internal/finding"
)

// Built-in comparator names.
const (
	ComparatorEqual    = "equal"
	ComparatorNotBelow = "not_below"
)

var (
	// ErrComparator is the sentinel error wrapped by ComparatorError.
	ErrComparator = errors.New("comparator failed")
	// ErrInvalidRule is returned when a consistency rule is incomplete.
	ErrInvalidRule = errors.New("invalid consistency rule")
)

type (
	// Comparator inspects the facts for one rule and reports mismatches.
	// Facts arrive sorted by key, then source location.
	Comparator interface {
		Compare(facts []document.Fact) ([]Mismatch, error)
	}

	// ComparatorFunc adapts a function to the Comparator interface.
	ComparatorFunc func(facts []document.Fact) ([]Mismatch, error)

	// ValueGroup is one distinct normalized value and the facts carrying it.
	ValueGroup struct {
		Value document.Value
		Facts []document.Fact
	}

	// Mismatch is one inconsistency: the distinct values involved, each with
	// its sources.
	Mismatch struct {
		Key    string
		Groups []ValueGroup
	}

	// ConsistencyRule checks one relationship between fact keys.
	ConsistencyRule struct {
		ID         string
		Title      string
		Keys       []string
		Severity   finding.Severity
		Category   string
		Comparator Comparator
		Message    string
		Detail     string
		Fix        string
	}

	// ComparatorError reports a comparator that failed.
	ComparatorError struct {
		RuleID string
		Cause  error
	}

	// Checker runs consistency rules over a fact set.
	Checker struct {
		rules   []compiledRule
		workers int
		logger  *log.Logger
	}

	// Option configures a Checker.
	Option func(*Checker)

	compiledRule struct {
		ConsistencyRule
		message, detail, fix *template.Template
	}

	templateData struct {
		Rule      string
		Title     string
		Key       string
		Values    string
		Distinct  []string
		Sources   string
		Documents []string
	}
)

// Compare calls f.
func (f ComparatorFunc) Compare(facts []document.Fact) ([]Mismatch, error) { return f(facts) }

// Error implements the error interface.
func (e *ComparatorError) Error() string {
	return fmt.Sprintf("consistency rule %s: %v", e.RuleID, e.Cause)
}

// Unwrap returns ErrComparator and the underlying cause.
func (e *ComparatorError) Unwrap() []error { return []error{ErrComparator, e.Cause} }

// WithWorkers bounds how many rules are checked concurrently.
func WithWorkers(n int) Option {
	return func(c *Checker) {
		if n > 0 {
			c.workers = n
		}
	}
}

// WithLogger sets the logger used for comparator failures.
func WithLogger(l *log.Logger) Option {
	return func(c *Checker) {
		if l != nil {
			c.logger = l
		}
	}
}

// NewChecker validates rules and compiles their templates.
func NewChecker(rules []ConsistencyRule, opts ...Option) (*Checker, error) {
	c := &Checker{workers: 4, logger: log.New(io.Discard)}
	for _, opt := range opts {
		opt(c)
	}
	seen := map[string]struct{}{}
	for _, r := range rules {
		if r.ID == "" || len(r.Keys) == 0 || r.Comparator == nil || r.Message == "" {
			return nil, fmt.Errorf("%w: %q needs id, keys, comparator and message", ErrInvalidRule, r.ID)
		}
		if ok, errs := r.Severity.IsValid(); !ok {
			return nil, fmt.Errorf("%w: %s: %w", ErrInvalidRule, r.ID, errs[0])
		}
		if _, dup := seen[r.ID]; dup {
			return nil, fmt.Errorf("%w: duplicate id %s", ErrInvalidRule, r.ID)
		}
		seen[r.ID] = struct{}{}

		cr := compiledRule{ConsistencyRule: r}
		cr.Keys = uniqueKeys(r.Keys)
		var err error
		for _, t := range []struct {
			dst  **template.Template
			name string
			text string
		}{
			{&cr.message, "message", r.Message},
			{&cr.detail, "detail", r.Detail},
			{&cr.fix, "fix", r.Fix},
		} {
			if t.text == "" {
				continue
			}
			if *t.dst, err = template.New(r.ID + "." + t.name).Option("missingkey=zero").Parse(t.text); err != nil {
				return nil, fmt.Errorf("%w: %s.%s: %w", ErrInvalidRule, r.ID, t.name, err)
			}
		}
		c.rules = append(c.rules, cr)
	}
	return c, nil
}

// Rules returns the checker's rules.
func (c *Checker) Rules() []ConsistencyRule {
	out := make([]ConsistencyRule, len(c.rules))
	for i, r := range c.rules {
		out[i] = r.ConsistencyRule
	}
	return out
}

// Check evaluates every rule against allFacts. Rules run concurrently; the
// result is ordered by rule, then mismatch. A failing comparator yields one
// LOW engine finding and does not affect other rules.
func (c *Checker) Check(ctx context.Context, allFacts []document.Fact) ([]finding.Finding, error) {
	byKey := map[string][]document.Fact{}
	for _, f := range allFacts {
		byKey[f.Key] = append(byKey[f.Key], f)
	}

	results := make([][]finding.Finding, len(c.rules))
	p := pool.New().WithMaxGoroutines(c.workers).WithContext(ctx)
	for i, r := range c.rules {
		p.Go(func(ctx context.Context) error {
			if err := ctx.Err(); err != nil {
				return err
			}
			var subset []document.Fact
			for _, k := range r.Keys {
				subset = append(subset, byKey[k]...)
			}
			slices.SortStableFunc(subset, compareFacts)
			results[i] = c.checkRule(r, subset)
			return nil
		})
	}
	if err := p.Wait(); err != nil {
		return nil, err
	}
	var out []finding.Finding
	for _, fs := range results {
		out = append(out, fs...)
	}
	return out, nil
}

func (c *Checker) checkRule(r compiledRule, subset []document.Fact) []finding.Finding {
	mismatches, err := safeCompare(r, subset)
	if err != nil {
		c.logger.Warn("comparator failed", "rule", r.ID, "err", err)
		locs := make([]document.Location, 0, len(subset))
		for _, f := range subset {
			locs = append(locs, f.Source)
		}
		if len(locs) == 0 {
			locs = append(locs, document.Location{DocumentID: "(consistency)", LineStart: 1, LineEnd: 1})
		}
		return []finding.Finding{finding.ComparatorFailed(r.ID, locs, err)}
	}

	out := make([]finding.Finding, 0, len(mismatches))
	for _, m := range mismatches {
		f, err := r.render(m)
		if err != nil {
			c.logger.Warn("consistency message failed", "rule", r.ID, "err", err)
			return []finding.Finding{finding.ComparatorFailed(r.ID, m.locations(), &ComparatorError{RuleID: r.ID, Cause: err})}
		}
		out = append(out, f)
	}
	return out
}

func safeCompare(r compiledRule, subset []document.Fact) (ms []Mismatch, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			ms = nil
			err = &ComparatorError{RuleID: r.ID, Cause: fmt.Errorf("panic: %v", rec)}
		}
	}()
	ms, err = r.Comparator.Compare(subset)
	if err != nil {
		return nil, &ComparatorError{RuleID: r.ID, Cause: err}
	}
	return ms, nil
}

func (m Mismatch) locations() []document.Location {
	var locs []document.Location
	for _, g := range m.Groups {
		for _, f := range g.Facts {
			locs = append(locs, f.Source)
		}
	}
	return locs
}

func (r compiledRule) render(m Mismatch) (finding.Finding, error) {
	locs := m.locations()
	data := templateData{Rule: r.ID, Title: r.Title, Key: m.Key}
	var values, sources []string
	for _, g := range m.Groups {
		data.Distinct = append(data.Distinct, g.Value.String())
		values = append(values, g.Value.String())
		for _, f := range g.Facts {
			sources = append(sources, fmt.Sprintf("%s (%s)", g.Value, f.Source))
		}
	}
	data.Values = strings.Join(values, " vs ")
	data.Sources = strings.Join(sources, ", ")
	f := finding.New(r.ID, r.Severity, r.Category, locs, "", "", "")
	data.Documents = f.DocumentIDs

	var err error
	if f.Message, err = execute(r.message, data); err != nil {
		return finding.Finding{}, err
	}
	if f.Detail, err = execute(r.detail, data); err != nil {
		return finding.Finding{}, err
	}
	if f.Detail == "" {
		f.Detail = "Values: " + data.Sources
	}
	if f.Fix, err = execute(r.fix, data); err != nil {
		return finding.Finding{}, err
	}
	return f, nil
}

func execute(t *template.Template, data templateData) (string, error) {
	if t == nil {
		return "", nil
	}
	var sb strings.Builder
	if err := t.Execute(&sb, data); err != nil {
		return "", err
	}
	return strings.TrimSpace(sb.String()), nil
}

// uniqueKeys drops repeated keys, keeping the first occurrence.
func uniqueKeys(keys []string) []string {
	out := make([]string, 0, len(keys))
	for _, k := range keys {
		if !slices.Contains(out, k) {
			out = append(out, k)
		}
	}
	return out
}

func compareFacts(a, b document.Fact) int {
	return cmp.Or(
		strings.Compare(a.Key, b.Key),
		a.Source.Compare(b.Source),
		strings.Compare(a.Path, b.Path),
		strings.Compare(a.Value.Canonical, b.Value.Canonical),
	)
}

// groupByValue splits facts (already sorted by source) into distinct value
// groups, ordered by first appearance.
func groupByValue(fs []document.Fact) []ValueGroup {
	var groups []ValueGroup
	for _, f := range fs {
		i := slices.IndexFunc(groups, func(g ValueGroup) bool { return g.Value.Equal(f.Value) })
		if i < 0 {
			groups = append(groups, ValueGroup{Value: f.Value})
			i = len(groups) - 1
		}
		groups[i].Facts = append(groups[i].Facts, f)
	}
	return groups
}

func splitByKey(fs []document.Fact) [][]document.Fact {
	var out [][]document.Fact
	for i := 0; i < len(fs); {
		j := i + 1
		for j < len(fs) && fs[j].Key == fs[i].Key {
			j++
		}
		out = append(out, fs[i:j])
		i = j
	}
	return out
}

// Equal reports every key whose facts carry more than one distinct value.
// Each key is compared independently.
func Equal() Comparator {
	return ComparatorFunc(func(fs []document.Fact) ([]Mismatch, error) {
		var out []Mismatch
		for _, group := range splitByKey(fs) {
			if groups := groupByValue(group); len(groups) > 1 {
				out = append(out, Mismatch{Key: group[0].Key, Groups: groups})
			}
		}
		return out, nil
	})
}

// NotBelow reports facts whose value is lower than the highest value stated
// under floorKey. Facts of other keys are compared against that floor.
func NotBelow(floorKey string) Comparator {
	return ComparatorFunc(func(fs []document.Fact) ([]Mismatch, error) {
		var floors, others []document.Fact
		for _, f := range fs {
			if f.Key == floorKey {
				floors = append(floors, f)
			} else {
				others = append(others, f)
			}
		}
		if len(floors) == 0 || len(others) == 0 {
			return nil, nil
		}
		floor := floors[0]
		for _, f := range floors[1:] {
			if f.Value.Family != floor.Value.Family {
				return nil, fmt.Errorf("floor %s mixes %s and %s values", floorKey, floor.Value.Family, f.Value.Family)
			}
			if facts.CompareValues(f.Value, floor.Value) > 0 {
				floor = f
			}
		}
		var out []Mismatch
		for _, group := range splitByKey(others) {
			var below []document.Fact
			for _, f := range group {
				if f.Value.Family != floor.Value.Family {
					return nil, fmt.Errorf("%s is %s but floor %s is %s", f.Key, f.Value.Family, floorKey, floor.Value.Family)
				}
				if facts.CompareValues(f.Value, floor.Value) < 0 {
					below = append(below, f)
				}
			}
			if len(below) == 0 {
				continue
			}
			var floorFacts []document.Fact
			for _, f := range floors {
				if f.Value.Equal(floor.Value) {
					floorFacts = append(floorFacts, f)
				}
			}
			groups := append([]ValueGroup{{Value: floor.Value, Facts: floorFacts}}, groupByValue(below)...)
			out = append(out, Mismatch{Key: group[0].Key, Groups: groups})
		}
		return out, nil
	})
}
