// SPDX-License-Identifier: MPL-2.0

package rules

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"golang.org/x/mod/semver"

	"github.com/confaudit/confaudit/internal/document"
	"github.com/confaudit/confaudit/internal/facts"
)

// Declarative check kinds.
const (
	CheckEquals    CheckKind = "equals"
	CheckNotEquals CheckKind = "not_equals"
	CheckMatches   CheckKind = "matches"
	CheckAbsent    CheckKind = "absent"
	CheckPresent   CheckKind = "present"
	CheckCompare   CheckKind = "compare"
	CheckRatio     CheckKind = "ratio"
	CheckVersion   CheckKind = "version"
)

type (
	// CheckKind names a declarative predicate.
	CheckKind string

	// Check is a declarative predicate loaded from a rule catalog.
	//
	// Select picks anchor nodes (the document root when empty). Field is a
	// pattern relative to each anchor; an empty Field means the anchor
	// itself. Which other fields are used depends on Kind:
	//
	//   - equals / not_equals: Value or Values (case-insensitive text match)
	//   - matches: Pattern (regular expression)
	//   - absent: fires on anchors where Field matches nothing
	//   - present: fires when every pattern in Fields matches under the anchor
	//   - compare: Op (lt, lte, gt, gte, eq, ne) against Threshold, or against
	//     Limit normalized with Unit
	//   - ratio: Numerator / Denominator below MinRatio; with Margin the
	//     ratio is (numerator - denominator) / denominator
	//   - version: Field against the knowledge base entry for Component, or
	//     for the value found at ComponentField under the anchor
	Check struct {
		Kind           CheckKind       `json:"kind"`
		Select         string          `json:"select,omitempty"`
		Field          string          `json:"field,omitempty"`
		Fields         []string        `json:"fields,omitempty"`
		Value          any             `json:"value,omitempty"`
		Values         []any           `json:"values,omitempty"`
		Pattern        string          `json:"pattern,omitempty"`
		Op             string          `json:"op,omitempty"`
		Threshold      *float64        `json:"threshold,omitempty"`
		Limit          string          `json:"limit,omitempty"`
		Unit           document.Family `json:"unit,omitempty"`
		DefaultUnit    string          `json:"default_unit,omitempty"`
		Numerator      string          `json:"numerator,omitempty"`
		Denominator    string          `json:"denominator,omitempty"`
		MinRatio       float64         `json:"min_ratio,omitempty"`
		Margin         bool            `json:"margin,omitempty"`
		Component      string          `json:"component,omitempty"`
		ComponentField string          `json:"component_field,omitempty"`
	}

	compiledCheck struct {
		Check
		sel       document.Pattern
		field     document.Pattern
		fields    []document.Pattern
		num       document.Pattern
		den       document.Pattern
		compField document.Pattern
		re        *regexp.Regexp
		want      []string
		threshold float64
	}
)

// Compile validates the check and returns it as a Predicate.
func (c Check) Compile() (Predicate, error) {
	cc := &compiledCheck{Check: c}
	var err error
	if cc.sel, err = document.ParsePattern(c.Select); err != nil {
		return nil, err
	}
	if cc.field, err = document.ParsePattern(c.Field); err != nil {
		return nil, err
	}

	switch c.Kind {
	case CheckEquals, CheckNotEquals:
		if c.Value != nil {
			cc.want = append(cc.want, scalarText(c.Value))
		}
		for _, v := range c.Values {
			cc.want = append(cc.want, scalarText(v))
		}
		if len(cc.want) == 0 {
			return nil, fmt.Errorf("%s check needs value or values", c.Kind)
		}
	case CheckMatches:
		if cc.re, err = regexp.Compile(c.Pattern); err != nil {
			return nil, fmt.Errorf("matches check: %w", err)
		}
	case CheckAbsent:
		if c.Field == "" {
			return nil, fmt.Errorf("absent check needs field")
		}
	case CheckPresent:
		if len(c.Fields) == 0 {
			return nil, fmt.Errorf("present check needs fields")
		}
		for _, f := range c.Fields {
			p, err := document.ParsePattern(f)
			if err != nil {
				return nil, err
			}
			cc.fields = append(cc.fields, p)
		}
	case CheckCompare:
		if !validOp(c.Op) {
			return nil, fmt.Errorf("compare check: unknown op %q", c.Op)
		}
		switch {
		case c.Threshold != nil:
			cc.threshold = *c.Threshold
		case c.Limit != "":
			v, err := facts.Normalize(c.unitOrCount(), c.Limit, c.DefaultUnit)
			if err != nil {
				return nil, fmt.Errorf("compare check: limit: %w", err)
			}
			cc.threshold = v.Number
		default:
			return nil, fmt.Errorf("compare check needs threshold or limit")
		}
	case CheckRatio:
		if c.Numerator == "" || c.Denominator == "" || c.MinRatio <= 0 {
			return nil, fmt.Errorf("ratio check needs numerator, denominator and min_ratio")
		}
		if cc.num, err = document.ParsePattern(c.Numerator); err != nil {
			return nil, err
		}
		if cc.den, err = document.ParsePattern(c.Denominator); err != nil {
			return nil, err
		}
	case CheckVersion:
		if c.Component == "" && c.ComponentField == "" {
			return nil, fmt.Errorf("version check needs component or component_field")
		}
		if cc.compField, err = document.ParsePattern(c.ComponentField); err != nil {
			return nil, err
		}
	default:
		return nil, fmt.Errorf("unknown check kind %q", c.Kind)
	}
	return cc, nil
}

func (c Check) unitOrCount() document.Family {
	if c.Unit == "" {
		return document.FamilyCount
	}
	return c.Unit
}

// Match implements Predicate.
func (c *compiledCheck) Match(ctx context.Context, doc *document.Document, env Env) ([]Match, error) {
	var out []Match
	for _, anchor := range doc.Root.Find(c.sel) {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		found, err := c.matchAnchor(anchor, env)
		if err != nil {
			return nil, err
		}
		out = append(out, found...)
	}
	return out, nil
}

func (c *compiledCheck) matchAnchor(anchor *document.Node, env Env) ([]Match, error) {
	switch c.Kind {
	case CheckAbsent:
		if len(anchor.Find(c.field)) == 0 {
			return []Match{{Node: anchor, Values: map[string]string{"field": c.Field}}}, nil
		}
		return nil, nil
	case CheckPresent:
		return c.matchPresent(anchor), nil
	case CheckRatio:
		return c.matchRatio(anchor)
	}

	var out []Match
	for _, n := range anchor.Find(c.field) {
		if !n.IsScalar() {
			continue
		}
		text := n.Text()
		values := map[string]string{n.Key(): text}
		switch c.Kind {
		case CheckEquals:
			if c.equalsAny(text) {
				out = append(out, Match{Node: n, Value: text, Values: values})
			}
		case CheckNotEquals:
			if !c.equalsAny(text) {
				out = append(out, Match{Node: n, Value: text, Values: values, Expected: strings.Join(c.want, ", ")})
			}
		case CheckMatches:
			if c.re.MatchString(text) {
				out = append(out, Match{Node: n, Value: text, Values: values})
			}
		case CheckCompare:
			num, ok := c.number(text)
			if ok && compare(num, c.Op, c.threshold) {
				out = append(out, Match{Node: n, Value: text, Values: values, Expected: c.expected()})
			}
		case CheckVersion:
			if m, ok := c.matchVersion(anchor, n, env); ok {
				out = append(out, m)
			}
		}
	}
	return out, nil
}

func (c *compiledCheck) matchPresent(anchor *document.Node) []Match {
	var nodes []*document.Node
	values := map[string]string{}
	for i, p := range c.fields {
		n, ok := anchor.First(p)
		if !ok {
			return nil
		}
		nodes = append(nodes, n)
		name := n.Key()
		if name == "" {
			name = c.Fields[i]
		}
		values[name] = n.Text()
	}
	return []Match{{Node: nodes[0], Related: nodes[1:], Value: nodes[0].Text(), Values: values}}
}

func (c *compiledCheck) matchRatio(anchor *document.Node) ([]Match, error) {
	numNode, ok := anchor.First(c.num)
	if !ok || !numNode.IsScalar() {
		return nil, nil
	}
	denNode, ok := anchor.First(c.den)
	if !ok || !denNode.IsScalar() {
		return nil, nil
	}
	num, okNum := c.number(numNode.Text())
	den, okDen := c.number(denNode.Text())
	if !okNum || !okDen || den == 0 {
		return nil, nil
	}
	ratio := num / den
	if c.Margin {
		ratio = (num - den) / den
	}
	if ratio >= c.MinRatio {
		return nil, nil
	}
	values := map[string]string{
		numNode.Key(): numNode.Text(),
		denNode.Key(): denNode.Text(),
		"numerator":   numNode.Text(),
		"denominator": denNode.Text(),
		"ratio":       strconv.FormatFloat(ratio, 'f', -1, 64),
		"min_ratio":   strconv.FormatFloat(c.MinRatio, 'f', -1, 64),
	}
	return []Match{{
		Node:     numNode,
		Related:  []*document.Node{denNode},
		Value:    numNode.Text(),
		Values:   values,
		Expected: values["min_ratio"],
	}}, nil
}

func (c *compiledCheck) matchVersion(anchor, n *document.Node, env Env) (Match, bool) {
	component := c.Component
	if c.ComponentField != "" {
		cn, ok := anchor.First(c.compField)
		if !ok {
			return Match{}, false
		}
		component = strings.ToLower(cn.Text())
	}
	text := n.Text()
	v, err := facts.Normalize(document.FamilyVersion, text, "")
	if err != nil {
		return Match{}, false
	}
	values := map[string]string{n.Key(): text, "component": component}
	var rng struct{ min, rec string }
	found := false
	if env.KB != nil {
		if r, ok := env.KB.Current(component); ok {
			rng.min, rng.rec, found = r.Minimum, r.Recommended, true
		}
	}
	if !found {
		return Match{Node: n, Value: text, Values: values, Component: component, Undocumented: true}, true
	}
	if semver.Compare(v.Canonical, rng.min) >= 0 {
		return Match{}, false
	}
	return Match{
		Node:        n,
		Value:       text,
		Values:      values,
		Expected:    strings.TrimPrefix(rng.min, "v"),
		Recommended: strings.TrimPrefix(rng.rec, "v"),
		Component:   component,
	}, true
}

func (c *compiledCheck) equalsAny(text string) bool {
	for _, w := range c.want {
		if strings.EqualFold(w, text) {
			return true
		}
	}
	return false
}

func (c *compiledCheck) number(text string) (float64, bool) {
	if c.Unit == "" {
		f, err := strconv.ParseFloat(strings.TrimSpace(text), 64)
		return f, err == nil
	}
	v, err := facts.Normalize(c.Unit, text, c.DefaultUnit)
	if err != nil {
		return 0, false
	}
	return v.Number, true
}

func (c *compiledCheck) expected() string {
	if c.Limit != "" {
		return c.Limit
	}
	return strconv.FormatFloat(c.threshold, 'f', -1, 64)
}

func validOp(op string) bool {
	switch op {
	case "lt", "lte", "gt", "gte", "eq", "ne":
		return true
	}
	return false
}

func compare(v float64, op string, threshold float64) bool {
	switch op {
	case "lt":
		return v < threshold
	case "lte":
		return v <= threshold
	case "gt":
		return v > threshold
	case "gte":
		return v >= threshold
	case "eq":
		return v == threshold
	case "ne":
		return v != threshold
	}
	return false
}

func scalarText(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	default:
		return fmt.Sprint(t)
	}
}
