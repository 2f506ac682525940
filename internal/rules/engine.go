// SPDX-License-Identifier: MPL-2.0

package rules

import (
	"context"
	"fmt"
	"io"
	"strings"
	"text/template"

	"github.com/charmbracelet/log"

	"github.com/confaudit/confaudit/internal/document"
	"github.com/confaudit/confaudit/internal/finding"
	"github.com/confaudit/confaudit/internal/kb"
)

type (
	// Engine evaluates a fixed rule set against documents. It is safe for
	// concurrent use; Evaluate holds no shared mutable state.
	Engine struct {
		rules  []compiledRule
		env    Env
		logger *log.Logger
	}

	// Option configures an Engine.
	Option func(*Engine)

	compiledRule struct {
		Rule
		message *template.Template
		detail  *template.Template
		fix     *template.Template
	}

	// templateData is what message, detail and fix templates see.
	templateData struct {
		Rule        string
		Title       string
		Document    string
		Path        string
		Line        int
		Value       string
		Values      map[string]string
		Expected    string
		Recommended string
		Component   string
	}

	dedupKey struct {
		rule string
		doc  string
		loc  document.Location
	}
)

// WithKnowledgeBase sets the version knowledge base used by version checks.
func WithKnowledgeBase(base kb.KnowledgeBase) Option {
	return func(e *Engine) { e.env.KB = base }
}

// WithLogger sets the logger used for rule failures.
func WithLogger(l *log.Logger) Option {
	return func(e *Engine) {
		if l != nil {
			e.logger = l
		}
	}
}

// NewEngine validates rules and compiles their templates. Duplicate rule IDs
// are rejected.
func NewEngine(rules []Rule, opts ...Option) (*Engine, error) {
	e := &Engine{logger: log.New(io.Discard)}
	for _, opt := range opts {
		opt(e)
	}
	seen := make(map[string]struct{}, len(rules))
	for _, r := range rules {
		if err := r.Validate(); err != nil {
			return nil, err
		}
		if _, dup := seen[r.ID]; dup {
			return nil, fmt.Errorf("%w: duplicate rule id %s", ErrInvalidRule, r.ID)
		}
		seen[r.ID] = struct{}{}

		c := compiledRule{Rule: r}
		var err error
		if c.message, err = compileTemplate(r.ID+".message", r.Message); err != nil {
			return nil, err
		}
		if c.detail, err = compileTemplate(r.ID+".detail", r.Detail); err != nil {
			return nil, err
		}
		if c.fix, err = compileTemplate(r.ID+".fix", r.Fix); err != nil {
			return nil, err
		}
		e.rules = append(e.rules, c)
	}
	return e, nil
}

// Rules returns the engine's rules in evaluation order.
func (e *Engine) Rules() []Rule {
	out := make([]Rule, len(e.rules))
	for i, r := range e.rules {
		out[i] = r.Rule
	}
	return out
}

// Evaluate runs every applicable rule against doc. A rule that errors or
// panics yields one LOW engine finding and does not affect other rules. The
// only error returned is the context's, when evaluation was cancelled.
func (e *Engine) Evaluate(ctx context.Context, doc *document.Document) ([]finding.Finding, error) {
	var out []finding.Finding
	seen := map[dedupKey]struct{}{}
	for _, r := range e.rules {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if !r.AppliesToFormat(doc.Format) {
			continue
		}
		found, err := e.evaluateRule(ctx, r, doc)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return nil, ctxErr
			}
			e.logger.Warn("rule failed", "rule", r.ID, "document", doc.ID, "err", err)
			found = []finding.Finding{finding.RuleFailed(r.ID, doc.Root.Location, err)}
		}
		for _, f := range found {
			key := dedupKey{rule: f.RuleID, doc: doc.ID, loc: f.PrimaryLocation()}
			if f.RuleID == finding.RuleEvaluationFailed {
				key.rule += "/" + r.ID
			}
			if _, dup := seen[key]; dup {
				continue
			}
			seen[key] = struct{}{}
			out = append(out, f)
		}
	}
	return out, nil
}

func (e *Engine) evaluateRule(ctx context.Context, r compiledRule, doc *document.Document) (found []finding.Finding, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			found = nil
			err = &RuleEvaluationError{RuleID: r.ID, DocumentID: doc.ID, Cause: fmt.Errorf("panic: %v", rec)}
		}
	}()

	matches, err := r.Predicate.Match(ctx, doc, e.env)
	if err != nil {
		return nil, &RuleEvaluationError{RuleID: r.ID, DocumentID: doc.ID, Cause: err}
	}
	for _, m := range matches {
		f, err := r.render(doc, m)
		if err != nil {
			return nil, &RuleEvaluationError{RuleID: r.ID, DocumentID: doc.ID, Cause: err}
		}
		found = append(found, f)
	}
	return found, nil
}

func (r compiledRule) render(doc *document.Document, m Match) (finding.Finding, error) {
	node := m.Node
	if node == nil {
		node = doc.Root
	}
	if m.Undocumented {
		return finding.UndocumentedVersion(m.Component, m.Value, node.Location), nil
	}

	data := templateData{
		Rule:        r.FindingID(),
		Title:       r.Title,
		Document:    doc.ID,
		Path:        node.Path.String(),
		Line:        node.Location.LineStart,
		Value:       m.Value,
		Values:      m.Values,
		Expected:    m.Expected,
		Recommended: m.Recommended,
		Component:   m.Component,
	}
	if data.Value == "" {
		data.Value = node.Text()
	}
	if data.Values == nil {
		data.Values = map[string]string{}
	}

	message, err := execute(r.message, data)
	if err != nil {
		return finding.Finding{}, err
	}
	detail, err := execute(r.detail, data)
	if err != nil {
		return finding.Finding{}, err
	}
	fix, err := execute(r.fix, data)
	if err != nil {
		return finding.Finding{}, err
	}

	locs := make([]document.Location, 0, 1+len(m.Related))
	locs = append(locs, node.Location)
	for _, rel := range m.Related {
		if rel != nil {
			locs = append(locs, rel.Location)
		}
	}
	return finding.New(r.FindingID(), r.Severity, r.Category, locs, message, detail, fix), nil
}

func compileTemplate(name, text string) (*template.Template, error) {
	if text == "" {
		return nil, nil
	}
	t, err := template.New(name).Option("missingkey=zero").Parse(text)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrInvalidRule, name, err)
	}
	return t, nil
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
