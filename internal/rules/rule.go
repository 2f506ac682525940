// SPDX-License-Identifier: MPL-2.0

// Package rules evaluates single-document rules.
//
// A Rule pairs a Predicate with metadata and message templates. Predicates
// are pure: they inspect a Document (and the version knowledge base) and
// return matches. The Engine turns matches into findings, isolates failing
// rules, and de-duplicates findings that share a rule family, document and
// location.
package rules

import (
	"context"
	"errors"
	"fmt"

	"github.com/confaudit/confaudit/internal/document"
	"github.com/confaudit/confaudit/internal/finding"
	"github.com/confaudit/confaudit/internal/kb"
)

var (
	// ErrRuleEvaluation is the sentinel error wrapped by RuleEvaluationError.
	ErrRuleEvaluation = errors.New("rule evaluation failed")
	// ErrInvalidRule is returned when a rule definition is incomplete.
	ErrInvalidRule = errors.New("invalid rule")
)

type (
	// Env is the read-only environment predicates may consult.
	Env struct {
		KB kb.KnowledgeBase
	}

	// Predicate inspects one document and reports matches.
	Predicate interface {
		Match(ctx context.Context, doc *document.Document, env Env) ([]Match, error)
	}

	// PredicateFunc adapts a function to the Predicate interface.
	PredicateFunc func(ctx context.Context, doc *document.Document, env Env) ([]Match, error)

	// Match is one place where a predicate held.
	//
	// Node is the primary node; Related nodes contribute extra locations.
	// Values feed message templates. When Undocumented is set the engine
	// reports a knowledge-base gap for Component instead of the rule itself.
	Match struct {
		Node         *document.Node
		Related      []*document.Node
		Value        string
		Values       map[string]string
		Expected     string
		Recommended  string
		Component    string
		Undocumented bool
	}

	// Rule is a single-document check.
	//
	// Family groups rules that describe the same problem from different
	// angles; findings are reported and de-duplicated under the family name
	// when it is set, otherwise under ID.
	Rule struct {
		ID        string
		Family    string
		Title     string
		AppliesTo []document.Format
		Severity  finding.Severity
		Category  string
		Predicate Predicate
		Message   string
		Detail    string
		Fix       string
	}

	// RuleEvaluationError reports a rule that failed on one document.
	RuleEvaluationError struct {
		RuleID     string
		DocumentID string
		Cause      error
	}
)

// Match calls f.
func (f PredicateFunc) Match(ctx context.Context, doc *document.Document, env Env) ([]Match, error) {
	return f(ctx, doc, env)
}

// FindingID returns the rule ID reported on findings.
func (r Rule) FindingID() string {
	if r.Family != "" {
		return r.Family
	}
	return r.ID
}

// AppliesToFormat reports whether the rule runs on documents of format f.
// A rule with no formats applies to every document.
func (r Rule) AppliesToFormat(f document.Format) bool {
	if len(r.AppliesTo) == 0 {
		return true
	}
	for _, a := range r.AppliesTo {
		if a == f {
			return true
		}
	}
	return false
}

// Validate checks that the rule is complete.
func (r Rule) Validate() error {
	if r.ID == "" {
		return fmt.Errorf("%w: missing id", ErrInvalidRule)
	}
	if ok, errs := r.Severity.IsValid(); !ok {
		return fmt.Errorf("%w: %s: %w", ErrInvalidRule, r.ID, errs[0])
	}
	if r.Predicate == nil {
		return fmt.Errorf("%w: %s: missing predicate", ErrInvalidRule, r.ID)
	}
	if r.Message == "" {
		return fmt.Errorf("%w: %s: missing message", ErrInvalidRule, r.ID)
	}
	for _, f := range r.AppliesTo {
		if ok, errs := f.IsValid(); !ok {
			return fmt.Errorf("%w: %s: %w", ErrInvalidRule, r.ID, errs[0])
		}
	}
	return nil
}

// Error implements the error interface.
func (e *RuleEvaluationError) Error() string {
	return fmt.Sprintf("rule %s on %s: %v", e.RuleID, e.DocumentID, e.Cause)
}

// Unwrap returns ErrRuleEvaluation and the underlying cause.
func (e *RuleEvaluationError) Unwrap() []error { return []error{ErrRuleEvaluation, e.Cause} }
