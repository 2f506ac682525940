// SPDX-License-Identifier: MPL-2.0

package finding

import (
	"fmt"

	"github.com/confaudit/confaudit/internal/document"
)

// Rule IDs of findings produced by the engine itself rather than a catalog rule.
const (
	RuleDocumentUnreadable  = "engine.document-unreadable"
	RuleDocumentUnparsable  = "engine.document-unparsable"
	RuleFactExtraction      = "engine.fact-extraction"
	RuleEvaluationFailed    = "engine.rule-error"
	RuleComparatorFailed    = "engine.comparator-error"
	RuleUndocumentedVersion = "kb.undocumented-version"
)

// Unreadable reports an input whose bytes could not be read.
func Unreadable(docID string, err error) Finding {
	return New(RuleDocumentUnreadable, SeverityCritical, CategorySyntax,
		[]document.Location{{DocumentID: docID, LineStart: 1, LineEnd: 1}},
		fmt.Sprintf("%s could not be read", docID),
		err.Error(),
		"Check that the file exists and is readable.")
}

// Unparsable reports a document that failed to parse.
func Unparsable(loc document.Location, reason string) Finding {
	return New(RuleDocumentUnparsable, SeverityCritical, CategorySyntax,
		[]document.Location{loc},
		fmt.Sprintf("%s is not valid and was not fully audited", loc.DocumentID),
		reason,
		"Fix the syntax error; findings for this document may be incomplete until it parses.")
}

// ExtractionFailed reports a document whose facts were discarded.
func ExtractionFailed(loc document.Location, key, raw string, err error) Finding {
	return New(RuleFactExtraction, SeverityCritical, CategoryIntegrity,
		[]document.Location{loc},
		fmt.Sprintf("%s: could not read %q for %s; its facts were excluded from cross-document checks", loc.DocumentID, raw, key),
		err.Error(),
		fmt.Sprintf("Write %s in a supported unit, or fix the fact definition for %s.", raw, key))
}

// RuleFailed reports a rule that errored or panicked on one document.
func RuleFailed(ruleID string, loc document.Location, err error) Finding {
	return New(RuleEvaluationFailed, SeverityLow, CategoryEngine,
		[]document.Location{loc},
		fmt.Sprintf("rule %s could not be evaluated on %s", ruleID, loc.DocumentID),
		err.Error(),
		fmt.Sprintf("Report or fix rule %s; other rules were unaffected.", ruleID))
}

// ComparatorFailed reports a consistency rule whose comparator errored.
func ComparatorFailed(ruleID string, locs []document.Location, err error) Finding {
	return New(RuleComparatorFailed, SeverityLow, CategoryEngine, locs,
		fmt.Sprintf("consistency rule %s could not be evaluated", ruleID),
		err.Error(),
		fmt.Sprintf("Report or fix consistency rule %s; other rules were unaffected.", ruleID))
}

// UndocumentedVersion reports a component version with no knowledge-base entry.
func UndocumentedVersion(component, version string, loc document.Location) Finding {
	return New(RuleUndocumentedVersion, SeverityLow, CategoryVersion,
		[]document.Location{loc},
		fmt.Sprintf("%s %s has no knowledge-base entry; its support status is unknown", component, version),
		fmt.Sprintf("The version knowledge base has no range for %q.", component),
		fmt.Sprintf("Add %s to the version knowledge base.", component))
}
