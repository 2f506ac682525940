// SPDX-License-Identifier: MPL-2.0

// Package finding defines audit findings and their severities.
package finding

import (
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/confaudit/confaudit/internal/document"
)

// Severities, most severe first.
const (
	SeverityCritical Severity = "CRITICAL"
	SeverityHigh     Severity = "HIGH"
	SeverityMedium   Severity = "MEDIUM"
	SeverityLow      Severity = "LOW"
)

// Categories used by the built-in catalog and engine findings.
const (
	CategorySyntax       = "syntax"
	CategoryIntegrity    = "integrity"
	CategoryEngine       = "engine"
	CategoryVersion      = "version"
	CategorySecurity     = "security"
	CategoryReliability  = "reliability"
	CategoryPerformance  = "performance"
	CategoryConsistency  = "consistency"
	CategoryDeprecation  = "deprecation"
	CategoryBestPractice = "best-practice"
)

// ErrInvalidSeverity is the sentinel error wrapped by InvalidSeverityError.
var ErrInvalidSeverity = errors.New("invalid severity")

var severityOrder = []Severity{SeverityCritical, SeverityHigh, SeverityMedium, SeverityLow}

type (
	// Severity ranks a finding. The set is totally ordered.
	Severity string

	// InvalidSeverityError is returned when a Severity value is not recognized.
	InvalidSeverityError struct {
		Value Severity
	}

	// Finding is one reported problem. DocumentIDs has at least one entry and
	// Locations has at least one entry; cross-document findings carry every
	// contributing document and location.
	Finding struct {
		RuleID      string              `json:"rule_id"`
		Severity    Severity            `json:"severity"`
		Category    string              `json:"category"`
		DocumentIDs []string            `json:"document_ids"`
		Locations   []document.Location `json:"locations"`
		Message     string              `json:"message"`
		Detail      string              `json:"detail"`
		Fix         string              `json:"fix"`
	}
)

// Severities returns every severity, most severe first.
func Severities() []Severity { return slices.Clone(severityOrder) }

// ParseSeverity resolves a severity name case-insensitively.
func ParseSeverity(value string) (Severity, error) {
	s := Severity(strings.ToUpper(strings.TrimSpace(value)))
	if ok, errs := s.IsValid(); !ok {
		return "", errs[0]
	}
	return s, nil
}

// String returns the string representation of the Severity.
func (s Severity) String() string { return string(s) }

// Rank returns 4 for CRITICAL down to 1 for LOW, and 0 for unknown values.
func (s Severity) Rank() int {
	i := slices.Index(severityOrder, s)
	if i < 0 {
		return 0
	}
	return len(severityOrder) - i
}

// AtLeast reports whether s is as severe as threshold or more.
func (s Severity) AtLeast(threshold Severity) bool {
	return s.Rank() >= threshold.Rank() && s.Rank() > 0
}

// IsValid returns whether the Severity is one of the defined severities.
func (s Severity) IsValid() (bool, []error) {
	if s.Rank() == 0 {
		return false, []error{&InvalidSeverityError{Value: s}}
	}
	return true, nil
}

// Error implements the error interface for InvalidSeverityError.
func (e *InvalidSeverityError) Error() string {
	return fmt.Sprintf("invalid severity %q (valid: CRITICAL, HIGH, MEDIUM, LOW)", e.Value)
}

// Unwrap returns ErrInvalidSeverity for errors.Is() compatibility.
func (e *InvalidSeverityError) Unwrap() error { return ErrInvalidSeverity }

// New builds a finding whose document IDs are derived from its locations,
// sorted and de-duplicated. Locations are sorted as well.
func New(ruleID string, severity Severity, category string, locs []document.Location, message, detail, fix string) Finding {
	locs = slices.Clone(locs)
	slices.SortStableFunc(locs, document.Location.Compare)
	locs = slices.Compact(locs)
	ids := make([]string, 0, len(locs))
	for _, l := range locs {
		ids = append(ids, l.DocumentID)
	}
	slices.Sort(ids)
	return Finding{
		RuleID:      ruleID,
		Severity:    severity,
		Category:    category,
		DocumentIDs: slices.Compact(ids),
		Locations:   locs,
		Message:     message,
		Detail:      detail,
		Fix:         fix,
	}
}

// PrimaryDocument returns the lexicographically first document ID.
func (f Finding) PrimaryDocument() string {
	if len(f.DocumentIDs) == 0 {
		return ""
	}
	return slices.Min(f.DocumentIDs)
}

// PrimaryLocation returns the first location in (document, line) order.
func (f Finding) PrimaryLocation() document.Location {
	if len(f.Locations) == 0 {
		return document.Location{DocumentID: f.PrimaryDocument()}
	}
	return slices.MinFunc(f.Locations, document.Location.Compare)
}

// Clone returns a deep copy of f.
func (f Finding) Clone() Finding {
	f.DocumentIDs = slices.Clone(f.DocumentIDs)
	f.Locations = slices.Clone(f.Locations)
	return f
}
