// SPDX-License-Identifier: MPL-2.0

// Package report aggregates findings into a deterministic audit report and
// renders it as JSON or Markdown.
package report

import (
	"cmp"
	"slices"
	"strings"

	"github.com/confaudit/confaudit/internal/document"
	"github.com/confaudit/confaudit/internal/finding"
	"github.com/confaudit/confaudit/pkg/types"
)

type (
	// Report is the ordered, de-duplicated result of an audit.
	Report struct {
		Findings []finding.Finding `json:"findings"`
		Summary  Summary           `json:"summary"`
	}

	// Summary holds counts computed from the final finding set.
	Summary struct {
		Total               int                      `json:"total"`
		Counts              map[finding.Severity]int `json:"counts"`
		CategoryCounts      map[string]int           `json:"category_counts"`
		Documents           []string                 `json:"documents"`
		Incomplete          bool                     `json:"incomplete"`
		UnfinishedDocuments []string                 `json:"unfinished_documents"`
	}

	// Option configures Aggregate.
	Option func(*Summary)

	dedupKey struct {
		rule    string
		docs    string
		message string
	}
)

// WithDocuments records the IDs of the documents that were audited.
func WithDocuments(ids []string) Option {
	return func(s *Summary) { s.Documents = append(s.Documents, ids...) }
}

// WithUnfinished marks the report incomplete and records the documents that
// did not finish before cancellation.
func WithUnfinished(ids []string) Option {
	return func(s *Summary) {
		if len(ids) == 0 {
			return
		}
		s.Incomplete = true
		s.UnfinishedDocuments = append(s.UnfinishedDocuments, ids...)
	}
}

// WithIncomplete marks the report incomplete without naming documents.
func WithIncomplete() Option {
	return func(s *Summary) { s.Incomplete = true }
}

// Aggregate de-duplicates, sorts, and counts findings. Findings sharing a
// rule, document set and message are merged, keeping the union of their
// locations. The result does not depend on the input order.
func Aggregate(findings []finding.Finding, opts ...Option) *Report {
	merged := make(map[dedupKey]int, len(findings))
	out := make([]finding.Finding, 0, len(findings))

	sorted := slices.Clone(findings)
	slices.SortStableFunc(sorted, Compare)
	for _, f := range sorted {
		key := dedupKey{rule: f.RuleID, docs: strings.Join(uniqueSorted(f.DocumentIDs), "\x00"), message: f.Message}
		if i, ok := merged[key]; ok {
			out[i] = mergeLocations(out[i], f)
			continue
		}
		merged[key] = len(out)
		out = append(out, f.Clone())
	}
	slices.SortStableFunc(out, Compare)

	r := &Report{Findings: out}
	for _, opt := range opts {
		opt(&r.Summary)
	}
	r.Summary.Documents = uniqueSorted(r.Summary.Documents)
	r.Summary.UnfinishedDocuments = uniqueSorted(r.Summary.UnfinishedDocuments)
	r.Summary.Total = len(out)
	r.Summary.Counts = CountBySeverity(out)
	r.Summary.CategoryCounts = CountByCategory(out)
	return r
}

// Compare orders findings by severity (most severe first), first document
// ID, first location, rule ID, and finally message text so the order is
// total.
func Compare(a, b finding.Finding) int {
	return cmp.Or(
		cmp.Compare(b.Severity.Rank(), a.Severity.Rank()),
		strings.Compare(a.PrimaryDocument(), b.PrimaryDocument()),
		a.PrimaryLocation().Compare(b.PrimaryLocation()),
		strings.Compare(a.RuleID, b.RuleID),
		strings.Compare(a.Message, b.Message),
		strings.Compare(a.Detail, b.Detail),
		strings.Compare(a.Fix, b.Fix),
		cmp.Compare(len(a.Locations), len(b.Locations)),
	)
}

// CountBySeverity counts findings per severity; every severity is present.
func CountBySeverity(findings []finding.Finding) map[finding.Severity]int {
	counts := make(map[finding.Severity]int, 4)
	for _, s := range finding.Severities() {
		counts[s] = 0
	}
	for _, f := range findings {
		if f.Severity != "" {
			counts[f.Severity]++
		}
	}
	return counts
}

// CountByCategory counts findings per category.
func CountByCategory(findings []finding.Finding) map[string]int {
	counts := map[string]int{}
	for _, f := range findings {
		if f.Category != "" {
			counts[f.Category]++
		}
	}
	return counts
}

// Failed reports whether any finding is at or above threshold.
func (r *Report) Failed(threshold finding.Severity) bool {
	for _, f := range r.Findings {
		if f.Severity.AtLeast(threshold) {
			return true
		}
	}
	return false
}

// ExitCode returns types.ExitFindings when any finding meets threshold.
func (r *Report) ExitCode(threshold finding.Severity) types.ExitCode {
	if r.Failed(threshold) {
		return types.ExitFindings
	}
	return types.ExitSuccess
}

func mergeLocations(dst, src finding.Finding) finding.Finding {
	locs := append(dst.Locations, src.Locations...)
	slices.SortFunc(locs, document.Location.Compare)
	dst.Locations = slices.Compact(locs)
	return dst
}

func uniqueSorted(ids []string) []string {
	out := slices.Clone(ids)
	slices.Sort(out)
	out = slices.Compact(out)
	if out == nil {
		out = []string{}
	}
	return out
}
