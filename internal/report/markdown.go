// SPDX-License-Identifier: MPL-2.0

package report

import (
	"errors"
	"fmt"
	"io"
	"slices"
	"strings"

	"github.com/confaudit/confaudit/internal/finding"
)

// RenderMarkdown renders the report as Markdown. Findings are grouped by
// severity in report order. The output has no timestamps.
func RenderMarkdown(r *Report) string {
	var sb strings.Builder
	sb.WriteString("# Configuration Audit Report\n\n")
	writeSummarySection(&sb, r.Summary)
	writeFindingsSection(&sb, r.Findings)
	return sb.String()
}

// RenderFindingsMarkdown renders only the findings section, for callers that
// draw their own summary.
func RenderFindingsMarkdown(findings []finding.Finding) string {
	var sb strings.Builder
	writeFindingsSection(&sb, findings)
	return sb.String()
}

// WriteMarkdown writes the Markdown rendering of r to w.
func WriteMarkdown(w io.Writer, r *Report) error {
	if r == nil {
		return errors.New("report is nil")
	}
	if w == nil {
		return errors.New("writer is nil")
	}
	if _, err := io.WriteString(w, RenderMarkdown(r)); err != nil {
		return fmt.Errorf("write report: %w", err)
	}
	return nil
}

func writeSummarySection(sb *strings.Builder, s Summary) {
	sb.WriteString("## Summary\n\n")
	fmt.Fprintf(sb, "- Documents audited: %d\n", len(s.Documents))
	fmt.Fprintf(sb, "- Total findings: %d\n", s.Total)
	if s.Incomplete {
		sb.WriteString("- **Incomplete:** the audit was cancelled before every document finished\n")
		for _, id := range s.UnfinishedDocuments {
			fmt.Fprintf(sb, "  - %s\n", id)
		}
	}
	sb.WriteString("\n")

	sb.WriteString("### Counts by Severity\n\n")
	sb.WriteString("| Severity | Count |\n")
	sb.WriteString("|---|---|\n")
	for _, severity := range finding.Severities() {
		fmt.Fprintf(sb, "| %s | %d |\n", severity, s.Counts[severity])
	}
	sb.WriteString("\n")

	if len(s.CategoryCounts) == 0 {
		return
	}
	sb.WriteString("### Counts by Category\n\n")
	sb.WriteString("| Category | Count |\n")
	sb.WriteString("|---|---|\n")
	categories := make([]string, 0, len(s.CategoryCounts))
	for c := range s.CategoryCounts {
		categories = append(categories, c)
	}
	slices.Sort(categories)
	for _, c := range categories {
		fmt.Fprintf(sb, "| %s | %d |\n", escapeTableValue(c), s.CategoryCounts[c])
	}
	sb.WriteString("\n")
}

func writeFindingsSection(sb *strings.Builder, findings []finding.Finding) {
	sb.WriteString("## Findings\n\n")
	if len(findings) == 0 {
		sb.WriteString("No findings.\n\n")
		return
	}

	var current finding.Severity
	for _, f := range findings {
		if f.Severity != current {
			current = f.Severity
			fmt.Fprintf(sb, "### %s\n\n", current)
		}
		fmt.Fprintf(sb, "#### %s\n\n", f.RuleID)
		fmt.Fprintf(sb, "- Message: %s\n", emptyDash(f.Message))
		fmt.Fprintf(sb, "- Category: %s\n", emptyDash(f.Category))
		fmt.Fprintf(sb, "- Locations: %s\n", formatLocations(f))
		if f.Detail != "" {
			fmt.Fprintf(sb, "- Detail: %s\n", f.Detail)
		}
		fmt.Fprintf(sb, "- Fix: %s\n", emptyDash(f.Fix))
		sb.WriteString("\n")
	}
}

func formatLocations(f finding.Finding) string {
	if len(f.Locations) == 0 {
		return emptyDash(strings.Join(f.DocumentIDs, ", "))
	}
	parts := make([]string, 0, len(f.Locations))
	for _, loc := range f.Locations {
		parts = append(parts, "`"+loc.String()+"`")
	}
	return strings.Join(parts, ", ")
}

func escapeTableValue(value string) string {
	if value == "" {
		return "-"
	}

	escaped := strings.ReplaceAll(value, "\r", "")
	escaped = strings.ReplaceAll(escaped, "\n", "<br>")
	escaped = strings.ReplaceAll(escaped, "|", "\\|")
	return escaped
}

func emptyDash(value string) string {
	if value == "" {
		return "-"
	}
	return value
}
