// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"

	"github.com/confaudit/confaudit/internal/config"
	"github.com/confaudit/confaudit/internal/finding"
	"github.com/confaudit/confaudit/internal/report"
)

// glamourStyle maps the configured color scheme to a glamour style. Files
// always get the plain style.
func glamourStyle(scheme config.ColorScheme, toFile bool) string {
	if toFile {
		return "notty"
	}
	switch scheme {
	case config.ColorSchemeDark:
		return "dark"
	case config.ColorSchemeLight:
		return "light"
	default:
		return "auto"
	}
}

// renderHuman writes a lipgloss summary box followed by the findings rendered
// from Markdown with glamour.
func renderHuman(w io.Writer, rep *report.Report, failOn finding.Severity, style string) error {
	if _, err := fmt.Fprintln(w, renderSummary(rep, failOn)); err != nil {
		return err
	}
	if len(rep.Findings) == 0 {
		return nil
	}
	body, err := glamour.Render(report.RenderFindingsMarkdown(rep.Findings), style)
	if err != nil {
		return fmt.Errorf("render findings: %w", err)
	}
	_, err = io.WriteString(w, body)
	return err
}

// renderSummary returns the boxed run summary: document and finding totals,
// per-severity counts and the verdict against failOn.
func renderSummary(rep *report.Report, failOn finding.Severity) string {
	s := rep.Summary

	counts := make([]string, 0, len(finding.Severities()))
	for _, sev := range finding.Severities() {
		counts = append(counts, severityStyle(sev).Render(fmt.Sprintf("%s %d", sev, s.Counts[sev])))
	}

	verdict := SuccessStyle.Render(fmt.Sprintf("PASS (no finding at or above %s)", failOn))
	if rep.Failed(failOn) {
		verdict = ErrorStyle.Render(fmt.Sprintf("FAIL (findings at or above %s)", failOn))
	}

	lines := []string{
		TitleStyle.Render("Configuration audit"),
		fmt.Sprintf("Documents: %d   Findings: %d", len(s.Documents), s.Total),
		strings.Join(counts, "  "),
		verdict,
	}
	if s.Incomplete {
		lines = append(lines, WarningStyle.Render(fmt.Sprintf("Incomplete: %d document(s) unfinished", len(s.UnfinishedDocuments))))
	}
	return summaryBoxStyle.Render(lipgloss.JoinVertical(lipgloss.Left, lines...))
}
