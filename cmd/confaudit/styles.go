// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"github.com/charmbracelet/lipgloss"

	"github.com/confaudit/confaudit/internal/finding"
)

// Color palette shared by all CLI output.
const (
	// ColorPrimary is purple - used for titles and headers.
	ColorPrimary = lipgloss.Color("#7C3AED")

	// ColorMuted is gray - used for secondary text.
	ColorMuted = lipgloss.Color("#6B7280")

	// ColorSuccess is green - used for a passing audit.
	ColorSuccess = lipgloss.Color("#10B981")

	// ColorError is red - used for errors and CRITICAL findings.
	ColorError = lipgloss.Color("#EF4444")

	// ColorWarning is amber - used for warnings and HIGH findings.
	ColorWarning = lipgloss.Color("#F59E0B")

	// ColorHighlight is blue - used for rule ids and MEDIUM findings.
	ColorHighlight = lipgloss.Color("#3B82F6")

	// ColorVerbose is light gray - used for LOW findings and details.
	ColorVerbose = lipgloss.Color("#9CA3AF")
)

var (
	// TitleStyle is for primary headers and section titles.
	TitleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(ColorPrimary)

	// SubtitleStyle is for secondary headers and descriptions.
	SubtitleStyle = lipgloss.NewStyle().
			Foreground(ColorMuted)

	// SuccessStyle is for a passing audit.
	SuccessStyle = lipgloss.NewStyle().
			Foreground(ColorSuccess)

	// ErrorStyle is for error messages.
	ErrorStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(ColorError)

	// WarningStyle is for warning messages.
	WarningStyle = lipgloss.NewStyle().
			Foreground(ColorWarning)

	// CmdStyle is for rule ids, commands and code.
	CmdStyle = lipgloss.NewStyle().
			Foreground(ColorHighlight)

	summaryBoxStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(ColorMuted).
			Padding(0, 1)

	tableHeaderStyle = lipgloss.NewStyle().
				Bold(true).
				Foreground(ColorPrimary).
				Padding(0, 1)

	tableCellStyle = lipgloss.NewStyle().
			Padding(0, 1)

	severityStyles = map[finding.Severity]lipgloss.Style{
		finding.SeverityCritical: lipgloss.NewStyle().Bold(true).Foreground(ColorError),
		finding.SeverityHigh:     lipgloss.NewStyle().Bold(true).Foreground(ColorWarning),
		finding.SeverityMedium:   lipgloss.NewStyle().Foreground(ColorHighlight),
		finding.SeverityLow:      lipgloss.NewStyle().Foreground(ColorVerbose),
	}
)

// severityStyle returns the style for s, falling back to SubtitleStyle.
func severityStyle(s finding.Severity) lipgloss.Style {
	if style, ok := severityStyles[s]; ok {
		return style
	}
	return SubtitleStyle
}
