// SPDX-License-Identifier: MPL-2.0

package document

import (
	"errors"
	"fmt"
	"strings"
)

// Document formats. The format is the semantic category of a file and decides
// which rules apply; it is independent of the file's syntax.
const (
	FormatIaC        Format = "iac"
	FormatTimeSeries Format = "timeseries"
	FormatLog        Format = "log"
	FormatTracing    Format = "tracing"
	FormatDashboard  Format = "dashboard"
	FormatProse      Format = "prose"
)

// Syntaxes understood by the built-in adapters.
const (
	SyntaxYAML     Syntax = "yaml"
	SyntaxJSON     Syntax = "json"
	SyntaxHCL      Syntax = "hcl"
	SyntaxMarkdown Syntax = "markdown"
	SyntaxTOML     Syntax = "toml"
	SyntaxINI      Syntax = "ini"
)

var (
	// ErrInvalidFormat is the sentinel error wrapped by InvalidFormatError.
	ErrInvalidFormat = errors.New("invalid document format")
	// ErrUnsupportedSyntax is the sentinel error wrapped by UnsupportedSyntaxError.
	ErrUnsupportedSyntax = errors.New("unsupported document syntax")

	formatAliases = map[string]Format{
		"iac":              FormatIaC,
		"terraform":        FormatIaC,
		"timeseries":       FormatTimeSeries,
		"timeseriesconfig": FormatTimeSeries,
		"prometheus":       FormatTimeSeries,
		"log":              FormatLog,
		"logconfig":        FormatLog,
		"loki":             FormatLog,
		"tracing":          FormatTracing,
		"tracingconfig":    FormatTracing,
		"tempo":            FormatTracing,
		"otel":             FormatTracing,
		"dashboard":        FormatDashboard,
		"dashboardconfig":  FormatDashboard,
		"grafana":          FormatDashboard,
		"prose":            FormatProse,
		"architecture":     FormatProse,
	}

	syntaxByExt = map[string]Syntax{
		".yml":      SyntaxYAML,
		".yaml":     SyntaxYAML,
		".json":     SyntaxJSON,
		".tf":       SyntaxHCL,
		".hcl":      SyntaxHCL,
		".tfvars":   SyntaxHCL,
		".md":       SyntaxMarkdown,
		".markdown": SyntaxMarkdown,
		".txt":      SyntaxMarkdown,
		".toml":     SyntaxTOML,
		".ini":      SyntaxINI,
		".cfg":      SyntaxINI,
		".conf":     SyntaxINI,
	}
)

type (
	// Format is the semantic category of a document.
	Format string

	// InvalidFormatError is returned when a Format value is not recognized.
	// It wraps ErrInvalidFormat for errors.Is() compatibility.
	InvalidFormatError struct {
		Value Format
	}

	// Syntax identifies the textual encoding of a document.
	Syntax string

	// UnsupportedSyntaxError is returned when no adapter exists for a syntax.
	UnsupportedSyntaxError struct {
		Value Syntax
	}
)

// Formats returns every known format in a stable order.
func Formats() []Format {
	return []Format{FormatIaC, FormatTimeSeries, FormatLog, FormatTracing, FormatDashboard, FormatProse}
}

// ParseFormat resolves a user-supplied format name. Matching is case-insensitive
// and accepts the long category names (e.g. "TimeSeriesConfig") and common
// product aliases (e.g. "loki").
func ParseFormat(value string) (Format, error) {
	key := strings.ToLower(strings.TrimSpace(value))
	key = strings.NewReplacer("-", "", "_", "", " ", "").Replace(key)
	if f, ok := formatAliases[key]; ok {
		return f, nil
	}
	return "", &InvalidFormatError{Value: Format(value)}
}

// String returns the string representation of the Format.
func (f Format) String() string { return string(f) }

// IsValid returns whether the Format is one of the defined formats.
func (f Format) IsValid() (bool, []error) {
	switch f {
	case FormatIaC, FormatTimeSeries, FormatLog, FormatTracing, FormatDashboard, FormatProse:
		return true, nil
	default:
		return false, []error{&InvalidFormatError{Value: f}}
	}
}

// Error implements the error interface for InvalidFormatError.
func (e *InvalidFormatError) Error() string {
	return fmt.Sprintf("invalid document format %q (valid: iac, timeseries, log, tracing, dashboard, prose)", e.Value)
}

// Unwrap returns ErrInvalidFormat for errors.Is() compatibility.
func (e *InvalidFormatError) Unwrap() error { return ErrInvalidFormat }

// String returns the string representation of the Syntax.
func (s Syntax) String() string { return string(s) }

// Error implements the error interface for UnsupportedSyntaxError.
func (e *UnsupportedSyntaxError) Error() string {
	if e.Value == "" {
		return "unable to infer document syntax"
	}
	names := make([]string, 0, len(adapters))
	for _, s := range Syntaxes() {
		names = append(names, string(s))
	}
	return fmt.Sprintf("unsupported document syntax %q (valid: %s)", e.Value, strings.Join(names, ", "))
}

// Unwrap returns ErrUnsupportedSyntax for errors.Is() compatibility.
func (e *UnsupportedSyntaxError) Unwrap() error { return ErrUnsupportedSyntax }

// InferSyntax guesses the syntax from a document ID or path extension.
// It returns the empty Syntax when the extension is unknown.
func InferSyntax(name string) Syntax {
	idx := strings.LastIndex(name, ".")
	if idx < 0 {
		return ""
	}
	return syntaxByExt[strings.ToLower(name[idx:])]
}
