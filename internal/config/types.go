// SPDX-License-Identifier: MPL-2.0

package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/confaudit/confaudit/internal/document"
	"github.com/confaudit/confaudit/internal/finding"
)

const (
	// OutputHuman renders the report for a terminal.
	OutputHuman OutputFormat = "human"
	// OutputJSON renders the machine-readable report.
	OutputJSON OutputFormat = "json"
	// OutputMarkdown renders the report as a Markdown document.
	OutputMarkdown OutputFormat = "markdown"

	// ColorSchemeAuto detects the terminal color scheme automatically.
	ColorSchemeAuto ColorScheme = "auto"
	// ColorSchemeDark forces dark color scheme.
	ColorSchemeDark ColorScheme = "dark"
	// ColorSchemeLight forces light color scheme.
	ColorSchemeLight ColorScheme = "light"
)

var (
	// ErrInvalidOutputFormat is returned when an OutputFormat value is not recognized.
	ErrInvalidOutputFormat = errors.New("invalid output format")
	// ErrInvalidColorScheme is returned when a ColorScheme value is not recognized.
	ErrInvalidColorScheme = errors.New("invalid color scheme")
	// ErrInvalidWorkers is returned for a negative worker count.
	ErrInvalidWorkers = errors.New("invalid worker count")
	// ErrInvalidTimeout is returned for a negative timeout.
	ErrInvalidTimeout = errors.New("invalid timeout")
	// ErrInvalidClassifyEntry is the sentinel error wrapped by InvalidClassifyEntryError.
	ErrInvalidClassifyEntry = errors.New("invalid classify entry")
	// ErrInvalidUIConfig is the sentinel error wrapped by InvalidUIConfigError.
	ErrInvalidUIConfig = errors.New("invalid UI config")
	// ErrInvalidConfig is the sentinel error wrapped by InvalidConfigError.
	ErrInvalidConfig = errors.New("invalid config")
)

type (
	// OutputFormat selects the report renderer.
	OutputFormat string

	// InvalidOutputFormatError is returned when an OutputFormat value is not recognized.
	// It wraps ErrInvalidOutputFormat for errors.Is() compatibility.
	InvalidOutputFormatError struct {
		Value OutputFormat
	}

	// ColorScheme specifies the terminal color scheme preference.
	ColorScheme string

	// InvalidColorSchemeError is returned when a ColorScheme value is not recognized.
	// It wraps ErrInvalidColorScheme for errors.Is() compatibility.
	InvalidColorSchemeError struct {
		Value ColorScheme
	}

	// InvalidClassifyEntryError is returned when a ClassifyEntry has invalid fields.
	InvalidClassifyEntryError struct {
		Pattern     string
		FieldErrors []error
	}

	// InvalidUIConfigError is returned when a UIConfig has invalid fields.
	InvalidUIConfigError struct {
		FieldErrors []error
	}

	// InvalidConfigError is returned when a Config has invalid fields.
	// It wraps ErrInvalidConfig for errors.Is() compatibility and collects
	// field-level validation errors from all sub-components.
	InvalidConfigError struct {
		FieldErrors []error
	}

	// ClassifyEntry maps file names matching Pattern to a document format.
	ClassifyEntry struct {
		Pattern string          `json:"pattern" mapstructure:"pattern"`
		Format  document.Format `json:"format" mapstructure:"format"`
	}

	// Config holds the application configuration.
	Config struct {
		// Workers bounds document parallelism; 0 means GOMAXPROCS.
		Workers int `json:"workers" mapstructure:"workers"`
		// Timeout is the run deadline; 0 disables it.
		Timeout time.Duration `json:"timeout" mapstructure:"timeout"`
		// FailOn is the lowest severity that fails the run.
		FailOn finding.Severity `json:"fail_on" mapstructure:"fail_on"`
		// Output selects the report renderer.
		Output OutputFormat `json:"output" mapstructure:"output"`
		// BestEffort audits the recovered tree of a document that failed to parse.
		BestEffort bool `json:"best_effort" mapstructure:"best_effort"`
		// Catalogs are extra catalog files applied after the default one.
		Catalogs []string `json:"catalogs" mapstructure:"catalogs"`
		// DefaultCatalog loads the built-in catalog.
		DefaultCatalog bool `json:"default_catalog" mapstructure:"default_catalog"`
		// KnowledgeBase is a file path or s3:// location.
		KnowledgeBase string `json:"knowledge_base" mapstructure:"knowledge_base"`
		// Classify rules are tried before the built-in ones.
		Classify []ClassifyEntry `json:"classify" mapstructure:"classify"`
		// UI configures the user interface
		UI UIConfig `json:"ui" mapstructure:"ui"`
	}

	// UIConfig configures the user interface.
	UIConfig struct {
		// Verbose enables debug logging on stderr
		Verbose bool `json:"verbose" mapstructure:"verbose"`
		// ColorScheme sets the color scheme
		ColorScheme ColorScheme `json:"color_scheme" mapstructure:"color_scheme"`
	}
)

// DefaultConfig returns the default configuration
func DefaultConfig() *Config {
	return &Config{
		Workers:        0,
		Timeout:        0,
		FailOn:         finding.SeverityHigh,
		Output:         OutputHuman,
		BestEffort:     true,
		Catalogs:       []string{},
		DefaultCatalog: true,
		KnowledgeBase:  "",
		Classify:       []ClassifyEntry{},
		UI: UIConfig{
			Verbose:     false,
			ColorScheme: ColorSchemeAuto,
		},
	}
}

// IsValid returns whether the Config has valid fields.
func (c Config) IsValid() (bool, []error) {
	var errs []error
	if c.Workers < 0 {
		errs = append(errs, fmt.Errorf("%w: %d", ErrInvalidWorkers, c.Workers))
	}
	if c.Timeout < 0 {
		errs = append(errs, fmt.Errorf("%w: %s", ErrInvalidTimeout, c.Timeout))
	}
	if valid, fieldErrs := c.FailOn.IsValid(); !valid {
		errs = append(errs, fieldErrs...)
	}
	if valid, fieldErrs := c.Output.IsValid(); !valid {
		errs = append(errs, fieldErrs...)
	}
	for _, entry := range c.Classify {
		if valid, fieldErrs := entry.IsValid(); !valid {
			errs = append(errs, fieldErrs...)
		}
	}
	if valid, fieldErrs := c.UI.IsValid(); !valid {
		errs = append(errs, fieldErrs...)
	}
	if len(errs) > 0 {
		return false, []error{&InvalidConfigError{FieldErrors: errs}}
	}
	return true, nil
}

// Error implements the error interface for InvalidConfigError.
func (e *InvalidConfigError) Error() string {
	msgs := make([]string, 0, len(e.FieldErrors))
	for _, err := range e.FieldErrors {
		msgs = append(msgs, err.Error())
	}
	return "invalid config: " + strings.Join(msgs, "; ")
}

// Unwrap returns ErrInvalidConfig and the field errors.
func (e *InvalidConfigError) Unwrap() []error {
	return append([]error{ErrInvalidConfig}, e.FieldErrors...)
}

// IsValid returns whether the entry has a well-formed pattern and a known format.
func (e ClassifyEntry) IsValid() (bool, []error) {
	var errs []error
	if strings.TrimSpace(e.Pattern) == "" {
		errs = append(errs, errors.New("pattern must not be empty"))
	}
	if valid, fieldErrs := e.Format.IsValid(); !valid {
		errs = append(errs, fieldErrs...)
	}
	if len(errs) > 0 {
		return false, []error{&InvalidClassifyEntryError{Pattern: e.Pattern, FieldErrors: errs}}
	}
	return true, nil
}

// Error implements the error interface for InvalidClassifyEntryError.
func (e *InvalidClassifyEntryError) Error() string {
	return fmt.Sprintf("classify %q: %v", e.Pattern, errors.Join(e.FieldErrors...))
}

// Unwrap returns ErrInvalidClassifyEntry for errors.Is() compatibility.
func (e *InvalidClassifyEntryError) Unwrap() error { return ErrInvalidClassifyEntry }

// IsValid returns whether the UIConfig has valid fields.
func (c UIConfig) IsValid() (bool, []error) {
	if valid, errs := c.ColorScheme.IsValid(); !valid {
		return false, []error{&InvalidUIConfigError{FieldErrors: errs}}
	}
	return true, nil
}

// Error implements the error interface for InvalidUIConfigError.
func (e *InvalidUIConfigError) Error() string {
	return fmt.Sprintf("invalid UI config: %v", errors.Join(e.FieldErrors...))
}

// Unwrap returns ErrInvalidUIConfig for errors.Is() compatibility.
func (e *InvalidUIConfigError) Unwrap() error { return ErrInvalidUIConfig }

// String returns the string representation of the OutputFormat.
func (o OutputFormat) String() string { return string(o) }

// IsValid returns whether the OutputFormat is one of the defined formats.
func (o OutputFormat) IsValid() (bool, []error) {
	switch o {
	case OutputHuman, OutputJSON, OutputMarkdown:
		return true, nil
	default:
		return false, []error{&InvalidOutputFormatError{Value: o}}
	}
}

// Error implements the error interface for InvalidOutputFormatError.
func (e *InvalidOutputFormatError) Error() string {
	return fmt.Sprintf("invalid output format %q (valid: human, json, markdown)", e.Value)
}

// Unwrap returns ErrInvalidOutputFormat for errors.Is() compatibility.
func (e *InvalidOutputFormatError) Unwrap() error { return ErrInvalidOutputFormat }

// String returns the string representation of the ColorScheme.
func (cs ColorScheme) String() string { return string(cs) }

// IsValid returns whether the ColorScheme is one of the defined schemes.
func (cs ColorScheme) IsValid() (bool, []error) {
	switch cs {
	case ColorSchemeAuto, ColorSchemeDark, ColorSchemeLight:
		return true, nil
	default:
		return false, []error{&InvalidColorSchemeError{Value: cs}}
	}
}

// Error implements the error interface for InvalidColorSchemeError.
func (e *InvalidColorSchemeError) Error() string {
	return fmt.Sprintf("invalid color scheme %q (valid: auto, dark, light)", e.Value)
}

// Unwrap returns ErrInvalidColorScheme for errors.Is() compatibility.
func (e *InvalidColorSchemeError) Unwrap() error { return ErrInvalidColorScheme }
