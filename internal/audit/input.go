// SPDX-License-Identifier: MPL-2.0

package audit

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"slices"
	"strings"

	"github.com/bmatcuk/doublestar/v4"

	"github.com/confaudit/confaudit/internal/document"
)

// MaxInputSize caps the size of a single input file.
const MaxInputSize int64 = 16 * 1024 * 1024

var (
	// ErrUnclassified is returned for an explicit input whose format cannot
	// be inferred from its name.
	ErrUnclassified = errors.New("cannot infer document format")

	defaultSkipDirs = map[string]struct{}{
		".git":         {},
		".terraform":   {},
		"node_modules": {},
		"vendor":       {},
		"dist":         {},
		"build":        {},
		".idea":        {},
		".vscode":      {},
	}

	defaultClassifier = Classifier{
		{Pattern: "*.tf", Format: document.FormatIaC},
		{Pattern: "*.tfvars", Format: document.FormatIaC},
		{Pattern: "*.hcl", Format: document.FormatIaC},
		{Pattern: "*.md", Format: document.FormatProse},
		{Pattern: "*.markdown", Format: document.FormatProse},
		{Pattern: "*.txt", Format: document.FormatProse},
		{Pattern: "*prometheus*", Format: document.FormatTimeSeries},
		{Pattern: "*thanos*", Format: document.FormatTimeSeries},
		{Pattern: "*alertmanager*", Format: document.FormatTimeSeries},
		{Pattern: "*loki*", Format: document.FormatLog},
		{Pattern: "*promtail*", Format: document.FormatLog},
		{Pattern: "*tempo*", Format: document.FormatTracing},
		{Pattern: "*otel*", Format: document.FormatTracing},
		{Pattern: "*collector*", Format: document.FormatTracing},
		{Pattern: "*grafana*", Format: document.FormatDashboard},
		{Pattern: "*datasource*", Format: document.FormatDashboard},
		{Pattern: "*dashboard*", Format: document.FormatDashboard},
	}
)

type (
	// Input is one document to audit. When Data is nil the file at Path is
	// read by the worker that processes it.
	Input struct {
		ID     string
		Path   string
		Format document.Format
		Syntax document.Syntax
		Data   []byte
	}

	// ClassifyRule maps file names matching Pattern to Format. Patterns
	// without a slash match the base name; others are doublestar globs over
	// the slash-separated path. Matching is case-insensitive.
	ClassifyRule struct {
		Pattern string          `json:"pattern" mapstructure:"pattern"`
		Format  document.Format `json:"format" mapstructure:"format"`
	}

	// Classifier is an ordered rule list; the first match wins.
	Classifier []ClassifyRule
)

// DefaultClassifier returns the built-in name-based classification rules.
func DefaultClassifier() Classifier { return slices.Clone(defaultClassifier) }

// Classify returns the format for name.
func (c Classifier) Classify(name string) (document.Format, bool) {
	slashed := strings.ToLower(filepath.ToSlash(name))
	base := path.Base(slashed)
	for _, r := range c {
		subject := base
		if strings.Contains(r.Pattern, "/") {
			subject = slashed
		}
		if ok, err := doublestar.Match(strings.ToLower(r.Pattern), subject); err == nil && ok {
			return r.Format, true
		}
	}
	return "", false
}

// Validate reports malformed patterns and unknown formats.
func (c Classifier) Validate() error {
	var errs []error
	for _, r := range c {
		if !doublestar.ValidatePattern(r.Pattern) {
			errs = append(errs, fmt.Errorf("classify pattern %q: %w", r.Pattern, doublestar.ErrBadPattern))
		}
		if ok, formatErrs := r.Format.IsValid(); !ok {
			errs = append(errs, fmt.Errorf("classify pattern %q: %w", r.Pattern, formatErrs[0]))
		}
	}
	return errors.Join(errs...)
}

// Collect turns command-line arguments into inputs. Each argument is a file
// or directory, optionally suffixed with "=FORMAT" to force the format.
// Directories are walked recursively, skipping VCS and vendor directories;
// files inside them with an unknown syntax or no matching classify rule are
// skipped. An explicit file that cannot be classified is an error.
func Collect(args []string, classifier Classifier) ([]Input, []string, error) {
	var (
		inputs  []Input
		skipped []string
		seen    = map[string]struct{}{}
	)
	add := func(in Input) {
		if _, dup := seen[in.ID]; dup {
			return
		}
		seen[in.ID] = struct{}{}
		inputs = append(inputs, in)
	}

	for _, arg := range args {
		target, forced, err := splitFormat(arg)
		if err != nil {
			return nil, nil, err
		}
		info, err := os.Stat(target)
		if err != nil {
			// Unreadable inputs are reported as findings by the run.
			add(Input{ID: inputID(target), Path: target, Format: orDefault(forced, classifier, target)})
			continue
		}
		if !info.IsDir() {
			format := forced
			if format == "" {
				var ok bool
				if format, ok = classifier.Classify(target); !ok {
					return nil, nil, fmt.Errorf("%w: %s (use PATH=FORMAT)", ErrUnclassified, target)
				}
			}
			add(Input{ID: inputID(target), Path: target, Format: format})
			continue
		}

		files, err := listFiles(target)
		if err != nil {
			return nil, nil, err
		}
		for _, f := range files {
			if document.InferSyntax(f) == "" {
				skipped = append(skipped, inputID(f))
				continue
			}
			format := forced
			if format == "" {
				var ok bool
				if format, ok = classifier.Classify(f); !ok {
					skipped = append(skipped, inputID(f))
					continue
				}
			}
			add(Input{ID: inputID(f), Path: f, Format: format})
		}
	}
	return inputs, skipped, nil
}

// Targets returns the paths named by Collect arguments, without any
// =FORMAT suffix.
func Targets(args []string) []string {
	targets := make([]string, 0, len(args))
	for _, arg := range args {
		target, _, _ := strings.Cut(arg, "=")
		targets = append(targets, target)
	}
	return targets
}

func splitFormat(arg string) (string, document.Format, error) {
	target, raw, found := strings.Cut(arg, "=")
	if !found {
		return arg, "", nil
	}
	format, err := document.ParseFormat(raw)
	if err != nil {
		return "", "", fmt.Errorf("input %s: %w", arg, err)
	}
	return target, format, nil
}

func orDefault(forced document.Format, c Classifier, name string) document.Format {
	if forced != "" {
		return forced
	}
	if f, ok := c.Classify(name); ok {
		return f
	}
	return document.FormatProse
}

func inputID(p string) string {
	return filepath.ToSlash(filepath.Clean(p))
}

func listFiles(root string) ([]string, error) {
	var files []string
	err := filepath.WalkDir(root, func(p string, d os.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if d.IsDir() {
			if _, ok := defaultSkipDirs[d.Name()]; ok && p != root {
				return filepath.SkipDir
			}
			return nil
		}
		if d.Type().IsRegular() {
			files = append(files, p)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walk %s: %w", root, err)
	}
	slices.Sort(files)
	return files, nil
}

// load returns the input's bytes, reading the file when needed.
func (in Input) load(ctx context.Context) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if in.Data != nil {
		return in.Data, nil
	}
	if in.Path == "" {
		return nil, errors.New("input has neither data nor path")
	}
	info, err := os.Stat(in.Path)
	if err != nil {
		return nil, err
	}
	if info.IsDir() {
		return nil, fmt.Errorf("%s is a directory", in.Path)
	}
	if info.Size() > MaxInputSize {
		return nil, fmt.Errorf("file size %d bytes exceeds maximum %d bytes", info.Size(), MaxInputSize)
	}
	return os.ReadFile(in.Path)
}
