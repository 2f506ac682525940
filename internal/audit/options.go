// SPDX-License-Identifier: MPL-2.0

package audit

import (
	"errors"
	"fmt"
	"io"
	"runtime"

	"github.com/charmbracelet/log"

	"github.com/confaudit/confaudit/internal/catalog"
	"github.com/confaudit/confaudit/internal/kb"
)

// Options configures a run.
type Options struct {
	// Inputs are the documents to audit. IDs must be unique.
	Inputs []Input
	// Catalog holds the compiled rules, fact rules and consistency rules.
	Catalog *catalog.Set
	// KB answers version lookups. Nil means every component is unknown.
	KB kb.KnowledgeBase
	// Workers bounds document parallelism; zero means GOMAXPROCS.
	Workers int
	// BestEffort continues analysis on the partial tree of a document that
	// failed to parse.
	BestEffort bool
	// Logger receives diagnostics. Nil discards them.
	Logger *log.Logger
}

func (o *Options) normalize() {
	if o.Workers <= 0 {
		o.Workers = runtime.GOMAXPROCS(0)
	}
	if o.Logger == nil {
		o.Logger = log.New(io.Discard)
	}
	if o.Catalog == nil {
		o.Catalog = &catalog.Set{}
	}
}

// Validate checks the options before a run.
func (o Options) Validate() error {
	if len(o.Inputs) == 0 {
		return ErrNoInputs
	}
	seen := make(map[string]struct{}, len(o.Inputs))
	var errs []error
	for _, in := range o.Inputs {
		if in.ID == "" {
			errs = append(errs, errors.New("input with empty id"))
			continue
		}
		if _, dup := seen[in.ID]; dup {
			errs = append(errs, fmt.Errorf("duplicate input id %q", in.ID))
		}
		seen[in.ID] = struct{}{}
		if ok, formatErrs := in.Format.IsValid(); !ok {
			errs = append(errs, fmt.Errorf("input %s: %w", in.ID, formatErrs[0]))
		}
	}
	return errors.Join(errs...)
}
