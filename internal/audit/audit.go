// SPDX-License-Identifier: MPL-2.0

package audit

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/sourcegraph/conc/pool"

	"github.com/confaudit/confaudit/internal/consistency"
	"github.com/confaudit/confaudit/internal/document"
	"github.com/confaudit/confaudit/internal/facts"
	"github.com/confaudit/confaudit/internal/finding"
	"github.com/confaudit/confaudit/internal/report"
	"github.com/confaudit/confaudit/internal/rules"
)

var (
	// ErrNoInputs is returned when a run is started without inputs.
	ErrNoInputs = errors.New("no inputs to audit")
	// ErrNoDocuments is the sentinel error wrapped by NoDocumentsError.
	ErrNoDocuments = errors.New("no document could be loaded")
)

type (
	// NoDocumentsError reports a run in which every input failed to load.
	NoDocumentsError struct {
		Failures []error
	}

	// pipeline holds the read-only state shared by all document workers.
	pipeline struct {
		engine     *rules.Engine
		extractor  *facts.Extractor
		bestEffort bool
		opts       Options
	}

	// docResult is what one document worker sends to the collector.
	docResult struct {
		id       string
		loaded   bool
		finished bool
		loadErr  error
		findings []finding.Finding
		facts    []document.Fact
	}
)

// Error implements the error interface.
func (e *NoDocumentsError) Error() string {
	msgs := make([]string, 0, len(e.Failures))
	for _, f := range e.Failures {
		msgs = append(msgs, f.Error())
	}
	return fmt.Sprintf("%s: %s", ErrNoDocuments, strings.Join(msgs, "; "))
}

// Unwrap returns ErrNoDocuments for errors.Is() compatibility.
func (e *NoDocumentsError) Unwrap() error { return ErrNoDocuments }

// Run audits opts.Inputs and returns the aggregated report.
//
// Documents are processed concurrently and independently. Consistency rules
// run once every document has finished or failed. If ctx is cancelled the
// run stops scheduling work, checks consistency over the facts of the
// documents that did finish, and returns a report marked incomplete.
func Run(ctx context.Context, opts Options) (*report.Report, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	opts.normalize()
	logger := opts.Logger

	engine, err := rules.NewEngine(opts.Catalog.Rules, rules.WithKnowledgeBase(opts.KB), rules.WithLogger(logger))
	if err != nil {
		return nil, err
	}
	extractor, err := facts.NewExtractor(opts.Catalog.Facts)
	if err != nil {
		return nil, err
	}
	checker, err := consistency.NewChecker(opts.Catalog.Consistency,
		consistency.WithWorkers(opts.Workers), consistency.WithLogger(logger))
	if err != nil {
		return nil, err
	}
	p := &pipeline{engine: engine, extractor: extractor, bestEffort: opts.BestEffort, opts: opts}

	results := make(chan docResult)
	go func() {
		workers := pool.New().WithMaxGoroutines(opts.Workers)
		for _, in := range opts.Inputs {
			workers.Go(func() {
				results <- p.process(ctx, in)
			})
		}
		workers.Wait()
		close(results)
	}()

	var (
		found      []finding.Finding
		allFacts   []document.Fact
		ids        []string
		unfinished []string
		failures   []error
		loaded     int
	)
	for r := range results {
		ids = append(ids, r.id)
		if !r.finished {
			unfinished = append(unfinished, r.id)
			continue
		}
		if r.loaded {
			loaded++
		} else if r.loadErr != nil {
			failures = append(failures, fmt.Errorf("%s: %w", r.id, r.loadErr))
		}
		found = append(found, r.findings...)
		allFacts = append(allFacts, r.facts...)
	}

	if loaded == 0 && len(unfinished) == 0 {
		slices.SortFunc(failures, func(a, b error) int { return strings.Compare(a.Error(), b.Error()) })
		return nil, &NoDocumentsError{Failures: failures}
	}

	checkCtx := ctx
	if ctx.Err() != nil {
		checkCtx = context.WithoutCancel(ctx)
	}
	slices.SortStableFunc(allFacts, compareFacts)
	consistent, err := checker.Check(checkCtx, allFacts)
	if err != nil {
		return nil, err
	}
	found = append(found, consistent...)
	logger.Debug("consistency checked", "facts", len(allFacts), "findings", len(consistent))

	aggOpts := []report.Option{report.WithDocuments(ids), report.WithUnfinished(unfinished)}
	if ctx.Err() != nil {
		aggOpts = append(aggOpts, report.WithIncomplete())
	}
	return report.Aggregate(found, aggOpts...), nil
}

// process runs the single-document pipeline: read, parse, extract facts,
// evaluate rules. A result is unfinished only when ctx ends first.
func (p *pipeline) process(ctx context.Context, in Input) docResult {
	res := docResult{id: in.ID}
	logger := p.opts.Logger.With("document", in.ID)

	data, err := in.load(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return res
		}
		logger.Debug("document unreadable", "err", err)
		res.finished = true
		res.loadErr = err
		res.findings = append(res.findings, finding.Unreadable(in.ID, err))
		return res
	}
	res.loaded = true

	doc, err := document.Parse(in.ID, data, in.Format, in.Syntax)
	if err != nil {
		var pe *document.ParseError
		if !errors.As(err, &pe) {
			pe = &document.ParseError{DocumentID: in.ID, Reason: err.Error(), Cause: err}
		}
		logger.Debug("document unparsable", "line", pe.Line, "reason", pe.Reason)
		res.findings = append(res.findings, finding.Unparsable(pe.Location(), pe.Reason))
		if !p.bestEffort || pe.Partial == nil {
			res.finished = true
			return res
		}
		doc = pe.Partial
	}

	extracted, err := p.extractor.Extract(ctx, doc)
	if err != nil {
		if ctx.Err() != nil {
			return docResult{id: in.ID}
		}
		var ee *facts.ExtractionError
		if !errors.As(err, &ee) {
			ee = &facts.ExtractionError{DocumentID: in.ID, Location: doc.Root.Location, Cause: err}
		}
		logger.Debug("fact extraction failed", "key", ee.Key, "raw", ee.Raw, "err", ee.Cause)
		res.findings = append(res.findings, finding.ExtractionFailed(ee.Location, ee.Key, ee.Raw, ee.Cause))
		extracted = nil
	}
	res.facts = extracted
	doc = doc.WithFacts(extracted)

	evaluated, err := p.engine.Evaluate(ctx, doc)
	if err != nil {
		return docResult{id: in.ID}
	}
	res.findings = append(res.findings, evaluated...)
	res.finished = true
	logger.Debug("document audited", "facts", len(extracted), "findings", len(res.findings))
	return res
}

func compareFacts(a, b document.Fact) int {
	if c := strings.Compare(a.Key, b.Key); c != 0 {
		return c
	}
	if c := a.Source.Compare(b.Source); c != 0 {
		return c
	}
	if c := strings.Compare(a.Path, b.Path); c != 0 {
		return c
	}
	return strings.Compare(a.Value.Canonical, b.Value.Canonical)
}
