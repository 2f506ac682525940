// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/confaudit/confaudit/internal/audit"
	"github.com/confaudit/confaudit/internal/catalog"
	"github.com/confaudit/confaudit/internal/config"
	"github.com/confaudit/confaudit/internal/document"
	"github.com/confaudit/confaudit/internal/finding"
	"github.com/confaudit/confaudit/internal/issue"
	"github.com/confaudit/confaudit/internal/kb"
	"github.com/confaudit/confaudit/internal/report"
	"github.com/confaudit/confaudit/internal/watch"
	"github.com/confaudit/confaudit/pkg/types"
)

// auditFlags holds the audit command flags. Flags that were not set on the
// command line leave the configuration value in place.
type auditFlags struct {
	catalogs         []string
	noDefaultCatalog bool
	kb               string
	output           string
	out              string
	failOn           string
	timeout          time.Duration
	workers          int
	strictParse      bool
	watch            bool
}

func newAuditCommand(app *App) *cobra.Command {
	var flags auditFlags

	cmd := &cobra.Command{
		Use:   "audit [PATH[=FORMAT]...]",
		Short: "Audit configuration files and architecture documents",
		Long: `Audit configuration files and architecture documents.

Each argument is a file or a directory. Directories are walked recursively,
skipping VCS and vendor directories; files are classified by name. Append
=FORMAT to force a format: iac, timeseries, log, tracing, dashboard or prose.

The exit code is 0 when no finding is at or above --fail-on, 1 otherwise,
and 2 when the audit could not run. With --watch the audit runs again after
every change to an input; the exit code is that of the last run.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAudit(cmd, app, &flags, args)
		},
	}

	flags.register(cmd.Flags())
	return cmd
}

// register binds the audit flags to f.
func (flags *auditFlags) register(f *pflag.FlagSet) {
	f.StringArrayVar(&flags.catalogs, "catalog", nil, "extra catalog file (CUE, YAML or JSON); repeatable")
	f.BoolVar(&flags.noDefaultCatalog, "no-default-catalog", false, "do not load the built-in catalog")
	f.StringVar(&flags.kb, "kb", "", "knowledge base file or s3://bucket/key")
	f.StringVarP(&flags.output, "output", "o", "", "report format: human, json or markdown")
	f.StringVar(&flags.out, "out", "", "write the report to a file instead of stdout")
	f.StringVar(&flags.failOn, "fail-on", "", "lowest severity that fails the run: CRITICAL, HIGH, MEDIUM or LOW")
	f.DurationVar(&flags.timeout, "timeout", 0, "stop the audit after this long and report what finished")
	f.IntVar(&flags.workers, "workers", 0, "documents processed in parallel (0 = GOMAXPROCS)")
	f.BoolVar(&flags.strictParse, "strict-parse", false, "do not audit the recovered part of a document that failed to parse")
	f.BoolVar(&flags.watch, "watch", false, "audit again whenever an input changes; stop with Ctrl+C")
}

// apply overlays the flags that were set explicitly onto cfg.
func (flags *auditFlags) apply(fs *pflag.FlagSet, cfg *config.Config) error {
	if fs.Changed("catalog") {
		cfg.Catalogs = append(cfg.Catalogs, flags.catalogs...)
	}
	if fs.Changed("no-default-catalog") {
		cfg.DefaultCatalog = !flags.noDefaultCatalog
	}
	if fs.Changed("kb") {
		cfg.KnowledgeBase = flags.kb
	}
	if fs.Changed("output") {
		cfg.Output = config.OutputFormat(flags.output)
		if valid, errs := cfg.Output.IsValid(); !valid {
			return errs[0]
		}
	}
	if fs.Changed("fail-on") {
		severity, err := finding.ParseSeverity(flags.failOn)
		if err != nil {
			return err
		}
		cfg.FailOn = severity
	}
	if fs.Changed("timeout") {
		if flags.timeout < 0 {
			return fmt.Errorf("%w: %s", config.ErrInvalidTimeout, flags.timeout)
		}
		cfg.Timeout = flags.timeout
	}
	if fs.Changed("workers") {
		if flags.workers < 0 {
			return fmt.Errorf("%w: %d", config.ErrInvalidWorkers, flags.workers)
		}
		cfg.Workers = flags.workers
	}
	if fs.Changed("strict-parse") {
		cfg.BestEffort = !flags.strictParse
	}
	return nil
}

func runAudit(cmd *cobra.Command, app *App, flags *auditFlags, args []string) error {
	ctx := cmd.Context()

	loaded, err := app.loadConfig(ctx)
	if err != nil {
		return err
	}
	cfg := loaded.Config
	if err := flags.apply(cmd.Flags(), cfg); err != nil {
		return err
	}
	logger := app.newLogger(cmd.ErrOrStderr(), cfg)
	if loaded.Path != "" {
		logger.Debug("configuration loaded", "path", loaded.Path)
	}

	if len(args) == 0 {
		return issue.NewErrorContext().
			WithOperation("audit").
			WithSuggestion("Pass files or directories, e.g. 'confaudit audit ./infra ./docs'").
			WithIssue(issue.NoInputsId).
			Wrap(audit.ErrNoInputs).
			BuildError()
	}

	set, err := loadCatalogSet(cfg)
	if err != nil {
		return err
	}
	table, err := app.loadKnowledgeBase(ctx, cfg.KnowledgeBase)
	if err != nil {
		return err
	}

	a := &auditor{
		cfg:    cfg,
		set:    set,
		kb:     table,
		logger: logger,
		stdout: cmd.OutOrStdout(),
		out:    flags.out,
	}
	code, err := a.run(ctx, args)
	if err != nil {
		return err
	}
	if flags.watch {
		if code, err = a.watch(ctx, cmd.ErrOrStderr(), args, code); err != nil {
			return err
		}
	}
	if !code.IsSuccess() {
		return &ExitError{Code: code}
	}
	return nil
}

// auditor runs one audit over a fixed configuration, catalog and knowledge
// base. Watch mode calls run again for every batch of changes.
type auditor struct {
	cfg    *config.Config
	set    *catalog.Set
	kb     *kb.Table
	logger *log.Logger
	stdout io.Writer
	out    string
}

func (a *auditor) run(ctx context.Context, args []string) (types.ExitCode, error) {
	inputs, skipped, err := audit.Collect(args, classifierFor(a.cfg))
	if err != nil {
		ec := issue.NewErrorContext().WithOperation("collect inputs").Wrap(err)
		if errors.Is(err, audit.ErrUnclassified) {
			ec.WithSuggestion("Append =FORMAT to the argument, e.g. 'values.yaml=log'").
				WithIssue(issue.InputUnclassifiedId)
		}
		return types.ExitFatal, ec.BuildError()
	}
	for _, s := range skipped {
		a.logger.Debug("skipped unrecognized file", "path", s)
	}
	if len(inputs) == 0 {
		return types.ExitFatal, issue.NewErrorContext().
			WithOperation("audit").
			WithSuggestion("No file under the given paths matched a classify rule; add one in the configuration").
			WithIssue(issue.NoInputsId).
			Wrap(audit.ErrNoInputs).
			BuildError()
	}

	if a.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, a.cfg.Timeout)
		defer cancel()
	}

	rep, err := audit.Run(ctx, audit.Options{
		Inputs:     inputs,
		Catalog:    a.set,
		KB:         a.kb,
		Workers:    a.cfg.Workers,
		BestEffort: a.cfg.BestEffort,
		Logger:     a.logger,
	})
	if err != nil {
		var nde *audit.NoDocumentsError
		if errors.As(err, &nde) {
			return types.ExitFatal, issue.NewErrorContext().
				WithOperation("audit").
				WithSuggestion("Check that the paths exist and are readable").
				WithIssue(issue.NoDocumentsId).
				Wrap(err).
				BuildError()
		}
		return types.ExitFatal, err
	}
	if rep.Summary.Incomplete {
		a.logger.Warn("audit incomplete", "unfinished", len(rep.Summary.UnfinishedDocuments))
	}

	if err := writeReport(a.stdout, a.out, rep, a.cfg); err != nil {
		return types.ExitFatal, err
	}
	return rep.ExitCode(a.cfg.FailOn), nil
}

// watch audits again whenever an input changes, until ctx ends. It returns
// the exit code of the last completed run.
func (a *auditor) watch(ctx context.Context, stderr io.Writer, args []string, last types.ExitCode) (types.ExitCode, error) {
	var mu sync.Mutex
	w, err := watch.New(watch.Config{
		Roots:  audit.Targets(args),
		Match:  func(p string) bool { return document.InferSyntax(p) != "" },
		Logger: a.logger,
		OnChange: func(ctx context.Context, changed []string) error {
			fmt.Fprintln(stderr, SubtitleStyle.Render(fmt.Sprintf("%d file(s) changed, auditing again", len(changed))))
			code, err := a.run(ctx, args)
			if err != nil {
				return err
			}
			mu.Lock()
			last = code
			mu.Unlock()
			return nil
		},
	})
	if err != nil {
		return last, err
	}

	fmt.Fprintln(stderr, SubtitleStyle.Render("Watching for changes; press ")+CmdStyle.Render("Ctrl+C")+SubtitleStyle.Render(" to stop"))
	if err := w.Run(ctx); err != nil {
		return last, err
	}
	mu.Lock()
	defer mu.Unlock()
	return last, nil
}

// writeReport renders rep to path, or to stdout when path is empty.
func writeReport(stdout io.Writer, path string, rep *report.Report, cfg *config.Config) (err error) {
	w := stdout
	if path != "" {
		f, ferr := os.Create(path)
		if ferr != nil {
			return reportWriteError(path, ferr)
		}
		defer func() {
			if cerr := f.Close(); cerr != nil && err == nil {
				err = reportWriteError(path, cerr)
			}
		}()
		w = f
	}

	switch cfg.Output {
	case config.OutputJSON:
		err = report.WriteJSON(w, rep)
	case config.OutputMarkdown:
		err = report.WriteMarkdown(w, rep)
	default:
		err = renderHuman(w, rep, cfg.FailOn, glamourStyle(cfg.UI.ColorScheme, path != ""))
	}
	if err != nil {
		return reportWriteError(path, err)
	}
	return nil
}

func reportWriteError(path string, err error) error {
	resource := path
	if resource == "" {
		resource = "stdout"
	}
	return issue.NewErrorContext().
		WithOperation("write report").
		WithResource(resource).
		WithIssue(issue.ReportWriteFailedId).
		Wrap(err).
		BuildError()
}
