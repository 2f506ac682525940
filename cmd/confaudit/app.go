// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"context"
	"errors"
	"io"

	"github.com/charmbracelet/log"

	"github.com/confaudit/confaudit/internal/audit"
	"github.com/confaudit/confaudit/internal/catalog"
	"github.com/confaudit/confaudit/internal/config"
	"github.com/confaudit/confaudit/internal/issue"
	"github.com/confaudit/confaudit/internal/kb"
)

type (
	// KBLoader resolves a knowledge-base location ("" for the built-in table).
	KBLoader func(ctx context.Context, location string) (*kb.Table, error)

	// App wires CLI services and shared dependencies. Cobra handlers receive
	// an App and reach configuration and the knowledge base through it.
	App struct {
		Config config.Provider
		KB     KBLoader

		// Persistent flag values.
		configFile string
		verbose    bool
	}

	// Dependencies defines the injection points for building an App. Nil
	// fields are replaced with production defaults by NewApp.
	Dependencies struct {
		Config config.Provider
		KB     KBLoader
	}
)

// NewApp builds an App from deps.
func NewApp(deps Dependencies) (*App, error) {
	app := &App{Config: deps.Config, KB: deps.KB}
	if app.Config == nil {
		app.Config = config.NewProvider()
	}
	if app.KB == nil {
		app.KB = kb.Load
	}
	return app, nil
}

// loadConfig loads the effective configuration honoring --config.
func (a *App) loadConfig(ctx context.Context) (*config.Loaded, error) {
	return a.Config.Load(ctx, config.LoadOptions{ConfigFilePath: a.configFile})
}

// isVerbose reports whether --verbose or ui.verbose is set.
func (a *App) isVerbose(cfg *config.Config) bool {
	return a.verbose || (cfg != nil && cfg.UI.Verbose)
}

// newLogger returns the diagnostics logger for a command. Verbose runs log
// at debug level; otherwise only recovered failures are shown.
func (a *App) newLogger(w io.Writer, cfg *config.Config) *log.Logger {
	logger := log.NewWithOptions(w, log.Options{Prefix: config.AppName})
	if a.isVerbose(cfg) {
		logger.SetLevel(log.DebugLevel)
	} else {
		logger.SetLevel(log.WarnLevel)
	}
	return logger
}

// loadCatalogSet loads and compiles the configured catalogs.
func loadCatalogSet(cfg *config.Config) (*catalog.Set, error) {
	c, err := catalog.LoadAll(cfg.DefaultCatalog, cfg.Catalogs)
	if err == nil {
		var set *catalog.Set
		if set, err = c.Build(); err == nil {
			return set, nil
		}
	}
	resource := "built-in catalog"
	var ice *catalog.InvalidCatalogError
	if errors.As(err, &ice) {
		resource = ice.Source
	}
	return nil, issue.NewErrorContext().
		WithOperation("load rule catalog").
		WithResource(resource).
		WithSuggestion("Run 'confaudit rules list --no-default-catalog --catalog FILE' to check one catalog at a time").
		WithIssue(issue.CatalogInvalidId).
		Wrap(err).
		BuildError()
}

// loadKnowledgeBase resolves the configured knowledge base.
func (a *App) loadKnowledgeBase(ctx context.Context, location string) (*kb.Table, error) {
	table, err := a.KB(ctx, location)
	if err != nil {
		resource := location
		if resource == "" {
			resource = "built-in knowledge base"
		}
		return nil, issue.NewErrorContext().
			WithOperation("load knowledge base").
			WithResource(resource).
			WithSuggestion("Drop --kb to use the built-in knowledge base").
			WithIssue(issue.KnowledgeBaseUnavailableId).
			Wrap(err).
			BuildError()
	}
	return table, nil
}

// classifierFor puts the configured classify rules ahead of the built-in ones.
func classifierFor(cfg *config.Config) audit.Classifier {
	c := make(audit.Classifier, 0, len(cfg.Classify))
	for _, e := range cfg.Classify {
		c = append(c, audit.ClassifyRule{Pattern: e.Pattern, Format: e.Format})
	}
	return append(c, audit.DefaultClassifier()...)
}
