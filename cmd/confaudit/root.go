// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/charmbracelet/fang"
	"github.com/spf13/cobra"

	"github.com/confaudit/confaudit/internal/config"
	"github.com/confaudit/confaudit/internal/issue"
)

var (
	// Version is the semantic version (set via -ldflags).
	Version = "dev"
	// Commit is the git commit hash (set via -ldflags).
	Commit = "unknown"
	// BuildDate is the build timestamp (set via -ldflags).
	BuildDate = "unknown"
)

// NewRootCommand builds the command tree for app.
func NewRootCommand(app *App) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   config.AppName,
		Short: "Static audit of infrastructure and observability configuration",
		Long: TitleStyle.Render("confaudit") + SubtitleStyle.Render(" - static configuration audit") + `

confaudit reads Terraform, Prometheus, Loki, Tempo, OpenTelemetry and Grafana
configuration together with architecture documents, checks each file against a
rule catalog, and reports values that disagree across files.

` + SubtitleStyle.Render("Examples:") + `
  confaudit audit ./infra ./docs            Audit every recognized file
  confaudit audit notes.txt=prose --fail-on MEDIUM
  confaudit audit . --output json --out report.json
  confaudit rules list                      Show the rule catalog
  confaudit kb show loki                    Show supported Loki versions`,
		SilenceUsage: true,
	}

	rootCmd.PersistentFlags().BoolVarP(&app.verbose, "verbose", "v", false, "enable debug logging on stderr")
	rootCmd.PersistentFlags().StringVar(&app.configFile, "config", "", "config file (default is $XDG_CONFIG_HOME/confaudit/config.cue)")

	rootCmd.AddCommand(
		newAuditCommand(app),
		newRulesCommand(app),
		newKBCommand(app),
		newConfigCommand(app),
	)
	return rootCmd
}

// getVersionString returns a formatted version string for display.
func getVersionString() string {
	if Version == "dev" {
		return "dev (built from source)"
	}
	return fmt.Sprintf("%s (commit: %s, built: %s)", Version, Commit, BuildDate)
}

// Main runs the CLI against os.Args and returns the process exit code.
func Main() int {
	app, err := NewApp(Dependencies{})
	if err != nil {
		fmt.Fprintln(os.Stderr, ErrorStyle.Render("Error: ")+err.Error())
		return int(exitCodeFor(err))
	}

	// fang overrides rootCmd.Version, so the version goes through WithVersion.
	err = fang.Execute(
		context.Background(),
		NewRootCommand(app),
		fang.WithVersion(getVersionString()),
		fang.WithNotifySignal(os.Interrupt),
		fang.WithErrorHandler(app.handleError),
	)
	return int(exitCodeFor(err))
}

// Execute runs the CLI and exits. It is called by main.main().
func Execute() {
	os.Exit(Main())
}

// handleError prints command errors. Silent ExitErrors print nothing;
// actionable errors tied to an issue also print its rendered guidance.
func (a *App) handleError(w io.Writer, _ fang.Styles, err error) {
	var exitErr *ExitError
	if errors.As(err, &exitErr) && exitErr.Err == nil {
		return
	}
	fmt.Fprintln(w, ErrorStyle.Render("Error: ")+formatErrorForDisplay(err, a.verbose))

	var ae *issue.ActionableError
	if !errors.As(err, &ae) || ae.Issue == 0 {
		return
	}
	if guidance := issue.Get(ae.Issue); guidance != nil {
		if rendered, rerr := guidance.Render("auto"); rerr == nil {
			fmt.Fprint(w, rendered)
		}
	}
}

// formatErrorForDisplay formats an error for user display.
// If the error is an ActionableError, it uses the Format method.
// In verbose mode, shows the full error chain.
func formatErrorForDisplay(err error, verboseMode bool) string {
	var ae *issue.ActionableError
	if errors.As(err, &ae) {
		return ae.Format(verboseMode)
	}
	return err.Error()
}
