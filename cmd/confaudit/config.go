// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/confaudit/confaudit/internal/config"
)

// newConfigCommand creates the `confaudit config` command tree.
func newConfigCommand(app *App) *cobra.Command {
	cfgCmd := &cobra.Command{
		Use:   "config",
		Short: "Inspect confaudit configuration",
		Long: `Inspect confaudit configuration.

Configuration is read from the first file found:
  - the --config flag
  - Linux: $XDG_CONFIG_HOME/confaudit/config.cue (default ~/.config)
  - macOS: ~/Library/Application Support/confaudit/config.cue
  - Windows: %APPDATA%\confaudit\config.cue
  - ./confaudit.cue

CONFAUDIT_* environment variables override file values
(for example CONFAUDIT_FAIL_ON=MEDIUM or CONFAUDIT_UI_VERBOSE=true).`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	cfgCmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Show the effective configuration as CUE",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			loaded, err := app.loadConfig(cmd.Context())
			if err != nil {
				return err
			}
			source := loaded.Path
			if source == "" {
				source = "defaults"
			}
			_, err = fmt.Fprintf(cmd.OutOrStdout(), "// source: %s\n%s", source, config.GenerateCUE(loaded.Config))
			return err
		},
	})

	return cfgCmd
}
