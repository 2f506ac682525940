// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/confaudit/confaudit/internal/kb"
)

func newKBCommand(app *App) *cobra.Command {
	kbCmd := &cobra.Command{
		Use:   "kb",
		Short: "Inspect the version knowledge base",
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	var location string
	showCmd := &cobra.Command{
		Use:   "show [COMPONENT]",
		Short: "Show supported version ranges",
		Long: `Show the minimum and recommended version of every component in the
knowledge base, or of one component.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			loaded, err := app.loadConfig(cmd.Context())
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("kb") {
				loaded.Config.KnowledgeBase = location
			}
			table, err := app.loadKnowledgeBase(cmd.Context(), loaded.Config.KnowledgeBase)
			if err != nil {
				return err
			}

			components := table.Components()
			if len(args) == 1 {
				r, ok := table.Current(args[0])
				if !ok {
					return fmt.Errorf("component %q is not in the knowledge base %s", args[0], table.Source())
				}
				components = []string{r.Component}
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), renderKBTable(table, components))
			return err
		},
	}
	showCmd.Flags().StringVar(&location, "kb", "", "knowledge base file or s3://bucket/key")

	kbCmd.AddCommand(showCmd)
	return kbCmd
}

func renderKBTable(table *kb.Table, components []string) string {
	t := newTable("COMPONENT", "MINIMUM", "RECOMMENDED", "NOTE")
	for _, c := range components {
		r, _ := table.Current(c)
		t.Row(r.Component, r.Minimum, r.Recommended, r.Note)
	}
	return t.Render() + "\n" + SubtitleStyle.Render("source: "+table.Source())
}
