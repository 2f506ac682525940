// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/spf13/cobra"

	"github.com/confaudit/confaudit/internal/catalog"
)

func newRulesCommand(app *App) *cobra.Command {
	rulesCmd := &cobra.Command{
		Use:   "rules",
		Short: "Inspect the rule catalog",
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	var (
		catalogs         []string
		noDefaultCatalog bool
	)
	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List single-document and consistency rules",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			loaded, err := app.loadConfig(cmd.Context())
			if err != nil {
				return err
			}
			cfg := loaded.Config
			if cmd.Flags().Changed("catalog") {
				cfg.Catalogs = append(cfg.Catalogs, catalogs...)
			}
			if noDefaultCatalog {
				cfg.DefaultCatalog = false
			}
			set, err := loadCatalogSet(cfg)
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), renderRulesTable(set))
			return err
		},
	}
	listCmd.Flags().StringArrayVar(&catalogs, "catalog", nil, "extra catalog file; repeatable")
	listCmd.Flags().BoolVar(&noDefaultCatalog, "no-default-catalog", false, "do not load the built-in catalog")

	rulesCmd.AddCommand(listCmd)
	return rulesCmd
}

// renderRulesTable lists every rule in catalog order, consistency rules last.
func renderRulesTable(set *catalog.Set) string {
	t := newTable("ID", "SEVERITY", "FORMATS", "TITLE")
	for _, r := range set.Rules {
		formats := make([]string, 0, len(r.AppliesTo))
		for _, f := range r.AppliesTo {
			formats = append(formats, string(f))
		}
		if len(formats) == 0 {
			formats = append(formats, "any")
		}
		t.Row(r.ID, string(r.Severity), strings.Join(formats, ","), r.Title)
	}
	for _, r := range set.Consistency {
		t.Row(r.ID, string(r.Severity), "cross-document", r.Title)
	}
	return t.Render() + "\n" + SubtitleStyle.Render(fmt.Sprintf("%d rules, %d fact rules, %d consistency rules",
		len(set.Rules), len(set.Facts), len(set.Consistency)))
}

// newTable returns a bordered table with styled headers.
func newTable(headers ...string) *table.Table {
	return table.New().
		Border(lipgloss.NormalBorder()).
		BorderStyle(SubtitleStyle).
		StyleFunc(func(row, _ int) lipgloss.Style {
			if row == table.HeaderRow {
				return tableHeaderStyle
			}
			return tableCellStyle
		}).
		Headers(headers...)
}
