// Package leads implements the command-line interface for inspecting stored
// leads.
package leads

import (
	"os"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/jonesrussell/goleads/cmd/common"
	"github.com/jonesrussell/goleads/internal/domain"
	"github.com/jonesrussell/goleads/internal/pipeline"
	"github.com/jonesrussell/goleads/internal/store"
)

const (
	defaultListLimit = 20
	excerptLen       = 60
)

// Command returns the leads command with its subcommands.
func Command() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "leads",
		Short: "Inspect stored leads",
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	cmd.AddCommand(listCommand())

	return cmd
}

// listCommand returns the leads list command.
func listCommand() *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List recent leads, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			debug, _ := cmd.Root().PersistentFlags().GetBool("debug")

			deps, err := common.NewDeps(debug)
			if err != nil {
				return err
			}

			db, err := deps.OpenStore()
			if err != nil {
				return err
			}
			defer db.Close()

			recent, err := store.NewLeadRepository(db).Recent(cmd.Context(), limit)
			if err != nil {
				return err
			}

			renderTable(recent)
			return nil
		},
	}
	cmd.Flags().IntVar(&limit, "limit", defaultListLimit, "maximum number of leads to show")

	return cmd
}

// renderTable formats and displays the leads in a table.
func renderTable(recent []domain.Lead) {
	t := table.NewWriter()
	t.SetOutputMirror(os.Stdout)
	t.SetStyle(table.StyleLight)

	t.AppendHeader(table.Row{"Created", "Source", "Excerpt", "Phones", "Emails", "Notified"})

	for _, lead := range recent {
		t.AppendRow(table.Row{
			lead.CreatedAt.Format("2006-01-02 15:04"),
			lead.Source,
			pipeline.Excerpt(lead.Text, excerptLen),
			strings.Join(lead.Phones, " "),
			strings.Join(lead.Emails, " "),
			lead.Notified,
		})
	}

	t.Render()
}
