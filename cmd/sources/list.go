package sources

import (
	"os"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/jonesrussell/goleads/cmd/common"
	"github.com/jonesrussell/goleads/internal/domain"
)

// listCommand returns the sources list command.
func listCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List all configured sources",
		RunE: func(cmd *cobra.Command, args []string) error {
			debug, _ := cmd.Root().PersistentFlags().GetBool("debug")

			deps, err := common.NewDeps(debug)
			if err != nil {
				return err
			}

			srcs, err := deps.LoadSources()
			if err != nil {
				return err
			}

			renderTable(srcs)
			return nil
		},
	}
}

// renderTable formats and displays the sources in a table.
func renderTable(srcs []domain.Source) {
	t := table.NewWriter()
	t.SetOutputMirror(os.Stdout)
	t.SetStyle(table.StyleLight)

	t.AppendHeader(table.Row{"Name", "URL", "Item Selector", "Max Items", "Scroll", "Login"})

	for _, src := range srcs {
		t.AppendRow(table.Row{
			src.Name,
			src.URL,
			src.ItemSelector,
			src.MaxItems,
			src.Scroll,
			src.RequiresLogin,
		})
	}

	t.Render()
}
