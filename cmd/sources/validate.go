package sources

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jonesrussell/goleads/cmd/common"
	internalsources "github.com/jonesrussell/goleads/internal/sources"
)

// validateCommand returns the sources validate command.
func validateCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "validate",
		Short: "Validate the source registry and report problems",
		RunE: func(cmd *cobra.Command, args []string) error {
			debug, _ := cmd.Root().PersistentFlags().GetBool("debug")

			deps, err := common.NewDeps(debug)
			if err != nil {
				return err
			}

			loader := internalsources.NewLoader(deps.Config.Sources.File)
			srcs, problems, err := loader.Load()
			if err != nil {
				return fmt.Errorf("registry is unusable: %w", err)
			}

			for _, problem := range problems {
				fmt.Printf("invalid: %v\n", problem)
			}
			fmt.Printf("%d valid source(s), %d skipped\n", len(srcs), len(problems))

			return nil
		},
	}
}
