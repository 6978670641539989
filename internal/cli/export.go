package cli

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/mesh-intelligence/timelink/pkg/types"
)

func newExportCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "export <file>",
		Short: "Write every class and entity to a JSONL feed",
		Long: "Export writes the class declarations followed by every stored group,\n" +
			"parents before children, in the format accepted by import.",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withStore(cmd, func(ctx context.Context, s types.Store) error {
				n, err := s.Export(ctx, args[0])
				if err != nil {
					return err
				}
				status(cmd.OutOrStdout(), true, "exported %d groups to %s", n, args[0])
				return nil
			})
		},
	}
}
