package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/JakeFAU/showcase-refresher/internal/app"
)

// newRefreshCmd creates the 'refresh' subcommand, which runs a single pass
// over every discovered project.
func newRefreshCmd() *cobra.Command {
	var (
		dryRun bool
		only   []string
	)

	cmd := &cobra.Command{
		Use:   "refresh",
		Short: "Recapture stale showcase screenshots",
		Long: `Checks each project under projects.root against the timestamp ledger and
recaptures its homepage when the default branch has a newer commit.
Per-project failures are logged and do not fail the command.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			rt, err := resolveRuntime(cmd.Context())
			if err != nil {
				return err
			}

			a, err := newApp(cmd.Context(), rt.cfg, rt.logger, app.Options{DryRun: dryRun})
			if err != nil {
				return fmt.Errorf("failed to initialize application services: %w", err)
			}
			defer func() {
				if cerr := a.Close(cmd.Context()); cerr != nil {
					rt.logger.Warn("Failed to close application services", zap.Error(cerr))
				}
			}()

			summary, err := a.Refresh(cmd.Context(), only)
			if err != nil {
				return fmt.Errorf("run refresh: %w", err)
			}
			if summary.Errors > 0 {
				rt.logger.Warn("Some projects failed to refresh", zap.Int("errors", summary.Errors))
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "log decisions without capturing or writing the ledger")
	cmd.Flags().StringSliceVar(&only, "only", nil, "limit the run to these project names")
	return cmd
}
