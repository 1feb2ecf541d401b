// Package cmd defines and implements the CLI commands for the showcase executable.
package cmd

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/JakeFAU/showcase-refresher/internal/app"
	"github.com/JakeFAU/showcase-refresher/internal/config"
	"github.com/JakeFAU/showcase-refresher/internal/logging"
	"github.com/JakeFAU/showcase-refresher/internal/refresher"
)

// runtimeKeyType is the key for storing the loaded runtime in the context.
type runtimeKeyType string

const runtimeKey runtimeKeyType = "runtime"

// runtime carries what the root command loads for its subcommands.
type runtime struct {
	cfg    config.Config
	logger *zap.Logger
}

// App defines the application interface that commands will use.
// This allows us to inject a fake app during tests.
type App interface {
	Refresh(ctx context.Context, only []string) (refresher.Summary, error)
	Close(ctx context.Context) error
}

// newApp is the application factory. It's a variable so tests can replace it.
var newApp = func(ctx context.Context, cfg config.Config, logger *zap.Logger, opts app.Options) (App, error) {
	return app.New(ctx, cfg, logger, opts)
}

// newRootCmd creates and configures the root command.
func newRootCmd() *cobra.Command {
	var cfgFile string

	cmd := &cobra.Command{
		Use:   "showcase",
		Short: "Keeps project showcase screenshots in step with their repositories.",
		Long: `showcase walks a directory of projects, asks GitHub when each project's
default branch last changed, and recaptures the project's homepage into
assets/Showcase.webp or assets/Showcase.png when the image is stale.`,
		SilenceUsage:  true,
		SilenceErrors: true,

		// Config and logger are loaded once here and handed to subcommands.
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(cfgFile)
			if err != nil {
				return err
			}
			logger, err := logging.New(cfg.Logging)
			if err != nil {
				return fmt.Errorf("init logger: %w", err)
			}
			cmd.SetContext(context.WithValue(cmd.Context(), runtimeKey, &runtime{cfg: cfg, logger: logger}))
			return nil
		},
	}

	cmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (env SHOWCASE_* and GITHUB_TOKEN also apply)")
	cmd.AddCommand(newRefreshCmd())
	return cmd
}

func resolveRuntime(ctx context.Context) (*runtime, error) {
	if ctx == nil {
		return nil, fmt.Errorf("configuration not loaded")
	}
	rt, ok := ctx.Value(runtimeKey).(*runtime)
	if !ok || rt == nil {
		return nil, fmt.Errorf("configuration not loaded")
	}
	return rt, nil
}

// Execute is the main entry point. It returns the process exit code.
func Execute() int {
	return run(context.Background(), os.Args[1:], os.Stderr)
}

func run(ctx context.Context, args []string, stderr io.Writer) int {
	root := newRootCmd()
	root.SetArgs(args)
	root.SetErr(stderr)

	executed, err := root.ExecuteContextC(ctx)
	if err != nil {
		if executed == nil {
			executed = root
		}
		if rt, rerr := resolveRuntime(executed.Context()); rerr == nil {
			rt.logger.Error("Command execution failed", zap.Error(err))
			_ = rt.logger.Sync()
		}
		_, _ = fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}
	return 0
}
