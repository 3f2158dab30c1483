// Package cli is the operator command line: schema migrations, report
// exports, withdrawal sweeps and API token minting.
package cli

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/MrJamesThe3rd/treevu/internal/app"
	"github.com/MrJamesThe3rd/treevu/internal/config"
	"github.com/MrJamesThe3rd/treevu/internal/logging"
)

var rootCmd = &cobra.Command{
	Use:          "treevuctl",
	Short:        "Operate a Treevu deployment",
	SilenceUsage: true,
}

func Execute() error {
	_ = godotenv.Load()

	return rootCmd.Execute()
}

// env loads the configuration and a logger writing to the command's error
// stream.
func env(cmd *cobra.Command) (*config.Config, *slog.Logger, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, err
	}

	return cfg, logging.New(cmd.ErrOrStderr(), cfg.Log.Level, cfg.Log.Format), nil
}

// withApp opens the store, builds the engine and runs fn against it.
func withApp(cmd *cobra.Command, fn func(ctx context.Context, a *app.App) error) error {
	cfg, logger, err := env(cmd)
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	repo, closeRepo, err := app.OpenRepository(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("opening store: %w", err)
	}
	defer closeRepo()

	a, err := app.New(ctx, cfg, logger, repo)
	if err != nil {
		return err
	}

	return fn(ctx, a)
}
