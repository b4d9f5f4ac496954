// Package cmd defines and implements the CLI commands for the edgarbot
// executable.
package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/finbots-io/edgarbot/internal/app"
	"github.com/finbots-io/edgarbot/internal/config"
	"github.com/finbots-io/edgarbot/internal/logging"
)

var cfgFile string

// appKeyType is the key for storing the App in the context.
type appKeyType string

const appKey appKeyType = "app"

// newRootCmd creates and configures the root command. Configuration is
// loaded and validated, and the service container built, before any
// subcommand runs; a missing required key stops the process here, ahead of
// any browser or network activity.
func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "edgarbot",
		Short: "A browser robot that retrieves financial reports from SEC EDGAR.",
		Long: `edgarbot drives a headless browser through SEC EDGAR's company-search
flow for every ticker on a worklist, downloads each filing's interactive-data
Excel workbook, files the workbooks per ticker, and ships the collected data
and the run's logs to an object store as zip bundles.`,
		SilenceUsage: true,

		// Runs after flag parsing but before the subcommand's RunE: load and
		// validate config, build the logger, and wire the service container.
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(cfgFile)
			if err != nil {
				return err
			}
			logger, err := logging.New(cfg.Logging.Development)
			if err != nil {
				return fmt.Errorf("build logger: %w", err)
			}
			zap.ReplaceGlobals(logger)

			appInstance, err := app.Build(cmd.Context(), cfg, logger)
			if err != nil {
				return fmt.Errorf("initialize application services: %w", err)
			}
			cmd.SetContext(context.WithValue(cmd.Context(), appKey, appInstance))
			return nil
		},

		// Shuts the services down gracefully once the subcommand returns.
		PersistentPostRun: func(cmd *cobra.Command, _ []string) {
			if appInstance, ok := cmd.Context().Value(appKey).(*app.App); ok && appInstance != nil {
				appInstance.Close(context.Background())
				_ = appInstance.GetLogger().Sync()
			}
		},
	}

	cmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (YAML); EDGARBOT_* environment variables override")

	cmd.AddCommand(newRunCmd())

	return cmd
}

// resolveApp retrieves the service container placed in the context by the
// root command's PersistentPreRunE.
func resolveApp(ctx context.Context) (*app.App, error) {
	appInstance, ok := ctx.Value(appKey).(*app.App)
	if !ok || appInstance == nil {
		return nil, errors.New("application services not initialized")
	}
	return appInstance, nil
}

// Execute is the main entry point. A SIGINT or SIGTERM cancels the run's
// context so the robot unwinds cleanly; any error exits non-zero.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		zap.L().Error("command execution failed", zap.Error(err))
		_ = zap.L().Sync()
		os.Exit(1)
	}
}
