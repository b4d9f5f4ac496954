package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/finbots-io/edgarbot/internal/api"
	"github.com/finbots-io/edgarbot/internal/app"
	"github.com/finbots-io/edgarbot/internal/browser/headless"
	"github.com/finbots-io/edgarbot/internal/clock/system"
	"github.com/finbots-io/edgarbot/internal/config"
	"github.com/finbots-io/edgarbot/internal/hash/sha256"
	uuidgen "github.com/finbots-io/edgarbot/internal/id/uuid"
	"github.com/finbots-io/edgarbot/internal/progress"
	"github.com/finbots-io/edgarbot/internal/robot"
	"github.com/finbots-io/edgarbot/internal/runlog"
	"github.com/finbots-io/edgarbot/internal/worklist"
)

// newRunCmd creates and configures the 'run' subcommand, which executes one
// full robot batch: worklist through finalize.
func newRunCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Fetches every worklist ticker's report and ships the results",
		Long: `Reads the configured worklist, drives one headless browser session
through SEC EDGAR for each ticker in order, files the downloaded workbooks,
and finalizes the run: logs and data are zipped, uploaded to the object
store, and the local run state is removed.`,

		RunE: runRobotCommand,
	}
	return cmd
}

func runRobotCommand(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	appInstance, err := resolveApp(ctx)
	if err != nil {
		return err
	}
	cfg := appInstance.GetConfig()
	logger := appInstance.GetLogger()

	policy, err := robot.ParseFailurePolicy(cfg.Run.FailurePolicy)
	if err != nil {
		return err
	}

	ids := uuidgen.New()
	rc, err := robot.PrepareRun(
		ids,
		cfg.Run.WorkDir,
		filepath.Join(cfg.Run.WorkDir, cfg.Run.DownloadsDir),
		filepath.Join(cfg.Run.WorkDir, cfg.Run.LogsDir),
		cfg.Browser.LogFile,
	)
	if err != nil {
		return err
	}
	logger.Info("run prepared",
		zap.String("run_id", rc.RunID),
		zap.String("downloads", rc.DownloadsDir),
		zap.String("logs", rc.LogsDir),
	)

	audit, err := runlog.New(rc.LogsDir, cfg.Run.BotName, rc.RunID, logger.Named("runlog"))
	if err != nil {
		return fmt.Errorf("open run log: %w", err)
	}
	defer audit.Close() //nolint:errcheck // closed by the runner on success; idempotent

	session, err := headless.New(headless.Config{
		UserAgent:  cfg.Browser.UserAgent,
		Headless:   cfg.Browser.Headless,
		NavTimeout: cfg.NavTimeout(),
		DriverLog:  rc.DriverLogPath,
	}, logger.Named("browser"))
	if err != nil {
		return fmt.Errorf("launch browser: %w", err)
	}

	// A nil hub must stay a nil interface so the runner skips emission.
	var emitter progress.Emitter
	if hub := appInstance.GetProgress(); hub != nil {
		emitter = hub
	}

	clk := system.New()
	poller := robot.NewPoller(cfg.PollInterval(), cfg.Poll.MaxAttempts, cfg.PollMaxWait(), logger.Named("poller"))
	fetcher := robot.NewFetcher(session, poller, sha256.New(), ids, clk, emitter, robot.FetchConfig{
		RunID:        rc.RunID,
		SearchURL:    cfg.Fetch.SearchURL,
		ReportType:   cfg.Fetch.ReportType,
		DownloadsDir: rc.DownloadsDir,
		StepWait:     cfg.StepWait(),
		Settle:       cfg.SettlePause(),
		Delay:        cfg.TickerDelay(),
	}, logger.Named("fetcher"))

	finalizer := robot.NewFinalizer(appInstance.GetObjectStore(), robot.NewExponentialRetryPolicy(), robot.FinalizeConfig{
		Bucket:           cfg.Storage.Bucket,
		LogsArchive:      cfg.Run.LogsArchive,
		DataArchive:      cfg.Run.DataArchive,
		CleanupOnFailure: cfg.Run.CleanupOnFailure,
	}, logger.Named("finalizer"))

	var preflight *robot.Preflight
	if cfg.Run.Preflight {
		preflight = robot.NewPreflight(cfg.Fetch.SearchURL, cfg.Browser.UserAgent, logger.Named("preflight"))
	}

	runner := robot.New(
		buildWorklistSource(cfg, logger),
		fetcher,
		finalizer,
		preflight,
		session,
		appInstance.GetResultStore(),
		appInstance.GetNotifier(),
		audit,
		emitter,
		clk,
		robot.RunConfig{
			Bot:        cfg.Run.BotName,
			Bucket:     cfg.Storage.Bucket,
			ReportType: cfg.Fetch.ReportType,
			Policy:     policy,
			Delay:      cfg.TickerDelay(),
		},
		logger.Named("runner"),
	)

	stopServer := startStatusServer(appInstance, runner, cfg, logger)
	defer stopServer()

	return runner.Run(ctx, rc)
}

// buildWorklistSource selects the configured ticker source. Provider names
// were validated with the rest of the config.
func buildWorklistSource(cfg config.Config, logger *zap.Logger) robot.WorklistSource {
	if cfg.Worklist.Provider == "file" {
		return worklist.NewFileSource(cfg.Worklist.Path, cfg.Worklist.Column, logger.Named("worklist"))
	}
	return worklist.NewSheetSource(worklist.SheetConfig{
		SheetID:   cfg.Worklist.SheetID,
		BaseURL:   cfg.Worklist.BaseURL,
		Column:    cfg.Worklist.Column,
		UserAgent: cfg.Browser.UserAgent,
	}, logger.Named("worklist"))
}

// startStatusServer serves /healthz, /v1/status, and /metrics for the
// duration of the run. The returned function shuts the server down.
func startStatusServer(appInstance *app.App, runner *robot.Runner, cfg config.Config, logger *zap.Logger) func() {
	if !cfg.Server.Enabled {
		return func() {}
	}

	var events api.EventSource
	if recent := appInstance.GetRecentEvents(); recent != nil {
		events = recent
	}
	server := api.NewServer(runner, events, api.Config{APIKey: cfg.Server.APIKey}, logger.Named("api"))
	httpServer := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:           server.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Warn("status server stopped", zap.Error(err))
		}
	}()
	logger.Info("status server listening", zap.Int("port", cfg.Server.Port))

	return func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Warn("status server shutdown failed", zap.Error(err))
		}
	}
}
