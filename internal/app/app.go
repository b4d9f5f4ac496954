// Package app initializes and holds the long-lived services a robot run
// shares, acting as the dependency injection container. It is the single
// place where provider names from configuration become concrete backends:
// the object store bundles ship to, the per-ticker result store, the
// run-completion notifier, and the progress hub with its sinks.
package app

import (
	"context"
	"fmt"
	"time"

	gcsclient "cloud.google.com/go/storage"
	"go.uber.org/zap"

	"github.com/finbots-io/edgarbot/internal/config"
	"github.com/finbots-io/edgarbot/internal/progress"
	progresssinks "github.com/finbots-io/edgarbot/internal/progress/sinks"
	memorypublisher "github.com/finbots-io/edgarbot/internal/publisher/memory"
	gcppublisher "github.com/finbots-io/edgarbot/internal/publisher/pubsub"
	"github.com/finbots-io/edgarbot/internal/robot"
	"github.com/finbots-io/edgarbot/internal/storage"
	gcsstorage "github.com/finbots-io/edgarbot/internal/storage/gcs"
	localstorage "github.com/finbots-io/edgarbot/internal/storage/local"
	memorystorage "github.com/finbots-io/edgarbot/internal/storage/memory"
	miniostorage "github.com/finbots-io/edgarbot/internal/storage/minio"
	pgstore "github.com/finbots-io/edgarbot/internal/storage/postgres"
	"github.com/finbots-io/edgarbot/internal/telemetry"
)

// App holds the shared, long-lived services for one robot process. It is
// built once at startup, threaded through the CLI, and closed when the run
// ends. Results and notifier may be nil when their providers are "none";
// the runner skips those capabilities.
type App struct {
	cfg    config.Config
	logger *zap.Logger

	store    robot.ObjectStore
	results  robot.ResultStore
	notifier robot.Notifier

	hub    *progress.Hub
	recent *progresssinks.RecentSink

	gcs            *gcsclient.Client
	tracerShutdown func(context.Context) error
	metricShutdown func(context.Context) error
}

// Build wires the configured providers into an App. It fails fast: any
// backend that cannot be constructed aborts startup before a browser or a
// worklist is touched.
func Build(ctx context.Context, cfg config.Config, logger *zap.Logger) (*App, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	a := &App{cfg: cfg, logger: logger}

	if cfg.Telemetry.Enabled {
		tp, mp, err := telemetry.Init(ctx, cfg.Telemetry.ServiceName, cfg.Telemetry.Version)
		if err != nil {
			return nil, fmt.Errorf("telemetry init: %w", err)
		}
		a.tracerShutdown = tp.Shutdown
		a.metricShutdown = mp.Shutdown
	}

	if err := a.setupStorage(ctx); err != nil {
		return nil, err
	}
	if err := a.setupResults(ctx); err != nil {
		return nil, err
	}
	if err := a.setupNotifier(ctx); err != nil {
		return nil, err
	}
	a.setupProgress(ctx)

	return a, nil
}

// setupStorage selects the object store the finalizer uploads into.
func (a *App) setupStorage(ctx context.Context) error {
	switch a.cfg.Storage.Provider {
	case "minio":
		a.logger.Info("using MinIO object store",
			zap.String("endpoint", a.cfg.Storage.MinIO.Endpoint),
			zap.String("bucket", a.cfg.Storage.Bucket),
		)
		store, err := miniostorage.New(miniostorage.Config{
			Endpoint:  a.cfg.Storage.MinIO.Endpoint,
			AccessKey: a.cfg.Storage.MinIO.AccessKey,
			SecretKey: a.cfg.Storage.MinIO.SecretKey,
			UseSSL:    a.cfg.Storage.MinIO.UseSSL,
		}, a.logger.Named("minio"))
		if err != nil {
			return fmt.Errorf("minio store init: %w", err)
		}
		a.store = store
	case "gcs":
		a.logger.Info("using GCS object store", zap.String("bucket", a.cfg.Storage.Bucket))
		client, err := gcsclient.NewClient(ctx)
		if err != nil {
			return fmt.Errorf("gcs client init: %w", err)
		}
		a.gcs = client
		store, err := gcsstorage.New(client, gcsstorage.Config{
			ProjectID: a.cfg.Storage.GCS.ProjectID,
		}, a.logger.Named("gcs"))
		if err != nil {
			return fmt.Errorf("gcs store init: %w", err)
		}
		a.store = store
	case "local":
		a.logger.Info("using local object store", zap.String("base_dir", a.cfg.Storage.Local.BaseDir))
		store, err := localstorage.New(localstorage.Config{BaseDir: a.cfg.Storage.Local.BaseDir})
		if err != nil {
			return fmt.Errorf("local store init: %w", err)
		}
		a.store = store
	case "memory":
		a.logger.Info("using in-memory object store")
		a.store = memorystorage.New()
	case "noop":
		a.logger.Info("using no-op object store; bundles will be discarded")
		a.store = storage.NewNoOpStore(a.logger.Named("noop"))
	default:
		return fmt.Errorf("unknown storage provider: %s", a.cfg.Storage.Provider)
	}
	return nil
}

// setupResults selects the per-ticker fetch result store. "none" leaves it
// nil; result persistence is auxiliary and the runner tolerates its absence.
func (a *App) setupResults(ctx context.Context) error {
	switch a.cfg.Results.Provider {
	case "none":
		a.logger.Info("fetch result persistence disabled")
	case "memory":
		a.logger.Info("using in-memory result store")
		a.results = memorystorage.NewResultStore()
	case "postgres":
		a.logger.Info("using Postgres result store", zap.String("table", a.cfg.Results.Table))
		store, err := pgstore.NewResultStore(ctx, pgstore.ResultStoreConfig{
			DSN:   a.cfg.Results.DSN,
			Table: a.cfg.Results.Table,
		})
		if err != nil {
			return fmt.Errorf("result store init: %w", err)
		}
		a.results = store
	default:
		return fmt.Errorf("unknown results provider: %s", a.cfg.Results.Provider)
	}
	return nil
}

// setupNotifier selects the run-report notifier. "none" leaves it nil.
func (a *App) setupNotifier(ctx context.Context) error {
	switch a.cfg.Notify.Provider {
	case "none":
		a.logger.Info("run notifications disabled")
	case "memory":
		a.logger.Info("using in-memory notifier")
		a.notifier = memorypublisher.New()
	case "pubsub":
		a.logger.Info("using Pub/Sub notifier",
			zap.String("project", a.cfg.Notify.ProjectID),
			zap.String("topic", a.cfg.Notify.Topic),
		)
		notifier, err := gcppublisher.New(ctx, a.cfg.Notify.ProjectID, a.cfg.Notify.Topic, a.logger.Named("pubsub"))
		if err != nil {
			return fmt.Errorf("pubsub notifier init: %w", err)
		}
		a.notifier = notifier
	default:
		return fmt.Errorf("unknown notify provider: %s", a.cfg.Notify.Provider)
	}
	return nil
}

// setupProgress builds the event hub and its sinks. The recent-events ring
// always rides along so the status API can answer /v1/events without a
// store.
func (a *App) setupProgress(ctx context.Context) {
	if !a.cfg.Progress.Enabled {
		a.logger.Info("progress tracking disabled")
		return
	}
	a.recent = progresssinks.NewRecentSink(0)
	sinkList := []progress.Sink{a.recent}
	if promSink, err := progresssinks.NewPrometheusSink(nil); err != nil {
		// Registration collides only when a second hub starts in one process;
		// the run proceeds without duplicate collectors.
		a.logger.Warn("prometheus progress sink unavailable", zap.Error(err))
	} else {
		sinkList = append(sinkList, promSink)
	}
	if a.cfg.Progress.LogEnabled {
		sinkList = append(sinkList, progresssinks.NewLogSink(a.logger.Named("progress_log")))
	}
	hubCfg := progress.Config{
		BufferSize:     a.cfg.Progress.BufferSize,
		MaxBatchEvents: a.cfg.Progress.Batch.MaxEvents,
		MaxBatchWait:   a.cfg.ProgressBatchWait(),
		SinkTimeout:    a.cfg.ProgressSinkTimeout(),
		BaseContext:    ctx,
		Logger:         a.logger.Named("progress_hub"),
	}
	a.hub = progress.NewHub(hubCfg, sinkList...)
	a.logger.Debug("progress hub initialized",
		zap.Int("buffer_size", hubCfg.BufferSize),
		zap.Int("max_batch_events", hubCfg.MaxBatchEvents),
		zap.Duration("max_batch_wait", hubCfg.MaxBatchWait),
	)
}

// GetLogger returns the shared zap logger.
func (a *App) GetLogger() *zap.Logger {
	return a.logger
}

// GetConfig returns the configuration the App was built from.
func (a *App) GetConfig() config.Config {
	return a.cfg
}

// GetObjectStore exposes the configured object store backend.
func (a *App) GetObjectStore() robot.ObjectStore {
	return a.store
}

// GetResultStore exposes the fetch result store, nil when disabled.
func (a *App) GetResultStore() robot.ResultStore {
	return a.results
}

// GetNotifier exposes the run-report notifier, nil when disabled.
func (a *App) GetNotifier() robot.Notifier {
	return a.notifier
}

// GetProgress exposes the event hub, nil when progress is disabled. The hub
// satisfies progress.Emitter.
func (a *App) GetProgress() *progress.Hub {
	return a.hub
}

// GetRecentEvents exposes the ring of recent events the status API reads,
// nil when progress is disabled.
func (a *App) GetRecentEvents() *progresssinks.RecentSink {
	return a.recent
}

// Close shuts the services down in reverse dependency order: the hub drains
// first so its sinks see every event, then the notifier, the result store,
// and the cloud clients. Close never fails the process; problems are logged.
func (a *App) Close(ctx context.Context) {
	if ctx == nil {
		ctx = context.Background()
	}
	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, 10*time.Second)
		defer cancel()
	}

	if a.hub != nil {
		if err := a.hub.Close(ctx); err != nil {
			a.logger.Warn("progress hub close failed", zap.Error(err))
		}
	}
	if a.notifier != nil {
		if err := a.notifier.Close(); err != nil {
			a.logger.Warn("notifier close failed", zap.Error(err))
		}
	}
	if a.results != nil {
		if err := a.results.Close(); err != nil {
			a.logger.Warn("result store close failed", zap.Error(err))
		}
	}
	if a.gcs != nil {
		if err := a.gcs.Close(); err != nil {
			a.logger.Warn("gcs client close failed", zap.Error(err))
		}
	}
	if a.tracerShutdown != nil {
		if err := a.tracerShutdown(ctx); err != nil {
			a.logger.Warn("tracer shutdown failed", zap.Error(err))
		}
	}
	if a.metricShutdown != nil {
		if err := a.metricShutdown(ctx); err != nil {
			a.logger.Warn("metric shutdown failed", zap.Error(err))
		}
	}
	a.logger.Debug("application services closed")
}
