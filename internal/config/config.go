// Package config loads and validates robot configuration via Viper.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// ConfigError reports a configuration key that is missing or invalid. The
// robot refuses to start while one exists; no browser or network activity
// happens first.
type ConfigError struct {
	Key    string
	Reason string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("config: %s %s", e.Key, e.Reason)
}

// Config captures all robot configuration knobs loaded via Viper.
type Config struct {
	Logging   LoggingConfig   `mapstructure:"logging"`
	Server    ServerConfig    `mapstructure:"server"`
	Telemetry TelemetryConfig `mapstructure:"telemetry"`
	Browser   BrowserConfig   `mapstructure:"browser"`
	Fetch     FetchConfig     `mapstructure:"fetch"`
	Poll      PollConfig      `mapstructure:"poll"`
	Run       RunConfig       `mapstructure:"run"`
	Worklist  WorklistConfig  `mapstructure:"worklist"`
	Storage   StorageConfig   `mapstructure:"storage"`
	Results   ResultsConfig   `mapstructure:"results"`
	Notify    NotifyConfig    `mapstructure:"notify"`
	Progress  ProgressConfig  `mapstructure:"progress"`
}

// LoggingConfig toggles zap development features.
type LoggingConfig struct {
	Development bool `mapstructure:"development"`
}

// ServerConfig controls the status/metrics HTTP server. A non-empty APIKey
// gates every route behind the X-API-Key header.
type ServerConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Port    int    `mapstructure:"port"`
	APIKey  string `mapstructure:"api_key"`
}

// TelemetryConfig names the service for OpenTelemetry resources.
type TelemetryConfig struct {
	Enabled     bool   `mapstructure:"enabled"`
	ServiceName string `mapstructure:"service_name"`
	Version     string `mapstructure:"version"`
}

// ProgressConfig tunes the progress event hub and its sinks.
type ProgressConfig struct {
	Enabled       bool                `mapstructure:"enabled"`
	LogEnabled    bool                `mapstructure:"log_enabled"`
	BufferSize    int                 `mapstructure:"buffer_size"`
	SinkTimeoutMs int                 `mapstructure:"sink_timeout_ms"`
	Batch         ProgressBatchConfig `mapstructure:"batch"`
}

// ProgressBatchConfig bounds how events are grouped before sinks see them.
type ProgressBatchConfig struct {
	MaxEvents int `mapstructure:"max_events"`
	MaxWaitMs int `mapstructure:"max_wait_ms"`
}

// BrowserConfig governs the headless browser session.
type BrowserConfig struct {
	UserAgent         string `mapstructure:"user_agent"`
	Headless          bool   `mapstructure:"headless"`
	NavTimeoutSeconds int    `mapstructure:"nav_timeout_seconds"`
	StepWaitSeconds   int    `mapstructure:"step_wait_seconds"`
	LogFile           string `mapstructure:"log_file"`
}

// FetchConfig drives the EDGAR navigation chain.
type FetchConfig struct {
	SearchURL     string `mapstructure:"search_url"`
	ReportType    string `mapstructure:"report_type"`
	SettleSeconds int    `mapstructure:"settle_seconds"`
	DelaySeconds  int    `mapstructure:"delay_seconds"`
}

// PollConfig bounds the download-completion poller.
type PollConfig struct {
	IntervalSeconds int `mapstructure:"interval_seconds"`
	MaxAttempts     int `mapstructure:"max_attempts"`
	MaxWaitSeconds  int `mapstructure:"max_wait_seconds"`
}

// RunConfig shapes the run layout, bundles, and failure handling.
type RunConfig struct {
	WorkDir          string `mapstructure:"work_dir"`
	DownloadsDir     string `mapstructure:"downloads_dir"`
	LogsDir          string `mapstructure:"logs_dir"`
	BotName          string `mapstructure:"bot_name"`
	FailurePolicy    string `mapstructure:"failure_policy"`
	CleanupOnFailure bool   `mapstructure:"cleanup_on_failure"`
	LogsArchive      string `mapstructure:"logs_archive"`
	DataArchive      string `mapstructure:"data_archive"`
	Preflight        bool   `mapstructure:"preflight"`
}

// WorklistConfig selects and parameterizes the ticker worklist source.
type WorklistConfig struct {
	Provider string `mapstructure:"provider"`
	SheetID  string `mapstructure:"sheet_id"`
	BaseURL  string `mapstructure:"base_url"`
	Path     string `mapstructure:"path"`
	Column   string `mapstructure:"column"`
}

// StorageConfig selects and parameterizes the object store backend.
type StorageConfig struct {
	Provider string             `mapstructure:"provider"`
	Bucket   string             `mapstructure:"bucket"`
	MinIO    MinIOConfig        `mapstructure:"minio"`
	GCS      GCSStorageConfig   `mapstructure:"gcs"`
	Local    LocalStorageConfig `mapstructure:"local"`
}

// MinIOConfig holds MinIO/S3 endpoint credentials.
type MinIOConfig struct {
	Endpoint  string `mapstructure:"endpoint"`
	AccessKey string `mapstructure:"access_key"`
	SecretKey string `mapstructure:"secret_key"`
	UseSSL    bool   `mapstructure:"use_ssl"`
}

// GCSStorageConfig holds Google Cloud Storage settings.
type GCSStorageConfig struct {
	ProjectID string `mapstructure:"project_id"`
}

// LocalStorageConfig holds filesystem backend settings.
type LocalStorageConfig struct {
	BaseDir string `mapstructure:"base_dir"`
}

// ResultsConfig controls the per-ticker fetch result store.
type ResultsConfig struct {
	Provider string `mapstructure:"provider"`
	DSN      string `mapstructure:"dsn"`
	Table    string `mapstructure:"table"`
}

// NotifyConfig controls run-completion notifications.
type NotifyConfig struct {
	Provider  string `mapstructure:"provider"`
	ProjectID string `mapstructure:"project_id"`
	Topic     string `mapstructure:"topic"`
}

// Load builds a Config from disk/environment.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("EDGARBOT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

// Every key gets a default, including empty ones for required secrets, so
// environment overrides reach Unmarshal.
func setDefaults(v *viper.Viper) {
	v.SetDefault("logging.development", true)
	v.SetDefault("server.enabled", true)
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.api_key", "")
	v.SetDefault("telemetry.enabled", false)
	v.SetDefault("telemetry.service_name", "edgarbot")
	v.SetDefault("telemetry.version", "dev")
	v.SetDefault("progress.enabled", true)
	v.SetDefault("progress.log_enabled", true)
	v.SetDefault("progress.buffer_size", 4096)
	v.SetDefault("progress.sink_timeout_ms", 5000)
	v.SetDefault("progress.batch.max_events", 256)
	v.SetDefault("progress.batch.max_wait_ms", 500)
	v.SetDefault("browser.user_agent", "edgarbot/0.1 (+https://github.com/finbots-io/edgarbot)")
	v.SetDefault("browser.headless", true)
	v.SetDefault("browser.nav_timeout_seconds", 45)
	v.SetDefault("browser.step_wait_seconds", 5)
	v.SetDefault("browser.log_file", "chrome.log")
	v.SetDefault("fetch.search_url", "https://www.sec.gov/edgar/searchedgar/companysearch.html")
	v.SetDefault("fetch.report_type", "10-Q")
	v.SetDefault("fetch.settle_seconds", 4)
	v.SetDefault("fetch.delay_seconds", 5)
	v.SetDefault("poll.interval_seconds", 3)
	v.SetDefault("poll.max_attempts", 40)
	v.SetDefault("poll.max_wait_seconds", 120)
	v.SetDefault("run.work_dir", ".")
	v.SetDefault("run.downloads_dir", "bot_downloads")
	v.SetDefault("run.logs_dir", "robot_logs")
	v.SetDefault("run.bot_name", "edgar-investigator")
	v.SetDefault("run.failure_policy", "any_failed")
	v.SetDefault("run.cleanup_on_failure", false)
	v.SetDefault("run.logs_archive", "robot-logs")
	v.SetDefault("run.data_archive", "financial-data")
	v.SetDefault("run.preflight", true)
	v.SetDefault("worklist.provider", "sheet")
	v.SetDefault("worklist.sheet_id", "")
	v.SetDefault("worklist.base_url", "https://docs.google.com")
	v.SetDefault("worklist.path", "")
	v.SetDefault("worklist.column", "Company Ticker")
	v.SetDefault("storage.provider", "minio")
	v.SetDefault("storage.bucket", "")
	v.SetDefault("storage.minio.endpoint", "")
	v.SetDefault("storage.minio.access_key", "")
	v.SetDefault("storage.minio.secret_key", "")
	v.SetDefault("storage.minio.use_ssl", false)
	v.SetDefault("storage.gcs.project_id", "")
	v.SetDefault("storage.local.base_dir", "")
	v.SetDefault("results.provider", "none")
	v.SetDefault("results.dsn", "")
	v.SetDefault("results.table", "fetch_results")
	v.SetDefault("notify.provider", "none")
	v.SetDefault("notify.project_id", "")
	v.SetDefault("notify.topic", "")
}

// Validate enforces required values and reasonable limits.
func (c Config) Validate() error {
	if c.Server.Enabled && c.Server.Port <= 0 {
		return &ConfigError{Key: "server.port", Reason: "must be > 0 when the server is enabled"}
	}
	if c.Browser.StepWaitSeconds <= 0 {
		return &ConfigError{Key: "browser.step_wait_seconds", Reason: "must be > 0"}
	}
	if c.Browser.NavTimeoutSeconds <= 0 {
		return &ConfigError{Key: "browser.nav_timeout_seconds", Reason: "must be > 0"}
	}
	if c.Fetch.SearchURL == "" {
		return &ConfigError{Key: "fetch.search_url", Reason: "must be set"}
	}
	if c.Fetch.ReportType == "" {
		return &ConfigError{Key: "fetch.report_type", Reason: "must be set"}
	}
	if c.Poll.IntervalSeconds <= 0 {
		return &ConfigError{Key: "poll.interval_seconds", Reason: "must be > 0"}
	}
	if c.Poll.MaxAttempts <= 0 {
		return &ConfigError{Key: "poll.max_attempts", Reason: "must be > 0"}
	}
	if c.Poll.MaxWaitSeconds <= 0 {
		return &ConfigError{Key: "poll.max_wait_seconds", Reason: "must be > 0"}
	}
	switch c.Run.FailurePolicy {
	case "abort", "any_failed", "best_effort":
	default:
		return &ConfigError{Key: "run.failure_policy", Reason: "must be one of abort, any_failed, best_effort"}
	}
	switch c.Worklist.Provider {
	case "sheet":
		if c.Worklist.SheetID == "" {
			return &ConfigError{Key: "worklist.sheet_id", Reason: `must be set when worklist.provider is "sheet"`}
		}
	case "file":
		if c.Worklist.Path == "" {
			return &ConfigError{Key: "worklist.path", Reason: `must be set when worklist.provider is "file"`}
		}
	default:
		return &ConfigError{Key: "worklist.provider", Reason: "must be one of sheet, file"}
	}
	if c.Worklist.Column == "" {
		return &ConfigError{Key: "worklist.column", Reason: "must be set"}
	}
	switch c.Storage.Provider {
	case "minio":
		if c.Storage.MinIO.Endpoint == "" {
			return &ConfigError{Key: "storage.minio.endpoint", Reason: `must be set when storage.provider is "minio"`}
		}
		if c.Storage.MinIO.AccessKey == "" {
			return &ConfigError{Key: "storage.minio.access_key", Reason: `must be set when storage.provider is "minio"`}
		}
		if c.Storage.MinIO.SecretKey == "" {
			return &ConfigError{Key: "storage.minio.secret_key", Reason: `must be set when storage.provider is "minio"`}
		}
	case "gcs":
		if c.Storage.GCS.ProjectID == "" {
			return &ConfigError{Key: "storage.gcs.project_id", Reason: `must be set when storage.provider is "gcs"`}
		}
	case "local":
		if c.Storage.Local.BaseDir == "" {
			return &ConfigError{Key: "storage.local.base_dir", Reason: `must be set when storage.provider is "local"`}
		}
	case "memory", "noop":
	default:
		return &ConfigError{Key: "storage.provider", Reason: "must be one of minio, gcs, local, memory, noop"}
	}
	if c.Storage.Provider != "noop" && c.Storage.Bucket == "" {
		return &ConfigError{Key: "storage.bucket", Reason: "must be set"}
	}
	switch c.Results.Provider {
	case "none", "memory":
	case "postgres":
		if c.Results.DSN == "" {
			return &ConfigError{Key: "results.dsn", Reason: `must be set when results.provider is "postgres"`}
		}
		if c.Results.Table == "" {
			return &ConfigError{Key: "results.table", Reason: `must be set when results.provider is "postgres"`}
		}
	default:
		return &ConfigError{Key: "results.provider", Reason: "must be one of none, memory, postgres"}
	}
	switch c.Notify.Provider {
	case "none", "memory":
	case "pubsub":
		if c.Notify.ProjectID == "" {
			return &ConfigError{Key: "notify.project_id", Reason: `must be set when notify.provider is "pubsub"`}
		}
		if c.Notify.Topic == "" {
			return &ConfigError{Key: "notify.topic", Reason: `must be set when notify.provider is "pubsub"`}
		}
	default:
		return &ConfigError{Key: "notify.provider", Reason: "must be one of none, memory, pubsub"}
	}
	if c.Progress.Enabled {
		if c.Progress.BufferSize <= 0 {
			return &ConfigError{Key: "progress.buffer_size", Reason: "must be > 0 when progress is enabled"}
		}
		if c.Progress.Batch.MaxEvents <= 0 {
			return &ConfigError{Key: "progress.batch.max_events", Reason: "must be > 0 when progress is enabled"}
		}
	}
	return nil
}

// StepWait is the per-lookup element wait budget.
func (c Config) StepWait() time.Duration {
	return time.Duration(c.Browser.StepWaitSeconds) * time.Second
}

// NavTimeout bounds a single browser navigation.
func (c Config) NavTimeout() time.Duration {
	return time.Duration(c.Browser.NavTimeoutSeconds) * time.Second
}

// SettlePause is the wait before the report-type box accepts input.
func (c Config) SettlePause() time.Duration {
	return time.Duration(c.Fetch.SettleSeconds) * time.Second
}

// TickerDelay is the politeness pause between worklist entries.
func (c Config) TickerDelay() time.Duration {
	return time.Duration(c.Fetch.DelaySeconds) * time.Second
}

// PollInterval is the pause between download checks.
func (c Config) PollInterval() time.Duration {
	return time.Duration(c.Poll.IntervalSeconds) * time.Second
}

// PollMaxWait is the total budget for one download to materialize.
func (c Config) PollMaxWait() time.Duration {
	return time.Duration(c.Poll.MaxWaitSeconds) * time.Second
}

// ProgressSinkTimeout bounds one sink batch delivery.
func (c Config) ProgressSinkTimeout() time.Duration {
	return time.Duration(c.Progress.SinkTimeoutMs) * time.Millisecond
}

// ProgressBatchWait is the longest a partial batch sits before flushing.
func (c Config) ProgressBatchWait() time.Duration {
	return time.Duration(c.Progress.Batch.MaxWaitMs) * time.Millisecond
}
