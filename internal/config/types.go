package config

// Config is the root daemon configuration.
//
// The file on disk may be YAML or JSON; YAML is coerced to JSON before strict
// decoding, so unknown keys are rejected in both formats. All durations are Go
// duration strings (e.g. "500ms", "10s", "1m").
type Config struct {
	Logging   LoggingConfig   `json:"logging"`
	Storage   StorageConfig   `json:"storage"`
	Scheduler SchedulerConfig `json:"scheduler"`
	Jobs      JobsConfig      `json:"jobs"`
	Feeds     []FeedConfig    `json:"feeds,omitempty"`
	Email     EmailConfig     `json:"email"`
	API       APIConfig       `json:"api"`
	Telegram  *TelegramConfig `json:"telegram,omitempty"`
	Export    ExportConfig    `json:"export"`
}

type LoggingConfig struct {
	Level   string      `json:"level"`
	Console bool        `json:"console"`
	File    LoggingFile `json:"file"`
}

type LoggingFile struct {
	Enabled bool   `json:"enabled"`
	Path    string `json:"path"`
}

// StorageConfig controls the SQLite persistence layer.
type StorageConfig struct {
	Path        string `json:"path"`
	BusyTimeout string `json:"busy_timeout,omitempty"`
}

// SchedulerConfig controls job triggering and execution.
//
// Defaults (when fields are omitted/zero):
//   - workers: 2
//   - queue_size: 64
//   - default_timeout: "10m"
//   - history_size: 200
//   - retry_max: 2
type SchedulerConfig struct {
	Enabled        bool   `json:"enabled"`
	Workers        int    `json:"workers,omitempty"`
	QueueSize      int    `json:"queue_size,omitempty"`
	DefaultTimeout string `json:"default_timeout,omitempty"`
	HistorySize    int    `json:"history_size,omitempty"`
	RetryMax       int    `json:"retry_max,omitempty"`
	Timezone       string `json:"timezone,omitempty"` // IANA TZ, e.g. "America/New_York"
}

// JobConfig configures a single scheduled job.
//
// Enabled is a pointer so "omitted" (default on) can be told apart from an
// explicit false. Schedule accepts cron specs, @descriptors, Go durations and
// HH:MM interval shorthand; empty means the job's built-in default.
type JobConfig struct {
	Enabled  *bool  `json:"enabled,omitempty"`
	Schedule string `json:"schedule,omitempty"`
	Timeout  string `json:"timeout,omitempty"`
}

type JobsConfig struct {
	Feeds        JobConfig `json:"feeds"`
	CacheRebuild JobConfig `json:"cache_rebuild"`
	Snapshot     JobConfig `json:"snapshot"`
	Notify       JobConfig `json:"notify"`
	Newsletter   JobConfig `json:"newsletter"`
	Outbox       JobConfig `json:"outbox"`
	Export       JobConfig `json:"export"`
	Rollup       JobConfig `json:"rollup"`
}

// FeedConfig describes one retailer price feed.
//
// The feed is JSON over HTTP: an array of rows with sku/price/currency/
// in_stock/url. Country tells the region bucketing where the offers sell.
type FeedConfig struct {
	Retailer string `json:"retailer"`
	URL      string `json:"url"`
	Country  string `json:"country"`            // ISO 3166-1 alpha-2
	Currency string `json:"currency,omitempty"` // fallback when rows omit it
	Token    string `json:"token,omitempty"`    // optional bearer token (do not log)
	Timeout  string `json:"timeout,omitempty"`
}

// EmailConfig controls outbound SMTP and the outbox dispatcher.
type EmailConfig struct {
	Enabled    bool   `json:"enabled"`
	Host       string `json:"host"`
	Port       int    `json:"port"`
	Username   string `json:"username,omitempty"`
	Password   string `json:"password,omitempty"` // do not log
	From       string `json:"from"`
	RatePerSec int    `json:"rate_per_sec,omitempty"`
	BatchSize  int    `json:"batch_size,omitempty"`
}

// APIConfig controls the HTTP API.
type APIConfig struct {
	Enabled        bool     `json:"enabled"`
	Addr           string   `json:"addr,omitempty"` // default: "127.0.0.1:8980"
	AllowedOrigins []string `json:"allowed_origins,omitempty"`
	ReadTimeout    string   `json:"read_timeout,omitempty"`
	WriteTimeout   string   `json:"write_timeout,omitempty"`
	IdleTimeout    string   `json:"idle_timeout,omitempty"`
}

// TelegramConfig controls the ops alert channel (job failures).
type TelegramConfig struct {
	Enabled    bool   `json:"enabled"`
	Token      string `json:"token"` // do not log
	ChatID     int64  `json:"chat_id"`
	MinGap     string `json:"min_gap,omitempty"` // per-job dedup window, default "15m"
	RatePerSec int    `json:"rate_per_sec,omitempty"`
}

// ExportConfig controls the static JSON feed writer.
type ExportConfig struct {
	Dir             string `json:"dir"`
	PopularityDays  int    `json:"popularity_days,omitempty"`   // default 30
	NewsletterTop   int    `json:"newsletter_top,omitempty"`    // default 10
	HistoryKeepDays int    `json:"history_keep_days,omitempty"` // rollup retention, default 730
}
