package config

import (
	"errors"
	"fmt"
	"os"
	"slices"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"
)

// TelegramConfig holds Telegram bot settings.
type TelegramConfig struct {
	Token   string `yaml:"token" envconfig:"BOT_TOKEN"`
	AdminID int64  `yaml:"admin_id" envconfig:"TELEGRAM_ADMIN_ID"`
	RunMode string `yaml:"run_mode" envconfig:"TELEGRAM_RUN_MODE"`
	// LongPollTimeoutSeconds defines long polling timeout; 0 -> default
	LongPollTimeoutSeconds int `yaml:"longpoll_timeout_seconds" envconfig:"TELEGRAM_LONGPOLL_TIMEOUT_SECONDS"`
	// UploadTimeoutSeconds bounds a single Bot API call; audio uploads need more than the default.
	UploadTimeoutSeconds int `yaml:"upload_timeout_seconds" envconfig:"TELEGRAM_UPLOAD_TIMEOUT_SECONDS"`
}

// WebhookConfig specifies webhook settings.
type WebhookConfig struct {
	URL    string `yaml:"url" envconfig:"WEBHOOK_URL"`
	Listen string `yaml:"listen" envconfig:"WEBHOOK_LISTEN"`
	Port   int    `yaml:"port" envconfig:"WEBHOOK_PORT"`
}

// LoggingConfig defines logging related configuration.
type LoggingConfig struct {
	Level       string `yaml:"level" envconfig:"LOG_LEVEL"`
	Format      string `yaml:"format" envconfig:"LOG_FORMAT"`
	KeysOrder   string `yaml:"keys_order"`
	DebugSample string `yaml:"debug_sample"`
	Dir         string `yaml:"dir" envconfig:"LOG_DIR"`
	BotFile     string `yaml:"bot_file"`
	// ErrorsFile receives WARN and above in addition to the main sinks.
	ErrorsFile string `yaml:"errors_file"`
	// Profile indicates environment profile such as "debug" or "prod".
	Profile string `yaml:"profile" envconfig:"LOG_PROFILE"`
}

const (
	// RunModeWebhook selects webhook mode for Telegram updates.
	RunModeWebhook = "webhook"
	// RunModeLongpoll selects long-polling mode for Telegram updates.
	RunModeLongpoll = "longpoll"
)

const (
	// UpdateCallback identifies callback updates for flood control exclusions.
	UpdateCallback = "callback"
	// UpdateMessage identifies message updates for flood control exclusions.
	UpdateMessage = "message"
	// UpdateInlineQuery identifies inline query updates for flood control exclusions.
	UpdateInlineQuery = "inline_query"
)

// RateLimitConfig controls per-user flood control of incoming updates. It is
// separate from the hourly request quota in SessionConfig.
// ExcludeUpdates accepts update types to bypass limiting:
// - "callback": Telegram callback button presses
// - "message": standard text messages
// - "inline_query": inline query updates
type RateLimitConfig struct {
	IntervalMS     int      `yaml:"interval_ms" envconfig:"RATE_LIMIT_INTERVAL_MS"`
	Burst          int      `yaml:"burst" envconfig:"RATE_LIMIT_BURST"`
	ExcludeUpdates []string `yaml:"exclude_updates" envconfig:"RATE_LIMIT_EXCLUDE_UPDATES"`
}

// SessionConfig sizes the in-memory session stores.
type SessionConfig struct {
	// MaxRequestsPerUser is the hourly quota of searches and link downloads; 0 disables it.
	MaxRequestsPerUser int           `yaml:"max_requests_per_user" envconfig:"MAX_REQUESTS_PER_USER"`
	PerPage            int           `yaml:"per_page" envconfig:"RESULTS_PER_PAGE"`
	StateTTL           time.Duration `yaml:"state_ttl" envconfig:"STATE_TTL"`
	StateCapacity      int           `yaml:"state_capacity"`
	ResultsTTL         time.Duration `yaml:"results_ttl" envconfig:"RESULTS_TTL"`
	ResultsCapacity    int           `yaml:"results_capacity"`
}

// SearchConfig tunes the search collaborator.
type SearchConfig struct {
	Limit       int           `yaml:"limit" envconfig:"SEARCH_LIMIT"`
	MaxDuration time.Duration `yaml:"max_duration" envconfig:"SEARCH_MAX_DURATION"`
	Timeout     time.Duration `yaml:"timeout" envconfig:"SEARCH_TIMEOUT"`
}

// DownloadsConfig tunes the download pipeline.
type DownloadsConfig struct {
	Dir           string        `yaml:"dir" envconfig:"DOWNLOADS_DIR"`
	Workers       int           `yaml:"workers" envconfig:"DOWNLOAD_WORKERS"`
	Timeout       time.Duration `yaml:"timeout" envconfig:"DOWNLOAD_TIMEOUT"`
	MaxAge        time.Duration `yaml:"max_age"`
	SweepInterval time.Duration `yaml:"sweep_interval"`
	MaxFileSizeMB int           `yaml:"max_file_size_mb"`
	AudioQuality  string        `yaml:"audio_quality"`
}

// AccessConfig gates group usage. Empty allow-lists allow everything.
type AccessConfig struct {
	GroupMode       bool    `yaml:"group_mode" envconfig:"GROUP_MODE_ENABLED"`
	TopicsMode      bool    `yaml:"topics_mode" envconfig:"TOPICS_MODE_ENABLED"`
	DirectLinks     *bool   `yaml:"direct_links" envconfig:"DIRECT_PROCESS_YOUTUBE_LINKS"`
	AllowedGroupIDs []int64 `yaml:"allowed_group_ids" envconfig:"ALLOWED_GROUP_IDS"`
	AllowedTopicIDs []int   `yaml:"allowed_topic_ids" envconfig:"ALLOWED_TOPIC_IDS"`
}

// IsAllowedChat reports whether a group chat, and the topic inside it when
// topics mode is on, may use the bot.
func (a AccessConfig) IsAllowedChat(chatID int64, topicID int) bool {
	if len(a.AllowedGroupIDs) > 0 && !slices.Contains(a.AllowedGroupIDs, chatID) {
		return false
	}
	if a.TopicsMode && topicID != 0 && len(a.AllowedTopicIDs) > 0 && !slices.Contains(a.AllowedTopicIDs, topicID) {
		return false
	}
	return true
}

// DirectLinksEnabled reports whether pasted links in groups start downloads
// without a prompt. It defaults to true.
func (a AccessConfig) DirectLinksEnabled() bool {
	return a.DirectLinks == nil || *a.DirectLinks
}

// SenderConfig sizes the outbound dispatcher.
type SenderConfig struct {
	Workers   int `yaml:"workers" envconfig:"SENDER_WORKERS"`
	QueueSize int `yaml:"queue_size" envconfig:"SENDER_QUEUE_SIZE"`
	Retries   int `yaml:"retries" envconfig:"SENDER_RETRIES"`
}

// MetricsConfig enables the Prometheus listener.
type MetricsConfig struct {
	Listen string `yaml:"listen" envconfig:"METRICS_LISTEN"`
}

// DatabaseConfig holds Postgres settings for the download journal. With
// Enabled unset no connection is attempted.
type DatabaseConfig struct {
	Enabled        bool   `yaml:"enabled" envconfig:"DB_ENABLED"`
	Host           string `yaml:"host" envconfig:"DB_HOST"`
	Port           string `yaml:"port" envconfig:"DB_PORT"`
	User           string `yaml:"user" envconfig:"DB_USER"`
	Password       string `yaml:"password" envconfig:"DB_PASSWORD"`
	Name           string `yaml:"name" envconfig:"DB_NAME"`
	SSLMode        string `yaml:"sslmode" envconfig:"DB_SSLMODE"`
	MaxConnections int    `yaml:"max_connections" envconfig:"DB_MAX_CONNECTIONS"`
	MigrationsDir  string `yaml:"migrations_dir" envconfig:"DB_MIGRATIONS_DIR"`
}

// Config aggregates the bot configuration.
type Config struct {
	Telegram  TelegramConfig  `yaml:"telegram"`
	Webhook   WebhookConfig   `yaml:"webhook"`
	Logging   LoggingConfig   `yaml:"logging"`
	RateLimit RateLimitConfig `yaml:"rate_limit"`
	Session   SessionConfig   `yaml:"session"`
	Search    SearchConfig    `yaml:"search"`
	Downloads DownloadsConfig `yaml:"downloads"`
	Access    AccessConfig    `yaml:"access"`
	Sender    SenderConfig    `yaml:"sender"`
	Metrics   MetricsConfig   `yaml:"metrics"`
	Database  DatabaseConfig  `yaml:"database"`
}

// CoreConfig returns cfg; it lets the runner treat the config opaquely.
func (c *Config) CoreConfig() *Config { return c }

// Load reads configuration from a YAML file and environment variables. A
// missing file is tolerated so the bot can run from the environment alone.
func Load(path string) (*Config, error) {
	var cfg Config

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("failed to parse YAML config: %w", err)
		}
	case errors.Is(err, os.ErrNotExist):
	default:
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to process env: %w", err)
	}

	if err := Normalize(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Normalize performs basic validation of required configuration fields and adjusts defaults.
func Normalize(cfg *Config) error {
	if cfg == nil {
		return fmt.Errorf("nil config")
	}

	if cfg.Telegram.Token == "" {
		return fmt.Errorf("telegram token is required")
	}
	if cfg.Telegram.UploadTimeoutSeconds <= 0 {
		cfg.Telegram.UploadTimeoutSeconds = 120
	}

	rm := strings.ToLower(strings.TrimSpace(cfg.Telegram.RunMode))
	if rm == "" {
		rm = RunModeLongpoll
	}
	if rm == "polling" { // accept alias
		rm = RunModeLongpoll
	}
	switch rm {
	case RunModeWebhook:
		if strings.TrimSpace(cfg.Webhook.URL) == "" {
			return fmt.Errorf("webhook.url is required when telegram.run_mode is 'webhook'")
		}
		if strings.TrimSpace(cfg.Webhook.Listen) == "" {
			return fmt.Errorf("webhook.listen is required when telegram.run_mode is 'webhook'")
		}
		if cfg.Webhook.Port <= 0 {
			return fmt.Errorf("webhook.port must be > 0 when telegram.run_mode is 'webhook'")
		}
	case RunModeLongpoll:
		if cfg.Telegram.LongPollTimeoutSeconds < 0 {
			return fmt.Errorf("telegram.longpoll_timeout_seconds must be >= 0")
		}
	default:
		return fmt.Errorf("invalid telegram.run_mode %q; allowed: webhook, longpoll", cfg.Telegram.RunMode)
	}
	cfg.Telegram.RunMode = rm

	if err := normalizeRateLimit(&cfg.RateLimit); err != nil {
		return err
	}
	if err := normalizeSession(&cfg.Session); err != nil {
		return err
	}
	normalizeSearch(&cfg.Search)
	if err := normalizeDownloads(&cfg.Downloads); err != nil {
		return err
	}
	normalizeSender(&cfg.Sender)
	return normalizeDatabase(&cfg.Database)
}

func normalizeRateLimit(rl *RateLimitConfig) error {
	if rl.IntervalMS < 0 {
		return fmt.Errorf("rate_limit.interval_ms must be >= 0")
	}
	if rl.Burst <= 0 {
		rl.Burst = 3
	}
	allowed := map[string]struct{}{
		UpdateCallback:    {},
		UpdateMessage:     {},
		UpdateInlineQuery: {},
	}
	for i, v := range rl.ExcludeUpdates {
		key := strings.ToLower(strings.TrimSpace(v))
		if key == "" {
			continue
		}
		if _, ok := allowed[key]; !ok {
			return fmt.Errorf("invalid rate_limit.exclude_updates value %q; allowed: callback, message, inline_query", v)
		}
		rl.ExcludeUpdates[i] = key
	}
	return nil
}

func normalizeSession(s *SessionConfig) error {
	if s.MaxRequestsPerUser < 0 {
		return fmt.Errorf("session.max_requests_per_user must be >= 0")
	}
	if s.PerPage <= 0 {
		s.PerPage = 10
	}
	if s.PerPage > 20 {
		return fmt.Errorf("session.per_page must be <= 20")
	}
	if s.StateTTL <= 0 {
		s.StateTTL = 6 * time.Hour
	}
	if s.ResultsTTL <= 0 {
		s.ResultsTTL = 48 * time.Hour
	}
	if s.StateCapacity <= 0 {
		s.StateCapacity = 100_000
	}
	if s.ResultsCapacity <= 0 {
		s.ResultsCapacity = 50_000
	}
	return nil
}

func normalizeSearch(s *SearchConfig) {
	if s.Limit <= 0 {
		s.Limit = 50
	}
	if s.MaxDuration <= 0 {
		s.MaxDuration = 15 * time.Minute
	}
	if s.Timeout <= 0 {
		s.Timeout = 30 * time.Second
	}
}

func normalizeDownloads(d *DownloadsConfig) error {
	if strings.TrimSpace(d.Dir) == "" {
		d.Dir = "downloads"
	}
	if d.Workers <= 0 {
		d.Workers = 4
	}
	if d.Timeout <= 0 {
		d.Timeout = 5 * time.Minute
	}
	if d.MaxAge <= 0 {
		d.MaxAge = time.Hour
	}
	if d.SweepInterval <= 0 {
		d.SweepInterval = 10 * time.Minute
	}
	if d.MaxFileSizeMB <= 0 {
		d.MaxFileSizeMB = 50
	}
	if d.MaxFileSizeMB > 50 {
		return fmt.Errorf("downloads.max_file_size_mb cannot exceed the 50 MB bot upload limit")
	}
	if d.AudioQuality == "" {
		d.AudioQuality = "128K"
	}
	return nil
}

func normalizeSender(s *SenderConfig) {
	if s.Workers <= 0 {
		s.Workers = 4
	}
	if s.QueueSize <= 0 {
		s.QueueSize = 256
	}
	if s.Retries <= 0 {
		s.Retries = 3
	}
}

func normalizeDatabase(db *DatabaseConfig) error {
	if !db.Enabled {
		return nil
	}
	if db.Host == "" || db.Name == "" || db.User == "" {
		return fmt.Errorf("database.host, database.name and database.user are required when database.enabled is set")
	}
	if db.Port == "" {
		db.Port = "5432"
	}
	if db.SSLMode == "" {
		db.SSLMode = "disable"
	}
	if db.MaxConnections <= 0 {
		db.MaxConnections = 5
	}
	if db.MigrationsDir == "" {
		db.MigrationsDir = "migrations"
	}
	return nil
}
