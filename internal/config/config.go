package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config holds all configuration for the mailer
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Database  DatabaseConfig  `yaml:"database"`
	Redis     RedisConfig     `yaml:"redis"`
	Logging   LoggingConfig   `yaml:"logging"`
	Provider  ProviderConfig  `yaml:"provider"`
	Queue     QueueConfig     `yaml:"queue"`
	Scheduler SchedulerConfig `yaml:"scheduler"`
	Bulk      BulkConfig      `yaml:"bulk"`
	Quota     QuotaConfig     `yaml:"quota"`
	RSVP      RSVPConfig      `yaml:"rsvp"`
	Recovery  RecoveryConfig  `yaml:"recovery"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Port            int      `yaml:"port"`
	Host            string   `yaml:"host"`
	AllowedOrigins  []string `yaml:"allowed_origins"`
	ShutdownSeconds int      `yaml:"shutdown_seconds"`
}

// GetHost returns the server host, with container detection
func (c ServerConfig) GetHost() string {
	if os.Getenv("ECS_CONTAINER_METADATA_URI") != "" || os.Getenv("AWS_EXECUTION_ENV") != "" {
		return "0.0.0.0"
	}
	if host := os.Getenv("SERVER_HOST"); host != "" {
		return host
	}
	return c.Host
}

// ShutdownTimeout bounds graceful shutdown of the HTTP server.
func (c ServerConfig) ShutdownTimeout() time.Duration {
	return time.Duration(c.ShutdownSeconds) * time.Second
}

// DatabaseConfig holds the PostgreSQL connection settings
type DatabaseConfig struct {
	URL                    string `yaml:"url"`
	MaxOpenConns           int    `yaml:"max_open_conns"`
	MaxIdleConns           int    `yaml:"max_idle_conns"`
	ConnMaxLifetimeMinutes int    `yaml:"conn_max_lifetime_minutes"`
}

// ConnMaxLifetime returns the pool connection lifetime.
func (c DatabaseConfig) ConnMaxLifetime() time.Duration {
	return time.Duration(c.ConnMaxLifetimeMinutes) * time.Minute
}

// RedisConfig enables Redis-backed cycle locks when URL is set.
type RedisConfig struct {
	URL string `yaml:"url"`
}

// LoggingConfig controls the structured logger.
type LoggingConfig struct {
	Level            string `yaml:"level"`
	DisableRedaction bool   `yaml:"disable_redaction"`
}

// ProviderConfig selects and configures the outbound email provider.
// Type is one of "ses", "mailgun", "smtp" or "log".
type ProviderConfig struct {
	Type           string        `yaml:"type"`
	FromName       string        `yaml:"from_name"`
	FromAddress    string        `yaml:"from_address"`
	TimeoutSeconds int           `yaml:"timeout_seconds"`
	MaxRetries     int           `yaml:"max_retries"`
	SES            SESConfig     `yaml:"ses"`
	Mailgun        MailgunConfig `yaml:"mailgun"`
	SMTP           SMTPConfig    `yaml:"smtp"`
}

// Timeout returns the configured timeout as a duration
func (c ProviderConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// SESConfig holds AWS SES credentials
type SESConfig struct {
	Region           string `yaml:"region"`
	AccessKey        string `yaml:"access_key"`
	SecretKey        string `yaml:"secret_key"`
	ConfigurationSet string `yaml:"configuration_set"`
}

// MailgunConfig holds Mailgun API configuration
type MailgunConfig struct {
	Domain  string `yaml:"domain"`
	APIKey  string `yaml:"api_key"`
	BaseURL string `yaml:"base_url"`
}

// SMTPConfig holds relay settings for the SMTP provider
type SMTPConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
}

// QueueConfig controls the email queue drain loop
type QueueConfig struct {
	PollIntervalSeconds int  `yaml:"poll_interval_seconds"`
	BatchSize           int  `yaml:"batch_size"`
	MessageDelayMs      int  `yaml:"message_delay_ms"`
	UseLock             bool `yaml:"use_lock"`
}

// PollInterval returns the drain tick interval.
func (c QueueConfig) PollInterval() time.Duration {
	return time.Duration(c.PollIntervalSeconds) * time.Second
}

// MessageDelay returns the pause between two sends.
func (c QueueConfig) MessageDelay() time.Duration {
	return time.Duration(c.MessageDelayMs) * time.Millisecond
}

// SchedulerConfig controls scheduled job expansion.
// MaxFailures of 0 keeps failing jobs active forever.
type SchedulerConfig struct {
	BatchSize   int `yaml:"batch_size"`
	MaxFailures int `yaml:"max_failures"`
}

// BulkConfig controls the bulk job loop
type BulkConfig struct {
	PollIntervalSeconds int `yaml:"poll_interval_seconds"`
	MessageDelayMs      int `yaml:"message_delay_ms"`
}

// PollInterval returns the bulk loop tick interval.
func (c BulkConfig) PollInterval() time.Duration {
	return time.Duration(c.PollIntervalSeconds) * time.Second
}

// MessageDelay returns the pause between two bulk recipients.
func (c BulkConfig) MessageDelay() time.Duration {
	return time.Duration(c.MessageDelayMs) * time.Millisecond
}

// QuotaConfig holds the daily send ceiling
type QuotaConfig struct {
	DailyLimit int `yaml:"daily_limit"`
}

// RSVPConfig holds settings for email-link RSVP handling.
// CalendarURLPattern may contain {base_url} and {event_id}.
type RSVPConfig struct {
	PublicBaseURL        string `yaml:"public_base_url"`
	CalendarURLPattern   string `yaml:"calendar_url_pattern"`
	ConfirmationPriority int    `yaml:"confirmation_priority"`
	RateLimitPerMinute   int    `yaml:"rate_limit_per_minute"`
}

// CalendarURL expands the calendar pattern for one event.
func (c RSVPConfig) CalendarURL(eventID string) string {
	r := strings.NewReplacer(
		"{base_url}", strings.TrimRight(c.PublicBaseURL, "/"),
		"{event_id}", eventID,
	)
	return r.Replace(c.CalendarURLPattern)
}

// RecoveryConfig controls the stuck-work recovery worker
type RecoveryConfig struct {
	IntervalSeconds int `yaml:"interval_seconds"`
	StaleAgeSeconds int `yaml:"stale_age_seconds"`
}

// Interval returns how often recovery runs.
func (c RecoveryConfig) Interval() time.Duration {
	return time.Duration(c.IntervalSeconds) * time.Second
}

// StaleAge returns how long work may sit in an in-flight state.
func (c RecoveryConfig) StaleAge() time.Duration {
	return time.Duration(c.StaleAgeSeconds) * time.Second
}

// DefaultPath is read when CONFIG_PATH is unset and the file exists.
const DefaultPath = "config/config.yaml"

// ResolvePath returns CONFIG_PATH, else DefaultPath if present, else "".
func ResolvePath() string {
	if p := os.Getenv("CONFIG_PATH"); p != "" {
		return p
	}
	if _, err := os.Stat(DefaultPath); err == nil {
		return DefaultPath
	}
	return ""
}

// Load reads and parses the configuration file. An empty path yields the
// defaults only.
func Load(path string) (*Config, error) {
	var cfg Config
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, err
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, err
		}
	}
	applyDefaults(&cfg)
	return &cfg, nil
}

func applyDefaults(cfg *Config) {
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Server.Host == "" {
		cfg.Server.Host = "localhost"
	}
	if cfg.Server.ShutdownSeconds == 0 {
		cfg.Server.ShutdownSeconds = 15
	}
	if cfg.Database.MaxOpenConns == 0 {
		cfg.Database.MaxOpenConns = 10
	}
	if cfg.Database.MaxIdleConns == 0 {
		cfg.Database.MaxIdleConns = 5
	}
	if cfg.Database.ConnMaxLifetimeMinutes == 0 {
		cfg.Database.ConnMaxLifetimeMinutes = 5
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Provider.Type == "" {
		cfg.Provider.Type = "log"
	}
	if cfg.Provider.TimeoutSeconds == 0 {
		cfg.Provider.TimeoutSeconds = 30
	}
	if cfg.Provider.MaxRetries == 0 {
		cfg.Provider.MaxRetries = 3
	}
	if cfg.Provider.SES.Region == "" {
		cfg.Provider.SES.Region = "us-west-2"
	}
	if cfg.Provider.Mailgun.BaseURL == "" {
		cfg.Provider.Mailgun.BaseURL = "https://api.mailgun.net/v3"
	}
	if cfg.Provider.SMTP.Port == 0 {
		cfg.Provider.SMTP.Port = 587
	}
	if cfg.Queue.PollIntervalSeconds == 0 {
		cfg.Queue.PollIntervalSeconds = 10
	}
	if cfg.Queue.BatchSize == 0 {
		cfg.Queue.BatchSize = 50
	}
	if cfg.Queue.MessageDelayMs == 0 {
		cfg.Queue.MessageDelayMs = 100
	}
	if cfg.Scheduler.BatchSize == 0 {
		cfg.Scheduler.BatchSize = 20
	}
	if cfg.Bulk.PollIntervalSeconds == 0 {
		cfg.Bulk.PollIntervalSeconds = 30
	}
	if cfg.Bulk.MessageDelayMs == 0 {
		cfg.Bulk.MessageDelayMs = 1000
	}
	if cfg.Quota.DailyLimit == 0 {
		cfg.Quota.DailyLimit = 300
	}
	if cfg.RSVP.PublicBaseURL == "" {
		cfg.RSVP.PublicBaseURL = "http://localhost:8080"
	}
	if cfg.RSVP.CalendarURLPattern == "" {
		cfg.RSVP.CalendarURLPattern = "{base_url}/events/{event_id}/calendar.ics"
	}
	if cfg.RSVP.ConfirmationPriority == 0 {
		cfg.RSVP.ConfirmationPriority = 5
	}
	if cfg.RSVP.RateLimitPerMinute == 0 {
		cfg.RSVP.RateLimitPerMinute = 30
	}
	if cfg.Recovery.IntervalSeconds == 0 {
		cfg.Recovery.IntervalSeconds = 120
	}
	if cfg.Recovery.StaleAgeSeconds == 0 {
		cfg.Recovery.StaleAgeSeconds = 600
	}
}

// LoadFromEnv loads configuration with environment variable overrides.
// It automatically loads a .env file (if present) before reading env vars,
// so secrets can live in .env locally and in real env vars in production.
func LoadFromEnv(path string) (*Config, error) {
	_ = godotenv.Load()

	cfg, err := Load(path)
	if err != nil {
		return nil, err
	}

	setString := func(dst *string, key string) {
		if v := os.Getenv(key); v != "" {
			*dst = v
		}
	}
	setInt := func(dst *int, key string) {
		if v := os.Getenv(key); v != "" {
			if n, err := strconv.Atoi(v); err == nil {
				*dst = n
			}
		}
	}

	setString(&cfg.Database.URL, "DATABASE_URL")
	setString(&cfg.Redis.URL, "REDIS_URL")
	setString(&cfg.Logging.Level, "LOG_LEVEL")
	setInt(&cfg.Server.Port, "PORT")

	setString(&cfg.Provider.Type, "MAIL_PROVIDER")
	setString(&cfg.Provider.FromName, "MAIL_FROM_NAME")
	setString(&cfg.Provider.FromAddress, "MAIL_FROM_ADDRESS")
	setString(&cfg.Provider.SES.AccessKey, "AWS_SES_ACCESS_KEY")
	setString(&cfg.Provider.SES.SecretKey, "AWS_SES_SECRET_KEY")
	setString(&cfg.Provider.SES.Region, "AWS_SES_REGION")
	setString(&cfg.Provider.Mailgun.APIKey, "MAILGUN_API_KEY")
	setString(&cfg.Provider.Mailgun.Domain, "MAILGUN_DOMAIN")
	setString(&cfg.Provider.Mailgun.BaseURL, "MAILGUN_BASE_URL")
	setString(&cfg.Provider.SMTP.Host, "SMTP_HOST")
	setInt(&cfg.Provider.SMTP.Port, "SMTP_PORT")
	setString(&cfg.Provider.SMTP.Username, "SMTP_USERNAME")
	setString(&cfg.Provider.SMTP.Password, "SMTP_PASSWORD")

	setInt(&cfg.Quota.DailyLimit, "DAILY_EMAIL_LIMIT")
	setString(&cfg.RSVP.PublicBaseURL, "PUBLIC_BASE_URL")

	return cfg, nil
}
