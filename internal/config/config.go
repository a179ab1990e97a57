package config

import (
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	SettingsName      = "notifier"
	SubscriptionsFile = "subscriptions.yaml"
	CheckpointFile    = "last-checked"
	LedgerFile        = "history.db"
)

type Config struct {
	Catalog CatalogConfig `mapstructure:"catalog"`
	SMTP    SMTPConfig    `mapstructure:"smtp"`
	Ntfy    NtfyConfig    `mapstructure:"ntfy"`
	Filter  FilterConfig  `mapstructure:"filter"`
	Ledger  LedgerConfig  `mapstructure:"ledger"`
	Logging LoggingConfig `mapstructure:"logging"`

	// Folder is the config folder the settings were loaded from.
	Folder string `mapstructure:"-"`
}

type CatalogConfig struct {
	BaseURL       string `mapstructure:"base_url"`
	TokenURL      string `mapstructure:"token_url"`
	ClientID      string `mapstructure:"client_id"`
	ClientSecret  string `mapstructure:"client_secret"`
	TimeoutSec    int    `mapstructure:"timeout_sec"`
	RetryCount    int    `mapstructure:"retry_count"`
	RetryDelayMs  int    `mapstructure:"retry_delay_ms"`
	RatePerSecond int    `mapstructure:"rate_per_second"`
	Concurrency   int    `mapstructure:"concurrency"`
}

func (c CatalogConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSec) * time.Second
}

func (c CatalogConfig) RetryDelay() time.Duration {
	return time.Duration(c.RetryDelayMs) * time.Millisecond
}

type SMTPConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
	Secure   bool   `mapstructure:"secure"`
	FromName string `mapstructure:"from_name"`
	Subject  string `mapstructure:"subject"`
}

type NtfyConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Server   string `mapstructure:"server"`
	Topic    string `mapstructure:"topic"`
	Priority string `mapstructure:"priority"`
	Tags     string `mapstructure:"tags"`
	Token    string `mapstructure:"token"`
}

type FilterConfig struct {
	Timezone    string `mapstructure:"timezone"`
	SettleHours int    `mapstructure:"settle_hours"`
}

// Location resolves the timezone release dates are interpreted in. An empty
// name means the process local zone.
func (f FilterConfig) Location() (*time.Location, error) {
	if f.Timezone == "" {
		return time.Local, nil
	}
	return time.LoadLocation(f.Timezone)
}

func (f FilterConfig) SettleDelay() time.Duration {
	return time.Duration(f.SettleHours) * time.Hour
}

type LedgerConfig struct {
	Path string `mapstructure:"path"`
}

type LoggingConfig struct {
	Enabled   bool   `mapstructure:"enabled"`
	Directory string `mapstructure:"directory"`
	Level     string `mapstructure:"level"`
}

// CheckpointPath is the file holding the last-checked instant.
func (c *Config) CheckpointPath() string {
	return filepath.Join(c.Folder, CheckpointFile)
}

func (c *Config) SubscriptionsPath() string {
	return filepath.Join(c.Folder, SubscriptionsFile)
}

// Load reads and validates the settings of folder.
func Load(folder string) (*Config, error) {
	cfg, err := Read(folder)
	if err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Read reads <folder>/notifier.yaml if present, with environment overrides.
// Variables from .env in the working directory and in folder are loaded
// first; variables already set in the environment win.
func Read(folder string) (*Config, error) {
	if err := loadDotEnv(".env", filepath.Join(folder, ".env")); err != nil {
		return nil, err
	}

	v := viper.New()

	// Set defaults
	v.SetDefault("catalog.base_url", "https://api.spotify.com/v1")
	v.SetDefault("catalog.token_url", "https://accounts.spotify.com/api/token")
	v.SetDefault("catalog.timeout_sec", 30)
	v.SetDefault("catalog.retry_count", 5)
	v.SetDefault("catalog.retry_delay_ms", 3000)
	v.SetDefault("catalog.rate_per_second", 0)
	v.SetDefault("catalog.concurrency", 8)
	v.SetDefault("smtp.port", 465)
	v.SetDefault("smtp.secure", true)
	v.SetDefault("smtp.from_name", "New Music Releases")
	v.SetDefault("smtp.subject", "New Music Releases")
	v.SetDefault("ntfy.enabled", false)
	v.SetDefault("ntfy.server", "https://ntfy.sh")
	v.SetDefault("ntfy.priority", "default")
	v.SetDefault("ntfy.tags", "musical_note")
	v.SetDefault("filter.timezone", "")
	v.SetDefault("filter.settle_hours", 12)
	v.SetDefault("ledger.path", filepath.Join(folder, LedgerFile))
	v.SetDefault("logging.enabled", false)
	v.SetDefault("logging.directory", "logs")
	v.SetDefault("logging.level", "info")

	// Environment variable support
	v.SetEnvPrefix("NOTIFIER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	// The credential variables keep their conventional names
	_ = v.BindEnv("catalog.client_id", "SPOTIFY_CLIENT_ID")
	_ = v.BindEnv("catalog.client_secret", "SPOTIFY_CLIENT_SECRET")
	_ = v.BindEnv("smtp.host", "SMTP_HOST")
	_ = v.BindEnv("smtp.port", "SMTP_PORT")
	_ = v.BindEnv("smtp.username", "EMAIL_USER")
	_ = v.BindEnv("smtp.password", "EMAIL_PASS")
	_ = v.BindEnv("ntfy.enabled", "NTFY_ENABLED")
	_ = v.BindEnv("ntfy.server", "NTFY_SERVER")
	_ = v.BindEnv("ntfy.topic", "NTFY_TOPIC")
	_ = v.BindEnv("ntfy.priority", "NTFY_PRIORITY")
	_ = v.BindEnv("ntfy.tags", "NTFY_TAGS")
	_ = v.BindEnv("ntfy.token", "NTFY_TOKEN")

	v.SetConfigName(SettingsName)
	v.SetConfigType("yaml")
	v.AddConfigPath(folder)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("reading config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}
	cfg.Folder = folder

	return &cfg, nil
}

func loadDotEnv(paths ...string) error {
	for _, p := range paths {
		if err := godotenv.Load(p); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("loading %s: %w", p, err)
		}
	}
	return nil
}

// Validate checks the settings every run needs. Mail settings are checked
// separately by ValidateSMTP since a dry run never sends.
func (c *Config) Validate() error {
	errs := &ValidationErrors{}

	if c.Catalog.ClientID == "" {
		errs.add("catalog.client_id", "is required (set SPOTIFY_CLIENT_ID)")
	}
	if c.Catalog.ClientSecret == "" {
		errs.add("catalog.client_secret", "is required (set SPOTIFY_CLIENT_SECRET)")
	}
	if c.Catalog.RetryCount < 1 {
		errs.add("catalog.retry_count", "must be >= 1")
	}
	if c.Catalog.RetryDelayMs < 0 {
		errs.add("catalog.retry_delay_ms", "must be >= 0")
	}
	if c.Catalog.RatePerSecond < 0 {
		errs.add("catalog.rate_per_second", "must be >= 0")
	}
	if c.Catalog.Concurrency < 1 {
		errs.add("catalog.concurrency", "must be >= 1")
	}
	if c.Filter.SettleHours < 0 {
		errs.add("filter.settle_hours", "must be >= 0")
	}
	if _, err := c.Filter.Location(); err != nil {
		errs.add("filter.timezone", fmt.Sprintf("unknown timezone %q", c.Filter.Timezone))
	}
	if c.Ntfy.Enabled && c.Ntfy.Topic == "" {
		errs.add("ntfy.topic", "is required when ntfy is enabled (set NTFY_TOPIC)")
	}

	if errs.HasErrors() {
		return errs
	}
	return nil
}

func (c *Config) ValidateSMTP() error {
	errs := &ValidationErrors{}

	if c.SMTP.Host == "" {
		errs.add("smtp.host", "is required (set SMTP_HOST)")
	}
	if c.SMTP.Port < 1 || c.SMTP.Port > 65535 {
		errs.add("smtp.port", fmt.Sprintf("%d is not a valid port", c.SMTP.Port))
	}
	if c.SMTP.Username == "" {
		errs.add("smtp.username", "is required (set EMAIL_USER)")
	}
	if c.SMTP.Password == "" {
		errs.add("smtp.password", "is required (set EMAIL_PASS)")
	}

	if errs.HasErrors() {
		return errs
	}
	return nil
}
