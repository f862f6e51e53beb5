package model

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// GmailConfig holds the Gmail API client settings. The OAuth token is
// obtained elsewhere; it is read from TokenFile or, when that is empty or
// missing, from the keyring entry TokenKey.
type GmailConfig struct {
	CredentialsFile string `mapstructure:"credentials_file" yaml:"credentials_file"`
	TokenFile       string `mapstructure:"token_file" yaml:"token_file"`
	TokenKey        string `mapstructure:"token_key" yaml:"token_key"`
}

// IMAPConfig holds settings for a generic IMAP/SMTP mailbox. The password
// is kept in the keyring under "imap:<username>".
type IMAPConfig struct {
	Host     string `mapstructure:"host" yaml:"host"`
	Port     string `mapstructure:"port" yaml:"port"`
	SMTPHost string `mapstructure:"smtp_host" yaml:"smtp_host"`
	SMTPPort string `mapstructure:"smtp_port" yaml:"smtp_port"`
	Username string `mapstructure:"username" yaml:"username"`
	TLS      bool   `mapstructure:"tls" yaml:"tls"`
	Mailbox  string `mapstructure:"mailbox" yaml:"mailbox"`
}

// StoreConfig selects the record store backend.
type StoreConfig struct {
	// Driver is "json" (shared document) or "sqlite".
	Driver string `mapstructure:"driver" yaml:"driver"`
	Path   string `mapstructure:"path" yaml:"path"`
}

// PathsConfig locates the rules and settings documents.
type PathsConfig struct {
	Rules    string `mapstructure:"rules" yaml:"rules"`
	Settings string `mapstructure:"settings" yaml:"settings"`
}

// SyncConfig tunes the sync cycle.
type SyncConfig struct {
	IntervalSec     int     `mapstructure:"interval_sec" yaml:"interval_sec"`
	Window          int     `mapstructure:"window" yaml:"window"`
	Concurrency     int     `mapstructure:"concurrency" yaml:"concurrency"`
	FetchTimeoutSec int     `mapstructure:"fetch_timeout_sec" yaml:"fetch_timeout_sec"`
	RatePerSec      float64 `mapstructure:"rate_per_sec" yaml:"rate_per_sec"`
}

// Interval returns the scheduler period.
func (c SyncConfig) Interval() time.Duration {
	return time.Duration(c.IntervalSec) * time.Second
}

// FetchTimeout returns the per-message fetch timeout.
func (c SyncConfig) FetchTimeout() time.Duration {
	return time.Duration(c.FetchTimeoutSec) * time.Second
}

// EnrichmentConfig describes the out-of-process enrichment command.
type EnrichmentConfig struct {
	Command []string `mapstructure:"command" yaml:"command"`
	Dir     string   `mapstructure:"dir" yaml:"dir"`
}

// LogConfig controls the process logger.
type LogConfig struct {
	Level  string `mapstructure:"level" yaml:"level"`
	Format string `mapstructure:"format" yaml:"format"`
}

// AppConfig is the top-level application configuration.
type AppConfig struct {
	Provider   ProviderType     `mapstructure:"provider" yaml:"provider"`
	Gmail      GmailConfig      `mapstructure:"gmail" yaml:"gmail"`
	IMAP       IMAPConfig       `mapstructure:"imap" yaml:"imap"`
	Store      StoreConfig      `mapstructure:"store" yaml:"store"`
	Paths      PathsConfig      `mapstructure:"paths" yaml:"paths"`
	Sync       SyncConfig       `mapstructure:"sync" yaml:"sync"`
	Enrichment EnrichmentConfig `mapstructure:"enrichment" yaml:"enrichment"`
	Log        LogConfig        `mapstructure:"log" yaml:"log"`
}

// ErrInvalidConfig is returned when a loaded configuration is unusable.
var ErrInvalidConfig = errors.New("invalid config")

// DefaultConfigPath returns ~/.config/mailsync/config.yaml.
func DefaultConfigPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".", "config.yaml")
	}
	return filepath.Join(home, ".config", "mailsync", "config.yaml")
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("provider", string(ProviderGmail))
	v.SetDefault("gmail.credentials_file", "credentials.json")
	v.SetDefault("gmail.token_file", "token.json")
	v.SetDefault("gmail.token_key", "gmail-token")
	v.SetDefault("imap.port", "993")
	v.SetDefault("imap.smtp_port", "587")
	v.SetDefault("imap.tls", true)
	v.SetDefault("imap.mailbox", "INBOX")
	v.SetDefault("store.driver", "json")
	v.SetDefault("store.path", "database.json")
	v.SetDefault("paths.rules", "template.json")
	v.SetDefault("paths.settings", "AI_settings.json")
	v.SetDefault("sync.interval_sec", 60)
	v.SetDefault("sync.window", 50)
	v.SetDefault("sync.concurrency", 10)
	v.SetDefault("sync.fetch_timeout_sec", 30)
	v.SetDefault("sync.rate_per_sec", 0)
	v.SetDefault("enrichment.command", []string{"python", "Summary_and_tone.py"})
	v.SetDefault("enrichment.dir", "")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")
}

// LoadConfig reads configuration from the YAML file at path. Every key can
// be overridden with a MAILSYNC_ environment variable (e.g.
// MAILSYNC_SYNC_INTERVAL_SEC). A missing file yields the defaults.
func LoadConfig(path string) (*AppConfig, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	v.SetEnvPrefix("MAILSYNC")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var pathErr *os.PathError
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &pathErr) && !errors.As(err, &notFound) {
			return nil, fmt.Errorf("reading config %s: %w", path, err)
		}
	}

	cfg := &AppConfig{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("parsing config %s: %w", path, err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// DefaultConfig returns the configuration used when no file exists.
func DefaultConfig() (*AppConfig, error) {
	v := viper.New()
	setDefaults(v)

	cfg := &AppConfig{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("building default config: %w", err)
	}
	return cfg, nil
}

func (c *AppConfig) validate() error {
	switch c.Provider {
	case ProviderGmail, ProviderIMAP:
	default:
		return fmt.Errorf("%w: unknown provider %q", ErrInvalidConfig, c.Provider)
	}
	switch c.Store.Driver {
	case "json", "sqlite":
	default:
		return fmt.Errorf("%w: unknown store driver %q", ErrInvalidConfig, c.Store.Driver)
	}
	if c.Sync.IntervalSec <= 0 {
		return fmt.Errorf("%w: sync.interval_sec must be positive", ErrInvalidConfig)
	}
	if c.Sync.Window <= 0 {
		return fmt.Errorf("%w: sync.window must be positive", ErrInvalidConfig)
	}
	if c.Sync.Concurrency <= 0 {
		c.Sync.Concurrency = 1
	}
	return nil
}

// SaveConfig writes cfg as YAML to path, creating parent directories.
func SaveConfig(path string, cfg *AppConfig) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating config directory %s: %w", dir, err)
	}

	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")

	v.Set("provider", string(cfg.Provider))
	v.Set("gmail", cfg.Gmail)
	v.Set("imap", cfg.IMAP)
	v.Set("store", cfg.Store)
	v.Set("paths", cfg.Paths)
	v.Set("sync", cfg.Sync)
	v.Set("enrichment", cfg.Enrichment)
	v.Set("log", cfg.Log)

	if err := v.WriteConfigAs(path); err != nil {
		return fmt.Errorf("writing config to %s: %w", path, err)
	}
	return nil
}
