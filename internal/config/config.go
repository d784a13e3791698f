// internal/config/config.go
package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

// Config holds the entire application configuration.
type Config struct {
	Logger  LoggerConfig  `mapstructure:"logger" yaml:"logger"`
	Browser BrowserConfig `mapstructure:"browser" yaml:"browser"`
	Network NetworkConfig `mapstructure:"network" yaml:"network"`
	Runner  RunnerConfig  `mapstructure:"runner" yaml:"runner"`
	Portal  PortalConfig  `mapstructure:"portal" yaml:"portal"`
	Store   StoreConfig   `mapstructure:"store" yaml:"store"`
	Server  ServerConfig  `mapstructure:"server" yaml:"server"`
	Mailer  MailerConfig  `mapstructure:"mailer" yaml:"mailer"`
}

// LoggerConfig holds all the configuration for the logger.
type LoggerConfig struct {
	Level       string `mapstructure:"level" yaml:"level"`
	Format      string `mapstructure:"format" yaml:"format"`
	AddSource   bool   `mapstructure:"add_source" yaml:"add_source"`
	ServiceName string `mapstructure:"service_name" yaml:"service_name"`
	LogFile     string `mapstructure:"log_file" yaml:"log_file"`
	MaxSize     int    `mapstructure:"max_size" yaml:"max_size"`
	MaxBackups  int    `mapstructure:"max_backups" yaml:"max_backups"`
	MaxAge      int    `mapstructure:"max_age" yaml:"max_age"`
	Compress    bool   `mapstructure:"compress" yaml:"compress"`
}

// BrowserConfig holds settings for the headless browser instances.
type BrowserConfig struct {
	Headless        bool     `mapstructure:"headless" yaml:"headless"`
	ExecPath        string   `mapstructure:"exec_path" yaml:"exec_path"`
	IgnoreTLSErrors bool     `mapstructure:"ignore_tls_errors" yaml:"ignore_tls_errors"`
	Args            []string `mapstructure:"args" yaml:"args"`
	// ScreenshotDir is where run screenshots land. Created on demand.
	ScreenshotDir string `mapstructure:"screenshot_dir" yaml:"screenshot_dir"`
	UserAgent     string `mapstructure:"user_agent" yaml:"user_agent"`
}

// NetworkConfig tunes navigation and settle behavior inside an attempt.
type NetworkConfig struct {
	// NavigationTimeout bounds the initial page load.
	NavigationTimeout time.Duration `mapstructure:"navigation_timeout" yaml:"navigation_timeout"`
	// FieldWait bounds the polling window for locating login form fields.
	FieldWait time.Duration `mapstructure:"field_wait" yaml:"field_wait"`
	// SettleWait bounds the post-submit window when no navigation occurs.
	SettleWait time.Duration `mapstructure:"settle_wait" yaml:"settle_wait"`
	// PollInterval is the cadence for field and outcome polling.
	PollInterval time.Duration `mapstructure:"poll_interval" yaml:"poll_interval"`
}

// RunnerConfig governs the per-account run orchestration.
type RunnerConfig struct {
	// AttemptTimeout is the overall budget for one browser attempt.
	AttemptTimeout time.Duration `mapstructure:"attempt_timeout" yaml:"attempt_timeout"`
	// MaxAttempts is the bounded retry budget (1 initial + retries).
	MaxAttempts int `mapstructure:"max_attempts" yaml:"max_attempts"`
	// Concurrency caps simultaneous account runs in a batch.
	Concurrency int `mapstructure:"concurrency" yaml:"concurrency"`
}

// PortalConfig supplies environment-level credential and URL defaults.
// Per-account overrides win; these fill the gaps.
type PortalConfig struct {
	LoginURL string `mapstructure:"login_url" yaml:"login_url"`
	Username string `mapstructure:"username" yaml:"-"`
	Password string `mapstructure:"password" yaml:"-"`
}

// StoreConfig locates the persistence layer.
type StoreConfig struct {
	DataDir string `mapstructure:"data_dir" yaml:"data_dir"`
}

// ServerConfig configures the HTTP API surface.
type ServerConfig struct {
	Addr            string        `mapstructure:"addr" yaml:"addr"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout" yaml:"shutdown_timeout"`
	// RatePerMinute caps requests per client IP; zero disables limiting.
	RatePerMinute int `mapstructure:"rate_per_minute" yaml:"rate_per_minute"`
	RateBurst     int `mapstructure:"rate_burst" yaml:"rate_burst"`
}

// MailerConfig configures the SMTP notification sink.
type MailerConfig struct {
	Enabled    bool   `mapstructure:"enabled" yaml:"enabled"`
	Host       string `mapstructure:"host" yaml:"host"`
	Port       int    `mapstructure:"port" yaml:"port"`
	Username   string `mapstructure:"username" yaml:"username"`
	Password   string `mapstructure:"password" yaml:"-"`
	From       string `mapstructure:"from" yaml:"from"`
	AdminEmail string `mapstructure:"admin_email" yaml:"admin_email"`
}

// DefaultLoginURL is the last-resort portal login endpoint when neither the
// account nor the environment provides one.
const DefaultLoginURL = "https://evirtualpay.com/v2/vp_interface/login"

// SetDefaults initializes default values for all configuration parameters.
func SetDefaults(v *viper.Viper) {
	// -- Logger --
	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.format", "console")
	v.SetDefault("logger.add_source", false)
	v.SetDefault("logger.service_name", "portal-sentry")
	v.SetDefault("logger.log_file", "")
	v.SetDefault("logger.max_size", 50)
	v.SetDefault("logger.max_backups", 3)
	v.SetDefault("logger.max_age", 30)
	v.SetDefault("logger.compress", true)

	// -- Browser --
	v.SetDefault("browser.headless", true)
	v.SetDefault("browser.ignore_tls_errors", false)
	v.SetDefault("browser.screenshot_dir", "screenshots")
	v.SetDefault("browser.user_agent", "")

	// -- Network --
	v.SetDefault("network.navigation_timeout", "90s")
	v.SetDefault("network.field_wait", "30s")
	v.SetDefault("network.settle_wait", "10s")
	v.SetDefault("network.poll_interval", "250ms")

	// -- Runner --
	v.SetDefault("runner.attempt_timeout", "4m")
	v.SetDefault("runner.max_attempts", 2)
	v.SetDefault("runner.concurrency", 3)

	// -- Portal --
	v.SetDefault("portal.login_url", DefaultLoginURL)

	// -- Store --
	v.SetDefault("store.data_dir", "data")

	// -- Server --
	v.SetDefault("server.addr", ":8080")
	v.SetDefault("server.shutdown_timeout", "10s")
	v.SetDefault("server.rate_per_minute", 120)
	v.SetDefault("server.rate_burst", 30)

	// -- Mailer --
	v.SetDefault("mailer.enabled", false)
	v.SetDefault("mailer.host", "smtp.gmail.com")
	v.SetDefault("mailer.port", 465)
}

// NewDefaultConfig creates a configuration populated with default values.
func NewDefaultConfig() *Config {
	v := viper.New()
	SetDefaults(v)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		// Cannot happen with defaults alone.
		panic(fmt.Sprintf("failed to unmarshal default config: %v", err))
	}
	return &cfg
}

// NewConfigFromViper creates a configuration instance from a viper object.
func NewConfigFromViper(v *viper.Viper) (*Config, error) {
	// Sensitive values come from the environment, never the config file.
	v.BindEnv("portal.username", "SENTRY_PORTAL_USERNAME")
	v.BindEnv("portal.password", "SENTRY_PORTAL_PASSWORD")
	v.BindEnv("mailer.username", "SENTRY_SMTP_USER")
	v.BindEnv("mailer.password", "SENTRY_SMTP_PASS")

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}

// Validate checks the configuration for required fields and sane values.
func (c *Config) Validate() error {
	if c.Runner.MaxAttempts < 1 || c.Runner.MaxAttempts > 2 {
		return fmt.Errorf("runner.max_attempts must be 1 or 2, got %d", c.Runner.MaxAttempts)
	}
	if c.Runner.Concurrency <= 0 {
		return fmt.Errorf("runner.concurrency must be a positive integer")
	}
	if c.Runner.AttemptTimeout <= 0 {
		return fmt.Errorf("runner.attempt_timeout must be a positive duration")
	}
	if c.Network.PollInterval <= 0 {
		return fmt.Errorf("network.poll_interval must be a positive duration")
	}
	if c.Store.DataDir == "" {
		return fmt.Errorf("store.data_dir is a required configuration field")
	}
	if err := c.Mailer.Validate(); err != nil {
		return fmt.Errorf("mailer configuration invalid: %w", err)
	}
	return nil
}

// Validate checks the Mailer configuration.
func (m *MailerConfig) Validate() error {
	if !m.Enabled {
		return nil
	}
	if m.Host == "" || m.Port <= 0 {
		return fmt.Errorf("host and port are required when the mailer is enabled")
	}
	if m.Username == "" || m.Password == "" {
		return fmt.Errorf("SMTP credentials are required. Ensure SENTRY_SMTP_USER and SENTRY_SMTP_PASS are set")
	}
	return nil
}
