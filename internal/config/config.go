// File: internal/config/config.go
package config

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds the entire application configuration.
type Config struct {
	Logger     LoggerConfig     `mapstructure:"logger" yaml:"logger"`
	Browser    BrowserConfig    `mapstructure:"browser" yaml:"browser"`
	Wait       WaitConfig       `mapstructure:"wait" yaml:"wait"`
	Network    NetworkConfig    `mapstructure:"network" yaml:"network"`
	Screenshot ScreenshotConfig `mapstructure:"screenshot" yaml:"screenshot"`
}

// LoggerConfig holds all the configuration for the logger.
type LoggerConfig struct {
	Level       string      `mapstructure:"level" yaml:"level"`
	Format      string      `mapstructure:"format" yaml:"format"`
	AddSource   bool        `mapstructure:"add_source" yaml:"add_source"`
	ServiceName string      `mapstructure:"service_name" yaml:"service_name"`
	LogFile     string      `mapstructure:"log_file" yaml:"log_file"`
	MaxSize     int         `mapstructure:"max_size" yaml:"max_size"`
	MaxBackups  int         `mapstructure:"max_backups" yaml:"max_backups"`
	MaxAge      int         `mapstructure:"max_age" yaml:"max_age"`
	Compress    bool        `mapstructure:"compress" yaml:"compress"`
	Colors      ColorConfig `mapstructure:"colors" yaml:"colors"`
}

// ColorConfig defines the color names for different log levels.
type ColorConfig struct {
	Debug  string `mapstructure:"debug" yaml:"debug"`
	Info   string `mapstructure:"info" yaml:"info"`
	Warn   string `mapstructure:"warn" yaml:"warn"`
	Error  string `mapstructure:"error" yaml:"error"`
	DPanic string `mapstructure:"dpanic" yaml:"dpanic"`
	Panic  string `mapstructure:"panic" yaml:"panic"`
	Fatal  string `mapstructure:"fatal" yaml:"fatal"`
}

// BrowserConfig holds settings for the Chrome process and its tabs.
type BrowserConfig struct {
	Headless        bool     `mapstructure:"headless" yaml:"headless"`
	Incognito       bool     `mapstructure:"incognito" yaml:"incognito"`
	DisableGPU      bool     `mapstructure:"disable_gpu" yaml:"disable_gpu"`
	WindowSize      string   `mapstructure:"window_size" yaml:"window_size"`
	UserDataDir     string   `mapstructure:"user_data_dir" yaml:"user_data_dir"`
	ExecPath        string   `mapstructure:"exec_path" yaml:"exec_path"`
	UserAgent       string   `mapstructure:"user_agent" yaml:"user_agent"`
	IgnoreTLSErrors bool     `mapstructure:"ignore_tls_errors" yaml:"ignore_tls_errors"`
	Args            []string `mapstructure:"args" yaml:"args"`
	// ActionsPerSecond paces element interactions. Zero disables pacing.
	ActionsPerSecond float64       `mapstructure:"actions_per_second" yaml:"actions_per_second"`
	StartupTimeout   time.Duration `mapstructure:"startup_timeout" yaml:"startup_timeout"`
	Debug            bool          `mapstructure:"debug" yaml:"debug"`
}

// WaitConfig controls explicit element waits.
type WaitConfig struct {
	DefaultTimeout time.Duration `mapstructure:"default_timeout" yaml:"default_timeout"`
}

// NetworkConfig tunes page loading.
type NetworkConfig struct {
	NavigationTimeout time.Duration     `mapstructure:"navigation_timeout" yaml:"navigation_timeout"`
	Headers           map[string]string `mapstructure:"headers" yaml:"headers"`
	CookieFile        string            `mapstructure:"cookie_file" yaml:"cookie_file"`
}

// ScreenshotConfig controls screenshot encoding.
type ScreenshotConfig struct {
	MaxWidth int `mapstructure:"max_width" yaml:"max_width"`
	Quality  int `mapstructure:"quality" yaml:"quality"`
}

// NewDefaultConfig creates a new configuration struct populated with default values.
func NewDefaultConfig() *Config {
	v := viper.New()
	SetDefaults(v)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		panic(fmt.Sprintf("failed to unmarshal default config: %v", err))
	}
	return &cfg
}

// SetDefaults initializes default values for all configuration parameters.
func SetDefaults(v *viper.Viper) {
	// -- Logger --
	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.format", "console")
	v.SetDefault("logger.add_source", false)
	v.SetDefault("logger.service_name", "webactions")
	v.SetDefault("logger.log_file", "")
	v.SetDefault("logger.max_size", 100)
	v.SetDefault("logger.max_backups", 5)
	v.SetDefault("logger.max_age", 30)
	v.SetDefault("logger.compress", true)
	v.SetDefault("logger.colors.debug", "cyan")
	v.SetDefault("logger.colors.info", "green")
	v.SetDefault("logger.colors.warn", "yellow")
	v.SetDefault("logger.colors.error", "red")
	v.SetDefault("logger.colors.dpanic", "magenta")
	v.SetDefault("logger.colors.panic", "magenta")
	v.SetDefault("logger.colors.fatal", "magenta")

	// -- Browser --
	v.SetDefault("browser.headless", false)
	v.SetDefault("browser.incognito", false)
	v.SetDefault("browser.disable_gpu", false)
	v.SetDefault("browser.window_size", "1920,1080")
	v.SetDefault("browser.user_data_dir", "")
	v.SetDefault("browser.exec_path", "")
	v.SetDefault("browser.user_agent", "")
	v.SetDefault("browser.ignore_tls_errors", false)
	v.SetDefault("browser.args", []string{})
	v.SetDefault("browser.actions_per_second", 0.0)
	v.SetDefault("browser.startup_timeout", "30s")
	v.SetDefault("browser.debug", false)

	// -- Wait --
	v.SetDefault("wait.default_timeout", "10s")

	// -- Network --
	v.SetDefault("network.navigation_timeout", "60s")
	v.SetDefault("network.cookie_file", "")

	// -- Screenshot --
	v.SetDefault("screenshot.max_width", 1024)
	v.SetDefault("screenshot.quality", 80)
}

// NewConfigFromViper creates a validated configuration instance from a viper object.
func NewConfigFromViper(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}

// Validate checks the configuration for sane values.
func (c *Config) Validate() error {
	switch strings.ToLower(c.Logger.Level) {
	case "debug", "info", "warn", "error", "dpanic", "panic", "fatal":
	default:
		return fmt.Errorf("logger.level %q is not a known level", c.Logger.Level)
	}
	if c.Logger.Format != "console" && c.Logger.Format != "json" {
		return fmt.Errorf("logger.format must be either 'console' or 'json'")
	}
	if err := c.Browser.Validate(); err != nil {
		return fmt.Errorf("browser configuration invalid: %w", err)
	}
	if c.Wait.DefaultTimeout <= 0 {
		return fmt.Errorf("wait.default_timeout must be a positive duration")
	}
	if c.Network.NavigationTimeout <= 0 {
		return fmt.Errorf("network.navigation_timeout must be a positive duration")
	}
	if c.Screenshot.MaxWidth < 0 {
		return fmt.Errorf("screenshot.max_width must not be negative")
	}
	if c.Screenshot.Quality < 1 || c.Screenshot.Quality > 100 {
		return fmt.Errorf("screenshot.quality must be between 1 and 100")
	}
	return nil
}

// Validate checks the browser settings.
func (b *BrowserConfig) Validate() error {
	if b.WindowSize != "" {
		if _, _, err := b.Window(); err != nil {
			return err
		}
	}
	if b.ActionsPerSecond < 0 {
		return fmt.Errorf("actions_per_second must not be negative")
	}
	if b.StartupTimeout < 0 {
		return fmt.Errorf("startup_timeout must not be negative")
	}
	return nil
}

// Window parses WindowSize ("width,height").
func (b *BrowserConfig) Window() (int, int, error) {
	parts := strings.Split(b.WindowSize, ",")
	if len(parts) != 2 {
		return 0, 0, fmt.Errorf("window_size %q must be in the form 'width,height'", b.WindowSize)
	}
	w, err := strconv.Atoi(strings.TrimSpace(parts[0]))
	if err != nil || w <= 0 {
		return 0, 0, fmt.Errorf("window_size %q has an invalid width", b.WindowSize)
	}
	h, err := strconv.Atoi(strings.TrimSpace(parts[1]))
	if err != nil || h <= 0 {
		return 0, 0, fmt.Errorf("window_size %q has an invalid height", b.WindowSize)
	}
	return w, h, nil
}
