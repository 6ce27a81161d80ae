// File: internal/config/config.go
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/mitchellh/go-homedir"
	"github.com/spf13/viper"

	"github.com/xkilldash9x/tripwire-cli/api/schemas"
)

// EnvPrefix is the prefix of every environment variable the CLI reads.
const EnvPrefix = "TRIPWIRE"

// Interface defines the contract for accessing application configuration.
type Interface interface {
	Logger() LoggerConfig
	Browser() BrowserConfig
	Run() RunConfig
	Report() ReportConfig
	Store() StoreConfig
	Metrics() MetricsConfig
	Overrides() schemas.Overrides

	// Setters used by CLI flags.
	SetBrowserHeadless(bool)
	SetReportOutputDir(string)
	SetReportFormats([]string)
	SetOverrides(schemas.Overrides)
}

// Config holds the entire application configuration.
type Config struct {
	LoggerCfg    LoggerConfig      `mapstructure:"logger" yaml:"logger"`
	BrowserCfg   BrowserConfig     `mapstructure:"browser" yaml:"browser"`
	RunCfg       RunConfig         `mapstructure:"run" yaml:"run"`
	ReportCfg    ReportConfig      `mapstructure:"report" yaml:"report"`
	StoreCfg     StoreConfig       `mapstructure:"store" yaml:"store"`
	MetricsCfg   MetricsConfig     `mapstructure:"metrics" yaml:"metrics"`
	OverridesCfg schemas.Overrides `mapstructure:"overrides" yaml:"overrides"`
}

var _ Interface = (*Config)(nil)

// --- Getters ---

func (c *Config) Logger() LoggerConfig         { return c.LoggerCfg }
func (c *Config) Browser() BrowserConfig       { return c.BrowserCfg }
func (c *Config) Run() RunConfig               { return c.RunCfg }
func (c *Config) Report() ReportConfig         { return c.ReportCfg }
func (c *Config) Store() StoreConfig           { return c.StoreCfg }
func (c *Config) Metrics() MetricsConfig       { return c.MetricsCfg }
func (c *Config) Overrides() schemas.Overrides { return c.OverridesCfg }

// --- Setters ---

func (c *Config) SetBrowserHeadless(b bool)        { c.BrowserCfg.Headless = b }
func (c *Config) SetReportOutputDir(d string)      { c.ReportCfg.OutputDir = d }
func (c *Config) SetReportFormats(f []string)      { c.ReportCfg.Formats = f }
func (c *Config) SetOverrides(o schemas.Overrides) { c.OverridesCfg = o }

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

// ColorConfig names the terminal color of each log level.
type ColorConfig struct {
	Debug string `mapstructure:"debug" yaml:"debug"`
	Info  string `mapstructure:"info" yaml:"info"`
	Warn  string `mapstructure:"warn" yaml:"warn"`
	Error string `mapstructure:"error" yaml:"error"`
	Fatal string `mapstructure:"fatal" yaml:"fatal"`
}

// BrowserConfig holds settings for the Chrome instance a run drives.
type BrowserConfig struct {
	Headless        bool           `mapstructure:"headless" yaml:"headless"`
	ExecPath        string         `mapstructure:"exec_path" yaml:"exec_path"`
	Args            []string       `mapstructure:"args" yaml:"args"`
	Viewport        ViewportConfig `mapstructure:"viewport" yaml:"viewport"`
	IgnoreTLSErrors bool           `mapstructure:"ignore_tls_errors" yaml:"ignore_tls_errors"`
	UserAgent       string         `mapstructure:"user_agent" yaml:"user_agent"`
	Debug           bool           `mapstructure:"debug" yaml:"debug"`
	LaunchTimeout   time.Duration  `mapstructure:"launch_timeout" yaml:"launch_timeout"`
}

// ViewportConfig is the emulated window size.
type ViewportConfig struct {
	Width  int `mapstructure:"width" yaml:"width"`
	Height int `mapstructure:"height" yaml:"height"`
}

// RunConfig tunes step execution.
type RunConfig struct {
	BaseURL            string        `mapstructure:"base_url" yaml:"base_url"`
	ActionTimeout      time.Duration `mapstructure:"action_timeout" yaml:"action_timeout"`
	SelectorTimeout    time.Duration `mapstructure:"selector_timeout" yaml:"selector_timeout"`
	NavigationTimeout  time.Duration `mapstructure:"navigation_timeout" yaml:"navigation_timeout"`
	NetworkQuietPeriod time.Duration `mapstructure:"network_quiet_period" yaml:"network_quiet_period"`
	ScreenshotDir      string        `mapstructure:"screenshot_dir" yaml:"screenshot_dir"`
	CaptureOnFailure   bool          `mapstructure:"capture_on_failure" yaml:"capture_on_failure"`
}

// ReportConfig selects which reports are written and where.
type ReportConfig struct {
	OutputDir string   `mapstructure:"output_dir" yaml:"output_dir"`
	Formats   []string `mapstructure:"formats" yaml:"formats"`
	Console   bool     `mapstructure:"console" yaml:"console"`
}

// StoreConfig holds the run history database settings.
type StoreConfig struct {
	Enabled bool   `mapstructure:"enabled" yaml:"enabled"`
	URL     string `mapstructure:"url" yaml:"url"`
}

// MetricsConfig controls the Prometheus textfile export.
type MetricsConfig struct {
	TextfilePath string `mapstructure:"textfile_path" yaml:"textfile_path"`
}

// Report formats understood by the report writers.
const (
	FormatJSON  = "json"
	FormatJUnit = "junit"
)

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

// SetDefaults initializes default values for various configuration parameters.
func SetDefaults(v *viper.Viper) {
	// -- Logger --
	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.format", "console")
	v.SetDefault("logger.add_source", false)
	v.SetDefault("logger.service_name", "tripwire")
	v.SetDefault("logger.log_file", "")
	v.SetDefault("logger.max_size", 50)
	v.SetDefault("logger.max_backups", 3)
	v.SetDefault("logger.max_age", 14)
	v.SetDefault("logger.compress", true)
	v.SetDefault("logger.colors.debug", "cyan")
	v.SetDefault("logger.colors.info", "green")
	v.SetDefault("logger.colors.warn", "yellow")
	v.SetDefault("logger.colors.error", "red")
	v.SetDefault("logger.colors.fatal", "magenta")

	// -- Browser --
	v.SetDefault("browser.headless", true)
	v.SetDefault("browser.exec_path", "")
	v.SetDefault("browser.user_agent", "")
	v.SetDefault("browser.ignore_tls_errors", false)
	v.SetDefault("browser.viewport.width", 1280)
	v.SetDefault("browser.viewport.height", 800)
	v.SetDefault("browser.debug", false)
	v.SetDefault("browser.launch_timeout", "45s")

	// -- Run --
	v.SetDefault("run.base_url", "")
	v.SetDefault("run.action_timeout", "30s")
	v.SetDefault("run.selector_timeout", "10s")
	v.SetDefault("run.navigation_timeout", "60s")
	v.SetDefault("run.network_quiet_period", "500ms")
	v.SetDefault("run.screenshot_dir", "screenshots")
	v.SetDefault("run.capture_on_failure", true)

	// -- Report --
	v.SetDefault("report.output_dir", "reports")
	v.SetDefault("report.formats", []string{FormatJSON})
	v.SetDefault("report.console", true)

	// -- Store --
	v.SetDefault("store.enabled", false)
	v.SetDefault("store.url", "")

	// -- Metrics --
	v.SetDefault("metrics.textfile_path", "")

	// -- Overrides --
	v.SetDefault("overrides.ignore_http_errors", false)
	v.SetDefault("overrides.ignore_console_errors", false)
	v.SetDefault("overrides.ignore_page_errors", false)
	v.SetDefault("overrides.ignore_request_failures", false)
}

// BindEnv wires the environment into v: TRIPWIRE_<SECTION>_<KEY> for every
// key, plus the short override and database names.
func BindEnv(v *viper.Viper) {
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	_ = v.BindEnv("overrides.ignore_http_errors", EnvPrefix+"_IGNORE_HTTP_ERRORS")
	_ = v.BindEnv("overrides.ignore_console_errors", EnvPrefix+"_IGNORE_CONSOLE_ERRORS")
	_ = v.BindEnv("overrides.ignore_page_errors", EnvPrefix+"_IGNORE_PAGE_ERRORS")
	_ = v.BindEnv("overrides.ignore_request_failures", EnvPrefix+"_IGNORE_REQUEST_FAILURES")
	_ = v.BindEnv("store.url", EnvPrefix+"_DATABASE_URL", "DATABASE_URL")
}

// NewConfigFromViper creates a new configuration instance from a viper object.
func NewConfigFromViper(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}
	if err := cfg.expandPaths(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}

func (c *Config) expandPaths() error {
	paths := []*string{
		&c.LoggerCfg.LogFile,
		&c.BrowserCfg.ExecPath,
		&c.RunCfg.ScreenshotDir,
		&c.ReportCfg.OutputDir,
		&c.MetricsCfg.TextfilePath,
	}
	for _, p := range paths {
		expanded, err := homedir.Expand(*p)
		if err != nil {
			return fmt.Errorf("failed to expand path %q: %w", *p, err)
		}
		*p = expanded
	}
	return nil
}

// Validate checks the configuration for required fields and sane values.
func (c *Config) Validate() error {
	if c.RunCfg.ActionTimeout <= 0 {
		return fmt.Errorf("run.action_timeout must be a positive duration")
	}
	if c.RunCfg.SelectorTimeout <= 0 {
		return fmt.Errorf("run.selector_timeout must be a positive duration")
	}
	if c.RunCfg.NavigationTimeout <= 0 {
		return fmt.Errorf("run.navigation_timeout must be a positive duration")
	}
	if c.RunCfg.NetworkQuietPeriod < 0 {
		return fmt.Errorf("run.network_quiet_period must not be negative")
	}
	if c.BrowserCfg.Viewport.Width < 0 || c.BrowserCfg.Viewport.Height < 0 {
		return fmt.Errorf("browser.viewport dimensions must not be negative")
	}
	if err := c.ReportCfg.Validate(); err != nil {
		return fmt.Errorf("report configuration invalid: %w", err)
	}
	if err := c.StoreCfg.Validate(); err != nil {
		return fmt.Errorf("store configuration invalid: %w", err)
	}
	return nil
}

// Validate checks that every requested format is known.
func (r *ReportConfig) Validate() error {
	for _, f := range r.Formats {
		switch strings.ToLower(strings.TrimSpace(f)) {
		case FormatJSON, FormatJUnit:
		default:
			return fmt.Errorf("unknown report format %q (supported: json, junit)", f)
		}
	}
	if len(r.Formats) > 0 && r.OutputDir == "" {
		return fmt.Errorf("output_dir is required when formats are set")
	}
	return nil
}

// Validate checks the store settings.
func (s *StoreConfig) Validate() error {
	if s.Enabled && s.URL == "" {
		return fmt.Errorf("url is required when the store is enabled. Set %s_DATABASE_URL", EnvPrefix)
	}
	return nil
}
