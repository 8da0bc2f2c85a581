// File: internal/config/config.go
package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/xkilldash9x/lancet/api/schemas"
)

// Config holds the entire application configuration. Fields are exported so
// viper.Unmarshal can populate them; access goes through the struct directly.
type Config struct {
	Logger  LoggerConfig  `mapstructure:"logger" yaml:"logger"`
	Render  RenderConfig  `mapstructure:"render" yaml:"render"`
	Network NetworkConfig `mapstructure:"network" yaml:"network"`
	Output  OutputConfig  `mapstructure:"output" yaml:"output"`
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

// RenderConfig configures the sandboxed execution engine and the renderer
// around it.
type RenderConfig struct {
	// AllowScripts is the policy gate: when false, requests that ask for
	// script execution are refused with a security error.
	AllowScripts    bool          `mapstructure:"allow_scripts" yaml:"allow_scripts"`
	ExecuteScripts  bool          `mapstructure:"execute_scripts" yaml:"execute_scripts"`
	Timeout         time.Duration `mapstructure:"timeout" yaml:"timeout"`
	WaitStrategy    string        `mapstructure:"wait_strategy" yaml:"wait_strategy"`
	IdleTime        time.Duration `mapstructure:"idle_time" yaml:"idle_time"`
	PollInterval    time.Duration `mapstructure:"poll_interval" yaml:"poll_interval"`
	MaxScripts      int           `mapstructure:"max_scripts" yaml:"max_scripts"`
	ForwardConsole  bool          `mapstructure:"forward_console" yaml:"forward_console"`
	PermissiveShims bool          `mapstructure:"permissive_shims" yaml:"permissive_shims"`
	DebugFetch      bool          `mapstructure:"debug_fetch" yaml:"debug_fetch"`
	DebugProbes     bool          `mapstructure:"debug_probes" yaml:"debug_probes"`
	Concurrency     int           `mapstructure:"concurrency" yaml:"concurrency"`

	ExtractMetadata bool `mapstructure:"extract_metadata" yaml:"extract_metadata"`
	ExtractFeeds    bool `mapstructure:"extract_feeds" yaml:"extract_feeds"`
	ExtractText     bool `mapstructure:"extract_text" yaml:"extract_text"`
	ProbeFeedTitles bool `mapstructure:"probe_feed_titles" yaml:"probe_feed_titles"`
}

// NetworkConfig configures the outbound HTTP client used for the initial
// document and for everything the sandbox fetches.
type NetworkConfig struct {
	UserAgent          string        `mapstructure:"user_agent" yaml:"user_agent"`
	AcceptLanguage     string        `mapstructure:"accept_language" yaml:"accept_language"`
	RequestTimeout     time.Duration `mapstructure:"request_timeout" yaml:"request_timeout"`
	ScriptFetchTimeout time.Duration `mapstructure:"script_fetch_timeout" yaml:"script_fetch_timeout"`
	MaxBodySize        int64         `mapstructure:"max_body_size" yaml:"max_body_size"`
	MaxScriptSize      int64         `mapstructure:"max_script_size" yaml:"max_script_size"`
	MaxRedirects       int           `mapstructure:"max_redirects" yaml:"max_redirects"`
	InsecureSkipVerify bool          `mapstructure:"insecure_skip_verify" yaml:"insecure_skip_verify"`
	ProxyURL           string        `mapstructure:"proxy_url" yaml:"proxy_url"`
	RateLimit          float64       `mapstructure:"rate_limit" yaml:"rate_limit"`
	RateBurst          int           `mapstructure:"rate_burst" yaml:"rate_burst"`
}

// OutputConfig controls how render results are written.
type OutputConfig struct {
	Format string `mapstructure:"format" yaml:"format"`
	Pretty bool   `mapstructure:"pretty" yaml:"pretty"`
	File   string `mapstructure:"file" yaml:"file"`
}

// SetDefaults registers the default value for every config key so that a
// missing config file still yields a runnable configuration.
func SetDefaults(v *viper.Viper) {
	// -- Logger --
	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.format", "console")
	v.SetDefault("logger.add_source", false)
	v.SetDefault("logger.service_name", "lancet")
	v.SetDefault("logger.log_file", "")
	v.SetDefault("logger.max_size", 100)
	v.SetDefault("logger.max_backups", 5)
	v.SetDefault("logger.max_age", 30)
	v.SetDefault("logger.compress", true)

	// -- Render --
	v.SetDefault("render.allow_scripts", true)
	v.SetDefault("render.execute_scripts", true)
	v.SetDefault("render.timeout", "15s")
	v.SetDefault("render.wait_strategy", string(schemas.WaitNetworkIdle))
	v.SetDefault("render.idle_time", "500ms")
	v.SetDefault("render.poll_interval", "100ms")
	v.SetDefault("render.max_scripts", schemas.DefaultMaxScripts)
	v.SetDefault("render.forward_console", false)
	v.SetDefault("render.permissive_shims", true)
	v.SetDefault("render.debug_fetch", false)
	v.SetDefault("render.debug_probes", false)
	v.SetDefault("render.concurrency", 4)
	v.SetDefault("render.extract_metadata", true)
	v.SetDefault("render.extract_feeds", false)
	v.SetDefault("render.extract_text", false)
	v.SetDefault("render.probe_feed_titles", false)

	// -- Network --
	v.SetDefault("network.user_agent", "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36")
	v.SetDefault("network.accept_language", "en-US,en;q=0.9")
	v.SetDefault("network.request_timeout", "30s")
	v.SetDefault("network.script_fetch_timeout", "10s")
	v.SetDefault("network.max_body_size", 10*1024*1024)
	v.SetDefault("network.max_script_size", 5*1024*1024)
	v.SetDefault("network.max_redirects", 10)
	v.SetDefault("network.insecure_skip_verify", false)
	v.SetDefault("network.proxy_url", "")
	v.SetDefault("network.rate_limit", 0.0)
	v.SetDefault("network.rate_burst", 1)

	// -- Output --
	v.SetDefault("output.format", "json")
	v.SetDefault("output.pretty", true)
	v.SetDefault("output.file", "")
}

// NewConfigFromViper unmarshals and validates the configuration.
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

// Validate checks the configuration for required fields and sane values.
func (c *Config) Validate() error {
	switch strings.ToLower(c.Render.WaitStrategy) {
	case string(schemas.WaitTimeout), string(schemas.WaitNetworkIdle):
	default:
		return fmt.Errorf("render.wait_strategy must be %q or %q", schemas.WaitTimeout, schemas.WaitNetworkIdle)
	}
	if c.Render.Timeout <= 0 {
		return fmt.Errorf("render.timeout must be positive")
	}
	if c.Render.PollInterval <= 0 {
		return fmt.Errorf("render.poll_interval must be positive")
	}
	if c.Render.Concurrency <= 0 {
		return fmt.Errorf("render.concurrency must be a positive integer")
	}
	if c.Network.MaxBodySize <= 0 {
		return fmt.Errorf("network.max_body_size must be positive")
	}
	if c.Network.MaxRedirects < 0 {
		return fmt.Errorf("network.max_redirects must not be negative")
	}
	if c.Network.ProxyURL != "" {
		if _, err := url.Parse(c.Network.ProxyURL); err != nil {
			return fmt.Errorf("network.proxy_url is not a valid URL: %w", err)
		}
	}
	switch strings.ToLower(c.Output.Format) {
	case "json", "html", "text":
	default:
		return fmt.Errorf("output.format must be one of json, html, text")
	}
	return nil
}

// ExecutionOptions maps the render section onto the engine's option surface.
func (c *Config) ExecutionOptions() schemas.ExecutionOptions {
	opts := schemas.ExecutionOptions{
		ExecuteScripts:  c.Render.ExecuteScripts,
		Timeout:         c.Render.Timeout,
		WaitStrategy:    schemas.WaitStrategy(strings.ToLower(c.Render.WaitStrategy)),
		IdleTime:        c.Render.IdleTime,
		PollInterval:    c.Render.PollInterval,
		MaxScripts:      c.Render.MaxScripts,
		ForwardConsole:  c.Render.ForwardConsole,
		PermissiveShims: c.Render.PermissiveShims,
		DebugFetch:      c.Render.DebugFetch,
		DebugProbes:     c.Render.DebugProbes,
	}
	opts.Normalize()
	return opts
}
