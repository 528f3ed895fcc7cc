// File: internal/config/config.go
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/viper"
)

// Config holds the entire application configuration.
type Config struct {
	Logger  LoggerConfig  `mapstructure:"logger" yaml:"logger"`
	HTTP    HTTPConfig    `mapstructure:"http" yaml:"http"`
	Agent   AgentConfig   `mapstructure:"agent" yaml:"agent"`
	Oracle  OracleConfig  `mapstructure:"oracle" yaml:"oracle"`
	Browser BrowserConfig `mapstructure:"browser" yaml:"browser"`
	Solver  SolverConfig  `mapstructure:"solver" yaml:"solver"`
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

// ColorConfig defines the color codes for different log levels.
type ColorConfig struct {
	Debug  string `mapstructure:"debug" yaml:"debug"`
	Info   string `mapstructure:"info" yaml:"info"`
	Warn   string `mapstructure:"warn" yaml:"warn"`
	Error  string `mapstructure:"error" yaml:"error"`
	DPanic string `mapstructure:"dpanic" yaml:"dpanic"`
	Panic  string `mapstructure:"panic" yaml:"panic"`
	Fatal  string `mapstructure:"fatal" yaml:"fatal"`
}

// HTTPConfig holds settings for the API server.
type HTTPConfig struct {
	Addr              string        `mapstructure:"addr" yaml:"addr"`
	ReadHeaderTimeout time.Duration `mapstructure:"read_header_timeout" yaml:"read_header_timeout"`
	ShutdownTimeout   time.Duration `mapstructure:"shutdown_timeout" yaml:"shutdown_timeout"`
	StreamKeepAlive   time.Duration `mapstructure:"stream_keep_alive" yaml:"stream_keep_alive"`
}

// AgentConfig tunes the per job decision loop.
type AgentConfig struct {
	StepBudget        int           `mapstructure:"step_budget" yaml:"step_budget"`
	HistoryWindow     int           `mapstructure:"history_window" yaml:"history_window"`
	ClickTimeout      time.Duration `mapstructure:"click_timeout" yaml:"click_timeout"`
	FillTimeout       time.Duration `mapstructure:"fill_timeout" yaml:"fill_timeout"`
	PressTimeout      time.Duration `mapstructure:"press_timeout" yaml:"press_timeout"`
	NavigationTimeout time.Duration `mapstructure:"navigation_timeout" yaml:"navigation_timeout"`
	InputTimeout      time.Duration `mapstructure:"input_timeout" yaml:"input_timeout"`
	Screenshots       bool          `mapstructure:"screenshots" yaml:"screenshots"`
	ArtifactsDir      string        `mapstructure:"artifacts_dir" yaml:"artifacts_dir"`
}

// OracleConfig configures the decision model client.
type OracleConfig struct {
	Model       string        `mapstructure:"model" yaml:"model"`
	APIKey      string        `mapstructure:"api_key" yaml:"-"`
	APITimeout  time.Duration `mapstructure:"api_timeout" yaml:"api_timeout"`
	Temperature float32       `mapstructure:"temperature" yaml:"temperature"`
	MaxTokens   int           `mapstructure:"max_tokens" yaml:"max_tokens"`
}

// BrowserConfig holds settings for the headless browser instances.
type BrowserConfig struct {
	Headless        bool           `mapstructure:"headless" yaml:"headless"`
	DisableCache    bool           `mapstructure:"disable_cache" yaml:"disable_cache"`
	IgnoreTLSErrors bool           `mapstructure:"ignore_tls_errors" yaml:"ignore_tls_errors"`
	UserAgent       string         `mapstructure:"user_agent" yaml:"user_agent"`
	Args            []string       `mapstructure:"args" yaml:"args"`
	Viewport        map[string]int `mapstructure:"viewport" yaml:"viewport"`
	MaxCandidates   int            `mapstructure:"max_candidates" yaml:"max_candidates"`
}

// SolverConfig configures the optional challenge solving service.
type SolverConfig struct {
	Enabled      bool          `mapstructure:"enabled" yaml:"enabled"`
	APIKey       string        `mapstructure:"api_key" yaml:"-"`
	Endpoint     string        `mapstructure:"endpoint" yaml:"endpoint"`
	PollInterval time.Duration `mapstructure:"poll_interval" yaml:"poll_interval"`
	MaxWait      time.Duration `mapstructure:"max_wait" yaml:"max_wait"`
}

// NewDefaultConfig creates a new configuration struct populated with default values.
func NewDefaultConfig() *Config {
	v := viper.New()
	SetDefaults(v)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		// This should not happen with defaults, but good to be safe.
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
	v.SetDefault("logger.service_name", "webpilot")
	v.SetDefault("logger.log_file", "webpilot.log")
	v.SetDefault("logger.max_size", 100)
	v.SetDefault("logger.max_backups", 5)
	v.SetDefault("logger.max_age", 30)
	v.SetDefault("logger.compress", true)

	// -- HTTP --
	v.SetDefault("http.addr", ":8000")
	v.SetDefault("http.read_header_timeout", "10s")
	v.SetDefault("http.shutdown_timeout", "15s")
	v.SetDefault("http.stream_keep_alive", "15s")

	// -- Agent --
	v.SetDefault("agent.step_budget", 100)
	v.SetDefault("agent.history_window", 8)
	v.SetDefault("agent.click_timeout", "2s")
	v.SetDefault("agent.fill_timeout", "7s")
	v.SetDefault("agent.press_timeout", "2s")
	v.SetDefault("agent.navigation_timeout", "60s")
	v.SetDefault("agent.input_timeout", "5m")
	v.SetDefault("agent.screenshots", true)
	v.SetDefault("agent.artifacts_dir", "artifacts")

	// -- Oracle --
	v.SetDefault("oracle.model", "gemini-2.5-flash")
	v.SetDefault("oracle.api_timeout", "30s")
	v.SetDefault("oracle.temperature", 0.2)
	v.SetDefault("oracle.max_tokens", 4096)

	// -- Browser --
	v.SetDefault("browser.headless", true)
	v.SetDefault("browser.disable_cache", true)
	v.SetDefault("browser.ignore_tls_errors", false)
	v.SetDefault("browser.max_candidates", 10)

	// -- Solver --
	v.SetDefault("solver.enabled", false)
	v.SetDefault("solver.endpoint", "https://api.capsolver.com")
	v.SetDefault("solver.poll_interval", "3s")
	v.SetDefault("solver.max_wait", "2m")
}

// NewConfigFromViper creates a new configuration instance from a viper object.
func NewConfigFromViper(v *viper.Viper) (*Config, error) {
	var cfg Config

	// Bind environment variables for sensitive data
	v.BindEnv("oracle.api_key", "GEMINI_API_KEY")
	v.BindEnv("solver.api_key", "CAPSOLVER_API_KEY")

	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	// Manually load the keys if Unmarshal didn't pick them up
	if cfg.Oracle.APIKey == "" {
		cfg.Oracle.APIKey = os.Getenv("GEMINI_API_KEY")
	}
	if cfg.Solver.Enabled && cfg.Solver.APIKey == "" {
		cfg.Solver.APIKey = os.Getenv("CAPSOLVER_API_KEY")
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}

// Validate checks the configuration for required fields and sane values.
func (c *Config) Validate() error {
	if c.Agent.StepBudget <= 0 {
		return fmt.Errorf("agent.step_budget must be a positive integer")
	}
	if c.Agent.HistoryWindow <= 0 {
		return fmt.Errorf("agent.history_window must be a positive integer")
	}
	if c.Agent.InputTimeout <= 0 {
		return fmt.Errorf("agent.input_timeout must be a positive duration")
	}
	if c.Browser.MaxCandidates <= 0 {
		return fmt.Errorf("browser.max_candidates must be a positive integer")
	}
	if c.Solver.Enabled && c.Solver.APIKey == "" {
		return fmt.Errorf("solver API key is required but not found. Ensure CAPSOLVER_API_KEY is set")
	}
	return nil
}
