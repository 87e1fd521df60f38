// File: internal/config/config.go
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/mitchellh/go-homedir"
	"github.com/spf13/viper"
)

// Interface defines the contract for accessing application configuration.
// This allows for dependency injection and mocking in tests.
type Interface interface {
	Logger() LoggerConfig
	Browser() BrowserConfig
	Locator() LocatorConfig
	Humanoid() HumanoidConfig
	Filler() FillerConfig
	Poller() PollerConfig
	Navigation() NavigationConfig
	Completion() CompletionConfig
	Diagnostics() DiagnosticsConfig
	Vault() VaultConfig
	Insights() InsightsConfig

	SetBrowserHeadless(bool)
	SetBrowserTargetURL(string)
	SetPollerEnabled(bool)
}

// Config holds the entire application configuration.
type Config struct {
	LoggerCfg      LoggerConfig      `mapstructure:"logger" yaml:"logger"`
	BrowserCfg     BrowserConfig     `mapstructure:"browser" yaml:"browser"`
	LocatorCfg     LocatorConfig     `mapstructure:"locator" yaml:"locator"`
	HumanoidCfg    HumanoidConfig    `mapstructure:"humanoid" yaml:"humanoid"`
	FillerCfg      FillerConfig      `mapstructure:"filler" yaml:"filler"`
	PollerCfg      PollerConfig      `mapstructure:"poller" yaml:"poller"`
	NavigationCfg  NavigationConfig  `mapstructure:"navigation" yaml:"navigation"`
	CompletionCfg  CompletionConfig  `mapstructure:"completion" yaml:"completion"`
	DiagnosticsCfg DiagnosticsConfig `mapstructure:"diagnostics" yaml:"diagnostics"`
	VaultCfg       VaultConfig       `mapstructure:"vault" yaml:"vault"`
	InsightsCfg    InsightsConfig    `mapstructure:"insights" yaml:"insights"`
}

var _ Interface = (*Config)(nil)

// --- Interface Method Implementations (Getters) ---

func (c *Config) Logger() LoggerConfig           { return c.LoggerCfg }
func (c *Config) Browser() BrowserConfig         { return c.BrowserCfg }
func (c *Config) Locator() LocatorConfig         { return c.LocatorCfg }
func (c *Config) Humanoid() HumanoidConfig       { return c.HumanoidCfg }
func (c *Config) Filler() FillerConfig           { return c.FillerCfg }
func (c *Config) Poller() PollerConfig           { return c.PollerCfg }
func (c *Config) Navigation() NavigationConfig   { return c.NavigationCfg }
func (c *Config) Completion() CompletionConfig   { return c.CompletionCfg }
func (c *Config) Diagnostics() DiagnosticsConfig { return c.DiagnosticsCfg }
func (c *Config) Vault() VaultConfig             { return c.VaultCfg }
func (c *Config) Insights() InsightsConfig       { return c.InsightsCfg }

// --- Interface Method Implementations (Setters) ---

func (c *Config) SetBrowserHeadless(b bool)    { c.BrowserCfg.Headless = b }
func (c *Config) SetBrowserTargetURL(u string) { c.BrowserCfg.TargetURL = u }
func (c *Config) SetPollerEnabled(b bool)      { c.PollerCfg.Enabled = b }

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

// BrowserConfig holds settings for the embedded browser that hosts the payment page.
type BrowserConfig struct {
	Headless          bool           `mapstructure:"headless" yaml:"headless"`
	DisableCache      bool           `mapstructure:"disable_cache" yaml:"disable_cache"`
	IgnoreTLSErrors   bool           `mapstructure:"ignore_tls_errors" yaml:"ignore_tls_errors"`
	Debug             bool           `mapstructure:"debug" yaml:"debug"`
	Args              []string       `mapstructure:"args" yaml:"args"`
	Viewport          map[string]int `mapstructure:"viewport" yaml:"viewport"`
	UserDataDir       string         `mapstructure:"user_data_dir" yaml:"user_data_dir"`
	TargetURL         string         `mapstructure:"target_url" yaml:"target_url"`
	NavigationTimeout time.Duration  `mapstructure:"navigation_timeout" yaml:"navigation_timeout"`
	// SettleDelay is waited after the first load before the engine starts.
	SettleDelay time.Duration `mapstructure:"settle_delay" yaml:"settle_delay"`
	// Persona overrides; empty values keep the browser's own.
	UserAgent string   `mapstructure:"user_agent" yaml:"user_agent"`
	Locale    string   `mapstructure:"locale" yaml:"locale"`
	Timezone  string   `mapstructure:"timezone" yaml:"timezone"`
	Languages []string `mapstructure:"languages" yaml:"languages"`
}

// LocatorConfig drives the field locator: retry budget and ordered candidate lists per role.
type LocatorConfig struct {
	MaxAttempts  int               `mapstructure:"max_attempts" yaml:"max_attempts"`
	Backoff      time.Duration     `mapstructure:"backoff" yaml:"backoff"`
	CardNumber   []CandidateConfig `mapstructure:"card_number" yaml:"card_number"`
	Email        []CandidateConfig `mapstructure:"email" yaml:"email"`
	Phone        []CandidateConfig `mapstructure:"phone" yaml:"phone"`
	Amount       []CandidateConfig `mapstructure:"amount" yaml:"amount"`
	NetworkRadio []CandidateConfig `mapstructure:"network_radio" yaml:"network_radio"`
}

// CandidateConfig is one selector candidate. Every non-empty field narrows the match.
type CandidateConfig struct {
	Tag         string `mapstructure:"tag" yaml:"tag"`
	Type        string `mapstructure:"type" yaml:"type"`
	Match       string `mapstructure:"match" yaml:"match"`
	Placeholder string `mapstructure:"placeholder" yaml:"placeholder"`
	MaxLength   int    `mapstructure:"max_length" yaml:"max_length"`
}

// HumanoidConfig holds the keystroke timing of the input simulator.
type HumanoidConfig struct {
	KeyDelayMin time.Duration `mapstructure:"key_delay_min" yaml:"key_delay_min"`
	KeyDelayMax time.Duration `mapstructure:"key_delay_max" yaml:"key_delay_max"`
}

// FillerConfig controls layout detection, split-box writing and network selection.
type FillerConfig struct {
	SplitBoxThreshold int           `mapstructure:"split_box_threshold" yaml:"split_box_threshold"`
	SplitBoxMaxLength int           `mapstructure:"split_box_max_length" yaml:"split_box_max_length"`
	GroupPause        time.Duration `mapstructure:"group_pause" yaml:"group_pause"`
	VisaPrefix        string        `mapstructure:"visa_prefix" yaml:"visa_prefix"`
	VisaToken         string        `mapstructure:"visa_token" yaml:"visa_token"`
	OtherToken        string        `mapstructure:"other_token" yaml:"other_token"`
}

// PollerConfig configures the alternate-path poller.
type PollerConfig struct {
	Enabled     bool          `mapstructure:"enabled" yaml:"enabled"`
	IntervalMin time.Duration `mapstructure:"interval_min" yaml:"interval_min"`
	IntervalMax time.Duration `mapstructure:"interval_max" yaml:"interval_max"`
	Marker      string        `mapstructure:"marker" yaml:"marker"`
}

// NavigationConfig lists the URI scheme prefixes that hand off to an external app.
type NavigationConfig struct {
	ExternalSchemes    []string `mapstructure:"external_schemes" yaml:"external_schemes"`
	AppNotFoundMessage string   `mapstructure:"app_not_found_message" yaml:"app_not_found_message"`
	// DispatchCommand overrides the OS opener (xdg-open, open, rundll32).
	DispatchCommand string `mapstructure:"dispatch_command" yaml:"dispatch_command"`
}

// CompletionConfig configures success detection.
type CompletionConfig struct {
	SuccessKeyword string `mapstructure:"success_keyword" yaml:"success_keyword"`
}

// DiagnosticsConfig bounds the content-to-host message flow.
type DiagnosticsConfig struct {
	BufferSize int     `mapstructure:"buffer_size" yaml:"buffer_size"`
	RateLimit  float64 `mapstructure:"rate_limit" yaml:"rate_limit"`
	Burst      int     `mapstructure:"burst" yaml:"burst"`
}

// VaultConfig selects the card vault backend.
type VaultConfig struct {
	Backend     string `mapstructure:"backend" yaml:"backend"`
	Path        string `mapstructure:"path" yaml:"path"`
	DatabaseURL string `mapstructure:"database_url" yaml:"database_url"`
	Table       string `mapstructure:"table" yaml:"table"`
}

// InsightsConfig configures the portfolio advisor.
type InsightsConfig struct {
	Model  string `mapstructure:"model" yaml:"model"`
	APIKey string `mapstructure:"api_key" yaml:"api_key"`
}

// NewDefaultConfig creates a configuration populated only with defaults.
func NewDefaultConfig() *Config {
	v := viper.New()
	SetDefaults(v)
	cfg, err := NewConfigFromViper(v)
	if err != nil {
		// Defaults are expected to always validate.
		panic(fmt.Sprintf("default configuration is invalid: %v", err))
	}
	return cfg
}

// SetDefaults initializes default values for various configuration parameters.
func SetDefaults(v *viper.Viper) {
	// Logger
	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.format", "console")
	v.SetDefault("logger.add_source", false)
	v.SetDefault("logger.service_name", "ghostpay")
	v.SetDefault("logger.log_file", "")
	v.SetDefault("logger.max_size", 50)
	v.SetDefault("logger.max_backups", 3)
	v.SetDefault("logger.max_age", 14)
	v.SetDefault("logger.compress", true)
	v.SetDefault("logger.colors.debug", "cyan")
	v.SetDefault("logger.colors.info", "green")
	v.SetDefault("logger.colors.warn", "yellow")
	v.SetDefault("logger.colors.error", "red")

	// Browser
	v.SetDefault("browser.headless", false)
	v.SetDefault("browser.disable_cache", true)
	v.SetDefault("browser.ignore_tls_errors", false)
	v.SetDefault("browser.target_url", "https://pgi.billdesk.com/pgidsk/pgmerc/axiscard/axis_card.jsp")
	v.SetDefault("browser.navigation_timeout", "60s")
	v.SetDefault("browser.settle_delay", "1s")
	v.SetDefault("browser.locale", "en-IN")
	v.SetDefault("browser.timezone", "Asia/Kolkata")
	v.SetDefault("browser.languages", []string{"en-IN", "en"})

	// Locator
	v.SetDefault("locator.max_attempts", 5)
	v.SetDefault("locator.backoff", "500ms")

	// Humanoid
	v.SetDefault("humanoid.key_delay_min", "50ms")
	v.SetDefault("humanoid.key_delay_max", "100ms")

	// Filler
	v.SetDefault("filler.split_box_threshold", 8)
	v.SetDefault("filler.split_box_max_length", 4)
	v.SetDefault("filler.group_pause", "100ms")
	v.SetDefault("filler.visa_prefix", "4")
	v.SetDefault("filler.visa_token", "visa")
	v.SetDefault("filler.other_token", "master")

	// Poller
	v.SetDefault("poller.enabled", true)
	v.SetDefault("poller.interval_min", "2s")
	v.SetDefault("poller.interval_max", "3s")
	v.SetDefault("poller.marker", "UPI")

	// Navigation
	v.SetDefault("navigation.external_schemes", DefaultExternalSchemes())
	v.SetDefault("navigation.app_not_found_message", "App not found")

	// Completion
	v.SetDefault("completion.success_keyword", "success")

	// Diagnostics
	v.SetDefault("diagnostics.buffer_size", 256)
	v.SetDefault("diagnostics.rate_limit", 50.0)
	v.SetDefault("diagnostics.burst", 100)

	// Vault
	v.SetDefault("vault.backend", "file")
	v.SetDefault("vault.path", "~/.ghostpay/vault.json")
	v.SetDefault("vault.table", "ghostpay_kv")

	// Insights
	v.SetDefault("insights.model", "gemini-2.5-flash")
}

// NewConfigFromViper creates a new configuration instance from a viper object.
func NewConfigFromViper(v *viper.Viper) (*Config, error) {
	var cfg Config

	// Bind environment variables for sensitive data
	_ = v.BindEnv("insights.api_key", "GHOSTPAY_GEMINI_API_KEY")
	_ = v.BindEnv("vault.database_url", "GHOSTPAY_DATABASE_URL")

	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	if cfg.InsightsCfg.APIKey == "" {
		cfg.InsightsCfg.APIKey = os.Getenv("GHOSTPAY_GEMINI_API_KEY")
	}

	cfg.applySelectorDefaults()
	if err := cfg.expandPaths(); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}

// applySelectorDefaults fills any role left empty by the config file with the built-in list.
func (c *Config) applySelectorDefaults() {
	d := DefaultSelectors()
	l := &c.LocatorCfg
	if len(l.CardNumber) == 0 {
		l.CardNumber = d.CardNumber
	}
	if len(l.Email) == 0 {
		l.Email = d.Email
	}
	if len(l.Phone) == 0 {
		l.Phone = d.Phone
	}
	if len(l.Amount) == 0 {
		l.Amount = d.Amount
	}
	if len(l.NetworkRadio) == 0 {
		l.NetworkRadio = d.NetworkRadio
	}
}

func (c *Config) expandPaths() error {
	for _, p := range []*string{&c.LoggerCfg.LogFile, &c.BrowserCfg.UserDataDir, &c.VaultCfg.Path} {
		if *p == "" {
			continue
		}
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
	if c.LocatorCfg.MaxAttempts <= 0 {
		return fmt.Errorf("locator.max_attempts must be a positive integer")
	}
	if c.LocatorCfg.Backoff < 0 {
		return fmt.Errorf("locator.backoff must not be negative")
	}
	if c.HumanoidCfg.KeyDelayMin < 0 || c.HumanoidCfg.KeyDelayMax < c.HumanoidCfg.KeyDelayMin {
		return fmt.Errorf("humanoid.key_delay_min must be >= 0 and <= humanoid.key_delay_max")
	}
	if err := c.FillerCfg.Validate(); err != nil {
		return fmt.Errorf("filler configuration invalid: %w", err)
	}
	if err := c.PollerCfg.Validate(); err != nil {
		return fmt.Errorf("poller configuration invalid: %w", err)
	}
	if strings.TrimSpace(c.CompletionCfg.SuccessKeyword) == "" {
		return fmt.Errorf("completion.success_keyword is required")
	}
	for _, s := range c.NavigationCfg.ExternalSchemes {
		if !strings.HasSuffix(s, ":") && !strings.Contains(s, "://") {
			return fmt.Errorf("navigation.external_schemes entry %q must end with ':' or contain '://'", s)
		}
	}
	switch c.VaultCfg.Backend {
	case "memory":
	case "file":
		if c.VaultCfg.Path == "" {
			return fmt.Errorf("vault.path is required for the file backend")
		}
	case "postgres":
		if c.VaultCfg.DatabaseURL == "" {
			return fmt.Errorf("vault.database_url is required for the postgres backend")
		}
	default:
		return fmt.Errorf("vault.backend must be 'memory', 'file' or 'postgres', got %q", c.VaultCfg.Backend)
	}
	return nil
}

// Validate checks the filler settings.
func (f *FillerConfig) Validate() error {
	if f.SplitBoxThreshold <= 0 {
		return fmt.Errorf("split_box_threshold must be positive")
	}
	if f.SplitBoxMaxLength <= 0 {
		return fmt.Errorf("split_box_max_length must be positive")
	}
	if f.VisaPrefix == "" || f.VisaToken == "" || f.OtherToken == "" {
		return fmt.Errorf("visa_prefix, visa_token and other_token are required")
	}
	return nil
}

// Validate checks the poller settings.
func (p *PollerConfig) Validate() error {
	if !p.Enabled {
		return nil
	}
	if p.IntervalMin <= 0 || p.IntervalMax < p.IntervalMin {
		return fmt.Errorf("interval_min must be positive and <= interval_max")
	}
	if p.Marker == "" {
		return fmt.Errorf("marker is required when the poller is enabled")
	}
	return nil
}
