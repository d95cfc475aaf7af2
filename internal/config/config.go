package config

import (
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	Browser    BrowserConfig    `yaml:"browser" mapstructure:"browser"`
	Scrape     ScrapeConfig     `yaml:"scrape" mapstructure:"scrape"`
	Store      StoreConfig      `yaml:"store" mapstructure:"store"`
	Server     ServerConfig     `yaml:"server" mapstructure:"server"`
	Monitoring MonitoringConfig `yaml:"monitoring" mapstructure:"monitoring"`
	Log        LogConfig        `yaml:"log" mapstructure:"log"`
}

// BrowserConfig configures the headless Chrome session.
type BrowserConfig struct {
	Headless  bool   `yaml:"headless" mapstructure:"headless"`
	ExecPath  string `yaml:"exec_path" mapstructure:"exec_path"`
	UserAgent string `yaml:"user_agent" mapstructure:"user_agent"`
	SettleMS  int    `yaml:"settle_ms" mapstructure:"settle_ms"`
}

// Settle is the post-click delay before the page is read.
func (c BrowserConfig) Settle() time.Duration {
	return time.Duration(c.SettleMS) * time.Millisecond
}

// ScrapeConfig configures the extraction steps.
type ScrapeConfig struct {
	NewsWaitMS       int    `yaml:"news_wait_ms" mapstructure:"news_wait_ms"`
	StepTimeoutSecs  int    `yaml:"step_timeout_secs" mapstructure:"step_timeout_secs"`
	FactsTimeoutSecs int    `yaml:"facts_timeout_secs" mapstructure:"facts_timeout_secs"`
	FactsRetries     int    `yaml:"facts_retries" mapstructure:"facts_retries"`
	UserAgent        string `yaml:"user_agent" mapstructure:"user_agent"`
}

// NewsWait bounds the wait for the news list.
func (c ScrapeConfig) NewsWait() time.Duration {
	return time.Duration(c.NewsWaitMS) * time.Millisecond
}

// StepTimeout bounds each step; zero means unbounded.
func (c ScrapeConfig) StepTimeout() time.Duration {
	return time.Duration(c.StepTimeoutSecs) * time.Second
}

// FactsTimeout bounds the facts page download.
func (c ScrapeConfig) FactsTimeout() time.Duration {
	return time.Duration(c.FactsTimeoutSecs) * time.Second
}

// StoreConfig configures the snapshot database backend.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
	// MaxConns and MinConns size the postgres pool; sqlite ignores them.
	MaxConns int32 `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns int32 `yaml:"min_conns" mapstructure:"min_conns"`
}

// ServerConfig configures the HTTP API server.
type ServerConfig struct {
	Port int `yaml:"port" mapstructure:"port"`
}

// MonitoringConfig configures scrape health checks and alerting.
type MonitoringConfig struct {
	// CheckIntervalSecs enables the background checker in serve when > 0.
	CheckIntervalSecs    int     `yaml:"check_interval_secs" mapstructure:"check_interval_secs"`
	LookbackWindowHours  int     `yaml:"lookback_window_hours" mapstructure:"lookback_window_hours"`
	FailureRateThreshold float64 `yaml:"failure_rate_threshold" mapstructure:"failure_rate_threshold"`
	MinSamples           int     `yaml:"min_samples" mapstructure:"min_samples"`
	StaleAfterHours      int     `yaml:"stale_after_hours" mapstructure:"stale_after_hours"`
	WebhookURL           string  `yaml:"webhook_url" mapstructure:"webhook_url"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("MARS")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("browser.headless", true)
	v.SetDefault("browser.exec_path", "")
	v.SetDefault("browser.user_agent", "")
	v.SetDefault("browser.settle_ms", 500)
	v.SetDefault("scrape.news_wait_ms", 1000)
	v.SetDefault("scrape.step_timeout_secs", 0)
	v.SetDefault("scrape.facts_timeout_secs", 30)
	v.SetDefault("scrape.facts_retries", 1)
	v.SetDefault("scrape.user_agent", "mars-cli/1.0")
	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.database_url", "mars.db")
	v.SetDefault("store.max_conns", 4)
	v.SetDefault("store.min_conns", 1)
	v.SetDefault("server.port", 8080)
	v.SetDefault("monitoring.check_interval_secs", 0)
	v.SetDefault("monitoring.lookback_window_hours", 24)
	v.SetDefault("monitoring.failure_rate_threshold", 0.5)
	v.SetDefault("monitoring.min_samples", 3)
	v.SetDefault("monitoring.stale_after_hours", 0)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	return &cfg, nil
}

// Validate checks the settings a command needs. mode is one of "scrape",
// "serve" or "snapshots". save reports whether the command persists
// snapshots, which makes the store section required for "scrape".
func (c *Config) Validate(mode string, save bool) error {
	var errs []string

	switch mode {
	case "scrape":
		errs = append(errs, c.validateScrape()...)
		if save {
			errs = append(errs, c.validateStore()...)
		}
	case "serve":
		errs = append(errs, c.validateScrape()...)
		errs = append(errs, c.validateStore()...)
		if c.Server.Port <= 0 || c.Server.Port > 65535 {
			errs = append(errs, "server.port must be > 0 and <= 65535")
		}
		errs = append(errs, c.validateMonitoring()...)
	case "snapshots":
		errs = append(errs, c.validateStore()...)
		errs = append(errs, c.validateMonitoring()...)
	default:
		return eris.Errorf("config: unknown mode %q", mode)
	}

	if len(errs) > 0 {
		return eris.Errorf("config: %s", strings.Join(errs, "; "))
	}
	return nil
}

func (c *Config) validateScrape() []string {
	var errs []string
	if c.Scrape.NewsWaitMS < 0 {
		errs = append(errs, "scrape.news_wait_ms must be >= 0")
	}
	if c.Scrape.StepTimeoutSecs < 0 {
		errs = append(errs, "scrape.step_timeout_secs must be >= 0")
	}
	if c.Scrape.FactsTimeoutSecs <= 0 {
		errs = append(errs, "scrape.facts_timeout_secs must be > 0")
	}
	if c.Scrape.FactsRetries < 1 {
		errs = append(errs, "scrape.facts_retries must be >= 1")
	}
	if c.Browser.SettleMS < 0 {
		errs = append(errs, "browser.settle_ms must be >= 0")
	}
	return errs
}

func (c *Config) validateStore() []string {
	var errs []string
	switch c.Store.Driver {
	case "sqlite":
		if c.Store.DatabaseURL == "" {
			errs = append(errs, "store.database_url is required")
		}
	case "postgres":
		if !strings.HasPrefix(c.Store.DatabaseURL, "postgres://") &&
			!strings.HasPrefix(c.Store.DatabaseURL, "postgresql://") {
			errs = append(errs, "store.database_url must be a postgres:// URL for the postgres driver")
		}
		if c.Store.MaxConns < 0 || c.Store.MinConns < 0 {
			errs = append(errs, "store.max_conns and store.min_conns must be >= 0")
		} else if c.Store.MaxConns > 0 && c.Store.MinConns > c.Store.MaxConns {
			errs = append(errs, "store.min_conns must not exceed store.max_conns")
		}
	default:
		errs = append(errs, "store.driver must be sqlite or postgres")
	}
	return errs
}

func (c *Config) validateMonitoring() []string {
	var errs []string
	m := c.Monitoring
	if m.CheckIntervalSecs < 0 {
		errs = append(errs, "monitoring.check_interval_secs must be >= 0")
	}
	if m.LookbackWindowHours <= 0 {
		errs = append(errs, "monitoring.lookback_window_hours must be > 0")
	}
	if m.FailureRateThreshold < 0 || m.FailureRateThreshold > 1 {
		errs = append(errs, "monitoring.failure_rate_threshold must be between 0 and 1")
	}
	if m.MinSamples < 1 {
		errs = append(errs, "monitoring.min_samples must be >= 1")
	}
	if m.StaleAfterHours < 0 {
		errs = append(errs, "monitoring.stale_after_hours must be >= 0")
	}
	return errs
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}
