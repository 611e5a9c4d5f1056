package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"go.uber.org/zap/zapcore"
	"gopkg.in/yaml.v3"

	"MarketLens/internal/market"
	"MarketLens/internal/model"
)

// DefaultPath is read when CONFIG_PATH is unset.
const DefaultPath = "configs/config.yaml"

// EnvPrefix prefixes every environment override, e.g. MARKETLENS_UPSTREAM_BASE_URL.
// The bare SQLITE_PATH is also honoured.
const EnvPrefix = "MARKETLENS"

// Config holds all application configuration.
type Config struct {
	Upstream struct {
		Provider   string        `yaml:"provider" split_words:"true"` // yahoo or mock
		BaseURL    string        `yaml:"base_url" split_words:"true"`
		SessionURL string        `yaml:"session_url" split_words:"true"`
		Timeout    time.Duration `yaml:"timeout" split_words:"true"`
		RateLimit  float64       `yaml:"rate_limit" split_words:"true"` // requests per second, <0 disables
		Burst      int           `yaml:"burst" split_words:"true"`
		Proxy      string        `yaml:"proxy" split_words:"true"`
	} `yaml:"upstream"`
	Orchestrator struct {
		Workers     int           `yaml:"workers" split_words:"true"`
		CallTimeout time.Duration `yaml:"call_timeout" split_words:"true"`
		BatchSize   int           `yaml:"batch_size" split_words:"true"`
		HistoryDays int           `yaml:"history_days" split_words:"true"`
	} `yaml:"orchestrator"`
	Cache struct {
		TwentyFourHourTTL time.Duration     `yaml:"twenty_four_hour_ttl" split_words:"true"`
		OpenSessionTTL    time.Duration     `yaml:"open_session_ttl" split_words:"true"`
		Classes           map[string]string `yaml:"classes" split_words:"true"` // symbol -> continuous|24h|derivative
	} `yaml:"cache"`
	Market struct {
		Timezone string   `yaml:"timezone" split_words:"true"`
		Open     string   `yaml:"open" split_words:"true"`
		Close    string   `yaml:"close" split_words:"true"`
		Holidays []string `yaml:"holidays" split_words:"true"` // extra closures, YYYY-MM-DD
	} `yaml:"market"`
	Options struct {
		RiskFreeRate    float64 `yaml:"risk_free_rate" split_words:"true"`
		TermExpirations int     `yaml:"term_expirations" split_words:"true"`
		SkewDistance    float64 `yaml:"skew_distance" split_words:"true"`
		TopStrikes      int     `yaml:"top_strikes" split_words:"true"`
	} `yaml:"options"`
	Logging struct {
		Level  string `yaml:"level" split_words:"true"`
		Format string `yaml:"format" split_words:"true"` // json or console
	} `yaml:"logging"`
	Database struct {
		Driver     string `yaml:"driver" split_words:"true"` // sqlite or none
		SQLitePath string `yaml:"sqlite_path" envconfig:"SQLITE_PATH"`
	} `yaml:"database"`
	Schedule struct {
		WarmCron  string `yaml:"warm_cron" split_words:"true"`
		StatsCron string `yaml:"stats_cron" split_words:"true"`
	} `yaml:"schedule"`
}

// Path returns the config file location from CONFIG_PATH or DefaultPath.
func Path() string {
	if v := os.Getenv("CONFIG_PATH"); v != "" {
		return v
	}
	return DefaultPath
}

// Load reads config from a YAML file, then applies environment variable overrides
// (a .env file in the working directory is honoured), then fills defaults.
func Load(path string) (*Config, error) {
	cfg := &Config{}

	data, err := os.ReadFile(path)
	if err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("read config: %w", err)
	}
	if len(data) > 0 {
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	// Environment variable overrides
	_ = godotenv.Load()
	if err := envconfig.Process(EnvPrefix, cfg); err != nil {
		return nil, fmt.Errorf("env overrides: %w", err)
	}
	if cfg.Upstream.Proxy == "" {
		cfg.Upstream.Proxy = os.Getenv("HTTPS_PROXY")
	}

	cfg.applyDefaults()
	return cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Upstream.Provider == "" {
		c.Upstream.Provider = "yahoo"
	}
	if c.Upstream.Timeout == 0 {
		c.Upstream.Timeout = 30 * time.Second
	}
	if c.Upstream.RateLimit == 0 {
		c.Upstream.RateLimit = 5
	}
	if c.Upstream.Burst == 0 {
		c.Upstream.Burst = 5
	}
	if c.Orchestrator.Workers == 0 {
		c.Orchestrator.Workers = 10
	}
	if c.Orchestrator.CallTimeout == 0 {
		c.Orchestrator.CallTimeout = 10 * time.Second
	}
	if c.Orchestrator.BatchSize == 0 {
		c.Orchestrator.BatchSize = 25
	}
	if c.Orchestrator.HistoryDays == 0 {
		c.Orchestrator.HistoryDays = 400
	}
	if c.Cache.TwentyFourHourTTL == 0 {
		c.Cache.TwentyFourHourTTL = 2 * time.Minute
	}
	if c.Market.Timezone == "" {
		c.Market.Timezone = "America/New_York"
	}
	if c.Market.Open == "" {
		c.Market.Open = "09:30"
	}
	if c.Market.Close == "" {
		c.Market.Close = "16:00"
	}
	if c.Options.RiskFreeRate == 0 {
		c.Options.RiskFreeRate = 0.045
	}
	if c.Options.TermExpirations == 0 {
		c.Options.TermExpirations = 3
	}
	if c.Options.SkewDistance == 0 {
		c.Options.SkewDistance = 0.05
	}
	if c.Options.TopStrikes == 0 {
		c.Options.TopStrikes = 5
	}
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	if c.Logging.Format == "" {
		c.Logging.Format = "json"
	}
	if c.Database.Driver == "" {
		c.Database.Driver = "sqlite"
	}
	if c.Database.SQLitePath == "" {
		c.Database.SQLitePath = "data/marketlens.db"
	}
	if c.Schedule.WarmCron == "" {
		c.Schedule.WarmCron = "0 */5 * * * *"
	}
	if c.Schedule.StatsCron == "" {
		c.Schedule.StatsCron = "0 0 * * * *"
	}
}

// Validate checks that every field is usable. All problems are reported together.
func (c *Config) Validate() error {
	var errs []error
	switch c.Upstream.Provider {
	case "yahoo", "mock":
	default:
		errs = append(errs, fmt.Errorf("upstream.provider %q: want yahoo or mock", c.Upstream.Provider))
	}
	if c.Upstream.Timeout <= 0 {
		errs = append(errs, fmt.Errorf("upstream.timeout must be positive"))
	}
	if c.Orchestrator.Workers <= 0 {
		errs = append(errs, fmt.Errorf("orchestrator.workers must be positive"))
	}
	if c.Orchestrator.CallTimeout <= 0 {
		errs = append(errs, fmt.Errorf("orchestrator.call_timeout must be positive"))
	}
	if c.Orchestrator.BatchSize <= 0 {
		errs = append(errs, fmt.Errorf("orchestrator.batch_size must be positive"))
	}
	if c.Orchestrator.HistoryDays < 366 {
		errs = append(errs, fmt.Errorf("orchestrator.history_days %d: need at least a year", c.Orchestrator.HistoryDays))
	}
	if c.Cache.TwentyFourHourTTL <= 0 {
		errs = append(errs, fmt.Errorf("cache.twenty_four_hour_ttl must be positive"))
	}
	if c.Cache.OpenSessionTTL < 0 {
		errs = append(errs, fmt.Errorf("cache.open_session_ttl must not be negative"))
	}
	if _, err := c.SessionClasses(); err != nil {
		errs = append(errs, err)
	}
	if _, err := c.Clock(); err != nil {
		errs = append(errs, fmt.Errorf("market: %w", err))
	}
	if c.Options.TermExpirations < 0 {
		errs = append(errs, fmt.Errorf("options.term_expirations must not be negative"))
	}
	if c.Options.SkewDistance <= 0 || c.Options.SkewDistance >= 1 {
		errs = append(errs, fmt.Errorf("options.skew_distance %v: want 0 < d < 1", c.Options.SkewDistance))
	}
	if _, err := zapcore.ParseLevel(c.Logging.Level); err != nil {
		errs = append(errs, fmt.Errorf("logging.level: %w", err))
	}
	switch c.Logging.Format {
	case "json", "console":
	default:
		errs = append(errs, fmt.Errorf("logging.format %q: want json or console", c.Logging.Format))
	}
	switch c.Database.Driver {
	case "sqlite", "none":
	default:
		errs = append(errs, fmt.Errorf("database.driver %q: want sqlite or none", c.Database.Driver))
	}
	return errors.Join(errs...)
}

// SessionClasses parses cache.classes into classifier overrides.
func (c *Config) SessionClasses() (map[string]model.SessionClass, error) {
	out := make(map[string]model.SessionClass, len(c.Cache.Classes))
	for sym, name := range c.Cache.Classes {
		class, ok := model.ParseSessionClass(strings.ToLower(strings.TrimSpace(name)))
		if !ok {
			return nil, fmt.Errorf("cache.classes[%s] %q: want continuous, 24h or derivative", sym, name)
		}
		out[sym] = class
	}
	return out, nil
}

// Clock builds the exchange clock from the market section.
func (c *Config) Clock() (*market.Clock, error) {
	for _, d := range c.Market.Holidays {
		if _, err := time.Parse(time.DateOnly, d); err != nil {
			return nil, fmt.Errorf("holiday %q: want YYYY-MM-DD", d)
		}
	}
	return market.NewClock(c.Market.Timezone, c.Market.Open, c.Market.Close, market.NewNYSECalendar(c.Market.Holidays...))
}
