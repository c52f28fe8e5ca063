package config

import (
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration. It is constructed once at
// process start and passed by parameter; core logic never reads the
// environment directly.
type Config struct {
	Store     StoreConfig     `yaml:"store" mapstructure:"store"`
	Edgar     EdgarConfig     `yaml:"edgar" mapstructure:"edgar"`
	Anthropic AnthropicConfig `yaml:"anthropic" mapstructure:"anthropic"`
	Reconcile ReconcileConfig `yaml:"reconcile" mapstructure:"reconcile"`
	Relevance RelevanceConfig `yaml:"relevance" mapstructure:"relevance"`
	Sources   []SourceConfig  `yaml:"sources" mapstructure:"sources"`
	Server    ServerConfig    `yaml:"server" mapstructure:"server"`
	Log       LogConfig       `yaml:"log" mapstructure:"log"`
}

// SourceConfig declares one external dashboard/aggregator to compare
// against. The URL may contain {ticker} and {field} placeholders.
type SourceConfig struct {
	Name   string   `yaml:"name" mapstructure:"name"`
	URL    string   `yaml:"url" mapstructure:"url"`
	Fields []string `yaml:"fields" mapstructure:"fields"`
}

// StoreConfig configures the system-of-record backend.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	Path        string `yaml:"path" mapstructure:"path"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
}

// EdgarConfig configures the EDGAR structured-fact client.
type EdgarConfig struct {
	UserAgent   string  `yaml:"user_agent" mapstructure:"user_agent"`
	BaseURL     string  `yaml:"base_url" mapstructure:"base_url"`
	ArchiveURL  string  `yaml:"archive_url" mapstructure:"archive_url"`
	TimeoutSecs int     `yaml:"timeout_secs" mapstructure:"timeout_secs"`
	RateLimit   float64 `yaml:"rate_limit" mapstructure:"rate_limit"`
	MaxFilings  int     `yaml:"max_filings" mapstructure:"max_filings"`
}

// AnthropicConfig holds Anthropic API settings for the probabilistic extractor.
type AnthropicConfig struct {
	Key       string `yaml:"key" mapstructure:"key"`
	Model     string `yaml:"model" mapstructure:"model"`
	MaxTokens int64  `yaml:"max_tokens" mapstructure:"max_tokens"`
}

// SeverityBands configures deviation thresholds for discrepancy
// classification, as fractions (0.01 = 1%).
type SeverityBands struct {
	Minor    float64 `yaml:"minor" mapstructure:"minor"`
	Moderate float64 `yaml:"moderate" mapstructure:"moderate"`
}

// ReconcileConfig configures the auto-update orchestrator and the comparison
// components. Thresholds differ per field; new fields get explicit bands
// rather than inheriting another field's.
type ReconcileConfig struct {
	MinConfidence        float64                  `yaml:"min_confidence" mapstructure:"min_confidence"`
	MaxChangePct         float64                  `yaml:"max_change_pct" mapstructure:"max_change_pct"`
	CrossValTolerancePct float64                  `yaml:"crossval_tolerance_pct" mapstructure:"crossval_tolerance_pct"`
	CrossValReviewPct    float64                  `yaml:"crossval_review_pct" mapstructure:"crossval_review_pct"`
	SanityCeiling        map[string]float64       `yaml:"sanity_ceiling" mapstructure:"sanity_ceiling"`
	DefaultBands         SeverityBands            `yaml:"default_bands" mapstructure:"default_bands"`
	FieldBands           map[string]SeverityBands `yaml:"field_bands" mapstructure:"field_bands"`
	TickerDelaySecs      int                      `yaml:"ticker_delay_secs" mapstructure:"ticker_delay_secs"`
}

// BandsFor returns the severity bands for a field, falling back to the
// defaults when the field has no override.
func (c ReconcileConfig) BandsFor(field string) SeverityBands {
	if b, ok := c.FieldBands[field]; ok {
		return b
	}
	return c.DefaultBands
}

// RelevanceConfig configures the text relevance extractor.
type RelevanceConfig struct {
	BudgetChars       int `yaml:"budget_chars" mapstructure:"budget_chars"`
	MinSectionChars   int `yaml:"min_section_chars" mapstructure:"min_section_chars"`
	KeywordWindowSize int `yaml:"keyword_window_size" mapstructure:"keyword_window_size"`
}

// ServerConfig configures the read-only status server.
type ServerConfig struct {
	Port int `yaml:"port" mapstructure:"port"`
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
	v.SetEnvPrefix("TREASURY")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.path", "treasury.db")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("server.port", 8080)
	v.SetDefault("edgar.base_url", "https://data.sec.gov")
	v.SetDefault("edgar.archive_url", "https://www.sec.gov")
	v.SetDefault("edgar.max_filings", 3)
	v.SetDefault("edgar.user_agent", "treasury-cli ops@treasurylens.io")
	v.SetDefault("edgar.timeout_secs", 30)
	v.SetDefault("edgar.rate_limit", 10)
	v.SetDefault("anthropic.model", "claude-sonnet-4-5-20250929")
	v.SetDefault("anthropic.max_tokens", 1024)
	v.SetDefault("reconcile.min_confidence", 0.7)
	v.SetDefault("reconcile.max_change_pct", 0.5)
	v.SetDefault("reconcile.crossval_tolerance_pct", 0.05)
	v.SetDefault("reconcile.crossval_review_pct", 0.20)
	v.SetDefault("reconcile.default_bands.minor", 0.01)
	v.SetDefault("reconcile.default_bands.moderate", 0.05)
	v.SetDefault("reconcile.field_bands.shares_outstanding.minor", 0.005)
	v.SetDefault("reconcile.field_bands.shares_outstanding.moderate", 0.02)
	v.SetDefault("reconcile.sanity_ceiling.crypto_holdings", 5000000)
	v.SetDefault("reconcile.sanity_ceiling.shares_outstanding", 50000000000)
	v.SetDefault("reconcile.ticker_delay_secs", 2)
	v.SetDefault("relevance.budget_chars", 20000)
	v.SetDefault("relevance.min_section_chars", 200)
	v.SetDefault("relevance.keyword_window_size", 800)

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

// Validate checks settings that would otherwise fail deep inside a batch
// run. Collected into one error so a bad config surfaces everything at once.
func (c *Config) Validate() error {
	var problems []string

	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		problems = append(problems, "server.port must be between 1 and 65535")
	}
	if c.Store.Driver == "postgres" && c.Store.DatabaseURL == "" {
		problems = append(problems, "store.database_url is required for the postgres driver")
	}
	if c.Reconcile.MinConfidence < 0 || c.Reconcile.MinConfidence > 1 {
		problems = append(problems, "reconcile.min_confidence must be between 0 and 1")
	}
	if c.Reconcile.MaxChangePct <= 0 {
		problems = append(problems, "reconcile.max_change_pct must be > 0")
	}
	if c.Reconcile.CrossValTolerancePct > c.Reconcile.CrossValReviewPct {
		problems = append(problems, "reconcile.crossval_tolerance_pct must not exceed crossval_review_pct")
	}
	bands := append([]SeverityBands{c.Reconcile.DefaultBands}, mapValues(c.Reconcile.FieldBands)...)
	for _, b := range bands {
		if b.Minor > b.Moderate {
			problems = append(problems, "severity bands: minor must not exceed moderate")
			break
		}
	}
	if c.Reconcile.TickerDelaySecs < 0 {
		problems = append(problems, "reconcile.ticker_delay_secs must be >= 0")
	}
	for _, src := range c.Sources {
		if src.Name == "" || src.URL == "" {
			problems = append(problems, "sources entries need both name and url")
			break
		}
	}

	if len(problems) > 0 {
		return eris.New("invalid config: " + strings.Join(problems, "; "))
	}
	return nil
}

func mapValues(m map[string]SeverityBands) []SeverityBands {
	out := make([]SeverityBands, 0, len(m))
	for _, v := range m {
		out = append(out, v)
	}
	return out
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
