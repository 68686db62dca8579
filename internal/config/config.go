package config

import (
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	HubSpot   HubSpotConfig   `yaml:"hubspot" mapstructure:"hubspot"`
	Email     EmailConfig     `yaml:"email" mapstructure:"email"`
	Report    ReportConfig    `yaml:"report" mapstructure:"report"`
	Fetch     FetchConfig     `yaml:"fetch" mapstructure:"fetch"`
	Store     StoreConfig     `yaml:"store" mapstructure:"store"`
	Anthropic AnthropicConfig `yaml:"anthropic" mapstructure:"anthropic"`
	Server    ServerConfig    `yaml:"server" mapstructure:"server"`
	Log       LogConfig       `yaml:"log" mapstructure:"log"`
}

// HubSpotConfig holds HubSpot API credentials and limits.
type HubSpotConfig struct {
	Token            string  `yaml:"token" mapstructure:"token"`
	BaseURL          string  `yaml:"base_url" mapstructure:"base_url"`
	RequestsPerSec   float64 `yaml:"requests_per_sec" mapstructure:"requests_per_sec"`
	TimeoutSecs      int     `yaml:"timeout_secs" mapstructure:"timeout_secs"`
	MaxRetries       int     `yaml:"max_retries" mapstructure:"max_retries"`
	FailureThreshold int     `yaml:"failure_threshold" mapstructure:"failure_threshold"`
}

// EmailConfig holds SMTP delivery settings.
type EmailConfig struct {
	Username    string `yaml:"username" mapstructure:"username"`
	Password    string `yaml:"password" mapstructure:"password"`
	SMTPHost    string `yaml:"smtp_host" mapstructure:"smtp_host"`
	SMTPPort    int    `yaml:"smtp_port" mapstructure:"smtp_port"`
	FromName    string `yaml:"from_name" mapstructure:"from_name"`
	TimeoutSecs int    `yaml:"timeout_secs" mapstructure:"timeout_secs"`
	RetryDelay  int    `yaml:"retry_delay_secs" mapstructure:"retry_delay_secs"`
}

// ReportConfig holds recipient policy defaults and attachment format.
// A policy file given on the command line overrides the recipient lists.
type ReportConfig struct {
	SummaryRecipients []string `yaml:"summary_recipients" mapstructure:"summary_recipients"`
	ExcludeOwners     []string `yaml:"exclude_owners" mapstructure:"exclude_owners"`
	IgnoredDealstages []string `yaml:"ignored_dealstages" mapstructure:"ignored_dealstages"`
	Format            string   `yaml:"format" mapstructure:"format"`
	DealSource        string   `yaml:"deal_source" mapstructure:"deal_source"`
}

// FetchConfig bounds concurrent per-deal lookups.
type FetchConfig struct {
	MaxConcurrentDeals int `yaml:"max_concurrent_deals" mapstructure:"max_concurrent_deals"`
	PageSize           int `yaml:"page_size" mapstructure:"page_size"`
}

// StoreConfig configures the run-history database backend.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
}

// AnthropicConfig enables the optional AI-written summary narrative.
// An empty key disables it.
type AnthropicConfig struct {
	Key       string `yaml:"key" mapstructure:"key"`
	Model     string `yaml:"model" mapstructure:"model"`
	MaxTokens int64  `yaml:"max_tokens" mapstructure:"max_tokens"`
}

// ServerConfig configures the trigger server.
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
	v.SetEnvPrefix("DEALPULSE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("hubspot.base_url", "https://api.hubapi.com")
	v.SetDefault("hubspot.requests_per_sec", 4.0)
	v.SetDefault("hubspot.timeout_secs", 30)
	v.SetDefault("hubspot.max_retries", 3)
	v.SetDefault("hubspot.failure_threshold", 5)
	v.SetDefault("email.smtp_host", "smtp.gmail.com")
	v.SetDefault("email.smtp_port", 587)
	v.SetDefault("email.from_name", "Prozo Performance Manager")
	v.SetDefault("email.timeout_secs", 30)
	v.SetDefault("email.retry_delay_secs", 5)
	v.SetDefault("report.format", "csv")
	v.SetDefault("report.deal_source", "Marketing")
	v.SetDefault("fetch.max_concurrent_deals", 5)
	v.SetDefault("fetch.page_size", 100)
	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.database_url", "dealpulse.db")
	v.SetDefault("anthropic.model", "claude-haiku-4-5-20251001")
	v.SetDefault("anthropic.max_tokens", 512)
	v.SetDefault("server.port", 5000)
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
