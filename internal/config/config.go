package config

import (
	"errors"
	"io/fs"
	"strings"

	"github.com/joho/godotenv"
	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	Store     StoreConfig     `yaml:"store" mapstructure:"store"`
	Fetch     FetchConfig     `yaml:"fetch" mapstructure:"fetch"`
	Selectors SelectorsConfig `yaml:"selectors" mapstructure:"selectors"`
	Anthropic AnthropicConfig `yaml:"anthropic" mapstructure:"anthropic"`
	Analysis  AnalysisConfig  `yaml:"analysis" mapstructure:"analysis"`
	Server    ServerConfig    `yaml:"server" mapstructure:"server"`
	Log       LogConfig       `yaml:"log" mapstructure:"log"`
}

// StoreConfig configures the persistence backend.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	OutputDir   string `yaml:"output_dir" mapstructure:"output_dir"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
}

// FetchConfig configures outbound page and image requests.
type FetchConfig struct {
	BaseURL           string  `yaml:"base_url" mapstructure:"base_url"`
	UserAgent         string  `yaml:"user_agent" mapstructure:"user_agent"`
	AcceptLanguage    string  `yaml:"accept_language" mapstructure:"accept_language"`
	Charset           string  `yaml:"charset" mapstructure:"charset"`
	TimeoutSecs       int     `yaml:"timeout_secs" mapstructure:"timeout_secs"`
	RequestsPerSecond float64 `yaml:"requests_per_second" mapstructure:"requests_per_second"`
}

// SelectorsConfig points at an optional selector override file.
type SelectorsConfig struct {
	Path string `yaml:"path" mapstructure:"path"`
}

// AnthropicConfig holds Anthropic API settings.
type AnthropicConfig struct {
	Key       string `yaml:"key" mapstructure:"key"`
	BaseURL   string `yaml:"base_url" mapstructure:"base_url"`
	Model     string `yaml:"model" mapstructure:"model"`
	MaxTokens int64  `yaml:"max_tokens" mapstructure:"max_tokens"`
}

// AnalysisConfig selects the conversation backend.
type AnalysisConfig struct {
	Backend   string `yaml:"backend" mapstructure:"backend"`
	MaxImages int    `yaml:"max_images" mapstructure:"max_images"`
}

// ServerConfig configures the HTTP server.
type ServerConfig struct {
	Port        int      `yaml:"port" mapstructure:"port"`
	CORSOrigins []string `yaml:"cors_origins" mapstructure:"cors_origins"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Load reads configuration from file and environment. A .env file in the
// working directory, if present, is loaded into the environment first.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, eris.Wrap(err, "config: load .env")
	}

	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("CLASSIFIEDS")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults. Every key needs one so AutomaticEnv can bind it.
	v.SetDefault("store.driver", "file")
	v.SetDefault("store.output_dir", "output")
	v.SetDefault("store.database_url", "")
	v.SetDefault("fetch.base_url", "https://www.kleinanzeigen.de")
	// Empty header and charset values fall back to the fetcher's built-ins.
	v.SetDefault("fetch.user_agent", "")
	v.SetDefault("fetch.accept_language", "")
	v.SetDefault("fetch.charset", "")
	v.SetDefault("fetch.timeout_secs", 0)
	v.SetDefault("fetch.requests_per_second", 2.0)
	v.SetDefault("selectors.path", "")
	v.SetDefault("anthropic.key", "")
	v.SetDefault("anthropic.base_url", "")
	v.SetDefault("anthropic.model", "claude-sonnet-4-5-20250929")
	v.SetDefault("anthropic.max_tokens", 4096)
	v.SetDefault("analysis.backend", "anthropic")
	v.SetDefault("analysis.max_images", 3)
	v.SetDefault("server.port", 5000)
	v.SetDefault("server.cors_origins", []string{"*"})
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

// Validate checks the settings a command mode depends on. Modes are
// "scrape", "analyze", and "serve"; serve needs everything.
func (c *Config) Validate(mode string) error {
	var errs []string

	switch mode {
	case "scrape":
		errs = append(errs, c.validateScrape()...)
	case "analyze":
		errs = append(errs, c.validateAnalyze()...)
	case "serve":
		errs = append(errs, c.validateScrape()...)
		errs = append(errs, c.validateAnalyze()...)
		if c.Server.Port <= 0 {
			errs = append(errs, "server.port must be > 0")
		}
	default:
		return eris.Errorf("config: unknown mode %q", mode)
	}

	if c.Store.Driver != "file" && c.Store.Driver != "sqlite" {
		errs = append(errs, "store.driver must be file or sqlite")
	}
	if c.Store.OutputDir == "" {
		errs = append(errs, "store.output_dir is required")
	}

	if len(errs) > 0 {
		return eris.Errorf("config: %s", strings.Join(errs, "; "))
	}
	return nil
}

func (c *Config) validateScrape() []string {
	var errs []string
	if c.Fetch.BaseURL == "" {
		errs = append(errs, "fetch.base_url is required")
	}
	if c.Fetch.RequestsPerSecond < 0 {
		errs = append(errs, "fetch.requests_per_second must be >= 0")
	}
	if c.Fetch.TimeoutSecs < 0 {
		errs = append(errs, "fetch.timeout_secs must be >= 0")
	}
	return errs
}

func (c *Config) validateAnalyze() []string {
	var errs []string
	switch c.Analysis.Backend {
	case "anthropic":
		if c.Anthropic.Key == "" {
			errs = append(errs, "anthropic.key is required")
		}
		if c.Anthropic.Model == "" {
			errs = append(errs, "anthropic.model is required")
		}
		if c.Anthropic.MaxTokens <= 0 {
			errs = append(errs, "anthropic.max_tokens must be > 0")
		}
	case "mock":
	default:
		errs = append(errs, "analysis.backend must be anthropic or mock")
	}
	if c.Analysis.MaxImages < 0 {
		errs = append(errs, "analysis.max_images must be >= 0")
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
