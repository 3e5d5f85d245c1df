package config

import (
	"fmt"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/sells-group/coding-eval/internal/model"
)

// Config holds the full application configuration.
type Config struct {
	Store     StoreConfig     `yaml:"store" mapstructure:"store"`
	Anthropic AnthropicConfig `yaml:"anthropic" mapstructure:"anthropic"`
	Eval      EvalConfig      `yaml:"eval" mapstructure:"eval"`
	Ingest    IngestConfig    `yaml:"ingest" mapstructure:"ingest"`
	Breaker   BreakerConfig   `yaml:"breaker" mapstructure:"breaker"`
	Server    ServerConfig    `yaml:"server" mapstructure:"server"`
	Log       LogConfig       `yaml:"log" mapstructure:"log"`
}

// StoreConfig configures the database backend.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
	MaxConns    int32  `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns    int32  `yaml:"min_conns" mapstructure:"min_conns"`
}

// AnthropicConfig holds Anthropic API settings.
type AnthropicConfig struct {
	Key               string `yaml:"key" mapstructure:"key"`
	Model             string `yaml:"model" mapstructure:"model"`
	ExtractModel      string `yaml:"extract_model" mapstructure:"extract_model"`
	MaxTokens         int64  `yaml:"max_tokens" mapstructure:"max_tokens"`
	RequestsPerMinute int    `yaml:"requests_per_minute" mapstructure:"requests_per_minute"`
	BaseURL           string `yaml:"base_url" mapstructure:"base_url"`
}

// EvalConfig configures test runs and improvement payloads.
type EvalConfig struct {
	Concurrency  int `yaml:"concurrency" mapstructure:"concurrency"`
	DetailRuns   int `yaml:"detail_runs" mapstructure:"detail_runs"`
	ExcerptChars int `yaml:"excerpt_chars" mapstructure:"excerpt_chars"`
}

// IngestConfig configures note ingestion.
type IngestConfig struct {
	InboxDir   string `yaml:"inbox_dir" mapstructure:"inbox_dir"`
	Charset    string `yaml:"charset" mapstructure:"charset"`
	DebounceMs int    `yaml:"debounce_ms" mapstructure:"debounce_ms"`
}

// BreakerConfig configures the persistence circuit breaker.
type BreakerConfig struct {
	FailureThreshold int `yaml:"failure_threshold" mapstructure:"failure_threshold"`
	ResetTimeoutSecs int `yaml:"reset_timeout_secs" mapstructure:"reset_timeout_secs"`
}

// ServerConfig configures the REST server.
type ServerConfig struct {
	Port           int      `yaml:"port" mapstructure:"port"`
	AllowedOrigins []string `yaml:"allowed_origins" mapstructure:"allowed_origins"`
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
	v.SetEnvPrefix("CODEEVAL")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.database_url", "coding-eval.db")
	v.SetDefault("store.max_conns", 4)
	v.SetDefault("store.min_conns", 1)
	v.SetDefault("anthropic.key", "")
	v.SetDefault("anthropic.model", "claude-sonnet-4-5-20250929")
	v.SetDefault("anthropic.extract_model", "claude-haiku-4-5-20251001")
	v.SetDefault("anthropic.max_tokens", 4096)
	v.SetDefault("anthropic.requests_per_minute", 50)
	v.SetDefault("anthropic.base_url", "")
	v.SetDefault("eval.concurrency", 4)
	v.SetDefault("eval.detail_runs", 10)
	v.SetDefault("eval.excerpt_chars", 2000)
	v.SetDefault("ingest.inbox_dir", "inbox")
	v.SetDefault("ingest.charset", "utf-8")
	v.SetDefault("ingest.debounce_ms", 500)
	v.SetDefault("breaker.failure_threshold", 3)
	v.SetDefault("breaker.reset_timeout_secs", 15)
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.allowed_origins", []string{"*"})
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

// Validate reports the settings a command family needs but lacks. Modes:
// "store" (any command touching persistence), "model" (model calls),
// "serve" (REST server, implies store) and "eval" (test runs, implies store
// and model).
func (c *Config) Validate(mode string) error {
	var problems []string
	missingKey := false

	checkStore := func() {
		switch c.Store.Driver {
		case "sqlite", "postgres":
			if c.Store.DatabaseURL == "" {
				problems = append(problems, "store.database_url is required")
			}
		case "memory":
		default:
			problems = append(problems, fmt.Sprintf("store.driver %q must be sqlite, postgres or memory", c.Store.Driver))
		}
		if c.Breaker.FailureThreshold < 1 {
			problems = append(problems, "breaker.failure_threshold must be >= 1")
		}
	}
	checkModel := func() {
		if strings.TrimSpace(c.Anthropic.Key) == "" {
			missingKey = true
			problems = append(problems, "anthropic.key is required")
		}
	}
	checkEval := func() {
		if c.Eval.Concurrency < 1 || c.Eval.Concurrency > 32 {
			problems = append(problems, "eval.concurrency must be between 1 and 32")
		}
		if c.Eval.DetailRuns < 1 {
			problems = append(problems, "eval.detail_runs must be >= 1")
		}
		if c.Eval.ExcerptChars < 1 {
			problems = append(problems, "eval.excerpt_chars must be >= 1")
		}
	}

	switch mode {
	case "store":
		checkStore()
	case "model":
		checkModel()
	case "serve":
		checkStore()
		checkEval()
		if c.Server.Port <= 0 {
			problems = append(problems, "server.port must be > 0")
		}
	case "eval":
		checkStore()
		checkModel()
		checkEval()
	default:
		return eris.Errorf("config: unknown mode %q", mode)
	}

	if len(problems) == 0 {
		return nil
	}
	msg := "config: " + strings.Join(problems, "; ")
	if missingKey {
		return model.Tag(model.ErrMissingCredential, nil, msg)
	}
	return eris.New(msg)
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
