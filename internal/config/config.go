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
	Judge     JudgeConfig     `yaml:"judge" mapstructure:"judge"`
	OpenAI    OpenAIConfig    `yaml:"openai" mapstructure:"openai"`
	Anthropic AnthropicConfig `yaml:"anthropic" mapstructure:"anthropic"`
	Batch     BatchConfig     `yaml:"batch" mapstructure:"batch"`
	Dataset   DatasetConfig   `yaml:"dataset" mapstructure:"dataset"`
	Harness   HarnessConfig   `yaml:"harness" mapstructure:"harness"`
	Server    ServerConfig    `yaml:"server" mapstructure:"server"`
	Log       LogConfig       `yaml:"log" mapstructure:"log"`
}

// JudgeConfig configures the LLM judge.
type JudgeConfig struct {
	Provider   string `yaml:"provider" mapstructure:"provider"`
	Model      string `yaml:"model" mapstructure:"model"`
	ConfigPath string `yaml:"config_path" mapstructure:"config_path"`
	MaxTokens  int    `yaml:"max_tokens" mapstructure:"max_tokens"`
	Retries    int    `yaml:"retries" mapstructure:"retries"`
}

// OpenAIConfig holds settings for OpenAI-compatible chat-completions servers.
// BaseURL may point at a local vLLM or TGI instance.
type OpenAIConfig struct {
	Key     string `yaml:"key" mapstructure:"key"`
	BaseURL string `yaml:"base_url" mapstructure:"base_url"`
}

// AnthropicConfig holds Anthropic API settings.
type AnthropicConfig struct {
	Key string `yaml:"key" mapstructure:"key"`
}

// BatchConfig configures concurrent batch scoring.
type BatchConfig struct {
	Concurrency int `yaml:"concurrency" mapstructure:"concurrency"`
}

// DatasetConfig configures dataset loading.
type DatasetConfig struct {
	TimeoutSecs int    `yaml:"timeout_secs" mapstructure:"timeout_secs"`
	MaxRetries  int    `yaml:"max_retries" mapstructure:"max_retries"`
	UserAgent   string `yaml:"user_agent" mapstructure:"user_agent"`
	RatePerHost int    `yaml:"rate_per_host" mapstructure:"rate_per_host"`
}

// HarnessConfig configures the external evaluation harness binary.
type HarnessConfig struct {
	Binary        string `yaml:"binary" mapstructure:"binary"`
	NumConcurrent int    `yaml:"num_concurrent" mapstructure:"num_concurrent"`
	MaxRetries    int    `yaml:"max_retries" mapstructure:"max_retries"`
	BatchSize     string `yaml:"batch_size" mapstructure:"batch_size"`
	OutputDir     string `yaml:"output_dir" mapstructure:"output_dir"`
}

// ServerConfig configures the judge HTTP server. The circuit breaker guards
// the judge's upstream provider: after CircuitThreshold consecutive provider
// failures, requests fail fast until CircuitResetSecs have passed.
type ServerConfig struct {
	Port             int `yaml:"port" mapstructure:"port"`
	CircuitThreshold int `yaml:"circuit_threshold" mapstructure:"circuit_threshold"`
	CircuitResetSecs int `yaml:"circuit_reset_secs" mapstructure:"circuit_reset_secs"`
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
	v.SetEnvPrefix("EVAL")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.circuit_threshold", 5)
	v.SetDefault("server.circuit_reset_secs", 30)
	v.SetDefault("batch.concurrency", 8)
	v.SetDefault("judge.provider", "openai")
	v.SetDefault("judge.model", "gpt-4o-mini")
	v.SetDefault("judge.max_tokens", 1024)
	v.SetDefault("judge.retries", 2)
	v.SetDefault("openai.base_url", "https://api.openai.com/v1")
	v.SetDefault("dataset.timeout_secs", 60)
	v.SetDefault("dataset.max_retries", 3)
	v.SetDefault("dataset.user_agent", "eval-cli/1.0")
	v.SetDefault("dataset.rate_per_host", 4)
	v.SetDefault("harness.binary", "lm_eval")
	v.SetDefault("harness.num_concurrent", 8)
	v.SetDefault("harness.max_retries", 3)
	v.SetDefault("harness.batch_size", "auto")
	v.SetDefault("harness.output_dir", "results")

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

// Validate checks that the configuration required by the given mode is present.
// Mode is the command family: "judge", "harness", or "serve".
func (c *Config) Validate(mode string) error {
	var problems []string

	switch mode {
	case "judge", "serve":
		switch c.Judge.Provider {
		case "openai":
			if c.OpenAI.Key == "" && c.OpenAI.BaseURL == "https://api.openai.com/v1" {
				problems = append(problems, "openai.key is required when judging against api.openai.com")
			}
		case "anthropic":
			if c.Anthropic.Key == "" {
				problems = append(problems, "anthropic.key is required")
			}
		default:
			problems = append(problems, "judge.provider must be openai or anthropic")
		}
		if c.Judge.Model == "" {
			problems = append(problems, "judge.model is required")
		}
		if c.Judge.MaxTokens <= 0 {
			problems = append(problems, "judge.max_tokens must be > 0")
		}
		if c.Batch.Concurrency < 1 || c.Batch.Concurrency > 64 {
			problems = append(problems, "batch.concurrency must be between 1 and 64")
		}
		if mode == "serve" && c.Server.Port <= 0 {
			problems = append(problems, "server.port must be > 0")
		}
	case "harness":
		if c.Harness.Binary == "" {
			problems = append(problems, "harness.binary is required")
		}
		if c.Harness.NumConcurrent < 1 {
			problems = append(problems, "harness.num_concurrent must be >= 1")
		}
	default:
		return eris.Errorf("config: unknown mode %q", mode)
	}

	if len(problems) > 0 {
		return eris.New("config: " + strings.Join(problems, "; "))
	}
	return nil
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
