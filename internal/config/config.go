// Package config loads hookrelay configuration once at startup.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// EnvPrefix is the prefix for all hookrelay environment variables.
const EnvPrefix = "OBSERVABILITY"

// DefaultServerURL is where events go when nothing else is configured.
const DefaultServerURL = "http://localhost:4000/events"

type Config struct {
	ServerURL            string           `mapstructure:"server_url"`
	AuthToken            string           `mapstructure:"auth_token"`
	JWTSecret            string           `mapstructure:"jwt_secret"`
	JWTTTL               time.Duration    `mapstructure:"jwt_ttl"`
	AllowedTranscriptDir string           `mapstructure:"allowed_transcript_dir"`
	RequestTimeout       time.Duration    `mapstructure:"request_timeout"`
	Summarizer           SummarizerConfig `mapstructure:"summarizer"`
	Metrics              MetricsConfig    `mapstructure:"metrics"`
	Logging              LoggingConfig    `mapstructure:"logging"`
}

// SummarizerConfig points at an OpenAI-compatible chat completions endpoint.
// An empty URL disables summaries.
type SummarizerConfig struct {
	URL       string        `mapstructure:"url"`
	APIKey    string        `mapstructure:"api_key"`
	Model     string        `mapstructure:"model"`
	Timeout   time.Duration `mapstructure:"timeout"`
	MaxTokens int           `mapstructure:"max_tokens"`
}

type MetricsConfig struct {
	PushgatewayURL string `mapstructure:"pushgateway_url"`
}

type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// Load reads configuration from defaults, an optional YAML file and the
// environment, in increasing order of precedence. A configPath that does
// not exist is ignored; an unreadable or invalid file is an error.
func Load(configPath string) (*Config, error) {
	v := viper.New()

	// Set defaults
	v.SetDefault("server_url", DefaultServerURL)
	v.SetDefault("auth_token", "")
	v.SetDefault("jwt_secret", "")
	v.SetDefault("jwt_ttl", "5m")
	v.SetDefault("allowed_transcript_dir", "~/.config/claude")
	v.SetDefault("request_timeout", "5s")
	v.SetDefault("summarizer.url", "")
	v.SetDefault("summarizer.api_key", "")
	v.SetDefault("summarizer.model", "gpt-4o-mini")
	v.SetDefault("summarizer.timeout", "10s")
	v.SetDefault("summarizer.max_tokens", 100)
	v.SetDefault("metrics.pushgateway_url", "")
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "text")

	// Environment variables override
	v.SetEnvPrefix(EnvPrefix)
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	// Bare and short names for keys whose prefixed form is awkward.
	// The automatic OBSERVABILITY_* name is still checked first.
	_ = v.BindEnv("allowed_transcript_dir", "ALLOWED_TRANSCRIPT_DIR")
	_ = v.BindEnv("metrics.pushgateway_url", EnvPrefix+"_PUSHGATEWAY_URL")

	if configPath == "" {
		configPath = os.Getenv(EnvPrefix + "_CONFIG")
	}
	if configPath != "" {
		_, err := os.Stat(configPath)
		switch {
		case err == nil:
			v.SetConfigFile(configPath)
			v.SetConfigType("yaml")
			if err := v.ReadInConfig(); err != nil {
				return nil, fmt.Errorf("failed to read config: %w", err)
			}
		case errors.Is(err, os.ErrNotExist):
			// Config file not found; use defaults
		default:
			return nil, fmt.Errorf("failed to stat config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return &cfg, nil
}

// Default returns the configuration used when Load fails.
func Default() *Config {
	return &Config{
		ServerURL:            DefaultServerURL,
		JWTTTL:               5 * time.Minute,
		AllowedTranscriptDir: "~/.config/claude",
		RequestTimeout:       5 * time.Second,
		Summarizer: SummarizerConfig{
			Model:     "gpt-4o-mini",
			Timeout:   10 * time.Second,
			MaxTokens: 100,
		},
		Logging: LoggingConfig{Level: "info", Format: "text"},
	}
}
