// Package config provides configuration for the assistant relay.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/caarlos0/env/v10"
	"github.com/joho/godotenv"
	"github.com/pkg/errors"
)

// Config holds the relay configuration. It is read once at startup and
// treated as immutable afterwards.
type Config struct {
	// Upstream credentials
	APIKey      string `env:"OPENAI_API_KEY,required,notEmpty"`
	AssistantID string `env:"ASSISTANT_ID,required,notEmpty"`

	// Upstream settings
	BaseURL         string        `env:"OPENAI_BASE_URL" envDefault:"https://api.openai.com/v1"`
	BetaHeader      string        `env:"OPENAI_BETA" envDefault:"assistants=v2"`
	UpstreamTimeout time.Duration `env:"UPSTREAM_TIMEOUT" envDefault:"0s"`
	Mode            string        `env:"RELAY_MODE"`

	// Run polling
	PollAttempts int           `env:"RUN_POLL_ATTEMPTS" envDefault:"40"`
	PollInterval time.Duration `env:"RUN_POLL_INTERVAL" envDefault:"400ms"`
	MessageLimit int           `env:"REPLY_MESSAGE_LIMIT" envDefault:"20"`

	// Message policy
	MaxMessageChars   int    `env:"MAX_MESSAGE_CHARS" envDefault:"0"`
	MessagePolicyPath string `env:"MESSAGE_POLICY_PATH"`

	// Server settings
	Port            int           `env:"PORT" envDefault:"3000"`
	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT" envDefault:"20s"`

	// WebSocket settings
	WSPingInterval   time.Duration `env:"WS_PING_INTERVAL" envDefault:"30s"`
	WSMaxMessageSize int64         `env:"WS_MAX_MESSAGE_SIZE" envDefault:"65536"`

	// Logging
	LogLevel  string `env:"LOG_LEVEL" envDefault:"info"`
	LogFormat string `env:"LOG_FORMAT" envDefault:"console"`
}

// Load loads configuration from environment variables.
func Load() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, errors.Wrap(err, "parse env config")
	}

	if cfg.PollAttempts <= 0 {
		return nil, errors.Errorf("RUN_POLL_ATTEMPTS must be positive, got %d", cfg.PollAttempts)
	}
	if cfg.PollInterval <= 0 {
		return nil, errors.Errorf("RUN_POLL_INTERVAL must be positive, got %s", cfg.PollInterval)
	}
	if cfg.MessageLimit <= 0 {
		cfg.MessageLimit = 20
	}
	cfg.BaseURL = strings.TrimSuffix(strings.TrimSpace(cfg.BaseURL), "/")

	return cfg, nil
}

// LoadEnvFiles loads .env files from the working directory and its parent,
// when present. Values from the files override the process environment.
func LoadEnvFiles() {
	paths := []string{".env", "../.env"}
	for _, path := range paths {
		if _, err := os.Stat(path); err == nil {
			if err := godotenv.Overload(path); err != nil {
				fmt.Fprintf(os.Stderr, "warning: failed to load %s: %v\n", path, err)
			}
		}
	}
}

// Addr returns the HTTP listen address.
func (c *Config) Addr() string {
	return fmt.Sprintf(":%d", c.Port)
}
