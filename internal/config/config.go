// Package config loads the client process configuration from the environment.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// Config is the process configuration.
type Config struct {
	Addr           string        `env:"TYCOON_ADDR" envDefault:":8090"`
	RulesURL       string        `env:"TYCOON_RULES_URL" envDefault:"http://localhost:8001"`
	RequestTimeout time.Duration `env:"TYCOON_REQUEST_TIMEOUT" envDefault:"5s"`

	// Replay pacing.
	StepDelay   time.Duration `env:"TYCOON_STEP_DELAY" envDefault:"100ms"`
	SettleDelay time.Duration `env:"TYCOON_SETTLE_DELAY" envDefault:"300ms"`

	LogLevel  string `env:"TYCOON_LOG_LEVEL" envDefault:"info"`
	LogFormat string `env:"TYCOON_LOG_FORMAT" envDefault:"text"`

	TokenSecret string        `env:"TYCOON_TOKEN_SECRET,required,notEmpty"`
	TokenTTL    time.Duration `env:"TYCOON_TOKEN_TTL" envDefault:"12h"`

	// AllowedOrigins are host patterns allowed to open renderer sockets
	// cross-origin.
	AllowedOrigins []string `env:"TYCOON_ALLOWED_ORIGINS" envSeparator:","`
	// JailSpace overrides the board's jail cell.
	JailSpace string `env:"TYCOON_JAIL_SPACE"`

	// OTELEndpoint enables trace export when set.
	OTELEndpoint string `env:"TYCOON_OTEL_ENDPOINT"`
}

// ParseEnv loads configuration from environment variables.
func ParseEnv(target any) error {
	if err := env.Parse(target); err != nil {
		return fmt.Errorf("parse env: %w", err)
	}
	return nil
}

// Load reads an optional dotenv file into the environment, then parses and
// validates the configuration. An empty path means ".env"; a missing file is
// not an error. Variables already set in the environment win over the file.
func Load(dotenv string) (Config, error) {
	if dotenv == "" {
		dotenv = ".env"
	}
	if err := godotenv.Load(dotenv); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Config{}, fmt.Errorf("load %s: %w", dotenv, err)
	}

	var cfg Config
	if err := ParseEnv(&cfg); err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks values the struct tags cannot express.
func (c Config) Validate() error {
	u, err := url.Parse(c.RulesURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("config: TYCOON_RULES_URL %q is not an absolute URL", c.RulesURL)
	}
	if c.RequestTimeout <= 0 {
		return fmt.Errorf("config: TYCOON_REQUEST_TIMEOUT must be positive, got %s", c.RequestTimeout)
	}
	if c.StepDelay < 0 || c.SettleDelay < 0 {
		return fmt.Errorf("config: replay delays must not be negative")
	}
	if c.TokenTTL <= 0 {
		return fmt.Errorf("config: TYCOON_TOKEN_TTL must be positive, got %s", c.TokenTTL)
	}
	switch c.LogFormat {
	case "text", "json":
	default:
		return fmt.Errorf("config: TYCOON_LOG_FORMAT must be text or json, got %q", c.LogFormat)
	}
	return nil
}
