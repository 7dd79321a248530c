// Package config loads process configuration from the environment.
package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// Config holds runtime configuration for the server.
type Config struct {
	Addr           string        `envconfig:"ADDR" default:":8080"`
	DB             string        `envconfig:"DB" default:"meemmark.sqlite3"`
	UploadsDir     string        `envconfig:"UPLOADS_DIR" default:"storage/public"`
	PublicURL      string        `envconfig:"PUBLIC_URL" default:"http://localhost:8080/storage"`
	LogFormat      string        `envconfig:"LOG_FORMAT" default:"text"`
	LogFile        string        `envconfig:"LOG_FILE"`
	RequestTimeout time.Duration `envconfig:"REQUEST_TIMEOUT" default:"30s"`
	LoginRate      int           `envconfig:"LOGIN_RATE" default:"5"`
	MaxUploadMB    int64         `envconfig:"MAX_UPLOAD_MB" default:"50"`
}

// Prefix is prepended to every variable name, e.g. MEEM_ADDR.
const Prefix = "MEEM"

// Load reads an optional .env file, then MEEM_* variables.
func Load(envFile string) (*Config, error) {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("loading %s: %w", envFile, err)
		}
	}

	var cfg Config
	if err := envconfig.Process(Prefix, &cfg); err != nil {
		return nil, fmt.Errorf("reading environment: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate rejects values the server cannot run with.
func (c *Config) Validate() error {
	switch c.LogFormat {
	case "text", "json":
	default:
		return fmt.Errorf("invalid log format %q (want text or json)", c.LogFormat)
	}
	if c.LoginRate < 1 {
		return errors.New("login rate must be at least 1 per minute")
	}
	if c.MaxUploadMB < 1 {
		return errors.New("max upload size must be at least 1 MB")
	}
	if c.RequestTimeout <= 0 {
		return errors.New("request timeout must be positive")
	}
	return nil
}

// MaxUploadBytes is the request body cap for uploads.
func (c *Config) MaxUploadBytes() int64 {
	return c.MaxUploadMB << 20
}
