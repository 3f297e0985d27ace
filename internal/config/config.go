// Package config reads service settings from the environment, after loading
// an optional .env file.
package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

type Config struct {
	Port         string        `env:"PORT" envDefault:"8080"`
	ReadTimeout  time.Duration `env:"READ_TIMEOUT" envDefault:"10s"`
	WriteTimeout time.Duration `env:"WRITE_TIMEOUT" envDefault:"10s"`

	// DatabasePath is the SQLite plan store. Empty disables plan lookups;
	// estimates then need an explicit benchmark premium.
	DatabasePath string `env:"DATABASE_PATH"`

	Policy PolicyConfig

	LogLevel  string `env:"LOG_LEVEL" envDefault:"info"`
	LogFormat string `env:"LOG_FORMAT" envDefault:"json"`
}

type PolicyConfig struct {
	Dir             string        `env:"POLICY_DIR"`
	RegistryURL     string        `env:"POLICY_REGISTRY_URL"`
	RegistryTimeout time.Duration `env:"POLICY_REGISTRY_TIMEOUT" envDefault:"2s"`
	DefaultYear     int           `env:"DEFAULT_COVERAGE_YEAR"`
}

// Load reads .env files if present, then the process environment. Variables
// already set in the environment win over .env entries.
func Load(envFiles ...string) (*Config, error) {
	if len(envFiles) == 0 {
		envFiles = []string{".env"}
	}
	for _, f := range envFiles {
		_ = godotenv.Load(f)
	}

	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	switch c.LogFormat {
	case "json", "console":
	default:
		return fmt.Errorf("LOG_FORMAT must be json or console, got %q", c.LogFormat)
	}
	if c.Policy.DefaultYear != 0 && (c.Policy.DefaultYear < 2014 || c.Policy.DefaultYear > 2100) {
		return fmt.Errorf("DEFAULT_COVERAGE_YEAR %d is out of range", c.Policy.DefaultYear)
	}
	return nil
}
