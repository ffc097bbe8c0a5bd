package config

import (
	"errors"
	"io/fs"

	"github.com/caarlos0/env/v11"
	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

// Load reads the given .env files (".env" if none are given) into the
// process environment and parses the configuration from it. Missing files
// are ignored; variables already set in the environment win.
func Load(files ...string) (*Config, error) {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, file := range files {
		if err := godotenv.Load(file); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, err
		}
	}

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, err
	}
	return cfg, Validate(cfg)
}

// Parse reads the configuration from vars instead of the process environment.
func Parse(vars map[string]string) (*Config, error) {
	cfg := &Config{}
	if err := env.ParseWithOptions(cfg, env.Options{Environment: vars}); err != nil {
		return nil, err
	}
	return cfg, Validate(cfg)
}

// Validate checks cfg against its validate tags.
func Validate(cfg *Config) error {
	return validate.Struct(cfg)
}
