// Package config loads service configuration from the environment,
// optionally seeded from a .env file.
package config

import (
	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// Config holds everything main needs to wire the service together.
// All fields come from SNAPDB_* environment variables.
type Config struct {
	DataDir      string  `envconfig:"DATA" default:"./data"`
	ListenAddr   string  `envconfig:"LISTEN" default:"0.0.0.0:8080"`
	LogLevel     string  `envconfig:"LOG_LEVEL" default:"info"`
	ZScoreCutoff float64 `envconfig:"ZSCORE_CUTOFF" default:"1.75"`
}

// Load reads a .env file when present and then the environment.
// A missing .env is not an error; the environment alone is enough.
func Load() (*Config, bool, error) {
	dotenvFound := true
	if err := godotenv.Load(); err != nil {
		dotenvFound = false
	}

	var cfg Config
	if err := envconfig.Process("snapdb", &cfg); err != nil {
		return nil, dotenvFound, err
	}
	return &cfg, dotenvFound, nil
}
