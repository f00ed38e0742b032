/*
Package config loads server configuration from a TOML file.

PURPOSE:
  One flat file, decoded once at startup. Every field has a default so
  the server runs with no config file at all (the path is optional).

USAGE:
  cfg, err := config.Load("config.toml")
*/
package config

import (
	"fmt"
	"os"

	"github.com/BurntSushi/toml"
)

type Config struct {
	Server   Server   `toml:"server"`
	Database Database `toml:"database"`
	Logs     Logs     `toml:"logs"`
	Metrics  Metrics  `toml:"metrics"`
}

type Server struct {
	Port            int `toml:"port"`
	ReadTimeout     int `toml:"read_timeout"`     // seconds
	WriteTimeout    int `toml:"write_timeout"`    // seconds
	IdleTimeout     int `toml:"idle_timeout"`     // seconds
	ShutdownTimeout int `toml:"shutdown_timeout"` // seconds
}

type Database struct {
	// Path is the SQLite file; ":memory:" for ephemeral runs.
	Path string `toml:"path"`
}

type Logs struct {
	// Level is one of debug, info, warn, error.
	Level string `toml:"level"`
	// Development switches to the human-readable console encoder.
	Development bool `toml:"development"`
}

type Metrics struct {
	Enabled bool   `toml:"enabled"`
	Path    string `toml:"path"`
}

// Default returns the configuration used when no file is given.
func Default() Config {
	return Config{
		Server: Server{
			Port:            8080,
			ReadTimeout:     15,
			WriteTimeout:    15,
			IdleTimeout:     60,
			ShutdownTimeout: 10,
		},
		Database: Database{Path: "./data/schedule.db"},
		Logs:     Logs{Level: "info"},
		Metrics:  Metrics{Enabled: true, Path: "/metrics"},
	}
}

// Load reads a TOML config file over the defaults. A missing file is
// an error; pass an empty path to run on defaults alone.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}
	if _, err := os.Stat(path); err != nil {
		return cfg, fmt.Errorf("config file %s: %w", path, err)
	}
	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return cfg, fmt.Errorf("failed to parse config %s: %w", path, err)
	}
	return cfg, nil
}
