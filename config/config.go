/*
Package config loads server and engine configuration from a TOML file.

PURPOSE:
  Everything tunable at deploy time lives here: HTTP port, database path,
  the rule-engine tick interval, and the auto-lock thresholds. Flags in
  cmd/server override the file for port and database path.

EXAMPLE (ledger.toml):

  [server]
  port = 8080

  [store]
  path = "./data/ledger.db"

  [engines]
  enabled = true
  tick_interval = "1h"

  [autolock]
  enabled = true
  threshold_days = 30
  threshold_amount = 100000
*/
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/BurntSushi/toml"
)

type Config struct {
	Server   ServerConfig   `toml:"server"`
	Store    StoreConfig    `toml:"store"`
	Engines  EnginesConfig  `toml:"engines"`
	AutoLock AutoLockConfig `toml:"autolock"`
}

type ServerConfig struct {
	Port int `toml:"port"`
}

type StoreConfig struct {
	Path string `toml:"path"`
}

type EnginesConfig struct {
	Enabled      bool   `toml:"enabled"`
	TickInterval string `toml:"tick_interval"`
}

type AutoLockConfig struct {
	Enabled         bool    `toml:"enabled"`
	ThresholdDays   int     `toml:"threshold_days"`
	ThresholdAmount float64 `toml:"threshold_amount"`
}

// Default returns the configuration used when no file is given.
func Default() Config {
	return Config{
		Server:  ServerConfig{Port: 8080},
		Store:   StoreConfig{Path: "ledger.db"},
		Engines: EnginesConfig{Enabled: true, TickInterval: "1h"},
		AutoLock: AutoLockConfig{
			Enabled:       false,
			ThresholdDays: 30,
		},
	}
}

// Load reads a TOML config file, layering it over the defaults.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("failed to read config %q: %w", path, err)
	}
	if err := toml.Unmarshal(raw, &cfg); err != nil {
		return cfg, fmt.Errorf("failed to parse config %q: %w", path, err)
	}
	if _, err := cfg.TickInterval(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// TickInterval parses the engine tick interval.
func (c Config) TickInterval() (time.Duration, error) {
	if c.Engines.TickInterval == "" {
		return time.Hour, nil
	}
	d, err := time.ParseDuration(c.Engines.TickInterval)
	if err != nil {
		return 0, fmt.Errorf("invalid tick_interval %q: %w", c.Engines.TickInterval, err)
	}
	if d <= 0 {
		return 0, fmt.Errorf("tick_interval must be positive, got %q", c.Engines.TickInterval)
	}
	return d, nil
}
