// Package config loads the CLI configuration from a YAML or JSON file,
// environment variables and an optional .env file.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"github.com/knadh/koanf/parsers/json"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"

	"github.com/kilianp07/beamtime/api"
	"github.com/kilianp07/beamtime/core/metrics"
	"github.com/kilianp07/beamtime/core/session"
	"github.com/kilianp07/beamtime/core/solvelog"
	"github.com/kilianp07/beamtime/infra/monitoring"
	"github.com/kilianp07/beamtime/infra/mqtt"
	"github.com/kilianp07/beamtime/infra/solverapi"
)

// EnvPrefix prefixes environment overrides. BT_BACKEND__BASE_URL sets
// backend.base_url.
const EnvPrefix = "BT_"

type Config struct {
	Backend solverapi.Config  `json:"backend"`
	Poll    session.Config    `json:"poll"`
	Metrics metrics.Config    `json:"metrics"`
	History solvelog.Config   `json:"history"`
	Notify  mqtt.Config       `json:"notify"`
	Sentry  monitoring.Config `json:"sentry"`
	API     api.Config        `json:"api"`
}

// SetDefaults applies the defaults of every section.
func (c *Config) SetDefaults() {
	c.Backend.SetDefaults()
	c.Poll.SetDefaults()
	c.History.SetDefaults()
	if c.Notify.Enabled() {
		c.Notify.SetDefaults()
	}
}

// Validate checks every section.
func (c Config) Validate() error {
	checks := []struct {
		section string
		err     error
	}{
		{"backend", c.Backend.Validate()},
		{"poll", c.Poll.Validate()},
		{"history", c.History.Validate()},
		{"notify", c.Notify.Validate()},
		{"sentry", c.Sentry.Validate()},
	}
	for _, ch := range checks {
		if ch.err != nil {
			return fmt.Errorf("%s: %w", ch.section, ch.err)
		}
	}
	return nil
}

// Default returns the configuration used when no file is present.
func Default() *Config {
	var cfg Config
	cfg.SetDefaults()
	return &cfg
}

// Load reads path, then applies environment overrides. A .env file in the
// working directory is loaded into the environment first. A missing config
// file is not an error: defaults and the environment are used instead.
func Load(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}
	k := koanf.New(".")
	if path != "" {
		if _, err := os.Stat(path); err == nil {
			parser, err := parserFor(path)
			if err != nil {
				return nil, err
			}
			if err := k.Load(file.Provider(path), parser); err != nil {
				return nil, fmt.Errorf("load %s: %w", path, err)
			}
		} else if !errors.Is(err, fs.ErrNotExist) {
			return nil, err
		}
	}
	if err := k.Load(env.Provider(EnvPrefix, ".", envKey), nil); err != nil {
		return nil, err
	}
	var cfg Config
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{Tag: "json"}); err != nil {
		return nil, err
	}
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func parserFor(path string) (koanf.Parser, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return yaml.Parser(), nil
	case ".json":
		return json.Parser(), nil
	}
	return nil, fmt.Errorf("unsupported config format: %s", filepath.Ext(path))
}

func envKey(s string) string {
	s = strings.ToLower(strings.TrimPrefix(s, EnvPrefix))
	return strings.ReplaceAll(s, "__", ".")
}
