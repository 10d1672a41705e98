// Package config loads the hearth.yaml household configuration.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"
	_ "time/tzdata" // zone database for hosts without one

	"github.com/natefinch/atomic"
	"gopkg.in/yaml.v3"
)

// DefaultPath is the config file looked up when --config is not given.
const DefaultPath = "hearth.yaml"

// Config is the household configuration.
type Config struct {
	// Database is the SQLite file holding instances, notes and coverage
	// requests.
	Database string `yaml:"database"`

	// Timezone is the IANA zone whose calendar days the household lives by.
	// Same-day checks and day windows are computed in it.
	Timezone string `yaml:"timezone"`

	// Member is the default household member acting when --as is not given.
	Member string `yaml:"member,omitempty"`

	// Definitions lists files or directories of routine and calendar
	// definitions (.yaml, .yml, .cue, .ics).
	Definitions []string `yaml:"definitions"`
}

// DefaultConfig returns an in-memory default configuration.
func DefaultConfig() *Config {
	return &Config{
		Database:    "hearth.db",
		Timezone:    "UTC",
		Definitions: []string{"definitions"},
	}
}

// Normalize fills in missing values with defaults. Relative paths are
// resolved against base (normally the config file's directory).
func (c *Config) Normalize(base string) {
	def := DefaultConfig()
	if c.Database == "" {
		c.Database = def.Database
	}
	if c.Timezone == "" {
		c.Timezone = def.Timezone
	}
	if c.Definitions == nil {
		c.Definitions = def.Definitions
	}
	if base == "" {
		return
	}
	c.Database = resolve(base, c.Database)
	for i, p := range c.Definitions {
		c.Definitions[i] = resolve(base, p)
	}
}

func resolve(base, path string) string {
	if path == "" || filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(base, path)
}

// Location loads the configured timezone.
func (c *Config) Location() (*time.Location, error) {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return nil, fmt.Errorf("timezone %q: %w", c.Timezone, err)
	}
	return loc, nil
}

// Load reads configuration from path.
//
// A missing file is not an error: the defaults are returned, with relative
// paths resolved against the directory path would have lived in.
func Load(path string) (*Config, error) {
	if path == "" {
		return nil, errors.New("config path is empty")
	}
	base := filepath.Dir(path)

	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		cfg := DefaultConfig()
		cfg.Normalize(base)
		return cfg, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	var cfg Config
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	cfg.Normalize(base)

	if _, err := cfg.Location(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Save writes cfg to path atomically, creating the parent directory. It
// refuses to overwrite an existing file unless force is set.
func Save(path string, cfg *Config, force bool) error {
	if cfg == nil {
		return errors.New("config is nil")
	}
	if !force {
		if _, err := os.Stat(path); err == nil {
			return fmt.Errorf("%s already exists", path)
		}
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	if err := atomic.WriteFile(path, bytes.NewReader(data)); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	return nil
}
