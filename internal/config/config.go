// Package config loads the txmerkle configuration file.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/suffix-labs/txmerkle/pkg/crypto"
)

// Config is the application configuration.
type Config struct {
	// Digest algorithm for new transactions
	Algorithm string `yaml:"algorithm"`

	Logging     LogConfig        `yaml:"logging"`
	Attachments AttachmentConfig `yaml:"attachments"`
}

// LogConfig controls log output.
type LogConfig struct {
	Level   string `yaml:"level"` // debug, info, warn, error
	Console bool   `yaml:"console"`
	JSON    bool   `yaml:"json"`

	// File output, rotated. Empty File disables it.
	File       string `yaml:"file"`
	MaxSizeMB  int    `yaml:"max_size_mb"`
	MaxBackups int    `yaml:"max_backups"`
	MaxAgeDays int    `yaml:"max_age_days"`
	Compress   bool   `yaml:"compress"`
}

// AttachmentConfig controls attachment storage and loading.
type AttachmentConfig struct {
	// Badger directory. Empty keeps attachments in memory.
	Dir             string        `yaml:"dir"`
	CacheLifeWindow time.Duration `yaml:"cache_life_window"`
	CacheMaxSizeMB  int           `yaml:"cache_max_size_mb"`

	// Hex signer keys whose attachments are never trusted
	Blacklist      []string `yaml:"blacklist,omitempty"`
	TrustCacheSize int      `yaml:"trust_cache_size"`

	// Number of class loaders kept for reuse
	ClassLoaderCacheSize int `yaml:"classloader_cache_size"`
}

// Default returns the default configuration.
func Default() *Config {
	return &Config{
		Algorithm: crypto.DefaultAlgorithm,
		Logging: LogConfig{
			Level:      "info",
			Console:    true,
			MaxSizeMB:  100,
			MaxBackups: 5,
			MaxAgeDays: 30,
		},
		Attachments: AttachmentConfig{
			CacheLifeWindow:      10 * time.Minute,
			CacheMaxSizeMB:       256,
			TrustCacheSize:       1024,
			ClassLoaderCacheSize: 64,
		},
	}
}

// Load reads path over the defaults. A missing file yields the defaults.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return cfg, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("failed to decode config file: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks values that cannot be checked by decoding alone.
func (c *Config) Validate() error {
	if _, err := crypto.NewRegistry().Lookup(c.Algorithm); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("config: unknown log level %q", c.Logging.Level)
	}
	for _, k := range c.Attachments.Blacklist {
		if _, err := crypto.ParsePublicKeyHex(k); err != nil {
			return fmt.Errorf("config: blacklist: %w", err)
		}
	}
	return nil
}

// BlacklistKeys returns the parsed blacklist.
func (c *Config) BlacklistKeys() ([]crypto.Key, error) {
	keys := make([]crypto.Key, 0, len(c.Attachments.Blacklist))
	for _, s := range c.Attachments.Blacklist {
		pub, err := crypto.ParsePublicKeyHex(s)
		if err != nil {
			return nil, err
		}
		keys = append(keys, pub.Key())
	}
	return keys, nil
}

// Save writes c to path as YAML.
func Save(c *Config, path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}
