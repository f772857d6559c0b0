// Package replconfig loads the fwimg REPL's optional persistent
// preferences: a default image path, a log format choice, and the locale
// table clean uses to pick a language mask. None of it is required — the
// REPL runs fine with zero config.
package replconfig

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config is the REPL's optional preferences file.
type Config struct {
	DefaultImagePath string       `yaml:"default_image_path"`
	LogFormat        string       `yaml:"log_format"`
	Locales          LocaleConfig `yaml:"locales"`
}

// LocaleConfig holds the language-mask table clean consults, keyed by
// locale name. Default names the entry MaskFor falls back to when the
// table has no entry for the locale the image's IPL2 flags select.
type LocaleConfig struct {
	Default string                 `yaml:"default"`
	Masks   map[string]LocaleEntry `yaml:"masks"`
}

// LocaleEntry is one named locale's language mask and sentinel-fill flag.
type LocaleEntry struct {
	LanguageMask uint16 `yaml:"language_mask"`
	SentinelFill bool   `yaml:"sentinel_fill"`
}

// Load reads and validates a Config from path. A relative
// default_image_path is resolved against path's directory.
func Load(path string) (*Config, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	dec := yaml.NewDecoder(bytes.NewReader(content))
	dec.KnownFields(true)

	var cfg Config
	if err := dec.Decode(&cfg); err != nil {
		return nil, fmt.Errorf("parse config yaml: %w", err)
	}
	cfg.resolvePaths(path)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks the fields that have a constrained domain. An empty
// Config (the zero value) is always valid — every field is optional.
func (c *Config) Validate() error {
	if c.LogFormat != "" && c.LogFormat != "text" && c.LogFormat != "json" {
		return fmt.Errorf("config.log_format must be %q or %q, got %q", "text", "json", c.LogFormat)
	}
	for name, entry := range c.Locales.Masks {
		if entry.LanguageMask == 0 {
			return fmt.Errorf("config.locales.masks[%s].language_mask must be non-zero", name)
		}
	}
	if c.Locales.Default != "" {
		if _, ok := c.Locales.Masks[c.Locales.Default]; !ok {
			return fmt.Errorf("config.locales.default %q is not a key of config.locales.masks", c.Locales.Default)
		}
	}
	return nil
}

func (c *Config) resolvePaths(configPath string) {
	configDir := filepath.Dir(configPath)
	c.DefaultImagePath = resolvePath(configDir, c.DefaultImagePath)
}

func resolvePath(baseDir, path string) string {
	trimmed := strings.TrimSpace(path)
	if trimmed == "" || filepath.IsAbs(trimmed) {
		return trimmed
	}
	return filepath.Clean(filepath.Join(baseDir, trimmed))
}
