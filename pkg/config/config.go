package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds the defaults the CLI falls back to when a flag is not given.
type Config struct {
	Catalog        string            `yaml:"catalog"`
	CatalogFormat  string            `yaml:"catalog_format"`
	Format         string            `yaml:"format"`
	Root           string            `yaml:"root"`
	Section        string            `yaml:"section"`
	LogFile        string            `yaml:"log_file"`
	CommandTimeout time.Duration     `yaml:"command_timeout"`
	MetricsFile    string            `yaml:"metrics_file"`
	ScannerTTL     time.Duration     `yaml:"scanner_ttl"`
	TraceOutput    string            `yaml:"trace_output"`
	Parameters     map[string]string `yaml:"parameters"`
}

// Default returns the configuration used when no file exists.
func Default() *Config {
	return &Config{
		CatalogFormat:  "auto",
		Format:         "auto",
		CommandTimeout: 30 * time.Second,
		ScannerTTL:     5 * time.Minute,
		Parameters:     make(map[string]string),
	}
}

// GetConfigPath returns ~/.hostcomply/config.yaml, creating the directory.
func GetConfigPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	configDir := filepath.Join(home, ".hostcomply")
	if err := os.MkdirAll(configDir, 0700); err != nil {
		return "", err
	}
	return filepath.Join(configDir, "config.yaml"), nil
}

// LoadConfig reads the configuration at path, or at GetConfigPath when path
// is empty. A missing file yields the defaults.
func LoadConfig(path string) (*Config, error) {
	if path == "" {
		var err error
		if path, err = GetConfigPath(); err != nil {
			return nil, err
		}
	}

	cfg := Default()
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return cfg, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %q: %w", path, err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, formatYAMLError(path, err)
	}
	if cfg.Parameters == nil {
		cfg.Parameters = make(map[string]string)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// SaveConfig writes cfg to path, or to GetConfigPath when path is empty.
func SaveConfig(cfg *Config, path string) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	if path == "" {
		var err error
		if path, err = GetConfigPath(); err != nil {
			return err
		}
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0600)
}

// Validate checks the enumerated fields and durations.
func (c *Config) Validate() error {
	validCatalogFormats := map[string]bool{"auto": true, "yaml": true, "mof": true}
	if !validCatalogFormats[c.CatalogFormat] {
		return fmt.Errorf("config error: invalid catalog_format %q, must be one of: auto, yaml, mof", c.CatalogFormat)
	}

	validFormats := map[string]bool{
		"auto": true, "compact": true, "compact-list": true, "nested": true,
		"nested-list": true, "json": true, "verbose": true, "debug": true,
	}
	if !validFormats[c.Format] {
		return fmt.Errorf("config error: invalid format %q, must be one of: auto, compact, nested, json, verbose", c.Format)
	}

	if c.CommandTimeout <= 0 {
		return fmt.Errorf("config error: command_timeout must be positive, got %s", c.CommandTimeout)
	}
	if c.ScannerTTL < 0 {
		return fmt.Errorf("config error: scanner_ttl must not be negative, got %s", c.ScannerTTL)
	}
	if c.Root != "" && !filepath.IsAbs(c.Root) {
		return fmt.Errorf("config error: root %q must be an absolute path", c.Root)
	}

	for k := range c.Parameters {
		if k == "" || strings.ContainsAny(k, " \t=") {
			return fmt.Errorf("config error: invalid parameter name %q", k)
		}
	}
	return nil
}

// Set assigns one field by its YAML key. Parameters are set as
// "parameters.<name>".
func (c *Config) Set(key, value string) error {
	if name, ok := strings.CutPrefix(key, "parameters."); ok {
		if c.Parameters == nil {
			c.Parameters = make(map[string]string)
		}
		c.Parameters[name] = value
		return nil
	}

	switch key {
	case "catalog":
		c.Catalog = value
	case "catalog_format":
		c.CatalogFormat = value
	case "format":
		c.Format = value
	case "root":
		c.Root = value
	case "section":
		c.Section = value
	case "log_file":
		c.LogFile = value
	case "metrics_file":
		c.MetricsFile = value
	case "trace_output":
		c.TraceOutput = value
	case "command_timeout", "scanner_ttl":
		d, err := time.ParseDuration(value)
		if err != nil {
			return fmt.Errorf("config error: invalid duration %q for %s: %w", value, key, err)
		}
		if key == "command_timeout" {
			c.CommandTimeout = d
		} else {
			c.ScannerTTL = d
		}
	default:
		return fmt.Errorf("config error: unknown key %q", key)
	}
	return nil
}

func formatYAMLError(path string, err error) error {
	msg := err.Error()
	if strings.Contains(msg, "line") {
		return fmt.Errorf("syntax error in %s: %s", path, msg)
	}
	return fmt.Errorf("failed to parse %s: %s", path, msg)
}
