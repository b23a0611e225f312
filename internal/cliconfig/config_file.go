package cliconfig

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	toml "github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"
)

// FileConfig mirrors Config but uses strings for durations so TOML and YAML
// files stay readable.
type FileConfig struct {
	Endpoint       string            `toml:"endpoint" yaml:"endpoint"`
	AuthKey        string            `toml:"auth_key" yaml:"auth_key"`
	Tags           map[string]string `toml:"tags" yaml:"tags"`
	BatchSize      int               `toml:"batch_size" yaml:"batch_size"`
	Step           string            `toml:"step" yaml:"step"`
	PublishTimeout string            `toml:"publish_timeout" yaml:"publish_timeout"`
	HTTPTimeout    string            `toml:"http_timeout" yaml:"http_timeout"`
	MaxInFlight    int               `toml:"max_in_flight" yaml:"max_in_flight"`
	Gzip           *bool             `toml:"gzip" yaml:"gzip"`
	Encoding       string            `toml:"encoding" yaml:"encoding"`
	Input          string            `toml:"input" yaml:"input"`
	Once           *bool             `toml:"once" yaml:"once"`
	LogLevel       string            `toml:"log_level" yaml:"log_level"`
}

// LoadFileConfig reads a config file. Files ending in .yaml or .yml are
// parsed as YAML, everything else as TOML.
func LoadFileConfig(path string) (FileConfig, error) {
	var fc FileConfig
	b, err := os.ReadFile(path)
	if err != nil {
		return fc, err
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(b, &fc); err != nil {
			return fc, fmt.Errorf("parse yaml %s: %w", path, err)
		}
	default:
		if err := toml.Unmarshal(b, &fc); err != nil {
			return fc, fmt.Errorf("parse toml %s: %w", path, err)
		}
	}
	return fc, nil
}

// DefaultConfigPath returns the default configuration file path.
// Returns ~/.metricship/config.toml if user home directory is accessible.
func DefaultConfigPath() string {
	if h, err := os.UserHomeDir(); err == nil {
		return filepath.Join(h, ".metricship", "config.toml")
	}
	return ""
}

// ApplyFileConfig applies configuration from a file to the Config struct.
// It respects flags that have been explicitly set (changed map).
func ApplyFileConfig(cfg *Config, fc FileConfig, changed map[string]bool) error {
	s := newConfigSetter(changed)

	s.setString("endpoint", fc.Endpoint, &cfg.Endpoint)
	s.setString("auth-key", fc.AuthKey, &cfg.AuthKey)
	s.setString("encoding", fc.Encoding, &cfg.Encoding)
	s.setString("input", fc.Input, &cfg.Input)
	s.setString("log-level", fc.LogLevel, &cfg.LogLevel)
	s.setTags("tag", fc.Tags, &cfg.Tags)

	if err := s.setDuration("step", fc.Step, &cfg.Step); err != nil {
		return err
	}
	if err := s.setDuration("publish-timeout", fc.PublishTimeout, &cfg.PublishTimeout); err != nil {
		return err
	}
	if err := s.setDuration("http-timeout", fc.HTTPTimeout, &cfg.HTTPTimeout); err != nil {
		return err
	}

	s.setInt("batch-size", fc.BatchSize, &cfg.BatchSize)
	s.setInt("max-in-flight", fc.MaxInFlight, &cfg.MaxInFlight)

	s.setBool("gzip", fc.Gzip, &cfg.Gzip)
	s.setBool("once", fc.Once, &cfg.Once)

	return nil
}

// FileExists checks if a file exists at the given path.
func FileExists(p string) bool {
	_, err := os.Stat(p)
	return err == nil
}

// Resolve layers the config file at path (when it exists) and the
// environment over flags, then validates the result. flags holds the values
// bound to command line flags; changed names the flags set explicitly, which
// always win. flags itself is not modified.
func Resolve(flags Config, path string, changed map[string]bool) (Config, error) {
	cfg := flags

	if path != "" && FileExists(path) {
		fc, err := LoadFileConfig(path)
		if err != nil {
			return Config{}, fmt.Errorf("load config: %w", err)
		}
		if err := ApplyFileConfig(&cfg, fc, changed); err != nil {
			return Config{}, err
		}
	}

	if err := ApplyEnvConfig(&cfg, changed); err != nil {
		return Config{}, err
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}
