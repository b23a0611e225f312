package cliconfig

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/bft-labs/metricship/internal/domain"
	"github.com/bft-labs/metricship/internal/encoding"
)

// DefaultEndpoint is the publish URI of a collector on the local host.
const DefaultEndpoint = "http://localhost:7101/api/v1/publish"

// Config holds CLI configuration for metricship.
type Config struct {
	Endpoint string
	AuthKey  string
	Tags     map[string]string

	BatchSize      int
	Step           time.Duration
	PublishTimeout time.Duration
	HTTPTimeout    time.Duration
	MaxInFlight    int

	Gzip     bool
	Encoding string
	Input    string
	Once     bool
	LogLevel string
}

// DefaultConfig returns a Config with default values.
func DefaultConfig() Config {
	return Config{
		Endpoint:       DefaultEndpoint,
		BatchSize:      10000,
		Step:           time.Minute,
		PublishTimeout: 30 * time.Second,
		Encoding:       "msgpack",
		Input:          "-",
		LogLevel:       "info",
	}
}

// Validate checks the configuration for errors and sets derived defaults.
func (c *Config) Validate() error {
	if c.Endpoint == "" {
		return fmt.Errorf("%w: endpoint is required", domain.ErrInvalidConfig)
	}
	c.Endpoint = strings.TrimRight(c.Endpoint, "/")

	u, err := url.Parse(c.Endpoint)
	if err != nil {
		return fmt.Errorf("%w: endpoint: %v", domain.ErrInvalidConfig, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("%w: endpoint scheme must be http or https, got %q", domain.ErrInvalidConfig, u.Scheme)
	}

	if c.BatchSize <= 0 {
		return fmt.Errorf("%w: batch size must be positive", domain.ErrInvalidConfig)
	}
	if c.Step <= 0 {
		return fmt.Errorf("%w: step must be positive", domain.ErrInvalidConfig)
	}
	if c.PublishTimeout <= 0 {
		return fmt.Errorf("%w: publish timeout must be positive", domain.ErrInvalidConfig)
	}
	if c.HTTPTimeout < 0 {
		return fmt.Errorf("%w: http timeout must not be negative", domain.ErrInvalidConfig)
	}
	if c.HTTPTimeout == 0 {
		c.HTTPTimeout = c.PublishTimeout
	}
	if c.MaxInFlight < 0 {
		return fmt.Errorf("%w: max in flight must not be negative", domain.ErrInvalidConfig)
	}

	if _, err := encoding.ForName(c.Encoding); err != nil {
		return fmt.Errorf("%w: %v", domain.ErrInvalidConfig, err)
	}
	if c.Input == "" {
		c.Input = "-"
	}

	return nil
}

// Redacted returns a copy safe to log.
func (c Config) Redacted() Config {
	if c.AuthKey != "" {
		c.AuthKey = "*****"
	}
	return c
}

// configSetter helps apply configuration values while respecting flag precedence.
// It only applies values if the corresponding flag hasn't been explicitly set.
type configSetter struct {
	changed map[string]bool
}

// newConfigSetter creates a new setter with the given changed flags map.
func newConfigSetter(changed map[string]bool) *configSetter {
	return &configSetter{changed: changed}
}

// setString sets a string value if not empty and flag not changed.
func (s *configSetter) setString(flag, value string, dst *string) {
	if value == "" || s.changed[flag] {
		return
	}
	*dst = value
}

// setInt sets an int value if positive and flag not changed.
func (s *configSetter) setInt(flag string, value int, dst *int) {
	if value <= 0 || s.changed[flag] {
		return
	}
	*dst = value
}

// setDuration parses and sets a duration from string if valid and flag not changed.
func (s *configSetter) setDuration(flag, value string, dst *time.Duration) error {
	if value == "" || s.changed[flag] {
		return nil
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return fmt.Errorf("parse %s: %w", flag, err)
	}
	*dst = d
	return nil
}

// setBool sets a bool value from a pointer if not nil and flag not changed.
func (s *configSetter) setBool(flag string, value *bool, dst *bool) {
	if value == nil || s.changed[flag] {
		return
	}
	*dst = *value
}

// setTags replaces the tag map if value is not empty and flag not changed.
func (s *configSetter) setTags(flag string, value map[string]string, dst *map[string]string) {
	if len(value) == 0 || s.changed[flag] {
		return
	}
	tags := make(map[string]string, len(value))
	for k, v := range value {
		tags[k] = v
	}
	*dst = tags
}

// setIntFromString parses a string to int and sets the destination if valid.
// Used for environment variables that come as strings.
func (s *configSetter) setIntFromString(flag, value string, dst *int) error {
	if value == "" || s.changed[flag] {
		return nil
	}
	i, err := strconv.Atoi(value)
	if err != nil {
		return fmt.Errorf("parse %s: %w", flag, err)
	}
	if i <= 0 {
		return nil
	}
	*dst = i
	return nil
}

// setBoolFromString parses a string to bool and sets the destination.
// Accepts "true", "1" as true, anything else as false.
func (s *configSetter) setBoolFromString(flag, value string, dst *bool) {
	if value == "" || s.changed[flag] {
		return
	}
	*dst = value == "true" || value == "1"
}

// setTagsFromString parses "k=v,k2=v2" and replaces the tag map.
func (s *configSetter) setTagsFromString(flag, value string, dst *map[string]string) error {
	if value == "" || s.changed[flag] {
		return nil
	}
	tags, err := ParseTags(value)
	if err != nil {
		return fmt.Errorf("parse %s: %w", flag, err)
	}
	*dst = tags
	return nil
}

// ParseTags parses a comma separated list of key=value pairs.
func ParseTags(s string) (map[string]string, error) {
	tags := map[string]string{}
	for _, pair := range strings.Split(s, ",") {
		pair = strings.TrimSpace(pair)
		if pair == "" {
			continue
		}
		k, v, ok := strings.Cut(pair, "=")
		if !ok || strings.TrimSpace(k) == "" {
			return nil, fmt.Errorf("invalid tag %q, want key=value", pair)
		}
		tags[strings.TrimSpace(k)] = strings.TrimSpace(v)
	}
	return tags, nil
}
