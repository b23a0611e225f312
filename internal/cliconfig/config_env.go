package cliconfig

import "os"

// EnvPrefix prefixes every environment variable read by ApplyEnvConfig.
const EnvPrefix = "METRICSHIP_"

// ApplyEnvConfig applies configuration from environment variables (METRICSHIP_*).
// It respects flags that have been explicitly set (changed map).
// Returns error if any environment variable has an invalid format.
func ApplyEnvConfig(cfg *Config, changed map[string]bool) error {
	s := newConfigSetter(changed)
	env := func(name string) string { return os.Getenv(EnvPrefix + name) }

	s.setString("endpoint", env("ENDPOINT"), &cfg.Endpoint)
	s.setString("auth-key", env("AUTH_KEY"), &cfg.AuthKey)
	s.setString("encoding", env("ENCODING"), &cfg.Encoding)
	s.setString("input", env("INPUT"), &cfg.Input)
	s.setString("log-level", env("LOG_LEVEL"), &cfg.LogLevel)

	if err := s.setTagsFromString("tag", env("TAGS"), &cfg.Tags); err != nil {
		return err
	}

	if err := s.setDuration("step", env("STEP"), &cfg.Step); err != nil {
		return err
	}
	if err := s.setDuration("publish-timeout", env("PUBLISH_TIMEOUT"), &cfg.PublishTimeout); err != nil {
		return err
	}
	if err := s.setDuration("http-timeout", env("HTTP_TIMEOUT"), &cfg.HTTPTimeout); err != nil {
		return err
	}

	if err := s.setIntFromString("batch-size", env("BATCH_SIZE"), &cfg.BatchSize); err != nil {
		return err
	}
	if err := s.setIntFromString("max-in-flight", env("MAX_IN_FLIGHT"), &cfg.MaxInFlight); err != nil {
		return err
	}

	s.setBoolFromString("gzip", env("GZIP"), &cfg.Gzip)
	s.setBoolFromString("once", env("ONCE"), &cfg.Once)

	return nil
}
