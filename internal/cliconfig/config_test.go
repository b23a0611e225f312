package cliconfig

import (
	"errors"
	"reflect"
	"testing"
	"time"

	"github.com/bft-labs/metricship/internal/domain"
)

func validConfig() Config {
	cfg := DefaultConfig()
	cfg.Endpoint = "http://localhost:7101/api/v1/publish"
	return cfg
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.Endpoint != DefaultEndpoint {
		t.Errorf("Endpoint = %v, want %v", cfg.Endpoint, DefaultEndpoint)
	}
	if cfg.BatchSize != 10000 {
		t.Errorf("BatchSize = %v, want 10000", cfg.BatchSize)
	}
	if cfg.Step != time.Minute {
		t.Errorf("Step = %v, want 1m", cfg.Step)
	}
	if cfg.Encoding != "msgpack" {
		t.Errorf("Encoding = %v, want msgpack", cfg.Encoding)
	}
	if cfg.Input != "-" {
		t.Errorf("Input = %v, want -", cfg.Input)
	}
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		modify  func(*Config)
		wantErr bool
	}{
		{"defaults", func(c *Config) {}, false},
		{"missing endpoint", func(c *Config) { c.Endpoint = "" }, true},
		{"bad scheme", func(c *Config) { c.Endpoint = "ftp://host/publish" }, true},
		{"unparsable endpoint", func(c *Config) { c.Endpoint = "http://host:port/x" }, true},
		{"zero batch size", func(c *Config) { c.BatchSize = 0 }, true},
		{"zero step", func(c *Config) { c.Step = 0 }, true},
		{"zero publish timeout", func(c *Config) { c.PublishTimeout = 0 }, true},
		{"negative http timeout", func(c *Config) { c.HTTPTimeout = -time.Second }, true},
		{"negative max in flight", func(c *Config) { c.MaxInFlight = -1 }, true},
		{"json encoding", func(c *Config) { c.Encoding = "json" }, false},
		{"unknown encoding", func(c *Config) { c.Encoding = "protobuf" }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.modify(&cfg)
			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil && !errors.Is(err, domain.ErrInvalidConfig) {
				t.Errorf("Validate() error = %v, want ErrInvalidConfig", err)
			}
		})
	}
}

func TestConfig_Validate_Derivations(t *testing.T) {
	c1 := validConfig()
	c1.Endpoint = "http://collector/api/v1/publish/"
	c1.PublishTimeout = 5 * time.Second
	c1.Input = ""
	if err := c1.Validate(); err != nil {
		t.Fatalf("Validate failed: %v", err)
	}
	if c1.Endpoint != "http://collector/api/v1/publish" {
		t.Errorf("Endpoint = %v, want trailing slash removed", c1.Endpoint)
	}
	if c1.HTTPTimeout != 5*time.Second {
		t.Errorf("HTTPTimeout = %v, want publish timeout", c1.HTTPTimeout)
	}
	if c1.Input != "-" {
		t.Errorf("Input = %v, want -", c1.Input)
	}

	c2 := validConfig()
	c2.HTTPTimeout = time.Second
	if err := c2.Validate(); err != nil {
		t.Fatalf("Validate failed: %v", err)
	}
	if c2.HTTPTimeout != time.Second {
		t.Errorf("HTTPTimeout = %v, want explicit 1s kept", c2.HTTPTimeout)
	}
}

func TestConfig_Redacted(t *testing.T) {
	cfg := Config{AuthKey: "secret"}
	if got := cfg.Redacted().AuthKey; got != "*****" {
		t.Errorf("Redacted().AuthKey = %q, want masked", got)
	}
	if cfg.AuthKey != "secret" {
		t.Error("Redacted() modified the receiver")
	}
}

func TestParseTags(t *testing.T) {
	tests := []struct {
		in      string
		want    map[string]string
		wantErr bool
	}{
		{"", map[string]string{}, false},
		{"env=prod", map[string]string{"env": "prod"}, false},
		{" env = prod , app=web ,", map[string]string{"env": "prod", "app": "web"}, false},
		{"empty=", map[string]string{"empty": ""}, false},
		{"novalue", nil, true},
		{"=x", nil, true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseTags(tt.in)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseTags() error = %v, wantErr %v", err, tt.wantErr)
			}
			if !tt.wantErr && !reflect.DeepEqual(got, tt.want) {
				t.Errorf("ParseTags() = %v, want %v", got, tt.want)
			}
		})
	}
}
