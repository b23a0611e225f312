package cliconfig

import (
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
	"time"
)

func TestApplyFileConfig(t *testing.T) {
	trueVal := true

	tests := []struct {
		name       string
		fileConfig FileConfig
		changed    map[string]bool
		initial    Config
		expected   Config
		wantErr    bool
	}{
		{
			name: "applies all valid config values",
			fileConfig: FileConfig{
				Endpoint:       "http://file/publish",
				AuthKey:        "secret",
				Tags:           map[string]string{"env": "prod"},
				BatchSize:      100,
				Step:           "30s",
				PublishTimeout: "10s",
				HTTPTimeout:    "2s",
				MaxInFlight:    8,
				Gzip:           &trueVal,
				Encoding:       "json",
				Input:          "/tmp/in.jsonl",
				Once:           &trueVal,
				LogLevel:       "warn",
			},
			changed: map[string]bool{},
			expected: Config{
				Endpoint:       "http://file/publish",
				AuthKey:        "secret",
				Tags:           map[string]string{"env": "prod"},
				BatchSize:      100,
				Step:           30 * time.Second,
				PublishTimeout: 10 * time.Second,
				HTTPTimeout:    2 * time.Second,
				MaxInFlight:    8,
				Gzip:           true,
				Encoding:       "json",
				Input:          "/tmp/in.jsonl",
				Once:           true,
				LogLevel:       "warn",
			},
		},
		{
			name: "respects changed flags",
			fileConfig: FileConfig{
				Endpoint:  "http://file/publish",
				BatchSize: 100,
			},
			changed: map[string]bool{"endpoint": true},
			initial: Config{Endpoint: "http://flag/publish", BatchSize: 5},
			expected: Config{
				Endpoint:  "http://flag/publish", // unchanged because flag was set
				BatchSize: 100,
			},
		},
		{
			name:       "empty values keep existing",
			fileConfig: FileConfig{},
			changed:    map[string]bool{},
			initial:    Config{Endpoint: "http://keep", Step: time.Second, Gzip: true},
			expected:   Config{Endpoint: "http://keep", Step: time.Second, Gzip: true},
		},
		{
			name:       "invalid duration",
			fileConfig: FileConfig{Step: "often"},
			changed:    map[string]bool{},
			wantErr:    true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := tt.initial
			err := ApplyFileConfig(&cfg, tt.fileConfig, tt.changed)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ApplyFileConfig() error = %v, wantErr %v", err, tt.wantErr)
			}
			if !tt.wantErr && !reflect.DeepEqual(cfg, tt.expected) {
				t.Errorf("config = %+v, want %+v", cfg, tt.expected)
			}
		})
	}
}

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("Failed to create test config file: %v", err)
	}
	return path
}

func TestLoadFileConfig(t *testing.T) {
	tests := []struct {
		name    string
		file    string
		content string
	}{
		{
			name: "toml",
			file: "config.toml",
			content: `
endpoint = "http://collector/api/v1/publish"
batch_size = 250
step = "15s"
gzip = true

[tags]
env = "prod"
region = "eu-west-1"
`,
		},
		{
			name: "yaml",
			file: "config.yaml",
			content: `
endpoint: http://collector/api/v1/publish
batch_size: 250
step: 15s
gzip: true
tags:
  env: prod
  region: eu-west-1
`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fc, err := LoadFileConfig(writeFile(t, tt.file, tt.content))
			if err != nil {
				t.Fatalf("LoadFileConfig() error = %v", err)
			}
			if fc.Endpoint != "http://collector/api/v1/publish" {
				t.Errorf("Endpoint = %v", fc.Endpoint)
			}
			if fc.BatchSize != 250 {
				t.Errorf("BatchSize = %v, want 250", fc.BatchSize)
			}
			if fc.Step != "15s" {
				t.Errorf("Step = %v, want 15s", fc.Step)
			}
			if fc.Gzip == nil || !*fc.Gzip {
				t.Errorf("Gzip = %v, want true", fc.Gzip)
			}
			want := map[string]string{"env": "prod", "region": "eu-west-1"}
			if !reflect.DeepEqual(fc.Tags, want) {
				t.Errorf("Tags = %v, want %v", fc.Tags, want)
			}
			if fc.Once != nil {
				t.Errorf("Once = %v, want unset", *fc.Once)
			}
		})
	}
}

func TestLoadFileConfig_InvalidFile(t *testing.T) {
	_, err := LoadFileConfig("/nonexistent/path/config.toml")
	if err == nil {
		t.Error("LoadFileConfig() expected error for nonexistent file")
	}
}

func TestLoadFileConfig_Invalid(t *testing.T) {
	tests := []struct {
		file    string
		content string
	}{
		{"invalid.toml", "endpoint = \"x\"\nthis is not valid toml\n"},
		{"invalid.yml", "endpoint: [unclosed\n"},
	}

	for _, tt := range tests {
		t.Run(tt.file, func(t *testing.T) {
			if _, err := LoadFileConfig(writeFile(t, tt.file, tt.content)); err == nil {
				t.Error("LoadFileConfig() expected error")
			}
		})
	}
}

func TestDefaultConfigPath(t *testing.T) {
	path := DefaultConfigPath()

	if path != "" && !strings.Contains(path, ".metricship") {
		t.Errorf("DefaultConfigPath() = %v, should contain .metricship", path)
	}
}

func TestFileExists(t *testing.T) {
	existing := writeFile(t, "exists.txt", "test")

	if !FileExists(existing) {
		t.Error("FileExists() = false, want true for existing file")
	}
	if FileExists(filepath.Join(filepath.Dir(existing), "nonexistent.txt")) {
		t.Error("FileExists() = true, want false for nonexistent file")
	}
}

func TestResolve_Precedence(t *testing.T) {
	path := writeFile(t, "config.toml", `
endpoint = "http://file/publish"
batch_size = 100
step = "30s"
encoding = "json"
`)
	t.Setenv("METRICSHIP_BATCH_SIZE", "200")
	t.Setenv("METRICSHIP_ENCODING", "msgpack")

	flags := DefaultConfig()
	flags.Encoding = "json"
	changed := map[string]bool{"encoding": true}

	cfg, err := Resolve(flags, path, changed)
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}

	if cfg.Endpoint != "http://file/publish" {
		t.Errorf("Endpoint = %v, want value from file", cfg.Endpoint)
	}
	if cfg.Step != 30*time.Second {
		t.Errorf("Step = %v, want value from file", cfg.Step)
	}
	if cfg.BatchSize != 200 {
		t.Errorf("BatchSize = %v, want env over file", cfg.BatchSize)
	}
	if cfg.Encoding != "json" {
		t.Errorf("Encoding = %v, want flag over env", cfg.Encoding)
	}
	if cfg.PublishTimeout != DefaultConfig().PublishTimeout {
		t.Errorf("PublishTimeout = %v, want default", cfg.PublishTimeout)
	}
	if flags.Endpoint != DefaultEndpoint {
		t.Error("Resolve() modified flags")
	}
}

func TestResolve_MissingFileUsesFlags(t *testing.T) {
	cfg, err := Resolve(DefaultConfig(), filepath.Join(t.TempDir(), "none.toml"), map[string]bool{})
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if cfg.Endpoint != DefaultEndpoint {
		t.Errorf("Endpoint = %v, want default", cfg.Endpoint)
	}
}

func TestResolve_InvalidResult(t *testing.T) {
	path := writeFile(t, "config.yaml", "encoding: xml\n")
	if _, err := Resolve(DefaultConfig(), path, map[string]bool{}); err == nil {
		t.Error("Resolve() expected validation error")
	}
}
