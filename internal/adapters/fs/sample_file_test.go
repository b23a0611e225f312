package fs

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

const sampleInput = `{"name":"cpu","tags":{"host":"a"},"timestamp":1700000000000,"value":0.5}

# comment
{"name":"version","value":"1.2.3"}
{"name":"quoted","value":"12"}
{"name":"nulled","value":null}
{"name":"rfc","timestamp":"2024-01-02T03:04:05Z","value":-3}
{"name":"nots"}
`

func TestFileSource_ParsesLines(t *testing.T) {
	fixed := time.Unix(100, 0)
	src := NewReaderSource(strings.NewReader(sampleInput))
	src.now = func() time.Time { return fixed }

	got, err := src.Samples(context.Background())
	if err != nil {
		t.Fatalf("Samples() error = %v", err)
	}
	if len(got) != 6 {
		t.Fatalf("len = %d, want 6", len(got))
	}

	tests := []struct {
		idx     int
		name    string
		numeric bool
		value   float64
		ts      time.Time
	}{
		{0, "cpu", true, 0.5, time.UnixMilli(1700000000000)},
		{1, "version", false, 0, fixed},
		{2, "quoted", false, 0, fixed},
		{3, "nulled", false, 0, fixed},
		{4, "rfc", true, -3, time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)},
		{5, "nots", false, 0, fixed},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := got[tt.idx]
			if s.Name != tt.name {
				t.Errorf("Name = %q, want %q", s.Name, tt.name)
			}
			if s.HasNumberValue() != tt.numeric {
				t.Errorf("HasNumberValue() = %v, want %v", s.HasNumberValue(), tt.numeric)
			}
			if tt.numeric && *s.Value != tt.value {
				t.Errorf("Value = %v, want %v", *s.Value, tt.value)
			}
			if !s.Timestamp.Equal(tt.ts) {
				t.Errorf("Timestamp = %v, want %v", s.Timestamp, tt.ts)
			}
		})
	}

	if got[0].Tags["host"] != "a" {
		t.Errorf("Tags[host] = %q, want a", got[0].Tags["host"])
	}
}

func TestFileSource_Errors(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"bad json", "{nope\n", "line 1"},
		{"missing name", `{"value":1}` + "\n", "missing name"},
		{"bad timestamp", `{"name":"x","timestamp":"yesterday"}` + "\n", "timestamp"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewReaderSource(strings.NewReader(tt.input)).Samples(context.Background())
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Errorf("error = %v, want containing %q", err, tt.want)
			}
		})
	}
}

func TestFileSource_RereadsFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "samples.jsonl")
	src := NewFileSource(path)

	got, err := src.Samples(context.Background())
	if err != nil || len(got) != 0 {
		t.Fatalf("missing file: got %v, %v; want empty, nil", got, err)
	}

	if err := os.WriteFile(path, []byte(`{"name":"a","value":1}`+"\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	got, _ = src.Samples(context.Background())
	if len(got) != 1 {
		t.Fatalf("len = %d, want 1", len(got))
	}

	if err := os.WriteFile(path, []byte(`{"name":"a","value":1}`+"\n"+`{"name":"b","value":2}`+"\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	got, _ = src.Samples(context.Background())
	if len(got) != 2 {
		t.Fatalf("len = %d, want 2", len(got))
	}
}

func TestFileSource_StdinDrainsOnce(t *testing.T) {
	src := NewReaderSource(strings.NewReader(`{"name":"a","value":1}` + "\n"))

	first, _ := src.Samples(context.Background())
	second, _ := src.Samples(context.Background())
	if len(first) != 1 || len(second) != 0 {
		t.Errorf("got %d then %d samples, want 1 then 0", len(first), len(second))
	}
}
