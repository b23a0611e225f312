package fs

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strconv"
	"time"

	"github.com/bft-labs/metricship/internal/domain"
)

// Stdin is the path that selects standard input.
const Stdin = "-"

// maxLineBytes bounds a single JSON line.
const maxLineBytes = 1 << 20

// sampleLine is the on-disk form of one sample.
type sampleLine struct {
	Name      string            `json:"name"`
	Tags      map[string]string `json:"tags"`
	Timestamp json.RawMessage   `json:"timestamp"`
	Value     json.RawMessage   `json:"value"`
}

// FileSource implements ports.SampleSource over newline-delimited JSON.
// A regular file is re-read on every call so another process can keep
// rewriting it; standard input is drained once.
type FileSource struct {
	path  string
	stdin io.Reader
	now   func() time.Time
}

// NewFileSource creates a FileSource reading path, or standard input when
// path is "-".
func NewFileSource(path string) *FileSource {
	return &FileSource{path: path, stdin: os.Stdin, now: time.Now}
}

// NewReaderSource creates a FileSource that drains r.
func NewReaderSource(r io.Reader) *FileSource {
	return &FileSource{path: Stdin, stdin: r, now: time.Now}
}

// Samples reads every sample currently available.
func (s *FileSource) Samples(ctx context.Context) ([]domain.Sample, error) {
	if s.path == Stdin {
		return s.parse(ctx, s.stdin)
	}

	f, err := os.Open(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	defer f.Close()
	return s.parse(ctx, f)
}

func (s *FileSource) parse(ctx context.Context, r io.Reader) ([]domain.Sample, error) {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), maxLineBytes)

	now := s.now()
	var out []domain.Sample
	for lineNo := 1; sc.Scan(); lineNo++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		line := bytes.TrimSpace(sc.Bytes())
		if len(line) == 0 || line[0] == '#' {
			continue
		}

		var sl sampleLine
		if err := json.Unmarshal(line, &sl); err != nil {
			return nil, fmt.Errorf("line %d: %w", lineNo, err)
		}
		if sl.Name == "" {
			return nil, fmt.Errorf("line %d: missing name", lineNo)
		}
		ts, err := parseTimestamp(sl.Timestamp, now)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", lineNo, err)
		}

		out = append(out, domain.Sample{
			Name:      sl.Name,
			Tags:      sl.Tags,
			Timestamp: ts,
			Value:     parseValue(sl.Value),
		})
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// parseTimestamp accepts epoch milliseconds or an RFC 3339 string. A missing
// timestamp means now.
func parseTimestamp(raw json.RawMessage, now time.Time) (time.Time, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return now, nil
	}
	if raw[0] == '"' {
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return time.Time{}, err
		}
		t, err := time.Parse(time.RFC3339Nano, s)
		if err != nil {
			return time.Time{}, fmt.Errorf("timestamp: %w", err)
		}
		return t, nil
	}
	ms, err := strconv.ParseInt(string(raw), 10, 64)
	if err != nil {
		return time.Time{}, fmt.Errorf("timestamp: %w", err)
	}
	return time.UnixMilli(ms), nil
}

// parseValue returns nil unless raw is a JSON number.
func parseValue(raw json.RawMessage) *float64 {
	if len(raw) == 0 || !(raw[0] == '-' || (raw[0] >= '0' && raw[0] <= '9')) {
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(raw, &n); err != nil {
		return nil
	}
	v, err := n.Float64()
	if err != nil {
		return nil
	}
	return &v
}
