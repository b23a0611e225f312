package encoding

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"time"

	"github.com/bft-labs/metricship/internal/domain"
)

// NameTag is the tag key that carries the metric name inside a record.
const NameTag = "name"

// Update is one publish request body.
type Update struct {
	Tags    map[string]string `msgpack:"tags" json:"tags"`
	Metrics []Record          `msgpack:"metrics" json:"metrics"`
}

// Record is the per-sample encoding. Msgpack carries infinite values as
// doubles; JSON has no literal for them, so they are written as the strings
// "Infinity" and "-Infinity".
type Record struct {
	Tags  map[string]string `msgpack:"tags" json:"tags"`
	Start int64             `msgpack:"start" json:"start"`
	Value float64           `msgpack:"value" json:"value"`
}

type jsonRecord struct {
	Tags  map[string]string `json:"tags"`
	Start int64             `json:"start"`
	Value json.RawMessage   `json:"value"`
}

func (r Record) MarshalJSON() ([]byte, error) {
	var v []byte
	switch {
	case math.IsInf(r.Value, 1):
		v = []byte(`"Infinity"`)
	case math.IsInf(r.Value, -1):
		v = []byte(`"-Infinity"`)
	case math.IsNaN(r.Value):
		v = []byte(`"NaN"`)
	default:
		v = strconv.AppendFloat(nil, r.Value, 'g', -1, 64)
	}
	return json.Marshal(jsonRecord{Tags: r.Tags, Start: r.Start, Value: v})
}

func (r *Record) UnmarshalJSON(b []byte) error {
	var jr jsonRecord
	if err := json.Unmarshal(b, &jr); err != nil {
		return err
	}
	r.Tags, r.Start = jr.Tags, jr.Start

	raw := bytes.TrimSpace(jr.Value)
	if len(raw) == 0 || raw[0] != '"' {
		r.Value = 0
		if len(raw) == 0 {
			return nil
		}
		return json.Unmarshal(raw, &r.Value)
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return err
	}
	switch s {
	case "Infinity":
		r.Value = math.Inf(1)
	case "-Infinity":
		r.Value = math.Inf(-1)
	case "NaN":
		r.Value = math.NaN()
	default:
		return fmt.Errorf("invalid value %q", s)
	}
	return nil
}

// NewUpdate builds an Update from the common tags and samples. Samples that
// do not carry a numeric value are skipped, so len(u.Metrics) may be lower
// than len(samples). Timestamps are aligned down to step when step > 0.
func NewUpdate(common domain.TagList, samples []domain.Sample, step time.Duration) (*Update, error) {
	if len(samples) == 0 {
		return nil, fmt.Errorf("build update: %w", domain.ErrNoSamples)
	}

	u := &Update{
		Tags:    common.Sanitized(),
		Metrics: make([]Record, 0, len(samples)),
	}
	for _, s := range samples {
		if !s.HasNumberValue() {
			continue
		}
		u.Metrics = append(u.Metrics, newRecord(s, step))
	}
	return u, nil
}

func newRecord(s domain.Sample, step time.Duration) Record {
	tags := make(map[string]string, len(s.Tags)+1)
	for k, v := range s.Tags {
		tags[domain.Sanitize(k)] = domain.Sanitize(v)
	}
	tags[NameTag] = domain.Sanitize(s.Name)

	start := s.Timestamp.UnixMilli()
	if stepMs := step.Milliseconds(); stepMs > 0 {
		start -= start % stepMs
	}

	return Record{Tags: tags, Start: start, Value: *s.Value}
}
