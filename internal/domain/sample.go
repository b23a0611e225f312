package domain

import (
	"math"
	"time"
)

// Sample is a single measurement. Value is nil for samples that do not carry
// a number (for example a string-valued informational metric); such samples
// are dropped when a payload is built.
type Sample struct {
	Name      string
	Tags      map[string]string
	Timestamp time.Time
	Value     *float64
}

// NumericSample builds a Sample carrying v.
func NumericSample(name string, tags map[string]string, ts time.Time, v float64) Sample {
	return Sample{Name: name, Tags: tags, Timestamp: ts, Value: &v}
}

// HasNumberValue reports whether the sample can be published.
func (s Sample) HasNumberValue() bool {
	return s.Value != nil && !math.IsNaN(*s.Value)
}

// CountNumeric returns how many samples carry a numeric value.
func CountNumeric(samples []Sample) int {
	n := 0
	for _, s := range samples {
		if s.HasNumberValue() {
			n++
		}
	}
	return n
}
