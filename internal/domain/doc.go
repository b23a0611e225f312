// Package domain contains the core value types of metricship.
//
// It has no dependencies on transport, encoding or logging.
//
//   - [Sample]: one telemetry sample (name, tags, timestamp, value)
//   - [TagList]: an ordered set of common tags attached to every publish
//   - [Chunk]: a slice of samples that is shipped as a single batch
//
// Tag keys and values are cleaned with [Sanitize] before they reach the wire.
package domain
