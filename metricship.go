// Package metricship exposes the batch dispatcher for callers that bring
// their own batches.
//
// Example usage:
//
//	batches := []metricship.Batch{
//	    func(ctx context.Context) (int, error) { return sendChunk(ctx, first) },
//	    func(ctx context.Context) (int, error) { return sendChunk(ctx, second) },
//	}
//	sent := metricship.SendAll(ctx, batches, len(first)+len(second), 30*time.Second)
//	if sent < len(first)+len(second) {
//	    log.Printf("sent %d samples", sent)
//	}
//
// For a complete publisher see github.com/bft-labs/metricship/pkg/metricship.
package metricship

import (
	"context"
	"time"

	"github.com/bft-labs/metricship/internal/dispatch"
)

// Batch sends one batch and reports how many of its items were delivered.
type Batch = dispatch.Batch

// AggregateError carries several failures of one batch.
type AggregateError = dispatch.AggregateError

// SendAll runs every batch concurrently and waits until all of them reported
// or timeout elapsed. It returns the number of items delivered, which never
// exceeds expectedTotal. Failures are not logged; pkg/metricship wires a
// logger and metrics.
func SendAll(ctx context.Context, batches []Batch, expectedTotal int, timeout time.Duration) int {
	return dispatch.New().SendAll(ctx, batches, expectedTotal, timeout)
}
