package ports

import (
	"context"

	"github.com/bft-labs/metricship/internal/domain"
)

// SampleSource provides the samples for one publish cycle.
type SampleSource interface {
	// Samples returns the samples to publish now. An empty slice means there
	// is nothing to publish this cycle.
	Samples(ctx context.Context) ([]domain.Sample, error)
}
