package ports

import (
	"context"

	"github.com/bft-labs/metricship/internal/domain"
)

// BatchSender ships one chunk of samples to the collection endpoint.
type BatchSender interface {
	// Send encodes and transmits chunk with the common tags. It returns how
	// many samples the endpoint accepted; that can be lower than
	// chunk.Size() without an error when samples were filtered or rejected.
	Send(ctx context.Context, tags domain.TagList, chunk domain.Chunk) (int, error)
}
