// Package publisher turns a set of samples into one dispatch cycle: the
// samples are chunked, each chunk becomes a batch sent by a BatchSender, and
// the dispatcher merges the results.
package publisher

import (
	"context"
	"sync"
	"time"

	"github.com/bft-labs/metricship/internal/dispatch"
	"github.com/bft-labs/metricship/internal/domain"
	"github.com/bft-labs/metricship/internal/ports"
	"github.com/bft-labs/metricship/pkg/log"
)

// DefaultBatchSize is used when Config.BatchSize is not positive.
const DefaultBatchSize = 10000

// Config controls how a cycle is split and bounded.
type Config struct {
	BatchSize int

	// Timeout bounds the whole cycle across all batches.
	Timeout time.Duration
}

// Result summarizes one Publish call.
type Result struct {
	Delivered int
	Expected  int
	Batches   int
	Duration  time.Duration
	Outcome   dispatch.Outcome
}

// Complete reports whether every sample was delivered.
func (r Result) Complete() bool {
	return r.Delivered >= r.Expected
}

// Publisher sends samples with a set of common tags.
type Publisher struct {
	cfg        Config
	sender     ports.BatchSender
	dispatcher *dispatch.Dispatcher
	logger     log.Logger

	mu   sync.RWMutex
	tags domain.TagList
}

// New creates a Publisher. A nil dispatcher gets a default one.
func New(cfg Config, sender ports.BatchSender, dispatcher *dispatch.Dispatcher, tags domain.TagList, logger log.Logger) *Publisher {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = DefaultBatchSize
	}
	if logger == nil {
		logger = log.NewNoopLogger()
	}
	if dispatcher == nil {
		dispatcher = dispatch.New(dispatch.WithLogger(logger))
	}
	return &Publisher{
		cfg:        cfg,
		sender:     sender,
		dispatcher: dispatcher,
		logger:     logger,
		tags:       tags,
	}
}

// SetTags replaces the common tags used by subsequent cycles.
func (p *Publisher) SetTags(tags domain.TagList) {
	p.mu.Lock()
	p.tags = tags
	p.mu.Unlock()
}

// Tags returns the current common tags.
func (p *Publisher) Tags() domain.TagList {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.tags
}

// Publish sends samples and waits for the cycle to finish or time out. The
// expected total is every sample handed in, so samples the encoder drops show
// up as undelivered.
func (p *Publisher) Publish(ctx context.Context, samples []domain.Sample) Result {
	start := time.Now()
	if len(samples) == 0 {
		return Result{}
	}

	tags := p.Tags()
	chunks := domain.Split(samples, p.cfg.BatchSize)
	batches := make([]dispatch.Batch, 0, len(chunks))
	for _, chunk := range chunks {
		batches = append(batches, func(ctx context.Context) (int, error) {
			return p.sender.Send(ctx, tags, chunk)
		})
	}

	outcome := p.dispatcher.Dispatch(ctx, dispatch.Job{
		Batches:       batches,
		ExpectedTotal: len(samples),
		Timeout:       p.cfg.Timeout,
	})

	res := Result{
		Delivered: outcome.Delivered,
		Expected:  outcome.Expected,
		Batches:   len(batches),
		Duration:  time.Since(start),
		Outcome:   outcome,
	}
	p.logger.Debug("publish cycle finished",
		log.Int("delivered", res.Delivered),
		log.Int("expected", res.Expected),
		log.Int("batches", res.Batches),
		log.Duration("duration", res.Duration),
	)
	return res
}
