package app

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/bft-labs/metricship/internal/domain"
	"github.com/bft-labs/metricship/internal/ports"
	"github.com/bft-labs/metricship/internal/publisher"
	"github.com/bft-labs/metricship/pkg/log"
)

// DefaultStep is the publish interval used when RunnerConfig.Step is unset.
const DefaultStep = time.Minute

// RunnerConfig contains configuration for the publish loop.
type RunnerConfig struct {
	// Step is the interval between publish cycles.
	Step time.Duration

	// Once publishes a single cycle and returns.
	Once bool
}

// Publisher sends one cycle worth of samples.
type Publisher interface {
	Publish(ctx context.Context, samples []domain.Sample) publisher.Result
}

// PublishEventEmitter is notified after every cycle.
type PublishEventEmitter interface {
	OnPublish(res publisher.Result)
	OnSourceError(err error)
}

// Runner reads samples from a source every step and publishes them.
type Runner struct {
	config    RunnerConfig
	source    ports.SampleSource
	publisher Publisher
	logger    log.Logger
	emitter   PublishEventEmitter
	lifecycle *Lifecycle

	mu sync.Mutex
}

// NewRunner creates a Runner with the given dependencies. Logger and emitter
// may be nil. An emitter that also implements StateListener receives the
// Runner's lifecycle transitions.
func NewRunner(
	config RunnerConfig,
	source ports.SampleSource,
	pub Publisher,
	logger log.Logger,
	emitter PublishEventEmitter,
) *Runner {
	if config.Step <= 0 {
		config.Step = DefaultStep
	}
	if logger == nil {
		logger = log.NewNoopLogger()
	}
	listener, _ := emitter.(StateListener)
	return &Runner{
		config:    config,
		source:    source,
		publisher: pub,
		logger:    logger,
		emitter:   emitter,
		lifecycle: NewLifecycle(logger, listener),
	}
}

// Run publishes immediately and then once per step until ctx is canceled.
// In Once mode it returns after the first cycle, with ErrIncompleteDelivery
// when not every sample was delivered.
func (r *Runner) Run(ctx context.Context) error {
	if r.config.Once {
		res, err := r.Cycle(ctx)
		if err != nil {
			return err
		}
		if !res.Complete() {
			return fmt.Errorf("%w: sent %d/%d", domain.ErrIncompleteDelivery, res.Delivered, res.Expected)
		}
		return nil
	}

	ticker := time.NewTicker(r.config.Step)
	defer ticker.Stop()

	for {
		_, _ = r.Cycle(ctx)

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// Cycle reads the source once and publishes what it returned.
func (r *Runner) Cycle(ctx context.Context) (publisher.Result, error) {
	samples, err := r.source.Samples(ctx)
	if err != nil {
		r.logger.Error("read samples", log.Err(err))
		if r.emitter != nil {
			r.emitter.OnSourceError(err)
		}
		return publisher.Result{}, err
	}
	if len(samples) == 0 {
		r.logger.Debug("no samples to publish")
		return publisher.Result{}, nil
	}

	res := r.publisher.Publish(ctx, samples)
	r.logger.Info("published samples",
		log.Int("delivered", res.Delivered),
		log.Int("expected", res.Expected),
		log.Int("batches", res.Batches),
		log.Duration("duration", res.Duration),
	)
	if r.emitter != nil {
		r.emitter.OnPublish(res)
	}
	return res, nil
}

// Start runs the loop in the background.
func (r *Runner) Start(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.lifecycle.CanStart() {
		return domain.ErrAlreadyRunning
	}
	if err := r.lifecycle.TransitionTo(StateStarting, "Start() called"); err != nil {
		return err
	}

	runCtx, cancel := context.WithCancel(ctx)
	r.lifecycle.SetCancel(cancel)

	r.lifecycle.AddWorker()
	go func() {
		defer r.lifecycle.WorkerDone()

		if err := r.lifecycle.TransitionTo(StateRunning, "loop starting"); err != nil {
			r.logger.Error("failed to transition to running", log.Err(err))
			return
		}

		err := r.Run(runCtx)
		if err != nil && !errors.Is(err, context.Canceled) {
			r.logger.Error("publish loop stopped", log.Err(err))
			_ = r.lifecycle.TransitionTo(StateCrashed, err.Error())
		}
	}()

	return nil
}

// Stop cancels the loop and waits up to ShutdownTimeout for it to return.
func (r *Runner) Stop() error {
	r.mu.Lock()
	if !r.lifecycle.CanStop() {
		r.mu.Unlock()
		return domain.ErrNotRunning
	}
	if err := r.lifecycle.TransitionTo(StateStopping, "Stop() called"); err != nil {
		r.mu.Unlock()
		return err
	}
	r.lifecycle.Cancel()
	r.mu.Unlock()

	err := r.lifecycle.WaitWithTimeout(ShutdownTimeout)
	if err != nil {
		_ = r.lifecycle.TransitionTo(StateCrashed, "shutdown timeout")
	} else {
		_ = r.lifecycle.TransitionTo(StateStopped, "graceful shutdown")
	}
	return err
}

// State returns the current lifecycle state.
func (r *Runner) State() State {
	return r.lifecycle.State()
}
