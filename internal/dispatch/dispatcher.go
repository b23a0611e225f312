package dispatch

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
	"golang.org/x/sync/semaphore"

	"github.com/bft-labs/metricship/pkg/log"
)

// Batch is one independently dispatched unit of work. It returns how many of
// its items were delivered, or an error. ctx is cancelled when the cycle
// deadline elapses; batches should stop at their next blocking point.
type Batch func(ctx context.Context) (int, error)

// Job is the set of batches submitted together in one publish cycle.
type Job struct {
	Batches []Batch

	// ExpectedTotal is the sum of the item counts of all batches.
	ExpectedTotal int

	// Timeout bounds the whole cycle. Non-positive means the cycle is only
	// bounded by the caller's context.
	Timeout time.Duration
}

// Outcome is the merged result of a Job.
type Outcome struct {
	Delivered int
	Expected  int

	// Failed is set when any batch failed or the deadline elapsed.
	Failed bool

	// TimedOut is set when the deadline elapsed before every batch reported.
	TimedOut bool

	// SilentPartial is set when no failure was recorded yet fewer items than
	// expected were delivered.
	SilentPartial bool

	// Errors holds every failure recorded before the call returned.
	Errors []error
}

// Err returns nil when no failure was recorded, otherwise an *AggregateError.
func (o Outcome) Err() error {
	if len(o.Errors) == 0 {
		return nil
	}
	return &AggregateError{Errs: o.Errors}
}

// Dispatcher fans batches out and merges their results. A Dispatcher holds no
// per-cycle state and may be used for concurrent cycles.
type Dispatcher struct {
	logger      log.Logger
	maxInFlight int64
	metrics     *instruments
}

// Option configures a Dispatcher.
type Option func(*Dispatcher)

// WithLogger sets the logger. The default discards everything.
func WithLogger(logger log.Logger) Option {
	return func(d *Dispatcher) {
		d.logger = logger
	}
}

// WithMaxInFlight bounds how many batches of one cycle hold a transport slot
// at the same time. Every batch is still started immediately; excess batches
// wait for a slot inside their own goroutine. Zero means unbounded.
func WithMaxInFlight(n int) Option {
	return func(d *Dispatcher) {
		if n > 0 {
			d.maxInFlight = int64(n)
		}
	}
}

// WithMeterProvider sets where dispatch metrics are recorded. The default is
// the global otel provider.
func WithMeterProvider(mp metric.MeterProvider) Option {
	return func(d *Dispatcher) {
		d.metrics = newInstruments(mp)
	}
}

// New creates a Dispatcher.
func New(opts ...Option) *Dispatcher {
	d := &Dispatcher{logger: log.NewNoopLogger()}
	for _, opt := range opts {
		opt(d)
	}
	if d.metrics == nil {
		d.metrics = newInstruments(otel.GetMeterProvider())
	}
	return d
}

// SendAll dispatches batches and returns how many items were delivered. It
// never fails: comparing the result with expectedTotal is up to the caller.
func (d *Dispatcher) SendAll(ctx context.Context, batches []Batch, expectedTotal int, timeout time.Duration) int {
	return d.Dispatch(ctx, Job{Batches: batches, ExpectedTotal: expectedTotal, Timeout: timeout}).Delivered
}

// Dispatch runs every batch of job concurrently and waits until all of them
// reported or the deadline elapsed.
func (d *Dispatcher) Dispatch(ctx context.Context, job Job) Outcome {
	expected := job.ExpectedTotal
	if expected < 0 {
		expected = 0
	}
	c := &cycle{d: d, expected: int64(expected)}
	c.pending.Store(int64(len(job.Batches)))

	d.logger.Debug("dispatching batches",
		log.Int("batches", len(job.Batches)),
		log.Int("expected", expected),
		log.Duration("timeout", job.Timeout),
	)

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	var sem *semaphore.Weighted
	if d.maxInFlight > 0 {
		sem = semaphore.NewWeighted(d.maxInFlight)
	}

	var wg sync.WaitGroup
	wg.Add(len(job.Batches))
	for i, b := range job.Batches {
		go func(idx int, b Batch) {
			defer wg.Done()
			n, err := runBatch(runCtx, sem, b)
			c.report(runCtx, idx, n, err)
		}(i, b)
	}

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()

	var deadline <-chan time.Time
	if job.Timeout > 0 {
		timer := time.NewTimer(job.Timeout)
		defer timer.Stop()
		deadline = timer.C
	}

	select {
	case <-done:
	case <-deadline:
		c.expire(ctx, cancel, "deadline elapsed")
	case <-ctx.Done():
		c.expire(ctx, cancel, ctx.Err().Error())
	}

	return c.finish(ctx)
}

// runBatch executes b, converting a panic into an error.
func runBatch(ctx context.Context, sem *semaphore.Weighted, b Batch) (n int, err error) {
	defer func() {
		if r := recover(); r != nil {
			n, err = 0, fmt.Errorf("%w: %v", ErrBatchPanic, r)
		}
	}()

	if sem != nil {
		if err := sem.Acquire(ctx, 1); err != nil {
			return 0, fmt.Errorf("wait for transport slot: %w", err)
		}
		defer sem.Release(1)
	}
	return b(ctx)
}

// cycle is the state shared by the batches of one Dispatch call.
type cycle struct {
	d        *Dispatcher
	expected int64

	delivered atomic.Int64
	failed    atomic.Bool
	timedOut  atomic.Bool
	closed    atomic.Bool
	pending   atomic.Int64

	mu   sync.Mutex
	errs []error
}

func (c *cycle) report(ctx context.Context, idx int, n int, err error) {
	defer c.pending.Add(-1)

	if c.closed.Load() {
		c.d.logger.Debug("discarding late batch result",
			log.Int("batch", idx),
			log.Int("count", n),
		)
		return
	}

	if err == nil && n < 0 {
		err = fmt.Errorf("%w: %d", ErrNegativeCount, n)
	}
	if err != nil {
		c.fail(ctx, idx, err)
		return
	}

	added := c.add(int64(n))
	if added < int64(n) {
		c.d.logger.Warn("batch reported more items than expected, clamping",
			log.Int("batch", idx),
			log.Int("reported", n),
			log.Int64("counted", added),
			log.Int64("total", c.expected),
		)
	}
	c.d.metrics.delivered.Add(ctx, added)
}

// add increases the delivered count without passing expected.
func (c *cycle) add(n int64) int64 {
	for {
		cur := c.delivered.Load()
		inc := n
		if room := c.expected - cur; inc > room {
			inc = room
		}
		if inc < 0 {
			inc = 0
		}
		if c.delivered.CompareAndSwap(cur, cur+inc) {
			return inc
		}
	}
}

func (c *cycle) fail(ctx context.Context, idx int, err error) {
	c.failed.Store(true)

	c.mu.Lock()
	if c.closed.Load() {
		c.mu.Unlock()
		return
	}
	c.errs = append(c.errs, err)
	c.mu.Unlock()

	kind := kindBatch
	switch {
	case errors.Is(err, ErrBatchPanic):
		kind = kindPanic
		c.d.logger.Error("unexpected batch failure",
			log.Int("batch", idx),
			log.Int64("sent", c.delivered.Load()),
			log.Int64("total", c.expected),
			log.Err(err),
		)
	case errors.Is(err, ErrNegativeCount):
		kind = kindNegative
		fallthrough
	default:
		c.logFailure("batch failed", idx, err)
	}
	c.d.metrics.failures.Add(ctx, 1, kindAttr(kind))
}

// logFailure logs err with the progress of the cycle. Errors carrying several
// causes get one extra entry per cause.
func (c *cycle) logFailure(msg string, idx int, err error) {
	sent, total := c.delivered.Load(), c.expected
	c.d.logger.Warn(msg,
		log.Int("batch", idx),
		log.String("progress", fmt.Sprintf("sent %d/%d", sent, total)),
		log.Int64("sent", sent),
		log.Int64("total", total),
		log.Err(err),
	)

	causes := Causes(err)
	if len(causes) < 2 {
		return
	}
	for i, cause := range causes {
		c.d.logger.Warn("batch failure cause",
			log.Int("batch", idx),
			log.Int("cause", i),
			log.String("type", fmt.Sprintf("%T", cause)),
			log.Err(cause),
		)
	}
}

// expire marks the cycle as timed out and cancels batches still running.
func (c *cycle) expire(ctx context.Context, cancel context.CancelFunc, reason string) {
	c.failed.Store(true)
	c.timedOut.Store(true)
	cancel()

	pending := c.pending.Load()
	c.mu.Lock()
	c.errs = append(c.errs, fmt.Errorf("%w: %s with %d batches pending", ErrDeadlineExceeded, reason, pending))
	c.mu.Unlock()

	c.d.logger.Warn("timed out sending batches",
		log.String("progress", fmt.Sprintf("sent %d/%d", c.delivered.Load(), c.expected)),
		log.Int64("sent", c.delivered.Load()),
		log.Int64("total", c.expected),
		log.Int64("pending", pending),
		log.String("reason", reason),
	)
	c.d.metrics.timeouts.Add(ctx, 1)
}

// finish freezes the cycle and builds the Outcome. Results reported after
// this point are discarded.
func (c *cycle) finish(ctx context.Context) Outcome {
	c.mu.Lock()
	c.closed.Store(true)
	errs := append([]error(nil), c.errs...)
	c.mu.Unlock()

	out := Outcome{
		Delivered: int(c.delivered.Load()),
		Expected:  int(c.expected),
		Failed:    c.failed.Load(),
		TimedOut:  c.timedOut.Load(),
		Errors:    errs,
	}

	if !out.Failed && out.Delivered < out.Expected {
		out.SilentPartial = true
		c.d.logger.Warn("no error caught, but not every item was sent",
			log.String("progress", fmt.Sprintf("sent %d/%d", out.Delivered, out.Expected)),
			log.Int("sent", out.Delivered),
			log.Int("total", out.Expected),
		)
		c.d.metrics.silentPartial.Add(ctx, 1)
	}

	c.d.logger.Debug("dispatch finished",
		log.Int("sent", out.Delivered),
		log.Int("total", out.Expected),
		log.Bool("failed", out.Failed),
	)
	return out
}
