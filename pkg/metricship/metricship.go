package metricship

import (
	"context"
	"errors"
	"sync"
	"time"

	httpadapter "github.com/bft-labs/metricship/internal/adapters/http"
	"github.com/bft-labs/metricship/internal/app"
	"github.com/bft-labs/metricship/internal/cliconfig"
	"github.com/bft-labs/metricship/internal/collector"
	"github.com/bft-labs/metricship/internal/dispatch"
	"github.com/bft-labs/metricship/internal/domain"
	"github.com/bft-labs/metricship/internal/encoding"
	"github.com/bft-labs/metricship/internal/publisher"
)

// Sample is a single measurement.
type Sample = domain.Sample

// NumericSample builds a Sample carrying v.
func NumericSample(name string, tags map[string]string, ts time.Time, v float64) Sample {
	return domain.NumericSample(name, tags, ts, v)
}

// Result summarizes one publish cycle.
type Result = publisher.Result

// State is the lifecycle state of periodic publishing.
type State = app.State

// Lifecycle states.
const (
	StateStopped  = app.StateStopped
	StateStarting = app.StateStarting
	StateRunning  = app.StateRunning
	StateStopping = app.StateStopping
	StateCrashed  = app.StateCrashed
)

// ErrNoSource is returned by Start when no source was configured.
var ErrNoSource = errors.New("metricship: no sample source configured")

// Config configures a Client. Zero values take the defaults of the CLI.
type Config struct {
	Endpoint       string
	AuthKey        string
	Tags           map[string]string
	BatchSize      int
	Step           time.Duration
	PublishTimeout time.Duration
	HTTPTimeout    time.Duration
	MaxInFlight    int
	Gzip           bool

	// Encoding is "msgpack" (default) or "json".
	Encoding string
}

// resolved fills defaults and validates.
func (c Config) resolved() (cliconfig.Config, error) {
	cfg := cliconfig.DefaultConfig()
	if c.Endpoint != "" {
		cfg.Endpoint = c.Endpoint
	}
	if c.BatchSize != 0 {
		cfg.BatchSize = c.BatchSize
	}
	if c.Step != 0 {
		cfg.Step = c.Step
	}
	if c.PublishTimeout != 0 {
		cfg.PublishTimeout = c.PublishTimeout
	}
	if c.Encoding != "" {
		cfg.Encoding = c.Encoding
	}
	cfg.AuthKey = c.AuthKey
	cfg.Tags = c.Tags
	cfg.HTTPTimeout = c.HTTPTimeout
	cfg.MaxInFlight = c.MaxInFlight
	cfg.Gzip = c.Gzip

	if err := cfg.Validate(); err != nil {
		return cliconfig.Config{}, err
	}
	return cfg, nil
}

// Client publishes samples to one endpoint.
type Client struct {
	opts      options
	publisher *publisher.Publisher
	runner    *app.Runner

	mu sync.Mutex
}

// New creates a Client.
func New(cfg Config, opts ...Option) (*Client, error) {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}

	rc, err := cfg.resolved()
	if err != nil {
		return nil, err
	}
	enc, err := encoding.ForName(rc.Encoding)
	if err != nil {
		return nil, err
	}

	sender := httpadapter.NewSender(httpadapter.SenderConfig{
		Endpoint: rc.Endpoint,
		AuthKey:  rc.AuthKey,
		Step:     rc.Step,
		Timeout:  rc.HTTPTimeout,
		Gzip:     rc.Gzip,
	}, enc, collector.New(o.httpClient, o.logger), o.logger)

	dopts := []dispatch.Option{
		dispatch.WithLogger(o.logger),
		dispatch.WithMaxInFlight(rc.MaxInFlight),
	}
	if o.meterProvider != nil {
		dopts = append(dopts, dispatch.WithMeterProvider(o.meterProvider))
	}

	c := &Client{opts: o}
	c.publisher = publisher.New(publisher.Config{
		BatchSize: rc.BatchSize,
		Timeout:   rc.PublishTimeout,
	}, sender, dispatch.New(dopts...), domain.TagListFromMap(rc.Tags), o.logger)

	if o.source != nil {
		var emitter app.PublishEventEmitter
		if o.eventHandler != nil {
			emitter = runnerEvents{handler: o.eventHandler}
		}
		c.runner = app.NewRunner(app.RunnerConfig{Step: rc.Step}, o.source, c.publisher, o.logger, emitter)
	}
	return c, nil
}

// Publish sends samples and blocks until every batch reported or the publish
// timeout elapsed.
func (c *Client) Publish(ctx context.Context, samples []Sample) Result {
	res := c.publisher.Publish(ctx, samples)
	if c.opts.eventHandler != nil {
		c.opts.eventHandler.OnPublish(res)
	}
	return res
}

// SetTags replaces the common tags of later cycles.
func (c *Client) SetTags(tags map[string]string) {
	c.publisher.SetTags(domain.TagListFromMap(tags))
}

// Start publishes from the configured source every step in the background.
func (c *Client) Start(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.runner == nil {
		return ErrNoSource
	}
	return c.runner.Start(ctx)
}

// Stop ends periodic publishing and waits for the running cycle.
func (c *Client) Stop() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.runner == nil {
		return domain.ErrNotRunning
	}
	return c.runner.Stop()
}

// Status returns the lifecycle state of periodic publishing.
func (c *Client) Status() State {
	if c.runner == nil {
		return StateStopped
	}
	return c.runner.State()
}
