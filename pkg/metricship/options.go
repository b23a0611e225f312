package metricship

import (
	"net/http"

	"go.opentelemetry.io/otel/metric"

	"github.com/bft-labs/metricship/internal/ports"
	"github.com/bft-labs/metricship/pkg/log"
)

// HTTPClient is the transport used for requests. *http.Client satisfies it.
type HTTPClient = ports.HTTPClient

// SampleSource provides the samples for each periodic cycle.
type SampleSource = ports.SampleSource

// Logger is the structured logger interface from pkg/log.
type Logger = log.Logger

// Option configures optional behavior of a Client.
type Option func(*options)

type options struct {
	httpClient    HTTPClient
	logger        Logger
	meterProvider metric.MeterProvider
	eventHandler  EventHandler
	source        SampleSource
}

func defaultOptions() options {
	return options{
		httpClient: http.DefaultClient,
		logger:     log.NewNoopLogger(),
	}
}

// WithHTTPClient sets the transport. Request deadlines are enforced by the
// client itself, so the transport needs no timeout of its own.
func WithHTTPClient(client HTTPClient) Option {
	return func(o *options) {
		if client != nil {
			o.httpClient = client
		}
	}
}

// WithLogger sets the logger.
func WithLogger(logger Logger) Option {
	return func(o *options) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithMeterProvider records dispatch metrics with mp instead of the global
// provider.
func WithMeterProvider(mp metric.MeterProvider) Option {
	return func(o *options) {
		o.meterProvider = mp
	}
}

// WithEventHandler sets the handler notified after every publish cycle.
func WithEventHandler(h EventHandler) Option {
	return func(o *options) {
		o.eventHandler = h
	}
}

// WithSource sets the source read by Start.
func WithSource(src SampleSource) Option {
	return func(o *options) {
		o.source = src
	}
}
