package dispatch

import (
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
)

const meterName = "github.com/bft-labs/metricship/internal/dispatch"

// Failure kinds used as the "kind" attribute on the failures counter.
const (
	kindBatch    = "batch"
	kindPanic    = "panic"
	kindNegative = "negative_count"
)

type instruments struct {
	delivered     metric.Int64Counter
	failures      metric.Int64Counter
	timeouts      metric.Int64Counter
	silentPartial metric.Int64Counter
}

func newInstruments(mp metric.MeterProvider) *instruments {
	meter := mp.Meter(meterName)
	return &instruments{
		delivered: counter(meter, "metricship.dispatch.delivered",
			"Items acknowledged by the collection endpoint.", "{item}"),
		failures: counter(meter, "metricship.dispatch.batch_failures",
			"Batches that ended in an error.", "{batch}"),
		timeouts: counter(meter, "metricship.dispatch.timeouts",
			"Cycles that hit their deadline before every batch reported.", "{cycle}"),
		silentPartial: counter(meter, "metricship.dispatch.silent_partial_failures",
			"Cycles without errors that still delivered fewer items than expected.", "{cycle}"),
	}
}

func counter(meter metric.Meter, name, desc, unit string) metric.Int64Counter {
	c, err := meter.Int64Counter(name, metric.WithDescription(desc), metric.WithUnit(unit))
	if err != nil {
		return noop.Int64Counter{}
	}
	return c
}

func kindAttr(kind string) metric.AddOption {
	return metric.WithAttributes(attribute.String("kind", kind))
}
