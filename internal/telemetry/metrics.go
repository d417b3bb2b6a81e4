// Package telemetry provides the OpenTelemetry-backed implementation of the
// domain metrics ports.
package telemetry

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"go.opentelemetry.io/otel/metric"

	"github.com/upstreamlab/order-pipeline/internal/domain/order"
)

var _ order.Metrics = (*ProcessorMetrics)(nil)

// ProcessorMetrics reports recalculation outcomes through OpenTelemetry
// instruments. The instruments are process-wide and safe for concurrent use.
type ProcessorMetrics struct {
	processed metric.Int64Counter
	failures  metric.Int64Counter
	duration  metric.Float64Histogram
}

// NewProcessorMetrics registers the processor instruments on the given meter
// provider.
func NewProcessorMetrics(mp metric.MeterProvider) (*ProcessorMetrics, error) {
	meter := mp.Meter("order-pipeline/processor")

	processed, err := meter.Int64Counter("order_processor_processed_total",
		metric.WithDescription("Orders successfully calculated"),
	)
	if err != nil {
		return nil, errors.Wrap(err, "processed counter")
	}

	failures, err := meter.Int64Counter("order_processor_errors_total",
		metric.WithDescription("Orders that failed calculation"),
	)
	if err != nil {
		return nil, errors.Wrap(err, "errors counter")
	}

	duration, err := meter.Float64Histogram("order_processor_duration_seconds",
		metric.WithDescription("Duration of one full processing cycle"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, errors.Wrap(err, "duration histogram")
	}

	return &ProcessorMetrics{
		processed: processed,
		failures:  failures,
		duration:  duration,
	}, nil
}

func (m *ProcessorMetrics) OrderCalculated(ctx context.Context) {
	m.processed.Add(ctx, 1)
}

func (m *ProcessorMetrics) OrderFailed(ctx context.Context) {
	m.failures.Add(ctx, 1)
}

func (m *ProcessorMetrics) CycleObserved(ctx context.Context, d time.Duration, _ int) {
	m.duration.Record(ctx, d.Seconds())
}
