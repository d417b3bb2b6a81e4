package order

import (
	"context"
	"time"
)

// Metrics is the sink for processor outcome counters and the cycle duration
// timer. Implementations must be safe for concurrent use; the OpenTelemetry
// backed implementation lives in internal/telemetry.
type Metrics interface {
	// OrderCalculated increments the success counter.
	OrderCalculated(ctx context.Context)
	// OrderFailed increments the error counter.
	OrderFailed(ctx context.Context)
	// CycleObserved records the duration of one full processing cycle and
	// the number of orders it touched.
	CycleObserved(ctx context.Context, d time.Duration, processed int)
}

// NopMetrics discards all measurements.
type NopMetrics struct{}

func (NopMetrics) OrderCalculated(context.Context)                   {}
func (NopMetrics) OrderFailed(context.Context)                       {}
func (NopMetrics) CycleObserved(context.Context, time.Duration, int) {}
