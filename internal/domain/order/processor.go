package order

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// Processor is the scheduled recalculation job. Each cycle loads every order
// still in the RECEIVED state, computes its total with exact decimal
// arithmetic, transitions it to CALCULATED or FAILED, and persists the whole
// processed set in one bulk write. A failure in one order never affects its
// siblings; only infrastructure errors abort a cycle.
type Processor struct {
	orders  Repository
	metrics Metrics
	now     func() time.Time
}

// NewProcessor creates a Processor reporting to the given metrics sink.
func NewProcessor(orders Repository, metrics Metrics) *Processor {
	return &Processor{
		orders:  orders,
		metrics: metrics,
		now:     time.Now,
	}
}

// RunCycle executes one recalculation pass and returns the number of orders
// processed. When no RECEIVED orders exist it performs no further store
// access. The cycle duration timer spans load, compute, and persist.
func (p *Processor) RunCycle(ctx context.Context) (int, error) {
	lg := zctx.From(ctx)
	start := p.now()

	received, err := p.orders.FindByStatus(ctx, StatusReceived)
	if err != nil {
		return 0, errors.Wrap(err, "load received orders")
	}

	if len(received) == 0 {
		lg.Info("No orders in RECEIVED status, nothing to process")
		p.metrics.CycleObserved(ctx, p.now().Sub(start), 0)
		return 0, nil
	}

	lg.Info("Processing RECEIVED orders", zap.Int("count", len(received)))

	processed := make([]*Order, len(received))
	for i := range received {
		o := &received[i]
		p.processOne(ctx, o)
		processed[i] = o
	}

	if err := p.orders.SaveAll(ctx, processed); err != nil {
		return 0, errors.Wrap(err, "save processed orders")
	}

	p.metrics.CycleObserved(ctx, p.now().Sub(start), len(processed))
	lg.Info("Finished processing orders", zap.Int("count", len(processed)))
	return len(processed), nil
}

// processOne transitions a single order, recording a computation error as
// data on the order itself rather than propagating it.
func (p *Processor) processOne(ctx context.Context, o *Order) {
	lg := zctx.From(ctx)

	total, err := Total(o.Items)
	if err != nil {
		o.markFailed(err, p.now())
		p.metrics.OrderFailed(ctx)
		lg.Error("Order processing failed",
			zap.String("trace_id", o.TraceID),
			zap.String("external_id", o.ExternalID),
			zap.Error(err),
		)
		return
	}

	o.markCalculated(total, p.now())
	p.metrics.OrderCalculated(ctx)
	lg.Info("Order processed",
		zap.String("trace_id", o.TraceID),
		zap.String("external_id", o.ExternalID),
		zap.String("total", total.String()),
	)
}

// Total computes the monetary total of the given items: the sum of
// price x quantity over all lines, rounded half-up to 2 decimal places
// exactly once, after full summation. It fails on a line with a missing or
// non-positive price, a blank name, or a quantity below 1; the caller turns
// that into a FAILED transition.
func Total(items []Item) (decimal.Decimal, error) {
	sum := decimal.Zero
	for _, it := range items {
		if it.Name == "" {
			return decimal.Zero, errors.New("item name is required")
		}
		if !it.Price.IsPositive() {
			return decimal.Zero, errors.Errorf("item %q: price is required and must be positive", it.Name)
		}
		if it.Quantity < 1 {
			return decimal.Zero, errors.Errorf("item %q: quantity must be at least 1", it.Name)
		}
		sum = sum.Add(it.Price.Mul(decimal.NewFromInt(int64(it.Quantity))))
	}
	// Round is half away from zero, which equals half-up for the
	// non-negative sums produced here.
	return sum.Round(2), nil
}
