package order

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/google/uuid"
)

// Factory converts a validated request into a persisted-ready order
// aggregate. It stores the line items first so every item carries its
// repository-assigned ID before being attached to the order.
type Factory struct {
	items ItemRepository
	now   func() time.Time
}

// NewFactory creates a Factory that persists items through the given
// repository.
func NewFactory(items ItemRepository) *Factory {
	return &Factory{
		items: items,
		now:   time.Now,
	}
}

// Build persists the request's items and assembles a new order in the
// RECEIVED state with a fresh trace ID and creation timestamp. The returned
// order has no store ID yet; that is assigned on save.
func (f *Factory) Build(ctx context.Context, req Request) (*Order, error) {
	items := make([]Item, len(req.Items))
	for i, it := range req.Items {
		items[i] = Item{
			Name:     it.Name,
			Price:    it.Price,
			Quantity: it.Quantity,
		}
	}

	saved, err := f.items.SaveAll(ctx, items)
	if err != nil {
		return nil, errors.Wrap(err, "save items")
	}

	return &Order{
		ExternalID:        req.ExternalID,
		Items:             saved,
		Status:            StatusReceived,
		CreatedAt:         f.now(),
		TraceID:           uuid.New().String(),
		ProcessingMessage: msgReceived,
	}, nil
}
