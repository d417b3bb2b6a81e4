package order

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// Status is the lifecycle state of an order. Transitions are one-way:
// RECEIVED -> CALCULATED on a successful total computation, or
// RECEIVED -> FAILED on a computation error. Both targets are terminal.
type Status string

const (
	StatusReceived   Status = "RECEIVED"
	StatusCalculated Status = "CALCULATED"
	StatusFailed     Status = "FAILED"
)

// ParseStatus converts a string into a known Status.
func ParseStatus(s string) (Status, error) {
	switch Status(s) {
	case StatusReceived, StatusCalculated, StatusFailed:
		return Status(s), nil
	}
	return "", fmt.Errorf("unknown order status %q", s)
}

// Order is the aggregate root. ID is assigned by the repository on first
// save; ExternalID is the caller-supplied business key and is unique across
// all orders; TraceID is generated once at ingestion and stable for the
// order's lifetime.
type Order struct {
	ID                string              `json:"id"`
	ExternalID        string              `json:"externalId"`
	Items             []Item              `json:"items"`
	Status            Status              `json:"status"`
	TotalAmount       decimal.NullDecimal `json:"totalAmount"`
	CreatedAt         time.Time           `json:"createdAt"`
	UpdatedAt         time.Time           `json:"updatedAt,omitzero"`
	TraceID           string              `json:"traceId"`
	ProcessingMessage string              `json:"processingMessage"`
}

// Item is a single order line. Items belong to exactly one order and are
// persisted through the ItemRepository before the order itself is saved.
type Item struct {
	ID       string          `json:"id,omitempty"`
	Name     string          `json:"name"`
	Price    decimal.Decimal `json:"price"`
	Quantity int             `json:"quantity"`
}

// Lifecycle messages, preserved from the upstream system this service
// replaces. The processor messages are intentionally in Portuguese.
const (
	msgReceived   = "Order received successfully"
	msgCalculated = "Pedido calculado com sucesso"
	msgErrPrefix  = "Erro: "
)

// markCalculated finalizes a successful total computation.
func (o *Order) markCalculated(total decimal.Decimal, now time.Time) {
	o.TotalAmount = decimal.NewNullDecimal(total)
	o.Status = StatusCalculated
	o.UpdatedAt = now
	o.ProcessingMessage = msgCalculated
}

// markFailed records a per-order processing error as data. The order stays in
// the processed set and is persisted with the rest of the cycle.
func (o *Order) markFailed(err error, now time.Time) {
	o.Status = StatusFailed
	o.UpdatedAt = now
	o.ProcessingMessage = msgErrPrefix + err.Error()
}

// Repository defines persistence operations for orders. Save assigns the
// order ID when it is empty. Implementations must enforce external id
// uniqueness and report a violation as a DuplicateError so that concurrent
// submissions racing past the duplicate check are still serialized at the
// store level.
type Repository interface {
	FindByExternalID(ctx context.Context, externalID string) (*Order, error)
	FindByStatus(ctx context.Context, status Status) ([]Order, error)
	Save(ctx context.Context, o *Order) error
	SaveAll(ctx context.Context, orders []*Order) error
}

// ItemRepository persists order line items, assigning their stored IDs.
type ItemRepository interface {
	SaveAll(ctx context.Context, items []Item) ([]Item, error)
}
