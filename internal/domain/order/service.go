package order

import (
	"context"
	"fmt"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// Sentinel errors for order ingestion. The transport layer maps these to
// status codes: ErrEmptyItems and ErrEmptyBatch to 400, ErrNoValidOrders and
// DuplicateError to 409, ErrNotFound to 404.
var (
	ErrEmptyItems    = errors.New("items required")
	ErrEmptyBatch    = errors.New("order batch must not be empty")
	ErrNoValidOrders = errors.New("no valid order to process")
	ErrNotFound      = errors.New("order not found")
)

// DuplicateError indicates an order with the same external id already exists.
type DuplicateError struct {
	ExternalID string
}

func (e *DuplicateError) Error() string {
	return fmt.Sprintf("duplicate order externalId %s", e.ExternalID)
}

// Request is the inbound payload for a single order submission.
type Request struct {
	ExternalID string
	Items      []ItemRequest
}

// ItemRequest is one line of an inbound order submission.
type ItemRequest struct {
	Name     string
	Price    decimal.Decimal
	Quantity int
}

// Service is the ingestion pipeline. It orchestrates validation, duplicate
// detection, factory invocation, and persistence for single and batch
// submission.
type Service struct {
	orders    Repository
	validator *Validator
	factory   *Factory
}

// NewService creates the ingestion pipeline with its collaborators.
func NewService(orders Repository, validator *Validator, factory *Factory) *Service {
	return &Service{
		orders:    orders,
		validator: validator,
		factory:   factory,
	}
}

// Receive validates a single submission, rejects duplicates by external id,
// and persists a new order in the RECEIVED state.
//
// The duplicate check plus save is not atomic on its own; the repository's
// external id uniqueness constraint closes the race, surfacing a concurrent
// duplicate as a DuplicateError from Save.
func (s *Service) Receive(ctx context.Context, req Request) (*Order, error) {
	if err := s.validator.Validate(req); err != nil {
		return nil, err
	}

	existing, err := s.orders.FindByExternalID(ctx, req.ExternalID)
	if err != nil && !errors.Is(err, ErrNotFound) {
		return nil, errors.Wrap(err, "lookup external id")
	}
	if existing != nil {
		return nil, &DuplicateError{ExternalID: req.ExternalID}
	}

	o, err := s.factory.Build(ctx, req)
	if err != nil {
		return nil, errors.Wrap(err, "build order")
	}

	if err := s.orders.Save(ctx, o); err != nil {
		return nil, errors.Wrap(err, "save order")
	}

	zctx.From(ctx).Info("Order saved",
		zap.String("trace_id", o.TraceID),
		zap.String("external_id", o.ExternalID),
	)
	return o, nil
}

// ReceiveAll ingests a batch of submissions with partial-failure semantics:
// an invalid or duplicate element is dropped without affecting any other
// element. Duplicates are checked against the store and against elements
// accepted earlier in the same batch (first wins, the rest are dropped).
// Only when nothing survives filtering does the whole batch fail, with
// ErrNoValidOrders. Survivors are persisted as a single bulk write.
func (s *Service) ReceiveAll(ctx context.Context, reqs []Request) ([]*Order, error) {
	if len(reqs) == 0 {
		return nil, ErrEmptyBatch
	}

	lg := zctx.From(ctx)
	seen := make(map[string]struct{}, len(reqs))
	valid := make([]*Order, 0, len(reqs))

	for _, req := range reqs {
		if err := s.validator.Validate(req); err != nil {
			lg.Warn("Ignoring invalid order",
				zap.String("external_id", req.ExternalID),
				zap.Error(err),
			)
			continue
		}

		if _, dup := seen[req.ExternalID]; dup {
			lg.Warn("Ignoring duplicate order within batch",
				zap.String("external_id", req.ExternalID),
			)
			continue
		}

		existing, err := s.orders.FindByExternalID(ctx, req.ExternalID)
		if err != nil && !errors.Is(err, ErrNotFound) {
			return nil, errors.Wrap(err, "lookup external id")
		}
		if existing != nil {
			lg.Warn("Ignoring duplicate order",
				zap.String("external_id", req.ExternalID),
			)
			continue
		}

		o, err := s.factory.Build(ctx, req)
		if err != nil {
			return nil, errors.Wrap(err, "build order")
		}

		seen[req.ExternalID] = struct{}{}
		valid = append(valid, o)
	}

	if len(valid) == 0 {
		return nil, ErrNoValidOrders
	}

	if err := s.orders.SaveAll(ctx, valid); err != nil {
		return nil, errors.Wrap(err, "save orders")
	}

	lg.Info("Orders saved", zap.Int("count", len(valid)))
	return valid, nil
}

// OrderByExternalID returns the order with the given external id, or
// ErrNotFound.
func (s *Service) OrderByExternalID(ctx context.Context, externalID string) (*Order, error) {
	o, err := s.orders.FindByExternalID(ctx, externalID)
	if err != nil {
		return nil, err
	}
	return o, nil
}

// OrdersByStatus returns all orders currently in the given status. Result
// order is not significant.
func (s *Service) OrdersByStatus(ctx context.Context, status Status) ([]Order, error) {
	return s.orders.FindByStatus(ctx, status)
}
