package postgres

import (
	"context"
	"encoding/json"
	"time"

	"github.com/go-faster/errors"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/upstreamlab/order-pipeline/internal/domain/order"
)

const (
	findOrderByExternalIDSQL = `SELECT id, external_id, items, status, total_amount, created_at, updated_at, trace_id, processing_message
		FROM orders WHERE external_id = $1`

	findOrdersByStatusSQL = `SELECT id, external_id, items, status, total_amount, created_at, updated_at, trace_id, processing_message
		FROM orders WHERE status = $1`

	insertOrderSQL = `INSERT INTO orders (id, external_id, items, status, total_amount, created_at, updated_at, trace_id, processing_message)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`

	upsertOrderSQL = `INSERT INTO orders (id, external_id, items, status, total_amount, created_at, updated_at, trace_id, processing_message)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (id) DO UPDATE SET
			status = EXCLUDED.status,
			total_amount = EXCLUDED.total_amount,
			updated_at = EXCLUDED.updated_at,
			processing_message = EXCLUDED.processing_message`
)

// uniqueViolation is the PostgreSQL error code for a unique constraint
// violation, used to surface external id races as domain duplicates.
const uniqueViolation = "23505"

var _ order.Repository = (*OrderRepository)(nil)

// OrderRepository implements order.Repository backed by PostgreSQL. Order
// items are serialized to a JSONB column; a UNIQUE index on external_id
// enforces the idempotency key at the store level.
type OrderRepository struct {
	pool *pgxpool.Pool
}

// NewOrderRepository returns an OrderRepository that uses the given pool.
func NewOrderRepository(pool *pgxpool.Pool) *OrderRepository {
	return &OrderRepository{pool: pool}
}

// FindByExternalID returns the order with the given external id, or
// order.ErrNotFound.
func (r *OrderRepository) FindByExternalID(ctx context.Context, externalID string) (*order.Order, error) {
	rows, err := r.pool.Query(ctx, findOrderByExternalIDSQL, externalID)
	if err != nil {
		return nil, errors.Wrapf(err, "find order by external id %q", externalID)
	}

	o, err := pgx.CollectExactlyOneRow(rows, scanOrder)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, order.ErrNotFound
		}
		return nil, errors.Wrapf(err, "find order by external id %q", externalID)
	}
	return &o, nil
}

// FindByStatus returns all orders in the given status.
func (r *OrderRepository) FindByStatus(ctx context.Context, status order.Status) ([]order.Order, error) {
	rows, err := r.pool.Query(ctx, findOrdersByStatusSQL, string(status))
	if err != nil {
		return nil, errors.Wrapf(err, "find orders by status %s", status)
	}
	return pgx.CollectRows(rows, scanOrder)
}

// Save inserts a new order, assigning its ID when empty. A concurrent insert
// with the same external id loses the unique index race and is reported as a
// DuplicateError.
func (r *OrderRepository) Save(ctx context.Context, o *order.Order) error {
	if o.ID == "" {
		o.ID = uuid.New().String()
	}

	args, err := orderArgs(o)
	if err != nil {
		return err
	}

	if _, err := r.pool.Exec(ctx, insertOrderSQL, args...); err != nil {
		if isExternalIDConflict(err) {
			return &order.DuplicateError{ExternalID: o.ExternalID}
		}
		return errors.Wrapf(err, "save order %q", o.ExternalID)
	}
	return nil
}

// SaveAll writes the batch in one round trip, upserting by primary key so the
// processor can persist status transitions through the same call the
// ingestion pipeline uses for new orders.
func (r *OrderRepository) SaveAll(ctx context.Context, orders []*order.Order) error {
	batch := &pgx.Batch{}
	for _, o := range orders {
		if o.ID == "" {
			o.ID = uuid.New().String()
		}
		args, err := orderArgs(o)
		if err != nil {
			return err
		}
		batch.Queue(upsertOrderSQL, args...)
	}

	if err := r.pool.SendBatch(ctx, batch).Close(); err != nil {
		if isExternalIDConflict(err) {
			return errors.Wrap(err, "save orders: duplicate external id")
		}
		return errors.Wrap(err, "save orders")
	}
	return nil
}

func orderArgs(o *order.Order) ([]any, error) {
	itemsJSON, err := json.Marshal(o.Items)
	if err != nil {
		return nil, errors.Wrapf(err, "marshal items of order %q", o.ExternalID)
	}

	var updatedAt *time.Time
	if !o.UpdatedAt.IsZero() {
		updatedAt = &o.UpdatedAt
	}

	return []any{
		o.ID, o.ExternalID, itemsJSON, string(o.Status), o.TotalAmount,
		o.CreatedAt, updatedAt, o.TraceID, o.ProcessingMessage,
	}, nil
}

func isExternalIDConflict(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) &&
		pgErr.Code == uniqueViolation &&
		pgErr.ConstraintName == "orders_external_id_key"
}

func scanOrder(row pgx.CollectableRow) (order.Order, error) {
	var (
		o         order.Order
		itemsJSON []byte
		status    string
		total     decimal.NullDecimal
		updatedAt *time.Time
	)
	err := row.Scan(
		&o.ID, &o.ExternalID, &itemsJSON, &status, &total,
		&o.CreatedAt, &updatedAt, &o.TraceID, &o.ProcessingMessage,
	)
	if err != nil {
		return order.Order{}, err
	}

	if err := json.Unmarshal(itemsJSON, &o.Items); err != nil {
		return order.Order{}, errors.Wrapf(err, "unmarshal items of order %q", o.ExternalID)
	}

	o.Status = order.Status(status)
	o.TotalAmount = total
	if updatedAt != nil {
		o.UpdatedAt = *updatedAt
	}
	return o, nil
}
