package postgres

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/upstreamlab/order-pipeline/internal/domain/order"
)

const insertItemSQL = `INSERT INTO order_items (id, name, price, quantity)
	VALUES ($1, $2, $3, $4)`

var _ order.ItemRepository = (*ItemRepository)(nil)

// ItemRepository implements order.ItemRepository backed by PostgreSQL.
type ItemRepository struct {
	pool *pgxpool.Pool
}

// NewItemRepository returns an ItemRepository that uses the given pool.
func NewItemRepository(pool *pgxpool.Pool) *ItemRepository {
	return &ItemRepository{pool: pool}
}

// SaveAll inserts the items in one batched round trip and returns them with
// their assigned IDs.
func (r *ItemRepository) SaveAll(ctx context.Context, items []order.Item) ([]order.Item, error) {
	saved := make([]order.Item, len(items))
	batch := &pgx.Batch{}
	for i, it := range items {
		if it.ID == "" {
			it.ID = uuid.New().String()
		}
		saved[i] = it
		batch.Queue(insertItemSQL, it.ID, it.Name, it.Price, it.Quantity)
	}

	if err := r.pool.SendBatch(ctx, batch).Close(); err != nil {
		return nil, errors.Wrap(err, "save items")
	}
	return saved, nil
}
