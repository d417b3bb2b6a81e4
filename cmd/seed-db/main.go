// Command seed-db applies the schema and loads a demo order set through the
// regular ingestion pipeline, so seeded data carries proper trace ids and
// lifecycle state.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"log/slog"
	"os"
	"os/signal"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"

	"github.com/upstreamlab/order-pipeline/internal/domain/order"
	"github.com/upstreamlab/order-pipeline/internal/storage/postgres"
)

type orderJSON struct {
	ExternalID string `json:"externalId"`
	Items      []struct {
		Name     string          `json:"name"`
		Price    decimal.Decimal `json:"price"`
		Quantity int             `json:"quantity"`
	} `json:"items"`
}

func main() {
	var (
		databaseURL string
		ordersFile  string
	)

	flag.StringVar(&databaseURL, "database-url", "", "PostgreSQL connection URL (or DATABASE_URL env)")
	flag.StringVar(&ordersFile, "orders-file", "db/seed/orders.json", "path to orders JSON file")
	flag.Parse()

	if databaseURL == "" {
		databaseURL = os.Getenv("DATABASE_URL")
	}
	if databaseURL == "" {
		slog.Error("database URL is required: set --database-url or DATABASE_URL")
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	if err := run(ctx, databaseURL, ordersFile); err != nil {
		slog.Error("seed failed", slog.String("error", err.Error()))
		os.Exit(1)
	}

	slog.Info("seed completed successfully")
}

func run(ctx context.Context, databaseURL, ordersFile string) error {
	slog.Info("connecting to database")

	pool, err := postgres.NewPool(ctx, databaseURL)
	if err != nil {
		return errors.Wrap(err, "connect to database")
	}
	defer pool.Close()

	slog.Info("running migrations")

	if err := postgres.RunMigrations(ctx, pool); err != nil {
		return errors.Wrap(err, "run migrations")
	}

	svc := order.NewService(
		postgres.NewOrderRepository(pool),
		order.NewValidator(),
		order.NewFactory(postgres.NewItemRepository(pool)),
	)
	return seedOrders(ctx, svc, ordersFile)
}

func seedOrders(ctx context.Context, svc *order.Service, ordersFile string) error {
	slog.Info("reading orders file", slog.String("path", ordersFile))

	data, err := os.ReadFile(ordersFile)
	if err != nil {
		return errors.Wrap(err, "read orders file")
	}

	var seeds []orderJSON
	if err := json.Unmarshal(data, &seeds); err != nil {
		return errors.Wrap(err, "parse orders JSON")
	}

	reqs := make([]order.Request, len(seeds))
	for i, s := range seeds {
		items := make([]order.ItemRequest, len(s.Items))
		for j, it := range s.Items {
			items[j] = order.ItemRequest{Name: it.Name, Price: it.Price, Quantity: it.Quantity}
		}
		reqs[i] = order.Request{ExternalID: s.ExternalID, Items: items}
	}

	saved, err := svc.ReceiveAll(ctx, reqs)
	if errors.Is(err, order.ErrNoValidOrders) {
		slog.Info("all seed orders already present")
		return nil
	}
	if err != nil {
		return errors.Wrap(err, "submit seed orders")
	}

	for _, o := range saved {
		slog.Info("seeded order", slog.String("external_id", o.ExternalID), slog.String("trace_id", o.TraceID))
	}
	return nil
}
