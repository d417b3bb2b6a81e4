// Command order-ingest bulk-loads an order dump into the pipeline. The input
// is a gzip-compressed JSONL file with one order submission per line:
//
//	{"externalId":"ord-1","items":[{"name":"Widget","price":"10.00","quantity":2}]}
//
// Duplicate external ids within the dump are dropped up front (first wins)
// using a bloom filter, so multi-million-line dumps never build an exact seen
// set in memory. Survivors go through the regular ingestion pipeline in
// chunks, which still applies validation and store-level duplicate checks.
package main

import (
	"bufio"
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"strings"

	"github.com/bits-and-blooms/bloom/v3"
	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	pgzip "github.com/klauspost/pgzip"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"github.com/upstreamlab/order-pipeline/internal/domain/order"
	"github.com/upstreamlab/order-pipeline/internal/storage/postgres"
)

const (
	bloomCapacity = 10_000_000
	bloomFPR      = 0.001
	maxLineBytes  = 1 << 20
	progressEvery = 100_000
)

func main() {
	var (
		file        string
		databaseURL string
		chunkSize   int
	)

	flag.StringVar(&file, "file", "orders.jsonl.gz", "gzip-compressed JSONL order dump")
	flag.StringVar(&databaseURL, "database-url", "", "PostgreSQL connection URL (or DATABASE_URL env)")
	flag.IntVar(&chunkSize, "chunk-size", 500, "orders per bulk write")
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

	if err := run(ctx, file, databaseURL, chunkSize); err != nil {
		slog.Error("order ingest failed", slog.String("error", err.Error()))
		os.Exit(1)
	}

	slog.Info("order ingest completed successfully")
}

func run(ctx context.Context, file, databaseURL string, chunkSize int) error {
	pool, err := postgres.NewPool(ctx, databaseURL)
	if err != nil {
		return errors.Wrap(err, "connect to database")
	}
	defer pool.Close()

	if err := postgres.RunMigrations(ctx, pool); err != nil {
		return errors.Wrap(err, "run migrations")
	}

	svc := order.NewService(
		postgres.NewOrderRepository(pool),
		order.NewValidator(),
		order.NewFactory(postgres.NewItemRepository(pool)),
	)

	f, err := os.Open(file)
	if err != nil {
		return errors.Wrapf(err, "open %s", file)
	}
	defer f.Close()

	gz, err := pgzip.NewReader(f)
	if err != nil {
		return errors.Wrapf(err, "gunzip %s", file)
	}
	defer gz.Close()

	requests := make(chan order.Request, chunkSize)

	g, ctx := errgroup.WithContext(ctx)
	g.Go(readDump(ctx, gz, requests))
	g.Go(submitChunks(ctx, svc, requests, chunkSize))
	return g.Wait()
}

// readDump streams the dump line by line, drops in-dump duplicates through
// the bloom filter, and feeds surviving requests to the submit side.
func readDump(ctx context.Context, r *pgzip.Reader, out chan<- order.Request) func() error {
	return func() error {
		defer close(out)

		seen := bloom.NewWithEstimates(bloomCapacity, bloomFPR)
		scanner := bufio.NewScanner(r)
		scanner.Buffer(make([]byte, 64*1024), maxLineBytes)

		var lines, dups uint64
		for scanner.Scan() {
			line := scanner.Bytes()
			if len(line) == 0 {
				continue
			}

			lines++
			if lines%progressEvery == 0 {
				slog.Info("reading dump", slog.Uint64("lines", lines), slog.Uint64("duplicates", dups))
			}

			req, err := parseLine(line)
			if err != nil {
				return errors.Wrapf(err, "parse line %d", lines)
			}

			// TestOrAddString is first-wins: a false positive only means
			// an order is skipped, never double-submitted.
			if seen.TestOrAddString(req.ExternalID) {
				dups++
				continue
			}

			select {
			case out <- req:
			case <-ctx.Done():
				return ctx.Err()
			}
		}
		if err := scanner.Err(); err != nil {
			return errors.Wrap(err, "scan dump")
		}

		slog.Info("dump read", slog.Uint64("lines", lines), slog.Uint64("duplicates", dups))
		return nil
	}
}

// submitChunks accumulates requests and pushes them through the ingestion
// pipeline in bulk. A chunk consisting entirely of invalid or already-stored
// orders is not an error for a bulk load; it is logged and skipped.
func submitChunks(ctx context.Context, svc *order.Service, in <-chan order.Request, chunkSize int) func() error {
	return func() error {
		var saved, chunks int
		chunk := make([]order.Request, 0, chunkSize)

		flush := func() error {
			if len(chunk) == 0 {
				return nil
			}
			chunks++

			orders, err := svc.ReceiveAll(ctx, chunk)
			switch {
			case errors.Is(err, order.ErrNoValidOrders):
				slog.Warn("chunk had no new orders", slog.Int("chunk", chunks))
			case err != nil:
				return errors.Wrapf(err, "submit chunk %d", chunks)
			default:
				saved += len(orders)
			}

			chunk = chunk[:0]
			return nil
		}

		for req := range in {
			chunk = append(chunk, req)
			if len(chunk) == chunkSize {
				if err := flush(); err != nil {
					return err
				}
			}
		}
		if err := flush(); err != nil {
			return err
		}

		slog.Info("orders saved", slog.Int("count", saved), slog.Int("chunks", chunks))
		return nil
	}
}

// parseLine decodes one dump line. Prices may be JSON numbers or strings.
func parseLine(line []byte) (order.Request, error) {
	var req order.Request

	d := jx.DecodeBytes(line)
	err := d.Obj(func(d *jx.Decoder, key string) error {
		switch key {
		case "externalId":
			v, err := d.Str()
			req.ExternalID = v
			return err
		case "items":
			return d.Arr(func(d *jx.Decoder) error {
				it, err := parseItem(d)
				if err != nil {
					return err
				}
				req.Items = append(req.Items, it)
				return nil
			})
		default:
			return d.Skip()
		}
	})
	if err != nil {
		return order.Request{}, err
	}
	return req, nil
}

func parseItem(d *jx.Decoder) (order.ItemRequest, error) {
	var it order.ItemRequest

	err := d.Obj(func(d *jx.Decoder, key string) error {
		switch key {
		case "name":
			v, err := d.Str()
			it.Name = v
			return err
		case "price":
			raw, err := d.Raw()
			if err != nil {
				return err
			}
			p, err := decimal.NewFromString(strings.Trim(raw.String(), `"`))
			it.Price = p
			return err
		case "quantity":
			v, err := d.Int()
			it.Quantity = v
			return err
		default:
			return d.Skip()
		}
	})
	return it, err
}
