package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"depthScope/internal/model"
)

// Schema creates the latest-book table.
const Schema = `
CREATE TABLE IF NOT EXISTS aggregated_books (
	symbol          TEXT PRIMARY KEY,
	bids            JSONB NOT NULL,
	asks            JSONB NOT NULL,
	venues          TEXT[] NOT NULL,
	best_bid        NUMERIC,
	best_bid_venue  TEXT,
	best_ask        NUMERIC,
	best_ask_venue  TEXT,
	block_number    BIGINT,
	next_base_fee   NUMERIC,
	book_updated_at BIGINT NOT NULL,
	updated_at      TIMESTAMPTZ NOT NULL DEFAULT now()
)`

const upsertBook = `
	INSERT INTO aggregated_books (
		symbol, bids, asks, venues, best_bid, best_bid_venue, best_ask, best_ask_venue,
		block_number, next_base_fee, book_updated_at, updated_at
	) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, now())
	ON CONFLICT (symbol)
	DO UPDATE SET
		bids = EXCLUDED.bids,
		asks = EXCLUDED.asks,
		venues = EXCLUDED.venues,
		best_bid = EXCLUDED.best_bid,
		best_bid_venue = EXCLUDED.best_bid_venue,
		best_ask = EXCLUDED.best_ask,
		best_ask_venue = EXCLUDED.best_ask_venue,
		block_number = EXCLUDED.block_number,
		next_base_fee = EXCLUDED.next_base_fee,
		book_updated_at = EXCLUDED.book_updated_at,
		updated_at = now()
`

// Store keeps the latest aggregated book per symbol in Postgres.
type Store struct {
	pool *pgxpool.Pool
}

func NewStore(ctx context.Context, dsn string) (*Store, error) {
	if dsn == "" {
		return nil, fmt.Errorf("pg dsn is required")
	}
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, err
	}
	return &Store{pool: pool}, nil
}

func (s *Store) Close() {
	if s.pool != nil {
		s.pool.Close()
	}
}

// EnsureSchema creates the aggregated_books table if it does not exist.
func (s *Store) EnsureSchema(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, Schema); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}
	return nil
}

// PutBook overwrites the stored book for the book's symbol.
func (s *Store) PutBook(ctx context.Context, book model.AggregatedBook) error {
	return s.UpsertBooks(ctx, []model.AggregatedBook{book})
}

// UpsertBooks inserts or overwrites one row per symbol.
func (s *Store) UpsertBooks(ctx context.Context, books []model.AggregatedBook) error {
	if len(books) == 0 {
		return nil
	}
	batch := &pgx.Batch{}
	for _, book := range books {
		args, err := bookArgs(book)
		if err != nil {
			return err
		}
		batch.Queue(upsertBook, args...)
	}

	br := s.pool.SendBatch(ctx, batch)
	defer br.Close()

	for _, book := range books {
		if _, err := br.Exec(); err != nil {
			return fmt.Errorf("upsert book %s: %w", book.Symbol, err)
		}
	}
	return nil
}

func bookArgs(book model.AggregatedBook) ([]interface{}, error) {
	bids, err := json.Marshal(rowsOrEmpty(book.Bids))
	if err != nil {
		return nil, fmt.Errorf("marshal bids: %w", err)
	}
	asks, err := json.Marshal(rowsOrEmpty(book.Asks))
	if err != nil {
		return nil, fmt.Errorf("marshal asks: %w", err)
	}

	var bestBid, bestBidVenue, bestAsk, bestAskVenue *string
	if row, ok := book.BestBid(); ok {
		price := row.Price.String()
		bestBid, bestBidVenue = &price, &row.Venue
	}
	if row, ok := book.BestAsk(); ok {
		price := row.Price.String()
		bestAsk, bestAskVenue = &price, &row.Venue
	}

	var blockNumber *int64
	var nextBaseFee *string
	if book.Block != nil {
		number := int64(book.Block.Number)
		blockNumber = &number
		if book.Block.NextBaseFee != nil {
			fee := book.Block.NextBaseFee.String()
			nextBaseFee = &fee
		}
	}

	venues := book.Venues
	if venues == nil {
		venues = []string{}
	}

	return []interface{}{
		book.Symbol,
		bids,
		asks,
		venues,
		bestBid,
		bestBidVenue,
		bestAsk,
		bestAskVenue,
		blockNumber,
		nextBaseFee,
		book.UpdatedAt,
	}, nil
}

func rowsOrEmpty(rows []model.BookRow) []model.BookRow {
	if rows == nil {
		return []model.BookRow{}
	}
	return rows
}
