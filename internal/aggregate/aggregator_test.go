package aggregate

import (
	"context"
	"errors"
	"math/big"
	"sync"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"depthScope/internal/bus"
	"depthScope/internal/model"
	"depthScope/internal/storage"
)

const testSymbol = "ETH/USDT"

type memorySink struct {
	mu    sync.Mutex
	books []model.AggregatedBook
	err   error
}

func (s *memorySink) PutBook(_ context.Context, book model.AggregatedBook) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.books = append(s.books, book)
	return s.err
}

func (s *memorySink) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.books)
}

func levels(pairs ...string) []model.Level {
	out := make([]model.Level, 0, len(pairs)/2)
	for i := 0; i+1 < len(pairs); i += 2 {
		out = append(out, model.Level{
			Price:    decimal.RequireFromString(pairs[i]),
			Quantity: decimal.RequireFromString(pairs[i+1]),
		})
	}
	return out
}

func snapshot(venue string, bids, asks []model.Level) model.OrderbookSnapshot {
	return model.OrderbookSnapshot{Venue: venue, Symbol: testSymbol, Bids: bids, Asks: asks, Timestamp: 1}
}

type row struct {
	price, quantity, venue string
}

func rows(t *testing.T, in []model.BookRow) []row {
	t.Helper()
	out := make([]row, 0, len(in))
	for _, r := range in {
		out = append(out, row{r.Price.String(), r.Quantity.String(), r.Venue})
	}
	return out
}

func ethUSDTPool(exchange string, address common.Address) model.PoolRef {
	return model.PoolRef{
		Exchange: exchange,
		Version:  2,
		Symbol:   testSymbol,
		Address:  address,
		Tokens: [2]model.TokenMeta{
			{Symbol: "ETH", Decimals: 18},
			{Symbol: "USDT", Decimals: 6},
		},
	}
}

func pow10(n int64) *big.Int {
	return new(big.Int).Exp(big.NewInt(10), big.NewInt(n), nil)
}

func TestMergeAcrossVenues(t *testing.T) {
	agg := NewAggregator(Config{}, nil, nil, nil)
	ctx := context.Background()

	agg.Handle(ctx, snapshot("A", levels("100.5", "2"), levels("101", "1")))
	agg.Handle(ctx, snapshot("B", levels("100.7", "1"), levels("100.9", "3")))

	book := agg.Book(testSymbol)
	assert.Equal(t, []row{{"100.7", "1", "B"}, {"100.5", "2", "A"}}, rows(t, book.Bids))
	assert.Equal(t, []row{{"100.9", "3", "B"}, {"101", "1", "A"}}, rows(t, book.Asks))
	assert.Equal(t, []string{"A", "B"}, book.Venues)
}

func TestReplaceKeepsVenuePosition(t *testing.T) {
	agg := NewAggregator(Config{}, nil, nil, nil)
	ctx := context.Background()

	agg.Handle(ctx, snapshot("A", levels("100", "1"), nil))
	agg.Handle(ctx, snapshot("B", levels("100", "2"), nil))
	agg.Handle(ctx, snapshot("A", levels("100", "5"), nil))

	book := agg.Book(testSymbol)
	assert.Equal(t, []row{{"100", "5", "A"}, {"100", "2", "B"}}, rows(t, book.Bids), "ties keep first-seen venue order")
}

func TestReplayIsIdempotent(t *testing.T) {
	agg := NewAggregator(Config{}, nil, nil, nil)
	ctx := context.Background()
	snap := snapshot("A", levels("100.5", "2", "100.4", "1"), levels("100.6", "1"))

	agg.Handle(ctx, snap)
	first := agg.Book(testSymbol)
	agg.Handle(ctx, snap)
	second := agg.Book(testSymbol)

	assert.Equal(t, rows(t, first.Bids), rows(t, second.Bids))
	assert.Equal(t, rows(t, first.Asks), rows(t, second.Asks))
}

func TestUnknownSymbolIsEmpty(t *testing.T) {
	agg := NewAggregator(Config{}, nil, nil, nil)

	book := agg.Book("BTC/USDT")
	assert.Equal(t, "BTC/USDT", book.Symbol)
	assert.NotNil(t, book.Bids)
	assert.Empty(t, book.Bids)
	assert.Empty(t, book.Asks)
}

func TestSortedWithinVenue(t *testing.T) {
	agg := NewAggregator(Config{}, nil, nil, nil)
	agg.Handle(context.Background(), snapshot("A", levels("99", "1", "101", "1", "100", "1"), levels("103", "1", "102", "1")))

	book := agg.Book(testSymbol)
	assert.Equal(t, []row{{"101", "1", "A"}, {"100", "1", "A"}, {"99", "1", "A"}}, rows(t, book.Bids))
	assert.Equal(t, []row{{"102", "1", "A"}, {"103", "1", "A"}}, rows(t, book.Asks))
}

func TestPoolReservesFoldIntoBook(t *testing.T) {
	agg := NewAggregator(Config{AMMDepth: decimal.NewFromInt(1), PricePrecision: 18}, nil, nil, nil)
	ctx := context.Background()
	pool := ethUSDTPool("uniswap", common.HexToAddress("0x0d4a11d5EEaaC28EC3F61d100daF4d40471f1852"))

	agg.Handle(ctx, snapshot("binance", levels("1999.5", "3"), levels("2000.5", "2")))
	agg.Handle(ctx, model.PoolReserveUpdate{
		Pool: pool,
		Reserves: [2]*big.Int{
			new(big.Int).Mul(big.NewInt(1000), pow10(18)),
			new(big.Int).Mul(big.NewInt(2_000_000), pow10(6)),
		},
		BlockNumber: 500,
	})

	book := agg.Book(testSymbol)
	require.Len(t, book.Bids, 2)
	require.Len(t, book.Asks, 2)
	assert.Equal(t, "uniswap_v2", book.Bids[0].Venue)
	assert.True(t, book.Bids[0].Price.Equal(decimal.NewFromInt(2000)), "price %s", book.Bids[0].Price)
	assert.True(t, book.Bids[0].Quantity.Equal(decimal.NewFromInt(1)))
	assert.Equal(t, "uniswap_v2", book.Asks[0].Venue)
	assert.Equal(t, []string{"binance", "uniswap_v2"}, book.Venues)
}

func TestPoolQuantityCappedByReserve(t *testing.T) {
	agg := NewAggregator(Config{AMMDepth: decimal.NewFromInt(10), PricePrecision: 4}, nil, nil, nil)
	pool := ethUSDTPool("sushiswap", common.HexToAddress("0x06da0fd433C1A5d7a4faa01111c044910A184553"))

	// 0.5 ETH against 1000 USDT, reserves in pool order.
	agg.Handle(context.Background(), model.PoolReserveUpdate{
		Pool:     pool,
		Reserves: [2]*big.Int{new(big.Int).Div(pow10(18), big.NewInt(2)), new(big.Int).Mul(big.NewInt(1000), pow10(6))},
	})

	book := agg.Book(testSymbol)
	require.Len(t, book.Bids, 1)
	assert.True(t, book.Bids[0].Price.Equal(decimal.NewFromInt(2000)))
	assert.True(t, book.Bids[0].Quantity.Equal(decimal.RequireFromString("0.5")))
}

func TestMalformedPoolUpdateIsIsolated(t *testing.T) {
	sink := &memorySink{}
	agg := NewAggregator(Config{}, storageSink{sink}.sinks(), nil, nil)
	ctx := context.Background()
	pool := ethUSDTPool("uniswap", common.HexToAddress("0x01"))

	agg.Handle(ctx, snapshot("binance", levels("100", "1"), nil))
	agg.Handle(ctx, model.PoolReserveUpdate{Pool: pool, Reserves: [2]*big.Int{big.NewInt(0), big.NewInt(10)}})
	agg.Handle(ctx, model.PoolReserveUpdate{Pool: pool})

	unmapped := pool
	unmapped.Symbol = "BTC/USDT"
	agg.Handle(ctx, model.PoolReserveUpdate{Pool: unmapped, Reserves: [2]*big.Int{big.NewInt(1), big.NewInt(1)}})

	assert.Equal(t, 1, sink.count())
	assert.Equal(t, []row{{"100", "1", "binance"}}, rows(t, agg.Book(testSymbol).Bids))
	assert.Empty(t, agg.Book("BTC/USDT").Bids)
}

func TestVenueDownRemovesRows(t *testing.T) {
	sink := &memorySink{}
	agg := NewAggregator(Config{}, storageSink{sink}.sinks(), nil, nil)
	ctx := context.Background()

	agg.Handle(ctx, snapshot("A", levels("100", "1"), nil))
	agg.Handle(ctx, snapshot("B", levels("101", "1"), nil))
	agg.Handle(ctx, model.VenueDown{Venue: "B", Reason: "receive timeout"})

	book := agg.Book(testSymbol)
	assert.Equal(t, []row{{"100", "1", "A"}}, rows(t, book.Bids))
	assert.Equal(t, []string{"A"}, book.Venues)
	assert.Equal(t, 3, sink.count())

	agg.Handle(ctx, model.VenueDown{Venue: "C"})
	assert.Equal(t, 3, sink.count(), "unknown venue publishes nothing")
}

func TestBlockContextStamped(t *testing.T) {
	agg := NewAggregator(Config{}, nil, nil, nil)
	ctx := context.Background()

	agg.Handle(ctx, model.BlockHeader{Number: 7, BaseFee: big.NewInt(100), NextBaseFee: big.NewInt(112)})
	agg.Handle(ctx, snapshot("A", levels("100", "1"), nil))

	book := agg.Book(testSymbol)
	require.NotNil(t, book.Block)
	assert.Equal(t, uint64(7), book.Block.Number)
	assert.Equal(t, "112", book.Block.NextBaseFee.String())
}

func TestChainDownClearsBlockContext(t *testing.T) {
	agg := NewAggregator(Config{}, nil, nil, nil)
	ctx := context.Background()

	agg.Handle(ctx, model.BlockHeader{Number: 7, BaseFee: big.NewInt(100), NextBaseFee: big.NewInt(112)})
	agg.Handle(ctx, snapshot("A", levels("100", "1"), nil))
	require.NotNil(t, agg.Book(testSymbol).Block)

	agg.Handle(ctx, model.VenueDown{Venue: model.ChainVenue, Reason: "receive timeout"})
	agg.Handle(ctx, snapshot("A", levels("101", "1"), nil))
	assert.Nil(t, agg.Book(testSymbol).Block)

	agg.Handle(ctx, model.BlockHeader{Number: 9, BaseFee: big.NewInt(100), NextBaseFee: big.NewInt(90)})
	agg.Handle(ctx, snapshot("A", levels("102", "1"), nil))
	require.NotNil(t, agg.Book(testSymbol).Block)
	assert.Equal(t, uint64(9), agg.Book(testSymbol).Block.Number)
}

func TestLimitOrderUpdateLeavesBooksAlone(t *testing.T) {
	sink := &memorySink{}
	agg := NewAggregator(Config{}, storageSink{sink}.sinks(), nil, nil)
	ctx := context.Background()

	agg.Handle(ctx, snapshot("A", levels("100", "1"), nil))
	agg.Handle(ctx, model.LimitOrderUpdate{Status: model.LimitOrderFilled, Remaining: big.NewInt(0), BlockNumber: 3})

	assert.Equal(t, 1, sink.count())
	assert.Equal(t, []string{"A"}, agg.Book(testSymbol).Venues)
}

func TestSinkErrorDoesNotStopAggregation(t *testing.T) {
	failing := &memorySink{err: errors.New("disk full")}
	healthy := &memorySink{}
	recorder := &bookCounter{}
	agg := NewAggregator(Config{}, storageSink{failing, healthy}.sinks(), nil, recorder)
	ctx := context.Background()

	agg.Handle(ctx, snapshot("A", levels("100", "1"), nil))
	agg.Handle(ctx, snapshot("A", levels("101", "1"), nil))

	assert.Equal(t, 2, failing.count())
	assert.Equal(t, 2, healthy.count())
	assert.Equal(t, 2, recorder.n)
	assert.Equal(t, []row{{"101", "1", "A"}}, rows(t, agg.Book(testSymbol).Bids))
}

func TestRunConsumesQueueInOrder(t *testing.T) {
	sink := &memorySink{}
	agg := NewAggregator(Config{}, storageSink{sink}.sinks(), nil, nil)
	queue := bus.NewQueue(8)
	ctx, cancel := context.WithCancel(context.Background())

	require.NoError(t, queue.Publish(ctx, snapshot("A", levels("100", "1"), nil)))
	require.NoError(t, queue.Publish(ctx, snapshot("A", levels("102", "1"), nil)))

	done := make(chan error, 1)
	go func() { done <- agg.Run(ctx, queue) }()

	require.Eventually(t, func() bool { return sink.count() == 2 }, 2*time.Second, 10*time.Millisecond)
	cancel()
	assert.ErrorIs(t, <-done, context.Canceled)
	assert.Equal(t, []row{{"102", "1", "A"}}, rows(t, agg.Book(testSymbol).Bids))
}

type storageSink []*memorySink

func (s storageSink) sinks() []storage.BookSink {
	out := make([]storage.BookSink, 0, len(s))
	for _, sink := range s {
		out = append(out, sink)
	}
	return out
}

type bookCounter struct {
	n int
}

func (c *bookCounter) BookPublished(model.AggregatedBook) {
	c.n++
}
