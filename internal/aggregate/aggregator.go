package aggregate

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"depthScope/internal/bus"
	"depthScope/internal/model"
	"depthScope/internal/storage"
)

// DefaultPricePrecision is the number of decimal places of synthetic AMM prices.
const DefaultPricePrecision = 18

// Config controls how pool reserves are folded into books.
type Config struct {
	// AMMDepth caps the synthetic level quantity, in base units.
	AMMDepth       decimal.Decimal
	PricePrecision int32
}

// BookRecorder observes published books.
type BookRecorder interface {
	BookPublished(book model.AggregatedBook)
}

// Aggregator merges venue snapshots and pool reserves into one book per symbol.
// Handle must be called from a single goroutine; Book is safe for concurrent use.
type Aggregator struct {
	cfg      Config
	sinks    []storage.BookSink
	logger   *zap.Logger
	recorder BookRecorder
	now      func() time.Time

	mu      sync.RWMutex
	symbols map[string]*symbolBook
	books   map[string]model.AggregatedBook
	block   *model.BlockContext
}

func NewAggregator(cfg Config, sinks []storage.BookSink, logger *zap.Logger, recorder BookRecorder) *Aggregator {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.AMMDepth.Sign() <= 0 {
		cfg.AMMDepth = decimal.NewFromInt(1)
	}
	if cfg.PricePrecision <= 0 {
		cfg.PricePrecision = DefaultPricePrecision
	}

	return &Aggregator{
		cfg:      cfg,
		sinks:    sinks,
		logger:   logger,
		recorder: recorder,
		now:      time.Now,
		symbols:  make(map[string]*symbolBook),
		books:    make(map[string]model.AggregatedBook),
	}
}

// Run consumes the queue until ctx is done or the queue is closed.
func (a *Aggregator) Run(ctx context.Context, queue *bus.Queue) error {
	queue.Run(ctx, func(ev model.Event) {
		a.Handle(ctx, ev)
	})
	return ctx.Err()
}

// Handle applies one event and publishes every book it changed.
func (a *Aggregator) Handle(ctx context.Context, ev model.Event) {
	var published []model.AggregatedBook

	switch e := ev.(type) {
	case model.OrderbookSnapshot:
		published = a.applySnapshot(e)
	case model.PoolReserveUpdate:
		level, err := ammLevel(e, a.cfg.AMMDepth, a.cfg.PricePrecision)
		if err != nil {
			a.logger.Warn("skip pool update",
				zap.String("venue", e.Pool.Venue()),
				zap.Uint64("block", e.BlockNumber),
				zap.Error(err),
			)
			return
		}
		published = a.applySnapshot(model.OrderbookSnapshot{
			Venue:     e.Pool.Venue(),
			Symbol:    e.Pool.Symbol,
			Bids:      []model.Level{level},
			Asks:      []model.Level{level},
			Timestamp: a.now().UnixMilli(),
		})
	case model.BlockHeader:
		a.mu.Lock()
		a.block = &model.BlockContext{Number: e.Number, BaseFee: e.BaseFee, NextBaseFee: e.NextBaseFee}
		a.mu.Unlock()
	case model.VenueDown:
		if e.Venue == model.ChainVenue {
			// Books stop carrying a base fee until the header stream recovers.
			a.mu.Lock()
			a.block = nil
			a.mu.Unlock()
		}
		published = a.removeVenue(e.Venue)
		if len(published) > 0 {
			a.logger.Info("venue removed from books", zap.String("venue", e.Venue), zap.String("reason", e.Reason))
		}
	case model.LimitOrderUpdate:
		a.logger.Debug("limit order",
			zap.String("contract", e.Contract.Hex()),
			zap.String("status", string(e.Status)),
			zap.String("order_hash", e.OrderHash.Hex()),
			zap.Uint64("block", e.BlockNumber),
		)
	default:
		a.logger.Warn("unknown event", zap.String("kind", string(ev.Kind())))
	}

	for _, book := range published {
		a.publish(ctx, book)
	}
}

// Book returns the current merged view of symbol. Unknown symbols yield an
// empty book.
func (a *Aggregator) Book(symbol string) model.AggregatedBook {
	a.mu.RLock()
	defer a.mu.RUnlock()

	book, ok := a.books[symbol]
	if !ok {
		return emptyBook(symbol)
	}
	return book
}

func (a *Aggregator) applySnapshot(snapshot model.OrderbookSnapshot) []model.AggregatedBook {
	a.mu.Lock()
	defer a.mu.Unlock()

	sb := a.symbols[snapshot.Symbol]
	if sb == nil {
		sb = newSymbolBook()
		a.symbols[snapshot.Symbol] = sb
	}
	sb.put(snapshot)
	return []model.AggregatedBook{a.rebuildLocked(snapshot.Symbol, sb)}
}

func (a *Aggregator) removeVenue(venue string) []model.AggregatedBook {
	a.mu.Lock()
	defer a.mu.Unlock()

	symbols := make([]string, 0, len(a.symbols))
	for symbol := range a.symbols {
		symbols = append(symbols, symbol)
	}
	sort.Strings(symbols)

	var out []model.AggregatedBook
	for _, symbol := range symbols {
		sb := a.symbols[symbol]
		if sb.remove(venue) {
			out = append(out, a.rebuildLocked(symbol, sb))
		}
	}
	return out
}

func (a *Aggregator) rebuildLocked(symbol string, sb *symbolBook) model.AggregatedBook {
	book := sb.merge(symbol)
	book.Block = a.block
	book.UpdatedAt = a.now().UnixMilli()
	a.books[symbol] = book
	return book
}

func (a *Aggregator) publish(ctx context.Context, book model.AggregatedBook) {
	if a.recorder != nil {
		a.recorder.BookPublished(book)
	}
	for _, sink := range a.sinks {
		if err := sink.PutBook(ctx, book); err != nil {
			a.logger.Warn("sink write failed", zap.String("symbol", book.Symbol), zap.Error(err))
		}
	}
}
