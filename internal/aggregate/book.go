package aggregate

import (
	"sort"

	"depthScope/internal/model"
)

// symbolBook holds the latest snapshot per venue for one symbol.
type symbolBook struct {
	venues    []string
	snapshots map[string]model.OrderbookSnapshot
}

func newSymbolBook() *symbolBook {
	return &symbolBook{snapshots: make(map[string]model.OrderbookSnapshot)}
}

// put replaces the venue's snapshot. A venue keeps the position it was first
// seen at.
func (b *symbolBook) put(snapshot model.OrderbookSnapshot) {
	if _, ok := b.snapshots[snapshot.Venue]; !ok {
		b.venues = append(b.venues, snapshot.Venue)
	}
	b.snapshots[snapshot.Venue] = snapshot
}

// remove drops the venue and reports whether it was present.
func (b *symbolBook) remove(venue string) bool {
	if _, ok := b.snapshots[venue]; !ok {
		return false
	}
	delete(b.snapshots, venue)
	for i, v := range b.venues {
		if v == venue {
			b.venues = append(b.venues[:i], b.venues[i+1:]...)
			break
		}
	}
	return true
}

// merge concatenates venues' levels in venue order and sorts them stably, so
// equal prices keep venue order.
func (b *symbolBook) merge(symbol string) model.AggregatedBook {
	book := model.AggregatedBook{
		Symbol: symbol,
		Bids:   []model.BookRow{},
		Asks:   []model.BookRow{},
		Venues: append([]string{}, b.venues...),
	}
	for _, venue := range b.venues {
		snapshot := b.snapshots[venue]
		book.Bids = appendRows(book.Bids, snapshot.Bids, venue)
		book.Asks = appendRows(book.Asks, snapshot.Asks, venue)
	}

	sort.SliceStable(book.Bids, func(i, j int) bool {
		return book.Bids[i].Price.GreaterThan(book.Bids[j].Price)
	})
	sort.SliceStable(book.Asks, func(i, j int) bool {
		return book.Asks[i].Price.LessThan(book.Asks[j].Price)
	})
	return book
}

func appendRows(rows []model.BookRow, levels []model.Level, venue string) []model.BookRow {
	for _, level := range levels {
		rows = append(rows, model.BookRow{Price: level.Price, Quantity: level.Quantity, Venue: venue})
	}
	return rows
}

func emptyBook(symbol string) model.AggregatedBook {
	return model.AggregatedBook{
		Symbol: symbol,
		Bids:   []model.BookRow{},
		Asks:   []model.BookRow{},
		Venues: []string{},
	}
}
