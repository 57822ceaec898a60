package model

import (
	"encoding/json"
	"math/big"

	"github.com/shopspring/decimal"
)

// Level is a single price level.
type Level struct {
	Price    decimal.Decimal `json:"price"`
	Quantity decimal.Decimal `json:"quantity"`
}

// OrderbookSnapshot is a venue's full view of one symbol. It replaces any prior
// snapshot from the same venue.
type OrderbookSnapshot struct {
	Venue     string  `json:"venue"`
	Symbol    string  `json:"symbol"`
	Bids      []Level `json:"bids"`
	Asks      []Level `json:"asks"`
	Timestamp int64   `json:"timestamp"`
}

func (OrderbookSnapshot) Kind() Kind { return KindOrderbook }
func (OrderbookSnapshot) isEvent()   {}

func (s OrderbookSnapshot) Meta() EventMeta {
	return EventMeta{Source: SourceCEX, Venue: s.Venue, Symbol: s.Symbol, Timestamp: s.Timestamp}
}

// BookRow is a merged level tagged with the venue it came from.
type BookRow struct {
	Price    decimal.Decimal `json:"price"`
	Quantity decimal.Decimal `json:"quantity"`
	Venue    string          `json:"venue"`
}

// BlockContext is the chain state a book was published under.
type BlockContext struct {
	Number      uint64
	BaseFee     *big.Int
	NextBaseFee *big.Int
}

// MarshalJSON encodes fee fields as decimal strings.
func (c BlockContext) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Number      uint64 `json:"number"`
		BaseFee     string `json:"base_fee,omitempty"`
		NextBaseFee string `json:"next_base_fee,omitempty"`
	}{c.Number, bigString(c.BaseFee), bigString(c.NextBaseFee)})
}

// AggregatedBook is the merged multi-venue view of one symbol. Bids are sorted by
// descending price, asks by ascending price.
type AggregatedBook struct {
	Symbol    string        `json:"symbol"`
	Bids      []BookRow     `json:"bids"`
	Asks      []BookRow     `json:"asks"`
	Venues    []string      `json:"venues"`
	Block     *BlockContext `json:"block,omitempty"`
	UpdatedAt int64         `json:"updated_at"`
}

// BestBid returns the top bid row, if any.
func (b AggregatedBook) BestBid() (BookRow, bool) {
	if len(b.Bids) == 0 {
		return BookRow{}, false
	}
	return b.Bids[0], true
}

// BestAsk returns the top ask row, if any.
func (b AggregatedBook) BestAsk() (BookRow, bool) {
	if len(b.Asks) == 0 {
		return BookRow{}, false
	}
	return b.Asks[0], true
}

func bigString(v *big.Int) string {
	if v == nil {
		return ""
	}
	return v.String()
}
