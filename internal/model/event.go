package model

// Kind tags an Event variant.
type Kind string

const (
	KindOrderbook   Kind = "orderbook"
	KindPoolReserve Kind = "pool_reserve"
	KindBlockHeader Kind = "block_header"
	KindLimitOrder  Kind = "limit_order"
	KindVenueDown   Kind = "venue_down"
)

// Source is the provenance class of an event.
type Source string

const (
	SourceCEX Source = "cex"
	SourceDEX Source = "dex"
)

// EventMeta is the metadata shared by every canonical event.
// CEX events carry Timestamp (unix ms), DEX events carry BlockNumber.
type EventMeta struct {
	Source      Source `json:"source"`
	Venue       string `json:"venue"`
	Symbol      string `json:"symbol,omitempty"`
	Timestamp   int64  `json:"timestamp,omitempty"`
	BlockNumber uint64 `json:"block_number,omitempty"`
}

// Event is the closed set of canonical events flowing through the bus.
type Event interface {
	Kind() Kind
	Meta() EventMeta
	isEvent()
}

// Envelope is the canonical JSON form of an Event.
type Envelope struct {
	Kind Kind `json:"kind"`
	EventMeta
	Payload Event `json:"payload"`
}

// NewEnvelope wraps an event for serialization.
func NewEnvelope(ev Event) Envelope {
	return Envelope{Kind: ev.Kind(), EventMeta: ev.Meta(), Payload: ev}
}
