package venue

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"depthScope/internal/model"
)

const BinanceName = "binance"

// Binance decodes USDⓈ-M futures partial depth streams. Quantities are in
// base units.
type Binance struct {
	endpoint string
	depth    int
	symbols  map[string]string
}

func NewBinance(endpoint string, depth int) *Binance {
	if depth <= 0 {
		depth = 5
	}
	return &Binance{endpoint: endpoint, depth: depth, symbols: make(map[string]string)}
}

func (b *Binance) Name() string     { return BinanceName }
func (b *Binance) Endpoint() string { return b.endpoint }

type binanceSubscribe struct {
	Method string   `json:"method"`
	Params []string `json:"params"`
	ID     int64    `json:"id"`
}

func (b *Binance) SubscribeRequest(symbols []string) (interface{}, error) {
	params := make([]string, 0, len(symbols))
	for _, symbol := range symbols {
		base, quote, err := splitSymbol(symbol)
		if err != nil {
			return nil, err
		}
		b.symbols[base+quote] = base + "/" + quote
		params = append(params, fmt.Sprintf("%s@depth%d@100ms", strings.ToLower(base+quote), b.depth))
	}
	return binanceSubscribe{Method: "SUBSCRIBE", Params: params, ID: 1}, nil
}

func (b *Binance) CheckAck(msg []byte) (bool, error) {
	var ack struct {
		Result json.RawMessage `json:"result"`
		ID     *int64          `json:"id"`
		Error  *struct {
			Code int    `json:"code"`
			Msg  string `json:"msg"`
		} `json:"error"`
	}
	if err := json.Unmarshal(msg, &ack); err != nil {
		return false, nil
	}
	if ack.Error != nil {
		return false, fmt.Errorf("binance subscribe rejected: code=%d msg=%s", ack.Error.Code, ack.Error.Msg)
	}
	if ack.ID == nil || *ack.ID != 1 {
		return false, nil
	}
	return len(ack.Result) == 0 || string(ack.Result) == "null", nil
}

type binanceDepth struct {
	EventType string     `json:"e"`
	EventTime int64      `json:"E"`
	Symbol    string     `json:"s"`
	Bids      [][]string `json:"b"`
	Asks      [][]string `json:"a"`
	ID        *int64     `json:"id"`
}

func (b *Binance) Decode(msg []byte) ([]model.OrderbookSnapshot, error) {
	var ev binanceDepth
	if err := json.Unmarshal(msg, &ev); err != nil {
		return nil, decodeError(BinanceName, "json: %v", err)
	}
	if ev.ID != nil {
		return nil, nil
	}
	if ev.Symbol == "" {
		return nil, decodeError(BinanceName, "missing symbol")
	}
	symbol, ok := b.symbols[strings.ToUpper(ev.Symbol)]
	if !ok {
		return nil, decodeError(BinanceName, "unsubscribed symbol %s", ev.Symbol)
	}

	one := decimal.NewFromInt(1)
	bids, err := levelsFromStrings(BinanceName, ev.Bids, one)
	if err != nil {
		return nil, err
	}
	asks, err := levelsFromStrings(BinanceName, ev.Asks, one)
	if err != nil {
		return nil, err
	}
	return []model.OrderbookSnapshot{{
		Venue:     BinanceName,
		Symbol:    symbol,
		Bids:      bids,
		Asks:      asks,
		Timestamp: ev.EventTime,
	}}, nil
}
