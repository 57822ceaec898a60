package model

import (
	"encoding/json"
	"errors"
	"math/big"
	"strings"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"

	"depthScope/internal/exception"
)

func TestEnvelopeOrderbookJSON(t *testing.T) {
	snap := OrderbookSnapshot{
		Venue:     "binance",
		Symbol:    "ETH/USDT",
		Bids:      []Level{{Price: decimal.RequireFromString("100.50"), Quantity: decimal.RequireFromString("2")}},
		Asks:      []Level{},
		Timestamp: 1700000000000,
	}

	b, err := json.Marshal(NewEnvelope(snap))
	if err != nil {
		t.Fatalf("marshal failed: %v", err)
	}

	var decoded map[string]interface{}
	if err := json.Unmarshal(b, &decoded); err != nil {
		t.Fatalf("unmarshal failed: %v", err)
	}
	if decoded["kind"] != "orderbook" || decoded["source"] != "cex" || decoded["venue"] != "binance" {
		t.Fatalf("envelope header mismatch: %s", b)
	}
	payload := decoded["payload"].(map[string]interface{})
	bid := payload["bids"].([]interface{})[0].(map[string]interface{})
	if bid["price"] != "100.5" || bid["quantity"] != "2" {
		t.Fatalf("decimal encoding mismatch: %v", bid)
	}
}

func TestEnvelopePoolReserveJSON(t *testing.T) {
	reserve0, _ := new(big.Int).SetString("123456789012345678901234567", 10)
	update := PoolReserveUpdate{
		Pool: PoolRef{
			Exchange: "uniswap",
			Version:  2,
			Symbol:   "ETH/USDT",
			Address:  common.HexToAddress("0x0d4a11d5EEaaC28EC3F61d100daF4d40471f1852"),
			Fee:      3000,
		},
		Reserves:    [2]*big.Int{reserve0, big.NewInt(42)},
		BlockNumber: 19000000,
	}

	b, err := json.Marshal(NewEnvelope(update))
	if err != nil {
		t.Fatalf("marshal failed: %v", err)
	}
	s := string(b)
	if !strings.Contains(s, `"reserves":["123456789012345678901234567","42"]`) {
		t.Fatalf("reserves must be decimal strings: %s", s)
	}
	if !strings.Contains(s, `"venue":"uniswap_v2"`) || !strings.Contains(s, `"block_number":19000000`) {
		t.Fatalf("meta mismatch: %s", s)
	}
}

func TestPoolRefTokenIndex(t *testing.T) {
	pool := PoolRef{Tokens: [2]TokenMeta{{Symbol: "ETH"}, {Symbol: "USDT"}}}

	if idx, ok := pool.TokenIndex("usdt"); !ok || idx != 1 {
		t.Fatalf("token index mismatch: %d %v", idx, ok)
	}
	if _, ok := pool.TokenIndex("BTC"); ok {
		t.Fatalf("unexpected token match")
	}
}

func TestDecodeErrorIsDecodeFailure(t *testing.T) {
	var err error = &DecodeError{Venue: "okx", Reason: "bad json"}
	if !errors.Is(err, exception.ErrDecode) {
		t.Fatalf("expected ErrDecode, got %v", err)
	}
	if err.Error() != "decode okx: bad json" {
		t.Fatalf("message mismatch: %q", err.Error())
	}
}
