package model

import (
	"encoding/json"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common"
)

// PoolRef identifies a configured AMM pool.
type PoolRef struct {
	Exchange string         `json:"exchange"`
	Version  int            `json:"version"`
	Symbol   string         `json:"symbol"`
	Address  common.Address `json:"address"`
	Fee      uint32         `json:"fee"`
	Tokens   [2]TokenMeta   `json:"tokens"`
}

// Venue is the venue tag used for the pool's rows in aggregated books.
func (p PoolRef) Venue() string {
	return fmt.Sprintf("%s_v%d", p.Exchange, p.Version)
}

// TokenIndex returns the pool index (0 or 1) of the token with the given symbol.
func (p PoolRef) TokenIndex(symbol string) (int, bool) {
	for i, token := range p.Tokens {
		if strings.EqualFold(token.Symbol, symbol) {
			return i, true
		}
	}
	return 0, false
}

// ReserveState is the latest known reserve pair of a pool.
type ReserveState struct {
	Reserves    [2]*big.Int
	BlockNumber uint64
}

// PoolReserveUpdate carries a pool's current reserves, never a delta.
type PoolReserveUpdate struct {
	Pool        PoolRef
	Reserves    [2]*big.Int
	BlockNumber uint64
}

func (PoolReserveUpdate) Kind() Kind { return KindPoolReserve }
func (PoolReserveUpdate) isEvent()   {}

func (u PoolReserveUpdate) Meta() EventMeta {
	return EventMeta{Source: SourceDEX, Venue: u.Pool.Venue(), Symbol: u.Pool.Symbol, BlockNumber: u.BlockNumber}
}

// MarshalJSON encodes reserves as decimal strings.
func (u PoolReserveUpdate) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Pool        PoolRef   `json:"pool"`
		Reserves    [2]string `json:"reserves"`
		BlockNumber uint64    `json:"block_number"`
	}{u.Pool, [2]string{bigString(u.Reserves[0]), bigString(u.Reserves[1])}, u.BlockNumber})
}
