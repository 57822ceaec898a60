package dex

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"depthScope/internal/model"
)

// ReserveBook holds the latest reserves of every configured pool. It is owned
// by a single ReserveSync run and is not safe for concurrent use.
type ReserveBook struct {
	order []common.Address
	pools map[common.Address]*poolEntry
}

type poolEntry struct {
	ref   model.PoolRef
	state model.ReserveState
	ready bool
}

func NewReserveBook(pools []model.PoolRef) *ReserveBook {
	b := &ReserveBook{pools: make(map[common.Address]*poolEntry, len(pools))}
	for _, pool := range pools {
		if _, ok := b.pools[pool.Address]; ok {
			continue
		}
		b.order = append(b.order, pool.Address)
		b.pools[pool.Address] = &poolEntry{ref: pool}
	}
	return b
}

// Addresses returns the pool addresses in configuration order.
func (b *ReserveBook) Addresses() []common.Address {
	return append([]common.Address(nil), b.order...)
}

// Has reports whether address is a configured pool.
func (b *ReserveBook) Has(address common.Address) bool {
	_, ok := b.pools[address]
	return ok
}

// UnresolvedTokens lists distinct tokens without configured decimals.
func (b *ReserveBook) UnresolvedTokens() []common.Address {
	seen := make(map[common.Address]bool)
	var out []common.Address
	for _, address := range b.order {
		for _, token := range b.pools[address].ref.Tokens {
			if token.Decimals == 0 && !seen[token.Address] {
				seen[token.Address] = true
				out = append(out, token.Address)
			}
		}
	}
	return out
}

// SetDecimals fills in token decimals resolved on chain.
func (b *ReserveBook) SetDecimals(decimals map[common.Address]uint8) {
	for _, entry := range b.pools {
		for i, token := range entry.ref.Tokens {
			if dec, ok := decimals[token.Address]; ok && token.Decimals == 0 {
				entry.ref.Tokens[i].Decimals = dec
			}
		}
	}
}

// Set overwrites a pool's reserves and returns the resulting update. Unknown
// pools are ignored.
func (b *ReserveBook) Set(address common.Address, reserves [2]*big.Int, block uint64) (model.PoolReserveUpdate, bool) {
	entry, ok := b.pools[address]
	if !ok {
		return model.PoolReserveUpdate{}, false
	}
	entry.state = model.ReserveState{
		Reserves:    [2]*big.Int{new(big.Int).Set(reserves[0]), new(big.Int).Set(reserves[1])},
		BlockNumber: block,
	}
	entry.ready = true
	return entry.update(), true
}

// State returns a pool's current reserve state.
func (b *ReserveBook) State(address common.Address) (model.ReserveState, bool) {
	entry, ok := b.pools[address]
	if !ok || !entry.ready {
		return model.ReserveState{}, false
	}
	return entry.state, true
}

// Updates returns the current state of every pool, in configuration order.
func (b *ReserveBook) Updates() []model.PoolReserveUpdate {
	out := make([]model.PoolReserveUpdate, 0, len(b.order))
	for _, address := range b.order {
		if entry := b.pools[address]; entry.ready {
			out = append(out, entry.update())
		}
	}
	return out
}

func (e *poolEntry) update() model.PoolReserveUpdate {
	return model.PoolReserveUpdate{
		Pool:        e.ref,
		Reserves:    [2]*big.Int{new(big.Int).Set(e.state.Reserves[0]), new(big.Int).Set(e.state.Reserves[1])},
		BlockNumber: e.state.BlockNumber,
	}
}
