package aggregate

import (
	"fmt"
	"math/big"
	"strings"

	"github.com/shopspring/decimal"

	"depthScope/internal/model"
)

// tokenAmount scales a raw integer amount by 10^decimals.
func tokenAmount(value *big.Int, decimals uint8) decimal.Decimal {
	return decimal.NewFromBigInt(value, -int32(decimals))
}

// ammLevel converts pool reserves into a single level at the reserve ratio.
// Quantity is capped by depth, expressed in base units.
func ammLevel(update model.PoolReserveUpdate, depth decimal.Decimal, precision int32) (model.Level, error) {
	base, quote, ok := strings.Cut(update.Pool.Symbol, "/")
	if !ok || base == "" || quote == "" {
		return model.Level{}, fmt.Errorf("invalid symbol %q", update.Pool.Symbol)
	}
	baseIdx, ok := update.Pool.TokenIndex(base)
	if !ok {
		return model.Level{}, fmt.Errorf("pool %s has no %s token", update.Pool.Address.Hex(), base)
	}
	quoteIdx, ok := update.Pool.TokenIndex(quote)
	if !ok || quoteIdx == baseIdx {
		return model.Level{}, fmt.Errorf("pool %s has no %s token", update.Pool.Address.Hex(), quote)
	}

	baseReserve, quoteReserve := update.Reserves[baseIdx], update.Reserves[quoteIdx]
	if baseReserve == nil || quoteReserve == nil || baseReserve.Sign() <= 0 || quoteReserve.Sign() <= 0 {
		return model.Level{}, fmt.Errorf("pool %s has empty reserves", update.Pool.Address.Hex())
	}

	baseAmount := tokenAmount(baseReserve, update.Pool.Tokens[baseIdx].Decimals)
	quoteAmount := tokenAmount(quoteReserve, update.Pool.Tokens[quoteIdx].Decimals)

	return model.Level{
		Price:    quoteAmount.DivRound(baseAmount, precision),
		Quantity: decimal.Min(depth, baseAmount),
	}, nil
}
