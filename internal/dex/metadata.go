package dex

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"depthScope/internal/exception"
)

// Bootstrap reads every pool's reserves, plus the decimals of tokens that have
// none configured, in one multicall pinned at the latest block. The book is
// only touched when every sub-call succeeded. It returns the pinned block.
func Bootstrap(ctx context.Context, reader Reader, multicall common.Address, book *ReserveBook) (uint64, error) {
	pair, err := PairABI()
	if err != nil {
		return 0, fmt.Errorf("parse pair abi: %w", err)
	}
	erc20, err := ERC20ABI()
	if err != nil {
		return 0, fmt.Errorf("parse erc20 abi: %w", err)
	}

	block, err := reader.BlockNumber(ctx)
	if err != nil {
		return 0, fmt.Errorf("%w: block number: %v", exception.ErrBootstrap, err)
	}

	getReserves, err := pair.Pack("getReserves")
	if err != nil {
		return 0, fmt.Errorf("pack getReserves: %w", err)
	}
	decimalsCall, err := erc20.Pack("decimals")
	if err != nil {
		return 0, fmt.Errorf("pack decimals: %w", err)
	}

	pools := book.Addresses()
	calls := make([]Call3, 0, len(pools))
	for _, pool := range pools {
		calls = append(calls, Call3{Target: pool, CallData: getReserves})
	}
	tokens := book.UnresolvedTokens()
	for _, token := range tokens {
		calls = append(calls, Call3{Target: token, CallData: decimalsCall})
	}

	results, err := Aggregate3(ctx, reader, multicall, calls, new(big.Int).SetUint64(block))
	if err != nil {
		return 0, fmt.Errorf("%w: %v", exception.ErrBootstrap, err)
	}

	reserves := make([][2]*big.Int, len(pools))
	for i, pool := range pools {
		if !results[i].Success {
			return 0, fmt.Errorf("%w: getReserves reverted for %s", exception.ErrBootstrap, pool.Hex())
		}
		values, err := pair.Unpack("getReserves", results[i].ReturnData)
		if err != nil || len(values) < 2 {
			return 0, fmt.Errorf("%w: unpack getReserves for %s: %v", exception.ErrBootstrap, pool.Hex(), err)
		}
		reserve0, err := asBigInt(values[0])
		if err != nil {
			return 0, fmt.Errorf("%w: reserve0 for %s: %v", exception.ErrBootstrap, pool.Hex(), err)
		}
		reserve1, err := asBigInt(values[1])
		if err != nil {
			return 0, fmt.Errorf("%w: reserve1 for %s: %v", exception.ErrBootstrap, pool.Hex(), err)
		}
		reserves[i] = [2]*big.Int{reserve0, reserve1}
	}

	decimals := make(map[common.Address]uint8, len(tokens))
	for i, token := range tokens {
		result := results[len(pools)+i]
		if !result.Success {
			return 0, fmt.Errorf("%w: decimals reverted for %s", exception.ErrBootstrap, token.Hex())
		}
		values, err := erc20.Unpack("decimals", result.ReturnData)
		if err != nil || len(values) != 1 {
			return 0, fmt.Errorf("%w: unpack decimals for %s: %v", exception.ErrBootstrap, token.Hex(), err)
		}
		dec, err := asUint8(values[0])
		if err != nil {
			return 0, fmt.Errorf("%w: decimals for %s: %v", exception.ErrBootstrap, token.Hex(), err)
		}
		decimals[token] = dec
	}

	book.SetDecimals(decimals)
	for i, pool := range pools {
		book.Set(pool, reserves[i], block)
	}
	return block, nil
}

func asBigInt(value interface{}) (*big.Int, error) {
	switch v := value.(type) {
	case *big.Int:
		return new(big.Int).Set(v), nil
	case big.Int:
		return new(big.Int).Set(&v), nil
	case uint8:
		return new(big.Int).SetUint64(uint64(v)), nil
	case uint16:
		return new(big.Int).SetUint64(uint64(v)), nil
	case uint32:
		return new(big.Int).SetUint64(uint64(v)), nil
	case uint64:
		return new(big.Int).SetUint64(v), nil
	default:
		return nil, fmt.Errorf("unsupported int type %T", value)
	}
}

func asUint8(value interface{}) (uint8, error) {
	switch v := value.(type) {
	case uint8:
		return v, nil
	case *big.Int:
		if !v.IsUint64() || v.Uint64() > 255 {
			return 0, fmt.Errorf("uint8 overflow: %s", v.String())
		}
		return uint8(v.Uint64()), nil
	default:
		return 0, fmt.Errorf("unsupported uint8 type %T", value)
	}
}
