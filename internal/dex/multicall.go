package dex

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
)

// Call3 is one Multicall3 aggregate3 sub-call.
type Call3 struct {
	Target       common.Address
	AllowFailure bool
	CallData     []byte
}

// Result3 is one aggregate3 sub-call result.
type Result3 struct {
	Success    bool
	ReturnData []byte
}

// Aggregate3 batches calls into a single eth_call pinned at block.
func Aggregate3(ctx context.Context, reader Reader, multicall common.Address, calls []Call3, block *big.Int) ([]Result3, error) {
	parsed, err := MulticallABI()
	if err != nil {
		return nil, fmt.Errorf("parse multicall abi: %w", err)
	}
	data, err := parsed.Pack("aggregate3", calls)
	if err != nil {
		return nil, fmt.Errorf("pack aggregate3: %w", err)
	}
	resp, err := reader.CallContract(ctx, ethereum.CallMsg{To: &multicall, Data: data}, block)
	if err != nil {
		return nil, fmt.Errorf("call aggregate3: %w", err)
	}
	values, err := parsed.Unpack("aggregate3", resp)
	if err != nil {
		return nil, fmt.Errorf("unpack aggregate3: %w", err)
	}
	if len(values) != 1 {
		return nil, fmt.Errorf("unexpected aggregate3 values: %d", len(values))
	}
	results := *abi.ConvertType(values[0], new([]Result3)).(*[]Result3)
	if len(results) != len(calls) {
		return nil, fmt.Errorf("aggregate3 returned %d results for %d calls", len(results), len(calls))
	}
	return results, nil
}
