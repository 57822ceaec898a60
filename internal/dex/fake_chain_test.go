package dex

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
)

type fakeSub struct {
	errCh chan error
	once  sync.Once
	done  chan struct{}
}

func newFakeSub() *fakeSub {
	return &fakeSub{errCh: make(chan error, 1), done: make(chan struct{})}
}

func (s *fakeSub) Unsubscribe()      { s.once.Do(func() { close(s.done) }) }
func (s *fakeSub) Err() <-chan error { return s.errCh }

// fakeChain answers aggregate3 calls from in-memory reserves and decimals and
// hands subscription channels back to the test.
type fakeChain struct {
	mu        sync.Mutex
	block     uint64
	reserves  map[common.Address][2]*big.Int
	decimals  map[common.Address]uint8
	callErr   error
	callBlock *big.Int
	calls     int

	logCh      chan<- types.Log
	logQuery   ethereum.FilterQuery
	headCh     chan<- *types.Header
	sub        *fakeSub
	subscribed chan struct{}
	closed     bool
}

func newFakeChain(block uint64) *fakeChain {
	return &fakeChain{
		block:      block,
		reserves:   make(map[common.Address][2]*big.Int),
		decimals:   make(map[common.Address]uint8),
		sub:        newFakeSub(),
		subscribed: make(chan struct{}),
	}
}

func (f *fakeChain) dial(context.Context) (Client, error) { return f, nil }

func (f *fakeChain) BlockNumber(context.Context) (uint64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.block, nil
}

func (f *fakeChain) CallContract(_ context.Context, msg ethereum.CallMsg, block *big.Int) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	f.callBlock = block
	if f.callErr != nil {
		return nil, f.callErr
	}

	multicall, _ := MulticallABI()
	pair, _ := PairABI()
	erc20, _ := ERC20ABI()

	method := multicall.Methods["aggregate3"]
	if !bytes.Equal(msg.Data[:4], method.ID) {
		return nil, errors.New("unexpected selector")
	}
	args, err := method.Inputs.Unpack(msg.Data[4:])
	if err != nil {
		return nil, err
	}
	calls := *abi.ConvertType(args[0], new([]Call3)).(*[]Call3)

	results := make([]Result3, 0, len(calls))
	for _, call := range calls {
		switch {
		case bytes.Equal(call.CallData[:4], pair.Methods["getReserves"].ID):
			r, ok := f.reserves[call.Target]
			if !ok {
				results = append(results, Result3{Success: false})
				continue
			}
			out, err := pair.Methods["getReserves"].Outputs.Pack(r[0], r[1], uint32(1700000000))
			if err != nil {
				return nil, err
			}
			results = append(results, Result3{Success: true, ReturnData: out})
		case bytes.Equal(call.CallData[:4], erc20.Methods["decimals"].ID):
			d, ok := f.decimals[call.Target]
			if !ok {
				results = append(results, Result3{Success: false})
				continue
			}
			out, err := erc20.Methods["decimals"].Outputs.Pack(d)
			if err != nil {
				return nil, err
			}
			results = append(results, Result3{Success: true, ReturnData: out})
		default:
			return nil, fmt.Errorf("unexpected call to %s", call.Target.Hex())
		}
	}
	return method.Outputs.Pack(results)
}

func (f *fakeChain) SubscribeNewHead(_ context.Context, ch chan<- *types.Header) (ethereum.Subscription, error) {
	f.mu.Lock()
	f.headCh = ch
	f.mu.Unlock()
	close(f.subscribed)
	return f.sub, nil
}

func (f *fakeChain) SubscribeFilterLogs(_ context.Context, q ethereum.FilterQuery, ch chan<- types.Log) (ethereum.Subscription, error) {
	f.mu.Lock()
	f.logCh = ch
	f.logQuery = q
	f.mu.Unlock()
	close(f.subscribed)
	return f.sub, nil
}

func (f *fakeChain) Close() {
	f.mu.Lock()
	f.closed = true
	f.mu.Unlock()
}

func (f *fakeChain) isClosed() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closed
}

func syncData(r0, r1 int64) []byte {
	pair, _ := PairABI()
	data, err := pair.Events["Sync"].Inputs.NonIndexed().Pack(big.NewInt(r0), big.NewInt(r1))
	if err != nil {
		panic(err)
	}
	return data
}

func syncLog(pool common.Address, block uint64, data []byte) types.Log {
	pair, _ := PairABI()
	return types.Log{
		Address:     pool,
		Topics:      []common.Hash{pair.Events["Sync"].ID},
		Data:        data,
		BlockNumber: block,
		TxHash:      common.HexToHash("0xabc"),
		Index:       3,
	}
}

type decodeCounter struct {
	mu     sync.Mutex
	venues []string
}

func (c *decodeCounter) DecodeFailed(venue string) {
	c.mu.Lock()
	c.venues = append(c.venues, venue)
	c.mu.Unlock()
}

func (c *decodeCounter) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.venues)
}
