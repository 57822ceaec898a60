package dex

import (
	"math/big"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
)

// syncDataLen is the packed size of Sync(uint112,uint112).
const syncDataLen = 64

// SyncDecoder decodes constant-product pair Sync logs.
type SyncDecoder struct {
	event abi.Event
}

func NewSyncDecoder() (*SyncDecoder, error) {
	parsed, err := PairABI()
	if err != nil {
		return nil, err
	}
	return &SyncDecoder{event: parsed.Events["Sync"]}, nil
}

func (d *SyncDecoder) Topics() []common.Hash { return []common.Hash{d.event.ID} }

func (d *SyncDecoder) CanDecode(topic0 common.Hash) bool { return topic0 == d.event.ID }

// Decode returns the pair's reserves after the logged update.
func (d *SyncDecoder) Decode(lg types.Log) ([2]*big.Int, error) {
	if len(lg.Topics) == 0 || !d.CanDecode(lg.Topics[0]) {
		return [2]*big.Int{}, logDecodeError("sync", lg, "unexpected topic0")
	}
	if len(lg.Data) != syncDataLen {
		return [2]*big.Int{}, logDecodeError("sync", lg, "data length %d, want %d", len(lg.Data), syncDataLen)
	}
	values, err := unpackNonIndexed(d.event, lg.Data)
	if err != nil {
		return [2]*big.Int{}, logDecodeError("sync", lg, "%v", err)
	}
	reserve0, err := asBigInt(values[0])
	if err != nil {
		return [2]*big.Int{}, logDecodeError("sync", lg, "reserve0: %v", err)
	}
	reserve1, err := asBigInt(values[1])
	if err != nil {
		return [2]*big.Int{}, logDecodeError("sync", lg, "reserve1: %v", err)
	}
	return [2]*big.Int{reserve0, reserve1}, nil
}
