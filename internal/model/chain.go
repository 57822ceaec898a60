package model

import (
	"encoding/json"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// ChainVenue is the venue tag of chain-wide events.
const ChainVenue = "chain"

// BlockHeader is a new chain head with the predicted next base fee, in wei.
type BlockHeader struct {
	Number      uint64
	Hash        common.Hash
	Time        uint64
	GasUsed     uint64
	GasLimit    uint64
	BaseFee     *big.Int
	NextBaseFee *big.Int
}

func (BlockHeader) Kind() Kind { return KindBlockHeader }
func (BlockHeader) isEvent()   {}

func (h BlockHeader) Meta() EventMeta {
	return EventMeta{Source: SourceDEX, Venue: ChainVenue, BlockNumber: h.Number}
}

func (h BlockHeader) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Number      uint64      `json:"number"`
		Hash        common.Hash `json:"hash"`
		Time        uint64      `json:"time"`
		GasUsed     uint64      `json:"gas_used"`
		GasLimit    uint64      `json:"gas_limit"`
		BaseFee     string      `json:"base_fee"`
		NextBaseFee string      `json:"next_base_fee"`
	}{h.Number, h.Hash, h.Time, h.GasUsed, h.GasLimit, bigString(h.BaseFee), bigString(h.NextBaseFee)})
}

// LimitOrderStatus is the lifecycle transition reported by a limit-order log.
type LimitOrderStatus string

const (
	LimitOrderFilled   LimitOrderStatus = "filled"
	LimitOrderCanceled LimitOrderStatus = "canceled"
)

// LimitOrderUpdate is an on-chain limit order fill or cancellation.
type LimitOrderUpdate struct {
	Contract    common.Address
	Status      LimitOrderStatus
	Maker       common.Address
	OrderHash   common.Hash
	Remaining   *big.Int
	BlockNumber uint64
	TxHash      common.Hash
}

func (LimitOrderUpdate) Kind() Kind { return KindLimitOrder }
func (LimitOrderUpdate) isEvent()   {}

func (u LimitOrderUpdate) Meta() EventMeta {
	return EventMeta{Source: SourceDEX, Venue: u.Contract.Hex(), BlockNumber: u.BlockNumber}
}

func (u LimitOrderUpdate) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Contract    common.Address   `json:"contract"`
		Status      LimitOrderStatus `json:"status"`
		Maker       common.Address   `json:"maker"`
		OrderHash   common.Hash      `json:"order_hash"`
		Remaining   string           `json:"remaining"`
		BlockNumber uint64           `json:"block_number"`
		TxHash      common.Hash      `json:"tx_hash"`
	}{u.Contract, u.Status, u.Maker, u.OrderHash, bigString(u.Remaining), u.BlockNumber, u.TxHash})
}

// VenueDown reports that a venue's stream failed and its data is stale.
type VenueDown struct {
	Venue     string `json:"venue"`
	Reason    string `json:"reason"`
	Timestamp int64  `json:"timestamp"`
}

func (VenueDown) Kind() Kind { return KindVenueDown }
func (VenueDown) isEvent()   {}

func (d VenueDown) Meta() EventMeta {
	return EventMeta{Venue: d.Venue, Timestamp: d.Timestamp}
}
