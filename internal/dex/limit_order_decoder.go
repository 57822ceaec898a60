package dex

import (
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"

	"depthScope/internal/model"
)

// LimitOrderDecoder decodes OrderFilled and OrderCanceled logs.
type LimitOrderDecoder struct {
	events map[common.Hash]limitOrderEvent
	topics []common.Hash
}

type limitOrderEvent struct {
	event  abi.Event
	status model.LimitOrderStatus
}

func NewLimitOrderDecoder() (*LimitOrderDecoder, error) {
	parsed, err := LimitOrderABI()
	if err != nil {
		return nil, err
	}
	filled := parsed.Events["OrderFilled"]
	canceled := parsed.Events["OrderCanceled"]
	return &LimitOrderDecoder{
		events: map[common.Hash]limitOrderEvent{
			filled.ID:   {event: filled, status: model.LimitOrderFilled},
			canceled.ID: {event: canceled, status: model.LimitOrderCanceled},
		},
		topics: []common.Hash{filled.ID, canceled.ID},
	}, nil
}

func (d *LimitOrderDecoder) Topics() []common.Hash {
	return append([]common.Hash(nil), d.topics...)
}

func (d *LimitOrderDecoder) CanDecode(topic0 common.Hash) bool {
	_, ok := d.events[topic0]
	return ok
}

func (d *LimitOrderDecoder) Decode(lg types.Log) (model.LimitOrderUpdate, error) {
	if len(lg.Topics) == 0 {
		return model.LimitOrderUpdate{}, logDecodeError("limit_order", lg, "missing topics")
	}
	variant, ok := d.events[lg.Topics[0]]
	if !ok {
		return model.LimitOrderUpdate{}, logDecodeError("limit_order", lg, "unsupported topic0")
	}

	indexedTopics, err := parseIndexedTopics(variant.event, lg.Topics)
	if err != nil {
		return model.LimitOrderUpdate{}, logDecodeError("limit_order", lg, "%v", err)
	}
	var indexed struct {
		Maker common.Address
	}
	if err := abi.ParseTopics(&indexed, indexedArguments(variant.event.Inputs), indexedTopics); err != nil {
		return model.LimitOrderUpdate{}, logDecodeError("limit_order", lg, "parse topics: %v", err)
	}

	values, err := unpackNonIndexed(variant.event, lg.Data)
	if err != nil {
		return model.LimitOrderUpdate{}, logDecodeError("limit_order", lg, "%v", err)
	}
	orderHash, ok := values[0].([32]byte)
	if !ok {
		return model.LimitOrderUpdate{}, logDecodeError("limit_order", lg, "order hash type %T", values[0])
	}
	remaining, err := asBigInt(values[1])
	if err != nil {
		return model.LimitOrderUpdate{}, logDecodeError("limit_order", lg, "remaining: %v", err)
	}

	return model.LimitOrderUpdate{
		Contract:    lg.Address,
		Status:      variant.status,
		Maker:       indexed.Maker,
		OrderHash:   common.Hash(orderHash),
		Remaining:   remaining,
		BlockNumber: lg.BlockNumber,
		TxHash:      lg.TxHash,
	}, nil
}
