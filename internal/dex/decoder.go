package dex

import (
	"context"
	"errors"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"go.uber.org/zap"

	"depthScope/internal/bus"
	"depthScope/internal/exception"
	"depthScope/internal/model"
)

// Decoder selects logs by topic0.
type Decoder interface {
	// Topics lists the topic0 values the decoder handles, for subscription filters.
	Topics() []common.Hash
	CanDecode(topic0 common.Hash) bool
}

// Reader performs the reads needed for bootstrap.
type Reader interface {
	BlockNumber(ctx context.Context) (uint64, error)
	CallContract(ctx context.Context, msg ethereum.CallMsg, blockNumber *big.Int) ([]byte, error)
}

// Client is the chain connection a stream owns for one run.
type Client interface {
	Reader
	SubscribeNewHead(ctx context.Context, ch chan<- *types.Header) (ethereum.Subscription, error)
	SubscribeFilterLogs(ctx context.Context, q ethereum.FilterQuery, ch chan<- types.Log) (ethereum.Subscription, error)
	Close()
}

// DialFunc opens a fresh chain connection.
type DialFunc func(ctx context.Context) (Client, error)

// DecodeRecorder counts dropped logs per venue.
type DecodeRecorder interface {
	DecodeFailed(venue string)
}

func logDecodeError(venue string, lg types.Log, format string, args ...interface{}) error {
	topic0 := ""
	if len(lg.Topics) > 0 {
		topic0 = lg.Topics[0].Hex()
	}
	return &model.DecodeError{
		Venue:       venue,
		BlockNumber: lg.BlockNumber,
		TxHash:      lg.TxHash.Hex(),
		LogIndex:    lg.Index,
		Address:     lg.Address.Hex(),
		Topic0:      topic0,
		Reason:      fmt.Sprintf(format, args...),
	}
}

func parseIndexedTopics(event abi.Event, topics []common.Hash) ([]common.Hash, error) {
	indexedCount := len(indexedArguments(event.Inputs))
	if len(topics) != indexedCount+1 {
		return nil, fmt.Errorf("expected %d topics, got %d", indexedCount+1, len(topics))
	}
	return topics[1:], nil
}

func indexedArguments(args abi.Arguments) abi.Arguments {
	indexed := make(abi.Arguments, 0, len(args))
	for _, arg := range args {
		if arg.Indexed {
			indexed = append(indexed, arg)
		}
	}
	return indexed
}

func unpackNonIndexed(event abi.Event, data []byte) ([]interface{}, error) {
	values, err := event.Inputs.NonIndexed().Unpack(data)
	if err != nil {
		return nil, fmt.Errorf("unpack %s: %w", event.Name, err)
	}
	return values, nil
}

// publish treats a full bus as a dropped event rather than a stream failure.
func publish(ctx context.Context, pub bus.Publisher, ev model.Event, logger *zap.Logger) error {
	err := pub.Publish(ctx, ev)
	if errors.Is(err, exception.ErrQueueFull) {
		logger.Warn("bus full, event dropped", zap.String("kind", string(ev.Kind())))
		return nil
	}
	return err
}
