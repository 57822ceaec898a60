package dex

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"go.uber.org/zap"

	"depthScope/internal/bus"
	"depthScope/internal/exception"
)

// LimitOrderStream publishes fills and cancellations from limit-order contracts.
type LimitOrderStream struct {
	dial        DialFunc
	contracts   map[common.Address]bool
	idleTimeout time.Duration
	decoder     *LimitOrderDecoder
	logger      *zap.Logger
	recorder    DecodeRecorder
}

func NewLimitOrderStream(dial DialFunc, contracts []common.Address, idleTimeout time.Duration, logger *zap.Logger, recorder DecodeRecorder) (*LimitOrderStream, error) {
	if len(contracts) == 0 {
		return nil, errors.New("no limit-order contracts configured")
	}
	decoder, err := NewLimitOrderDecoder()
	if err != nil {
		return nil, err
	}
	if idleTimeout <= 0 {
		idleTimeout = 10 * time.Minute
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	set := make(map[common.Address]bool, len(contracts))
	for _, c := range contracts {
		set[c] = true
	}
	return &LimitOrderStream{
		dial:        dial,
		contracts:   set,
		idleTimeout: idleTimeout,
		decoder:     decoder,
		logger:      logger.With(zap.String("stream", "limit_orders")),
		recorder:    recorder,
	}, nil
}

func (s *LimitOrderStream) Run(ctx context.Context, pub bus.Publisher) error {
	client, err := s.dial(ctx)
	if err != nil {
		return fmt.Errorf("%w: dial: %v", exception.ErrConnection, err)
	}
	defer client.Close()

	addresses := make([]common.Address, 0, len(s.contracts))
	for address := range s.contracts {
		addresses = append(addresses, address)
	}

	logs := make(chan types.Log, logBuffer)
	sub, err := client.SubscribeFilterLogs(ctx, ethereum.FilterQuery{
		Addresses: addresses,
		Topics:    [][]common.Hash{s.decoder.Topics()},
	}, logs)
	if err != nil {
		return fmt.Errorf("%w: subscribe logs: %v", exception.ErrConnection, err)
	}
	defer sub.Unsubscribe()

	return watchLogs(ctx, sub, logs, s.idleTimeout, func(lg types.Log) error {
		if lg.Removed || !s.contracts[lg.Address] {
			return nil
		}
		update, err := s.decoder.Decode(lg)
		if err != nil {
			s.logger.Warn("drop log", zap.Error(err))
			if s.recorder != nil {
				s.recorder.DecodeFailed("limit_order")
			}
			return nil
		}
		return publish(ctx, pub, update, s.logger)
	})
}
