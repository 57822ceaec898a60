package dex

import (
	"context"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/core/types"
	"go.uber.org/zap"

	"depthScope/internal/bus"
	"depthScope/internal/exception"
	"depthScope/internal/model"
)

// NextBaseFee predicts the next block's base fee from the parent's gas usage:
// base * (1 + (used/limit*2 - 1)/8), computed exactly and truncated.
func NextBaseFee(baseFee *big.Int, gasUsed, gasLimit uint64) *big.Int {
	if baseFee == nil || gasLimit == 0 {
		return nil
	}
	limit := new(big.Int).SetUint64(gasLimit)
	num := new(big.Int).Lsh(new(big.Int).SetUint64(gasUsed), 1)
	num.Sub(num, limit)
	num.Mul(num, baseFee)
	den := new(big.Int).Lsh(limit, 3)
	delta := num.Quo(num, den)
	return delta.Add(delta, baseFee)
}

// BlockStream publishes new chain heads with the predicted next base fee.
type BlockStream struct {
	dial        DialFunc
	idleTimeout time.Duration
	logger      *zap.Logger
	recorder    DecodeRecorder
}

func NewBlockStream(dial DialFunc, idleTimeout time.Duration, logger *zap.Logger, recorder DecodeRecorder) *BlockStream {
	if idleTimeout <= 0 {
		idleTimeout = 10 * time.Minute
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &BlockStream{dial: dial, idleTimeout: idleTimeout, logger: logger.With(zap.String("stream", "blocks")), recorder: recorder}
}

func (s *BlockStream) Run(ctx context.Context, pub bus.Publisher) error {
	client, err := s.dial(ctx)
	if err != nil {
		return fmt.Errorf("%w: dial: %v", exception.ErrConnection, err)
	}
	defer client.Close()

	heads := make(chan *types.Header, 16)
	sub, err := client.SubscribeNewHead(ctx, heads)
	if err != nil {
		return fmt.Errorf("%w: subscribe heads: %v", exception.ErrConnection, err)
	}
	defer sub.Unsubscribe()

	timer := time.NewTimer(s.idleTimeout)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case err := <-sub.Err():
			return fmt.Errorf("%w: head subscription: %v", exception.ErrConnection, err)
		case <-timer.C:
			return fmt.Errorf("%w: no head for %s", exception.ErrReceiveTimeout, s.idleTimeout)
		case head := <-heads:
			resetTimer(timer, s.idleTimeout)
			ev, ok := s.convert(head)
			if !ok {
				continue
			}
			if err := publish(ctx, pub, ev, s.logger); err != nil {
				return err
			}
		}
	}
}

func (s *BlockStream) convert(head *types.Header) (model.BlockHeader, bool) {
	if head == nil || head.Number == nil || head.BaseFee == nil || head.GasLimit == 0 {
		s.logger.Warn("drop header without base fee data")
		if s.recorder != nil {
			s.recorder.DecodeFailed(model.ChainVenue)
		}
		return model.BlockHeader{}, false
	}
	return model.BlockHeader{
		Number:      head.Number.Uint64(),
		Hash:        head.Hash(),
		Time:        head.Time,
		GasUsed:     head.GasUsed,
		GasLimit:    head.GasLimit,
		BaseFee:     new(big.Int).Set(head.BaseFee),
		NextBaseFee: NextBaseFee(head.BaseFee, head.GasUsed, head.GasLimit),
	}, true
}
