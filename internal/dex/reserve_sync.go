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
	"depthScope/internal/model"
	"depthScope/internal/supervisor"
)

// ReserveSyncConfig configures a ReserveSync.
type ReserveSyncConfig struct {
	Multicall        common.Address
	IdleTimeout      time.Duration
	BootstrapRetries int
	BootstrapBackoff time.Duration
	// DialReader optionally opens a separate connection for bootstrap calls.
	// The bootstrap block is still read from the subscribing connection.
	DialReader func(ctx context.Context) (Reader, func(), error)
}

// ReserveSync tracks constant-product pool reserves from Sync logs.
type ReserveSync struct {
	cfg      ReserveSyncConfig
	dial     DialFunc
	pools    []model.PoolRef
	decoder  *SyncDecoder
	logger   *zap.Logger
	recorder DecodeRecorder
}

func NewReserveSync(cfg ReserveSyncConfig, dial DialFunc, pools []model.PoolRef, logger *zap.Logger, recorder DecodeRecorder) (*ReserveSync, error) {
	if len(pools) == 0 {
		return nil, errors.New("no pools configured")
	}
	decoder, err := NewSyncDecoder()
	if err != nil {
		return nil, err
	}
	if cfg.IdleTimeout <= 0 {
		cfg.IdleTimeout = 10 * time.Minute
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ReserveSync{
		cfg:      cfg,
		dial:     dial,
		pools:    pools,
		decoder:  decoder,
		logger:   logger.With(zap.String("stream", "reserves")),
		recorder: recorder,
	}, nil
}

// Run subscribes to Sync logs, bootstraps every pool at a pinned block and
// then applies logs newer than that block. Each run starts from a fresh
// reserve book and connection.
func (s *ReserveSync) Run(ctx context.Context, pub bus.Publisher) error {
	client, err := s.dial(ctx)
	if err != nil {
		return fmt.Errorf("%w: dial: %v", exception.ErrConnection, err)
	}
	defer client.Close()

	book := NewReserveBook(s.pools)

	logs := make(chan types.Log, logBuffer)
	sub, err := client.SubscribeFilterLogs(ctx, ethereum.FilterQuery{
		Addresses: book.Addresses(),
		Topics:    [][]common.Hash{s.decoder.Topics()},
	}, logs)
	if err != nil {
		return fmt.Errorf("%w: subscribe logs: %v", exception.ErrConnection, err)
	}
	defer sub.Unsubscribe()

	reader := Reader(client)
	if s.cfg.DialReader != nil {
		r, closeReader, err := s.cfg.DialReader(ctx)
		if err != nil {
			return fmt.Errorf("%w: dial reader: %v", exception.ErrBootstrap, err)
		}
		defer closeReader()
		reader = headPinnedReader{Reader: r, head: client}
	}

	var pinned uint64
	err = supervisor.Retry(ctx, s.cfg.BootstrapRetries, s.cfg.BootstrapBackoff, func(ctx context.Context) error {
		block, err := Bootstrap(ctx, reader, s.cfg.Multicall, book)
		if err != nil {
			s.logger.Warn("bootstrap failed", zap.Error(err))
			return err
		}
		pinned = block
		return nil
	})
	if err != nil {
		if !errors.Is(err, exception.ErrBootstrap) && ctx.Err() == nil {
			err = fmt.Errorf("%w: %v", exception.ErrBootstrap, err)
		}
		return err
	}
	s.logger.Info("reserves bootstrapped", zap.Uint64("block", pinned), zap.Int("pools", len(s.pools)))

	for _, update := range book.Updates() {
		if err := publish(ctx, pub, update, s.logger); err != nil {
			return err
		}
	}

	return watchLogs(ctx, sub, logs, s.cfg.IdleTimeout, func(lg types.Log) error {
		return s.handle(ctx, pub, book, pinned, lg)
	})
}

func (s *ReserveSync) handle(ctx context.Context, pub bus.Publisher, book *ReserveBook, pinned uint64, lg types.Log) error {
	if lg.Removed || !book.Has(lg.Address) {
		return nil
	}
	// The bootstrap read already reflects every log up to the pinned block.
	if lg.BlockNumber <= pinned {
		return nil
	}
	reserves, err := s.decoder.Decode(lg)
	if err != nil {
		s.logger.Warn("drop log", zap.Error(err))
		if s.recorder != nil {
			s.recorder.DecodeFailed("sync")
		}
		return nil
	}
	update, _ := book.Set(lg.Address, reserves, lg.BlockNumber)
	return publish(ctx, pub, update, s.logger)
}

// headPinnedReader takes the block number from head and runs calls on Reader,
// so a lagging call endpoint cannot pin a block older than the subscription.
type headPinnedReader struct {
	Reader
	head Reader
}

func (r headPinnedReader) BlockNumber(ctx context.Context) (uint64, error) {
	return r.head.BlockNumber(ctx)
}
