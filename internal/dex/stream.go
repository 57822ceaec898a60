package dex

import (
	"context"
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/core/types"

	"depthScope/internal/exception"
)

const logBuffer = 256

// watchLogs feeds subscribed logs to handle until the subscription fails,
// nothing arrives within idle, handle fails, or ctx is done.
func watchLogs(ctx context.Context, sub ethereum.Subscription, logs <-chan types.Log, idle time.Duration, handle func(types.Log) error) error {
	timer := time.NewTimer(idle)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case err := <-sub.Err():
			return fmt.Errorf("%w: log subscription: %v", exception.ErrConnection, err)
		case <-timer.C:
			return fmt.Errorf("%w: no log for %s", exception.ErrReceiveTimeout, idle)
		case lg := <-logs:
			resetTimer(timer, idle)
			if err := handle(lg); err != nil {
				return err
			}
		}
	}
}

func resetTimer(timer *time.Timer, d time.Duration) {
	if !timer.Stop() {
		select {
		case <-timer.C:
		default:
		}
	}
	timer.Reset(d)
}
