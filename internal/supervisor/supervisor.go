package supervisor

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
)

// Unit is a restartable piece of work, typically one stream connection.
// Run must release every resource it acquired before returning.
type Unit interface {
	Run(ctx context.Context) error
}

// UnitFunc adapts a function to Unit.
type UnitFunc func(ctx context.Context) error

func (f UnitFunc) Run(ctx context.Context) error { return f(ctx) }

// RestartRecorder counts restarts per tag.
type RestartRecorder interface {
	Restarted(tag string)
}

// Config configures a Supervisor.
type Config struct {
	Tag         string
	MinInterval time.Duration
	MaxInterval time.Duration
	// OnFailure is invoked after every failed run, before the back-off wait.
	OnFailure func(ctx context.Context, err error)
	Recorder  RestartRecorder
}

// Supervisor runs a Unit forever, restarting it with doubling back-off.
// Supervisors share no state; one unit's failures never delay another.
type Supervisor struct {
	cfg    Config
	unit   Unit
	logger *zap.Logger
}

// New builds a supervisor for unit.
func New(cfg Config, unit Unit, logger *zap.Logger) *Supervisor {
	if cfg.MinInterval <= 0 {
		cfg.MinInterval = time.Second
	}
	if cfg.MaxInterval < cfg.MinInterval {
		cfg.MaxInterval = cfg.MinInterval
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Supervisor{cfg: cfg, unit: unit, logger: logger.With(zap.String("tag", cfg.Tag))}
}

// Tag returns the supervised unit's tag.
func (s *Supervisor) Tag() string { return s.cfg.Tag }

// Run blocks until ctx is cancelled and returns ctx.Err().
func (s *Supervisor) Run(ctx context.Context) error {
	delay := s.cfg.MinInterval
	for attempt := 1; ; attempt++ {
		started := time.Now()
		s.logger.Info("stream start", zap.Int("attempt", attempt))

		err := s.unit.Run(ctx)
		if ctx.Err() != nil {
			s.logger.Info("stream stopped", zap.Error(ctx.Err()))
			return ctx.Err()
		}
		if err == nil {
			err = errors.New("stream ended")
		}

		// A run that stayed up longer than the ceiling starts a fresh back-off.
		if time.Since(started) > s.cfg.MaxInterval {
			delay = s.cfg.MinInterval
		}

		if s.cfg.Recorder != nil {
			s.cfg.Recorder.Restarted(s.cfg.Tag)
		}
		s.logger.Warn("stream failed, restarting",
			zap.Error(err),
			zap.Duration("uptime", time.Since(started)),
			zap.Duration("delay", delay),
		)
		if s.cfg.OnFailure != nil {
			s.cfg.OnFailure(ctx, err)
		}

		if err := sleep(ctx, delay); err != nil {
			return err
		}
		delay *= 2
		if delay > s.cfg.MaxInterval {
			delay = s.cfg.MaxInterval
		}
	}
}

// Retry calls fn until it succeeds, doubling the delay after each failure.
// The last error is returned once maxRetries extra attempts are exhausted.
func Retry(ctx context.Context, maxRetries int, baseDelay time.Duration, fn func(context.Context) error) error {
	if maxRetries < 0 {
		maxRetries = 0
	}
	if baseDelay <= 0 {
		baseDelay = 100 * time.Millisecond
	}

	delay := baseDelay
	for attempt := 0; ; attempt++ {
		err := fn(ctx)
		if err == nil {
			return nil
		}
		if attempt >= maxRetries {
			return fmt.Errorf("after %d attempts: %w", attempt+1, err)
		}
		if err := sleep(ctx, delay); err != nil {
			return err
		}
		delay *= 2
	}
}

func sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	select {
	case <-ctx.Done():
		timer.Stop()
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
