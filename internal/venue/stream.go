package venue

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"depthScope/internal/bus"
	"depthScope/internal/exception"
	"depthScope/internal/supervisor"
)

const (
	readLimitBytes = 4 << 20
	writeTimeout   = 5 * time.Second
)

// CodecConfig holds per-venue endpoints.
type CodecConfig struct {
	BinanceURL        string
	BinanceDepth      int
	OKXURL            string
	OKXInstrumentsURL string
	HTTPClient        *http.Client
}

// StreamConfig configures a Stream.
type StreamConfig struct {
	Symbols          []string
	IdleTimeout      time.Duration
	BootstrapRetries int
	BootstrapBackoff time.Duration
}

// DecodeRecorder counts dropped frames per venue.
type DecodeRecorder interface {
	DecodeFailed(venue string)
}

// Stream runs one WebSocket connection for a venue codec.
type Stream struct {
	codec    Codec
	cfg      StreamConfig
	dialer   *websocket.Dialer
	logger   *zap.Logger
	recorder DecodeRecorder
}

// NewStream builds a stream. recorder may be nil.
func NewStream(codec Codec, cfg StreamConfig, logger *zap.Logger, recorder DecodeRecorder) *Stream {
	if cfg.IdleTimeout <= 0 {
		cfg.IdleTimeout = 15 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Stream{
		codec: codec,
		cfg:   cfg,
		dialer: &websocket.Dialer{
			Proxy:            http.ProxyFromEnvironment,
			HandshakeTimeout: 10 * time.Second,
		},
		logger:   logger.With(zap.String("venue", codec.Name())),
		recorder: recorder,
	}
}

// Name returns the venue name.
func (s *Stream) Name() string { return s.codec.Name() }

// Run dials, subscribes and publishes snapshots until the connection fails,
// goes idle, or ctx is cancelled. The socket is closed before Run returns.
func (s *Stream) Run(ctx context.Context, pub bus.Publisher) error {
	if p, ok := s.codec.(Preparer); ok {
		err := supervisor.Retry(ctx, s.cfg.BootstrapRetries, s.cfg.BootstrapBackoff, func(ctx context.Context) error {
			return p.Prepare(ctx, s.cfg.Symbols)
		})
		if err != nil {
			return err
		}
	}

	sub, err := s.codec.SubscribeRequest(s.cfg.Symbols)
	if err != nil {
		return err
	}

	conn, _, err := s.dialer.DialContext(ctx, s.codec.Endpoint(), nil)
	if err != nil {
		return fmt.Errorf("%w: dial %s: %v", exception.ErrConnection, s.codec.Endpoint(), err)
	}
	defer conn.Close()
	conn.SetReadLimit(readLimitBytes)

	stop := closeOnDone(ctx, conn)
	defer stop()

	if err := conn.SetWriteDeadline(time.Now().Add(writeTimeout)); err != nil {
		return fmt.Errorf("%w: %v", exception.ErrConnection, err)
	}
	if err := conn.WriteJSON(sub); err != nil {
		return fmt.Errorf("%w: subscribe: %v", exception.ErrConnection, err)
	}
	s.logger.Info("subscribed", zap.Strings("symbols", s.cfg.Symbols))

	acked := false
	for {
		if err := conn.SetReadDeadline(time.Now().Add(s.cfg.IdleTimeout)); err != nil {
			return fmt.Errorf("%w: %v", exception.ErrConnection, err)
		}
		_, msg, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			var netErr net.Error
			if errors.As(err, &netErr) && netErr.Timeout() {
				return fmt.Errorf("%w: no message for %s", exception.ErrReceiveTimeout, s.cfg.IdleTimeout)
			}
			return fmt.Errorf("%w: read: %v", exception.ErrConnection, err)
		}

		if !acked {
			ok, err := s.codec.CheckAck(msg)
			if err != nil {
				return fmt.Errorf("%w: %v", exception.ErrConnection, err)
			}
			if ok {
				acked = true
				s.logger.Debug("subscription acknowledged")
				continue
			}
		}

		snapshots, err := s.codec.Decode(msg)
		if err != nil {
			if errors.Is(err, exception.ErrDecode) {
				s.logger.Warn("drop message", zap.Error(err))
				if s.recorder != nil {
					s.recorder.DecodeFailed(s.codec.Name())
				}
				continue
			}
			return err
		}

		for _, snap := range snapshots {
			if err := pub.Publish(ctx, snap); err != nil {
				if errors.Is(err, exception.ErrQueueFull) {
					s.logger.Warn("bus full, snapshot dropped", zap.String("symbol", snap.Symbol))
					continue
				}
				return err
			}
		}
	}
}

func closeOnDone(ctx context.Context, conn *websocket.Conn) func() {
	done := make(chan struct{})
	go func() {
		select {
		case <-ctx.Done():
			_ = conn.Close()
		case <-done:
		}
	}()
	return func() { close(done) }
}
