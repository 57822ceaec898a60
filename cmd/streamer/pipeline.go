package main

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"depthScope/internal/bus"
	"depthScope/internal/chain"
	"depthScope/internal/config"
	"depthScope/internal/dex"
	"depthScope/internal/metrics"
	"depthScope/internal/model"
	"depthScope/internal/supervisor"
	"depthScope/internal/venue"
)

// pipeline builds supervised stream units that publish into one queue.
type pipeline struct {
	cfg     config.Config
	logger  *zap.Logger
	metrics *metrics.Metrics
	queue   *bus.Queue
}

func loadConfig(cmd *cobra.Command) (config.Config, *zap.Logger, error) {
	cfgFile, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(cfgFile, cmd.Flags())
	if err != nil {
		return config.Config{}, nil, err
	}
	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		return config.Config{}, nil, err
	}
	if len(cfg.Symbols) == 0 {
		return config.Config{}, nil, fmt.Errorf("at least one symbol is required")
	}
	return cfg, logger, nil
}

func newPipeline(cfg config.Config, logger *zap.Logger, m *metrics.Metrics) *pipeline {
	return &pipeline{
		cfg:     cfg,
		logger:  logger,
		metrics: m,
		queue: bus.NewQueue(cfg.QueueSize,
			bus.WithPublishTimeout(cfg.PublishTimeout),
			bus.WithObserver(m),
		),
	}
}

func (p *pipeline) supervise(tag string, downVenues []string, run func(ctx context.Context) error) *supervisor.Supervisor {
	return supervisor.New(supervisor.Config{
		Tag:         tag,
		MinInterval: p.cfg.RestartMinInterval,
		MaxInterval: p.cfg.RestartMaxInterval,
		Recorder:    p.metrics,
		OnFailure: func(ctx context.Context, err error) {
			for _, name := range downVenues {
				ev := model.VenueDown{Venue: name, Reason: err.Error(), Timestamp: time.Now().UnixMilli()}
				if perr := p.queue.Publish(ctx, ev); perr != nil {
					p.logger.Warn("publish venue down", zap.String("venue", name), zap.Error(perr))
				}
			}
		},
	}, supervisor.UnitFunc(run), p.logger)
}

// venueUnits returns one supervisor per enabled exchange venue.
func (p *pipeline) venueUnits() ([]*supervisor.Supervisor, error) {
	codecCfg := venue.CodecConfig{
		BinanceURL:        p.cfg.BinanceURL,
		BinanceDepth:      p.cfg.BinanceDepth,
		OKXURL:            p.cfg.OKXURL,
		OKXInstrumentsURL: p.cfg.OKXInstrumentsURL,
	}
	streamCfg := venue.StreamConfig{
		Symbols:          p.cfg.Symbols,
		IdleTimeout:      p.cfg.VenueIdleTimeout,
		BootstrapRetries: p.cfg.BootstrapRetries,
		BootstrapBackoff: p.cfg.BootstrapBackoff,
	}

	var units []*supervisor.Supervisor
	for _, name := range p.cfg.Venues {
		name = strings.ToLower(name)
		if name == "dex" {
			continue
		}
		codec, err := venue.New(name, codecCfg)
		if err != nil {
			return nil, err
		}
		stream := venue.NewStream(codec, streamCfg, p.logger, p.metrics)
		units = append(units, p.supervise(name, []string{name}, func(ctx context.Context) error {
			return stream.Run(ctx, p.queue)
		}))
	}
	return units, nil
}

// chainUnits returns the reserve, block header and limit-order supervisors.
func (p *pipeline) chainUnits() ([]*supervisor.Supervisor, error) {
	if !p.cfg.HasVenue("dex") {
		return nil, nil
	}
	if p.cfg.RPCWS == "" {
		return nil, fmt.Errorf("rpc-ws is required for the dex venue")
	}
	if !common.IsHexAddress(p.cfg.MulticallAddress) {
		return nil, fmt.Errorf("invalid multicall address: %s", p.cfg.MulticallAddress)
	}

	dial := func(ctx context.Context) (dex.Client, error) {
		client, err := chain.NewClient(ctx, p.cfg.RPCWS)
		if err != nil {
			return nil, err
		}
		return client, nil
	}

	var units []*supervisor.Supervisor

	pools, err := p.cfg.ResolvePools()
	if err != nil {
		return nil, err
	}
	if len(pools) > 0 {
		syncCfg := dex.ReserveSyncConfig{
			Multicall:        common.HexToAddress(p.cfg.MulticallAddress),
			IdleTimeout:      p.cfg.ChainIdleTimeout,
			BootstrapRetries: p.cfg.BootstrapRetries,
			BootstrapBackoff: p.cfg.BootstrapBackoff,
		}
		if p.cfg.RPCHTTP != "" {
			syncCfg.DialReader = func(ctx context.Context) (dex.Reader, func(), error) {
				client, err := chain.NewClient(ctx, p.cfg.RPCHTTP)
				if err != nil {
					return nil, nil, err
				}
				return client, client.Close, nil
			}
		}
		reserves, err := dex.NewReserveSync(syncCfg, dial, pools, p.logger, p.metrics)
		if err != nil {
			return nil, err
		}
		units = append(units, p.supervise("reserves", poolVenues(pools), func(ctx context.Context) error {
			return reserves.Run(ctx, p.queue)
		}))
	}

	if p.cfg.BlockHeaders {
		blocks := dex.NewBlockStream(dial, p.cfg.ChainIdleTimeout, p.logger, p.metrics)
		units = append(units, p.supervise("blocks", []string{model.ChainVenue}, func(ctx context.Context) error {
			return blocks.Run(ctx, p.queue)
		}))
	}

	contracts, err := p.cfg.LimitOrderContracts()
	if err != nil {
		return nil, err
	}
	if len(contracts) > 0 {
		orders, err := dex.NewLimitOrderStream(dial, contracts, p.cfg.ChainIdleTimeout, p.logger, p.metrics)
		if err != nil {
			return nil, err
		}
		units = append(units, p.supervise("limit_orders", nil, func(ctx context.Context) error {
			return orders.Run(ctx, p.queue)
		}))
	}

	return units, nil
}

func poolVenues(pools []model.PoolRef) []string {
	seen := make(map[string]bool, len(pools))
	var out []string
	for _, pool := range pools {
		if name := pool.Venue(); !seen[name] {
			seen[name] = true
			out = append(out, name)
		}
	}
	return out
}

// start launches every supervisor. Supervisors only return once ctx is done,
// so the returned wait blocks until every stream has released its connection.
func start(ctx context.Context, units []*supervisor.Supervisor, logger *zap.Logger) func() error {
	var g errgroup.Group
	for _, unit := range units {
		unit := unit
		g.Go(func() error {
			err := unit.Run(ctx)
			logger.Info("stream stopped", zap.String("tag", unit.Tag()))
			return err
		})
	}
	return g.Wait
}
