package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"depthScope/internal/metrics"
	"depthScope/internal/model"
	"depthScope/internal/storage"
	"depthScope/internal/supervisor"
)

func runCEX(cmd *cobra.Command, _ []string) error {
	return runEvents(cmd, func(p *pipeline) ([]*supervisor.Supervisor, error) {
		return p.venueUnits()
	})
}

func runDEX(cmd *cobra.Command, _ []string) error {
	return runEvents(cmd, func(p *pipeline) ([]*supervisor.Supervisor, error) {
		return p.chainUnits()
	})
}

// runEvents streams a subset of sources and writes every normalized event as
// an envelope, without aggregation.
func runEvents(cmd *cobra.Command, build func(p *pipeline) ([]*supervisor.Supervisor, error)) error {
	cfg, logger, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	sink, err := storage.NewJSONLSink(cfg.Out)
	if err != nil {
		return err
	}
	defer sink.Close()

	p := newPipeline(cfg, logger, metrics.NewMetrics(prometheus.NewRegistry()))
	units, err := build(p)
	if err != nil {
		return err
	}
	if len(units) == 0 {
		return fmt.Errorf("no streams enabled for %s", cmd.Name())
	}

	logger.Info("event stream start", zap.String("mode", cmd.Name()), zap.Int("units", len(units)))

	wait := start(ctx, units, logger)
	p.queue.Run(ctx, func(ev model.Event) {
		if err := sink.PutEvent(ctx, ev); err != nil {
			logger.Warn("write event", zap.Error(err))
		}
	})
	_ = wait()
	p.queue.Close()
	return nil
}
