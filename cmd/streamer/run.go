package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"depthScope/internal/aggregate"
	"depthScope/internal/metrics"
	"depthScope/internal/storage"
	"depthScope/internal/storage/postgres"
)

func runStreamer(cmd *cobra.Command, _ []string) error {
	cfg, logger, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	defer logger.Sync()

	depth, err := decimal.NewFromString(cfg.AMMDepth)
	if err != nil || depth.Sign() <= 0 {
		return fmt.Errorf("invalid amm-depth: %s", cfg.AMMDepth)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.NewMetrics(registry)

	var sinks []storage.BookSink
	if cfg.Out != "" {
		jsonl, err := storage.NewJSONLSink(cfg.Out)
		if err != nil {
			return err
		}
		defer jsonl.Close()
		sinks = append(sinks, jsonl)
	}
	if cfg.PGDSN != "" {
		store, err := postgres.NewStore(ctx, cfg.PGDSN)
		if err != nil {
			return fmt.Errorf("connect postgres: %w", err)
		}
		defer store.Close()
		if err := store.EnsureSchema(ctx); err != nil {
			return err
		}
		sinks = append(sinks, store)
	}

	p := newPipeline(cfg, logger, m)
	venueUnits, err := p.venueUnits()
	if err != nil {
		return err
	}
	chainUnits, err := p.chainUnits()
	if err != nil {
		return err
	}
	units := append(venueUnits, chainUnits...)
	if len(units) == 0 {
		return fmt.Errorf("no venues enabled")
	}

	if cfg.MetricsAddr != "" {
		serveMetrics(ctx, cfg.MetricsAddr, registry, logger)
	}

	agg := aggregate.NewAggregator(aggregate.Config{
		AMMDepth:       depth,
		PricePrecision: cfg.AMMPricePrecision,
	}, sinks, logger, m)

	logger.Info("streamer start",
		zap.Strings("symbols", cfg.Symbols),
		zap.Strings("venues", cfg.Venues),
		zap.Int("units", len(units)),
		zap.Int("queue_size", cfg.QueueSize),
		zap.Int("sinks", len(sinks)),
	)

	wait := start(ctx, units, logger)
	err = agg.Run(ctx, p.queue)
	_ = wait()
	p.queue.Close()

	if errors.Is(err, context.Canceled) {
		logger.Info("streamer stopped")
		return nil
	}
	return err
}

func serveMetrics(ctx context.Context, addr string, registry *prometheus.Registry, logger *zap.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
	server := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("metrics server", zap.Error(err))
		}
	}()
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = server.Shutdown(shutdownCtx)
	}()
	logger.Info("metrics listening", zap.String("addr", addr))
}
