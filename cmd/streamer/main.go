package main

import (
	"os"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func main() {
	root := &cobra.Command{
		Use:          "streamer",
		Short:        "Multi-venue order book streamer",
		SilenceUsage: true,
	}

	flags := root.PersistentFlags()
	flags.String("config", "", "config file path")
	flags.StringSlice("symbols", nil, "canonical symbols, e.g. ETH/USDT (comma-separated)")
	flags.StringSlice("venues", nil, "enabled venues: binance, okx, dex (comma-separated)")
	flags.String("binance-url", "", "Binance USDM WebSocket URL")
	flags.String("okx-url", "", "OKX public WebSocket URL")
	flags.String("okx-instruments-url", "", "OKX swap instruments REST URL")
	flags.Duration("venue-idle-timeout", 15*time.Second, "restart a venue stream after this long without a frame")
	flags.String("rpc-ws", "", "Ethereum WebSocket RPC URL")
	flags.String("rpc-http", "", "optional Ethereum HTTP RPC URL for bootstrap reads")
	flags.Duration("chain-idle-timeout", 10*time.Minute, "restart a chain stream after this long without a message")
	flags.StringSlice("limit-orders", nil, "limit-order contract addresses (comma-separated)")
	flags.Bool("block-headers", true, "stream new heads with base-fee prediction")
	flags.Duration("restart-min-interval", time.Second, "minimum wait before restarting a failed stream")
	flags.Duration("restart-max-interval", 30*time.Second, "maximum wait before restarting a failed stream")
	flags.Int("bootstrap-retries", 5, "bootstrap retry attempts")
	flags.Duration("bootstrap-backoff", 500*time.Millisecond, "initial bootstrap retry backoff")
	flags.Int("queue-size", 4096, "event bus capacity")
	flags.Duration("publish-timeout", 5*time.Second, "drop an event after blocking this long on a full bus")
	flags.String("out", "-", "output JSONL path, - for stdout")
	flags.String("log-level", "info", "log level (debug, info, warn, error)")

	runCmd := &cobra.Command{
		Use:   "run",
		Short: "Stream all venues and publish aggregated books",
		RunE:  runStreamer,
	}
	runCmd.Flags().String("amm-depth", "1", "synthetic AMM level size in base units")
	runCmd.Flags().Int32("amm-price-precision", 18, "decimal places of synthetic AMM prices")
	runCmd.Flags().String("pg-dsn", "", "Postgres DSN for the latest-book table")
	runCmd.Flags().String("metrics-addr", "", "serve Prometheus metrics on this address")
	root.AddCommand(runCmd)

	cexCmd := &cobra.Command{
		Use:   "cex",
		Short: "Stream exchange order books and print normalized events",
		RunE:  runCEX,
	}
	root.AddCommand(cexCmd)

	dexCmd := &cobra.Command{
		Use:   "dex",
		Short: "Stream chain events and print normalized events",
		RunE:  runDEX,
	}
	root.AddCommand(dexCmd)

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

func newLogger(level string) (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevel()
	if err := cfg.Level.UnmarshalText([]byte(level)); err != nil {
		return nil, err
	}

	cfg.EncoderConfig.TimeKey = "ts"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	return cfg.Build()
}
