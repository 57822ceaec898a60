package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// Config holds configuration values loaded from flags, env, or config file.
type Config struct {
	Symbols []string
	Venues  []string

	BinanceURL        string
	BinanceDepth      int
	OKXURL            string
	OKXInstrumentsURL string
	VenueIdleTimeout  time.Duration

	RPCWS            string
	RPCHTTP          string
	ChainIdleTimeout time.Duration
	MulticallAddress string
	Tokens           []TokenConfig
	Pools            []PoolConfig
	LimitOrders      []string
	BlockHeaders     bool

	RestartMinInterval time.Duration
	RestartMaxInterval time.Duration
	BootstrapRetries   int
	BootstrapBackoff   time.Duration

	QueueSize      int
	PublishTimeout time.Duration

	AMMDepth          string
	AMMPricePrecision int32

	Out         string
	PGDSN       string
	MetricsAddr string
	LogLevel    string
}

// Load merges config file, environment variables, and flags into Config.
func Load(cfgFile string, flags *pflag.FlagSet) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("STREAMER")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if flags != nil {
		if err := v.BindPFlags(flags); err != nil {
			return Config{}, fmt.Errorf("bind flags: %w", err)
		}
	}

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	} else {
		v.SetConfigName("config")
		v.AddConfigPath(".")
		if err := v.ReadInConfig(); err != nil {
			if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
				return Config{}, fmt.Errorf("read config: %w", err)
			}
		}
	}

	cfg := Config{
		Symbols:            getStringSlice(v, "symbols"),
		Venues:             getStringSlice(v, "venues"),
		BinanceURL:         v.GetString("binance-url"),
		BinanceDepth:       v.GetInt("binance-depth"),
		OKXURL:             v.GetString("okx-url"),
		OKXInstrumentsURL:  v.GetString("okx-instruments-url"),
		VenueIdleTimeout:   v.GetDuration("venue-idle-timeout"),
		RPCWS:              v.GetString("rpc-ws"),
		RPCHTTP:            v.GetString("rpc-http"),
		ChainIdleTimeout:   v.GetDuration("chain-idle-timeout"),
		MulticallAddress:   v.GetString("multicall-address"),
		LimitOrders:        getStringSlice(v, "limit-orders"),
		BlockHeaders:       v.GetBool("block-headers"),
		RestartMinInterval: v.GetDuration("restart-min-interval"),
		RestartMaxInterval: v.GetDuration("restart-max-interval"),
		BootstrapRetries:   v.GetInt("bootstrap-retries"),
		BootstrapBackoff:   v.GetDuration("bootstrap-backoff"),
		QueueSize:          v.GetInt("queue-size"),
		PublishTimeout:     v.GetDuration("publish-timeout"),
		AMMDepth:           v.GetString("amm-depth"),
		AMMPricePrecision:  v.GetInt32("amm-price-precision"),
		Out:                v.GetString("out"),
		PGDSN:              v.GetString("pg-dsn"),
		MetricsAddr:        v.GetString("metrics-addr"),
		LogLevel:           v.GetString("log-level"),
	}

	if err := v.UnmarshalKey("tokens", &cfg.Tokens); err != nil {
		return Config{}, fmt.Errorf("decode tokens: %w", err)
	}
	if err := v.UnmarshalKey("pools", &cfg.Pools); err != nil {
		return Config{}, fmt.Errorf("decode pools: %w", err)
	}

	return cfg, nil
}

// HasVenue reports whether the named venue is enabled.
func (c Config) HasVenue(name string) bool {
	for _, venue := range c.Venues {
		if strings.EqualFold(venue, name) {
			return true
		}
	}
	return false
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("symbols", []string{"ETH/USDT"})
	v.SetDefault("venues", []string{"binance", "okx", "dex"})
	v.SetDefault("binance-url", "wss://fstream.binance.com/ws")
	v.SetDefault("binance-depth", 5)
	v.SetDefault("okx-url", "wss://ws.okx.com:8443/ws/v5/public")
	v.SetDefault("okx-instruments-url", "https://www.okx.com/api/v5/public/instruments?instType=SWAP")
	v.SetDefault("venue-idle-timeout", 15*time.Second)
	v.SetDefault("chain-idle-timeout", 10*time.Minute)
	v.SetDefault("multicall-address", "0xcA11bde05977b3631167028862bE2a173976CA11")
	v.SetDefault("block-headers", true)
	v.SetDefault("restart-min-interval", time.Second)
	v.SetDefault("restart-max-interval", 30*time.Second)
	v.SetDefault("bootstrap-retries", 5)
	v.SetDefault("bootstrap-backoff", 500*time.Millisecond)
	v.SetDefault("queue-size", 4096)
	v.SetDefault("publish-timeout", 5*time.Second)
	v.SetDefault("amm-depth", "1")
	v.SetDefault("amm-price-precision", 18)
	v.SetDefault("out", "-")
	v.SetDefault("log-level", "info")
	v.SetDefault("tokens", defaultTokens)
	v.SetDefault("pools", defaultPools)
}

func getStringSlice(v *viper.Viper, key string) []string {
	if !v.IsSet(key) {
		return nil
	}

	val := v.Get(key)
	switch typed := val.(type) {
	case []string:
		return cleanStrings(typed)
	case string:
		return splitAndClean(typed)
	case []interface{}:
		items := make([]string, 0, len(typed))
		for _, item := range typed {
			items = append(items, fmt.Sprintf("%v", item))
		}
		return cleanStrings(items)
	default:
		return nil
	}
}

func splitAndClean(input string) []string {
	if input == "" {
		return nil
	}
	parts := strings.Split(input, ",")
	return cleanStrings(parts)
}

func cleanStrings(items []string) []string {
	out := make([]string, 0, len(items))
	for _, item := range items {
		item = strings.TrimSpace(item)
		if item == "" {
			continue
		}
		out = append(out, item)
	}
	return out
}
