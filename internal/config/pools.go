package config

import (
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/common"

	"depthScope/internal/model"
)

// TokenConfig describes an ERC20 token. Decimals of zero are resolved on chain.
type TokenConfig struct {
	Symbol   string `mapstructure:"symbol"`
	Address  string `mapstructure:"address"`
	Decimals uint8  `mapstructure:"decimals"`
}

// PoolConfig describes a constant-product pool. Token0 and Token1 name
// entries of Tokens in pool order; Symbol is the canonical BASE/QUOTE pair.
type PoolConfig struct {
	Exchange string `mapstructure:"exchange"`
	Version  int    `mapstructure:"version"`
	Symbol   string `mapstructure:"symbol"`
	Address  string `mapstructure:"address"`
	Fee      uint32 `mapstructure:"fee"`
	Token0   string `mapstructure:"token0"`
	Token1   string `mapstructure:"token1"`
}

var defaultTokens = []map[string]interface{}{
	{"symbol": "ETH", "address": "0xC02aaA39b223FE8D0A0e5C4F27eAD9083C756Cc2", "decimals": 18},
	{"symbol": "USDT", "address": "0xdAC17F958D2ee523a2206206994597C13D831ec7", "decimals": 6},
}

var defaultPools = []map[string]interface{}{
	{
		"exchange": "uniswap", "version": 2, "symbol": "ETH/USDT", "fee": 3000,
		"address": "0x0d4a11d5EEaaC28EC3F61d100daF4d40471f1852", "token0": "ETH", "token1": "USDT",
	},
	{
		"exchange": "sushiswap", "version": 2, "symbol": "ETH/USDT", "fee": 3000,
		"address": "0x06da0fd433C1A5d7a4faa01111c044910A184553", "token0": "ETH", "token1": "USDT",
	},
}

// ResolvePools validates the pool and token sections and joins them into pool
// references. Pools whose symbol is not in symbols are skipped.
func (c Config) ResolvePools() ([]model.PoolRef, error) {
	tokens := make(map[string]model.TokenMeta, len(c.Tokens))
	for _, token := range c.Tokens {
		symbol := strings.ToUpper(strings.TrimSpace(token.Symbol))
		if symbol == "" {
			return nil, fmt.Errorf("token without symbol: %s", token.Address)
		}
		if !common.IsHexAddress(token.Address) {
			return nil, fmt.Errorf("invalid token address for %s: %s", symbol, token.Address)
		}
		tokens[symbol] = model.TokenMeta{
			Symbol:   symbol,
			Address:  common.HexToAddress(token.Address),
			Decimals: token.Decimals,
		}
	}

	wanted := make(map[string]bool, len(c.Symbols))
	for _, symbol := range c.Symbols {
		wanted[strings.ToUpper(symbol)] = true
	}

	seen := make(map[common.Address]bool, len(c.Pools))
	pools := make([]model.PoolRef, 0, len(c.Pools))
	for _, pool := range c.Pools {
		symbol := strings.ToUpper(strings.TrimSpace(pool.Symbol))
		if len(wanted) > 0 && !wanted[symbol] {
			continue
		}
		if !common.IsHexAddress(pool.Address) {
			return nil, fmt.Errorf("invalid pool address: %s", pool.Address)
		}
		address := common.HexToAddress(pool.Address)
		if seen[address] {
			return nil, fmt.Errorf("duplicate pool address: %s", address.Hex())
		}
		seen[address] = true

		token0, ok := tokens[strings.ToUpper(pool.Token0)]
		if !ok {
			return nil, fmt.Errorf("pool %s: unknown token0 %s", address.Hex(), pool.Token0)
		}
		token1, ok := tokens[strings.ToUpper(pool.Token1)]
		if !ok {
			return nil, fmt.Errorf("pool %s: unknown token1 %s", address.Hex(), pool.Token1)
		}
		base, quote, ok := SplitSymbol(symbol)
		if !ok {
			return nil, fmt.Errorf("pool %s: invalid symbol %q", address.Hex(), pool.Symbol)
		}
		ref := model.PoolRef{
			Exchange: strings.ToLower(pool.Exchange),
			Version:  pool.Version,
			Symbol:   symbol,
			Address:  address,
			Fee:      pool.Fee,
			Tokens:   [2]model.TokenMeta{token0, token1},
		}
		if _, ok := ref.TokenIndex(base); !ok {
			return nil, fmt.Errorf("pool %s: %s not in pool", address.Hex(), base)
		}
		if _, ok := ref.TokenIndex(quote); !ok {
			return nil, fmt.Errorf("pool %s: %s not in pool", address.Hex(), quote)
		}
		pools = append(pools, ref)
	}
	return pools, nil
}

// LimitOrderContracts parses the limit-order contract addresses.
func (c Config) LimitOrderContracts() ([]common.Address, error) {
	addresses := make([]common.Address, 0, len(c.LimitOrders))
	for _, input := range c.LimitOrders {
		if !common.IsHexAddress(input) {
			return nil, fmt.Errorf("invalid address: %s", input)
		}
		addresses = append(addresses, common.HexToAddress(input))
	}
	return addresses, nil
}

// SplitSymbol splits a canonical BASE/QUOTE symbol.
func SplitSymbol(symbol string) (base, quote string, ok bool) {
	base, quote, ok = strings.Cut(strings.ToUpper(strings.TrimSpace(symbol)), "/")
	if !ok || base == "" || quote == "" {
		return "", "", false
	}
	return base, quote, true
}
