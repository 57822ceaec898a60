package model

import "github.com/ethereum/go-ethereum/common"

// TokenMeta captures the ERC20 metadata needed for normalization.
type TokenMeta struct {
	Symbol   string         `json:"symbol"`
	Address  common.Address `json:"address"`
	Decimals uint8          `json:"decimals"`
}
