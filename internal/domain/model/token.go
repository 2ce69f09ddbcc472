package model

import (
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
)

// NativeAssetIdentifier identifies ETH, the asset behind zkSync Lite token id 0.
const NativeAssetIdentifier = "ETH"

// Asset is the resolved identity of a token id or symbol.
type Asset struct {
	Identifier string          `db:"identifier"`
	Address    *common.Address `db:"address"` // nil for the native asset
	Symbol     string          `db:"symbol"`
	Name       string          `db:"name"`
	Decimals   int             `db:"decimals"`
}

func NativeAsset() Asset {
	return Asset{
		Identifier: NativeAssetIdentifier,
		Symbol:     "ETH",
		Name:       "Ether",
		Decimals:   18,
	}
}

// ERC20Identifier builds the identifier of an Ethereum mainnet token.
func ERC20Identifier(address common.Address) string {
	return "eip155:1/erc20:" + address.Hex()
}

func (a Asset) IsNative() bool {
	return a.Identifier == NativeAssetIdentifier
}

// NormalizeAmount scales a raw integer amount by the asset's decimals.
func (a Asset) NormalizeAmount(raw *big.Int) decimal.Decimal {
	if raw == nil {
		return decimal.Zero
	}
	return decimal.NewFromBigInt(raw, -int32(a.Decimals))
}

func (a Asset) String() string {
	if a.Symbol != "" {
		return a.Symbol
	}
	return a.Identifier
}

// ParseRawAmount parses a base-10 integer string as returned by the API.
func ParseRawAmount(s string) (*big.Int, bool) {
	raw, ok := new(big.Int).SetString(strings.TrimSpace(s), 10)
	return raw, ok
}
