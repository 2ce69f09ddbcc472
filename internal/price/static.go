package price

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/emperorhan/zklite-indexer/internal/domain/model"
	"github.com/shopspring/decimal"
)

// ErrNoPrice is returned for assets without a configured price.
var ErrNoPrice = errors.New("no usd price for asset")

// StaticOracle serves fixed USD prices keyed by asset symbol or identifier.
type StaticOracle struct {
	prices map[string]decimal.Decimal
}

func NewStaticOracle(prices map[string]decimal.Decimal) *StaticOracle {
	normalized := make(map[string]decimal.Decimal, len(prices))
	for k, v := range prices {
		normalized[strings.ToUpper(strings.TrimSpace(k))] = v
	}
	return &StaticOracle{prices: normalized}
}

// ParseStatic builds an oracle from "SYMBOL=price" pairs separated by
// commas, for example "ETH=2500,USDC=1".
func ParseStatic(spec string) (*StaticOracle, error) {
	prices := make(map[string]decimal.Decimal)
	for _, pair := range strings.Split(spec, ",") {
		pair = strings.TrimSpace(pair)
		if pair == "" {
			continue
		}
		key, value, ok := strings.Cut(pair, "=")
		if !ok || strings.TrimSpace(key) == "" {
			return nil, fmt.Errorf("invalid price entry %q", pair)
		}
		p, err := decimal.NewFromString(strings.TrimSpace(value))
		if err != nil {
			return nil, fmt.Errorf("invalid price for %s: %w", key, err)
		}
		if p.IsNegative() {
			return nil, fmt.Errorf("negative price for %s", key)
		}
		prices[key] = p
	}
	return NewStaticOracle(prices), nil
}

func (o *StaticOracle) USDPrice(_ context.Context, asset model.Asset) (decimal.Decimal, error) {
	for _, key := range []string{asset.Identifier, asset.Symbol} {
		if p, ok := o.prices[strings.ToUpper(key)]; ok && key != "" {
			return p, nil
		}
	}
	return decimal.Zero, fmt.Errorf("%s: %w", asset, ErrNoPrice)
}
