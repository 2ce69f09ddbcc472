package model

import "github.com/shopspring/decimal"

type Balance struct {
	Asset    Asset
	Amount   decimal.Decimal
	USDValue decimal.Decimal
}
