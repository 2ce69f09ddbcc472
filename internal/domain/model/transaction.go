package model

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type TxType string

const (
	TxTypeDeposit      TxType = "Deposit"
	TxTypeWithdraw     TxType = "Withdraw"
	TxTypeTransfer     TxType = "Transfer"
	TxTypeChangePubKey TxType = "ChangePubKey"
	TxTypeForcedExit   TxType = "ForcedExit"
	TxTypeFullExit     TxType = "FullExit"
	TxTypeSwap         TxType = "Swap"
)

var txTypes = map[string]TxType{
	string(TxTypeDeposit):      TxTypeDeposit,
	string(TxTypeWithdraw):     TxTypeWithdraw,
	string(TxTypeTransfer):     TxTypeTransfer,
	string(TxTypeChangePubKey): TxTypeChangePubKey,
	string(TxTypeForcedExit):   TxTypeForcedExit,
	string(TxTypeFullExit):     TxTypeFullExit,
	string(TxTypeSwap):         TxTypeSwap,
}

// ParseTxType maps the API's op.type onto a TxType. NFT operations are
// deliberately absent and fail to parse.
func ParseTxType(s string) (TxType, error) {
	t, ok := txTypes[s]
	if !ok {
		return "", fmt.Errorf("unknown zksync lite transaction type %q", s)
	}
	return t, nil
}

func (t TxType) String() string {
	return string(t)
}

// Transaction is a normalized zkSync Lite transaction. For Swap, Asset/Amount
// hold the fee token and fee; the traded legs live in Swap.
type Transaction struct {
	ID          uuid.UUID        `db:"id"`
	TxHash      string           `db:"tx_hash"`
	Type        TxType           `db:"type"`
	Timestamp   int64            `db:"timestamp"` // unix seconds
	BlockNumber int64            `db:"block_number"`
	From        *common.Address  `db:"from_address"`
	To          *common.Address  `db:"to_address"`
	Asset       Asset            `db:"asset"`
	Amount      decimal.Decimal  `db:"amount"`
	Fee         *decimal.Decimal `db:"fee"`
	Swap        *SwapLegs        `db:"-"`
	IsDecoded   bool             `db:"is_decoded"`
}

type SwapLeg struct {
	Asset  Asset
	Amount decimal.Decimal
}

// SwapLegs is persisted in a child row keyed by the parent's ID.
type SwapLegs struct {
	Sell SwapLeg
	Buy  SwapLeg
}

// TransactionRef points at a stored transaction for pagination cursors.
type TransactionRef struct {
	TxHash    string
	Timestamp int64
}

type TransactionFilter struct {
	OnlyUndecoded bool
	Address       *common.Address
	TxHash        string
}
