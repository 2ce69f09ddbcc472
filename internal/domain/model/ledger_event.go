package model

import (
	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
)

type EventType string

const (
	EventTypeTrade         EventType = "trade"
	EventTypeTransfer      EventType = "transfer"
	EventTypeSpend         EventType = "spend"
	EventTypeReceive       EventType = "receive"
	EventTypeDeposit       EventType = "deposit"
	EventTypeWithdrawal    EventType = "withdrawal"
	EventTypeInformational EventType = "informational"
)

type EventSubtype string

const (
	EventSubtypeNone    EventSubtype = "none"
	EventSubtypeFee     EventSubtype = "fee"
	EventSubtypeBridge  EventSubtype = "bridge"
	EventSubtypeSpend   EventSubtype = "spend"
	EventSubtypeReceive EventSubtype = "receive"
)

// LedgerEvent is one accounting entry decoded from a transaction.
type LedgerEvent struct {
	EventIdentifier string          `db:"event_identifier"`
	TxHash          string          `db:"tx_hash"`
	SequenceIndex   int             `db:"sequence_index"`
	TimestampMS     int64           `db:"timestamp"`
	Location        Chain           `db:"location"`
	Type            EventType       `db:"type"`
	Subtype         EventSubtype    `db:"subtype"`
	Asset           Asset           `db:"asset"`
	Amount          decimal.Decimal `db:"amount"`
	LocationLabel   common.Address  `db:"location_label"`
	Counterparty    *common.Address `db:"address"`
	Notes           string          `db:"notes"`
}

// EventIdentifier derives the event group identifier of a transaction.
func EventIdentifier(txHash string) string {
	return "zkl" + txHash
}
