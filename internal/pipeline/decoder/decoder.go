package decoder

import (
	"fmt"
	"log/slog"

	"github.com/emperorhan/zklite-indexer/internal/domain/model"
	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
)

// AddressSet is the set of addresses whose side of a transaction is tracked.
type AddressSet map[common.Address]struct{}

func NewAddressSet(addrs ...common.Address) AddressSet {
	s := make(AddressSet, len(addrs))
	for _, a := range addrs {
		s[a] = struct{}{}
	}
	return s
}

func (s AddressSet) Contains(addr *common.Address) bool {
	if addr == nil {
		return false
	}
	_, ok := s[*addr]
	return ok
}

// Decoder maps transactions to ledger events. It holds no state besides its
// logger and never modifies the transactions it is given.
type Decoder struct {
	logger *slog.Logger
}

// New creates a Decoder.
func New(logger *slog.Logger) *Decoder {
	return &Decoder{logger: logger.With("component", "decoder")}
}

type eventDraft struct {
	typ          model.EventType
	subtype      model.EventSubtype
	asset        model.Asset
	amount       decimal.Decimal
	label        *common.Address
	counterparty *common.Address
	notes        string
}

// Decode returns the events of tx in sequence order. A trailing fee event
// follows when tx carries a fee and its first event is not a receive.
func (d *Decoder) Decode(tx *model.Transaction, tracked AddressSet) []model.LedgerEvent {
	drafts, feeCharged := d.drafts(tx, tracked)

	if feeCharged && tx.Fee != nil && len(drafts) > 0 && drafts[0].typ != model.EventTypeReceive {
		first, last := drafts[0], drafts[len(drafts)-1]
		drafts = append(drafts, eventDraft{
			typ:          first.typ,
			subtype:      model.EventSubtypeFee,
			asset:        tx.Asset,
			amount:       *tx.Fee,
			label:        first.label,
			counterparty: last.counterparty,
			notes:        fmt.Sprintf("%s fee of %s %s", feeKind(first.typ), tx.Fee.String(), tx.Asset),
		})
	}

	events := make([]model.LedgerEvent, 0, len(drafts))
	for i, dr := range drafts {
		ev := model.LedgerEvent{
			EventIdentifier: model.EventIdentifier(tx.TxHash),
			TxHash:          tx.TxHash,
			SequenceIndex:   i,
			TimestampMS:     tx.Timestamp * 1000,
			Location:        model.ChainZkSyncLite,
			Type:            dr.typ,
			Subtype:         dr.subtype,
			Asset:           dr.asset,
			Amount:          dr.amount,
			Notes:           dr.notes,
		}
		if dr.label != nil {
			ev.LocationLabel = *dr.label
		}
		if dr.counterparty != nil {
			cp := *dr.counterparty
			ev.Counterparty = &cp
		}
		events = append(events, ev)
	}
	return events
}

// drafts reports whether a separate fee event may be appended. ChangePubKey
// already books its fee as the main event.
func (d *Decoder) drafts(tx *model.Transaction, tracked AddressSet) ([]eventDraft, bool) {
	trackedFrom := tracked.Contains(tx.From)
	trackedTo := tracked.Contains(tx.To)
	symbol := tx.Asset.String()

	switch tx.Type {
	case model.TxTypeDeposit:
		// from is on L1, to on L2.
		if !trackedTo {
			return nil, true
		}
		return []eventDraft{{
			typ: model.EventTypeWithdrawal, subtype: model.EventSubtypeBridge,
			asset: tx.Asset, amount: tx.Amount,
			label: tx.To,
			notes: fmt.Sprintf("Bridge %s %s from Ethereum to ZKSync Lite%s", tx.Amount, symbol, addressSuffix(tx)),
		}}, true

	case model.TxTypeWithdraw:
		if !trackedFrom {
			return nil, true
		}
		return []eventDraft{{
			typ: model.EventTypeDeposit, subtype: model.EventSubtypeBridge,
			asset: tx.Asset, amount: tx.Amount,
			label: tx.From, counterparty: tx.To,
			notes: fmt.Sprintf("Bridge %s %s from ZKSync Lite to Ethereum%s", tx.Amount, symbol, addressSuffix(tx)),
		}}, true

	case model.TxTypeTransfer:
		switch {
		case trackedFrom && trackedTo:
			return []eventDraft{{
				typ: model.EventTypeTransfer, subtype: model.EventSubtypeNone,
				asset: tx.Asset, amount: tx.Amount,
				label: tx.From, counterparty: tx.To,
				notes: fmt.Sprintf("Transfer %s %s to %s", tx.Amount, symbol, hexOrEmpty(tx.To)),
			}}, true
		case trackedFrom:
			return []eventDraft{{
				typ: model.EventTypeSpend, subtype: model.EventSubtypeNone,
				asset: tx.Asset, amount: tx.Amount,
				label: tx.From, counterparty: tx.To,
				notes: fmt.Sprintf("Send %s %s to %s", tx.Amount, symbol, hexOrEmpty(tx.To)),
			}}, true
		case trackedTo:
			return []eventDraft{{
				typ: model.EventTypeReceive, subtype: model.EventSubtypeNone,
				asset: tx.Asset, amount: tx.Amount,
				label: tx.To, counterparty: tx.From,
				notes: fmt.Sprintf("Receive %s %s from %s", tx.Amount, symbol, hexOrEmpty(tx.From)),
			}}, true
		default:
			return nil, true
		}

	case model.TxTypeFullExit, model.TxTypeForcedExit:
		kind := "Forced"
		if tx.Type == model.TxTypeFullExit {
			kind = "Full"
		}
		return []eventDraft{{
			typ: model.EventTypeInformational, subtype: model.EventSubtypeNone,
			asset: tx.Asset, amount: tx.Amount,
			label: tx.From, counterparty: tx.To,
			notes: fmt.Sprintf("%s exit to Ethereum%s", kind, addressSuffix(tx)),
		}}, true

	case model.TxTypeChangePubKey:
		if tx.Fee == nil {
			d.logger.Warn("changepubkey transaction without fee, skipping", "tx_hash", tx.TxHash)
			return nil, false
		}
		return []eventDraft{{
			typ: model.EventTypeSpend, subtype: model.EventSubtypeFee,
			asset: tx.Asset, amount: *tx.Fee,
			label: tx.From, counterparty: tx.To,
			notes: fmt.Sprintf("Spend %s %s to ChangePubKey", tx.Fee, symbol),
		}}, false

	case model.TxTypeSwap:
		if tx.Swap == nil {
			d.logger.Error("swap transaction without legs, skipping", "tx_hash", tx.TxHash)
			return nil, false
		}
		sell, buy := tx.Swap.Sell, tx.Swap.Buy
		return []eventDraft{
			{
				typ: model.EventTypeTrade, subtype: model.EventSubtypeSpend,
				asset: sell.Asset, amount: sell.Amount,
				label: tx.From, counterparty: tx.To,
				notes: fmt.Sprintf("Swap %s %s via ZKSync Lite", sell.Amount, sell.Asset),
			},
			{
				typ: model.EventTypeTrade, subtype: model.EventSubtypeReceive,
				asset: buy.Asset, amount: buy.Amount,
				label: tx.From, counterparty: tx.To,
				notes: fmt.Sprintf("Receive %s %s as the result of a swap via ZKSync Lite", buy.Amount, buy.Asset),
			},
		}, true

	default:
		d.logger.Error("unsupported transaction type, skipping", "tx_hash", tx.TxHash, "type", tx.Type)
		return nil, false
	}
}

func feeKind(first model.EventType) string {
	switch first {
	case model.EventTypeSpend, model.EventTypeTransfer:
		return "Transfer"
	case model.EventTypeTrade:
		return "Swap"
	default:
		return "Bridging"
	}
}

// addressSuffix names the destination when it differs from the source.
func addressSuffix(tx *model.Transaction) string {
	if tx.From != nil && tx.To != nil && *tx.From == *tx.To {
		return ""
	}
	if tx.To == nil {
		return ""
	}
	return " address " + tx.To.Hex()
}

func hexOrEmpty(addr *common.Address) string {
	if addr == nil {
		return ""
	}
	return addr.Hex()
}
