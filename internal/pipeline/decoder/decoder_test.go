package decoder

import (
	"log/slog"
	"testing"

	"github.com/emperorhan/zklite-indexer/internal/domain/model"
	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testHash = "0xaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa"

var (
	alice   = common.HexToAddress("0x9531C059098e3d194fF87FebB587aB07B30B1306")
	bob     = common.HexToAddress("0x2B888954421b424C5D3D9Ce9bB67c9bD47537d12")
	usdcAdr = common.HexToAddress("0xA0b86991c6218b36c1d19D4a2e9Eb0cE3606eB48")
	usdc    = model.Asset{Identifier: model.ERC20Identifier(usdcAdr), Address: &usdcAdr, Symbol: "USDC", Decimals: 6}
	eth     = model.NativeAsset()
)

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func decPtr(s string) *decimal.Decimal {
	d := dec(s)
	return &d
}

func addr(a common.Address) *common.Address { return &a }

func newTx(typ model.TxType, from, to *common.Address, asset model.Asset, amount string, fee *decimal.Decimal) *model.Transaction {
	return &model.Transaction{
		TxHash:    testHash,
		Type:      typ,
		Timestamp: 1656414333,
		From:      from,
		To:        to,
		Asset:     asset,
		Amount:    dec(amount),
		Fee:       fee,
	}
}

func newTestDecoder() *Decoder { return New(slog.Default()) }

func TestDecode_DepositToTracked(t *testing.T) {
	tx := newTx(model.TxTypeDeposit, addr(common.Address{}), addr(alice), eth, "1", nil)

	events := newTestDecoder().Decode(tx, NewAddressSet(alice))
	require.Len(t, events, 1)

	ev := events[0]
	assert.Equal(t, "zkl"+testHash, ev.EventIdentifier)
	assert.Equal(t, 0, ev.SequenceIndex)
	assert.Equal(t, int64(1656414333000), ev.TimestampMS)
	assert.Equal(t, model.ChainZkSyncLite, ev.Location)
	assert.Equal(t, model.EventTypeWithdrawal, ev.Type)
	assert.Equal(t, model.EventSubtypeBridge, ev.Subtype)
	assert.True(t, ev.Asset.IsNative())
	assert.True(t, dec("1").Equal(ev.Amount))
	assert.Equal(t, alice, ev.LocationLabel)
	assert.Nil(t, ev.Counterparty)
	assert.Equal(t, "Bridge 1 ETH from Ethereum to ZKSync Lite address "+alice.Hex(), ev.Notes)
}

func TestDecode_DepositToUntracked(t *testing.T) {
	tx := newTx(model.TxTypeDeposit, addr(alice), addr(bob), eth, "1", nil)
	assert.Empty(t, newTestDecoder().Decode(tx, NewAddressSet(alice)))
}

func TestDecode_WithdrawWithFee(t *testing.T) {
	tx := newTx(model.TxTypeWithdraw, addr(alice), addr(alice), usdc, "10", decPtr("0.5"))

	events := newTestDecoder().Decode(tx, NewAddressSet(alice))
	require.Len(t, events, 2)

	assert.Equal(t, model.EventTypeDeposit, events[0].Type)
	assert.Equal(t, model.EventSubtypeBridge, events[0].Subtype)
	assert.Equal(t, "Bridge 10 USDC from ZKSync Lite to Ethereum", events[0].Notes)
	require.NotNil(t, events[0].Counterparty)
	assert.Equal(t, alice, *events[0].Counterparty)

	fee := events[1]
	assert.Equal(t, 1, fee.SequenceIndex)
	assert.Equal(t, model.EventTypeDeposit, fee.Type)
	assert.Equal(t, model.EventSubtypeFee, fee.Subtype)
	assert.True(t, dec("0.5").Equal(fee.Amount))
	assert.Equal(t, "Bridging fee of 0.5 USDC", fee.Notes)
}

func TestDecode_Transfer(t *testing.T) {
	tests := []struct {
		name      string
		tracked   AddressSet
		wantTypes []model.EventType
		wantLabel common.Address
		wantNote  string
	}{
		{
			name:      "both tracked",
			tracked:   NewAddressSet(alice, bob),
			wantTypes: []model.EventType{model.EventTypeTransfer, model.EventTypeTransfer},
			wantLabel: alice,
			wantNote:  "Transfer 2.5 USDC to " + bob.Hex(),
		},
		{
			name:      "sender tracked",
			tracked:   NewAddressSet(alice),
			wantTypes: []model.EventType{model.EventTypeSpend, model.EventTypeSpend},
			wantLabel: alice,
			wantNote:  "Send 2.5 USDC to " + bob.Hex(),
		},
		{
			name:      "receiver tracked",
			tracked:   NewAddressSet(bob),
			wantTypes: []model.EventType{model.EventTypeReceive},
			wantLabel: bob,
			wantNote:  "Receive 2.5 USDC from " + alice.Hex(),
		},
		{
			name:    "neither tracked",
			tracked: NewAddressSet(),
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tx := newTx(model.TxTypeTransfer, addr(alice), addr(bob), usdc, "2.5", decPtr("0.01"))

			events := newTestDecoder().Decode(tx, tt.tracked)
			require.Len(t, events, len(tt.wantTypes))
			if len(events) == 0 {
				return
			}
			for i, typ := range tt.wantTypes {
				assert.Equal(t, typ, events[i].Type)
				assert.Equal(t, i, events[i].SequenceIndex)
			}
			assert.Equal(t, tt.wantLabel, events[0].LocationLabel)
			assert.Equal(t, tt.wantNote, events[0].Notes)
			if len(events) == 2 {
				assert.Equal(t, model.EventSubtypeFee, events[1].Subtype)
				assert.Equal(t, "Transfer fee of 0.01 USDC", events[1].Notes)
				assert.Equal(t, alice, events[1].LocationLabel)
			}
		})
	}
}

func TestDecode_Exits(t *testing.T) {
	full := newTx(model.TxTypeFullExit, addr(alice), addr(alice), eth, "0", nil)
	events := newTestDecoder().Decode(full, NewAddressSet())
	require.Len(t, events, 1)
	assert.Equal(t, model.EventTypeInformational, events[0].Type)
	assert.Equal(t, model.EventSubtypeNone, events[0].Subtype)
	assert.Equal(t, "Full exit to Ethereum", events[0].Notes)

	forced := newTx(model.TxTypeForcedExit, addr(alice), addr(bob), usdc, "0", decPtr("0.02"))
	events = newTestDecoder().Decode(forced, NewAddressSet(alice))
	require.Len(t, events, 2)
	assert.Equal(t, "Forced exit to Ethereum address "+bob.Hex(), events[0].Notes)
	assert.Equal(t, model.EventTypeInformational, events[1].Type)
	assert.Equal(t, model.EventSubtypeFee, events[1].Subtype)
	assert.Equal(t, "Bridging fee of 0.02 USDC", events[1].Notes)
}

func TestDecode_ChangePubKey(t *testing.T) {
	tx := newTx(model.TxTypeChangePubKey, addr(alice), nil, usdc, "1.5", decPtr("1.5"))

	events := newTestDecoder().Decode(tx, NewAddressSet(alice))
	require.Len(t, events, 1, "fee is not booked twice")
	assert.Equal(t, model.EventTypeSpend, events[0].Type)
	assert.Equal(t, model.EventSubtypeFee, events[0].Subtype)
	assert.True(t, dec("1.5").Equal(events[0].Amount))
	assert.Equal(t, "Spend 1.5 USDC to ChangePubKey", events[0].Notes)
	assert.Nil(t, events[0].Counterparty)

	require.NotNil(t, tx.Fee, "input transaction is left untouched")
	assert.True(t, dec("1.5").Equal(*tx.Fee))
}

func TestDecode_ChangePubKeyWithoutFee(t *testing.T) {
	tx := newTx(model.TxTypeChangePubKey, addr(alice), nil, eth, "0", nil)
	assert.Empty(t, newTestDecoder().Decode(tx, NewAddressSet(alice)))
}

func TestDecode_SwapWithFee(t *testing.T) {
	tx := newTx(model.TxTypeSwap, addr(alice), addr(alice), eth, "0.001", decPtr("0.001"))
	tx.Swap = &model.SwapLegs{
		Sell: model.SwapLeg{Asset: eth, Amount: dec("2")},
		Buy:  model.SwapLeg{Asset: usdc, Amount: dec("3000")},
	}

	events := newTestDecoder().Decode(tx, NewAddressSet())
	require.Len(t, events, 3)

	assert.Equal(t, model.EventTypeTrade, events[0].Type)
	assert.Equal(t, model.EventSubtypeSpend, events[0].Subtype)
	assert.True(t, events[0].Asset.IsNative())
	assert.True(t, dec("2").Equal(events[0].Amount))
	assert.Equal(t, "Swap 2 ETH via ZKSync Lite", events[0].Notes)

	assert.Equal(t, model.EventTypeTrade, events[1].Type)
	assert.Equal(t, model.EventSubtypeReceive, events[1].Subtype)
	assert.Equal(t, usdc.Identifier, events[1].Asset.Identifier)
	assert.Equal(t, "Receive 3000 USDC as the result of a swap via ZKSync Lite", events[1].Notes)

	assert.Equal(t, model.EventTypeTrade, events[2].Type)
	assert.Equal(t, model.EventSubtypeFee, events[2].Subtype)
	assert.True(t, dec("0.001").Equal(events[2].Amount))
	assert.Equal(t, "Swap fee of 0.001 ETH", events[2].Notes)

	for i, ev := range events {
		assert.Equal(t, i, ev.SequenceIndex)
	}
}

func TestDecode_IsDeterministic(t *testing.T) {
	tx := newTx(model.TxTypeTransfer, addr(alice), addr(bob), usdc, "2.5", decPtr("0.01"))
	tracked := NewAddressSet(alice)

	first := newTestDecoder().Decode(tx, tracked)
	second := newTestDecoder().Decode(tx, tracked)
	assert.Equal(t, first, second)
}
