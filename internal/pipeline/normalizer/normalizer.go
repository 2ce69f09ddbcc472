package normalizer

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/emperorhan/zklite-indexer/internal/domain/model"
	"github.com/emperorhan/zklite-indexer/internal/metrics"
	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
)

const statusFinalized = "finalized"

// TokenResolver maps zkSync Lite token ids to assets.
type TokenResolver interface {
	ResolveByID(ctx context.Context, id int64) (model.Asset, bool, error)
}

// Normalizer turns raw API transaction entries into model.Transaction.
type Normalizer struct {
	tokens TokenResolver
	logger *slog.Logger
}

// New creates a Normalizer resolving token ids through tokens.
func New(tokens TokenResolver, logger *slog.Logger) *Normalizer {
	return &Normalizer{
		tokens: tokens,
		logger: logger.With("component", "normalizer"),
	}
}

// Normalize builds a transaction out of one raw entry fetched for
// concerningAddress.
//
// Entries that cannot or must not be stored come back with an error for
// which IsSkippable is true; the reason has already been logged. Any other
// error comes from token resolution and should abort the caller.
func (n *Normalizer) Normalize(ctx context.Context, envelope map[string]any, concerningAddress common.Address) (*model.Transaction, error) {
	tx, err := n.normalize(ctx, object{fields: envelope}, concerningAddress)
	if err == nil {
		return tx, nil
	}
	if IsSkippable(err) {
		reason := skipReason(err)
		metrics.NormalizerSkipped.WithLabelValues(reason).Inc()
		hash, _ := envelope["txHash"].(string)
		if reason == "not_finalized" {
			n.logger.Debug("skipping zksync lite transaction", "tx_hash", hash, "reason", err.Error())
		} else {
			n.logger.Error("skipping zksync lite transaction",
				"tx_hash", hash,
				"address", concerningAddress.Hex(),
				"reason", err.Error(),
			)
		}
	}
	return nil, err
}

func (n *Normalizer) normalize(ctx context.Context, entry object, concerningAddress common.Address) (*model.Transaction, error) {
	if status, ok := entry.fields["status"]; ok {
		if s, _ := status.(string); s != statusFinalized {
			return nil, fmt.Errorf("status %v: %w", status, ErrNotFinalized)
		}
	}

	txHash, err := entry.txHash("txHash")
	if err != nil {
		return nil, err
	}
	op, err := entry.object("op")
	if err != nil {
		return nil, err
	}
	rawType, err := op.str("type")
	if err != nil {
		return nil, err
	}
	txType, err := model.ParseTxType(rawType)
	if err != nil {
		return nil, malformed("op.type", "%v", err)
	}
	blockNumber, err := entry.integer("blockNumber")
	if err != nil {
		return nil, err
	}
	timestamp, err := entry.timestamp("createdAt")
	if err != nil {
		return nil, err
	}

	spec := fieldSpecs[txType]
	tx := &model.Transaction{
		TxHash:      txHash,
		Type:        txType,
		Timestamp:   timestamp,
		BlockNumber: blockNumber,
	}

	if spec.hashKey != "" {
		if tx.TxHash, err = op.txHash(spec.hashKey); err != nil {
			return nil, err
		}
	}
	if tx.From, err = spec.from.resolve(op, concerningAddress); err != nil {
		return nil, err
	}
	if tx.To, err = spec.to.resolve(op, concerningAddress); err != nil {
		return nil, err
	}

	if tx.Asset, err = n.asset(ctx, op, spec.assetKey); err != nil {
		return nil, err
	}
	tx.Amount = decimal.Zero
	if spec.amountKey != "" {
		raw, err := op.rawAmount(spec.amountKey)
		if err != nil {
			return nil, err
		}
		tx.Amount = tx.Asset.NormalizeAmount(raw)
	}

	if op.fields["fee"] != nil {
		raw, err := op.rawAmount("fee")
		if err != nil {
			return nil, err
		}
		// A zero fee is stored as no fee.
		if raw.Sign() != 0 {
			fee := tx.Asset.NormalizeAmount(raw)
			tx.Fee = &fee
		}
	}

	if spec.swap {
		if tx.Swap, err = n.swapLegs(ctx, op); err != nil {
			return nil, err
		}
	}
	return tx, nil
}

func (n *Normalizer) asset(ctx context.Context, obj object, key string) (model.Asset, error) {
	id, err := obj.integer(key)
	if err != nil {
		return model.Asset{}, err
	}
	asset, ok, err := n.tokens.ResolveByID(ctx, id)
	if err != nil {
		return model.Asset{}, fmt.Errorf("resolve token id %d: %w", id, err)
	}
	if !ok {
		return model.Asset{}, fmt.Errorf("%s %d: %w", obj.child(key), id, ErrUnknownToken)
	}
	return asset, nil
}

func (n *Normalizer) swapLegs(ctx context.Context, op object) (*model.SwapLegs, error) {
	var legs [2]model.SwapLeg
	for i := range legs {
		order, err := op.index("orders", i)
		if err != nil {
			return nil, err
		}
		asset, err := n.asset(ctx, order, "tokenSell")
		if err != nil {
			return nil, err
		}
		raw, err := order.rawAmount("amount")
		if err != nil {
			return nil, err
		}
		legs[i] = model.SwapLeg{Asset: asset, Amount: asset.NormalizeAmount(raw)}
	}
	return &model.SwapLegs{Sell: legs[0], Buy: legs[1]}, nil
}
