package ingester

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/emperorhan/zklite-indexer/internal/domain/model"
	"github.com/emperorhan/zklite-indexer/internal/metrics"
	"github.com/emperorhan/zklite-indexer/internal/store"
)

// Ingester writes fetched transactions to storage.
type Ingester struct {
	db        store.TxBeginner
	txRepo    store.TransactionRepository
	rangeRepo store.QueryRangeRepository
	logger    *slog.Logger
}

// New creates an Ingester writing through db.
func New(
	db store.TxBeginner,
	txRepo store.TransactionRepository,
	rangeRepo store.QueryRangeRepository,
	logger *slog.Logger,
) *Ingester {
	return &Ingester{
		db:        db,
		txRepo:    txRepo,
		rangeRepo: rangeRepo,
		logger:    logger.With("component", "ingester"),
	}
}

// Ingest stores txs with their swap legs and, when rng is set, widens the
// query range of location, all in one database transaction. Transactions
// whose hash is already stored are logged and skipped. It returns the number
// of newly stored transactions.
func (ing *Ingester) Ingest(ctx context.Context, location string, txs []*model.Transaction, rng *model.QueryRange) (int, error) {
	start := time.Now()

	dbTx, err := ing.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin tx: %w", err)
	}
	committed := false
	defer func() {
		if committed {
			return
		}
		if rbErr := dbTx.Rollback(); rbErr != nil && rbErr != sql.ErrTxDone {
			ing.logger.Warn("rollback failed", "error", rbErr)
		}
	}()

	saved := 0
	for _, tx := range txs {
		id, err := ing.txRepo.InsertTx(ctx, dbTx, tx)
		if errors.Is(err, store.ErrDuplicateTransaction) {
			metrics.IngesterDuplicatesSkipped.WithLabelValues("storage").Inc()
			ing.logger.Error("did not add zksync lite transaction",
				"tx_hash", tx.TxHash,
				"reason", err.Error(),
			)
			continue
		}
		if err != nil {
			return 0, fmt.Errorf("insert transaction %s: %w", tx.TxHash, err)
		}
		if tx.Type == model.TxTypeSwap && tx.Swap != nil {
			if err := ing.txRepo.InsertSwapLegsTx(ctx, dbTx, id, *tx.Swap); err != nil {
				return 0, fmt.Errorf("insert swap legs %s: %w", tx.TxHash, err)
			}
		}
		saved++
	}

	if rng != nil {
		if err := ing.rangeRepo.UpdateTx(ctx, dbTx, location, *rng); err != nil {
			return 0, fmt.Errorf("update query range %s: %w", location, err)
		}
	}

	if err := dbTx.Commit(); err != nil {
		return 0, fmt.Errorf("commit: %w", err)
	}
	committed = true

	metrics.IngesterTransactionsSaved.Add(float64(saved))
	metrics.IngesterBatchLatency.Observe(time.Since(start).Seconds())
	ing.logger.Debug("batch ingested",
		"location", location,
		"received", len(txs),
		"saved", saved,
	)
	return saved, nil
}
