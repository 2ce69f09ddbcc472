package decoder

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
	"github.com/emperorhan/zklite-indexer/internal/tracing"
	"github.com/ethereum/go-ethereum/common"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

const defaultProgressEvery = 10

// Service decodes stored transactions and persists their events.
type Service struct {
	db            store.TxBeginner
	txRepo        store.TransactionRepository
	eventRepo     store.LedgerEventRepository
	watchedRepo   store.WatchedAddressRepository
	decoder       *Decoder
	notifier      ProgressNotifier
	progressEvery int
	logger        *slog.Logger
}

type Option func(*Service)

// WithProgressNotifier reports bulk-decode progress every n transactions.
func WithProgressNotifier(n ProgressNotifier, every int) Option {
	return func(s *Service) {
		s.notifier = n
		if every > 0 {
			s.progressEvery = every
		}
	}
}

// NewService creates a Service persisting events through eventRepo.
func NewService(
	db store.TxBeginner,
	txRepo store.TransactionRepository,
	eventRepo store.LedgerEventRepository,
	watchedRepo store.WatchedAddressRepository,
	logger *slog.Logger,
	opts ...Option,
) *Service {
	s := &Service{
		db:            db,
		txRepo:        txRepo,
		eventRepo:     eventRepo,
		watchedRepo:   watchedRepo,
		decoder:       New(logger),
		progressEvery: defaultProgressEvery,
		logger:        logger.With("component", "decoder_service"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// TrackedAddresses returns the active watched addresses.
func (s *Service) TrackedAddresses(ctx context.Context) (AddressSet, error) {
	watched, err := s.watchedRepo.GetActive(ctx)
	if err != nil {
		return nil, fmt.Errorf("get watched addresses: %w", err)
	}
	set := make(AddressSet, len(watched))
	for _, w := range watched {
		if !common.IsHexAddress(w.Address) {
			s.logger.Warn("ignoring invalid watched address", "address", w.Address)
			continue
		}
		set[common.HexToAddress(w.Address)] = struct{}{}
	}
	return set, nil
}

// ErrMissingSwapLegs is returned for a stored swap whose legs are missing.
// Such a transaction stays undecoded.
var ErrMissingSwapLegs = errors.New("swap transaction without legs")

// DecodeTransaction replaces the stored events of tx with a fresh decode and
// flags tx as decoded, all in one database transaction.
func (s *Service) DecodeTransaction(ctx context.Context, tx *model.Transaction, tracked AddressSet) ([]model.LedgerEvent, error) {
	if tx.Type == model.TxTypeSwap && tx.Swap == nil {
		return nil, fmt.Errorf("decode %s: %w", tx.TxHash, ErrMissingSwapLegs)
	}
	events := s.decoder.Decode(tx, tracked)

	dbTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	committed := false
	defer func() {
		if committed {
			return
		}
		if rbErr := dbTx.Rollback(); rbErr != nil && rbErr != sql.ErrTxDone {
			s.logger.Warn("rollback failed", "error", rbErr)
		}
	}()

	if _, err := s.eventRepo.DeleteByIdentifierTx(ctx, dbTx, model.EventIdentifier(tx.TxHash)); err != nil {
		return nil, fmt.Errorf("delete events of %s: %w", tx.TxHash, err)
	}
	if len(events) > 0 {
		if err := s.eventRepo.BulkInsertTx(ctx, dbTx, events); err != nil {
			return nil, fmt.Errorf("insert events of %s: %w", tx.TxHash, err)
		}
	}
	if err := s.txRepo.SetDecodedTx(ctx, dbTx, tx.TxHash); err != nil {
		return nil, fmt.Errorf("set decoded %s: %w", tx.TxHash, err)
	}
	if err := dbTx.Commit(); err != nil {
		return nil, fmt.Errorf("commit: %w", err)
	}
	committed = true

	for _, ev := range events {
		metrics.DecoderEventsWritten.WithLabelValues(string(ev.Type), string(ev.Subtype)).Inc()
	}
	metrics.DecoderTransactionsDecoded.Inc()
	return events, nil
}

// DecodeUndecoded decodes every stored transaction not yet decoded, or all of
// them when forceRedecode is set. A failure on one transaction is logged and
// does not stop the pass. It returns the number of transactions decoded.
func (s *Service) DecodeUndecoded(ctx context.Context, forceRedecode bool) (int, error) {
	spanCtx, span := tracing.Tracer("decoder").Start(ctx, "decoder.decodeUndecoded")
	defer span.End()

	txs, err := s.txRepo.Query(spanCtx, model.TransactionFilter{OnlyUndecoded: !forceRedecode})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return 0, fmt.Errorf("query transactions: %w", err)
	}
	tracked, err := s.TrackedAddresses(spanCtx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return 0, err
	}

	start := time.Now()
	total := len(txs)
	decoded := 0
	for i, tx := range txs {
		if err := ctx.Err(); err != nil {
			return decoded, err
		}
		if _, err := s.DecodeTransaction(spanCtx, tx, tracked); err != nil {
			metrics.DecoderErrors.Inc()
			s.logger.Error("failed to decode transaction", "tx_hash", tx.TxHash, "error", err)
		} else {
			decoded++
		}
		if (i+1)%s.progressEvery == 0 {
			s.notify(spanCtx, i+1, total)
		}
	}
	if total%s.progressEvery != 0 || total == 0 {
		s.notify(spanCtx, total, total)
	}

	span.SetAttributes(attribute.Int("total", total), attribute.Int("decoded", decoded))
	s.logger.Info("decode pass completed",
		"total", total,
		"decoded", decoded,
		"force", forceRedecode,
		"elapsed", time.Since(start).String(),
	)
	return decoded, nil
}

func (s *Service) notify(ctx context.Context, processed, total int) {
	if s.notifier == nil {
		return
	}
	if err := s.notifier.NotifyProgress(ctx, processed, total); err != nil {
		s.logger.Warn("progress notification failed", "error", err)
	}
}
