package fetcher

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"log/slog"

	"github.com/emperorhan/zklite-indexer/internal/chain/zksynclite/api"
	"github.com/emperorhan/zklite-indexer/internal/domain/model"
	"github.com/emperorhan/zklite-indexer/internal/metrics"
	"github.com/emperorhan/zklite-indexer/internal/pipeline/normalizer"
	"github.com/emperorhan/zklite-indexer/internal/tracing"
	"github.com/ethereum/go-ethereum/common"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

// ErrNoCursor is returned when a full page ends in an entry without a hash,
// leaving nothing to continue pagination from.
var ErrNoCursor = errors.New("cannot continue pagination without a transaction hash")

// TransactionLister is the account transaction listing of the zkSync Lite API.
type TransactionLister interface {
	AccountTransactions(ctx context.Context, address string, from string, direction model.Direction, limit int) (*api.TransactionsPage, error)
}

// TransactionNormalizer turns one raw entry into a transaction.
type TransactionNormalizer interface {
	Normalize(ctx context.Context, envelope map[string]any, concerningAddress common.Address) (*model.Transaction, error)
}

// Fetcher walks an account's transaction listing page by page.
type Fetcher struct {
	lister     TransactionLister
	normalizer TransactionNormalizer
	pageLimit  int
	logger     *slog.Logger
}

// New creates a Fetcher requesting pageLimit entries per page.
func New(lister TransactionLister, n TransactionNormalizer, pageLimit int, logger *slog.Logger) *Fetcher {
	if pageLimit <= 0 {
		pageLimit = api.DefaultPageLimit
	}
	return &Fetcher{
		lister:     lister,
		normalizer: n,
		pageLimit:  pageLimit,
		logger:     logger.With("component", "fetcher"),
	}
}

// Pages yields one batch of normalized transactions per API page, walking
// direction from the from cursor ("latest" or a transaction hash).
//
// The cursor is inclusive, so a page whose first entry repeats the previous
// page's last entry has that entry dropped. Entries the normalizer rejects
// as skippable are left out of their batch. The sequence ends after the
// first page shorter than the page limit, or after yielding an error.
func (f *Fetcher) Pages(ctx context.Context, address common.Address, direction model.Direction, from string) iter.Seq2[[]*model.Transaction, error] {
	return func(yield func([]*model.Transaction, error) bool) {
		cursor := from
		prevLastHash := ""
		for pageNo := 0; ; pageNo++ {
			batch, lastHash, n, err := f.fetchPage(ctx, address, direction, cursor, prevLastHash, pageNo)
			if err != nil {
				metrics.FetcherErrors.WithLabelValues(direction.String()).Inc()
				yield(nil, err)
				return
			}
			metrics.FetcherPagesTotal.WithLabelValues(direction.String()).Inc()
			metrics.FetcherTxFetched.WithLabelValues(direction.String()).Add(float64(len(batch)))

			if !yield(batch, nil) {
				return
			}
			if n < f.pageLimit {
				return
			}
			if lastHash == "" {
				metrics.FetcherErrors.WithLabelValues(direction.String()).Inc()
				yield(nil, fmt.Errorf("page %d for %s: %w", pageNo, address.Hex(), ErrNoCursor))
				return
			}
			cursor = lastHash
			prevLastHash = lastHash
		}
	}
}

// fetchPage returns the normalized batch, the raw hash of the page's last
// entry and the raw number of entries on the page.
func (f *Fetcher) fetchPage(
	ctx context.Context,
	address common.Address,
	direction model.Direction,
	cursor string,
	prevLastHash string,
	pageNo int,
) ([]*model.Transaction, string, int, error) {
	spanCtx, span := tracing.Tracer("fetcher").Start(ctx, "fetcher.page")
	defer span.End()
	span.SetAttributes(
		attribute.String("address", address.Hex()),
		attribute.String("direction", direction.String()),
		attribute.String("cursor", cursor),
		attribute.Int("page", pageNo),
	)

	page, err := f.lister.AccountTransactions(spanCtx, address.Hex(), cursor, direction, f.pageLimit)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, "", 0, err
	}

	batch := make([]*model.Transaction, 0, len(page.List))
	lastHash := ""
	for i, raw := range page.List {
		envelope, err := api.DecodeEnvelope(raw)
		if err != nil {
			f.logger.Error("skipping undecodable transaction entry",
				"address", address.Hex(),
				"page", pageNo,
				"index", i,
				"error", err,
			)
			lastHash = ""
			continue
		}
		hash, _ := envelope["txHash"].(string)
		lastHash = hash

		if i == 0 && prevLastHash != "" && hash == prevLastHash {
			continue
		}

		tx, err := f.normalizer.Normalize(spanCtx, envelope, address)
		if err != nil {
			if normalizer.IsSkippable(err) {
				continue
			}
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			return nil, "", 0, err
		}
		batch = append(batch, tx)
	}

	span.SetAttributes(attribute.Int("entries", len(page.List)), attribute.Int("transactions", len(batch)))
	f.logger.Debug("fetched transaction page",
		"address", address.Hex(),
		"direction", direction.String(),
		"cursor", cursor,
		"entries", len(page.List),
		"transactions", len(batch),
	)
	return batch, lastHash, len(page.List), nil
}
