package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"iter"
	"log/slog"
	"runtime/debug"
	"sort"
	"time"

	"github.com/emperorhan/zklite-indexer/internal/alert"
	"github.com/emperorhan/zklite-indexer/internal/chain/ethereum/rpc"
	"github.com/emperorhan/zklite-indexer/internal/chain/zksynclite/api"
	"github.com/emperorhan/zklite-indexer/internal/domain/model"
	"github.com/emperorhan/zklite-indexer/internal/metrics"
	"github.com/emperorhan/zklite-indexer/internal/pipeline/normalizer"
	"github.com/emperorhan/zklite-indexer/internal/store"
	"github.com/emperorhan/zklite-indexer/internal/tracing"
	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"golang.org/x/sync/errgroup"
)

const (
	defaultFetchWorkers = 4
	alertTimeout        = 10 * time.Second
)

// Config holds the tunables of a Pipeline.
type Config struct {
	// FetchWorkers bounds how many addresses are fetched concurrently by Sync.
	FetchWorkers int
}

// Pager walks an account's transaction listing.
type Pager interface {
	Pages(ctx context.Context, address common.Address, direction model.Direction, from string) iter.Seq2[[]*model.Transaction, error]
}

// BatchIngester persists one fetched batch together with its range update.
type BatchIngester interface {
	Ingest(ctx context.Context, location string, txs []*model.Transaction, rng *model.QueryRange) (int, error)
}

// RemoteAPI is the subset of the zkSync Lite API used outside pagination.
type RemoteAPI interface {
	TransactionData(ctx context.Context, hash string) (json.RawMessage, error)
	Account(ctx context.Context, address string) (*api.Account, error)
}

type TransactionNormalizer interface {
	Normalize(ctx context.Context, envelope map[string]any, concerningAddress common.Address) (*model.Transaction, error)
}

type SymbolResolver interface {
	ResolveBySymbol(ctx context.Context, symbol string) (model.Asset, bool, error)
}

// PriceOracle returns the current USD price of one unit of an asset.
type PriceOracle interface {
	USDPrice(ctx context.Context, asset model.Asset) (decimal.Decimal, error)
}

type DecodeRunner interface {
	DecodeUndecoded(ctx context.Context, forceRedecode bool) (int, error)
}

// Alerter is notified when Sync turns unhealthy or recovers.
type Alerter interface {
	Send(ctx context.Context, a alert.Alert) error
}

// Dependencies groups the collaborators of a Pipeline.
type Dependencies struct {
	Pager      Pager
	Ingester   BatchIngester
	Remote     RemoteAPI
	Normalizer TransactionNormalizer
	Tokens     SymbolResolver
	Prices     PriceOracle
	Decoder    DecodeRunner
	TxRepo     store.TransactionRepository
	RangeRepo  store.QueryRangeRepository
	Alerter    Alerter // optional
}

// Pipeline sequences fetching, storing and decoding of zkSync Lite history.
type Pipeline struct {
	cfg    Config
	deps   Dependencies
	health *SyncHealth
	logger *slog.Logger
}

// New creates a Pipeline. A nil health tracker is replaced by one with the
// default thresholds.
func New(cfg Config, deps Dependencies, health *SyncHealth, logger *slog.Logger) *Pipeline {
	if cfg.FetchWorkers <= 0 {
		cfg.FetchWorkers = defaultFetchWorkers
	}
	if health == nil {
		health = NewSyncHealth(DefaultUnhealthyThreshold, DefaultDegradedLatencyThreshold)
	}
	return &Pipeline{
		cfg:    cfg,
		deps:   deps,
		health: health,
		logger: logger.With("component", "pipeline"),
	}
}

func (p *Pipeline) Health() *SyncHealth {
	return p.health
}

// FetchTransactions fetches and stores the transactions of address between
// startTS and endTS (unix seconds), extending what was fetched before.
//
// Without a stored query range the history is walked backwards from the
// newest entry. When the stored range does not reach genesis, the walk goes
// backwards from the oldest stored transaction and then forwards from the
// newest one. Otherwise only the forward walk runs.
//
// A remote failure ends the fetch early and is logged, not returned; batches
// stored before it are kept. That covers the zkSync Lite API and the
// Ethereum node consulted while resolving tokens.
func (p *Pipeline) FetchTransactions(ctx context.Context, address common.Address, startTS, endTS int64) error {
	ctx, span := tracing.Tracer("pipeline").Start(ctx, "pipeline.fetch_transactions")
	defer span.End()
	span.SetAttributes(
		attribute.String("address", address.Hex()),
		attribute.Int64("start_ts", startTS),
		attribute.Int64("end_ts", endTS),
	)

	err := p.fetchTransactions(ctx, address, startTS, endTS)
	if isRemoteFailure(err) {
		p.logger.Error("failed to query zksync lite transactions",
			"address", address.Hex(),
			"error", err,
		)
		span.RecordError(err)
		return nil
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "fetch transactions failed")
	}
	return err
}

func isRemoteFailure(err error) bool {
	return api.IsRemoteError(err) || errors.Is(err, rpc.ErrUnavailable)
}

func (p *Pipeline) fetchTransactions(ctx context.Context, address common.Address, startTS, endTS int64) error {
	location := model.QueryRangeLocation(address)
	existing, err := p.deps.RangeRepo.Get(ctx, location)
	if err != nil {
		return fmt.Errorf("get query range %s: %w", location, err)
	}

	session := make(map[string]struct{})
	if existing == nil {
		return p.walk(ctx, session, address, model.DirectionOlder, model.LatestCursor, startTS, endTS)
	}

	oldest, newest, err := p.deps.TxRepo.Boundaries(ctx, address)
	if err != nil {
		return fmt.Errorf("get stored boundaries of %s: %w", address.Hex(), err)
	}
	minHash, minTS := model.LatestCursor, startTS
	if oldest != nil {
		minHash, minTS = oldest.TxHash, oldest.Timestamp
	}
	maxHash, maxTS := model.LatestCursor, endTS
	if newest != nil {
		maxHash, maxTS = newest.TxHash, newest.Timestamp
	}

	if !existing.ReachesGenesis() {
		if err := p.walk(ctx, session, address, model.DirectionOlder, minHash, startTS, minTS); err != nil {
			return err
		}
	}
	return p.walk(ctx, session, address, model.DirectionNewer, maxHash, maxTS, endTS)
}

// walk pages through one direction, storing each batch and advancing the
// query range to the timestamp of its last transaction. Hashes already seen
// in this fetch session are dropped before storing.
func (p *Pipeline) walk(
	ctx context.Context,
	session map[string]struct{},
	address common.Address,
	direction model.Direction,
	from string,
	startTS, endTS int64,
) error {
	location := model.QueryRangeLocation(address)
	curStart, curEnd := startTS, endTS

	for batch, err := range p.deps.Pager.Pages(ctx, address, direction, from) {
		if err != nil {
			return err
		}
		if len(batch) == 0 {
			continue
		}

		unique := make([]*model.Transaction, 0, len(batch))
		for _, tx := range batch {
			if _, ok := session[tx.TxHash]; ok {
				continue
			}
			session[tx.TxHash] = struct{}{}
			unique = append(unique, tx)
		}
		if redundant := len(batch) - len(unique); redundant > 0 {
			p.logger.Debug("dropped redundant zksync lite transactions",
				"address", address.Hex(),
				"redundant", redundant,
			)
		}

		last := batch[len(batch)-1]
		if direction == model.DirectionOlder {
			curStart = last.Timestamp
		} else {
			curEnd = last.Timestamp
		}

		if _, err := p.deps.Ingester.Ingest(ctx, location, unique, &model.QueryRange{Start: curStart, End: curEnd}); err != nil {
			return fmt.Errorf("store batch of %s: %w", address.Hex(), err)
		}
		metrics.PipelineQueryRangeStart.Set(float64(curStart))
	}
	return nil
}

// QuerySingleTransaction fetches, stores and returns one transaction by
// hash. It returns nil without error when the entry is skipped by the
// normalizer, for example because it is not finalized yet.
func (p *Pipeline) QuerySingleTransaction(ctx context.Context, txHash string, concerning common.Address) (*model.Transaction, error) {
	raw, err := p.deps.Remote.TransactionData(ctx, txHash)
	if err != nil {
		return nil, err
	}
	envelope, err := api.DecodeEnvelope(raw)
	if err != nil {
		return nil, fmt.Errorf("decode transaction %s: %w", txHash, err)
	}
	tx, err := p.deps.Normalizer.Normalize(ctx, envelope, concerning)
	if err != nil {
		if normalizer.IsSkippable(err) {
			return nil, nil
		}
		return nil, err
	}
	if _, err := p.deps.Ingester.Ingest(ctx, model.QueryRangeLocation(concerning), []*model.Transaction{tx}, nil); err != nil {
		return nil, fmt.Errorf("store transaction %s: %w", txHash, err)
	}
	return tx, nil
}

// DecodeUndecoded decodes every stored transaction not decoded yet, or every
// stored transaction when forceRedecode is set.
func (p *Pipeline) DecodeUndecoded(ctx context.Context, forceRedecode bool) (int, error) {
	return p.deps.Decoder.DecodeUndecoded(ctx, forceRedecode)
}

// QueryBalances returns the finalized balances of each address valued in
// USD. Balances whose symbol is unknown or whose price cannot be fetched are
// logged and left out.
func (p *Pipeline) QueryBalances(ctx context.Context, addresses []common.Address) (map[common.Address][]model.Balance, error) {
	result := make(map[common.Address][]model.Balance, len(addresses))
	for _, address := range addresses {
		account, err := p.deps.Remote.Account(ctx, address.Hex())
		if err != nil {
			return nil, err
		}
		if account.Finalized == nil {
			return nil, &api.RemoteError{
				URL: "accounts/" + address.Hex(),
				Msg: "account response has no finalized state",
			}
		}

		balances := make([]model.Balance, 0, len(account.Finalized.Balances))
		for symbol, rawAmount := range account.Finalized.Balances {
			balance, ok, err := p.balance(ctx, address, symbol, rawAmount)
			if err != nil {
				return nil, err
			}
			if ok {
				balances = append(balances, balance)
			}
		}
		sort.Slice(balances, func(i, j int) bool {
			return balances[i].Asset.Symbol < balances[j].Asset.Symbol
		})
		result[address] = balances
	}
	return result, nil
}

func (p *Pipeline) balance(ctx context.Context, address common.Address, symbol, rawAmount string) (model.Balance, bool, error) {
	asset, ok, err := p.deps.Tokens.ResolveBySymbol(ctx, symbol)
	if err != nil {
		return model.Balance{}, false, fmt.Errorf("resolve symbol %s: %w", symbol, err)
	}
	if !ok {
		p.logger.Error("unknown zksync lite asset symbol in balances",
			"address", address.Hex(),
			"symbol", symbol,
		)
		return model.Balance{}, false, nil
	}
	raw, ok := model.ParseRawAmount(rawAmount)
	if !ok {
		p.logger.Error("malformed zksync lite balance",
			"address", address.Hex(),
			"symbol", symbol,
			"amount", rawAmount,
		)
		return model.Balance{}, false, nil
	}
	price, err := p.deps.Prices.USDPrice(ctx, asset)
	if err != nil {
		p.logger.Error("failed to query usd price",
			"asset", asset.Identifier,
			"error", err,
		)
		return model.Balance{}, false, nil
	}
	amount := asset.NormalizeAmount(raw)
	return model.Balance{
		Asset:    asset,
		Amount:   amount,
		USDValue: amount.Mul(price),
	}, true, nil
}

// Sync fetches the history of every address up to now, FetchWorkers at a
// time, and decodes whatever is still undecoded afterwards. A failing
// address does not stop the others.
func (p *Pipeline) Sync(ctx context.Context, addresses []common.Address, now time.Time) error {
	ctx, span := tracing.Tracer("pipeline").Start(ctx, "pipeline.sync")
	defer span.End()
	span.SetAttributes(attribute.Int("addresses", len(addresses)))

	start := time.Now()
	endTS := now.Unix()

	var g errgroup.Group
	g.SetLimit(p.cfg.FetchWorkers)
	for _, address := range addresses {
		g.Go(func() (err error) {
			defer func() {
				if r := recover(); r != nil {
					err = fmt.Errorf("fetch %s panic: %v\n%s", address.Hex(), r, debug.Stack())
				}
			}()
			if err := p.FetchTransactions(ctx, address, 0, endTS); err != nil {
				return fmt.Errorf("fetch %s: %w", address.Hex(), err)
			}
			return nil
		})
	}
	fetchErr := g.Wait()

	decoded, decodeErr := p.DecodeUndecoded(ctx, false)
	if decodeErr != nil {
		decodeErr = fmt.Errorf("decode undecoded: %w", decodeErr)
	}

	elapsed := time.Since(start)
	metrics.PipelineSyncLatency.Observe(elapsed.Seconds())

	if err := errors.Join(fetchErr, decodeErr); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "sync failed")
		if p.health.RecordFailure(err) {
			p.logger.Error("sync became unhealthy", "error", err)
			snap := p.health.Snapshot()
			p.notify(ctx, alert.Alert{
				Type:    alert.AlertTypeUnhealthy,
				Source:  "pipeline",
				Title:   "zkSync Lite sync unhealthy",
				Message: err.Error(),
				Fields: map[string]string{
					"consecutive_failures": fmt.Sprint(snap.ConsecutiveFailures),
					"addresses":            fmt.Sprint(len(addresses)),
				},
			})
		}
		return err
	}

	if p.health.RecordSuccess(elapsed) {
		p.logger.Info("sync recovered")
		p.notify(ctx, alert.Alert{
			Type:    alert.AlertTypeRecovery,
			Source:  "pipeline",
			Title:   "zkSync Lite sync recovered",
			Message: fmt.Sprintf("sync of %d addresses completed in %s", len(addresses), elapsed.Round(time.Millisecond)),
		})
	}
	p.logger.Info("sync complete",
		"addresses", len(addresses),
		"decoded", decoded,
		"elapsed", elapsed,
	)
	return nil
}

// notify delivers a to the alerter even when ctx has already expired, which
// is the usual case right after a timed-out cycle.
func (p *Pipeline) notify(ctx context.Context, a alert.Alert) {
	if p.deps.Alerter == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), alertTimeout)
	defer cancel()
	if err := p.deps.Alerter.Send(ctx, a); err != nil {
		p.logger.Warn("alert delivery failed", "type", a.Type, "error", err)
	}
}
