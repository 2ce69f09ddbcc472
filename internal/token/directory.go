package token

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/emperorhan/zklite-indexer/internal/chain/zksynclite/api"
	"github.com/emperorhan/zklite-indexer/internal/domain/model"
	"github.com/emperorhan/zklite-indexer/internal/metrics"
	"github.com/ethereum/go-ethereum/common"
)

// Lister pages through the zkSync Lite token listing.
type Lister interface {
	Tokens(ctx context.Context, fromID int64, limit int) (*api.TokensPage, error)
}

// Directory maps zkSync Lite token ids and symbols to assets.
//
// The mapping is built on the first lookup by walking the whole token
// listing and is then served from memory. With a zero refresh interval it
// is never rebuilt; otherwise the next lookup after the interval rebuilds it.
// A failed build leaves the previous mapping (or none) in place. A failed
// refresh is retried only after another full interval.
type Directory struct {
	lister          Lister
	resolver        Resolver
	pageLimit       int
	refreshInterval time.Duration
	nowFn           func() time.Time
	logger          *slog.Logger

	mu          sync.Mutex
	byID        map[int64]model.Asset
	bySymbol    map[string]model.Asset
	populatedAt time.Time
}

type DirectoryConfig struct {
	PageLimit       int
	RefreshInterval time.Duration
}

// NewDirectory creates an empty Directory. It is populated on first use.
func NewDirectory(lister Lister, resolver Resolver, cfg DirectoryConfig, logger *slog.Logger) *Directory {
	if cfg.PageLimit <= 0 {
		cfg.PageLimit = api.DefaultPageLimit
	}
	return &Directory{
		lister:          lister,
		resolver:        resolver,
		pageLimit:       cfg.PageLimit,
		refreshInterval: cfg.RefreshInterval,
		nowFn:           time.Now,
		logger:          logger.With("component", "token_directory"),
	}
}

// ResolveByID returns the asset registered under a zkSync Lite token id.
// The error is non-nil only when the mapping could not be built.
func (d *Directory) ResolveByID(ctx context.Context, id int64) (model.Asset, bool, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.ensurePopulated(ctx); err != nil {
		return model.Asset{}, false, err
	}
	asset, ok := d.byID[id]
	return asset, ok, nil
}

// ResolveBySymbol returns the asset registered under an API token symbol.
func (d *Directory) ResolveBySymbol(ctx context.Context, symbol string) (model.Asset, bool, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.ensurePopulated(ctx); err != nil {
		return model.Asset{}, false, err
	}
	asset, ok := d.bySymbol[symbol]
	return asset, ok, nil
}

func (d *Directory) ensurePopulated(ctx context.Context) error {
	if d.byID != nil {
		if d.refreshInterval <= 0 || d.nowFn().Sub(d.populatedAt) < d.refreshInterval {
			return nil
		}
	}
	byID, bySymbol, err := d.build(ctx)
	if err != nil {
		if d.byID != nil {
			d.populatedAt = d.nowFn()
			d.logger.Warn("token mapping refresh failed, keeping previous mapping", "error", err)
			return nil
		}
		return err
	}
	d.byID = byID
	d.bySymbol = bySymbol
	d.populatedAt = d.nowFn()
	metrics.TokenDirectorySize.Set(float64(len(byID)))
	metrics.TokenDirectoryPopulations.Inc()
	d.logger.Info("token mapping populated", "tokens", len(byID))
	return nil
}

func (d *Directory) build(ctx context.Context) (map[int64]model.Asset, map[string]model.Asset, error) {
	byID := make(map[int64]model.Asset)
	bySymbol := make(map[string]model.Asset)

	var fromID int64
	for first := true; ; first = false {
		page, err := d.lister.Tokens(ctx, fromID, d.pageLimit)
		if err != nil {
			return nil, nil, err
		}

		rows := page.List
		// The from cursor is inclusive, so every later page repeats the previous last row.
		if !first && len(rows) > 0 {
			rows = rows[1:]
		}
		for _, entry := range rows {
			asset, ok, err := d.resolveEntry(ctx, entry)
			if err != nil {
				return nil, nil, err
			}
			if !ok {
				continue
			}
			byID[entry.ID] = asset
			bySymbol[entry.Symbol] = asset
		}

		if len(page.List) < d.pageLimit {
			return byID, bySymbol, nil
		}
		fromID = page.List[len(page.List)-1].ID
	}
}

func (d *Directory) resolveEntry(ctx context.Context, entry api.Token) (model.Asset, bool, error) {
	if entry.Symbol == "" || !common.IsHexAddress(entry.Address) {
		d.logger.Error("token entry failed to be parsed",
			"token_id", entry.ID,
			"symbol", entry.Symbol,
			"address", entry.Address,
		)
		metrics.TokensSkipped.WithLabelValues("invalid_entry").Inc()
		return model.Asset{}, false, nil
	}

	address := common.HexToAddress(entry.Address)
	if address == (common.Address{}) {
		return model.NativeAsset(), true, nil
	}

	asset, err := d.resolver.ResolveOrCreate(ctx, address)
	if err != nil {
		if errors.Is(err, ErrNotConformant) {
			d.logger.Warn("token is unknown and will be ignored",
				"token_id", entry.ID,
				"address", address.Hex(),
				"error", err,
			)
			metrics.TokensSkipped.WithLabelValues("not_conformant").Inc()
			return model.Asset{}, false, nil
		}
		return model.Asset{}, false, err
	}
	return asset, true, nil
}
