package token

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/emperorhan/zklite-indexer/internal/domain/model"
	"github.com/emperorhan/zklite-indexer/internal/store"
	"github.com/ethereum/go-ethereum/common"
	lru "github.com/hashicorp/golang-lru/v2"
)

const defaultRegistryCacheSize = 4096

// Resolver resolves an L1 token contract to its asset identity, creating it
// on first sight.
type Resolver interface {
	ResolveOrCreate(ctx context.Context, address common.Address) (model.Asset, error)
}

type metadataSource interface {
	Inspect(ctx context.Context, address common.Address) (model.Asset, error)
}

// Registry looks tokens up in memory, then in the tokens table, and finally
// inspects the contract on chain and stores what it finds.
type Registry struct {
	repo      store.TokenRepository
	inspector metadataSource
	cache     *lru.Cache[common.Address, model.Asset]
	logger    *slog.Logger
}

// NewRegistry creates a Registry caching up to cacheSize assets in memory.
func NewRegistry(repo store.TokenRepository, inspector metadataSource, cacheSize int, logger *slog.Logger) (*Registry, error) {
	if cacheSize <= 0 {
		cacheSize = defaultRegistryCacheSize
	}
	cache, err := lru.New[common.Address, model.Asset](cacheSize)
	if err != nil {
		return nil, fmt.Errorf("create token cache: %w", err)
	}
	return &Registry{
		repo:      repo,
		inspector: inspector,
		cache:     cache,
		logger:    logger.With("component", "token_registry"),
	}, nil
}

// ResolveOrCreate returns ErrNotConformant (wrapped) for contracts that do
// not expose ERC20 metadata.
func (r *Registry) ResolveOrCreate(ctx context.Context, address common.Address) (model.Asset, error) {
	if asset, ok := r.cache.Get(address); ok {
		return asset, nil
	}

	stored, err := r.repo.FindByAddress(ctx, address)
	if err != nil {
		return model.Asset{}, fmt.Errorf("find token %s: %w", address.Hex(), err)
	}
	if stored != nil {
		r.cache.Add(address, *stored)
		return *stored, nil
	}

	asset, err := r.inspector.Inspect(ctx, address)
	if err != nil {
		return model.Asset{}, err
	}
	if err := r.repo.Upsert(ctx, &asset); err != nil {
		return model.Asset{}, fmt.Errorf("store token %s: %w", address.Hex(), err)
	}
	r.logger.Info("registered new token",
		"identifier", asset.Identifier,
		"symbol", asset.Symbol,
		"decimals", asset.Decimals,
	)
	r.cache.Add(address, asset)
	return asset, nil
}
