package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/emperorhan/zklite-indexer/internal/domain/model"
	"github.com/ethereum/go-ethereum/common"
)

type TokenRepo struct {
	db *DB
}

func NewTokenRepo(db *DB) *TokenRepo {
	return &TokenRepo{db: db}
}

// FindByAddress returns the asset deployed at address, or nil when unknown.
func (r *TokenRepo) FindByAddress(ctx context.Context, address common.Address) (*model.Asset, error) {
	ctx, cancel := withTimeout(ctx, DefaultQueryTimeout)
	defer cancel()

	var (
		a    model.Asset
		addr sql.NullString
	)
	err := r.db.QueryRowContext(ctx, `
		SELECT identifier, address, symbol, name, decimals
		FROM tokens
		WHERE address = $1
	`, address.Hex()).Scan(&a.Identifier, &addr, &a.Symbol, &a.Name, &a.Decimals)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find token by address: %w", err)
	}
	a.Address = addressPtr(addr)
	return &a, nil
}

// Upsert inserts the asset or refreshes its metadata.
func (r *TokenRepo) Upsert(ctx context.Context, asset *model.Asset) error {
	ctx, cancel := withTimeout(ctx, DefaultQueryTimeout)
	defer cancel()

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO tokens (identifier, address, symbol, name, decimals)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (identifier) DO UPDATE SET
			symbol = EXCLUDED.symbol,
			name = EXCLUDED.name,
			decimals = EXCLUDED.decimals,
			updated_at = now()
	`, asset.Identifier, nullAddress(asset.Address), asset.Symbol, asset.Name, asset.Decimals)
	if err != nil {
		return fmt.Errorf("upsert token %s: %w", asset.Identifier, err)
	}
	return nil
}
