package postgres

import (
	"context"
	"fmt"

	"github.com/emperorhan/zklite-indexer/internal/domain/model"
)

// WatchedAddressRepo stores the addresses the sync loop fetches and the
// decoder treats as tracked. Addresses are kept in checksum form.
type WatchedAddressRepo struct {
	db *DB
}

func NewWatchedAddressRepo(db *DB) *WatchedAddressRepo {
	return &WatchedAddressRepo{db: db}
}

func (r *WatchedAddressRepo) GetActive(ctx context.Context) ([]model.WatchedAddress, error) {
	ctx, cancel := withTimeout(ctx, DefaultQueryTimeout)
	defer cancel()

	rows, err := r.db.QueryContext(ctx, `
		SELECT id, address, label, is_active, source, created_at, updated_at
		FROM watched_addresses
		WHERE is_active
		ORDER BY created_at, address
	`)
	if err != nil {
		return nil, fmt.Errorf("query watched addresses: %w", err)
	}
	defer rows.Close()

	var addresses []model.WatchedAddress
	for rows.Next() {
		var a model.WatchedAddress
		if err := rows.Scan(
			&a.ID, &a.Address, &a.Label,
			&a.IsActive, &a.Source, &a.CreatedAt, &a.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan watched address: %w", err)
		}
		addresses = append(addresses, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("query watched addresses rows: %w", err)
	}
	return addresses, nil
}

// Upsert inserts addr or reactivates it. A nil label keeps the stored one;
// the original source is never overwritten.
func (r *WatchedAddressRepo) Upsert(ctx context.Context, addr *model.WatchedAddress) error {
	ctx, cancel := withTimeout(ctx, DefaultQueryTimeout)
	defer cancel()

	if _, err := r.db.ExecContext(ctx, `
		INSERT INTO watched_addresses (address, label, is_active, source)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (address) DO UPDATE SET
			label      = COALESCE(EXCLUDED.label, watched_addresses.label),
			is_active  = EXCLUDED.is_active,
			updated_at = now()
	`, addr.Address, addr.Label, addr.IsActive, addr.Source); err != nil {
		return fmt.Errorf("upsert watched address %s: %w", addr.Address, err)
	}
	return nil
}

func (r *WatchedAddressRepo) Deactivate(ctx context.Context, address string) (bool, error) {
	ctx, cancel := withTimeout(ctx, DefaultQueryTimeout)
	defer cancel()

	res, err := r.db.ExecContext(ctx, `
		UPDATE watched_addresses
		SET is_active = false, updated_at = now()
		WHERE address = $1 AND is_active
	`, address)
	if err != nil {
		return false, fmt.Errorf("deactivate watched address %s: %w", address, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("deactivate watched address rows affected: %w", err)
	}
	return n > 0, nil
}
