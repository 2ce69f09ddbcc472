package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/emperorhan/zklite-indexer/internal/domain/model"
)

type QueryRangeRepo struct {
	db *DB
}

func NewQueryRangeRepo(db *DB) *QueryRangeRepo {
	return &QueryRangeRepo{db: db}
}

// Get returns the stored range of location, or nil when none is stored.
func (r *QueryRangeRepo) Get(ctx context.Context, location string) (*model.QueryRange, error) {
	ctx, cancel := withTimeout(ctx, DefaultQueryTimeout)
	defer cancel()

	var qr model.QueryRange
	err := r.db.QueryRowContext(ctx, `
		SELECT start_ts, end_ts FROM used_query_ranges WHERE name = $1
	`, location).Scan(&qr.Start, &qr.End)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get query range %s: %w", location, err)
	}
	return &qr, nil
}

// UpdateTx merges rng into the stored range of location, only ever
// widening it.
func (r *QueryRangeRepo) UpdateTx(ctx context.Context, tx *sql.Tx, location string, rng model.QueryRange) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO used_query_ranges (name, start_ts, end_ts)
		VALUES ($1, $2, $3)
		ON CONFLICT (name) DO UPDATE SET
			start_ts = LEAST(used_query_ranges.start_ts, EXCLUDED.start_ts),
			end_ts = GREATEST(used_query_ranges.end_ts, EXCLUDED.end_ts),
			updated_at = now()
	`, location, rng.Start, rng.End)
	if err != nil {
		return fmt.Errorf("update query range %s: %w", location, err)
	}
	return nil
}
