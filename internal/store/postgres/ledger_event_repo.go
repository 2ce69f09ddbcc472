package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/emperorhan/zklite-indexer/internal/domain/model"
)

const ledgerEventColumns = 12

type LedgerEventRepo struct {
	db *DB
}

func NewLedgerEventRepo(db *DB) *LedgerEventRepo {
	return &LedgerEventRepo{db: db}
}

func (r *LedgerEventRepo) DeleteByIdentifierTx(ctx context.Context, tx *sql.Tx, eventIdentifier string) (int64, error) {
	res, err := tx.ExecContext(ctx, `
		DELETE FROM history_events WHERE event_identifier = $1
	`, eventIdentifier)
	if err != nil {
		return 0, fmt.Errorf("delete history events %s: %w", eventIdentifier, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("delete history events rows affected: %w", err)
	}
	return n, nil
}

func (r *LedgerEventRepo) BulkInsertTx(ctx context.Context, tx *sql.Tx, events []model.LedgerEvent) error {
	if len(events) == 0 {
		return nil
	}

	var sb strings.Builder
	sb.WriteString(`
		INSERT INTO history_events (
			event_identifier, sequence_index, tx_hash, timestamp_ms, location, type, subtype,
			asset, amount, location_label, address, notes
		) VALUES `)

	args := make([]any, 0, len(events)*ledgerEventColumns)
	for i, e := range events {
		if i > 0 {
			sb.WriteString(", ")
		}
		sb.WriteString("(")
		for c := 1; c <= ledgerEventColumns; c++ {
			if c > 1 {
				sb.WriteString(", ")
			}
			fmt.Fprintf(&sb, "$%d", i*ledgerEventColumns+c)
		}
		sb.WriteString(")")
		args = append(args,
			e.EventIdentifier, e.SequenceIndex, e.TxHash, e.TimestampMS, e.Location, e.Type, e.Subtype,
			e.Asset.Identifier, e.Amount, e.LocationLabel.Hex(), nullAddress(e.Counterparty), e.Notes,
		)
	}

	if _, err := tx.ExecContext(ctx, sb.String(), args...); err != nil {
		return fmt.Errorf("bulk insert history events: %w", err)
	}
	return nil
}

// ListByIdentifier returns the events of one transaction in sequence order.
func (r *LedgerEventRepo) ListByIdentifier(ctx context.Context, eventIdentifier string) ([]model.LedgerEvent, error) {
	ctx, cancel := withTimeout(ctx, DefaultQueryTimeout)
	defer cancel()

	rows, err := r.db.QueryContext(ctx, `
		SELECT e.event_identifier, e.sequence_index, e.tx_hash, e.timestamp_ms, e.location, e.type, e.subtype,
		       e.asset, a.address, a.symbol, a.name, a.decimals,
		       e.amount, e.location_label, e.address, e.notes
		FROM history_events e
		LEFT JOIN tokens a ON a.identifier = e.asset
		WHERE e.event_identifier = $1
		ORDER BY e.sequence_index
	`, eventIdentifier)
	if err != nil {
		return nil, fmt.Errorf("list history events: %w", err)
	}
	defer rows.Close()

	var events []model.LedgerEvent
	for rows.Next() {
		var (
			e                   model.LedgerEvent
			asset               assetColumns
			label, counterparty sql.NullString
		)
		if err := rows.Scan(
			&e.EventIdentifier, &e.SequenceIndex, &e.TxHash, &e.TimestampMS, &e.Location, &e.Type, &e.Subtype,
			&asset.identifier, &asset.address, &asset.symbol, &asset.name, &asset.decimals,
			&e.Amount, &label, &counterparty, &e.Notes,
		); err != nil {
			return nil, fmt.Errorf("scan history event: %w", err)
		}
		e.Asset = asset.asset()
		if a := addressPtr(label); a != nil {
			e.LocationLabel = *a
		}
		e.Counterparty = addressPtr(counterparty)
		events = append(events, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list history events rows: %w", err)
	}
	return events, nil
}
