package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/emperorhan/zklite-indexer/internal/domain/model"
	"github.com/emperorhan/zklite-indexer/internal/store"
	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type TransactionRepo struct {
	db *DB
}

func NewTransactionRepo(db *DB) *TransactionRepo {
	return &TransactionRepo{db: db}
}

// InsertTx stores t and returns the new row id. A hash that is already
// stored yields store.ErrDuplicateTransaction without aborting tx.
func (r *TransactionRepo) InsertTx(ctx context.Context, tx *sql.Tx, t *model.Transaction) (uuid.UUID, error) {
	var fee decimal.NullDecimal
	if t.Fee != nil {
		fee = decimal.NewNullDecimal(*t.Fee)
	}

	var id uuid.UUID
	err := tx.QueryRowContext(ctx, `
		INSERT INTO zksynclite_transactions (tx_hash, type, ts, block_number, from_address, to_address, asset, amount, fee, is_decoded)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (tx_hash) DO NOTHING
		RETURNING id
	`, t.TxHash, t.Type, t.Timestamp, t.BlockNumber,
		nullAddress(t.From), nullAddress(t.To),
		t.Asset.Identifier, t.Amount, fee, t.IsDecoded,
	).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return uuid.Nil, fmt.Errorf("insert transaction %s: %w", t.TxHash, store.ErrDuplicateTransaction)
	}
	if err != nil {
		return uuid.Nil, fmt.Errorf("insert transaction %s: %w", t.TxHash, err)
	}
	return id, nil
}

func (r *TransactionRepo) InsertSwapLegsTx(ctx context.Context, tx *sql.Tx, txID uuid.UUID, legs model.SwapLegs) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO zksynclite_swaps (tx_id, from_asset, from_amount, to_asset, to_amount)
		VALUES ($1, $2, $3, $4, $5)
	`, txID, legs.Sell.Asset.Identifier, legs.Sell.Amount, legs.Buy.Asset.Identifier, legs.Buy.Amount)
	if err != nil {
		return fmt.Errorf("insert swap legs: %w", err)
	}
	return nil
}

const transactionSelect = `
	SELECT t.id, t.tx_hash, t.type, t.ts, t.block_number, t.from_address, t.to_address,
	       t.asset, a.address, a.symbol, a.name, a.decimals,
	       t.amount, t.fee, t.is_decoded,
	       s.from_asset, sa.address, sa.symbol, sa.name, sa.decimals, s.from_amount,
	       s.to_asset, ba.address, ba.symbol, ba.name, ba.decimals, s.to_amount
	FROM zksynclite_transactions t
	LEFT JOIN tokens a ON a.identifier = t.asset
	LEFT JOIN zksynclite_swaps s ON s.tx_id = t.id
	LEFT JOIN tokens sa ON sa.identifier = s.from_asset
	LEFT JOIN tokens ba ON ba.identifier = s.to_asset`

// Query returns stored transactions matching filter, oldest first, with
// their assets and swap legs resolved.
func (r *TransactionRepo) Query(ctx context.Context, filter model.TransactionFilter) ([]*model.Transaction, error) {
	ctx, cancel := withTimeout(ctx, DefaultQueryTimeout)
	defer cancel()

	var (
		conds []string
		args  []any
	)
	if filter.OnlyUndecoded {
		conds = append(conds, "NOT t.is_decoded")
	}
	if filter.Address != nil {
		args = append(args, filter.Address.Hex())
		conds = append(conds, fmt.Sprintf("(t.from_address = $%d OR t.to_address = $%d)", len(args), len(args)))
	}
	if filter.TxHash != "" {
		args = append(args, filter.TxHash)
		conds = append(conds, fmt.Sprintf("t.tx_hash = $%d", len(args)))
	}

	var sb strings.Builder
	sb.WriteString(transactionSelect)
	if len(conds) > 0 {
		sb.WriteString("\n\tWHERE ")
		sb.WriteString(strings.Join(conds, " AND "))
	}
	sb.WriteString("\n\tORDER BY t.ts, t.tx_hash")

	rows, err := r.db.QueryContext(ctx, sb.String(), args...)
	if err != nil {
		return nil, fmt.Errorf("query transactions: %w", err)
	}
	defer rows.Close()

	var result []*model.Transaction
	for rows.Next() {
		t, err := scanTransaction(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("query transactions rows: %w", err)
	}
	return result, nil
}

type assetColumns struct {
	identifier sql.NullString
	address    sql.NullString
	symbol     sql.NullString
	name       sql.NullString
	decimals   sql.NullInt64
}

func (c assetColumns) asset() model.Asset {
	if c.identifier.String == model.NativeAssetIdentifier && !c.symbol.Valid {
		return model.NativeAsset()
	}
	return model.Asset{
		Identifier: c.identifier.String,
		Address:    addressPtr(c.address),
		Symbol:     c.symbol.String,
		Name:       c.name.String,
		Decimals:   int(c.decimals.Int64),
	}
}

func scanTransaction(rows *sql.Rows) (*model.Transaction, error) {
	var (
		t                     model.Transaction
		from, to              sql.NullString
		asset                 assetColumns
		fee                   decimal.NullDecimal
		sell, buy             assetColumns
		sellAmount, buyAmount decimal.NullDecimal
	)
	if err := rows.Scan(
		&t.ID, &t.TxHash, &t.Type, &t.Timestamp, &t.BlockNumber, &from, &to,
		&asset.identifier, &asset.address, &asset.symbol, &asset.name, &asset.decimals,
		&t.Amount, &fee, &t.IsDecoded,
		&sell.identifier, &sell.address, &sell.symbol, &sell.name, &sell.decimals, &sellAmount,
		&buy.identifier, &buy.address, &buy.symbol, &buy.name, &buy.decimals, &buyAmount,
	); err != nil {
		return nil, fmt.Errorf("scan transaction: %w", err)
	}

	t.From = addressPtr(from)
	t.To = addressPtr(to)
	t.Asset = asset.asset()
	if fee.Valid {
		f := fee.Decimal
		t.Fee = &f
	}
	if sell.identifier.Valid {
		t.Swap = &model.SwapLegs{
			Sell: model.SwapLeg{Asset: sell.asset(), Amount: sellAmount.Decimal},
			Buy:  model.SwapLeg{Asset: buy.asset(), Amount: buyAmount.Decimal},
		}
	}
	return &t, nil
}

// Boundaries returns the oldest and newest stored transaction touching
// address. Both are nil when nothing is stored.
func (r *TransactionRepo) Boundaries(ctx context.Context, address common.Address) (*model.TransactionRef, *model.TransactionRef, error) {
	oldest, err := r.boundary(ctx, address, "ASC")
	if err != nil {
		return nil, nil, err
	}
	newest, err := r.boundary(ctx, address, "DESC")
	if err != nil {
		return nil, nil, err
	}
	return oldest, newest, nil
}

func (r *TransactionRepo) boundary(ctx context.Context, address common.Address, order string) (*model.TransactionRef, error) {
	ctx, cancel := withTimeout(ctx, DefaultQueryTimeout)
	defer cancel()

	var ref model.TransactionRef
	err := r.db.QueryRowContext(ctx, `
		SELECT tx_hash, ts
		FROM zksynclite_transactions
		WHERE from_address = $1 OR to_address = $1
		ORDER BY ts `+order+`, tx_hash `+order+`
		LIMIT 1
	`, address.Hex()).Scan(&ref.TxHash, &ref.Timestamp)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query transaction boundary: %w", err)
	}
	return &ref, nil
}

func (r *TransactionRepo) SetDecodedTx(ctx context.Context, tx *sql.Tx, txHash string) error {
	if _, err := tx.ExecContext(ctx, `
		UPDATE zksynclite_transactions SET is_decoded = true WHERE tx_hash = $1
	`, txHash); err != nil {
		return fmt.Errorf("set decoded %s: %w", txHash, err)
	}
	return nil
}
