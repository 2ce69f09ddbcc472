package store

import (
	"context"
	"database/sql"
	"errors"

	"github.com/emperorhan/zklite-indexer/internal/domain/model"
	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"
)

// ErrDuplicateTransaction is returned when a transaction hash is already stored.
var ErrDuplicateTransaction = errors.New("transaction already stored")

// TxBeginner abstracts the ability to begin a database transaction.
type TxBeginner interface {
	BeginTx(ctx context.Context, opts *sql.TxOptions) (*sql.Tx, error)
}

// TransactionRepository provides access to normalized zkSync Lite transactions.
type TransactionRepository interface {
	// InsertTx stores t and returns its storage id, or ErrDuplicateTransaction.
	InsertTx(ctx context.Context, tx *sql.Tx, t *model.Transaction) (uuid.UUID, error)
	InsertSwapLegsTx(ctx context.Context, tx *sql.Tx, txID uuid.UUID, legs model.SwapLegs) error
	Query(ctx context.Context, filter model.TransactionFilter) ([]*model.Transaction, error)
	// Boundaries returns the oldest and newest stored transaction touching address.
	Boundaries(ctx context.Context, address common.Address) (oldest, newest *model.TransactionRef, err error)
	SetDecodedTx(ctx context.Context, tx *sql.Tx, txHash string) error
}

// QueryRangeRepository tracks the time range already fetched per location.
type QueryRangeRepository interface {
	Get(ctx context.Context, location string) (*model.QueryRange, error)
	// UpdateTx widens the stored range so it covers r.
	UpdateTx(ctx context.Context, tx *sql.Tx, location string, r model.QueryRange) error
}

// LedgerEventRepository stores decoded history events.
type LedgerEventRepository interface {
	DeleteByIdentifierTx(ctx context.Context, tx *sql.Tx, eventIdentifier string) (int64, error)
	BulkInsertTx(ctx context.Context, tx *sql.Tx, events []model.LedgerEvent) error
	ListByIdentifier(ctx context.Context, eventIdentifier string) ([]model.LedgerEvent, error)
}

// TokenRepository provides access to known asset identities.
type TokenRepository interface {
	FindByAddress(ctx context.Context, address common.Address) (*model.Asset, error)
	Upsert(ctx context.Context, asset *model.Asset) error
}

// WatchedAddressRepository provides access to tracked addresses.
type WatchedAddressRepository interface {
	GetActive(ctx context.Context) ([]model.WatchedAddress, error)
	Upsert(ctx context.Context, addr *model.WatchedAddress) error
	// Deactivate stops tracking address and reports whether it was active.
	Deactivate(ctx context.Context, address string) (bool, error)
}
