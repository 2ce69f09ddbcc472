package decoder

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"log/slog"
	"testing"

	"github.com/emperorhan/zklite-indexer/internal/domain/model"
	storemocks "github.com/emperorhan/zklite-indexer/internal/store/mocks"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

// fakeDriver / fakeConn / fakeTxImpl provide a minimal sql.Driver
// so we can call BeginTx and get a real *sql.Tx for testing.
type fakeDriver struct{}
type fakeConn struct{}
type fakeTxImpl struct{}

func (d *fakeDriver) Open(name string) (driver.Conn, error) { return &fakeConn{}, nil }
func (c *fakeConn) Prepare(query string) (driver.Stmt, error) {
	return nil, errors.New("not implemented")
}
func (c *fakeConn) Close() error              { return nil }
func (c *fakeConn) Begin() (driver.Tx, error) { return &fakeTxImpl{}, nil }
func (tx *fakeTxImpl) Commit() error          { return nil }
func (tx *fakeTxImpl) Rollback() error        { return nil }

func init() {
	sql.Register("fake_decoder", &fakeDriver{})
}

func openFakeDB() *sql.DB {
	db, _ := sql.Open("fake_decoder", "")
	return db
}

type serviceMocks struct {
	db      *storemocks.MockTxBeginner
	txs     *storemocks.MockTransactionRepository
	events  *storemocks.MockLedgerEventRepository
	watched *storemocks.MockWatchedAddressRepository
}

func newServiceMocks(t *testing.T) serviceMocks {
	ctrl := gomock.NewController(t)
	return serviceMocks{
		db:      storemocks.NewMockTxBeginner(ctrl),
		txs:     storemocks.NewMockTransactionRepository(ctrl),
		events:  storemocks.NewMockLedgerEventRepository(ctrl),
		watched: storemocks.NewMockWatchedAddressRepository(ctrl),
	}
}

func (m serviceMocks) expectBeginTx(times int) {
	fakeDB := openFakeDB()
	m.db.EXPECT().BeginTx(gomock.Any(), gomock.Nil()).
		DoAndReturn(func(ctx context.Context, opts *sql.TxOptions) (*sql.Tx, error) {
			return fakeDB.BeginTx(ctx, opts)
		}).Times(times)
}

type recordingNotifier struct {
	calls [][2]int
}

func (r *recordingNotifier) NotifyProgress(_ context.Context, processed, total int) error {
	r.calls = append(r.calls, [2]int{processed, total})
	return nil
}

func TestDecodeTransaction_ReplacesEvents(t *testing.T) {
	m := newServiceMocks(t)
	svc := NewService(m.db, m.txs, m.events, m.watched, slog.Default())

	tx := newTx(model.TxTypeDeposit, addr(alice), addr(alice), eth, "1", nil)
	m.expectBeginTx(2)

	var stored [][]model.LedgerEvent
	gomock.InOrder(
		m.events.EXPECT().DeleteByIdentifierTx(gomock.Any(), gomock.Any(), "zkl"+testHash).Return(int64(0), nil),
		m.events.EXPECT().BulkInsertTx(gomock.Any(), gomock.Any(), gomock.Any()).
			DoAndReturn(func(_ context.Context, _ *sql.Tx, evs []model.LedgerEvent) error {
				stored = append(stored, evs)
				return nil
			}),
		m.txs.EXPECT().SetDecodedTx(gomock.Any(), gomock.Any(), testHash).Return(nil),
		m.events.EXPECT().DeleteByIdentifierTx(gomock.Any(), gomock.Any(), "zkl"+testHash).Return(int64(1), nil),
		m.events.EXPECT().BulkInsertTx(gomock.Any(), gomock.Any(), gomock.Any()).
			DoAndReturn(func(_ context.Context, _ *sql.Tx, evs []model.LedgerEvent) error {
				stored = append(stored, evs)
				return nil
			}),
		m.txs.EXPECT().SetDecodedTx(gomock.Any(), gomock.Any(), testHash).Return(nil),
	)

	for i := 0; i < 2; i++ {
		events, err := svc.DecodeTransaction(context.Background(), tx, NewAddressSet(alice))
		require.NoError(t, err)
		require.Len(t, events, 1)
		assert.Equal(t, model.EventTypeWithdrawal, events[0].Type)
		assert.Equal(t, model.EventSubtypeBridge, events[0].Subtype)
		assert.True(t, dec("1").Equal(events[0].Amount))
	}
	require.Len(t, stored, 2)
	assert.Equal(t, stored[0], stored[1])
}

func TestDecodeTransaction_NoEventsStillMarksDecoded(t *testing.T) {
	m := newServiceMocks(t)
	svc := NewService(m.db, m.txs, m.events, m.watched, slog.Default())

	tx := newTx(model.TxTypeTransfer, addr(alice), addr(bob), eth, "1", nil)
	m.expectBeginTx(1)
	m.events.EXPECT().DeleteByIdentifierTx(gomock.Any(), gomock.Any(), "zkl"+testHash).Return(int64(0), nil)
	m.txs.EXPECT().SetDecodedTx(gomock.Any(), gomock.Any(), testHash).Return(nil)

	events, err := svc.DecodeTransaction(context.Background(), tx, NewAddressSet())
	require.NoError(t, err)
	assert.Empty(t, events)
}

func TestDecodeTransaction_SwapWithoutLegsStaysUndecoded(t *testing.T) {
	m := newServiceMocks(t)
	svc := NewService(m.db, m.txs, m.events, m.watched, slog.Default())

	tx := newTx(model.TxTypeSwap, addr(alice), addr(alice), eth, "0.001", nil)

	_, err := svc.DecodeTransaction(context.Background(), tx, NewAddressSet(alice))
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrMissingSwapLegs)
}

func TestDecodeUndecoded_SkipsSwapWithoutLegs(t *testing.T) {
	m := newServiceMocks(t)
	svc := NewService(m.db, m.txs, m.events, m.watched, slog.Default())

	broken := newTx(model.TxTypeSwap, addr(alice), addr(alice), eth, "0.001", nil)
	broken.TxHash = "0x01"
	deposit := newTx(model.TxTypeDeposit, addr(alice), addr(alice), eth, "1", nil)
	deposit.TxHash = "0x02"

	m.txs.EXPECT().Query(gomock.Any(), model.TransactionFilter{OnlyUndecoded: true}).
		Return([]*model.Transaction{broken, deposit}, nil)
	m.watched.EXPECT().GetActive(gomock.Any()).Return([]model.WatchedAddress{
		{Address: alice.Hex(), IsActive: true},
	}, nil)
	m.expectBeginTx(1)
	m.events.EXPECT().DeleteByIdentifierTx(gomock.Any(), gomock.Any(), "zkl0x02").Return(int64(0), nil)
	m.events.EXPECT().BulkInsertTx(gomock.Any(), gomock.Any(), gomock.Any()).Return(nil)
	m.txs.EXPECT().SetDecodedTx(gomock.Any(), gomock.Any(), "0x02").Return(nil)

	decoded, err := svc.DecodeUndecoded(context.Background(), false)
	require.NoError(t, err)
	assert.Equal(t, 1, decoded)
}

func TestDecodeTransaction_InsertFailureLeavesUndecoded(t *testing.T) {
	m := newServiceMocks(t)
	svc := NewService(m.db, m.txs, m.events, m.watched, slog.Default())

	tx := newTx(model.TxTypeDeposit, addr(alice), addr(alice), eth, "1", nil)
	m.expectBeginTx(1)
	m.events.EXPECT().DeleteByIdentifierTx(gomock.Any(), gomock.Any(), gomock.Any()).Return(int64(0), nil)
	m.events.EXPECT().BulkInsertTx(gomock.Any(), gomock.Any(), gomock.Any()).Return(errors.New("unique violation"))

	_, err := svc.DecodeTransaction(context.Background(), tx, NewAddressSet(alice))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unique violation")
}

func TestDecodeUndecoded_ContinuesPastFailuresAndReportsProgress(t *testing.T) {
	m := newServiceMocks(t)
	notifier := &recordingNotifier{}
	svc := NewService(m.db, m.txs, m.events, m.watched, slog.Default(), WithProgressNotifier(notifier, 2))

	txs := make([]*model.Transaction, 0, 3)
	for _, h := range []string{"0x01", "0x02", "0x03"} {
		tx := newTx(model.TxTypeTransfer, addr(alice), addr(bob), eth, "1", nil)
		tx.TxHash = h
		txs = append(txs, tx)
	}

	m.txs.EXPECT().Query(gomock.Any(), model.TransactionFilter{OnlyUndecoded: true}).Return(txs, nil)
	m.watched.EXPECT().GetActive(gomock.Any()).Return([]model.WatchedAddress{
		{Address: alice.Hex(), IsActive: true},
		{Address: "not-an-address", IsActive: true},
	}, nil)
	m.expectBeginTx(3)

	m.events.EXPECT().DeleteByIdentifierTx(gomock.Any(), gomock.Any(), "zkl0x01").Return(int64(0), nil)
	m.events.EXPECT().BulkInsertTx(gomock.Any(), gomock.Any(), gomock.Any()).Return(nil).Times(2)
	m.txs.EXPECT().SetDecodedTx(gomock.Any(), gomock.Any(), "0x01").Return(nil)

	m.events.EXPECT().DeleteByIdentifierTx(gomock.Any(), gomock.Any(), "zkl0x02").Return(int64(0), errors.New("connection reset"))

	m.events.EXPECT().DeleteByIdentifierTx(gomock.Any(), gomock.Any(), "zkl0x03").Return(int64(0), nil)
	m.txs.EXPECT().SetDecodedTx(gomock.Any(), gomock.Any(), "0x03").Return(nil)

	decoded, err := svc.DecodeUndecoded(context.Background(), false)
	require.NoError(t, err)
	assert.Equal(t, 2, decoded)
	assert.Equal(t, [][2]int{{2, 3}, {3, 3}}, notifier.calls)
}

func TestDecodeUndecoded_ForceSelectsAll(t *testing.T) {
	m := newServiceMocks(t)
	notifier := &recordingNotifier{}
	svc := NewService(m.db, m.txs, m.events, m.watched, slog.Default(), WithProgressNotifier(notifier, 10))

	m.txs.EXPECT().Query(gomock.Any(), model.TransactionFilter{OnlyUndecoded: false}).Return(nil, nil)
	m.watched.EXPECT().GetActive(gomock.Any()).Return(nil, nil)

	decoded, err := svc.DecodeUndecoded(context.Background(), true)
	require.NoError(t, err)
	assert.Zero(t, decoded)
	assert.Equal(t, [][2]int{{0, 0}}, notifier.calls)
}

func TestDecodeUndecoded_QueryFailure(t *testing.T) {
	m := newServiceMocks(t)
	svc := NewService(m.db, m.txs, m.events, m.watched, slog.Default())

	m.txs.EXPECT().Query(gomock.Any(), gomock.Any()).Return(nil, errors.New("db down"))

	_, err := svc.DecodeUndecoded(context.Background(), false)
	require.Error(t, err)
}
