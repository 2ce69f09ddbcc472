package admin

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/emperorhan/zklite-indexer/internal/domain/model"
	"github.com/emperorhan/zklite-indexer/internal/pipeline"
	storemocks "github.com/emperorhan/zklite-indexer/internal/store/mocks"
	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

var (
	alice = common.HexToAddress("0x9531C059098e3d194fF87FebB587aB07B30B1306")
	bob   = common.HexToAddress("0x2B888954421b424C5D3D9Ce9bB67c9bD47537d12")
)

type fakeIndexer struct {
	fetchCalls  []fetchCall
	fetchErr    error
	singleTx    *model.Transaction
	singleErr   error
	singleHash  string
	balances    map[common.Address][]model.Balance
	balancesErr error
	decoded     int
	decodeForce bool
}

type fetchCall struct {
	address        common.Address
	startTS, endTS int64
}

func (f *fakeIndexer) FetchTransactions(_ context.Context, address common.Address, startTS, endTS int64) error {
	f.fetchCalls = append(f.fetchCalls, fetchCall{address, startTS, endTS})
	return f.fetchErr
}

func (f *fakeIndexer) QuerySingleTransaction(_ context.Context, txHash string, _ common.Address) (*model.Transaction, error) {
	f.singleHash = txHash
	return f.singleTx, f.singleErr
}

func (f *fakeIndexer) QueryBalances(_ context.Context, _ []common.Address) (map[common.Address][]model.Balance, error) {
	return f.balances, f.balancesErr
}

func (f *fakeIndexer) DecodeUndecoded(_ context.Context, force bool) (int, error) {
	f.decodeForce = force
	return f.decoded, nil
}

type fixedHealth struct{ snap pipeline.HealthSnapshot }

func (h fixedHealth) Snapshot() pipeline.HealthSnapshot { return h.snap }

type testServer struct {
	watched *storemocks.MockWatchedAddressRepository
	txs     *storemocks.MockTransactionRepository
	events  *storemocks.MockLedgerEventRepository
	indexer *fakeIndexer
	handler http.Handler
}

func newTestServer(t *testing.T, opts ...ServerOption) *testServer {
	ctrl := gomock.NewController(t)
	ts := &testServer{
		watched: storemocks.NewMockWatchedAddressRepository(ctrl),
		txs:     storemocks.NewMockTransactionRepository(ctrl),
		events:  storemocks.NewMockLedgerEventRepository(ctrl),
		indexer: &fakeIndexer{},
	}
	srv := NewServer(ts.watched, ts.txs, ts.events, ts.indexer, slog.Default(), opts...)
	srv.nowFn = func() time.Time { return time.Unix(1700000000, 0) }
	ts.handler = srv.Handler()
	return ts
}

func (ts *testServer) do(method, target, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, target, nil)
	} else {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
	}
	rec := httptest.NewRecorder()
	ts.handler.ServeHTTP(rec, req)
	return rec
}

func TestHandleListWatchedAddresses(t *testing.T) {
	ts := newTestServer(t)
	label := "treasury"
	ts.watched.EXPECT().GetActive(gomock.Any()).Return([]model.WatchedAddress{
		{Address: alice.Hex(), Label: &label, IsActive: true, Source: model.AddressSourceEnv},
	}, nil)

	rec := ts.do(http.MethodGet, "/admin/v1/watched-addresses", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var resp []watchedAddressResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	require.Len(t, resp, 1)
	assert.Equal(t, alice.Hex(), resp[0].Address)
	assert.Equal(t, "treasury", *resp[0].Label)
	assert.Equal(t, "env", resp[0].Source)
	assert.True(t, resp[0].Active)
}

func TestHandleListWatchedAddresses_RepoError(t *testing.T) {
	ts := newTestServer(t)
	ts.watched.EXPECT().GetActive(gomock.Any()).Return(nil, errors.New("db down"))

	rec := ts.do(http.MethodGet, "/admin/v1/watched-addresses", "")
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestHandleAddWatchedAddress(t *testing.T) {
	ts := newTestServer(t)
	var upserted *model.WatchedAddress
	ts.watched.EXPECT().Upsert(gomock.Any(), gomock.Any()).DoAndReturn(
		func(_ context.Context, addr *model.WatchedAddress) error {
			upserted = addr
			return nil
		})

	body := `{"address":"` + strings.ToLower(alice.Hex()) + `","label":"ops"}`
	rec := ts.do(http.MethodPost, "/admin/v1/watched-addresses", body)
	require.Equal(t, http.StatusCreated, rec.Code)
	require.NotNil(t, upserted)
	assert.Equal(t, alice.Hex(), upserted.Address, "address is stored checksummed")
	assert.Equal(t, model.AddressSourceAdmin, upserted.Source)
	assert.Equal(t, "ops", *upserted.Label)
	assert.True(t, upserted.IsActive)
}

func TestHandleAddWatchedAddress_Invalid(t *testing.T) {
	ts := newTestServer(t)

	for name, body := range map[string]string{
		"bad json":    `{`,
		"not hex":     `{"address":"zzz"}`,
		"missing":     `{}`,
		"short hex":   `{"address":"0x1234"}`,
		"sol address": `{"address":"9WzDXwBbmkg8ZTbNMqUxvQRAyrZzDsGYdLVL9zYtAWWM"}`,
	} {
		t.Run(name, func(t *testing.T) {
			rec := ts.do(http.MethodPost, "/admin/v1/watched-addresses", body)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
		})
	}
}

func TestHandleRemoveWatchedAddress(t *testing.T) {
	t.Run("deactivates checksummed address", func(t *testing.T) {
		ts := newTestServer(t)
		ts.watched.EXPECT().Deactivate(gomock.Any(), alice.Hex()).Return(true, nil)

		rec := ts.do(http.MethodDelete, "/admin/v1/watched-addresses/"+strings.ToLower(alice.Hex()), "")
		assert.Equal(t, http.StatusNoContent, rec.Code)
	})

	t.Run("not watched", func(t *testing.T) {
		ts := newTestServer(t)
		ts.watched.EXPECT().Deactivate(gomock.Any(), alice.Hex()).Return(false, nil)

		rec := ts.do(http.MethodDelete, "/admin/v1/watched-addresses/"+alice.Hex(), "")
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})

	t.Run("invalid address", func(t *testing.T) {
		ts := newTestServer(t)
		rec := ts.do(http.MethodDelete, "/admin/v1/watched-addresses/0x12", "")
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("repo error", func(t *testing.T) {
		ts := newTestServer(t)
		ts.watched.EXPECT().Deactivate(gomock.Any(), gomock.Any()).Return(false, errors.New("db down"))

		rec := ts.do(http.MethodDelete, "/admin/v1/watched-addresses/"+alice.Hex(), "")
		assert.Equal(t, http.StatusInternalServerError, rec.Code)
	})
}

func TestHandleHealth(t *testing.T) {
	t.Run("without provider", func(t *testing.T) {
		ts := newTestServer(t)
		rec := ts.do(http.MethodGet, "/admin/v1/health", "")
		assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	})

	t.Run("with provider", func(t *testing.T) {
		ts := newTestServer(t, WithHealthProvider(fixedHealth{pipeline.HealthSnapshot{
			Chain:               "zksync_lite",
			Status:              "DEGRADED",
			ConsecutiveFailures: 1,
		}}))
		rec := ts.do(http.MethodGet, "/admin/v1/health", "")
		require.Equal(t, http.StatusOK, rec.Code)

		var snap pipeline.HealthSnapshot
		require.NoError(t, json.NewDecoder(rec.Body).Decode(&snap))
		assert.Equal(t, "DEGRADED", snap.Status)
		assert.Equal(t, 1, snap.ConsecutiveFailures)
	})
}

func TestHandleListTransactions(t *testing.T) {
	ts := newTestServer(t)
	fee := decimal.RequireFromString("0.001")
	ts.txs.EXPECT().Query(gomock.Any(), gomock.Any()).DoAndReturn(
		func(_ context.Context, filter model.TransactionFilter) ([]*model.Transaction, error) {
			assert.True(t, filter.OnlyUndecoded)
			require.NotNil(t, filter.Address)
			assert.Equal(t, alice, *filter.Address)
			return []*model.Transaction{{
				TxHash:    "0xaa",
				Type:      model.TxTypeTransfer,
				Timestamp: 1650000000,
				From:      &alice,
				To:        &bob,
				Asset:     model.NativeAsset(),
				Amount:    decimal.RequireFromString("1.5"),
				Fee:       &fee,
			}}, nil
		})

	rec := ts.do(http.MethodGet, "/admin/v1/transactions?undecoded=true&address="+alice.Hex(), "")
	require.Equal(t, http.StatusOK, rec.Code)

	var resp []transactionResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	require.Len(t, resp, 1)
	assert.Equal(t, "0xaa", resp[0].TxHash)
	assert.Equal(t, "1.5", resp[0].Amount)
	assert.Equal(t, "0.001", resp[0].Fee)
	assert.Equal(t, bob.Hex(), resp[0].To)
	assert.Nil(t, resp[0].Swap)
}

func TestHandleListTransactions_InvalidAddress(t *testing.T) {
	ts := newTestServer(t)
	rec := ts.do(http.MethodGet, "/admin/v1/transactions?address=nope", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandleQueryTransaction(t *testing.T) {
	body := `{"address":"` + alice.Hex() + `"}`

	t.Run("stored", func(t *testing.T) {
		ts := newTestServer(t)
		ts.indexer.singleTx = &model.Transaction{TxHash: "0xbb", Type: model.TxTypeTransfer, Asset: model.NativeAsset()}
		rec := ts.do(http.MethodPost, "/admin/v1/transactions/0xbb", body)
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "0xbb", ts.indexer.singleHash)
	})

	t.Run("not indexable", func(t *testing.T) {
		ts := newTestServer(t)
		rec := ts.do(http.MethodPost, "/admin/v1/transactions/0xbb", body)
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})

	t.Run("remote failure", func(t *testing.T) {
		ts := newTestServer(t)
		ts.indexer.singleErr = errors.New("boom")
		rec := ts.do(http.MethodPost, "/admin/v1/transactions/0xbb", body)
		assert.Equal(t, http.StatusBadGateway, rec.Code)
	})

	t.Run("bad hash", func(t *testing.T) {
		ts := newTestServer(t)
		rec := ts.do(http.MethodPost, "/admin/v1/transactions/bb", body)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("missing address", func(t *testing.T) {
		ts := newTestServer(t)
		rec := ts.do(http.MethodPost, "/admin/v1/transactions/0xbb", "")
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func TestHandleListEvents(t *testing.T) {
	ts := newTestServer(t)
	ts.events.EXPECT().ListByIdentifier(gomock.Any(), "zkl0xcc").Return([]model.LedgerEvent{{
		EventIdentifier: "zkl0xcc",
		SequenceIndex:   0,
		TimestampMS:     1650000000000,
		Type:            model.EventTypeSpend,
		Subtype:         model.EventSubtypeFee,
		Asset:           model.NativeAsset(),
		Amount:          decimal.RequireFromString("0.01"),
		LocationLabel:   alice,
		Notes:           "Spend 0.01 ETH as zkSync Lite fee",
	}}, nil)

	rec := ts.do(http.MethodGet, "/admin/v1/events/0xcc", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var resp []ledgerEventResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	require.Len(t, resp, 1)
	assert.Equal(t, "zkl0xcc", resp[0].EventIdentifier)
	assert.Equal(t, "0.01", resp[0].Amount)
	assert.Equal(t, alice.Hex(), resp[0].LocationLabel)
	assert.Empty(t, resp[0].Counterparty)
}

func TestHandleBalances(t *testing.T) {
	ts := newTestServer(t)
	ts.indexer.balances = map[common.Address][]model.Balance{
		alice: {{
			Asset:    model.NativeAsset(),
			Amount:   decimal.RequireFromString("1.5"),
			USDValue: decimal.RequireFromString("3000"),
		}},
	}

	rec := ts.do(http.MethodGet, "/admin/v1/balances?address="+alice.Hex()+","+bob.Hex(), "")
	require.Equal(t, http.StatusOK, rec.Code)

	var resp map[string][]balanceResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	require.Len(t, resp[alice.Hex()], 1)
	assert.Equal(t, "1.5", resp[alice.Hex()][0].Amount)
	assert.Equal(t, "3000", resp[alice.Hex()][0].USDValue)
}

func TestHandleBalances_Errors(t *testing.T) {
	ts := newTestServer(t)
	assert.Equal(t, http.StatusBadRequest, ts.do(http.MethodGet, "/admin/v1/balances", "").Code)
	assert.Equal(t, http.StatusBadRequest, ts.do(http.MethodGet, "/admin/v1/balances?address=0x1", "").Code)

	ts.indexer.balancesErr = errors.New("remote down")
	assert.Equal(t, http.StatusBadGateway, ts.do(http.MethodGet, "/admin/v1/balances?address="+alice.Hex(), "").Code)
}

func TestHandleDecode(t *testing.T) {
	ts := newTestServer(t)
	ts.indexer.decoded = 7

	rec := ts.do(http.MethodPost, "/admin/v1/decode", `{"force":true}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, ts.indexer.decodeForce)

	var resp map[string]int
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.Equal(t, 7, resp["decoded"])

	rec = ts.do(http.MethodPost, "/admin/v1/decode", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.False(t, ts.indexer.decodeForce)
}

func TestHandleSync(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(http.MethodPost, "/admin/v1/sync", `{"address":"`+alice.Hex()+`"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Len(t, ts.indexer.fetchCalls, 1)
	assert.Equal(t, fetchCall{alice, 0, 1700000000}, ts.indexer.fetchCalls[0])

	rec = ts.do(http.MethodPost, "/admin/v1/sync", `{"address":"`+alice.Hex()+`","start_ts":10,"end_ts":5}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	ts.indexer.fetchErr = errors.New("db down")
	rec = ts.do(http.MethodPost, "/admin/v1/sync", `{"address":"`+alice.Hex()+`","start_ts":10,"end_ts":50}`)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, fetchCall{alice, 10, 50}, ts.indexer.fetchCalls[1])
}

func TestDecodeJSONBody_TooLarge(t *testing.T) {
	ts := newTestServer(t)
	big := `{"force":` + string(bytes.Repeat([]byte(" "), maxRequestBodyBytes+1)) + `true}`
	rec := ts.do(http.MethodPost, "/admin/v1/decode", big)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
