package admin

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/emperorhan/zklite-indexer/internal/domain/model"
	"github.com/emperorhan/zklite-indexer/internal/pipeline"
	"github.com/emperorhan/zklite-indexer/internal/store"
	"github.com/ethereum/go-ethereum/common"
)

const maxRequestBodyBytes = 1 << 20 // 1 MB

// Indexer is the operational surface of the ingestion pipeline.
// *pipeline.Pipeline satisfies it.
type Indexer interface {
	FetchTransactions(ctx context.Context, address common.Address, startTS, endTS int64) error
	QuerySingleTransaction(ctx context.Context, txHash string, concerning common.Address) (*model.Transaction, error)
	QueryBalances(ctx context.Context, addresses []common.Address) (map[common.Address][]model.Balance, error)
	DecodeUndecoded(ctx context.Context, forceRedecode bool) (int, error)
}

// HealthProvider returns the sync health snapshot.
type HealthProvider interface {
	Snapshot() pipeline.HealthSnapshot
}

// Server provides an HTTP-based admin API for operational management.
type Server struct {
	watchedAddrRepo store.WatchedAddressRepository
	txRepo          store.TransactionRepository
	eventRepo       store.LedgerEventRepository
	indexer         Indexer
	healthProvider  HealthProvider
	nowFn           func() time.Time
	logger          *slog.Logger
}

// NewServer creates the admin API over the given repositories and indexer.
func NewServer(
	watchedAddrRepo store.WatchedAddressRepository,
	txRepo store.TransactionRepository,
	eventRepo store.LedgerEventRepository,
	indexer Indexer,
	logger *slog.Logger,
	opts ...ServerOption,
) *Server {
	s := &Server{
		watchedAddrRepo: watchedAddrRepo,
		txRepo:          txRepo,
		eventRepo:       eventRepo,
		indexer:         indexer,
		nowFn:           time.Now,
		logger:          logger.With("component", "admin"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

type ServerOption func(*Server)

func WithHealthProvider(hp HealthProvider) ServerOption {
	return func(s *Server) { s.healthProvider = hp }
}

// Handler returns the HTTP handler for the admin API.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /admin/v1/watched-addresses", s.handleListWatchedAddresses)
	mux.HandleFunc("POST /admin/v1/watched-addresses", s.handleAddWatchedAddress)
	mux.HandleFunc("DELETE /admin/v1/watched-addresses/{address}", s.handleRemoveWatchedAddress)
	mux.HandleFunc("GET /admin/v1/health", s.handleHealth)
	mux.HandleFunc("GET /admin/v1/transactions", s.handleListTransactions)
	mux.HandleFunc("POST /admin/v1/transactions/{hash}", s.handleQueryTransaction)
	mux.HandleFunc("GET /admin/v1/events/{identifier}", s.handleListEvents)
	mux.HandleFunc("GET /admin/v1/balances", s.handleBalances)
	mux.HandleFunc("POST /admin/v1/decode", s.handleDecode)
	mux.HandleFunc("POST /admin/v1/sync", s.handleSync)
	return mux
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// decodeJSONBody reads an optional JSON body into v. An empty body leaves v
// untouched. It returns false after writing a 400 response.
func decodeJSONBody(w http.ResponseWriter, r *http.Request, v any) bool {
	if r.Body == nil {
		return true
	}
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil && !errors.Is(err, io.EOF) {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return false
	}
	return true
}

func parseAddress(raw string) (common.Address, bool) {
	raw = strings.TrimSpace(raw)
	if !common.IsHexAddress(raw) {
		return common.Address{}, false
	}
	return common.HexToAddress(raw), true
}

type watchedAddressResponse struct {
	Address string  `json:"address"`
	Label   *string `json:"label,omitempty"`
	Active  bool    `json:"active"`
	Source  string  `json:"source"`
}

// requestLogger tags log lines with the audit request id when there is one.
func (s *Server) requestLogger(r *http.Request) *slog.Logger {
	if id := RequestID(r.Context()); id != "" {
		return s.logger.With("request_id", id)
	}
	return s.logger
}

func (s *Server) handleListWatchedAddresses(w http.ResponseWriter, r *http.Request) {
	addresses, err := s.watchedAddrRepo.GetActive(r.Context())
	if err != nil {
		s.requestLogger(r).Error("list watched addresses failed", "error", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	resp := make([]watchedAddressResponse, len(addresses))
	for i, addr := range addresses {
		resp[i] = watchedAddressResponse{
			Address: addr.Address,
			Label:   addr.Label,
			Active:  addr.IsActive,
			Source:  string(addr.Source),
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

type addWatchedAddressRequest struct {
	Address string  `json:"address"`
	Label   *string `json:"label"`
}

func (s *Server) handleAddWatchedAddress(w http.ResponseWriter, r *http.Request) {
	var req addWatchedAddressRequest
	if !decodeJSONBody(w, r, &req) {
		return
	}
	address, ok := parseAddress(req.Address)
	if !ok {
		writeError(w, http.StatusBadRequest, "address must be a 0x-prefixed hex address")
		return
	}

	addr := &model.WatchedAddress{
		Address:  address.Hex(),
		Label:    req.Label,
		IsActive: true,
		Source:   model.AddressSourceAdmin,
	}
	if err := s.watchedAddrRepo.Upsert(r.Context(), addr); err != nil {
		s.requestLogger(r).Error("add watched address failed", "error", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	s.requestLogger(r).Info("watched address added via admin API", "address", addr.Address)
	writeJSON(w, http.StatusCreated, map[string]bool{"success": true})
}

// handleRemoveWatchedAddress stops syncing an address. Its stored history
// and events are kept.
func (s *Server) handleRemoveWatchedAddress(w http.ResponseWriter, r *http.Request) {
	address, ok := parseAddress(r.PathValue("address"))
	if !ok {
		writeError(w, http.StatusBadRequest, "address must be a 0x-prefixed hex address")
		return
	}

	changed, err := s.watchedAddrRepo.Deactivate(r.Context(), address.Hex())
	if err != nil {
		s.requestLogger(r).Error("remove watched address failed", "error", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}
	if !changed {
		writeError(w, http.StatusNotFound, "address is not watched")
		return
	}

	s.requestLogger(r).Info("watched address removed via admin API", "address", address.Hex())
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if s.healthProvider == nil {
		writeError(w, http.StatusServiceUnavailable, "health not available")
		return
	}
	writeJSON(w, http.StatusOK, s.healthProvider.Snapshot())
}

type assetResponse struct {
	Identifier string `json:"identifier"`
	Symbol     string `json:"symbol"`
	Decimals   int    `json:"decimals"`
}

func toAssetResponse(a model.Asset) assetResponse {
	return assetResponse{Identifier: a.Identifier, Symbol: a.Symbol, Decimals: a.Decimals}
}

type swapResponse struct {
	SellAsset  assetResponse `json:"sell_asset"`
	SellAmount string        `json:"sell_amount"`
	BuyAsset   assetResponse `json:"buy_asset"`
	BuyAmount  string        `json:"buy_amount"`
}

type transactionResponse struct {
	TxHash      string        `json:"tx_hash"`
	Type        string        `json:"type"`
	Timestamp   int64         `json:"timestamp"`
	BlockNumber int64         `json:"block_number"`
	From        string        `json:"from,omitempty"`
	To          string        `json:"to,omitempty"`
	Asset       assetResponse `json:"asset"`
	Amount      string        `json:"amount"`
	Fee         string        `json:"fee,omitempty"`
	Swap        *swapResponse `json:"swap,omitempty"`
	Decoded     bool          `json:"decoded"`
}

func toTransactionResponse(t *model.Transaction) transactionResponse {
	resp := transactionResponse{
		TxHash:      t.TxHash,
		Type:        string(t.Type),
		Timestamp:   t.Timestamp,
		BlockNumber: t.BlockNumber,
		Asset:       toAssetResponse(t.Asset),
		Amount:      t.Amount.String(),
		Decoded:     t.IsDecoded,
	}
	if t.From != nil {
		resp.From = t.From.Hex()
	}
	if t.To != nil {
		resp.To = t.To.Hex()
	}
	if t.Fee != nil {
		resp.Fee = t.Fee.String()
	}
	if t.Swap != nil {
		resp.Swap = &swapResponse{
			SellAsset:  toAssetResponse(t.Swap.Sell.Asset),
			SellAmount: t.Swap.Sell.Amount.String(),
			BuyAsset:   toAssetResponse(t.Swap.Buy.Asset),
			BuyAmount:  t.Swap.Buy.Amount.String(),
		}
	}
	return resp
}

func (s *Server) handleListTransactions(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := model.TransactionFilter{
		OnlyUndecoded: q.Get("undecoded") == "true",
		TxHash:        q.Get("tx_hash"),
	}
	if raw := q.Get("address"); raw != "" {
		address, ok := parseAddress(raw)
		if !ok {
			writeError(w, http.StatusBadRequest, "invalid address")
			return
		}
		filter.Address = &address
	}

	txs, err := s.txRepo.Query(r.Context(), filter)
	if err != nil {
		s.requestLogger(r).Error("list transactions failed", "error", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}
	resp := make([]transactionResponse, len(txs))
	for i, t := range txs {
		resp[i] = toTransactionResponse(t)
	}
	writeJSON(w, http.StatusOK, resp)
}

type queryTransactionRequest struct {
	Address string `json:"address"`
}

// handleQueryTransaction fetches one transaction from the remote API and
// stores it. The concerning address decides the direction of swaps.
func (s *Server) handleQueryTransaction(w http.ResponseWriter, r *http.Request) {
	hash := r.PathValue("hash")
	if !strings.HasPrefix(hash, "0x") || len(hash) < 3 {
		writeError(w, http.StatusBadRequest, "hash must be 0x-prefixed")
		return
	}
	var req queryTransactionRequest
	if !decodeJSONBody(w, r, &req) {
		return
	}
	concerning, ok := parseAddress(req.Address)
	if !ok {
		writeError(w, http.StatusBadRequest, "address must be a 0x-prefixed hex address")
		return
	}

	tx, err := s.indexer.QuerySingleTransaction(r.Context(), hash, concerning)
	if err != nil {
		s.requestLogger(r).Error("query transaction failed", "tx_hash", hash, "error", err)
		writeError(w, http.StatusBadGateway, "query transaction failed")
		return
	}
	if tx == nil {
		writeError(w, http.StatusNotFound, "transaction is not finalized or not indexable")
		return
	}
	writeJSON(w, http.StatusOK, toTransactionResponse(tx))
}

type ledgerEventResponse struct {
	EventIdentifier string        `json:"event_identifier"`
	SequenceIndex   int           `json:"sequence_index"`
	TimestampMS     int64         `json:"timestamp_ms"`
	Type            string        `json:"type"`
	Subtype         string        `json:"subtype"`
	Asset           assetResponse `json:"asset"`
	Amount          string        `json:"amount"`
	LocationLabel   string        `json:"location_label"`
	Counterparty    string        `json:"counterparty,omitempty"`
	Notes           string        `json:"notes"`
}

func (s *Server) handleListEvents(w http.ResponseWriter, r *http.Request) {
	identifier := r.PathValue("identifier")
	if strings.HasPrefix(identifier, "0x") {
		identifier = model.EventIdentifier(identifier)
	}

	events, err := s.eventRepo.ListByIdentifier(r.Context(), identifier)
	if err != nil {
		s.requestLogger(r).Error("list events failed", "event_identifier", identifier, "error", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}
	resp := make([]ledgerEventResponse, len(events))
	for i, e := range events {
		resp[i] = ledgerEventResponse{
			EventIdentifier: e.EventIdentifier,
			SequenceIndex:   e.SequenceIndex,
			TimestampMS:     e.TimestampMS,
			Type:            string(e.Type),
			Subtype:         string(e.Subtype),
			Asset:           toAssetResponse(e.Asset),
			Amount:          e.Amount.String(),
			LocationLabel:   e.LocationLabel.Hex(),
			Notes:           e.Notes,
		}
		if e.Counterparty != nil {
			resp[i].Counterparty = e.Counterparty.Hex()
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

type balanceResponse struct {
	Asset    assetResponse `json:"asset"`
	Amount   string        `json:"amount"`
	USDValue string        `json:"usd_value"`
}

func (s *Server) handleBalances(w http.ResponseWriter, r *http.Request) {
	raw := r.URL.Query().Get("address")
	if raw == "" {
		writeError(w, http.StatusBadRequest, "address query param required")
		return
	}
	var addresses []common.Address
	for _, item := range strings.Split(raw, ",") {
		address, ok := parseAddress(item)
		if !ok {
			writeError(w, http.StatusBadRequest, "invalid address")
			return
		}
		addresses = append(addresses, address)
	}

	balances, err := s.indexer.QueryBalances(r.Context(), addresses)
	if err != nil {
		s.requestLogger(r).Error("query balances failed", "error", err)
		writeError(w, http.StatusBadGateway, "query balances failed")
		return
	}
	resp := make(map[string][]balanceResponse, len(balances))
	for address, list := range balances {
		out := make([]balanceResponse, len(list))
		for i, b := range list {
			out[i] = balanceResponse{
				Asset:    toAssetResponse(b.Asset),
				Amount:   b.Amount.String(),
				USDValue: b.USDValue.String(),
			}
		}
		resp[address.Hex()] = out
	}
	writeJSON(w, http.StatusOK, resp)
}

type decodeRequest struct {
	Force bool `json:"force"`
}

func (s *Server) handleDecode(w http.ResponseWriter, r *http.Request) {
	var req decodeRequest
	if !decodeJSONBody(w, r, &req) {
		return
	}
	decoded, err := s.indexer.DecodeUndecoded(r.Context(), req.Force)
	if err != nil {
		s.requestLogger(r).Error("decode failed", "force", req.Force, "error", err)
		writeError(w, http.StatusInternalServerError, "decode failed")
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"decoded": decoded})
}

type syncRequest struct {
	Address string `json:"address"`
	StartTS int64  `json:"start_ts"`
	EndTS   int64  `json:"end_ts"`
}

// handleSync runs a fetch for one address. A zero end_ts means now.
func (s *Server) handleSync(w http.ResponseWriter, r *http.Request) {
	var req syncRequest
	if !decodeJSONBody(w, r, &req) {
		return
	}
	address, ok := parseAddress(req.Address)
	if !ok {
		writeError(w, http.StatusBadRequest, "address must be a 0x-prefixed hex address")
		return
	}
	if req.EndTS == 0 {
		req.EndTS = s.nowFn().Unix()
	}
	if req.StartTS < 0 || req.EndTS < req.StartTS {
		writeError(w, http.StatusBadRequest, "start_ts and end_ts must satisfy 0 <= start_ts <= end_ts")
		return
	}

	if err := s.indexer.FetchTransactions(r.Context(), address, req.StartTS, req.EndTS); err != nil {
		s.requestLogger(r).Error("sync failed", "address", address.Hex(), "error", err)
		writeError(w, http.StatusInternalServerError, "sync failed")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"address":  address.Hex(),
		"start_ts": req.StartTS,
		"end_ts":   req.EndTS,
	})
}
