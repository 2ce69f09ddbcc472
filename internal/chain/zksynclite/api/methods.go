package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"

	"github.com/emperorhan/zklite-indexer/internal/domain/model"
)

// DefaultPageLimit is the largest page the API serves.
const DefaultPageLimit = 100

// Tokens lists registered tokens newer than fromID, inclusive.
func (c *Client) Tokens(ctx context.Context, fromID int64, limit int) (*TokensPage, error) {
	opts := url.Values{}
	opts.Set("from", strconv.FormatInt(fromID, 10))
	opts.Set("direction", model.DirectionNewer.String())
	opts.Set("limit", strconv.Itoa(limit))

	raw, err := c.Query(ctx, "tokens", opts)
	if err != nil {
		return nil, err
	}
	var page TokensPage
	if err := json.Unmarshal(raw, &page); err != nil {
		return nil, &RemoteError{URL: c.requestURL("tokens", opts), Msg: "unexpected tokens page", Err: err}
	}
	if page.List == nil {
		return nil, &RemoteError{URL: c.requestURL("tokens", opts), Msg: "tokens page without list"}
	}
	return &page, nil
}

// AccountTransactions returns one page of raw transaction envelopes for
// address, walking direction from the from cursor (a tx hash or "latest").
func (c *Client) AccountTransactions(ctx context.Context, address string, from string, direction model.Direction, limit int) (*TransactionsPage, error) {
	opts := url.Values{}
	opts.Set("from", from)
	opts.Set("limit", strconv.Itoa(limit))
	opts.Set("direction", direction.String())

	path := fmt.Sprintf("accounts/%s/transactions", address)
	raw, err := c.Query(ctx, path, opts)
	if err != nil {
		return nil, err
	}
	var page TransactionsPage
	if err := json.Unmarshal(raw, &page); err != nil {
		return nil, &RemoteError{URL: c.requestURL(path, opts), Msg: "unexpected transactions page", Err: err}
	}
	if page.List == nil {
		return nil, &RemoteError{URL: c.requestURL(path, opts), Msg: "transactions page without list"}
	}
	return &page, nil
}

// TransactionData returns the raw envelope of a single transaction.
func (c *Client) TransactionData(ctx context.Context, hash string) (json.RawMessage, error) {
	path := fmt.Sprintf("transactions/%s/data", hash)
	raw, err := c.Query(ctx, path, nil)
	if err != nil {
		return nil, err
	}
	var data TransactionData
	if err := json.Unmarshal(raw, &data); err != nil {
		return nil, &RemoteError{URL: c.requestURL(path, nil), Msg: "unexpected transaction data", Err: err}
	}
	if len(data.Tx) == 0 || bytes.Equal(bytes.TrimSpace(data.Tx), []byte("null")) {
		return nil, &RemoteError{URL: c.requestURL(path, nil), Msg: "missing tx in transaction data"}
	}
	return data.Tx, nil
}

// Account returns the committed and finalized state of address.
func (c *Client) Account(ctx context.Context, address string) (*Account, error) {
	path := fmt.Sprintf("accounts/%s", address)
	raw, err := c.Query(ctx, path, nil)
	if err != nil {
		return nil, err
	}
	var acct Account
	if err := json.Unmarshal(raw, &acct); err != nil {
		return nil, &RemoteError{URL: c.requestURL(path, nil), Msg: "unexpected account response", Err: err}
	}
	return &acct, nil
}

// DecodeEnvelope turns a raw transaction entry into the untyped map the
// normalizer consumes. Numbers stay json.Number so no precision is lost.
func DecodeEnvelope(raw json.RawMessage) (map[string]any, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var envelope map[string]any
	if err := dec.Decode(&envelope); err != nil {
		return nil, fmt.Errorf("decode transaction envelope: %w", err)
	}
	if envelope == nil {
		return nil, fmt.Errorf("decode transaction envelope: not an object")
	}
	return envelope, nil
}
