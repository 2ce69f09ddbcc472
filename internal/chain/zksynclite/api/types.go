package api

import "encoding/json"

// Token is one row of GET /tokens.
type Token struct {
	ID             int64  `json:"id"`
	Address        string `json:"address"`
	Symbol         string `json:"symbol"`
	Decimals       int    `json:"decimals"`
	EnabledForFees bool   `json:"enabledForFees"`
}

type Pagination struct {
	From      json.RawMessage `json:"from"`
	Limit     int             `json:"limit"`
	Direction string          `json:"direction"`
	Count     int             `json:"count"`
}

type TokensPage struct {
	Pagination Pagination `json:"pagination"`
	List       []Token    `json:"list"`
}

// TransactionsPage keeps each entry raw; the normalizer owns its shape.
type TransactionsPage struct {
	Pagination Pagination        `json:"pagination"`
	List       []json.RawMessage `json:"list"`
}

type TransactionData struct {
	Tx json.RawMessage `json:"tx"`
}

// AccountState is one of the committed/finalized views of GET /accounts/{address}.
type AccountState struct {
	AccountID int64             `json:"accountId"`
	Address   string            `json:"address"`
	Nonce     int64             `json:"nonce"`
	Balances  map[string]string `json:"balances"`
}

type Account struct {
	Committed *AccountState `json:"committed"`
	Finalized *AccountState `json:"finalized"`
}
