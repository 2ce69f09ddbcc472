package postgres

import (
	"database/sql"

	"github.com/ethereum/go-ethereum/common"
)

// Addresses are stored as EIP-55 checksummed hex text.

func nullAddress(a *common.Address) sql.NullString {
	if a == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: a.Hex(), Valid: true}
}

func addressPtr(s sql.NullString) *common.Address {
	if !s.Valid || s.String == "" {
		return nil
	}
	a := common.HexToAddress(s.String)
	return &a
}
