package model

import "github.com/ethereum/go-ethereum/common"

// QueryRange is the best-effort [Start, End] unix-second window already
// fetched for a location.
type QueryRange struct {
	Start int64 `db:"start_ts"`
	End   int64 `db:"end_ts"`
}

// ReachesGenesis reports whether the range already walked back to time zero.
func (r QueryRange) ReachesGenesis() bool {
	return r.Start == 0
}

// QueryRangeLocation is the range key of an address's transaction history.
func QueryRangeLocation(address common.Address) string {
	return "zksynctxs_" + address.Hex()
}
