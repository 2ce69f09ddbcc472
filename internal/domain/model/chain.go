package model

type Chain string

const (
	ChainZkSyncLite Chain = "zksync_lite"
	ChainEthereum   Chain = "ethereum"
)

func (c Chain) String() string {
	return string(c)
}

// EthereumChainID is the L1 chain id zkSync Lite tokens are bridged from.
const EthereumChainID = 1

// Direction selects the pagination direction of the account transaction listing.
type Direction string

const (
	DirectionOlder Direction = "older"
	DirectionNewer Direction = "newer"
)

func (d Direction) String() string {
	return string(d)
}

// LatestCursor asks the API to start paginating from the newest entry.
const LatestCursor = "latest"

type AddressSource string

const (
	AddressSourceDB    AddressSource = "db"
	AddressSourceEnv   AddressSource = "env"
	AddressSourceAdmin AddressSource = "admin"
)
