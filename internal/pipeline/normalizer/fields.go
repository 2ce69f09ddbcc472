package normalizer

import (
	"encoding/json"
	"fmt"
	"math"
	"math/big"
	"strconv"
	"strings"
	"time"

	"github.com/emperorhan/zklite-indexer/internal/domain/model"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
)

type addressSource int

const (
	addrNone addressSource = iota
	// addrConcerning uses the address the entry was fetched for.
	addrConcerning
	// addrOp reads op[key].
	addrOp
)

type addressField struct {
	source addressSource
	key    string
}

func opAddress(key string) addressField { return addressField{source: addrOp, key: key} }

var concerning = addressField{source: addrConcerning}

// fieldSpec says where one transaction type keeps its parties and value.
type fieldSpec struct {
	from addressField
	to   addressField
	// assetKey is the op key holding the token id of the primary asset.
	assetKey string
	// amountKey is the op key holding the raw primary amount; empty means zero.
	amountKey string
	// hashKey overrides the top-level txHash with op[hashKey].
	hashKey string
	// swap entries additionally carry op.orders[0..1] legs.
	swap bool
}

var fieldSpecs = map[model.TxType]fieldSpec{
	model.TxTypeDeposit: {
		from: opAddress("from"), to: opAddress("to"),
		assetKey: "tokenId", amountKey: "amount",
	},
	model.TxTypeChangePubKey: {
		from:     opAddress("account"),
		assetKey: "feeToken", amountKey: "fee",
	},
	model.TxTypeForcedExit: {
		from: concerning, to: opAddress("target"),
		assetKey: "token",
	},
	model.TxTypeFullExit: {
		from: concerning, to: concerning,
		assetKey: "tokenId", hashKey: "ethHash",
	},
	model.TxTypeSwap: {
		from: concerning, to: concerning,
		assetKey: "feeToken", amountKey: "fee", swap: true,
	},
	model.TxTypeTransfer: {
		from: opAddress("from"), to: opAddress("to"),
		assetKey: "token", amountKey: "amount",
	},
	model.TxTypeWithdraw: {
		from: opAddress("from"), to: opAddress("to"),
		assetKey: "token", amountKey: "amount",
	},
}

// object is a decoded JSON object with path-aware accessors.
type object struct {
	path   string
	fields map[string]any
}

func (o object) child(key string) string {
	if o.path == "" {
		return key
	}
	return o.path + "." + key
}

func (o object) value(key string) (any, error) {
	v, ok := o.fields[key]
	if !ok {
		return nil, missingKey(o.child(key))
	}
	return v, nil
}

func (o object) object(key string) (object, error) {
	v, err := o.value(key)
	if err != nil {
		return object{}, err
	}
	m, ok := v.(map[string]any)
	if !ok {
		return object{}, malformed(o.child(key), "expected object, got %T", v)
	}
	return object{path: o.child(key), fields: m}, nil
}

func (o object) str(key string) (string, error) {
	v, err := o.value(key)
	if err != nil {
		return "", err
	}
	s, ok := v.(string)
	if !ok {
		return "", malformed(o.child(key), "expected string, got %T", v)
	}
	return s, nil
}

func (o object) integer(key string) (int64, error) {
	v, err := o.value(key)
	if err != nil {
		return 0, err
	}
	switch n := v.(type) {
	case json.Number:
		i, err := n.Int64()
		if err != nil {
			return 0, malformed(o.child(key), "invalid integer %q", n.String())
		}
		return i, nil
	case float64:
		if n != math.Trunc(n) {
			return 0, malformed(o.child(key), "invalid integer %v", n)
		}
		return int64(n), nil
	case string:
		i, err := strconv.ParseInt(strings.TrimSpace(n), 10, 64)
		if err != nil {
			return 0, malformed(o.child(key), "invalid integer %q", n)
		}
		return i, nil
	default:
		return 0, malformed(o.child(key), "expected integer, got %T", v)
	}
}

// rawAmount parses a base-10 integer amount carried as a string.
func (o object) rawAmount(key string) (*big.Int, error) {
	v, err := o.value(key)
	if err != nil {
		return nil, err
	}
	var s string
	switch n := v.(type) {
	case string:
		s = n
	case json.Number:
		s = n.String()
	default:
		return nil, malformed(o.child(key), "expected integer string, got %T", v)
	}
	raw, ok := model.ParseRawAmount(s)
	if !ok {
		return nil, malformed(o.child(key), "invalid integer %q", s)
	}
	return raw, nil
}

func (o object) address(key string) (common.Address, error) {
	s, err := o.str(key)
	if err != nil {
		return common.Address{}, err
	}
	if !common.IsHexAddress(s) {
		return common.Address{}, malformed(o.child(key), "invalid address %q", s)
	}
	return common.HexToAddress(s), nil
}

func (o object) txHash(key string) (string, error) {
	s, err := o.str(key)
	if err != nil {
		return "", err
	}
	b, err := hexutil.Decode(s)
	if err != nil || len(b) != common.HashLength {
		return "", malformed(o.child(key), "invalid transaction hash %q", s)
	}
	return common.BytesToHash(b).Hex(), nil
}

func (o object) timestamp(key string) (int64, error) {
	s, err := o.str(key)
	if err != nil {
		return 0, err
	}
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return 0, malformed(o.child(key), "invalid timestamp %q", s)
	}
	return t.Unix(), nil
}

func (o object) index(key string, i int) (object, error) {
	v, err := o.value(key)
	if err != nil {
		return object{}, err
	}
	list, ok := v.([]any)
	if !ok {
		return object{}, malformed(o.child(key), "expected array, got %T", v)
	}
	path := fmt.Sprintf("%s[%d]", o.child(key), i)
	if i >= len(list) {
		return object{}, missingKey(path)
	}
	m, ok := list[i].(map[string]any)
	if !ok {
		return object{}, malformed(path, "expected object, got %T", list[i])
	}
	return object{path: path, fields: m}, nil
}

func (f addressField) resolve(op object, concerningAddress common.Address) (*common.Address, error) {
	switch f.source {
	case addrConcerning:
		addr := concerningAddress
		return &addr, nil
	case addrOp:
		addr, err := op.address(f.key)
		if err != nil {
			return nil, err
		}
		return &addr, nil
	default:
		return nil, nil
	}
}
