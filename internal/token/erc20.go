package token

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/emperorhan/zklite-indexer/internal/chain/ethereum/rpc"
	"github.com/emperorhan/zklite-indexer/internal/domain/model"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
)

// ErrNotConformant marks a contract that does not answer the ERC20
// metadata calls. Such tokens are never cached.
var ErrNotConformant = errors.New("token is not erc20 conformant")

const erc20MetadataABI = `[
	{"constant":true,"inputs":[],"name":"name","outputs":[{"name":"","type":"string"}],"type":"function"},
	{"constant":true,"inputs":[],"name":"symbol","outputs":[{"name":"","type":"string"}],"type":"function"},
	{"constant":true,"inputs":[],"name":"decimals","outputs":[{"name":"","type":"uint8"}],"type":"function"}
]`

var erc20ABI = mustParseABI(erc20MetadataABI)

func mustParseABI(def string) abi.ABI {
	parsed, err := abi.JSON(strings.NewReader(def))
	if err != nil {
		panic(fmt.Sprintf("parse erc20 abi: %v", err))
	}
	return parsed
}

// Inspector reads ERC20 metadata straight from the token contract.
type Inspector struct {
	caller rpc.Caller
}

// NewInspector creates an Inspector issuing eth_call through caller.
func NewInspector(caller rpc.Caller) *Inspector {
	return &Inspector{caller: caller}
}

// Inspect returns the asset behind address. decimals and symbol are
// mandatory; a missing name falls back to the symbol.
func (i *Inspector) Inspect(ctx context.Context, address common.Address) (model.Asset, error) {
	decimals, err := i.decimals(ctx, address)
	if err != nil {
		return model.Asset{}, err
	}
	symbol, err := i.text(ctx, address, "symbol")
	if err != nil {
		return model.Asset{}, err
	}
	name, err := i.text(ctx, address, "name")
	if err != nil {
		if !errors.Is(err, ErrNotConformant) {
			return model.Asset{}, err
		}
		name = symbol
	}

	addr := address
	return model.Asset{
		Identifier: model.ERC20Identifier(address),
		Address:    &addr,
		Symbol:     symbol,
		Name:       name,
		Decimals:   decimals,
	}, nil
}

func (i *Inspector) decimals(ctx context.Context, address common.Address) (int, error) {
	out, err := i.call(ctx, address, "decimals")
	if err != nil {
		return 0, err
	}
	values, err := erc20ABI.Unpack("decimals", out)
	if err != nil || len(values) != 1 {
		return 0, fmt.Errorf("%s decimals(): %w", address.Hex(), ErrNotConformant)
	}
	d, ok := values[0].(uint8)
	if !ok {
		return 0, fmt.Errorf("%s decimals(): %w", address.Hex(), ErrNotConformant)
	}
	return int(d), nil
}

// text unpacks a string getter. Some early tokens return bytes32 instead.
func (i *Inspector) text(ctx context.Context, address common.Address, method string) (string, error) {
	out, err := i.call(ctx, address, method)
	if err != nil {
		return "", err
	}
	values, err := erc20ABI.Unpack(method, out)
	if err == nil && len(values) == 1 {
		if s, ok := values[0].(string); ok && s != "" {
			return s, nil
		}
	}
	if len(out) == 32 {
		if s := string(bytes.TrimRight(out, "\x00")); s != "" {
			return s, nil
		}
	}
	return "", fmt.Errorf("%s %s(): %w", address.Hex(), method, ErrNotConformant)
}

// call returns ErrNotConformant for node-level errors such as a revert.
// Transport failures are returned as-is.
func (i *Inspector) call(ctx context.Context, address common.Address, method string) ([]byte, error) {
	data, err := erc20ABI.Pack(method)
	if err != nil {
		return nil, fmt.Errorf("pack %s: %w", method, err)
	}
	out, err := i.caller.Call(ctx, address, data)
	if err != nil {
		var rpcErr *rpc.RPCError
		if errors.As(err, &rpcErr) {
			return nil, fmt.Errorf("%s %s(): %v: %w", address.Hex(), method, err, ErrNotConformant)
		}
		return nil, fmt.Errorf("%s %s(): %w", address.Hex(), method, err)
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("%s %s() returned no data: %w", address.Hex(), method, ErrNotConformant)
	}
	return out, nil
}
