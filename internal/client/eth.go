package client

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/ethclient"
)

// Remote operations served by EthBackend.
const (
	ChainID      Operation = "CHAIN_ID"
	BlockNumber  Operation = "BLOCK_NUMBER"
	ResolverCode Operation = "RESOLVER_CODE"
)

var ErrUnsupportedOperation = errors.New("client: unsupported operation")

// EthBackend serves remote operations against one JSON-RPC endpoint.
type EthBackend struct {
	rpc      *ethclient.Client
	registry common.Address
}

// DialEthBackend connects to url. registry is the default address for RESOLVER_CODE
// and may be empty.
func DialEthBackend(ctx context.Context, url string, registry string) (*EthBackend, error) {
	rpc, err := ethclient.DialContext(ctx, strings.TrimSpace(url))
	if err != nil {
		return nil, fmt.Errorf("client: dial %s: %w", url, err)
	}
	b := &EthBackend{rpc: rpc}
	if registry = strings.TrimSpace(registry); registry != "" {
		if !common.IsHexAddress(registry) {
			rpc.Close()
			return nil, fmt.Errorf("%w: registry address %q", ErrInvalidVariables, registry)
		}
		b.registry = common.HexToAddress(registry)
	}
	return b, nil
}

func (b *EthBackend) ChainID(ctx context.Context) (uint64, error) {
	id, err := b.rpc.ChainID(ctx)
	if err != nil {
		return 0, err
	}
	if !id.IsUint64() {
		return 0, fmt.Errorf("client: chain id %s out of range", id.String())
	}
	return id.Uint64(), nil
}

func (b *EthBackend) Do(ctx context.Context, req Request) (Response, error) {
	switch req.Operation {
	case ChainID:
		id, err := b.ChainID(ctx)
		if err != nil {
			return Response{}, err
		}
		return Response{Data: map[string]any{"chainId": id}}, nil
	case BlockNumber:
		n, err := b.rpc.BlockNumber(ctx)
		if err != nil {
			return Response{}, err
		}
		return Response{Data: map[string]any{"blockNumber": n}}, nil
	case ResolverCode:
		addr, err := b.address(req.Variables)
		if err != nil {
			return Response{}, err
		}
		code, err := b.rpc.CodeAt(ctx, addr, nil)
		if err != nil {
			return Response{}, err
		}
		return Response{Data: map[string]any{
			"address":  addr.Hex(),
			"deployed": len(code) > 0,
		}}, nil
	default:
		return Response{}, fmt.Errorf("%w: %s", ErrUnsupportedOperation, req.Operation)
	}
}

func (b *EthBackend) Close() {
	b.rpc.Close()
}

func (b *EthBackend) address(vars map[string]any) (common.Address, error) {
	raw, _ := vars["address"].(string)
	raw = strings.TrimSpace(raw)
	if raw == "" {
		if b.registry == (common.Address{}) {
			return common.Address{}, fmt.Errorf("%w: address is required", ErrInvalidVariables)
		}
		return b.registry, nil
	}
	if !common.IsHexAddress(raw) {
		return common.Address{}, fmt.Errorf("%w: address %q", ErrInvalidVariables, raw)
	}
	return common.HexToAddress(raw), nil
}
