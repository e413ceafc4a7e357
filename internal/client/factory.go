package client

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/danmuck/namegate/internal/network"
)

var (
	ErrUnknownNetwork  = errors.New("client: no endpoint for network")
	ErrNetworkMismatch = errors.New("client: endpoint serves a different network")
)

// Factory creates data clients. An unset network yields a fallback client.
type Factory interface {
	Create(ctx context.Context, n network.Optional) (*Client, error)
}

// FactoryFunc adapts a function into a Factory.
type FactoryFunc func(ctx context.Context, n network.Optional) (*Client, error)

func (f FactoryFunc) Create(ctx context.Context, n network.Optional) (*Client, error) {
	return f(ctx, n)
}

// RPCFactory binds clients to JSON-RPC endpoints from a network table.
type RPCFactory struct {
	Endpoints map[network.ID]string
	// Default is dialled for networks missing from Endpoints. The chain id check
	// still rejects it when it serves another network.
	Default     string
	Registry    string
	Labels      LabelSource
	CacheSize   int
	DialTimeout time.Duration
}

func (f *RPCFactory) Create(ctx context.Context, n network.Optional) (*Client, error) {
	if !n.Set {
		return New(Options{Labels: f.Labels, CacheSize: f.CacheSize}), nil
	}
	url := strings.TrimSpace(f.Endpoints[n.ID])
	if url == "" {
		url = strings.TrimSpace(f.Default)
	}
	if url == "" {
		return nil, fmt.Errorf("%w: %s", ErrUnknownNetwork, n.ID)
	}
	if f.DialTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, f.DialTimeout)
		defer cancel()
	}
	backend, err := DialEthBackend(ctx, url, f.Registry)
	if err != nil {
		return nil, err
	}
	served, err := backend.ChainID(ctx)
	if err != nil {
		backend.Close()
		return nil, fmt.Errorf("client: verify %s: %w", n.ID, err)
	}
	if network.ID(served) != n.ID {
		backend.Close()
		return nil, fmt.Errorf("%w: want %s, endpoint serves %s", ErrNetworkMismatch, n.ID, network.ID(served))
	}
	return New(Options{
		Network:   n,
		Backend:   backend,
		Labels:    f.Labels,
		CacheSize: f.CacheSize,
	}), nil
}
