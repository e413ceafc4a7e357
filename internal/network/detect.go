package network

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/ethclient"
)

var ErrDetect = errors.New("network: detection failed")

// Detector reports the network a provider is currently serving.
type Detector interface {
	Detect(ctx context.Context) (ID, error)
}

// DetectorFunc adapts a function into a Detector.
type DetectorFunc func(ctx context.Context) (ID, error)

func (f DetectorFunc) Detect(ctx context.Context) (ID, error) {
	return f(ctx)
}

// RPCDetector asks a JSON-RPC provider for its chain id.
type RPCDetector struct {
	URL     string
	Timeout time.Duration
}

func NewRPCDetector(url string) *RPCDetector {
	return &RPCDetector{URL: strings.TrimSpace(url), Timeout: 5 * time.Second}
}

func (d *RPCDetector) Detect(ctx context.Context) (ID, error) {
	if d.URL == "" {
		return 0, fmt.Errorf("%w: no provider url", ErrDetect)
	}
	if d.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d.Timeout)
		defer cancel()
	}
	rpc, err := ethclient.DialContext(ctx, d.URL)
	if err != nil {
		return 0, fmt.Errorf("%w: dial %s: %v", ErrDetect, d.URL, err)
	}
	defer rpc.Close()

	chainID, err := rpc.ChainID(ctx)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrDetect, err)
	}
	if !chainID.IsUint64() || chainID.Uint64() == 0 {
		return 0, fmt.Errorf("%w: unusable chain id %s", ErrDetect, chainID.String())
	}
	return ID(chainID.Uint64()), nil
}
