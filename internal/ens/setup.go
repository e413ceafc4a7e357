// Package ens prepares a local development network for the naming service: it checks
// the custom provider, persists label overrides, and watches the provider's accounts.
package ens

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/rs/zerolog/log"
)

// DefaultCustomProvider is the conventional local development node.
const DefaultCustomProvider = "http://localhost:8545"

var (
	ErrInvalidENSAddress = errors.New("ens: invalid registry address")
	ErrProvider          = errors.New("ens: custom provider unavailable")
	ErrInvalidLabels     = errors.New("ens: invalid labels")
)

type SetupOptions struct {
	ReloadOnAccountsChange bool
	CustomProvider         string
	ENSAddress             string
}

// LabelStore persists label overrides.
type LabelStore interface {
	Load(ctx context.Context) (map[string]string, error)
	Save(ctx context.Context, labels map[string]string) error
}

// Setup runs local network setup. Repeated runs with the same inputs leave persisted
// labels unchanged and keep at most one accounts watcher alive.
type Setup struct {
	Labels            LabelStore
	PollInterval      time.Duration
	OnAccountsChanged func()

	mu      sync.Mutex
	watcher *accountsWatcher
}

func (s *Setup) Run(ctx context.Context, opts SetupOptions, overrides map[string]string) error {
	addr := strings.TrimSpace(opts.ENSAddress)
	if !common.IsHexAddress(addr) {
		return fmt.Errorf("%w: %q", ErrInvalidENSAddress, opts.ENSAddress)
	}
	providerURL := strings.TrimSpace(opts.CustomProvider)
	if providerURL == "" {
		providerURL = DefaultCustomProvider
	}
	if err := checkProvider(ctx, providerURL); err != nil {
		return err
	}

	if s.Labels != nil {
		existing, err := s.Labels.Load(ctx)
		if err != nil {
			return err
		}
		if err := s.Labels.Save(ctx, MergeLabels(existing, overrides)); err != nil {
			return err
		}
	}

	if opts.ReloadOnAccountsChange {
		s.watch(providerURL)
	}
	log.Debug().
		Str("provider", providerURL).
		Str("registry", common.HexToAddress(addr).Hex()).
		Int("overrides", len(overrides)).
		Msg("ens_local_setup")
	return nil
}

// Stop ends the accounts watcher, if any.
func (s *Setup) Stop() {
	s.mu.Lock()
	w := s.watcher
	s.watcher = nil
	s.mu.Unlock()
	if w != nil {
		w.stop()
	}
}

func (s *Setup) watch(providerURL string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.watcher != nil {
		if s.watcher.url == providerURL {
			return
		}
		s.watcher.stop()
	}
	s.watcher = startAccountsWatcher(providerURL, s.PollInterval, s.OnAccountsChanged)
}

func checkProvider(ctx context.Context, url string) error {
	rpc, err := ethclient.DialContext(ctx, url)
	if err != nil {
		return fmt.Errorf("%w: %s: %v", ErrProvider, url, err)
	}
	defer rpc.Close()
	if _, err := rpc.ChainID(ctx); err != nil {
		return fmt.Errorf("%w: %s: %v", ErrProvider, url, err)
	}
	return nil
}
