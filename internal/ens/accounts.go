package ens

import (
	"context"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/rpc"
	"github.com/rs/zerolog/log"
)

const defaultPollInterval = 2 * time.Second

type accountsWatcher struct {
	url    string
	cancel context.CancelFunc
	done   chan struct{}
	once   sync.Once
}

func startAccountsWatcher(url string, interval time.Duration, onChange func()) *accountsWatcher {
	if interval <= 0 {
		interval = defaultPollInterval
	}
	ctx, cancel := context.WithCancel(context.Background())
	w := &accountsWatcher{url: url, cancel: cancel, done: make(chan struct{})}
	go w.loop(ctx, interval, onChange)
	return w
}

func (w *accountsWatcher) stop() {
	w.once.Do(func() {
		w.cancel()
		<-w.done
	})
}

func (w *accountsWatcher) loop(ctx context.Context, interval time.Duration, onChange func()) {
	defer close(w.done)

	// known stays false until one poll succeeded; that poll only seeds last
	last, err := fetchAccounts(ctx, w.url)
	known := err == nil
	if err != nil {
		log.Warn().Str("provider", w.url).Err(err).Msg("ens_accounts_poll_failed")
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
		next, err := fetchAccounts(ctx, w.url)
		if err != nil {
			if ctx.Err() == nil {
				log.Warn().Str("provider", w.url).Err(err).Msg("ens_accounts_poll_failed")
			}
			continue
		}
		if !known {
			last, known = next, true
			continue
		}
		if slices.Equal(last, next) {
			continue
		}
		log.Info().Str("provider", w.url).Int("accounts", len(next)).Msg("ens_accounts_changed")
		last = next
		if onChange != nil {
			onChange()
		}
	}
}

// fetchAccounts returns the provider's accounts as sorted lowercase hex.
func fetchAccounts(ctx context.Context, url string) ([]string, error) {
	client, err := rpc.DialContext(ctx, url)
	if err != nil {
		return nil, err
	}
	defer client.Close()

	var accounts []common.Address
	if err := client.CallContext(ctx, &accounts, "eth_accounts"); err != nil {
		return nil, err
	}
	out := make([]string, 0, len(accounts))
	for _, a := range accounts {
		out = append(out, strings.ToLower(a.Hex()))
	}
	slices.Sort(out)
	return out, nil
}
