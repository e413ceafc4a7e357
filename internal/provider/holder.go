// Package provider owns the active data client and hands it to request handlers.
package provider

import (
	"errors"
	"sync/atomic"

	"github.com/danmuck/namegate/internal/client"
	"github.com/danmuck/namegate/internal/observability"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
)

var ErrNilClient = errors.New("provider: nil client")

const contextKey = "namegate.client"

// Holder is the single slot for the active client. Install is the only write path.
type Holder struct {
	current  atomic.Pointer[client.Client]
	installs atomic.Uint64
}

func NewHolder(initial *client.Client) *Holder {
	if initial == nil {
		initial = client.NewFallback(nil)
	}
	h := &Holder{}
	h.current.Store(initial)
	return h
}

func (h *Holder) Current() *client.Client {
	return h.current.Load()
}

// Installs counts successful Install calls since construction.
func (h *Holder) Installs() uint64 {
	return h.installs.Load()
}

// Install replaces the active client. The superseded client is left open: requests
// that captured it keep working until they finish.
func (h *Holder) Install(c *client.Client) error {
	if c == nil {
		return ErrNilClient
	}
	h.current.Store(c)
	h.installs.Add(1)

	id, bound := c.Network()
	label := "none"
	if bound {
		label = id.String()
	}
	observability.RecordClientInstall(label, c.Fallback())
	log.Info().
		Str("client", c.ID()).
		Str("network", label).
		Bool("fallback", c.Fallback()).
		Msg("client_installed")
	return nil
}

// Middleware exposes the client active at request start to downstream handlers.
func Middleware(h *Holder) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Set(contextKey, h.Current())
		c.Next()
	}
}

// FromContext returns the client placed by Middleware.
func FromContext(c *gin.Context) (*client.Client, bool) {
	v, ok := c.Get(contextKey)
	if !ok {
		return nil, false
	}
	dc, ok := v.(*client.Client)
	return dc, ok && dc != nil
}
