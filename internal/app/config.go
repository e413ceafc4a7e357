package app

import (
	"strings"
	"time"

	"github.com/danmuck/namegate/internal/ens"
	"github.com/danmuck/namegate/internal/env"
	"github.com/danmuck/namegate/internal/network"
	"github.com/danmuck/namegate/internal/observability"
)

// ServiceConfig configures one namegate process.
type ServiceConfig struct {
	ID         string
	ListenAddr string
	// InitialNetwork is the network the initial client is bound to and the baseline
	// reconciliation compares against while no override is set.
	InitialNetwork       network.ID
	ProviderURL          string
	LocalProviderURL     string
	Registry             string
	StoragePath          string
	CorsOrigins          []string
	AdminToken           string
	AccountsPollInterval time.Duration
	Reporter             observability.ReporterConfig
	Endpoints            map[network.ID]string
	Env                  env.Environment
}

func DefaultServiceConfig() ServiceConfig {
	return ServiceConfig{
		ID:                   "namegate",
		ListenAddr:           ":8080",
		InitialNetwork:       network.Mainnet,
		ProviderURL:          ens.DefaultCustomProvider,
		LocalProviderURL:     ens.DefaultCustomProvider,
		StoragePath:          "local/namegate.db",
		CorsOrigins:          []string{"http://localhost:3000"},
		AccountsPollInterval: 2 * time.Second,
		Reporter:             observability.ReporterConfig{ProjectID: "namegate"},
		Endpoints:            map[network.ID]string{},
		Env:                  env.Environment{Stage: env.StageProd},
	}
}

func (c ServiceConfig) withDefaults() ServiceConfig {
	def := DefaultServiceConfig()
	if strings.TrimSpace(c.ID) == "" {
		c.ID = def.ID
	}
	if strings.TrimSpace(c.ListenAddr) == "" {
		c.ListenAddr = def.ListenAddr
	}
	if c.InitialNetwork == 0 {
		c.InitialNetwork = def.InitialNetwork
	}
	if c.AccountsPollInterval <= 0 {
		c.AccountsPollInterval = def.AccountsPollInterval
	}
	if c.Endpoints == nil {
		c.Endpoints = map[network.ID]string{}
	}
	if c.Env.Stage == "" {
		c.Env.Stage = env.StageProd
	}
	return c
}

func normalizeOrigins(origins []string) []string {
	out := make([]string, 0, len(origins))
	for _, o := range origins {
		if o = strings.TrimSpace(o); o != "" {
			out = append(out, o)
		}
	}
	if len(out) == 0 {
		return []string{"http://localhost:3000"}
	}
	return out
}
