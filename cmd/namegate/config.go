package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/danmuck/namegate/internal/app"
	"github.com/danmuck/namegate/internal/config"
	"github.com/danmuck/namegate/internal/network"
)

// namegate config.toml key mapping to service settings.
type fileConfig struct {
	ID                   string            `toml:"id"`
	Addr                 string            `toml:"addr"`
	InitialNetwork       string            `toml:"initial_network"`
	ProviderURL          string            `toml:"provider_url"`
	LocalProviderURL     string            `toml:"local_provider_url"`
	Registry             string            `toml:"registry"`
	StoragePath          string            `toml:"storage_path"`
	CorsOrigins          []string          `toml:"cors_origins"`
	AdminToken           string            `toml:"admin_token"`
	AccountsPollInterval string            `toml:"accounts_poll_interval"`
	ReporterKey          string            `toml:"reporter_key"`
	ReporterProject      string            `toml:"reporter_project"`
	Endpoints            map[string]string `toml:"endpoints"`
}

// loadServiceConfig overlays the keys present in path onto the service defaults.
func loadServiceConfig(path string) (app.ServiceConfig, error) {
	cfg := app.DefaultServiceConfig()

	var raw fileConfig
	meta, err := toml.DecodeFile(path, &raw)
	if err != nil {
		return app.ServiceConfig{}, fmt.Errorf("load namegate config: %w", err)
	}

	if meta.IsDefined("id") {
		cfg.ID = strings.TrimSpace(raw.ID)
	}
	if meta.IsDefined("addr") {
		cfg.ListenAddr = strings.TrimSpace(raw.Addr)
	}
	if meta.IsDefined("initial_network") {
		id, err := network.ParseID(raw.InitialNetwork)
		if err != nil {
			return app.ServiceConfig{}, fmt.Errorf("load namegate config: initial_network: %w", err)
		}
		cfg.InitialNetwork = id
	}
	if meta.IsDefined("provider_url") {
		cfg.ProviderURL = strings.TrimSpace(raw.ProviderURL)
	}
	if meta.IsDefined("local_provider_url") {
		cfg.LocalProviderURL = strings.TrimSpace(raw.LocalProviderURL)
	}
	if meta.IsDefined("registry") {
		cfg.Registry = strings.TrimSpace(raw.Registry)
	}
	if meta.IsDefined("storage_path") {
		cfg.StoragePath = strings.TrimSpace(raw.StoragePath)
	}
	if meta.IsDefined("cors_origins") {
		cfg.CorsOrigins = raw.CorsOrigins
	}
	if meta.IsDefined("admin_token") {
		cfg.AdminToken = strings.TrimSpace(raw.AdminToken)
	}
	if meta.IsDefined("accounts_poll_interval") {
		d, err := time.ParseDuration(strings.TrimSpace(raw.AccountsPollInterval))
		if err != nil || d <= 0 {
			return app.ServiceConfig{}, fmt.Errorf(
				"load namegate config: accounts_poll_interval invalid: %q",
				raw.AccountsPollInterval,
			)
		}
		cfg.AccountsPollInterval = d
	}
	if meta.IsDefined("reporter_key") {
		cfg.Reporter.Key = strings.TrimSpace(raw.ReporterKey)
	}
	if meta.IsDefined("reporter_project") {
		cfg.Reporter.ProjectID = strings.TrimSpace(raw.ReporterProject)
	}
	if meta.IsDefined("endpoints") {
		endpoints, err := config.ParseEndpoints(raw.Endpoints)
		if err != nil {
			return app.ServiceConfig{}, fmt.Errorf("load namegate config: %w", err)
		}
		cfg.Endpoints = endpoints
	}

	if strings.TrimSpace(cfg.ProviderURL) == "" {
		if url, ok := cfg.Endpoints[cfg.InitialNetwork]; ok {
			cfg.ProviderURL = url
		} else {
			return app.ServiceConfig{}, fmt.Errorf("load namegate config: provider_url is required")
		}
	}
	return cfg, nil
}
