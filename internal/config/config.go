package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/danmuck/namegate/internal/network"
	"github.com/pelletier/go-toml/v2"
)

// NamegateConfig mirrors namegate.toml.
type NamegateConfig struct {
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

func LoadNamegateConfig(path string) (NamegateConfig, error) {
	var cfg NamegateConfig
	if err := loadToml(path, &cfg); err != nil {
		return NamegateConfig{}, err
	}
	if cfg.ID == "" {
		cfg.ID = "namegate"
	}
	if cfg.Addr == "" {
		cfg.Addr = ":8080"
	}
	if err := ValidateNamegateConfig(cfg); err != nil {
		return NamegateConfig{}, err
	}
	return cfg, nil
}

func loadToml(path string, out any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("config load failed (%s): %w", path, err)
	}
	if err := toml.Unmarshal(data, out); err != nil {
		return fmt.Errorf("config parse failed (%s): %w", path, err)
	}
	return nil
}

func ValidateNamegateConfig(cfg NamegateConfig) error {
	if strings.TrimSpace(cfg.ID) == "" {
		return fmt.Errorf("namegate config missing id")
	}
	if strings.TrimSpace(cfg.Addr) == "" {
		return fmt.Errorf("namegate config missing addr")
	}
	if strings.TrimSpace(cfg.InitialNetwork) != "" {
		if _, err := network.ParseID(cfg.InitialNetwork); err != nil {
			return fmt.Errorf("initial_network invalid: %w", err)
		}
	}
	if raw := strings.TrimSpace(cfg.AccountsPollInterval); raw != "" {
		d, err := time.ParseDuration(raw)
		if err != nil || d <= 0 {
			return fmt.Errorf("accounts_poll_interval invalid: %q", raw)
		}
	}
	if _, err := ParseEndpoints(cfg.Endpoints); err != nil {
		return err
	}
	return nil
}

// ParseEndpoints keys an endpoint table by network id. Keys may be names or ids.
func ParseEndpoints(raw map[string]string) (map[network.ID]string, error) {
	out := make(map[network.ID]string, len(raw))
	for key, url := range raw {
		id, err := network.ParseID(key)
		if err != nil {
			return nil, fmt.Errorf("endpoint %q invalid: %w", key, err)
		}
		url = strings.TrimSpace(url)
		if url == "" {
			return nil, fmt.Errorf("endpoint %q missing url", key)
		}
		if _, dup := out[id]; dup {
			return nil, fmt.Errorf("endpoint %q duplicates network %s", key, id)
		}
		out[id] = url
	}
	return out, nil
}
