package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/danmuck/namegate/internal/env"
	"github.com/danmuck/namegate/internal/network"
	"github.com/danmuck/namegate/internal/testutil/testlog"
)

func TestNamegateTemplateLoadsAndValidates(t *testing.T) {
	testlog.Start(t)

	path := filepath.Join(t.TempDir(), "namegate.toml")
	if err := WriteTemplate(path, "namegate", false); err != nil {
		t.Fatalf("write template: %v", err)
	}
	cfg, err := LoadNamegateConfig(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.ID != "namegate" || cfg.Addr != ":8080" {
		t.Fatalf("unexpected identity: %+v", cfg)
	}
	endpoints, err := ParseEndpoints(cfg.Endpoints)
	if err != nil {
		t.Fatalf("parse endpoints: %v", err)
	}
	if endpoints[network.Mainnet] == "" || endpoints[network.Local] == "" {
		t.Fatalf("unexpected endpoints: %+v", endpoints)
	}
	if err := WriteTemplate(path, "namegate", false); err == nil {
		t.Fatalf("expected existing config to be kept without overwrite")
	}
}

func TestLoadNamegateConfigDefaults(t *testing.T) {
	testlog.Start(t)

	path := filepath.Join(t.TempDir(), "min.toml")
	if err := os.WriteFile(path, []byte("provider_url = \"http://x\"\n"), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	cfg, err := LoadNamegateConfig(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.ID != "namegate" || cfg.Addr != ":8080" {
		t.Fatalf("expected defaults, got %+v", cfg)
	}
}

func TestValidateNamegateConfigRejects(t *testing.T) {
	testlog.Start(t)

	base := NamegateConfig{ID: "namegate", Addr: ":8080"}
	cases := map[string]func(c *NamegateConfig){
		"initial_network":        func(c *NamegateConfig) { c.InitialNetwork = "moon" },
		"accounts_poll_interval": func(c *NamegateConfig) { c.AccountsPollInterval = "-1s" },
		"endpoint":               func(c *NamegateConfig) { c.Endpoints = map[string]string{"moon": "http://x"} },
		"missing url":            func(c *NamegateConfig) { c.Endpoints = map[string]string{"goerli": " "} },
		"duplicate":              func(c *NamegateConfig) { c.Endpoints = map[string]string{"goerli": "http://a", "5": "http://b"} },
	}
	for name, mutate := range cases {
		cfg := base
		mutate(&cfg)
		if err := ValidateNamegateConfig(cfg); err == nil {
			t.Fatalf("%s: expected validation error", name)
		}
	}
}

func TestEnvTemplateLoadsThroughDotenv(t *testing.T) {
	testlog.Start(t)

	path := filepath.Join(t.TempDir(), ".env")
	if err := WriteTemplate(path, "env", false); err != nil {
		t.Fatalf("write template: %v", err)
	}
	e, err := LoadEnvFile(path)
	if err != nil {
		t.Fatalf("load env: %v", err)
	}
	if e.Stage != env.StageLocal || e.IPFS {
		t.Fatalf("unexpected environment: %+v", e)
	}
	if !e.LocalSetupEnabled(network.Some(network.Goerli)) {
		t.Fatalf("expected local setup enabled for template")
	}
	if _, err := Template("compose"); err == nil {
		t.Fatalf("expected unknown kind error")
	}
}

func TestValidateEnvironmentRejects(t *testing.T) {
	testlog.Start(t)

	cases := map[string]env.Environment{
		"stage":   {Stage: "staging"},
		"address": {Stage: env.StageLocal, ENSAddress: "0x1234"},
		"labels":  {Stage: env.StageDev, Labels: "[1,2]"},
	}
	for name, e := range cases {
		if err := ValidateEnvironment(e); err == nil {
			t.Fatalf("%s: expected validation error", name)
		}
	}
	if err := ValidateEnvironment(env.Environment{Stage: env.StageProd, Labels: `{"a":"1"}`}); err != nil {
		t.Fatalf("expected valid environment, got %v", err)
	}
}
