package config

import (
	"fmt"
	"os"
	"strings"
)

func Template(kind string) (string, error) {
	switch strings.ToLower(strings.TrimSpace(kind)) {
	case "namegate":
		return namegateTemplate, nil
	case "env":
		return envTemplate, nil
	default:
		return "", fmt.Errorf("unknown config kind: %s", kind)
	}
}

func WriteTemplate(path, kind string, overwrite bool) error {
	template, err := Template(kind)
	if err != nil {
		return err
	}
	if !overwrite {
		if _, err := os.Stat(path); err == nil {
			return fmt.Errorf("config already exists: %s", path)
		}
	}
	return os.WriteFile(path, []byte(template), 0o600)
}

const namegateTemplate = `id = "namegate"
addr = ":8080"
initial_network = "mainnet"
provider_url = "http://localhost:8545"
local_provider_url = "http://localhost:8545"
registry = "0x00000000000C2E074eC69A0dFb2997BA6C7d2e1e"
storage_path = "local/namegate.db"
cors_origins = ["http://localhost:3000"]
admin_token = ""
accounts_poll_interval = "2s"
reporter_key = ""
reporter_project = "namegate"

[endpoints]
mainnet = "https://cloudflare-eth.com"
sepolia = "https://rpc.sepolia.org"
local = "http://localhost:8545"
`

const envTemplate = `NAMEGATE_STAGE=local
NAMEGATE_ENS_ADDRESS=0x00000000000C2E074eC69A0dFb2997BA6C7d2e1e
NAMEGATE_LABELS='{}'
NAMEGATE_IPFS=False
`
