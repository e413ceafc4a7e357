package config

import (
	"fmt"
	"strings"

	"github.com/danmuck/namegate/internal/ens"
	"github.com/danmuck/namegate/internal/env"
	"github.com/ethereum/go-ethereum/common"
	"github.com/joho/godotenv"
)

// LoadEnvFile resolves a dotenv file without touching the process environment.
func LoadEnvFile(path string) (env.Environment, error) {
	values, err := godotenv.Read(path)
	if err != nil {
		return env.Environment{}, fmt.Errorf("config load failed (%s): %w", path, err)
	}
	out := env.FromLookup(func(key string) string { return values[key] })
	if err := ValidateEnvironment(out); err != nil {
		return env.Environment{}, err
	}
	return out, nil
}

func ValidateEnvironment(e env.Environment) error {
	switch e.Stage {
	case env.StageLocal, env.StageDev, env.StageProd:
	default:
		return fmt.Errorf("%s invalid: %q", env.EnvStage, e.Stage)
	}
	if addr := strings.TrimSpace(e.ENSAddress); addr != "" && !common.IsHexAddress(addr) {
		return fmt.Errorf("%s invalid: %q", env.EnvENSAddress, addr)
	}
	if _, err := ens.ParseLabels(e.Labels); err != nil {
		return fmt.Errorf("%s invalid: %w", env.EnvLabels, err)
	}
	return nil
}
