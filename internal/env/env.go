// Package env reads the process-wide environment flags that shape network setup and
// routing. Values are read once at startup and never change afterwards.
package env

import (
	"os"
	"strings"

	"github.com/danmuck/namegate/internal/network"
	"github.com/joho/godotenv"
)

const (
	EnvStage      = "NAMEGATE_STAGE"
	EnvENSAddress = "NAMEGATE_ENS_ADDRESS"
	EnvLabels     = "NAMEGATE_LABELS"
	EnvIPFS       = "NAMEGATE_IPFS"
)

type Stage string

const (
	StageLocal Stage = "local"
	StageDev   Stage = "dev"
	StageProd  Stage = "prod"
)

// Environment is the read-only flag set.
type Environment struct {
	Stage      Stage
	ENSAddress string
	// Labels is the raw JSON object of label overrides.
	Labels string
	IPFS   bool
}

// Load reads the optional dotenv files into the process environment, then resolves
// the flags. Variables already set in the environment win over dotenv values.
func Load(files ...string) (Environment, error) {
	if len(files) == 0 {
		files = []string{".env"}
	}
	present := make([]string, 0, len(files))
	for _, f := range files {
		if _, err := os.Stat(f); err == nil {
			present = append(present, f)
		}
	}
	if len(present) > 0 {
		if err := godotenv.Load(present...); err != nil {
			return Environment{}, err
		}
	}
	return FromLookup(os.Getenv), nil
}

// FromLookup resolves flags through getenv.
func FromLookup(getenv func(string) string) Environment {
	stage := Stage(strings.ToLower(strings.TrimSpace(getenv(EnvStage))))
	if stage == "" {
		stage = StageProd
	}
	return Environment{
		Stage:      stage,
		ENSAddress: strings.TrimSpace(getenv(EnvENSAddress)),
		Labels:     strings.TrimSpace(getenv(EnvLabels)),
		IPFS:       strings.TrimSpace(getenv(EnvIPFS)) == "True",
	}
}

// LocalSetupEnabled reports whether a pass targeting target must first run local
// network setup: local stage, a fixed registry address, and not the read-only network.
func (e Environment) LocalSetupEnabled(target network.Optional) bool {
	if e.Stage != StageLocal || e.ENSAddress == "" {
		return false
	}
	return !(target.Set && target.ID == network.Mainnet)
}
