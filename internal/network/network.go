// Package network identifies chain networks and tracks which one the process targets.
package network

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

var ErrInvalidID = errors.New("network: invalid network id")

// ID identifies one chain network by its chain id.
type ID uint64

const (
	// Mainnet is served read-only; local setup never runs against it.
	Mainnet ID = 1
	Ropsten ID = 3
	Rinkeby ID = 4
	Goerli  ID = 5
	Local   ID = 1337
	Sepolia ID = 11155111
)

var names = map[ID]string{
	Mainnet: "mainnet",
	Ropsten: "ropsten",
	Rinkeby: "rinkeby",
	Goerli:  "goerli",
	Local:   "local",
	Sepolia: "sepolia",
}

func (id ID) String() string {
	if name, ok := names[id]; ok {
		return name
	}
	return "network-" + strconv.FormatUint(uint64(id), 10)
}

// ParseID accepts a decimal id, a 0x-prefixed hex id, or a known network name.
func ParseID(raw string) (ID, error) {
	s := strings.ToLower(strings.TrimSpace(raw))
	if s == "" {
		return 0, fmt.Errorf("%w: empty", ErrInvalidID)
	}
	for id, name := range names {
		if name == s {
			return id, nil
		}
	}
	var (
		v   uint64
		err error
	)
	if strings.HasPrefix(s, "0x") {
		v, err = strconv.ParseUint(s[2:], 16, 64)
	} else {
		v, err = strconv.ParseUint(s, 10, 64)
	}
	if err != nil || v == 0 {
		return 0, fmt.Errorf("%w: %q", ErrInvalidID, raw)
	}
	return ID(v), nil
}

// Optional is a network id that may be absent.
type Optional struct {
	ID  ID
	Set bool
}

func Some(id ID) Optional {
	return Optional{ID: id, Set: true}
}

func None() Optional {
	return Optional{}
}

// Or returns the held id, or fallback when unset.
func (o Optional) Or(fallback ID) ID {
	if o.Set {
		return o.ID
	}
	return fallback
}

func (o Optional) String() string {
	if !o.Set {
		return "unset"
	}
	return o.ID.String()
}
