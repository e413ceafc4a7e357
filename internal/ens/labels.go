package ens

import (
	"encoding/json"
	"fmt"
	"strings"
)

// MergeLabels returns existing overlaid with overrides. Neither input is modified.
func MergeLabels(existing, overrides map[string]string) map[string]string {
	out := make(map[string]string, len(existing)+len(overrides))
	for k, v := range existing {
		out[k] = v
	}
	for k, v := range overrides {
		out[k] = v
	}
	return out
}

// ParseLabels decodes a JSON object of label overrides. Blank input is an empty set.
func ParseLabels(raw string) (map[string]string, error) {
	out := make(map[string]string)
	if strings.TrimSpace(raw) == "" {
		return out, nil
	}
	if err := json.Unmarshal([]byte(raw), &out); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidLabels, err)
	}
	return out, nil
}
