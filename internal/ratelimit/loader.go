package ratelimit

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// keyFile is the on-disk shape of the API key registry: a flat list of
// credential/tier pairs, following the teacher's config.go pattern of a
// thin YAML struct decoded straight off disk.
type keyFile struct {
	Keys []struct {
		Key  string `yaml:"key"`
		Tier string `yaml:"tier"`
	} `yaml:"keys"`
}

// LoadRegistry reads the API key registry from filename. A missing file
// yields an empty registry (every caller resolves to PUBLIC), matching
// config.Load's tolerance of an absent config file.
func LoadRegistry(filename string) (*Registry, error) {
	tiers := make(map[string]Tier)
	if filename == "" {
		return NewRegistry(tiers), nil
	}

	data, err := os.ReadFile(filename)
	if err != nil {
		if os.IsNotExist(err) {
			return NewRegistry(tiers), nil
		}
		return nil, fmt.Errorf("read api key registry %s: %w", filename, err)
	}

	var parsed keyFile
	if err := yaml.Unmarshal(data, &parsed); err != nil {
		return nil, fmt.Errorf("parse api key registry %s: %w", filename, err)
	}

	for _, entry := range parsed.Keys {
		tier, err := parseTier(entry.Tier)
		if err != nil {
			return nil, fmt.Errorf("api key registry: key %q: %w", entry.Key, err)
		}
		tiers[entry.Key] = tier
	}
	return NewRegistry(tiers), nil
}

func parseTier(s string) (Tier, error) {
	switch s {
	case "PUBLIC":
		return TierPublic, nil
	case "REGISTERED":
		return TierRegistered, nil
	case "PREMIUM":
		return TierPremium, nil
	default:
		return TierPublic, fmt.Errorf("unrecognized tier %q", s)
	}
}
