package ratelimit

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadRegistryMissingFileIsEmpty(t *testing.T) {
	reg, err := LoadRegistry(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)
	tier, err := reg.ResolveTier("")
	require.NoError(t, err)
	assert.Equal(t, TierPublic, tier)
}

func TestLoadRegistryParsesKeys(t *testing.T) {
	path := filepath.Join(t.TempDir(), "keys.yaml")
	key := "kp_0123456789abcdef0123456789abcdef"
	content := "keys:\n  - key: " + key + "\n    tier: PREMIUM\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	reg, err := LoadRegistry(path)
	require.NoError(t, err)
	tier, err := reg.ResolveTier(key)
	require.NoError(t, err)
	assert.Equal(t, TierPremium, tier)
}

func TestLoadRegistryRejectsUnknownTier(t *testing.T) {
	path := filepath.Join(t.TempDir(), "keys.yaml")
	content := "keys:\n  - key: kp_0123456789abcdef0123456789abcdef\n    tier: GOLD\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	_, err := LoadRegistry(path)
	assert.Error(t, err)
}
