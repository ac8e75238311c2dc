package ratelimit

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"knowledgeforge/internal/apperr"
)

func TestResolveTierEmptyKeyIsPublic(t *testing.T) {
	reg := NewRegistry(map[string]Tier{})
	tier, err := reg.ResolveTier("")
	require.NoError(t, err)
	assert.Equal(t, TierPublic, tier)
}

func TestResolveTierMalformedIsUnauthorized(t *testing.T) {
	reg := NewRegistry(map[string]Tier{})
	_, err := reg.ResolveTier("not-a-key")
	require.Error(t, err)
	typed, ok := apperr.As(err)
	require.True(t, ok)
	assert.Equal(t, apperr.CodeUnauthorized, typed.Code)
}

func TestResolveTierWellFormedUnrecognizedIsUnauthorized(t *testing.T) {
	reg := NewRegistry(map[string]Tier{})
	key := "kp_" + "0123456789abcdef0123456789abcdef"
	_, err := reg.ResolveTier(key)
	require.Error(t, err)
	typed, ok := apperr.As(err)
	require.True(t, ok)
	assert.Equal(t, apperr.CodeUnauthorized, typed.Code)
}

func TestResolveTierRecognizedKey(t *testing.T) {
	key := "kp_" + "0123456789abcdef0123456789abcdef"
	reg := NewRegistry(map[string]Tier{key: TierPremium})
	tier, err := reg.ResolveTier(key)
	require.NoError(t, err)
	assert.Equal(t, TierPremium, tier)
}

func TestRequireTierPassesAtOrAboveRequired(t *testing.T) {
	assert.NoError(t, RequireTier(TierRegistered, TierRegistered))
	assert.NoError(t, RequireTier(TierPremium, TierRegistered))
}

func TestRequireTierFailsBelowRequired(t *testing.T) {
	err := RequireTier(TierPublic, TierRegistered)
	require.Error(t, err)
	typed, ok := apperr.As(err)
	require.True(t, ok)
	assert.Equal(t, apperr.CodeForbidden, typed.Code)
}

func TestClientIPPrefersForwardedFor(t *testing.T) {
	assert.Equal(t, "1.2.3.4", ClientIP("1.2.3.4, 5.6.7.8", "9.9.9.9:1234"))
}

func TestClientIPFallsBackToRemoteAddr(t *testing.T) {
	assert.Equal(t, "9.9.9.9", ClientIP("", "9.9.9.9:1234"))
}

func TestClientIPUnknownWhenBothEmpty(t *testing.T) {
	assert.Equal(t, "unknown", ClientIP("", ""))
}

func TestBucketKeyPrefersAPIKey(t *testing.T) {
	assert.Equal(t, "apikey:abc", BucketKey("abc", "1.2.3.4"))
	assert.Equal(t, "ip:1.2.3.4", BucketKey("", "1.2.3.4"))
}

func TestLimiterAllowsUpToLimitThenBlocks(t *testing.T) {
	l := NewLimiter()
	for i := 0; i < 3; i++ {
		res := l.Allow("k", 3)
		assert.True(t, res.Allowed)
	}
	res := l.Allow("k", 3)
	assert.False(t, res.Allowed)
	assert.Equal(t, 0, res.Remaining)
}

func TestLimiterResetsAtHourBoundary(t *testing.T) {
	l := NewLimiter()
	base := time.Date(2026, 1, 1, 10, 59, 0, 0, time.UTC)
	l.now = func() time.Time { return base }

	res := l.Allow("k", 1)
	assert.True(t, res.Allowed)
	res = l.Allow("k", 1)
	assert.False(t, res.Allowed)

	l.now = func() time.Time { return base.Add(2 * time.Minute) }
	res = l.Allow("k", 1)
	assert.True(t, res.Allowed)
}
