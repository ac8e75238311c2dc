// Package ratelimit implements credential extraction, tier resolution, and
// per-hour rate limiting for the query service, per spec.md §4.13.
package ratelimit

import (
	"net"
	"regexp"
	"strings"

	"knowledgeforge/internal/apperr"
)

// Tier is a caller's access level. Tiers are totally ordered:
// PUBLIC < REGISTERED < PREMIUM.
type Tier int

const (
	TierPublic Tier = iota
	TierRegistered
	TierPremium
)

func (t Tier) String() string {
	switch t {
	case TierPublic:
		return "PUBLIC"
	case TierRegistered:
		return "REGISTERED"
	case TierPremium:
		return "PREMIUM"
	default:
		return "UNKNOWN"
	}
}

var keyFormat = regexp.MustCompile(`^kp_[0-9a-fA-F]{32}$`)

// Registry resolves API keys to their declared tier. It is in-process and
// immutable after construction, matching the teacher's pattern of small
// read-only lookup structs built once at startup.
type Registry struct {
	tiers map[string]Tier
}

// NewRegistry builds a Registry from a fixed key->tier mapping.
func NewRegistry(tiers map[string]Tier) *Registry {
	copyOf := make(map[string]Tier, len(tiers))
	for k, v := range tiers {
		copyOf[k] = v
	}
	return &Registry{tiers: copyOf}
}

// ResolveTier looks up apiKey's tier. A well-formed but unrecognized key
// yields UNAUTHORIZED; an empty key yields PUBLIC (no credential supplied).
func (r *Registry) ResolveTier(apiKey string) (Tier, error) {
	if apiKey == "" {
		return TierPublic, nil
	}
	if !keyFormat.MatchString(apiKey) {
		return TierPublic, apperr.New(apperr.CodeUnauthorized, "malformed api key")
	}
	tier, ok := r.tiers[apiKey]
	if !ok {
		return TierPublic, apperr.New(apperr.CodeUnauthorized, "unrecognized api key")
	}
	return tier, nil
}

// ExtractCredential reads the X-API-Key header value (the caller is
// expected to have fetched it case-insensitively, which net/http's header
// map already does).
func ExtractCredential(headerValue string) string {
	return strings.TrimSpace(headerValue)
}

// RequireTier passes when callerTier >= required, else FORBIDDEN with
// current_tier/required_tier in Details (spec.md §7 scenario 4).
func RequireTier(callerTier, required Tier) error {
	if callerTier >= required {
		return nil
	}
	return apperr.New(apperr.CodeForbidden, "caller tier does not meet required tier").WithDetails(map[string]any{
		"current_tier":  callerTier.String(),
		"required_tier": required.String(),
	})
}

// ClientIP extracts the client identity for the IP-scoped rate-limit
// bucket: the first entry of X-Forwarded-For when present, else the
// socket peer, else "unknown".
func ClientIP(forwardedFor, remoteAddr string) string {
	if forwardedFor != "" {
		if first := strings.TrimSpace(strings.Split(forwardedFor, ",")[0]); first != "" {
			return first
		}
	}
	if remoteAddr != "" {
		if host, _, err := net.SplitHostPort(remoteAddr); err == nil && host != "" {
			return host
		}
		return remoteAddr
	}
	return "unknown"
}

// BucketKey is apikey:<key> when apiKey is present, else ip:<clientIP>.
func BucketKey(apiKey, clientIP string) string {
	if apiKey != "" {
		return "apikey:" + apiKey
	}
	return "ip:" + clientIP
}
