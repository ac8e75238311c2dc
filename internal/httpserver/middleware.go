package httpserver

import (
	"strconv"

	"github.com/labstack/echo/v4"

	"knowledgeforge/internal/apperr"
	"knowledgeforge/internal/config"
	"knowledgeforge/internal/ratelimit"
)

type contextKey string

const (
	keyTier   contextKey = "tier"
	keyAPIKey contextKey = "api_key"
)

// authMiddleware resolves the caller's tier from X-API-Key and stashes it
// on the echo context. Absence of a credential yields PUBLIC; a malformed
// or unrecognized one is rejected here so downstream handlers never see it.
func (s *Server) authMiddleware(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		apiKey := ratelimit.ExtractCredential(c.Request().Header.Get("X-API-Key"))
		tier, err := s.registry.ResolveTier(apiKey)
		if err != nil {
			return err
		}
		c.Set(string(keyTier), tier)
		c.Set(string(keyAPIKey), apiKey)
		return next(c)
	}
}

// rateLimitMiddleware enforces the caller's hourly quota and sets
// X-RateLimit-* headers on every response.
func (s *Server) rateLimitMiddleware(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		tier, _ := c.Get(string(keyTier)).(ratelimit.Tier)
		apiKey, _ := c.Get(string(keyAPIKey)).(string)
		clientIP := ratelimit.ClientIP(c.Request().Header.Get("X-Forwarded-For"), c.Request().RemoteAddr)
		key := ratelimit.BucketKey(apiKey, clientIP)

		limit := tierLimit(s.tiers, tier)
		result := s.limiter.Allow(key, limit)

		c.Response().Header().Set("X-RateLimit-Limit", strconv.Itoa(result.Limit))
		c.Response().Header().Set("X-RateLimit-Remaining", strconv.Itoa(result.Remaining))
		c.Response().Header().Set("X-RateLimit-Reset", strconv.FormatInt(result.ResetUnix, 10))

		if !result.Allowed {
			c.Response().Header().Set("Retry-After", strconv.FormatInt(result.RetryAfterSeconds, 10))
			return apperr.New(apperr.CodeRateLimited, "rate limit exceeded")
		}
		return next(c)
	}
}

func tierLimit(tiers config.RateLimitTiers, tier ratelimit.Tier) int {
	switch tier {
	case ratelimit.TierRegistered:
		return tiers.Registered
	case ratelimit.TierPremium:
		return tiers.Premium
	default:
		return tiers.Public
	}
}

// requireTier rejects requests whose resolved tier is below required.
func (s *Server) requireTier(required ratelimit.Tier) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			tier, _ := c.Get(string(keyTier)).(ratelimit.Tier)
			if err := ratelimit.RequireTier(tier, required); err != nil {
				return err
			}
			return next(c)
		}
	}
}
