package api

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/labstack/echo/v4"

	"stash/internal/server/auth"
)

// userIDKey is the echo context key holding the resolved caller identity.
const userIDKey = "userID"

// TokenHeader carries the session token on authenticated requests.
const TokenHeader = "X-Token"

// RequireToken resolves the x-token header through the gateway and stores
// the caller's user id in the request context. Requests without a valid
// token are rejected before the handler runs.
func RequireToken(gateway *auth.Gateway) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			token := c.Request().Header.Get(TokenHeader)

			userID, err := gateway.ResolveToken(c.Request().Context(), token)
			if err != nil {
				if errors.Is(err, auth.ErrUnauthorized) {
					return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
				}
				slog.Error("token resolution failed", "error", err)
				return c.JSON(http.StatusInternalServerError, echo.Map{"error": "internal server error"})
			}

			c.Set(userIDKey, userID)
			return next(c)
		}
	}
}

// OptionalToken resolves the x-token header when present but lets the
// request through anonymously otherwise. Used by the content endpoint,
// where public files are served without credentials.
func OptionalToken(gateway *auth.Gateway) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			token := c.Request().Header.Get(TokenHeader)
			if token != "" {
				if userID, err := gateway.ResolveToken(c.Request().Context(), token); err == nil {
					c.Set(userIDKey, userID)
				}
			}
			return next(c)
		}
	}
}

// callerID returns the resolved user id, or "" for anonymous requests.
func callerID(c echo.Context) string {
	if id, ok := c.Get(userIDKey).(string); ok {
		return id
	}
	return ""
}

// visitor tracks the rate limit state for a single IP.
type visitor struct {
	tokens    float64
	lastCheck time.Time
}

// RateLimiter is a per-IP token-bucket rate limiter.
type RateLimiter struct {
	mu              sync.Mutex
	visitors        map[string]*visitor
	rate            float64 // tokens per second
	burst           int     // max tokens
	cleanupInterval time.Duration
}

// NewRateLimiter creates a rate limiter with the given rate (requests/sec)
// and burst size. The stale-entry cleanup goroutine runs until ctx is
// cancelled.
func NewRateLimiter(ctx context.Context, rps float64, burst int) *RateLimiter {
	rl := &RateLimiter{
		visitors:        make(map[string]*visitor),
		rate:            rps,
		burst:           burst,
		cleanupInterval: 5 * time.Minute,
	}

	go rl.cleanupLoop(ctx)

	return rl
}

func (rl *RateLimiter) cleanupLoop(ctx context.Context) {
	ticker := time.NewTicker(rl.cleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			rl.cleanup()
		case <-ctx.Done():
			return
		}
	}
}

// Middleware returns an echo middleware function that enforces rate limits.
func (rl *RateLimiter) Middleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			ip := c.RealIP()
			if !rl.allow(ip) {
				slog.Warn("rate limit exceeded", "ip", ip)
				return c.JSON(http.StatusTooManyRequests, echo.Map{
					"error": "rate limit exceeded, try again later",
				})
			}
			return next(c)
		}
	}
}

func (rl *RateLimiter) allow(ip string) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	v, exists := rl.visitors[ip]
	now := time.Now()

	if !exists {
		rl.visitors[ip] = &visitor{
			tokens:    float64(rl.burst) - 1,
			lastCheck: now,
		}
		return true
	}

	// Add tokens based on elapsed time
	elapsed := now.Sub(v.lastCheck).Seconds()
	v.tokens += elapsed * rl.rate
	if v.tokens > float64(rl.burst) {
		v.tokens = float64(rl.burst)
	}
	v.lastCheck = now

	if v.tokens < 1 {
		return false
	}

	v.tokens--
	return true
}

func (rl *RateLimiter) cleanup() {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	cutoff := time.Now().Add(-10 * time.Minute)
	for ip, v := range rl.visitors {
		if v.lastCheck.Before(cutoff) {
			delete(rl.visitors, ip)
		}
	}
}

// RequestLogger returns an echo middleware that logs requests using slog.
func RequestLogger() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()

			err := next(c)

			req := c.Request()
			res := c.Response()

			slog.Info("request",
				"method", req.Method,
				"path", req.URL.Path,
				"status", res.Status,
				"latency_ms", time.Since(start).Milliseconds(),
				"ip", c.RealIP(),
				"user_agent", req.UserAgent(),
				"bytes_out", res.Size,
			)

			return err
		}
	}
}
