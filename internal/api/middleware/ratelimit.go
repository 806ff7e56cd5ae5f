package middleware

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/httprate"

	"github.com/reservemap/reservemap/internal/api/models"
)

// RateLimitConfig holds configuration for rate limiting.
type RateLimitConfig struct {
	RequestLimit int
	WindowLength time.Duration
}

// Default rate limits.
var (
	// SessionCreateRateLimit applies to opening sessions (30 req/min per IP).
	SessionCreateRateLimit = RateLimitConfig{
		RequestLimit: 30,
		WindowLength: time.Minute,
	}

	// StandardRateLimit applies to session events and state reads (600 req/min).
	// Typing and panning produce bursts of intents.
	StandardRateLimit = RateLimitConfig{
		RequestLimit: 600,
		WindowLength: time.Minute,
	}

	// TileRateLimit applies to tile requests (3000 req/min); one pan can
	// request dozens of tiles.
	TileRateLimit = RateLimitConfig{
		RequestLimit: 3000,
		WindowLength: time.Minute,
	}
)

// RateLimitByIP limits requests per client IP.
func RateLimitByIP(cfg RateLimitConfig) func(http.Handler) http.Handler {
	return httprate.Limit(
		cfg.RequestLimit,
		cfg.WindowLength,
		httprate.WithKeyFuncs(httprate.KeyByRealIP),
		httprate.WithLimitHandler(rateLimitExceeded(cfg.WindowLength)),
	)
}

// RateLimitBySession limits requests per authenticated session, falling back
// to the client IP. It must run after SessionAuth.
func RateLimitBySession(cfg RateLimitConfig) func(http.Handler) http.Handler {
	return httprate.Limit(
		cfg.RequestLimit,
		cfg.WindowLength,
		httprate.WithKeyFuncs(keyBySessionOrIP),
		httprate.WithLimitHandler(rateLimitExceeded(cfg.WindowLength)),
	)
}

func keyBySessionOrIP(r *http.Request) (string, error) {
	if s := GetSession(r.Context()); s != nil {
		return "session:" + s.ID(), nil
	}
	return httprate.KeyByRealIP(r)
}

func rateLimitExceeded(window time.Duration) http.HandlerFunc {
	retryAfter := strconv.Itoa(int(window.Seconds()))
	return func(w http.ResponseWriter, r *http.Request) {
		problem := models.NewTooManyRequests(GetRequestID(r.Context()), "Rate limit exceeded. Please try again later.")
		problem.Instance = r.URL.Path

		// httprate does not expose the reset time; the window is an upper bound.
		w.Header().Set("Retry-After", retryAfter)
		problem.Write(w)
	}
}
