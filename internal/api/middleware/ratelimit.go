package middleware

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/httprate"

	"github.com/smogcast/smogcast/internal/api/models"
)

// RateLimitConfig is a fixed-window request budget.
type RateLimitConfig struct {
	RequestLimit int
	WindowLength time.Duration
}

var (
	// StandardRateLimit applies to point assessments and station listings.
	StandardRateLimit = RateLimitConfig{RequestLimit: 120, WindowLength: time.Minute}

	// ForecastRateLimit applies to multi-hour forecasts, which run one prediction per hour.
	ForecastRateLimit = RateLimitConfig{RequestLimit: 30, WindowLength: time.Minute}
)

// RateLimitByIP limits requests per client IP. Run after chi's RealIP.
func RateLimitByIP(cfg RateLimitConfig) func(http.Handler) http.Handler {
	retryAfter := strconv.Itoa(int(cfg.WindowLength.Seconds()))
	return httprate.Limit(
		cfg.RequestLimit,
		cfg.WindowLength,
		httprate.WithKeyFuncs(httprate.KeyByRealIP),
		httprate.WithLimitHandler(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Retry-After", retryAfter)
			models.NewTooManyRequests(GetRequestID(r.Context()), "rate limit exceeded, retry later").
				WithInstance(r.URL.Path).
				Write(w)
		}),
	)
}
