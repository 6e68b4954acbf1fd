package providers

import (
	"golang.org/x/time/rate"
	"net/http"
	"parasited/internal/models"
	"parasited/internal/structures"
)

// NewRateLimiter returns nil when limiting is disabled.
func NewRateLimiter(conf *structures.Config) *rate.Limiter {
	if conf.Sync.RateLimit <= 0 {
		return nil
	}
	burst := conf.Sync.RateBurst
	if burst <= 0 {
		burst = 1
	}
	return rate.NewLimiter(rate.Limit(conf.Sync.RateLimit), burst)
}

// RateLimitMiddleware sheds load from runaway observers before requests
// reach the mutation queue.
func RateLimitMiddleware(limiter *rate.Limiter, next http.Handler) http.Handler {
	if limiter == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !limiter.Allow() {
			WriteJSON(w, http.StatusTooManyRequests, models.ErrorResponse("rate limit exceeded"))
			return
		}
		next.ServeHTTP(w, r)
	})
}
