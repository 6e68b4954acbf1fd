package providers

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"parasited/internal/structures"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewRateLimiter_Disabled(t *testing.T) {
	assert.Nil(t, NewRateLimiter(&structures.Config{}))
}

func TestRateLimitMiddleware_NilLimiterPassesThrough(t *testing.T) {
	handler := RateLimitMiddleware(nil, dummyHandler())
	for i := 0; i < 5; i++ {
		rr := httptest.NewRecorder()
		handler.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/message", nil))
		assert.Equal(t, http.StatusOK, rr.Code)
	}
}

func TestRateLimitMiddleware_RejectsOverBurst(t *testing.T) {
	limiter := NewRateLimiter(&structures.Config{Sync: structures.SyncConfig{RateLimit: 0.001, RateBurst: 2}})
	require.NotNil(t, limiter)
	handler := RateLimitMiddleware(limiter, dummyHandler())

	codes := make([]int, 0, 3)
	for i := 0; i < 3; i++ {
		rr := httptest.NewRecorder()
		handler.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/message", nil))
		codes = append(codes, rr.Code)
	}
	assert.Equal(t, []int{http.StatusOK, http.StatusOK, http.StatusTooManyRequests}, codes)
}

func TestNewRateLimiter_ZeroBurstFallsBackToOne(t *testing.T) {
	limiter := NewRateLimiter(&structures.Config{Sync: structures.SyncConfig{RateLimit: 5}})
	require.NotNil(t, limiter)
	assert.Equal(t, 1, limiter.Burst())
}
