package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
	"golang.org/x/time/rate"
)

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func serve(h http.Handler) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/hook", nil))
	return rec
}

func TestNewLimiter(t *testing.T) {
	assert.Equal(t, rate.Inf, NewLimiter(0, time.Minute).Limit())
	assert.Equal(t, rate.Inf, NewLimiter(10, 0).Limit())

	limiter := NewLimiter(200, time.Minute)
	assert.Equal(t, 200, limiter.Burst())
	assert.InDelta(t, 200.0/60.0, float64(limiter.Limit()), 0.001)
}

func TestRateLimit(t *testing.T) {
	h := RateLimit(NewLimiter(2, time.Hour), zap.NewNop())(okHandler())

	assert.Equal(t, http.StatusOK, serve(h).Code)
	assert.Equal(t, http.StatusOK, serve(h).Code)

	rec := serve(h)
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "application/problem+json", rec.Header().Get("Content-Type"))
	assert.Contains(t, rec.Body.String(), "rate limit exceeded")
}

func TestRateLimit_Disabled(t *testing.T) {
	h := RateLimit(NewLimiter(0, 0), zap.NewNop())(okHandler())

	for i := 0; i < 50; i++ {
		assert.Equal(t, http.StatusOK, serve(h).Code)
	}
}

func TestLogging(t *testing.T) {
	core, logs := observer.New(zap.DebugLevel)
	logger := zap.New(core)

	failing := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	})

	assert.Equal(t, http.StatusOK, serve(Logging(logger)(okHandler())).Code)
	assert.Equal(t, http.StatusBadGateway, serve(Logging(logger)(failing)).Code)

	entries := logs.All()
	if assert.Len(t, entries, 2) {
		assert.Equal(t, "Request served", entries[0].Message)
		assert.Equal(t, int64(http.StatusOK), entries[0].ContextMap()["status"])
		assert.Equal(t, "Request failed", entries[1].Message)
		assert.Equal(t, int64(http.StatusBadGateway), entries[1].ContextMap()["status"])
	}
}
