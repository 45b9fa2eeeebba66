package middleware

import (
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/training-portal/internal/config"
)

type stepClock struct {
	mu sync.Mutex
	t  time.Time
}

func (s *stepClock) now() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.t
}

func (s *stepClock) advance(d time.Duration) {
	s.mu.Lock()
	s.t = s.t.Add(d)
	s.mu.Unlock()
}

func TestTokenBucket(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { rdb.Close() })
	logger, _ := test.NewNullLogger()

	cfg := config.RateLimitConfig{
		Enabled: true, Capacity: 2, RefillTokens: 1, RefillInterval: time.Second,
		TTL: time.Minute, KeyStrategy: "ip_route", Prefix: "rl:test",
	}
	clk := &stepClock{t: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}

	e := echo.New()
	e.POST("/v1/auth/login", okHandler, newTokenBucket(cfg, rdb, logger, clk.now))
	hit := func(ip string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/v1/auth/login", nil)
		req.RemoteAddr = ip + ":5555"
		rec := httptest.NewRecorder()
		e.ServeHTTP(rec, req)
		return rec
	}

	assert.Equal(t, http.StatusNoContent, hit("10.0.0.1").Code)
	assert.Equal(t, http.StatusNoContent, hit("10.0.0.1").Code)
	blocked := hit("10.0.0.1")
	require.Equal(t, http.StatusTooManyRequests, blocked.Code)
	assert.Equal(t, "1", blocked.Header().Get("Retry-After"))
	assert.Equal(t, "too_many_requests", errorCode(t, blocked))

	assert.Equal(t, http.StatusNoContent, hit("10.0.0.2").Code, "buckets are per client")

	clk.advance(time.Second)
	assert.Equal(t, http.StatusNoContent, hit("10.0.0.1").Code)
	assert.True(t, mr.Exists("rl:test:ip:10.0.0.1:route:POST /v1/auth/login"))
}

func TestTokenBucket_FailsOpen(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr(), MaxRetries: -1})
	t.Cleanup(func() { rdb.Close() })
	mr.Close()
	logger, hook := test.NewNullLogger()

	cfg := config.RateLimitConfig{Enabled: true, Capacity: 1, RefillTokens: 1, RefillInterval: time.Second, TTL: time.Minute, Prefix: "rl"}
	rec := serve(t, "", okHandler, NewTokenBucket(cfg, rdb, logger))
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.NotEmpty(t, hook.AllEntries())
}

func TestTokenBucket_Disabled(t *testing.T) {
	logger, _ := test.NewNullLogger()
	rec := serve(t, "", okHandler, NewTokenBucket(config.RateLimitConfig{Enabled: false}, nil, logger))
	assert.Equal(t, http.StatusNoContent, rec.Code)
}
