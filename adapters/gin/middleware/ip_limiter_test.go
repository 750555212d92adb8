package middleware

import (
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"golang.org/x/time/rate"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func limitedRouter(limiter *IPRateLimiter) *gin.Engine {
	router := gin.New()
	router.Use(limiter.Middleware())
	router.GET("/test", func(c *gin.Context) {
		c.String(http.StatusOK, "OK")
	})
	return router
}

func get(router *gin.Engine, remoteAddr string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, "/test", nil)
	req.RemoteAddr = remoteAddr
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestGetLimiter_ExistingIP(t *testing.T) {
	limiter := NewIPRateLimiter(rate.Limit(10), 100, 5*time.Minute, nil)

	rl1 := limiter.getLimiter("192.168.1.1")
	rl2 := limiter.getLimiter("192.168.1.1")

	assert.Same(t, rl1, rl2, "Should return the same limiter for the same IP")
	assert.Equal(t, 1, limiter.Len(), "Should not create duplicate entries")
}

func TestGetLimiter_ExpiresIdleClients(t *testing.T) {
	limiter := NewIPRateLimiter(rate.Limit(10), 100, 50*time.Millisecond, nil)

	first := limiter.getLimiter("192.168.1.1")
	assert.Eventually(t, func() bool { return limiter.Len() == 0 }, time.Second, 10*time.Millisecond)
	assert.NotSame(t, first, limiter.getLimiter("192.168.1.1"))
}

func TestClientIPStripsPort(t *testing.T) {
	assert.Equal(t, "192.168.1.1", clientIP("192.168.1.1:5555"))
	assert.Equal(t, "::1", clientIP("[::1]:5555"))
	assert.Equal(t, "pipe", clientIP("pipe"))
}

func TestConcurrentAccess_SameIP(t *testing.T) {
	limiter := NewIPRateLimiter(rate.Limit(1000), 1000, 5*time.Minute, nil)

	var wg sync.WaitGroup
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			limiter.getLimiter("192.168.1.1")
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, limiter.Len())
}

func TestMiddleware_Returns429WhenRateLimitExceeded(t *testing.T) {
	router := limitedRouter(NewIPRateLimiter(rate.Limit(1), 2, 5*time.Minute, nil))

	assert.Equal(t, http.StatusOK, get(router, "192.168.1.1:1234").Code)
	assert.Equal(t, http.StatusOK, get(router, "192.168.1.1:1234").Code)

	w := get(router, "192.168.1.1:1234")
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Equal(t, "1", w.Header().Get("Retry-After"))
	assert.Equal(t, "2", w.Header().Get("X-RateLimit-Limit"))
	assert.Contains(t, w.Body.String(), "Too many requests")
}

func TestMiddleware_DifferentIPsHaveSeparateLimits(t *testing.T) {
	router := limitedRouter(NewIPRateLimiter(rate.Limit(1), 1, 5*time.Minute, nil))

	assert.Equal(t, http.StatusOK, get(router, "192.168.1.1:1234").Code)
	assert.Equal(t, http.StatusTooManyRequests, get(router, "192.168.1.1:1234").Code)
	assert.Equal(t, http.StatusOK, get(router, "192.168.1.2:1234").Code)
}

func BenchmarkMiddleware_SingleIP(b *testing.B) {
	router := limitedRouter(NewIPRateLimiter(rate.Limit(1e9), 1e9, 5*time.Minute, nil))
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		get(router, "192.168.1.1:1234")
	}
}
