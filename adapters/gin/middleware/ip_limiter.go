package middleware

import (
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/abhissng/relay/adapters/log"
	"github.com/abhissng/relay/utils/constant"
	"github.com/gin-gonic/gin"
	"github.com/hashicorp/golang-lru/v2/expirable"
	"golang.org/x/time/rate"
)

// DefaultMaxClients bounds how many client limiters are tracked at once.
const DefaultMaxClients = 10_000

// IPRateLimiter keeps one token bucket per client address. Buckets of
// clients idle for longer than ttl, or beyond the size bound, are dropped.
type IPRateLimiter struct {
	clients *expirable.LRU[string, *rate.Limiter]
	mu      sync.Mutex
	rate    rate.Limit
	burst   int
	ttl     time.Duration
	logger  *log.Log
}

// NewIPRateLimiter creates a new rate limiter manager.
// r: The number of events allowed per second.
// b: The burst size (how many requests can be made in a short burst).
// ttl: How long to keep an IP's limiter in memory after its last request.
func NewIPRateLimiter(r rate.Limit, b int, ttl time.Duration, logger *log.Log) *IPRateLimiter {
	if logger == nil {
		logger = log.NewNopLogger()
	}
	return &IPRateLimiter{
		clients: expirable.NewLRU[string, *rate.Limiter](DefaultMaxClients, nil, ttl),
		rate:    r,
		burst:   b,
		ttl:     ttl,
		logger:  logger,
	}
}

// getLimiter retrieves or creates a limiter for a given IP address and
// refreshes its expiry.
func (l *IPRateLimiter) getLimiter(ip string) *rate.Limiter {
	l.mu.Lock()
	defer l.mu.Unlock()

	limiter, ok := l.clients.Get(ip)
	if !ok {
		limiter = rate.NewLimiter(l.rate, l.burst)
	}
	l.clients.Add(ip, limiter)
	return limiter
}

// Len returns the number of tracked clients.
func (l *IPRateLimiter) Len() int {
	return l.clients.Len()
}

// clientIP reads the address from RemoteAddr, which is not spoofable.
// Behind a trusted proxy, configure Gin's TrustedProxies instead.
func clientIP(remoteAddr string) string {
	host, _, err := net.SplitHostPort(remoteAddr)
	if err != nil {
		return remoteAddr
	}
	return host
}

// Middleware returns the Gin middleware handler.
func (l *IPRateLimiter) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		ip := clientIP(c.Request.RemoteAddr)
		if !l.getLimiter(ip).Allow() {
			retryAfter := 1
			if l.rate > 0 {
				retryAfter = max(1, int(time.Duration(float64(time.Second)/float64(l.rate)).Seconds()))
			}
			c.Header("Retry-After", strconv.Itoa(retryAfter))
			c.Header("X-RateLimit-Limit", strconv.Itoa(l.burst))
			l.logger.Warn(constant.RateLimitExceeded, log.String("client_ip", ip), log.String("path", c.Request.URL.Path))
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"error": "Too many requests"})
			return
		}

		c.Next()
	}
}
