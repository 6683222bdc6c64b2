package middleware

import (
	"context"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/tarjetajoven/api/internal/http/response"
	"github.com/tarjetajoven/api/pkg/logger"
)

// IPRateLimiter is a coarse per-IP throttle in front of the
// per-cardholder limiter, backed by Redis counters with a TTL. It fails
// open when Redis is unavailable.
type IPRateLimiter struct {
	client   redis.UniversalClient
	prefix   string
	requests int
	window   time.Duration
}

func NewIPRateLimiter(client redis.UniversalClient, prefix string, requests int, window time.Duration) *IPRateLimiter {
	return &IPRateLimiter{
		client:   client,
		prefix:   prefix,
		requests: requests,
		window:   window,
	}
}

func (rl *IPRateLimiter) Middleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if rl.client == nil {
				next.ServeHTTP(w, r)
				return
			}

			if !rl.allow(r.Context(), ClientIP(r)) {
				response.WriteError(w, http.StatusTooManyRequests,
					"Se excedio el numero de intentos. Intenta nuevamente mas tarde.",
					response.CodeRateLimit)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

func (rl *IPRateLimiter) allow(ctx context.Context, ip string) bool {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	key := rl.prefix + ":" + ip

	count, err := rl.client.Incr(ctx, key).Result()
	if err != nil {
		logger.WarnContext(ctx, "Rate limit check failed, allowing request", "error", err)
		return true
	}
	if count == 1 {
		if err := rl.client.Expire(ctx, key, rl.window).Err(); err != nil {
			logger.WarnContext(ctx, "Failed to set rate limit TTL", "error", err, "key", key)
		}
	}

	return count <= int64(rl.requests)
}

// ClientIP extracts the client address for audit purposes: first
// X-Forwarded-For value, then X-Real-IP, then the connection address.
// Never used for authorization decisions.
func ClientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		if idx := strings.Index(xff, ","); idx != -1 {
			return strings.TrimSpace(xff[:idx])
		}
		return strings.TrimSpace(xff)
	}

	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return strings.TrimSpace(xri)
	}

	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}
