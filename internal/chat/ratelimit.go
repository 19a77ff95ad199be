package chat

import (
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/paularlott/loom/internal/util/rest"

	"golang.org/x/time/rate"
)

// Add metadata to track last use
type rateLimiterEntry struct {
	limiter  *rate.Limiter
	lastUsed time.Time
}

var (
	// Rate limit by IP address
	ipLimiters = make(map[string]*rateLimiterEntry)
	ipMutex    sync.Mutex
)

const (
	cleanupInterval = 10 * time.Minute
	cleanupMaxAge   = 30 * time.Minute
)

func cleanupLimiters() {
	ticker := time.NewTicker(cleanupInterval)
	defer ticker.Stop()

	for range ticker.C {
		cleanupTime := time.Now().Add(-cleanupMaxAge)

		ipMutex.Lock()
		for ip, entry := range ipLimiters {
			if entry.lastUsed.Before(cleanupTime) {
				delete(ipLimiters, ip)
			}
		}
		ipMutex.Unlock()
	}
}

// Helper function to get or create a rate limiter
func getIPLimiter(ip string, requestsPerMinute int, burst int) *rate.Limiter {
	ipMutex.Lock()
	defer ipMutex.Unlock()

	entry, exists := ipLimiters[ip]
	if !exists {
		// Allow requestsPerMinute requests per minute with the given burst
		entry = &rateLimiterEntry{
			limiter: rate.NewLimiter(rate.Limit(requestsPerMinute)/60.0, burst),
		}
		ipLimiters[ip] = entry
	}
	entry.lastUsed = time.Now()

	return entry.limiter
}

// RateLimit wraps a handler with a per-IP rate limit, a limit of zero
// disables limiting.
func RateLimit(requestsPerMinute int, burst int, next http.HandlerFunc) http.HandlerFunc {
	if requestsPerMinute <= 0 {
		return next
	}

	return func(w http.ResponseWriter, r *http.Request) {
		ip, _, err := net.SplitHostPort(r.RemoteAddr)
		if err != nil {
			ip = r.RemoteAddr
		}

		if !getIPLimiter(ip, requestsPerMinute, burst).Allow() {
			rest.WriteResponse(http.StatusTooManyRequests, w, r, map[string]string{
				"error": "Too many requests",
			})
			return
		}

		next(w, r)
	}
}
