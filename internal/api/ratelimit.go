package api

import (
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/insightsflow/insightsflow/internal/observability"
)

const (
	limiterSweepInterval = 5 * time.Minute
	limiterIdleTTL       = 10 * time.Minute
)

// rateLimiter keeps one token bucket per client address.
type rateLimiter struct {
	rps   rate.Limit
	burst int
	now   func() time.Time

	mu        sync.Mutex
	clients   map[string]*clientLimiter
	lastSweep time.Time
}

type clientLimiter struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

func newRateLimiter(rps float64, burst int) *rateLimiter {
	if burst <= 0 {
		burst = 1
	}
	return &rateLimiter{
		rps:       rate.Limit(rps),
		burst:     burst,
		now:       time.Now,
		clients:   map[string]*clientLimiter{},
		lastSweep: time.Now(),
	}
}

func (l *rateLimiter) middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		limiter := l.limiterFor(clientIP(r))
		now := l.now()
		reservation := limiter.ReserveN(now, 1)
		if !reservation.OK() {
			l.reject(w, r, 0)
			return
		}
		if delay := reservation.DelayFrom(now); delay > 0 {
			reservation.CancelAt(now)
			l.reject(w, r, int(delay.Seconds())+1)
			return
		}
		w.Header().Set("X-RateLimit-Limit", strconv.Itoa(l.burst))
		w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(int(limiter.TokensAt(now))))
		next.ServeHTTP(w, r)
	})
}

func (l *rateLimiter) limiterFor(ip string) *rate.Limiter {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	if now.Sub(l.lastSweep) > limiterSweepInterval {
		for key, client := range l.clients {
			if now.Sub(client.lastSeen) > limiterIdleTTL {
				delete(l.clients, key)
			}
		}
		l.lastSweep = now
	}

	client, ok := l.clients[ip]
	if !ok {
		client = &clientLimiter{limiter: rate.NewLimiter(l.rps, l.burst)}
		l.clients[ip] = client
	}
	client.lastSeen = now
	return client.limiter
}

func (l *rateLimiter) reject(w http.ResponseWriter, r *http.Request, retryAfter int) {
	observability.IncrementRateLimited()
	if retryAfter > 0 {
		w.Header().Set("Retry-After", strconv.Itoa(retryAfter))
	}
	writeError(r.Context(), w, http.StatusTooManyRequests, "RATE_LIMITED", "rate limit exceeded", true, nil)
}

// clientIP uses RemoteAddr only; forwarded headers are client controlled.
func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
