package middleware

import (
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/Bogunok/eudi-wallet/internal/logger"
	"github.com/Bogunok/eudi-wallet/internal/wallet"
)

// limiterIdleTTL is how long an unused per-client limiter is kept
const limiterIdleTTL = 10 * time.Minute

type clientLimiter struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// limiterSet holds one token bucket per key (client address or caller id)
type limiterSet struct {
	mu        sync.Mutex
	limit     rate.Limit
	burst     int
	clients   map[string]*clientLimiter
	lastSweep time.Time
	now       func() time.Time
}

func newLimiterSet(limit rate.Limit, burst int) *limiterSet {
	return &limiterSet{
		limit:   limit,
		burst:   burst,
		clients: make(map[string]*clientLimiter),
		now:     time.Now,
	}
}

func (s *limiterSet) allow(key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	if now.Sub(s.lastSweep) > limiterIdleTTL {
		for k, c := range s.clients {
			if now.Sub(c.lastSeen) > limiterIdleTTL {
				delete(s.clients, k)
			}
		}
		s.lastSweep = now
	}

	c, ok := s.clients[key]
	if !ok {
		c = &clientLimiter{limiter: rate.NewLimiter(s.limit, s.burst)}
		s.clients[key] = c
	}
	c.lastSeen = now
	return c.limiter.AllowN(now, 1)
}

// clientAddress is the remote IP (RealIP runs earlier in the chain), without the port
func clientAddress(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// RateLimit limits each client address to requestsPerSecond with the given burst.
// If requestsPerSecond <= 0, rate limiting is disabled.
func RateLimit(requestsPerSecond int32, burst int32) func(http.Handler) http.Handler {
	if requestsPerSecond <= 0 {
		return func(next http.Handler) http.Handler {
			return next
		}
	}

	limiters := newLimiterSet(rate.Limit(requestsPerSecond), int(burst))

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			addr := clientAddress(r)
			if !limiters.allow(addr) {
				logger.ContextRequestLogger(r.Context()).Warn("Rate limit exceeded",
					slog.String("component", "RateLimit"),
					slog.String("remote_addr", addr),
				)
				logger.ContextWithLogAttrs(r.Context(), slog.String("remote_addr", addr))

				wallet.RespondWithErrorResponse(w, r, wallet.NewRateLimitError("Too many requests. Please try again later."))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// PinAttemptLimit throttles requests that carry a PIN, per authenticated caller.
// Each caller gets attemptsPerMinute attempts, refilled evenly over the minute.
// It must run after Authenticate. If attemptsPerMinute <= 0, the limit is disabled.
func PinAttemptLimit(attemptsPerMinute int32) func(http.Handler) http.Handler {
	if attemptsPerMinute <= 0 {
		return func(next http.Handler) http.Handler {
			return next
		}
	}

	limiters := newLimiterSet(rate.Every(time.Minute/time.Duration(attemptsPerMinute)), int(attemptsPerMinute))

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			caller, ok := wallet.CallerFromContext(r.Context())
			if !ok {
				wallet.RespondWithErrorResponse(w, r, wallet.NewUnauthorizedError("not authenticated"))
				return
			}

			if !limiters.allow(caller.ID) {
				logger.ContextRequestLogger(r.Context()).Warn("PIN attempt limit exceeded",
					slog.String("component", "PinAttemptLimit"),
					slog.String("caller_id", caller.ID),
				)

				wallet.RespondWithErrorResponse(w, r, wallet.NewRateLimitError("Too many PIN attempts. Please wait before trying again."))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
