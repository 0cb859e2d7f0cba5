package api

import (
	"crypto/subtle"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/warp/leave-engine/generic"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// requestLogger logs one line per request: Error for 5xx, Warn for 4xx.
func requestLogger(logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

			next.ServeHTTP(ww, r)

			status := ww.Status()
			if status == 0 {
				status = http.StatusOK
			}
			fields := []zap.Field{
				zap.Int("status", status),
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.String("query", r.URL.RawQuery),
				zap.String("ip", clientIP(r)),
				zap.String("request_id", middleware.GetReqID(r.Context())),
				zap.Duration("latency", time.Since(start)),
			}

			switch {
			case status >= 500:
				logger.Error("request failed", fields...)
			case status >= 400:
				logger.Warn("client error", fields...)
			default:
				logger.Info("request completed", fields...)
			}
		})
	}
}

// limiterIdleTTL is how long an IP may stay quiet before its bucket is
// dropped. A bucket idle that long has refilled, so dropping it loses nothing.
const limiterIdleTTL = 10 * time.Minute

type ipLimiter struct {
	lim      *rate.Limiter
	lastSeen time.Time
}

// ipRateLimiter hands out one token bucket per client IP and forgets IPs
// that have gone quiet.
type ipRateLimiter struct {
	mu        sync.Mutex
	ips       map[string]*ipLimiter
	r         rate.Limit
	b         int
	now       func() time.Time
	lastSweep time.Time
}

func newIPRateLimiter(r rate.Limit, b int) *ipRateLimiter {
	return &ipRateLimiter{ips: make(map[string]*ipLimiter), r: r, b: b, now: time.Now}
}

func (l *ipRateLimiter) limiter(key string) *rate.Limiter {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	if now.Sub(l.lastSweep) >= limiterIdleTTL {
		l.sweep(now)
	}

	e, ok := l.ips[key]
	if !ok {
		e = &ipLimiter{lim: rate.NewLimiter(l.r, l.b)}
		l.ips[key] = e
	}
	e.lastSeen = now
	return e.lim
}

// sweep drops buckets idle for limiterIdleTTL. Caller holds mu.
func (l *ipRateLimiter) sweep(now time.Time) {
	for ip, e := range l.ips {
		if now.Sub(e.lastSeen) >= limiterIdleTTL {
			delete(l.ips, ip)
		}
	}
	l.lastSweep = now
}

func rateLimitByIP(r rate.Limit, b int) func(http.Handler) http.Handler {
	limiter := newIPRateLimiter(r, b)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			if !limiter.limiter(clientIP(req)).Allow() {
				writeErrorBody(w, generic.ErrRateLimited)
				return
			}
			next.ServeHTTP(w, req)
		})
	}
}

// HeaderLedgerToken carries the shared secret for the ledger endpoints.
const HeaderLedgerToken = "X-Ledger-Token"

// requireLedgerToken guards endpoints that bypass the workflow's capability
// checks. An empty token leaves them open.
func requireLedgerToken(token string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if token == "" {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			got := r.Header.Get(HeaderLedgerToken)
			if subtle.ConstantTimeCompare([]byte(got), []byte(token)) != 1 {
				writeErrorBody(w, &generic.UnauthorizedError{Capability: "ledger:access"})
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// clientIP relies on middleware.RealIP having rewritten RemoteAddr.
func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
