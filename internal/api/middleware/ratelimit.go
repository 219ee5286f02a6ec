package middleware

import (
	"context"
	"math"
	"net"
	"net/http"
	"net/netip"
	"strconv"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/Togather-Foundation/listsync/internal/api/problem"
	"github.com/Togather-Foundation/listsync/internal/config"
	"github.com/Togather-Foundation/listsync/internal/metrics"
)

type RateLimitTier string

const (
	TierPublic RateLimitTier = "public"
	TierLogin  RateLimitTier = "login" // register and login
)

type tierCtxKey struct{}

var rateLimitTierKey tierCtxKey

func WithRateLimitTier(ctx context.Context, tier RateLimitTier) context.Context {
	return context.WithValue(ctx, rateLimitTierKey, tier)
}

// WithRateLimitTierHandler tags every request through it with tier. It must
// sit outside RateLimit.
func WithRateLimitTierHandler(tier RateLimitTier) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			next.ServeHTTP(w, r.WithContext(WithRateLimitTier(r.Context(), tier)))
		})
	}
}

func tierOf(ctx context.Context) RateLimitTier {
	if tier, ok := ctx.Value(rateLimitTierKey).(RateLimitTier); ok {
		return tier
	}
	return TierPublic
}

// Probes, scrapes and websocket upgrades never count against a client.
var unlimitedPaths = map[string]bool{
	"/healthz": true,
	"/readyz":  true,
	"/metrics": true,
	"/ws":      true,
}

// bucket is the token bucket shape of one tier: burst tokens, one refilled
// every interval.
type bucket struct {
	interval time.Duration
	burst    int
}

func bucketsFor(cfg config.RateLimitConfig) map[RateLimitTier]bucket {
	out := make(map[RateLimitTier]bucket, 2)
	if cfg.PerMinute > 0 {
		burst := cfg.Burst
		if burst <= 0 {
			burst = cfg.PerMinute
		}
		out[TierPublic] = bucket{interval: time.Minute / time.Duration(cfg.PerMinute), burst: burst}
	}
	if cfg.LoginPer15Minutes > 0 {
		out[TierLogin] = bucket{
			interval: 15 * time.Minute / time.Duration(cfg.LoginPer15Minutes),
			burst:    cfg.LoginPer15Minutes,
		}
	}
	return out
}

// RateLimit applies a token bucket per client address and tier. A tier whose
// configured rate is zero is not limited. Rejections are 429 problem
// documents whose Retry-After is the wait until the next token.
func RateLimit(cfg config.RateLimitConfig) func(http.Handler) http.Handler {
	clients := newClientBuckets(bucketsFor(cfg), 15*time.Minute)
	proxies := parseProxies(cfg.TrustedProxyCIDRs)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if unlimitedPaths[r.URL.Path] {
				next.ServeHTTP(w, r)
				return
			}

			tier := tierOf(r.Context())
			wait := clients.take(tier, clientAddr(r, proxies), time.Now())
			if wait <= 0 {
				next.ServeHTTP(w, r)
				return
			}

			metrics.RateLimited.WithLabelValues(string(tier)).Inc()
			w.Header().Set("Retry-After", strconv.Itoa(int(math.Ceil(wait.Seconds()))))
			problem.Write(w, r, http.StatusTooManyRequests, problem.TypeFor(http.StatusTooManyRequests),
				http.StatusText(http.StatusTooManyRequests), nil, "",
				problem.WithDetail("Too many requests, slow down"))
		})
	}
}

type clientBucket struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// clientBuckets holds one limiter per tier and client. Idle entries are
// swept lazily on access so no goroutine outlives the handler.
type clientBuckets struct {
	shapes map[RateLimitTier]bucket
	idle   time.Duration

	mu        sync.Mutex
	limiters  map[string]*clientBucket
	lastSweep time.Time
}

func newClientBuckets(shapes map[RateLimitTier]bucket, idle time.Duration) *clientBuckets {
	return &clientBuckets{
		shapes:    shapes,
		idle:      idle,
		limiters:  make(map[string]*clientBucket),
		lastSweep: time.Now(),
	}
}

// take spends one token for client in tier. It returns zero when the request
// may proceed, otherwise how long until a token is available.
func (c *clientBuckets) take(tier RateLimitTier, client string, now time.Time) time.Duration {
	shape, limited := c.shapes[tier]
	if !limited {
		return 0
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if now.Sub(c.lastSweep) > c.idle/3 {
		c.sweep(now)
	}

	key := string(tier) + "|" + client
	entry, ok := c.limiters[key]
	if !ok {
		entry = &clientBucket{limiter: rate.NewLimiter(rate.Every(shape.interval), shape.burst)}
		c.limiters[key] = entry
	}
	entry.lastSeen = now

	res := entry.limiter.ReserveN(now, 1)
	if !res.OK() {
		return shape.interval
	}
	if delay := res.DelayFrom(now); delay > 0 {
		res.CancelAt(now)
		return delay
	}
	return 0
}

func (c *clientBuckets) sweep(now time.Time) {
	for key, entry := range c.limiters {
		if now.Sub(entry.lastSeen) > c.idle {
			delete(c.limiters, key)
		}
	}
	c.lastSweep = now
}

func (c *clientBuckets) size() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.limiters)
}

func parseProxies(cidrs []string) []netip.Prefix {
	out := make([]netip.Prefix, 0, len(cidrs))
	for _, cidr := range cidrs {
		if p, err := netip.ParsePrefix(strings.TrimSpace(cidr)); err == nil {
			out = append(out, p.Masked())
		}
	}
	return out
}

// clientAddr identifies the caller. X-Forwarded-For and X-Real-IP are only
// believed when the peer itself is a trusted proxy.
func clientAddr(r *http.Request, proxies []netip.Prefix) string {
	peer := r.RemoteAddr
	if host, _, err := net.SplitHostPort(peer); err == nil {
		peer = host
	}

	if !fromProxy(peer, proxies) {
		return peer
	}
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		first, _, _ := strings.Cut(fwd, ",")
		return strings.TrimSpace(first)
	}
	if xr := strings.TrimSpace(r.Header.Get("X-Real-IP")); xr != "" {
		return xr
	}
	return peer
}

func fromProxy(peer string, proxies []netip.Prefix) bool {
	if len(proxies) == 0 {
		return false
	}
	addr, err := netip.ParseAddr(peer)
	if err != nil {
		return false
	}
	addr = addr.Unmap()
	for _, p := range proxies {
		if p.Contains(addr) {
			return true
		}
	}
	return false
}
