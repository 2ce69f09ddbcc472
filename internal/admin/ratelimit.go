package admin

import (
	"log/slog"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

const (
	staleLimiterTTL = 10 * time.Minute
	cleanupInterval = time.Minute
)

// RateLimitRule limits requests matching Method (empty matches any) and
// path Prefix. Rules are evaluated in order; the first match wins.
type RateLimitRule struct {
	Method string
	Prefix string
	RPS    rate.Limit
	Burst  int
}

func (r RateLimitRule) key() string {
	return r.Method + " " + r.Prefix
}

func (r RateLimitRule) matches(method, path string) bool {
	if r.Method != "" && !strings.EqualFold(r.Method, method) {
		return false
	}
	return strings.HasPrefix(path, r.Prefix)
}

// DefaultRateLimitRules throttles the endpoints that reach the remote API
// or scan the transaction table harder than plain reads.
var DefaultRateLimitRules = []RateLimitRule{
	{Method: http.MethodPost, Prefix: "/admin/v1/decode", RPS: rate.Limit(1.0 / 60), Burst: 1},
	{Method: http.MethodPost, Prefix: "/admin/v1/sync", RPS: rate.Limit(6.0 / 60), Burst: 2},
	{Method: http.MethodPost, Prefix: "/admin/v1/transactions", RPS: rate.Limit(30.0 / 60), Burst: 5},
	{Method: http.MethodPost, Prefix: "/admin/v1/watched-addresses", RPS: rate.Limit(10.0 / 60), Burst: 3},
	{Method: http.MethodDelete, Prefix: "/admin/v1/watched-addresses", RPS: rate.Limit(10.0 / 60), Burst: 3},
	{Method: http.MethodGet, Prefix: "/admin/v1/balances", RPS: rate.Limit(30.0 / 60), Burst: 5},
	{Prefix: "", RPS: 1, Burst: 5},
}

type limiterEntry struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// RateLimitMiddleware applies per-rule, per-client token buckets.
type RateLimitMiddleware struct {
	rules   []RateLimitRule
	logger  *slog.Logger
	nowFunc func() time.Time

	mu       sync.Mutex
	limiters map[string]*limiterEntry // "rule|clientIP"

	stopOnce sync.Once
	stopCh   chan struct{}
}

// NewRateLimitMiddleware uses DefaultRateLimitRules when rules is empty.
// Stop releases the background eviction goroutine.
func NewRateLimitMiddleware(logger *slog.Logger, rules ...RateLimitRule) *RateLimitMiddleware {
	if len(rules) == 0 {
		rules = DefaultRateLimitRules
	}
	rl := &RateLimitMiddleware{
		rules:    rules,
		logger:   logger.With("component", "admin_ratelimit"),
		nowFunc:  time.Now,
		limiters: make(map[string]*limiterEntry),
		stopCh:   make(chan struct{}),
	}
	go rl.cleanupLoop()
	return rl
}

func (rl *RateLimitMiddleware) Stop() {
	rl.stopOnce.Do(func() { close(rl.stopCh) })
}

func (rl *RateLimitMiddleware) cleanupLoop() {
	ticker := time.NewTicker(cleanupInterval)
	defer ticker.Stop()
	for {
		select {
		case <-rl.stopCh:
			return
		case <-ticker.C:
			rl.evictStale()
		}
	}
}

func (rl *RateLimitMiddleware) evictStale() {
	now := rl.nowFunc()
	rl.mu.Lock()
	defer rl.mu.Unlock()
	for key, entry := range rl.limiters {
		if now.Sub(entry.lastSeen) > staleLimiterTTL {
			delete(rl.limiters, key)
		}
	}
}

// LimiterCount returns the number of live per-client limiters.
func (rl *RateLimitMiddleware) LimiterCount() int {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	return len(rl.limiters)
}

func (rl *RateLimitMiddleware) Wrap(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rule, ok := rl.match(r.Method, r.URL.Path)
		if !ok {
			next.ServeHTTP(w, r)
			return
		}
		clientIP := extractClientIP(r)
		if !rl.limiterFor(rule, clientIP).Allow() {
			w.Header().Set("Retry-After", "60")
			writeError(w, http.StatusTooManyRequests, "rate limit exceeded")
			rl.logger.Warn("admin API rate limit exceeded",
				"method", r.Method,
				"path", r.URL.Path,
				"client_ip", clientIP,
			)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (rl *RateLimitMiddleware) match(method, path string) (RateLimitRule, bool) {
	for _, rule := range rl.rules {
		if rule.matches(method, path) {
			return rule, true
		}
	}
	return RateLimitRule{}, false
}

func (rl *RateLimitMiddleware) limiterFor(rule RateLimitRule, clientIP string) *rate.Limiter {
	key := rule.key() + "|" + clientIP
	now := rl.nowFunc()

	rl.mu.Lock()
	defer rl.mu.Unlock()
	if entry, ok := rl.limiters[key]; ok {
		entry.lastSeen = now
		return entry.limiter
	}
	limiter := rate.NewLimiter(rule.RPS, rule.Burst)
	rl.limiters[key] = &limiterEntry{limiter: limiter, lastSeen: now}
	return limiter
}

// extractClientIP prefers the first X-Forwarded-For hop, then X-Real-IP,
// then the connection's remote host.
func extractClientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		return strings.TrimSpace(first)
	}
	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return strings.TrimSpace(xri)
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
