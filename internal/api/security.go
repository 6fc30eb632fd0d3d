package api

import (
	"crypto/subtle"
	"net"
	"net/http"
	"net/url"
	"path"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/VenkatGGG/site-sherpa/pkg/httpx"
)

// withAPISecurity guards the planner routes with the optional API key and the
// per-client limiter. Health, metrics and the playground stay open.
func (s *Server) withAPISecurity(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !reachesPlanner(r) {
			next.ServeHTTP(w, r)
			return
		}
		if s.requiredAPIKey != "" && !requestHasAPIKey(r, s.requiredAPIKey) {
			httpx.WriteError(w, http.StatusUnauthorized, "unauthorized", "missing or invalid api key")
			return
		}
		if s.rateLimiter != nil && !s.rateLimiter.Allow(requestClientIdentity(r), time.Now()) {
			httpx.WriteError(w, http.StatusTooManyRequests, "rate_limited", "request rate limit exceeded")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func reachesPlanner(r *http.Request) bool {
	switch strings.TrimSuffix(r.URL.Path, "/") {
	case "/navigate", "/v1/navigate":
		return r.Method == http.MethodPost
	case "/v1/navigate/ws":
		return r.Method == http.MethodGet
	}
	return false
}

func requestHasAPIKey(r *http.Request, expected string) bool {
	want := strings.TrimSpace(expected)
	if want == "" {
		return true
	}
	candidates := []string{strings.TrimSpace(r.Header.Get("X-API-Key"))}
	// Browsers cannot set headers on a websocket upgrade.
	if r.URL != nil {
		candidates = append(candidates, strings.TrimSpace(r.URL.Query().Get("api_key")))
	}
	auth := strings.TrimSpace(r.Header.Get("Authorization"))
	if strings.HasPrefix(strings.ToLower(auth), "bearer ") {
		candidates = append(candidates, strings.TrimSpace(auth[7:]))
	}

	for _, candidate := range candidates {
		if candidate != "" && subtle.ConstantTimeCompare([]byte(candidate), []byte(want)) == 1 {
			return true
		}
	}
	return false
}

// withCORS answers preflights and rejects requests from browser origins that
// are neither the server itself nor on the allow list. Requests without an
// Origin header (CLI, curl, native clients) pass through.
func (s *Server) withCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := strings.TrimSpace(r.Header.Get("Origin"))
		if origin != "" {
			if !s.originAllowed(r, origin) {
				s.logger.Warn("request from disallowed origin", zap.String("origin", origin), zap.String("path", r.URL.Path))
				httpx.WriteError(w, http.StatusForbidden, "origin_not_allowed", "origin is not allowed")
				return
			}
			header := w.Header()
			header.Set("Access-Control-Allow-Origin", origin)
			header.Add("Vary", "Origin")
			header.Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
			header.Set("Access-Control-Allow-Headers", "Content-Type, Authorization, X-API-Key")
			header.Set("Access-Control-Max-Age", "600")
		}
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) originAllowed(r *http.Request, origin string) bool {
	if parsed, err := url.Parse(origin); err == nil && parsed.Host != "" && strings.EqualFold(parsed.Host, r.Host) {
		return true
	}
	for _, pattern := range s.allowedOrigins {
		if pattern == "*" {
			return true
		}
		if ok, err := path.Match(pattern, origin); err == nil && ok {
			return true
		}
	}
	return false
}

func requestClientIdentity(r *http.Request) string {
	if forwarded := r.Header.Get("X-Forwarded-For"); forwarded != "" {
		if first, _, _ := strings.Cut(forwarded, ","); strings.TrimSpace(first) != "" {
			return strings.TrimSpace(first)
		}
	}
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil && host != "" {
		return host
	}
	if r.RemoteAddr != "" {
		return r.RemoteAddr
	}
	return "unknown"
}

// fixedWindowLimiter allows limit requests per client in each window.
type fixedWindowLimiter struct {
	mu      sync.Mutex
	limit   int
	window  time.Duration
	clients map[string]rateBucket
}

type rateBucket struct {
	start time.Time
	count int
}

const limiterPruneAt = 1000

func newFixedWindowLimiter(limit int, window time.Duration) *fixedWindowLimiter {
	if limit <= 0 {
		limit = 1
	}
	if window <= 0 {
		window = time.Minute
	}
	return &fixedWindowLimiter{limit: limit, window: window, clients: make(map[string]rateBucket)}
}

func (l *fixedWindowLimiter) Allow(client string, now time.Time) bool {
	key := strings.TrimSpace(client)
	if key == "" {
		key = "unknown"
	}
	start := now.UTC().Truncate(l.window)

	l.mu.Lock()
	defer l.mu.Unlock()

	bucket, ok := l.clients[key]
	if !ok || !bucket.start.Equal(start) {
		bucket = rateBucket{start: start}
	}
	if bucket.count >= l.limit {
		return false
	}
	bucket.count++
	l.clients[key] = bucket

	if len(l.clients) >= limiterPruneAt {
		cutoff := start.Add(-2 * l.window)
		for k, b := range l.clients {
			if b.start.Before(cutoff) {
				delete(l.clients, k)
			}
		}
	}
	return true
}
