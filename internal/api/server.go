package api

import (
	"context"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/VenkatGGG/site-sherpa/internal/action"
	"github.com/VenkatGGG/site-sherpa/internal/logging"
	"github.com/VenkatGGG/site-sherpa/internal/planner"
	"github.com/VenkatGGG/site-sherpa/pkg/httpx"
)

// Planner decides the next action for a navigation request.
type Planner interface {
	Plan(ctx context.Context, req planner.Request) (action.Action, error)
}

type Options struct {
	APIKey          string
	RateLimit       int
	RateLimitWindow time.Duration
	MaxBodyBytes    int64
	// AllowedOrigins are path.Match patterns; nil means browser extensions only.
	AllowedOrigins []string
	// Capabilities is reported as-is by the health endpoint.
	Capabilities map[string]bool
	Logger       *zap.Logger
}

type Server struct {
	planner        Planner
	requiredAPIKey string
	rateLimiter    *fixedWindowLimiter
	maxBodyBytes   int64
	allowedOrigins []string
	capabilities   map[string]bool
	metrics        *actionMetrics
	logger         *zap.Logger
}

func NewServer(p Planner, opts Options) *Server {
	var limiter *fixedWindowLimiter
	if opts.RateLimit > 0 {
		limiter = newFixedWindowLimiter(opts.RateLimit, opts.RateLimitWindow)
	}
	maxBody := opts.MaxBodyBytes
	if maxBody <= 0 {
		maxBody = 8 << 20
	}
	origins := opts.AllowedOrigins
	if origins == nil {
		origins = []string{"chrome-extension://*", "moz-extension://*"}
	}
	return &Server{
		planner:        p,
		requiredAPIKey: opts.APIKey,
		rateLimiter:    limiter,
		maxBodyBytes:   maxBody,
		allowedOrigins: origins,
		capabilities:   opts.Capabilities,
		metrics:        newActionMetrics(),
		logger:         logging.OrNop(opts.Logger),
	}
}

func (s *Server) Routes() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/", s.handlePlayground)
	mux.HandleFunc("/healthz", s.handleHealth)
	mux.HandleFunc("/navigate", s.handleNavigate)
	mux.HandleFunc("/v1/navigate", s.handleNavigate)
	mux.HandleFunc("/v1/navigate/ws", s.handleNavigateSocket)
	mux.HandleFunc("/v1/metrics", s.handleMetrics)

	return s.withCORS(s.withAPISecurity(mux))
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	capabilities := make(map[string]bool, len(s.capabilities))
	for name, enabled := range s.capabilities {
		capabilities[name] = enabled
	}
	httpx.WriteJSON(w, http.StatusOK, map[string]any{
		"status":       "ok",
		"capabilities": capabilities,
	})
}
