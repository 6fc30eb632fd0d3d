package api

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/VenkatGGG/site-sherpa/internal/action"
	"github.com/VenkatGGG/site-sherpa/internal/planner"
	"github.com/VenkatGGG/site-sherpa/pkg/httpx"
)

func (s *Server) handleNavigate(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		httpx.WriteError(w, http.StatusMethodNotAllowed, "method_not_allowed", "method not allowed")
		return
	}

	var req planner.Request
	if err := httpx.DecodeJSON(w, r, s.maxBodyBytes, &req); err != nil {
		httpx.WriteError(w, http.StatusBadRequest, "invalid_json", err.Error())
		return
	}
	if code, message, ok := validateNavigate(req); !ok {
		httpx.WriteError(w, http.StatusBadRequest, code, message)
		return
	}

	httpx.WriteJSON(w, http.StatusOK, s.plan(r.Context(), req))
}

func validateNavigate(req planner.Request) (string, string, bool) {
	if strings.TrimSpace(req.Query) == "" {
		return "invalid_request", "query is required", false
	}
	if strings.TrimSpace(req.CurrentURL) == "" {
		return "invalid_request", "current_url is required", false
	}
	return "", "", true
}

// plan runs the planner for one request. It always returns a well-formed
// action; planner errors become the system error speak.
func (s *Server) plan(ctx context.Context, req planner.Request) action.Action {
	req.RequestID = uuid.NewString()
	started := time.Now()

	act, err := s.planner.Plan(ctx, req)
	elapsed := time.Since(started)
	if err != nil {
		s.logger.Error("planner fault",
			zap.String("request_id", req.RequestID),
			zap.String("current_url", req.CurrentURL),
			zap.Error(err),
		)
		s.metrics.fault()
		act = action.SystemError()
	}
	if act.Kind == "" {
		act = action.SystemError()
	}
	act.RequestID = req.RequestID
	s.metrics.observe(act.Kind, elapsed)

	s.logger.Info("navigate planned",
		zap.String("request_id", req.RequestID),
		zap.String("action", string(act.Kind)),
		zap.String("mode", req.Mode),
		zap.Duration("elapsed", elapsed),
	)
	return act
}
