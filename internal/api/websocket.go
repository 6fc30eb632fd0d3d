package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"go.uber.org/zap"
	"nhooyr.io/websocket"

	"github.com/VenkatGGG/site-sherpa/internal/planner"
	"github.com/VenkatGGG/site-sherpa/pkg/httpx"
)

// handleNavigateSocket serves navigate over a websocket: every text message is
// one request and gets exactly one JSON reply.
func (s *Server) handleNavigateSocket(w http.ResponseWriter, r *http.Request) {
	// withCORS has already rejected foreign origins; extension origins fail
	// the library's host-only patterns.
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{InsecureSkipVerify: true})
	if err != nil {
		s.logger.Warn("websocket accept failed", zap.Error(err))
		return
	}
	defer conn.Close(websocket.StatusInternalError, "unexpected close")
	conn.SetReadLimit(s.maxBodyBytes)

	ctx := r.Context()
	for {
		_, message, err := conn.Read(ctx)
		if err != nil {
			switch websocket.CloseStatus(err) {
			case websocket.StatusNormalClosure, websocket.StatusGoingAway:
				conn.Close(websocket.StatusNormalClosure, "")
			default:
				if !errors.Is(err, ctx.Err()) {
					s.logger.Debug("websocket read ended", zap.Error(err))
				}
			}
			return
		}

		var reply any
		var req planner.Request
		if err := json.Unmarshal(message, &req); err != nil {
			reply = httpx.ErrorResponse{Code: "invalid_json", Message: err.Error()}
		} else if code, msg, ok := validateNavigate(req); !ok {
			reply = httpx.ErrorResponse{Code: code, Message: msg}
		} else {
			reply = s.plan(ctx, req)
		}

		raw, err := json.Marshal(reply)
		if err != nil {
			s.logger.Error("encode websocket reply", zap.Error(err))
			return
		}
		if err := conn.Write(ctx, websocket.MessageText, raw); err != nil {
			s.logger.Debug("websocket write failed", zap.Error(err))
			return
		}
	}
}
