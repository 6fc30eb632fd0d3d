package api

import (
	_ "embed"
	"net/http"

	"github.com/VenkatGGG/site-sherpa/pkg/httpx"
)

// handlePlayground serves a small page for trying commands against
// /v1/navigate without the extension.
func (s *Server) handlePlayground(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" && r.URL.Path != "/playground" {
		http.NotFound(w, r)
		return
	}
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		httpx.WriteError(w, http.StatusMethodNotAllowed, "method_not_allowed", "method not allowed")
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = w.Write([]byte(playgroundHTML))
}

//go:embed assets/playground.html
var playgroundHTML string
