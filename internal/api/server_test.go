package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"nhooyr.io/websocket"

	"github.com/VenkatGGG/site-sherpa/internal/action"
	"github.com/VenkatGGG/site-sherpa/internal/planner"
)

type panickingScorer struct{}

func (panickingScorer) Name() string { return "panicking" }

func (panickingScorer) Score(context.Context, string, []string) ([]float64, error) {
	panic("scorer exploded")
}

type erroringPlanner struct{}

func (erroringPlanner) Plan(context.Context, planner.Request) (action.Action, error) {
	return action.Action{}, errors.New("boom")
}

func newTestServer(opts Options) *Server {
	return NewServer(planner.New(planner.Deps{}, planner.Options{}), opts)
}

func postNavigate(t *testing.T, handler http.Handler, path string, body any, headers map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	raw, err := json.Marshal(body)
	if err != nil {
		t.Fatalf("marshal body: %v", err)
	}
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(raw))
	req.Header.Set("Content-Type", "application/json")
	for key, value := range headers {
		req.Header.Set(key, value)
	}
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)
	return rr
}

func decodeAction(t *testing.T, rr *httptest.ResponseRecorder) action.Action {
	t.Helper()
	var act action.Action
	if err := json.Unmarshal(rr.Body.Bytes(), &act); err != nil {
		t.Fatalf("decode action: %v body=%s", err, rr.Body.String())
	}
	return act
}

func TestHealthz(t *testing.T) {
	srv := newTestServer(Options{Capabilities: map[string]bool{"embeddings": false, "translation": true}})
	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rr := httptest.NewRecorder()

	srv.Routes().ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rr.Code)
	}
	var body struct {
		Status       string          `json:"status"`
		Capabilities map[string]bool `json:"capabilities"`
	}
	if err := json.Unmarshal(rr.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode health: %v", err)
	}
	if body.Status != "ok" || !body.Capabilities["translation"] || body.Capabilities["embeddings"] {
		t.Fatalf("unexpected health body %+v", body)
	}
}

func TestNavigateTeleport(t *testing.T) {
	routes := newTestServer(Options{}).Routes()

	for _, path := range []string{"/navigate", "/v1/navigate"} {
		rr := postNavigate(t, routes, path, map[string]any{
			"query":       "open lounge booking",
			"current_url": "https://www.irctc.co.in/nget/train-search",
		}, nil)
		if rr.Code != http.StatusOK {
			t.Fatalf("%s: expected status 200, got %d body=%s", path, rr.Code, rr.Body.String())
		}
		act := decodeAction(t, rr)
		if act.Kind != action.KindDirectTeleport || act.URL != "https://www.irctc.co.in/nget/lounge-booking" {
			t.Fatalf("%s: unexpected action %+v", path, act)
		}
		if _, err := uuid.Parse(act.RequestID); err != nil {
			t.Fatalf("%s: expected uuid request id, got %q", path, act.RequestID)
		}
	}
}

func TestNavigateGoogleClickKeepsZeroIndex(t *testing.T) {
	rr := postNavigate(t, newTestServer(Options{}).Routes(), "/v1/navigate", map[string]any{
		"query":       "open the first result",
		"current_url": "https://www.google.com/search?q=trains",
	}, nil)
	if !strings.Contains(rr.Body.String(), `"index":0`) {
		t.Fatalf("expected index 0 in body, got %s", rr.Body.String())
	}
}

func TestNavigateValidation(t *testing.T) {
	routes := newTestServer(Options{}).Routes()

	badJSON := httptest.NewRequest(http.MethodPost, "/v1/navigate", strings.NewReader("{not json"))
	rr := httptest.NewRecorder()
	routes.ServeHTTP(rr, badJSON)
	if rr.Code != http.StatusBadRequest || !strings.Contains(rr.Body.String(), "invalid_json") {
		t.Fatalf("expected invalid_json 400, got %d body=%s", rr.Code, rr.Body.String())
	}

	rr = postNavigate(t, routes, "/v1/navigate", map[string]any{"current_url": "https://example.com"}, nil)
	if rr.Code != http.StatusBadRequest || !strings.Contains(rr.Body.String(), "query is required") {
		t.Fatalf("expected missing query 400, got %d body=%s", rr.Code, rr.Body.String())
	}

	rr = postNavigate(t, routes, "/v1/navigate", map[string]any{"query": "open cart"}, nil)
	if rr.Code != http.StatusBadRequest || !strings.Contains(rr.Body.String(), "current_url is required") {
		t.Fatalf("expected missing current_url 400, got %d body=%s", rr.Code, rr.Body.String())
	}

	get := httptest.NewRequest(http.MethodGet, "/v1/navigate", nil)
	rr = httptest.NewRecorder()
	routes.ServeHTTP(rr, get)
	if rr.Code != http.StatusMethodNotAllowed {
		t.Fatalf("expected 405, got %d", rr.Code)
	}
}

func TestNavigatePlannerFaultBecomesSystemError(t *testing.T) {
	srv := NewServer(planner.New(planner.Deps{Scorer: panickingScorer{}}, planner.Options{}), Options{})
	routes := srv.Routes()

	rr := postNavigate(t, routes, "/v1/navigate", map[string]any{
		"query":        "open pricing",
		"current_url":  "https://example.com",
		"html_content": "<body><a>Pricing</a></body>",
	}, nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rr.Code)
	}
	act := decodeAction(t, rr)
	if act.Kind != action.KindSpeak || act.Message != action.MessageSystemError {
		t.Fatalf("expected system error speak, got %+v", act)
	}

	metricsReq := httptest.NewRequest(http.MethodGet, "/v1/metrics", nil)
	metricsRR := httptest.NewRecorder()
	routes.ServeHTTP(metricsRR, metricsReq)
	if !strings.Contains(metricsRR.Body.String(), "sitesherpa_planner_faults_total 1") {
		t.Fatalf("expected fault counter, got %s", metricsRR.Body.String())
	}
}

func TestNavigatePlannerErrorBecomesSystemError(t *testing.T) {
	rr := postNavigate(t, NewServer(erroringPlanner{}, Options{}).Routes(), "/navigate", map[string]any{
		"query":       "anything",
		"current_url": "https://example.com",
	}, nil)
	act := decodeAction(t, rr)
	if rr.Code != http.StatusOK || act.Message != action.MessageSystemError {
		t.Fatalf("expected 200 system error, got %d %+v", rr.Code, act)
	}
}

func TestMetricsCountsActions(t *testing.T) {
	routes := newTestServer(Options{}).Routes()
	for i := 0; i < 2; i++ {
		postNavigate(t, routes, "/v1/navigate", map[string]any{"query": "hello", "current_url": "https://example.com"}, nil)
	}

	req := httptest.NewRequest(http.MethodGet, "/v1/metrics", nil)
	rr := httptest.NewRecorder()
	routes.ServeHTTP(rr, req)
	body := rr.Body.String()
	if !strings.Contains(body, `sitesherpa_actions_total{action="speak"} 2`) {
		t.Fatalf("expected speak counter, got %s", body)
	}
	if !strings.Contains(body, `sitesherpa_actions_total{action="direct_teleport"} 0`) {
		t.Fatalf("expected zero-valued kinds to be listed, got %s", body)
	}
	if !strings.Contains(body, "sitesherpa_requests_total 2") {
		t.Fatalf("expected request total, got %s", body)
	}
}

func TestCORSPreflight(t *testing.T) {
	routes := newTestServer(Options{APIKey: "secret"}).Routes()
	req := httptest.NewRequest(http.MethodOptions, "/v1/navigate", nil)
	req.Header.Set("Origin", "chrome-extension://abcdef")
	req.Header.Set("Access-Control-Request-Method", "POST")
	rr := httptest.NewRecorder()
	routes.ServeHTTP(rr, req)

	if rr.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", rr.Code)
	}
	if rr.Header().Get("Access-Control-Allow-Origin") != "chrome-extension://abcdef" {
		t.Fatalf("expected extension origin to be echoed, got %q", rr.Header().Get("Access-Control-Allow-Origin"))
	}
	if !strings.Contains(rr.Header().Get("Access-Control-Allow-Headers"), "X-API-Key") {
		t.Fatalf("expected api key header to be allowed")
	}
}

func TestForeignOriginCannotReadStoredCredentials(t *testing.T) {
	routes := newTestServer(Options{}).Routes()
	body := map[string]any{
		"query":        "login",
		"current_url":  "https://accounts.example.com",
		"html_content": `<input name="username"><input type="password">`,
	}

	rr := postNavigate(t, routes, "/v1/navigate", body, map[string]string{"Origin": "https://evil.example"})
	if rr.Code != http.StatusForbidden {
		t.Fatalf("expected 403 for foreign origin, got %d", rr.Code)
	}
	if strings.Contains(rr.Body.String(), "secure_autofill") {
		t.Fatalf("foreign origin received an action: %s", rr.Body.String())
	}

	preflight := httptest.NewRequest(http.MethodOptions, "/v1/navigate", nil)
	preflight.Header.Set("Origin", "https://evil.example")
	pr := httptest.NewRecorder()
	routes.ServeHTTP(pr, preflight)
	if pr.Code != http.StatusForbidden || pr.Header().Get("Access-Control-Allow-Origin") != "" {
		t.Fatalf("expected rejected preflight, got %d %q", pr.Code, pr.Header().Get("Access-Control-Allow-Origin"))
	}

	rr = postNavigate(t, routes, "/v1/navigate", body, map[string]string{"Origin": "chrome-extension://abcdef"})
	if rr.Code != http.StatusOK {
		t.Fatalf("expected extension origin to be served, got %d", rr.Code)
	}
}

func TestNavigateRequiresAPIKey(t *testing.T) {
	routes := newTestServer(Options{APIKey: "secret"}).Routes()
	body := map[string]any{"query": "hello", "current_url": "https://example.com"}

	rr := postNavigate(t, routes, "/v1/navigate", body, nil)
	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rr.Code)
	}
	rr = postNavigate(t, routes, "/v1/navigate", body, map[string]string{"Authorization": "Bearer secret"})
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200 with key, got %d", rr.Code)
	}
}

func TestNavigateRateLimited(t *testing.T) {
	routes := newTestServer(Options{RateLimit: 1, RateLimitWindow: time.Hour}).Routes()
	body := map[string]any{"query": "hello", "current_url": "https://example.com"}

	if rr := postNavigate(t, routes, "/v1/navigate", body, nil); rr.Code != http.StatusOK {
		t.Fatalf("expected first request allowed, got %d", rr.Code)
	}
	if rr := postNavigate(t, routes, "/v1/navigate", body, nil); rr.Code != http.StatusTooManyRequests {
		t.Fatalf("expected 429, got %d", rr.Code)
	}
}

func TestPlaygroundRoute(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rr := httptest.NewRecorder()
	newTestServer(Options{}).Routes().ServeHTTP(rr, req)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rr.Code)
	}
	if !strings.Contains(rr.Body.String(), "SiteSherpa Playground") {
		t.Fatalf("playground response missing expected title")
	}

	missing := httptest.NewRequest(http.MethodGet, "/nope", nil)
	rr = httptest.NewRecorder()
	newTestServer(Options{}).Routes().ServeHTTP(rr, missing)
	if rr.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rr.Code)
	}
}

func TestNavigateWebsocketRoundTrip(t *testing.T) {
	ts := httptest.NewServer(newTestServer(Options{}).Routes())
	defer ts.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	conn, _, err := websocket.Dial(ctx, "ws"+strings.TrimPrefix(ts.URL, "http")+"/v1/navigate/ws", nil)
	if err != nil {
		t.Fatalf("dial websocket: %v", err)
	}
	defer conn.Close(websocket.StatusNormalClosure, "done")

	request := []byte(`{"query":"show my orders","current_url":"https://www.amazon.in/"}`)
	if err := conn.Write(ctx, websocket.MessageText, request); err != nil {
		t.Fatalf("write request: %v", err)
	}
	_, raw, err := conn.Read(ctx)
	if err != nil {
		t.Fatalf("read reply: %v", err)
	}
	var act action.Action
	if err := json.Unmarshal(raw, &act); err != nil {
		t.Fatalf("decode reply: %v", err)
	}
	if act.Kind != action.KindDirectTeleport || act.URL != "https://www.amazon.in/gp/css/order-history" {
		t.Fatalf("unexpected websocket action %+v", act)
	}

	if err := conn.Write(ctx, websocket.MessageText, []byte(`{"query":""}`)); err != nil {
		t.Fatalf("write invalid request: %v", err)
	}
	_, raw, err = conn.Read(ctx)
	if err != nil {
		t.Fatalf("read error reply: %v", err)
	}
	if !strings.Contains(string(raw), "invalid_request") {
		t.Fatalf("expected validation error, got %s", raw)
	}
}
