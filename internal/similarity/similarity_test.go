package similarity

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	openai "github.com/sashabaranov/go-openai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSubstringScorer(t *testing.T) {
	t.Parallel()

	scores, err := SubstringScorer{}.Score(context.Background(), "click contact us", []string{"Contact Us", "Home", "click contact us now", ""})
	require.NoError(t, err)
	assert.Equal(t, []float64{1, 0, 1, 0}, scores)
}

func TestBest(t *testing.T) {
	t.Parallel()

	idx, score := Best([]float64{0.1, 0.7, 0.7, 0.2})
	assert.Equal(t, 1, idx)
	assert.InDelta(t, 0.7, score, 1e-9)

	idx, _ = Best(nil)
	assert.Equal(t, -1, idx)
}

func TestCosine(t *testing.T) {
	t.Parallel()

	assert.InDelta(t, 1.0, Cosine([]float32{1, 2}, []float32{2, 4}), 1e-9)
	assert.InDelta(t, 0.0, Cosine([]float32{1, 0}, []float32{0, 1}), 1e-9)
	assert.Equal(t, 0.0, Cosine([]float32{1}, []float32{1, 2}))
	assert.Equal(t, 0.0, Cosine([]float32{0, 0}, []float32{1, 2}))
}

type failingScorer struct{ calls int }

func (f *failingScorer) Name() string { return "failing" }

func (f *failingScorer) Score(context.Context, string, []string) ([]float64, error) {
	f.calls++
	return nil, errors.New("model unavailable")
}

type shortScorer struct{}

func (shortScorer) Name() string { return "short" }

func (shortScorer) Score(context.Context, string, []string) ([]float64, error) {
	return []float64{0.9}, nil
}

func TestFallbackScorerDegradesOnError(t *testing.T) {
	t.Parallel()

	primary := &failingScorer{}
	scorer := NewFallbackScorer(primary, nil, nil)

	scores, err := scorer.Score(context.Background(), "open contact", []string{"Contact", "Home"})
	require.NoError(t, err)
	assert.Equal(t, []float64{1, 0}, scores)
	assert.Equal(t, 1, primary.calls)
	assert.Equal(t, "failing+substring", scorer.Name())
}

func TestFallbackScorerRejectsMismatchedLength(t *testing.T) {
	t.Parallel()

	scorer := NewFallbackScorer(shortScorer{}, SubstringScorer{}, nil)
	scores, err := scorer.Score(context.Background(), "home", []string{"Home", "About"})
	require.NoError(t, err)
	assert.Equal(t, []float64{1, 0}, scores)
}

func newEmbeddingServer(t *testing.T, vectors map[string][]float32) *openai.Client {
	t.Helper()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasSuffix(r.URL.Path, "/embeddings") {
			http.NotFound(w, r)
			return
		}
		var req struct {
			Input []string `json:"input"`
			Model string   `json:"model"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		type item struct {
			Object    string    `json:"object"`
			Embedding []float32 `json:"embedding"`
			Index     int       `json:"index"`
		}
		data := make([]item, 0, len(req.Input))
		// Reverse order to check that results are mapped by index.
		for i := len(req.Input) - 1; i >= 0; i-- {
			vec, ok := vectors[req.Input[i]]
			if !ok {
				vec = []float32{0, 0, 1}
			}
			data = append(data, item{Object: "embedding", Embedding: vec, Index: i})
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"object": "list",
			"data":   data,
			"model":  req.Model,
			"usage":  map[string]int{"prompt_tokens": 1, "total_tokens": 1},
		})
	}))
	t.Cleanup(srv.Close)

	cfg := openai.DefaultConfig("test-key")
	cfg.BaseURL = srv.URL + "/v1"
	return openai.NewClientWithConfig(cfg)
}

func TestEmbeddingScorerRanksByCosine(t *testing.T) {
	t.Parallel()

	client := newEmbeddingServer(t, map[string][]float32{
		"show me my bookings": {1, 0, 0},
		"My Trips":            {0.9, 0.1, 0},
		"Help":                {0, 1, 0},
	})
	scorer, err := NewEmbeddingScorer(client, "", time.Second)
	require.NoError(t, err)

	scores, err := scorer.Score(context.Background(), "show me my bookings", []string{"Help", "My Trips"})
	require.NoError(t, err)
	require.Len(t, scores, 2)
	idx, best := Best(scores)
	assert.Equal(t, 1, idx)
	assert.Greater(t, best, DefaultThreshold)
	assert.InDelta(t, 0.0, scores[0], 1e-6)
}

func TestEmbeddingScorerSurfacesServiceError(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte(`{"error":{"message":"overloaded","type":"server_error"}}`))
	}))
	t.Cleanup(srv.Close)
	cfg := openai.DefaultConfig("test-key")
	cfg.BaseURL = srv.URL + "/v1"

	scorer, err := NewEmbeddingScorer(openai.NewClientWithConfig(cfg), "text-embedding-3-small", time.Second)
	require.NoError(t, err)
	_, err = scorer.Score(context.Background(), "query", []string{"a"})
	assert.Error(t, err)
}

func TestNewEmbeddingScorerRequiresClient(t *testing.T) {
	t.Parallel()

	_, err := NewEmbeddingScorer(nil, "", 0)
	assert.Error(t, err)
}

func TestKeywordScorer(t *testing.T) {
	t.Parallel()

	scores, err := KeywordScorer{}.Score(context.Background(), "what are the lounge opening hours", []string{
		"The executive lounge opening hours are six to midnight.",
		"Refunds are processed within seven days.",
	})
	require.NoError(t, err)
	assert.InDelta(t, 1.0, scores[0], 1e-9)
	assert.InDelta(t, 0.0, scores[1], 1e-9)

	scores, err = KeywordScorer{}.Score(context.Background(), "is it", []string{"anything"})
	require.NoError(t, err)
	assert.Equal(t, []float64{0}, scores)
}
