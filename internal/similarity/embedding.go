package similarity

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"
)

// EmbeddingScorer embeds the query together with the candidates in one batch
// and scores each candidate by cosine similarity to the query.
type EmbeddingScorer struct {
	client  *openai.Client
	model   openai.EmbeddingModel
	timeout time.Duration
}

func NewEmbeddingScorer(client *openai.Client, model string, timeout time.Duration) (*EmbeddingScorer, error) {
	if client == nil {
		return nil, errors.New("openai client is required")
	}
	model = strings.TrimSpace(model)
	if model == "" {
		model = string(openai.SmallEmbedding3)
	}
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &EmbeddingScorer{client: client, model: openai.EmbeddingModel(model), timeout: timeout}, nil
}

func (s *EmbeddingScorer) Name() string {
	return "embedding"
}

func (s *EmbeddingScorer) Score(ctx context.Context, query string, candidates []string) ([]float64, error) {
	if len(candidates) == 0 {
		return []float64{}, nil
	}
	if strings.TrimSpace(query) == "" {
		return make([]float64, len(candidates)), nil
	}

	inputs := make([]string, 0, len(candidates)+1)
	inputs = append(inputs, query)
	for _, candidate := range candidates {
		if strings.TrimSpace(candidate) == "" {
			candidate = "-"
		}
		inputs = append(inputs, candidate)
	}

	callCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	resp, err := s.client.CreateEmbeddings(callCtx, openai.EmbeddingRequest{
		Input: inputs,
		Model: s.model,
	})
	if err != nil {
		return nil, fmt.Errorf("create embeddings: %w", err)
	}

	vectors := make([][]float32, len(inputs))
	for _, item := range resp.Data {
		if item.Index < 0 || item.Index >= len(vectors) {
			return nil, fmt.Errorf("embedding index %d out of range", item.Index)
		}
		vectors[item.Index] = item.Embedding
	}
	for i, vector := range vectors {
		if len(vector) == 0 {
			return nil, fmt.Errorf("missing embedding for input %d", i)
		}
	}

	scores := make([]float64, len(candidates))
	for i := range candidates {
		scores[i] = Cosine(vectors[0], vectors[i+1])
	}
	return scores, nil
}
