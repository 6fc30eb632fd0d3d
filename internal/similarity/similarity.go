package similarity

import (
	"context"
	"fmt"
	"math"
	"strings"

	"go.uber.org/zap"

	"github.com/VenkatGGG/site-sherpa/internal/logging"
)

// DefaultThreshold is the minimum score a candidate needs to be accepted. It
// was tuned by hand against real pages.
const DefaultThreshold = 0.25

// Scorer returns one relevance score per candidate, higher is more relevant.
type Scorer interface {
	Name() string
	Score(ctx context.Context, query string, candidates []string) ([]float64, error)
}

// SubstringScorer is the deterministic backend: 1 when either text contains
// the other, 0 otherwise.
type SubstringScorer struct{}

func (SubstringScorer) Name() string {
	return "substring"
}

func (SubstringScorer) Score(_ context.Context, query string, candidates []string) ([]float64, error) {
	q := strings.ToLower(strings.TrimSpace(query))
	scores := make([]float64, len(candidates))
	if q == "" {
		return scores, nil
	}
	for i, candidate := range candidates {
		c := strings.ToLower(strings.TrimSpace(candidate))
		if c == "" {
			continue
		}
		if strings.Contains(q, c) || strings.Contains(c, q) {
			scores[i] = 1
		}
	}
	return scores, nil
}

// FallbackScorer uses primary and switches to fallback when primary fails or
// returns a malformed result.
type FallbackScorer struct {
	primary  Scorer
	fallback Scorer
	logger   *zap.Logger
}

func NewFallbackScorer(primary, fallback Scorer, logger *zap.Logger) *FallbackScorer {
	if fallback == nil {
		fallback = SubstringScorer{}
	}
	return &FallbackScorer{primary: primary, fallback: fallback, logger: logging.OrNop(logger)}
}

func (s *FallbackScorer) Name() string {
	if s.primary == nil {
		return s.fallback.Name()
	}
	return s.primary.Name() + "+" + s.fallback.Name()
}

func (s *FallbackScorer) Score(ctx context.Context, query string, candidates []string) ([]float64, error) {
	if s.primary == nil {
		return s.fallback.Score(ctx, query, candidates)
	}
	scores, err := s.primary.Score(ctx, query, candidates)
	if err == nil && len(scores) != len(candidates) {
		err = fmt.Errorf("scorer %s returned %d scores for %d candidates", s.primary.Name(), len(scores), len(candidates))
	}
	if err == nil {
		return scores, nil
	}
	s.logger.Warn("similarity scorer degraded",
		zap.String("scorer", s.primary.Name()),
		zap.String("fallback", s.fallback.Name()),
		zap.Int("candidates", len(candidates)),
		zap.Error(err),
	)
	return s.fallback.Score(ctx, query, candidates)
}

// Best returns the index and score of the highest score. It returns -1 for
// an empty slice.
func Best(scores []float64) (int, float64) {
	best, bestScore := -1, math.Inf(-1)
	for i, score := range scores {
		if math.IsNaN(score) {
			continue
		}
		if score > bestScore {
			best, bestScore = i, score
		}
	}
	if best < 0 {
		return -1, 0
	}
	return best, bestScore
}

// Cosine returns the cosine similarity of a and b, or 0 when either is a zero
// vector or the lengths differ.
func Cosine(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, magA, magB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		magA += float64(a[i]) * float64(a[i])
		magB += float64(b[i]) * float64(b[i])
	}
	if magA == 0 || magB == 0 {
		return 0
	}
	return dot / (math.Sqrt(magA) * math.Sqrt(magB))
}
