package planner

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"runtime/debug"
	"strings"

	"go.uber.org/zap"

	"github.com/VenkatGGG/site-sherpa/internal/action"
	"github.com/VenkatGGG/site-sherpa/internal/credentials"
	"github.com/VenkatGGG/site-sherpa/internal/dom"
	"github.com/VenkatGGG/site-sherpa/internal/logging"
	"github.com/VenkatGGG/site-sherpa/internal/ordinal"
	"github.com/VenkatGGG/site-sherpa/internal/query"
	"github.com/VenkatGGG/site-sherpa/internal/similarity"
	"github.com/VenkatGGG/site-sherpa/internal/teleport"
)

// ErrFault marks an unexpected failure inside the planning chain.
var ErrFault = errors.New("planner fault")

const chatNotFound = "I couldn't find an answer to that on this page."

// Request is one navigation command together with the page it was issued on.
type Request struct {
	Query              string            `json:"query"`
	CurrentURL         string            `json:"current_url"`
	HTMLContent        string            `json:"html_content"`
	DynamicCredentials map[string]string `json:"dynamic_credentials,omitempty"`
	Mode               string            `json:"mode,omitempty"`
	Language           string            `json:"language,omitempty"`
	// Expanded is set by the client when it retries after a force_expand.
	Expanded  bool   `json:"expanded,omitempty"`
	RequestID string `json:"-"`
}

type Options struct {
	Threshold     float64
	MaxTextLen    int
	MaxCandidates int
}

type Deps struct {
	Normalizer  *query.Normalizer
	Credentials *credentials.Resolver
	Teleports   *teleport.Table
	// Scorer ranks clickable texts. ChatScorer ranks page paragraphs and
	// defaults to Scorer.
	Scorer     similarity.Scorer
	ChatScorer similarity.Scorer
	Logger     *zap.Logger
}

type Planner struct {
	normalizer  *query.Normalizer
	credentials *credentials.Resolver
	teleports   *teleport.Table
	scorer      similarity.Scorer
	chatScorer  similarity.Scorer
	opts        Options
	logger      *zap.Logger
}

func New(deps Deps, opts Options) *Planner {
	logger := logging.OrNop(deps.Logger)
	if deps.Normalizer == nil {
		deps.Normalizer = query.NewNormalizer(nil, 0, logger)
	}
	if deps.Credentials == nil {
		deps.Credentials = credentials.NewResolver(nil, 0, logger)
	}
	if deps.Teleports == nil {
		deps.Teleports = teleport.Default()
	}
	if deps.Scorer == nil {
		deps.Scorer = similarity.SubstringScorer{}
	}
	if deps.ChatScorer == nil {
		deps.ChatScorer = deps.Scorer
	}
	if opts.Threshold <= 0 {
		opts.Threshold = similarity.DefaultThreshold
	}
	return &Planner{
		normalizer:  deps.Normalizer,
		credentials: deps.Credentials,
		teleports:   deps.Teleports,
		scorer:      deps.Scorer,
		chatScorer:  deps.ChatScorer,
		opts:        opts,
		logger:      logger,
	}
}

// Plan runs the priority chain and returns exactly one action. A non-nil
// error wraps ErrFault; the returned action is then the system error speak.
func (p *Planner) Plan(ctx context.Context, req Request) (act action.Action, err error) {
	defer func() {
		if r := recover(); r != nil {
			p.logger.Error("planner panic",
				zap.String("request_id", req.RequestID),
				zap.Any("panic", r),
				zap.ByteString("stack", debug.Stack()),
			)
			act = action.SystemError()
			err = fmt.Errorf("%w: %v", ErrFault, r)
		}
	}()

	q := p.normalizer.Normalize(ctx, req.Query, req.Language, req.Mode)
	host := Host(req.CurrentURL)
	page, buildErr := dom.Build(req.HTMLContent, dom.Options{MaxTextLen: p.opts.MaxTextLen, MaxCandidates: p.opts.MaxCandidates})
	if buildErr != nil {
		p.logger.Warn("html snapshot unreadable, planning without candidates",
			zap.String("request_id", req.RequestID),
			zap.Error(buildErr),
		)
		page = dom.Page{}
	}

	log := p.logger.With(zap.String("request_id", req.RequestID), zap.String("host", host))

	if q.Mode == query.ModeChat {
		return p.chat(ctx, log, q, page), nil
	}

	if match, ok := p.teleports.Resolve(host, q.Normalized); ok {
		log.Info("teleport matched", zap.String("keyword", match.Keyword), zap.String("domain", match.Domain))
		return action.DirectTeleport(match.URL, match.Keyword), nil
	}

	if ordinal.IsSearchEngine(host) {
		if index, ok := ordinal.Resolve(q.Normalized); ok {
			return action.GoogleClick(index), nil
		}
	}

	if act, ok := p.login(ctx, log, q, host, req.DynamicCredentials, page); ok {
		return act, nil
	}

	if act, ok := p.genericMatch(ctx, log, q, page); ok {
		return act, nil
	}

	if page.Collapsed > 0 && !req.Expanded && q.ContainsAny(navigationVerbs...) {
		return action.ForceExpand(), nil
	}
	return action.Ready(), nil
}

var navigationVerbs = []string{
	"open", "go to", "goto", "click", "show", "find", "navigate", "take me", "where", "view", "check", "book",
}

func (p *Planner) chat(ctx context.Context, log *zap.Logger, q query.Query, page dom.Page) action.Action {
	if len(page.Paragraphs) == 0 || q.Normalized == "" {
		return action.ChatResponse(chatNotFound)
	}
	scores, err := p.chatScorer.Score(ctx, q.Normalized, page.Paragraphs)
	if err != nil {
		log.Warn("paragraph scoring failed", zap.String("scorer", p.chatScorer.Name()), zap.Error(err))
		return action.ChatResponse(chatNotFound)
	}
	if len(scores) != len(page.Paragraphs) {
		log.Warn("paragraph scorer returned mismatched scores", zap.Int("scores", len(scores)), zap.Int("paragraphs", len(page.Paragraphs)))
		return action.ChatResponse(chatNotFound)
	}
	best, score := similarity.Best(scores)
	if best < 0 || score <= p.opts.Threshold {
		return action.ChatResponse(chatNotFound)
	}
	return action.ChatResponse(page.Paragraphs[best])
}

func (p *Planner) genericMatch(ctx context.Context, log *zap.Logger, q query.Query, page dom.Page) (action.Action, bool) {
	texts := page.ClickableTexts()
	if len(texts) == 0 || q.Normalized == "" {
		return action.Action{}, false
	}

	scores, err := p.scorer.Score(ctx, q.Normalized, texts)
	switch {
	case err != nil:
		log.Warn("candidate scoring failed, using substring fallback", zap.String("scorer", p.scorer.Name()), zap.Error(err))
	case len(scores) != len(texts):
		log.Warn("candidate scorer returned mismatched scores", zap.Int("scores", len(scores)), zap.Int("candidates", len(texts)))
	default:
		if best, score := similarity.Best(scores); best >= 0 && score > p.opts.Threshold {
			log.Debug("candidate matched", zap.String("target", texts[best]), zap.Float64("score", score))
			return openTarget(texts[best]), true
		}
	}

	if target, ok := substringMatch(q.Normalized, texts); ok {
		return openTarget(target), true
	}
	return action.Action{}, false
}

func openTarget(text string) action.Action {
	return action.SpotlightClick(text, "Opening "+text+"...")
}

// substringMatch returns the longest candidate contained in the query, else
// the first candidate that contains the query.
func substringMatch(normalized string, texts []string) (string, bool) {
	best := ""
	for _, text := range texts {
		lower := strings.ToLower(text)
		if lower != "" && strings.Contains(normalized, lower) && len(lower) > len(best) {
			best = text
		}
	}
	if best != "" {
		return best, true
	}
	for _, text := range texts {
		if strings.Contains(strings.ToLower(text), normalized) {
			return text, true
		}
	}
	return "", false
}

// Host extracts the lowercased host name from a page URL. URLs without a
// scheme are accepted.
func Host(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ""
	}
	if !strings.Contains(raw, "://") {
		raw = "http://" + raw
	}
	parsed, err := url.Parse(raw)
	if err != nil {
		return ""
	}
	return strings.ToLower(parsed.Hostname())
}
