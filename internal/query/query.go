package query

import (
	"context"
	"strings"
	"time"
	"unicode"

	"go.uber.org/zap"
	"golang.org/x/text/language"

	"github.com/VenkatGGG/site-sherpa/internal/logging"
	"github.com/VenkatGGG/site-sherpa/internal/translate"
)

type Mode string

const (
	ModeAuto Mode = "auto"
	ModeChat Mode = "chat"
)

// Query is the per-request command after normalization.
type Query struct {
	Raw        string
	Normalized string
	Language   string
	Mode       Mode
}

// Contains reports whether term occurs in the normalized query as whole
// words, so "sign in" does not match "design information".
func (q Query) Contains(term string) bool {
	return q.ContainsAny(term)
}

func (q Query) ContainsAny(terms ...string) bool {
	padded := " " + strings.Join(words(q.Normalized), " ") + " "
	for _, term := range terms {
		phrase := strings.Join(words(term), " ")
		if phrase != "" && strings.Contains(padded, " "+phrase+" ") {
			return true
		}
	}
	return false
}

func words(text string) []string {
	return strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}

func ParseMode(raw string) Mode {
	if strings.EqualFold(strings.TrimSpace(raw), string(ModeChat)) {
		return ModeChat
	}
	return ModeAuto
}

type Normalizer struct {
	translator translate.Translator
	timeout    time.Duration
	logger     *zap.Logger
}

func NewNormalizer(translator translate.Translator, timeout time.Duration, logger *zap.Logger) *Normalizer {
	if translator == nil {
		translator = translate.Noop{}
	}
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &Normalizer{translator: translator, timeout: timeout, logger: logging.OrNop(logger)}
}

// Normalize produces the lowercased English form of raw. Translation failures
// fall back to the raw text.
func (n *Normalizer) Normalize(ctx context.Context, raw, lang, mode string) Query {
	lang = strings.TrimSpace(lang)
	if lang == "" {
		lang = "en"
	}
	q := Query{
		Raw:      raw,
		Language: lang,
		Mode:     ParseMode(mode),
	}

	text := strings.TrimSpace(raw)
	if !IsEnglish(lang) && text != "" {
		callCtx, cancel := context.WithTimeout(ctx, n.timeout)
		translated, err := n.translator.Translate(callCtx, text, lang)
		cancel()
		if err != nil {
			n.logger.Warn("translation failed, using raw query",
				zap.String("translator", n.translator.Name()),
				zap.String("language", lang),
				zap.Error(err),
			)
		} else if strings.TrimSpace(translated) != "" {
			text = translated
		}
	}

	q.Normalized = strings.ToLower(strings.Join(strings.Fields(text), " "))
	return q
}

// IsEnglish reports whether tag names English. Unparseable tags are treated as
// English so that no translation call is made for them.
func IsEnglish(tag string) bool {
	parsed, err := language.Parse(strings.TrimSpace(tag))
	if err != nil {
		return true
	}
	base, _ := parsed.Base()
	return base == englishBase
}

var englishBase, _ = language.English.Base()
