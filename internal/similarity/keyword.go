package similarity

import (
	"context"
	"regexp"
	"strings"
)

var wordExpr = regexp.MustCompile(`[\p{L}\p{N}]+`)

var stopWords = map[string]struct{}{
	"the": {}, "and": {}, "for": {}, "are": {}, "what": {}, "when": {}, "where": {},
	"which": {}, "who": {}, "how": {}, "this": {}, "that": {}, "with": {}, "from": {},
	"does": {}, "can": {}, "you": {}, "tell": {}, "about": {}, "page": {}, "there": {},
	"is": {}, "me": {}, "of": {}, "to": {}, "in": {}, "on": {}, "a": {}, "an": {},
}

// KeywordScorer scores a candidate by the share of the query's content words
// it contains. It is the offline scorer for long passages where substring
// containment almost never fires.
type KeywordScorer struct{}

func (KeywordScorer) Name() string {
	return "keyword"
}

func (KeywordScorer) Score(_ context.Context, query string, candidates []string) ([]float64, error) {
	terms := contentWords(query)
	scores := make([]float64, len(candidates))
	if len(terms) == 0 {
		return scores, nil
	}
	for i, candidate := range candidates {
		words := make(map[string]struct{})
		for _, word := range wordExpr.FindAllString(strings.ToLower(candidate), -1) {
			words[word] = struct{}{}
		}
		hits := 0
		for _, term := range terms {
			if _, ok := words[term]; ok {
				hits++
			}
		}
		scores[i] = float64(hits) / float64(len(terms))
	}
	return scores, nil
}

func contentWords(text string) []string {
	seen := make(map[string]struct{})
	var out []string
	for _, word := range wordExpr.FindAllString(strings.ToLower(text), -1) {
		if len([]rune(word)) < 3 {
			continue
		}
		if _, stop := stopWords[word]; stop {
			continue
		}
		if _, dup := seen[word]; dup {
			continue
		}
		seen[word] = struct{}{}
		out = append(out, word)
	}
	return out
}
