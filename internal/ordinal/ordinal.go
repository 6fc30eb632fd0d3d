package ordinal

import (
	"regexp"
	"strconv"
	"strings"
)

// Last is the index returned for "last"; clients count it from the end.
const Last = -1

var words = map[string]int{
	"first":  0,
	"1st":    0,
	"top":    0,
	"second": 1,
	"2nd":    1,
	"third":  2,
	"3rd":    2,
	"fourth": 3,
	"4th":    3,
	"last":   Last,
}

var (
	tokenExpr  = regexp.MustCompile(`[a-z0-9]+`)
	numberExpr = regexp.MustCompile(`\b(?:result|link|number)\s*#?\s*(\d+)\b`)
)

var searchHosts = []string{
	"bing.com",
	"duckduckgo.com",
	"search.yahoo.com",
	"search.brave.com",
}

// IsSearchEngine reports whether host serves a search results page.
func IsSearchEngine(host string) bool {
	host = strings.ToLower(strings.TrimSpace(host))
	host = strings.TrimPrefix(host, "www.")
	if host == "" {
		return false
	}
	// google.<tld> and www.google.<tld> only; docs.google.com and friends
	// are applications, not result pages.
	if labels := strings.Split(host, "."); labels[0] == "google" && isCountryTLD(labels[1:]) {
		return true
	}
	for _, candidate := range searchHosts {
		if host == candidate || strings.HasSuffix(host, "."+candidate) {
			return true
		}
	}
	return false
}

func isCountryTLD(labels []string) bool {
	if len(labels) == 0 || len(labels) > 2 {
		return false
	}
	for _, label := range labels {
		if label == "" || len(label) > 3 {
			return false
		}
	}
	return true
}

// Resolve maps ordinal words or "result N" phrases in the normalized query to
// a zero-based index. Whole-word ordinals take precedence.
func Resolve(normalized string) (int, bool) {
	for _, token := range tokenExpr.FindAllString(normalized, -1) {
		if index, ok := words[token]; ok {
			return index, true
		}
	}
	match := numberExpr.FindStringSubmatch(normalized)
	if match == nil {
		return 0, false
	}
	n, err := strconv.Atoi(match[1])
	if err != nil || n < 1 {
		return 0, false
	}
	return n - 1, true
}
