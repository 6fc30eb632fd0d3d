package credentials

import (
	"regexp"
	"sort"
	"strings"
)

const (
	LabelUsername = "Username"
	LabelPassword = "Password"
)

// Set maps a field label to its value.
type Set map[string]string

// Clean returns a copy of s without blank labels or values.
func (s Set) Clean() Set {
	out := make(Set, len(s))
	for label, value := range s {
		label = strings.TrimSpace(label)
		if label == "" || strings.TrimSpace(value) == "" {
			continue
		}
		out[label] = value
	}
	return out
}

func (s Set) Labels() []string {
	labels := make([]string, 0, len(s))
	for label := range s {
		labels = append(labels, label)
	}
	sort.Strings(labels)
	return labels
}

// A label must be followed by "is", "as", ":" or "=" before its value, so
// phrases like "user guide" or "promo code save20" carry no credentials.
var (
	usernameExpr = regexp.MustCompile(`\b(?:username|user|id|email)(?:\s+(?:is|as)\s+|\s*[:=]\s*)([a-z0-9@._+-]+)`)
	passwordExpr = regexp.MustCompile(`\b(?:password|passcode|pass|code)(?:\s+(?:is|as)\s+|\s*[:=]\s*)([a-z0-9@._+-]+)`)
)

var labelWords = map[string]struct{}{
	"is": {}, "as": {},
	"username": {}, "user": {}, "id": {}, "email": {},
	"password": {}, "passcode": {}, "pass": {}, "code": {},
}

// Extract pulls inline credentials such as "user is bob pass is hunter2" out
// of a normalized query. A query without credential phrases yields an empty
// set.
func Extract(normalized string) Set {
	out := Set{}
	if normalized == "" {
		return out
	}

	if containsAny(normalized, "user", "id", "email") {
		if value := captureToken(usernameExpr, normalized); value != "" {
			out[LabelUsername] = value
		}
	}
	if containsAny(normalized, "pass", "code") {
		if value := captureToken(passwordExpr, normalized); value != "" {
			out[LabelPassword] = value
		}
	}
	return out
}

func captureToken(expr *regexp.Regexp, text string) string {
	for _, match := range expr.FindAllStringSubmatch(text, -1) {
		value := strings.TrimRight(match[1], ".")
		if value == "" {
			continue
		}
		if _, ok := labelWords[value]; ok {
			continue
		}
		return value
	}
	return ""
}

func containsAny(text string, terms ...string) bool {
	for _, term := range terms {
		if strings.Contains(text, term) {
			return true
		}
	}
	return false
}
