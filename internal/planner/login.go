package planner

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/VenkatGGG/site-sherpa/internal/action"
	"github.com/VenkatGGG/site-sherpa/internal/credentials"
	"github.com/VenkatGGG/site-sherpa/internal/dom"
	"github.com/VenkatGGG/site-sherpa/internal/query"
)

var loginIntents = []string{"login", "log in", "sign in", "signin"}

var loginLabels = map[string]struct{}{
	"login":          {},
	"sign in":        {},
	"log in":         {},
	"login / signup": {},
}

// login runs the login sub-flow. ok is false when the flow does not apply or
// found nothing to act on, in which case generic matching continues.
func (p *Planner) login(ctx context.Context, log *zap.Logger, q query.Query, host string, supplied map[string]string, page dom.Page) (action.Action, bool) {
	if !q.ContainsAny(loginIntents...) && !carriesCredentials(q.Normalized, supplied) {
		return action.Action{}, false
	}
	resolved := p.credentials.Resolve(ctx, host, supplied, q.Normalized)
	log.Info("login flow",
		zap.String("credential_source", string(resolved.Source)),
		zap.Strings("labels", resolved.Set.Labels()),
	)

	if inputs := loginInputs(page.VisibleInputs); len(inputs) > 0 {
		if resolved.Available() {
			return action.SecureAutofill(resolved.Set), true
		}
		return askFor(inputs), true
	}

	button, ok := loginButton(page.Clickables)
	if !ok {
		return action.Action{}, false
	}
	if resolved.Available() {
		selector := ""
		if id := button.Attr("id"); id != "" {
			selector = "#" + id
		}
		return action.OpenAndFill(selector, button.Text, resolved.Set), true
	}
	return action.SpotlightClick(button.Text, "Clicking "+button.Text+"..."), true
}

func carriesCredentials(normalized string, supplied map[string]string) bool {
	return len(credentials.Set(supplied).Clean()) > 0 || len(credentials.Extract(normalized)) > 0
}

var textualInputTypes = map[string]struct{}{
	"": {}, "text": {}, "email": {}, "password": {}, "tel": {}, "number": {},
}

// loginInputs keeps the visible inputs a user could type credentials into.
func loginInputs(visible []dom.Candidate) []dom.Candidate {
	var out []dom.Candidate
	for _, c := range visible {
		if c.Tag != "input" {
			continue
		}
		if _, ok := textualInputTypes[c.Type()]; !ok {
			continue
		}
		if isSearchBox(c) {
			continue
		}
		out = append(out, c)
	}
	return out
}

func isSearchBox(c dom.Candidate) bool {
	if strings.EqualFold(c.Attr("role"), "searchbox") {
		return true
	}
	for _, attr := range []string{"name", "id", "placeholder", "aria-label"} {
		if strings.Contains(strings.ToLower(c.Attr(attr)), "search") {
			return true
		}
	}
	return false
}

// askFor prompts with the standard labels when every input maps to one, and
// with the page's own field labels otherwise.
func askFor(inputs []dom.Candidate) action.Action {
	var standard []string
	seen := make(map[string]struct{})
	for _, c := range inputs {
		label := standardLabel(c)
		if label == "" {
			return action.AskDynamicCredentials(promptLabels(inputs))
		}
		if _, dup := seen[label]; dup {
			continue
		}
		seen[label] = struct{}{}
		standard = append(standard, label)
	}
	return action.AskCredentials(standard)
}

func standardLabel(c dom.Candidate) string {
	if c.Type() == "password" {
		return credentials.LabelPassword
	}
	if c.Type() == "email" {
		return credentials.LabelUsername
	}
	hint := strings.ToLower(strings.Join([]string{
		c.Attr("name"), c.Attr("id"), c.Attr("placeholder"), c.Attr("aria-label"), c.Attr("autocomplete"),
	}, " "))
	for _, term := range []string{"user", "email", "login", "mobile", "phone"} {
		if strings.Contains(hint, term) {
			return credentials.LabelUsername
		}
	}
	if strings.Contains(hint, "pass") {
		return credentials.LabelPassword
	}
	return ""
}

func promptLabels(inputs []dom.Candidate) []string {
	labels := make([]string, 0, len(inputs))
	for _, c := range inputs {
		label := c.Attr("placeholder")
		if label == "" {
			label = c.Attr("aria-label")
		}
		if label == "" {
			label = c.Attr("name")
		}
		if label == "" {
			label = "Field"
		}
		labels = append(labels, label)
	}
	return labels
}

// loginButton finds a clickable labelled as a login entry point, preferring
// anchors and buttons over generic containers.
func loginButton(clickables []dom.Candidate) (dom.Candidate, bool) {
	var container *dom.Candidate
	for i := range clickables {
		c := clickables[i]
		if _, ok := loginLabels[strings.ToLower(c.Text)]; !ok {
			continue
		}
		if c.Tag == "a" || c.Tag == "button" {
			return c, true
		}
		if container == nil {
			container = &clickables[i]
		}
	}
	if container != nil {
		return *container, true
	}
	return dom.Candidate{}, false
}
