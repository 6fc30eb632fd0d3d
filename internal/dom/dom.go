package dom

import (
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"
)

type Role string

const (
	RoleClickable    Role = "clickable"
	RoleVisibleInput Role = "visible_input"
	RoleHiddenInput  Role = "hidden_input"
)

const (
	DefaultMaxTextLen    = 60
	DefaultMaxCandidates = 400
	minParagraphLen      = 40
)

// Tags scanned for candidates.
var Tags = []string{"a", "button", "div", "span", "li", "h3", "img", "input", "select"}

// Candidate is one interactive element found in the snapshot.
type Candidate struct {
	Tag        string            `json:"tag"`
	Text       string            `json:"text"`
	Attributes map[string]string `json:"attributes,omitempty"`
	Role       Role              `json:"role"`
}

func (c Candidate) Attr(name string) string {
	return strings.TrimSpace(c.Attributes[name])
}

func (c Candidate) Type() string {
	return strings.ToLower(c.Attr("type"))
}

// Page is the classified view of one HTML snapshot.
type Page struct {
	Clickables    []Candidate
	VisibleInputs []Candidate
	HiddenInputs  []Candidate
	Paragraphs    []string
	// Collapsed counts elements that hint at collapsed menus or accordions.
	Collapsed int
}

func (p Page) ClickableTexts() []string {
	out := make([]string, len(p.Clickables))
	for i, c := range p.Clickables {
		out[i] = c.Text
	}
	return out
}

type Options struct {
	MaxTextLen    int
	MaxCandidates int
}

var (
	spacesExpr   = regexp.MustCompile(`\s+`)
	displayNone  = regexp.MustCompile(`display\s*:\s*none|visibility\s*:\s*hidden`)
	lineBreakExp = regexp.MustCompile(`\n\s*\n`)
)

// Build parses html and classifies its elements. An empty snapshot yields an
// empty page.
func Build(html string, opts Options) (Page, error) {
	if strings.TrimSpace(html) == "" {
		return Page{}, nil
	}
	maxText := opts.MaxTextLen
	if maxText <= 0 {
		maxText = DefaultMaxTextLen
	}
	maxCandidates := opts.MaxCandidates
	if maxCandidates <= 0 {
		maxCandidates = DefaultMaxCandidates
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return Page{}, fmt.Errorf("parse html snapshot: %w", err)
	}
	doc.Find("script, style, noscript, template, svg").Remove()

	var page Page
	page.Collapsed = doc.Find(`[aria-expanded="false"], details:not([open]), .navbar-toggler, .dropdown-toggle, [class*="hamburger"]`).Length()

	seen := make(map[string]struct{})
	doc.Find(strings.Join(Tags, ", ")).Each(func(_ int, s *goquery.Selection) {
		tag := goquery.NodeName(s)
		attrs := attributes(s)

		switch tag {
		case "input", "select":
			c := Candidate{Tag: tag, Text: inputText(tag, attrs), Attributes: attrs}
			if isHiddenInput(attrs) {
				c.Role = RoleHiddenInput
				page.HiddenInputs = append(page.HiddenInputs, c)
			} else {
				c.Role = RoleVisibleInput
				page.VisibleInputs = append(page.VisibleInputs, c)
			}
			return
		}

		if len(page.Clickables) >= maxCandidates {
			return
		}
		var text string
		if tag == "img" {
			text = collapse(attrs["alt"])
		} else {
			text = visibleText(s)
		}
		if text == "" || utf8.RuneCountInString(text) > maxText {
			return
		}
		key := tag + "|" + strings.ToLower(text)
		if _, dup := seen[key]; dup {
			return
		}
		seen[key] = struct{}{}
		page.Clickables = append(page.Clickables, Candidate{Tag: tag, Text: text, Attributes: attrs, Role: RoleClickable})
	})

	page.Paragraphs = paragraphs(doc)
	return page, nil
}

func paragraphs(doc *goquery.Document) []string {
	seen := make(map[string]struct{})
	var out []string
	add := func(text string) {
		text = collapse(text)
		if utf8.RuneCountInString(text) <= minParagraphLen {
			return
		}
		if _, dup := seen[text]; dup {
			return
		}
		seen[text] = struct{}{}
		out = append(out, text)
	}

	doc.Find("p, li, blockquote, pre, td, dd, h1, h2, h3, h4, h5, h6").Each(func(_ int, s *goquery.Selection) {
		add(visibleText(s))
	})
	if len(out) > 0 {
		return out
	}

	body := doc.Find("body").Text()
	if strings.TrimSpace(body) == "" {
		body = doc.Text()
	}
	chunks := lineBreakExp.Split(body, -1)
	if len(chunks) <= 1 {
		chunks = strings.Split(body, "\n")
	}
	for _, chunk := range chunks {
		add(chunk)
	}
	return out
}

// visibleText joins descendant text nodes with spaces so that adjacent inline
// elements do not run together.
func visibleText(s *goquery.Selection) string {
	var parts []string
	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.TextNode {
			if trimmed := strings.TrimSpace(n.Data); trimmed != "" {
				parts = append(parts, trimmed)
			}
			return
		}
		for child := n.FirstChild; child != nil; child = child.NextSibling {
			walk(child)
		}
	}
	for _, node := range s.Nodes {
		walk(node)
	}
	return collapse(strings.Join(parts, " "))
}

func attributes(s *goquery.Selection) map[string]string {
	if len(s.Nodes) == 0 || len(s.Nodes[0].Attr) == 0 {
		return map[string]string{}
	}
	out := make(map[string]string, len(s.Nodes[0].Attr))
	for _, attr := range s.Nodes[0].Attr {
		out[strings.ToLower(attr.Key)] = attr.Val
	}
	return out
}

func inputText(tag string, attrs map[string]string) string {
	if tag == "input" {
		if value := collapse(attrs["value"]); value != "" {
			return value
		}
		if placeholder := collapse(attrs["placeholder"]); placeholder != "" {
			return placeholder
		}
	}
	return collapse(firstNonEmpty(attrs["aria-label"], attrs["name"], attrs["id"]))
}

func isHiddenInput(attrs map[string]string) bool {
	switch strings.ToLower(strings.TrimSpace(attrs["type"])) {
	case "hidden", "submit", "button":
		return true
	}
	if _, ok := attrs["hidden"]; ok {
		return true
	}
	if strings.EqualFold(strings.TrimSpace(attrs["aria-hidden"]), "true") {
		return true
	}
	return displayNone.MatchString(strings.ToLower(attrs["style"]))
}

func collapse(value string) string {
	return strings.TrimSpace(spacesExpr.ReplaceAllString(value, " "))
}

func firstNonEmpty(values ...string) string {
	for _, value := range values {
		if trimmed := strings.TrimSpace(value); trimmed != "" {
			return trimmed
		}
	}
	return ""
}
