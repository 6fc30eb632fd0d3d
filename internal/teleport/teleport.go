// Package teleport resolves known-good deep links for sites whose navigation
// menus are unreliable to drive with simulated clicks.
package teleport

import (
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

// Route is one keyword and the URL it jumps to.
type Route struct {
	Keyword string `yaml:"keyword" json:"keyword"`
	URL     string `yaml:"url" json:"url"`
}

// Table maps a domain to its routes in declaration order. It is built once
// and never mutated afterwards.
type Table struct {
	domains map[string][]Route
}

// Match is a resolved teleport.
type Match struct {
	Domain  string
	Keyword string
	URL     string
}

func NewTable(entries map[string][]Route) (*Table, error) {
	domains := make(map[string][]Route, len(entries))
	for domain, routes := range entries {
		key := normalizeDomain(domain)
		if key == "" {
			return nil, errors.New("teleport domain is required")
		}
		cleaned := make([]Route, 0, len(routes))
		for _, route := range routes {
			keyword := strings.ToLower(strings.TrimSpace(route.Keyword))
			target := strings.TrimSpace(route.URL)
			if keyword == "" || target == "" {
				return nil, fmt.Errorf("teleport route for %s needs keyword and url", key)
			}
			cleaned = append(cleaned, Route{Keyword: keyword, URL: target})
		}
		domains[key] = cleaned
	}
	return &Table{domains: domains}, nil
}

// Default returns the built-in table.
func Default() *Table {
	table, err := NewTable(defaultRoutes())
	if err != nil {
		panic(err)
	}
	return table
}

// Load returns the built-in table extended by the YAML file at path. Domains
// in the file replace built-in domains of the same name. An empty path
// returns the built-in table.
func Load(path string) (*Table, error) {
	entries := defaultRoutes()
	path = strings.TrimSpace(path)
	if path == "" {
		return NewTable(entries)
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read teleport file: %w", err)
	}
	var overrides map[string][]Route
	if err := yaml.Unmarshal(raw, &overrides); err != nil {
		return nil, fmt.Errorf("decode teleport file: %w", err)
	}
	for domain, routes := range overrides {
		entries[domain] = routes
	}
	return NewTable(entries)
}

// Resolve returns the first route of host's entry whose keyword occurs in the
// normalized query. host matches an entry equal to it or a parent domain of
// it.
func (t *Table) Resolve(host, normalized string) (Match, bool) {
	if t == nil || normalized == "" {
		return Match{}, false
	}
	domain, routes, ok := t.lookup(host)
	if !ok {
		return Match{}, false
	}
	for _, route := range routes {
		if strings.Contains(normalized, route.Keyword) {
			return Match{Domain: domain, Keyword: route.Keyword, URL: route.URL}, true
		}
	}
	return Match{}, false
}

func (t *Table) Domains() []string {
	if t == nil {
		return nil
	}
	out := make([]string, 0, len(t.domains))
	for domain := range t.domains {
		out = append(out, domain)
	}
	sort.Strings(out)
	return out
}

func (t *Table) lookup(host string) (string, []Route, bool) {
	candidate := normalizeDomain(host)
	for candidate != "" {
		if routes, ok := t.domains[candidate]; ok {
			return candidate, routes, true
		}
		dot := strings.Index(candidate, ".")
		if dot < 0 {
			break
		}
		candidate = candidate[dot+1:]
	}
	return "", nil, false
}

func normalizeDomain(domain string) string {
	host := strings.ToLower(strings.TrimSpace(domain))
	host = strings.TrimPrefix(host, "www.")
	return strings.TrimSuffix(host, ".")
}

func defaultRoutes() map[string][]Route {
	return map[string][]Route{
		"irctc.co.in": {
			{Keyword: "lounge", URL: "https://www.irctc.co.in/nget/lounge-booking"},
			{Keyword: "pnr", URL: "https://www.indianrail.gov.in/enquiry/PNR/PnrEnquiry.html"},
			{Keyword: "food", URL: "https://www.ecatering.irctc.co.in/"},
			{Keyword: "tourism", URL: "https://www.irctctourism.com/"},
			{Keyword: "booking history", URL: "https://www.irctc.co.in/nget/txn/booked-history"},
			{Keyword: "train", URL: "https://www.irctc.co.in/nget/train-search"},
		},
		"amazon.in": {
			{Keyword: "orders", URL: "https://www.amazon.in/gp/css/order-history"},
			{Keyword: "cart", URL: "https://www.amazon.in/gp/cart/view.html"},
			{Keyword: "wishlist", URL: "https://www.amazon.in/hz/wishlist/ls"},
		},
		"amazon.com": {
			{Keyword: "orders", URL: "https://www.amazon.com/gp/css/order-history"},
			{Keyword: "cart", URL: "https://www.amazon.com/gp/cart/view.html"},
		},
		"flipkart.com": {
			{Keyword: "orders", URL: "https://www.flipkart.com/account/orders"},
			{Keyword: "cart", URL: "https://www.flipkart.com/viewcart"},
			{Keyword: "wishlist", URL: "https://www.flipkart.com/wishlist"},
		},
		"github.com": {
			{Keyword: "notifications", URL: "https://github.com/notifications"},
			{Keyword: "settings", URL: "https://github.com/settings/profile"},
			{Keyword: "new repo", URL: "https://github.com/new"},
		},
	}
}
