package teleport

import (
	"os"
	"path/filepath"
	"testing"
)

func TestResolveLoungeOnIRCTC(t *testing.T) {
	t.Parallel()

	table := Default()
	want := "https://www.irctc.co.in/nget/lounge-booking"

	queries := []string{
		"book a lounge",
		"show food options and the lounge and my pnr",
		"open lounge train page",
	}
	for _, q := range queries {
		got, ok := table.Resolve("irctc.co.in", q)
		if !ok {
			t.Fatalf("expected teleport for %q", q)
		}
		if got.URL != want {
			t.Fatalf("query %q resolved to %q want %q", q, got.URL, want)
		}
	}
}

func TestResolveMatchesSubdomainsAndIgnoresOthers(t *testing.T) {
	t.Parallel()

	table := Default()
	if _, ok := table.Resolve("www.irctc.co.in", "check pnr status"); !ok {
		t.Fatalf("expected www subdomain to match")
	}
	if _, ok := table.Resolve("m.irctc.co.in", "order food"); !ok {
		t.Fatalf("expected nested subdomain to match")
	}
	if _, ok := table.Resolve("notirctc.co.in", "book a lounge"); ok {
		t.Fatalf("did not expect unrelated domain to match")
	}
	if _, ok := table.Resolve("irctc.co.in", "log me in"); ok {
		t.Fatalf("did not expect query without keyword to match")
	}
}

func TestLoadMergesYAMLOverrides(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "teleport.yaml")
	content := `
example.com:
  - keyword: billing
    url: https://example.com/account/billing
  - keyword: bill
    url: https://example.com/bills
github.com:
  - keyword: stars
    url: https://github.com/stars
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write teleport file: %v", err)
	}

	table, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}

	got, ok := table.Resolve("example.com", "open billing")
	if !ok || got.URL != "https://example.com/account/billing" {
		t.Fatalf("expected first declared keyword to win, got %#v ok=%v", got, ok)
	}
	if _, ok := table.Resolve("github.com", "open settings"); ok {
		t.Fatalf("expected override to replace built-in github routes")
	}
	if _, ok := table.Resolve("irctc.co.in", "lounge"); !ok {
		t.Fatalf("expected built-in domains to survive overrides")
	}
}

func TestLoadRejectsInvalidRoute(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "teleport.yaml")
	if err := os.WriteFile(path, []byte("example.com:\n  - keyword: x\n"), 0o644); err != nil {
		t.Fatalf("write teleport file: %v", err)
	}
	if _, err := Load(path); err == nil {
		t.Fatalf("expected validation error for route without url")
	}
}

func TestLoadEmptyPathReturnsDefaults(t *testing.T) {
	t.Parallel()

	table, err := Load("")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(table.Domains()) != len(Default().Domains()) {
		t.Fatalf("expected default domains")
	}
}
