package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"go.uber.org/zap"

	"github.com/VenkatGGG/site-sherpa/internal/action"
	"github.com/VenkatGGG/site-sherpa/internal/config"
)

func testOptions(t *testing.T) *rootOptions {
	t.Helper()
	dir := t.TempDir()
	return &rootOptions{
		cfg: config.Config{
			VaultBackend:    config.VaultFile,
			VaultDataPath:   filepath.Join(dir, "vault.json"),
			VaultKeyPath:    filepath.Join(dir, "secret.key"),
			ScoreThreshold:  0.25,
			ExternalTimeout: 0,
		},
		logger: zap.NewNop(),
	}
}

func TestPlanCommandPrintsAction(t *testing.T) {
	opts := testOptions(t)
	reqPath := filepath.Join(t.TempDir(), "req.json")
	body := `{"query":"login user is bob pass is hunter2","current_url":"https://accounts.example.com","html_content":"<input name=\"username\"><input type=\"password\">"}`
	if err := os.WriteFile(reqPath, []byte(body), 0o600); err != nil {
		t.Fatalf("write request: %v", err)
	}

	var out bytes.Buffer
	cmd := newPlanCmd(opts)
	cmd.SetOut(&out)
	cmd.SetArgs([]string{"--file", reqPath})
	if err := cmd.Execute(); err != nil {
		t.Fatalf("plan command: %v", err)
	}

	var act action.Action
	if err := json.Unmarshal(out.Bytes(), &act); err != nil {
		t.Fatalf("decode output: %v output=%s", err, out.String())
	}
	if act.Kind != action.KindSecureAutofill || act.Credentials["Password"] != "hunter2" {
		t.Fatalf("unexpected action %+v", act)
	}
	if act.RequestID == "" {
		t.Fatalf("expected request id")
	}

	var labels bytes.Buffer
	vaultCmd := newVaultCmd(opts)
	vaultCmd.SetOut(&labels)
	vaultCmd.SetArgs([]string{"get", "www.accounts.example.com"})
	if err := vaultCmd.Execute(); err != nil {
		t.Fatalf("vault get: %v", err)
	}
	if !strings.Contains(labels.String(), "Password, Username") {
		t.Fatalf("expected stored labels, got %q", labels.String())
	}
	if strings.Contains(labels.String(), "hunter2") {
		t.Fatalf("vault get must not print values")
	}
}

func TestPlanCommandReadsStdin(t *testing.T) {
	opts := testOptions(t)
	opts.cfg.VaultBackend = config.VaultMemory

	var out bytes.Buffer
	cmd := newPlanCmd(opts)
	cmd.SetIn(strings.NewReader(`{"query":"open cart","current_url":"https://www.flipkart.com/"}`))
	cmd.SetOut(&out)
	cmd.SetArgs([]string{})
	if err := cmd.Execute(); err != nil {
		t.Fatalf("plan command: %v", err)
	}
	if !strings.Contains(out.String(), "https://www.flipkart.com/viewcart") {
		t.Fatalf("expected teleport url, got %s", out.String())
	}
}

func TestReadPlanRequestValidates(t *testing.T) {
	if _, err := readPlanRequest("-", strings.NewReader(`{"query":"hi"}`)); err == nil {
		t.Fatalf("expected error for missing current_url")
	}
	if _, err := readPlanRequest("-", strings.NewReader(`not json`)); err == nil {
		t.Fatalf("expected decode error")
	}
}
