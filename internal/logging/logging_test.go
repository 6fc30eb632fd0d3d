package logging

import "testing"

func TestNewRejectsUnknownLevel(t *testing.T) {
	t.Parallel()

	if _, err := New("loud", "json"); err == nil {
		t.Fatalf("expected level parse error")
	}
}

func TestNewBuildsConsoleLogger(t *testing.T) {
	t.Parallel()

	logger, err := New("debug", "console")
	if err != nil {
		t.Fatalf("new logger: %v", err)
	}
	if logger == nil {
		t.Fatalf("expected logger")
	}
}

func TestOrNop(t *testing.T) {
	t.Parallel()

	if OrNop(nil) == nil {
		t.Fatalf("expected nop logger")
	}
}
