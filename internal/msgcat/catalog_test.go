package msgcat

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestRenderDefaults(t *testing.T) {
	c := Default()
	got, err := c.Render(KeyMoved, map[string]any{"Username": "alice", "Piece": "PAWN", "From": "e2", "To": "e4"})
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
	if got != "alice moved PAWN e2 to e4" {
		t.Fatalf("Render = %q", got)
	}
	for _, key := range []string{KeyJoinedPlayer, KeyJoinedObserver, KeyLeft, KeyPromoted, KeyResigned, KeyCheck, KeyCheckmate, KeyStalemate} {
		if _, ok := c.templates[key]; !ok {
			t.Fatalf("embedded catalog lacks %s", key)
		}
	}
}

func TestRenderMissingField(t *testing.T) {
	c := Default()
	if _, err := c.Render(KeyLeft, map[string]any{}); err == nil {
		t.Fatalf("missing field should fail")
	}
	if _, err := c.Render("game.nope", nil); err == nil {
		t.Fatalf("unknown key should fail")
	}
}

func TestOverrideDir(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "a.yaml"), []byte("game:\n  left: \"bye {{.Username}}\"\n"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	c, err := New(dir)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	got, err := c.Render(KeyLeft, map[string]any{"Username": "bob"})
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
	if got != "bye bob" {
		t.Fatalf("override not applied: %q", got)
	}

	if err := os.WriteFile(filepath.Join(dir, "b.yml"), []byte("game:\n  left: \"again\"\n"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	if _, err := New(dir); err == nil || !strings.Contains(err.Error(), "duplicate") {
		t.Fatalf("duplicate keys across files err = %v", err)
	}
}

func TestRejectsNonStringLeaves(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "bad.yaml"), []byte("game:\n  left: 3\n"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	if _, err := New(dir); err == nil {
		t.Fatalf("numeric leaf should be rejected")
	}
}
