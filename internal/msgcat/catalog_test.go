package msgcat

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func newTestCatalog(t *testing.T) *Catalog {
	t.Helper()
	cat, err := New("")
	if err != nil {
		t.Fatalf("load embedded catalog: %v", err)
	}
	return cat
}

func TestRenderKeepsOriginalWording(t *testing.T) {
	cat := newTestCatalog(t)

	cases := []struct {
		key  string
		data map[string]any
		want string
	}{
		{"trainer.stats", map[string]any{"Solves": 3}, "📊 You’ve full‑solved *3* cubes."},
		{"trainer.goodbye", nil, "👋 *Goodbye!* Come back anytime with 🧠."},
		{"trainer.memo.header", map[string]any{"Level": 4}, "*Level 4*"},
		{
			"trainer.memo.group_line",
			map[string]any{"Label": "Edges", "Count": 5, "Letters": "I J K L M"},
			"Edges (5): `I J K L M`",
		},
		{
			"trainer.math.prompt",
			map[string]any{"A": 1234, "B": 5678},
			"🧮 *Distraction task*\n`1234 + 5678 = ?`\n\nSend the answer.",
		},
		{"trainer.math.incorrect", map[string]any{"Sum": 6912}, "❌ Incorrect (was 6912)"},
		{
			"trainer.recall.need",
			map[string]any{"Count": 12, "Group": "edges"},
			"Need 12 letters for edges.",
		},
		{
			"trainer.summary.footer",
			map[string]any{"Accuracy": 87, "Solves": 2},
			"🎯 *87%* accuracy\n🎉 *2* full solves\n\nPress 🧠 for next, 🛑 to quit, 📊 for stats.",
		},
		{
			"trainer.recall.feedback",
			map[string]any{"Correct": "`a` *B*", "Yours": "`a` *X*", "Hits": 1, "Total": 2},
			"*Correct*: `a` *B*\n*Yours  *: `a` *X*\n*Score  *: 1/2",
		},
	}
	for _, tc := range cases {
		got, err := cat.Render(tc.key, tc.data)
		if err != nil {
			t.Fatalf("render %s: %v", tc.key, err)
		}
		if got != tc.want {
			t.Fatalf("render %s = %q, want %q", tc.key, got, tc.want)
		}
	}
}

func TestRenderMissingKeyErrors(t *testing.T) {
	cat := newTestCatalog(t)

	if _, err := cat.Render("trainer.no_such_key", nil); err == nil {
		t.Fatal("expected error for unknown key")
	}
	if _, err := cat.Render("trainer.memo.header", map[string]any{}); err == nil {
		t.Fatal("expected error for missing template data")
	}
}

func TestOverrideDirReplacesKeys(t *testing.T) {
	dir := t.TempDir()
	override := "trainer:\n  goodbye: \"Later!\"\n"
	if err := os.WriteFile(filepath.Join(dir, "10-custom.yaml"), []byte(override), 0o644); err != nil {
		t.Fatalf("write override: %v", err)
	}

	cat, err := New(dir)
	if err != nil {
		t.Fatalf("load catalog with overrides: %v", err)
	}

	got, err := cat.Render("trainer.goodbye", nil)
	if err != nil {
		t.Fatalf("render overridden key: %v", err)
	}
	if got != "Later!" {
		t.Fatalf("override not applied, got %q", got)
	}

	// Untouched keys keep their embedded text.
	got, err = cat.Render("trainer.reset_done", nil)
	if err != nil {
		t.Fatalf("render embedded key: %v", err)
	}
	if !strings.Contains(got, "Fresh start") {
		t.Fatalf("embedded key lost after override, got %q", got)
	}
}

func TestOverrideDirRejectsDuplicateKeys(t *testing.T) {
	dir := t.TempDir()
	for i, name := range []string{"a.yaml", "b.yaml"} {
		body := "trainer:\n  goodbye: \"copy " + string(rune('0'+i)) + "\"\n"
		if err := os.WriteFile(filepath.Join(dir, name), []byte(body), 0o644); err != nil {
			t.Fatalf("write %s: %v", name, err)
		}
	}

	if _, err := New(dir); err == nil {
		t.Fatal("expected duplicate-key error across override files")
	}
}
