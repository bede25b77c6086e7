package langmatch

import (
	"os"
	"path/filepath"
	"testing"
)

func TestMatchPath_DefaultRules(t *testing.T) {
	m := Default()

	tests := map[string]string{
		"main.go":                "go",
		"src/components/App.tsx": "tsx",
		"src/index.ts":           "ts",
		"lib/util.MJS":           "js",
		"/abs/path/script.py":    "py",
		"C:\\work\\site\\a.html": "html",
		"deploy/values.yml":      "yaml",
		"build/Makefile":         "makefile",
		"web/.eslintrc":          "json",
		".babelrc":               "json",
		"home/me/.bashrc":        "sh",
		".zshrc":                 "sh",
		".npmrc":                 "",
		"notes.txt":              "",
		"":                       "",
	}

	for path, want := range tests {
		if got := m.MatchPath(path); got != want {
			t.Errorf("MatchPath(%q) = %q, want %q", path, got, want)
		}
	}
}

func TestMatchPath_FirstRuleWins(t *testing.T) {
	m := NewMatcher([]LanguageRule{
		{Language: "jsx", Paths: []string{"web/**/*.js"}},
		{Language: "js", Paths: []string{"**/*.js"}},
	})

	if got := m.MatchPath("web/app/main.js"); got != "jsx" {
		t.Errorf("expected jsx, got %q", got)
	}
	if got := m.MatchPath("server/main.js"); got != "js" {
		t.Errorf("expected js, got %q", got)
	}
}

func TestParseRules(t *testing.T) {
	data := []byte(`
languages:
  - language: tsx
    paths:
      - "ui/**/*.js"
`)
	m, err := ParseRules(data)
	if err != nil {
		t.Fatalf("ParseRules failed: %v", err)
	}

	combined := m.WithFallback(Default())
	if got := combined.MatchPath("ui/button.js"); got != "tsx" {
		t.Errorf("expected custom rule to win, got %q", got)
	}
	if got := combined.MatchPath("api/server.js"); got != "js" {
		t.Errorf("expected default rule as fallback, got %q", got)
	}
}

func TestParseRules_InvalidPattern(t *testing.T) {
	_, err := ParseRules([]byte("languages:\n  - language: x\n    paths: [\"[\"]\n"))
	if err == nil {
		t.Fatal("expected invalid pattern error")
	}
}

func TestLoadRules(t *testing.T) {
	path := filepath.Join(t.TempDir(), "languages.yaml")
	if err := os.WriteFile(path, []byte("languages:\n  - language: py\n    paths: [\"**/SConstruct\"]\n"), 0644); err != nil {
		t.Fatal(err)
	}

	m, err := LoadRules(path)
	if err != nil {
		t.Fatalf("LoadRules failed: %v", err)
	}
	if got := m.MatchPath("project/SConstruct"); got != "py" {
		t.Errorf("expected py, got %q", got)
	}

	if _, err := LoadRules(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("expected error for missing file")
	}
}
