package parse

import (
	"path/filepath"
	"regexp"
	"strings"

	"github.com/alecthomas/chroma/v2/lexers"

	"semdiff/langmatch"
)

var markupStart = regexp.MustCompile(`^<[a-z][a-z0-9-]*[\s/>]`)

var shebang = regexp.MustCompile(`^#!\s*(?:\S*/)?(?:env\s+(?:-\S+\s+)*)?([A-Za-z0-9_.+-]+)`)

// interpreters maps shebang interpreters to language ids. Versioned names
// such as python3 are trimmed of trailing digits before lookup.
var interpreters = map[string]string{
	"node":    "js",
	"nodejs":  "js",
	"deno":    "ts",
	"bun":     "js",
	"tsx":     "ts",
	"ts-node": "ts",
	"python":  "py",
	"bash":    "sh",
	"sh":      "sh",
	"zsh":     "sh",
	"dash":    "sh",
	"ruby":    "ruby",
	"php":     "php",
}

// chromaLanguages maps chroma lexer names back to language ids for paths the
// glob rules do not cover.
var chromaLanguages = map[string]string{
	"JavaScript": "js",
	"TypeScript": "ts",
	"TSX":        "tsx",
	"Python":     "py",
	"Go":         "go",
	"HTML":       "html",
	"CSS":        "css",
	"SCSS":       "scss",
	"JSON":       "json",
	"YAML":       "yaml",
	"TOML":       "toml",
	"SQL":        "sql",
	"markdown":   "markdown",
	"Rust":       "rust",
	"Java":       "java",
	"Kotlin":     "kotlin",
	"Swift":      "swift",
	"C":          "c",
	"C++":        "cpp",
	"Ruby":       "ruby",
	"PHP":        "php",
	"Bash":       "sh",
	"Makefile":   "makefile",
}

// DetectLanguage infers a language id from a path and content: glob rules
// first, then chroma's filename matcher, then content sniffing. It returns ""
// when nothing matches.
func DetectLanguage(rules *langmatch.Matcher, path, content string) string {
	if path != "" {
		if rules != nil {
			if lang := rules.MatchPath(path); lang != "" {
				return lang
			}
		}
		if lexer := lexers.Match(filepath.Base(path)); lexer != nil {
			if lang, ok := chromaLanguages[lexer.Config().Name]; ok {
				return lang
			}
		}
	}
	return sniffContent(content)
}

func sniffContent(content string) string {
	first := content
	if i := strings.IndexByte(first, '\n'); i >= 0 {
		first = first[:i]
	}
	first = strings.TrimSpace(first)

	if m := shebang.FindStringSubmatch(first); m != nil {
		name := m[1]
		if lang, ok := interpreters[name]; ok {
			return lang
		}
		if lang, ok := interpreters[strings.TrimRight(name, "0123456789.")]; ok {
			return lang
		}
		return ""
	}

	lower := strings.ToLower(strings.TrimSpace(content))
	switch {
	case strings.HasPrefix(lower, "<!doctype html"), strings.HasPrefix(lower, "<html"):
		return "html"
	case strings.HasPrefix(lower, "<?php"):
		return "php"
	case markupStart.MatchString(lower):
		return "html"
	}
	return ""
}
