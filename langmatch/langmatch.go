// Package langmatch maps file paths to language ids via path glob rules.
package langmatch

import (
	"fmt"
	"os"
	"path"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	"gopkg.in/yaml.v3"
)

// LanguageRule defines a language with the path patterns that select it.
type LanguageRule struct {
	Language string   `yaml:"language"`
	Paths    []string `yaml:"paths"`
}

// RulesConfig holds the language rules file layout.
type RulesConfig struct {
	Languages []LanguageRule `yaml:"languages"`
}

// Matcher matches file paths to languages. Rules are tried in order and the
// first match wins.
type Matcher struct {
	rules []LanguageRule
}

// DefaultRules returns the built-in extension rules.
func DefaultRules() []LanguageRule {
	return []LanguageRule{
		{Language: "tsx", Paths: []string{"**/*.tsx"}},
		{Language: "ts", Paths: []string{"**/*.ts", "**/*.mts", "**/*.cts"}},
		{Language: "jsx", Paths: []string{"**/*.jsx"}},
		{Language: "js", Paths: []string{"**/*.js", "**/*.mjs", "**/*.cjs"}},
		{Language: "py", Paths: []string{"**/*.py", "**/*.pyi"}},
		{Language: "go", Paths: []string{"**/*.go"}},
		{Language: "html", Paths: []string{"**/*.html", "**/*.htm"}},
		{Language: "vue", Paths: []string{"**/*.vue"}},
		{Language: "svelte", Paths: []string{"**/*.svelte"}},
		{Language: "astro", Paths: []string{"**/*.astro"}},
		{Language: "css", Paths: []string{"**/*.css"}},
		{Language: "scss", Paths: []string{"**/*.scss"}},
		{Language: "json", Paths: []string{"**/*.json", "**/.babelrc", "**/.eslintrc", "**/.prettierrc", "**/.swcrc", "**/.jshintrc"}},
		{Language: "yaml", Paths: []string{"**/*.yaml", "**/*.yml"}},
		{Language: "toml", Paths: []string{"**/*.toml"}},
		{Language: "sql", Paths: []string{"**/*.sql"}},
		{Language: "markdown", Paths: []string{"**/*.md", "**/*.markdown"}},
		{Language: "rust", Paths: []string{"**/*.rs"}},
		{Language: "java", Paths: []string{"**/*.java"}},
		{Language: "kotlin", Paths: []string{"**/*.kt", "**/*.kts"}},
		{Language: "swift", Paths: []string{"**/*.swift"}},
		{Language: "c", Paths: []string{"**/*.c", "**/*.h"}},
		{Language: "cpp", Paths: []string{"**/*.cc", "**/*.cpp", "**/*.cxx", "**/*.hpp"}},
		{Language: "ruby", Paths: []string{"**/*.rb", "**/Gemfile", "**/Rakefile"}},
		{Language: "php", Paths: []string{"**/*.php"}},
		{Language: "sh", Paths: []string{"**/*.sh", "**/*.bash", "**/*.zsh", "**/.bashrc", "**/.zshrc", "**/.profile"}},
		{Language: "makefile", Paths: []string{"**/Makefile", "**/*.mk"}},
	}
}

// LoadRules loads language rules from a YAML file.
func LoadRules(path string) (*Matcher, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading language rules: %w", err)
	}
	return ParseRules(data)
}

// ParseRules decodes language rules from YAML.
func ParseRules(data []byte) (*Matcher, error) {
	var config RulesConfig
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("parsing language rules: %w", err)
	}
	for _, rule := range config.Languages {
		for _, pattern := range rule.Paths {
			if !doublestar.ValidatePattern(pattern) {
				return nil, fmt.Errorf("language %q: invalid pattern %q", rule.Language, pattern)
			}
		}
	}
	return &Matcher{rules: config.Languages}, nil
}

// NewMatcher creates a matcher from a list of rules.
func NewMatcher(rules []LanguageRule) *Matcher {
	return &Matcher{rules: rules}
}

// Default returns a matcher over DefaultRules.
func Default() *Matcher {
	return NewMatcher(DefaultRules())
}

// WithFallback returns a matcher that tries m's rules first, then fallback's.
func (m *Matcher) WithFallback(fallback *Matcher) *Matcher {
	rules := make([]LanguageRule, 0, len(m.rules)+len(fallback.rules))
	rules = append(rules, m.rules...)
	rules = append(rules, fallback.rules...)
	return &Matcher{rules: rules}
}

// MatchPath returns the language for a path, or "" when no rule matches.
// Windows separators are normalized and the extension is matched
// case-insensitively.
func (m *Matcher) MatchPath(p string) string {
	if p == "" {
		return ""
	}
	p = strings.TrimPrefix(strings.ReplaceAll(p, "\\", "/"), "/")
	ext := path.Ext(p)
	p = strings.TrimSuffix(p, ext) + strings.ToLower(ext)

	for _, rule := range m.rules {
		for _, pattern := range rule.Paths {
			match, err := doublestar.Match(pattern, p)
			if err != nil {
				continue
			}
			if match {
				return rule.Language
			}
		}
	}
	return ""
}

// Rules returns a copy of the rules in match order.
func (m *Matcher) Rules() []LanguageRule {
	out := make([]LanguageRule, len(m.rules))
	copy(out, m.rules)
	return out
}
