package normalize

import (
	"strings"

	"semdiff/geom"
)

// Rule is a pure, language-scoped text rewrite. Rules must keep the number of
// lines unchanged so that normalized lines map back to original lines.
type Rule interface {
	Name() string
	Applies(lang string) bool
	Apply(text, lang string) string
}

// View is a text together with its comparison form. Line i of NormLines
// always corresponds to line i of OrigLines.
type View struct {
	Language   string
	Original   string
	Normalized string
	OrigLines  []string
	NormLines  []string
	Applied    []string // names of rules that changed the text
}

// Pipeline applies the enabled rules in a fixed order.
type Pipeline struct {
	cfg   Config
	extra []Rule
}

// NewPipeline creates a pipeline for a resolved configuration. Extra rules
// run after the built-in ones whenever they apply to the language.
func NewPipeline(cfg Config, extra ...Rule) *Pipeline {
	return &Pipeline{cfg: cfg.Clone(), extra: append([]Rule(nil), extra...)}
}

// Config returns a copy of the pipeline's configuration.
func (p *Pipeline) Config() Config {
	return p.cfg.Clone()
}

// Rules returns the rules enabled for lang, in application order.
func (p *Pipeline) Rules(lang string) []Rule {
	flags := p.cfg.Effective(lang)
	var rules []Rule
	if flags.Tailwind {
		rules = append(rules, ClassTokens{})
	}
	if flags.ImportOrder {
		rules = append(rules, ImportOrder{})
	}
	if flags.NumericLiterals {
		rules = append(rules, NumericLiterals{})
	}
	if flags.Whitespace {
		rules = append(rules, Whitespace{})
	}
	return append(rules, p.extra...)
}

// Normalize builds the comparison view of text. A rule that would change the
// line count is skipped for this text.
func (p *Pipeline) Normalize(text, lang string) View {
	v := View{
		Language:  lang,
		Original:  text,
		OrigLines: geom.SplitLines(text),
	}

	current := text
	for _, rule := range p.Rules(lang) {
		if !rule.Applies(lang) {
			continue
		}
		next := rule.Apply(current, lang)
		if next == current {
			continue
		}
		if len(geom.SplitLines(next)) != len(v.OrigLines) {
			continue
		}
		v.Applied = append(v.Applied, rule.Name())
		current = next
	}

	v.Normalized = current
	v.NormLines = geom.SplitLines(current)
	return v
}

func langIn(lang string, langs ...string) bool {
	for _, l := range langs {
		if strings.EqualFold(l, lang) {
			return true
		}
	}
	return false
}
