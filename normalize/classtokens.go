package normalize

import (
	"regexp"
	"sort"
	"strings"

	"semdiff/geom"
)

var classAttr = regexp.MustCompile(`(?:^|[\s<])(class|className)\s*=\s*`)

// ClassTokens sorts the tokens of static class attribute values so that
// utility-class reordering is invisible to the diff. Duplicates are kept, so
// adding or removing a token still shows up. Interpolated values are left
// alone.
type ClassTokens struct{}

func (ClassTokens) Name() string { return "tailwind" }

func (ClassTokens) Applies(lang string) bool {
	return langIn(lang, "html", "htm", "jsx", "tsx", "vue", "svelte", "astro", "erb", "php")
}

func (ClassTokens) Apply(text, _ string) string {
	lines := geom.SplitLines(text)
	for i, line := range lines {
		lines[i] = sortClassAttrs(line)
	}
	return strings.Join(lines, "\n")
}

func sortClassAttrs(line string) string {
	var sb strings.Builder
	pos := 0
	for pos < len(line) {
		loc := classAttr.FindStringIndex(line[pos:])
		if loc == nil {
			break
		}
		valueStart := pos + loc[1]
		start, end, ok := staticValue(line, valueStart)
		if !ok {
			sb.WriteString(line[pos:valueStart])
			pos = valueStart
			continue
		}
		sb.WriteString(line[pos:start])
		sb.WriteString(sortClassList(line[start:end]))
		pos = end
	}
	sb.WriteString(line[pos:])
	return sb.String()
}

// staticValue locates the contents of a quoted class value starting at i.
// It accepts "...", '...' and the JSX forms {"..."} and {'...'}. Template
// literals, expressions and unterminated quotes are rejected.
func staticValue(line string, i int) (start, end int, ok bool) {
	if i >= len(line) {
		return 0, 0, false
	}
	braced := false
	if line[i] == '{' {
		braced = true
		i++
		for i < len(line) && line[i] == ' ' {
			i++
		}
		if i >= len(line) {
			return 0, 0, false
		}
	}
	q := line[i]
	if q != '"' && q != '\'' {
		return 0, 0, false
	}
	closing := strings.IndexByte(line[i+1:], q)
	if closing < 0 {
		return 0, 0, false
	}
	start, end = i+1, i+1+closing
	if braced {
		rest := strings.TrimLeft(line[end+1:], " ")
		if !strings.HasPrefix(rest, "}") {
			return 0, 0, false
		}
	}
	value := line[start:end]
	if strings.Contains(value, "${") || strings.Contains(value, "{{") ||
		strings.Contains(value, "{%") || strings.Contains(value, "<%") || strings.Contains(value, "\\") {
		return 0, 0, false
	}
	return start, end, true
}

func sortClassList(value string) string {
	tokens := strings.Fields(value)
	if len(tokens) < 2 {
		return value
	}
	sort.SliceStable(tokens, func(a, b int) bool {
		da, db := variantDepth(tokens[a]), variantDepth(tokens[b])
		if da != db {
			return da < db
		}
		return tokens[a] < tokens[b]
	})
	return strings.Join(tokens, " ")
}

// variantDepth counts variant prefixes such as "md:hover:", ignoring colons
// inside arbitrary values like "bg-[url(a:b)]".
func variantDepth(token string) int {
	depth, nesting := 0, 0
	for i := 0; i < len(token); i++ {
		switch token[i] {
		case '[', '(':
			nesting++
		case ']', ')':
			if nesting > 0 {
				nesting--
			}
		case ':':
			if nesting == 0 {
				depth++
			}
		}
	}
	return depth
}
