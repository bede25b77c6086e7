package normalize

import (
	"strings"

	"semdiff/geom"
)

// Whitespace collapses runs of blanks outside string literals, trims trailing
// blanks and drops indentation where the language does not depend on it.
// Quotes after a line comment marker do not open literals.
type Whitespace struct{}

func (Whitespace) Name() string { return "whitespace" }

func (Whitespace) Applies(string) bool { return true }

func (Whitespace) Apply(text, lang string) string {
	keepIndent := langIn(lang, "py", "python", "yaml", "yml", "makefile", "haml", "pug")
	quotes := !langIn(lang, "", "text", "markdown")
	comment := lineComment(lang)

	lines := geom.SplitLines(text)
	for i, line := range lines {
		lines[i] = collapseLine(line, keepIndent, quotes, comment)
	}
	return strings.Join(lines, "\n")
}

// lineComment returns the line comment marker of lang, or "".
func lineComment(lang string) string {
	switch {
	case langIn(lang, "js", "jsx", "ts", "tsx", "go", "java", "c", "cpp", "rust", "kotlin", "swift", "php", "scss"):
		return "//"
	case langIn(lang, "py", "python", "sh", "ruby", "yaml", "yml", "toml", "makefile"):
		return "#"
	case langIn(lang, "sql"):
		return "--"
	}
	return ""
}

func isBlank(c byte) bool {
	return c == ' ' || c == '\t' || c == '\f' || c == '\v' || c == '\r'
}

func collapseLine(line string, keepIndent, quotes bool, comment string) string {
	line = strings.TrimRightFunc(line, func(r rune) bool {
		return r < 0x80 && isBlank(byte(r))
	})

	indent := 0
	for indent < len(line) && isBlank(line[indent]) {
		indent++
	}

	var sb strings.Builder
	sb.Grow(len(line))
	if keepIndent {
		sb.WriteString(line[:indent])
	}

	var quote byte
	for i := indent; i < len(line); i++ {
		c := line[i]
		switch {
		case quote != 0:
			sb.WriteByte(c)
			if c == '\\' && i+1 < len(line) {
				i++
				sb.WriteByte(line[i])
			} else if c == quote {
				quote = 0
			}
		case quotes && comment != "" && strings.HasPrefix(line[i:], comment):
			quotes = false
			sb.WriteString(comment)
			i += len(comment) - 1
		case quotes && (c == '"' || c == '\'' || c == '`'):
			quote = c
			sb.WriteByte(c)
		case isBlank(c):
			for i+1 < len(line) && isBlank(line[i+1]) {
				i++
			}
			sb.WriteByte(' ')
		default:
			sb.WriteByte(c)
		}
	}
	return sb.String()
}
