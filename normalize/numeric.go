package normalize

import (
	"regexp"
	"strings"

	"semdiff/geom"
)

var numericSuffix = regexp.MustCompile(`^(?:[fFdDlLuUn]+|[iuf](?:8|16|32|64|128|size))$`)

// NumericLiterals rewrites number literals into one spelling: 1. and 1.0 and
// 1.00 become 1, digit separators are dropped, and hex digits and exponent
// markers are lower-cased. Literals it cannot lex cleanly are left alone.
type NumericLiterals struct{}

func (NumericLiterals) Name() string { return "numericLiterals" }

func (NumericLiterals) Applies(lang string) bool {
	return langIn(lang, "js", "jsx", "ts", "tsx", "py", "python", "go", "java", "kotlin", "c", "cpp", "rust", "swift", "css", "scss")
}

func (NumericLiterals) Apply(text, lang string) string {
	hashComments := langIn(lang, "py", "python")
	lines := geom.SplitLines(text)
	for i, line := range lines {
		lines[i] = canonicalizeNumbers(line, hashComments)
	}
	return strings.Join(lines, "\n")
}

func isDigit(c byte) bool { return c >= '0' && c <= '9' }

func isIdent(c byte) bool {
	return c == '_' || c == '$' || isDigit(c) || (c|0x20 >= 'a' && c|0x20 <= 'z')
}

func canonicalizeNumbers(line string, hashComments bool) string {
	var sb strings.Builder
	sb.Grow(len(line))

	for i := 0; i < len(line); {
		c := line[i]
		switch {
		case c == '"' || c == '\'' || c == '`':
			j := skipString(line, i)
			sb.WriteString(line[i:j])
			i = j
		case c == '/' && i+1 < len(line) && line[i+1] == '/', hashComments && c == '#':
			sb.WriteString(line[i:])
			return sb.String()
		case isIdent(c) && !isDigit(c):
			j := i
			for j < len(line) && isIdent(line[j]) {
				j++
			}
			sb.WriteString(line[i:j])
			i = j
		case isDigit(c) || (c == '.' && i+1 < len(line) && isDigit(line[i+1]) && (i == 0 || !isIdent(line[i-1]) && line[i-1] != ')' && line[i-1] != ']')):
			j, canon := lexNumber(line, i)
			sb.WriteString(canon)
			i = j
		default:
			sb.WriteByte(c)
			i++
		}
	}
	return sb.String()
}

// skipString returns the index just past the string literal starting at i,
// or len(line) when it is unterminated.
func skipString(line string, i int) int {
	q := line[i]
	for j := i + 1; j < len(line); j++ {
		switch line[j] {
		case '\\':
			j++
		case q:
			return j + 1
		}
	}
	return len(line)
}

// lexNumber reads a literal at i and returns the end index and its canonical
// form. On malformed input the raw text up to the end of the token is returned.
func lexNumber(line string, i int) (int, string) {
	end := i
	for end < len(line) && (isIdent(line[end]) || line[end] == '.' ||
		((line[end] == '+' || line[end] == '-') && end > i && (line[end-1]|0x20) == 'e' && !isHexLiteral(line[i:end]))) {
		end++
	}
	raw := line[i:end]
	canon, ok := canonicalNumber(raw)
	if !ok {
		return end, raw
	}
	return end, canon
}

func isHexLiteral(s string) bool {
	return len(s) > 1 && s[0] == '0' && (s[1]|0x20) == 'x'
}

func canonicalNumber(raw string) (string, bool) {
	s := strings.ReplaceAll(raw, "_", "")
	if s == "" || strings.HasPrefix(raw, "_") || strings.HasSuffix(raw, "_") {
		return "", false
	}

	if len(s) > 1 && s[0] == '0' && strings.ContainsRune("xXoObB", rune(s[1])) {
		body := strings.ToLower(s[2:])
		suffix := ""
		if k := strings.IndexFunc(body, func(r rune) bool { return r == 'n' || r == 'l' || r == 'u' }); k >= 0 {
			body, suffix = body[:k], body[k:]
		}
		if body == "" || strings.Trim(body, "0123456789abcdef") != "" {
			return "", false
		}
		return "0" + strings.ToLower(s[1:2]) + body + suffix, true
	}

	// split mantissa, exponent and suffix
	k := 0
	for k < len(s) && (isDigit(s[k]) || s[k] == '.') {
		k++
	}
	mantissa, rest := s[:k], s[k:]
	if strings.Count(mantissa, ".") > 1 || strings.Trim(mantissa, ".") == "" {
		return "", false
	}
	exponent := ""
	if rest != "" && (rest[0]|0x20) == 'e' {
		e := 1
		if e < len(rest) && (rest[e] == '+' || rest[e] == '-') {
			e++
		}
		digits := e
		for e < len(rest) && isDigit(rest[e]) {
			e++
		}
		if e == digits {
			return "", false
		}
		sign := rest[1:digits]
		if sign == "+" {
			sign = ""
		}
		exp := strings.TrimLeft(rest[digits:e], "0")
		if exp == "" {
			exp = "0"
		}
		exponent = "e" + sign + exp
		rest = rest[e:]
	}
	if rest != "" && !numericSuffix.MatchString(rest) {
		return "", false
	}

	intPart, frac, hasDot := strings.Cut(mantissa, ".")
	if intPart == "" {
		intPart = "0"
	}
	frac = strings.TrimRight(frac, "0")
	out := intPart
	if hasDot && frac != "" {
		out += "." + frac
	}
	return out + exponent + rest, true
}
