package normalize

import (
	"regexp"
	"sort"
	"strings"

	"semdiff/geom"
)

var (
	esImport  = regexp.MustCompile(`^\s*import\s+(?:[\w*{}\s,$]+\s+from\s+)?["'][^"']+["']\s*;?\s*$`)
	pyImport  = regexp.MustCompile(`^(?:import\s+[\w.]+(?:\s+as\s+\w+)?(?:\s*,\s*[\w.]+(?:\s+as\s+\w+)?)*|from\s+[\w.]+\s+import\s+[\w*]+(?:\s+as\s+\w+)?(?:\s*,\s*\w+(?:\s+as\s+\w+)?)*)\s*$`)
	goSpec    = regexp.MustCompile(`^\s*(?:[\w.]+\s+)?"[^"]+"\s*$`)
	goSingle  = regexp.MustCompile(`^import\s+(?:[\w.]+\s+)?"[^"]+"\s*$`)
	goBlockOn = regexp.MustCompile(`^import\s*\(\s*$`)
)

// ImportOrder sorts maximal runs of adjacent single-line import statements.
// Multi-line imports end a run and are left in place.
type ImportOrder struct{}

func (ImportOrder) Name() string { return "importOrder" }

func (ImportOrder) Applies(lang string) bool {
	return langIn(lang, "js", "jsx", "ts", "tsx", "py", "python", "go")
}

func (ImportOrder) Apply(text, lang string) string {
	lines := geom.SplitLines(text)
	switch strings.ToLower(lang) {
	case "go":
		sortGoImports(lines)
	case "py", "python":
		sortRuns(lines, func(l string) bool { return pyImport.MatchString(l) })
	default:
		sortRuns(lines, func(l string) bool { return esImport.MatchString(l) })
	}
	return strings.Join(lines, "\n")
}

// sortRuns sorts each maximal run of consecutive lines accepted by isImport.
func sortRuns(lines []string, isImport func(string) bool) {
	i := 0
	for i < len(lines) {
		if !isImport(lines[i]) {
			i++
			continue
		}
		j := i
		for j < len(lines) && isImport(lines[j]) {
			j++
		}
		sortLines(lines[i:j])
		i = j
	}
}

// sortGoImports handles consecutive single imports and the specs inside
// import ( ... ) blocks. Blank lines separate groups, as gofmt treats them.
func sortGoImports(lines []string) {
	inBlock := false
	isImport := func(l string) bool {
		if inBlock {
			return goSpec.MatchString(l)
		}
		return goSingle.MatchString(l)
	}

	i := 0
	for i < len(lines) {
		trimmed := strings.TrimSpace(lines[i])
		switch {
		case !inBlock && goBlockOn.MatchString(trimmed):
			inBlock = true
			i++
			continue
		case inBlock && trimmed == ")":
			inBlock = false
			i++
			continue
		case !isImport(lines[i]):
			i++
			continue
		}
		j := i
		for j < len(lines) && isImport(lines[j]) {
			j++
		}
		sortLines(lines[i:j])
		i = j
	}
}

// sortLines orders import lines by their trimmed text; stable so equal
// lines keep their relative order.
func sortLines(run []string) {
	if len(run) < 2 {
		return
	}
	sort.SliceStable(run, func(a, b int) bool {
		return strings.TrimSpace(run[a]) < strings.TrimSpace(run[b])
	})
}
