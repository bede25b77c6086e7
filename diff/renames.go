package diff

import "regexp"

var identifier = regexp.MustCompile(`[A-Za-z_][A-Za-z0-9_]*`)

// minRenameOccurrences is the number of substitutions needed before a
// mapping is reported.
const minRenameOccurrences = 2

type renamePair struct {
	from, to string
	count    int
}

// detectRenames compares the identifier streams of both texts position by
// position. Streams of different length are not aligned and yield nothing.
// A substitution is kept only when it outnumbers every other substitution
// sharing its old or new name, so the result is one-to-one. Groups are
// returned in order of first substitution.
func detectRenames(oldText, newText string) ([]renamePair, int) {
	oldTokens := identifier.FindAllString(oldText, -1)
	newTokens := identifier.FindAllString(newText, -1)
	if len(oldTokens) == 0 || len(oldTokens) != len(newTokens) {
		return nil, 0
	}

	index := make(map[[2]string]int)
	var pairs []renamePair
	for i, from := range oldTokens {
		to := newTokens[i]
		if from == to {
			continue
		}
		key := [2]string{from, to}
		if k, ok := index[key]; ok {
			pairs[k].count++
			continue
		}
		index[key] = len(pairs)
		pairs = append(pairs, renamePair{from: from, to: to, count: 1})
	}

	var out []renamePair
	for _, p := range pairs {
		if p.count >= minRenameOccurrences && dominant(p, pairs) {
			out = append(out, p)
		}
	}
	return out, len(oldTokens)
}

func dominant(p renamePair, pairs []renamePair) bool {
	for _, q := range pairs {
		if q == p {
			continue
		}
		if (q.from == p.from || q.to == p.to) && q.count >= p.count {
			return false
		}
	}
	return true
}

// identifierSet returns the identifiers occurring in text.
func identifierSet(text string) map[string]bool {
	set := make(map[string]bool)
	for _, tok := range identifier.FindAllString(text, -1) {
		set[tok] = true
	}
	return set
}
