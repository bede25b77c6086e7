package diff

import (
	"sort"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/sergi/go-diff/diffmatchpatch"

	"semdiff/cas"
)

// DefaultMoveThreshold is the minimum similarity for pairing a deleted block
// with an inserted block that is not an exact copy.
const DefaultMoveThreshold = 0.6

// maxRunCells bounds the longest-run table built for one pair of hunks.
const maxRunCells = 1 << 22

// lineMode switches similarity scoring to whole-line tokens above this size.
const lineMode = 4096

// side is one version of the text as seen by the planner.
type side struct {
	orig []string // original lines
	norm []string // normalized lines, same length as orig
	ids  []int    // interned normalized lines
	used []bool   // consumed by a move
	sig  []int    // prefix count of significant lines
}

func newSide(orig, norm []string, ids []int) *side {
	s := &side{orig: orig, norm: norm, ids: ids, used: make([]bool, len(ids)), sig: make([]int, len(ids)+1)}
	for i, line := range norm {
		s.sig[i+1] = s.sig[i]
		if significant(line) {
			s.sig[i+1]++
		}
	}
	return s
}

// significant reports whether a line carries content worth relocating,
// so blank lines and lone braces never form a move by themselves.
func significant(line string) bool {
	return strings.IndexFunc(line, func(r rune) bool {
		return unicode.IsLetter(r) || unicode.IsDigit(r)
	}) >= 0
}

func (s *side) hasSignificant(first, last int) bool {
	return s.sig[last+1]-s.sig[first] > 0
}

func (s *side) markUsed(first, last int) {
	for i := first; i <= last; i++ {
		s.used[i] = true
	}
}

// plannedMove is a block relocated from hunk src to hunk dst. Line bounds
// are inclusive.
type plannedMove struct {
	src, dst          int
	oldFirst, oldLast int
	newFirst, newLast int
	confidence        float64
}

type planner struct {
	old, new  *side
	hunks     []hunk
	threshold float64
	dmp       *diffmatchpatch.DiffMatchPatch
	moves     []plannedMove

	prev, cur []int // longestRun rows
}

func newPlanner(a, b *side, hunks []hunk, threshold float64) *planner {
	dmp := diffmatchpatch.New()
	dmp.DiffTimeout = 0
	return &planner{old: a, new: b, hunks: hunks, threshold: threshold, dmp: dmp}
}

// run is a stretch of equal, unconsumed lines.
type run struct {
	oldStart, newStart, length int
}

// pairRun is the current longest run from hunk src to hunk dst.
type pairRun struct {
	src, dst int
	run
}

// findExactMoves repeatedly takes the longest run of identical normalized
// lines deleted in one hunk and inserted in another. Runs are computed once
// per pair of hunks sharing a line; a move only shortens the runs of pairs
// with the same source or destination, so only those are recomputed.
func (p *planner) findExactMoves() {
	pairs := p.candidatePairs()
	for i := range pairs {
		pairs[i].run = p.longestRun(p.hunks[pairs[i].src], p.hunks[pairs[i].dst])
	}

	for {
		bestIdx := -1
		for i, pr := range pairs {
			if pr.length > 0 && (bestIdx < 0 || pr.length > pairs[bestIdx].length) {
				bestIdx = i
			}
		}
		if bestIdx < 0 {
			return
		}

		best := pairs[bestIdx]
		m := plannedMove{
			src:      best.src,
			dst:      best.dst,
			oldFirst: best.oldStart,
			oldLast:  best.oldStart + best.length - 1,
			newFirst: best.newStart,
			newLast:  best.newStart + best.length - 1,
		}
		m.confidence = p.exactConfidence(m)
		p.old.markUsed(m.oldFirst, m.oldLast)
		p.new.markUsed(m.newFirst, m.newLast)
		p.moves = append(p.moves, m)

		kept := pairs[:0]
		for _, pr := range pairs {
			if pr.src == m.src || pr.dst == m.dst {
				pr.run = p.longestRun(p.hunks[pr.src], p.hunks[pr.dst])
			}
			if pr.length > 0 {
				kept = append(kept, pr)
			}
		}
		pairs = kept
	}
}

// candidatePairs lists, in (src, dst) order, the pairs of distinct hunks
// where some deleted line of src equals some inserted line of dst.
func (p *planner) candidatePairs() []pairRun {
	insertedIn := make(map[int][]int)
	for h, hk := range p.hunks {
		for j := hk.newStart; j < hk.newEnd; j++ {
			id := p.new.ids[j]
			if hs := insertedIn[id]; len(hs) == 0 || hs[len(hs)-1] != h {
				insertedIn[id] = append(hs, h)
			}
		}
	}

	var pairs []pairRun
	seen := make(map[int]bool)
	for a, hk := range p.hunks {
		clear(seen)
		var dsts []int
		for i := hk.oldStart; i < hk.oldEnd; i++ {
			for _, b := range insertedIn[p.old.ids[i]] {
				if b != a && !seen[b] {
					seen[b] = true
					dsts = append(dsts, b)
				}
			}
		}
		sort.Ints(dsts)
		for _, b := range dsts {
			pairs = append(pairs, pairRun{src: a, dst: b})
		}
	}
	return pairs
}

// longestRun finds the longest common run between the unconsumed deleted
// lines of a and the unconsumed inserted lines of b that contains at least
// one significant line. Ties go to the earliest old, then new, position.
func (p *planner) longestRun(a, b hunk) run {
	la, lb := a.oldEnd-a.oldStart, b.newEnd-b.newStart
	if la == 0 || lb == 0 || la*lb > maxRunCells {
		return run{}
	}

	if cap(p.prev) < lb+1 {
		p.prev = make([]int, lb+1)
		p.cur = make([]int, lb+1)
	}
	prev, cur := p.prev[:lb+1], p.cur[:lb+1]
	clear(prev)

	var best run
	for i := 0; i < la; i++ {
		oi := a.oldStart + i
		for j := 0; j < lb; j++ {
			nj := b.newStart + j
			if p.old.used[oi] || p.new.used[nj] || p.old.ids[oi] != p.new.ids[nj] {
				cur[j+1] = 0
				continue
			}
			n := prev[j] + 1
			cur[j+1] = n
			if n > best.length && p.old.hasSignificant(oi-n+1, oi) {
				best = run{oldStart: oi - n + 1, newStart: nj - n + 1, length: n}
			}
		}
		prev, cur = cur, prev
	}
	return best
}

// exactConfidence is 1 when the original blocks are byte-identical, otherwise
// the similarity of the originals, since only normalized-away details differ.
func (p *planner) exactConfidence(m plannedMove) float64 {
	oldBlock := p.old.orig[m.oldFirst : m.oldLast+1]
	newBlock := p.new.orig[m.newFirst : m.newLast+1]
	if cas.BlockDigest(oldBlock) == cas.BlockDigest(newBlock) {
		return 1
	}
	return p.similarity(strings.Join(oldBlock, "\n"), strings.Join(newBlock, "\n"))
}

// segment is a contiguous block of unconsumed lines on one side of a hunk.
type segment struct {
	hunk        int
	first, last int
}

// findNearMoves pairs leftover pure-delete blocks with leftover pure-insert
// blocks of other hunks when their normalized content is similar enough.
func (p *planner) findNearMoves() {
	var dels, ins []segment
	for h, hk := range p.hunks {
		oldSegs := unusedSegments(p.old, h, hk.oldStart, hk.oldEnd)
		newSegs := unusedSegments(p.new, h, hk.newStart, hk.newEnd)
		switch {
		case len(oldSegs) > 0 && len(newSegs) == 0:
			dels = append(dels, oldSegs...)
		case len(newSegs) > 0 && len(oldSegs) == 0:
			ins = append(ins, newSegs...)
		}
	}
	if len(dels) == 0 || len(ins) == 0 {
		return
	}

	type candidate struct {
		del, ins int
		score    float64
	}
	var candidates []candidate
	for i, d := range dels {
		if !p.old.hasSignificant(d.first, d.last) {
			continue
		}
		oldText := strings.Join(p.old.norm[d.first:d.last+1], "\n")
		for j, s := range ins {
			if s.hunk == d.hunk || !p.new.hasSignificant(s.first, s.last) {
				continue
			}
			score := p.similarity(oldText, strings.Join(p.new.norm[s.first:s.last+1], "\n"))
			if score >= p.threshold {
				candidates = append(candidates, candidate{del: i, ins: j, score: score})
			}
		}
	}
	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].score > candidates[j].score
	})

	takenDel := make([]bool, len(dels))
	takenIns := make([]bool, len(ins))
	for _, c := range candidates {
		if takenDel[c.del] || takenIns[c.ins] {
			continue
		}
		takenDel[c.del], takenIns[c.ins] = true, true
		d, s := dels[c.del], ins[c.ins]
		p.old.markUsed(d.first, d.last)
		p.new.markUsed(s.first, s.last)
		p.moves = append(p.moves, plannedMove{
			src:        d.hunk,
			dst:        s.hunk,
			oldFirst:   d.first,
			oldLast:    d.last,
			newFirst:   s.first,
			newLast:    s.last,
			confidence: c.score,
		})
	}
}

func unusedSegments(s *side, h, start, end int) []segment {
	var out []segment
	for i := start; i < end; i++ {
		if s.used[i] {
			continue
		}
		if n := len(out); n > 0 && out[n-1].last == i-1 {
			out[n-1].last = i
			continue
		}
		out = append(out, segment{hunk: h, first: i, last: i})
	}
	return out
}

// similarity returns 1 - levenshtein/maxLen over runes, in [0, 1].
func (p *planner) similarity(a, b string) float64 {
	if a == b {
		return 1
	}
	la, lb := utf8.RuneCountInString(a), utf8.RuneCountInString(b)
	longest := la
	if lb > longest {
		longest = lb
	}
	if longest == 0 {
		return 1
	}

	var diffs []diffmatchpatch.Diff
	if la+lb > lineMode {
		c1, c2, lines := p.dmp.DiffLinesToChars(a, b)
		diffs = p.dmp.DiffCharsToLines(p.dmp.DiffMain(c1, c2, false), lines)
	} else {
		diffs = p.dmp.DiffMain(a, b, false)
	}

	score := 1 - float64(p.dmp.DiffLevenshtein(diffs))/float64(longest)
	if score < 0 {
		return 0
	}
	if score > 1 {
		return 1
	}
	return score
}

// ordered returns the planned moves sorted by destination position.
func (p *planner) ordered() []plannedMove {
	out := append([]plannedMove(nil), p.moves...)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].newFirst < out[j].newFirst
	})
	return out
}
