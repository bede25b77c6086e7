package diff

type editKind int

const (
	editEqual editKind = iota
	editInsert
	editDelete
)

// hunk is a maximal changed region between two runs of equal lines.
// Bounds are half-open, 0-based line indices.
type hunk struct {
	oldStart, oldEnd int
	newStart, newEnd int
}

// internLines maps every distinct line to a small integer so the edit
// script compares ints instead of strings.
func internLines(a, b []string) ([]int, []int) {
	ids := make(map[string]int, len(a)+len(b))
	conv := func(lines []string) []int {
		out := make([]int, len(lines))
		for i, line := range lines {
			id, ok := ids[line]
			if !ok {
				id = len(ids)
				ids[line] = id
			}
			out[i] = id
		}
		return out
	}
	return conv(a), conv(b)
}

// directLimit is the combined length up to which a sub-problem is solved by
// the trace-keeping pass. Larger inputs are bisected first, so memory stays
// linear in the input.
const directLimit = 1024

// editScript returns the line edit kinds turning a into b. The common prefix
// and suffix are stripped before the Myers pass, so equal lines align as early
// as possible.
func editScript(a, b []int) []editKind {
	return appendScript(make([]editKind, 0, len(a)+len(b)), a, b)
}

func appendScript(script []editKind, a, b []int) []editKind {
	prefix := 0
	for prefix < len(a) && prefix < len(b) && a[prefix] == b[prefix] {
		prefix++
	}
	suffix := 0
	for suffix < len(a)-prefix && suffix < len(b)-prefix && a[len(a)-1-suffix] == b[len(b)-1-suffix] {
		suffix++
	}

	script = appendKind(script, editEqual, prefix)
	a, b = a[prefix:len(a)-suffix], b[prefix:len(b)-suffix]
	switch {
	case len(a) == 0 || len(b) == 0 || disjoint(a, b):
		script = appendKind(script, editDelete, len(a))
		script = appendKind(script, editInsert, len(b))
	case len(a)+len(b) <= directLimit:
		script = append(script, myers(a, b)...)
	default:
		x, y, ok := bisect(a, b)
		if !ok || x < 0 || y < 0 || x > len(a) || y > len(b) ||
			(x == 0 && y == 0) || (x == len(a) && y == len(b)) {
			script = appendKind(script, editDelete, len(a))
			script = appendKind(script, editInsert, len(b))
			break
		}
		script = appendScript(script, a[:x], b[:y])
		script = appendScript(script, a[x:], b[y:])
	}
	return appendKind(script, editEqual, suffix)
}

func appendKind(script []editKind, kind editKind, n int) []editKind {
	for i := 0; i < n; i++ {
		script = append(script, kind)
	}
	return script
}

// disjoint reports whether a and b share no line.
func disjoint(a, b []int) bool {
	seen := make(map[int]struct{}, len(a))
	for _, id := range a {
		seen[id] = struct{}{}
	}
	for _, id := range b {
		if _, ok := seen[id]; ok {
			return false
		}
	}
	return true
}

// bisect finds a point where the forward and reverse searches overlap. The
// point lies on a shortest edit path, so each side can be solved separately.
// Diagonals that leave the grid are dropped from further rounds.
func bisect(a, b []int) (x, y int, ok bool) {
	n, m := len(a), len(b)
	maxD := (n + m + 1) / 2
	off := maxD
	vf := make([]int, 2*maxD)
	vb := make([]int, 2*maxD)
	for i := range vf {
		vf[i], vb[i] = -1, -1
	}
	vf[off+1], vb[off+1] = 0, 0

	delta := n - m
	front := delta%2 != 0
	fStart, fEnd, bStart, bEnd := 0, 0, 0, 0
	for d := 0; d < maxD; d++ {
		for k := -d + fStart; k <= d-fEnd; k += 2 {
			var x1 int
			if k == -d || (k != d && vf[off+k-1] < vf[off+k+1]) {
				x1 = vf[off+k+1]
			} else {
				x1 = vf[off+k-1] + 1
			}
			y1 := x1 - k
			for x1 < n && y1 < m && a[x1] == b[y1] {
				x1++
				y1++
			}
			vf[off+k] = x1
			switch {
			case x1 > n:
				fEnd += 2
			case y1 > m:
				fStart += 2
			case front:
				r := off + delta - k
				if r >= 0 && r < len(vb) && vb[r] != -1 && x1 >= n-vb[r] {
					return x1, y1, true
				}
			}
		}

		// the reverse search reads both inputs backwards
		for k := -d + bStart; k <= d-bEnd; k += 2 {
			var x2 int
			if k == -d || (k != d && vb[off+k-1] < vb[off+k+1]) {
				x2 = vb[off+k+1]
			} else {
				x2 = vb[off+k-1] + 1
			}
			y2 := x2 - k
			for x2 < n && y2 < m && a[n-x2-1] == b[m-y2-1] {
				x2++
				y2++
			}
			vb[off+k] = x2
			switch {
			case x2 > n:
				bEnd += 2
			case y2 > m:
				bStart += 2
			case !front:
				f := off + delta - k
				if f >= 0 && f < len(vf) && vf[f] != -1 {
					x1 := vf[f]
					if x1 >= n-x2 {
						return x1, off + x1 - f, true
					}
				}
			}
		}
	}
	return 0, 0, false
}

// myers computes a shortest edit script in O((N+M)D). When both directions
// reach the same furthest point, the delete is taken first.
func myers(a, b []int) []editKind {
	n, m := len(a), len(b)
	if n == 0 || m == 0 {
		script := appendKind(make([]editKind, 0, n+m), editDelete, n)
		return appendKind(script, editInsert, m)
	}

	max := n + m
	v := make([]int, 2*max+2)
	// trace[d] holds v[-d+1..d-1] as it was before round d, the only
	// diagonals backtracking reads for that round
	var trace [][]int

	for d := 0; d <= max; d++ {
		var snap []int
		if d > 0 {
			snap = append(snap, v[max-d+1:max+d]...)
		}
		trace = append(trace, snap)

		for k := -d; k <= d; k += 2 {
			var x int
			if k == -d || (k != d && v[max+k-1] < v[max+k+1]) {
				x = v[max+k+1] // down: insert
			} else {
				x = v[max+k-1] + 1 // right: delete
			}
			y := x - k
			for x < n && y < m && a[x] == b[y] {
				x++
				y++
			}
			v[max+k] = x
			if x >= n && y >= m {
				return backtrack(trace, n, m)
			}
		}
	}
	return nil
}

func backtrack(trace [][]int, n, m int) []editKind {
	x, y := n, m
	var rev []editKind

	for d := len(trace) - 1; d > 0; d-- {
		snap := trace[d]
		at := func(k int) int { return snap[k+d-1] }
		k := x - y
		var prevK int
		if k == -d || (k != d && at(k-1) < at(k+1)) {
			prevK = k + 1
		} else {
			prevK = k - 1
		}
		prevX := at(prevK)
		prevY := prevX - prevK

		for x > prevX && y > prevY {
			x--
			y--
			rev = append(rev, editEqual)
		}
		if prevK == k+1 {
			y--
			rev = append(rev, editInsert)
		} else {
			x--
			rev = append(rev, editDelete)
		}
	}
	for x > 0 && y > 0 {
		x--
		y--
		rev = append(rev, editEqual)
	}

	for i, j := 0, len(rev)-1; i < j; i, j = i+1, j-1 {
		rev[i], rev[j] = rev[j], rev[i]
	}
	return rev
}

// collectHunks groups consecutive non-equal edits.
func collectHunks(script []editKind) []hunk {
	var out []hunk
	var cur *hunk
	i, j := 0, 0
	for _, e := range script {
		if e == editEqual {
			if cur != nil {
				out = append(out, *cur)
				cur = nil
			}
			i++
			j++
			continue
		}
		if cur == nil {
			cur = &hunk{oldStart: i, oldEnd: i, newStart: j, newEnd: j}
		}
		if e == editDelete {
			i++
			cur.oldEnd = i
		} else {
			j++
			cur.newEnd = j
		}
	}
	if cur != nil {
		out = append(out, *cur)
	}
	return out
}
