// Package geom converts between line/column positions and character offsets.
//
// Positions are 1-based. Offsets and columns count runes of the original
// text, and CRLF and LF line endings are treated the same way.
package geom

import (
	"fmt"
	"regexp"
	"sort"
	"unicode/utf8"
)

// Position is a 1-based line and column.
type Position struct {
	Line   int `json:"line"`
	Column int `json:"column"`
}

// Before reports whether p comes strictly before q.
func (p Position) Before(q Position) bool {
	if p.Line != q.Line {
		return p.Line < q.Line
	}
	return p.Column < q.Column
}

func (p Position) String() string {
	return fmt.Sprintf("%d:%d", p.Line, p.Column)
}

// Range is a span of source text. End is exclusive.
type Range struct {
	Start Position `json:"start"`
	End   Position `json:"end"`
}

// EmptyRange returns the canonical zero-width range used for empty or unknown spans.
func EmptyRange() Range {
	return Range{Start: Position{Line: 1, Column: 1}, End: Position{Line: 1, Column: 1}}
}

// Valid reports whether all coordinates are positive and End is not before Start.
func (r Range) Valid() bool {
	if r.Start.Line < 1 || r.Start.Column < 1 || r.End.Line < 1 || r.End.Column < 1 {
		return false
	}
	return !r.End.Before(r.Start)
}

// Clamp returns a valid range close to r: coordinates below 1 are lifted to 1
// and reversed endpoints are swapped.
func (r Range) Clamp() Range {
	lift := func(p Position) Position {
		if p.Line < 1 {
			p.Line = 1
		}
		if p.Column < 1 {
			p.Column = 1
		}
		return p
	}
	r.Start, r.End = lift(r.Start), lift(r.End)
	if r.End.Before(r.Start) {
		r.Start, r.End = r.End, r.Start
	}
	return r
}

func (r Range) String() string {
	return r.Start.String() + "-" + r.End.String()
}

var lineBreak = regexp.MustCompile(`\r?\n`)

// SplitLines splits text on \r?\n. The empty string yields a single empty line.
func SplitLines(text string) []string {
	return lineBreak.Split(text, -1)
}

// LineIndex caches line start offsets (in runes) for one text.
type LineIndex struct {
	starts     []int // rune offset of each line start
	byteStarts []int // byte offset of each line start
	ends       []int // rune offset just past each line's content, before its separator
	length     int   // total rune count
	bytes      int   // total byte count
}

// NewLineIndex builds the line table for text in a single pass.
func NewLineIndex(text string) *LineIndex {
	idx := &LineIndex{starts: []int{0}, byteStarts: []int{0}, bytes: len(text)}
	runes := 0
	prevCR := false
	for i, r := range text {
		switch r {
		case '\n':
			end := runes
			if prevCR {
				end--
			}
			idx.ends = append(idx.ends, end)
			idx.starts = append(idx.starts, runes+1)
			idx.byteStarts = append(idx.byteStarts, i+1)
		}
		prevCR = r == '\r'
		runes++
	}
	idx.ends = append(idx.ends, runes)
	idx.length = runes
	return idx
}

// LineCount returns the number of lines, which is at least one.
func (idx *LineIndex) LineCount() int {
	return len(idx.starts)
}

// Len returns the text length in runes.
func (idx *LineIndex) Len() int {
	return idx.length
}

// LineLength returns the length in runes of the given 1-based line,
// excluding its separator. Out-of-range lines are clamped.
func (idx *LineIndex) LineLength(line int) int {
	i := idx.clampLine(line)
	return idx.ends[i] - idx.starts[i]
}

func (idx *LineIndex) clampLine(line int) int {
	i := line - 1
	if i < 0 {
		return 0
	}
	if i >= len(idx.starts) {
		return len(idx.starts) - 1
	}
	return i
}

// Offset converts a position to a rune offset. The line is clamped into
// bounds first and the resulting offset into [0, Len()].
func (idx *LineIndex) Offset(pos Position) int {
	off := idx.starts[idx.clampLine(pos.Line)] + pos.Column - 1
	if off < 0 {
		return 0
	}
	if off > idx.length {
		return idx.length
	}
	return off
}

// Position converts a rune offset to a position using binary search over
// line starts. Offsets outside [0, Len()] are clamped.
func (idx *LineIndex) Position(offset int) Position {
	if offset < 0 {
		offset = 0
	}
	if offset > idx.length {
		offset = idx.length
	}
	// first line whose start is beyond offset, minus one
	line := sort.Search(len(idx.starts), func(i int) bool {
		return idx.starts[i] > offset
	}) - 1
	return Position{Line: line + 1, Column: offset - idx.starts[line] + 1}
}

// RangeForText returns the range spanning all of text, or EmptyRange for "".
func RangeForText(text string) Range {
	if text == "" {
		return EmptyRange()
	}
	idx := NewLineIndex(text)
	last := idx.LineCount()
	return Range{
		Start: Position{Line: 1, Column: 1},
		End:   Position{Line: last, Column: idx.LineLength(last) + 1},
	}
}

// RangeForLines returns the range covering lines[first..last] (0-based,
// inclusive), from the first line's start to the end of the last line's content.
func RangeForLines(lines []string, first, last int) Range {
	if len(lines) == 0 || first > last {
		return EmptyRange()
	}
	if first < 0 {
		first = 0
	}
	if last >= len(lines) {
		last = len(lines) - 1
	}
	return Range{
		Start: Position{Line: first + 1, Column: 1},
		End:   Position{Line: last + 1, Column: utf8.RuneCountInString(lines[last]) + 1},
	}
}

// Slice returns the text covered by r. Malformed ranges are clamped.
func Slice(text string, r Range) string {
	idx := NewLineIndex(text)
	return idx.Slice(text, r)
}

// Slice is like the package-level Slice but reuses the index. text must be
// the string the index was built from.
func (idx *LineIndex) Slice(text string, r Range) string {
	r = r.Clamp()
	start, end := idx.Offset(r.Start), idx.Offset(r.End)
	if start >= end {
		return ""
	}
	return text[idx.byteOffset(text, start):idx.byteOffset(text, end)]
}

// byteOffset converts a rune offset in [0, Len()] to a byte offset, walking
// only the line that contains it.
func (idx *LineIndex) byteOffset(text string, offset int) int {
	if idx.length == idx.bytes {
		return offset
	}
	line := sort.Search(len(idx.starts), func(i int) bool {
		return idx.starts[i] > offset
	}) - 1
	b := idx.byteStarts[line]
	for n := offset - idx.starts[line]; n > 0 && b < len(text); n-- {
		_, size := utf8.DecodeRuneInString(text[b:])
		b += size
	}
	return b
}
