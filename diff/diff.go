package diff

import (
	"fmt"
	"io"
	"log/slog"
	"math"
	"sync"

	"semdiff/geom"
	"semdiff/normalize"
	"semdiff/parse"
)

// Options configures a single diff call.
type Options struct {
	// MoveThreshold is the minimum similarity for near-duplicate moves.
	// Values outside (0, 1] select the differ's threshold.
	MoveThreshold float64
	// Normalizer replaces the differ's normalizer configuration for this call.
	Normalizer *normalize.Config
	// Language skips language inference when set.
	Language string
	// Path is used for language inference when Language is empty.
	Path string
}

// Differ computes structural diffs between two versions of a text. A Differ
// is immutable after construction and safe for concurrent use.
type Differ struct {
	pipeline  *normalize.Pipeline
	registry  *parse.Registry
	threshold float64
	logger    *slog.Logger
}

// Option configures a Differ.
type Option func(*Differ)

// WithNormalizer sets the normalizer configuration.
func WithNormalizer(cfg normalize.Config) Option {
	return func(d *Differ) {
		d.pipeline = normalize.NewPipeline(cfg)
	}
}

// WithPipeline sets a prepared normalizer pipeline, including custom rules.
func WithPipeline(p *normalize.Pipeline) Option {
	return func(d *Differ) {
		d.pipeline = p
	}
}

// WithRegistry sets the parser registry used for language inference.
func WithRegistry(r *parse.Registry) Option {
	return func(d *Differ) {
		d.registry = r
	}
}

// WithMoveThreshold sets the default near-duplicate move threshold.
func WithMoveThreshold(t float64) Option {
	return func(d *Differ) {
		if validThreshold(t) {
			d.threshold = t
		}
	}
}

// WithLogger sets the logger for debug records.
func WithLogger(l *slog.Logger) Option {
	return func(d *Differ) {
		if l != nil {
			d.logger = l
		}
	}
}

// NewDiffer creates a differ with the default normalizer configuration and
// parser registry.
func NewDiffer(opts ...Option) *Differ {
	d := &Differ{
		threshold: DefaultMoveThreshold,
		logger:    slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(d)
	}
	if d.pipeline == nil {
		d.pipeline = normalize.NewPipeline(normalize.DefaultConfig())
	}
	if d.registry == nil {
		d.registry = parse.NewRegistry(parse.WithLogger(d.logger))
	}
	return d
}

var defaultDiffer = sync.OnceValue(func() *Differ { return NewDiffer() })

// Diff compares two texts with the default configuration.
func Diff(oldText, newText string) *Document {
	return defaultDiffer().Diff(oldText, newText, Options{})
}

func validThreshold(t float64) bool {
	return !math.IsNaN(t) && t > 0 && t <= 1
}

// Language returns the language a call with opts would use.
func (d *Differ) Language(content string, opts Options) string {
	if opts.Language != "" {
		return opts.Language
	}
	return d.registry.Language(parse.Input{Content: content, Path: opts.Path})
}

// DiffFile compares two versions of the file at path. A nil version is
// treated as an absent file, so every line of the other version is reported.
func (d *Differ) DiffFile(path string, before, after []byte) *Document {
	return d.Diff(string(before), string(after), Options{Path: path})
}

// Diff computes the diff document for oldText to newText. It never fails;
// each call returns a new document.
func (d *Differ) Diff(oldText, newText string, opts Options) *Document {
	lang := d.Language(newText, opts)
	pipeline := d.pipeline
	if opts.Normalizer != nil {
		pipeline = normalize.NewPipeline(*opts.Normalizer)
	}
	threshold := d.threshold
	if validThreshold(opts.MoveThreshold) {
		threshold = opts.MoveThreshold
	}

	ov := pipeline.Normalize(oldText, lang)
	nv := pipeline.Normalize(newText, lang)
	doc := NewDocument()
	if ov.Normalized == nv.Normalized {
		d.logger.Debug("normalized texts are identical", "language", lang, "rules", nv.Applied)
		return doc
	}

	oldOrig, oldNorm := viewLines(ov)
	newOrig, newNorm := viewLines(nv)
	oldIDs, newIDs := internLines(oldNorm, newNorm)
	hunks := collectHunks(editScript(oldIDs, newIDs))

	p := newPlanner(newSide(oldOrig, oldNorm, oldIDs), newSide(newOrig, newNorm, newIDs), hunks, threshold)
	p.findExactMoves()
	p.findNearMoves()

	b := &builder{
		doc:     doc,
		p:       p,
		oldText: oldText,
		newText: newText,
		oldIdx:  geom.NewLineIndex(oldText),
		newIdx:  geom.NewLineIndex(newText),
	}
	b.build()
	b.renames(ov.Normalized, nv.Normalized)

	d.logger.Debug("diff computed",
		"language", lang,
		"hunks", len(hunks),
		"operations", len(doc.Operations),
		"moves", len(doc.Moves),
		"renames", len(doc.Renames))
	return doc
}

// viewLines returns the original and normalized lines of a view. The empty
// text has no lines.
func viewLines(v normalize.View) ([]string, []string) {
	if v.Original == "" {
		return nil, nil
	}
	return v.OrigLines, v.NormLines
}

// builder turns a move plan into document operations.
type builder struct {
	doc              *Document
	p                *planner
	oldText, newText string
	oldIdx, newIdx   *geom.LineIndex
	hunkMove         map[int]int // hunk -> index of the first move touching it
	nextOp           int
}

func (b *builder) build() {
	moves := b.p.ordered()
	b.hunkMove = make(map[int]int)
	for i, m := range moves {
		b.doc.Moves = append(b.doc.Moves, MoveGroup{
			ID:         fmt.Sprintf("move-%d", i+1),
			OldRange:   b.oldRange(m.oldFirst, m.oldLast),
			NewRange:   b.newRange(m.newFirst, m.newLast),
			Confidence: m.confidence,
			Operations: []string{},
		})
		for _, h := range []int{m.src, m.dst} {
			if _, ok := b.hunkMove[h]; !ok {
				b.hunkMove[h] = i
			}
		}
	}

	for h, hk := range b.p.hunks {
		for i, m := range moves {
			if m.dst == h {
				b.emitMove(i, m)
			}
		}

		dels := unusedSegments(b.p.old, h, hk.oldStart, hk.oldEnd)
		ins := unusedSegments(b.p.new, h, hk.newStart, hk.newEnd)
		for k := 0; k < len(dels) || k < len(ins); k++ {
			switch {
			case k < len(dels) && k < len(ins):
				b.emitUpdate(h, dels[k], ins[k])
			case k < len(dels):
				b.emit(Operation{Type: OpDelete, OldRange: b.oldRangePtr(dels[k]), OldText: b.oldSlice(dels[k])})
			default:
				b.emit(Operation{Type: OpInsert, NewRange: b.newRangePtr(ins[k]), NewText: b.newSlice(ins[k])})
			}
		}
	}
}

func (b *builder) emit(op Operation) string {
	b.nextOp++
	op.ID = fmt.Sprintf("op-%d", b.nextOp)
	b.doc.Operations = append(b.doc.Operations, op)
	return op.ID
}

func (b *builder) emitMove(i int, m plannedMove) {
	group := &b.doc.Moves[i]
	oldSeg := segment{hunk: m.src, first: m.oldFirst, last: m.oldLast}
	newSeg := segment{hunk: m.dst, first: m.newFirst, last: m.newLast}
	confidence := m.confidence
	id := b.emit(Operation{
		Type:     OpMove,
		OldRange: b.oldRangePtr(oldSeg),
		NewRange: b.newRangePtr(newSeg),
		OldText:  b.oldSlice(oldSeg),
		NewText:  b.newSlice(newSeg),
		Meta:     &OpMeta{Confidence: &confidence, MoveID: group.ID},
	})
	group.Operations = append(group.Operations, id)
}

// emitUpdate pairs a deleted and an inserted block. An update in a hunk that
// a move was cut from or into belongs to that move's group.
func (b *builder) emitUpdate(h int, del, ins segment) {
	op := Operation{
		Type:     OpUpdate,
		OldRange: b.oldRangePtr(del),
		NewRange: b.newRangePtr(ins),
		OldText:  b.oldSlice(del),
		NewText:  b.newSlice(ins),
	}
	i, nested := b.hunkMove[h]
	if nested {
		op.Meta = &OpMeta{MoveID: b.doc.Moves[i].ID}
	}
	id := b.emit(op)
	if nested {
		b.doc.Moves[i].Operations = append(b.doc.Moves[i].Operations, id)
	}
}

func (b *builder) oldRange(first, last int) geom.Range {
	return geom.RangeForLines(b.p.old.orig, first, last)
}

func (b *builder) newRange(first, last int) geom.Range {
	return geom.RangeForLines(b.p.new.orig, first, last)
}

func (b *builder) oldRangePtr(s segment) *geom.Range {
	r := b.oldRange(s.first, s.last)
	return &r
}

func (b *builder) newRangePtr(s segment) *geom.Range {
	r := b.newRange(s.first, s.last)
	return &r
}

func (b *builder) oldSlice(s segment) *string {
	text := b.oldIdx.Slice(b.oldText, b.oldRange(s.first, s.last))
	return &text
}

func (b *builder) newSlice(s segment) *string {
	text := b.newIdx.Slice(b.newText, b.newRange(s.first, s.last))
	return &text
}

// renames records rename groups found in the normalized texts and tags the
// update operations they explain.
func (b *builder) renames(oldNorm, newNorm string) {
	pairs, total := detectRenames(oldNorm, newNorm)
	for i, pair := range pairs {
		b.doc.Renames = append(b.doc.Renames, RenameGroup{
			ID:          fmt.Sprintf("rename-%d", i+1),
			From:        pair.from,
			To:          pair.to,
			Occurrences: pair.count,
			Confidence:  float64(pair.count) / float64(total),
		})
	}
	if len(b.doc.Renames) == 0 {
		return
	}

	for i := range b.doc.Operations {
		op := &b.doc.Operations[i]
		if op.Type != OpUpdate {
			continue
		}
		oldIDs, newIDs := identifierSet(*op.OldText), identifierSet(*op.NewText)
		for _, r := range b.doc.Renames {
			if oldIDs[r.From] && newIDs[r.To] {
				if op.Meta == nil {
					op.Meta = &OpMeta{}
				}
				op.Meta.RenameGroupID = r.ID
				break
			}
		}
	}
}
