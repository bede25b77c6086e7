package diff

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/santhosh-tekuri/jsonschema/v6"

	"semdiff/geom"
	"semdiff/normalize"
)

func allRules() normalize.Config {
	return normalize.Config{Global: normalize.Flags{Whitespace: true, Tailwind: true, ImportOrder: true, NumericLiterals: true}}
}

func countType(doc *Document, t OpType) int {
	n := 0
	for _, op := range doc.Operations {
		if op.Type == t {
			n++
		}
	}
	return n
}

func mustValidate(t *testing.T, doc *Document) {
	t.Helper()
	if err := doc.Validate(); err != nil {
		t.Fatalf("document failed validation: %v", err)
	}
}

func TestDiff_Idempotent(t *testing.T) {
	texts := []string{
		"",
		"a",
		"const   x = 1;\n\nfoo(bar)\n",
		"<div class=\"b a\">\r\n  text\r\n</div>",
		"import b from 'b'\nimport a from 'a'\nx = 1.50",
	}
	configs := map[string]normalize.Config{
		"default": normalize.DefaultConfig(),
		"all":     allRules(),
		"none":    {},
	}

	for name, cfg := range configs {
		d := NewDiffer(WithNormalizer(cfg))
		for _, text := range texts {
			doc := d.Diff(text, text, Options{Language: "tsx"})
			if len(doc.Operations) != 0 || len(doc.Moves) != 0 || len(doc.Renames) != 0 {
				t.Errorf("%s: diff(T, T) for %q produced %+v", name, text, doc)
			}
			mustValidate(t, doc)
		}
	}
}

func TestDiff_SingleLineUpdate(t *testing.T) {
	doc := Diff("a", "b")
	mustValidate(t, doc)

	if len(doc.Operations) != 1 {
		t.Fatalf("expected 1 operation, got %d", len(doc.Operations))
	}
	op := doc.Operations[0]
	if op.Type != OpUpdate {
		t.Fatalf("expected update, got %s", op.Type)
	}

	want := geom.Range{Start: geom.Position{Line: 1, Column: 1}, End: geom.Position{Line: 1, Column: 2}}
	if *op.OldRange != want || *op.NewRange != want {
		t.Errorf("unexpected ranges %s / %s", op.OldRange, op.NewRange)
	}
	if *op.OldText != "a" || *op.NewText != "b" {
		t.Errorf("unexpected texts %q / %q", *op.OldText, *op.NewText)
	}
	if op.ID != "op-1" {
		t.Errorf("expected id op-1, got %s", op.ID)
	}
}

func TestDiff_Empty(t *testing.T) {
	if doc := Diff("", ""); len(doc.Operations) != 0 {
		t.Errorf("empty to empty should have no operations, got %d", len(doc.Operations))
	}

	doc := Diff("", "a\nb")
	mustValidate(t, doc)
	if len(doc.Operations) != 1 || doc.Operations[0].Type != OpInsert {
		t.Fatalf("expected one insert, got %+v", doc.Operations)
	}
	if *doc.Operations[0].NewText != "a\nb" {
		t.Errorf("unexpected insert text %q", *doc.Operations[0].NewText)
	}

	doc = Diff("a\nb", "")
	if len(doc.Operations) != 1 || doc.Operations[0].Type != OpDelete {
		t.Fatalf("expected one delete, got %+v", doc.Operations)
	}
}

func TestDiff_WhitespaceNormalized(t *testing.T) {
	doc := Diff("const   x = 1;", "const x = 1;")
	if len(doc.Operations) != 0 {
		t.Errorf("expected no operations, got %d", len(doc.Operations))
	}

	d := NewDiffer(WithNormalizer(normalize.Config{}))
	doc = d.Diff("const   x = 1;", "const x = 1;", Options{})
	if len(doc.Operations) != 1 {
		t.Errorf("without normalization expected 1 operation, got %d", len(doc.Operations))
	}
}

func TestDiff_RangesReferToOriginalText(t *testing.T) {
	doc := Diff("const   x = 1;\nfoo()", "const x = 1;\nbar()")
	mustValidate(t, doc)

	if len(doc.Operations) != 1 {
		t.Fatalf("expected 1 operation, got %d", len(doc.Operations))
	}
	op := doc.Operations[0]
	want := geom.Range{Start: geom.Position{Line: 2, Column: 1}, End: geom.Position{Line: 2, Column: 6}}
	if *op.OldRange != want {
		t.Errorf("expected old range %s, got %s", want, op.OldRange)
	}
	if *op.OldText != "foo()" || *op.NewText != "bar()" {
		t.Errorf("unexpected texts %q / %q", *op.OldText, *op.NewText)
	}
}

func TestDiff_CRLF(t *testing.T) {
	doc := Diff("a\r\nb\r\nc", "a\r\nB\r\nc")
	if len(doc.Operations) != 1 {
		t.Fatalf("expected 1 operation, got %d", len(doc.Operations))
	}
	op := doc.Operations[0]
	if *op.OldText != "b" || op.OldRange.Start.Line != 2 || op.OldRange.End.Column != 2 {
		t.Errorf("unexpected update %s %q", op.OldRange, *op.OldText)
	}

	doc = Diff("x\r\ny\r\nz", "x\r\nY\r\nZ")
	if *doc.Operations[0].OldText != "y\r\nz" {
		t.Errorf("multi-line slice must keep original separators, got %q", *doc.Operations[0].OldText)
	}
}

func TestDiff_Move(t *testing.T) {
	doc := Diff("alpha\nbeta\ngamma\ndelta", "alpha\ndelta\nbeta\ngamma")
	mustValidate(t, doc)

	if countType(doc, OpMove) == 0 {
		t.Fatalf("expected a move operation, got %+v", doc.Operations)
	}
	if len(doc.Moves) == 0 || doc.Moves[0].Confidence <= 0 {
		t.Fatalf("expected a move group with positive confidence, got %+v", doc.Moves)
	}

	m := doc.Moves[0]
	if m.Confidence != 1 {
		t.Errorf("exact relocation should have confidence 1, got %v", m.Confidence)
	}
	op, ok := doc.Operation(m.Operations[0])
	if !ok || op.Type != OpMove || op.Meta.MoveID != m.ID {
		t.Errorf("move group should reference its move operation, got %+v", op)
	}
	if *op.OldText != "delta" || op.OldRange.Start.Line != 4 || op.NewRange.Start.Line != 2 {
		t.Errorf("unexpected move %s -> %s %q", op.OldRange, op.NewRange, *op.OldText)
	}
}

func TestDiff_MoveWithEdit(t *testing.T) {
	doc := Diff("alpha\none\ntwo\nthree\nomega", "alpha\nomega\none\ntwo\nthree updated")
	mustValidate(t, doc)

	var moveID string
	for _, op := range doc.Operations {
		if op.Type == OpMove {
			moveID = op.Meta.MoveID
		}
	}
	if moveID == "" {
		t.Fatal("expected a move operation")
	}

	found := false
	for _, op := range doc.Operations {
		if op.Type == OpUpdate && op.Meta != nil && op.Meta.MoveID == moveID {
			found = true
			group, ok := doc.Move(moveID)
			if !ok {
				t.Fatalf("move %s not found", moveID)
			}
			listed := false
			for _, id := range group.Operations {
				if id == op.ID {
					listed = true
				}
			}
			if !listed {
				t.Errorf("update %s should be listed in %s", op.ID, moveID)
			}
		}
	}
	if !found {
		t.Errorf("expected an update carrying moveId %s, got %+v", moveID, doc.Operations)
	}
}

func TestDiff_NearDuplicateMove(t *testing.T) {
	oldText := "header\nresult = compute(alpha, beta)\nmiddle\nfooter"
	newText := "header\nmiddle\nresult = compute(alpha, gamma)\nfooter"

	doc := Diff(oldText, newText)
	mustValidate(t, doc)
	if len(doc.Moves) != 1 {
		t.Fatalf("expected 1 move, got %d", len(doc.Moves))
	}
	if c := doc.Moves[0].Confidence; c < DefaultMoveThreshold || c >= 1 {
		t.Errorf("expected near-duplicate confidence in [%v, 1), got %v", DefaultMoveThreshold, c)
	}

	d := NewDiffer()
	doc = d.Diff(oldText, newText, Options{MoveThreshold: 0.95})
	if len(doc.Moves) != 0 {
		t.Errorf("threshold 0.95 should reject the pairing, got %+v", doc.Moves)
	}
	if countType(doc, OpDelete) != 1 || countType(doc, OpInsert) != 1 {
		t.Errorf("expected delete and insert, got %+v", doc.Operations)
	}

	doc = d.Diff(oldText, newText, Options{MoveThreshold: -1})
	if len(doc.Moves) != 1 {
		t.Error("an invalid threshold should fall back to the default")
	}
}

func TestDiff_BlankLinesDoNotMove(t *testing.T) {
	doc := Diff("a\n\nb", "a\nb\n")
	if len(doc.Moves) != 0 {
		t.Errorf("blank lines must not form a move, got %+v", doc.Moves)
	}
}

func TestDiff_Rename(t *testing.T) {
	doc := Diff("const foo = 1;\nfoo + foo", "const bar = 1;\nbar + bar")
	mustValidate(t, doc)

	if len(doc.Renames) != 1 {
		t.Fatalf("expected 1 rename, got %d", len(doc.Renames))
	}
	r := doc.Renames[0]
	if r.From != "foo" || r.To != "bar" || r.Occurrences != 3 {
		t.Errorf("unexpected rename %+v", r)
	}
	if r.Confidence != 0.75 {
		t.Errorf("expected confidence 3/4, got %v", r.Confidence)
	}

	tagged := false
	for _, op := range doc.Operations {
		if op.Meta != nil && op.Meta.RenameGroupID == r.ID {
			tagged = true
		}
	}
	if !tagged {
		t.Error("expected the update to carry the rename group id")
	}
}

func TestDiff_RenameRequiresRepetition(t *testing.T) {
	doc := Diff("const foo=1;", "const bar=1;")
	if len(doc.Renames) != 0 {
		t.Errorf("single substitution must not be grouped, got %+v", doc.Renames)
	}
}

func TestDiff_RenameTokenCountMismatch(t *testing.T) {
	doc := Diff("foo + foo", "bar + bar + baz")
	if len(doc.Renames) != 0 {
		t.Errorf("token count mismatch must not produce renames, got %+v", doc.Renames)
	}
}

func TestDiff_RenameConflictingTargets(t *testing.T) {
	doc := Diff("foo(foo); foo(foo);\nx", "bar(bar); baz(baz);\nx")
	if len(doc.Renames) != 0 {
		t.Errorf("foo maps to both bar and baz, expected no rename, got %+v", doc.Renames)
	}

	doc = Diff("qux + qux\nfoo + foo", "bar + bar\nbar + bar")
	if len(doc.Renames) != 0 {
		t.Errorf("qux and foo both map to bar, expected no rename, got %+v", doc.Renames)
	}
}

func TestDiff_RenameDominantTarget(t *testing.T) {
	doc := Diff("foo(foo);\nfoo(foo);\nx", "bar(bar);\nbar(baz);\nx")
	mustValidate(t, doc)

	if len(doc.Renames) != 1 {
		t.Fatalf("expected 1 rename, got %+v", doc.Renames)
	}
	r := doc.Renames[0]
	if r.From != "foo" || r.To != "bar" || r.Occurrences != 3 {
		t.Errorf("unexpected rename %+v", r)
	}
	if r.Confidence != 0.6 {
		t.Errorf("expected confidence 3/5, got %v", r.Confidence)
	}
}

func TestDiff_ShuffledListIsFast(t *testing.T) {
	const n = 400
	var oldLines, newLines []string
	for i := 0; i < n; i++ {
		oldLines = append(oldLines, fmt.Sprintf("common_%d", i), fmt.Sprintf("entry_%d", i))
		newLines = append(newLines, fmt.Sprintf("common_%d", i), fmt.Sprintf("entry_%d", (i*7+3)%n))
	}

	start := time.Now()
	doc := Diff(strings.Join(oldLines, "\n"), strings.Join(newLines, "\n"))
	elapsed := time.Since(start)

	mustValidate(t, doc)
	if len(doc.Moves) == 0 {
		t.Error("expected shuffled entries to be reported as moves")
	}
	if elapsed > 2*time.Second {
		t.Errorf("diffing %d shuffled lines took %v", 2*n, elapsed)
	}
}

func TestDiff_ClassTokens(t *testing.T) {
	on := NewDiffer()
	off := NewDiffer(WithNormalizer(normalize.Config{Global: normalize.Flags{Whitespace: true}}))
	tests := []struct {
		name     string
		old, new string
		lang     string
		wantOn   bool // expect changes with the rule enabled
		wantOff  bool
	}{
		{"reorder", `<div class="text-sm bg-red-500"></div>`, `<div class="bg-red-500 text-sm"></div>`, "html", false, true},
		{"duplicate reorder", `<div class="p-2 p-2 flex"></div>`, `<div class="flex p-2 p-2"></div>`, "html", false, true},
		{"token added", `<div class="text-sm bg-red-500"></div>`, `<div class="bg-red-500 text-sm p-2"></div>`, "html", true, true},
		{"token removed", `<div class="text-sm bg-red-500"></div>`, `<div class="bg-red-500"></div>`, "html", true, true},
		{"dynamic", "<div className={`text-sm ${x} bg-red-500`}></div>", "<div className={`bg-red-500 ${x} text-sm`}></div>", "tsx", true, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			opts := Options{Language: tt.lang}
			if got := len(on.Diff(tt.old, tt.new, opts).Operations) > 0; got != tt.wantOn {
				t.Errorf("rule enabled: changes=%v, want %v", got, tt.wantOn)
			}
			if got := len(off.Diff(tt.old, tt.new, opts).Operations) > 0; got != tt.wantOff {
				t.Errorf("rule disabled: changes=%v, want %v", got, tt.wantOff)
			}
		})
	}
}

func TestDiff_PerCallNormalizer(t *testing.T) {
	cfg := normalize.Config{Global: normalize.Flags{ImportOrder: true}}
	oldText := "import b from 'b'\nimport a from 'a'"
	newText := "import a from 'a'\nimport b from 'b'"

	if len(Diff(oldText, newText).Operations) == 0 {
		t.Error("import order is off by default")
	}
	doc := NewDiffer().Diff(oldText, newText, Options{Language: "js", Normalizer: &cfg})
	if len(doc.Operations) != 0 {
		t.Errorf("expected reordered imports to be equal, got %+v", doc.Operations)
	}
}

func TestDiffFile_LanguageFromPath(t *testing.T) {
	d := NewDiffer()
	before := []byte(`see <p class="text-sm bg-red-500">hi</p>`)
	after := []byte(`see <p class="bg-red-500 text-sm">hi</p>`)

	if doc := d.DiffFile("site/index.html", before, after); len(doc.Operations) != 0 {
		t.Errorf("expected html class reorder to be ignored, got %+v", doc.Operations)
	}
	if doc := d.DiffFile("notes.txt", before, after); len(doc.Operations) == 0 {
		t.Error("class reorder in plain text should be reported")
	}

	doc := d.DiffFile("new.go", nil, []byte("package main\n"))
	if countType(doc, OpInsert) != 1 {
		t.Errorf("added file should be one insert, got %+v", doc.Operations)
	}
}

func TestDiff_SequentialIDs(t *testing.T) {
	doc := Diff("a\nb\nc\nd\ne", "a\nX\nc\nY\ne\nf")
	for i, op := range doc.Operations {
		want := "op-" + string(rune('1'+i))
		if op.ID != want {
			t.Errorf("operation %d: expected id %s, got %s", i, want, op.ID)
		}
	}
	if len(doc.Operations) != 3 {
		t.Errorf("expected 3 operations, got %d", len(doc.Operations))
	}
}

func TestDiff_Deterministic(t *testing.T) {
	oldText := "a\nb\nc\nd\ne\nf\ng"
	newText := "g\na\nc\nb\nX\nd\nf\ne"
	first := Diff(oldText, newText)
	for i := 0; i < 5; i++ {
		if next := Diff(oldText, newText); !reflect.DeepEqual(first, next) {
			t.Fatal("repeated diffs must be identical")
		}
	}
	mustValidate(t, first)
}

func TestDiffer_Concurrent(t *testing.T) {
	d := NewDiffer()
	want := d.Diff("alpha\nbeta\ngamma\ndelta", "alpha\ndelta\nbeta\ngamma", Options{})

	var wg sync.WaitGroup
	errs := make(chan string, 16)
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			got := d.Diff("alpha\nbeta\ngamma\ndelta", "alpha\ndelta\nbeta\ngamma", Options{})
			if !reflect.DeepEqual(got, want) {
				errs <- "concurrent diff differs"
			}
		}()
	}
	wg.Wait()
	close(errs)
	for e := range errs {
		t.Error(e)
	}
}

func TestDocument_JSONRoundTrip(t *testing.T) {
	docs := []*Document{
		Diff("a", "b"),
		Diff("alpha\none\ntwo\nthree\nomega", "alpha\nomega\none\ntwo\nthree updated"),
		Diff("const foo = 1;\nfoo + foo", "const bar = 1;\nbar + bar"),
		Diff("", ""),
	}

	for _, doc := range docs {
		data, err := doc.FormatJSON()
		if err != nil {
			t.Fatalf("FormatJSON failed: %v", err)
		}
		if strings.Contains(string(data), "null") {
			t.Errorf("collections must encode as [], got %s", data)
		}

		decoded, err := ParseJSON(data)
		if err != nil {
			t.Fatalf("ParseJSON failed: %v", err)
		}
		if !reflect.DeepEqual(doc, decoded) {
			t.Errorf("round trip changed the document:\n%s", data)
		}
		mustValidate(t, decoded)
	}
}

func TestParseJSON_UnknownField(t *testing.T) {
	_, err := ParseJSON([]byte(`{"version":"0.1.0","operations":[],"moves":[],"renames":[],"extra":1}`))
	if err == nil {
		t.Error("expected unknown field error")
	}
}

func TestValidate_Rejects(t *testing.T) {
	text := "x"
	conf := 1.5
	r := geom.EmptyRange()
	bad := geom.Range{Start: geom.Position{Line: 2, Column: 1}, End: geom.Position{Line: 1, Column: 1}}

	tests := []struct {
		name   string
		mutate func(d *Document)
	}{
		{"version", func(d *Document) { d.Version = "9.9.9" }},
		{"dangling moveId", func(d *Document) {
			d.Operations[0].Meta = &OpMeta{MoveID: "move-9"}
		}},
		{"dangling renameGroupId", func(d *Document) {
			d.Operations[0].Meta = &OpMeta{RenameGroupID: "rename-9"}
		}},
		{"duplicate id", func(d *Document) {
			d.Operations = append(d.Operations, d.Operations[0])
		}},
		{"unknown type", func(d *Document) { d.Operations[0].Type = "replace" }},
		{"insert with old side", func(d *Document) {
			d.Operations[0] = Operation{ID: "op-1", Type: OpInsert, NewRange: &r, NewText: &text, OldText: &text}
		}},
		{"update missing side", func(d *Document) { d.Operations[0].NewText = nil }},
		{"reversed range", func(d *Document) { d.Operations[0].OldRange = &bad }},
		{"confidence", func(d *Document) { d.Operations[0].Meta = &OpMeta{Confidence: &conf} }},
		{"move references unknown op", func(d *Document) {
			d.Moves = append(d.Moves, MoveGroup{ID: "move-1", OldRange: r, NewRange: r, Confidence: 1, Operations: []string{"op-7"}})
		}},
		{"weak rename", func(d *Document) {
			d.Renames = append(d.Renames, RenameGroup{ID: "rename-1", From: "a", To: "b", Occurrences: 1, Confidence: 0.5})
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			doc := Diff("a", "b").Clone()
			tt.mutate(doc)
			err := doc.Validate()
			if err == nil {
				t.Fatal("expected validation error")
			}
			if !errors.Is(err, ErrInvalidDocument) {
				t.Errorf("expected ErrInvalidDocument, got %v", err)
			}
		})
	}
}

func TestDocument_CloneIsDeep(t *testing.T) {
	doc := Diff("alpha\none\ntwo\nthree\nomega", "alpha\nomega\none\ntwo\nthree updated")
	clone := doc.Clone()

	*clone.Operations[0].OldText = "changed"
	clone.Operations[0].OldRange.Start.Line = 99
	*clone.Operations[0].Meta.Confidence = 0
	clone.Moves[0].Operations[0] = "op-99"

	if *doc.Operations[0].OldText == "changed" || doc.Operations[0].OldRange.Start.Line == 99 {
		t.Error("clone shares operation data with the original")
	}
	if *doc.Operations[0].Meta.Confidence == 0 {
		t.Error("clone shares meta with the original")
	}
	if doc.Moves[0].Operations[0] == "op-99" {
		t.Error("clone shares move group operations with the original")
	}
}

func TestValidate_SchemaScenarios(t *testing.T) {
	tests := []struct {
		name, old, new string
		cfg            *normalize.Config
	}{
		{"identical", "const x = 1;", "const x = 1;", nil},
		{"single update", "a", "b", nil},
		{"whitespace only", "const   x = 1;", "const x = 1;", nil},
		{"move", "alpha\nbeta\ngamma\ndelta", "alpha\ndelta\nbeta\ngamma", nil},
		{"move with edit", "alpha\none\ntwo\nthree\nomega", "alpha\nomega\none\ntwo\nthree updated", nil},
		{"rename", "const foo = 1;\nfoo + foo", "const bar = 1;\nbar + bar", nil},
		{"single substitution", "const foo=1;", "const bar=1;", nil},
		{"token count mismatch", "foo + foo", "bar + bar + baz", nil},
		{"class reorder", `<p class="text-sm bg-red-500">`, `<p class="bg-red-500 text-sm">`, nil},
		{"class reorder, rule off", `<p class="text-sm bg-red-500">`, `<p class="bg-red-500 text-sm">`,
			&normalize.Config{Global: normalize.Flags{Whitespace: true}}},
		{"insert into empty", "", "a\nb", nil},
		{"delete everything", "a\nb", "", nil},
	}

	d := NewDiffer()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			doc := d.Diff(tt.old, tt.new, Options{Language: "html", Normalizer: tt.cfg})
			if err := doc.validateSchema(); err != nil {
				t.Errorf("schema rejected the document: %v", err)
			}
			mustValidate(t, doc)
		})
	}
}

func TestValidate_SchemaErrorsAreWrapped(t *testing.T) {
	doc := Diff("a", "b").Clone()
	doc.Operations[0].Type = "replace"

	err := doc.Validate()
	if !errors.Is(err, ErrInvalidDocument) {
		t.Fatalf("expected ErrInvalidDocument, got %v", err)
	}
	var verr *jsonschema.ValidationError
	if !errors.As(err, &verr) {
		t.Errorf("expected a schema validation error, got %v", err)
	}
}

func TestSchema(t *testing.T) {
	s := string(Schema())
	for _, want := range []string{`"0.1.0"`, `"insert"`, `"delete"`, `"update"`, `"move"`, `"renameGroupId"`} {
		if !strings.Contains(s, want) {
			t.Errorf("schema missing %s", want)
		}
	}
}

func TestDocument_FormatText(t *testing.T) {
	doc := Diff("alpha\none\ntwo\nthree\nomega", "alpha\nomega\none\ntwo\nthree updated")
	out := doc.FormatText()

	for _, want := range []string{"> ", "~ ", "move-1", "Summary: 2 operations"} {
		if !strings.Contains(out, want) {
			t.Errorf("expected %q in output:\n%s", want, out)
		}
	}
	if got := doc.FormatStats(); got != "2 operations (0+, 0-, 1~, 1>), 1 moves, 0 renames" {
		t.Errorf("unexpected stats %q", got)
	}
	if lines := strings.Split(doc.FormatCompact(), "\n"); len(lines) != 2 {
		t.Errorf("expected one compact line per operation, got %d", len(lines))
	}
}
