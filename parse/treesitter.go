package parse

import (
	"context"
	"fmt"
	"unicode/utf8"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/css"
	"github.com/smacker/go-tree-sitter/golang"
	"github.com/smacker/go-tree-sitter/html"
	"github.com/smacker/go-tree-sitter/javascript"
	"github.com/smacker/go-tree-sitter/python"
	"github.com/smacker/go-tree-sitter/typescript/tsx"
	"github.com/smacker/go-tree-sitter/typescript/typescript"

	"semdiff/geom"
)

// maxDiagnostics bounds how many syntax problems are reported per parse.
const maxDiagnostics = 20

// TreeSitterBackend parses with Tree-sitter grammars.
type TreeSitterBackend struct {
	grammars map[string]func() *sitter.Language
	langs    []string
}

// NewTreeSitterBackend creates a backend for JavaScript, TypeScript, TSX,
// Python, Go, HTML and CSS.
func NewTreeSitterBackend() *TreeSitterBackend {
	b := &TreeSitterBackend{grammars: map[string]func() *sitter.Language{}}
	b.add("js", javascript.GetLanguage)
	b.add("jsx", javascript.GetLanguage)
	b.add("ts", typescript.GetLanguage)
	b.add("tsx", tsx.GetLanguage)
	b.add("py", python.GetLanguage)
	b.add("go", golang.GetLanguage)
	b.add("html", html.GetLanguage)
	b.add("css", css.GetLanguage)
	return b
}

func (b *TreeSitterBackend) add(lang string, grammar func() *sitter.Language) {
	b.grammars[lang] = grammar
	b.langs = append(b.langs, lang)
}

func (b *TreeSitterBackend) ID() string { return "tree-sitter" }

func (b *TreeSitterBackend) Languages() []string { return b.langs }

func (b *TreeSitterBackend) Capabilities() Capabilities {
	return Capabilities{
		HasAstKinds:              true,
		HasTokenRanges:           true,
		SupportsErrorRecovery:    true,
		SupportsIncrementalParse: true,
	}
}

// Parse builds a detached node tree. A sitter.Parser is not safe for
// concurrent use, so one is created per call.
func (b *TreeSitterBackend) Parse(in Input) (*Result, error) {
	grammar, ok := b.grammars[in.Language]
	if !ok {
		return nil, &ParseError{Parser: b.ID(), Message: fmt.Sprintf("unsupported language %q", in.Language)}
	}

	parser := sitter.NewParser()
	parser.SetLanguage(grammar())

	content := []byte(in.Content)
	tree, err := parser.ParseCtx(context.Background(), nil, content)
	if err != nil {
		return nil, &ParseError{Parser: b.ID(), Message: "parsing failed", Err: err}
	}
	root := tree.RootNode()
	if root == nil {
		return nil, &ParseError{Parser: b.ID(), Message: "empty syntax tree"}
	}

	conv := newPointConverter(in.Content)
	res := &Result{
		Language:     in.Language,
		Kind:         KindTree,
		Parser:       b.ID(),
		Text:         in.Content,
		Lines:        geom.SplitLines(in.Content),
		Capabilities: b.Capabilities(),
	}
	res.Root = b.convert(root, content, conv, res)
	return res, nil
}

// convert copies a sitter node and its subtree, collecting leaf tokens and
// diagnostics along the way.
func (b *TreeSitterBackend) convert(n *sitter.Node, content []byte, conv *pointConverter, res *Result) *Node {
	node := &Node{
		Kind:  n.Type(),
		Range: conv.rangeOf(n.StartByte(), n.EndByte()),
		Named: n.IsNamed(),
	}

	switch {
	case n.IsError():
		res.addDiagnostic(fmt.Sprintf("syntax error at %s", node.Range.Start))
	case n.IsMissing():
		res.addDiagnostic(fmt.Sprintf("missing %s at %s", n.Type(), node.Range.Start))
	}

	count := int(n.ChildCount())
	if count == 0 {
		if n.EndByte() > n.StartByte() {
			res.Tokens = append(res.Tokens, Token{
				Kind:  n.Type(),
				Text:  n.Content(content),
				Range: node.Range,
			})
		}
		return node
	}

	node.Children = make([]*Node, 0, count)
	for i := 0; i < count; i++ {
		child := n.Child(i)
		if child == nil {
			continue
		}
		node.Children = append(node.Children, b.convert(child, content, conv, res))
	}
	return node
}

func (r *Result) addDiagnostic(msg string) {
	if len(r.Diagnostics) < maxDiagnostics {
		r.Diagnostics = append(r.Diagnostics, msg)
	}
}

// pointConverter maps byte offsets reported by a backend to positions counted
// in runes.
type pointConverter struct {
	index *geom.LineIndex
	runes []int // byte offset -> rune offset; nil when the text is ASCII
	size  int
}

func newPointConverter(text string) *pointConverter {
	c := &pointConverter{index: geom.NewLineIndex(text), size: len(text)}
	if utf8.RuneCountInString(text) == len(text) {
		return c
	}
	c.runes = make([]int, len(text)+1)
	n := 0
	for i := range text {
		for j := i; j < len(text) && (j == i || !utf8.RuneStart(text[j])); j++ {
			c.runes[j] = n
		}
		n++
	}
	c.runes[len(text)] = n
	return c
}

func (c *pointConverter) position(byteOff uint32) geom.Position {
	off := int(byteOff)
	if off > c.size {
		off = c.size
	}
	if c.runes != nil {
		off = c.runes[off]
	}
	return c.index.Position(off)
}

func (c *pointConverter) rangeOf(start, end uint32) geom.Range {
	return geom.Range{Start: c.position(start), End: c.position(end)}.Clamp()
}
