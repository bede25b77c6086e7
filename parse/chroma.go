package parse

import (
	"fmt"
	"strings"
	"unicode/utf8"

	chromalib "github.com/alecthomas/chroma/v2"
	"github.com/alecthomas/chroma/v2/lexers"

	"semdiff/geom"
)

// chromaLexers maps language ids to chroma lexer names.
var chromaLexers = []struct {
	lang  string
	lexer string
}{
	{"rust", "rust"},
	{"java", "java"},
	{"kotlin", "kotlin"},
	{"swift", "swift"},
	{"c", "c"},
	{"cpp", "c++"},
	{"ruby", "ruby"},
	{"php", "php"},
	{"sh", "bash"},
	{"sql", "sql"},
	{"markdown", "markdown"},
	{"toml", "toml"},
	{"json", "json"},
	{"yaml", "yaml"},
	{"css", "css"},
	{"scss", "scss"},
	{"makefile", "makefile"},
}

// ChromaBackend tokenizes with chroma lexers. It reports token ranges but no
// syntax tree.
type ChromaBackend struct{}

func (ChromaBackend) ID() string { return "chroma" }

func (ChromaBackend) Languages() []string {
	langs := make([]string, len(chromaLexers))
	for i, l := range chromaLexers {
		langs[i] = l.lang
	}
	return langs
}

func (ChromaBackend) Capabilities() Capabilities {
	return Capabilities{HasTokenRanges: true, SupportsErrorRecovery: true}
}

func (b ChromaBackend) Parse(in Input) (*Result, error) {
	name := ""
	for _, l := range chromaLexers {
		if l.lang == in.Language {
			name = l.lexer
			break
		}
	}
	lexer := lexers.Get(name)
	if name == "" || lexer == nil {
		return nil, &ParseError{Parser: b.ID(), Message: fmt.Sprintf("no lexer for %q", in.Language)}
	}
	lexer = chromalib.Coalesce(lexer)

	iterator, err := lexer.Tokenise(nil, in.Content)
	if err != nil {
		return nil, &ParseError{Parser: b.ID(), Message: "tokenizing failed", Err: err}
	}

	// token streams are not trees, so the result stays KindText
	res := &Result{
		Language:     in.Language,
		Kind:         KindText,
		Parser:       b.ID(),
		Text:         in.Content,
		Lines:        geom.SplitLines(in.Content),
		Capabilities: b.Capabilities(),
	}

	idx := geom.NewLineIndex(in.Content)
	offset := 0
	for token := iterator(); token != chromalib.EOF; token = iterator() {
		start := offset
		offset += utf8.RuneCountInString(token.Value)
		// some lexers append a newline the input does not have
		if start >= idx.Len() {
			break
		}
		if token.Type == chromalib.Error {
			res.addDiagnostic(fmt.Sprintf("unexpected %q at %s", token.Value, idx.Position(start)))
		}
		if strings.TrimSpace(token.Value) == "" {
			continue
		}
		res.Tokens = append(res.Tokens, Token{
			Kind:  token.Type.String(),
			Text:  token.Value,
			Range: geom.Range{Start: idx.Position(start), End: idx.Position(offset)},
		})
	}
	return res, nil
}
