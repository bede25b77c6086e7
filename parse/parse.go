// Package parse turns source text into a ParseResult using an ordered chain of
// parser backends (Tree-sitter, YAML, chroma lexers) that always ends in a
// plain-text parser.
package parse

import (
	"errors"
	"fmt"

	"semdiff/geom"
)

// Kind tells whether a result carries a syntax tree or only text.
type Kind string

const (
	KindTree Kind = "tree"
	KindText Kind = "text"
)

// Capabilities are the features a backend declares.
type Capabilities struct {
	HasAstKinds              bool `json:"hasAstKinds"`
	HasTokenRanges           bool `json:"hasTokenRanges"`
	SupportsErrorRecovery    bool `json:"supportsErrorRecovery"`
	SupportsIncrementalParse bool `json:"supportsIncrementalParse"`
}

// Input is what a backend parses.
type Input struct {
	Content  string
	Path     string // optional, used for language inference
	Language string // optional, overrides inference
}

// Node is one syntax tree node. It is a plain value tree detached from the
// backend that produced it.
type Node struct {
	Kind     string     `json:"kind"`
	Range    geom.Range `json:"range"`
	Named    bool       `json:"named,omitempty"`
	Children []*Node    `json:"children,omitempty"`
}

// Token is a leaf of the source with its range in the original text.
type Token struct {
	Kind  string     `json:"kind"`
	Text  string     `json:"text"`
	Range geom.Range `json:"range"`
}

// Result is the outcome of parsing one text.
type Result struct {
	Language     string       `json:"language"`
	Kind         Kind         `json:"kind"`
	Parser       string       `json:"parser"`
	Text         string       `json:"text"`
	Lines        []string     `json:"lines"`
	Capabilities Capabilities `json:"capabilities"`
	Root         *Node        `json:"root,omitempty"`
	Tokens       []Token      `json:"tokens,omitempty"`
	Diagnostics  []string     `json:"diagnostics,omitempty"`
}

// Walk visits n and its descendants depth-first, stopping early when fn returns false.
func (n *Node) Walk(fn func(*Node) bool) {
	if n == nil || !fn(n) {
		return
	}
	for _, c := range n.Children {
		c.Walk(fn)
	}
}

// Backend is a single parser implementation.
type Backend interface {
	ID() string
	Languages() []string
	Capabilities() Capabilities
	Parse(in Input) (*Result, error)
}

// ParseError reports that one backend could not parse the input.
type ParseError struct {
	Parser  string
	Message string
	Err     error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("%s: %s", e.Parser, e.Message)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

// ErrNoParser is returned when no backend, not even the text fallback, is available.
var ErrNoParser = errors.New("no parser available")

func newParseError(parser string, err error) *ParseError {
	var pe *ParseError
	if errors.As(err, &pe) {
		return pe
	}
	return &ParseError{Parser: parser, Message: err.Error(), Err: err}
}

func supports(b Backend, lang string) bool {
	for _, l := range b.Languages() {
		if l == lang {
			return true
		}
	}
	return false
}
