package parse

import (
	"errors"
	"io"
	"strings"
	"unicode/utf8"

	"gopkg.in/yaml.v3"

	"semdiff/geom"
)

// YAMLBackend parses YAML and JSON documents into node trees with yaml.v3.
type YAMLBackend struct{}

func (YAMLBackend) ID() string { return "yaml" }

func (YAMLBackend) Languages() []string { return []string{"yaml", "json"} }

func (YAMLBackend) Capabilities() Capabilities {
	return Capabilities{HasAstKinds: true}
}

// Parse decodes every document in the stream. Syntax errors fail the parse;
// yaml.v3 does not recover.
func (b YAMLBackend) Parse(in Input) (*Result, error) {
	dec := yaml.NewDecoder(strings.NewReader(in.Content))
	root := &Node{Kind: "stream", Range: geom.RangeForText(in.Content), Named: true}
	for {
		var doc yaml.Node
		err := dec.Decode(&doc)
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, &ParseError{Parser: b.ID(), Message: err.Error(), Err: err}
		}
		root.Children = append(root.Children, convertYAML(&doc))
	}

	return &Result{
		Language:     in.Language,
		Kind:         KindTree,
		Parser:       b.ID(),
		Text:         in.Content,
		Lines:        geom.SplitLines(in.Content),
		Capabilities: b.Capabilities(),
		Root:         root,
	}, nil
}

func yamlKind(n *yaml.Node) string {
	switch n.Kind {
	case yaml.DocumentNode:
		return "document"
	case yaml.SequenceNode:
		return "sequence"
	case yaml.MappingNode:
		return "mapping"
	case yaml.ScalarNode:
		return "scalar"
	case yaml.AliasNode:
		return "alias"
	default:
		return "unknown"
	}
}

// convertYAML copies a yaml.Node. yaml.v3 records only start marks, so a
// scalar ends after its value on the same line and a collection ends where its
// last child ends.
func convertYAML(n *yaml.Node) *Node {
	start := geom.Position{Line: n.Line, Column: n.Column}
	node := &Node{Kind: yamlKind(n), Named: true}

	for _, c := range n.Content {
		node.Children = append(node.Children, convertYAML(c))
	}

	end := start
	switch {
	case len(node.Children) > 0:
		end = node.Children[len(node.Children)-1].Range.End
	case n.Kind == yaml.ScalarNode && !strings.Contains(n.Value, "\n"):
		width := utf8.RuneCountInString(n.Value)
		if n.Style&(yaml.DoubleQuotedStyle|yaml.SingleQuotedStyle) != 0 {
			width += 2
		}
		end.Column += width
	}
	node.Range = geom.Range{Start: start, End: end}.Clamp()
	return node
}
