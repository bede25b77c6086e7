package parse

import "semdiff/geom"

// TextBackend is the universal fallback. It accepts any input and reports no
// capabilities.
type TextBackend struct{}

func (TextBackend) ID() string { return "text" }

// Languages is empty: the text backend is never selected by language, only as
// the end of the chain.
func (TextBackend) Languages() []string { return nil }

func (TextBackend) Capabilities() Capabilities { return Capabilities{} }

func (TextBackend) Parse(in Input) (*Result, error) {
	return textResult(in.Language, in.Content), nil
}

func textResult(lang, content string) *Result {
	return &Result{
		Language: lang,
		Kind:     KindText,
		Parser:   "text",
		Text:     content,
		Lines:    geom.SplitLines(content),
	}
}
