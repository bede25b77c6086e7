package parse

import (
	"io"
	"log/slog"

	"semdiff/langmatch"
)

// BackendInfo describes a registered backend for diagnostic surfaces.
type BackendInfo struct {
	ID           string       `json:"id"`
	Languages    []string     `json:"languages"`
	Capabilities Capabilities `json:"capabilities"`
}

// Registry selects and runs backends in priority order, falling back to the
// text backend. A Registry is immutable after construction and safe for
// concurrent use.
type Registry struct {
	backends []Backend
	fallback Backend
	rules    *langmatch.Matcher
	logger   *slog.Logger
}

// Option configures a Registry.
type Option func(*Registry)

// WithBackends replaces the default backend chain. The text fallback is kept.
func WithBackends(backends ...Backend) Option {
	return func(r *Registry) {
		r.backends = append([]Backend(nil), backends...)
	}
}

// WithFallback replaces the final fallback backend. Passing nil removes it,
// which makes Parse fail with ErrNoParser when every backend fails.
func WithFallback(b Backend) Option {
	return func(r *Registry) {
		r.fallback = b
	}
}

// WithLanguageRules sets the path rules used for language inference.
func WithLanguageRules(m *langmatch.Matcher) Option {
	return func(r *Registry) {
		r.rules = m
	}
}

// WithLogger sets the logger for fallback events.
func WithLogger(l *slog.Logger) Option {
	return func(r *Registry) {
		r.logger = l
	}
}

// NewRegistry creates a registry with the Tree-sitter, YAML and chroma
// backends, in that order, followed by the text fallback.
func NewRegistry(opts ...Option) *Registry {
	r := &Registry{
		backends: []Backend{NewTreeSitterBackend(), YAMLBackend{}, ChromaBackend{}},
		fallback: TextBackend{},
		rules:    langmatch.Default(),
		logger:   slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Backends lists the registered backends, fallback last.
func (r *Registry) Backends() []BackendInfo {
	all := r.backends
	if r.fallback != nil {
		all = append(append([]Backend(nil), r.backends...), r.fallback)
	}
	infos := make([]BackendInfo, 0, len(all))
	for _, b := range all {
		infos = append(infos, BackendInfo{
			ID:           b.ID(),
			Languages:    b.Languages(),
			Capabilities: b.Capabilities(),
		})
	}
	return infos
}

// Language resolves the language for an input without parsing it.
func (r *Registry) Language(in Input) string {
	if in.Language != "" {
		return in.Language
	}
	return DetectLanguage(r.rules, in.Path, in.Content)
}

// Candidates returns the backends that declare lang, in registration order.
func (r *Registry) Candidates(lang string) []Backend {
	var out []Backend
	if lang == "" {
		return out
	}
	for _, b := range r.backends {
		if supports(b, lang) {
			out = append(out, b)
		}
	}
	return out
}

// Parse runs the candidate backends for the input's language until one
// succeeds. Backend failures are logged and skipped; the text fallback ends
// the chain. The only error is ErrNoParser, when the registry was built
// without a fallback and every candidate failed.
func (r *Registry) Parse(in Input) (*Result, error) {
	in.Language = r.Language(in)

	for _, b := range r.Candidates(in.Language) {
		res, err := r.try(b, in)
		if err != nil {
			r.logger.Debug("parser backend failed, trying next",
				"parser", err.Parser, "language", in.Language, "error", err.Message)
			continue
		}
		return res, nil
	}

	if r.fallback == nil {
		return nil, ErrNoParser
	}
	res, err := r.try(r.fallback, in)
	if err != nil {
		r.logger.Debug("fallback parser failed", "parser", err.Parser, "error", err.Message)
		return textResult(in.Language, in.Content), nil
	}
	return res, nil
}

// try runs one backend, converting errors and panics into a ParseError.
func (r *Registry) try(b Backend, in Input) (res *Result, perr *ParseError) {
	defer func() {
		if p := recover(); p != nil {
			res = nil
			perr = &ParseError{Parser: b.ID(), Message: "backend panicked", Err: panicError{p}}
		}
	}()

	res, err := b.Parse(in)
	if err != nil {
		return nil, newParseError(b.ID(), err)
	}
	if res == nil {
		return nil, &ParseError{Parser: b.ID(), Message: "backend returned no result"}
	}
	if res.Kind != KindTree && res.Kind != KindText {
		res.Kind = KindText
	}
	if res.Language == "" {
		res.Language = in.Language
	}
	return res, nil
}

type panicError struct {
	value any
}

func (e panicError) Error() string {
	return "panic: " + slog.AnyValue(e.value).String()
}
