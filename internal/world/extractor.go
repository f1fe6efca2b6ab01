package world

// SyntaxResult is the outcome of a primary-language syntax check.
type SyntaxResult struct {
	OK      bool
	Line    int
	Column  int
	Message string
}

// Extractor parses a source buffer into the uniform Symbol record set.
// Implementations must be deterministic given identical input, must never
// panic, and must signal an unrecoverable parse fault only via an in-record
// ParseError, never by silently omitting the file.
type Extractor interface {
	// Language returns the language tag this extractor handles.
	Language() string

	// Parse extracts symbols from content. A non-nil ParseError may be
	// returned alongside a partial (possibly empty) symbol list.
	Parse(path string, content []byte) ([]Symbol, *ParseError)

	// CheckSyntax reports whether content is syntactically valid. Secondary
	// (regex-based) extractors always report ok=true ("looks ok").
	CheckSyntax(content []byte) SyntaxResult
}

// Registry dispatches to the right Extractor for a detected language,
// falling back to a generic regex extractor for anything it doesn't have a
// dedicated implementation for.
type Registry struct {
	primary    Extractor
	byLanguage map[string]Extractor
	fallback   Extractor
}

// NewRegistry builds the default registry: an authoritative Go extractor as
// primary language, and one regex extractor shared by every other language.
func NewRegistry() *Registry {
	fallback := NewRegexExtractor("")
	return &Registry{
		primary: NewGoExtractor(),
		byLanguage: map[string]Extractor{
			"go": NewGoExtractor(),
		},
		fallback: fallback,
	}
}

// For returns the extractor to use for a given language tag.
func (r *Registry) For(language string) Extractor {
	if e, ok := r.byLanguage[language]; ok {
		return e
	}
	return r.fallback
}

// Primary returns the authoritative-syntax-tree extractor (Go).
func (r *Registry) Primary() Extractor {
	return r.primary
}
