// Package world implements the file walker, content-hash oracle, and
// per-language symbol extractor that feed the symbol graph.
package world

// SymbolKind tags the variant a Symbol record carries.
type SymbolKind string

const (
	KindFunction  SymbolKind = "function"
	KindClass     SymbolKind = "class"
	KindVariable  SymbolKind = "variable"
	KindImport    SymbolKind = "import"
	KindDecorator SymbolKind = "decorator"
	KindComment   SymbolKind = "comment"
	KindAssignment SymbolKind = "assignment"
	KindAnnotation SymbolKind = "annotation"
)

// Symbol is the uniform record the extractor emits for every construct it
// recognizes, regardless of source language. Line spans are 1-based and
// inclusive of both endpoints.
type Symbol struct {
	Kind       SymbolKind `json:"kind"`
	Name       string     `json:"name"`
	File       string     `json:"file"`
	StartLine  int        `json:"start_line"`
	EndLine    int        `json:"end_line"`
	Signature  []string   `json:"signature,omitempty"`   // ordered parameter names, functions only
	Docstring  string     `json:"docstring,omitempty"`
	Parent     string     `json:"parent,omitempty"`       // enclosing class/struct name
	IsAsync    bool       `json:"is_async,omitempty"`
	IsExported bool       `json:"is_exported"`
}

// UsageKind classifies a single occurrence of a symbol name.
type UsageKind string

const (
	UsageDefinition UsageKind = "definition"
	UsageCall       UsageKind = "call"
	UsageReference  UsageKind = "reference"
	UsageAttribute  UsageKind = "attribute"
	UsageImport     UsageKind = "import"
)

// Usage is a single occurrence of a symbol name somewhere in the repository.
type Usage struct {
	Symbol string    `json:"symbol"`
	File   string    `json:"file"`
	Line   int       `json:"line"`
	Kind   UsageKind `json:"kind"`
}

// ParseError marks a recoverable, per-file extraction fault. It never causes
// the extractor to omit the file entirely — it is carried alongside whatever
// symbols were recovered before the fault.
type ParseError struct {
	Line    int    `json:"line"`
	Column  int    `json:"column"`
	Message string `json:"message"`
}
