// Package chunk extracts and ranks source chunks for context retrieval (C4),
// and assembles a bounded-size context string for a query (C12).
package chunk

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"github.com/qasimio/Operon/internal/graph"
	"github.com/qasimio/Operon/internal/world"
)

// Chunk is a derived, never-persisted view of a symbol's source span.
type Chunk struct {
	File      string
	Symbol    string
	Kind      world.SymbolKind
	Start     int
	End       int
	Source    string
	Docstring string
	Score     float64
}

var identSplit = regexp.MustCompile(`[^A-Za-z0-9_]+`)

func tokenize(s string) map[string]bool {
	toks := make(map[string]bool)
	for _, t := range identSplit.Split(strings.ToLower(s), -1) {
		if t != "" {
			toks[t] = true
		}
	}
	return toks
}

// Extract returns the chunk for a given file and symbol name. For the
// primary language the stored symbol span is used verbatim; for any other
// language, ±20 lines of context around the first line-match of the name is
// returned.
func Extract(repoRoot string, g *graph.Graph, file, symbolName string) (*Chunk, error) {
	content, err := os.ReadFile(filepath.Join(repoRoot, file))
	if err != nil {
		return nil, err
	}
	lines := strings.Split(string(content), "\n")

	symbols := g.SymbolsInFile(file)
	if world.DetectLanguage(filepath.Ext(file), file) != "go" {
		symbols = nil
	}
	for _, s := range symbols {
		if s.Name == symbolName {
			start, end := clamp(s.StartLine, s.EndLine, len(lines))
			return &Chunk{
				File: file, Symbol: s.Name, Kind: s.Kind,
				Start: start, End: end,
				Source:    strings.Join(lines[start-1:end], "\n"),
				Docstring: s.Docstring,
			}, nil
		}
	}

	for i, line := range lines {
		if strings.Contains(line, symbolName) {
			start, end := clamp(i+1-20, i+1+20, len(lines))
			return &Chunk{
				File: file, Symbol: symbolName, Kind: world.KindVariable,
				Start: start, End: end,
				Source: strings.Join(lines[start-1:end], "\n"),
			}, nil
		}
	}
	return nil, fmt.Errorf("symbol %q not found in %s", symbolName, file)
}

func clamp(start, end, max int) (int, int) {
	if start < 1 {
		start = 1
	}
	if end > max {
		end = max
	}
	if end < start {
		end = start
	}
	return start, end
}

var kindPriority = map[world.SymbolKind]int{
	world.KindFunction: 0,
	world.KindClass:    1,
	world.KindVariable: 2,
}

// Rank scores every chunk against query by Jaccard token overlap between the
// query's tokens and tokens drawn from the chunk's symbol name, docstring,
// and the first 200 characters of its source. Ties break by kind priority
// (function > class > variable > everything else), then by smaller span,
// then by lexical file order.
func Rank(query string, chunks []*Chunk) []*Chunk {
	q := tokenize(query)
	for _, c := range chunks {
		n := 200
		if len(c.Source) < n {
			n = len(c.Source)
		}
		t := tokenize(c.Symbol + " " + c.Docstring + " " + c.Source[:n])
		c.Score = jaccard(q, t)
	}

	sort.SliceStable(chunks, func(i, j int) bool {
		a, b := chunks[i], chunks[j]
		if a.Score != b.Score {
			return a.Score > b.Score
		}
		pa, pb := kindPriorityOf(a.Kind), kindPriorityOf(b.Kind)
		if pa != pb {
			return pa < pb
		}
		spanA, spanB := a.End-a.Start, b.End-b.Start
		if spanA != spanB {
			return spanA < spanB
		}
		return a.File < b.File
	})
	return chunks
}

func kindPriorityOf(k world.SymbolKind) int {
	if p, ok := kindPriority[k]; ok {
		return p
	}
	return 99
}

func jaccard(a, b map[string]bool) float64 {
	if len(a) == 0 && len(b) == 0 {
		return 0
	}
	inter := 0
	union := make(map[string]bool, len(a)+len(b))
	for t := range a {
		union[t] = true
		if b[t] {
			inter++
		}
	}
	for t := range b {
		union[t] = true
	}
	if len(union) == 0 {
		return 0
	}
	return float64(inter) / float64(len(union))
}

// AssembleContext greedily fills a character budget with ranked chunks in
// descending score order. Each chunk is prefixed by a locator header; a
// chunk that would not fit entirely is dropped whole, never split.
func AssembleContext(query string, chunks []*Chunk, budget int) string {
	ranked := Rank(query, chunks)
	var b strings.Builder
	for _, c := range ranked {
		header := fmt.Sprintf("%s:%d-%d (%s %s)\n", c.File, c.Start, c.End, c.Kind, c.Symbol)
		block := header + c.Source + "\n\n"
		if b.Len()+len(block) > budget {
			continue
		}
		b.WriteString(block)
	}
	return b.String()
}
