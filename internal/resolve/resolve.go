// Package resolve implements the tiered path resolver (C5): user-supplied
// filenames are resolved to repository-relative tracked paths.
package resolve

import (
	"path/filepath"
	"strings"

	"github.com/qasimio/Operon/internal/graph"
)

// Result is the outcome of a resolution attempt.
type Result struct {
	Path  string
	Found bool
}

// Resolve attempts, in order: exact match, case-insensitive exact match,
// recursive basename match (ties by shortest path), fuzzy stem match (ties
// by longest common prefix), and symbol lookup. If no tier hits, the input
// is returned unchanged with Found=false so callers may choose to create it.
func Resolve(g *graph.Graph, input string) Result {
	tracked := g.TrackedPaths()
	input = filepath.ToSlash(input)

	for _, p := range tracked {
		if p == input {
			return Result{Path: p, Found: true}
		}
	}

	lowerInput := strings.ToLower(input)
	for _, p := range tracked {
		if strings.ToLower(p) == lowerInput {
			return Result{Path: p, Found: true}
		}
	}

	target := filepath.Base(input)
	var basenameMatches []string
	for _, p := range tracked {
		if filepath.Base(p) == target {
			basenameMatches = append(basenameMatches, p)
		}
	}
	if len(basenameMatches) > 0 {
		best := basenameMatches[0]
		for _, p := range basenameMatches[1:] {
			if len(p) < len(best) {
				best = p
			}
		}
		return Result{Path: best, Found: true}
	}

	stem := stemOf(input)
	var fuzzyMatches []string
	for _, p := range tracked {
		if strings.Contains(stemOf(p), stem) || strings.Contains(stem, stemOf(p)) {
			fuzzyMatches = append(fuzzyMatches, p)
		}
	}
	if len(fuzzyMatches) > 0 {
		best := fuzzyMatches[0]
		bestLCP := commonPrefixLen(stemOf(best), stem)
		for _, p := range fuzzyMatches[1:] {
			lcp := commonPrefixLen(stemOf(p), stem)
			if lcp > bestLCP {
				best = p
				bestLCP = lcp
			}
		}
		return Result{Path: best, Found: true}
	}

	if file, ok := g.DefiningFile(input); ok {
		return Result{Path: file, Found: true}
	}

	return Result{Path: input, Found: false}
}

func stemOf(path string) string {
	base := filepath.Base(path)
	ext := filepath.Ext(base)
	return strings.ToLower(strings.TrimSuffix(base, ext))
}

func commonPrefixLen(a, b string) int {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	i := 0
	for i < n && a[i] == b[i] {
		i++
	}
	return i
}
