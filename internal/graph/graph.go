// Package graph implements the persistent, incremental, content-addressed
// symbol graph: per-file symbol records plus a cross-file usage index.
package graph

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/qasimio/Operon/internal/obslog"
	"github.com/qasimio/Operon/internal/world"
)

// SchemaVersion is bumped whenever the on-disk document shape changes
// incompatibly; a mismatch at Load triggers a full rebuild.
const SchemaVersion = 1

// FileRecord is the persisted per-file entry of the graph.
type FileRecord struct {
	Path     string        `json:"path"`
	Hash     string        `json:"hash"`
	Language string        `json:"language"`
	ModTime  int64         `json:"mod_time"`
	Symbols  []world.Symbol `json:"symbols"`
	Usages   []world.Usage  `json:"usages"`
}

// Graph is the in-memory, and on-disk (via Persist), symbol graph document.
type Graph struct {
	mu            sync.RWMutex
	SchemaVersion int                   `json:"schema_version"`
	Files         map[string]FileRecord `json:"files"`
	// CrossRef maps a symbol name to its ordered list of usage sites,
	// spanning every file in Files.
	CrossRef map[string][]world.Usage `json:"cross_ref"`

	repoRoot string
	registry *world.Registry
}

// New constructs an empty graph shell at the current schema version.
func New(repoRoot string) *Graph {
	return &Graph{
		SchemaVersion: SchemaVersion,
		Files:         make(map[string]FileRecord),
		CrossRef:      make(map[string][]world.Usage),
		repoRoot:      repoRoot,
		registry:      world.NewRegistry(),
	}
}

func graphPath(repoRoot string) string {
	return filepath.Join(repoRoot, ".operon", "symbol_graph.json")
}

// Load returns the persisted graph for repoRoot, or a fresh empty shell if
// none exists or the schema version on disk does not match.
func Load(repoRoot string) (*Graph, error) {
	g := New(repoRoot)
	data, err := os.ReadFile(graphPath(repoRoot))
	if err != nil {
		return g, nil
	}

	var onDisk struct {
		SchemaVersion int                       `json:"schema_version"`
		Files         map[string]FileRecord     `json:"files"`
		CrossRef      map[string][]world.Usage `json:"cross_ref"`
	}
	if err := json.Unmarshal(data, &onDisk); err != nil {
		obslog.Get(obslog.CategoryGraph).Warnf("corrupt symbol graph, starting fresh: %v", err)
		return g, nil
	}
	if onDisk.SchemaVersion != SchemaVersion {
		obslog.Get(obslog.CategoryGraph).Infof("schema mismatch (%d != %d), rebuilding", onDisk.SchemaVersion, SchemaVersion)
		return g, nil
	}
	if onDisk.Files != nil {
		g.Files = onDisk.Files
	}
	if onDisk.CrossRef != nil {
		g.CrossRef = onDisk.CrossRef
	}
	return g, nil
}

// Persist atomically writes the graph to <repo>/.operon/symbol_graph.json.
// On any I/O failure the previous on-disk document is left untouched.
func (g *Graph) Persist() error {
	g.mu.RLock()
	defer g.mu.RUnlock()

	path := graphPath(g.repoRoot)
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("create .operon dir: %w", err)
	}

	data, err := json.MarshalIndent(struct {
		SchemaVersion int                       `json:"schema_version"`
		Files         map[string]FileRecord     `json:"files"`
		CrossRef      map[string][]world.Usage `json:"cross_ref"`
	}{g.SchemaVersion, g.Files, g.CrossRef}, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal graph: %w", err)
	}

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return fmt.Errorf("write temp graph: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("rename temp graph: %w", err)
	}
	return nil
}

// Build walks repoRoot (C1), re-extracting symbols (C2) for every file whose
// hash differs from the stored hash when incremental is true; when
// incremental is false every tracked file is re-extracted regardless of its
// stored hash. Records for vanished files are deleted. The graph is
// persisted atomically on success.
func (g *Graph) Build(ctx context.Context, incremental bool) error {
	cache := world.NewFileCache(g.repoRoot)
	walker := world.NewWalker()
	result, err := walker.Walk(ctx, g.repoRoot, cache)
	if err != nil {
		return fmt.Errorf("walk: %w", err)
	}
	if err := cache.Save(); err != nil {
		obslog.Get(obslog.CategoryGraph).Warnf("failed to save file cache: %v", err)
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	seen := make(map[string]bool, len(result.Files))
	contents := make(map[string][]byte)
	for _, fi := range result.Files {
		seen[fi.Path] = true
		existing, hadRecord := g.Files[fi.Path]

		if incremental && hadRecord && existing.Hash == fi.Hash {
			continue
		}
		if fi.IsTest {
			// Test files are tracked (for path resolution) but not
			// symbol-extracted, matching the teacher's own scan behavior.
			g.Files[fi.Path] = FileRecord{Path: fi.Path, Hash: fi.Hash, Language: fi.Language, ModTime: fi.ModTime.Unix()}
			continue
		}

		content, readErr := os.ReadFile(filepath.Join(g.repoRoot, fi.Path))
		if readErr != nil {
			obslog.Get(obslog.CategoryGraph).Warnf("read failed for %s: %v", fi.Path, readErr)
			continue
		}

		extractor := g.registry.For(fi.Language)
		symbols, parseErr := extractor.Parse(fi.Path, content)
		if parseErr != nil {
			obslog.Get(obslog.CategoryGraph).Warnf("parse_error in %s: %s", fi.Path, parseErr.Message)
		}

		g.Files[fi.Path] = FileRecord{
			Path:     fi.Path,
			Hash:     fi.Hash,
			Language: fi.Language,
			ModTime:  fi.ModTime.Unix(),
			Symbols:  symbols,
		}
		contents[fi.Path] = content
	}

	// Delete records for vanished files.
	for path := range g.Files {
		if !seen[path] {
			delete(g.Files, path)
		}
	}

	known := make(map[string]bool)
	for _, rec := range g.Files {
		for _, s := range rec.Symbols {
			known[s.Name] = true
		}
	}
	for path, content := range contents {
		rec := g.Files[path]
		rec.Usages = usagesFromSymbols(path, rec.Symbols, known, content)
		g.Files[path] = rec
	}

	g.rebuildCrossRefLocked()
	return g.Persist()
}

// usagesFromSymbols emits one "definition" (or "import") usage per symbol of
// the file, plus a best-effort usage for every other line in the file that
// contains a name from known as a substring ("call" when the name is
// directly followed by "(", "reference" otherwise). known holds every symbol
// name in the graph, so references to names defined in other files are
// recorded too — a lightweight stand-in for a full reference resolver.
func usagesFromSymbols(path string, symbols []world.Symbol, known map[string]bool, content []byte) []world.Usage {
	var usages []world.Usage
	for _, s := range symbols {
		kind := world.UsageDefinition
		if s.Kind == world.KindImport {
			kind = world.UsageImport
		}
		usages = append(usages, world.Usage{Symbol: s.Name, File: path, Line: s.StartLine, Kind: kind})
	}

	lines := strings.Split(string(content), "\n")
	for i, line := range lines {
		lineNo := i + 1
		for name := range known {
			if name == "" {
				continue
			}
			if strings.Contains(line, name) && !isDefinitionLine(usages, path, lineNo, name) {
				kind := world.UsageReference
				if strings.Contains(line, name+"(") {
					kind = world.UsageCall
				}
				usages = append(usages, world.Usage{Symbol: name, File: path, Line: lineNo, Kind: kind})
			}
		}
	}
	return usages
}

func isDefinitionLine(usages []world.Usage, path string, line int, name string) bool {
	for _, u := range usages {
		if u.File == path && u.Line == line && u.Symbol == name && u.Kind == world.UsageDefinition {
			return true
		}
	}
	return false
}

func (g *Graph) rebuildCrossRefLocked() {
	g.CrossRef = make(map[string][]world.Usage)
	var paths []string
	for p := range g.Files {
		paths = append(paths, p)
	}
	sort.Strings(paths)
	for _, p := range paths {
		for _, u := range g.Files[p].Usages {
			g.CrossRef[u.Symbol] = append(g.CrossRef[u.Symbol], u)
		}
	}
}

// Query returns every usage site recorded for name, regardless of kind.
func (g *Graph) Query(name string) []world.Usage {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return append([]world.Usage(nil), g.CrossRef[name]...)
}

// FindDefinitions returns only the "definition" usage sites for name.
func (g *Graph) FindDefinitions(name string) []world.Usage {
	return filterByKind(g.Query(name), world.UsageDefinition)
}

// FindUsages returns every usage site for name that is not a definition.
func (g *Graph) FindUsages(name string) []world.Usage {
	g.mu.RLock()
	defer g.mu.RUnlock()
	var out []world.Usage
	for _, u := range g.CrossRef[name] {
		if u.Kind != world.UsageDefinition {
			out = append(out, u)
		}
	}
	return out
}

func filterByKind(usages []world.Usage, kind world.UsageKind) []world.Usage {
	var out []world.Usage
	for _, u := range usages {
		if u.Kind == kind {
			out = append(out, u)
		}
	}
	return out
}

// SymbolsInFile returns the symbol records for a tracked repository-relative
// path.
func (g *Graph) SymbolsInFile(path string) []world.Symbol {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return append([]world.Symbol(nil), g.Files[path].Symbols...)
}

// UsagesInFile returns every usage recorded within a tracked file, in the
// order the extractor produced them — used to find call sites lexically
// enclosed by a particular function's line span.
func (g *Graph) UsagesInFile(path string) []world.Usage {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return append([]world.Usage(nil), g.Files[path].Usages...)
}

// SearchByPrefix performs a case-insensitive prefix search across every
// known symbol name.
func (g *Graph) SearchByPrefix(prefix string) []string {
	g.mu.RLock()
	defer g.mu.RUnlock()

	prefix = strings.ToLower(prefix)
	seen := map[string]bool{}
	var out []string
	for name := range g.CrossRef {
		if strings.HasPrefix(strings.ToLower(name), prefix) && !seen[name] {
			seen[name] = true
			out = append(out, name)
		}
	}
	sort.Strings(out)
	return out
}

// DefiningFile returns the file that defines name, if any — used by the
// path resolver's symbol-lookup tier.
func (g *Graph) DefiningFile(name string) (string, bool) {
	defs := g.FindDefinitions(name)
	if len(defs) == 0 {
		return "", false
	}
	return defs[0].File, true
}

// TrackedPaths returns every repository-relative path currently in the
// graph's file map — used by the path resolver's exact/basename/fuzzy
// tiers.
func (g *Graph) TrackedPaths() []string {
	g.mu.RLock()
	defer g.mu.RUnlock()
	out := make([]string, 0, len(g.Files))
	for p := range g.Files {
		out = append(out, p)
	}
	sort.Strings(out)
	return out
}

// VerifyInvariant checks that every file referenced from the cross-ref index
// appears in the file map. The reverse direction is not checked: tracked
// files with no usages (test files, files without symbols) have no
// cross-ref entries.
func (g *Graph) VerifyInvariant() error {
	g.mu.RLock()
	defer g.mu.RUnlock()
	for name, usages := range g.CrossRef {
		for _, u := range usages {
			if _, ok := g.Files[u.File]; !ok {
				return fmt.Errorf("cross-ref %q references untracked file %q", name, u.File)
			}
		}
	}
	return nil
}
