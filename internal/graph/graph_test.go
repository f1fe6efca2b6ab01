package graph

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, root, rel, content string) {
	t.Helper()
	path := filepath.Join(root, rel)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
}

func TestBuild_IndexesGoFileSymbols(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "main.go", "package main\n\nfunc Greet(name string) string {\n\treturn \"hi \" + name\n}\n")

	g := New(root)
	require.NoError(t, g.Build(context.Background(), true))

	paths := g.TrackedPaths()
	assert.Contains(t, paths, "main.go")

	symbols := g.SymbolsInFile("main.go")
	require.NotEmpty(t, symbols)
	found := false
	for _, s := range symbols {
		if s.Name == "Greet" {
			found = true
		}
	}
	assert.True(t, found)
}

func TestBuild_IncrementalSkipsUnchangedFiles(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "a.go", "package main\n\nfunc A() {}\n")

	g := New(root)
	require.NoError(t, g.Build(context.Background(), true))
	first := g.Files["a.go"].Hash

	require.NoError(t, g.Build(context.Background(), true))
	second := g.Files["a.go"].Hash
	assert.Equal(t, first, second)
}

func TestBuild_DeletesVanishedFileRecords(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "gone.go", "package main\n\nfunc Gone() {}\n")

	g := New(root)
	require.NoError(t, g.Build(context.Background(), true))
	require.Contains(t, g.TrackedPaths(), "gone.go")

	require.NoError(t, os.Remove(filepath.Join(root, "gone.go")))
	require.NoError(t, g.Build(context.Background(), true))
	assert.NotContains(t, g.TrackedPaths(), "gone.go")
}

func TestPersistAndLoad_RoundTrips(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "main.go", "package main\n\nfunc Hello() {}\n")

	g := New(root)
	require.NoError(t, g.Build(context.Background(), true))

	loaded, err := Load(root)
	require.NoError(t, err)
	assert.Equal(t, g.TrackedPaths(), loaded.TrackedPaths())
}

func TestQuery_FindsUsagesAcrossFiles(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "lib.go", "package main\n\nfunc Helper() int {\n\treturn 1\n}\n")
	writeFile(t, root, "main.go", "package main\n\nfunc main() {\n\tHelper()\n}\n")

	g := New(root)
	require.NoError(t, g.Build(context.Background(), true))

	usages := g.Query("Helper")
	assert.GreaterOrEqual(t, len(usages), 2)
}
