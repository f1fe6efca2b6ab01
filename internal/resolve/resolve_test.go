package resolve

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/qasimio/Operon/internal/graph"
)

func buildGraph(t *testing.T, files map[string]string) *graph.Graph {
	t.Helper()
	root := t.TempDir()
	for rel, content := range files {
		path := filepath.Join(root, rel)
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
		require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	}
	g := graph.New(root)
	require.NoError(t, g.Build(context.Background(), true))
	return g
}

func TestResolve_ExactMatch(t *testing.T) {
	g := buildGraph(t, map[string]string{"pkg/main.go": "package pkg\n"})
	res := Resolve(g, "pkg/main.go")
	assert.True(t, res.Found)
	assert.Equal(t, "pkg/main.go", res.Path)
}

func TestResolve_BasenameMatch(t *testing.T) {
	g := buildGraph(t, map[string]string{"internal/deep/handler.go": "package deep\n"})
	res := Resolve(g, "handler.go")
	assert.True(t, res.Found)
	assert.Equal(t, "internal/deep/handler.go", res.Path)
}

func TestResolve_CaseInsensitiveMatch(t *testing.T) {
	g := buildGraph(t, map[string]string{"main.go": "package main\n"})
	res := Resolve(g, "MAIN.GO")
	assert.True(t, res.Found)
	assert.Equal(t, "main.go", res.Path)
}

func TestResolve_UnfoundReturnsInputUnchanged(t *testing.T) {
	g := buildGraph(t, map[string]string{"main.go": "package main\n"})
	res := Resolve(g, "nonexistent.go")
	assert.False(t, res.Found)
	assert.Equal(t, "nonexistent.go", res.Path)
}

func TestResolve_BasenameTieBreaksByShortestPath(t *testing.T) {
	g := buildGraph(t, map[string]string{
		"a/deep/nested/handler.go": "package nested\n",
		"b/handler.go":             "package b\n",
	})
	res := Resolve(g, "handler.go")
	assert.True(t, res.Found)
	assert.Equal(t, "b/handler.go", res.Path)
}
