package chunk

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/qasimio/Operon/internal/graph"
)

func TestExtract_UsesStoredSymbolSpan(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, "main.go"),
		[]byte("package main\n\nfunc Greet(name string) string {\n\treturn \"hi \" + name\n}\n"), 0644))

	g := graph.New(root)
	require.NoError(t, g.Build(context.Background(), true))

	c, err := Extract(root, g, "main.go", "Greet")
	require.NoError(t, err)
	assert.Equal(t, "Greet", c.Symbol)
	assert.Contains(t, c.Source, "func Greet")
}

func TestExtract_UnknownSymbolErrors(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, "main.go"), []byte("package main\n"), 0644))

	g := graph.New(root)
	require.NoError(t, g.Build(context.Background(), true))

	_, err := Extract(root, g, "main.go", "Nonexistent")
	assert.Error(t, err)
}

func TestRank_PrefersHigherTokenOverlap(t *testing.T) {
	chunks := []*Chunk{
		{File: "a.go", Symbol: "UnrelatedThing", Source: "func UnrelatedThing() {}"},
		{File: "b.go", Symbol: "ParseConfig", Source: "func ParseConfig() {}", Docstring: "parses configuration"},
	}
	ranked := Rank("parse configuration", chunks)
	assert.Equal(t, "ParseConfig", ranked[0].Symbol)
}

func TestAssembleContext_DropsChunksThatExceedBudget(t *testing.T) {
	chunks := []*Chunk{
		{File: "a.go", Symbol: "Small", Source: "x", Start: 1, End: 1},
		{File: "b.go", Symbol: "Large", Source: string(make([]byte, 1000)), Start: 1, End: 1},
	}
	out := AssembleContext("small", chunks, 50)
	assert.Contains(t, out, "Small")
	assert.NotContains(t, out, "Large")
}
