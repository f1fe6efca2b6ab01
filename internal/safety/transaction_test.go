package safety

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFileTransaction_RollbackRestoresExistingFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "f.go")
	require.NoError(t, os.WriteFile(path, []byte("original\n"), 0644))

	tx := NewFileTransaction()
	require.NoError(t, tx.Stage(path))
	require.NoError(t, os.WriteFile(path, []byte("mutated\n"), 0644))

	tx.Rollback()

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "original\n", string(data))
}

func TestFileTransaction_RollbackDeletesCreatedFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "new.go")

	tx := NewFileTransaction()
	require.NoError(t, tx.Stage(path))
	require.NoError(t, os.WriteFile(path, []byte("new content\n"), 0644))

	tx.Rollback()

	_, err := os.Stat(path)
	assert.True(t, os.IsNotExist(err))
}

func TestFileTransaction_CommitDiscardsBackups(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "f.go")
	require.NoError(t, os.WriteFile(path, []byte("original\n"), 0644))

	tx := NewFileTransaction()
	require.NoError(t, tx.Stage(path))
	require.NoError(t, os.WriteFile(path, []byte("mutated\n"), 0644))

	tx.Commit()
	assert.False(t, tx.Dirty())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "mutated\n", string(data))
}

func TestFileTransaction_DirtyReflectsStaging(t *testing.T) {
	tx := NewFileTransaction()
	assert.False(t, tx.Dirty())

	dir := t.TempDir()
	path := filepath.Join(dir, "f.go")
	require.NoError(t, os.WriteFile(path, []byte("x"), 0644))
	require.NoError(t, tx.Stage(path))
	assert.True(t, tx.Dirty())
}

func TestFileTransaction_StageIsIdempotent(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "f.go")
	require.NoError(t, os.WriteFile(path, []byte("original\n"), 0644))

	tx := NewFileTransaction()
	require.NoError(t, tx.Stage(path))
	require.NoError(t, os.WriteFile(path, []byte("mutated once\n"), 0644))
	require.NoError(t, tx.Stage(path))
	require.NoError(t, os.WriteFile(path, []byte("mutated twice\n"), 0644))

	tx.Rollback()

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "original\n", string(data))
}
