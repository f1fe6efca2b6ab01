package safety

import (
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func initGitRepo(t *testing.T, dir string) {
	t.Helper()
	run := func(args ...string) {
		cmd := exec.Command("git", args...)
		cmd.Dir = dir
		out, err := cmd.CombinedOutput()
		require.NoError(t, err, string(out))
	}
	run("init", "-q")
	run("config", "user.email", "test@example.com")
	run("config", "user.name", "Test")
	require.NoError(t, os.WriteFile(filepath.Join(dir, "f.go"), []byte("package main\n"), 0644))
	run("add", ".")
	run("commit", "-q", "-m", "initial")
}

func gitOutput(t *testing.T, dir string, args ...string) string {
	t.Helper()
	cmd := exec.Command("git", args...)
	cmd.Dir = dir
	out, err := cmd.Output()
	require.NoError(t, err)
	return strings.TrimSpace(string(out))
}

func TestGitSidecar_IsRepoFalseOutsideGit(t *testing.T) {
	dir := t.TempDir()
	g := NewGitSidecar(dir)
	assert.False(t, g.IsRepo(context.Background()))
}

func TestGitSidecar_BeginChecksOutDedicatedRunBranch(t *testing.T) {
	dir := t.TempDir()
	initGitRepo(t, dir)

	g := NewGitSidecar(dir)
	require.NoError(t, g.Begin(context.Background()))

	assert.Equal(t, g.Branch, gitOutput(t, dir, "rev-parse", "--abbrev-ref", "HEAD"))
}

func TestGitSidecar_BeginOnNonRepoIsNoop(t *testing.T) {
	dir := t.TempDir()
	g := NewGitSidecar(dir)
	assert.NoError(t, g.Begin(context.Background()))
}

func TestGitSidecar_RollbackReturnsToOriginalBranchAndDiscardsWrites(t *testing.T) {
	dir := t.TempDir()
	initGitRepo(t, dir)
	origBranch := gitOutput(t, dir, "rev-parse", "--abbrev-ref", "HEAD")

	g := NewGitSidecar(dir)
	ctx := context.Background()
	require.NoError(t, g.Begin(ctx))

	require.NoError(t, os.WriteFile(filepath.Join(dir, "f.go"), []byte("package main\n\nfunc Agent() {}\n"), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "new.go"), []byte("package main\n"), 0644))

	require.NoError(t, g.Rollback(ctx))

	assert.Equal(t, origBranch, gitOutput(t, dir, "rev-parse", "--abbrev-ref", "HEAD"))
	data, err := os.ReadFile(filepath.Join(dir, "f.go"))
	require.NoError(t, err)
	assert.Equal(t, "package main\n", string(data))
	_, err = os.Stat(filepath.Join(dir, "new.go"))
	assert.True(t, os.IsNotExist(err))

	branches := gitOutput(t, dir, "branch", "--list", g.Branch)
	assert.Empty(t, branches)
}

func TestGitSidecar_RollbackRestoresPreExistingDirtyState(t *testing.T) {
	dir := t.TempDir()
	initGitRepo(t, dir)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "f.go"), []byte("package main\n\n// user's own in-progress edit\n"), 0644))

	g := NewGitSidecar(dir)
	ctx := context.Background()
	require.NoError(t, g.Begin(ctx))
	assert.True(t, g.didStash)

	require.NoError(t, g.Rollback(ctx))

	data, err := os.ReadFile(filepath.Join(dir, "f.go"))
	require.NoError(t, err)
	assert.Contains(t, string(data), "user's own in-progress edit")
}

func TestGitSidecar_FinishPopsStashWithoutTouchingBranch(t *testing.T) {
	dir := t.TempDir()
	initGitRepo(t, dir)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "f.go"), []byte("package main\n\n// pre-existing uncommitted work\n"), 0644))

	g := NewGitSidecar(dir)
	ctx := context.Background()
	require.NoError(t, g.Begin(ctx))

	require.NoError(t, g.Finish(ctx))

	data, err := os.ReadFile(filepath.Join(dir, "f.go"))
	require.NoError(t, err)
	assert.Contains(t, string(data), "pre-existing uncommitted work")
	assert.Equal(t, g.Branch, gitOutput(t, dir, "rev-parse", "--abbrev-ref", "HEAD"))
}
