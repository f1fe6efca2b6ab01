package safety

import (
	"context"
	"fmt"
	"os/exec"
	"strings"

	"github.com/google/uuid"
)

// GitSidecar wraps a repository's git porcelain for the run-scoped
// stash/branch safety net: a run stashes any pre-existing dirty state under
// its own tag, works on a dedicated branch, and can roll the repository back
// to exactly where it found it without disturbing a user's own stash.
type GitSidecar struct {
	root      string
	StashTag  string
	Branch    string
	didStash  bool
	prevBranch string
}

// NewGitSidecar allocates unique stash and branch identifiers for one run.
func NewGitSidecar(root string) *GitSidecar {
	id := uuid.NewString()[:8]
	return &GitSidecar{
		root:     root,
		StashTag: "operon-run-" + id,
		Branch:   "operon/run-" + id,
	}
}

func (g *GitSidecar) run(ctx context.Context, args ...string) (string, error) {
	cmd := exec.CommandContext(ctx, "git", args...)
	cmd.Dir = g.root
	out, err := cmd.Output()
	return strings.TrimSpace(string(out)), err
}

// IsRepo reports whether root is inside a git working tree.
func (g *GitSidecar) IsRepo(ctx context.Context) bool {
	cmd := exec.CommandContext(ctx, "git", "rev-parse", "--is-inside-work-tree")
	cmd.Dir = g.root
	return cmd.Run() == nil
}

// Begin stashes any pre-existing dirty state under StashTag (so it is never
// confused with a run-produced change), records the current branch, and
// checks out a fresh run branch.
func (g *GitSidecar) Begin(ctx context.Context) error {
	if !g.IsRepo(ctx) {
		return nil
	}

	branch, err := g.run(ctx, "rev-parse", "--abbrev-ref", "HEAD")
	if err != nil {
		return fmt.Errorf("resolve current branch: %w", err)
	}
	g.prevBranch = branch

	status, err := g.run(ctx, "status", "--porcelain")
	if err == nil && status != "" {
		if _, err := g.run(ctx, "stash", "push", "--include-untracked", "-m", g.StashTag); err != nil {
			return fmt.Errorf("stash pre-existing changes: %w", err)
		}
		g.didStash = true
	}

	if _, err := g.run(ctx, "checkout", "-b", g.Branch); err != nil {
		return fmt.Errorf("create run branch: %w", err)
	}
	return nil
}

// Rollback discards every commit and working-tree change made on the run
// branch, switches back to the branch Begin found, deletes the run branch,
// and restores the user's own pre-existing stash if one was made.
func (g *GitSidecar) Rollback(ctx context.Context) error {
	if !g.IsRepo(ctx) || g.prevBranch == "" {
		return nil
	}

	g.run(ctx, "checkout", ".")
	g.run(ctx, "clean", "-fd")
	if _, err := g.run(ctx, "checkout", g.prevBranch); err != nil {
		return fmt.Errorf("return to %s: %w", g.prevBranch, err)
	}
	g.run(ctx, "branch", "-D", g.Branch)

	if g.didStash {
		if _, err := g.popStashByTag(ctx); err != nil {
			return fmt.Errorf("restore pre-existing stash: %w", err)
		}
	}
	return nil
}

// Finish leaves the run branch's commits in place and restores the user's
// own pre-existing stash, without touching the run branch itself.
func (g *GitSidecar) Finish(ctx context.Context) error {
	if !g.IsRepo(ctx) || !g.didStash {
		return nil
	}
	_, err := g.popStashByTag(ctx)
	return err
}

func (g *GitSidecar) popStashByTag(ctx context.Context) (string, error) {
	list, err := g.run(ctx, "stash", "list")
	if err != nil {
		return "", err
	}
	for _, line := range strings.Split(list, "\n") {
		if strings.Contains(line, g.StashTag) {
			ref := strings.SplitN(line, ":", 2)[0]
			return g.run(ctx, "stash", "pop", ref)
		}
	}
	return "", nil
}
