// Package safety implements transactional file safety (C8): staged
// backup/rollback for in-flight edits, plus a git-level stash/branch
// sidecar so a run's mutations can be fully unwound even after commit.
package safety

import (
	"io"
	"io/fs"
	"os"
	"path/filepath"
)

// FileTransaction provides best-effort atomicity for a batch of file
// mutations. Stage each path before writing to it; Commit discards backups
// once the batch is approved, Rollback restores every staged path to its
// pre-mutation state (deleting paths that did not previously exist).
type FileTransaction struct {
	backups map[string]string
	modes   map[string]fs.FileMode
	creates map[string]struct{}
}

// NewFileTransaction returns an empty transaction ready for staging.
func NewFileTransaction() *FileTransaction {
	return &FileTransaction{
		backups: make(map[string]string),
		modes:   make(map[string]fs.FileMode),
		creates: make(map[string]struct{}),
	}
}

// Stage snapshots path's current content before it is mutated. A path that
// does not yet exist is tracked as a create, so Rollback deletes it rather
// than restoring it. Safe to call more than once for the same path.
func (tx *FileTransaction) Stage(path string) error {
	if _, ok := tx.backups[path]; ok {
		return nil
	}
	if _, ok := tx.creates[path]; ok {
		return nil
	}

	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			tx.creates[path] = struct{}{}
			return nil
		}
		return err
	}
	tx.modes[path] = info.Mode()

	backup, err := os.CreateTemp("", "operon_backup_*")
	if err != nil {
		return err
	}
	defer backup.Close()

	original, err := os.Open(path)
	if err != nil {
		return err
	}
	defer original.Close()

	if _, err := io.Copy(backup, original); err != nil {
		return err
	}
	tx.backups[path] = backup.Name()
	return nil
}

// Commit discards every backup, making the staged mutations permanent.
func (tx *FileTransaction) Commit() {
	for _, backup := range tx.backups {
		os.Remove(backup)
	}
	tx.backups = make(map[string]string)
	tx.modes = make(map[string]fs.FileMode)
	tx.creates = make(map[string]struct{})
}

// Rollback restores every staged path to its pre-Stage content, deleting any
// path that was staged as a create.
func (tx *FileTransaction) Rollback() {
	for originalPath, backupPath := range tx.backups {
		data, err := os.ReadFile(backupPath)
		if err == nil {
			os.MkdirAll(filepath.Dir(originalPath), 0755)
			os.WriteFile(originalPath, data, 0644)
			if mode, ok := tx.modes[originalPath]; ok {
				os.Chmod(originalPath, mode)
			}
		}
		os.Remove(backupPath)
	}

	for createdPath := range tx.creates {
		os.Remove(createdPath)
	}

	tx.backups = make(map[string]string)
	tx.modes = make(map[string]fs.FileMode)
	tx.creates = make(map[string]struct{})
}

// Dirty reports whether anything has been staged.
func (tx *FileTransaction) Dirty() bool {
	return len(tx.backups) > 0 || len(tx.creates) > 0
}
