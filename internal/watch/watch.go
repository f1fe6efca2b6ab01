// Package watch supplements on-demand graph builds with an fsnotify-driven
// incremental rebuild trigger, debounced so a burst of saves coalesces into
// one rebuild.
package watch

import (
	"context"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/qasimio/Operon/internal/graph"
	"github.com/qasimio/Operon/internal/obslog"
)

var skipDirNames = map[string]bool{
	".git": true, ".operon": true, "node_modules": true, "vendor": true,
	"dist": true, "build": true, ".venv": true, ".cache": true,
}

// Watcher drives incremental rebuilds of a Graph in response to filesystem
// change events under its repository root.
type Watcher struct {
	g        *graph.Graph
	repoRoot string
	Debounce time.Duration
}

// New returns a Watcher bound to g, with a 400ms debounce window.
func New(g *graph.Graph, repoRoot string) *Watcher {
	return &Watcher{g: g, repoRoot: repoRoot, Debounce: 400 * time.Millisecond}
}

// Run blocks, watching repoRoot recursively and triggering a debounced
// incremental Graph.Build on every batch of filesystem events, until ctx is
// canceled. onRebuild, if non-nil, is invoked after every build attempt with
// the build's error (nil on success).
func (w *Watcher) Run(ctx context.Context, onRebuild func(error)) error {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer fw.Close()

	if err := addRecursive(fw, w.repoRoot); err != nil {
		return err
	}

	log := obslog.Get(obslog.CategoryGraph)
	var timer *time.Timer
	pending := make(chan struct{}, 1)

	for {
		select {
		case <-ctx.Done():
			return nil

		case ev, ok := <-fw.Events:
			if !ok {
				return nil
			}
			if ignorableEvent(ev) {
				continue
			}
			if timer == nil {
				timer = time.AfterFunc(w.Debounce, func() {
					select {
					case pending <- struct{}{}:
					default:
					}
				})
			} else {
				timer.Reset(w.Debounce)
			}

		case err := <-fw.Errors:
			log.Warnf("fsnotify error: %v", err)

		case <-pending:
			err := w.g.Build(ctx, true)
			if err != nil {
				log.Warnf("incremental rebuild failed: %v", err)
			}
			if onRebuild != nil {
				onRebuild(err)
			}
		}
	}
}

func ignorableEvent(ev fsnotify.Event) bool {
	base := filepath.Base(ev.Name)
	return base == ".operon" || filepath.Ext(base) == ".tmp"
}

func addRecursive(fw *fsnotify.Watcher, root string) error {
	return filepath.Walk(root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return nil
		}
		if !info.IsDir() {
			return nil
		}
		if info.Name() != filepath.Base(root) && skipDirNames[info.Name()] {
			return filepath.SkipDir
		}
		return fw.Add(path)
	})
}
