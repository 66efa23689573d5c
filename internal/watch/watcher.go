// Package watch observes the work directory for project file changes
// and reports them to the serve path, which forwards them to SSE
// clients.
package watch

import (
	"context"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/egret-dev/egret/internal/checksum"
	"github.com/egret-dev/egret/internal/storage"
)

// EventCallback is called after a watcher-detected change.
// kind is one of "created", "updated", "deleted".
type EventCallback func(kind string, path string)

// Watch starts an fsnotify watcher on the work directory root and
// processes file change events until ctx is cancelled. It calls cb (if
// non-nil) for every project file change.
//
// A checksum snapshot of the directory distinguishes creations from
// updates and filters atomic-rename rewrites that did not change
// content. New directories created at runtime are added to the watch
// list. Rename events trigger a debounced reconciliation pass that
// diffs the snapshot against the disk.
func Watch(ctx context.Context, store storage.Provider, workRoot string, logger *slog.Logger, cb EventCallback) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer w.Close()

	if err := addDirsRecursive(w, workRoot); err != nil {
		return err
	}

	known := make(map[string]string)
	if metas, err := store.List(""); err == nil {
		for _, m := range metas {
			known[m.Path] = m.Checksum
		}
	}

	logger.Info("watcher: started", slog.String("root", workRoot))

	// reconcileTimer debounces rename reconciliation.
	var reconcileTimer *time.Timer
	var reconcileCh <-chan time.Time

	scheduleReconcile := func() {
		if reconcileTimer == nil {
			reconcileTimer = time.NewTimer(200 * time.Millisecond)
			reconcileCh = reconcileTimer.C
		} else {
			reconcileTimer.Reset(200 * time.Millisecond)
		}
	}

	for {
		select {
		case <-ctx.Done():
			if reconcileTimer != nil {
				reconcileTimer.Stop()
			}
			logger.Info("watcher: stopped")
			return nil

		case <-reconcileCh:
			reconcile(store, known, logger, cb)

		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}

			absPath := ev.Name

			// New directories join the watch list.
			if ev.Op&fsnotify.Create != 0 {
				if info, statErr := os.Stat(absPath); statErr == nil && info.IsDir() {
					if addErr := addDirsRecursive(w, absPath); addErr != nil {
						logger.Warn("watcher: add new dir failed",
							slog.String("path", absPath),
							slog.String("error", addErr.Error()))
					} else {
						logger.Debug("watcher: watching new dir", slog.String("path", absPath))
					}
					scanNewDir(store, known, workRoot, absPath, logger, cb)
					continue
				}
			}

			// Only project files from here on.
			if !strings.HasSuffix(absPath, storage.Ext) {
				continue
			}

			rel, relErr := filepath.Rel(workRoot, absPath)
			if relErr != nil {
				continue
			}

			switch {
			case ev.Op&(fsnotify.Create|fsnotify.Write) != 0:
				data, readErr := store.Read(rel)
				if readErr != nil {
					logger.Warn("watcher: read failed", slog.String("path", rel), slog.String("error", readErr.Error()))
					continue
				}
				cs := checksum.Sum(data)
				prev, existed := known[rel]
				if existed && prev == cs {
					continue
				}
				known[rel] = cs
				kind := "updated"
				if !existed {
					kind = "created"
				}
				logger.Debug("watcher: changed", slog.String("path", rel), slog.String("op", kind))
				if cb != nil {
					cb(kind, rel)
				}

			case ev.Op&fsnotify.Remove != 0:
				if _, existed := known[rel]; !existed {
					continue
				}
				delete(known, rel)
				logger.Debug("watcher: deleted", slog.String("path", rel))
				if cb != nil {
					cb("deleted", rel)
				}

			case ev.Op&fsnotify.Rename != 0:
				// fsnotify fires Rename on the OLD path only. The new
				// path arrives as a separate Create event if it stays
				// within a watched dir. Drop the old entry now and
				// schedule a reconciliation pass for stragglers.
				if _, existed := known[rel]; existed {
					delete(known, rel)
					logger.Debug("watcher: rename old dropped", slog.String("path", rel))
					if cb != nil {
						cb("deleted", rel)
					}
				}
				scheduleReconcile()
			}

		case watchErr, ok := <-w.Errors:
			if !ok {
				return nil
			}
			logger.Error("watcher: error", slog.String("error", watchErr.Error()))
		}
	}
}

// reconcile diffs the snapshot against the disk: entries without a file
// are dropped, unseen or changed files are picked up.
func reconcile(store storage.Provider, known map[string]string, logger *slog.Logger, cb EventCallback) {
	metas, err := store.List("")
	if err != nil {
		logger.Warn("reconcile: list failed", slog.String("error", err.Error()))
		return
	}

	disk := make(map[string]string, len(metas))
	for _, m := range metas {
		disk[m.Path] = m.Checksum
	}

	for p := range known {
		if _, ok := disk[p]; !ok {
			delete(known, p)
			logger.Debug("reconcile: removed stale", slog.String("path", p))
			if cb != nil {
				cb("deleted", p)
			}
		}
	}

	for p, cs := range disk {
		prev, existed := known[p]
		if existed && prev == cs {
			continue
		}
		known[p] = cs
		kind := "updated"
		if !existed {
			kind = "created"
		}
		logger.Debug("reconcile: picked up", slog.String("path", p), slog.String("op", kind))
		if cb != nil {
			cb(kind, p)
		}
	}
}

// scanNewDir reports any project files already present in a newly
// created directory.
func scanNewDir(store storage.Provider, known map[string]string, workRoot, dirPath string, logger *slog.Logger, cb EventCallback) {
	_ = filepath.WalkDir(dirPath, func(path string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() || !strings.HasSuffix(path, storage.Ext) {
			return nil
		}
		rel, relErr := filepath.Rel(workRoot, path)
		if relErr != nil {
			return nil
		}
		data, readErr := store.Read(rel)
		if readErr != nil {
			return nil
		}
		cs := checksum.Sum(data)
		if prev, existed := known[rel]; existed && prev == cs {
			return nil
		}
		known[rel] = cs
		logger.Debug("watcher: found in new dir", slog.String("path", rel))
		if cb != nil {
			cb("created", rel)
		}
		return nil
	})
}

// addDirsRecursive adds root and all its subdirectories to the watcher.
func addDirsRecursive(w *fsnotify.Watcher, root string) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return w.Add(path)
		}
		return nil
	})
}
