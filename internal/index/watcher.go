package index

import (
	"context"
	"errors"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
)

// Watcher event kinds passed to EventCallback.
const (
	EventCreated    = "created"
	EventUpdated    = "updated"
	EventDeleted    = "deleted"
	EventReconciled = "reconciled"
)

// EventCallback is called after a watcher-driven index change with the
// vault-relative path involved ("" for reconciliation passes).
type EventCallback func(kind string, path string)

const reconcileDelay = 200 * time.Millisecond

// Watch starts an fsnotify watcher on the vault root and feeds file changes
// through syncer until ctx is cancelled. It calls cb (if non-nil) after
// each index mutation.
//
// New directories created at runtime (a fresh YYYY/MM folder, say) are
// added to the watch list. Rename events schedule a debounced full sync,
// since fsnotify reports only the old side of a move.
func Watch(ctx context.Context, syncer *Syncer, root string, logger *slog.Logger, cb EventCallback) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer w.Close()

	if err := addDirsRecursive(w, root); err != nil {
		return err
	}
	logger.Info("watcher: started", slog.String("root", root))

	emit := func(kind, path string) {
		if cb != nil {
			cb(kind, path)
		}
	}

	var reconcileTimer *time.Timer
	var reconcileCh <-chan time.Time
	scheduleReconcile := func() {
		if reconcileTimer == nil {
			reconcileTimer = time.NewTimer(reconcileDelay)
			reconcileCh = reconcileTimer.C
		} else {
			reconcileTimer.Reset(reconcileDelay)
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
			rep, err := syncer.Sync()
			if err != nil {
				logger.Warn("watcher: reconcile failed", slog.String("error", err.Error()))
				continue
			}
			if rep.Indexed+rep.Removed > 0 {
				logger.Debug("watcher: reconciled", slog.String("report", rep.String()))
				emit(EventReconciled, "")
			}

		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			abs := ev.Name

			if ev.Op&fsnotify.Create != 0 {
				if info, statErr := os.Stat(abs); statErr == nil && info.IsDir() {
					if strings.HasPrefix(info.Name(), ".") {
						continue
					}
					if addErr := addDirsRecursive(w, abs); addErr != nil {
						logger.Warn("watcher: add new dir failed",
							slog.String("path", abs),
							slog.String("error", addErr.Error()))
					}
					// Files may have landed before the watch was added.
					scheduleReconcile()
					continue
				}
			}

			if !strings.HasSuffix(abs, ".md") || strings.HasPrefix(filepath.Base(abs), ".") {
				continue
			}
			rel, relErr := filepath.Rel(root, abs)
			if relErr != nil {
				continue
			}
			rel = filepath.ToSlash(rel)

			switch {
			case ev.Op&(fsnotify.Create|fsnotify.Write) != 0:
				changed, err := syncer.IndexPath(rel)
				if errors.Is(err, ErrNeedsSync) {
					scheduleReconcile()
					continue
				}
				if err != nil {
					logger.Warn("watcher: index failed", slog.String("path", rel), slog.String("error", err.Error()))
					continue
				}
				if !changed {
					continue
				}
				kind := EventUpdated
				if ev.Op&fsnotify.Create != 0 {
					kind = EventCreated
				}
				logger.Debug("watcher: indexed", slog.String("path", rel), slog.String("op", kind))
				emit(kind, rel)

			case ev.Op&fsnotify.Remove != 0:
				removed, err := syncer.RemovePath(rel)
				if err != nil {
					logger.Warn("watcher: delete failed", slog.String("path", rel), slog.String("error", err.Error()))
					continue
				}
				if removed {
					logger.Debug("watcher: deleted", slog.String("path", rel))
					emit(EventDeleted, rel)
				}

			case ev.Op&fsnotify.Rename != 0:
				if removed, err := syncer.RemovePath(rel); err == nil && removed {
					emit(EventDeleted, rel)
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

// addDirsRecursive adds root and all its non-hidden subdirectories to the
// watcher.
func addDirsRecursive(w *fsnotify.Watcher, root string) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		if path != root && strings.HasPrefix(d.Name(), ".") {
			return filepath.SkipDir
		}
		return w.Add(path)
	})
}
