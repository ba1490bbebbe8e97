package seed

import (
	"context"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
)

const reconcileDelay = 200 * time.Millisecond

// Watch follows changes under the vault root until ctx is cancelled.
// Created and written .md files are re-imported, removed ones dropped.
// Directories created at runtime join the watch list. A rename only reports
// the old path, so it removes that note and schedules a reconciling Import
// to pick up the new name.
func (im *Importer) Watch(ctx context.Context) error {
	root := im.fs.Root()
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer w.Close()

	if err := addDirsRecursive(w, root); err != nil {
		return err
	}
	im.logger.Info("seed watcher: started", slog.String("root", root))

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
			im.logger.Info("seed watcher: stopped")
			return nil

		case <-reconcileCh:
			if _, err := im.Import(); err != nil {
				im.logger.Warn("seed watcher: reconcile failed", slog.String("error", err.Error()))
			}

		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			im.handle(w, root, ev, scheduleReconcile)

		case watchErr, ok := <-w.Errors:
			if !ok {
				return nil
			}
			im.logger.Error("seed watcher: error", slog.String("error", watchErr.Error()))
		}
	}
}

func (im *Importer) handle(w *fsnotify.Watcher, root string, ev fsnotify.Event, scheduleReconcile func()) {
	abs := ev.Name

	if ev.Op&fsnotify.Create != 0 {
		if info, err := os.Stat(abs); err == nil && info.IsDir() {
			if err := addDirsRecursive(w, abs); err != nil {
				im.logger.Warn("seed watcher: add new dir failed",
					slog.String("path", abs),
					slog.String("error", err.Error()))
			}
			// Files may have landed before the directory was watched.
			scheduleReconcile()
			return
		}
	}

	if !strings.HasSuffix(abs, ".md") {
		return
	}
	rel, err := filepath.Rel(root, abs)
	if err != nil || isAttachment(rel) {
		return
	}

	switch {
	case ev.Op&(fsnotify.Create|fsnotify.Write) != 0:
		var mod time.Time
		if info, err := os.Stat(abs); err == nil {
			mod = info.ModTime()
		}
		if err := im.ImportFile(rel, mod); err != nil {
			im.logger.Warn("seed watcher: import failed", slog.String("path", rel), slog.String("error", err.Error()))
		}

	case ev.Op&fsnotify.Remove != 0:
		im.Remove(rel)

	case ev.Op&fsnotify.Rename != 0:
		im.Remove(rel)
		scheduleReconcile()
	}
}

// addDirsRecursive adds root and all its non-hidden subdirectories.
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
