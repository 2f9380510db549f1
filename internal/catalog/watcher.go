package catalog

import (
	"context"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/starford/gridcat/internal/collection"
	"github.com/starford/gridcat/internal/indexfile"
	"github.com/starford/gridcat/internal/storage"
)

// DefaultDebounce is used when Watch is given a non-positive debounce.
const DefaultDebounce = 2 * time.Second

// Watch starts an fsnotify watcher on every target root and processes change
// events until ctx is cancelled. Changes are debounced per target; once a
// target settles it is updated with policy test for itself and its children.
//
// Index files and in-flight temp files are ignored, so the watcher does not
// react to its own writes. New directories are added to the watch list.
func Watch(ctx context.Context, u *Updater, targets []Target, debounce time.Duration, logger *slog.Logger) error {
	if debounce <= 0 {
		debounce = DefaultDebounce
	}

	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer w.Close()

	roots := make([]string, len(targets))
	for i, t := range targets {
		root, err := filepath.Abs(t.Spec.RootDir)
		if err != nil {
			return err
		}
		roots[i] = root
		if err := addDirsRecursive(w, root); err != nil {
			return err
		}
		logger.Info("watcher: started", slog.String("collection", t.Name), slog.String("root", root))
	}

	due := make(chan int, len(targets))
	timers := make(map[int]*time.Timer, len(targets))
	schedule := func(i int) {
		if tm, ok := timers[i]; ok {
			tm.Reset(debounce)
			return
		}
		timers[i] = time.AfterFunc(debounce, func() {
			select {
			case due <- i:
			case <-ctx.Done():
			}
		})
	}
	defer func() {
		for _, tm := range timers {
			tm.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			logger.Info("watcher: stopped")
			return nil

		case i := <-due:
			t := targets[i]
			res, err := u.Update(ctx, t, collection.Test, collection.Test)
			if err != nil {
				logger.Warn("watcher: update failed",
					slog.String("collection", t.Name),
					slog.String("error", err.Error()))
				continue
			}
			logger.Debug("watcher: updated",
				slog.String("collection", t.Name),
				slog.Int("rebuilt", res.Stats.Rebuilt),
				slog.Int("kept", res.Stats.Kept))

		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			if ignored(ev.Name) {
				continue
			}

			if ev.Op&fsnotify.Create != 0 {
				if info, statErr := os.Stat(ev.Name); statErr == nil && info.IsDir() {
					if addErr := addDirsRecursive(w, ev.Name); addErr != nil {
						logger.Warn("watcher: add new dir failed",
							slog.String("path", ev.Name),
							slog.String("error", addErr.Error()))
					} else {
						logger.Debug("watcher: watching new dir", slog.String("path", ev.Name))
					}
				}
			}
			if ev.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Remove|fsnotify.Rename) == 0 {
				continue
			}
			if i := owner(roots, ev.Name); i >= 0 {
				schedule(i)
			}

		case watchErr, ok := <-w.Errors:
			if !ok {
				return nil
			}
			logger.Error("watcher: error", slog.String("error", watchErr.Error()))
		}
	}
}

func ignored(path string) bool {
	return indexfile.IsIndexArtifact(path) || storage.IsTemp(filepath.Base(path))
}

// owner returns the index of the deepest root containing path, or -1.
func owner(roots []string, path string) int {
	best, bestLen := -1, -1
	for i, root := range roots {
		rel, err := filepath.Rel(root, path)
		if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
			continue
		}
		if len(root) > bestLen {
			best, bestLen = i, len(root)
		}
	}
	return best
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
