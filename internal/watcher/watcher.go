// Package watcher watches the document directory and triggers a debounced
// index rebuild when files change. The store is immutable once built, so any
// change means a full rebuild rather than an in-place update.
package watcher

import (
	"context"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"

	"github.com/hyperjump/kotaeru/internal/extract"
)

const defaultDebounce = 2 * time.Second

// Watcher watches a directory tree and calls onRebuild once per burst of
// file changes.
type Watcher struct {
	root      string
	onRebuild func()
	debounce  time.Duration
	logger    *zap.Logger

	mu      sync.Mutex
	watcher *fsnotify.Watcher
	timer   *time.Timer
	started bool

	done     chan struct{}
	stopOnce sync.Once
}

// New creates a watcher for root. onRebuild runs on the watcher goroutine's
// timer; it should hand off heavy work. debounce <= 0 uses the default.
func New(root string, debounce time.Duration, onRebuild func(), logger *zap.Logger) *Watcher {
	if debounce <= 0 {
		debounce = defaultDebounce
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Watcher{
		root:      filepath.Clean(root),
		onRebuild: onRebuild,
		debounce:  debounce,
		logger:    logger,
		done:      make(chan struct{}),
	}
}

// Start begins watching. It runs until ctx is cancelled or Stop is called.
func (w *Watcher) Start(ctx context.Context) error {
	w.mu.Lock()
	if w.started {
		w.mu.Unlock()
		return nil
	}
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		w.mu.Unlock()
		return err
	}
	w.watcher = fsw
	w.started = true
	w.mu.Unlock()

	if err := w.addTree(w.root); err != nil {
		w.Stop()
		return err
	}
	w.logger.Debug("watcher started", zap.String("root", w.root))
	go w.run(ctx)
	return nil
}

func (w *Watcher) run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			w.Stop()
			return
		case <-w.done:
			return
		case ev, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			w.handleEvent(ev)
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			if err != nil {
				w.logger.Debug("watcher error", zap.Error(err))
			}
		}
	}
}

func (w *Watcher) handleEvent(ev fsnotify.Event) {
	if ev.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Remove|fsnotify.Rename) == 0 {
		return
	}

	// New subdirectories must be added to the watch before their contents
	// generate events.
	if ev.Op&fsnotify.Create != 0 {
		if info, err := os.Stat(ev.Name); err == nil && info.IsDir() {
			if !isHidden(ev.Name) {
				_ = w.addTree(ev.Name)
				w.scheduleRebuild(ev.Name)
			}
			return
		}
	}

	if extract.Supported(filepath.Ext(ev.Name)) {
		w.scheduleRebuild(ev.Name)
	}
}

// scheduleRebuild resets the debounce timer so a burst of events produces a
// single rebuild.
func (w *Watcher) scheduleRebuild(path string) {
	w.logger.Debug("change detected", zap.String("path", path))
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.timer != nil {
		w.timer.Stop()
	}
	w.timer = time.AfterFunc(w.debounce, func() {
		w.logger.Info("rebuilding index after file changes")
		if w.onRebuild != nil {
			w.onRebuild()
		}
	})
}

// addTree adds root and all its non-hidden subdirectories to the watch.
func (w *Watcher) addTree(root string) error {
	w.mu.Lock()
	fsw := w.watcher
	w.mu.Unlock()
	if fsw == nil {
		return nil
	}
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		if path != root && isHidden(path) {
			return filepath.SkipDir
		}
		return fsw.Add(path)
	})
}

func isHidden(path string) bool {
	return strings.HasPrefix(filepath.Base(path), ".")
}

// Stop stops the watcher and releases resources.
func (w *Watcher) Stop() {
	w.mu.Lock()
	if w.timer != nil {
		w.timer.Stop()
		w.timer = nil
	}
	if w.watcher != nil {
		_ = w.watcher.Close()
		w.watcher = nil
	}
	w.started = false
	w.mu.Unlock()
	w.stopOnce.Do(func() { close(w.done) })
}
