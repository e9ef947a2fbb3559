package index

import (
	"context"
	"io/fs"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
)

// RebuildFunc receives the result of each watch-triggered rebuild.
type RebuildFunc func(idx *Index, warnings []string, err error)

// Watcher rebuilds the index whenever a governance file changes. Events
// are debounced so editors that write in bursts trigger one rebuild.
type Watcher struct {
	cache     *Cache
	debounce  time.Duration
	onRebuild RebuildFunc
	fsw       *fsnotify.Watcher
}

// NewWatcher prepares a watcher over the governance locations. The error
// is surfaced when the platform offers no file notification support;
// callers fall back to manual reindex runs.
func (c *Cache) NewWatcher(debounce time.Duration, onRebuild RebuildFunc) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	w := &Watcher{
		cache:     c,
		debounce:  debounce,
		onRebuild: onRebuild,
		fsw:       fsw,
	}
	w.addWatchDirs()
	return w, nil
}

// addWatchDirs registers every existing governance directory. Directories
// created later are picked up after the next rebuild.
func (w *Watcher) addWatchDirs() {
	cfg := w.cache.cfg

	// The constitution sits in the project root; watch its parent so
	// atomic replaces are seen.
	w.fsw.Add(filepath.Dir(cfg.ConstitutionPath()))

	rulesDir := cfg.RulesDirPath()
	w.fsw.Add(rulesDir)
	w.fsw.Add(filepath.Join(rulesDir, "domain"))

	filepath.WalkDir(cfg.DocsDirPath(), func(path string, d fs.DirEntry, err error) error {
		if err == nil && d.IsDir() {
			w.fsw.Add(path)
		}
		return nil
	})
}

// relevant reports whether an event touches a file the index covers.
func (w *Watcher) relevant(name string) bool {
	if !strings.HasSuffix(name, ".md") {
		return false
	}
	cfg := w.cache.cfg
	if name == cfg.ConstitutionPath() {
		return true
	}
	for _, dir := range []string{cfg.RulesDirPath(), cfg.DocsDirPath()} {
		if strings.HasPrefix(name, dir+string(filepath.Separator)) {
			return true
		}
	}
	return false
}

// Close releases the underlying watcher. Run closes it on return, so
// Close is only needed when Run was never started.
func (w *Watcher) Close() error {
	return w.fsw.Close()
}

// Run watches until the context is cancelled. Each burst of changes
// produces one rebuild, reported through the callback.
func (w *Watcher) Run(ctx context.Context) {
	defer w.fsw.Close()

	var timerC <-chan time.Time
	var timer *time.Timer

	for {
		select {
		case <-ctx.Done():
			if timer != nil {
				timer.Stop()
			}
			return
		case event, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			if event.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Remove|fsnotify.Rename) == 0 {
				continue
			}
			if !w.relevant(event.Name) {
				continue
			}
			if timer == nil {
				timer = time.NewTimer(w.debounce)
			} else {
				timer.Reset(w.debounce)
			}
			timerC = timer.C
		case <-timerC:
			timerC = nil
			idx, warnings, err := w.cache.Rebuild(ctx)
			w.onRebuild(idx, warnings, err)
			// New directories may have appeared with the change.
			w.addWatchDirs()
		case <-w.fsw.Errors:
			// Keep watching.
		}
	}
}
