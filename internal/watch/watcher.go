package watch

import (
	"context"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/cleverdata/s3-uploader/internal/core"
	"github.com/fsnotify/fsnotify"
)

const defaultPollInterval = 100 * time.Millisecond

type fileState struct {
	lastSize    int64
	lastMod     int64
	stableSince time.Time
	timer       *time.Timer
}

// Watcher turns raw fsnotify traffic under one root into settled events:
// a file is reported only after its size and mtime have held still for the
// root's stability threshold.
type Watcher struct {
	root    core.WatchedRoot
	out     chan<- core.Event
	logger  core.Logger
	watcher *fsnotify.Watcher

	mu      sync.Mutex
	pending map[string]*fileState
	known   map[string]bool
	closed  bool

	ctx   context.Context
	ready chan struct{}
}

func New(root core.WatchedRoot, out chan<- core.Event, logger core.Logger) (*Watcher, error) {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if root.PollInterval <= 0 {
		root.PollInterval = defaultPollInterval
	}
	root.Path = filepath.Clean(root.Path)
	return &Watcher{
		root:    root,
		out:     out,
		logger:  logger,
		watcher: fw,
		pending: make(map[string]*fileState),
		known:   make(map[string]bool),
		ctx:     context.Background(),
		ready:   make(chan struct{}),
	}, nil
}

// Ready is closed once the initial recursive watch is in place.
func (w *Watcher) Ready() <-chan struct{} {
	return w.ready
}

// Run blocks until ctx is cancelled or the fsnotify watcher is closed.
func (w *Watcher) Run(ctx context.Context) error {
	w.mu.Lock()
	w.ctx = ctx
	w.mu.Unlock()
	defer w.stopAll()

	if err := os.MkdirAll(w.root.Path, 0755); err != nil {
		return err
	}
	if err := w.addRecursive(w.root.Path, true); err != nil {
		return err
	}
	close(w.ready)
	w.infof("[%s] Watching %s for changes...", w.root.Kind, w.root.Path)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case e, ok := <-w.watcher.Events:
			if !ok {
				return nil
			}
			w.handle(e)

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return nil
			}
			if w.logger != nil {
				w.logger.Warningf("[%s] Watcher error: %v", w.root.Kind, err)
			}
		}
	}
}

// Close releases the underlying fsnotify watcher.
func (w *Watcher) Close() error {
	return w.watcher.Close()
}

func (w *Watcher) handle(e fsnotify.Event) {
	if isHidden(e.Name) {
		return
	}

	switch {
	case e.Has(fsnotify.Create):
		info, err := os.Stat(e.Name)
		if err != nil {
			return
		}
		if info.IsDir() {
			if err := w.addRecursive(e.Name, false); err != nil && w.logger != nil {
				w.logger.Warningf("[%s] Cannot watch %s: %v", w.root.Kind, e.Name, err)
			}
			return
		}
		w.track(e.Name)

	case e.Has(fsnotify.Write):
		w.track(e.Name)

	case e.Has(fsnotify.Remove), e.Has(fsnotify.Rename):
		w.forget(e.Name)
	}
}

// addRecursive watches dir and every non-hidden directory below it. Files
// found on the initial pass are only marked known when the root ignores
// initial content; anything else goes through stabilization.
func (w *Watcher) addRecursive(dir string, initial bool) error {
	return filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil // vanished or unreadable; skip
		}
		if path != w.root.Path && isHidden(path) {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if d.IsDir() {
			return w.watcher.Add(path)
		}
		if !d.Type().IsRegular() {
			return nil
		}
		if initial && w.root.IgnoreInitial {
			w.mu.Lock()
			w.known[path] = true
			w.mu.Unlock()
			return nil
		}
		w.track(path)
		return nil
	})
}

// track starts a stability poll for path unless one is already running.
func (w *Watcher) track(path string) {
	info, err := os.Stat(path)
	if err != nil || !info.Mode().IsRegular() {
		return
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return
	}
	if _, ok := w.pending[path]; ok {
		return
	}
	st := &fileState{
		lastSize:    info.Size(),
		lastMod:     info.ModTime().UnixNano(),
		stableSince: time.Now(),
	}
	st.timer = time.AfterFunc(w.root.PollInterval, func() { w.poll(path) })
	w.pending[path] = st
	w.debugf("[%s] Tracking %s (%d bytes)", w.root.Kind, filepath.Base(path), info.Size())
}

func (w *Watcher) poll(path string) {
	info, statErr := os.Stat(path)

	w.mu.Lock()
	st, ok := w.pending[path]
	if !ok || w.closed {
		w.mu.Unlock()
		return
	}
	if statErr != nil {
		delete(w.pending, path)
		w.mu.Unlock()
		return
	}

	now := time.Now()
	if info.Size() != st.lastSize || info.ModTime().UnixNano() != st.lastMod {
		w.debugf("[%s] %s still changing (%d -> %d bytes)", w.root.Kind, filepath.Base(path), st.lastSize, info.Size())
		st.lastSize = info.Size()
		st.lastMod = info.ModTime().UnixNano()
		st.stableSince = now
	}

	if now.Sub(st.stableSince) < w.root.StabilityThreshold {
		st.timer.Reset(w.root.PollInterval)
		w.mu.Unlock()
		return
	}

	delete(w.pending, path)
	kind := core.Modified
	if !w.known[path] {
		kind = core.Created
		w.known[path] = true
	}
	w.mu.Unlock()

	w.emit(core.Event{Root: w.root, Path: path, Kind: kind, ObservedAt: now})
}

// forget drops any pending poll for path (and, for a directory, everything
// below it) and reports Removed for whatever had already been emitted.
func (w *Watcher) forget(path string) {
	prefix := path + string(filepath.Separator)

	w.mu.Lock()
	for p, st := range w.pending {
		if p == path || strings.HasPrefix(p, prefix) {
			st.timer.Stop()
			delete(w.pending, p)
		}
	}
	var removed []string
	for p := range w.known {
		if p == path || strings.HasPrefix(p, prefix) {
			removed = append(removed, p)
			delete(w.known, p)
		}
	}
	w.mu.Unlock()

	now := time.Now()
	for _, p := range removed {
		w.emit(core.Event{Root: w.root, Path: p, Kind: core.Removed, ObservedAt: now})
	}
}

func (w *Watcher) emit(ev core.Event) {
	w.mu.Lock()
	ctx := w.ctx
	w.mu.Unlock()

	select {
	case w.out <- ev:
	case <-ctx.Done():
	}
}

func (w *Watcher) stopAll() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.closed = true
	for p, st := range w.pending {
		st.timer.Stop()
		delete(w.pending, p)
	}
	w.watcher.Close()
}

func (w *Watcher) infof(format string, v ...interface{}) {
	if w.logger != nil {
		w.logger.Infof(format, v...)
	}
}

func (w *Watcher) debugf(format string, v ...interface{}) {
	if core.DebugMode && w.logger != nil {
		w.logger.Infof("[DEBUG] "+format, v...)
	}
}

func isHidden(path string) bool {
	return strings.HasPrefix(filepath.Base(path), ".")
}
