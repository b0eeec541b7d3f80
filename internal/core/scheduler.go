package core

import (
	"context"
	"errors"
	"io/fs"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/spf13/afero"
)

// RecordedAtKey is the object metadata entry holding the upload time.
const RecordedAtKey = "recorded_at"

const recordedAtLayout = "2006-01-02T15:04:05.000Z07:00"

var acceptedRecordingExts = map[string]bool{
	".mp4": true,
	".flv": true,
}

// IsRecording reports whether path has an extension the scheduler accepts.
func IsRecording(path string) bool {
	return acceptedRecordingExts[strings.ToLower(filepath.Ext(path))]
}

type SchedulerOptions struct {
	Delay       time.Duration
	DeleteLocal bool
	Clock       Clock
	Fs          afero.Fs
	Ledger      Ledger
}

// Scheduler uploads recordings a fixed delay after they settle. A second
// create for the same path before the delay elapses pushes the upload back;
// the superseded timer is neutralised by its generation, not by Stop.
type Scheduler struct {
	root     WatchedRoot
	store    RemoteStore
	registry *Registry
	opts     SchedulerOptions
	logger   Logger

	ctx    context.Context
	cancel context.CancelFunc

	mu       sync.Mutex
	closed   bool
	inflight sync.WaitGroup
}

func NewScheduler(root WatchedRoot, store RemoteStore, registry *Registry, opts SchedulerOptions, logger Logger) *Scheduler {
	if opts.Clock == nil {
		opts.Clock = SystemClock
	}
	if opts.Fs == nil {
		opts.Fs = afero.NewOsFs()
	}
	if opts.Ledger == nil {
		opts.Ledger = noopLedger{}
	}
	if registry == nil {
		registry = NewRegistry()
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Scheduler{
		root:     root,
		store:    store,
		registry: registry,
		opts:     opts,
		logger:   logger,
		ctx:      ctx,
		cancel:   cancel,
	}
}

func (s *Scheduler) Registry() *Registry { return s.registry }

func (s *Scheduler) Delay() time.Duration { return s.opts.Delay }

// Schedule arms (or re-arms) the delayed upload for path. It performs no I/O
// so callers may invoke it inline to keep per-path ordering.
func (s *Scheduler) Schedule(path string) bool {
	if !IsRecording(path) {
		return false
	}

	now := s.opts.Clock.Now()
	entry := PendingUpload{
		LocalPath:   path,
		ScheduledAt: now,
		DueAt:       now.Add(s.opts.Delay),
	}
	gen, replaced := s.registry.Supersede(entry, func(gen uint64) Timer {
		return s.opts.Clock.AfterFunc(s.opts.Delay, func() { s.fire(path, gen) })
	})

	if replaced {
		logInfo(s.logger, "[%s] File recreated, rescheduling: %s", s.root.Kind, path)
	} else {
		logInfo(s.logger, "[%s] New file detected: %s", s.root.Kind, path)
	}
	debugLog(s.logger, "[%s] %s generation %d due at %s", s.root.Kind, filepath.Base(path), gen, entry.DueAt.Format(time.RFC3339))
	logInfo(s.logger, "[%s] Will upload in %s", s.root.Kind, s.opts.Delay)
	return true
}

func (s *Scheduler) fire(path string, gen uint64) {
	if !s.registry.Claim(path, gen) {
		debugLog(s.logger, "[%s] Stale timer for %s (generation %d), ignoring", s.root.Kind, filepath.Base(path), gen)
		return
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.inflight.Add(1)
	s.mu.Unlock()
	defer s.inflight.Done()

	s.upload(path) //nolint:errcheck
}

// upload ships one recording and, if configured, removes it locally.
// Failures are logged and recorded; nothing is requeued.
func (s *Scheduler) upload(path string) error {
	key, err := MapKey(s.root, path)
	if err != nil {
		logError(s.logger, "[%s] Refusing %s: %v", s.root.Kind, path, err)
		return err
	}

	f, err := s.opts.Fs.Open(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			logInfo(s.logger, "[%s] File no longer exists, skipping: %s", s.root.Kind, path)
		} else {
			logWarning(s.logger, "[%s] Cannot read %s: %v", s.root.Kind, path, err)
		}
		return &LocalReadError{Path: path, Err: err}
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return &LocalReadError{Path: path, Err: err}
	}

	metadata := map[string]string{
		RecordedAtKey: s.opts.Clock.Now().UTC().Format(recordedAtLayout),
	}
	err = s.store.Put(s.ctx, key, f, info.Size(), ContentFor(Recordings, path), metadata)
	f.Close()
	if err != nil {
		logError(s.logger, "[%s] Upload error: %s: %v", s.root.Kind, path, err)
		s.record(s.opts.Ledger.RecordFailure(key, path, s.root.Namespace, err))
		return &UploadError{Key: key, Err: err}
	}

	logInfo(s.logger, "[%s] Uploaded: %s", s.root.Kind, key)
	s.record(s.opts.Ledger.RecordUpload(key, path, s.root.Namespace, info.Size()))

	if !s.opts.DeleteLocal {
		return nil
	}
	if err := s.opts.Fs.Remove(path); err != nil {
		logWarning(s.logger, "[Local] Delete failed: %s: %v", path, err)
		return nil
	}
	logInfo(s.logger, "[Local] Deleted: %s", path)

	removed, err := PruneEmptyDirs(s.opts.Fs, s.root.Path, filepath.Dir(path))
	for _, dir := range removed {
		debugLog(s.logger, "[Local] Removed empty directory: %s", dir)
	}
	if err != nil {
		debugLog(s.logger, "[Local] Stopped pruning: %v", err)
	}
	return nil
}

func (s *Scheduler) record(err error) {
	if err != nil {
		logWarning(s.logger, "[%s] Ledger write failed: %v", s.root.Kind, err)
	}
}

// Close cancels every pending timer, aborts in-flight uploads and waits for
// them to finish their ledger writes and local cleanup.
func (s *Scheduler) Close() {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()

	dropped := s.registry.Drain()
	s.cancel()
	s.inflight.Wait()
	if len(dropped) > 0 {
		logWarning(s.logger, "[%s] Shutdown dropped %d pending upload(s)", s.root.Kind, len(dropped))
	}
}
