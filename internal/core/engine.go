package core

import (
	"context"
	"sync"
	"time"
)

var DebugMode bool

type Logger interface {
	Info(v ...interface{}) error
	Infof(format string, v ...interface{}) error
	Error(v ...interface{}) error
	Errorf(format string, v ...interface{}) error
	Warning(v ...interface{}) error
	Warningf(format string, v ...interface{}) error
}

func debugLog(logger Logger, format string, v ...interface{}) {
	if DebugMode && logger != nil {
		logger.Infof("[DEBUG] "+format, v...)
	}
}

func logInfo(logger Logger, format string, v ...interface{}) {
	if logger != nil {
		logger.Infof(format, v...)
	}
}

func logWarning(logger Logger, format string, v ...interface{}) {
	if logger != nil {
		logger.Warningf(format, v...)
	}
}

func logError(logger Logger, format string, v ...interface{}) {
	if logger != nil {
		logger.Errorf(format, v...)
	}
}

// Status is what the inspection surface reports.
type Status struct {
	HLSEnabled        bool
	RecordingsEnabled bool
	RecordingDelay    time.Duration
	Bucket            string
	PendingCount      int
	PendingPaths      []string
	Pending           []PendingUpload // With schedule and due times
}

type EngineOptions struct {
	ConcurrencyLimit int // Max parallel live-segment handlers
	Bucket           string
	RecordingDelay   time.Duration
}

// Engine classifies settled events by root and hands them to the matching
// pipeline. Live-segment handlers run concurrently; recording creates are
// scheduled inline, which keeps per-path ordering for the scheduler.
type Engine struct {
	live   *LivePipeline
	rec    *Scheduler
	opts   EngineOptions
	logger Logger

	semaphore chan struct{}
	wg        sync.WaitGroup
	idle      *Registry
}

// NewEngine wires the pipelines together. A nil pipeline means that root is disabled.
func NewEngine(live *LivePipeline, rec *Scheduler, opts EngineOptions, logger Logger) *Engine {
	limit := opts.ConcurrencyLimit
	if limit <= 0 {
		limit = 5
	}
	return &Engine{
		live:      live,
		rec:       rec,
		opts:      opts,
		logger:    logger,
		semaphore: make(chan struct{}, limit),
		idle:      NewRegistry(),
	}
}

// Run consumes events until ctx is done or events is closed, then waits for
// in-flight live-segment handlers and cancels pending recordings.
func (e *Engine) Run(ctx context.Context, events <-chan Event) {
	defer func() {
		e.wg.Wait()
		if e.rec != nil {
			e.rec.Close()
		}
	}()

	for {
		select {
		case ev, ok := <-events:
			if !ok {
				return
			}
			e.Dispatch(ctx, ev)
		case <-ctx.Done():
			return
		}
	}
}

// Dispatch routes a single event. It never blocks on I/O.
func (e *Engine) Dispatch(ctx context.Context, ev Event) {
	if !ev.Root.Enabled {
		debugLog(e.logger, "Dropping %s event for disabled root: %s", ev.Kind, ev.Path)
		return
	}

	switch ev.Root.Kind {
	case LiveSegments:
		if e.live == nil {
			return
		}
		e.wg.Add(1)
		go func(ev Event) {
			defer e.wg.Done()
			e.semaphore <- struct{}{}
			defer func() { <-e.semaphore }()
			debugLog(e.logger, "[%s] %s %s", ev.Root.Kind, ev.Kind, ev.Path)
			e.live.Handle(ctx, ev) //nolint:errcheck
		}(ev)

	case Recordings:
		if e.rec == nil {
			return
		}
		if ev.Kind != Created {
			debugLog(e.logger, "[%s] Ignoring %s for %s", ev.Root.Kind, ev.Kind, ev.Path)
			return
		}
		e.rec.Schedule(ev.Path)
	}
}

// Wait blocks until all dispatched live-segment handlers have returned.
func (e *Engine) Wait() {
	e.wg.Wait()
}

// Registry exposes the pending set for inspection.
func (e *Engine) Registry() *Registry {
	if e.rec == nil {
		return e.idle
	}
	return e.rec.Registry()
}

func (e *Engine) Status() Status {
	st := Status{
		HLSEnabled:        e.live != nil,
		RecordingsEnabled: e.rec != nil,
		Bucket:            e.opts.Bucket,
		RecordingDelay:    e.opts.RecordingDelay,
	}
	if e.rec != nil {
		st.RecordingDelay = e.rec.Delay()
	}
	reg := e.Registry()
	st.PendingPaths = reg.Snapshot()
	st.PendingCount = len(st.PendingPaths)
	st.Pending = reg.Pending()
	return st
}
