package core

import (
	"context"
	"fmt"
	"io"
	"sync"
	"time"
)

// fakeClock fires timers only when Advance moves past their due time.
type fakeClock struct {
	mu     sync.Mutex
	now    time.Time
	timers []*fakeTimer

	// ignoreStop models a timer facility whose cancel is unreliable.
	ignoreStop bool
}

type fakeTimer struct {
	clock   *fakeClock
	due     time.Time
	f       func()
	stopped bool
	fired   bool
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) AfterFunc(d time.Duration, f func()) Timer {
	c.mu.Lock()
	defer c.mu.Unlock()
	t := &fakeTimer{clock: c, due: c.now.Add(d), f: f}
	c.timers = append(c.timers, t)
	return t
}

func (t *fakeTimer) Stop() bool {
	t.clock.mu.Lock()
	defer t.clock.mu.Unlock()
	if t.clock.ignoreStop {
		return false
	}
	active := !t.stopped && !t.fired
	t.stopped = true
	return active
}

// Advance moves time forward by d, running due callbacks in due order.
func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	target := c.now.Add(d)
	c.mu.Unlock()

	for {
		c.mu.Lock()
		var next *fakeTimer
		for _, t := range c.timers {
			if t.stopped || t.fired || t.due.After(target) {
				continue
			}
			if next == nil || t.due.Before(next.due) {
				next = t
			}
		}
		if next == nil {
			c.now = target
			c.mu.Unlock()
			return
		}
		c.now = next.due
		next.fired = true
		c.mu.Unlock()

		next.f()
	}
}

type putCall struct {
	Key      string
	Body     []byte
	Size     int64
	Attrs    ObjectAttrs
	Metadata map[string]string
}

type fakeStore struct {
	mu        sync.Mutex
	puts      []putCall
	deletes   []string
	putErr    error
	deleteErr error
}

func (s *fakeStore) Put(_ context.Context, key string, body io.Reader, size int64, attrs ObjectAttrs, metadata map[string]string) error {
	data, err := io.ReadAll(body)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.puts = append(s.puts, putCall{Key: key, Body: data, Size: size, Attrs: attrs, Metadata: metadata})
	return s.putErr
}

func (s *fakeStore) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.deletes = append(s.deletes, key)
	return s.deleteErr
}

func (s *fakeStore) Puts() []putCall {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]putCall(nil), s.puts...)
}

func (s *fakeStore) Deletes() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.deletes...)
}

type ledgerCall struct {
	Op, Key, Path, Root string
}

type fakeLedger struct {
	mu    sync.Mutex
	calls []ledgerCall
}

func (l *fakeLedger) add(op, key, path, root string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.calls = append(l.calls, ledgerCall{Op: op, Key: key, Path: path, Root: root})
	return nil
}

func (l *fakeLedger) RecordUpload(key, path, root string, _ int64) error {
	return l.add("upload", key, path, root)
}

func (l *fakeLedger) RecordFailure(key, path, root string, _ error) error {
	return l.add("failure", key, path, root)
}

func (l *fakeLedger) RecordDelete(key, path, root string) error {
	return l.add("delete", key, path, root)
}

func (l *fakeLedger) Calls() []ledgerCall {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]ledgerCall(nil), l.calls...)
}

type captureLogger struct {
	mu    sync.Mutex
	lines []string
}

func (l *captureLogger) log(level, msg string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.lines = append(l.lines, level+" "+msg)
	return nil
}

func (l *captureLogger) Info(v ...interface{}) error    { return l.log("INFO", fmt.Sprint(v...)) }
func (l *captureLogger) Error(v ...interface{}) error   { return l.log("ERROR", fmt.Sprint(v...)) }
func (l *captureLogger) Warning(v ...interface{}) error { return l.log("WARN", fmt.Sprint(v...)) }
func (l *captureLogger) Infof(f string, v ...interface{}) error {
	return l.log("INFO", fmt.Sprintf(f, v...))
}
func (l *captureLogger) Errorf(f string, v ...interface{}) error {
	return l.log("ERROR", fmt.Sprintf(f, v...))
}
func (l *captureLogger) Warningf(f string, v ...interface{}) error {
	return l.log("WARN", fmt.Sprintf(f, v...))
}

func (l *captureLogger) Lines() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]string(nil), l.lines...)
}

var (
	liveRoot = WatchedRoot{Kind: LiveSegments, Path: "/hls", Namespace: "hls", Enabled: true}
	recRoot  = WatchedRoot{Kind: Recordings, Path: "/recordings", Namespace: "recordings", Enabled: true}
)
