package logging

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"

	"gopkg.in/natefinch/lumberjack.v2"
)

type Options struct {
	// File, when set, receives a rotated copy of everything logged.
	File       string
	MaxSizeMB  int
	MaxBackups int
	Debug      bool

	// Stdout and Stderr default to the process streams.
	Stdout io.Writer
	Stderr io.Writer

	// FileOnly drops console output, for when another sink (the service
	// manager's log) already covers it.
	FileOnly bool
}

// Logger adapts slog to the Info/Warning/Error shape used by the service
// manager, so the agent logs the same way in the foreground and as a service.
type Logger struct {
	l    *slog.Logger
	file *lumberjack.Logger
}

func New(opts Options) *Logger {
	level := slog.LevelInfo
	if opts.Debug {
		level = slog.LevelDebug
	}
	stdout, stderr := opts.Stdout, opts.Stderr
	if stdout == nil {
		stdout = os.Stdout
	}
	if stderr == nil {
		stderr = os.Stderr
	}

	var handlers []slog.Handler
	if !opts.FileOnly {
		handlers = append(handlers, &consoleHandler{
			level:  level,
			stdout: slog.NewTextHandler(stdout, &slog.HandlerOptions{Level: level}),
			stderr: slog.NewTextHandler(stderr, &slog.HandlerOptions{Level: slog.LevelWarn}),
		})
	}

	lg := &Logger{}
	if opts.File != "" {
		lg.file = &lumberjack.Logger{
			Filename:   opts.File,
			MaxSize:    opts.MaxSizeMB,
			MaxBackups: opts.MaxBackups,
		}
		handlers = append(handlers, slog.NewJSONHandler(lg.file, &slog.HandlerOptions{Level: level}))
	}

	lg.l = slog.New(&multiHandler{handlers: handlers})
	return lg
}

// Slog exposes the underlying structured logger.
func (lg *Logger) Slog() *slog.Logger { return lg.l }

// Close flushes and closes the rotated log file, if any.
func (lg *Logger) Close() error {
	if lg.file == nil {
		return nil
	}
	return lg.file.Close()
}

func (lg *Logger) Info(v ...interface{}) error {
	lg.l.Info(fmt.Sprint(v...))
	return nil
}

func (lg *Logger) Infof(format string, v ...interface{}) error {
	lg.l.Info(fmt.Sprintf(format, v...))
	return nil
}

func (lg *Logger) Warning(v ...interface{}) error {
	lg.l.Warn(fmt.Sprint(v...))
	return nil
}

func (lg *Logger) Warningf(format string, v ...interface{}) error {
	lg.l.Warn(fmt.Sprintf(format, v...))
	return nil
}

func (lg *Logger) Error(v ...interface{}) error {
	lg.l.Error(fmt.Sprint(v...))
	return nil
}

func (lg *Logger) Errorf(format string, v ...interface{}) error {
	lg.l.Error(fmt.Sprintf(format, v...))
	return nil
}

// Sink is the Info/Warning/Error logger shape shared by Logger and the
// service manager's logger.
type Sink interface {
	Info(v ...interface{}) error
	Infof(format string, v ...interface{}) error
	Warning(v ...interface{}) error
	Warningf(format string, v ...interface{}) error
	Error(v ...interface{}) error
	Errorf(format string, v ...interface{}) error
}

// Tee sends every call to each sink and returns the first error.
type Tee []Sink

func (t Tee) each(fn func(Sink) error) error {
	var first error
	for _, s := range t {
		if err := fn(s); err != nil && first == nil {
			first = err
		}
	}
	return first
}

func (t Tee) Info(v ...interface{}) error {
	return t.each(func(s Sink) error { return s.Info(v...) })
}

func (t Tee) Infof(format string, v ...interface{}) error {
	return t.each(func(s Sink) error { return s.Infof(format, v...) })
}

func (t Tee) Warning(v ...interface{}) error {
	return t.each(func(s Sink) error { return s.Warning(v...) })
}

func (t Tee) Warningf(format string, v ...interface{}) error {
	return t.each(func(s Sink) error { return s.Warningf(format, v...) })
}

func (t Tee) Error(v ...interface{}) error {
	return t.each(func(s Sink) error { return s.Error(v...) })
}

func (t Tee) Errorf(format string, v ...interface{}) error {
	return t.each(func(s Sink) error { return s.Errorf(format, v...) })
}

// consoleHandler routes INFO and below to stdout, WARN and above to stderr.
type consoleHandler struct {
	level  slog.Level
	stdout slog.Handler
	stderr slog.Handler
}

func (h *consoleHandler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.level
}

func (h *consoleHandler) Handle(ctx context.Context, r slog.Record) error {
	if r.Level >= slog.LevelWarn {
		return h.stderr.Handle(ctx, r)
	}
	return h.stdout.Handle(ctx, r)
}

func (h *consoleHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &consoleHandler{level: h.level, stdout: h.stdout.WithAttrs(attrs), stderr: h.stderr.WithAttrs(attrs)}
}

func (h *consoleHandler) WithGroup(name string) slog.Handler {
	return &consoleHandler{level: h.level, stdout: h.stdout.WithGroup(name), stderr: h.stderr.WithGroup(name)}
}

type multiHandler struct {
	handlers []slog.Handler
}

func (h *multiHandler) Enabled(ctx context.Context, level slog.Level) bool {
	for _, hh := range h.handlers {
		if hh.Enabled(ctx, level) {
			return true
		}
	}
	return false
}

func (h *multiHandler) Handle(ctx context.Context, r slog.Record) error {
	for _, hh := range h.handlers {
		if hh.Enabled(ctx, r.Level) {
			if err := hh.Handle(ctx, r.Clone()); err != nil {
				return err
			}
		}
	}
	return nil
}

func (h *multiHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	hs := make([]slog.Handler, len(h.handlers))
	for i, hh := range h.handlers {
		hs[i] = hh.WithAttrs(attrs)
	}
	return &multiHandler{handlers: hs}
}

func (h *multiHandler) WithGroup(name string) slog.Handler {
	hs := make([]slog.Handler, len(h.handlers))
	for i, hh := range h.handlers {
		hs[i] = hh.WithGroup(name)
	}
	return &multiHandler{handlers: hs}
}
