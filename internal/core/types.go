package core

import (
	"context"
	"io"
	"time"
)

// RootKind identifies which upload policy a watched tree follows.
type RootKind int

const (
	LiveSegments RootKind = iota
	Recordings
)

func (k RootKind) String() string {
	switch k {
	case LiveSegments:
		return "HLS"
	case Recordings:
		return "Recording"
	default:
		return "Unknown"
	}
}

// WatchedRoot is one of the two mirrored directory trees. Immutable after startup.
type WatchedRoot struct {
	Kind      RootKind
	Path      string
	Namespace string
	Enabled   bool

	// A file is settled once its size and mtime stay unchanged for
	// StabilityThreshold, sampled every PollInterval.
	StabilityThreshold time.Duration
	PollInterval       time.Duration

	// IgnoreInitial suppresses events for files already present at startup.
	IgnoreInitial bool
}

type EventKind int

const (
	Created EventKind = iota
	Modified
	Removed
)

func (k EventKind) String() string {
	switch k {
	case Created:
		return "CREATED"
	case Modified:
		return "MODIFIED"
	case Removed:
		return "REMOVED"
	default:
		return "UNKNOWN"
	}
}

// Event is a filesystem notification that has already passed the root's
// stabilization window.
type Event struct {
	Root       WatchedRoot
	Path       string
	Kind       EventKind
	ObservedAt time.Time
}

// PendingUpload is a recording waiting for its delayed upload.
type PendingUpload struct {
	LocalPath   string    `json:"path"`
	ScheduledAt time.Time `json:"scheduledAt"`
	DueAt       time.Time `json:"dueAt"`
	Generation  uint64    `json:"generation"`

	timer Timer
}

// ObjectAttrs are the HTTP attributes stored alongside a remote object.
type ObjectAttrs struct {
	ContentType  string
	CacheControl string
}

// RemoteStore is the object-store client. Retries of transient failures
// are its own business.
type RemoteStore interface {
	Put(ctx context.Context, key string, body io.Reader, size int64, attrs ObjectAttrs, metadata map[string]string) error
	Delete(ctx context.Context, key string) error
}

// Ledger records the outcome of every remote operation.
type Ledger interface {
	RecordUpload(key, localPath, root string, size int64) error
	RecordFailure(key, localPath, root string, cause error) error
	RecordDelete(key, localPath, root string) error
}

type noopLedger struct{}

func (noopLedger) RecordUpload(string, string, string, int64) error { return nil }
func (noopLedger) RecordFailure(string, string, string, error) error { return nil }
func (noopLedger) RecordDelete(string, string, string) error { return nil }
