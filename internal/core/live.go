package core

import (
	"bytes"
	"context"
	"fmt"
	"path/filepath"

	"github.com/spf13/afero"
)

// LivePipeline mirrors the live-segment tree: every settled create or modify
// is uploaded, every remove is deleted remotely. It never writes locally and
// never retries; the next event for the same path is the retry.
type LivePipeline struct {
	root   WatchedRoot
	store  RemoteStore
	fs     afero.Fs
	ledger Ledger
	logger Logger
}

func NewLivePipeline(root WatchedRoot, store RemoteStore, fs afero.Fs, ledger Ledger, logger Logger) *LivePipeline {
	if ledger == nil {
		ledger = noopLedger{}
	}
	return &LivePipeline{root: root, store: store, fs: fs, ledger: ledger, logger: logger}
}

// Handle processes one event. The returned error has already been logged.
func (p *LivePipeline) Handle(ctx context.Context, ev Event) error {
	key, err := MapKey(p.root, ev.Path)
	if err != nil {
		logError(p.logger, "[%s] Refusing %s: %v", p.root.Kind, ev.Path, err)
		return err
	}

	switch ev.Kind {
	case Created, Modified:
		return p.upload(ctx, ev.Path, key)
	case Removed:
		return p.remove(ctx, ev.Path, key)
	}
	return fmt.Errorf("unknown event kind %d", ev.Kind)
}

func (p *LivePipeline) upload(ctx context.Context, localPath, key string) error {
	data, err := afero.ReadFile(p.fs, localPath)
	if err != nil {
		rerr := &LocalReadError{Path: localPath, Err: err}
		debugLog(p.logger, "[%s] Skipping %s: %v", p.root.Kind, filepath.Base(localPath), err)
		return rerr
	}

	attrs := ContentFor(p.root.Kind, localPath)
	if err := p.store.Put(ctx, key, bytes.NewReader(data), int64(len(data)), attrs, nil); err != nil {
		uerr := &UploadError{Key: key, Err: err}
		logError(p.logger, "[%s] Upload error: %s: %v", p.root.Kind, localPath, err)
		p.record(p.ledger.RecordFailure(key, localPath, p.root.Namespace, err))
		return uerr
	}

	logInfo(p.logger, "[%s] Uploaded: %s", p.root.Kind, key)
	p.record(p.ledger.RecordUpload(key, localPath, p.root.Namespace, int64(len(data))))
	return nil
}

func (p *LivePipeline) remove(ctx context.Context, localPath, key string) error {
	if err := p.store.Delete(ctx, key); err != nil {
		logError(p.logger, "[%s] Delete error: %s: %v", p.root.Kind, localPath, err)
		p.record(p.ledger.RecordFailure(key, localPath, p.root.Namespace, err))
		return &UploadError{Key: key, Err: err}
	}

	logInfo(p.logger, "[%s] Deleted: %s", p.root.Kind, key)
	p.record(p.ledger.RecordDelete(key, localPath, p.root.Namespace))
	return nil
}

func (p *LivePipeline) record(err error) {
	if err != nil {
		logWarning(p.logger, "[%s] Ledger write failed: %v", p.root.Kind, err)
	}
}
