package core

import (
	"context"
	"errors"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newLive(t *testing.T) (*LivePipeline, afero.Fs, *fakeStore, *fakeLedger, *captureLogger) {
	t.Helper()
	fs := afero.NewMemMapFs()
	store := &fakeStore{}
	ledger := &fakeLedger{}
	logger := &captureLogger{}
	return NewLivePipeline(liveRoot, store, fs, ledger, logger), fs, store, ledger, logger
}

func TestLivePipeline_UploadsManifestAndSegments(t *testing.T) {
	p, fs, store, _, _ := newLive(t)
	require.NoError(t, afero.WriteFile(fs, "/hls/stream1/index.m3u8", []byte("#EXTM3U"), 0644))
	require.NoError(t, afero.WriteFile(fs, "/hls/stream1/seg3.ts", []byte("ts"), 0644))

	ctx := context.Background()
	require.NoError(t, p.Handle(ctx, Event{Root: liveRoot, Path: "/hls/stream1/index.m3u8", Kind: Created}))
	require.NoError(t, p.Handle(ctx, Event{Root: liveRoot, Path: "/hls/stream1/seg3.ts", Kind: Created}))

	puts := store.Puts()
	require.Len(t, puts, 2)
	assert.Equal(t, "hls/stream1/index.m3u8", puts[0].Key)
	assert.Equal(t, []byte("#EXTM3U"), puts[0].Body)
	assert.Equal(t, ObjectAttrs{ContentType: ManifestContentType, CacheControl: "no-cache, no-store"}, puts[0].Attrs)
	assert.Nil(t, puts[0].Metadata)

	assert.Equal(t, "hls/stream1/seg3.ts", puts[1].Key)
	assert.Equal(t, ObjectAttrs{ContentType: SegmentContentType, CacheControl: "max-age=31536000"}, puts[1].Attrs)
}

func TestLivePipeline_ModifiedReuploads(t *testing.T) {
	p, fs, store, _, _ := newLive(t)
	path := "/hls/stream1/index.m3u8"
	ctx := context.Background()

	require.NoError(t, afero.WriteFile(fs, path, []byte("v1"), 0644))
	require.NoError(t, p.Handle(ctx, Event{Root: liveRoot, Path: path, Kind: Created}))
	require.NoError(t, afero.WriteFile(fs, path, []byte("v2"), 0644))
	require.NoError(t, p.Handle(ctx, Event{Root: liveRoot, Path: path, Kind: Modified}))

	puts := store.Puts()
	require.Len(t, puts, 2)
	assert.Equal(t, []byte("v2"), puts[1].Body)
}

func TestLivePipeline_RemovedDeletesRemote(t *testing.T) {
	p, fs, store, ledger, _ := newLive(t)

	require.NoError(t, p.Handle(context.Background(), Event{Root: liveRoot, Path: "/hls/stream1/seg3.ts", Kind: Removed}))

	assert.Equal(t, []string{"hls/stream1/seg3.ts"}, store.Deletes())
	assert.Empty(t, store.Puts())
	assert.Equal(t, "delete", ledger.Calls()[0].Op)
	ok, _ := afero.Exists(fs, "/hls/stream1/seg3.ts")
	assert.False(t, ok)
}

func TestLivePipeline_ErrorsAreLoggedNotRetried(t *testing.T) {
	p, fs, store, ledger, logger := newLive(t)
	store.putErr = errors.New("connection reset")
	store.deleteErr = errors.New("access denied")
	require.NoError(t, afero.WriteFile(fs, "/hls/s/seg1.ts", []byte("x"), 0644))
	ctx := context.Background()

	err := p.Handle(ctx, Event{Root: liveRoot, Path: "/hls/s/seg1.ts", Kind: Created})
	var upErr *UploadError
	require.ErrorAs(t, err, &upErr)
	assert.Equal(t, "hls/s/seg1.ts", upErr.Key)

	err = p.Handle(ctx, Event{Root: liveRoot, Path: "/hls/s/seg0.ts", Kind: Removed})
	require.ErrorAs(t, err, &upErr)

	assert.Len(t, store.Puts(), 1)
	assert.Len(t, store.Deletes(), 1)
	assert.Len(t, ledger.Calls(), 2)
	errorLines := 0
	for _, line := range logger.Lines() {
		if len(line) > 5 && line[:5] == "ERROR" {
			errorLines++
		}
	}
	assert.Equal(t, 2, errorLines)
}

func TestLivePipeline_VanishedFile(t *testing.T) {
	p, _, store, _, _ := newLive(t)

	err := p.Handle(context.Background(), Event{Root: liveRoot, Path: "/hls/s/gone.ts", Kind: Modified})
	var readErr *LocalReadError
	require.ErrorAs(t, err, &readErr)
	assert.Empty(t, store.Puts())
}

func TestLivePipeline_RejectsPathOutsideRoot(t *testing.T) {
	p, _, store, _, _ := newLive(t)

	err := p.Handle(context.Background(), Event{Root: liveRoot, Path: "/recordings/a.ts", Kind: Removed})
	assert.ErrorIs(t, err, ErrInvalidPath)
	assert.Empty(t, store.Deletes())
}
