package core

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubTimer struct{ stopped bool }

func (t *stubTimer) Stop() bool {
	was := !t.stopped
	t.stopped = true
	return was
}

func TestRegistry_AddRemoveSnapshot(t *testing.T) {
	r := NewRegistry()
	r.Add(PendingUpload{LocalPath: "/recordings/b.mp4", Generation: 1})
	r.Add(PendingUpload{LocalPath: "/recordings/a.mp4", Generation: 2})

	assert.Equal(t, 2, r.Size())
	assert.Equal(t, []string{"/recordings/a.mp4", "/recordings/b.mp4"}, r.Snapshot())

	r.Remove("/recordings/b.mp4")
	r.Remove("/recordings/missing.mp4")
	assert.Equal(t, []string{"/recordings/a.mp4"}, r.Snapshot())
}

func TestRegistry_SupersedeBumpsGeneration(t *testing.T) {
	r := NewRegistry()
	first := &stubTimer{}

	gen1, replaced := r.Supersede(PendingUpload{LocalPath: "/r/a.mp4"}, func(uint64) Timer { return first })
	assert.False(t, replaced)

	gen2, replaced := r.Supersede(PendingUpload{LocalPath: "/r/a.mp4"}, func(uint64) Timer { return &stubTimer{} })
	assert.True(t, replaced)
	assert.Greater(t, gen2, gen1)
	assert.True(t, first.stopped, "superseded timer should be stopped")
	assert.Equal(t, 1, r.Size())

	assert.False(t, r.Claim("/r/a.mp4", gen1), "stale generation must not claim")
	assert.Equal(t, 1, r.Size())

	assert.True(t, r.Claim("/r/a.mp4", gen2))
	assert.Equal(t, 0, r.Size())
	assert.False(t, r.Claim("/r/a.mp4", gen2), "claim is one-shot")
}

func TestRegistry_GenerationsAreGlobalAndMonotonic(t *testing.T) {
	r := NewRegistry()
	var last uint64
	for _, p := range []string{"/a.mp4", "/b.mp4", "/a.mp4", "/c.mp4"} {
		gen, _ := r.Supersede(PendingUpload{LocalPath: p}, func(uint64) Timer { return nil })
		assert.Greater(t, gen, last)
		last = gen
	}
}

func TestRegistry_PendingCopies(t *testing.T) {
	r := NewRegistry()
	due := time.Date(2024, 1, 1, 0, 10, 0, 0, time.UTC)
	r.Add(PendingUpload{LocalPath: "/r/a.mp4", DueAt: due, Generation: 7, timer: &stubTimer{}})

	pending := r.Pending()
	require.Len(t, pending, 1)
	assert.Equal(t, due, pending[0].DueAt)
	assert.Equal(t, uint64(7), pending[0].Generation)
	assert.Nil(t, pending[0].timer)

	entry, ok := r.Lookup("/r/a.mp4")
	require.True(t, ok)
	assert.Equal(t, uint64(7), entry.Generation)
}

func TestRegistry_Drain(t *testing.T) {
	r := NewRegistry()
	t1, t2 := &stubTimer{}, &stubTimer{}
	r.Add(PendingUpload{LocalPath: "/r/b.mp4", timer: t1})
	r.Add(PendingUpload{LocalPath: "/r/a.mp4", timer: t2})

	assert.Equal(t, []string{"/r/a.mp4", "/r/b.mp4"}, r.Drain())
	assert.True(t, t1.stopped)
	assert.True(t, t2.stopped)
	assert.Equal(t, 0, r.Size())
}

func TestRegistry_ConcurrentAccess(t *testing.T) {
	r := NewRegistry()
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			gen, _ := r.Supersede(PendingUpload{LocalPath: "/r/a.mp4"}, func(uint64) Timer { return nil })
			r.Claim("/r/a.mp4", gen)
		}()
		go func() {
			defer wg.Done()
			_ = r.Snapshot()
			_ = r.Size()
		}()
	}
	wg.Wait()
	assert.LessOrEqual(t, r.Size(), 1)
}
