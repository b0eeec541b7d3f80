package core

import (
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func exists(t *testing.T, fs afero.Fs, path string) bool {
	t.Helper()
	ok, err := afero.Exists(fs, path)
	require.NoError(t, err)
	return ok
}

func TestPruneEmptyDirs_RemovesEmptyChain(t *testing.T) {
	fs := afero.NewMemMapFs()
	require.NoError(t, fs.MkdirAll("/recordings/s1/2024/05", 0755))

	removed, err := PruneEmptyDirs(fs, "/recordings", "/recordings/s1/2024/05")
	require.NoError(t, err)
	assert.Equal(t, []string{"/recordings/s1/2024/05", "/recordings/s1/2024", "/recordings/s1"}, removed)
	assert.True(t, exists(t, fs, "/recordings"), "root must survive")
	assert.False(t, exists(t, fs, "/recordings/s1"))
}

func TestPruneEmptyDirs_StopsAtNonEmpty(t *testing.T) {
	fs := afero.NewMemMapFs()
	require.NoError(t, fs.MkdirAll("/recordings/s1/2024", 0755))
	require.NoError(t, afero.WriteFile(fs, "/recordings/s1/other.mp4", []byte("x"), 0644))

	removed, err := PruneEmptyDirs(fs, "/recordings", "/recordings/s1/2024")
	require.NoError(t, err)
	assert.Equal(t, []string{"/recordings/s1/2024"}, removed)
	assert.True(t, exists(t, fs, "/recordings/s1/other.mp4"))
}

func TestPruneEmptyDirs_Idempotent(t *testing.T) {
	fs := afero.NewMemMapFs()
	require.NoError(t, fs.MkdirAll("/recordings/s1/2024", 0755))
	require.NoError(t, afero.WriteFile(fs, "/recordings/keep.mp4", []byte("x"), 0644))

	_, err := PruneEmptyDirs(fs, "/recordings", "/recordings/s1/2024")
	require.NoError(t, err)

	removed, err := PruneEmptyDirs(fs, "/recordings", "/recordings/s1/2024")
	require.NoError(t, err)
	assert.Empty(t, removed)
	assert.True(t, exists(t, fs, "/recordings/keep.mp4"))
}

func TestPruneEmptyDirs_NeverLeavesRoot(t *testing.T) {
	fs := afero.NewMemMapFs()
	require.NoError(t, fs.MkdirAll("/recordings", 0755))
	require.NoError(t, fs.MkdirAll("/elsewhere/empty", 0755))

	removed, err := PruneEmptyDirs(fs, "/recordings", "/recordings")
	require.NoError(t, err)
	assert.Empty(t, removed)

	removed, err = PruneEmptyDirs(fs, "/recordings", "/elsewhere/empty")
	require.NoError(t, err)
	assert.Empty(t, removed)
	assert.True(t, exists(t, fs, "/elsewhere/empty"))
}

func TestPruneEmptyDirs_RemoveFailureStopsWalk(t *testing.T) {
	base := afero.NewMemMapFs()
	require.NoError(t, base.MkdirAll("/recordings/s1/2024", 0755))
	fs := afero.NewReadOnlyFs(base)

	removed, err := PruneEmptyDirs(fs, "/recordings", "/recordings/s1/2024")
	var pruneErr *PruneError
	require.ErrorAs(t, err, &pruneErr)
	assert.Equal(t, "/recordings/s1/2024", pruneErr.Dir)
	assert.Empty(t, removed)
	assert.True(t, exists(t, base, "/recordings/s1/2024"))
}
