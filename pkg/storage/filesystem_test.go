package storage

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *MediaStore {
	t.Helper()
	store, err := NewMediaStore(t.TempDir())
	require.NoError(t, err)
	return store
}

func TestMediaStoreRoundTrip(t *testing.T) {
	store := newTestStore(t)
	require.NoError(t, os.WriteFile(filepath.Join(store.baseDir, "lesson.mp4"), []byte("mp4-bytes"), 0o644))

	assert.True(t, store.Exists("lesson.mp4"))

	size, err := store.Size("lesson.mp4")
	require.NoError(t, err)
	assert.Equal(t, int64(9), size)

	file, err := store.Open("lesson.mp4")
	require.NoError(t, err)
	require.NoError(t, file.Close())

	require.NoError(t, store.Delete("lesson.mp4"))
	assert.False(t, store.Exists("lesson.mp4"))
}

func TestMediaStoreRejectsEscapingPaths(t *testing.T) {
	store := newTestStore(t)

	outside := filepath.Join(filepath.Dir(store.baseDir), "secret.txt")
	require.NoError(t, os.WriteFile(outside, []byte("secret"), 0o644))

	for _, name := range []string{
		"../secret.txt",
		"sub/../../secret.txt",
		"..",
		outside,
		"",
	} {
		assert.False(t, store.Exists(name), "name %q", name)

		_, err := store.Open(name)
		assert.Error(t, err, "name %q", name)

		_, err = store.Size(name)
		assert.Error(t, err, "name %q", name)

		assert.Error(t, store.Delete(name), "name %q", name)
	}

	data, err := os.ReadFile(outside)
	require.NoError(t, err)
	assert.Equal(t, "secret", string(data))
}

func TestMediaStoreAllowsNestedNames(t *testing.T) {
	store := newTestStore(t)
	require.NoError(t, os.MkdirAll(filepath.Join(store.baseDir, "thumbs"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(store.baseDir, "thumbs", "v1.jpg"), []byte("jpg"), 0o644))

	assert.True(t, store.Exists("thumbs/v1.jpg"))
	assert.True(t, store.Exists("./thumbs/v1.jpg"))
}
