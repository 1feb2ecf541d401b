// Package local_test tests the local mirror.
package local_test

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/showcase-refresher/internal/storage/local"
)

func TestNew(t *testing.T) {
	t.Run("ExistingDir", func(t *testing.T) {
		store, err := local.New(local.Config{Dir: t.TempDir()})
		require.NoError(t, err)
		assert.NotNil(t, store)
	})

	t.Run("CreatesMissingDir", func(t *testing.T) {
		dir := filepath.Join(t.TempDir(), "site", "showcases")
		_, err := local.New(local.Config{Dir: dir})
		require.NoError(t, err)
		info, err := os.Stat(dir)
		require.NoError(t, err)
		assert.True(t, info.IsDir())
	})

	t.Run("MissingDir", func(t *testing.T) {
		_, err := local.New(local.Config{})
		assert.Error(t, err)
	})

	t.Run("PathIsAFile", func(t *testing.T) {
		file := filepath.Join(t.TempDir(), "file")
		require.NoError(t, os.WriteFile(file, []byte("x"), 0o600))
		_, err := local.New(local.Config{Dir: file})
		assert.Error(t, err)
	})
}

func TestPutObject(t *testing.T) {
	dir := t.TempDir()
	store, err := local.New(local.Config{Dir: dir})
	require.NoError(t, err)

	uri, err := store.PutObject(context.Background(), "proj-a/Showcase.webp", "image/webp", strings.NewReader("webp-bytes"))
	require.NoError(t, err)

	want := filepath.Join(dir, "proj-a", "Showcase.webp")
	assert.Equal(t, "file://"+filepath.ToSlash(want), uri)
	got, err := os.ReadFile(want)
	require.NoError(t, err)
	assert.Equal(t, "webp-bytes", string(got))

	// Overwrites in place and leaves no temp files behind.
	_, err = store.PutObject(context.Background(), "proj-a/Showcase.webp", "image/webp", strings.NewReader("newer"))
	require.NoError(t, err)
	got, err = os.ReadFile(want)
	require.NoError(t, err)
	assert.Equal(t, "newer", string(got))
	entries, err := os.ReadDir(filepath.Join(dir, "proj-a"))
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestPutObjectAppliesPrefix(t *testing.T) {
	dir := t.TempDir()
	store, err := local.New(local.Config{Dir: dir, Prefix: "/showcases/"})
	require.NoError(t, err)

	uri, err := store.PutObject(context.Background(), "proj-a/Showcase.png", "image/png", strings.NewReader("png"))
	require.NoError(t, err)

	want := filepath.Join(dir, "showcases", "proj-a", "Showcase.png")
	assert.Equal(t, "file://"+filepath.ToSlash(want), uri)
	got, err := os.ReadFile(want)
	require.NoError(t, err)
	assert.Equal(t, "png", string(got))

	_, err = store.PutObject(context.Background(), "../../outside.png", "image/png", strings.NewReader("x"))
	assert.Error(t, err)
}

func TestPutObjectRejectsEscapes(t *testing.T) {
	store, err := local.New(local.Config{Dir: t.TempDir()})
	require.NoError(t, err)

	for _, name := range []string{"", "../outside.png", "a/../../outside.png"} {
		_, err := store.PutObject(context.Background(), name, "image/png", strings.NewReader("x"))
		assert.Error(t, err, name)
	}
}
