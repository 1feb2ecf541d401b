package gcs_test

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"cloud.google.com/go/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/api/option"

	"github.com/JakeFAU/showcase-refresher/internal/storage/gcs"
)

func newTestStore(t *testing.T, handler http.Handler, prefix string) *gcs.BlobStore {
	t.Helper()

	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	client, err := storage.NewClient(context.Background(), option.WithEndpoint(server.URL), option.WithoutAuthentication())
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })

	store, err := gcs.New(client, gcs.Config{Bucket: "test-bucket", Prefix: prefix})
	require.NoError(t, err)
	return store
}

func TestNewValidation(t *testing.T) {
	t.Parallel()

	_, err := gcs.New(nil, gcs.Config{Bucket: "b"})
	require.Error(t, err)

	client, err := storage.NewClient(context.Background(), option.WithoutAuthentication())
	require.NoError(t, err)
	defer client.Close()

	_, err = gcs.New(client, gcs.Config{Bucket: " "})
	require.Error(t, err)

	store, err := gcs.New(client, gcs.Config{Bucket: "b"})
	require.NoError(t, err)
	require.NoError(t, store.Close(), "borrowed clients are not closed")
}

func TestObjectPath(t *testing.T) {
	t.Parallel()

	client, err := storage.NewClient(context.Background(), option.WithoutAuthentication())
	require.NoError(t, err)
	defer client.Close()

	withPrefix, err := gcs.New(client, gcs.Config{Bucket: "b", Prefix: "/showcases/"})
	require.NoError(t, err)
	assert.Equal(t, "showcases/proj-a/Showcase.png", withPrefix.ObjectPath("proj-a/Showcase.png"))

	bare, err := gcs.New(client, gcs.Config{Bucket: "b"})
	require.NoError(t, err)
	assert.Equal(t, "proj-a/Showcase.png", bare.ObjectPath("/proj-a/Showcase.png"))
}

func TestPutObject(t *testing.T) {
	t.Parallel()

	objectData := []byte("webp-bytes")
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Contains(t, r.URL.Path, "/b/test-bucket/o")
		assert.Equal(t, "showcases/proj-a/Showcase.webp", r.URL.Query().Get("name"))

		body, err := io.ReadAll(r.Body)
		assert.NoError(t, err)
		assert.Contains(t, string(body), string(objectData))
		assert.Contains(t, string(body), "image/webp")

		fmt.Fprintln(w, `{"name": "showcases/proj-a/Showcase.webp", "bucket": "test-bucket"}`)
	})

	store := newTestStore(t, handler, "showcases")
	uri, err := store.PutObject(context.Background(), "proj-a/Showcase.webp", "image/webp", bytes.NewReader(objectData))
	require.NoError(t, err)
	assert.Equal(t, "gs://test-bucket/showcases/proj-a/Showcase.webp", uri)
}

func TestPutObjectErrors(t *testing.T) {
	t.Parallel()

	handler := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	})
	store := newTestStore(t, handler, "")

	_, err := store.PutObject(context.Background(), "", "image/png", bytes.NewReader(nil))
	require.Error(t, err)

	_, err = store.PutObject(context.Background(), "proj/Showcase.png", "image/png", bytes.NewReader([]byte("x")))
	require.Error(t, err)
}
