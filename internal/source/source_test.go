package source

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHTTPFetcherResolvesRelative(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/site/data/rome/cdi.csv" {
			_, _ = w.Write([]byte("id,CDI\n"))
			return
		}
		http.NotFound(w, r)
	}))
	defer srv.Close()

	f, err := NewHTTPFetcher(srv.URL+"/site", nil)
	require.NoError(t, err)
	b, err := f.Fetch(context.Background(), "data/rome/cdi.csv")
	require.NoError(t, err)
	assert.Equal(t, "id,CDI\n", string(b))

	_, err = f.Fetch(context.Background(), "data/milan/cdi.csv")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrNotFound)
	var se *StatusError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, 404, se.Status)
}

func TestHTTPFetcherServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()
	f, err := NewHTTPFetcher(srv.URL, nil)
	require.NoError(t, err)
	_, err = f.Fetch(context.Background(), "x")
	var se *StatusError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, http.StatusBadGateway, se.Status)
	assert.False(t, errors.Is(err, ErrNotFound))
}

func TestDirFetcherStaysInsideRoot(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, "data"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(root, "data", "index.json"), []byte(`[]`), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(filepath.Dir(root), "secret.txt"), []byte("x"), 0o644))

	f := NewDirFetcher(root)
	b, err := f.Fetch(context.Background(), "data/index.json")
	require.NoError(t, err)
	assert.Equal(t, "[]", string(b))

	_, err = f.Fetch(context.Background(), "../secret.txt")
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = f.Fetch(context.Background(), "https://example.com/x")
	assert.Error(t, err)
}

func TestCachedFetcherHitsMemory(t *testing.T) {
	var calls atomic.Int32
	next := FetcherFunc(func(ctx context.Context, ref string) ([]byte, error) {
		calls.Add(1)
		return []byte("body:" + ref), nil
	})
	c := NewCachedFetcher(next, CacheOptions{Size: 4})
	for i := 0; i < 3; i++ {
		b, err := c.Fetch(context.Background(), "a")
		require.NoError(t, err)
		assert.Equal(t, "body:a", string(b))
	}
	assert.EqualValues(t, 1, calls.Load())

	c.Purge()
	_, err := c.Fetch(context.Background(), "a")
	require.NoError(t, err)
	assert.EqualValues(t, 2, calls.Load())
}

func TestCachedFetcherDoesNotCacheErrors(t *testing.T) {
	var calls atomic.Int32
	next := FetcherFunc(func(ctx context.Context, ref string) ([]byte, error) {
		calls.Add(1)
		return nil, ErrNotFound
	})
	c := NewCachedFetcher(next, CacheOptions{})
	_, err := c.Fetch(context.Background(), "a")
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = c.Fetch(context.Background(), "a")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.EqualValues(t, 2, calls.Load())
}

func TestLoadWrapsKind(t *testing.T) {
	f := FetcherFunc(func(ctx context.Context, ref string) ([]byte, error) { return nil, ErrNotFound })
	_, err := Load(context.Background(), f, KindTable, "data/x.csv")
	require.Error(t, err)
	assert.True(t, IsKind(err, KindTable))
	assert.False(t, IsKind(err, KindGeometry))
	assert.ErrorIs(t, err, ErrNotFound)
}
