package main

import (
	"bytes"
	"compress/gzip"
	"context"
	"image/color"
	"image/png"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func pngBytes(t *testing.T, w, h int, c color.RGBA) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, solid(w, h, c)))
	return buf.Bytes()
}

func tileServer(t *testing.T) *httptest.Server {
	tile := pngBytes(t, 256, 256, red)
	mux := http.NewServeMux()
	mux.HandleFunc("/ok", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "image/png")
		w.Write(tile)
	})
	mux.HandleFunc("/empty", func(w http.ResponseWriter, r *http.Request) {})
	mux.HandleFunc("/garbage", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("not an image"))
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func TestHTTPFetcher(t *testing.T) {
	srv := tileServer(t)
	f := &HTTPFetcher{Client: srv.Client()}

	data, err := f.Fetch(context.Background(), srv.URL+"/ok")
	require.NoError(t, err)
	assert.NotEmpty(t, data)

	_, err = f.Fetch(context.Background(), srv.URL+"/missing")
	assert.EqualError(t, err, "status code: 404")

	_, err = f.Fetch(context.Background(), srv.URL+"/empty")
	assert.Error(t, err)
}

func TestSchemeFetcher(t *testing.T) {
	hit := ""
	route := func(name string) Fetcher {
		return FetcherFunc(func(ctx context.Context, url string) ([]byte, error) {
			hit = name
			return []byte{1}, nil
		})
	}
	f := &SchemeFetcher{
		Routes: map[string]Fetcher{
			"mbtiles:":   route("mbtiles"),
			"mbtiles:0/": route("zoom0"),
		},
		Default: route("http"),
	}
	_, err := f.Fetch(context.Background(), "mbtiles:0/1/2")
	require.NoError(t, err)
	assert.Equal(t, "zoom0", hit)
	_, err = f.Fetch(context.Background(), "mbtiles:3/1/2")
	require.NoError(t, err)
	assert.Equal(t, "mbtiles", hit)
	_, err = f.Fetch(context.Background(), "https://example.com/a.png")
	require.NoError(t, err)
	assert.Equal(t, "http", hit)

	_, err = (&SchemeFetcher{}).Fetch(context.Background(), "https://example.com/a.png")
	assert.Error(t, err)
}

func receive(t *testing.T, l *Loader) loadResult {
	t.Helper()
	select {
	case res := <-l.Results():
		l.done(res.task)
		return res
	case <-time.After(5 * time.Second):
		t.Fatal("no load result")
	}
	return loadResult{}
}

func TestLoaderResults(t *testing.T) {
	srv := tileServer(t)
	l := NewLoader(&HTTPFetcher{Client: srv.Client()}, nil, 2, 0)

	task := l.Start("A", srv.URL+"/ok")
	res := receive(t, l)
	assert.Same(t, task, res.task)
	require.NoError(t, res.err)
	assert.Equal(t, 256, res.bitmap.Bounds().Dx())
	assert.Equal(t, red, res.bitmap.RGBAAt(10, 10))

	l.Start("A", srv.URL+"/missing")
	res = receive(t, l)
	assert.ErrorIs(t, res.err, ErrTileFetch)
	assert.Nil(t, res.bitmap)

	l.Start("A", srv.URL+"/garbage")
	res = receive(t, l)
	assert.ErrorIs(t, res.err, ErrTileDecode)
	assert.Zero(t, l.Pending())
}

func TestLoaderCancel(t *testing.T) {
	started := make(chan struct{})
	f := FetcherFunc(func(ctx context.Context, url string) ([]byte, error) {
		close(started)
		<-ctx.Done()
		return nil, ctx.Err()
	})
	l := NewLoader(f, nil, 1, 0)
	task := l.Start("A", "slow")
	assert.Equal(t, 1, l.Pending())
	<-started
	task.Cancel()
	assert.Zero(t, l.Pending())

	select {
	case res := <-l.Results():
		t.Fatalf("cancelled task delivered %v", res.err)
	case <-time.After(100 * time.Millisecond):
	}
}

func TestLoaderTimeout(t *testing.T) {
	f := FetcherFunc(func(ctx context.Context, url string) ([]byte, error) {
		<-ctx.Done()
		return nil, ctx.Err()
	})
	l := NewLoader(f, nil, 1, 20*time.Millisecond)
	l.Start("A", "slow")
	res := receive(t, l)
	assert.ErrorIs(t, res.err, ErrTileFetch)
	assert.ErrorIs(t, res.err, context.DeadlineExceeded)
}

func TestLoaderUsesCache(t *testing.T) {
	cache, err := NewBitmapCache(1 << 20)
	require.NoError(t, err)
	defer cache.Close()
	cache.Set("cached", solid(4, 4, green))

	f := FetcherFunc(func(ctx context.Context, url string) ([]byte, error) {
		t.Errorf("unexpected fetch of %s", url)
		return nil, context.Canceled
	})
	l := NewLoader(f, cache, 1, 0)
	l.Start("A", "cached")
	res := receive(t, l)
	require.NoError(t, res.err)
	assert.Equal(t, green, res.bitmap.RGBAAt(0, 0))
}

func TestDecodeBitmapGzip(t *testing.T) {
	var buf bytes.Buffer
	zw := gzip.NewWriter(&buf)
	_, err := zw.Write(pngBytes(t, 8, 4, blue))
	require.NoError(t, err)
	require.NoError(t, zw.Close())

	bm, err := decodeBitmap(buf.Bytes())
	require.NoError(t, err)
	assert.Equal(t, 8, bm.Bounds().Dx())
	assert.Equal(t, 4, bm.Bounds().Dy())
	assert.Equal(t, blue, bm.RGBAAt(7, 3))

	_, err = decodeBitmap([]byte{0x1f, 0x8b, 0x00})
	assert.Error(t, err)
}
