package main

import (
	"bytes"
	"compress/gzip"
	"context"
	"errors"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"io"
	"net/http"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"
	"golang.org/x/image/draw"
	_ "golang.org/x/image/webp"
)

// Tile loading errors, surfaced through TileLoadingError events.
var (
	ErrTileFetch  = errors.New("tile fetch failed")
	ErrTileDecode = errors.New("tile decode failed")
)

//Fetcher 瓦片数据获取
type Fetcher interface {
	Fetch(ctx context.Context, url string) ([]byte, error)
}

//FetcherFunc 函数形式的 Fetcher
type FetcherFunc func(ctx context.Context, url string) ([]byte, error)

//Fetch implements Fetcher
func (f FetcherFunc) Fetch(ctx context.Context, url string) ([]byte, error) {
	return f(ctx, url)
}

//HTTPFetcher 通过 HTTP 获取瓦片
type HTTPFetcher struct {
	Client *http.Client
}

//Fetch implements Fetcher
func (f *HTTPFetcher) Fetch(ctx context.Context, url string) ([]byte, error) {
	client := f.Client
	if client == nil {
		client = http.DefaultClient
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("status code: %d", resp.StatusCode)
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if len(body) == 0 {
		return nil, errors.New("zero byte tile")
	}
	return body, nil
}

//SchemeFetcher 按 URL 前缀选择 Fetcher, 最长前缀优先
type SchemeFetcher struct {
	Routes  map[string]Fetcher
	Default Fetcher
}

//Fetch implements Fetcher
func (f *SchemeFetcher) Fetch(ctx context.Context, url string) ([]byte, error) {
	var chosen Fetcher
	longest := -1
	for prefix, route := range f.Routes {
		if strings.HasPrefix(url, prefix) && len(prefix) > longest {
			chosen, longest = route, len(prefix)
		}
	}
	if chosen == nil {
		chosen = f.Default
	}
	if chosen == nil {
		return nil, fmt.Errorf("no fetcher for %s", url)
	}
	return chosen.Fetch(ctx, url)
}

// loadTask is the cancellable handle of one in-flight tile load.
type loadTask struct {
	loader *Loader
	mapID  string
	url    string
	ctx    context.Context
	cancel context.CancelFunc
}

//Cancel 取消加载, 迟到的结果被丢弃
func (t *loadTask) Cancel() {
	t.cancel()
	delete(t.loader.pending, t)
}

type loadResult struct {
	task   *loadTask
	bitmap *image.RGBA
	err    error
}

//Loader 瓦片加载器, 每个瓦片一个 goroutine, workers 限制并发获取数
type Loader struct {
	fetcher Fetcher
	cache   *BitmapCache
	timeout time.Duration
	workers chan struct{}
	results chan loadResult
	pending map[*loadTask]struct{} //owner goroutine only
}

//NewLoader 创建加载器, cache 可为空, timeout 为 0 表示不超时
func NewLoader(fetcher Fetcher, cache *BitmapCache, workers int, timeout time.Duration) *Loader {
	if workers <= 0 {
		workers = 1
	}
	return &Loader{
		fetcher: fetcher,
		cache:   cache,
		timeout: timeout,
		workers: make(chan struct{}, workers),
		results: make(chan loadResult, workers*4),
		pending: make(map[*loadTask]struct{}),
	}
}

//Start 启动异步加载并立即返回任务句柄
func (l *Loader) Start(mapID, url string) *loadTask {
	ctx, cancel := context.WithCancel(context.Background())
	t := &loadTask{loader: l, mapID: mapID, url: url, ctx: ctx, cancel: cancel}
	l.pending[t] = struct{}{}
	go l.run(t)
	return t
}

//Results 加载结果通道, 只由持有者 goroutine 读取
func (l *Loader) Results() <-chan loadResult {
	return l.results
}

//Pending 未完成且未取消的任务数
func (l *Loader) Pending() int {
	return len(l.pending)
}

//done 结果已被持有者接收
func (l *Loader) done(t *loadTask) {
	delete(l.pending, t)
}

func (l *Loader) run(t *loadTask) {
	bitmap, err := l.load(t)
	if t.ctx.Err() != nil {
		return
	}
	select {
	case l.results <- loadResult{task: t, bitmap: bitmap, err: err}:
	case <-t.ctx.Done():
	}
}

func (l *Loader) load(t *loadTask) (*image.RGBA, error) {
	if bm, ok := l.cache.Get(t.url); ok {
		return bm, nil
	}

	select {
	case l.workers <- struct{}{}:
	case <-t.ctx.Done():
		return nil, t.ctx.Err()
	}
	defer func() {
		<-l.workers
	}()

	ctx := t.ctx
	if l.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, l.timeout)
		defer cancel()
	}

	start := time.Now()
	data, err := l.fetcher.Fetch(ctx, t.url)
	if err != nil {
		if t.ctx.Err() == nil {
			log.Errorf("fetch %s error, details: %s ~", t.url, err)
		}
		return nil, fmt.Errorf("%w: %s: %w", ErrTileFetch, t.url, err)
	}
	bm, err := decodeBitmap(data)
	if err != nil {
		log.Errorf("decode %s error, details: %s ~", t.url, err)
		return nil, fmt.Errorf("%w: %s: %w", ErrTileDecode, t.url, err)
	}
	l.cache.Set(t.url, bm)
	log.Debugf("tile %s, %.3fs, %.2f kb ~", t.url, time.Since(start).Seconds(), float32(len(data))/1024.0)
	return bm, nil
}

//decodeBitmap 解码 png/jpeg/webp (可 gzip 压缩) 为以原点为起点的 RGBA
func decodeBitmap(data []byte) (*image.RGBA, error) {
	if len(data) > 2 && data[0] == 0x1f && data[1] == 0x8b {
		zr, err := gzip.NewReader(bytes.NewReader(data))
		if err != nil {
			return nil, err
		}
		defer zr.Close()
		if data, err = io.ReadAll(zr); err != nil {
			return nil, err
		}
	}
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	b := img.Bounds()
	if rgba, ok := img.(*image.RGBA); ok && b.Min == (image.Point{}) {
		return rgba, nil
	}
	rgba := image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Copy(rgba, image.Point{}, img, b, draw.Src, nil)
	return rgba, nil
}
