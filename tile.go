package main

import (
	"image"
)

//TileSize 默认瓦片大小
const TileSize = 256

//TileCoord 瓦片坐标, 缩放级别 + 行列号
type TileCoord struct {
	Zoom   ZoomLevel
	Column int
	Row    int
}

//NeededTile 当前视口所需的瓦片
type NeededTile struct {
	MapID   string
	Tile    TileCoord
	Request ImageRequest
	URL     string
}

//ScaleFactor 瓦片所在层级的缩放因子
func (t NeededTile) ScaleFactor() int {
	return t.Tile.Zoom.ScaleFactor
}

//TileState 瓦片加载状态
type TileState int

// Tile states. Requested is entered when a tile is added to a needed set and
// left as soon as its load task starts.
const (
	TileRequested TileState = iota
	TileLoading
	TileReady
	TileFailed
)

func (s TileState) String() string {
	switch s {
	case TileRequested:
		return "requested"
	case TileLoading:
		return "loading"
	case TileReady:
		return "ready"
	case TileFailed:
		return "failed"
	}
	return "unknown"
}

//TileEntry 单个所需瓦片的状态记录
type TileEntry struct {
	Tile   NeededTile
	State  TileState
	Bitmap *image.RGBA //only set when State == TileReady
	Err    error       //only set when State == TileFailed

	task *loadTask
}

//Ready 是否已加载完成
func (e *TileEntry) Ready() bool {
	return e.State == TileReady && e.Bitmap != nil
}

func (e *TileEntry) cancel() {
	if e.task != nil {
		e.task.Cancel()
	}
}

// tileSet keeps needed tiles keyed by url in insertion order.
type tileSet struct {
	urls  []string
	tiles map[string]NeededTile
}

func newTileSet() *tileSet {
	return &tileSet{tiles: make(map[string]NeededTile)}
}

func (s *tileSet) Len() int {
	return len(s.urls)
}

func (s *tileSet) Has(url string) bool {
	_, ok := s.tiles[url]
	return ok
}

func (s *tileSet) Add(t NeededTile) {
	if _, ok := s.tiles[t.URL]; ok {
		return
	}
	s.urls = append(s.urls, t.URL)
	s.tiles[t.URL] = t
}

func (s *tileSet) Delete(url string) {
	if _, ok := s.tiles[url]; !ok {
		return
	}
	delete(s.tiles, url)
	for i, u := range s.urls {
		if u == url {
			s.urls = append(s.urls[:i], s.urls[i+1:]...)
			break
		}
	}
}

//URLs 按插入顺序返回
func (s *tileSet) URLs() []string {
	out := make([]string, len(s.urls))
	copy(out, s.urls)
	return out
}

//Tiles 按插入顺序返回
func (s *tileSet) Tiles() []NeededTile {
	out := make([]NeededTile, 0, len(s.urls))
	for _, url := range s.urls {
		out = append(out, s.tiles[url])
	}
	return out
}
