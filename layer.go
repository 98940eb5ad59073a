package main

import (
	log "github.com/sirupsen/logrus"
)

//Generation 同一缩放因子的瓦片集合, 按插入顺序
type Generation struct {
	ScaleFactor int
	urls        []string
	entries     map[string]*TileEntry
}

func newGeneration(scaleFactor int) *Generation {
	return &Generation{ScaleFactor: scaleFactor, entries: make(map[string]*TileEntry)}
}

//Len 瓦片数
func (g *Generation) Len() int {
	return len(g.urls)
}

//Get 按 URL 查询
func (g *Generation) Get(url string) (*TileEntry, bool) {
	e, ok := g.entries[url]
	return e, ok
}

//Entries 按插入顺序返回全部瓦片
func (g *Generation) Entries() []*TileEntry {
	out := make([]*TileEntry, 0, len(g.urls))
	for _, url := range g.urls {
		out = append(out, g.entries[url])
	}
	return out
}

func (g *Generation) put(e *TileEntry) {
	g.urls = append(g.urls, e.Tile.URL)
	g.entries[e.Tile.URL] = e
}

func (g *Generation) remove(url string) (*TileEntry, bool) {
	e, ok := g.entries[url]
	if !ok {
		return nil, false
	}
	delete(g.entries, url)
	for i, u := range g.urls {
		if u == url {
			g.urls = append(g.urls[:i], g.urls[i+1:]...)
			break
		}
	}
	return e, true
}

func (g *Generation) cancelAll() {
	for _, e := range g.entries {
		e.cancel()
	}
}

//MapLayer 单幅地图的渲染状态: 当前/上一代瓦片与最近发布的图集
type MapLayer struct {
	MapID     string
	Image     *ImageInfo
	Triangles []float64

	current  *Generation
	previous *Generation
	textures *AtlasTextures
	dirty    bool

	loader *Loader
	atlas  *Atlas
}

func newMapLayer(m *WarpedMap, loader *Loader, atlas *Atlas) *MapLayer {
	return &MapLayer{
		MapID:     m.ID,
		Image:     m.Image,
		Triangles: m.Triangles,
		loader:    loader,
		atlas:     atlas,
	}
}

//CurrentScaleFactor 当前缩放因子, 尚无瓦片时 ok 为 false
func (l *MapLayer) CurrentScaleFactor() (int, bool) {
	if l.current == nil {
		return 0, false
	}
	return l.current.ScaleFactor, true
}

//PreviousScaleFactor 上一代缩放因子
func (l *MapLayer) PreviousScaleFactor() (int, bool) {
	if l.previous == nil {
		return 0, false
	}
	return l.previous.ScaleFactor, true
}

//Current 当前代瓦片
func (l *MapLayer) Current() *Generation {
	return l.current
}

//Previous 上一代瓦片, 供交叉淡化使用
func (l *MapLayer) Previous() *Generation {
	return l.previous
}

//Entry 按 URL 在两代中查询
func (l *MapLayer) Entry(url string) (*TileEntry, bool) {
	if l.current != nil {
		if e, ok := l.current.Get(url); ok {
			return e, true
		}
	}
	if l.previous != nil {
		if e, ok := l.previous.Get(url); ok {
			return e, true
		}
	}
	return nil, false
}

//Textures 最近一次成功发布的图集
func (l *MapLayer) Textures() *AtlasTextures {
	return l.textures
}

//ReadyTiles 当前代中已就绪的瓦片
func (l *MapLayer) ReadyTiles() []*TileEntry {
	if l.current == nil {
		return nil
	}
	var out []*TileEntry
	for _, e := range l.current.Entries() {
		if e.Ready() {
			out = append(out, e)
		}
	}
	return out
}

//dominantScaleFactor 所需瓦片中出现最多的缩放因子; 并列时优先 current, 其次取最小值
func dominantScaleFactor(tiles []NeededTile, current int) (int, bool) {
	counts := make(map[int]int)
	for _, t := range tiles {
		counts[t.ScaleFactor()]++
	}
	best, bestN := 0, 0
	for sf, n := range counts {
		if n > bestN || (n == bestN && (sf == current || (best != current && sf < best))) {
			best, bestN = sf, n
		}
	}
	return best, bestN > 0
}

//generationFor 与上一代缩放因子相同的瓦片归入上一代, 其余归入当前代
func (l *MapLayer) generationFor(sf int) *Generation {
	if l.previous != nil && l.previous.ScaleFactor == sf && l.current.ScaleFactor != sf {
		return l.previous
	}
	return l.current
}

//promote 主导缩放因子变化时切换代: 当前代降为上一代, 被弃代中仍需要的瓦片按缩放因子重新归属,
//不再需要的才取消
func (l *MapLayer) promote(sf int, needed map[string]bool) {
	if l.current != nil && l.current.ScaleFactor == sf {
		return
	}
	var entries []*TileEntry
	for _, g := range []*Generation{l.current, l.previous} {
		if g != nil {
			entries = append(entries, g.Entries()...)
		}
	}
	l.previous = nil
	if l.current != nil {
		l.previous = newGeneration(l.current.ScaleFactor)
	}
	l.current = newGeneration(sf)
	kept := 0
	for _, e := range entries {
		if !needed[e.Tile.URL] {
			e.cancel()
			continue
		}
		l.generationFor(e.Tile.ScaleFactor()).put(e)
		kept++
	}
	l.dirty = true
	log.Debugf("map %s scale factor %d, %d tiles kept ~", l.MapID, sf, kept)
}

//addTileNeeded 加入所需瓦片并开始加载, 按缩放因子归入当前代或上一代
func (l *MapLayer) addTileNeeded(t NeededTile) {
	if l.current == nil {
		l.current = newGeneration(t.ScaleFactor())
	}
	if _, ok := l.Entry(t.URL); ok {
		return
	}

	e := &TileEntry{Tile: t, State: TileRequested}
	g := l.generationFor(t.ScaleFactor())
	g.put(e)
	if g == l.current {
		l.dirty = true
	}
	if l.loader != nil {
		e.task = l.loader.Start(l.MapID, t.URL)
		e.State = TileLoading
	}
}

//deleteTileNeeded 删除瓦片, 无论处于何种状态; 加载中的任务被取消
func (l *MapLayer) deleteTileNeeded(url string) bool {
	for _, g := range []*Generation{l.current, l.previous} {
		if g == nil {
			continue
		}
		if e, ok := g.remove(url); ok {
			e.cancel()
			if g == l.current {
				l.dirty = true
			}
			return true
		}
	}
	return false
}

//setTileResult 应用加载结果; 条目已删除或任务已替换时忽略
func (l *MapLayer) setTileResult(res loadResult) (Event, bool) {
	e, ok := l.Entry(res.task.url)
	if !ok || e.task != res.task {
		return nil, false
	}
	if res.err != nil {
		e.State = TileFailed
		e.Err = res.err
		return TileLoadingError{MapID: l.MapID, URL: e.Tile.URL, Err: res.err}, true
	}
	e.State = TileReady
	e.Bitmap = res.bitmap
	if l.current != nil {
		if _, ok := l.current.Get(e.Tile.URL); ok {
			l.dirty = true
		}
	}
	return TileLoaded{MapID: l.MapID, URL: e.Tile.URL}, true
}

//updateTextures 全量重建图集; 超出容量时保留上一次的图集
func (l *MapLayer) updateTextures() (*AtlasTextures, error) {
	l.dirty = false
	tex, err := l.atlas.Repack(l.MapID, l.ReadyTiles())
	if err != nil {
		log.Warnf("repack atlas of map %s error, details: %s ~", l.MapID, err)
		return nil, err
	}
	l.textures = tex
	return tex, nil
}

func (l *MapLayer) close() {
	for _, g := range []*Generation{l.current, l.previous} {
		if g != nil {
			g.cancelAll()
		}
	}
	l.current, l.previous = nil, nil
}
