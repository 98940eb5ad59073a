package main

import (
	"context"
	"fmt"
	"time"

	"github.com/paulmach/orb"
	log "github.com/sirupsen/logrus"
	"github.com/teris-io/shortid"
)

var generateID = shortid.Generate

//Options 核心配置
type Options struct {
	MinVisiblePixels float64
	MaxTextureSize   int
	MaxTiles         int
	Workers          int
	CacheCost        int64
	Timeout          time.Duration //0 means no timeout

	Catalogue      TileCatalogue      //nil means TilesForExtent
	NewTransformer TransformerFactory //nil means NewAffineTransformer
}

//DefaultOptions 默认配置
func DefaultOptions() Options {
	return Options{
		MinVisiblePixels: DefaultMinVisiblePixels,
		MaxTextureSize:   DefaultMaxTextureSize,
		MaxTiles:         DefaultMaxTiles,
		Workers:          8,
		CacheCost:        DefaultCacheCost,
	}
}

//OptionsError 配置校验错误
type OptionsError struct {
	Field  string
	Reason string
}

func (e *OptionsError) Error() string {
	return "warper: invalid options." + e.Field + ": " + e.Reason
}

//Validate 校验配置
func (o Options) Validate() error {
	if o.MinVisiblePixels < 0 {
		return &OptionsError{Field: "MinVisiblePixels", Reason: "must not be negative"}
	}
	if o.MaxTextureSize < 0 {
		return &OptionsError{Field: "MaxTextureSize", Reason: "must not be negative"}
	}
	if o.MaxTiles < 0 {
		return &OptionsError{Field: "MaxTiles", Reason: "must not be negative"}
	}
	if o.Workers < 1 {
		return &OptionsError{Field: "Workers", Reason: "must be at least 1"}
	}
	if o.CacheCost < 0 {
		return &OptionsError{Field: "CacheCost", Reason: "must not be negative"}
	}
	if o.Timeout < 0 {
		return &OptionsError{Field: "Timeout", Reason: "must not be negative"}
	}
	return nil
}

//Warper 协调器, 持有地图、索引、跟踪器、图层、加载器与事件总线.
//非并发安全, 只能由一个 goroutine 驱动.
type Warper struct {
	opts    Options
	index   *SpatialIndex
	tracker *Tracker
	maps    map[string]*WarpedMap
	layers  map[string]*MapLayer
	order   []string
	loader  *Loader
	atlas   *Atlas
	cache   *BitmapCache
	bus     EventBus
}

//NewWarper 创建协调器, 仅在此处返回致命错误
func NewWarper(opts Options, fetcher Fetcher, uploader Uploader) (*Warper, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	if fetcher == nil {
		return nil, &OptionsError{Field: "Fetcher", Reason: "must not be nil"}
	}
	if opts.NewTransformer == nil {
		opts.NewTransformer = NewAffineTransformer
	}
	cache, err := NewBitmapCache(opts.CacheCost)
	if err != nil {
		return nil, fmt.Errorf("create bitmap cache: %w", err)
	}
	index := NewSpatialIndex()
	return &Warper{
		opts:    opts,
		index:   index,
		tracker: NewTracker(index, opts.Catalogue, opts.MinVisiblePixels),
		maps:    make(map[string]*WarpedMap),
		layers:  make(map[string]*MapLayer),
		loader:  NewLoader(fetcher, cache, opts.Workers, opts.Timeout),
		atlas:   NewAtlas(opts.MaxTextureSize, opts.MaxTiles, uploader),
		cache:   cache,
	}, nil
}

//AddMap 注册地图: 建立变换, 掩膜转世界坐标并三角化, 按范围加入索引.
//三角化失败时地图不会被注册.
func (w *Warper) AddMap(src MapSource) (*WarpedMap, error) {
	if src.Image == nil {
		return nil, fmt.Errorf("map %s: missing image info", src.ID)
	}
	id := src.ID
	if id == "" {
		var err error
		if id, err = generateID(); err != nil {
			return nil, fmt.Errorf("generate map id: %w", err)
		}
	}
	if _, ok := w.maps[id]; ok {
		return nil, fmt.Errorf("map %s already registered", id)
	}

	t, err := w.opts.NewTransformer(src.GCPs)
	if err != nil {
		return nil, fmt.Errorf("map %s: %w", id, err)
	}
	pixelMask := src.PixelMask
	if len(pixelMask) == 0 {
		pixelMask = fullImageMask(src.Image)
	}
	geoMask := polygonToWorld(t, pixelMask)
	triangles, err := Triangulate(geoMask, nil)
	if err != nil {
		log.Warnf("map %s mask triangulate error, details: %s ~", id, err)
		return nil, fmt.Errorf("map %s: %w", id, err)
	}

	m := &WarpedMap{
		ID:          id,
		Image:       src.Image,
		GCPs:        src.GCPs,
		PixelMask:   polygonClosed(pixelMask),
		Transformer: t,
		GeoMask:     geoMask,
		GeoExtent:   TrianglesBound(triangles),
		Triangles:   triangles,
	}
	w.maps[id] = m
	w.order = append(w.order, id)
	w.tracker.Add(m)
	w.layers[id] = newMapLayer(m, w.loader, w.atlas)
	log.Infof("map %s added, %d triangles ~", id, len(triangles)/6)

	w.bus.Publish(MapAdded{MapID: id, Image: m.Image, Transformer: t, Triangles: triangles})
	return m, nil
}

//RemoveMap 注销地图, 取消其加载并移出索引
func (w *Warper) RemoveMap(id string) bool {
	if _, ok := w.maps[id]; !ok {
		return false
	}
	events := w.tracker.Remove(id)
	w.apply(events)
	if l, ok := w.layers[id]; ok {
		l.close()
	}
	delete(w.layers, id)
	delete(w.maps, id)
	for i, v := range w.order {
		if v == id {
			w.order = append(w.order[:i], w.order[i+1:]...)
			break
		}
	}
	log.Infof("map %s removed ~", id)
	w.bus.Publish(MapRemoved{MapID: id})
	return true
}

//UpdateNeededTiles 计算视口所需瓦片差异并应用, 所有差异应用完成后再重新打包
func (w *Warper) UpdateNeededTiles(v Viewport) []Event {
	events := w.tracker.Update(v)
	w.apply(events)
	w.repack()
	return events
}

func (w *Warper) apply(events []Event) {
	w.promote(events)
	for _, e := range events {
		switch ev := e.(type) {
		case TileNeeded:
			if l, ok := w.layers[ev.MapID]; ok {
				l.addTileNeeded(NeededTile{MapID: ev.MapID, Tile: ev.Tile, Request: ev.Request, URL: ev.URL})
			}
		case TileUnneeded:
			if l, ok := w.layers[ev.MapID]; ok {
				l.deleteTileNeeded(ev.URL)
			}
		}
		w.bus.Publish(e)
	}
}

//promote 每轮每幅地图至多切换一次代, 以所需瓦片的主导缩放因子为准
func (w *Warper) promote(events []Event) {
	seen := make(map[string]bool)
	for _, e := range events {
		ev, ok := e.(TileNeeded)
		if !ok || seen[ev.MapID] {
			continue
		}
		seen[ev.MapID] = true
		l, ok := w.layers[ev.MapID]
		if !ok {
			continue
		}
		tiles := w.tracker.NeededTiles(ev.MapID)
		current, _ := l.CurrentScaleFactor()
		sf, ok := dominantScaleFactor(tiles, current)
		if !ok {
			continue
		}
		needed := make(map[string]bool, len(tiles))
		for _, t := range tiles {
			needed[t.URL] = true
		}
		l.promote(sf, needed)
	}
}

//Poll 非阻塞地处理已完成的加载结果, 返回处理数
func (w *Warper) Poll() int {
	n := 0
	for {
		select {
		case res := <-w.loader.Results():
			w.handle(res)
			n++
		default:
			if n > 0 {
				w.repack()
			}
			return n
		}
	}
}

//Wait 阻塞直到所有未取消的加载完成或 ctx 结束
func (w *Warper) Wait(ctx context.Context) error {
	defer w.repack()
	for w.loader.Pending() > 0 {
		select {
		case res := <-w.loader.Results():
			w.handle(res)
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return nil
}

func (w *Warper) handle(res loadResult) {
	w.loader.done(res.task)
	l, ok := w.layers[res.task.mapID]
	if !ok {
		return
	}
	if e, ok := l.setTileResult(res); ok {
		w.bus.Publish(e)
	}
}

func (w *Warper) repack() {
	for _, id := range w.order {
		l := w.layers[id]
		if l == nil || !l.dirty {
			continue
		}
		tex, err := l.updateTextures()
		if err != nil {
			continue
		}
		w.bus.Publish(AtlasUpdated{MapID: id, Width: tex.Width, Height: tex.Height, Tiles: tex.Len()})
	}
}

//Subscribe 订阅事件
func (w *Warper) Subscribe(fn Listener) string {
	return w.bus.Subscribe(fn)
}

//Unsubscribe 取消订阅
func (w *Warper) Unsubscribe(id string) bool {
	return w.bus.Unsubscribe(id)
}

//Layer 地图图层
func (w *Warper) Layer(id string) (*MapLayer, bool) {
	l, ok := w.layers[id]
	return l, ok
}

//Map 已注册地图
func (w *Warper) Map(id string) (*WarpedMap, bool) {
	m, ok := w.maps[id]
	return m, ok
}

//Maps 按注册顺序返回全部地图
func (w *Warper) Maps() []*WarpedMap {
	out := make([]*WarpedMap, 0, len(w.order))
	for _, id := range w.order {
		out = append(out, w.maps[id])
	}
	return out
}

//Pending 未完成的加载数
func (w *Warper) Pending() int {
	return w.loader.Pending()
}

//Close 取消所有加载并释放缓存
func (w *Warper) Close() {
	for _, l := range w.layers {
		l.close()
	}
	w.cache.Close()
}

func polygonClosed(pts []orb.Point) orb.Ring {
	ring := make(orb.Ring, len(pts), len(pts)+1)
	copy(ring, pts)
	if len(ring) > 0 && ring[0] != ring[len(ring)-1] {
		ring = append(ring, ring[0])
	}
	return ring
}
