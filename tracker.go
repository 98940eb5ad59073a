package main

import (
	"math"

	log "github.com/sirupsen/logrus"
)

//DefaultMinVisiblePixels 地图在屏幕上宽高之和低于此值时不请求瓦片
const DefaultMinVisiblePixels = 1.0

//Tracker 所需瓦片跟踪器, 按视口计算每幅地图瓦片的增删差异
type Tracker struct {
	index            *SpatialIndex
	maps             map[string]*WarpedMap
	needed           map[string]*tileSet
	order            []string //map ids with a needed set, insertion order
	catalogue        TileCatalogue
	minVisiblePixels float64
}

//NewTracker 创建跟踪器, catalogue 为空时使用 TilesForExtent
func NewTracker(index *SpatialIndex, catalogue TileCatalogue, minVisiblePixels float64) *Tracker {
	if index == nil {
		index = NewSpatialIndex()
	}
	if catalogue == nil {
		catalogue = TilesForExtent
	}
	return &Tracker{
		index:            index,
		maps:             make(map[string]*WarpedMap),
		needed:           make(map[string]*tileSet),
		catalogue:        catalogue,
		minVisiblePixels: minVisiblePixels,
	}
}

//Add 登记地图并按掩膜范围插入索引
func (tr *Tracker) Add(m *WarpedMap) {
	tr.maps[m.ID] = m
	tr.index.Insert(m.ID, m.GeoExtent)
}

//Remove 注销地图, 返回清理其所需瓦片产生的事件
func (tr *Tracker) Remove(id string) []Event {
	events := tr.Forget(id)
	tr.index.Remove(id)
	delete(tr.maps, id)
	return events
}

//Forget 将地图的全部所需瓦片标记为不再需要
func (tr *Tracker) Forget(id string) []Event {
	set, ok := tr.needed[id]
	if !ok {
		return nil
	}
	events := make([]Event, 0, set.Len()+1)
	for _, url := range set.URLs() {
		events = append(events, TileUnneeded{MapID: id, URL: url})
	}
	tr.untrack(id)
	events = append(events, MapLeftExtent{MapID: id})
	return events
}

//Needed 地图当前所需瓦片 URL, 按插入顺序
func (tr *Tracker) Needed(id string) []string {
	if set, ok := tr.needed[id]; ok {
		return set.URLs()
	}
	return nil
}

//NeededTiles 地图当前所需瓦片, 按插入顺序
func (tr *Tracker) NeededTiles(id string) []NeededTile {
	if set, ok := tr.needed[id]; ok {
		return set.Tiles()
	}
	return nil
}

//Update 根据视口计算所有地图的所需瓦片差异
func (tr *Tracker) Update(v Viewport) []Event {
	var events []Event
	handled := make(map[string]bool)

	for _, id := range tr.index.Search(v.Extent) {
		m, ok := tr.maps[id]
		if !ok {
			continue
		}
		topLeft := v.CoordinateToPixel.Apply(m.GeoExtent.Min)
		bottomRight := v.CoordinateToPixel.Apply(m.GeoExtent.Max)
		width := math.Abs(bottomRight[0] - topLeft[0])
		height := math.Abs(topLeft[1] - bottomRight[1])
		if width+height < tr.minVisiblePixels {
			log.Debugf("map %s too small on screen (%.2fpx), skipped ~", id, width+height)
			continue
		}
		tiles := tr.catalogue(m.Transformer, m.Image, v.Size, v.Extent)
		events = append(events, tr.updateNeededTiles(m, tiles)...)
		handled[id] = true
	}

	for _, id := range append([]string(nil), tr.order...) {
		if !handled[id] {
			events = append(events, tr.Forget(id)...)
		}
	}
	return events
}

func (tr *Tracker) updateNeededTiles(m *WarpedMap, tiles []TileCoord) []Event {
	next := newTileSet()
	for _, c := range tiles {
		req := m.Image.TileRequest(c.Zoom, c.Column, c.Row)
		next.Add(NeededTile{MapID: m.ID, Tile: c, Request: req, URL: m.Image.TileURL(req)})
	}

	var events []Event
	cur, ok := tr.needed[m.ID]
	if !ok {
		if next.Len() == 0 {
			return nil
		}
		cur = newTileSet()
		tr.track(m.ID, cur)
		events = append(events, MapEnteredExtent{MapID: m.ID})
	}

	added, removed := 0, 0
	for _, url := range next.urls {
		if cur.Has(url) {
			continue
		}
		t := next.tiles[url]
		events = append(events, TileNeeded{MapID: m.ID, Tile: t.Tile, Request: t.Request, URL: url})
		cur.Add(t)
		added++
	}
	for _, url := range cur.URLs() {
		if next.Has(url) {
			continue
		}
		events = append(events, TileUnneeded{MapID: m.ID, URL: url})
		cur.Delete(url)
		removed++
	}
	if added+removed > 0 {
		log.Debugf("map %s needs %d tiles (+%d -%d) ~", m.ID, cur.Len(), added, removed)
	}

	if cur.Len() == 0 {
		tr.untrack(m.ID)
		events = append(events, MapLeftExtent{MapID: m.ID})
	}
	return events
}

func (tr *Tracker) track(id string, set *tileSet) {
	tr.needed[id] = set
	tr.order = append(tr.order, id)
}

func (tr *Tracker) untrack(id string) {
	delete(tr.needed, id)
	for i, v := range tr.order {
		if v == id {
			tr.order = append(tr.order[:i], tr.order[i+1:]...)
			return
		}
	}
}
