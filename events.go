package main

import (
	"fmt"

	"github.com/teris-io/shortid"
)

//EventType 事件类型
type EventType int

// Event types exchanged with the host.
const (
	EventMapAdded EventType = iota
	EventMapRemoved
	EventMapEnteredExtent
	EventTileNeeded
	EventTileUnneeded
	EventMapLeftExtent
	EventTileLoaded
	EventTileLoadingError
	EventAtlasUpdated
)

var eventNames = map[EventType]string{
	EventMapAdded:         "map-added",
	EventMapRemoved:       "map-removed",
	EventMapEnteredExtent: "map-entered-extent",
	EventTileNeeded:       "tile-needed",
	EventTileUnneeded:     "tile-unneeded",
	EventMapLeftExtent:    "map-left-extent",
	EventTileLoaded:       "tile-loaded",
	EventTileLoadingError: "tile-loading-error",
	EventAtlasUpdated:     "atlas-updated",
}

func (t EventType) String() string {
	if name, ok := eventNames[t]; ok {
		return name
	}
	return "unknown"
}

//Event 事件
type Event interface {
	Type() EventType
	Map() string
}

//MapAdded 地图注册完成
type MapAdded struct {
	MapID       string
	Image       *ImageInfo
	Transformer Transformer
	Triangles   []float64
}

//MapRemoved 地图已注销
type MapRemoved struct {
	MapID string
}

//MapEnteredExtent 地图进入视口
type MapEnteredExtent struct {
	MapID string
}

//TileNeeded 需要加载瓦片
type TileNeeded struct {
	MapID   string
	Tile    TileCoord
	Request ImageRequest
	URL     string
}

//TileUnneeded 瓦片不再需要
type TileUnneeded struct {
	MapID string
	URL   string
}

//MapLeftExtent 地图离开视口
type MapLeftExtent struct {
	MapID string
}

//TileLoaded 瓦片加载完成
type TileLoaded struct {
	MapID string
	URL   string
}

//TileLoadingError 瓦片加载失败
type TileLoadingError struct {
	MapID string
	URL   string
	Err   error
}

//AtlasUpdated 图集已重新打包并发布
type AtlasUpdated struct {
	MapID  string
	Width  int
	Height int
	Tiles  int
}

func (MapAdded) Type() EventType         { return EventMapAdded }
func (MapRemoved) Type() EventType       { return EventMapRemoved }
func (MapEnteredExtent) Type() EventType { return EventMapEnteredExtent }
func (TileNeeded) Type() EventType       { return EventTileNeeded }
func (TileUnneeded) Type() EventType     { return EventTileUnneeded }
func (MapLeftExtent) Type() EventType    { return EventMapLeftExtent }
func (TileLoaded) Type() EventType       { return EventTileLoaded }
func (TileLoadingError) Type() EventType { return EventTileLoadingError }
func (AtlasUpdated) Type() EventType     { return EventAtlasUpdated }

func (e MapAdded) Map() string         { return e.MapID }
func (e MapRemoved) Map() string       { return e.MapID }
func (e MapEnteredExtent) Map() string { return e.MapID }
func (e TileNeeded) Map() string       { return e.MapID }
func (e TileUnneeded) Map() string     { return e.MapID }
func (e MapLeftExtent) Map() string    { return e.MapID }
func (e TileLoaded) Map() string       { return e.MapID }
func (e TileLoadingError) Map() string { return e.MapID }
func (e AtlasUpdated) Map() string     { return e.MapID }

//Listener 事件监听函数
type Listener func(Event)

type subscription struct {
	id string
	fn Listener
}

//EventBus 按订阅顺序同步分发事件
type EventBus struct {
	subs []subscription
	seq  int
}

//Subscribe 订阅事件, 返回订阅 ID
func (bus *EventBus) Subscribe(fn Listener) string {
	bus.seq++
	id, err := shortid.Generate()
	if err != nil {
		id = fmt.Sprintf("sub-%d", bus.seq)
	}
	bus.subs = append(bus.subs, subscription{id: id, fn: fn})
	return id
}

//Unsubscribe 取消订阅
func (bus *EventBus) Unsubscribe(id string) bool {
	for i, s := range bus.subs {
		if s.id == id {
			bus.subs = append(bus.subs[:i], bus.subs[i+1:]...)
			return true
		}
	}
	return false
}

//Publish 分发事件
func (bus *EventBus) Publish(events ...Event) {
	subs := append([]subscription(nil), bus.subs...)
	for _, e := range events {
		for _, s := range subs {
			s.fn(e)
		}
	}
}
