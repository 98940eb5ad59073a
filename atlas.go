package main

import (
	"errors"
	"fmt"
	"image"

	"golang.org/x/image/draw"
)

//ErrCapacityExceeded 超出图集容量 (瓦片数或纹理尺寸)
var ErrCapacityExceeded = errors.New("atlas capacity exceeded")

// Atlas limits.
const (
	DefaultMaxTextureSize = 4096
	DefaultMaxTiles       = 1024
)

//AtlasTextures 一次打包的结果: 图集纹理与三组按打包顺序对齐的元数据
type AtlasTextures struct {
	Width  int
	Height int
	Image  *image.RGBA

	URLs         []string
	ScaleFactors []int32 //one per tile
	Positions    []int32 //x, y per tile
	Regions      []int32 //x, y, width, height per tile
}

//Len 图集中的瓦片数
func (t *AtlasTextures) Len() int {
	if t == nil {
		return 0
	}
	return len(t.URLs)
}

//Position 第 i 个瓦片在图集中的左上角
func (t *AtlasTextures) Position(i int) (int, int) {
	return int(t.Positions[2*i]), int(t.Positions[2*i+1])
}

//Region 第 i 个瓦片对应的源图像区域
func (t *AtlasTextures) Region(i int) Region {
	r := t.Regions[4*i : 4*i+4]
	return Region{X: int(r[0]), Y: int(r[1]), Width: int(r[2]), Height: int(r[3])}
}

//Uploader 将图集发布到 GPU (着色器阶段)
type Uploader interface {
	Upload(mapID string, tex *AtlasTextures) error
}

//UploaderFunc 函数形式的 Uploader
type UploaderFunc func(mapID string, tex *AtlasTextures) error

//Upload implements Uploader
func (f UploaderFunc) Upload(mapID string, tex *AtlasTextures) error {
	return f(mapID, tex)
}

//Atlas 图集管理器, 每次全量重新打包
type Atlas struct {
	maxTextureSize int
	maxTiles       int
	uploader       Uploader
}

//NewAtlas 创建图集管理器, 限制为 0 表示不限制, uploader 可为空
func NewAtlas(maxTextureSize, maxTiles int, uploader Uploader) *Atlas {
	return &Atlas{
		maxTextureSize: maxTextureSize,
		maxTiles:       maxTiles,
		uploader:       uploader,
	}
}

//Build 将已就绪瓦片打包为图集, 不发布
func (a *Atlas) Build(tiles []*TileEntry) (*AtlasTextures, error) {
	ready := make([]*TileEntry, 0, len(tiles))
	for _, e := range tiles {
		if e.Ready() {
			ready = append(ready, e)
		}
	}
	if a.maxTiles > 0 && len(ready) > a.maxTiles {
		return nil, fmt.Errorf("%w: %d tiles, limit %d", ErrCapacityExceeded, len(ready), a.maxTiles)
	}

	boxes := make([]Box, len(ready))
	for i, e := range ready {
		b := e.Bitmap.Bounds()
		boxes[i] = Box{W: b.Dx(), H: b.Dy()}
	}
	w, h, placed, err := Pack(boxes)
	if err != nil {
		return nil, err
	}
	if a.maxTextureSize > 0 && (w > a.maxTextureSize || h > a.maxTextureSize) {
		return nil, fmt.Errorf("%w: %dx%d, limit %d", ErrCapacityExceeded, w, h, a.maxTextureSize)
	}

	tex := &AtlasTextures{
		Width:        w,
		Height:       h,
		Image:        image.NewRGBA(image.Rect(0, 0, w, h)),
		URLs:         make([]string, 0, len(placed)),
		ScaleFactors: make([]int32, 0, len(placed)),
		Positions:    make([]int32, 0, 2*len(placed)),
		Regions:      make([]int32, 0, 4*len(placed)),
	}
	for _, p := range placed {
		e := ready[p.Index]
		draw.Copy(tex.Image, image.Pt(p.X, p.Y), e.Bitmap, e.Bitmap.Bounds(), draw.Src, nil)

		r := e.Tile.Request.Region
		tex.URLs = append(tex.URLs, e.Tile.URL)
		tex.ScaleFactors = append(tex.ScaleFactors, int32(e.Tile.Tile.Zoom.ScaleFactor))
		tex.Positions = append(tex.Positions, int32(p.X), int32(p.Y))
		tex.Regions = append(tex.Regions, int32(r.X), int32(r.Y), int32(r.Width), int32(r.Height))
	}
	return tex, nil
}

//Repack 重新打包并发布; 失败时不发布, 调用方保留旧图集
func (a *Atlas) Repack(mapID string, tiles []*TileEntry) (*AtlasTextures, error) {
	tex, err := a.Build(tiles)
	if err != nil {
		return nil, err
	}
	if a.uploader != nil {
		if err := a.uploader.Upload(mapID, tex); err != nil {
			return nil, fmt.Errorf("upload atlas of map %s: %w", mapID, err)
		}
	}
	return tex, nil
}
