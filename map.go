package main

import (
	"strconv"
	"strings"

	"github.com/paulmach/orb"
)

//IIIFTemplate IIIF Image API 瓦片地址模板
const IIIFTemplate = "{uri}/{x},{y},{w},{h}/{sw},{sh}/0/default.jpg"

//MBTilesTemplate MBTiles 瓦片地址模板, z 为缩放级别序号
const MBTilesTemplate = "mbtiles:{z}/{col}/{row}"

//ImageInfo 源图像描述, 提供缩放级别与瓦片请求
type ImageInfo struct {
	URI          string
	Template     string //empty means IIIFTemplate
	Width        int
	Height       int
	TileWidth    int
	TileHeight   int //0 means TileWidth
	ScaleFactors []int
}

//ZoomLevel 缩放级别
type ZoomLevel struct {
	Index       int
	ScaleFactor int
	Width       int //tile width in source pixels
	Height      int //tile height in source pixels
	Columns     int
	Rows        int
}

//Region 源图像像素区域
type Region struct {
	X      int
	Y      int
	Width  int
	Height int
}

//Size 像素尺寸
type Size struct {
	Width  int
	Height int
}

//ImageRequest 单个瓦片对应的图像请求
type ImageRequest struct {
	Region      Region
	Size        Size
	Zoom        int
	ScaleFactor int
	Column      int
	Row         int
}

func (img *ImageInfo) tileSize() (int, int) {
	w := img.TileWidth
	if w <= 0 {
		w = TileSize
	}
	h := img.TileHeight
	if h <= 0 {
		h = w
	}
	return w, h
}

//ZoomLevels 按缩放因子升序返回缩放级别
func (img *ImageInfo) ZoomLevels() []ZoomLevel {
	tw, th := img.tileSize()
	factors := img.ScaleFactors
	if len(factors) == 0 {
		factors = []int{1}
	}
	levels := make([]ZoomLevel, 0, len(factors))
	for i, sf := range factors {
		if sf <= 0 {
			continue
		}
		w, h := tw*sf, th*sf
		levels = append(levels, ZoomLevel{
			Index:       i,
			ScaleFactor: sf,
			Width:       w,
			Height:      h,
			Columns:     ceilDiv(img.Width, w),
			Rows:        ceilDiv(img.Height, h),
		})
	}
	return levels
}

//TileRequest 计算 (zoom, column, row) 覆盖的源区域与输出尺寸
func (img *ImageInfo) TileRequest(z ZoomLevel, column, row int) ImageRequest {
	x := column * z.Width
	y := row * z.Height
	w := min(z.Width, img.Width-x)
	h := min(z.Height, img.Height-y)
	return ImageRequest{
		Region:      Region{X: x, Y: y, Width: w, Height: h},
		Size:        Size{Width: ceilDiv(w, z.ScaleFactor), Height: ceilDiv(h, z.ScaleFactor)},
		Zoom:        z.Index,
		ScaleFactor: z.ScaleFactor,
		Column:      column,
		Row:         row,
	}
}

//TileURL 获取瓦片URL
func (img *ImageInfo) TileURL(req ImageRequest) string {
	tpl := img.Template
	if tpl == "" {
		tpl = IIIFTemplate
	}
	r := strings.NewReplacer(
		"{uri}", strings.TrimSuffix(img.URI, "/"),
		"{x}", strconv.Itoa(req.Region.X),
		"{y}", strconv.Itoa(req.Region.Y),
		"{w}", strconv.Itoa(req.Region.Width),
		"{h}", strconv.Itoa(req.Region.Height),
		"{sw}", strconv.Itoa(req.Size.Width),
		"{sh}", strconv.Itoa(req.Size.Height),
		"{z}", strconv.Itoa(req.Zoom),
		"{col}", strconv.Itoa(req.Column),
		"{row}", strconv.Itoa(req.Row),
	)
	return r.Replace(tpl)
}

//GCP 地面控制点, Image 为像素坐标, World 为世界坐标
type GCP struct {
	Image orb.Point
	World orb.Point
}

//MapSource 注册地图所需的输入
type MapSource struct {
	ID        string
	Image     *ImageInfo
	GCPs      []GCP
	PixelMask []orb.Point //empty means the full image
}

//WarpedMap 已注册的纠正地图
type WarpedMap struct {
	ID          string
	Image       *ImageInfo
	GCPs        []GCP
	PixelMask   orb.Ring
	Transformer Transformer
	GeoMask     orb.Ring
	GeoExtent   orb.Bound
	Triangles   []float64
}

func fullImageMask(img *ImageInfo) []orb.Point {
	w, h := float64(img.Width), float64(img.Height)
	return []orb.Point{{0, 0}, {w, 0}, {w, h}, {0, h}}
}

func ceilDiv(a, b int) int {
	if b <= 0 || a <= 0 {
		return 0
	}
	return (a + b - 1) / b
}
