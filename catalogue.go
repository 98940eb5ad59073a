package main

import (
	"math"
	"sort"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/clip"
)

//TileCatalogue 计算渲染视口范围所需的瓦片
type TileCatalogue func(t Transformer, img *ImageInfo, size Size, extent orb.Bound) []TileCoord

//TilesForExtent 默认瓦片目录: 视口范围反算到像素空间, 裁剪到图像范围,
//按屏幕分辨率选取缩放级别后列出覆盖的瓦片 (行优先)
func TilesForExtent(t Transformer, img *ImageInfo, size Size, extent orb.Bound) []TileCoord {
	if t == nil || img == nil || size.Width <= 0 || size.Height <= 0 || img.Width <= 0 || img.Height <= 0 {
		return nil
	}
	corners := []orb.Point{
		extent.Min,
		{extent.Max[0], extent.Min[1]},
		extent.Max,
		{extent.Min[0], extent.Max[1]},
	}
	footprint := make(orb.Ring, 0, 5)
	for _, p := range corners {
		footprint = append(footprint, t.Inverse(p))
	}
	footprint = append(footprint, footprint[0])

	imageBound := orb.Bound{Max: orb.Point{float64(img.Width), float64(img.Height)}}
	clipped, ok := clip.Geometry(imageBound, orb.Polygon{footprint}).(orb.Polygon)
	if !ok || len(clipped) == 0 || len(clipped[0]) < 3 {
		return nil
	}
	b := clipped.Bound()
	if b.Max[0]-b.Min[0] <= 0 || b.Max[1]-b.Min[1] <= 0 {
		return nil
	}

	// source pixels per screen pixel along the extent's bottom edge
	ratio := distance(footprint[0], footprint[1]) / float64(size.Width)
	zoom, ok := zoomForRatio(img.ZoomLevels(), ratio)
	if !ok {
		return nil
	}

	minCol := clampInt(int(math.Floor(b.Min[0]/float64(zoom.Width))), 0, zoom.Columns-1)
	maxCol := clampInt(int(math.Ceil(b.Max[0]/float64(zoom.Width)))-1, 0, zoom.Columns-1)
	minRow := clampInt(int(math.Floor(b.Min[1]/float64(zoom.Height))), 0, zoom.Rows-1)
	maxRow := clampInt(int(math.Ceil(b.Max[1]/float64(zoom.Height)))-1, 0, zoom.Rows-1)

	tiles := make([]TileCoord, 0, (maxCol-minCol+1)*(maxRow-minRow+1))
	for row := minRow; row <= maxRow; row++ {
		for col := minCol; col <= maxCol; col++ {
			tiles = append(tiles, TileCoord{Zoom: zoom, Column: col, Row: row})
		}
	}
	return tiles
}

//zoomForRatio 选取不超过 ratio 的最大缩放因子, 都超过时取最小
func zoomForRatio(levels []ZoomLevel, ratio float64) (ZoomLevel, bool) {
	if len(levels) == 0 {
		return ZoomLevel{}, false
	}
	sorted := make([]ZoomLevel, len(levels))
	copy(sorted, levels)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].ScaleFactor < sorted[j].ScaleFactor
	})
	best := sorted[0]
	for _, z := range sorted[1:] {
		if float64(z.ScaleFactor) <= ratio {
			best = z
		}
	}
	return best, true
}

func distance(a, b orb.Point) float64 {
	return math.Hypot(b[0]-a[0], b[1]-a[1])
}

func clampInt(v, lo, hi int) int {
	if hi < lo {
		return lo
	}
	return max(lo, min(v, hi))
}
