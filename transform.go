package main

import (
	"errors"
	"fmt"
	"math"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/project"
	"gonum.org/v1/gonum/mat"
)

//ErrNotEnoughControlPoints 控制点不足或共线
var ErrNotEnoughControlPoints = errors.New("at least 3 non-collinear control points are required")

//Transformer 像素坐标与世界坐标互转
type Transformer interface {
	Forward(p orb.Point) orb.Point //pixel -> world
	Inverse(p orb.Point) orb.Point //world -> pixel
}

//TransformerFactory 由控制点构造 Transformer
type TransformerFactory func(gcps []GCP) (Transformer, error)

//AffineTransformer 最小二乘仿射变换
type AffineTransformer struct {
	fwd [6]float64
	inv [6]float64
}

//NewAffineTransformer 由控制点拟合仿射变换
func NewAffineTransformer(gcps []GCP) (Transformer, error) {
	if len(gcps) < 3 {
		return nil, ErrNotEnoughControlPoints
	}
	src := make([]orb.Point, len(gcps))
	dst := make([]orb.Point, len(gcps))
	for i, g := range gcps {
		src[i] = g.Image
		dst[i] = g.World
	}
	fwd, err := fitAffine(src, dst)
	if err != nil {
		return nil, err
	}
	inv, err := invertAffine(fwd)
	if err != nil {
		return nil, err
	}
	return &AffineTransformer{fwd: fwd, inv: inv}, nil
}

//Forward pixel -> world
func (t *AffineTransformer) Forward(p orb.Point) orb.Point {
	return applyAffine(t.fwd, p)
}

//Inverse world -> pixel
func (t *AffineTransformer) Inverse(p orb.Point) orb.Point {
	return applyAffine(t.inv, p)
}

// fitAffine solves x' = a*x + b*y + c and y' = d*x + e*y + f in the least
// squares sense, both axes in one solve.
func fitAffine(src, dst []orb.Point) ([6]float64, error) {
	a := mat.NewDense(len(src), 3, nil)
	b := mat.NewDense(len(src), 2, nil)
	for i, p := range src {
		a.SetRow(i, []float64{p[0], p[1], 1})
		b.SetRow(i, []float64{dst[i][0], dst[i][1]})
	}
	var x mat.Dense
	if err := x.Solve(a, b); err != nil {
		return [6]float64{}, fmt.Errorf("%w: %s", ErrNotEnoughControlPoints, err)
	}
	return [6]float64{
		x.At(0, 0), x.At(1, 0), x.At(2, 0),
		x.At(0, 1), x.At(1, 1), x.At(2, 1),
	}, nil
}

func invertAffine(a [6]float64) ([6]float64, error) {
	m := mat.NewDense(3, 3, []float64{
		a[0], a[1], a[2],
		a[3], a[4], a[5],
		0, 0, 1,
	})
	if math.Abs(mat.Det(m)) < 1e-12 {
		return [6]float64{}, ErrNotEnoughControlPoints
	}
	var inv mat.Dense
	if err := inv.Inverse(m); err != nil {
		return [6]float64{}, fmt.Errorf("%w: %s", ErrNotEnoughControlPoints, err)
	}
	return [6]float64{
		inv.At(0, 0), inv.At(0, 1), inv.At(0, 2),
		inv.At(1, 0), inv.At(1, 1), inv.At(1, 2),
	}, nil
}

func applyAffine(a [6]float64, p orb.Point) orb.Point {
	return orb.Point{
		a[0]*p[0] + a[1]*p[1] + a[2],
		a[3]*p[0] + a[4]*p[1] + a[5],
	}
}

//Transform 世界坐标到屏幕像素的仿射变换 [a, b, c, d, e, f]:
//x' = a*x + c*y + e, y' = b*x + d*y + f
type Transform [6]float64

//Apply 应用变换
func (t Transform) Apply(p orb.Point) orb.Point {
	return orb.Point{
		t[0]*p[0] + t[2]*p[1] + t[4],
		t[1]*p[0] + t[3]*p[1] + t[5],
	}
}

//Viewport 一次视口更新的输入
type Viewport struct {
	Size              Size
	Extent            orb.Bound
	CoordinateToPixel Transform
}

//NewViewport 由尺寸与范围构造视口, 屏幕 y 轴向下
func NewViewport(size Size, extent orb.Bound) Viewport {
	var t Transform
	w := extent.Max[0] - extent.Min[0]
	h := extent.Max[1] - extent.Min[1]
	if w > 0 && h > 0 {
		sx := float64(size.Width) / w
		sy := float64(size.Height) / h
		t = Transform{sx, 0, 0, -sy, -extent.Min[0] * sx, extent.Max[1] * sy}
	}
	return Viewport{Size: size, Extent: extent, CoordinateToPixel: t}
}

//polygonToWorld 将像素掩膜闭合后逐点转换为世界坐标
func polygonToWorld(t Transformer, mask []orb.Point) orb.Ring {
	ring := make(orb.Ring, 0, len(mask)+1)
	for _, p := range mask {
		ring = append(ring, t.Forward(p))
	}
	if len(ring) > 0 && ring[0] != ring[len(ring)-1] {
		ring = append(ring, ring[0])
	}
	return ring
}

//lonLatToMercator 经纬度控制点转 Web Mercator
func lonLatToMercator(gcps []GCP) []GCP {
	out := make([]GCP, len(gcps))
	for i, g := range gcps {
		out[i] = GCP{Image: g.Image, World: project.WGS84.ToMercator(g.World)}
	}
	return out
}
