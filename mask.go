package main

import (
	"errors"
	"fmt"
	"math"

	"github.com/paulmach/orb"
	"github.com/rclancey/earcut"
)

//ErrInvalidGeometry 掩膜几何无效 (顶点不足或面积为零)
var ErrInvalidGeometry = errors.New("invalid geometry")

const geometryEpsilon = 1e-12

//Triangulate 将掩膜多边形三角化, 返回按三角形拼接的 x,y 序列.
//外环可以是凹多边形, 首尾顶点重复与否均可; holes 为内环, 退化的内环被忽略.
func Triangulate(outer orb.Ring, holes []orb.Ring) ([]float64, error) {
	ring := cleanRing(outer)
	if len(ring) < 3 {
		return nil, fmt.Errorf("%w: mask has %d distinct vertices", ErrInvalidGeometry, len(ring))
	}
	if math.Abs(signedArea(ring)) <= geometryEpsilon {
		return nil, fmt.Errorf("%w: mask has zero area", ErrInvalidGeometry)
	}

	data, holeIndices := flatten(ring, holes)
	indices, err := earcut.Earcut(data, holeIndices, 2)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrInvalidGeometry, err)
	}
	out := make([]float64, 0, len(indices)*2)
	for _, i := range indices {
		out = append(out, data[i*2], data[i*2+1])
	}
	return out, nil
}

// flatten lays out the outer ring and every usable hole as one x,y sequence
// plus the vertex index where each hole starts.
func flatten(outer orb.Ring, holes []orb.Ring) ([]float64, []int) {
	n := len(outer)
	for _, h := range holes {
		n += len(h)
	}
	data := make([]float64, 0, n*2)
	for _, p := range outer {
		data = append(data, p[0], p[1])
	}
	var holeIndices []int
	for _, h := range holes {
		hole := cleanRing(h)
		if len(hole) < 3 || math.Abs(signedArea(hole)) <= geometryEpsilon {
			continue
		}
		holeIndices = append(holeIndices, len(data)/2)
		for _, p := range hole {
			data = append(data, p[0], p[1])
		}
	}
	return data, holeIndices
}

//TrianglesBound 三角网的外包框
func TrianglesBound(triangles []float64) orb.Bound {
	if len(triangles) < 2 {
		return orb.Bound{}
	}
	first := orb.Point{triangles[0], triangles[1]}
	b := orb.Bound{Min: first, Max: first}
	for i := 2; i+1 < len(triangles); i += 2 {
		b = b.Extend(orb.Point{triangles[i], triangles[i+1]})
	}
	return b
}

// cleanRing drops the closing vertex, repeated vertices and collinear vertices.
func cleanRing(r orb.Ring) orb.Ring {
	out := make(orb.Ring, 0, len(r))
	for _, p := range r {
		if len(out) > 0 && out[len(out)-1] == p {
			continue
		}
		out = append(out, p)
	}
	for len(out) > 1 && out[0] == out[len(out)-1] {
		out = out[:len(out)-1]
	}
	for changed := true; changed && len(out) >= 3; {
		changed = false
		for i := 0; i < len(out) && len(out) >= 3; i++ {
			a := out[(i-1+len(out))%len(out)]
			c := out[(i+1)%len(out)]
			if math.Abs(cross(a, out[i], c)) <= geometryEpsilon {
				out = append(out[:i], out[i+1:]...)
				changed = true
				i--
			}
		}
	}
	return out
}

func signedArea(r orb.Ring) float64 {
	var sum float64
	for i := range r {
		j := (i + 1) % len(r)
		sum += r[i][0]*r[j][1] - r[j][0]*r[i][1]
	}
	return sum / 2
}

func cross(a, b, c orb.Point) float64 {
	return (b[0]-a[0])*(c[1]-a[1]) - (b[1]-a[1])*(c[0]-a[0])
}
