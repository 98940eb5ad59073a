package main

import (
	"errors"
	"fmt"
	"math"
	"sort"
)

//ErrInvalidBox 待打包矩形尺寸非正
var ErrInvalidBox = errors.New("box dimensions must be positive")

//Box 待打包矩形
type Box struct {
	W int
	H int
}

//Placement 打包结果, Index 指向输入 boxes
type Placement struct {
	Index int
	X     int
	Y     int
	W     int
	H     int
}

type space struct {
	x, y, w, h int
}

const unbounded = math.MaxInt32

//Pack 将矩形打包到尽量接近正方形的区域内.
//按面积从大到小贪心放置 (面积相同按高度, 再按输入顺序), 结果确定;
//返回图集宽高与按放置顺序排列的位置.
func Pack(boxes []Box) (int, int, []Placement, error) {
	if len(boxes) == 0 {
		return 0, 0, nil, nil
	}
	area, maxWidth := 0, 0
	for i, b := range boxes {
		if b.W <= 0 || b.H <= 0 {
			return 0, 0, nil, fmt.Errorf("%w: box %d is %dx%d", ErrInvalidBox, i, b.W, b.H)
		}
		area += b.W * b.H
		maxWidth = max(maxWidth, b.W)
	}

	order := make([]int, len(boxes))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(i, j int) bool {
		a, b := boxes[order[i]], boxes[order[j]]
		if a.W*a.H != b.W*b.H {
			return a.W*a.H > b.W*b.H
		}
		return a.H > b.H
	})

	// aim for a squarish sheet with a little slack
	startWidth := max(int(math.Ceil(math.Sqrt(float64(area)/0.95))), maxWidth)
	spaces := []space{{0, 0, startWidth, unbounded}}

	width, height := 0, 0
	placed := make([]Placement, 0, len(boxes))
	for _, idx := range order {
		b := boxes[idx]
		// smaller spaces sit at the end, try them first
		for i := len(spaces) - 1; i >= 0; i-- {
			s := &spaces[i]
			if b.W > s.w || b.H > s.h {
				continue
			}
			p := Placement{Index: idx, X: s.x, Y: s.y, W: b.W, H: b.H}
			placed = append(placed, p)
			width = max(width, p.X+p.W)
			height = max(height, p.Y+p.H)

			switch {
			case b.W == s.w && b.H == s.h:
				last := spaces[len(spaces)-1]
				spaces = spaces[:len(spaces)-1]
				if i < len(spaces) {
					spaces[i] = last
				}
			case b.H == s.h:
				s.x += b.W
				s.w -= b.W
			case b.W == s.w:
				s.y += b.H
				s.h -= b.H
			default:
				spaces = append(spaces, space{s.x + b.W, s.y, s.w - b.W, b.H})
				s = &spaces[i]
				s.y += b.H
				s.h -= b.H
			}
			break
		}
	}
	return width, height, placed, nil
}
