package main

import (
	"sort"

	"github.com/paulmach/orb"
	"github.com/tidwall/rtree"
)

//SpatialIndex 地图范围 R 树索引
type SpatialIndex struct {
	tree   rtree.RTreeG[string]
	bounds map[string]orb.Bound
	seq    map[string]int //insertion order, kept across re-inserts
	next   int
}

//NewSpatialIndex 创建空索引
func NewSpatialIndex() *SpatialIndex {
	return &SpatialIndex{bounds: make(map[string]orb.Bound), seq: make(map[string]int)}
}

//Insert 插入地图范围, 已存在时替换范围并保留原顺序
func (si *SpatialIndex) Insert(id string, b orb.Bound) {
	if old, ok := si.bounds[id]; ok {
		si.tree.Delete(old.Min, old.Max, id)
	} else {
		si.seq[id] = si.next
		si.next++
	}
	si.tree.Insert(b.Min, b.Max, id)
	si.bounds[id] = b
}

//Remove 删除地图范围
func (si *SpatialIndex) Remove(id string) bool {
	b, ok := si.bounds[id]
	if !ok {
		return false
	}
	si.tree.Delete(b.Min, b.Max, id)
	delete(si.bounds, id)
	delete(si.seq, id)
	return true
}

//Bound 查询已插入的范围
func (si *SpatialIndex) Bound(id string) (orb.Bound, bool) {
	b, ok := si.bounds[id]
	return b, ok
}

//Search 返回与 b 相交的地图, 按插入顺序
func (si *SpatialIndex) Search(b orb.Bound) []string {
	var ids []string
	si.tree.Search(b.Min, b.Max, func(min, max [2]float64, id string) bool {
		ids = append(ids, id)
		return true
	})
	sort.Slice(ids, func(i, j int) bool {
		return si.seq[ids[i]] < si.seq[ids[j]]
	})
	return ids
}

//Len 索引中的地图数量
func (si *SpatialIndex) Len() int {
	return len(si.bounds)
}
