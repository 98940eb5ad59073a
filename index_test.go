package main

import (
	"testing"

	"github.com/paulmach/orb"
	"github.com/stretchr/testify/assert"
)

func bound(minx, miny, maxx, maxy float64) orb.Bound {
	return orb.Bound{Min: orb.Point{minx, miny}, Max: orb.Point{maxx, maxy}}
}

func TestSpatialIndex(t *testing.T) {
	si := NewSpatialIndex()
	si.Insert("a", bound(0, 0, 10, 10))
	si.Insert("b", bound(20, 0, 30, 10))
	assert.Equal(t, 2, si.Len())

	assert.Equal(t, []string{"a", "b"}, si.Search(bound(5, 5, 25, 6)))
	assert.Equal(t, []string{"a"}, si.Search(bound(-5, -5, 1, 1)))
	assert.Empty(t, si.Search(bound(11, 0, 19, 10)))

	// re-inserting moves the box
	si.Insert("a", bound(100, 100, 110, 110))
	assert.Equal(t, 2, si.Len())
	assert.Empty(t, si.Search(bound(-5, -5, 1, 1)))
	assert.Equal(t, []string{"a"}, si.Search(bound(105, 105, 106, 106)))
	b, ok := si.Bound("a")
	assert.True(t, ok)
	assert.Equal(t, bound(100, 100, 110, 110), b)

	assert.True(t, si.Remove("a"))
	assert.False(t, si.Remove("a"))
	assert.Empty(t, si.Search(bound(105, 105, 106, 106)))
	assert.Equal(t, 1, si.Len())
}

func TestSpatialIndexInsertionOrder(t *testing.T) {
	si := NewSpatialIndex()
	for _, id := range []string{"e", "c", "a", "d", "b"} {
		si.Insert(id, bound(0, 0, 10, 10))
	}
	assert.Equal(t, []string{"e", "c", "a", "d", "b"}, si.Search(bound(1, 1, 2, 2)))

	// a moved box keeps its place, a re-added one goes last
	si.Insert("c", bound(1, 1, 9, 9))
	si.Remove("a")
	si.Insert("a", bound(0, 0, 10, 10))
	assert.Equal(t, []string{"e", "c", "d", "b", "a"}, si.Search(bound(1, 1, 2, 2)))
}
