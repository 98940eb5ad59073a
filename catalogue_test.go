package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTilesForExtent(t *testing.T) {
	tr, err := NewAffineTransformer(identityGCPs())
	require.NoError(t, err)
	img := &ImageInfo{URI: "https://iiif/img", Width: 1024, Height: 1024, TileWidth: 256, ScaleFactors: []int{1, 2, 4}}
	extent := bound(10, 10, 500, 500)

	// one source pixel per screen pixel
	tiles := TilesForExtent(tr, img, Size{Width: 490, Height: 490}, extent)
	require.Len(t, tiles, 4)
	for _, c := range tiles {
		assert.Equal(t, 1, c.Zoom.ScaleFactor)
	}
	assert.Equal(t, []int{0, 0, 1, 0, 0, 1, 1, 1}, []int{
		tiles[0].Column, tiles[0].Row, tiles[1].Column, tiles[1].Row,
		tiles[2].Column, tiles[2].Row, tiles[3].Column, tiles[3].Row,
	})

	tiles = TilesForExtent(tr, img, Size{Width: 200, Height: 200}, extent)
	require.Len(t, tiles, 1)
	assert.Equal(t, 2, tiles[0].Zoom.ScaleFactor)

	tiles = TilesForExtent(tr, img, Size{Width: 100, Height: 100}, extent)
	require.Len(t, tiles, 1)
	assert.Equal(t, 4, tiles[0].Zoom.ScaleFactor)

	// zoomed in past full resolution keeps the finest level
	tiles = TilesForExtent(tr, img, Size{Width: 4000, Height: 4000}, extent)
	require.Len(t, tiles, 4)
	assert.Equal(t, 1, tiles[0].Zoom.ScaleFactor)
}

func TestTilesForExtentOutsideImage(t *testing.T) {
	tr, err := NewAffineTransformer(identityGCPs())
	require.NoError(t, err)
	img := &ImageInfo{Width: 1024, Height: 1024}
	assert.Empty(t, TilesForExtent(tr, img, Size{Width: 100, Height: 100}, bound(2000, 2000, 3000, 3000)))
	assert.Empty(t, TilesForExtent(tr, img, Size{}, bound(0, 0, 10, 10)))
}

func TestZoomForRatio(t *testing.T) {
	img := &ImageInfo{Width: 1024, Height: 1024, ScaleFactors: []int{4, 1, 2}}
	levels := img.ZoomLevels()
	z, ok := zoomForRatio(levels, 3)
	require.True(t, ok)
	assert.Equal(t, 2, z.ScaleFactor)
	z, _ = zoomForRatio(levels, 0.5)
	assert.Equal(t, 1, z.ScaleFactor)
	z, _ = zoomForRatio(levels, 100)
	assert.Equal(t, 4, z.ScaleFactor)
	_, ok = zoomForRatio(nil, 1)
	assert.False(t, ok)
}
