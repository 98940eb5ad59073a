package main

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConfigDefaults(t *testing.T) {
	v := viper.New()
	setDefaults(v)
	opts := optionsFromConfig(v)
	assert.Equal(t, DefaultOptions(), opts)
	assert.NoError(t, opts.Validate())
	assert.Equal(t, "output", v.GetString("output.directory"))
}

func TestConfigMapsAndViews(t *testing.T) {
	dir := t.TempDir()
	gcps := filepath.Join(dir, "gcps.geojson")
	require.NoError(t, os.WriteFile(gcps, []byte(gcpCollection), 0644))

	conf := `
[atlas]
maxtiles = 16
[loader]
workers = 2
timeout = "3s"

[[maps]]
id = "A"
uri = "https://iiif/img"
width = 1000
height = 1000
scalefactors = [1, 2, 4]
gcps = "` + filepath.ToSlash(gcps) + `"
mask = [[0, 0], [1000, 0], [500, 1000]]

[[views]]
width = 800
height = 600
extent = [0, -1, 1, 0]
`
	v := viper.New()
	v.SetConfigType("toml")
	require.NoError(t, v.ReadConfig(strings.NewReader(conf)))
	setDefaults(v)

	opts := optionsFromConfig(v)
	assert.Equal(t, 16, opts.MaxTiles)
	assert.Equal(t, 2, opts.Workers)
	assert.Equal(t, 3*time.Second, opts.Timeout)
	assert.Equal(t, DefaultMaxTextureSize, opts.MaxTextureSize)

	var maps []cfgMap
	require.NoError(t, v.UnmarshalKey("maps", &maps))
	require.Len(t, maps, 1)
	src, err := maps[0].source()
	require.NoError(t, err)
	assert.Equal(t, "A", src.ID)
	assert.Equal(t, []int{1, 2, 4}, src.Image.ScaleFactors)
	assert.Len(t, src.GCPs, 3)
	assert.Len(t, src.PixelMask, 3)

	var views []cfgView
	require.NoError(t, v.UnmarshalKey("views", &views))
	require.Len(t, views, 1)
	vp, err := views[0].viewport()
	require.NoError(t, err)
	assert.Equal(t, Size{Width: 800, Height: 600}, vp.Size)
	assert.InDelta(t, 111319.49, vp.Extent.Max[0], 0.01)

	w, err := NewWarper(opts, colorFetcher(t), nil)
	require.NoError(t, err)
	defer w.Close()
	m, err := w.AddMap(src)
	require.NoError(t, err)
	assert.True(t, m.GeoExtent.Intersects(vp.Extent))
}
