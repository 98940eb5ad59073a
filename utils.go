package main

import (
	"encoding/json"
	"fmt"
	"image/png"
	"os"
	"path/filepath"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
	log "github.com/sirupsen/logrus"
)

//loadGCPs 读取 GeoJSON 控制点, 每个点要素的几何为经纬度, 属性 image 为像素坐标 [x, y]
func loadGCPs(path string) ([]GCP, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("unable to read file: %w", err)
	}
	fc, err := geojson.UnmarshalFeatureCollection(data)
	if err != nil {
		return nil, fmt.Errorf("unable to unmarshal feature collection: %w", err)
	}
	return gcpsFromFeatures(fc)
}

func gcpsFromFeatures(fc *geojson.FeatureCollection) ([]GCP, error) {
	gcps := make([]GCP, 0, len(fc.Features))
	for i, f := range fc.Features {
		pt, ok := f.Geometry.(orb.Point)
		if !ok {
			return nil, fmt.Errorf("feature %d: geometry must be a point, got %s", i, f.Geometry.GeoJSONType())
		}
		px, ok := pixelProperty(f.Properties["image"])
		if !ok {
			return nil, fmt.Errorf("feature %d: missing image [x, y] property", i)
		}
		gcps = append(gcps, GCP{Image: px, World: pt})
	}
	return lonLatToMercator(gcps), nil
}

func pixelProperty(v interface{}) (orb.Point, bool) {
	arr, ok := v.([]interface{})
	if !ok || len(arr) != 2 {
		return orb.Point{}, false
	}
	x, okx := arr[0].(float64)
	y, oky := arr[1].(float64)
	return orb.Point{x, y}, okx && oky
}

//atlasMeta 图集元数据文件
type atlasMeta struct {
	MapID        string   `json:"map"`
	Width        int      `json:"width"`
	Height       int      `json:"height"`
	URLs         []string `json:"urls"`
	ScaleFactors []int32  `json:"scaleFactors"`
	Positions    []int32  `json:"positions"`
	Regions      []int32  `json:"regions"`
}

//FileUploader 将图集保存为 PNG 与 JSON 元数据文件, 代替 GPU 上传
type FileUploader struct {
	Dir string
}

//Upload implements Uploader
func (u *FileUploader) Upload(mapID string, tex *AtlasTextures) error {
	return saveToFiles(mapID, tex, u.Dir)
}

func saveToFiles(mapID string, tex *AtlasTextures, rootdir string) error {
	if err := os.MkdirAll(rootdir, os.ModePerm); err != nil {
		return err
	}
	meta := atlasMeta{
		MapID:        mapID,
		Width:        tex.Width,
		Height:       tex.Height,
		URLs:         tex.URLs,
		ScaleFactors: tex.ScaleFactors,
		Positions:    tex.Positions,
		Regions:      tex.Regions,
	}
	data, err := json.MarshalIndent(meta, "", " ")
	if err != nil {
		return err
	}
	metaFile := filepath.Join(rootdir, mapID+".json")
	if err := os.WriteFile(metaFile, data, 0644); err != nil {
		return err
	}
	// an empty atlas has no image to encode
	if tex.Width == 0 || tex.Height == 0 {
		log.Debugf("%s written, empty atlas ~", metaFile)
		return nil
	}
	imgFile := filepath.Join(rootdir, mapID+".png")
	f, err := os.Create(imgFile)
	if err != nil {
		return err
	}
	defer f.Close()
	if err := png.Encode(f, tex.Image); err != nil {
		return err
	}
	log.Debugf("%s written, %dx%d, %d tiles ~", imgFile, tex.Width, tex.Height, tex.Len())
	return nil
}
