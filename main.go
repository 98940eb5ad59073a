package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"time"

	nested "github.com/antonfisher/nested-logrus-formatter"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/project"
	"github.com/shiena/ansicolor"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/viper"
	pb "gopkg.in/cheggaaa/pb.v1"
	"gopkg.in/natefinch/lumberjack.v2"
)

// flag
var (
	hf bool
	cf string
)

func init() {
	flag.BoolVar(&hf, "h", false, "this help")
	flag.StringVar(&cf, "c", "conf.toml", "set config `file`")
	flag.Usage = usage
	//InitLog 初始化日志
	log.SetFormatter(&nested.Formatter{
		HideKeys:        true,
		ShowFullLevel:   true,
		TimestampFormat: "2006-01-02 15:04:05.000",
	})
	log.SetOutput(ansicolor.NewAnsiColorWriter(os.Stdout))
	log.SetLevel(log.DebugLevel)
}

func usage() {
	fmt.Fprintf(os.Stderr, `warper version: warper/v0.1.0
Usage: warper [-h] [-c filename]
`)
	flag.PrintDefaults()
}

// initConf 初始化配置
func initConf(cfgFile string) {
	if _, err := os.Stat(cfgFile); os.IsNotExist(err) {
		log.Warnf("config file(%s) not exist", cfgFile)
	}
	viper.SetConfigType("toml")
	viper.SetConfigFile(cfgFile)
	viper.AutomaticEnv() // read in environment variables that match
	err := viper.ReadInConfig()
	if err != nil {
		log.Warnf("read config file(%s) error, details: %s", viper.ConfigFileUsed(), err)
	}
	setDefaults(viper.GetViper())
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.version", "v 0.1.0")
	v.SetDefault("app.title", "Map Warper")
	v.SetDefault("tracker.minvisiblepixels", DefaultMinVisiblePixels)
	v.SetDefault("atlas.maxtexturesize", DefaultMaxTextureSize)
	v.SetDefault("atlas.maxtiles", DefaultMaxTiles)
	v.SetDefault("loader.workers", 8)
	v.SetDefault("loader.cachecost", DefaultCacheCost)
	v.SetDefault("loader.timeout", 0)
	v.SetDefault("loader.mbtiles", "")
	v.SetDefault("output.directory", "output")
	v.SetDefault("log.level", "debug")
	v.SetDefault("log.file", "")
}

//initLog 按配置设置日志级别与滚动日志文件
func initLog(v *viper.Viper) {
	if lvl, err := log.ParseLevel(v.GetString("log.level")); err == nil {
		log.SetLevel(lvl)
	} else {
		log.Warnf("unknown log level %s, keep debug ~", v.GetString("log.level"))
	}
	if file := v.GetString("log.file"); file != "" {
		log.SetOutput(io.MultiWriter(ansicolor.NewAnsiColorWriter(os.Stdout), &lumberjack.Logger{
			Filename:   file,
			MaxSize:    10,
			MaxBackups: 3,
			MaxAge:     28,
			LocalTime:  true,
		}))
	}
}

//optionsFromConfig 由配置构造核心选项
func optionsFromConfig(v *viper.Viper) Options {
	opts := DefaultOptions()
	opts.MinVisiblePixels = v.GetFloat64("tracker.minvisiblepixels")
	opts.MaxTextureSize = v.GetInt("atlas.maxtexturesize")
	opts.MaxTiles = v.GetInt("atlas.maxtiles")
	opts.Workers = v.GetInt("loader.workers")
	opts.CacheCost = v.GetInt64("loader.cachecost")
	opts.Timeout = v.GetDuration("loader.timeout")
	return opts
}

type cfgMap struct {
	ID           string
	URI          string
	Template     string
	Width        int
	Height       int
	TileWidth    int
	TileHeight   int
	ScaleFactors []int
	GCPs         string //geojson file
	Mask         [][]float64
}

func (c cfgMap) source() (MapSource, error) {
	gcps, err := loadGCPs(c.GCPs)
	if err != nil {
		return MapSource{}, fmt.Errorf("map %s gcps: %w", c.ID, err)
	}
	var mask []orb.Point
	for _, p := range c.Mask {
		if len(p) != 2 {
			return MapSource{}, fmt.Errorf("map %s: mask points must be [x, y]", c.ID)
		}
		mask = append(mask, orb.Point{p[0], p[1]})
	}
	return MapSource{
		ID: c.ID,
		Image: &ImageInfo{
			URI:          c.URI,
			Template:     c.Template,
			Width:        c.Width,
			Height:       c.Height,
			TileWidth:    c.TileWidth,
			TileHeight:   c.TileHeight,
			ScaleFactors: c.ScaleFactors,
		},
		GCPs:      gcps,
		PixelMask: mask,
	}, nil
}

type cfgView struct {
	Width  int
	Height int
	Extent []float64 //min lon, min lat, max lon, max lat
}

func (c cfgView) viewport() (Viewport, error) {
	if len(c.Extent) != 4 {
		return Viewport{}, fmt.Errorf("view extent must be [minlon, minlat, maxlon, maxlat]")
	}
	extent := orb.Bound{
		Min: project.WGS84.ToMercator(orb.Point{c.Extent[0], c.Extent[1]}),
		Max: project.WGS84.ToMercator(orb.Point{c.Extent[2], c.Extent[3]}),
	}
	return NewViewport(Size{Width: c.Width, Height: c.Height}, extent), nil
}

//newFetcher http(s) 走 HTTP, mbtiles: 走本地库
func newFetcher(v *viper.Viper) (Fetcher, func(), error) {
	f := &SchemeFetcher{
		Routes:  map[string]Fetcher{},
		Default: &HTTPFetcher{},
	}
	closer := func() {}
	if file := v.GetString("loader.mbtiles"); file != "" {
		mb, err := OpenMBTiles(file)
		if err != nil {
			return nil, nil, err
		}
		f.Routes[MBTilesPrefix] = mb
		closer = func() {
			mb.Close()
		}
	}
	return f, closer, nil
}

func run(v *viper.Viper) error {
	fetcher, closeFetcher, err := newFetcher(v)
	if err != nil {
		return err
	}
	defer closeFetcher()

	outdir := v.GetString("output.directory")
	w, err := NewWarper(optionsFromConfig(v), fetcher, &FileUploader{Dir: outdir})
	if err != nil {
		return err
	}
	defer w.Close()

	var cfgMaps []cfgMap
	if err := v.UnmarshalKey("maps", &cfgMaps); err != nil {
		return fmt.Errorf("maps config error: %w", err)
	}
	for _, c := range cfgMaps {
		src, err := c.source()
		if err != nil {
			log.Errorf("%s ~", err)
			continue
		}
		if _, err := w.AddMap(src); err != nil {
			log.Errorf("add map %s error, details: %s ~", c.ID, err)
		}
	}

	var cfgViews []cfgView
	if err := v.UnmarshalKey("views", &cfgViews); err != nil {
		return fmt.Errorf("views config error: %w", err)
	}
	for i, c := range cfgViews {
		vp, err := c.viewport()
		if err != nil {
			log.Errorf("view %d: %s ~", i, err)
			continue
		}
		start := time.Now()
		events := w.UpdateNeededTiles(vp)
		bar := pb.New(w.Pending()).Prefix(fmt.Sprintf("View %d : ", i)).Postfix("\n")
		bar.Start()
		sub := w.Subscribe(func(e Event) {
			switch e.(type) {
			case TileLoaded, TileLoadingError:
				bar.Increment()
			}
		})
		err = w.Wait(context.Background())
		w.Unsubscribe(sub)
		bar.FinishPrint(fmt.Sprintf("View %d finished, %d events, %.3fs ~", i, len(events), time.Since(start).Seconds()))
		if err != nil {
			return err
		}
	}
	return nil
}

func main() {
	flag.Parse()
	if hf {
		flag.Usage()
		return
	}

	if cf == "" {
		cf = "conf.toml"
	}
	initConf(cf)
	initLog(viper.GetViper())
	start := time.Now()
	if err := run(viper.GetViper()); err != nil {
		log.Fatal(err)
	}
	log.Printf("%.3fs finished...", time.Since(start).Seconds())
}
