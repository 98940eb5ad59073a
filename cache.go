package main

import (
	"image"

	"github.com/dgraph-io/ristretto/v2"
)

//DefaultCacheCost 解码瓦片缓存默认容量 (字节)
const DefaultCacheCost = 256 << 20

//BitmapCache 已解码瓦片缓存, 按 URL 索引, 成本为像素字节数.
//nil 缓存的所有操作都是空操作.
type BitmapCache struct {
	cache *ristretto.Cache[string, *image.RGBA]
}

//NewBitmapCache 创建缓存, maxCost <= 0 时返回 nil 缓存
func NewBitmapCache(maxCost int64) (*BitmapCache, error) {
	if maxCost <= 0 {
		return nil, nil
	}
	// about one counter per 64KiB tile, ten times over
	counters := max(maxCost/(64<<10)*10, 1000)
	cache, err := ristretto.NewCache[string, *image.RGBA](&ristretto.Config[string, *image.RGBA]{
		NumCounters: counters,
		MaxCost:     maxCost,
		BufferItems: 64,
	})
	if err != nil {
		return nil, err
	}
	return &BitmapCache{cache: cache}, nil
}

//Get 读取缓存
func (c *BitmapCache) Get(url string) (*image.RGBA, bool) {
	if c == nil {
		return nil, false
	}
	return c.cache.Get(url)
}

//Set 写入缓存
func (c *BitmapCache) Set(url string, bm *image.RGBA) {
	if c == nil || bm == nil {
		return
	}
	c.cache.Set(url, bm, int64(len(bm.Pix)))
	c.cache.Wait()
}

//Del 删除缓存
func (c *BitmapCache) Del(url string) {
	if c == nil {
		return
	}
	c.cache.Del(url)
}

//Close 释放缓存
func (c *BitmapCache) Close() {
	if c == nil {
		return
	}
	c.cache.Close()
}
