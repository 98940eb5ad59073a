package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"

	_ "github.com/mattn/go-sqlite3"
)

//MBTilesPrefix MBTiles 瓦片地址前缀
const MBTilesPrefix = "mbtiles:"

//MBTileVersion mbtiles版本号
const MBTileVersion = "1.2"

//MBTiles 从 MBTiles 库读取瓦片, 地址形如 mbtiles:{z}/{col}/{row}, 行号自上而下
type MBTiles struct {
	File string
	db   *sql.DB
}

//OpenMBTiles 打开已有的 MBTiles 库
func OpenMBTiles(file string) (*MBTiles, error) {
	db, err := sql.Open("sqlite3", file)
	if err != nil {
		return nil, err
	}
	var n int
	if err := db.QueryRow("select count(*) from sqlite_master where type = 'table' and name = 'tiles'").Scan(&n); err != nil {
		db.Close()
		return nil, err
	}
	if n == 0 {
		db.Close()
		return nil, fmt.Errorf("%s: no tiles table", file)
	}
	return &MBTiles{File: file, db: db}, nil
}

//CreateMBTiles 新建 MBTiles 库并写入元数据
func CreateMBTiles(file string, meta map[string]string) (*MBTiles, error) {
	db, err := sql.Open("sqlite3", file)
	if err != nil {
		return nil, err
	}
	if err := setupMBTileTables(db, meta); err != nil {
		db.Close()
		return nil, err
	}
	return &MBTiles{File: file, db: db}, nil
}

func setupMBTileTables(db *sql.DB, meta map[string]string) error {
	err := optimizeConnection(db)
	if err != nil {
		return err
	}
	_, err = db.Exec("create table if not exists tiles (zoom_level integer, tile_column integer, tile_row integer, tile_data blob);")
	if err != nil {
		return err
	}
	_, err = db.Exec("create table if not exists metadata (name text, value text);")
	if err != nil {
		return err
	}
	_, err = db.Exec("create unique index if not exists name on metadata (name);")
	if err != nil {
		return err
	}
	_, err = db.Exec("create unique index if not exists tile_index on tiles(zoom_level, tile_column, tile_row);")
	if err != nil {
		return err
	}
	if _, ok := meta["version"]; !ok {
		meta = withDefault(meta, "version", MBTileVersion)
	}
	for name, value := range meta {
		_, err := db.Exec("insert or replace into metadata (name, value) values (?, ?)", name, value)
		if err != nil {
			return err
		}
	}
	return nil
}

func optimizeConnection(db *sql.DB) error {
	_, err := db.Exec("PRAGMA synchronous=0")
	if err != nil {
		return err
	}
	_, err = db.Exec("PRAGMA journal_mode=DELETE")
	if err != nil {
		return err
	}
	return nil
}

func withDefault(meta map[string]string, key, value string) map[string]string {
	out := make(map[string]string, len(meta)+1)
	for k, v := range meta {
		out[k] = v
	}
	out[key] = value
	return out
}

//Put 写入瓦片
func (m *MBTiles) Put(zoom, column, row int, data []byte) error {
	_, err := m.db.Exec("insert or replace into tiles (zoom_level, tile_column, tile_row, tile_data) values (?, ?, ?, ?);", zoom, column, row, data)
	return err
}

//Metadata 读取元数据
func (m *MBTiles) Metadata() (map[string]string, error) {
	rows, err := m.db.Query("select name, value from metadata")
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	meta := make(map[string]string)
	for rows.Next() {
		var name, value string
		if err := rows.Scan(&name, &value); err != nil {
			return nil, err
		}
		meta[name] = value
	}
	return meta, rows.Err()
}

//Fetch implements Fetcher
func (m *MBTiles) Fetch(ctx context.Context, url string) ([]byte, error) {
	z, col, row, err := parseMBTilesURL(url)
	if err != nil {
		return nil, err
	}
	var data []byte
	err = m.db.QueryRowContext(ctx, "select tile_data from tiles where zoom_level = ? and tile_column = ? and tile_row = ?", z, col, row).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("tile %d/%d/%d not found in %s", z, col, row, m.File)
	}
	if err != nil {
		return nil, err
	}
	if len(data) == 0 {
		return nil, errors.New("zero byte tile")
	}
	return data, nil
}

//Close 关闭库
func (m *MBTiles) Close() error {
	return m.db.Close()
}

func parseMBTilesURL(url string) (int, int, int, error) {
	path, ok := strings.CutPrefix(url, MBTilesPrefix)
	if !ok {
		return 0, 0, 0, fmt.Errorf("not an mbtiles url: %s", url)
	}
	parts := strings.Split(path, "/")
	if len(parts) != 3 {
		return 0, 0, 0, fmt.Errorf("bad mbtiles url: %s", url)
	}
	var nums [3]int
	for i, p := range parts {
		n, err := strconv.Atoi(p)
		if err != nil || n < 0 {
			return 0, 0, 0, fmt.Errorf("bad mbtiles url: %s", url)
		}
		nums[i] = n
	}
	return nums[0], nums[1], nums[2], nil
}
