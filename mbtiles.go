package main

import (
	"bytes"
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/goccy/go-json"
	_ "github.com/mattn/go-sqlite3"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/maptile"
	_ "github.com/shaxbee/go-spatialite"
)

// DefaultDriver sql驱动
const DefaultDriver = "sqlite3"

// MBTiles 基于 sqlite 的瓦片包
type MBTiles struct {
	path string
	db   *sql.DB
}

// OpenMBTiles opens the mbtiles file at path read-only.
func OpenMBTiles(path, driver string) (*MBTiles, error) {
	if driver == "" {
		driver = DefaultDriver
	}
	fi, err := os.Stat(path)
	if err != nil {
		return nil, err
	}
	if fi.IsDir() {
		return nil, fmt.Errorf("%s is a directory", path)
	}
	db, err := sql.Open(driver, readOnlyDSN(path))
	if err != nil {
		return nil, err
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, err
	}
	return &MBTiles{path: path, db: db}, nil
}

// readOnlyDSN builds a sqlite uri for path, escaping what the uri syntax
// would otherwise eat (#, %, ?).
func readOnlyDSN(path string) string {
	u := url.URL{Scheme: "file", OmitHost: true, Path: filepath.ToSlash(path), RawQuery: "mode=ro"}
	return u.String()
}

// Metadata reads the metadata table and fills in what it leaves out.
func (m *MBTiles) Metadata(ctx context.Context) (*Metadata, error) {
	rows, err := m.db.QueryContext(ctx, "SELECT name, value FROM metadata")
	if err != nil {
		return nil, fmt.Errorf("read metadata: %w", err)
	}
	defer rows.Close()

	kv := make(map[string]string)
	for rows.Next() {
		var name, value sql.NullString
		if err := rows.Scan(&name, &value); err != nil {
			return nil, fmt.Errorf("scan metadata: %w", err)
		}
		if name.Valid {
			kv[name.String] = value.String
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("read metadata: %w", err)
	}

	md := &Metadata{
		Name:        kv["name"],
		Format:      kv["format"],
		Description: kv["description"],
		Version:     kv["version"],
		Type:        kv["type"],
		Attribution: kv["attribution"],
		Bounds:      WorldBound,
	}

	if v, ok := kv["json"]; ok && v != "" {
		var doc struct {
			VectorLayers json.RawMessage `json:"vector_layers"`
		}
		if err := json.Unmarshal([]byte(v), &doc); err != nil {
			return nil, fmt.Errorf("metadata json: %w", err)
		}
		md.VectorLayers = doc.VectorLayers
	}

	if v := kv["bounds"]; v != "" {
		b, err := parseFloats(v, 4)
		if err != nil {
			return nil, fmt.Errorf("metadata bounds: %w", err)
		}
		md.Bounds = orb.Bound{Min: orb.Point{b[0], b[1]}, Max: orb.Point{b[2], b[3]}}
	}

	minSet, maxSet := false, false
	if v := kv["minzoom"]; v != "" {
		if md.MinZoom, err = strconv.Atoi(strings.TrimSpace(v)); err != nil {
			return nil, fmt.Errorf("metadata minzoom: %w", err)
		}
		minSet = true
	}
	if v := kv["maxzoom"]; v != "" {
		if md.MaxZoom, err = strconv.Atoi(strings.TrimSpace(v)); err != nil {
			return nil, fmt.Errorf("metadata maxzoom: %w", err)
		}
		maxSet = true
	}
	if !minSet || !maxSet {
		var lo, hi sql.NullInt64
		err := m.db.QueryRowContext(ctx, "SELECT MIN(zoom_level), MAX(zoom_level) FROM tiles").Scan(&lo, &hi)
		if err != nil {
			return nil, fmt.Errorf("zoom range: %w", err)
		}
		if !minSet {
			md.MinZoom = int(lo.Int64)
		}
		if !maxSet {
			md.MaxZoom = int(hi.Int64)
		}
	}

	if c, err := parseFloats(kv["center"], 3); err == nil {
		md.Center = [3]float64{c[0], c[1], c[2]}
	} else {
		md.Center = deriveCenter(md.Bounds, md.MinZoom, md.MaxZoom)
	}

	if md.Format == "" {
		var data []byte
		err := m.db.QueryRowContext(ctx, "SELECT tile_data FROM tiles LIMIT 1").Scan(&data)
		if err != nil && !errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("sniff format: %w", err)
		}
		md.Format, _ = tileHeaders(data)
	}
	return md, nil
}

// Tile reads one tile. The archive stores rows in TMS order.
func (m *MBTiles) Tile(ctx context.Context, t maptile.Tile) ([]byte, http.Header, error) {
	if t.Z > ZoomMax {
		return nil, nil, ErrTileNotFound
	}
	n := uint32(1) << uint32(t.Z)
	if t.X >= n || t.Y >= n {
		return nil, nil, ErrTileNotFound
	}
	row := n - 1 - t.Y

	var data []byte
	err := m.db.QueryRowContext(ctx,
		"SELECT tile_data FROM tiles WHERE zoom_level = ? AND tile_column = ? AND tile_row = ?",
		uint32(t.Z), t.X, row).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil, ErrTileNotFound
	}
	if err != nil {
		return nil, nil, fmt.Errorf("read tile %d/%d/%d: %w", t.Z, t.X, t.Y, err)
	}
	if len(data) == 0 {
		return nil, nil, ErrTileNotFound
	}
	_, h := tileHeaders(data)
	return data, h, nil
}

// Close 关闭数据库
func (m *MBTiles) Close() error {
	return m.db.Close()
}

var (
	pngMagic  = []byte{0x89, 0x50, 0x4E, 0x47, 0x0D, 0x0A, 0x1A, 0x0A}
	jpgMagic  = []byte{0xFF, 0xD8, 0xFF}
	gifMagic  = []byte("GIF8")
	gzipMagic = []byte{0x1F, 0x8B}
	zlibMagic = []byte{0x78, 0x9C}
)

// tileHeaders sniffs the tile type from its leading bytes.
func tileHeaders(data []byte) (string, http.Header) {
	h := make(http.Header)
	switch {
	case bytes.HasPrefix(data, pngMagic):
		h.Set("Content-Type", "image/png")
		return PNG, h
	case bytes.HasPrefix(data, jpgMagic):
		h.Set("Content-Type", "image/jpeg")
		return JPG, h
	case bytes.HasPrefix(data, gifMagic):
		h.Set("Content-Type", "image/gif")
		return "gif", h
	case len(data) >= 12 && bytes.Equal(data[:4], []byte("RIFF")) && bytes.Equal(data[8:12], []byte("WEBP")):
		h.Set("Content-Type", "image/webp")
		return WEBP, h
	}
	h.Set("Content-Type", "application/x-protobuf")
	switch {
	case bytes.HasPrefix(data, gzipMagic):
		h.Set("Content-Encoding", GZIP)
	case bytes.HasPrefix(data, zlibMagic):
		h.Set("Content-Encoding", "deflate")
	}
	if len(data) == 0 {
		return "", h
	}
	return PBF, h
}

func parseFloats(s string, n int) ([]float64, error) {
	parts := strings.Split(s, ",")
	if len(parts) != n {
		return nil, fmt.Errorf("want %d values, got %q", n, s)
	}
	out := make([]float64, n)
	for i, p := range parts {
		f, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
		if err != nil {
			return nil, err
		}
		out[i] = f
	}
	return out, nil
}

// deriveCenter picks the middle of bounds at a zoom halfway through the range.
func deriveCenter(b orb.Bound, minZoom, maxZoom int) [3]float64 {
	c := b.Center()
	zoom := maxZoom
	if r := maxZoom - minZoom; r > 1 {
		zoom = r/2 + minZoom
	}
	return [3]float64{c[0], c[1], float64(zoom)}
}
