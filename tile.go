package main

import (
	"strings"
	"sync"

	"github.com/paulmach/orb"
)

// ZoomMax 最大级别
const ZoomMax = 30

// DefaultZoom 默认级别
const DefaultZoom = 12

// DefaultCenter 默认中心点 (lon, lat)
var DefaultCenter = orb.Point{103.23, 35.33}

// WorldBound Web Mercator 全球范围
var WorldBound = orb.Bound{
	Min: orb.Point{-180, -85.05112877980659},
	Max: orb.Point{180, 85.05112877980659},
}

// Constants representing TileFormat types
const (
	GZIP string = "gzip" // encoding = gzip
	ZLIB        = "zlib" // encoding = deflate
	PNG         = "png"
	JPG         = "jpg"
	PBF         = "pbf"
	WEBP        = "webp"
)

// Format 瓦片格式
type Format int

const (
	FormatUnsupported Format = iota
	FormatPBF
	FormatPNG
)

// ParseFormat maps a metadata format or a url extension to a Format.
func ParseFormat(s string) Format {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case PBF:
		return FormatPBF
	case PNG:
		return FormatPNG
	default:
		return FormatUnsupported
	}
}

func (f Format) String() string {
	switch f {
	case FormatPBF:
		return PBF
	case FormatPNG:
		return PNG
	default:
		return "unsupported"
	}
}

// Tileset 已加载的瓦片数据集
type Tileset struct {
	ID           string
	Path         string
	Format       Format
	RawFormat    string
	Name         string
	Description  string
	Version      string
	Type         string
	Attribution  string
	Bounds       orb.Bound
	Center       [3]float64
	MinZoom      int
	MaxZoom      int
	VectorLayers []byte

	archive   Archive
	closeOnce sync.Once
}

// NewTileset builds a Tileset from an open archive and its metadata.
func NewTileset(id, path string, md *Metadata, a Archive) *Tileset {
	return &Tileset{
		ID:           id,
		Path:         path,
		Format:       ParseFormat(md.Format),
		RawFormat:    md.Format,
		Name:         md.Name,
		Description:  md.Description,
		Version:      md.Version,
		Type:         md.Type,
		Attribution:  md.Attribution,
		Bounds:       md.Bounds,
		Center:       md.Center,
		MinZoom:      md.MinZoom,
		MaxZoom:      md.MaxZoom,
		VectorLayers: md.VectorLayers,
		archive:      a,
	}
}

// Archive returns the read handle owned by the tileset.
func (t *Tileset) Archive() Archive {
	return t.archive
}

// Close releases the archive handle. Only the first call closes it, later
// calls return nil. The handle itself stays in place, so a request still in
// flight gets the archive's closed error instead of a nil archive.
func (t *Tileset) Close() (err error) {
	if t == nil || t.archive == nil {
		return nil
	}
	t.closeOnce.Do(func() {
		err = t.archive.Close()
	})
	return err
}
