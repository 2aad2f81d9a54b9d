package main

import (
	"context"
	"errors"
	"net/http"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/maptile"
)

// ErrTileNotFound is returned by Archive.Tile when the coordinate has no data.
var ErrTileNotFound = errors.New("tile does not exist")

// Metadata 瓦片包元数据
type Metadata struct {
	Name         string
	Format       string
	Description  string
	Version      string
	Type         string
	Attribution  string
	Bounds       orb.Bound
	Center       [3]float64 // lon, lat, zoom
	MinZoom      int
	MaxZoom      int
	VectorLayers []byte
}

// Archive is a read-only tile archive.
type Archive interface {
	Metadata(ctx context.Context) (*Metadata, error)
	// Tile returns the tile blob and the headers describing it.
	Tile(ctx context.Context, t maptile.Tile) ([]byte, http.Header, error)
	Close() error
}

// Opener opens the archive stored at path.
type Opener func(path string) (Archive, error)

// MBTilesOpener returns an Opener for mbtiles files using the given sql driver.
func MBTilesOpener(driver string) Opener {
	return func(path string) (Archive, error) {
		return OpenMBTiles(path, driver)
	}
}
