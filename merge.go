package main

import (
	"fmt"
	"sort"

	"github.com/hashicorp/go-multierror"
	"github.com/paulmach/orb"
)

// BaseConfig 服务端配置, 由命令行和配置文件提供
type BaseConfig struct {
	Port    int
	Address string
	// nil means derive from the first tileset
	Center *orb.Point
	Zoom   *int
}

// ServerConfig is built once by Merge and only read afterwards.
type ServerConfig struct {
	Port    int
	Address string
	// lon, lat, zoom
	Center  [3]float64
	Zoom    int
	Sources map[string]*Tileset
}

// Merge combines loaded tilesets with the base configuration. Tilesets are
// keyed by ID; on a collision the later one in the slice wins and the
// earlier one is closed.
func Merge(base BaseConfig, tilesets []*Tileset) *ServerConfig {
	sources := make(map[string]*Tileset, len(tilesets))
	for _, ts := range tilesets {
		if prev, ok := sources[ts.ID]; ok {
			log.Warnf("source %q from %s replaced by %s", ts.ID, prev.Path, ts.Path)
			if err := prev.Close(); err != nil {
				log.Warnf("close %s: %s", prev.Path, err)
			}
		}
		sources[ts.ID] = ts
	}

	cfg := &ServerConfig{
		Port:    base.Port,
		Address: base.Address,
		Sources: sources,
	}

	center := DefaultCenter
	zoom := DefaultZoom
	if len(tilesets) > 0 {
		first := tilesets[0].Center
		zoom = int(first[2])
		if base.Center == nil {
			center = orb.Point{first[0], first[1]}
		}
	}
	if base.Center != nil {
		center = *base.Center
	}
	if base.Zoom != nil {
		zoom = *base.Zoom
	}

	cfg.Zoom = zoom
	cfg.Center = [3]float64{center[0], center[1], float64(zoom)}
	return cfg
}

// VectorSources returns the sources holding vector tiles.
func (c *ServerConfig) VectorSources() map[string]*Tileset {
	return c.sourcesOf(FormatPBF)
}

// RasterSources returns the sources holding raster tiles.
func (c *ServerConfig) RasterSources() map[string]*Tileset {
	return c.sourcesOf(FormatPNG)
}

func (c *ServerConfig) sourcesOf(f Format) map[string]*Tileset {
	out := make(map[string]*Tileset)
	for id, ts := range c.Sources {
		if ts.Format == f {
			out[id] = ts
		}
	}
	return out
}

// IDs returns the source ids in sorted order.
func (c *ServerConfig) IDs() []string {
	ids := make([]string, 0, len(c.Sources))
	for id := range c.Sources {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Close releases every archive handle.
func (c *ServerConfig) Close() error {
	var result error
	for _, id := range c.IDs() {
		ts := c.Sources[id]
		if err := ts.Close(); err != nil {
			result = multierror.Append(result, fmt.Errorf("close %s: %w", ts.Path, err))
		}
	}
	return result
}
