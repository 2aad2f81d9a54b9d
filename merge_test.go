package main

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMergeDistinctSources(t *testing.T) {
	var sets []*Tileset
	for i := 0; i < 4; i++ {
		ts, _ := tileset(fmt.Sprintf("set%d", i), "pbf", [3]float64{1, 2, 3})
		sets = append(sets, ts)
	}

	cfg := Merge(BaseConfig{Port: 7900, Address: "10.0.0.2"}, sets)
	require.Len(t, cfg.Sources, 4)
	for _, ts := range sets {
		assert.Same(t, ts, cfg.Sources[ts.ID])
	}
	assert.Equal(t, 7900, cfg.Port)
	assert.Equal(t, "10.0.0.2", cfg.Address)
	assert.Equal(t, []string{"set0", "set1", "set2", "set3"}, cfg.IDs())
}

func TestMergeCollisionLastWins(t *testing.T) {
	first, firstArchive := tileset("world", "png", [3]float64{1, 1, 1})
	first.Path = "a/world.mbtiles"
	second, secondArchive := tileset("world", "png", [3]float64{2, 2, 2})
	second.Path = "b/world.mbtiles"

	cfg := Merge(BaseConfig{}, []*Tileset{first, second})
	require.Len(t, cfg.Sources, 1)
	assert.Same(t, second, cfg.Sources["world"])
	assert.Equal(t, 1, firstArchive.closeCount(), "loser is released")
	assert.Equal(t, 0, secondArchive.closeCount())
}

func TestMergeCollisionLoserCloseErrorIgnored(t *testing.T) {
	first, firstArchive := tileset("world", "png", [3]float64{})
	firstArchive.closeErr = errors.New("busy")
	second, _ := tileset("world", "png", [3]float64{})

	cfg := Merge(BaseConfig{}, []*Tileset{first, second})
	assert.Same(t, second, cfg.Sources["world"])
}

func TestMergeDerivesCenterFromFirstTileset(t *testing.T) {
	a, _ := tileset("a", "pbf", [3]float64{10.5, 20.5, 7})
	b, _ := tileset("b", "png", [3]float64{-1, -2, 3})

	cfg := Merge(BaseConfig{}, []*Tileset{a, b})
	assert.Equal(t, 7, cfg.Zoom)
	assert.Equal(t, [3]float64{10.5, 20.5, 7}, cfg.Center)
}

func TestMergeUserZoomWins(t *testing.T) {
	a, _ := tileset("a", "pbf", [3]float64{10.5, 20.5, 7})

	cfg := Merge(BaseConfig{Zoom: intp(3)}, []*Tileset{a})
	assert.Equal(t, 3, cfg.Zoom)
	assert.Equal(t, [3]float64{10.5, 20.5, 3}, cfg.Center)
}

func TestMergeUserCenterWins(t *testing.T) {
	a, _ := tileset("a", "pbf", [3]float64{10.5, 20.5, 7})

	cfg := Merge(BaseConfig{Center: point(100, 30)}, []*Tileset{a})
	assert.Equal(t, [3]float64{100, 30, 7}, cfg.Center)
	assert.Equal(t, 7, cfg.Zoom)

	cfg = Merge(BaseConfig{Center: point(100, 30), Zoom: intp(9)}, []*Tileset{a})
	assert.Equal(t, [3]float64{100, 30, 9}, cfg.Center)
	assert.Equal(t, 9, cfg.Zoom)
}

func TestMergeNoTilesets(t *testing.T) {
	cfg := Merge(BaseConfig{Port: 1}, nil)
	assert.Empty(t, cfg.Sources)
	assert.Equal(t, DefaultZoom, cfg.Zoom)
	assert.Equal(t, [3]float64{DefaultCenter[0], DefaultCenter[1], DefaultZoom}, cfg.Center)
}

func TestMergeDoesNotMutateTilesetCenter(t *testing.T) {
	a, _ := tileset("a", "pbf", [3]float64{1, 2, 7})
	Merge(BaseConfig{Zoom: intp(3)}, []*Tileset{a})
	assert.Equal(t, [3]float64{1, 2, 7}, a.Center)
}

func TestServerConfigFilters(t *testing.T) {
	world, _ := tileset("world", "png", [3]float64{})
	roads, _ := tileset("roads", "pbf", [3]float64{})
	sat, _ := tileset("sat", "jpg", [3]float64{})

	cfg := Merge(BaseConfig{}, []*Tileset{world, roads, sat})
	assert.Len(t, cfg.Sources, 3)

	raster := cfg.RasterSources()
	require.Len(t, raster, 1)
	assert.Contains(t, raster, "world")

	vector := cfg.VectorSources()
	require.Len(t, vector, 1)
	assert.Contains(t, vector, "roads")
}

func TestServerConfigClose(t *testing.T) {
	a, aa := tileset("a", "pbf", [3]float64{})
	b, ba := tileset("b", "pbf", [3]float64{})
	c, ca := tileset("c", "pbf", [3]float64{})
	ba.closeErr = errors.New("locked")
	ca.closeErr = errors.New("gone")

	cfg := Merge(BaseConfig{}, []*Tileset{a, b, c})
	err := cfg.Close()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "locked")
	assert.Contains(t, err.Error(), "gone")
	assert.Equal(t, 1, aa.closeCount())
	assert.Equal(t, 1, ba.closeCount())
	assert.Equal(t, 1, ca.closeCount())

	assert.NoError(t, cfg.Close(), "second close is a no-op")
}
