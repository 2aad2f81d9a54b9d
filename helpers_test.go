package main

import (
	"context"
	"errors"
	"net/http"
	"sync"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/maptile"
)

type fakeArchive struct {
	md       *Metadata
	mdErr    error
	tiles    map[maptile.Tile][]byte
	headers  http.Header
	closeErr error

	mu     sync.Mutex
	closed int
}

func (f *fakeArchive) Metadata(ctx context.Context) (*Metadata, error) {
	if f.mdErr != nil {
		return nil, f.mdErr
	}
	return f.md, nil
}

var errFakeClosed = errors.New("archive is closed")

func (f *fakeArchive) Tile(ctx context.Context, t maptile.Tile) ([]byte, http.Header, error) {
	if f.closeCount() > 0 {
		return nil, nil, errFakeClosed
	}
	data, ok := f.tiles[t]
	if !ok {
		return nil, nil, ErrTileNotFound
	}
	h := make(http.Header)
	for k, vs := range f.headers {
		h[k] = vs
	}
	return data, h, nil
}

func (f *fakeArchive) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed++
	return f.closeErr
}

func (f *fakeArchive) closeCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closed
}

func newFakeArchive(format string, center [3]float64) *fakeArchive {
	return &fakeArchive{
		md: &Metadata{
			Name:    "fake " + format,
			Format:  format,
			Bounds:  WorldBound,
			Center:  center,
			MinZoom: 0,
			MaxZoom: 14,
		},
		tiles: make(map[maptile.Tile][]byte),
	}
}

// fakeOpener hands out archives by path.
type fakeOpener struct {
	mu       sync.Mutex
	archives map[string]*fakeArchive
	errs     map[string]error
	gates    map[string]chan struct{}
	opened   []string
}

func newFakeOpener() *fakeOpener {
	return &fakeOpener{
		archives: make(map[string]*fakeArchive),
		errs:     make(map[string]error),
		gates:    make(map[string]chan struct{}),
	}
}

func (o *fakeOpener) add(path string, a *fakeArchive) *fakeArchive {
	o.archives[path] = a
	return a
}

func (o *fakeOpener) open(path string) (Archive, error) {
	if gate, ok := o.gates[path]; ok {
		<-gate
	}
	o.mu.Lock()
	defer o.mu.Unlock()
	o.opened = append(o.opened, path)
	if err := o.errs[path]; err != nil {
		return nil, err
	}
	a, ok := o.archives[path]
	if !ok {
		return nil, errors.New("no such archive")
	}
	return a, nil
}

func tileset(id, format string, center [3]float64) (*Tileset, *fakeArchive) {
	a := newFakeArchive(format, center)
	return NewTileset(id, "/tiles/"+id+".mbtiles", a.md, a), a
}

func point(lon, lat float64) *orb.Point {
	return &orb.Point{lon, lat}
}

func intp(i int) *int {
	return &i
}
