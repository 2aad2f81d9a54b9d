package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/hashicorp/go-multierror"
	"golang.org/x/sync/errgroup"
	pb "gopkg.in/cheggaaa/pb.v1"
)

// ErrNoArchives is returned when there is nothing to load.
var ErrNoArchives = errors.New("no tile archives configured")

// LoadError 瓦片包加载失败
type LoadError struct {
	Path string
	Err  error
}

func (e *LoadError) Error() string {
	return fmt.Sprintf("load %s: %v", e.Path, e.Err)
}

func (e *LoadError) Unwrap() error {
	return e.Err
}

// LoadTileset opens the archive at path and reads its metadata.
// On failure no Tileset is returned and any opened handle is closed.
func LoadTileset(ctx context.Context, open Opener, path string) (*Tileset, error) {
	start := time.Now()
	a, err := open(path)
	if err != nil {
		return nil, &LoadError{Path: path, Err: err}
	}
	md, err := a.Metadata(ctx)
	if err != nil {
		a.Close()
		return nil, &LoadError{Path: path, Err: err}
	}
	ts := NewTileset(Basename(path), path, md, a)
	log.Debugf("loaded %s as %q (%s, z%d-%d) in %dms", path, ts.ID, ts.RawFormat, ts.MinZoom, ts.MaxZoom, time.Since(start).Milliseconds())
	return ts, nil
}

// LoadAll loads every path concurrently. Either all archives load or the
// first failure is returned and the ones already loaded are closed.
// The result is in paths order.
func LoadAll(ctx context.Context, open Opener, paths []string, bar *pb.ProgressBar) ([]*Tileset, error) {
	if len(paths) == 0 {
		return nil, ErrNoArchives
	}
	tilesets := make([]*Tileset, len(paths))
	g, gctx := errgroup.WithContext(ctx)
	for i, path := range paths {
		i, path := i, path
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return &LoadError{Path: path, Err: err}
			}
			ts, err := LoadTileset(gctx, open, path)
			if err != nil {
				return err
			}
			tilesets[i] = ts
			if bar != nil {
				bar.Increment()
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		if cerr := closeTilesets(tilesets); cerr != nil {
			log.Warnf("release loaded archives: %s", cerr)
		}
		return nil, err
	}
	return tilesets, nil
}

func closeTilesets(tilesets []*Tileset) error {
	var result error
	for _, ts := range tilesets {
		if ts == nil {
			continue
		}
		if err := ts.Close(); err != nil {
			result = multierror.Append(result, fmt.Errorf("close %s: %w", ts.Path, err))
		}
	}
	return result
}
