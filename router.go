package main

import (
	"errors"
	"fmt"
	"net/http"
	"path"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/goccy/go-json"
	"github.com/paulmach/orb/maptile"
	"github.com/sirupsen/logrus"
	"github.com/teris-io/shortid"
)

// TileCacheControl is sent with every tile response, about a hundred years.
const TileCacheControl = "public, max-age=3153660000"

// RouterOptions 路由可选项
type RouterOptions struct {
	// StaticDir is served at / when set. A file there wins over any route
	// with the same path.
	StaticDir string
}

type router struct {
	cfg *ServerConfig
}

// NewRouter builds the http handler for cfg. cfg must not change afterwards.
func NewRouter(cfg *ServerConfig, opts RouterOptions) http.Handler {
	rt := &router{cfg: cfg}

	r := chi.NewRouter()
	r.Use(chimiddleware.Recoverer)
	r.Use(requestLogger)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{http.MethodGet, http.MethodHead, http.MethodOptions},
		AllowedHeaders: []string{"content-type"},
	}))
	if opts.StaticDir != "" {
		r.Use(staticFiles(opts.StaticDir))
	}
	r.Use(chimiddleware.GetHead)

	r.Get("/pbf", rt.handleList(FormatPBF))
	r.Get("/raster", rt.handleList(FormatPNG))
	r.Get("/{source}/{z}/{x}/{y}.{ext}", rt.handleTile)
	return r
}

// staticFiles serves regular files under dir ahead of the routes.
func staticFiles(dir string) func(http.Handler) http.Handler {
	root := http.Dir(dir)
	fs := http.FileServer(root)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if (r.Method == http.MethodGet || r.Method == http.MethodHead) && isFile(root, r.URL.Path) {
				w.Header().Set("Access-Control-Allow-Origin", "*")
				fs.ServeHTTP(w, r)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// isFile reports whether name is a regular file, or a directory with an index.html.
func isFile(root http.FileSystem, name string) bool {
	f, err := root.Open(name)
	if err != nil {
		return false
	}
	defer f.Close()
	fi, err := f.Stat()
	if err != nil {
		return false
	}
	if fi.IsDir() {
		return isFile(root, path.Join(name, "index.html"))
	}
	return true
}

func setTileHeaders(w http.ResponseWriter) {
	h := w.Header()
	h.Set("Access-Control-Allow-Origin", "*")
	h.Set("Access-Control-Allow-Headers", "content-type")
	h.Set("Access-Control-Allow-Methods", "*")
	h.Set("Cache-Control", TileCacheControl)
}

func (rt *router) handleTile(w http.ResponseWriter, r *http.Request) {
	setTileHeaders(w)

	format := ParseFormat(chi.URLParam(r, "ext"))
	switch format {
	case FormatPBF, FormatPNG:
	case FormatUnsupported:
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(fmt.Sprintf("unsupported tile format: %q\n", chi.URLParam(r, "ext"))))
		return
	}

	ts, ok := rt.cfg.Sources[chi.URLParam(r, "source")]
	if !ok {
		w.WriteHeader(http.StatusNotFound)
		return
	}

	tile, err := parseTile(chi.URLParam(r, "z"), chi.URLParam(r, "x"), chi.URLParam(r, "y"))
	if err != nil {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(err.Error() + "\n"))
		return
	}

	// a source only answers on its own extension
	if ts.Format != format {
		w.WriteHeader(http.StatusNotFound)
		return
	}

	data, headers, err := ts.Archive().Tile(r.Context(), tile)
	if err != nil {
		if !errors.Is(err, ErrTileNotFound) {
			log.Warnf("source %s: %s", ts.ID, err)
		}
		w.WriteHeader(http.StatusNotFound)
		return
	}

	switch format {
	case FormatPBF:
		for k, vs := range headers {
			w.Header()[k] = vs
		}
	case FormatPNG:
		w.Header().Set("Content-Type", "image/png")
	}
	w.Header().Set("Content-Length", strconv.Itoa(len(data)))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

func parseTile(zs, xs, ys string) (maptile.Tile, error) {
	z, err := strconv.ParseUint(zs, 10, 32)
	if err != nil {
		return maptile.Tile{}, fmt.Errorf("bad z value: %q", zs)
	}
	x, err := strconv.ParseUint(xs, 10, 32)
	if err != nil {
		return maptile.Tile{}, fmt.Errorf("bad x value: %q", xs)
	}
	y, err := strconv.ParseUint(ys, 10, 32)
	if err != nil {
		return maptile.Tile{}, fmt.Errorf("bad y value: %q", ys)
	}
	return maptile.New(uint32(x), uint32(y), maptile.Zoom(z)), nil
}

type sourceView struct {
	ID           string          `json:"id"`
	Name         string          `json:"name,omitempty"`
	Description  string          `json:"description,omitempty"`
	Version      string          `json:"version,omitempty"`
	Type         string          `json:"type,omitempty"`
	Format       string          `json:"format"`
	Attribution  string          `json:"attribution,omitempty"`
	Bounds       [4]float64      `json:"bounds"`
	Center       [3]float64      `json:"center"`
	MinZoom      int             `json:"minzoom"`
	MaxZoom      int             `json:"maxzoom"`
	Tiles        []string        `json:"tiles"`
	VectorLayers json.RawMessage `json:"vector_layers,omitempty"`
}

type listing struct {
	Address string                `json:"address"`
	Port    int                   `json:"port"`
	Center  [3]float64            `json:"center"`
	Zoom    int                   `json:"zoom"`
	Sources map[string]sourceView `json:"sources"`
}

func (rt *router) handleList(format Format) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var sources map[string]*Tileset
		switch format {
		case FormatPBF:
			sources = rt.cfg.VectorSources()
		case FormatPNG:
			sources = rt.cfg.RasterSources()
		case FormatUnsupported:
			sources = map[string]*Tileset{}
		}

		out := listing{
			Address: rt.cfg.Address,
			Port:    rt.cfg.Port,
			Center:  rt.cfg.Center,
			Zoom:    rt.cfg.Zoom,
			Sources: make(map[string]sourceView, len(sources)),
		}
		for id, ts := range sources {
			u := TileURL{Address: rt.cfg.Address, Port: rt.cfg.Port, Source: id, Format: ts.Format}
			out.Sources[id] = sourceView{
				ID:           id,
				Name:         ts.Name,
				Description:  ts.Description,
				Version:      ts.Version,
				Type:         ts.Type,
				Format:       ts.RawFormat,
				Attribution:  ts.Attribution,
				Bounds:       [4]float64{ts.Bounds.Min[0], ts.Bounds.Min[1], ts.Bounds.Max[0], ts.Bounds.Max[1]},
				Center:       ts.Center,
				MinZoom:      ts.MinZoom,
				MaxZoom:      ts.MaxZoom,
				Tiles:        []string{u.Template()},
				VectorLayers: ts.VectorLayers,
			}
		}

		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(out); err != nil {
			log.Errorf("write listing: %s", err)
		}
	}
}

// requestLogger logs each request with a short id.
func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		id, err := shortid.Generate()
		if err == nil {
			w.Header().Set("X-Request-Id", id)
		}
		ww := chimiddleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		log.WithFields(logrus.Fields{
			"id":     id,
			"status": ww.Status(),
		}).Debugf("%s %s %dB %dms", r.Method, r.URL.Path, ww.BytesWritten(), time.Since(start).Milliseconds())
	})
}
