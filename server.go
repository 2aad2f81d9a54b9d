package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/hashicorp/go-multierror"
	pb "gopkg.in/cheggaaa/pb.v1"
)

// State 服务状态
type State int32

const (
	StateUnstarted State = iota
	StateLoading
	StateReady
	StateFailed
	StateListening
	StateStopped
)

func (s State) String() string {
	switch s {
	case StateUnstarted:
		return "unstarted"
	case StateLoading:
		return "loading"
	case StateReady:
		return "ready"
	case StateFailed:
		return "failed"
	case StateListening:
		return "listening"
	case StateStopped:
		return "stopped"
	default:
		return "State(" + strconv.Itoa(int(s)) + ")"
	}
}

// Server loads the archives, merges the configuration and serves tiles.
type Server struct {
	Base            BaseConfig
	Paths           []string
	Open            Opener
	Options         RouterOptions
	Progress        bool
	ShutdownTimeout time.Duration

	state     int32
	addr      net.Addr
	cfg       *ServerConfig
	listening chan struct{}
	once      sync.Once
}

// NewServer 创建服务
func NewServer(base BaseConfig, paths []string, open Opener, opts RouterOptions) *Server {
	return &Server{
		Base:            base,
		Paths:           paths,
		Open:            open,
		Options:         opts,
		ShutdownTimeout: 5 * time.Second,
		listening:       make(chan struct{}),
	}
}

func (s *Server) State() State {
	return State(atomic.LoadInt32(&s.state))
}

func (s *Server) setState(st State) {
	old := State(atomic.SwapInt32(&s.state, int32(st)))
	log.Debugf("server %s -> %s", old, st)
	if st == StateListening {
		close(s.listening)
	}
}

// Listening is closed once the server has bound its address.
func (s *Server) Listening() <-chan struct{} {
	return s.listening
}

// Addr is the bound address. Only valid after Listening is closed.
func (s *Server) Addr() net.Addr {
	return s.addr
}

// URL is the base url of the bound listener, empty before Listening.
func (s *Server) URL() string {
	if s.addr == nil {
		return ""
	}
	return "http://" + s.addr.String()
}

// Config is the merged configuration. Only valid after Listening is closed.
func (s *Server) Config() *ServerConfig {
	return s.cfg
}

// Run serves until ctx is done, then shuts down and releases every archive.
// It may only be called once.
func (s *Server) Run(ctx context.Context) error {
	started := false
	s.once.Do(func() { started = true })
	if !started {
		return errors.New("server already started")
	}

	s.setState(StateLoading)
	var bar *pb.ProgressBar
	if s.Progress {
		bar = pb.New(len(s.Paths)).Prefix("Loading archives: ")
		bar.Start()
	}
	tilesets, err := LoadAll(ctx, s.Open, s.Paths, bar)
	if bar != nil {
		bar.Finish()
	}
	if err != nil {
		s.setState(StateFailed)
		return err
	}

	cfg := Merge(s.Base, tilesets)
	s.setState(StateReady)
	log.Infof("loaded %d sources: %v", len(cfg.Sources), cfg.IDs())

	ln, err := net.Listen("tcp", net.JoinHostPort(cfg.Address, strconv.Itoa(cfg.Port)))
	if err != nil {
		s.setState(StateFailed)
		if cerr := cfg.Close(); cerr != nil {
			log.Warnf("release archives: %s", cerr)
		}
		return fmt.Errorf("listen: %w", err)
	}

	srv := &http.Server{
		Handler:           NewRouter(cfg, s.Options),
		ReadHeaderTimeout: time.Second * 10,
		IdleTimeout:       time.Second * 60,
		MaxHeaderBytes:    10_000,
	}
	s.cfg = cfg
	s.addr = ln.Addr()
	s.setState(StateListening)
	fmt.Printf("Listening on %s\n", s.URL())

	errc := make(chan error, 1)
	go func() {
		errc <- srv.Serve(ln)
	}()

	var result error
	select {
	case err := <-errc:
		log.Errorf("http server error: %s", err)
		result = multierror.Append(result, err)
	case <-ctx.Done():
		log.Infof("closing server")
		sctx, cancel := context.WithTimeout(context.Background(), s.ShutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(sctx); err != nil {
			result = multierror.Append(result, err)
		}
		if err := <-errc; err != nil && !errors.Is(err, http.ErrServerClosed) {
			result = multierror.Append(result, err)
		}
	}

	if err := cfg.Close(); err != nil {
		result = multierror.Append(result, err)
	}
	s.setState(StateStopped)
	log.Infof("closed server")
	return result
}
