package main

import (
	"os"
	"os/signal"
	"sync"
	"syscall"
)

var SafeExitInst *SafeExit

func InitSafeExit() {
	SafeExitInst = new(SafeExit)
	go SafeExitInst.ListenSignal()
}

// SafeExit runs the registered funcs once on the first stop signal.
// A second signal exits the process immediately.
type SafeExit struct {
	funcs []func()
	mu    sync.Mutex
	once  sync.Once
}

func (s *SafeExit) Register(f func()) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.funcs = append(s.funcs, f)
}

func (s *SafeExit) exit() {
	s.once.Do(func() {
		s.mu.Lock()
		defer s.mu.Unlock()

		for _, f := range s.funcs {
			f()
		}
	})
}

func (s *SafeExit) ListenSignal() {
	sigs := make(chan os.Signal, 2)
	signal.Notify(sigs, syscall.SIGHUP, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)
	stopping := false
	for sig := range sigs {
		if stopping {
			log.Warnf("收到系统信号 %s, 强制退出", sig)
			os.Exit(1)
		}
		stopping = true
		log.Infof("收到系统信号 %s, 正在停止服务, 请稍后", sig)
		go s.exit()
	}
}
