package main

import (
	"context"
	"os"
)

func main() {
	// 初始化控制台
	InitFlag()
	// 开始安全退出任务
	InitSafeExit()
	// 初始化配置
	InitConf(configPath, archives)
	// 初始化日志
	InitLog()

	base, err := conf.Base()
	if err != nil {
		log.Fatalf("%s", err)
	}
	paths, err := conf.ArchivePaths()
	if err != nil {
		log.Fatalf("%s", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	SafeExitInst.Register(cancel)

	srv := NewServer(base, paths, MBTilesOpener(conf.Archives.Driver), RouterOptions{StaticDir: conf.Server.Static})
	srv.Progress = conf.Output.Progress && !conf.Output.Quiet
	if err := srv.Run(ctx); err != nil {
		log.Errorf("%s", err)
		os.Exit(1)
	}
}
