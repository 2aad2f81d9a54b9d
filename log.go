package main

import (
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/sirupsen/logrus"

	nested "github.com/antonfisher/nested-logrus-formatter"
	"github.com/shiena/ansicolor"
)

var log = logrus.New()

// InitLog 初始化日志
func InitLog() {
	if err := setupLog(log, conf, logLevel); err != nil {
		log.Fatalf("init log: %s", err)
	}
}

func setupLog(l *logrus.Logger, c *Conf, level string) error {
	l.SetFormatter(&nested.Formatter{
		HideKeys:        true,
		ShowFullLevel:   true,
		TimestampFormat: "2006-01-02 15:04:05.000",
	})
	logIO := make([]io.Writer, 0)
	if c.Output.LogDir != "" {
		if err := os.MkdirAll(c.Output.LogDir, os.ModePerm); err != nil {
			return err
		}
		filename := filepath.Join(c.Output.LogDir, time.Now().Format("2006-01-02.log"))
		file, err := os.OpenFile(filename, os.O_APPEND|os.O_CREATE|os.O_RDWR, 0644)
		if err != nil {
			return err
		}
		logIO = append(logIO, file)
	}
	if c.Output.OutputTerminal {
		logIO = append(logIO, os.Stdout)
	}

	// 融合日志输出
	l.SetOutput(ansicolor.NewAnsiColorWriter(io.MultiWriter(logIO...)))

	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		lvl = logrus.InfoLevel
	}
	if c.Output.Quiet && lvl > logrus.WarnLevel {
		lvl = logrus.WarnLevel
	}
	l.SetLevel(lvl)
	return nil
}
