package main

import (
	"fmt"
	"os"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

const version = "v0.1.0"

var (
	hf         bool
	vf         bool
	configPath string
	logLevel   string
	archives   []string
)

// flag name -> config key
var flagKeys = map[string]string{
	"port":   "server.port",
	"ip":     "server.address",
	"static": "server.static",
	"center": "map.center",
	"zoom":   "map.zoom",
	"dir":    "archives.dir",
	"driver": "archives.driver",
	"quiet":  "output.quiet",
}

func InitFlag() {
	fs := newFlagSet()
	// ExitOnError
	_ = fs.Parse(os.Args[1:])

	if hf {
		fs.Usage()
		os.Exit(0)
	}
	if vf {
		fmt.Println(version)
		os.Exit(0)
	}
	if err := bindFlags(viper.GetViper(), fs); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	archives = fs.Args()
}

func newFlagSet() *pflag.FlagSet {
	fs := pflag.NewFlagSet("tileview", pflag.ExitOnError)
	fs.BoolVarP(&hf, "help", "h", false, "this help")
	fs.BoolVarP(&vf, "version", "v", false, "print version")
	fs.StringVarP(&configPath, "config", "c", "", "set config `file`")
	fs.StringVarP(&logLevel, "log-level", "l", "info", "set log level")
	fs.IntP("port", "p", 7900, "port to listen on")
	fs.String("ip", "", "bind address (default: first non-loopback IPv4)")
	fs.String("center", "", "map center as `lon,lat`")
	fs.Int("zoom", 0, "map zoom, overrides the archive's default")
	fs.String("dir", "assets", "`directory` scanned for .mbtiles when no files are given")
	fs.String("driver", DefaultDriver, "sql driver used to open archives (sqlite3, spatialite)")
	fs.String("static", "", "serve static files from `dir`")
	fs.BoolP("quiet", "q", false, "only log warnings and the address to visit")
	fs.Usage = func() { usage(fs) }
	return fs
}

func bindFlags(v *viper.Viper, fs *pflag.FlagSet) error {
	for name, key := range flagKeys {
		if err := v.BindPFlag(key, fs.Lookup(name)); err != nil {
			return fmt.Errorf("bind flag %s: %w", name, err)
		}
	}
	return nil
}

func usage(fs *pflag.FlagSet) {
	fmt.Fprintf(os.Stderr, `tileview version: tileview/%s
Usage: tileview [options] [files]
`, version)
	fs.PrintDefaults()
}
