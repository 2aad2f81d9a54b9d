package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/paulmach/orb"
	"github.com/spf13/viper"
)

var conf *Conf

type Conf struct {
	App struct {
		Version string `mapstructure:"version"`
		Title   string `mapstructure:"title"`
	} `mapstructure:"app"`
	Server struct {
		Port    int    `mapstructure:"port"`
		Address string `mapstructure:"address"`
		Static  string `mapstructure:"static"`
	} `mapstructure:"server"`
	Map struct {
		Center string `mapstructure:"center"`
		Zoom   int    `mapstructure:"zoom"`
	} `mapstructure:"map"`
	Archives struct {
		Paths  []string `mapstructure:"paths"`
		Dir    string   `mapstructure:"dir"`
		Driver string   `mapstructure:"driver"`
	} `mapstructure:"archives"`
	Output struct {
		LogDir         string `mapstructure:"logDir"`
		OutputTerminal bool   `mapstructure:"outputTerminal"`
		Quiet          bool   `mapstructure:"quiet"`
		Progress       bool   `mapstructure:"progress"`
	} `mapstructure:"output"`

	zoomSet bool
}

// InitConf 初始化配置
func InitConf(cfgFile string, args []string) {
	c, err := LoadConf(viper.GetViper(), cfgFile, args)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	conf = c
}

// LoadConf reads the optional config file, env and bound flags into a Conf.
// args are archive paths given on the command line.
func LoadConf(v *viper.Viper, cfgFile string, args []string) (*Conf, error) {
	// 设置默认值
	v.SetDefault("app.version", version)
	v.SetDefault("app.title", "tileview")
	v.SetDefault("server.port", 7900)
	v.SetDefault("archives.dir", "assets")
	v.SetDefault("archives.driver", DefaultDriver)
	v.SetDefault("output.outputTerminal", true)
	v.SetDefault("output.progress", true)

	v.SetEnvPrefix("TILEVIEW")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if cfgFile != "" {
		if _, err := os.Stat(cfgFile); os.IsNotExist(err) {
			return nil, fmt.Errorf("config file(%s) not exist", cfgFile)
		}
		v.SetConfigType("toml")
		v.SetConfigFile(cfgFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config file(%s) error, details: %w", v.ConfigFileUsed(), err)
		}
	}
	if len(args) > 0 {
		v.Set("archives.paths", args)
	}

	c := new(Conf)
	if err := v.Unmarshal(c); err != nil {
		return nil, fmt.Errorf("config parse failed: %w", err)
	}
	c.zoomSet = v.IsSet("map.zoom")
	return c, nil
}

// Base builds the server-level configuration handed to Merge.
func (c *Conf) Base() (BaseConfig, error) {
	base := BaseConfig{
		Port:    c.Server.Port,
		Address: c.Server.Address,
	}
	if base.Port < 0 || base.Port > int(^uint16(0)) {
		return base, fmt.Errorf("invalid listen port: %d", base.Port)
	}
	if base.Address == "" {
		base.Address = LocalIPv4()
	}
	if base.Address == "" {
		base.Address = "127.0.0.1"
	}
	if c.Map.Center != "" {
		ll, err := parseFloats(c.Map.Center, 2)
		if err != nil {
			return base, fmt.Errorf("invalid center %q: %w", c.Map.Center, err)
		}
		base.Center = &orb.Point{ll[0], ll[1]}
	}
	if c.zoomSet {
		z := c.Map.Zoom
		if z < 0 || z > ZoomMax {
			return base, fmt.Errorf("invalid zoom: %d", z)
		}
		base.Zoom = &z
	}
	return base, nil
}

// ArchivePaths returns the explicit archive paths, or scans the archive dir.
func (c *Conf) ArchivePaths() ([]string, error) {
	if len(c.Archives.Paths) > 0 {
		return c.Archives.Paths, nil
	}
	paths, err := scanArchives(c.Archives.Dir)
	if err != nil {
		return nil, fmt.Errorf("scan %s: %w", c.Archives.Dir, err)
	}
	return paths, nil
}
