package main

import (
	"fmt"
	"net"
	"strconv"
)

// TileURL 瓦片地址模板
type TileURL struct {
	Address string
	Port    int
	Source  string
	Format  Format
}

// Template returns the xyz url template for the source.
func (u TileURL) Template() string {
	host := net.JoinHostPort(u.Address, strconv.Itoa(u.Port))
	return fmt.Sprintf("http://%s/%s/{z}/{x}/{y}.%s", host, u.Source, u.Format)
}
