package counter

import (
	"bufio"
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// DefaultSysfsRoot 是内核暴露网卡的目录
const DefaultSysfsRoot = "/sys/class/net"

// Sysfs 从 <Root>/<iface>/statistics/<counter> 读取计数器
type Sysfs struct {
	Root string
}

// NewSysfs 返回一个 Sysfs；root 为空时使用 /sys/class/net
func NewSysfs(root string) *Sysfs {
	if root == "" {
		root = DefaultSysfsRoot
	}
	return &Sysfs{Root: root}
}

// Path 返回计数器文件的路径
func (s *Sysfs) Path(iface string, c Counter) string {
	return filepath.Join(s.Root, iface, "statistics", string(c))
}

func (s *Sysfs) Read(_ context.Context, iface string, c Counter) (uint64, error) {
	f, err := os.Open(s.Path(iface, c))
	if err != nil {
		return 0, readErr(iface, c, err)
	}
	defer f.Close()

	// 只看第一行
	r := bufio.NewReader(f)
	line, err := r.ReadString('\n')
	if err != nil && !(errors.Is(err, io.EOF) && line != "") {
		return 0, readErr(iface, c, err)
	}
	v, err := strconv.ParseUint(strings.TrimSpace(line), 10, 64)
	if err != nil {
		return 0, readErr(iface, c, err)
	}
	return v, nil
}
