package counter

import (
	"context"
	"fmt"

	psnet "github.com/shirou/gopsutil/v3/net"
)

// Gopsutil 通过 gopsutil 读取每个网卡的累计计数器
// 在 Linux 上底层同样来自内核，但不依赖 sysfs 的目录结构
type Gopsutil struct {
	// ioCounters 测试时可以替换
	ioCounters func(ctx context.Context, pernic bool) ([]psnet.IOCountersStat, error)
}

func NewGopsutil() *Gopsutil {
	return &Gopsutil{ioCounters: psnet.IOCountersWithContext}
}

func (g *Gopsutil) Read(ctx context.Context, iface string, c Counter) (uint64, error) {
	stats, err := g.ioCounters(ctx, true)
	if err != nil {
		return 0, readErr(iface, c, err)
	}
	for _, s := range stats {
		if s.Name != iface {
			continue
		}
		switch c {
		case RxBytes:
			return s.BytesRecv, nil
		case TxBytes:
			return s.BytesSent, nil
		default:
			return 0, readErr(iface, c, fmt.Errorf("unknown counter"))
		}
	}
	return 0, readErr(iface, c, fmt.Errorf("interface not reported"))
}
