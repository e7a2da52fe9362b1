// Package counter 读取网卡的累计收发字节计数器
package counter

import (
	"context"
	"errors"
	"fmt"
	"time"

	"bwgovernor/model"
)

// Counter 是计数器的名字，同时也是 sysfs statistics 目录下的文件名
type Counter string

const (
	RxBytes Counter = "rx_bytes"
	TxBytes Counter = "tx_bytes"
)

// ErrCounterRead 表示计数器无法打开、读取或解析
// 控制器不能在没有计数器的情况下工作，调用方应当把它当作致命错误
var ErrCounterRead = errors.New("counter read failed")

// Source 提供某个网卡某个计数器的当前值
type Source interface {
	Read(ctx context.Context, iface string, c Counter) (uint64, error)
}

// Sample 依次读取 rx 和 tx，组成一个快照
func Sample(ctx context.Context, src Source, iface string, now time.Time) (model.Snapshot, error) {
	rx, err := src.Read(ctx, iface, RxBytes)
	if err != nil {
		return model.Snapshot{}, err
	}
	tx, err := src.Read(ctx, iface, TxBytes)
	if err != nil {
		return model.Snapshot{}, err
	}
	return model.Snapshot{RxBytes: rx, TxBytes: tx, Taken: now}, nil
}

func readErr(iface string, c Counter, err error) error {
	return fmt.Errorf("%w: %s/%s: %v", ErrCounterRead, iface, c, err)
}
