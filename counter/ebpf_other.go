//go:build !linux

package counter

import (
	"context"
	"errors"
)

// EBPF 只在 Linux 上可用
type EBPF struct{}

func NewEBPF(string) (*EBPF, error) {
	return nil, errors.New("ebpf counter source requires linux")
}

func (e *EBPF) Read(_ context.Context, iface string, c Counter) (uint64, error) {
	return 0, readErr(iface, c, errors.New("ebpf counter source requires linux"))
}

func (e *EBPF) Close() error { return nil }
