//go:build linux

package counter

import (
	"context"
	"testing"

	"github.com/cilium/ebpf/asm"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCountBytesProgram(t *testing.T) {
	insns := countBytes(3)
	require.Len(t, insns, 11)

	// 读 __sk_buff.len，原子地加到 map 值上
	assert.Equal(t, asm.LoadMem(asm.R7, asm.R6, 0, asm.Word), insns[1])
	assert.Equal(t, asm.StoreXAdd(asm.R0, asm.R7, asm.DWord), insns[8])

	// 查不到元素时跳到 TCX_NEXT，两条路径都放行报文
	assert.Equal(t, "next", insns[7].Reference())
	assert.Equal(t, "next", insns[9].Symbol())
	assert.Equal(t, int64(-1), insns[9].Constant)
	assert.Equal(t, asm.Return(), insns[10])
}

func TestEBPFReadsTxAfterQdisc(t *testing.T) {
	root := t.TempDir()
	writeStat(t, root, "eth0", TxBytes, "4096\n")
	// rx 的 map 不存在时要报错，不能回落到 sysfs
	e := &EBPF{iface: "eth0", tx: NewSysfs(root)}

	tx, err := e.Read(context.Background(), "eth0", TxBytes)
	require.NoError(t, err)
	assert.Equal(t, uint64(4096), tx)

	_, err = e.Read(context.Background(), "eth0", RxBytes)
	assert.ErrorIs(t, err, ErrCounterRead)

	_, err = e.Read(context.Background(), "eth1", TxBytes)
	assert.ErrorIs(t, err, ErrCounterRead)
}
