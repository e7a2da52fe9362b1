//go:build linux

package counter

import (
	"context"
	"errors"
	"fmt"
	"net"

	"github.com/cilium/ebpf"
	"github.com/cilium/ebpf/asm"
	"github.com/cilium/ebpf/link"
	"github.com/cilium/ebpf/rlimit"
)

// EBPF 在网卡的 TCX ingress 钩子上挂一个小程序，把每个 skb 的长度
// 累加进一个单元素的 array map；rx 计数器从挂载时刻的 0 开始，单调递增
//
// tx 不在 TCX egress 上计：egress 钩子在 qdisc 之前运行，
// 计到的是提交量而不是被 tbf 放行后真正发出的字节，控制环会因此看不到限速效果。
// tx 交给 tx 来源读取 (默认 sysfs 的 tx_bytes，在 qdisc 之后计数)
type EBPF struct {
	iface string
	maps  map[Counter]*ebpf.Map
	progs []*ebpf.Program
	links []link.Link
	tx    Source
}

// NewEBPF 在指定网卡上加载并挂载计数程序，需要 root 和支持 TCX 的内核 (6.6+)
func NewEBPF(iface string) (*EBPF, error) {
	// eBPF map 需要锁定内存，先移除 memlock 限制
	if err := rlimit.RemoveMemlock(); err != nil {
		return nil, fmt.Errorf("remove memlock: %w", err)
	}

	nic, err := net.InterfaceByName(iface)
	if err != nil {
		return nil, fmt.Errorf("lookup interface %s: %w", iface, err)
	}

	e := &EBPF{iface: iface, maps: make(map[Counter]*ebpf.Map), tx: NewSysfs("")}
	if err := e.attach(nic.Index, RxBytes, ebpf.AttachTCXIngress); err != nil {
		e.Close()
		return nil, err
	}
	return e, nil
}

func (e *EBPF) attach(ifindex int, c Counter, at ebpf.AttachType) error {
	m, err := ebpf.NewMap(&ebpf.MapSpec{
		Name:       "gov_" + string(c),
		Type:       ebpf.Array,
		KeySize:    4,
		ValueSize:  8,
		MaxEntries: 1,
	})
	if err != nil {
		return fmt.Errorf("create %s map: %w", c, err)
	}
	e.maps[c] = m

	prog, err := ebpf.NewProgram(&ebpf.ProgramSpec{
		Name:         "gov_" + string(c),
		Type:         ebpf.SchedCLS,
		License:      "GPL",
		Instructions: countBytes(m.FD()),
	})
	if err != nil {
		return fmt.Errorf("load %s program: %w", c, err)
	}
	e.progs = append(e.progs, prog)

	l, err := link.AttachTCX(link.TCXOptions{
		Interface: ifindex,
		Program:   prog,
		Attach:    at,
	})
	if err != nil {
		return fmt.Errorf("attach %s program: %w", c, err)
	}
	e.links = append(e.links, l)
	return nil
}

// countBytes:
//
//	key = 0
//	v = map_lookup_elem(map, &key)
//	if v != NULL { atomic *v += skb->len }
//	return TCX_NEXT
func countBytes(mapFD int) asm.Instructions {
	return asm.Instructions{
		asm.Mov.Reg(asm.R6, asm.R1),
		// __sk_buff.len 在偏移 0
		asm.LoadMem(asm.R7, asm.R6, 0, asm.Word),
		asm.StoreImm(asm.RFP, -4, 0, asm.Word),
		asm.Mov.Reg(asm.R2, asm.RFP),
		asm.Add.Imm(asm.R2, -4),
		asm.LoadMapPtr(asm.R1, mapFD),
		asm.FnMapLookupElem.Call(),
		asm.JEq.Imm(asm.R0, 0, "next"),
		asm.StoreXAdd(asm.R0, asm.R7, asm.DWord),
		// TCX_NEXT，不影响后续的 qdisc/过滤器
		asm.Mov.Imm(asm.R0, -1).WithSymbol("next"),
		asm.Return(),
	}
}

func (e *EBPF) Read(ctx context.Context, iface string, c Counter) (uint64, error) {
	if iface != e.iface {
		return 0, readErr(iface, c, fmt.Errorf("programs are attached to %s", e.iface))
	}
	if c == TxBytes {
		return e.tx.Read(ctx, iface, c)
	}
	m, ok := e.maps[c]
	if !ok {
		return 0, readErr(iface, c, fmt.Errorf("unknown counter"))
	}
	var v uint64
	if err := m.Lookup(uint32(0), &v); err != nil {
		return 0, readErr(iface, c, err)
	}
	return v, nil
}

// Close 卸载程序并释放 map
func (e *EBPF) Close() error {
	var errs []error
	for _, l := range e.links {
		errs = append(errs, l.Close())
	}
	for _, p := range e.progs {
		errs = append(errs, p.Close())
	}
	for _, m := range e.maps {
		errs = append(errs, m.Close())
	}
	return errors.Join(errs...)
}
