package shaper

import (
	"context"
	"fmt"
	"strconv"

	"github.com/go-logr/logr"

	logutil "bwgovernor/logging"
)

// Latency 是 tbf 的排队延迟上限，尽量贴近目标速率，不容忍突发
const Latency = "1ms"

// TC 通过 tc 命令安装 token bucket (tbf) 根队列
//
//	tc qdisc del root dev <iface>
//	tc qdisc add dev <iface> root tbf rate <cap>kbit burst <cap>kbit latency 1ms
type TC struct {
	Binary string
	Runner Runner
	Logger logr.Logger
}

// NewTC 返回使用 os/exec 的 TC；binary 为空时用 PATH 里的 tc
func NewTC(binary string, logger logr.Logger) *TC {
	if binary == "" {
		binary = "tc"
	}
	return &TC{Binary: binary, Runner: ExecRunner{}, Logger: logger}
}

// Apply 先删后装；一旦开始就不受 ctx 取消影响，否则删掉旧规则后
// 新规则装不上，网卡就处于不限速状态
func (t *TC) Apply(ctx context.Context, iface string, capKbit uint64) error {
	ctx = context.WithoutCancel(ctx)

	// 1. 删除旧规则，没有规则可删时 tc 返回非零，忽略
	if err := t.Reset(ctx, iface); err != nil {
		return err
	}

	// 2. 安装新规则，rate == burst
	rate := strconv.FormatUint(capKbit, 10) + "kbit"
	args := []string{"qdisc", "add", "dev", iface, "root", "tbf", "rate", rate, "burst", rate, "latency", Latency}
	if err := t.Runner.Run(ctx, t.Binary, args...); err != nil {
		code, ran := exitStatus(err)
		if !ran {
			return fmt.Errorf("%w: %s %v: %v", ErrInvocation, t.Binary, args, err)
		}
		return fmt.Errorf("%w: %s on %s exited with status %d", ErrInstallFailed, rate, iface, code)
	}
	t.Logger.V(logutil.VERBOSE).Info("Installed tbf qdisc", "interface", iface, "rate", rate)
	return nil
}

// Reset 删除网卡的根队列，网卡上没有规则时不算失败
func (t *TC) Reset(ctx context.Context, iface string) error {
	args := []string{"qdisc", "del", "root", "dev", iface}
	if err := t.Runner.Run(ctx, t.Binary, args...); err != nil {
		code, ran := exitStatus(err)
		if !ran {
			return fmt.Errorf("%w: %s %v: %v", ErrInvocation, t.Binary, args, err)
		}
		t.Logger.V(logutil.DEBUG).Info("No root qdisc removed", "interface", iface, "status", code)
	}
	return nil
}
