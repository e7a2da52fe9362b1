// Package shaper 把限速值下发到外部的流量整形机制 (tc tbf)
package shaper

import (
	"context"
	"errors"
	"os/exec"
)

var (
	// ErrInvocation: 命令根本无法执行 (找不到 tc 等)，没有整形就没有意义，属于致命错误
	ErrInvocation = errors.New("shaper command could not be invoked")
	// ErrInstallFailed: 安装规则的命令执行了但返回非零，记录告警后继续
	ErrInstallFailed = errors.New("shaper rule install failed")
)

// Applier 用给定的限速值 (kbit/s) 替换网卡上已有的整形策略
type Applier interface {
	Apply(ctx context.Context, iface string, capKbit uint64) error
}

// IsInstallFailure 判断错误是否只是安装步骤返回了非零状态
func IsInstallFailure(err error) bool {
	return errors.Is(err, ErrInstallFailed)
}

// Runner 执行一个外部命令；返回 *exec.ExitError 表示命令运行了但状态非零
type Runner interface {
	Run(ctx context.Context, name string, args ...string) error
}

// ExecRunner 用 os/exec 执行命令
type ExecRunner struct{}

func (ExecRunner) Run(ctx context.Context, name string, args ...string) error {
	return exec.CommandContext(ctx, name, args...).Run()
}

// exitStatus 区分 "运行了但失败" 和 "没能运行"
func exitStatus(err error) (code int, ran bool) {
	var ee *exec.ExitError
	if errors.As(err, &ee) {
		return ee.ExitCode(), true
	}
	return 0, false
}
