package model

import "time"

// Snapshot 是某一时刻网卡两个累计计数器的快照
// 每个计数器只读一次，两次读取之间的偏差可以忽略
type Snapshot struct {
	RxBytes uint64
	TxBytes uint64
	Taken   time.Time
}

// Action 表示控制器在一个 tick 里做出的决定
type Action int

const (
	// ActionSkip: 本轮没有有效测量 (不足 1 秒 / 计数器被重置)，不调整
	ActionSkip Action = iota
	// ActionDecrease: 吞吐超过上限，cap 减半
	ActionDecrease
	// ActionIncrease: 吞吐未超限，cap 翻倍
	ActionIncrease
	// ActionHold: cap 已经到顶，保持不变，也不重新下发规则
	ActionHold
)

func (a Action) String() string {
	switch a {
	case ActionDecrease:
		return "decrease"
	case ActionIncrease:
		return "increase"
	case ActionHold:
		return "hold"
	default:
		return "skip"
	}
}

// Applies 返回该动作是否需要重新下发整形规则
func (a Action) Applies() bool {
	return a == ActionDecrease || a == ActionIncrease
}

// TickReport 是每一轮控制循环的结果，供控制台、仪表盘和指标使用
type TickReport struct {
	Interface string

	// 自参考快照以来的累计字节数
	RxDelta uint64
	TxDelta uint64
	Elapsed time.Duration

	// 平均吞吐 (Bytes per second) 和目标上限
	Throughput uint64
	Ceiling    uint64

	// Cap 是本轮调整前的限速值，NextCap 是调整后的值 (kbit/s)
	Cap     uint64
	NextCap uint64

	Action  Action
	Applied bool

	// InstallFailed: tc 安装规则返回了非零状态 (不致命)
	InstallFailed bool
}
