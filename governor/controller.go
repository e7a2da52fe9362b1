package governor

import (
	"time"

	"bwgovernor/model"
)

const (
	// InitialCap 是启动时的猜测值 (kbit/s)，不来自测量
	InitialCap uint64 = 1024
	// UpperBound 是 cap 的上限 (kbit/s)，到顶后不再翻倍也不再下发规则
	UpperBound uint64 = 1024 * 1024
	// MinCap 保证 cap 永远不会降到 0
	MinCap uint64 = 1
	// DefaultCeiling: 10GB / 31 天，约 3733 B/s
	DefaultCeiling uint64 = 3733
)

// State 是控制循环独占的状态，每个 tick 传进去、原地更新
type State struct {
	// Reference 在整个运行期间固定 (除非检测到计数器重置)
	Reference model.Snapshot
	// Start 是参考快照对应的单调时钟起点
	Start time.Time
	// Cap 当前限速 (kbit/s)，始终 >= MinCap
	Cap uint64
}

// Decide 是反馈策略：超限减半，未超限翻倍，到顶保持
func Decide(current, throughput, ceiling uint64) (uint64, model.Action) {
	switch {
	case throughput > ceiling:
		next := current / 2
		if next < MinCap {
			next = MinCap
		}
		return next, model.ActionDecrease
	case current >= UpperBound:
		return current, model.ActionHold
	default:
		return current * 2, model.ActionIncrease
	}
}
