package governor

import (
	"context"
	"time"
)

// Clock 抽象时间，测试里可以换成假的
type Clock interface {
	Now() time.Time
	// Sleep 阻塞 d，ctx 取消时提前返回 ctx.Err()
	Sleep(ctx context.Context, d time.Duration) error
}

type realClock struct{}

// RealClock 使用 time.Now，带单调时钟读数，不受系统时间调整影响
var RealClock Clock = realClock{}

func (realClock) Now() time.Time { return time.Now() }

func (realClock) Sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
