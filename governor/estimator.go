package governor

import (
	"errors"
	"time"

	"bwgovernor/model"
)

var (
	// ErrNoMeasurement: 距离参考快照还不到一整秒
	ErrNoMeasurement = errors.New("no measurement yet")
	// ErrCounterReset: 计数器比参考快照小，网卡被重置过
	ErrCounterReset = errors.New("counter went backwards")
)

// Throughput 计算自参考快照以来的平均吞吐 (Bytes per second)
//
//	((cur.rx - ref.rx) + (cur.tx - ref.tx)) / elapsed 的整秒数
//
// 这是累计平均，不是滑动窗口：运行越久，短时突发被稀释得越厉害
func Throughput(ref, cur model.Snapshot, elapsed time.Duration) (uint64, error) {
	if cur.RxBytes < ref.RxBytes || cur.TxBytes < ref.TxBytes {
		return 0, ErrCounterReset
	}
	secs := uint64(elapsed / time.Second)
	if secs == 0 {
		return 0, ErrNoMeasurement
	}
	delta := (cur.RxBytes - ref.RxBytes) + (cur.TxBytes - ref.TxBytes)
	return delta / secs, nil
}
