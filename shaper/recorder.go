package shaper

import (
	"context"
	"sync"
)

// Call 是 Recorder 记录下来的一次 Apply
type Call struct {
	Interface string
	CapKbit   uint64
}

// Recorder 是一个只记录调用、不改动内核状态的 Applier
// Err 不为 nil 时每次 Apply 都返回它
type Recorder struct {
	mu    sync.Mutex
	calls []Call
	Err   error
}

func (r *Recorder) Apply(_ context.Context, iface string, capKbit uint64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, Call{Interface: iface, CapKbit: capKbit})
	return r.Err
}

// Calls 返回目前为止的调用记录
func (r *Recorder) Calls() []Call {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Call(nil), r.calls...)
}
