package main

import (
	"fmt"
	"io"

	"bwgovernor/model"
)

// console 每个 tick 打印一行，只用来看，不被程序解析
type console struct {
	w io.Writer
}

func newConsole(w io.Writer) *console {
	return &console{w: w}
}

func (c *console) Observe(r model.TickReport) {
	fmt.Fprintln(c.w, formatReport(r))
}

// formatReport: <iface> rx=.. tx=.. throughput=..B/s ceiling=..B/s cap=..kbit/s
// cap 是本轮调整前生效的值
func formatReport(r model.TickReport) string {
	return fmt.Sprintf("%s rx=%d tx=%d throughput=%dB/s ceiling=%dB/s cap=%dkbit/s",
		r.Interface, r.RxDelta, r.TxDelta, r.Throughput, r.Ceiling, r.Cap)
}
