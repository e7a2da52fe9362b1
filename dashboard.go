package main

import (
	"context"
	"fmt"
	"time"

	ui "github.com/gizak/termui/v3"
	"github.com/gizak/termui/v3/widgets"

	"bwgovernor/governor"
	"bwgovernor/model"
)

// 波形图保留的历史点数
const historySize = 90

// 表格里保留的最近 tick 数
const recentSize = 50

// dashboard 在终端里展示控制环的状态
// 报告通过 channel 交给界面 goroutine，控制环本身不会被界面阻塞
type dashboard struct {
	iface   string
	reports chan model.TickReport

	// 以下只在 Run 的 goroutine 里访问
	throughputHistory []float64
	capHistory        []float64
	recent            []model.TickReport
	last              model.TickReport
	ticks             int
}

func newDashboard(iface string) *dashboard {
	return &dashboard{
		iface:   iface,
		reports: make(chan model.TickReport, 16),
	}
}

// Observe 满了就丢，不阻塞控制环
func (d *dashboard) Observe(r model.TickReport) {
	select {
	case d.reports <- r:
	default:
	}
}

// push 把一个报告并入历史
func (d *dashboard) push(r model.TickReport) {
	d.last = r
	d.ticks++
	if r.Action != model.ActionSkip {
		d.throughputHistory = appendBounded(d.throughputHistory, float64(r.Throughput), historySize)
	}
	d.capHistory = appendBounded(d.capHistory, float64(r.NextCap), historySize)
	d.recent = append([]model.TickReport{r}, d.recent...)
	if len(d.recent) > recentSize {
		d.recent = d.recent[:recentSize]
	}
}

func appendBounded(s []float64, v float64, n int) []float64 {
	if len(s) >= n {
		s = s[1:]
	}
	return append(s, v)
}

func (d *dashboard) rows() [][]string {
	rows := [][]string{{"已运行", "平均吞吐", "调整前", "调整后", "动作"}}
	for _, r := range d.recent {
		action := r.Action.String()
		if r.InstallFailed {
			action += " (tc 失败)"
		}
		rows = append(rows, []string{
			r.Elapsed.Truncate(time.Second).String(),
			formatBytes(r.Throughput) + "/s",
			formatKbit(r.Cap),
			formatKbit(r.NextCap),
			action,
		})
	}
	return rows
}

func (d *dashboard) summary() string {
	r := d.last
	return fmt.Sprintf(
		"网卡      %s\n目标上限  %s/s\n当前限速  %s\n平均吞吐  %s/s\n累计接收  %s\n累计发送  %s\ntick 数   %d\n\n按 q 退出",
		d.iface, formatBytes(r.Ceiling), formatKbit(r.NextCap), formatBytes(r.Throughput),
		formatBytes(r.RxDelta), formatBytes(r.TxDelta), d.ticks)
}

// Run 初始化 TermUI 并处理事件，直到 ctx 结束或按下 q
func (d *dashboard) Run(ctx context.Context, quit context.CancelFunc) error {
	if err := ui.Init(); err != nil {
		return fmt.Errorf("failed to init termui: %w", err)
	}
	defer ui.Close()

	// [左上] 最近的 tick
	table := widgets.NewTable()
	table.Title = " [ 控制记录 ] "
	table.TextStyle = ui.NewStyle(ui.ColorWhite)
	table.RowSeparator = false
	table.BorderStyle.Fg = ui.ColorGreen

	// [右上] 汇总
	info := widgets.NewParagraph()
	info.Title = " [ 当前状态 ] "
	info.BorderStyle.Fg = ui.ColorYellow

	// [左下] 吞吐波形
	slTput := widgets.NewSparkline()
	slTput.LineColor = ui.ColorGreen
	sgTput := widgets.NewSparklineGroup(slTput)
	sgTput.Title = " 平均吞吐 "
	sgTput.BorderStyle.Fg = ui.ColorGreen

	// [右下] 限速波形
	slCap := widgets.NewSparkline()
	slCap.LineColor = ui.ColorYellow
	sgCap := widgets.NewSparklineGroup(slCap)
	sgCap.Title = " 限速 "
	sgCap.BorderStyle.Fg = ui.ColorYellow

	grid := ui.NewGrid()
	termWidth, termHeight := ui.TerminalDimensions()
	grid.SetRect(0, 0, termWidth, termHeight)
	grid.Set(
		ui.NewRow(0.65,
			ui.NewCol(0.6, table),
			ui.NewCol(0.4, info),
		),
		ui.NewRow(0.35,
			ui.NewCol(0.5, sgTput),
			ui.NewCol(0.5, sgCap),
		),
	)

	render := func() {
		table.Rows = d.rows()
		info.Text = d.summary()
		slTput.Data = d.throughputHistory
		slCap.Data = d.capHistory
		sgTput.Title = fmt.Sprintf(" 平均吞吐 (上限: %s/s) ", formatBytes(d.last.Ceiling))
		sgCap.Title = fmt.Sprintf(" 限速 (当前: %s) ", formatKbit(d.last.NextCap))
		ui.Render(grid)
	}
	render()

	uiEvents := ui.PollEvents()
	for {
		select {
		case <-ctx.Done():
			return nil
		case e := <-uiEvents:
			if e.Type == ui.KeyboardEvent && (e.ID == "q" || e.ID == "<C-c>") {
				quit()
				return nil
			}
			if e.Type == ui.ResizeEvent {
				payload := e.Payload.(ui.Resize)
				grid.SetRect(0, 0, payload.Width, payload.Height)
				ui.Clear()
				render()
			}
		case r := <-d.reports:
			d.push(r)
			render()
		}
	}
}

// runWithDashboard 控制环放到后台，界面退出 (q) 时取消控制环
func runWithDashboard(ctx context.Context, g *governor.Governor, d *dashboard) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	done := make(chan error, 1)
	go func() {
		done <- g.Run(ctx)
		cancel()
	}()

	if err := d.Run(ctx, cancel); err != nil {
		cancel()
		<-done
		return err
	}
	return <-done
}

// formatBytes 格式化字节单位 (B -> KB -> MB)
func formatBytes(b uint64) string {
	const unit = 1024
	if b < unit {
		return fmt.Sprintf("%d B", b)
	}
	div, exp := uint64(unit), 0
	for n := b / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %cB", float64(b)/float64(div), "KMGTPE"[exp])
}

// formatKbit 格式化 tc 的速率单位，tc 的 kbit 是 1000 bit
func formatKbit(k uint64) string {
	switch {
	case k >= 1000*1000:
		return fmt.Sprintf("%.1f gbit/s", float64(k)/(1000*1000))
	case k >= 1000:
		return fmt.Sprintf("%.1f mbit/s", float64(k)/1000)
	default:
		return fmt.Sprintf("%d kbit/s", k)
	}
}
