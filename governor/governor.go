// Package governor 是反馈控制环：采样计数器、估计吞吐、调整限速并下发
package governor

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-logr/logr"
	"golang.org/x/time/rate"

	"bwgovernor/counter"
	logutil "bwgovernor/logging"
	"bwgovernor/model"
	"bwgovernor/shaper"
)

// DefaultInterval 是采样间隔
const DefaultInterval = time.Second

// Config 在整个运行期间不变
type Config struct {
	Interface string
	// Ceiling 目标吞吐上限 (Bytes per second)
	Ceiling uint64
	// Interval 两次采样之间的休眠时间，不能小于 1 秒
	Interval time.Duration
}

func (c Config) Validate() error {
	if c.Interface == "" {
		return errors.New("interface name is empty")
	}
	if c.Ceiling == 0 {
		return errors.New("ceiling must be positive")
	}
	if c.Interval < time.Second {
		return fmt.Errorf("interval %s is shorter than one second", c.Interval)
	}
	return nil
}

// Observer 接收每个 tick 的报告，不能阻塞
type Observer interface {
	Observe(model.TickReport)
}

// ObserverFunc 让普通函数满足 Observer
type ObserverFunc func(model.TickReport)

func (f ObserverFunc) Observe(r model.TickReport) { f(r) }

// Option 配置 Governor
type Option func(*Governor)

// WithClock 替换时钟，测试用
func WithClock(c Clock) Option {
	return func(g *Governor) { g.clock = c }
}

// WithObserver 追加一个报告接收者
func WithObserver(o Observer) Option {
	return func(g *Governor) { g.observers = append(g.observers, o) }
}

// Governor 串行执行控制环，所有状态只属于这一个循环
type Governor struct {
	cfg       Config
	source    counter.Source
	applier   shaper.Applier
	clock     Clock
	logger    logr.Logger
	observers []Observer

	// 安装失败往往每个 tick 都会出现，告警限流
	installWarn *rate.Sometimes
}

func New(cfg Config, source counter.Source, applier shaper.Applier, logger logr.Logger, opts ...Option) (*Governor, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	g := &Governor{
		cfg:         cfg,
		source:      source,
		applier:     applier,
		clock:       RealClock,
		logger:      logger,
		installWarn: &rate.Sometimes{First: 1, Interval: time.Minute},
	}
	for _, opt := range opts {
		opt(g)
	}
	return g, nil
}

// Start 取参考快照，返回初始状态
func (g *Governor) Start(ctx context.Context) (*State, error) {
	now := g.clock.Now()
	ref, err := counter.Sample(ctx, g.source, g.cfg.Interface, now)
	if err != nil {
		return nil, fmt.Errorf("reference snapshot: %w", err)
	}
	g.logger.V(logutil.DEBUG).Info("Reference snapshot taken", "rx", ref.RxBytes, "tx", ref.TxBytes)
	return &State{Reference: ref, Start: now, Cap: InitialCap}, nil
}

// Tick 执行一轮：采样 -> 估计 -> 决策 -> (可能) 下发
// 返回的错误都是致命的；安装规则失败只记告警
func (g *Governor) Tick(ctx context.Context, st *State) (model.TickReport, error) {
	now := g.clock.Now()
	report := model.TickReport{
		Interface: g.cfg.Interface,
		Elapsed:   now.Sub(st.Start),
		Ceiling:   g.cfg.Ceiling,
		Cap:       st.Cap,
		NextCap:   st.Cap,
		Action:    model.ActionSkip,
	}

	cur, err := counter.Sample(ctx, g.source, g.cfg.Interface, now)
	if err != nil {
		return report, fmt.Errorf("sample counters: %w", err)
	}

	throughput, err := Throughput(st.Reference, cur, report.Elapsed)
	switch {
	case errors.Is(err, ErrCounterReset):
		// 网卡被重置，重新以当前值为参考点，本轮不调整
		g.logger.Info("Counters went backwards, re-anchoring reference snapshot",
			"oldRx", st.Reference.RxBytes, "oldTx", st.Reference.TxBytes, "rx", cur.RxBytes, "tx", cur.TxBytes)
		st.Reference = cur
		st.Start = now
		report.Elapsed = 0
		g.notify(report)
		return report, nil
	case errors.Is(err, ErrNoMeasurement):
		g.logger.V(logutil.DEBUG).Info("Less than a second since reference snapshot, skipping", "elapsed", report.Elapsed)
		g.notify(report)
		return report, nil
	case err != nil:
		return report, err
	}

	report.RxDelta = cur.RxBytes - st.Reference.RxBytes
	report.TxDelta = cur.TxBytes - st.Reference.TxBytes
	report.Throughput = throughput
	report.NextCap, report.Action = Decide(st.Cap, throughput, g.cfg.Ceiling)

	if report.Action.Applies() {
		err := g.applier.Apply(ctx, g.cfg.Interface, report.NextCap)
		switch {
		case err == nil:
			report.Applied = true
		case shaper.IsInstallFailure(err):
			report.InstallFailed = true
			g.installWarn.Do(func() {
				g.logger.Error(err, "Shaping rule was not installed, continuing", "cap", report.NextCap)
			})
		default:
			return report, fmt.Errorf("apply cap %dkbit: %w", report.NextCap, err)
		}
	}

	g.logger.V(logutil.TRACE).Info("Tick", "throughput", throughput, "action", report.Action.String(),
		"cap", report.Cap, "nextCap", report.NextCap)
	st.Cap = report.NextCap
	g.notify(report)
	return report, nil
}

// Run 取参考快照后不停地 "休眠 -> tick"，直到出现致命错误或 ctx 被取消
func (g *Governor) Run(ctx context.Context) error {
	st, err := g.Start(ctx)
	if err != nil {
		return err
	}
	g.logger.Info("Governor started", "ceiling", g.cfg.Ceiling, "cap", st.Cap, "interval", g.cfg.Interval)

	for {
		if err := g.clock.Sleep(ctx, g.cfg.Interval); err != nil {
			if ctx.Err() != nil {
				g.logger.Info("Governor stopped", "cap", st.Cap)
				return nil
			}
			return err
		}
		if _, err := g.Tick(ctx, st); err != nil {
			// 退出信号到达时 tick 中途的失败不算致命
			if ctx.Err() != nil {
				g.logger.Info("Governor stopped during tick", "cap", st.Cap, "error", err.Error())
				return nil
			}
			return err
		}
	}
}

func (g *Governor) notify(r model.TickReport) {
	for _, o := range g.observers {
		o.Observe(r)
	}
}
