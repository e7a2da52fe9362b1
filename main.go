//go:build linux

package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-logr/logr"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"

	"bwgovernor/counter"
	"bwgovernor/governor"
	logutil "bwgovernor/logging"
	"bwgovernor/metrics"
	"bwgovernor/selector"
	"bwgovernor/shaper"
)

var (
	ifaceName   = flag.String("iface", "", "Interface to govern. When empty the operator is asked about each interface in turn")
	ceiling     = flag.Uint64("ceiling", governor.DefaultCeiling, "Target throughput ceiling in bytes per second")
	interval    = flag.Duration("interval", governor.DefaultInterval, "Sleep between samples, at least 1s")
	sourceName  = flag.String("source", "sysfs", "Counter source: sysfs, gopsutil or ebpf")
	sysfsRoot   = flag.String("sysfs-root", counter.DefaultSysfsRoot, "Directory listing network interfaces")
	tcBinary    = flag.String("tc", "tc", "Path of the tc binary")
	metricsAddr = flag.String("metrics-addr", "", "Serve prometheus metrics on this address, e.g. :9090. Empty disables it")
	dashboardOn = flag.Bool("dashboard", false, "Show a terminal dashboard instead of one line per tick")
	resetOnExit = flag.Bool("reset-on-exit", false, "Remove the root qdisc when the governor stops")
	logVerbose  = flag.Int("v", logutil.DEFAULT, "number for the log level verbosity")
	devLog      = flag.Bool("dev-log", false, "Human readable log output")
)

func main() {
	flag.Parse()

	logger, err := logutil.NewLogger(*logVerbose, *devLog)
	if err != nil {
		fmt.Fprintf(os.Stderr, "init logger: %v\n", err)
		os.Exit(1)
	}
	logger = logger.WithValues("run", uuid.NewString())

	// run 返回后它的 defer (卸载 eBPF、取消信号监听) 都已执行，再退出
	if err := run(logger, newSource); err != nil {
		logutil.Fatal(logger, err, "Governor stopped")
	}
}

// sourceFactory 按网卡创建计数器来源，返回的函数负责释放它
type sourceFactory func(iface string) (counter.Source, func(), error)

func run(logger logr.Logger, openSource sourceFactory) error {
	// 1. 选网卡：参数指定 或 逐个询问
	iface, err := chooseInterface()
	if err != nil {
		return fmt.Errorf("select interface: %w", err)
	}
	logger = logger.WithValues("interface", iface)

	// 2. 计数器来源
	src, closeSource, err := openSource(iface)
	if err != nil {
		return fmt.Errorf("set up %s counter source: %w", *sourceName, err)
	}
	defer closeSource()

	// 3. 整形器
	tc := shaper.NewTC(*tcBinary, logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 4. 观察者：控制台 / 仪表盘 / 指标
	var opts []governor.Option
	if *metricsAddr != "" {
		reg := prometheus.NewRegistry()
		metrics.Register(reg)
		opts = append(opts, governor.WithObserver(metrics.Recorder{}))
		go serveMetrics(logger, reg)
	}
	var dash *dashboard
	if *dashboardOn {
		dash = newDashboard(iface)
		opts = append(opts, governor.WithObserver(dash))
	} else {
		opts = append(opts, governor.WithObserver(newConsole(os.Stdout)))
	}

	cfg := governor.Config{Interface: iface, Ceiling: *ceiling, Interval: *interval}
	g, err := governor.New(cfg, src, tc, logger, opts...)
	if err != nil {
		return fmt.Errorf("create governor: %w", err)
	}

	// 5. 控制环；仪表盘模式下控制环在后台跑，界面占住主 goroutine
	if dash != nil {
		err = runWithDashboard(ctx, g, dash)
	} else {
		err = g.Run(ctx)
	}

	if *resetOnExit {
		if rerr := tc.Reset(context.Background(), iface); rerr != nil {
			logger.Error(rerr, "Failed to remove root qdisc")
		}
	}
	return err
}

func chooseInterface() (string, error) {
	candidates, err := selector.List(*sysfsRoot)
	if err != nil {
		return "", err
	}
	if *ifaceName != "" {
		return *ifaceName, selector.Validate(candidates, *ifaceName)
	}
	return selector.Choose(candidates, selector.Prompt(os.Stdin, os.Stdout))
}

func newSource(iface string) (counter.Source, func(), error) {
	noop := func() {}
	switch *sourceName {
	case "sysfs":
		return counter.NewSysfs(*sysfsRoot), noop, nil
	case "gopsutil":
		return counter.NewGopsutil(), noop, nil
	case "ebpf":
		e, err := counter.NewEBPF(iface)
		if err != nil {
			return nil, noop, err
		}
		return e, func() { _ = e.Close() }, nil
	default:
		return nil, noop, fmt.Errorf("unknown counter source %q", *sourceName)
	}
}

func serveMetrics(logger logr.Logger, reg *prometheus.Registry) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler(reg))
	srv := &http.Server{Addr: *metricsAddr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	logger.Info("Serving metrics", "addr", *metricsAddr)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error(err, "Metrics server stopped")
	}
}
