package metrics

import (
	"net/http"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"bwgovernor/model"
)

const subsystem = "bwgovernor"

var (
	throughputGauge = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Subsystem: subsystem,
			Name:      "throughput_bytes_per_second",
			Help:      "Average rx+tx throughput since the reference snapshot.",
		},
		[]string{"interface"},
	)
	ceilingGauge = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Subsystem: subsystem,
			Name:      "ceiling_bytes_per_second",
			Help:      "Target throughput ceiling.",
		},
		[]string{"interface"},
	)
	capGauge = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Subsystem: subsystem,
			Name:      "cap_kilobits_per_second",
			Help:      "Rate cap in effect after the last tick.",
		},
		[]string{"interface"},
	)
	transferredGauge = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Subsystem: subsystem,
			Name:      "transferred_bytes",
			Help:      "Bytes transferred since the reference snapshot, by direction.",
		},
		[]string{"interface", "direction"},
	)
	ticksCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Subsystem: subsystem,
			Name:      "ticks_total",
			Help:      "Control loop ticks by action taken.",
		},
		[]string{"interface", "action"},
	)
	installFailuresCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Subsystem: subsystem,
			Name:      "install_failures_total",
			Help:      "Shaping rule installs that exited with a non-zero status.",
		},
		[]string{"interface"},
	)
)

var registerMetrics sync.Once

// Register 把所有指标注册到 reg，只执行一次
func Register(reg prometheus.Registerer) {
	registerMetrics.Do(func() {
		reg.MustRegister(throughputGauge)
		reg.MustRegister(ceilingGauge)
		reg.MustRegister(capGauge)
		reg.MustRegister(transferredGauge)
		reg.MustRegister(ticksCounter)
		reg.MustRegister(installFailuresCounter)
	})
}

// Handler 返回 reg 对应的 /metrics handler
func Handler(reg prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(reg, promhttp.HandlerOpts{})
}

// RecordTick 把一个 tick 的报告写进指标
func RecordTick(r model.TickReport) {
	ticksCounter.WithLabelValues(r.Interface, r.Action.String()).Inc()
	ceilingGauge.WithLabelValues(r.Interface).Set(float64(r.Ceiling))
	capGauge.WithLabelValues(r.Interface).Set(float64(r.NextCap))
	if r.InstallFailed {
		installFailuresCounter.WithLabelValues(r.Interface).Inc()
	}
	if r.Action == model.ActionSkip {
		return
	}
	throughputGauge.WithLabelValues(r.Interface).Set(float64(r.Throughput))
	transferredGauge.WithLabelValues(r.Interface, "rx").Set(float64(r.RxDelta))
	transferredGauge.WithLabelValues(r.Interface, "tx").Set(float64(r.TxDelta))
}

// Recorder 是把报告转给 RecordTick 的 governor.Observer
type Recorder struct{}

func (Recorder) Observe(r model.TickReport) { RecordTick(r) }
