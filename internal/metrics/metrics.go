// Package metrics exposes controller activity as Prometheus metrics.
//
// Recorder implements control.Observer, so it is attached to the controller
// like any other observer and served on GET /metrics.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/nerrad567/actuator-core/internal/audit"
	"github.com/nerrad567/actuator-core/internal/control"
)

const namespace = "actuator"

// Recorder holds the core's collectors on a private registry.
type Recorder struct {
	registry *prometheus.Registry

	accepted   *prometheus.CounterVec
	rejected   *prometheus.CounterVec
	executions *prometheus.CounterVec
	duration   prometheus.Histogram
	estop      prometheus.Gauge
	queued     prometheus.Gauge
	pending    prometheus.Gauge
}

// New creates a Recorder with Go runtime and process collectors registered.
func New() *Recorder {
	m := &Recorder{
		registry: prometheus.NewRegistry(),
		accepted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "commands_accepted_total",
			Help:      "Commands admitted to the dispatch queue by origin and priority.",
		}, []string{"origin", "priority"}),
		rejected: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "commands_rejected_total",
			Help:      "Commands refused at admission by origin and reason.",
		}, []string{"origin", "reason"}),
		executions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "executions_total",
			Help:      "Executed commands by result.",
		}, []string{"result"}),
		duration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "execution_duration_seconds",
			Help:      "Time spent in the transport per executed command.",
			Buckets:   []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
		}),
		estop: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "emergency_stop_engaged",
			Help:      "1 while the emergency stop is engaged.",
		}),
		queued: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "queue_depth",
			Help:      "Commands waiting for dispatch.",
		}),
		pending: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "pending_commands",
			Help:      "Commands queued or executing.",
		}),
	}

	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.accepted,
		m.rejected,
		m.executions,
		m.duration,
		m.estop,
		m.queued,
		m.pending,
	)
	return m
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Recorder) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// WatchCounter exposes a monotonic count owned by another component, such
// as dropped events or broker traffic, as actuator_<name>. It panics on a
// duplicate name, like MustRegister.
func (m *Recorder) WatchCounter(name, help string, read func() uint64) {
	m.registry.MustRegister(prometheus.NewCounterFunc(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      name,
		Help:      help,
	}, func() float64 { return float64(read()) }))
}

// Registry returns the underlying registry, e.g. for extra collectors.
func (m *Recorder) Registry() *prometheus.Registry {
	return m.registry
}

func (m *Recorder) CommandAccepted(cmd control.Command) {
	if m == nil {
		return
	}
	m.accepted.WithLabelValues(string(cmd.Origin), string(cmd.Priority)).Inc()
}

func (m *Recorder) CommandRejected(origin control.Origin, err error) {
	if m == nil {
		return
	}
	m.rejected.WithLabelValues(string(origin), control.ReasonCode(err)).Inc()
}

func (m *Recorder) ExecutionRecorded(o audit.Outcome) {
	if m == nil {
		return
	}
	result := "success"
	if !o.Success {
		result = "failure"
	}
	m.executions.WithLabelValues(result).Inc()
	m.duration.Observe(o.Elapsed.Seconds())
}

func (m *Recorder) EmergencyStopChanged(state control.EmergencyState) {
	if m == nil {
		return
	}
	if state.Engaged {
		m.estop.Set(1)
		return
	}
	m.estop.Set(0)
}

func (m *Recorder) QueueDepth(queued, pending int) {
	if m == nil {
		return
	}
	m.queued.Set(float64(queued))
	m.pending.Set(float64(pending))
}

var _ control.Observer = (*Recorder)(nil)
