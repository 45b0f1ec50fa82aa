// Package metrics owns the bot's Prometheus collectors. A nil *Recorder is a
// valid no-op, so callers never need to check whether metrics are enabled.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "hrbot"

type Recorder struct {
	reg *prometheus.Registry

	statsRequests *prometheus.CounterVec
	statsLatency  *prometheus.HistogramVec

	resolutions *prometheus.CounterVec

	ticks        *prometheus.CounterVec
	tickDuration prometheus.Histogram
	outcomes     *prometheus.CounterVec
	lastCount    *prometheus.GaugeVec

	deliveries       *prometheus.CounterVec
	deliveryDuration prometheus.Histogram

	commands *prometheus.CounterVec
}

// New builds a Recorder on its own registry, with Go runtime and process collectors.
func New() *Recorder {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	auto := promauto.With(reg)

	return &Recorder{
		reg: reg,
		statsRequests: auto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "stats",
			Name:      "requests_total",
			Help:      "Stats API requests by endpoint and result.",
		}, []string{"endpoint", "result"}),
		statsLatency: auto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "stats",
			Name:      "request_duration_seconds",
			Help:      "Stats API request latency.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"endpoint"}),
		resolutions: auto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "detail",
			Name:      "resolutions_total",
			Help:      "Home run detail resolutions by the source that produced them.",
		}, []string{"source"}),
		ticks: auto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "watch",
			Name:      "ticks_total",
			Help:      "Check cycles, split by whether they were skipped off season.",
		}, []string{"skipped"}),
		tickDuration: auto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "watch",
			Name:      "tick_duration_seconds",
			Help:      "Duration of completed check cycles.",
			Buckets:   []float64{0.5, 1, 2.5, 5, 10, 30, 60, 120},
		}),
		outcomes: auto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "watch",
			Name:      "entity_outcomes_total",
			Help:      "Per-entity tick outcomes.",
		}, []string{"outcome"}),
		lastCount: auto.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "watch",
			Name:      "last_count",
			Help:      "Last committed home run count per tracked player.",
		}, []string{"player"}),
		deliveries: auto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "alert",
			Name:      "deliveries_total",
			Help:      "Alert deliveries by result.",
		}, []string{"result"}),
		deliveryDuration: auto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "alert",
			Name:      "delivery_duration_seconds",
			Help:      "Per-destination alert send latency.",
			Buckets:   prometheus.DefBuckets,
		}),
		commands: auto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "chat",
			Name:      "commands_total",
			Help:      "Chat commands by name and result.",
		}, []string{"command", "result"}),
	}
}

func (r *Recorder) Registry() *prometheus.Registry {
	if r == nil {
		return nil
	}
	return r.reg
}

func (r *Recorder) Handler() http.Handler {
	if r == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(r.reg, promhttp.HandlerOpts{Registry: r.reg})
}

func (r *Recorder) ObserveRequest(endpoint, result string, d time.Duration) {
	if r == nil {
		return
	}
	r.statsRequests.WithLabelValues(endpoint, result).Inc()
	r.statsLatency.WithLabelValues(endpoint).Observe(d.Seconds())
}

func (r *Recorder) ObserveResolution(source string) {
	if r == nil {
		return
	}
	r.resolutions.WithLabelValues(source).Inc()
}

func (r *Recorder) ObserveTick(d time.Duration, skipped bool) {
	if r == nil {
		return
	}
	r.ticks.WithLabelValues(strconv.FormatBool(skipped)).Inc()
	if !skipped {
		r.tickDuration.Observe(d.Seconds())
	}
}

func (r *Recorder) ObserveOutcome(outcome string) {
	if r == nil {
		return
	}
	r.outcomes.WithLabelValues(outcome).Inc()
}

func (r *Recorder) SetLastCount(id string, n int) {
	if r == nil {
		return
	}
	r.lastCount.WithLabelValues(id).Set(float64(n))
}

func (r *Recorder) ObserveDelivery(result string, d time.Duration) {
	if r == nil {
		return
	}
	r.deliveries.WithLabelValues(result).Inc()
	r.deliveryDuration.Observe(d.Seconds())
}

func (r *Recorder) ObserveCommand(command string, ok bool) {
	if r == nil {
		return
	}
	result := "ok"
	if !ok {
		result = "error"
	}
	r.commands.WithLabelValues(command, result).Inc()
}
