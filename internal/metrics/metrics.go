// Package metrics exposes library activity as Prometheus counters.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics counts parser, decision, scan and rename outcomes. It satisfies
// the observer interfaces of the scanner, renamer and releases packages.
type Metrics struct {
	releasesParsed   *prometheus.CounterVec
	releaseDecisions *prometheus.CounterVec
	filesScanned     *prometheus.CounterVec
	renames          *prometheus.CounterVec
	reg              prometheus.Registerer
}

// New creates and registers the collectors with reg.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		releasesParsed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "animevault",
			Subsystem: "parser",
			Name:      "releases_total",
			Help:      "Release names parsed, by matching strategy (none when unparseable).",
		}, []string{"strategy"}),
		releaseDecisions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "animevault",
			Subsystem: "releases",
			Name:      "decisions_total",
			Help:      "Release decisions, by reason.",
		}, []string{"reason"}),
		filesScanned: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "animevault",
			Subsystem: "scanner",
			Name:      "files_total",
			Help:      "Video files visited by library scans, by outcome.",
		}, []string{"outcome"}),
		renames: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "animevault",
			Subsystem: "renamer",
			Name:      "renames_total",
			Help:      "Attempted episode renames, by outcome.",
		}, []string{"outcome"}),
		reg: reg,
	}

	reg.MustRegister(
		m.releasesParsed,
		m.releaseDecisions,
		m.filesScanned,
		m.renames,
	)
	return m
}

func (m *Metrics) ReleaseParsed(strategy string) {
	if strategy == "" {
		strategy = "none"
	}
	m.releasesParsed.WithLabelValues(strategy).Inc()
}

func (m *Metrics) ReleaseDecided(reason string) {
	m.releaseDecisions.WithLabelValues(reason).Inc()
}

func (m *Metrics) FileScanned(outcome string) {
	m.filesScanned.WithLabelValues(outcome).Inc()
}

func (m *Metrics) RenameAttempted(outcome string) {
	m.renames.WithLabelValues(outcome).Inc()
}

// TrackSubscribers exports the live event subscriber count.
func (m *Metrics) TrackSubscribers(count func() int) {
	m.reg.MustRegister(prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Namespace: "animevault",
		Subsystem: "events",
		Name:      "subscribers",
		Help:      "Connected websocket event subscribers.",
	}, func() float64 { return float64(count()) }))
}

// Handler serves the registry in the Prometheus exposition format.
func Handler(g prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}
