// Package metrics exposes finished analysis runs as Prometheus metrics.
// Each Metrics owns its registry so several engines never share series.
package metrics

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/jward/symwalk/internal/report"
)

const namespace = "symwalk"

// unresolvedLabel is the resolved_by value of call sites no strategy bound.
const unresolvedLabel = "unresolved"

// Metrics accumulates counters over every run it observes.
type Metrics struct {
	reg *prometheus.Registry

	runs        prometheus.Counter
	documents   *prometheus.CounterVec
	classes     *prometheus.CounterVec
	invocations *prometheus.CounterVec
	diagnostics *prometheus.CounterVec
	duration    prometheus.Histogram
}

// New creates a Metrics with a fresh registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	f := promauto.With(reg)
	return &Metrics{
		reg: reg,
		runs: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "runs_total",
			Help:      "Analysis runs completed",
		}),
		documents: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "documents_total",
			Help:      "Documents analysed by project",
		}, []string{"project"}),
		classes: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "classes_total",
			Help:      "Classes reported by project",
		}, []string{"project"}),
		// Labels: project, resolved_by (primary, first_candidate, declared, unresolved)
		invocations: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "invocations_total",
			Help:      "Call sites by project and resolution strategy",
		}, []string{"project", "resolved_by"}),
		diagnostics: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "diagnostics_total",
			Help:      "Diagnostics by project and severity",
		}, []string{"project", "severity"}),
		duration: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "run_duration_seconds",
			Help:      "Wall time of an analysis run",
			Buckets:   []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60, 300},
		}),
	}
}

// Registry returns the registry holding the symwalk series.
func (m *Metrics) Registry() *prometheus.Registry { return m.reg }

// Observe adds the facts of run to the counters.
func (m *Metrics) Observe(run *report.Run) {
	m.runs.Inc()
	m.duration.Observe(run.FinishedAt().Sub(run.StartedAt()).Seconds())

	for _, p := range run.Projects() {
		m.documents.WithLabelValues(p.Name).Add(float64(len(p.Documents)))
		n := 0
		for _, d := range p.Documents {
			n += len(d.Classes)
		}
		m.classes.WithLabelValues(p.Name).Add(float64(n))
	}
	for site := range run.Invocations() {
		by := site.Invocation.ResolvedBy
		if !site.Invocation.IsResolved() {
			by = unresolvedLabel
		}
		m.invocations.WithLabelValues(site.Project, by).Inc()
	}
	for d := range run.Diagnostics() {
		m.diagnostics.WithLabelValues(d.Location.Project, d.Severity.String()).Inc()
	}
}

// WriteTextfile writes every series to path in the text exposition format,
// for the node exporter textfile collector.
func (m *Metrics) WriteTextfile(path string) error {
	if err := prometheus.WriteToTextfile(path, m.reg); err != nil {
		return fmt.Errorf("metrics: write %s: %w", path, err)
	}
	return nil
}
