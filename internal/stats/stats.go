// Package stats exposes scan counters as Prometheus metrics.
package stats

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "patlint"

// Stats holds the counters of one scan. Every method is safe on a nil
// *Stats, which records nothing.
type Stats struct {
	reg *prometheus.Registry

	files      prometheus.Counter
	parseErrs  prometheus.Counter
	anchors    *prometheus.CounterVec
	timeouts   *prometheus.CounterVec
	findings   *prometheus.CounterVec
	ruleErrors *prometheus.CounterVec
}

// New registers the scan counters on a fresh registry.
func New() *Stats {
	s := &Stats{
		reg: prometheus.NewRegistry(),
		files: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "files_scanned_total",
			Help:      "Files parsed and evaluated.",
		}),
		parseErrs: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "parse_errors_total",
			Help:      "Files skipped because they failed to parse.",
		}),
		anchors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "anchors_tried_total",
			Help:      "Anchor attempts made by the matcher.",
		}, []string{"rule"}),
		timeouts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "match_timeouts_total",
			Help:      "Anchor attempts abandoned after exhausting the step budget.",
		}, []string{"rule"}),
		findings: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "findings_total",
			Help:      "Findings reported.",
		}, []string{"rule"}),
		ruleErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rule_errors_total",
			Help:      "Rule evaluations that failed with an error.",
		}, []string{"rule"}),
	}
	s.reg.MustRegister(s.files, s.parseErrs, s.anchors, s.timeouts, s.findings, s.ruleErrors)
	return s
}

// Registry returns the registry holding the counters.
func (s *Stats) Registry() *prometheus.Registry { return s.reg }

func (s *Stats) FileScanned() {
	if s != nil {
		s.files.Inc()
	}
}

func (s *Stats) ParseError() {
	if s != nil {
		s.parseErrs.Inc()
	}
}

// RuleDone records the outcome of evaluating one rule on one file.
func (s *Stats) RuleDone(rule string, anchors, timeouts, findings, errs int) {
	if s == nil {
		return
	}
	s.anchors.WithLabelValues(rule).Add(float64(anchors))
	s.timeouts.WithLabelValues(rule).Add(float64(timeouts))
	s.findings.WithLabelValues(rule).Add(float64(findings))
	s.ruleErrors.WithLabelValues(rule).Add(float64(errs))
}

// WriteFile dumps the counters in the Prometheus text format.
func (s *Stats) WriteFile(path string) error {
	return prometheus.WriteToTextfile(path, s.reg)
}

// Handler serves the counters for scraping, used by watch mode.
func (s *Stats) Handler() http.Handler {
	return promhttp.HandlerFor(s.reg, promhttp.HandlerOpts{})
}
