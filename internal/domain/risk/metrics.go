package risk

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics instruments the assessment pipeline. A nil *Metrics records
// nothing.
type Metrics struct {
	assessments     *prometheus.CounterVec
	duration        prometheus.Histogram
	recommendations *prometheus.CounterVec
	fallbacks       prometheus.Counter
	cacheLookups    *prometheus.CounterVec
	overall         prometheus.Histogram
}

func NewMetrics(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		assessments: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "healthrisk",
			Subsystem: "risk",
			Name:      "assessments_total",
			Help:      "Completed risk assessments by score source.",
		}, []string{"source"}),
		duration: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: "healthrisk",
			Subsystem: "risk",
			Name:      "pipeline_duration_seconds",
			Help:      "Time to load, score, recommend and persist one assessment.",
			Buckets:   prometheus.DefBuckets,
		}),
		recommendations: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "healthrisk",
			Subsystem: "risk",
			Name:      "recommendations_total",
			Help:      "Recommendations emitted by category and priority.",
		}, []string{"category", "priority"}),
		fallbacks: f.NewCounter(prometheus.CounterOpts{
			Namespace: "healthrisk",
			Subsystem: "risk",
			Name:      "ml_fallbacks_total",
			Help:      "Assessments that fell back to rule scoring because the ML override was unavailable.",
		}),
		cacheLookups: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "healthrisk",
			Subsystem: "risk",
			Name:      "cache_lookups_total",
			Help:      "Latest-assessment cache lookups by result.",
		}, []string{"result"}),
		overall: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: "healthrisk",
			Subsystem: "risk",
			Name:      "overall_score",
			Help:      "Distribution of weighted overall risk scores.",
			Buckets:   prometheus.LinearBuckets(10, 10, 9),
		}),
	}
}

func (m *Metrics) observeAssessment(r *Result, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.assessments.WithLabelValues(string(r.Assessment.Source)).Inc()
	m.duration.Observe(elapsed.Seconds())
	m.overall.Observe(r.Assessment.Overall)
	for _, rec := range r.Recommendations {
		m.recommendations.WithLabelValues(string(rec.Category), string(rec.Priority)).Inc()
	}
}

func (m *Metrics) observeFallback() {
	if m == nil {
		return
	}
	m.fallbacks.Inc()
}

func (m *Metrics) observeCache(hit bool) {
	if m == nil {
		return
	}
	result := "miss"
	if hit {
		result = "hit"
	}
	m.cacheLookups.WithLabelValues(result).Inc()
}
