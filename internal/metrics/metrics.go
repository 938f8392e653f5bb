package metrics

import "github.com/prometheus/client_golang/prometheus"

const namespace = "hql_preview"

var (
	GenerationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "generations_total",
			Help:      "Total HQL generations by mode and outcome.",
		},
		[]string{"mode", "outcome"},
	)
	GenerationDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "generation_duration_seconds",
			Help:      "HQL generation duration in seconds.",
			Buckets:   []float64{.0005, .001, .0025, .005, .01, .025, .05, .1, .25, .5, 1},
		},
		[]string{"mode", "cached"},
	)
	GenerationErrors = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "generation_errors_total",
			Help:      "Total failed generations by error kind.",
		},
		[]string{"kind"},
	)
	ValidationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "validations_total",
			Help:      "Total validator runs by result.",
		},
		[]string{"valid"},
	)
	ValidationWarnings = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "validation_warnings_total",
			Help:      "Total validator warnings.",
		},
	)
	PerformanceScore = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "performance_score",
			Help:      "Analyzer score distribution by level.",
			Buckets:   prometheus.LinearBuckets(0, 10, 11),
		},
		[]string{"level"},
	)
	CacheEntries = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "cache_entries",
			Help:      "Entries in the in-process HQL cache.",
		},
	)
)

func init() {
	prometheus.MustRegister(
		GenerationsTotal,
		GenerationDuration,
		GenerationErrors,
		ValidationsTotal,
		ValidationWarnings,
		PerformanceScore,
		CacheEntries,
	)
}

// Observer 将生成过程上报到上面的全局指标
type Observer struct{}

func (Observer) ObserveGeneration(mode, outcome string, cached bool, seconds float64) {
	GenerationsTotal.WithLabelValues(mode, outcome).Inc()
	c := "false"
	if cached {
		c = "true"
	}
	GenerationDuration.WithLabelValues(mode, c).Observe(seconds)
}

func (Observer) ObserveError(kind string) {
	GenerationErrors.WithLabelValues(kind).Inc()
}

func (Observer) ObserveValidation(valid bool, warnings int) {
	v := "false"
	if valid {
		v = "true"
	}
	ValidationsTotal.WithLabelValues(v).Inc()
	ValidationWarnings.Add(float64(warnings))
}

func (Observer) ObserveScore(level string, score int) {
	PerformanceScore.WithLabelValues(level).Observe(float64(score))
}

func (Observer) SetCacheSize(size int) {
	CacheEntries.Set(float64(size))
}
