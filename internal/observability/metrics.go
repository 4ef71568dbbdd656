package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the Prometheus counters and histograms for the ETL pipeline.
type Metrics struct {
	PipelineRuns     prometheus.Counter
	PipelineFailures prometheus.Counter
	RowsIngested     prometheus.Counter
	RowsMerged       prometheus.Counter
	ValuesCorrected  prometheus.Counter

	StepDuration *prometheus.HistogramVec // label: step={ingest,correct_labels,correct_values,merge}
	StepErrors   *prometheus.CounterVec   // label: step
}

func newMetrics() *Metrics {
	return &Metrics{
		PipelineRuns: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "field_etl",
			Name:      "pipeline_runs_total",
			Help:      "Total pipeline runs started.",
		}),
		PipelineFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "field_etl",
			Name:      "pipeline_failures_total",
			Help:      "Total pipeline runs that surfaced an error.",
		}),
		RowsIngested: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "field_etl",
			Name:      "rows_ingested_total",
			Help:      "Rows loaded from the survey database.",
		}),
		RowsMerged: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "field_etl",
			Name:      "rows_merged_total",
			Help:      "Rows in the dataset after weather-station enrichment.",
		}),
		ValuesCorrected: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "field_etl",
			Name:      "values_corrected_total",
			Help:      "Categorical cells rewritten by the value-correction map.",
		}),
		StepDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "field_etl",
			Name:      "step_duration_seconds",
			Help:      "Duration of each pipeline step.",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.5, 1, 2.5, 5, 10, 30},
		}, []string{"step"}),
		StepErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "field_etl",
			Name:      "step_errors_total",
			Help:      "Failures per pipeline step.",
		}, []string{"step"}),
	}
}

// NewMetrics creates and registers all pipeline metrics with the default
// Prometheus registry.
func NewMetrics() *Metrics {
	m := newMetrics()
	prometheus.MustRegister(
		m.PipelineRuns,
		m.PipelineFailures,
		m.RowsIngested,
		m.RowsMerged,
		m.ValuesCorrected,
		m.StepDuration,
		m.StepErrors,
	)
	return m
}

// NewMetricsForTesting creates Metrics without registering them, avoiding
// "already registered" panics when called from multiple tests.
func NewMetricsForTesting() *Metrics {
	return newMetrics()
}
