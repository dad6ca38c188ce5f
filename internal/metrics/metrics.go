package metrics

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/codepoint-impute/internal/codepoint"
	"github.com/codepoint-impute/internal/etl"
	"github.com/codepoint-impute/internal/impute"
)

// Run collects the counters of one batch run in its own registry so they can
// be written to a node-exporter textfile when the job ends
type Run struct {
	registry *prometheus.Registry

	RowsTotal         prometheus.Gauge
	StageChanges      *prometheus.CounterVec
	StageDurationSecs *prometheus.GaugeVec
	ImputedTotal      prometheus.Counter
	UnresolvedTotal   prometheus.Counter
	ImputeDistance    prometheus.Histogram
	LookupNames       prometheus.Gauge
	LastSuccess       prometheus.Gauge
}

// NewRun creates and registers the run metrics
func NewRun() *Run {
	r := &Run{
		registry: prometheus.NewRegistry(),
		RowsTotal: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "codepoint_rows",
			Help: "Number of postcode points processed",
		}),
		StageChanges: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "codepoint_stage_changes_total",
			Help: "Field values rewritten per stage and field",
		}, []string{"stage", "field"}),
		StageDurationSecs: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "codepoint_stage_duration_seconds",
			Help: "Wall time spent in each stage",
		}, []string{"stage"}),
		ImputedTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "codepoint_imputed_total",
			Help: "Postcode points whose district code was imputed",
		}),
		UnresolvedTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "codepoint_unresolved_total",
			Help: "Postcode points left without a district code",
		}),
		ImputeDistance: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "codepoint_impute_distance_metres",
			Help:    "Distance from an imputed point to the neighbour it copied from",
			Buckets: []float64{10, 25, 50, 100, 250, 500, 1000, 5000, 10000},
		}),
		LookupNames: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "codepoint_codelist_names",
			Help: "Distinct area names in the codelist lookup",
		}),
		LastSuccess: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "codepoint_last_success_timestamp_seconds",
			Help: "Unix time of the last successful run",
		}),
	}

	r.registry.MustRegister(
		r.RowsTotal,
		r.StageChanges,
		r.StageDurationSecs,
		r.ImputedTotal,
		r.UnresolvedTotal,
		r.ImputeDistance,
		r.LookupNames,
		r.LastSuccess,
	)
	return r
}

// StageCompleted records the changes made by a pipeline stage
func (r *Run) StageCompleted(result etl.StageResult) {
	r.StageDurationSecs.WithLabelValues(result.Stage).Set(result.Duration.Seconds())
	for _, c := range result.Changes {
		r.StageChanges.WithLabelValues(result.Stage, string(c.Field)).Inc()
	}
	// Make stages without changes visible as zero
	for _, f := range []codepoint.Field{codepoint.FieldCountryCode, codepoint.FieldAdminDistrictCode, codepoint.FieldAdminWardCode} {
		r.StageChanges.WithLabelValues(result.Stage, string(f)).Add(0)
	}
}

// ObserveImpute records the imputation report
func (r *Run) ObserveImpute(report *impute.Report) {
	if report == nil {
		return
	}
	r.ImputedTotal.Add(float64(report.Imputed))
	r.UnresolvedTotal.Add(float64(report.Unresolved))
	for _, m := range report.Matches {
		r.ImputeDistance.Observe(m.Distance)
	}
}

// MarkSuccess stamps the completion time
func (r *Run) MarkSuccess() {
	r.LastSuccess.SetToCurrentTime()
}

// WriteTextfile writes the metrics in the Prometheus text format
func (r *Run) WriteTextfile(path string) error {
	return prometheus.WriteToTextfile(path, r.registry)
}

// Gatherer exposes the underlying registry
func (r *Run) Gatherer() prometheus.Gatherer {
	return r.registry
}
