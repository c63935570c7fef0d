package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Recorder exposes the oracle's operational counters. A nil Recorder is
// valid and records nothing, so wiring stays optional in tests.
type Recorder struct {
	providerReadings    *prometheus.CounterVec
	aggregationFailures prometheus.Counter
	resolutions         *prometheus.CounterVec
	scheduledJobs       prometheus.Gauge
}

// New registers the oracle metrics on the default registry.
func New() *Recorder {
	return &Recorder{
		providerReadings: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "oracle_provider_readings_total",
				Help: "Provider fetch results by source and status",
			},
			[]string{"source", "status"},
		),
		aggregationFailures: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "oracle_aggregation_failures_total",
				Help: "Aggregation attempts that did not reach quorum",
			},
		),
		resolutions: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "oracle_resolutions_total",
				Help: "Market resolution attempts by result",
			},
			[]string{"result"},
		),
		scheduledJobs: promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "oracle_scheduled_jobs",
				Help: "Markets currently pending resolution",
			},
		),
	}
}

// RecordProviderReading records one provider fetch outcome
// (status: ok, error, out_of_range).
func (r *Recorder) RecordProviderReading(source, status string) {
	if r == nil {
		return
	}
	r.providerReadings.WithLabelValues(source, status).Inc()
}

// RecordAggregationFailure records a quorum miss.
func (r *Recorder) RecordAggregationFailure() {
	if r == nil {
		return
	}
	r.aggregationFailures.Inc()
}

// RecordResolution records a resolution attempt
// (result: yes, no, error, quorum_failed).
func (r *Recorder) RecordResolution(result string) {
	if r == nil {
		return
	}
	r.resolutions.WithLabelValues(result).Inc()
}

// SetScheduledJobs updates the pending-jobs gauge.
func (r *Recorder) SetScheduledJobs(n int) {
	if r == nil {
		return
	}
	r.scheduledJobs.Set(float64(n))
}
