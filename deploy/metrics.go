package deploy

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/c360/flowdeploy/metric"
)

// engineMetrics holds Prometheus metrics for deployment operations.
type engineMetrics struct {
	deploys        *prometheus.CounterVec   // By target and status (success/failure/conflict)
	deployDuration *prometheus.HistogramVec // By target
	conflicts      *prometheus.CounterVec   // By target

	paramSyncs        *prometheus.CounterVec   // By target and status
	paramSyncDuration *prometheus.HistogramVec // By target

	batchUnits *prometheus.CounterVec // By target, side, and status
}

// newEngineMetrics creates and registers deployment metrics with the provided
// registry. A nil registry disables metrics.
func newEngineMetrics(registry *metric.MetricsRegistry) (*engineMetrics, error) {
	if registry == nil {
		return nil, nil // Metrics disabled
	}

	m := &engineMetrics{
		deploys: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "flowdeploy",
			Subsystem: "deploy",
			Name:      "operations_total",
			Help:      "Total number of deployment operations",
		}, []string{"target", "status"}), // status: success, failure, conflict

		deployDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "flowdeploy",
			Subsystem: "deploy",
			Name:      "duration_seconds",
			Help:      "Deployment operation duration in seconds",
			Buckets:   []float64{0.5, 1.0, 2.0, 5.0, 10.0, 30.0, 60.0},
		}, []string{"target"}),

		conflicts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "flowdeploy",
			Subsystem: "deploy",
			Name:      "naming_conflicts_total",
			Help:      "Total number of deployments paused on a naming conflict",
		}, []string{"target"}),

		paramSyncs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "flowdeploy",
			Subsystem: "paramsync",
			Name:      "operations_total",
			Help:      "Total number of parameter context synchronizations",
		}, []string{"target", "status"}),

		paramSyncDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "flowdeploy",
			Subsystem: "paramsync",
			Name:      "duration_seconds",
			Help:      "Parameter context synchronization duration in seconds",
			Buckets:   []float64{0.5, 1.0, 2.0, 5.0, 15.0, 30.0},
		}, []string{"target"}),

		batchUnits: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "flowdeploy",
			Subsystem: "batch",
			Name:      "unit_sides_total",
			Help:      "Total number of batch unit side outcomes",
		}, []string{"target", "side", "status"}),
	}

	// Register all metrics
	if err := registry.RegisterCounterVec("deploy", "operations", m.deploys); err != nil {
		return nil, err
	}
	if err := registry.RegisterHistogramVec("deploy", "duration", m.deployDuration); err != nil {
		return nil, err
	}
	if err := registry.RegisterCounterVec("deploy", "naming_conflicts", m.conflicts); err != nil {
		return nil, err
	}
	if err := registry.RegisterCounterVec("paramsync", "operations", m.paramSyncs); err != nil {
		return nil, err
	}
	if err := registry.RegisterHistogramVec("paramsync", "duration", m.paramSyncDuration); err != nil {
		return nil, err
	}
	if err := registry.RegisterCounterVec("batch", "unit_sides", m.batchUnits); err != nil {
		return nil, err
	}

	return m, nil
}

// recordDeploy records one deployment attempt.
func (m *engineMetrics) recordDeploy(target, status string, seconds float64) {
	if m == nil {
		return
	}

	m.deploys.WithLabelValues(target, status).Inc()
	m.deployDuration.WithLabelValues(target).Observe(seconds)
}

// recordConflict records a deployment paused on a naming conflict.
func (m *engineMetrics) recordConflict(target string) {
	if m == nil {
		return
	}

	m.conflicts.WithLabelValues(target).Inc()
}

// recordParamSync records one parameter context synchronization.
func (m *engineMetrics) recordParamSync(target string, success bool, seconds float64) {
	if m == nil {
		return
	}

	status := "success"
	if !success {
		status = "failure"
	}

	m.paramSyncs.WithLabelValues(target, status).Inc()
	m.paramSyncDuration.WithLabelValues(target).Observe(seconds)
}

// recordBatchUnit records one batch unit side outcome.
func (m *engineMetrics) recordBatchUnit(target, side, status string) {
	if m == nil {
		return
	}

	m.batchUnits.WithLabelValues(target, side, status).Inc()
}
