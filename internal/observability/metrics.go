package observability

import (
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type moduleMetrics struct {
	storeOpsTotal     *prometheus.CounterVec
	storeOpDuration   *prometheus.HistogramVec
	storeErrorsTotal  *prometheus.CounterVec
	storeSaveDuration *prometheus.HistogramVec
	pendingChanges    prometheus.Gauge

	commandTotal    *prometheus.CounterVec
	commandDuration *prometheus.HistogramVec
	cwdChangesTotal prometheus.Counter
	findResults     prometheus.Histogram
}

var (
	metricsOnce sync.Once
	metricsInst *moduleMetrics
)

func getMetrics() *moduleMetrics {
	metricsOnce.Do(func() {
		m := &moduleMetrics{
			storeOpsTotal: prometheus.NewCounterVec(
				prometheus.CounterOpts{
					Name: "nodeshell_store_operations_total",
					Help: "Total store operations by transport, operation and status.",
				},
				[]string{"transport", "op", "status"},
			),
			storeOpDuration: prometheus.NewHistogramVec(
				prometheus.HistogramOpts{
					Name:    "nodeshell_store_operation_duration_seconds",
					Help:    "Store operation duration in seconds by transport and operation.",
					Buckets: prometheus.DefBuckets,
				},
				[]string{"transport", "op"},
			),
			storeErrorsTotal: prometheus.NewCounterVec(
				prometheus.CounterOpts{
					Name: "nodeshell_store_errors_total",
					Help: "Total failed store operations by transport and operation.",
				},
				[]string{"transport", "op"},
			),
			storeSaveDuration: prometheus.NewHistogramVec(
				prometheus.HistogramOpts{
					Name:    "nodeshell_store_save_duration_seconds",
					Help:    "Duration of committing pending changes to the backend.",
					Buckets: prometheus.DefBuckets,
				},
				[]string{"transport"},
			),
			pendingChanges: prometheus.NewGauge(
				prometheus.GaugeOpts{
					Name: "nodeshell_pending_changes",
					Help: "Number of unsaved items in the most recently used session.",
				},
			),
			commandTotal: prometheus.NewCounterVec(
				prometheus.CounterOpts{
					Name: "nodeshell_command_total",
					Help: "Total shell commands by command and status.",
				},
				[]string{"command", "status"},
			),
			commandDuration: prometheus.NewHistogramVec(
				prometheus.HistogramOpts{
					Name:    "nodeshell_command_duration_seconds",
					Help:    "Shell command duration in seconds by command.",
					Buckets: prometheus.DefBuckets,
				},
				[]string{"command"},
			),
			cwdChangesTotal: prometheus.NewCounter(
				prometheus.CounterOpts{
					Name: "nodeshell_cwd_changes_total",
					Help: "Total successful working location changes.",
				},
			),
			findResults: prometheus.NewHistogram(
				prometheus.HistogramOpts{
					Name:    "nodeshell_find_results",
					Help:    "Number of nodes returned by glob searches.",
					Buckets: []float64{0, 1, 5, 10, 50, 100, 500, 1000},
				},
			),
		}

		prometheus.MustRegister(
			m.storeOpsTotal,
			m.storeOpDuration,
			m.storeErrorsTotal,
			m.storeSaveDuration,
			m.pendingChanges,
			m.commandTotal,
			m.commandDuration,
			m.cwdChangesTotal,
			m.findResults,
		)

		metricsInst = m
	})

	return metricsInst
}

// EnsureRegistered initializes and registers metrics the first time it is called.
func EnsureRegistered() {
	_ = getMetrics()
}

func MetricsHandler() http.Handler {
	EnsureRegistered()
	return promhttp.Handler()
}

func statusLabel(success bool) string {
	if success {
		return "success"
	}
	return "error"
}

func RecordStoreOperation(transport, op string, duration time.Duration, success bool) {
	m := getMetrics()
	m.storeOpsTotal.WithLabelValues(transport, op, statusLabel(success)).Inc()
	m.storeOpDuration.WithLabelValues(transport, op).Observe(duration.Seconds())
	if !success {
		m.storeErrorsTotal.WithLabelValues(transport, op).Inc()
	}
}

func RecordStoreSave(transport string, duration time.Duration) {
	m := getMetrics()
	m.storeSaveDuration.WithLabelValues(transport).Observe(duration.Seconds())
}

func SetPendingChanges(count int) {
	m := getMetrics()
	m.pendingChanges.Set(float64(count))
}

func RecordCommand(command string, duration time.Duration, success bool) {
	m := getMetrics()
	m.commandTotal.WithLabelValues(command, statusLabel(success)).Inc()
	m.commandDuration.WithLabelValues(command).Observe(duration.Seconds())
}

func RecordCwdChange() {
	getMetrics().cwdChangesTotal.Inc()
}

func RecordFindResults(count int) {
	getMetrics().findResults.Observe(float64(count))
}
