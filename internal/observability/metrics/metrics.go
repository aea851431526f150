// Package metrics exposes the Prometheus instrumentation for the billing
// engine.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	invoiceTransitions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "billing_invoice_transitions_total",
		Help: "Invoice state transitions applied, by resulting state.",
	}, []string{"state"})

	captureEvents = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "billing_capture_events_total",
		Help: "Gateway capture events processed, by result.",
	}, []string{"result"})

	reconcilerJobRuns = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "billing_reconciler_job_runs_total",
		Help: "Reconciler job executions, by job.",
	}, []string{"job"})

	reconcilerJobErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "billing_reconciler_job_errors_total",
		Help: "Reconciler job failures, by job.",
	}, []string{"job"})

	reconcilerJobDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "billing_reconciler_job_duration_seconds",
		Help:    "Reconciler job wall time, by job.",
		Buckets: prometheus.DefBuckets,
	}, []string{"job"})

	sagaDeliveries = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "billing_saga_deliveries_total",
		Help: "Saga notification delivery outcomes.",
	}, []string{"result"})
)

func IncTransition(state string)    { invoiceTransitions.WithLabelValues(state).Inc() }
func IncCapture(result string)      { captureEvents.WithLabelValues(result).Inc() }
func IncJobRun(job string)          { reconcilerJobRuns.WithLabelValues(job).Inc() }
func IncJobError(job string)        { reconcilerJobErrors.WithLabelValues(job).Inc() }
func IncSagaDelivery(result string) { sagaDeliveries.WithLabelValues(result).Inc() }

func ObserveJobDuration(job string, d time.Duration) {
	reconcilerJobDuration.WithLabelValues(job).Observe(d.Seconds())
}
