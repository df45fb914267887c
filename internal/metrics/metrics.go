// Package metrics collects and exposes Prometheus metrics.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Skip reasons for member processing.
const (
	SkipAbsent = "absent"
	SkipError  = "error"
)

// Collector records reconciliation and directory metrics. Service code holds
// the interface so tests can pass a no-op.
type Collector interface {
	RecordReconcilePass(d time.Duration)
	RecordProjectUpserted()
	RecordRoleUpserted()
	RecordMemberSkipped(reason string)
	RecordDirectoryRequest(outcome string)
	RecordSyncFailure()
}

// PrometheusCollector implements Collector on a Prometheus registry.
type PrometheusCollector struct {
	reconcileDuration prometheus.Histogram
	projectsUpserted  prometheus.Counter
	rolesUpserted     prometheus.Counter
	membersSkipped    *prometheus.CounterVec
	directoryRequests *prometheus.CounterVec
	syncFailures      prometheus.Counter
}

// NewCollector creates a PrometheusCollector and registers its metrics.
func NewCollector(reg prometheus.Registerer) *PrometheusCollector {
	c := &PrometheusCollector{
		reconcileDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "resreg_reconcile_duration_seconds",
			Help:    "Duration of collaboration reconciliation passes.",
			Buckets: prometheus.DefBuckets,
		}),
		projectsUpserted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "resreg_projects_upserted_total",
			Help: "Projects created or updated by reconciliation.",
		}),
		rolesUpserted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "resreg_roles_upserted_total",
			Help: "Project roles created or updated by reconciliation.",
		}),
		membersSkipped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "resreg_members_skipped_total",
			Help: "Members skipped during reconciliation, by reason.",
		}, []string{"reason"}),
		directoryRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "resreg_directory_requests_total",
			Help: "Directory lookups, by outcome.",
		}, []string{"outcome"}),
		syncFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "resreg_sync_failures_total",
			Help: "Targeted project syncs that failed.",
		}),
	}

	reg.MustRegister(
		c.reconcileDuration,
		c.projectsUpserted,
		c.rolesUpserted,
		c.membersSkipped,
		c.directoryRequests,
		c.syncFailures,
	)

	return c
}

// RecordReconcilePass records the duration of one reconciliation pass.
func (c *PrometheusCollector) RecordReconcilePass(d time.Duration) {
	c.reconcileDuration.Observe(d.Seconds())
}

// RecordProjectUpserted counts a project create-or-update.
func (c *PrometheusCollector) RecordProjectUpserted() {
	c.projectsUpserted.Inc()
}

// RecordRoleUpserted counts a role create-or-update.
func (c *PrometheusCollector) RecordRoleUpserted() {
	c.rolesUpserted.Inc()
}

// RecordMemberSkipped counts a skipped member by reason.
func (c *PrometheusCollector) RecordMemberSkipped(reason string) {
	c.membersSkipped.WithLabelValues(reason).Inc()
}

// RecordDirectoryRequest counts a directory lookup by outcome.
func (c *PrometheusCollector) RecordDirectoryRequest(outcome string) {
	c.directoryRequests.WithLabelValues(outcome).Inc()
}

// RecordSyncFailure counts a failed targeted sync.
func (c *PrometheusCollector) RecordSyncFailure() {
	c.syncFailures.Inc()
}

// Noop is a Collector that records nothing.
type Noop struct{}

func (Noop) RecordReconcilePass(time.Duration) {}
func (Noop) RecordProjectUpserted()            {}
func (Noop) RecordRoleUpserted()               {}
func (Noop) RecordMemberSkipped(string)        {}
func (Noop) RecordDirectoryRequest(string)     {}
func (Noop) RecordSyncFailure()                {}
