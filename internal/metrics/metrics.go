// internal/metrics/metrics.go
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/DOH-JDJ0303/waphl-data/internal/domain"
)

var (
	// HttpRequestsTotal counts API requests.
	HttpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of http requests handled by the service.",
		},
		[]string{"path", "method", "code"},
	)

	// PipelineRunsTotal counts detector invocations by final status.
	PipelineRunsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "waphl_pipeline_runs_total",
			Help: "Total number of pipeline runs.",
		},
		[]string{"pipeline", "status"},
	)

	// ItemsTotal counts work items per pipeline by outcome: listed, skipped,
	// cached, dropped, dispatched or failed.
	ItemsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "waphl_items_total",
			Help: "Total number of work items seen by pipeline runs.",
		},
		[]string{"pipeline", "outcome"},
	)

	// RunDuration observes wall time of pipeline runs.
	RunDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "waphl_pipeline_run_duration_seconds",
			Help:    "Duration of pipeline runs.",
			Buckets: prometheus.ExponentialBuckets(0.5, 2, 10),
		},
		[]string{"pipeline"},
	)

	// TaskExecutionTotal counts scheduled task triggers.
	TaskExecutionTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "waphl_task_executions_total",
			Help: "Total number of scheduled task executions.",
		},
		[]string{"task", "status"},
	)

	// IsLeader is 1 while this node owns the schedule.
	IsLeader = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "is_leader",
			Help: "Is this node currently the leader. 1 if leader, 0 otherwise.",
		},
		[]string{"node_id"},
	)
)

// ObserveReport records the counters for a finished run.
func ObserveReport(r *domain.Report) {
	PipelineRunsTotal.WithLabelValues(r.Pipeline, string(r.Status)).Inc()
	RunDuration.WithLabelValues(r.Pipeline).Observe(r.EndTime.Sub(r.StartTime).Seconds())

	items := ItemsTotal.MustCurryWith(prometheus.Labels{"pipeline": r.Pipeline})
	items.WithLabelValues("listed").Add(float64(r.Listed))
	items.WithLabelValues("dropped").Add(float64(len(r.Dropped)))
	var cached float64
	for _, s := range r.Skipped {
		if s.Reason == domain.SkipCached {
			cached++
		}
	}
	items.WithLabelValues("cached").Add(cached)
	items.WithLabelValues("skipped").Add(float64(len(r.Skipped)) - cached)
	items.WithLabelValues("dispatched").Add(float64(len(r.Dispatched())))
	items.WithLabelValues("failed").Add(float64(r.Failed()))
}
