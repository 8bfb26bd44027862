// Package metrics registers the process-wide Prometheus instruments. All
// collectors live on the default registry and are served by the HTTP
// server's /metrics endpoint.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// RadarRuns counts completed pipeline runs by outcome ("ok" | "error").
	RadarRuns = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "radar_runs_total",
		Help: "Completed radar pipeline runs by outcome.",
	}, []string{"outcome"})

	// RadarRunDuration observes wall time of full pipeline runs.
	RadarRunDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "radar_run_duration_seconds",
		Help:    "Wall time of a full radar pipeline run.",
		Buckets: prometheus.ExponentialBuckets(0.5, 2, 10),
	})

	// StoriesEmitted counts stories surfaced by finished runs.
	StoriesEmitted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "radar_stories_emitted_total",
		Help: "Stories surfaced by finished radar runs.",
	})

	// ClustersDropped counts clusters discarded during enrichment by reason
	// ("analysis_failed" | "below_threshold").
	ClustersDropped = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "radar_clusters_dropped_total",
		Help: "Clusters discarded during enrichment by reason.",
	}, []string{"reason"})

	// FeedCacheLookups counts smart-update cache decisions
	// ("hit" | "miss" | "bypass").
	FeedCacheLookups = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "feed_cache_lookups_total",
		Help: "Feed cache lookup results.",
	}, []string{"result"})

	// FeedRefreshes counts feed refreshes by mode ("full" | "incremental").
	FeedRefreshes = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "feed_refreshes_total",
		Help: "Feed refreshes by mode.",
	}, []string{"mode"})

	// WorkerJobRuns counts background job executions by job name and outcome.
	WorkerJobRuns = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "worker_job_runs_total",
		Help: "Background job executions by job and outcome.",
	}, []string{"job", "outcome"})
)
