// Package metrics exposes the gateway's Prometheus collectors.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "rendergate"

var (
	// Sessions counts finished render sessions by outcome
	// ("document", "download", "failed").
	Sessions = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "sessions_total",
		Help:      "Render sessions finished, by outcome.",
	}, []string{"outcome"})

	SessionDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "session_duration_seconds",
		Help:      "Wall time from tab open to tab close.",
		Buckets:   prometheus.ExponentialBuckets(0.1, 2, 10),
	}, []string{"outcome"})

	ActiveTabs = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "tabs_active",
		Help:      "Browser tabs currently open.",
	})

	// Interceptions counts resolved Fetch.requestPaused events.
	Interceptions = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "interceptions_total",
		Help:      "Paused requests resolved, by stage and resolution.",
	}, []string{"stage", "resolution"})

	Challenges = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "challenges_total",
		Help:      "Challenge pages seen, by whether the re-wait cleared them.",
	}, []string{"result"})

	Rejections = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "rejections_total",
		Help:      "Requests rejected before a tab was opened, by reason.",
	}, []string{"reason"})
)
