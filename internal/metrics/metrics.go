package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	SessionsStarted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "sessiond_sessions_started_total",
		Help: "Total number of study sessions started.",
	})

	SessionsFinalized = promauto.NewCounter(prometheus.CounterOpts{
		Name: "sessiond_sessions_finalized_total",
		Help: "Total number of study sessions finalized.",
	})

	EventsRecorded = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "sessiond_events_recorded_total",
		Help: "Total number of events recorded, labelled by event type (unknown types are labelled unclassified).",
	}, []string{"type"})

	EventsUnclassified = promauto.NewCounter(prometheus.CounterOpts{
		Name: "sessiond_events_unclassified_total",
		Help: "Total number of recorded events whose type is not one of the canonical kinds.",
	})

	PersistFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "sessiond_event_persist_failures_total",
		Help: "Total number of durable append failures (the in-memory record is kept).",
	})

	ScholarRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "sessiond_scholar_requests_total",
		Help: "Total number of Semantic Scholar search requests, labelled by outcome.",
	}, []string{"outcome"})

	AssistantCalls = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "sessiond_assistant_calls_total",
		Help: "Total number of language-model calls, labelled by feature and outcome.",
	}, []string{"feature", "outcome"})

	ReportBuildDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "sessiond_report_build_duration_ms",
		Help:    "Session report computation latency in milliseconds.",
		Buckets: []float64{1, 5, 10, 25, 50, 100, 250, 500},
	})
)
