package server

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/robdanz/tf-cf-dni-list/internal/correlate"
)

var (
	batchesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dni_list_batches_total",
			Help: "Total ingested log batches by stream and outcome.",
		},
		[]string{"stream", "outcome"},
	)
	matchedSessionsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "dni_list_matched_sessions_total",
			Help: "Total sessions resolved by the two-sided join.",
		},
	)
	appendedHostnamesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "dni_list_appended_hostnames_total",
			Help: "Total hostnames appended to the allow-list.",
		},
	)
	pendingEntriesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dni_list_pending_entries_total",
			Help: "Total pending entries written while waiting for the other stream.",
		},
		[]string{"stream"},
	)
)

func batchOutcome(ok bool) string {
	if ok {
		return "ok"
	}
	return "partial"
}

func observeErrorBatch(summary correlate.ErrorSummary) {
	batchesTotal.WithLabelValues("errors", batchOutcome(summary.OK())).Inc()
	matchedSessionsTotal.Add(float64(summary.MatchedSessionIDs))
	appendedHostnamesTotal.Add(float64(len(summary.AddedHostnames)))
	pendingEntriesTotal.WithLabelValues("errors").Add(float64(summary.PendingSessionIDs))
}

func observeSessionBatch(summary correlate.SessionSummary) {
	batchesTotal.WithLabelValues("sessions", batchOutcome(summary.OK())).Inc()
	matchedSessionsTotal.Add(float64(summary.Matched))
	appendedHostnamesTotal.Add(float64(summary.Added))
	pendingEntriesTotal.WithLabelValues("sessions").Add(float64(summary.StoredForLater))
}
