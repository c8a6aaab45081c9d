// Copyright (c) 2025 vflorio
// SPDX-License-Identifier: MIT

// Package metrics holds the process-wide Prometheus instruments. All series
// live under the hbbtv_emu namespace; helpers keep label cardinality under
// control at the call sites.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	stateTransitionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "hbbtv_emu",
		Name:      "state_transitions_total",
		Help:      "Applied player state transitions by source type and edge",
	}, []string{"source_type", "from", "to"})

	transitionRejectionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "hbbtv_emu",
		Name:      "transition_rejections_total",
		Help:      "Rejected actions by forbidden-transition reason",
	}, []string{"reason"})

	adapterEventsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "hbbtv_emu",
		Name:      "adapter_events_total",
		Help:      "Unsolicited adapter events by kind",
	}, []string{"kind"})

	// ActionQueueDepth gauges pending actions across all session queues.
	ActionQueueDepth = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "hbbtv_emu",
		Name:      "action_queue_depth",
		Help:      "Actions waiting in session queues",
	})

	// SessionsActive gauges live (not yet disposed) sessions.
	SessionsActive = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "hbbtv_emu",
		Name:      "sessions_active",
		Help:      "Sessions currently alive",
	})

	notificationsDroppedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "hbbtv_emu",
		Name:      "notifications_dropped_total",
		Help:      "State notifications dropped on full subscriber buffers",
	})

	journalWriteFailuresTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "hbbtv_emu",
		Name:      "journal_write_failures_total",
		Help:      "Journal appends that failed, by backend",
	}, []string{"backend"})

	statusExportTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "hbbtv_emu",
		Name:      "status_export_total",
		Help:      "Status file export attempts by outcome",
	}, []string{"outcome"})
)

// IncTransition records one applied transition edge.
func IncTransition(sourceType, from, to string) {
	if sourceType == "" {
		sourceType = "none"
	}
	stateTransitionsTotal.WithLabelValues(sourceType, from, to).Inc()
}

// IncRejection records one rejected action.
func IncRejection(reason string) {
	if reason == "" {
		reason = "unspecified"
	}
	transitionRejectionsTotal.WithLabelValues(reason).Inc()
}

// IncAdapterEvent records one unsolicited adapter event.
func IncAdapterEvent(kind string) {
	adapterEventsTotal.WithLabelValues(kind).Inc()
}

// IncNotificationDropped records a notification lost to a slow subscriber.
func IncNotificationDropped() {
	notificationsDroppedTotal.Inc()
}

// IncJournalWriteFailure records a failed journal append.
func IncJournalWriteFailure(backend string) {
	journalWriteFailuresTotal.WithLabelValues(backend).Inc()
}

// IncStatusExport records one status export attempt.
func IncStatusExport(ok bool) {
	outcome := "error"
	if ok {
		outcome = "ok"
	}
	statusExportTotal.WithLabelValues(outcome).Inc()
}
