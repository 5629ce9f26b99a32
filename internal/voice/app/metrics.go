package app

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	webhookEventsCounter = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "voxgate",
			Name:      "webhook_events_total",
			Help:      "Telephony webhook events handled, by kind and outcome.",
		},
		[]string{"kind", "outcome"}, // kind="voice|status|recording", outcome="handled|dropped"
	)
	recordingBytesHist = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "voxgate",
			Name:      "recording_bytes",
			Help:      "Final size of captured call recordings.",
			Buckets:   prometheus.ExponentialBuckets(64*1024, 4, 8),
		},
	)
	sweepOwnersCounter = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "voxgate",
			Name:      "sweep_owners_total",
			Help:      "Owners processed by the reconciliation sweep, by result.",
		},
		[]string{"result"}, // valid|marked_invalid|warned|reclaimed|skipped|error
	)
	sweepDurationHist = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "voxgate",
			Name:      "sweep_duration_seconds",
			Help:      "Duration of one reconciliation sweep invocation.",
			Buckets:   prometheus.DefBuckets,
		},
	)
)
