// Package metrics provides Prometheus metrics instrumentation.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// FragmentsTotal tracks inbound reply fragments by merge outcome.
	FragmentsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "assistant_fragments_total",
			Help: "Reply fragments ingested by merge outcome",
		},
		[]string{"outcome"},
	)

	// MessagesTotal tracks messages added to the conversation.
	MessagesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "assistant_messages_total",
			Help: "Messages added to the conversation",
		},
		[]string{"role"},
	)

	// SavesTotal tracks persistence writes by result.
	SavesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "assistant_saves_total",
			Help: "Conversation snapshot writes by result",
		},
		[]string{"result"},
	)

	// SaveDuration tracks snapshot serialization and write duration.
	SaveDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "assistant_save_duration_seconds",
			Help:    "Snapshot write duration in seconds",
			Buckets: []float64{.001, .0025, .005, .01, .025, .05, .1, .25, .5, 1},
		},
	)

	// StoreUsedBytes tracks occupancy of the durable store.
	StoreUsedBytes = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "assistant_store_used_bytes",
			Help: "Bytes used in the durable store across all keys",
		},
	)

	// SnapshotMessages tracks the message count of the last written snapshot.
	SnapshotMessages = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "assistant_snapshot_messages",
			Help: "Messages in the last written snapshot",
		},
	)

	// DictationSessionsTotal tracks dictation sessions by how they ended.
	DictationSessionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "assistant_dictation_sessions_total",
			Help: "Dictation sessions by end reason",
		},
		[]string{"end_reason"},
	)

	// CommandsTotal tracks submitted commands by transport path.
	CommandsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "assistant_commands_total",
			Help: "Commands submitted by transport path",
		},
		[]string{"path", "status"},
	)

	// CommandDuration tracks HTTP fallback command latency.
	CommandDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "assistant_command_duration_seconds",
			Help:    "HTTP fallback command duration in seconds",
			Buckets: []float64{.05, .1, .25, .5, 1, 2.5, 5, 10, 30},
		},
		[]string{"status"},
	)

	// NotificationsTotal tracks emitted notifications by severity.
	NotificationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "assistant_notifications_total",
			Help: "Notifications emitted by severity",
		},
		[]string{"severity"},
	)

	// RealtimeConnected reports whether the realtime channel is up.
	RealtimeConnected = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "assistant_realtime_connected",
			Help: "1 when the realtime channel is connected",
		},
	)
)

// RecordSave records metrics for a snapshot write.
func RecordSave(result string, duration float64, messageCount int) {
	SavesTotal.WithLabelValues(result).Inc()
	SaveDuration.Observe(duration)
	SnapshotMessages.Set(float64(messageCount))
}

// RecordCommand records metrics for a submitted command.
func RecordCommand(path, status string) {
	CommandsTotal.WithLabelValues(path, status).Inc()
}

// SetRealtimeConnected updates the realtime connectivity gauge.
func SetRealtimeConnected(connected bool) {
	if connected {
		RealtimeConnected.Set(1)
	} else {
		RealtimeConnected.Set(0)
	}
}
