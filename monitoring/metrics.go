package monitoring

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	snapshotRefreshes = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "queue_snapshot_refreshes_total",
			Help: "Snapshot refetches by trigger and outcome",
		},
		[]string{"trigger", "status"},
	)

	snapshotSize = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "queue_snapshot_entries",
			Help: "Entry count of the last reconciled snapshot",
		},
	)

	displayMinutes = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "ewt_display_minutes",
			Help: "Currently displayed estimated wait in minutes",
		},
	)

	pushEvents = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "realtime_push_events_total",
			Help: "Realtime row-change events by outcome",
		},
		[]string{"status"},
	)

	chatMessages = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chat_messages_total",
			Help: "Chat messages by direction",
		},
		[]string{"direction"},
	)

	modalOpens = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "modal_opens_total",
			Help: "Sticky modals opened by kind",
		},
		[]string{"kind"},
	)

	geofenceAlerts = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "geofence_alerts_total",
			Help: "Too-far alerts raised",
		},
	)
)

func TrackRefresh(trigger, status string) {
	snapshotRefreshes.WithLabelValues(trigger, status).Inc()
}

func TrackSnapshotSize(n int) {
	snapshotSize.Set(float64(n))
}

func TrackDisplayMinutes(minutes int) {
	displayMinutes.Set(float64(minutes))
}

func TrackPushEvent(status string) {
	pushEvents.WithLabelValues(status).Inc()
}

func TrackChatMessage(direction string) {
	chatMessages.WithLabelValues(direction).Inc()
}

func TrackModalOpen(kind string) {
	modalOpens.WithLabelValues(kind).Inc()
}

func TrackGeofenceAlert() {
	geofenceAlerts.Inc()
}
