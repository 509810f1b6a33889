package broadcast

import "github.com/prometheus/client_golang/prometheus"

var (
	broadcastsStarted = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "voxroom",
		Subsystem: "broadcast",
		Name:      "starts_total",
		Help:      "Broadcasts started.",
	})
	turnsFinalized = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "voxroom",
		Subsystem: "broadcast",
		Name:      "turns_finalized_total",
		Help:      "Utterance turns finalized into timeline entries.",
	})
	messagesPersisted = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "voxroom",
		Subsystem: "broadcast",
		Name:      "messages_persisted_total",
		Help:      "Finalized turns written to the room store.",
	})
	chunksScheduled = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "voxroom",
		Subsystem: "broadcast",
		Name:      "chunks_scheduled_total",
		Help:      "Decoded audio chunks handed to the playback scheduler.",
	})
	remoteMessages = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "voxroom",
		Subsystem: "broadcast",
		Name:      "remote_messages_total",
		Help:      "Messages merged from the room subscription.",
	})
	replays = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "voxroom",
		Subsystem: "broadcast",
		Name:      "replays_total",
		Help:      "Text-to-speech replays scheduled.",
	})
	sessionFailures = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "voxroom",
		Subsystem: "broadcast",
		Name:      "session_failures_total",
		Help:      "Session errors that forced a broadcast stop.",
	})
)

func init() {
	prometheus.MustRegister(broadcastsStarted, turnsFinalized, messagesPersisted,
		chunksScheduled, remoteMessages, replays, sessionFailures)
}
