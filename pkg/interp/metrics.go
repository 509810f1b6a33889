package interp

import "github.com/prometheus/client_golang/prometheus"

var (
	sessionsOpened = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "voxroom",
		Subsystem: "session",
		Name:      "opens_total",
		Help:      "Backend streaming sessions successfully opened.",
	})
	restarts = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "voxroom",
		Subsystem: "session",
		Name:      "restarts_total",
		Help:      "Session restarts from language or context changes.",
	})
	framesSent = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "voxroom",
		Subsystem: "session",
		Name:      "frames_sent_total",
		Help:      "Microphone frames delivered to the backend session.",
	})
	framesDropped = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "voxroom",
		Subsystem: "session",
		Name:      "frames_dropped_total",
		Help:      "Microphone frames dropped while no session was open or a send failed.",
	})
)

func init() {
	prometheus.MustRegister(sessionsOpened, restarts, framesSent, framesDropped)
}
