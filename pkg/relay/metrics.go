package relay

import "github.com/prometheus/client_golang/prometheus"

var (
	joinsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "voxroom",
		Subsystem: "relay",
		Name:      "joins_total",
		Help:      "Successful room joins.",
	})
	framesRelayed = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "voxroom",
		Subsystem: "relay",
		Name:      "frames_relayed_total",
		Help:      "Frames forwarded to room members.",
	})
	framesLost = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "voxroom",
		Subsystem: "relay",
		Name:      "frames_lost_total",
		Help:      "Frames dropped because a member's outbound queue was full.",
	})
)

func init() {
	prometheus.MustRegister(joinsTotal, framesRelayed, framesLost)
}
