package notify

import "github.com/prometheus/client_golang/prometheus"

// notificationsTotal counts notifications by recipient, channel and result
// (enqueued, rejected, delivered, failed).
var notificationsTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "takedown_notifications_total",
		Help: "Takedown notifications by recipient, channel and result.",
	},
	[]string{"recipient", "channel", "result"},
)

func init() {
	prometheus.MustRegister(notificationsTotal)
}
