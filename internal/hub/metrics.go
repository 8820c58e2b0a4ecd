package hub

import "github.com/prometheus/client_golang/prometheus"

var (
	hubRooms = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "chat_hub_rooms",
			Help: "Current number of rooms with at least one member.",
		},
	)
	hubSessions = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "chat_hub_sessions",
			Help: "Current number of connections bound to a room.",
		},
	)
	hubConnected = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "chat_hub_connected",
			Help: "Current number of connections registered with the hub.",
		},
	)
	hubMessages = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "chat_hub_messages_total",
			Help: "Total chat messages persisted and broadcast.",
		},
	)
	hubStoreFailures = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chat_hub_store_failures_total",
			Help: "Persistence calls that failed, by operation.",
		},
		[]string{"op"},
	)
)

func init() {
	prometheus.MustRegister(hubRooms, hubSessions, hubConnected, hubMessages, hubStoreFailures)
}

func setRooms(count int) {
	hubRooms.Set(float64(count))
}

func setSessions(count int) {
	hubSessions.Set(float64(count))
}

func incConnected() {
	hubConnected.Inc()
}

func decConnected() {
	hubConnected.Dec()
}

func incMessages() {
	hubMessages.Inc()
}

func incStoreFailure(op string) {
	hubStoreFailures.WithLabelValues(op).Inc()
}
