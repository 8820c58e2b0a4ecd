package websocket

import "github.com/prometheus/client_golang/prometheus"

var (
	wsConnections = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "chat_ws_connections",
			Help: "Current number of active websocket connections.",
		},
	)
	wsFramesDelivered = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "chat_ws_frames_delivered_total",
			Help: "Total websocket frames written to clients.",
		},
	)
	wsSlowConsumers = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "chat_ws_slow_consumers_total",
			Help: "Clients closed because their send buffer was full.",
		},
	)
)

func init() {
	prometheus.MustRegister(wsConnections, wsFramesDelivered, wsSlowConsumers)
}

func incConnections() {
	wsConnections.Inc()
}

func decConnections() {
	wsConnections.Dec()
}

func incDelivered() {
	wsFramesDelivered.Inc()
}

func incSlowConsumers() {
	wsSlowConsumers.Inc()
}
