// Package metrics provides Prometheus instrumentation for the chat core.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Connections tracks the current number of live websocket connections.
	Connections = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "marketchat_ws_connections",
		Help: "Current number of live websocket connections",
	})

	// MessagesTotal counts persisted messages by kind.
	MessagesTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "marketchat_messages_total",
		Help: "Total number of persisted chat messages",
	}, []string{"kind"})

	RoomsCreated = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "marketchat_rooms_created_total",
		Help: "Total number of chat rooms created",
	})

	// PublishErrors counts failed broker publishes, labeled "room" or "user".
	PublishErrors = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "marketchat_publish_errors_total",
		Help: "Total number of failed pub/sub publishes",
	}, []string{"topic"})

	// FramesDropped counts frames not delivered because a client buffer was full.
	FramesDropped = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "marketchat_frames_dropped_total",
		Help: "Frames dropped for slow websocket consumers",
	})

	DispatchDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "marketchat_dispatch_seconds",
		Help:    "Time spent handling one inbound websocket frame",
		Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1},
	}, []string{"type"})
)

func init() {
	prometheus.MustRegister(
		Connections,
		MessagesTotal,
		RoomsCreated,
		PublishErrors,
		FramesDropped,
		DispatchDuration,
	)
}

// Handler returns the Prometheus metrics HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}
