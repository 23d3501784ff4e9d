// Package metrics exposes the service's Prometheus instrumentation.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/gin-gonic/gin"
)

var (
	MessagesAppended = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "chatcore",
		Name:      "messages_appended_total",
		Help:      "Messages persisted, by room type and kind.",
	}, []string{"room_type", "kind"})

	MessagesDeleted = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "chatcore",
		Name:      "messages_deleted_total",
		Help:      "Messages tombstoned.",
	})

	ReactionsToggled = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "chatcore",
		Name:      "reactions_toggled_total",
		Help:      "Reaction toggles, by resulting state.",
	}, []string{"state"})

	CursorsAdvanced = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "chatcore",
		Name:      "cursors_advanced_total",
		Help:      "Read cursor advances acknowledged.",
	})

	ActiveConnections = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "chatcore",
		Name:      "ws_active_connections",
		Help:      "Live WebSocket connections.",
	})

	BroadcastsSent = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "chatcore",
		Name:      "ws_broadcasts_total",
		Help:      "Frames fanned out to topics, by frame type.",
	}, []string{"type"})

	DroppedClients = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "chatcore",
		Name:      "ws_dropped_clients_total",
		Help:      "Clients disconnected because their send buffer filled.",
	})

	KafkaPublishErrors = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "chatcore",
		Name:      "kafka_publish_errors_total",
		Help:      "Failed event publishes to the broker.",
	})
)

// Handler serves the scrape endpoint.
func Handler() gin.HandlerFunc {
	h := promhttp.Handler()
	return func(c *gin.Context) {
		h.ServeHTTP(c.Writer, c.Request)
	}
}
