// Package metrics holds the broker's Prometheus collectors. Every other
// package that wants to observe something imports this package and updates
// the relevant collector directly, the same promauto package-level-var
// pattern used throughout the reference implementation.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// ClientsConnected tracks the number of currently connected clients.
	ClientsConnected = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "mqtt_clients_connected",
		Help: "Number of currently connected MQTT clients",
	})

	// ConnectionsTotal counts accepted TCP connections.
	ConnectionsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "mqtt_connections_total",
		Help: "Total number of accepted connections",
	})

	// PacketsReceived counts decoded inbound packets by type.
	PacketsReceived = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mqtt_packets_received_total",
			Help: "Total number of MQTT packets received by type",
		},
		[]string{"type"},
	)

	// PacketsSent counts encoded outbound packets by type.
	PacketsSent = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mqtt_packets_sent_total",
			Help: "Total number of MQTT packets sent by type",
		},
		[]string{"type"},
	)

	// BytesReceived tracks raw bytes read off client connections.
	BytesReceived = promauto.NewCounter(prometheus.CounterOpts{
		Name: "mqtt_bytes_received_total",
		Help: "Total bytes received from MQTT clients",
	})

	// BytesSent tracks raw bytes written to client connections.
	BytesSent = promauto.NewCounter(prometheus.CounterOpts{
		Name: "mqtt_bytes_sent_total",
		Help: "Total bytes sent to MQTT clients",
	})

	// SubscriptionsActive tracks the registry's total subscriber count
	// across all topics.
	SubscriptionsActive = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "mqtt_subscriptions_active",
		Help: "Number of active subscriptions across all topics",
	})

	// QoSInflight tracks in-flight messages awaiting the remainder of their
	// handshake, by QoS level. Only QoS 2 frames are tracked (label "2").
	QoSInflight = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "mqtt_qos_inflight",
			Help: "Number of in-flight QoS 2 messages",
		},
		[]string{"qos"},
	)

	// DecodeErrors counts malformed-packet and unknown-type decode
	// failures by kind.
	DecodeErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mqtt_decode_errors_total",
			Help: "Total number of packet decode errors by kind",
		},
		[]string{"kind"},
	)
)

// PacketType returns the label used for a decoded/encoded packet's metric,
// derived from its Go type name without the package qualifier or "Packet"
// suffix (e.g. *mqtt.PublishPacket -> "publish").
func PacketType(v any) string {
	return packetTypeName(v)
}
