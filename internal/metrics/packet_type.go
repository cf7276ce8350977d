package metrics

import "github.com/flowmq/broker/internal/mqtt"

// packetTypeName maps a decoded packet to the label used by the
// packets_received/packets_sent counters.
func packetTypeName(v any) string {
	switch v.(type) {
	case *mqtt.ConnectPacket:
		return "connect"
	case *mqtt.ConnackPacket:
		return "connack"
	case *mqtt.PublishPacket:
		return "publish"
	case *mqtt.PubackPacket:
		return "puback"
	case *mqtt.PubrecPacket:
		return "pubrec"
	case *mqtt.PubrelPacket:
		return "pubrel"
	case *mqtt.PubcompPacket:
		return "pubcomp"
	case *mqtt.SubscribePacket:
		return "subscribe"
	case *mqtt.SubackPacket:
		return "suback"
	case *mqtt.UnsubscribePacket:
		return "unsubscribe"
	case *mqtt.UnsubackPacket:
		return "unsuback"
	case *mqtt.PingreqPacket:
		return "pingreq"
	case *mqtt.PingrespPacket:
		return "pingresp"
	case *mqtt.DisconnectPacket:
		return "disconnect"
	case *mqtt.AuthPacket:
		return "auth"
	default:
		return "unknown"
	}
}
