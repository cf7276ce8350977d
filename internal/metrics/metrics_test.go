package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"

	"github.com/flowmq/broker/internal/mqtt"
)

func TestPacketTypeNames(t *testing.T) {
	require.Equal(t, "connect", PacketType(&mqtt.ConnectPacket{}))
	require.Equal(t, "publish", PacketType(&mqtt.PublishPacket{}))
	require.Equal(t, "suback", PacketType(&mqtt.SubackPacket{}))
	require.Equal(t, "unknown", PacketType(struct{}{}))
}

func TestPacketsReceivedIncrements(t *testing.T) {
	before := testutil.ToFloat64(PacketsReceived.WithLabelValues("publish"))
	PacketsReceived.WithLabelValues("publish").Inc()
	after := testutil.ToFloat64(PacketsReceived.WithLabelValues("publish"))
	require.Equal(t, before+1, after)
}
