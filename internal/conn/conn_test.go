package conn

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/flowmq/broker/internal/handler"
	"github.com/flowmq/broker/internal/inflight"
	"github.com/flowmq/broker/internal/mqtt"
	"github.com/flowmq/broker/internal/registry"
)

func newPipeRunner(t *testing.T) (*Runner, net.Conn) {
	t.Helper()
	serverSide, clientSide := net.Pipe()
	reg := registry.New()
	inf := inflight.New()
	h := handler.New(reg, inf)
	r := New(serverSide, h, 16, 0, 0)
	return r, clientSide
}

func readPacket(t *testing.T, conn net.Conn, version byte) mqtt.Packet {
	t.Helper()
	buf := make([]byte, 1024)
	n, err := conn.Read(buf)
	require.NoError(t, err)
	pkt, _, err := mqtt.Decode(buf[:n], version)
	require.NoError(t, err)
	return pkt
}

func TestConnectYieldsConnack(t *testing.T) {
	r, client := newPipeRunner(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- r.Run(ctx) }()

	_, err := client.Write(mqtt.Encode(&mqtt.ConnectPacket{
		Version: mqtt.Level311, ProtocolName: "MQTT", ClientID: "alice", CleanSession: true,
	}))
	require.NoError(t, err)

	pkt := readPacket(t, client, mqtt.Level311)
	ack, ok := pkt.(*mqtt.ConnackPacket)
	require.True(t, ok)
	require.Equal(t, mqtt.ReasonSuccess, ack.ReasonCode)

	_, err = client.Write(mqtt.Encode(&mqtt.DisconnectPacket{Version: mqtt.Level311}))
	require.NoError(t, err)

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after DISCONNECT")
	}
}

func TestPublishQoS1YieldsPuback(t *testing.T) {
	r, client := newPipeRunner(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go r.Run(ctx)

	client.Write(mqtt.Encode(&mqtt.ConnectPacket{Version: mqtt.Level311, ProtocolName: "MQTT", ClientID: "alice"}))
	readPacket(t, client, mqtt.Level311) // CONNACK

	client.Write(mqtt.Encode(&mqtt.PublishPacket{
		Version: mqtt.Level311, QoS: mqtt.QoS1, PacketID: 7, Topic: "x", Payload: []byte("hi"),
	}))

	pkt := readPacket(t, client, mqtt.Level311)
	puback, ok := pkt.(*mqtt.PubackPacket)
	require.True(t, ok)
	require.Equal(t, uint16(7), puback.PacketID)
}

func TestPingreqYieldsPingresp(t *testing.T) {
	r, client := newPipeRunner(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go r.Run(ctx)

	client.Write(mqtt.Encode(&mqtt.ConnectPacket{Version: mqtt.Level311, ProtocolName: "MQTT", ClientID: "alice"}))
	readPacket(t, client, mqtt.Level311) // CONNACK

	client.Write(mqtt.Encode(&mqtt.PingreqPacket{}))
	pkt := readPacket(t, client, mqtt.Level311)
	_, ok := pkt.(*mqtt.PingrespPacket)
	require.True(t, ok)
}
