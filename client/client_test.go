package client_test

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/flowmq/broker/client"
	"github.com/flowmq/broker/internal/conn"
	"github.com/flowmq/broker/internal/handler"
	"github.com/flowmq/broker/internal/inflight"
	"github.com/flowmq/broker/internal/mqtt"
	"github.com/flowmq/broker/internal/registry"
)

// startTestBroker runs a minimal accept loop wired straight to the internal
// handler/registry, enough to exercise the client library's handshakes
// without needing cmd/server's full configuration and metrics surface.
func startTestBroker(t *testing.T) (addr string, stop func()) {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	reg := registry.New()
	inf := inflight.New()
	h := handler.New(reg, inf)

	go func() {
		for {
			c, err := ln.Accept()
			if err != nil {
				return
			}
			go serveConn(c, h)
		}
	}()

	return ln.Addr().String(), func() { ln.Close() }
}

func serveConn(c net.Conn, h *handler.Handler) {
	runner := conn.New(c, h, 64, 0, 0)
	_ = runner.Run(context.Background())
	c.Close()
}

func TestClientConnectPublishSubscribe(t *testing.T) {
	addr, stop := startTestBroker(t)
	defer stop()

	var received []*mqtt.PublishPacket
	recvCh := make(chan struct{}, 4)

	sub, err := client.Dial(context.Background(), "tcp", addr, client.Options{
		ClientID:     "subscriber",
		CleanSession: true,
		OnPacket: func(pkt mqtt.Packet) {
			if p, ok := pkt.(*mqtt.PublishPacket); ok {
				received = append(received, p)
				recvCh <- struct{}{}
			}
		},
	})
	require.NoError(t, err)
	defer sub.Disconnect(context.Background())

	code, err := sub.Subscribe(context.Background(), "rooms/1", mqtt.QoS1)
	require.NoError(t, err)
	require.Equal(t, byte(mqtt.QoS1), code)

	pub, err := client.Dial(context.Background(), "tcp", addr, client.Options{
		ClientID:     "publisher",
		CleanSession: true,
	})
	require.NoError(t, err)
	defer pub.Disconnect(context.Background())

	require.NoError(t, pub.Publish(context.Background(), "rooms/1", []byte("hello"), mqtt.QoS1, false, false))

	select {
	case <-recvCh:
	case <-time.After(2 * time.Second):
		t.Fatal("subscriber never received the published message")
	}

	require.Len(t, received, 1)
	require.Equal(t, "rooms/1", received[0].Topic)
	require.Equal(t, []byte("hello"), received[0].Payload)
}

func TestClientUnsubscribeStopsDelivery(t *testing.T) {
	addr, stop := startTestBroker(t)
	defer stop()

	recvCh := make(chan struct{}, 4)
	sub, err := client.Dial(context.Background(), "tcp", addr, client.Options{
		ClientID:     "subscriber",
		CleanSession: true,
		OnPacket: func(mqtt.Packet) {
			recvCh <- struct{}{}
		},
	})
	require.NoError(t, err)
	defer sub.Disconnect(context.Background())

	_, err = sub.Subscribe(context.Background(), "x", mqtt.QoS0)
	require.NoError(t, err)
	require.NoError(t, sub.Unsubscribe(context.Background(), "x"))

	pub, err := client.Dial(context.Background(), "tcp", addr, client.Options{ClientID: "publisher", CleanSession: true})
	require.NoError(t, err)
	defer pub.Disconnect(context.Background())
	require.NoError(t, pub.Publish(context.Background(), "x", []byte("late"), mqtt.QoS0, false, false))

	select {
	case <-recvCh:
		t.Fatal("received a message after unsubscribing")
	case <-time.After(300 * time.Millisecond):
	}
}

func TestConnectRefusedByBadBroker(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()

	go func() {
		c, err := ln.Accept()
		if err != nil {
			return
		}
		defer c.Close()
		c.Close() // close immediately, never answer CONNECT
	}()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	_, err = client.Dial(ctx, "tcp", ln.Addr().String(), client.Options{ClientID: "x", ConnectTimeout: time.Second})
	require.Error(t, err)
}
