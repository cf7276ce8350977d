package handler

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/flowmq/broker/internal/inflight"
	"github.com/flowmq/broker/internal/mqtt"
	"github.com/flowmq/broker/internal/registry"
	"github.com/flowmq/broker/internal/session"
)

func newTestHandler() (*Handler, *registry.Registry, *inflight.Container) {
	reg := registry.New()
	inf := inflight.New()
	return New(reg, inf), reg, inf
}

func newTestSession(queueCap int) *session.Session {
	return session.New(make(chan session.Event, queueCap))
}

func TestHandleConnectRepliesConnack(t *testing.T) {
	h, _, _ := newTestHandler()
	sess := newTestSession(8)

	res := h.Handle(sess, session.InputEvent{Packet: &mqtt.ConnectPacket{
		Version: mqtt.Level311, ClientID: "alice",
	}})

	require.False(t, res.Exit)
	require.Len(t, res.Out, 1)
	ack, ok := res.Out[0].(*mqtt.ConnackPacket)
	require.True(t, ok)
	require.Equal(t, mqtt.ReasonSuccess, ack.ReasonCode)
	require.Equal(t, "alice", sess.ClientID())
}

func TestHandleSubscribeGrantsAllFiltersInOneSuback(t *testing.T) {
	h, reg, _ := newTestHandler()
	sess := newTestSession(8)
	sess.InitIdentity("alice", true, false, 0, false, "", nil, nil)

	res := h.Handle(sess, session.InputEvent{Packet: &mqtt.SubscribePacket{
		Version:  mqtt.Level311,
		PacketID: 5,
		Filters: []mqtt.Subscription{
			{Topic: "a", QoS: mqtt.QoS1},
			{Topic: "b", QoS: mqtt.QoS2},
		},
	}})

	require.Len(t, res.Out, 1)
	suback, ok := res.Out[0].(*mqtt.SubackPacket)
	require.True(t, ok)
	require.Equal(t, uint16(5), suback.PacketID)
	require.Equal(t, []byte{byte(mqtt.QoS1), byte(mqtt.QoS2)}, suback.Codes)
	require.True(t, reg.IsSubscribed("a", "alice"))
	require.True(t, reg.IsSubscribed("b", "alice"))
}

func TestHandleSubscribeCapsGrantedQoSToMaxQoS(t *testing.T) {
	h, _, _ := newTestHandler()
	h.MaxQoS = mqtt.QoS1
	sess := newTestSession(8)
	sess.InitIdentity("alice", true, false, 0, false, "", nil, nil)

	res := h.Handle(sess, session.InputEvent{Packet: &mqtt.SubscribePacket{
		Version:  mqtt.Level311,
		PacketID: 6,
		Filters:  []mqtt.Subscription{{Topic: "a", QoS: mqtt.QoS2}},
	}})

	suback := res.Out[0].(*mqtt.SubackPacket)
	require.Equal(t, []byte{byte(mqtt.QoS1)}, suback.Codes)
}

func TestHandlePublishQoS0FansOutWithNoAck(t *testing.T) {
	h, reg, _ := newTestHandler()
	publisher := newTestSession(8)
	publisher.InitIdentity("alice", true, false, 0, false, "", nil, nil)

	subscriber := newTestSession(8)
	subscriber.InitIdentity("bob", true, false, 0, false, "", nil, nil)
	reg.Subscribe("x", "bob", subscriber)

	res := h.Handle(publisher, session.InputEvent{Packet: &mqtt.PublishPacket{
		Version: mqtt.Level311, QoS: mqtt.QoS0, Topic: "x", Payload: []byte("hi"),
	}})

	require.Empty(t, res.Out)

	ev := <-subscriber.Queue()
	bc, ok := ev.(session.BroadcastEvent)
	require.True(t, ok)
	require.Equal(t, registry.ClientID("alice"), bc.Envelope.Publisher)
}

func TestHandlePublishQoS1RepliesPuback(t *testing.T) {
	h, _, _ := newTestHandler()
	sess := newTestSession(8)
	sess.InitIdentity("alice", true, false, 0, false, "", nil, nil)

	res := h.Handle(sess, session.InputEvent{Packet: &mqtt.PublishPacket{
		Version: mqtt.Level311, QoS: mqtt.QoS1, PacketID: 10, Topic: "x",
	}})

	require.Len(t, res.Out, 1)
	puback, ok := res.Out[0].(*mqtt.PubackPacket)
	require.True(t, ok)
	require.Equal(t, uint16(10), puback.PacketID)
}

func TestHandlePublishQoS2RepliesPubrecWithoutTrackingThePublisher(t *testing.T) {
	h, _, inf := newTestHandler()
	sess := newTestSession(8)
	sess.InitIdentity("alice", true, false, 0, false, "", nil, nil)

	res := h.Handle(sess, session.InputEvent{Packet: &mqtt.PublishPacket{
		Version: mqtt.Level311, QoS: mqtt.QoS2, PacketID: 11, Topic: "x",
	}})

	require.Len(t, res.Out, 1)
	_, ok := res.Out[0].(*mqtt.PubrecPacket)
	require.True(t, ok)

	// The in-flight container tracks the forwarded copy on the subscriber's
	// side (see TestHandleBroadcastQoS2AppendsInflightForSubscriberAndPubrelCompletesIt),
	// not the publisher's own PUBLISH/PUBREC exchange.
	_, found := inf.Get("alice", 11)
	require.False(t, found)
}

func TestHandleBroadcastQoS2AppendsInflightForSubscriberAndPubrelCompletesIt(t *testing.T) {
	h, _, inf := newTestHandler()
	subscriber := newTestSession(8)
	subscriber.InitIdentity("bob", true, false, 0, false, "", nil, nil)

	res := h.Handle(subscriber, session.BroadcastEvent{Envelope: registry.Envelope{
		Publisher: "alice",
		Message:   &mqtt.PublishPacket{Version: mqtt.Level311, QoS: mqtt.QoS2, Topic: "x", Payload: []byte("hi")},
	}})

	require.Len(t, res.Out, 1)
	pub, ok := res.Out[0].(*mqtt.PublishPacket)
	require.True(t, ok)
	require.NotZero(t, pub.PacketID)

	frame, found := inf.Get("bob", pub.PacketID)
	require.True(t, found)
	require.Equal(t, "alice", frame.From)
	require.Equal(t, "bob", frame.To)

	res = h.Handle(subscriber, session.InputEvent{Packet: &mqtt.PubrelPacket{
		Version: mqtt.Level311, PacketID: pub.PacketID,
	}})

	require.Len(t, res.Out, 1)
	comp, ok := res.Out[0].(*mqtt.PubcompPacket)
	require.True(t, ok)
	require.Equal(t, pub.PacketID, comp.PacketID)

	_, found = inf.Get("bob", pub.PacketID)
	require.False(t, found)
}

func TestHandleBroadcastSkipsOwnPublish(t *testing.T) {
	h, _, _ := newTestHandler()
	sess := newTestSession(8)
	sess.InitIdentity("alice", true, false, 0, false, "", nil, nil)

	res := h.Handle(sess, session.BroadcastEvent{Envelope: registry.Envelope{
		Publisher: "alice",
		Message:   &mqtt.PublishPacket{Topic: "x"},
	}})
	require.Empty(t, res.Out)
}

func TestHandleBroadcastForwardsOthersPublishWithOwnVersionAndFreshPacketID(t *testing.T) {
	h, _, _ := newTestHandler()
	sess := newTestSession(8)
	sess.SetProtocol("MQTT", mqtt.Level5)
	sess.InitIdentity("bob", true, false, 0, false, "", nil, nil)

	res := h.Handle(sess, session.BroadcastEvent{Envelope: registry.Envelope{
		Publisher: "alice",
		Message:   &mqtt.PublishPacket{Version: mqtt.Level311, QoS: mqtt.QoS1, Topic: "x", Payload: []byte("hi")},
	}})

	require.Len(t, res.Out, 1)
	pub, ok := res.Out[0].(*mqtt.PublishPacket)
	require.True(t, ok)
	require.Equal(t, mqtt.Level5, pub.Version)
	require.Equal(t, "x", pub.Topic)
	require.NotZero(t, pub.PacketID)
}

func TestDisconnectExitsAndUnsubscribesEverywhere(t *testing.T) {
	h, reg, _ := newTestHandler()
	sess := newTestSession(8)
	sess.InitIdentity("alice", true, false, 0, false, "", nil, nil)
	reg.Subscribe("x", "alice", sess)

	res := h.Handle(sess, session.InputEvent{Packet: &mqtt.DisconnectPacket{Version: mqtt.Level311}})

	require.True(t, res.Exit)
	require.False(t, reg.IsSubscribed("x", "alice"))
}

func TestUngracefulExitFiresWill(t *testing.T) {
	h, reg, _ := newTestHandler()
	publisher := newTestSession(8)
	publisher.InitIdentity("alice", true, true, mqtt.QoS1, false, "lwt/alice", []byte("bye"), nil)

	subscriber := newTestSession(8)
	reg.Subscribe("lwt/alice", "bob", subscriber)

	h.Handle(publisher, session.ExitEvent{FireWill: true})

	ev := <-subscriber.Queue()
	bc, ok := ev.(session.BroadcastEvent)
	require.True(t, ok)
	require.True(t, bc.Envelope.Will)
	require.Equal(t, "lwt/alice", bc.Envelope.Message.Topic)
}
