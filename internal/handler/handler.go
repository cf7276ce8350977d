// Package handler implements the broker-side MQTT protocol state machine:
// given one event from a session's queue, it decides what (if anything) to
// write back to that connection and whether the connection should close.
package handler

import (
	"sync/atomic"

	"github.com/flowmq/broker/internal/inflight"
	"github.com/flowmq/broker/internal/metrics"
	"github.com/flowmq/broker/internal/mqtt"
	"github.com/flowmq/broker/internal/registry"
	"github.com/flowmq/broker/internal/session"
)

// Result is what processing one event produced: packets to write to this
// connection's socket, in order, and whether the connection should close
// after writing them.
type Result struct {
	Out  []mqtt.Packet
	Exit bool
}

// Handler is the broker-side protocol state machine. One Handler serves
// every connection of a server; it holds no per-connection state. Its only
// own state is a monotonic packet ID counter, shared by all connections,
// for messages it originates (forwarded PUBLISH at QoS >0); everything else
// lives on the session.
type Handler struct {
	Registry *registry.Registry
	Inflight *inflight.Container

	// MaxQoS is the server-advertised ceiling: SUBSCRIBE filters requesting
	// higher are granted at this ceiling rather than failed. Defaults to 2
	// (no cap) via New.
	MaxQoS mqtt.QoS

	nextPacketID uint32
}

// New returns a broker-side Handler sharing reg and inflight with the rest
// of the server. MaxQoS defaults to 2; set h.MaxQoS directly to lower it.
func New(reg *registry.Registry, inflight *inflight.Container) *Handler {
	return &Handler{Registry: reg, Inflight: inflight, MaxQoS: mqtt.QoS2}
}

// allocatePacketID returns the next packet ID in [1, 65535], wrapping
// before it would truncate to the reserved value 0.
func (h *Handler) allocatePacketID() uint16 {
	n := atomic.AddUint32(&h.nextPacketID, 1)
	return uint16(n%65535) + 1
}

// Handle processes one event for sess and returns what to do about it.
func (h *Handler) Handle(sess *session.Session, ev session.Event) Result {
	switch e := ev.(type) {
	case session.InputEvent:
		return h.handleInput(sess, e.Packet)
	case session.BroadcastEvent:
		return h.handleBroadcast(sess, e.Envelope)
	case session.OutputEvent:
		return Result{Out: []mqtt.Packet{e.Packet}}
	case session.ExitEvent:
		return h.handleExit(sess, e.FireWill)
	default:
		return Result{}
	}
}

func (h *Handler) handleInput(sess *session.Session, pkt mqtt.Packet) Result {
	switch p := pkt.(type) {
	case *mqtt.ConnectPacket:
		return h.handleConnect(sess, p)
	case *mqtt.PublishPacket:
		return h.handlePublish(sess, p)
	case *mqtt.PubrecPacket:
		return h.handlePubrec(sess, p)
	case *mqtt.PubrelPacket:
		return h.handlePubrel(sess, p)
	case *mqtt.PubcompPacket:
		h.Inflight.Remove(sess.ClientID(), p.PacketID)
		return Result{}
	case *mqtt.PubackPacket:
		h.Inflight.Remove(sess.ClientID(), p.PacketID)
		return Result{}
	case *mqtt.SubscribePacket:
		return h.handleSubscribe(sess, p)
	case *mqtt.UnsubscribePacket:
		return h.handleUnsubscribe(sess, p)
	case *mqtt.PingreqPacket:
		return Result{Out: []mqtt.Packet{&mqtt.PingrespPacket{}}}
	case *mqtt.DisconnectPacket:
		return h.handleDisconnect(sess)
	default:
		return Result{}
	}
}

func (h *Handler) handleConnect(sess *session.Session, p *mqtt.ConnectPacket) Result {
	sess.SetProtocol(p.ProtocolName, p.Version)
	sess.InitIdentity(p.ClientID, p.CleanSession, p.WillFlag, p.WillQoS, p.WillRetain,
		p.WillTopic, p.WillMessage, p.WillProps)
	metrics.ClientsConnected.Inc()

	ack := &mqtt.ConnackPacket{
		Version:    p.Version,
		ReasonCode: mqtt.ReasonSuccess,
	}
	return Result{Out: []mqtt.Packet{ack}}
}

// handlePublish fans the message out to subscribers as soon as it arrives,
// independent of its QoS, then answers the publisher according to QoS: no
// reply at QoS 0, PUBACK at QoS 1, PUBREC at QoS 2. The in-flight container
// is not touched here: it tracks the forwarded copy on the subscriber's side
// of the handshake (see handleBroadcast), not this publisher-facing ack.
func (h *Handler) handlePublish(sess *session.Session, p *mqtt.PublishPacket) Result {
	h.Registry.Broadcast(p.Topic, registry.Envelope{
		Publisher: registry.ClientID(sess.ClientID()),
		Message:   p,
	})

	switch p.QoS {
	case mqtt.QoS1:
		return Result{Out: []mqtt.Packet{&mqtt.PubackPacket{Version: p.Version, PacketID: p.PacketID, ReasonCode: mqtt.ReasonSuccess}}}
	case mqtt.QoS2:
		return Result{Out: []mqtt.Packet{&mqtt.PubrecPacket{Version: p.Version, PacketID: p.PacketID, ReasonCode: mqtt.ReasonSuccess}}}
	default:
		return Result{}
	}
}

func (h *Handler) handlePubrec(sess *session.Session, p *mqtt.PubrecPacket) Result {
	return Result{Out: []mqtt.Packet{&mqtt.PubrelPacket{Version: p.Version, PacketID: p.PacketID, ReasonCode: mqtt.ReasonSuccess}}}
}

func (h *Handler) handlePubrel(sess *session.Session, p *mqtt.PubrelPacket) Result {
	h.Inflight.Complete(sess.ClientID(), p.PacketID)
	h.Inflight.Remove(sess.ClientID(), p.PacketID)
	return Result{Out: []mqtt.Packet{&mqtt.PubcompPacket{Version: p.Version, PacketID: p.PacketID, ReasonCode: mqtt.ReasonSuccess}}}
}

// handleSubscribe grants every filter at its requested QoS, capped at
// h.MaxQoS, and answers with exactly one SUBACK carrying one code per
// filter, in filter order.
func (h *Handler) handleSubscribe(sess *session.Session, p *mqtt.SubscribePacket) Result {
	codes := make([]byte, len(p.Filters))
	for i, f := range p.Filters {
		h.Registry.Subscribe(f.Topic, registry.ClientID(sess.ClientID()), sess)
		granted := f.QoS
		if granted > h.MaxQoS {
			granted = h.MaxQoS
		}
		codes[i] = byte(granted)
	}
	ack := &mqtt.SubackPacket{Version: p.Version, PacketID: p.PacketID, Codes: codes}
	return Result{Out: []mqtt.Packet{ack}}
}

func (h *Handler) handleUnsubscribe(sess *session.Session, p *mqtt.UnsubscribePacket) Result {
	codes := make([]byte, len(p.Filters))
	for i, f := range p.Filters {
		h.Registry.Unsubscribe(f, registry.ClientID(sess.ClientID()))
		codes[i] = mqtt.ReasonSuccess
	}
	ack := &mqtt.UnsubackPacket{Version: p.Version, PacketID: p.PacketID}
	if p.Version == mqtt.Level5 {
		ack.Codes = codes
	}
	return Result{Out: []mqtt.Packet{ack}}
}

func (h *Handler) handleDisconnect(sess *session.Session) Result {
	h.exitCleanup(sess, false)
	return Result{Exit: true}
}

func (h *Handler) handleExit(sess *session.Session, fireWill bool) Result {
	h.exitCleanup(sess, fireWill)
	return Result{Exit: true}
}

func (h *Handler) exitCleanup(sess *session.Session, fireWill bool) {
	if sess.Connected() {
		metrics.ClientsConnected.Dec()
	}
	if fireWill {
		if will := sess.WillMessage(); will != nil {
			h.Registry.Broadcast(sess.WillTopic(), registry.Envelope{
				Publisher: registry.ClientID(sess.ClientID()),
				Will:      true,
				Message:   will,
			})
		}
	}
	h.Registry.Exit(registry.ClientID(sess.ClientID()))
	if sess.CleanSession() {
		h.Inflight.Exit(sess.ClientID())
	}
}

// handleBroadcast turns a fanned-out message into an outbound PUBLISH for
// this connection, unless this connection is the one that published it.
// The forwarded packet is re-stamped to this session's own protocol version
// and, for QoS >0, given a packet ID from this handler's own sequence,
// since the publisher's packet ID space is private to its own connection.
// At QoS 2, the forwarded copy is recorded in the in-flight container keyed
// by this (receiving) session's client ID and the freshly allocated packet
// ID, before the PUBLISH goes out, so the subscriber's own PUBREC/PUBREL
// handshake on this connection resolves it.
func (h *Handler) handleBroadcast(sess *session.Session, env registry.Envelope) Result {
	if env.Publisher != "" && env.Publisher == registry.ClientID(sess.ClientID()) {
		return Result{}
	}
	msg := env.Message
	out := &mqtt.PublishPacket{
		Version: sess.ProtocolVersion(),
		QoS:     msg.QoS,
		Retain:  msg.Retain,
		Topic:   msg.Topic,
		Payload: msg.Payload,
	}
	if out.QoS != mqtt.QoS0 {
		out.PacketID = h.allocatePacketID()
	}
	if out.QoS == mqtt.QoS2 {
		h.Inflight.Append(sess.ClientID(), &inflight.MessageFrame{
			From:     string(env.Publisher),
			To:       sess.ClientID(),
			PacketID: out.PacketID,
		})
	}
	return Result{Out: []mqtt.Packet{out}}
}
