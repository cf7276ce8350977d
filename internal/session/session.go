// Package session holds the per-connection mutable state a handler needs to
// answer one MQTT connection: negotiated protocol version, identity, will
// configuration, and the event queue that ties the connection's reader,
// broadcast fan-in, and writer together.
package session

import (
	"context"
	"sync"

	"github.com/flowmq/broker/internal/mqtt"
	"github.com/flowmq/broker/internal/registry"
)

// Event is the sum type flowing through a session's queue. The handler's
// event loop type-switches on it.
type Event interface {
	isEvent()
}

// InputEvent carries one packet decoded off this connection's own socket.
type InputEvent struct {
	Packet mqtt.Packet
}

func (InputEvent) isEvent() {}

// BroadcastEvent carries a message fanned out from the subscription
// registry, published by some other connection (or this session's own
// will, on a later ungraceful exit elsewhere).
type BroadcastEvent struct {
	Envelope registry.Envelope
}

func (BroadcastEvent) isEvent() {}

// OutputEvent carries a packet that should be written to this connection's
// socket as-is, bypassing further protocol handling.
type OutputEvent struct {
	Packet mqtt.Packet
}

func (OutputEvent) isEvent() {}

// ExitEvent requests the connection close. FireWill controls whether the
// registered will message (if any) should be published first; a graceful
// DISCONNECT sets it false, a dropped socket sets it true.
type ExitEvent struct {
	FireWill bool
}

func (ExitEvent) isEvent() {}

// Session is the per-connection state shared between the connection runner
// (internal/conn) and the handler (internal/handler). Its mutable fields
// are guarded by mu since the registry may call Deliver concurrently with
// the handler mutating identity during CONNECT processing.
type Session struct {
	queue chan Event

	mu              sync.Mutex
	clientID        string
	protocolName    string
	protocolVersion byte
	cleanSession    bool
	connected       bool

	willFlag    bool
	willQoS     mqtt.QoS
	willRetain  bool
	willTopic   string
	willMessage []byte
	willProps   mqtt.Properties

	closeOnce sync.Once
	done      chan struct{}
}

// New returns a Session that reads and writes through queue. queue is
// owned by the connection runner, which sizes and drains it.
func New(queue chan Event) *Session {
	return &Session{queue: queue, done: make(chan struct{})}
}

// Queue returns the session's own event channel. The connection runner
// reads from it to find work; tests and other callers may also read from
// it directly to observe what a handler enqueued.
func (s *Session) Queue() chan Event {
	return s.queue
}

// ClientID returns the identity established by CONNECT, or "" before then.
func (s *Session) ClientID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.clientID
}

// SetProtocol records the negotiated protocol name and level, read off the
// CONNECT packet's variable header.
func (s *Session) SetProtocol(name string, version byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.protocolName = name
	s.protocolVersion = version
}

// ProtocolVersion returns the negotiated level (mqtt.Level311 or
// mqtt.Level5), or 0 before CONNECT is processed.
func (s *Session) ProtocolVersion() byte {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.protocolVersion
}

// InitIdentity records the identity and will configuration carried by a
// CONNECT packet. Called once, by the handler, after a successful CONNECT.
func (s *Session) InitIdentity(clientID string, cleanSession, willFlag bool, willQoS mqtt.QoS, willRetain bool, willTopic string, willMessage []byte, willProps mqtt.Properties) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.clientID = clientID
	s.cleanSession = cleanSession
	s.connected = true
	s.willFlag = willFlag
	s.willQoS = willQoS
	s.willRetain = willRetain
	s.willTopic = willTopic
	s.willMessage = willMessage
	s.willProps = willProps
}

// Connected reports whether InitIdentity has run for this session, i.e.
// whether a CONNECT was ever successfully processed.
func (s *Session) Connected() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.connected
}

// CleanSession reports the clean-session flag from CONNECT.
func (s *Session) CleanSession() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cleanSession
}

// HasWill reports whether this session registered a last-will message.
func (s *Session) HasWill() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.willFlag
}

// WillTopic returns the topic the will message publishes to.
func (s *Session) WillTopic() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.willTopic
}

// WillMessage builds the PUBLISH packet representing this session's
// registered last will, or nil if none was registered.
func (s *Session) WillMessage() *mqtt.PublishPacket {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.willFlag {
		return nil
	}
	return &mqtt.PublishPacket{
		Version: s.protocolVersion,
		QoS:     s.willQoS,
		Retain:  s.willRetain,
		Topic:   s.willTopic,
		Payload: s.willMessage,
		Props:   s.willProps,
	}
}

// Send enqueues ev onto this session's own queue, blocking until there is
// room or ctx is done.
func (s *Session) Send(ctx context.Context, ev Event) error {
	select {
	case s.queue <- ev:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Deliver implements registry.Sink. It blocks until there is room on this
// session's queue: a slow subscriber must back-pressure the broadcasting
// call rather than lose the message, since a dropped QoS 1/2 message would
// violate the delivery guarantee the handshake promises the publisher.
// It only gives up once the session itself has exited (Close), so a dead
// connection cannot wedge the registry lock Broadcast holds while calling
// this.
func (s *Session) Deliver(env registry.Envelope) {
	select {
	case s.queue <- BroadcastEvent{Envelope: env}:
	case <-s.done:
	}
}

// Close marks the session as exited, releasing any Deliver call currently
// blocked waiting for queue space. Called once by the connection runner as
// it tears down.
func (s *Session) Close() {
	s.closeOnce.Do(func() { close(s.done) })
}
