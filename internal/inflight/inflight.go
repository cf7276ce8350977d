// Package inflight tracks QoS 2 messages mid-handshake: sent (or received)
// but not yet resolved by the PUBREC/PUBREL/PUBCOMP exchange.
package inflight

import (
	"sync"

	"github.com/flowmq/broker/internal/metrics"
)

// MessageFrame is one QoS 2 message awaiting handshake completion.
type MessageFrame struct {
	From      string
	To        string
	PacketID  uint16
	Bytes     []byte
	Completed bool
}

// Complete marks the frame as resolved, without removing it from its
// container; callers decide when a completed frame is safe to Remove.
func (f *MessageFrame) Complete() {
	f.Completed = true
}

type clientFrames struct {
	frames map[uint16]*MessageFrame
}

func newClientFrames() *clientFrames {
	return &clientFrames{frames: make(map[uint16]*MessageFrame)}
}

func (c *clientFrames) append(frame *MessageFrame) {
	c.frames[frame.PacketID] = frame
}

func (c *clientFrames) remove(packetID uint16) *MessageFrame {
	frame, ok := c.frames[packetID]
	if !ok {
		return nil
	}
	delete(c.frames, packetID)
	return frame
}

func (c *clientFrames) complete(packetID uint16) {
	if frame, ok := c.frames[packetID]; ok {
		frame.Complete()
	}
}

func (c *clientFrames) get(packetID uint16) (*MessageFrame, bool) {
	frame, ok := c.frames[packetID]
	return frame, ok
}

// Container is the single-lock-serialized per-client map of in-flight QoS 2
// frames, keyed by client ID then packet ID.
type Container struct {
	mu      sync.Mutex
	clients map[string]*clientFrames
}

// New returns an empty Container.
func New() *Container {
	return &Container{clients: make(map[string]*clientFrames)}
}

// Append stores frame under clientID, keyed by its PacketID. Appending a
// frame with a PacketID already in flight for that client replaces it
// (matches a retransmitted PUBLISH with DUP set).
func (c *Container) Append(clientID string, frame *MessageFrame) {
	c.mu.Lock()
	defer c.mu.Unlock()
	cf, ok := c.clients[clientID]
	if !ok {
		cf = newClientFrames()
		c.clients[clientID] = cf
	}
	cf.append(frame)
	metrics.QoSInflight.WithLabelValues("2").Set(float64(c.totalLocked()))
}

// totalLocked sums the in-flight frame count across all clients. Callers
// must hold c.mu.
func (c *Container) totalLocked() int {
	total := 0
	for _, cf := range c.clients {
		total += len(cf.frames)
	}
	return total
}

// Complete marks the frame for clientID/packetID as resolved. A no-op if no
// such frame is in flight.
func (c *Container) Complete(clientID string, packetID uint16) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if cf, ok := c.clients[clientID]; ok {
		cf.complete(packetID)
	}
}

// Get returns the in-flight frame for clientID/packetID, if any.
func (c *Container) Get(clientID string, packetID uint16) (*MessageFrame, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	cf, ok := c.clients[clientID]
	if !ok {
		return nil, false
	}
	return cf.get(packetID)
}

// Remove drops the frame for clientID/packetID, returning it if present.
// Called once a handshake fully resolves (PUBCOMP sent or received) so the
// container does not grow without bound.
func (c *Container) Remove(clientID string, packetID uint16) *MessageFrame {
	c.mu.Lock()
	defer c.mu.Unlock()
	cf, ok := c.clients[clientID]
	if !ok {
		return nil
	}
	frame := cf.remove(packetID)
	metrics.QoSInflight.WithLabelValues("2").Set(float64(c.totalLocked()))
	return frame
}

// Exit drops every in-flight frame belonging to clientID, used when a
// client disconnects.
func (c *Container) Exit(clientID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.clients, clientID)
	metrics.QoSInflight.WithLabelValues("2").Set(float64(c.totalLocked()))
}
