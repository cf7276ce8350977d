// Package registry tracks which clients are subscribed to which topics and
// fans published messages out to their sinks.
//
// Topic matching is literal-string only: no wildcard filters. A client
// subscribed to "a/b" never receives a message published to "a/+" or "a/#"
// because no such filter syntax exists here.
package registry

import (
	"sync"

	"github.com/flowmq/broker/internal/metrics"
	"github.com/flowmq/broker/internal/mqtt"
)

// ClientID identifies a connected session within the registry.
type ClientID string

// Envelope is one message ready to fan out to subscribers of a topic.
// Publisher is empty for broker-originated deliveries such as a will
// message fired on an ungraceful disconnect.
type Envelope struct {
	Publisher ClientID
	Will      bool
	Message   *mqtt.PublishPacket
}

// Sink receives envelopes for topics a client has subscribed to. Delivery
// order across a single sink is the order Broadcast was called in; whether
// Deliver drops or blocks on a full queue is the Sink's policy, not the
// registry's (internal/session's Session blocks). Deliver must not block on
// the registry's own lock (e.g. by subscribing or unsubscribing synchronously)
// since Broadcast holds it for the duration of the fan-out.
type Sink interface {
	Deliver(Envelope)
}

type topic struct {
	name  string
	sinks map[ClientID]Sink
}

func newTopic(name string) *topic {
	return &topic{name: name, sinks: make(map[ClientID]Sink)}
}

func (t *topic) subscribe(id ClientID, sink Sink) {
	t.sinks[id] = sink
}

func (t *topic) unsubscribe(id ClientID) {
	delete(t.sinks, id)
}

func (t *topic) contains(id ClientID) bool {
	_, ok := t.sinks[id]
	return ok
}

func (t *topic) clientIDs() []ClientID {
	ids := make([]ClientID, 0, len(t.sinks))
	for id := range t.sinks {
		ids = append(ids, id)
	}
	return ids
}

func (t *topic) broadcast(env Envelope) {
	for _, sink := range t.sinks {
		sink.Deliver(env)
	}
}

// Registry is the single-lock-serialized topic -> subscriber map.
type Registry struct {
	mu     sync.Mutex
	topics map[string]*topic
}

// New returns an empty Registry.
func New() *Registry {
	return &Registry{topics: make(map[string]*topic)}
}

// Contains reports whether a topic entry exists for topicName. An entry is
// created by the first Subscribe and is kept after its last subscriber
// leaves, so Contains can be true for a topic with no subscribers.
func (r *Registry) Contains(topicName string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.topics[topicName]
	return ok
}

// Len returns the number of topic entries, including entries whose
// subscribers have all left.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.topics)
}

// Topics returns the current topic names. Order is unspecified.
func (r *Registry) Topics() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	names := make([]string, 0, len(r.topics))
	for name := range r.topics {
		names = append(names, name)
	}
	return names
}

// Subscribe adds id as a subscriber of topicName, creating the topic if this
// is its first subscriber. Re-subscribing an id already present replaces its
// sink (e.g. after a reconnect with the same client ID).
func (r *Registry) Subscribe(topicName string, id ClientID, sink Sink) {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.topics[topicName]
	if !ok {
		t = newTopic(topicName)
		r.topics[topicName] = t
	}
	t.subscribe(id, sink)
	metrics.SubscriptionsActive.Set(float64(r.totalSinksLocked()))
}

// Unsubscribe removes id from topicName. A no-op if either is absent.
func (r *Registry) Unsubscribe(topicName string, id ClientID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if t, ok := r.topics[topicName]; ok {
		t.unsubscribe(id)
		metrics.SubscriptionsActive.Set(float64(r.totalSinksLocked()))
	}
}

// totalSinksLocked sums the subscriber count across all topics. Callers
// must hold r.mu.
func (r *Registry) totalSinksLocked() int {
	total := 0
	for _, t := range r.topics {
		total += len(t.sinks)
	}
	return total
}

// IsSubscribed reports whether id is a subscriber of topicName.
func (r *Registry) IsSubscribed(topicName string, id ClientID) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.topics[topicName]
	return ok && t.contains(id)
}

// Clients returns the subscriber IDs of topicName. Empty if the topic does
// not exist.
func (r *Registry) Clients(topicName string) []ClientID {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.topics[topicName]
	if !ok {
		return nil
	}
	return t.clientIDs()
}

// ClientCount returns the number of subscribers of topicName.
func (r *Registry) ClientCount(topicName string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.topics[topicName]
	if !ok {
		return 0
	}
	return len(t.sinks)
}

// Broadcast fans env out to every subscriber of topicName. A no-op if the
// topic has no subscribers.
func (r *Registry) Broadcast(topicName string, env Envelope) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if t, ok := r.topics[topicName]; ok {
		t.broadcast(env)
	}
}

// Exit removes id from every topic it subscribes to, used when a client
// disconnects without sending individual UNSUBSCRIBE packets.
func (r *Registry) Exit(id ClientID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, t := range r.topics {
		t.unsubscribe(id)
	}
	metrics.SubscriptionsActive.Set(float64(r.totalSinksLocked()))
}
