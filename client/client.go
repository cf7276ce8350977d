// Package client is a small MQTT client library: it dials a broker, drives
// the CONNECT/PUBLISH/SUBSCRIBE handshakes, and hands inbound PUBLISH
// packets to a caller-supplied callback.
package client

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/flowmq/broker/internal/mqtt"
)

// Callback receives inbound PUBLISH messages delivered for a subscription
// (a QoS 2 message once its PUBREL arrives). No other packet type is passed
// to it: acknowledgements, PINGRESP and DISCONNECT are handled internally.
type Callback func(pkt mqtt.Packet)

// Options configures a Dial. ProtocolVersion selects the wire format
// (mqtt.Level311 or mqtt.Level5); it defaults to mqtt.Level311 if zero.
type Options struct {
	ClientID     string
	CleanSession bool
	KeepAlive    time.Duration

	Username string
	Password []byte

	WillTopic   string
	WillPayload []byte
	WillQoS     mqtt.QoS
	WillRetain  bool

	ProtocolVersion byte
	ConnectTimeout  time.Duration
	OnPacket        Callback
}

var ErrNotConnected = errors.New("client: not connected")

type pendingAck struct {
	ch chan mqtt.Packet
}

// Client is a connected MQTT session driven from the caller's side.
type Client struct {
	conn net.Conn
	opts Options

	writeMu sync.Mutex

	mu           sync.Mutex
	nextPacketID uint32
	pending      map[uint16]pendingAck
	parkedQoS2   map[uint16]*mqtt.PublishPacket

	closeOnce sync.Once
	closed    chan struct{}
}

// Dial connects to addr over network (normally "tcp"), completes the
// CONNECT/CONNACK handshake, and starts the background read loop that
// drives acknowledgements and delivers inbound messages to opts.OnPacket.
func Dial(ctx context.Context, network, addr string, opts Options) (*Client, error) {
	if opts.ProtocolVersion == 0 {
		opts.ProtocolVersion = mqtt.Level311
	}
	var d net.Dialer
	conn, err := d.DialContext(ctx, network, addr)
	if err != nil {
		return nil, fmt.Errorf("client: dial: %w", err)
	}

	c := &Client{
		conn:       conn,
		opts:       opts,
		pending:    make(map[uint16]pendingAck),
		parkedQoS2: make(map[uint16]*mqtt.PublishPacket),
		closed:     make(chan struct{}),
	}

	connackCh := make(chan *mqtt.ConnackPacket, 1)
	go c.readLoop(connackCh)

	connect := &mqtt.ConnectPacket{
		Version:      opts.ProtocolVersion,
		ProtocolName: "MQTT",
		CleanSession: opts.CleanSession,
		ClientID:     opts.ClientID,
		KeepAlive:    uint16(opts.KeepAlive / time.Second),
		Username:     opts.Username,
		UsernameFlag: opts.Username != "",
		Password:     opts.Password,
		PasswordFlag: len(opts.Password) > 0,
	}
	if opts.WillTopic != "" {
		connect.WillFlag = true
		connect.WillTopic = opts.WillTopic
		connect.WillMessage = opts.WillPayload
		connect.WillQoS = opts.WillQoS
		connect.WillRetain = opts.WillRetain
	}
	if err := c.write(connect); err != nil {
		conn.Close()
		return nil, err
	}

	timeout := opts.ConnectTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	select {
	case ack := <-connackCh:
		if ack.ReasonCode != mqtt.ReasonSuccess {
			conn.Close()
			return nil, fmt.Errorf("client: connect refused: reason code 0x%02x", ack.ReasonCode)
		}
	case <-time.After(timeout):
		conn.Close()
		return nil, fmt.Errorf("client: connect: %w", context.DeadlineExceeded)
	case <-ctx.Done():
		conn.Close()
		return nil, ctx.Err()
	}

	if opts.KeepAlive > 0 {
		go c.keepAliveLoop(opts.KeepAlive)
	}
	return c, nil
}

func (c *Client) allocatePacketID() uint16 {
	n := atomic.AddUint32(&c.nextPacketID, 1)
	return uint16(n%65535) + 1
}

func (c *Client) registerPending(id uint16) chan mqtt.Packet {
	ch := make(chan mqtt.Packet, 1)
	c.mu.Lock()
	c.pending[id] = pendingAck{ch: ch}
	c.mu.Unlock()
	return ch
}

func (c *Client) clearPending(id uint16) {
	c.mu.Lock()
	delete(c.pending, id)
	c.mu.Unlock()
}

func (c *Client) awaitAck(ctx context.Context, ch chan mqtt.Packet) (mqtt.Packet, error) {
	select {
	case pkt := <-ch:
		return pkt, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-c.closed:
		return nil, ErrNotConnected
	}
}

// Publish sends a PUBLISH packet and, for QoS 1/2, blocks until the
// handshake completes.
func (c *Client) Publish(ctx context.Context, topic string, payload []byte, qos mqtt.QoS, dup, retain bool) error {
	pkt := &mqtt.PublishPacket{
		Version: c.opts.ProtocolVersion,
		Topic:   topic,
		Payload: payload,
		QoS:     qos,
		Dup:     dup,
		Retain:  retain,
	}
	if qos == mqtt.QoS0 {
		return c.write(pkt)
	}

	id := c.allocatePacketID()
	pkt.PacketID = id
	ch := c.registerPending(id)
	defer c.clearPending(id)

	if err := c.write(pkt); err != nil {
		return err
	}
	if _, err := c.awaitAck(ctx, ch); err != nil {
		return err
	}
	if qos == mqtt.QoS1 {
		return nil
	}

	// QoS 2: the ack above was PUBREC; complete with PUBREL/PUBCOMP.
	ch2 := c.registerPending(id)
	defer c.clearPending(id)
	if err := c.write(&mqtt.PubrelPacket{Version: c.opts.ProtocolVersion, PacketID: id}); err != nil {
		return err
	}
	_, err := c.awaitAck(ctx, ch2)
	return err
}

// Subscribe requests qos on topic and returns the code the broker granted.
func (c *Client) Subscribe(ctx context.Context, topic string, qos mqtt.QoS) (byte, error) {
	id := c.allocatePacketID()
	ch := c.registerPending(id)
	defer c.clearPending(id)

	pkt := &mqtt.SubscribePacket{
		Version:  c.opts.ProtocolVersion,
		PacketID: id,
		Filters:  []mqtt.Subscription{{Topic: topic, QoS: qos}},
	}
	if err := c.write(pkt); err != nil {
		return 0, err
	}
	got, err := c.awaitAck(ctx, ch)
	if err != nil {
		return 0, err
	}
	suback, ok := got.(*mqtt.SubackPacket)
	if !ok || len(suback.Codes) == 0 {
		return 0, fmt.Errorf("client: unexpected SUBACK")
	}
	return suback.Codes[0], nil
}

// Unsubscribe requests removal of topic.
func (c *Client) Unsubscribe(ctx context.Context, topic string) error {
	id := c.allocatePacketID()
	ch := c.registerPending(id)
	defer c.clearPending(id)

	pkt := &mqtt.UnsubscribePacket{Version: c.opts.ProtocolVersion, PacketID: id, Filters: []string{topic}}
	if err := c.write(pkt); err != nil {
		return err
	}
	_, err := c.awaitAck(ctx, ch)
	return err
}

// Disconnect sends a graceful DISCONNECT and closes the connection.
func (c *Client) Disconnect(ctx context.Context) error {
	_ = c.write(&mqtt.DisconnectPacket{Version: c.opts.ProtocolVersion})
	c.closeOnce.Do(func() { close(c.closed) })
	return c.conn.Close()
}

// CloseAbruptly closes the underlying connection without sending DISCONNECT,
// simulating a dropped network connection so the broker fires this client's
// will message (if any).
func (c *Client) CloseAbruptly() error {
	c.closeOnce.Do(func() { close(c.closed) })
	return c.conn.Close()
}

func (c *Client) write(pkt mqtt.Packet) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	_, err := c.conn.Write(mqtt.Encode(pkt))
	return err
}

func (c *Client) keepAliveLoop(interval time.Duration) {
	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		select {
		case <-t.C:
			if err := c.write(&mqtt.PingreqPacket{}); err != nil {
				return
			}
		case <-c.closed:
			return
		}
	}
}

// readLoop decodes inbound packets and either resolves a pending request or
// forwards the packet to opts.OnPacket. connackCh receives exactly one
// packet: the CONNACK answering Dial's CONNECT.
func (c *Client) readLoop(connackCh chan<- *mqtt.ConnackPacket) {
	defer c.closeOnce.Do(func() { close(c.closed) })

	var buf []byte
	chunk := make([]byte, 4096)
	gotConnack := false

	for {
		n, err := c.conn.Read(chunk)
		if n > 0 {
			buf = append(buf, chunk[:n]...)
			for {
				_, complete, ferr := mqtt.FrameLength(buf)
				if ferr != nil {
					return
				}
				if !complete {
					break
				}
				version := c.opts.ProtocolVersion
				pkt, consumed, derr := mqtt.Decode(buf, version)
				if derr != nil {
					return
				}
				buf = buf[consumed:]

				if !gotConnack {
					if ack, ok := pkt.(*mqtt.ConnackPacket); ok {
						gotConnack = true
						connackCh <- ack
						continue
					}
				}
				c.dispatch(pkt)
			}
		}
		if err != nil {
			return
		}
	}
}

func (c *Client) dispatch(pkt mqtt.Packet) {
	switch p := pkt.(type) {
	case *mqtt.PubackPacket:
		c.resolve(p.PacketID, p)
	case *mqtt.PubrecPacket:
		c.resolve(p.PacketID, p)
	case *mqtt.PubcompPacket:
		c.resolve(p.PacketID, p)
	case *mqtt.SubackPacket:
		c.resolve(p.PacketID, p)
	case *mqtt.UnsubackPacket:
		c.resolve(p.PacketID, p)
	case *mqtt.PublishPacket:
		c.handleInboundPublish(p)
	case *mqtt.PubrelPacket:
		c.completeInboundQoS2(p.PacketID)
	case *mqtt.PingrespPacket:
		// no-op: keepAliveLoop only tracks the outbound side.
	case *mqtt.DisconnectPacket:
		c.conn.Close()
	}
}

func (c *Client) resolve(packetID uint16, pkt mqtt.Packet) {
	c.mu.Lock()
	p, ok := c.pending[packetID]
	c.mu.Unlock()
	if ok {
		select {
		case p.ch <- pkt:
		default:
		}
	}
}

func (c *Client) handleInboundPublish(p *mqtt.PublishPacket) {
	switch p.QoS {
	case mqtt.QoS0:
		c.deliver(p)
	case mqtt.QoS1:
		c.deliver(p)
		_ = c.write(&mqtt.PubackPacket{Version: c.opts.ProtocolVersion, PacketID: p.PacketID, ReasonCode: mqtt.ReasonSuccess})
	case mqtt.QoS2:
		c.mu.Lock()
		c.parkedQoS2[p.PacketID] = p
		c.mu.Unlock()
		_ = c.write(&mqtt.PubrecPacket{Version: c.opts.ProtocolVersion, PacketID: p.PacketID, ReasonCode: mqtt.ReasonSuccess})
	}
}

func (c *Client) completeInboundQoS2(packetID uint16) {
	c.mu.Lock()
	p, ok := c.parkedQoS2[packetID]
	delete(c.parkedQoS2, packetID)
	c.mu.Unlock()
	if ok {
		c.deliver(p)
	}
	_ = c.write(&mqtt.PubcompPacket{Version: c.opts.ProtocolVersion, PacketID: packetID, ReasonCode: mqtt.ReasonSuccess})
}

func (c *Client) deliver(p *mqtt.PublishPacket) {
	if c.opts.OnPacket != nil {
		c.opts.OnPacket(p)
	}
}
