// Package conn adapts a byte stream connection to the session/handler event
// loop: a reader goroutine frames and decodes inbound packets onto the
// session's queue, while the calling goroutine drains that same queue
// (inbound packets, broadcast fan-in, and direct output requests alike) and
// writes out whatever the handler produces.
package conn

import (
	"bufio"
	"context"
	"io"
	"net"
	"time"

	"github.com/flowmq/broker/internal/handler"
	"github.com/flowmq/broker/internal/metrics"
	"github.com/flowmq/broker/internal/mqtt"
	"github.com/flowmq/broker/internal/session"
)

const readChunkSize = 4096

// Runner owns one connection's session and drives its event loop.
type Runner struct {
	conn    net.Conn
	sess    *session.Session
	handler *handler.Handler

	readTimeout  time.Duration
	writeTimeout time.Duration
}

// New constructs a Runner for c. queueCapacity bounds the session's event
// queue (inbound packets, broadcasts, and output/exit requests share it).
// When a slow connection's queue is full, a broadcast to it blocks while the
// registry lock is held, so the publisher and other registry operations wait
// until there is room. readTimeout/writeTimeout are applied per I/O call as
// deadlines; zero disables the corresponding deadline.
func New(c net.Conn, h *handler.Handler, queueCapacity int, readTimeout, writeTimeout time.Duration) *Runner {
	queue := make(chan session.Event, queueCapacity)
	return &Runner{
		conn:         c,
		sess:         session.New(queue),
		handler:      h,
		readTimeout:  readTimeout,
		writeTimeout: writeTimeout,
	}
}

// Session returns the connection's session, e.g. so callers can look up its
// ClientID once CONNECT has been processed.
func (r *Runner) Session() *session.Session {
	return r.sess
}

// Run drives the event loop until the connection closes, the handler signals
// exit, or ctx is done. It always returns once the connection is done with;
// callers are responsible for closing r.conn.
func (r *Runner) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	defer r.sess.Close()

	readDone := make(chan error, 1)
	go r.readLoop(ctx, readDone)

	for {
		select {
		case ev := <-r.sess.Queue():
			res := r.handler.Handle(r.sess, ev)
			for _, pkt := range res.Out {
				if err := r.write(pkt); err != nil {
					return err
				}
			}
			if res.Exit {
				return nil
			}

		case err := <-readDone:
			// The socket closed or a malformed frame arrived; treat it as
			// an ungraceful exit so any registered will message fires.
			r.handler.Handle(r.sess, session.ExitEvent{FireWill: true})
			return err

		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// readLoop accumulates bytes off the connection, frames and decodes
// complete packets, and pushes them onto the session's queue as
// InputEvents. It reports the terminal error (io.EOF on a graceful close,
// anything else on a malformed frame or socket error) on done and returns.
func (r *Runner) readLoop(ctx context.Context, done chan<- error) {
	reader := bufio.NewReader(r.conn)
	chunk := make([]byte, readChunkSize)
	var buf []byte

	for {
		if r.readTimeout > 0 {
			_ = r.conn.SetReadDeadline(time.Now().Add(r.readTimeout))
		}
		n, err := reader.Read(chunk)
		if n > 0 {
			metrics.BytesReceived.Add(float64(n))
			buf = append(buf, chunk[:n]...)
			for {
				_, complete, ferr := mqtt.FrameLength(buf)
				if ferr != nil {
					metrics.DecodeErrors.WithLabelValues("frame").Inc()
					done <- ferr
					return
				}
				if !complete {
					break
				}
				pkt, consumed, derr := mqtt.Decode(buf, r.sess.ProtocolVersion())
				if derr != nil {
					metrics.DecodeErrors.WithLabelValues("decode").Inc()
					done <- derr
					return
				}
				buf = buf[consumed:]
				metrics.PacketsReceived.WithLabelValues(metrics.PacketType(pkt)).Inc()

				if cp, ok := pkt.(*mqtt.ConnectPacket); ok {
					// Record the negotiated version immediately so that a
					// second packet arriving in the same read is decoded
					// correctly, without waiting for the queue consumer to
					// process this CONNECT event.
					r.sess.SetProtocol(cp.ProtocolName, cp.Version)
				}

				select {
				case r.sess.Queue() <- session.InputEvent{Packet: pkt}:
				case <-ctx.Done():
					return
				}
			}
		}
		if err != nil {
			if err == io.EOF {
				done <- io.EOF
			} else {
				done <- err
			}
			return
		}
	}
}

func (r *Runner) write(pkt mqtt.Packet) error {
	data := mqtt.Encode(pkt)
	if r.writeTimeout > 0 {
		_ = r.conn.SetWriteDeadline(time.Now().Add(r.writeTimeout))
	}
	n, err := r.conn.Write(data)
	metrics.BytesSent.Add(float64(n))
	metrics.PacketsSent.WithLabelValues(metrics.PacketType(pkt)).Inc()
	return err
}
