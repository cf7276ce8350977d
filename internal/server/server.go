// Package server owns the broker's listener: accepting connections, wrapping
// them in TLS when configured, and handing each to its own connection runner.
package server

import (
	"context"
	"crypto/tls"
	"fmt"
	"log"
	"net"
	"sync"

	"github.com/flowmq/broker/internal/conn"
	"github.com/flowmq/broker/internal/config"
	"github.com/flowmq/broker/internal/handler"
	"github.com/flowmq/broker/internal/inflight"
	"github.com/flowmq/broker/internal/metrics"
	"github.com/flowmq/broker/internal/mqtt"
	"github.com/flowmq/broker/internal/registry"
)

// Server is the MQTT broker: one listener, one shared registry and in-flight
// container, and one handler driving every connection's protocol state
// machine.
type Server struct {
	config   *config.Config
	listener net.Listener

	Registry *registry.Registry
	Inflight *inflight.Container
	Handler  *handler.Handler

	mu      sync.Mutex
	running bool
	wg      sync.WaitGroup
}

// New builds a Server sharing one registry/in-flight/handler set, ready to
// Start against cfg.
func New(cfg *config.Config) *Server {
	reg := registry.New()
	inf := inflight.New()
	h := handler.New(reg, inf)
	h.MaxQoS = mqtt.QoS(cfg.QoS.MaxQoS)
	return &Server{
		config:   cfg,
		Registry: reg,
		Inflight: inf,
		Handler:  h,
	}
}

// Start opens the listener (wrapped in TLS if configured) and accepts
// connections until Stop is called. It blocks; callers typically run it in
// a goroutine.
func (s *Server) Start() error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return fmt.Errorf("server is already running")
	}
	s.running = true
	s.mu.Unlock()

	addr := fmt.Sprintf("%s:%d", s.config.Server.Host, s.config.Server.Port)
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to start listener: %w", err)
	}
	if s.config.TLS.Enabled {
		cert, err := tls.LoadX509KeyPair(s.config.TLS.CertFile, s.config.TLS.KeyFile)
		if err != nil {
			listener.Close()
			return fmt.Errorf("failed to load TLS certificate: %w", err)
		}
		listener = tls.NewListener(listener, &tls.Config{Certificates: []tls.Certificate{cert}})
	}
	s.mu.Lock()
	s.listener = listener
	s.mu.Unlock()

	log.Printf("MQTT broker listening on %s", addr)

	for {
		c, err := s.listener.Accept()
		if err != nil {
			s.mu.Lock()
			running := s.running
			s.mu.Unlock()
			if !running {
				return nil
			}
			log.Printf("error accepting connection: %v", err)
			continue
		}

		metrics.ConnectionsTotal.Inc()
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			s.handleConnection(c)
		}()
	}
}

func (s *Server) handleConnection(c net.Conn) {
	defer c.Close()
	queueCapacity := s.config.Limits.QueueCapacity
	runner := conn.New(c, s.Handler, queueCapacity, s.config.Server.ReadTimeout, s.config.Server.WriteTimeout)
	if err := runner.Run(context.Background()); err != nil {
		log.Printf("connection from %s closed: %v", c.RemoteAddr(), err)
	}
}

// Addr returns the listener's bound address. Valid only after Start has
// opened the listener; used by tests that bind to port 0 and need to know
// which port the OS actually assigned.
func (s *Server) Addr() net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return nil
	}
	return s.listener.Addr()
}

// Stop closes the listener; in-flight connections are left to drain on
// their own (each closes once its peer disconnects or its read fails).
func (s *Server) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.running {
		return nil
	}
	s.running = false
	if s.listener != nil {
		if err := s.listener.Close(); err != nil {
			return fmt.Errorf("error closing listener: %w", err)
		}
	}
	return nil
}
