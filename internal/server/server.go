package server

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/codefionn/chatrelay/internal/auth"
	"github.com/codefionn/chatrelay/internal/config"
	"github.com/codefionn/chatrelay/internal/consts"
	"github.com/codefionn/chatrelay/internal/llm"
	"github.com/codefionn/chatrelay/internal/logger"
	"github.com/codefionn/chatrelay/internal/room"
	"github.com/codefionn/chatrelay/internal/tlsconf"
)

// Server accepts TLS connections and hands each one to a Handler. The
// server owns the shared registries: credentials, session tokens and
// rooms.
type Server struct {
	cfg    *config.Config
	tokens *auth.TokenRegistry
	creds  auth.CredentialStore
	rooms  *room.Registry

	listener net.Listener
	tlsCfg   *tls.Config

	// Connection tracking
	connMu    sync.RWMutex
	clients   map[string]*Handler
	connCount int
	maxConns  int

	// Control
	mu       sync.Mutex
	running  bool
	stopChan chan struct{}
	stopOnce sync.Once

	startedAt time.Time

	// Connection ID counter
	connIDCounter int
	connIDMu      sync.Mutex
}

// NewServer wires a server from its collaborators. The room registry is
// created and seeded with the default rooms here.
func NewServer(cfg *config.Config, creds auth.CredentialStore, ai llm.Client) (*Server, error) {
	tlsCfg, err := tlsconf.Server(cfg.CertFile, cfg.KeyFile)
	if err != nil {
		return nil, fmt.Errorf("failed to load TLS configuration: %w", err)
	}

	maxConns := cfg.MaxConnections
	if maxConns <= 0 {
		maxConns = consts.DefaultMaxConnections
	}

	rooms := room.NewRegistry(ai)
	rooms.SeedDefaults()

	return &Server{
		cfg:      cfg,
		tokens:   auth.NewTokenRegistry(),
		creds:    creds,
		rooms:    rooms,
		tlsCfg:   tlsCfg,
		clients:  make(map[string]*Handler),
		maxConns: maxConns,
		stopChan: make(chan struct{}),
	}, nil
}

// Start binds the listener and launches the accept loop.
func (s *Server) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return fmt.Errorf("server is already running")
	}
	s.running = true
	s.startedAt = time.Now()
	s.mu.Unlock()

	listener, err := net.Listen("tcp", s.cfg.ListenAddr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.cfg.ListenAddr, err)
	}
	s.listener = listener

	go s.acceptLoop(ctx)

	logger.Info("Chat server listening on %s (max connections: %d)", s.cfg.ListenAddr, s.maxConns)
	return nil
}

// Stop shuts the server down: no new connections, every live handler
// stopped, credential store closed.
func (s *Server) Stop() error {
	s.stopOnce.Do(func() {
		logger.Info("Stopping chat server...")

		close(s.stopChan)

		if s.listener != nil {
			if err := s.listener.Close(); err != nil && !errors.Is(err, net.ErrClosed) {
				logger.Error("Error closing listener: %v", err)
			}
		}

		s.connMu.RLock()
		handlers := make([]*Handler, 0, len(s.clients))
		for _, h := range s.clients {
			handlers = append(handlers, h)
		}
		s.connMu.RUnlock()

		for _, h := range handlers {
			h.Stop()
		}

		if s.creds != nil {
			if err := s.creds.Close(); err != nil {
				logger.Warn("Error closing credential store: %v", err)
			}
		}

		s.mu.Lock()
		s.running = false
		s.mu.Unlock()

		logger.Info("Chat server stopped")
	})

	return nil
}

// acceptLoop accepts raw TCP connections and performs the TLS handshake
// off the accept path, so a stalled handshake never blocks new clients.
func (s *Server) acceptLoop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			logger.Info("Accept loop stopped via context cancellation")
			s.Stop()
			return

		case <-s.stopChan:
			logger.Info("Accept loop stopped via stop signal")
			return

		default:
			if tcp, ok := s.listener.(*net.TCPListener); ok {
				tcp.SetDeadline(time.Now().Add(1 * time.Second))
			}

			conn, err := s.listener.Accept()
			if err != nil {
				if netErr, ok := err.(net.Error); ok && netErr.Timeout() {
					continue
				}
				if errors.Is(err, net.ErrClosed) {
					logger.Info("Listener closed, exiting accept loop")
					return
				}
				logger.Error("Error accepting connection: %v", err)
				continue
			}

			if !s.checkConnectionLimit() {
				logger.Warn("Connection limit reached, rejecting connection from %s", conn.RemoteAddr())
				conn.Close()
				continue
			}

			go s.handshakeAndServe(conn)
		}
	}
}

// handshakeAndServe completes the TLS handshake and starts the handler. No
// handler state exists until the handshake succeeds.
func (s *Server) handshakeAndServe(conn net.Conn) {
	tlsConn := tls.Server(conn, s.tlsCfg)

	if err := tlsConn.SetDeadline(time.Now().Add(consts.AuthWaitTimeout)); err != nil {
		logger.Error("Failed to set handshake deadline for %s: %v", conn.RemoteAddr(), err)
		conn.Close()
		return
	}
	if err := tlsConn.Handshake(); err != nil {
		logger.Warn("TLS handshake with %s failed: %v", conn.RemoteAddr(), err)
		conn.Close()
		return
	}
	tlsConn.SetDeadline(time.Time{})

	handlerID := s.generateConnectionID()
	handler := NewHandler(handlerID, tlsConn, s.tokens, s.creds, s.rooms, s.untrackHandler)

	s.trackHandler(handler)
	handler.Start()

	logger.Info("New connection accepted: %s from %s (total: %d)", handlerID, conn.RemoteAddr(), s.ClientCount())
}

func (s *Server) checkConnectionLimit() bool {
	s.connMu.RLock()
	defer s.connMu.RUnlock()
	return s.connCount < s.maxConns
}

func (s *Server) trackHandler(h *Handler) {
	s.connMu.Lock()
	defer s.connMu.Unlock()

	s.clients[h.ID] = h
	s.connCount++
}

func (s *Server) untrackHandler(h *Handler) {
	s.connMu.Lock()
	defer s.connMu.Unlock()

	if _, ok := s.clients[h.ID]; ok {
		delete(s.clients, h.ID)
		s.connCount--
	}
}

func (s *Server) generateConnectionID() string {
	s.connIDMu.Lock()
	defer s.connIDMu.Unlock()

	s.connIDCounter++
	return fmt.Sprintf("conn_%d", s.connIDCounter)
}

// ClientCount returns the number of tracked connections.
func (s *Server) ClientCount() int {
	s.connMu.RLock()
	defer s.connMu.RUnlock()
	return s.connCount
}

// SessionCount returns the number of admitted sessions.
func (s *Server) SessionCount() int {
	return s.tokens.Count()
}

// Rooms exposes the room registry for observability surfaces.
func (s *Server) Rooms() *room.Registry {
	return s.rooms
}

// Uptime reports how long the server has been running.
func (s *Server) Uptime() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.startedAt.IsZero() {
		return 0
	}
	return time.Since(s.startedAt)
}

// IsRunning reports whether the server is accepting connections.
func (s *Server) IsRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}
