// Package client implements the connection-side session controller: it
// owns the TLS connection, drives the login/register handshake, keeps the
// server alive with heartbeats and transparently reconnects with the
// session token when the stream drops.
package client

import (
	"bufio"
	"crypto/tls"
	"errors"
	"fmt"
	"io"
	"net"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/codefionn/chatrelay/internal/consts"
	"github.com/codefionn/chatrelay/internal/logger"
	"github.com/codefionn/chatrelay/internal/protocol"
)

// ConnectionState represents the controller's lifecycle state.
type ConnectionState int

const (
	// StateDisconnected indicates no live connection.
	StateDisconnected ConnectionState = iota
	// StateConnecting indicates a dial or handshake in flight.
	StateConnecting
	// StateConnected indicates an admitted session.
	StateConnected
	// StateReconnecting indicates the reconnect loop is running.
	StateReconnecting
	// StateClosed indicates the controller was shut down for good.
	StateClosed
)

func (s ConnectionState) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	case StateReconnecting:
		return "reconnecting"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// ErrTimeout is returned when the server does not answer a request within
// the authentication window.
var ErrTimeout = errors.New("timed out waiting for server response")

// EventListener receives everything the server pushes outside of the
// request/response pairs the controller consumes itself. Implementations
// must not block; they are called from the receive goroutine.
type EventListener interface {
	OnChatMessage(roomName, sender, content, timestamp string)
	OnUserJoined(roomName, username string)
	OnUserLeft(roomName, username string)
	OnRoomJoined(roomName string, isAIRoom bool)
	OnRoomLeft(roomName string)
	OnRoomList(rooms []string)
	OnCurrentRoom(roomName string)
	OnCommands(commands map[string]string)
	OnWelcome(text string)
	OnServerError(text string)
	OnReconnecting(attempt, maxAttempts int)
	OnDisconnected(err error)
}

// Dialer establishes the transport. Injected so tests can swap in a pipe.
type Dialer func(addr string) (net.Conn, error)

// Config holds controller configuration.
type Config struct {
	// ServerAddr is the host:port of the chat server.
	ServerAddr string
	// TLSConfig secures the dial; ignored when Dial is set.
	TLSConfig *tls.Config
	// Dial overrides the transport when non-nil.
	Dial Dialer
	// AuthTimeout bounds every request/response rendezvous.
	AuthTimeout time.Duration
	// HeartbeatInterval is the gap between HEARTBEAT probes.
	HeartbeatInterval time.Duration
	// ReadTimeout is the per-read deadline on the stream.
	ReadTimeout time.Duration
	// WriteTimeout is the per-write deadline on the stream.
	WriteTimeout time.Duration
	// MaxReconnectAttempts caps the reconnect loop.
	MaxReconnectAttempts int
	// ReconnectDelay is the fixed backoff between attempts.
	ReconnectDelay time.Duration
}

// DefaultConfig returns the production timing profile.
func DefaultConfig(serverAddr string, tlsCfg *tls.Config) *Config {
	return &Config{
		ServerAddr:           serverAddr,
		TLSConfig:            tlsCfg,
		AuthTimeout:          consts.AuthWaitTimeout,
		HeartbeatInterval:    consts.HeartbeatInterval,
		ReadTimeout:          consts.HeartbeatTimeout,
		WriteTimeout:         consts.WriteTimeout,
		MaxReconnectAttempts: consts.MaxReconnectAttempts,
		ReconnectDelay:       consts.ReconnectDelay,
	}
}

// Controller is the client-side session controller.
type Controller struct {
	cfg      *Config
	listener EventListener

	connMu sync.RWMutex
	conn   net.Conn

	state atomic.Int32 // ConnectionState

	// Rendezvous channels keyed by expected response type.
	pendingMu sync.Mutex
	pending   map[string]chan *protocol.Message

	// Session state carried across reconnects.
	sessMu   sync.Mutex
	username string
	token    string
	roomName string

	lastAck atomic.Int64 // unix nanos of the last HEARTBEAT_ACK

	writeMu sync.Mutex

	reconnectMu sync.Mutex

	stopCh   chan struct{}
	stopOnce sync.Once
}

// NewController creates a controller. listener must be non-nil.
func NewController(cfg *Config, listener EventListener) *Controller {
	c := &Controller{
		cfg:      cfg,
		listener: listener,
		pending:  make(map[string]chan *protocol.Message),
		stopCh:   make(chan struct{}),
	}
	c.state.Store(int32(StateDisconnected))
	return c
}

// State returns the current lifecycle state.
func (c *Controller) State() ConnectionState {
	return ConnectionState(c.state.Load())
}

func (c *Controller) setState(s ConnectionState) {
	c.state.Store(int32(s))
}

// Connect dials the server and starts the receive loop. Authentication is
// a separate step (Login or Register).
func (c *Controller) Connect() error {
	if c.State() == StateClosed {
		return errors.New("controller is closed")
	}
	c.setState(StateConnecting)

	conn, err := c.dial()
	if err != nil {
		c.setState(StateDisconnected)
		return fmt.Errorf("failed to connect to %s: %w", c.cfg.ServerAddr, err)
	}

	c.connMu.Lock()
	c.conn = conn
	c.connMu.Unlock()

	go c.receiveLoop(conn, bufio.NewReader(conn))
	return nil
}

func (c *Controller) dial() (net.Conn, error) {
	if c.cfg.Dial != nil {
		return c.cfg.Dial(c.cfg.ServerAddr)
	}
	return tls.Dial("tcp", c.cfg.ServerAddr, c.cfg.TLSConfig)
}

// Login authenticates, confirms with READY and starts the heartbeat task.
// On success the returned token is also retained for reconnection.
func (c *Controller) Login(username, password string) error {
	resp, err := c.request(protocol.NewLoginRequest(username, password), protocol.MessageTypeLoginResponse)
	if err != nil {
		return err
	}
	if resp.Success == nil || !*resp.Success {
		return fmt.Errorf("login rejected: %s", resp.Text)
	}
	return c.admit(username, resp.Text)
}

// Register creates the account, then follows the same READY-gated
// admission as Login.
func (c *Controller) Register(username, password string) error {
	resp, err := c.request(protocol.NewRegisterRequest(username, password), protocol.MessageTypeRegisterResponse)
	if err != nil {
		return err
	}
	if resp.Success == nil || !*resp.Success {
		return fmt.Errorf("registration rejected: %s", resp.Text)
	}
	return c.admit(username, resp.Text)
}

// admit stores the session, sends READY and starts heartbeats.
func (c *Controller) admit(username, token string) error {
	c.sessMu.Lock()
	c.username = username
	c.token = token
	c.sessMu.Unlock()

	if err := c.send(protocol.NewReady()); err != nil {
		return err
	}

	c.setState(StateConnected)
	go c.heartbeatLoop()

	logger.Info("Session established for %q", username)
	return nil
}

// JoinRoom asks the server to join roomName. The confirmation arrives as
// an OnRoomJoined event.
func (c *Controller) JoinRoom(roomName string) error {
	return c.send(&protocol.Message{Type: protocol.MessageTypeJoinRoom, RoomName: roomName})
}

// LeaveRoom leaves the current room.
func (c *Controller) LeaveRoom() error {
	return c.send(&protocol.Message{Type: protocol.MessageTypeLeaveRoom})
}

// ListRooms requests the room table.
func (c *Controller) ListRooms() error {
	return c.send(&protocol.Message{Type: protocol.MessageTypeListRooms})
}

// ListCommands requests the command catalogue.
func (c *Controller) ListCommands() error {
	return c.send(&protocol.Message{Type: protocol.MessageTypeListCmds})
}

// CurrentRoom asks the server which room the session is in.
func (c *Controller) CurrentRoom() error {
	return c.send(&protocol.Message{Type: protocol.MessageTypeListCurRoom})
}

// SendChat sends a chat message to the current room.
func (c *Controller) SendChat(content string) error {
	return c.send(&protocol.Message{Type: protocol.MessageTypeSendMessage, Content: content})
}

// Quit tells the server we are leaving, then closes.
func (c *Controller) Quit() error {
	c.send(protocol.NewQuit())
	time.Sleep(100 * time.Millisecond)
	return c.Close()
}

// Close tears the controller down for good; no reconnection follows.
func (c *Controller) Close() error {
	c.stopOnce.Do(func() {
		c.setState(StateClosed)
		close(c.stopCh)

		c.connMu.Lock()
		if c.conn != nil {
			c.conn.Close()
			c.conn = nil
		}
		c.connMu.Unlock()

		c.failPending(errors.New("controller closed"))
	})
	return nil
}

// LastHeartbeatAck returns when the last HEARTBEAT_ACK arrived, zero if
// none has.
func (c *Controller) LastHeartbeatAck() time.Time {
	n := c.lastAck.Load()
	if n == 0 {
		return time.Time{}
	}
	return time.Unix(0, n)
}

// Username returns the authenticated username, empty before login.
func (c *Controller) Username() string {
	c.sessMu.Lock()
	defer c.sessMu.Unlock()
	return c.username
}

// Room returns the last room the server confirmed for this session.
func (c *Controller) Room() string {
	c.sessMu.Lock()
	defer c.sessMu.Unlock()
	return c.roomName
}

// send writes one frame on the stream. A write lock keeps frames from
// interleaving between the heartbeat task and the command path.
func (c *Controller) send(msg *protocol.Message) error {
	c.connMu.RLock()
	conn := c.conn
	c.connMu.RUnlock()

	if conn == nil {
		return errors.New("not connected")
	}

	data, err := msg.Encode()
	if err != nil {
		return err
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	conn.SetWriteDeadline(time.Now().Add(c.cfg.WriteTimeout))
	_, err = conn.Write(append(data, '\n'))
	return err
}

// request sends a frame and blocks until the response with the expected
// type arrives or the auth window elapses.
func (c *Controller) request(msg *protocol.Message, respType string) (*protocol.Message, error) {
	ch := make(chan *protocol.Message, 1)

	c.pendingMu.Lock()
	c.pending[respType] = ch
	c.pendingMu.Unlock()

	defer func() {
		c.pendingMu.Lock()
		delete(c.pending, respType)
		c.pendingMu.Unlock()
	}()

	if err := c.send(msg); err != nil {
		return nil, err
	}

	select {
	case resp, ok := <-ch:
		if !ok || resp == nil {
			return nil, errors.New("connection lost")
		}
		return resp, nil
	case <-time.After(c.cfg.AuthTimeout):
		return nil, ErrTimeout
	case <-c.stopCh:
		return nil, errors.New("controller closed")
	}
}

func (c *Controller) failPending(err error) {
	c.pendingMu.Lock()
	for k, ch := range c.pending {
		close(ch)
		delete(c.pending, k)
	}
	c.pendingMu.Unlock()
	_ = err
}

// receiveLoop reads frames off one connection until it dies, then hands
// control to the reconnect path.
// receiveLoop reads frames off conn until it dies. The reader is handed in
// so a reconnect handshake's buffered bytes are never lost.
func (c *Controller) receiveLoop(conn net.Conn, reader *bufio.Reader) {
	for {
		conn.SetReadDeadline(time.Now().Add(c.cfg.ReadTimeout))

		line, err := reader.ReadString('\n')
		if err != nil {
			if !errors.Is(err, io.EOF) && !errors.Is(err, net.ErrClosed) {
				logger.Debug("Receive loop error: %v", err)
			}
			c.handleConnectionLoss(conn, err)
			return
		}

		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}

		msg, err := protocol.ParseMessage([]byte(line))
		if err != nil {
			logger.Warn("Dropping malformed frame from server: %v", err)
			continue
		}

		c.route(msg)
	}
}

// route hands a frame either to a waiting request or to the listener.
func (c *Controller) route(msg *protocol.Message) {
	c.pendingMu.Lock()
	ch, ok := c.pending[msg.Type]
	if ok {
		delete(c.pending, msg.Type)
	}
	c.pendingMu.Unlock()

	if ok {
		ch <- msg
		return
	}

	switch msg.Type {
	case protocol.MessageTypeMessageReceived:
		c.listener.OnChatMessage(msg.RoomName, msg.Sender, msg.Content, msg.Timestamp)

	case protocol.MessageTypeUserJoined:
		c.listener.OnUserJoined(msg.RoomName, msg.Username)

	case protocol.MessageTypeUserLeft:
		c.listener.OnUserLeft(msg.RoomName, msg.Username)

	case protocol.MessageTypeRoomJoined:
		c.sessMu.Lock()
		c.roomName = msg.RoomName
		c.sessMu.Unlock()
		isAI := msg.IsAIRoom != nil && *msg.IsAIRoom
		c.listener.OnRoomJoined(msg.RoomName, isAI)

	case protocol.MessageTypeRoomLeft:
		c.sessMu.Lock()
		c.roomName = ""
		c.sessMu.Unlock()
		c.listener.OnRoomLeft(msg.RoomName)

	case protocol.MessageTypeRoomList:
		c.listener.OnRoomList(msg.Rooms)

	case protocol.MessageTypeRoom:
		c.listener.OnCurrentRoom(msg.RoomName)

	case protocol.MessageTypeCmds:
		c.listener.OnCommands(msg.Commands)

	case protocol.MessageTypeWelcome:
		c.listener.OnWelcome(msg.Text)

	case protocol.MessageTypeError:
		c.listener.OnServerError(msg.Text)

	case protocol.MessageTypeHeartbeatAck:
		c.lastAck.Store(time.Now().UnixNano())

	case protocol.MessageTypeHeartbeat:
		// Server-side probe semantics, not used; ignore.

	default:
		logger.Debug("Ignoring unexpected frame type %s", msg.Type)
	}
}

// heartbeatLoop sends HEARTBEAT at a fixed interval while the session is
// connected.
func (c *Controller) heartbeatLoop() {
	ticker := time.NewTicker(c.cfg.HeartbeatInterval)
	defer ticker.Stop()

	for {
		select {
		case <-c.stopCh:
			return
		case <-ticker.C:
			if c.State() != StateConnected {
				continue
			}
			if err := c.send(protocol.NewHeartbeat()); err != nil {
				logger.Debug("Heartbeat write failed: %v", err)
			}
		}
	}
}

// handleConnectionLoss runs the reconnect loop, unless the controller was
// closed on purpose or never authenticated.
func (c *Controller) handleConnectionLoss(dead net.Conn, cause error) {
	if c.State() == StateClosed {
		return
	}

	// A stale receive loop from a connection we already replaced must not
	// trigger a second reconnect cycle.
	c.connMu.RLock()
	current := c.conn
	c.connMu.RUnlock()
	if current != dead {
		return
	}

	c.failPending(cause)

	c.sessMu.Lock()
	username, token, roomName := c.username, c.token, c.roomName
	c.sessMu.Unlock()

	// Pre-auth losses surface through the pending request; the terminal
	// disconnect event is reserved for a lost session.
	if token == "" {
		c.setState(StateDisconnected)
		return
	}

	c.reconnectMu.Lock()
	defer c.reconnectMu.Unlock()

	// A cycle queued behind another one may find the session already
	// recovered on a replacement connection; only the loop whose connection
	// is still current proceeds.
	c.connMu.RLock()
	current = c.conn
	c.connMu.RUnlock()
	if current != dead || c.State() == StateConnected {
		return
	}

	c.setState(StateReconnecting)
	logger.Warn("Connection lost (%v), reconnecting as %q", cause, username)

	for attempt := 1; attempt <= c.cfg.MaxReconnectAttempts; attempt++ {
		c.listener.OnReconnecting(attempt, c.cfg.MaxReconnectAttempts)

		select {
		case <-c.stopCh:
			return
		case <-time.After(c.cfg.ReconnectDelay):
		}

		if c.tryReconnect(username, token, roomName) {
			c.setState(StateConnected)
			logger.Info("Reconnected as %q (attempt %d)", username, attempt)
			return
		}
	}

	c.setState(StateDisconnected)
	c.listener.OnDisconnected(fmt.Errorf("gave up after %d reconnect attempts: %w", c.cfg.MaxReconnectAttempts, cause))
}

// tryReconnect performs one dial + RECONNECT round-trip. The handshake runs
// synchronously on the candidate connection; it only replaces the live
// connection and gets a receive loop once the server has re-admitted the
// session, so a failed candidate can never start a reconnect cycle of its
// own.
func (c *Controller) tryReconnect(username, token, roomName string) bool {
	conn, err := c.dial()
	if err != nil {
		logger.Debug("Reconnect dial failed: %v", err)
		return false
	}

	reader := bufio.NewReader(conn)
	resp, err := c.reconnectExchange(conn, reader, protocol.NewReconnect(username, token, roomName))
	if err != nil {
		logger.Debug("Reconnect handshake failed: %v", err)
		conn.Close()
		return false
	}
	if resp.Success == nil || !*resp.Success {
		logger.Warn("Server rejected reconnect token for %q", username)
		conn.Close()
		return false
	}

	c.connMu.Lock()
	old := c.conn
	c.conn = conn
	c.connMu.Unlock()
	if old != nil {
		old.Close()
	}

	go c.receiveLoop(conn, reader)
	return true
}

// reconnectExchange writes one frame on a candidate connection and reads
// until the RECONNECT_RESPONSE arrives or the auth window elapses.
func (c *Controller) reconnectExchange(conn net.Conn, reader *bufio.Reader, msg *protocol.Message) (*protocol.Message, error) {
	data, err := msg.Encode()
	if err != nil {
		return nil, err
	}
	if err := conn.SetWriteDeadline(time.Now().Add(c.cfg.WriteTimeout)); err != nil {
		return nil, err
	}
	if _, err := conn.Write(append(data, '\n')); err != nil {
		return nil, err
	}

	if err := conn.SetReadDeadline(time.Now().Add(c.cfg.AuthTimeout)); err != nil {
		return nil, err
	}
	for {
		line, err := reader.ReadString('\n')
		if err != nil {
			return nil, err
		}
		resp, err := protocol.ParseMessage([]byte(strings.TrimSpace(line)))
		if err != nil {
			continue
		}
		if resp.Type == protocol.MessageTypeReconnectResponse {
			return resp, nil
		}
	}
}
