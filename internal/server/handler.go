package server

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"net"
	"strings"
	"sync"
	"time"

	"github.com/codefionn/chatrelay/internal/auth"
	"github.com/codefionn/chatrelay/internal/consts"
	"github.com/codefionn/chatrelay/internal/logger"
	"github.com/codefionn/chatrelay/internal/protocol"
	"github.com/codefionn/chatrelay/internal/room"
)

// handlerState tracks where a connection is in its lifecycle. The initial
// frame is strict (anything unexpected closes the connection); once the
// client is admitted the read loop turns lenient.
type handlerState int

const (
	stateAwaitingInitial handlerState = iota
	stateAwaitingReady
	stateReady
	stateClosed
)

// commandCatalogue is the static reply to LIST_CMDS.
var commandCatalogue = map[string]string{
	"JOIN_ROOM":     "Join a room by name, creating it if needed",
	"LEAVE_ROOM":    "Leave the current room",
	"LIST_ROOMS":    "List all room names",
	"LIST_CUR_ROOM": "Show the current room",
	"LIST_CMDS":     "Show this command catalogue",
	"SEND_MESSAGE":  "Send a message to the current room",
	"QUIT":          "Disconnect from the server",
}

// Handler owns one client connection: a read pump that drives the state
// machine and a write pump that serializes every outbound frame onto the
// socket. Room broadcasts and direct replies both funnel through the send
// channel, so frames never interleave.
type Handler struct {
	ID string

	conn   net.Conn
	tokens *auth.TokenRegistry
	creds  auth.CredentialStore
	rooms  *room.Registry

	// Called once when the handler stops, for connection tracking.
	onStop func(*Handler)

	send chan *protocol.Message

	// Serializes writes between the write pump and terminal frames sent
	// on the read path right before closing.
	writeMu sync.Mutex

	mu       sync.Mutex
	state    handlerState
	username string
	token    string
	room     room.Broadcaster
	closed   bool

	stopOnce sync.Once
	stopChan chan struct{}
}

// NewHandler creates a handler for an accepted connection. onStop may be
// nil.
func NewHandler(id string, conn net.Conn, tokens *auth.TokenRegistry, creds auth.CredentialStore, rooms *room.Registry, onStop func(*Handler)) *Handler {
	return &Handler{
		ID:       id,
		conn:     conn,
		tokens:   tokens,
		creds:    creds,
		rooms:    rooms,
		onStop:   onStop,
		send:     make(chan *protocol.Message, 256),
		state:    stateAwaitingInitial,
		stopChan: make(chan struct{}),
	}
}

// Start begins the read and write pumps.
func (h *Handler) Start() {
	go h.readPump()
	go h.writePump()
	logger.Debug("Handler %s started read/write pumps", h.ID)
}

// Stop tears the connection down: leaves the current room, releases the
// session token and closes the socket. Idempotent; every exit path funnels
// here.
func (h *Handler) Stop() {
	h.stopOnce.Do(func() {
		close(h.stopChan)

		h.mu.Lock()
		h.closed = true
		h.state = stateClosed
		r := h.room
		h.room = nil
		username, token := h.username, h.token
		h.mu.Unlock()

		if r != nil {
			r.RemoveMember(h)
		}
		if username != "" && token != "" {
			h.tokens.Release(username, token)
		}

		if h.conn != nil {
			h.conn.Close()
		}
		close(h.send)

		if h.onStop != nil {
			h.onStop(h)
		}

		logger.Info("Handler %s stopped (user %q)", h.ID, username)
	})
}

// Username implements room.Member.
func (h *Handler) Username() string {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.username
}

// Deliver implements room.Member. It only enqueues, so a room may call it
// while holding its membership lock.
func (h *Handler) Deliver(msg *protocol.Message) {
	h.Send(msg)
}

// Send enqueues a frame for the write pump. Frames to a closed handler or
// past a full buffer are dropped.
func (h *Handler) Send(msg *protocol.Message) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return
	}

	select {
	case h.send <- msg:
	default:
		logger.Warn("Send buffer full for handler %s, frame %s dropped", h.ID, msg.Type)
	}
}

// SendError sends a structured ERROR frame.
func (h *Handler) SendError(text string) {
	h.Send(protocol.NewError(text))
}

// sendFinal writes a frame synchronously. Used on paths that close the
// connection right after, where a queued frame could be lost to the
// shutdown race.
func (h *Handler) sendFinal(msg *protocol.Message) {
	if err := h.writeFrame(msg); err != nil {
		logger.Debug("Failed to write final frame to handler %s: %v", h.ID, err)
	}
}

// writeFrame serializes one frame onto the socket.
func (h *Handler) writeFrame(msg *protocol.Message) error {
	data, err := msg.Encode()
	if err != nil {
		return err
	}

	h.writeMu.Lock()
	defer h.writeMu.Unlock()

	if err := h.conn.SetWriteDeadline(time.Now().Add(consts.WriteTimeout)); err != nil {
		return err
	}
	_, err = fmt.Fprintf(h.conn, "%s\n", data)
	return err
}

func (h *Handler) getState() handlerState {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.state
}

func (h *Handler) setState(s handlerState) {
	h.mu.Lock()
	h.state = s
	h.mu.Unlock()
}

func (h *Handler) currentRoom() room.Broadcaster {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.room
}

// readDeadline returns how long the server waits for the next frame. Before
// admission the client gets the short authentication window; afterwards the
// deadline doubles as the heartbeat liveness check.
func (h *Handler) readDeadline() time.Duration {
	if h.getState() == stateReady {
		return consts.HeartbeatTimeout
	}
	return consts.AuthWaitTimeout
}

// readPump reads one JSON line per iteration and dispatches it through the
// state machine.
func (h *Handler) readPump() {
	defer h.Stop()

	reader := bufio.NewReader(h.conn)

	for {
		select {
		case <-h.stopChan:
			return
		default:
		}

		if err := h.conn.SetReadDeadline(time.Now().Add(h.readDeadline())); err != nil {
			logger.Error("Failed to set read deadline for handler %s: %v", h.ID, err)
			return
		}

		line, err := reader.ReadString('\n')
		if err != nil {
			if errors.Is(err, io.EOF) {
				logger.Info("Handler %s disconnected (EOF)", h.ID)
			} else if errors.Is(err, net.ErrClosed) {
				logger.Debug("Handler %s connection closed", h.ID)
			} else if netErr, ok := err.(net.Error); ok && netErr.Timeout() {
				logger.Info("Handler %s timed out waiting for a frame", h.ID)
			} else {
				logger.Error("Error reading from handler %s: %v", h.ID, err)
			}
			return
		}

		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}

		msg, err := protocol.ParseMessage([]byte(line))
		if err != nil {
			if h.getState() == stateReady {
				h.SendError("Malformed JSON frame")
				continue
			}
			// Malformed frames before admission are fatal.
			h.sendFinal(protocol.NewError("Malformed JSON frame"))
			logger.Warn("Handler %s sent malformed JSON before admission: %v", h.ID, err)
			return
		}

		if !h.dispatch(msg) {
			return
		}
	}
}

// writePump serializes outbound frames onto the socket.
func (h *Handler) writePump() {
	defer h.Stop()

	for {
		select {
		case <-h.stopChan:
			return

		case msg, ok := <-h.send:
			if !ok {
				return
			}

			if err := h.writeFrame(msg); err != nil {
				logger.Error("Failed to write frame to handler %s: %v", h.ID, err)
				return
			}
		}
	}
}

// dispatch routes one frame by current state. Returns false when the read
// loop should exit.
func (h *Handler) dispatch(msg *protocol.Message) bool {
	logger.Debug("Handler %s received frame: %s", h.ID, msg.Type)

	// Heartbeats before admission are ignored rather than errored; a
	// reconnecting client may fire one before the handshake settles.
	if msg.Type == protocol.MessageTypeHeartbeat && h.getState() != stateReady {
		return true
	}

	switch h.getState() {
	case stateAwaitingInitial:
		return h.dispatchInitial(msg)
	case stateAwaitingReady:
		return h.dispatchReady(msg)
	case stateReady:
		return h.dispatchSteady(msg)
	default:
		return false
	}
}

// dispatchInitial handles the strict first frame: LOGIN_REQUEST,
// REGISTER_REQUEST or RECONNECT. Anything else closes the connection.
func (h *Handler) dispatchInitial(msg *protocol.Message) bool {
	switch msg.Type {
	case protocol.MessageTypeLoginRequest:
		return h.handleLogin(msg)
	case protocol.MessageTypeRegisterRequest:
		return h.handleRegister(msg)
	case protocol.MessageTypeReconnect:
		return h.handleReconnect(msg)
	default:
		h.sendFinal(protocol.NewError("Expected LOGIN_REQUEST, REGISTER_REQUEST or RECONNECT"))
		logger.Warn("Handler %s sent unexpected initial frame %s", h.ID, msg.Type)
		return false
	}
}

func (h *Handler) handleLogin(msg *protocol.Message) bool {
	if msg.Username == "" || msg.Password == "" {
		h.sendFinal(protocol.NewLoginResponse(false, "Username and password are required"))
		return false
	}

	// Duplicate logins are rejected before any credential check.
	if h.tokens.IsUserLoggedIn(msg.Username) {
		h.sendFinal(protocol.NewLoginResponse(false, "User is already logged in"))
		logger.Warn("Handler %s attempted duplicate login for %q", h.ID, msg.Username)
		return false
	}

	ok, err := h.creds.Verify(msg.Username, msg.Password)
	if err != nil {
		logger.Error("Credential store failure during login for handler %s: %v", h.ID, err)
		h.sendFinal(protocol.NewLoginResponse(false, "Login failed"))
		return false
	}
	if !ok {
		h.sendFinal(protocol.NewLoginResponse(false, "Invalid username or password"))
		return false
	}

	// The token goes out now, but the session is registered only once the
	// client confirms with READY.
	token := auth.NewToken()
	h.mu.Lock()
	h.username = msg.Username
	h.token = token
	h.state = stateAwaitingReady
	h.mu.Unlock()

	h.Send(protocol.NewLoginResponse(true, token))
	logger.Info("Handler %s authenticated as %q, awaiting READY", h.ID, msg.Username)
	return true
}

func (h *Handler) handleRegister(msg *protocol.Message) bool {
	if msg.Username == "" || msg.Password == "" {
		h.sendFinal(protocol.NewRegisterResponse(false, "Username and password are required"))
		return false
	}

	exists, err := h.creds.Exists(msg.Username)
	if err != nil {
		logger.Error("Credential store failure during registration for handler %s: %v", h.ID, err)
		h.sendFinal(protocol.NewRegisterResponse(false, "Registration failed"))
		return false
	}
	if exists {
		h.sendFinal(protocol.NewRegisterResponse(false, "Username is already taken"))
		return false
	}

	if err := h.creds.Store(msg.Username, msg.Password); err != nil {
		logger.Error("Failed to store credentials for handler %s: %v", h.ID, err)
		h.sendFinal(protocol.NewRegisterResponse(false, "Registration failed"))
		return false
	}

	token := auth.NewToken()
	h.mu.Lock()
	h.username = msg.Username
	h.token = token
	h.state = stateAwaitingReady
	h.mu.Unlock()

	h.Send(protocol.NewRegisterResponse(true, token))
	logger.Info("Handler %s registered %q, awaiting READY", h.ID, msg.Username)
	return true
}

func (h *Handler) handleReconnect(msg *protocol.Message) bool {
	if !h.tokens.ValidateToken(msg.Username, msg.Token) {
		h.sendFinal(protocol.NewReconnectResponse(false))
		logger.Warn("Handler %s presented a stale or unknown token for %q", h.ID, msg.Username)
		return false
	}

	// A valid token readmits immediately; no READY round-trip.
	h.mu.Lock()
	h.username = msg.Username
	h.token = msg.Token
	h.state = stateReady
	h.mu.Unlock()

	h.Send(protocol.NewReconnectResponse(true))
	h.Send(protocol.NewWelcome(msg.Username))

	if msg.RoomName != "" {
		h.joinRoom(msg.RoomName, true)
	}

	logger.Info("Handler %s reconnected as %q (room %q)", h.ID, msg.Username, msg.RoomName)
	return true
}

// dispatchReady accepts only the READY confirmation; the session is
// registered here and the client admitted.
func (h *Handler) dispatchReady(msg *protocol.Message) bool {
	if msg.Type != protocol.MessageTypeReady {
		h.sendFinal(protocol.NewError("Expected READY confirmation"))
		logger.Warn("Handler %s sent %s while READY was expected", h.ID, msg.Type)
		return false
	}

	h.mu.Lock()
	username, token := h.username, h.token
	h.state = stateReady
	h.mu.Unlock()

	h.tokens.Register(username, token)
	h.Send(protocol.NewWelcome(username))

	logger.Info("Handler %s admitted as %q", h.ID, username)
	return true
}

// dispatchSteady handles the post-admission command loop. Unknown types
// are reported and the loop continues.
func (h *Handler) dispatchSteady(msg *protocol.Message) bool {
	switch msg.Type {
	case protocol.MessageTypeQuit:
		logger.Info("Handler %s requested quit", h.ID)
		return false

	case protocol.MessageTypeListRooms:
		h.Send(protocol.NewRoomList(h.rooms.Names()))

	case protocol.MessageTypeJoinRoom:
		if msg.RoomName == "" {
			h.SendError("Room name is required")
			return true
		}
		h.joinRoom(msg.RoomName, false)

	case protocol.MessageTypeLeaveRoom:
		h.leaveRoom()

	case protocol.MessageTypeListCmds:
		h.Send(protocol.NewCmds(commandCatalogue))

	case protocol.MessageTypeListCurRoom:
		name := ""
		if r := h.currentRoom(); r != nil {
			name = r.Name()
		}
		h.Send(protocol.NewCurrentRoom(name))

	case protocol.MessageTypeSendMessage:
		r := h.currentRoom()
		if r == nil {
			h.SendError("Join a room before sending messages")
			return true
		}
		r.Broadcast(msg.Content, h)

	case protocol.MessageTypeHeartbeat:
		h.Send(protocol.NewHeartbeatAck())

	case protocol.MessageTypeHeartbeatAck:
		// Client-side frame, ignore.

	default:
		h.SendError("Unknown message type: " + msg.Type)
	}
	return true
}

// joinRoom resolves the target room, leaves the previous one first, joins,
// and confirms to the joiner. silent suppresses the membership broadcast
// (reconnect rejoin) but never the confirmation.
func (h *Handler) joinRoom(name string, silent bool) {
	target := h.resolveRoom(name, silent)

	prev := h.currentRoom()
	if prev == target {
		h.Send(protocol.NewRoomJoined(name, target.IsAIRoom()))
		return
	}
	if prev != nil {
		prev.RemoveMember(h)
	}

	target.AddMember(h, silent)

	// Stop may have run between the membership insert and here; it would
	// have read the old room and left this handler behind in target.
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		target.RemoveMember(h)
		return
	}
	h.room = target
	h.mu.Unlock()

	h.Send(protocol.NewRoomJoined(name, target.IsAIRoom()))
	logger.Info("Handler %s (%q) joined room %q", h.ID, h.Username(), name)
}

// resolveRoom applies the AI-name disambiguation rules. A normal name is a
// plain get-or-create. An AI-intended name upgrades an empty normal room in
// place; when the name is held by an occupied normal room the joiner lands
// there and gets a delayed advisory suggesting a free AI name.
func (h *Handler) resolveRoom(name string, silent bool) room.Broadcaster {
	if !room.IsAIRoomName(name) {
		return h.rooms.GetOrCreate(name)
	}

	r := h.rooms.GetOrCreate(name)
	if r.IsAIRoom() {
		return r
	}

	upgraded := h.rooms.ForceCreateAIRoom(name, room.DefaultPrompt(name))
	if upgraded.IsAIRoom() {
		return upgraded
	}

	// Occupied normal room keeps the name. Advise after the join
	// confirmation has gone out; best effort, no ordering guarantee.
	if !silent {
		time.AfterFunc(consts.JoinAdvisoryDelay, func() {
			h.SendError(fmt.Sprintf("Room %q is an existing regular room; try %q for an AI room", name, "ai "+name))
		})
	}
	return r
}

func (h *Handler) leaveRoom() {
	r := h.currentRoom()
	if r == nil {
		h.SendError("Not in a room")
		return
	}

	r.RemoveMember(h)
	h.mu.Lock()
	h.room = nil
	h.mu.Unlock()

	h.Send(protocol.NewRoomLeft(r.Name()))
	logger.Info("Handler %s (%q) left room %q", h.ID, h.Username(), r.Name())
}
