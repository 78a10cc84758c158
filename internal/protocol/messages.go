// Package protocol defines the newline-delimited JSON wire format spoken
// between the chat server and its clients. Every frame is a single JSON
// object with a "type" field; the remaining fields depend on the type.
package protocol

import (
	"encoding/json"
	"time"
)

// Message type constants
const (
	// Client -> Server
	MessageTypeLoginRequest    = "LOGIN_REQUEST"
	MessageTypeRegisterRequest = "REGISTER_REQUEST"
	MessageTypeReconnect       = "RECONNECT"
	MessageTypeReady           = "READY"
	MessageTypeJoinRoom        = "JOIN_ROOM"
	MessageTypeLeaveRoom       = "LEAVE_ROOM"
	MessageTypeListRooms       = "LIST_ROOMS"
	MessageTypeSendMessage     = "SEND_MESSAGE"
	MessageTypeListCurRoom     = "LIST_CUR_ROOM"
	MessageTypeListCmds        = "LIST_CMDS"
	MessageTypeQuit            = "QUIT"
	MessageTypeHeartbeat       = "HEARTBEAT"

	// Server -> Client
	MessageTypeLoginResponse     = "LOGIN_RESPONSE"
	MessageTypeRegisterResponse  = "REGISTER_RESPONSE"
	MessageTypeReconnectResponse = "RECONNECT_RESPONSE"
	MessageTypeWelcome           = "WELCOME"
	MessageTypeRoomJoined        = "ROOM_JOINED"
	MessageTypeRoomLeft          = "ROOM_LEFT"
	MessageTypeRoomList          = "ROOM_LIST"
	MessageTypeRoom              = "ROOM"
	MessageTypeCmds              = "CMDS"
	MessageTypeUserJoined        = "USER_JOINED"
	MessageTypeUserLeft          = "USER_LEFT"
	MessageTypeMessageReceived   = "MESSAGE_RECEIVED"
	MessageTypeError             = "ERROR"
	MessageTypeHeartbeatAck      = "HEARTBEAT_ACK"
)

// Message is the wire envelope. Field presence is type-dependent; absent
// fields are omitted from the encoded frame.
type Message struct {
	Type      string            `json:"type"`
	Username  string            `json:"username,omitempty"`
	Password  string            `json:"password,omitempty"`
	Token     string            `json:"token,omitempty"`
	RoomName  string            `json:"roomName,omitempty"`
	Content   string            `json:"content,omitempty"`
	Sender    string            `json:"sender,omitempty"`
	Text      string            `json:"message,omitempty"`
	Success   *bool             `json:"success,omitempty"`
	IsAIRoom  *bool             `json:"isAiRoom,omitempty"`
	Rooms     []string          `json:"rooms,omitempty"`
	Commands  map[string]string `json:"commands,omitempty"`
	Timestamp string            `json:"timestamp,omitempty"`
}

// Encode serializes the message to a single JSON line without the
// trailing newline.
func (m *Message) Encode() ([]byte, error) {
	return json.Marshal(m)
}

// ParseMessage parses a single frame.
func ParseMessage(line []byte) (*Message, error) {
	var msg Message
	if err := json.Unmarshal(line, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}

// Now returns the timestamp format used on the wire.
func Now() string {
	return time.Now().UTC().Format(time.RFC3339)
}

func boolPtr(b bool) *bool { return &b }

// NewLoginRequest builds a LOGIN_REQUEST frame.
func NewLoginRequest(username, password string) *Message {
	return &Message{Type: MessageTypeLoginRequest, Username: username, Password: password}
}

// NewRegisterRequest builds a REGISTER_REQUEST frame.
func NewRegisterRequest(username, password string) *Message {
	return &Message{Type: MessageTypeRegisterRequest, Username: username, Password: password}
}

// NewReconnect builds a RECONNECT frame. roomName may be empty when the
// client was not in a room when the connection dropped.
func NewReconnect(username, token, roomName string) *Message {
	return &Message{Type: MessageTypeReconnect, Username: username, Token: token, RoomName: roomName}
}

// NewReady builds the READY confirmation sent after a successful login or
// register response.
func NewReady() *Message {
	return &Message{Type: MessageTypeReady}
}

// NewLoginResponse builds a LOGIN_RESPONSE frame. On success the text
// carries the issued token, on failure the rejection reason.
func NewLoginResponse(success bool, text string) *Message {
	return &Message{Type: MessageTypeLoginResponse, Success: boolPtr(success), Text: text}
}

// NewRegisterResponse builds a REGISTER_RESPONSE frame with the same
// text semantics as NewLoginResponse.
func NewRegisterResponse(success bool, text string) *Message {
	return &Message{Type: MessageTypeRegisterResponse, Success: boolPtr(success), Text: text}
}

// NewReconnectResponse builds a RECONNECT_RESPONSE frame.
func NewReconnectResponse(success bool) *Message {
	return &Message{Type: MessageTypeReconnectResponse, Success: boolPtr(success)}
}

// NewWelcome builds the WELCOME frame sent after admission.
func NewWelcome(username string) *Message {
	return &Message{Type: MessageTypeWelcome, Text: "Welcome to the chat, " + username + "!"}
}

// NewChatMessage builds a MESSAGE_RECEIVED broadcast frame.
func NewChatMessage(roomName, sender, content string) *Message {
	return &Message{
		Type:      MessageTypeMessageReceived,
		RoomName:  roomName,
		Sender:    sender,
		Content:   content,
		Timestamp: Now(),
	}
}

// NewUserJoined builds a USER_JOINED membership broadcast.
func NewUserJoined(roomName, username string) *Message {
	return &Message{
		Type:      MessageTypeUserJoined,
		RoomName:  roomName,
		Username:  username,
		Timestamp: Now(),
	}
}

// NewUserLeft builds a USER_LEFT membership broadcast.
func NewUserLeft(roomName, username string) *Message {
	return &Message{
		Type:      MessageTypeUserLeft,
		RoomName:  roomName,
		Username:  username,
		Timestamp: Now(),
	}
}

// NewRoomJoined builds the join confirmation sent to the joining client.
func NewRoomJoined(roomName string, isAIRoom bool) *Message {
	return &Message{Type: MessageTypeRoomJoined, RoomName: roomName, IsAIRoom: boolPtr(isAIRoom)}
}

// NewRoomLeft builds the leave confirmation.
func NewRoomLeft(roomName string) *Message {
	return &Message{Type: MessageTypeRoomLeft, RoomName: roomName}
}

// NewRoomList builds the ROOM_LIST reply.
func NewRoomList(rooms []string) *Message {
	return &Message{Type: MessageTypeRoomList, Rooms: rooms}
}

// NewCurrentRoom builds the ROOM reply. roomName is empty when the client
// is not in a room.
func NewCurrentRoom(roomName string) *Message {
	return &Message{Type: MessageTypeRoom, RoomName: roomName}
}

// NewCmds builds the CMDS reply carrying the static command catalogue.
func NewCmds(commands map[string]string) *Message {
	return &Message{Type: MessageTypeCmds, Commands: commands}
}

// NewError builds an ERROR frame.
func NewError(text string) *Message {
	return &Message{Type: MessageTypeError, Text: text}
}

// NewHeartbeat builds a HEARTBEAT probe.
func NewHeartbeat() *Message {
	return &Message{Type: MessageTypeHeartbeat}
}

// NewHeartbeatAck builds the HEARTBEAT_ACK reply.
func NewHeartbeatAck() *Message {
	return &Message{Type: MessageTypeHeartbeatAck}
}

// NewQuit builds a QUIT frame.
func NewQuit() *Message {
	return &Message{Type: MessageTypeQuit}
}
