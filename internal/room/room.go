// Package room implements the named broadcast groups chat clients join,
// including the AI-augmented variant, and the registry that owns them.
package room

import (
	"sync"

	"github.com/codefionn/chatrelay/internal/protocol"
)

// Member is the connection handle a room fans messages out to. Deliver must
// be safe for concurrent use and must not block for long; the server side
// backs it with a buffered per-connection send queue.
type Member interface {
	Username() string
	Deliver(msg *protocol.Message)
}

// Broadcaster is the common surface of normal and AI rooms.
type Broadcaster interface {
	Name() string
	IsAIRoom() bool
	MemberCount() int

	// AddMember admits the member and, unless silent, announces it to the
	// current membership.
	AddMember(m Member, silent bool)

	// RemoveMember drops the member and announces the departure to the
	// remaining membership.
	RemoveMember(m Member)

	// Broadcast fans a chat message from sender out to every current
	// member, including the sender.
	Broadcast(content string, sender Member)
}

// Room is a named broadcast group. The membership set is guarded by a
// single lock which also serializes broadcasts, so every member observes
// the same per-room message order.
type Room struct {
	name string

	mu      sync.Mutex
	members map[Member]struct{}
}

// NewRoom creates an empty room.
func NewRoom(name string) *Room {
	return &Room{
		name:    name,
		members: make(map[Member]struct{}),
	}
}

// Name returns the room's unique, case-sensitive name.
func (r *Room) Name() string {
	return r.name
}

// IsAIRoom reports whether the room has an automated participant.
func (r *Room) IsAIRoom() bool {
	return false
}

// MemberCount returns the current membership size.
func (r *Room) MemberCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.members)
}

// AddMember admits the member. Joining twice is a no-op for the set; the
// join announcement is suppressed when silent (reconnection rejoin).
func (r *Room) AddMember(m Member, silent bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.members[m] = struct{}{}
	if !silent {
		r.deliverLocked(protocol.NewUserJoined(r.name, m.Username()))
	}
}

// RemoveMember drops the member and announces the departure. Safe to call
// for members that already left; cleanup is unconditional.
func (r *Room) RemoveMember(m Member) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.members[m]; !ok {
		return
	}
	delete(r.members, m)
	r.deliverLocked(protocol.NewUserLeft(r.name, m.Username()))
}

// Broadcast fans a chat message out to the membership snapshot at call
// time, including the sender (echo).
func (r *Room) Broadcast(content string, sender Member) {
	msg := protocol.NewChatMessage(r.name, sender.Username(), content)
	r.mu.Lock()
	r.deliverLocked(msg)
	r.mu.Unlock()
}

// BroadcastFrame fans an arbitrary frame out to every current member.
// Used for bot messages and system notices.
func (r *Room) BroadcastFrame(msg *protocol.Message) {
	r.mu.Lock()
	r.deliverLocked(msg)
	r.mu.Unlock()
}

// deliverLocked writes the frame to every current member. Callers hold the
// membership lock; Deliver only enqueues, so the hold time stays bounded.
func (r *Room) deliverLocked(msg *protocol.Message) {
	for m := range r.members {
		m.Deliver(msg)
	}
}
