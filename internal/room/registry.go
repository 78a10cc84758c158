package room

import (
	"sort"
	"sync"

	"github.com/codefionn/chatrelay/internal/llm"
	"github.com/codefionn/chatrelay/internal/logger"
)

// Registry maps room names to rooms. A single lock guards every
// create/lookup/replace decision so "create if absent" and "replace an
// empty normal room with an AI room" stay atomic. The lock is never held
// across a broadcast.
type Registry struct {
	mu    sync.Mutex
	rooms map[string]Broadcaster
	ai    llm.Client
}

// NewRegistry creates an empty registry. ai is handed to every AI room it
// creates and may be nil (bots stay silent).
func NewRegistry(ai llm.Client) *Registry {
	return &Registry{
		rooms: make(map[string]Broadcaster),
		ai:    ai,
	}
}

// SeedDefaults registers the rooms available out of the box.
func (g *Registry) SeedDefaults() {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.rooms["parallel computation"] = NewRoom("parallel computation")
	g.rooms["distributed computation"] = NewRoom("distributed computation")
	g.rooms["AI"] = NewAIRoom("AI",
		"You are an AI assistant helping users discuss artificial intelligence topics. "+
			"Be knowledgeable but approachable in your responses.", g.ai)
}

// Get looks up a room by name.
func (g *Registry) Get(name string) (Broadcaster, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	r, ok := g.rooms[name]
	return r, ok
}

// GetOrCreate returns the room registered under name, creating a normal
// room when absent.
func (g *Registry) GetOrCreate(name string) Broadcaster {
	g.mu.Lock()
	defer g.mu.Unlock()

	if r, ok := g.rooms[name]; ok {
		return r
	}

	r := NewRoom(name)
	g.rooms[name] = r
	logger.Info("Created room %q", name)
	return r
}

// ForceCreateAIRoom replaces an empty normal room under name with a new AI
// room seeded with prompt. When the name is free it creates the AI room
// outright; when the existing room is an AI room or still has members, the
// existing room is returned unchanged.
func (g *Registry) ForceCreateAIRoom(name, prompt string) Broadcaster {
	g.mu.Lock()
	defer g.mu.Unlock()

	if existing, ok := g.rooms[name]; ok {
		if existing.IsAIRoom() || existing.MemberCount() > 0 {
			return existing
		}
		// Empty normal room: give the name to the AI room.
		delete(g.rooms, name)
		logger.Info("Replacing empty room %q with an AI room", name)
	}

	r := NewAIRoom(name, prompt, g.ai)
	g.rooms[name] = r
	logger.Info("Created AI room %q", name)
	return r
}

// Names returns the registered room names, sorted for stable replies.
func (g *Registry) Names() []string {
	g.mu.Lock()
	defer g.mu.Unlock()

	names := make([]string, 0, len(g.rooms))
	for name := range g.rooms {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Count returns the number of registered rooms.
func (g *Registry) Count() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.rooms)
}

// Snapshot returns name, kind and member count for every room, for the
// admin endpoint.
func (g *Registry) Snapshot() []RoomInfo {
	g.mu.Lock()
	rooms := make([]Broadcaster, 0, len(g.rooms))
	for _, r := range g.rooms {
		rooms = append(rooms, r)
	}
	g.mu.Unlock()

	infos := make([]RoomInfo, 0, len(rooms))
	for _, r := range rooms {
		kind := "normal"
		if r.IsAIRoom() {
			kind = "ai"
		}
		infos = append(infos, RoomInfo{
			Name:    r.Name(),
			Kind:    kind,
			Members: r.MemberCount(),
		})
	}
	sort.Slice(infos, func(i, j int) bool { return infos[i].Name < infos[j].Name })
	return infos
}

// RoomInfo describes one room for observability surfaces.
type RoomInfo struct {
	Name    string `json:"name"`
	Kind    string `json:"kind"`
	Members int    `json:"members"`
}
