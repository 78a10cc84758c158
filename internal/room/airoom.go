package room

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/codefionn/chatrelay/internal/consts"
	"github.com/codefionn/chatrelay/internal/llm"
	"github.com/codefionn/chatrelay/internal/logger"
	"github.com/codefionn/chatrelay/internal/protocol"
)

// BotName is the display name bot replies are broadcast under.
const BotName = "Bot"

// AIRoom augments a Room with an automated participant. It keeps a bounded
// transcript of the conversation and asks the completion backend for a
// reply after every broadcast. Generation is fire-and-forget: it never
// blocks the sender, and any failure only degrades to silence.
type AIRoom struct {
	*Room

	prompt string
	ai     llm.Client

	// The transcript has its own lock so appends and prompt building never
	// contend with membership changes.
	tmu        sync.Mutex
	transcript []string

	welcomeDelay time.Duration
}

// NewAIRoom creates an AI room seeded with the system prompt as the first
// transcript entry. ai may be nil, in which case the bot stays silent.
func NewAIRoom(name, prompt string, ai llm.Client) *AIRoom {
	if strings.TrimSpace(prompt) == "" {
		prompt = "You are a helpful assistant in a chat room."
	}
	return &AIRoom{
		Room:         NewRoom(name),
		prompt:       prompt,
		ai:           ai,
		transcript:   []string{"System: " + prompt},
		welcomeDelay: consts.BotWelcomeDelay,
	}
}

// IsAIRoom reports that this room has an automated participant.
func (r *AIRoom) IsAIRoom() bool {
	return true
}

// Prompt returns the room's system prompt.
func (r *AIRoom) Prompt() string {
	return r.prompt
}

// Broadcast fans the message out to the human membership, records it in
// the transcript and schedules a bot reply.
func (r *AIRoom) Broadcast(content string, sender Member) {
	r.Room.Broadcast(content, sender)

	r.appendTranscript(sender.Username() + ": " + content)

	go r.generateBotReply()
}

// AddMember admits the member and schedules a one-off bot greeting for it.
func (r *AIRoom) AddMember(m Member, silent bool) {
	r.Room.AddMember(m, silent)

	username := m.Username()
	go func() {
		time.Sleep(r.welcomeDelay)
		r.generateWelcome(username)
	}()
}

// appendTranscript appends an entry, evicting the oldest once the cap is
// reached.
func (r *AIRoom) appendTranscript(entry string) {
	r.tmu.Lock()
	defer r.tmu.Unlock()

	r.transcript = append(r.transcript, entry)
	if len(r.transcript) > consts.TranscriptLimit {
		r.transcript = r.transcript[1:]
	}
}

// transcriptLen returns the current transcript length.
func (r *AIRoom) transcriptLen() int {
	r.tmu.Lock()
	defer r.tmu.Unlock()
	return len(r.transcript)
}

// buildPrompt concatenates the transcript plus the room-scoped instruction
// into a single completion prompt.
func (r *AIRoom) buildPrompt() string {
	var sb strings.Builder

	r.tmu.Lock()
	for _, entry := range r.transcript {
		sb.WriteString(entry)
		sb.WriteByte('\n')
	}
	r.tmu.Unlock()

	sb.WriteString("\nRespond as a helpful assistant in the chat room '")
	sb.WriteString(r.name)
	sb.WriteString("'. Keep the reply concise and relevant to the conversation:")

	return sb.String()
}

// generateBotReply asks the backend for a reply to the current transcript
// and broadcasts it. Best-effort: an unavailable or failing backend means
// no bot reply this turn.
func (r *AIRoom) generateBotReply() {
	ctx := context.Background()

	if r.ai == nil || !r.ai.IsAvailable(ctx) {
		logger.Debug("Completion backend unavailable, skipping bot reply in room %s", r.name)
		return
	}

	reply, err := r.ai.Complete(ctx, r.buildPrompt())
	if err != nil {
		logger.Error("Bot reply generation failed in room %s: %v", r.name, err)
		return
	}
	if strings.TrimSpace(reply) == "" {
		return
	}

	r.appendTranscript(BotName + ": " + reply)
	r.BroadcastFrame(protocol.NewChatMessage(r.name, BotName, reply))
}

// generateWelcome broadcasts a one-off greeting addressed to a newly
// joined member. Failures are logged, never surfaced as protocol errors.
func (r *AIRoom) generateWelcome(username string) {
	ctx := context.Background()

	if r.ai == nil || !r.ai.IsAvailable(ctx) {
		r.BroadcastFrame(protocol.NewChatMessage(r.name, BotName,
			"Hello! I'm the bot for this room, but I can't reach my AI backend right now."))
		return
	}

	welcomePrompt := fmt.Sprintf(
		"A new user '%s' joined the AI chat room '%s'. "+
			"Welcome them in a friendly way and briefly explain the purpose of this room.",
		username, r.name,
	)

	reply, err := r.ai.Complete(ctx, welcomePrompt)
	if err != nil {
		logger.Error("Bot welcome generation failed in room %s: %v", r.name, err)
		return
	}
	if strings.TrimSpace(reply) == "" {
		return
	}

	r.BroadcastFrame(protocol.NewChatMessage(r.name, BotName, reply))
}
