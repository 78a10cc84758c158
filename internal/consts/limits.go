package consts

import "time"

// Protocol limits
const (
	// TranscriptLimit is the maximum number of entries an AI room keeps for
	// building completion prompts. Oldest entries are evicted first.
	TranscriptLimit = 20

	// MaxReconnectAttempts is how often a client retries after losing its
	// connection before giving up for good.
	MaxReconnectAttempts = 5

	// DefaultMaxConnections caps concurrently accepted client sockets.
	DefaultMaxConnections = 256
)

// Timeouts and intervals for connection handling
const (
	// AuthWaitTimeout bounds how long a client blocks waiting for a
	// login, register or reconnect response.
	AuthWaitTimeout = 5 * time.Second

	// HeartbeatInterval is the period between client heartbeat frames.
	HeartbeatInterval = 10 * time.Second

	// HeartbeatTimeout is the client's socket read deadline. Twice the
	// heartbeat interval, so one lost ack does not kill the connection.
	HeartbeatTimeout = 20 * time.Second

	// ReconnectDelay is the fixed backoff between reconnection attempts.
	ReconnectDelay = 10 * time.Second

	// JoinAdvisoryDelay delays the room-name collision notice so it lands
	// after the join confirmation.
	JoinAdvisoryDelay = 500 * time.Millisecond

	// BotWelcomeDelay delays the AI room greeting until the joining client
	// has processed its join confirmation.
	BotWelcomeDelay = time.Second

	// CompletionTimeout bounds a single text-generation request.
	CompletionTimeout = 2 * time.Minute

	// AvailabilityTimeout bounds the completion service liveness probe.
	AvailabilityTimeout = 5 * time.Second

	// WriteTimeout bounds a single frame write on a client socket.
	WriteTimeout = 10 * time.Second
)
