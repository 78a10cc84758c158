package auth

import (
	"sync"

	"github.com/google/uuid"
)

// TokenRegistry maps usernames to their single live session token. A new
// login silently supersedes any previous token for the same username;
// reconnection must present the exact (username, token) pair.
type TokenRegistry struct {
	mu     sync.RWMutex
	tokens map[string]string
}

// NewTokenRegistry creates an empty registry.
func NewTokenRegistry() *TokenRegistry {
	return &TokenRegistry{tokens: make(map[string]string)}
}

// CreateToken issues a fresh opaque token for the username, overwriting
// any previous value.
func (r *TokenRegistry) CreateToken(username string) string {
	token := uuid.NewString()
	r.mu.Lock()
	r.tokens[username] = token
	r.mu.Unlock()
	return token
}

// NewToken mints an opaque token without registering it. Callers bind it
// with Register once the client confirms admission.
func NewToken() string {
	return uuid.NewString()
}

// Register binds a pre-issued token to the username, overwriting any
// previous value.
func (r *TokenRegistry) Register(username, token string) {
	r.mu.Lock()
	r.tokens[username] = token
	r.mu.Unlock()
}

// IsUserLoggedIn reports whether a live token exists for the username.
func (r *TokenRegistry) IsUserLoggedIn(username string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.tokens[username]
	return ok
}

// Count returns the number of live sessions.
func (r *TokenRegistry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.tokens)
}

// ValidateToken reports whether the pair matches the live token exactly.
func (r *TokenRegistry) ValidateToken(username, token string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return token != "" && r.tokens[username] == token
}

// RemoveToken revokes the username's token. Safe to call when no token
// exists; disconnection cleanup is unconditional.
func (r *TokenRegistry) RemoveToken(username string) {
	r.mu.Lock()
	delete(r.tokens, username)
	r.mu.Unlock()
}

// Release revokes the username's token only if it still matches. A session
// superseded by a newer login must not revoke the newer token during its
// own cleanup.
func (r *TokenRegistry) Release(username, token string) {
	r.mu.Lock()
	if r.tokens[username] == token {
		delete(r.tokens, username)
	}
	r.mu.Unlock()
}
