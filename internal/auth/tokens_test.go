package auth

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTokenLifecycle(t *testing.T) {
	reg := NewTokenRegistry()

	assert.False(t, reg.IsUserLoggedIn("alice"))

	token := reg.CreateToken("alice")
	require.NotEmpty(t, token)
	assert.True(t, reg.IsUserLoggedIn("alice"))
	assert.True(t, reg.ValidateToken("alice", token))
	assert.Equal(t, 1, reg.Count())

	reg.RemoveToken("alice")
	assert.False(t, reg.IsUserLoggedIn("alice"))
	assert.False(t, reg.ValidateToken("alice", token))
}

func TestValidateTokenRejectsEmptyAndForeign(t *testing.T) {
	reg := NewTokenRegistry()
	token := reg.CreateToken("alice")

	assert.False(t, reg.ValidateToken("alice", ""))
	assert.False(t, reg.ValidateToken("alice", "wrong"))
	assert.False(t, reg.ValidateToken("bob", token))
}

func TestNewLoginSupersedesOldToken(t *testing.T) {
	reg := NewTokenRegistry()

	first := reg.CreateToken("alice")
	second := reg.CreateToken("alice")
	require.NotEqual(t, first, second)

	assert.False(t, reg.ValidateToken("alice", first))
	assert.True(t, reg.ValidateToken("alice", second))
	assert.Equal(t, 1, reg.Count())
}

func TestRegisterBindsPreIssuedToken(t *testing.T) {
	reg := NewTokenRegistry()

	token := NewToken()
	assert.False(t, reg.IsUserLoggedIn("alice"))

	reg.Register("alice", token)
	assert.True(t, reg.ValidateToken("alice", token))
}

func TestReleaseOnlyRemovesMatchingToken(t *testing.T) {
	reg := NewTokenRegistry()

	stale := reg.CreateToken("alice")
	fresh := reg.CreateToken("alice")

	// The superseded session's cleanup must not revoke the fresh token.
	reg.Release("alice", stale)
	assert.True(t, reg.ValidateToken("alice", fresh))

	reg.Release("alice", fresh)
	assert.False(t, reg.IsUserLoggedIn("alice"))
}

func TestRemoveTokenIsIdempotent(t *testing.T) {
	reg := NewTokenRegistry()
	reg.RemoveToken("ghost")
	assert.False(t, reg.IsUserLoggedIn("ghost"))
}
