package auth

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestFileStore(t *testing.T) *FileStore {
	t.Helper()

	path := filepath.Join(t.TempDir(), "users.txt")
	s, err := NewFileStore(path)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestFileStoreStoreAndVerify(t *testing.T) {
	s := newTestFileStore(t)

	require.NoError(t, s.Store("alice", "secret"))

	exists, err := s.Exists("alice")
	require.NoError(t, err)
	assert.True(t, exists)

	ok, err := s.Verify("alice", "secret")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = s.Verify("alice", "wrong")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestFileStoreUnknownUser(t *testing.T) {
	s := newTestFileStore(t)

	exists, err := s.Exists("nobody")
	require.NoError(t, err)
	assert.False(t, exists)

	ok, err := s.Verify("nobody", "anything")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestFileStoreRejectsDuplicateEntry(t *testing.T) {
	s := newTestFileStore(t)

	require.NoError(t, s.Store("alice", "secret"))
	assert.Error(t, s.Store("alice", "other"))
}

func TestFileStoreNeverWritesPlainCredentials(t *testing.T) {
	s := newTestFileStore(t)
	require.NoError(t, s.Store("alice", "secret"))

	data, err := os.ReadFile(s.path)
	require.NoError(t, err)

	content := string(data)
	assert.NotContains(t, content, "alice")
	assert.NotContains(t, content, "secret")
	assert.Contains(t, content, ":")
}

func TestFileStoreSurvivesRestart(t *testing.T) {
	path := filepath.Join(t.TempDir(), "users.txt")

	s1, err := NewFileStore(path)
	require.NoError(t, err)
	require.NoError(t, s1.Store("alice", "secret"))
	require.NoError(t, s1.Close())

	s2, err := NewFileStore(path)
	require.NoError(t, err)
	defer s2.Close()

	ok, err := s2.Verify("alice", "secret")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestFileStoreReloadPicksUpExternalEdit(t *testing.T) {
	s := newTestFileStore(t)

	// Append an entry behind the store's back, the way an operator with a
	// hashing tool would.
	hasher := NewPasswordHasher()
	hash, err := hasher.Hash("hunter2")
	require.NoError(t, err)

	f, err := os.OpenFile(s.path, os.O_APPEND|os.O_WRONLY, 0600)
	require.NoError(t, err)
	_, err = fmt.Fprintf(f, "%s:%s\n", usernameKey("bob"), hash)
	require.NoError(t, err)
	require.NoError(t, f.Close())

	require.NoError(t, s.reload())

	ok, err := s.Verify("bob", "hunter2")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestFileStoreReloadSkipsGarbageLines(t *testing.T) {
	s := newTestFileStore(t)
	require.NoError(t, s.Store("alice", "secret"))

	data, err := os.ReadFile(s.path)
	require.NoError(t, err)
	corrupted := "not a valid line\n\n" + string(data)
	require.NoError(t, os.WriteFile(s.path, []byte(corrupted), 0600))

	require.NoError(t, s.reload())

	ok, err := s.Verify("alice", "secret")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestPasswordHasherRoundTrip(t *testing.T) {
	h := NewPasswordHasher()

	hash, err := h.Hash("pa55word")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(hash, "$2"))

	assert.True(t, h.Verify("pa55word", hash))
	assert.False(t, h.Verify("password", hash))
}

func TestUsernameKeyIsStableAndOpaque(t *testing.T) {
	k1 := usernameKey("alice")
	k2 := usernameKey("alice")
	assert.Equal(t, k1, k2)
	assert.NotEqual(t, k1, usernameKey("bob"))
	assert.Len(t, k1, 64)
	assert.NotContains(t, k1, "alice")
}
