package auth

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestSQLiteStore(t *testing.T) *SQLiteStore {
	t.Helper()

	path := filepath.Join(t.TempDir(), "users.db")
	s, err := NewSQLiteStore(path)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestSQLiteStoreStoreAndVerify(t *testing.T) {
	s := newTestSQLiteStore(t)

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

func TestSQLiteStoreUnknownUser(t *testing.T) {
	s := newTestSQLiteStore(t)

	exists, err := s.Exists("nobody")
	require.NoError(t, err)
	assert.False(t, exists)

	ok, err := s.Verify("nobody", "anything")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestSQLiteStoreRejectsDuplicateEntry(t *testing.T) {
	s := newTestSQLiteStore(t)

	require.NoError(t, s.Store("alice", "secret"))
	assert.Error(t, s.Store("alice", "other"))
}

func TestSQLiteStoreSurvivesReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "users.db")

	s1, err := NewSQLiteStore(path)
	require.NoError(t, err)
	require.NoError(t, s1.Store("alice", "secret"))
	require.NoError(t, s1.Close())

	s2, err := NewSQLiteStore(path)
	require.NoError(t, err)
	defer s2.Close()

	ok, err := s2.Verify("alice", "secret")
	require.NoError(t, err)
	assert.True(t, ok)
}
