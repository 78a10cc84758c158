package pidfile

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriteAndRead(t *testing.T) {
	p := New(filepath.Join(t.TempDir(), "run", "server.pid"))
	require.NoError(t, p.Write())
	defer p.Remove()

	pid, err := p.Read()
	require.NoError(t, err)
	assert.Equal(t, os.Getpid(), pid)
}

func TestWriteRefusesLivePid(t *testing.T) {
	path := filepath.Join(t.TempDir(), "server.pid")
	// Our own PID is definitely alive.
	require.NoError(t, New(path).Write())

	err := New(path).Write()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "held by running process")
}

func TestWriteOverwritesStalePid(t *testing.T) {
	path := filepath.Join(t.TempDir(), "server.pid")
	require.NoError(t, os.WriteFile(path, []byte("999999999"), 0644))

	p := New(path)
	require.NoError(t, p.Write())

	pid, err := p.Read()
	require.NoError(t, err)
	assert.Equal(t, os.Getpid(), pid)
}

func TestRemoveMissingIsNoError(t *testing.T) {
	p := New(filepath.Join(t.TempDir(), "absent.pid"))
	assert.NoError(t, p.Remove())
}

func TestReadGarbage(t *testing.T) {
	path := filepath.Join(t.TempDir(), "server.pid")
	require.NoError(t, os.WriteFile(path, []byte("not a pid"), 0644))

	_, err := New(path).Read()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid PID")
}
