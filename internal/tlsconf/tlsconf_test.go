package tlsconf

import (
	"crypto/tls"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestServerRequiresBothFiles(t *testing.T) {
	_, err := Server("", "key.pem")
	require.Error(t, err)

	_, err = Server("cert.pem", "")
	require.Error(t, err)
}

func TestServerMissingFilesFail(t *testing.T) {
	dir := t.TempDir()
	_, err := Server(filepath.Join(dir, "cert.pem"), filepath.Join(dir, "key.pem"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to load key pair")
}

func TestClientInsecure(t *testing.T) {
	cfg, err := Client("", true)
	require.NoError(t, err)
	assert.True(t, cfg.InsecureSkipVerify)
	assert.Equal(t, uint16(tls.VersionTLS12), cfg.MinVersion)
}

func TestClientSystemRoots(t *testing.T) {
	cfg, err := Client("", false)
	require.NoError(t, err)
	assert.False(t, cfg.InsecureSkipVerify)
	assert.Nil(t, cfg.RootCAs)
}

func TestClientRejectsGarbageCA(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ca.pem")
	require.NoError(t, os.WriteFile(path, []byte("not a certificate"), 0600))

	_, err := Client(path, false)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no certificates found")
}

func TestClientMissingCAFile(t *testing.T) {
	_, err := Client(filepath.Join(t.TempDir(), "absent.pem"), false)
	require.Error(t, err)
}
