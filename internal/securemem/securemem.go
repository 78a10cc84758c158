// Package securemem keeps credentials out of plain process memory. API keys
// and typed passwords live in memguard-locked buffers so they do not end up
// in swap or core dumps.
package securemem

import (
	"crypto/subtle"

	"github.com/awnumar/memguard"
)

// Secret holds one sensitive string in locked memory.
type Secret struct {
	buf *memguard.LockedBuffer
}

// NewSecret seals plaintext into locked memory. An empty plaintext yields
// an empty secret.
func NewSecret(plaintext string) *Secret {
	if plaintext == "" {
		return &Secret{}
	}
	return &Secret{buf: memguard.NewBufferFromBytes([]byte(plaintext))}
}

// SealBytes seals data into locked memory. memguard wipes the input slice.
func SealBytes(data []byte) *Secret {
	if len(data) == 0 {
		return &Secret{}
	}
	return &Secret{buf: memguard.NewBufferFromBytes(data)}
}

// IsEmpty reports whether the secret holds no data.
func (s *Secret) IsEmpty() bool {
	return s == nil || s.buf == nil || len(s.buf.Bytes()) == 0
}

// Reveal calls fn with the plaintext. fn must not retain the string beyond
// the call.
func (s *Secret) Reveal(fn func(plaintext string)) {
	if s.IsEmpty() {
		fn("")
		return
	}
	fn(string(s.buf.Bytes()))
}

// Equal compares the secret with plaintext in constant time.
func (s *Secret) Equal(plaintext string) bool {
	if s.IsEmpty() {
		return plaintext == ""
	}
	return subtle.ConstantTimeCompare(s.buf.Bytes(), []byte(plaintext)) == 1
}

// Destroy wipes the secret. The secret must not be used afterwards.
func (s *Secret) Destroy() {
	if s != nil && s.buf != nil {
		s.buf.Destroy()
		s.buf = nil
	}
}
