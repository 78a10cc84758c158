// Package auth holds the credential store backends and the token-based
// session registry the connection handlers authenticate against.
package auth

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"

	"github.com/codefionn/chatrelay/internal/logger"
)

// CredentialStore is the lookup/append interface the connection handlers
// consume. Implementations only ever see irreversible digests.
type CredentialStore interface {
	// Exists reports whether a credential entry exists for the username.
	Exists(username string) (bool, error)

	// Verify checks the password against the stored credential.
	Verify(username, password string) (bool, error)

	// Store persists a new credential. It does not overwrite existing
	// entries; callers must check Exists first.
	Store(username, password string) error

	// Close releases any resources held by the store.
	Close() error
}

// FileStore keeps credentials in a plain text file, one
// "usernameHash:passwordHash" entry per line. The file is mirrored into an
// in-memory map, which an fsnotify watcher reloads when the file is edited
// outside the process.
type FileStore struct {
	path   string
	hasher *PasswordHasher

	mu      sync.RWMutex
	entries map[string]string // usernameKey -> bcrypt hash

	watcher  *fsnotify.Watcher
	stopOnce sync.Once
	stopChan chan struct{}
}

// NewFileStore opens (creating if necessary) the credential file at path
// and starts watching it for external changes.
func NewFileStore(path string) (*FileStore, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create credential directory: %w", err)
	}

	f, err := os.OpenFile(path, os.O_CREATE|os.O_RDONLY, 0600)
	if err != nil {
		return nil, fmt.Errorf("failed to open credential file %s: %w", path, err)
	}
	f.Close()

	s := &FileStore{
		path:     path,
		hasher:   NewPasswordHasher(),
		entries:  make(map[string]string),
		stopChan: make(chan struct{}),
	}

	if err := s.reload(); err != nil {
		return nil, err
	}

	// Watch failures degrade to a static snapshot; the store still works.
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		logger.Warn("Credential file watcher unavailable: %v", err)
		return s, nil
	}
	if err := watcher.Add(path); err != nil {
		logger.Warn("Failed to watch credential file %s: %v", path, err)
		watcher.Close()
		return s, nil
	}
	s.watcher = watcher
	go s.watchLoop()

	return s, nil
}

func (s *FileStore) watchLoop() {
	for {
		select {
		case <-s.stopChan:
			return
		case event, ok := <-s.watcher.Events:
			if !ok {
				return
			}
			if event.Op&(fsnotify.Write|fsnotify.Create) != 0 {
				if err := s.reload(); err != nil {
					logger.Error("Failed to reload credential file: %v", err)
				} else {
					logger.Info("Credential file reloaded after external change")
				}
			}
		case err, ok := <-s.watcher.Errors:
			if !ok {
				return
			}
			logger.Warn("Credential file watcher error: %v", err)
		}
	}
}

func (s *FileStore) reload() error {
	f, err := os.Open(s.path)
	if err != nil {
		return fmt.Errorf("failed to read credential file %s: %w", s.path, err)
	}
	defer f.Close()

	entries := make(map[string]string)
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		parts := strings.SplitN(line, ":", 2)
		if len(parts) != 2 {
			continue
		}
		entries[parts[0]] = parts[1]
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("failed to scan credential file %s: %w", s.path, err)
	}

	s.mu.Lock()
	s.entries = entries
	s.mu.Unlock()
	return nil
}

// Exists reports whether the username has an entry.
func (s *FileStore) Exists(username string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.entries[usernameKey(username)]
	return ok, nil
}

// Verify checks the password against the stored bcrypt hash.
func (s *FileStore) Verify(username, password string) (bool, error) {
	s.mu.RLock()
	hash, ok := s.entries[usernameKey(username)]
	s.mu.RUnlock()
	if !ok {
		return false, nil
	}
	return s.hasher.Verify(password, hash), nil
}

// Store appends a new credential entry and updates the in-memory mirror.
func (s *FileStore) Store(username, password string) error {
	hash, err := s.hasher.Hash(password)
	if err != nil {
		return fmt.Errorf("failed to hash password: %w", err)
	}
	key := usernameKey(username)

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.entries[key]; ok {
		return fmt.Errorf("credential entry already exists")
	}

	f, err := os.OpenFile(s.path, os.O_APPEND|os.O_WRONLY, 0600)
	if err != nil {
		return fmt.Errorf("failed to open credential file for append: %w", err)
	}
	defer f.Close()

	if _, err := fmt.Fprintf(f, "%s:%s\n", key, hash); err != nil {
		return fmt.Errorf("failed to append credential entry: %w", err)
	}

	s.entries[key] = hash
	return nil
}

// Close stops the file watcher.
func (s *FileStore) Close() error {
	s.stopOnce.Do(func() {
		close(s.stopChan)
		if s.watcher != nil {
			s.watcher.Close()
		}
	})
	return nil
}
