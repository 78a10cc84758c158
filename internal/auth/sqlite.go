package auth

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "github.com/mattn/go-sqlite3"
)

// SQLiteStore keeps credentials in a SQLite database. Useful when the user
// base outgrows the append-only text file.
type SQLiteStore struct {
	db     *sql.DB
	hasher *PasswordHasher
}

// NewSQLiteStore opens (creating if necessary) the credential database.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create credential directory: %w", err)
	}

	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open credential database %s: %w", path, err)
	}

	const schema = `CREATE TABLE IF NOT EXISTS credentials (
		username_hash TEXT PRIMARY KEY,
		password_hash TEXT NOT NULL
	)`
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create credential schema: %w", err)
	}

	return &SQLiteStore{db: db, hasher: NewPasswordHasher()}, nil
}

// Exists reports whether the username has an entry.
func (s *SQLiteStore) Exists(username string) (bool, error) {
	var one int
	err := s.db.QueryRow(
		"SELECT 1 FROM credentials WHERE username_hash = ?", usernameKey(username),
	).Scan(&one)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("credential lookup failed: %w", err)
	}
	return true, nil
}

// Verify checks the password against the stored bcrypt hash.
func (s *SQLiteStore) Verify(username, password string) (bool, error) {
	var hash string
	err := s.db.QueryRow(
		"SELECT password_hash FROM credentials WHERE username_hash = ?", usernameKey(username),
	).Scan(&hash)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("credential lookup failed: %w", err)
	}
	return s.hasher.Verify(password, hash), nil
}

// Store persists a new credential entry.
func (s *SQLiteStore) Store(username, password string) error {
	hash, err := s.hasher.Hash(password)
	if err != nil {
		return fmt.Errorf("failed to hash password: %w", err)
	}
	_, err = s.db.Exec(
		"INSERT INTO credentials (username_hash, password_hash) VALUES (?, ?)",
		usernameKey(username), hash,
	)
	if err != nil {
		return fmt.Errorf("failed to store credential: %w", err)
	}
	return nil
}

// Close closes the underlying database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
