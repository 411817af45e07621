// Package storage persists the access token between runs.
//
// Every backend holds a single key. An absent key means the user is signed
// out; a present key says nothing about whether the server still accepts it.
package storage

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/fentz26/taskdeck/internal/models"
)

// AccessTokenKey is the storage key the token is kept under.
const AccessTokenKey = "access-token"

// ErrUnknownBackend is returned by Open for an unsupported backend name.
var ErrUnknownBackend = errors.New("unknown storage backend")

// TokenStore persists the access token.
type TokenStore interface {
	// Get returns the stored token, or nil when none is stored.
	Get() (*models.AccessToken, error)
	// Set replaces the stored token.
	Set(tok models.AccessToken) error
	// Remove deletes the stored token. Removing an absent token is not an error.
	Remove() error
}

// Open returns the TokenStore for backend rooted at dir.
func Open(backend, dir string) (TokenStore, error) {
	switch backend {
	case "", "file":
		return NewFileStore(dir)
	case "sqlite":
		return NewSQLiteStore(filepath.Join(dir, "taskdeck.db"))
	case "memory":
		return NewMemoryStore(), nil
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownBackend, backend)
	}
}

// FileStore keeps the token as JSON in <dir>/access-token.json.
type FileStore struct {
	dir string
	mu  sync.RWMutex
}

// NewFileStore creates the directory if needed.
func NewFileStore(dir string) (*FileStore, error) {
	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil, fmt.Errorf("failed to create config directory: %w", err)
	}
	return &FileStore{dir: dir}, nil
}

// Path returns the file the token is written to.
func (s *FileStore) Path() string {
	return filepath.Join(s.dir, AccessTokenKey+".json")
}

// Get implements TokenStore.
func (s *FileStore) Get() (*models.AccessToken, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	data, err := os.ReadFile(s.Path())
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read access token: %w", err)
	}
	return decode(data)
}

// Set implements TokenStore.
func (s *FileStore) Set(tok models.AccessToken) error {
	data, err := json.MarshalIndent(tok, "", "  ")
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if err := os.WriteFile(s.Path(), data, 0600); err != nil {
		return fmt.Errorf("write access token: %w", err)
	}
	return nil
}

// Remove implements TokenStore.
func (s *FileStore) Remove() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.Remove(s.Path()); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("failed to remove access token: %w", err)
	}
	return nil
}

// MemoryStore keeps the token in process memory.
type MemoryStore struct {
	mu  sync.RWMutex
	tok *models.AccessToken
}

// NewMemoryStore returns an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

// Get implements TokenStore.
func (s *MemoryStore) Get() (*models.AccessToken, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.tok == nil {
		return nil, nil
	}
	tok := *s.tok
	return &tok, nil
}

// Set implements TokenStore.
func (s *MemoryStore) Set(tok models.AccessToken) error {
	s.mu.Lock()
	s.tok = &tok
	s.mu.Unlock()
	return nil
}

// Remove implements TokenStore.
func (s *MemoryStore) Remove() error {
	s.mu.Lock()
	s.tok = nil
	s.mu.Unlock()
	return nil
}

func decode(data []byte) (*models.AccessToken, error) {
	var tok models.AccessToken
	if err := json.Unmarshal(data, &tok); err != nil {
		return nil, fmt.Errorf("decode access token: %w", err)
	}
	return &tok, nil
}
