// Package session holds the authenticated session for the console client:
// a durable store that survives process restarts and a controller that
// orchestrates login, logout, self-expiry, and reaction to credential
// rejection broadcasts.
package session

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/opsdeck/opsdeck/pkg/api"
)

// Storage keys. The store persists exactly two entries: the bearer token and
// the serialized user.
const (
	keyToken = "token"
	keyUser  = "user"
)

// DefaultStoreFile is the default name of the session file.
const DefaultStoreFile = "session.yaml"

// Session is the authenticated state: a bearer token, the user it belongs
// to, and the expiry derived from the token's claim. Present if and only if
// a non-expired token exists in the store.
type Session struct {
	Token     string
	User      api.User
	ExpiresAt time.Time
}

// Store persists session state as key-value pairs in a yaml file so a
// session survives process restarts. Reads always reflect the last completed
// write; writes are last-writer-wins.
type Store struct {
	mu   sync.Mutex
	path string
}

// DefaultStorePath returns the default session file location under the
// OS-specific user config directory.
func DefaultStorePath() (string, error) {
	configDir, err := os.UserConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(configDir, "opsdeck", DefaultStoreFile), nil
}

// NewStore creates a store backed by the given file path. The file is
// created on first write.
func NewStore(path string) *Store {
	return &Store{path: path}
}

// GetItem returns the stored value for key, if present.
func (s *Store) GetItem(key string) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	items := s.load()
	v, ok := items[key]
	return v, ok
}

// SetItem stores value under key.
func (s *Store) SetItem(key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	items := s.load()
	items[key] = value
	return s.save(items)
}

// RemoveItem deletes key from the store. Removing an absent key is a no-op.
func (s *Store) RemoveItem(key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	items := s.load()
	if _, ok := items[key]; !ok {
		return nil
	}
	delete(items, key)
	return s.save(items)
}

// Get returns the persisted session, validating expiry on the way out. The
// token's expiry claim is decoded without signature verification; a token
// expiring at or before now, or one that cannot be decoded, is treated as
// absent and actively purged from storage.
func (s *Store) Get() (*Session, bool) {
	token, ok := s.GetItem(keyToken)
	if !ok || token == "" {
		return nil, false
	}

	expiry, err := TokenExpiry(token)
	if err != nil || expired(expiry, time.Now()) {
		_ = s.Clear()
		return nil, false
	}

	var user api.User
	if raw, ok := s.GetItem(keyUser); ok && raw != "" {
		// A damaged user record does not invalidate the token.
		_ = json.Unmarshal([]byte(raw), &user)
	}

	return &Session{Token: token, User: user, ExpiresAt: expiry}, true
}

// Set persists the session.
func (s *Store) Set(sess *Session) error {
	rawUser, err := json.Marshal(sess.User)
	if err != nil {
		return ErrSessionPersist.Err(err)
	}
	if err := s.SetItem(keyToken, sess.Token); err != nil {
		return ErrSessionPersist.Err(err)
	}
	if err := s.SetItem(keyUser, string(rawUser)); err != nil {
		return ErrSessionPersist.Err(err)
	}
	return nil
}

// Clear removes all session state. Clearing an already-empty store is a no-op.
func (s *Store) Clear() error {
	if err := s.RemoveItem(keyToken); err != nil {
		return err
	}
	return s.RemoveItem(keyUser)
}

// Token returns the current unexpired bearer token. This read is synchronous
// and side-effect free so the request pipeline can snapshot it per call
// without triggering a purge.
func (s *Store) Token() (string, bool) {
	token, ok := s.GetItem(keyToken)
	if !ok || token == "" {
		return "", false
	}
	expiry, err := TokenExpiry(token)
	if err != nil || expired(expiry, time.Now()) {
		return "", false
	}
	return token, true
}

// load reads the key-value file. Missing or unreadable files yield an empty
// map; the store treats them as empty, not as errors.
func (s *Store) load() map[string]string {
	items := map[string]string{}
	raw, err := os.ReadFile(s.path)
	if err != nil {
		return items
	}
	if err := yaml.Unmarshal(raw, &items); err != nil {
		return map[string]string{}
	}
	return items
}

// save writes the key-value file with owner-only permissions.
func (s *Store) save(items map[string]string) error {
	if err := os.MkdirAll(filepath.Dir(s.path), os.ModePerm); err != nil {
		return err
	}
	raw, err := yaml.Marshal(items)
	if err != nil {
		return err
	}
	return os.WriteFile(s.path, raw, os.FileMode(0600))
}
