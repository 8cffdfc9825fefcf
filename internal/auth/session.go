package auth

import (
	"encoding/json"
	stderrors "errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"github.com/agentmitra/portalctl/internal/authz"
	"github.com/agentmitra/portalctl/internal/errors"
)

// Keys under which session values are persisted. Events carry these so
// subscribers can tell which value changed.
const (
	KeyAccessToken  = "access_token"
	KeyRefreshToken = "refresh_token"
	KeyUser         = "user"
)

// Session is the entirety of persisted client state: the token pair and the
// user object returned with it. Record data always lives on the server.
type Session struct {
	AccessToken  string      `json:"access_token"`
	RefreshToken string      `json:"refresh_token"`
	User         *authz.User `json:"user,omitempty"`
}

// Empty reports whether the session carries no access token.
func (s *Session) Empty() bool {
	return s == nil || s.AccessToken == ""
}

// SessionStore persists the session.
//
// Implementations must be safe for concurrent use. Writes are
// last-writer-wins; Clear must publish a cleared event even when nothing was
// stored so that other holders converge.
type SessionStore interface {
	// Load returns the stored session. A missing session is an empty
	// Session, not an error.
	Load() (*Session, error)

	// Save replaces the stored session.
	Save(s *Session) error

	// Clear removes the stored session.
	Clear() error
}

// FileStore keeps the session in a JSON file readable only by the owner.
type FileStore struct {
	path string
	bus  *Bus
	mu   sync.Mutex
}

// NewFileStore creates a store at path. bus may be nil.
func NewFileStore(path string, bus *Bus) *FileStore {
	return &FileStore{path: path, bus: bus}
}

// Path returns the session file location.
func (f *FileStore) Path() string {
	return f.path
}

// Load reads the session file.
func (f *FileStore) Load() (*Session, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return readSessionFile(f.path)
}

func readSessionFile(path string) (*Session, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if stderrors.Is(err, fs.ErrNotExist) {
			return &Session{}, nil
		}
		return nil, errors.Wrap(errors.ErrCodeFileReadFailed, "failed to read session", err)
	}
	if len(data) == 0 {
		return &Session{}, nil
	}

	var s Session
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, errors.NewFileUnmarshalError(path, "JSON", err).
			WithSuggestion("Run 'portalctl auth logout' to reset the session")
	}
	return &s, nil
}

// Save writes the session atomically and publishes a saved event.
func (f *FileStore) Save(s *Session) error {
	if s == nil {
		return f.Clear()
	}

	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return errors.Wrap(errors.ErrCodeFileMarshal, "failed to encode session", err)
	}

	f.mu.Lock()
	err = writeFileAtomic(f.path, data)
	f.mu.Unlock()
	if err != nil {
		return err
	}

	f.bus.Publish(Event{Kind: EventSaved, Key: KeyAccessToken, Origin: OriginLocal})
	return nil
}

// Clear deletes the session file and publishes a cleared event.
func (f *FileStore) Clear() error {
	f.mu.Lock()
	err := os.Remove(f.path)
	f.mu.Unlock()
	if err != nil && !stderrors.Is(err, fs.ErrNotExist) {
		return errors.Wrap(errors.ErrCodeFileWriteFailed, "failed to remove session", err)
	}

	f.bus.Publish(Event{Kind: EventCleared, Key: KeyAccessToken, Origin: OriginLocal})
	return nil
}

func writeFileAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return errors.Wrap(errors.ErrCodeDirectoryFailed, fmt.Sprintf("failed to create %s", dir), err)
	}

	tmp, err := os.CreateTemp(dir, ".session-*")
	if err != nil {
		return errors.Wrap(errors.ErrCodeFileWriteFailed, "failed to write session", err)
	}
	defer os.Remove(tmp.Name()) //nolint:errcheck // already renamed on success

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return errors.Wrap(errors.ErrCodeFileWriteFailed, "failed to write session", err)
	}
	if err := tmp.Chmod(0o600); err != nil {
		tmp.Close()
		return errors.Wrap(errors.ErrCodeFileWriteFailed, "failed to write session", err)
	}
	if err := tmp.Close(); err != nil {
		return errors.Wrap(errors.ErrCodeFileWriteFailed, "failed to write session", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return errors.Wrap(errors.ErrCodeFileWriteFailed, "failed to write session", err)
	}
	return nil
}

// MemoryStore keeps the session in memory. Used by the portal server when
// running without a session file, and by tests.
type MemoryStore struct {
	mu      sync.RWMutex
	session Session
	bus     *Bus
}

// NewMemoryStore creates an empty in-memory store. bus may be nil.
func NewMemoryStore(bus *Bus) *MemoryStore {
	return &MemoryStore{bus: bus}
}

// Load returns a copy of the stored session.
func (m *MemoryStore) Load() (*Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s := m.session
	return &s, nil
}

// Save replaces the stored session.
func (m *MemoryStore) Save(s *Session) error {
	if s == nil {
		return m.Clear()
	}
	m.mu.Lock()
	m.session = *s
	m.mu.Unlock()

	m.bus.Publish(Event{Kind: EventSaved, Key: KeyAccessToken, Origin: OriginLocal})
	return nil
}

// Clear empties the store.
func (m *MemoryStore) Clear() error {
	m.mu.Lock()
	m.session = Session{}
	m.mu.Unlock()

	m.bus.Publish(Event{Kind: EventCleared, Key: KeyAccessToken, Origin: OriginLocal})
	return nil
}

// UpdateTokens replaces the token pair and keeps the cached user.
func UpdateTokens(store SessionStore, access, refresh string) error {
	s, err := store.Load()
	if err != nil {
		s = &Session{}
	}
	s.AccessToken = access
	if refresh != "" {
		s.RefreshToken = refresh
	}
	return store.Save(s)
}
