package client

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"github.com/noah-isme/worksmarter/internal/models"
)

// Tokens is the persisted session.
type Tokens struct {
	Access  string           `json:"access"`
	Refresh string           `json:"refresh"`
	User    *models.UserInfo `json:"user,omitempty"`
}

// TokenStore persists tokens between CLI invocations.
type TokenStore interface {
	Load() (*Tokens, error)
	Save(tokens *Tokens) error
	Clear() error
}

// FileTokenStore keeps tokens in a JSON file readable only by the owner.
type FileTokenStore struct {
	Path string
}

// Load returns nil tokens when the file does not exist.
func (s FileTokenStore) Load() (*Tokens, error) {
	raw, err := os.ReadFile(s.Path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read session file: %w", err)
	}
	var tokens Tokens
	if err := json.Unmarshal(raw, &tokens); err != nil {
		return nil, fmt.Errorf("decode session file: %w", err)
	}
	return &tokens, nil
}

func (s FileTokenStore) Save(tokens *Tokens) error {
	raw, err := json.MarshalIndent(tokens, "", "  ")
	if err != nil {
		return fmt.Errorf("encode session: %w", err)
	}
	if dir := filepath.Dir(s.Path); dir != "." {
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return fmt.Errorf("create session dir: %w", err)
		}
	}
	return os.WriteFile(s.Path, raw, 0o600)
}

func (s FileTokenStore) Clear() error {
	if err := os.Remove(s.Path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	return nil
}

// Session owns the token lifecycle for a Client. OnUnauthorized fires once
// a refresh has failed and the session was cleared.
type Session struct {
	mu             sync.RWMutex
	tokens         *Tokens
	store          TokenStore
	OnUnauthorized func()
}

// NewSession loads any persisted tokens from store. store may be nil.
func NewSession(store TokenStore) (*Session, error) {
	s := &Session{store: store}
	if store == nil {
		return s, nil
	}
	tokens, err := store.Load()
	if err != nil {
		return nil, err
	}
	s.tokens = tokens
	return s, nil
}

// CurrentToken returns the access token, or "" when signed out.
func (s *Session) CurrentToken() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.tokens == nil {
		return ""
	}
	return s.tokens.Access
}

func (s *Session) refreshToken() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.tokens == nil {
		return ""
	}
	return s.tokens.Refresh
}

// User returns the signed-in user, if known.
func (s *Session) User() *models.UserInfo {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.tokens == nil || s.tokens.User == nil {
		return nil
	}
	u := *s.tokens.User
	return &u
}

// Set adopts a token pair. A pair without user info keeps the known user.
func (s *Session) Set(pair *models.TokenPair) error {
	s.mu.Lock()
	next := &Tokens{Access: pair.Access, Refresh: pair.Refresh, User: pair.User}
	if next.User == nil && s.tokens != nil {
		next.User = s.tokens.User
	}
	s.tokens = next
	s.mu.Unlock()
	return s.persist(next)
}

// SetUser records the resolved current user.
func (s *Session) SetUser(user *models.UserInfo) error {
	s.mu.Lock()
	if s.tokens == nil {
		s.mu.Unlock()
		return nil
	}
	s.tokens.User = user
	tokens := *s.tokens
	s.mu.Unlock()
	return s.persist(&tokens)
}

// Clear signs out and removes the persisted tokens.
func (s *Session) Clear() error {
	s.mu.Lock()
	s.tokens = nil
	s.mu.Unlock()
	if s.store == nil {
		return nil
	}
	return s.store.Clear()
}

func (s *Session) persist(tokens *Tokens) error {
	if s.store == nil {
		return nil
	}
	return s.store.Save(tokens)
}

func (s *Session) unauthorized() {
	_ = s.Clear()
	if s.OnUnauthorized != nil {
		s.OnUnauthorized()
	}
}
