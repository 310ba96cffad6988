package session

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/five82/bookshare/internal/lending"
	"github.com/five82/bookshare/internal/storage"
)

// CredentialKey is the durable storage key holding the bearer token.
const CredentialKey = "authToken"

// Status is the lifecycle state of the session.
type Status int

const (
	StatusInitializing Status = iota
	StatusAuthenticated
	StatusAnonymous
)

func (s Status) String() string {
	switch s {
	case StatusInitializing:
		return "initializing"
	case StatusAuthenticated:
		return "authenticated"
	case StatusAnonymous:
		return "anonymous"
	default:
		return fmt.Sprintf("status(%d)", int(s))
	}
}

// Verifier resolves the identity behind the stored credential.
type Verifier interface {
	Verify(ctx context.Context) (lending.User, error)
}

// Snapshot is a point-in-time copy of the session.
type Snapshot struct {
	Status    Status
	User      *lending.User
	ExpiresAt time.Time // zero when the credential carries no expiry
}

// Authenticated reports whether a user is signed in.
func (s Snapshot) Authenticated() bool {
	return s.Status == StatusAuthenticated
}

// Store is the single source of truth for who is signed in.
type Store struct {
	mu     sync.RWMutex
	status Status
	user   *lending.User
	token  string
	init   bool

	creds  storage.Store
	logger *slog.Logger
	now    func() time.Time
}

// Ensure Store can feed the API client.
var _ lending.TokenSource = (*Store)(nil)

// New returns a Store in StatusInitializing backed by creds.
func New(creds storage.Store, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Store{
		status: StatusInitializing,
		creds:  creds,
		logger: logger.With("component", "session"),
		now:    time.Now,
	}
}

// Initialize resolves the startup status. It verifies a persisted credential
// when one exists; any failure clears it and leaves the session anonymous.
// Only the first call does work; later calls return the current status.
func (s *Store) Initialize(ctx context.Context, verifier Verifier) Status {
	s.mu.Lock()
	if s.init {
		status := s.status
		s.mu.Unlock()
		return status
	}
	s.init = true
	token := s.loadCredentialLocked()
	s.token = token
	s.mu.Unlock()

	if token == "" {
		return s.resolve(nil)
	}

	if exp, ok := credentialExpiry(token); ok && !s.now().Before(exp) {
		s.logger.Debug("stored credential expired", "expired_at", exp)
		s.clearCredential()
		return s.resolve(nil)
	}

	if verifier == nil {
		s.clearCredential()
		return s.resolve(nil)
	}
	user, err := verifier.Verify(ctx)
	if err != nil {
		s.logger.Debug("credential verification failed", "error", err)
		s.clearCredential()
		return s.resolve(nil)
	}
	return s.resolve(&user)
}

// PersistCredential stores the bearer token returned by a successful login.
func (s *Store) PersistCredential(token string) error {
	token = strings.TrimSpace(token)
	if token == "" {
		return fmt.Errorf("credential is empty")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.creds != nil {
		if err := s.creds.Set(CredentialKey, token); err != nil {
			return fmt.Errorf("persist credential: %w", err)
		}
	}
	s.token = token
	return nil
}

// Login marks user as signed in. The network round-trip and credential
// persistence happen before this is called.
func (s *Store) Login(user lending.User) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u := user
	s.user = &u
	s.status = StatusAuthenticated
	s.init = true
	s.logger.Info("signed in", "user_id", user.ID)
}

// Logout clears the credential and the user. Safe to repeat.
func (s *Store) Logout() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	wasAuthenticated := s.status == StatusAuthenticated
	s.user = nil
	s.token = ""
	s.status = StatusAnonymous
	s.init = true
	if wasAuthenticated {
		s.logger.Info("signed out")
	}
	if s.creds == nil {
		return nil
	}
	if err := s.creds.Delete(CredentialKey); err != nil {
		return fmt.Errorf("clear credential: %w", err)
	}
	return nil
}

// Token returns the current bearer credential, or "".
func (s *Store) Token() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.token
}

// Status returns the current lifecycle state.
func (s *Store) Status() Status {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.status
}

// Snapshot returns a copy of the session.
func (s *Store) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	snap := Snapshot{Status: s.status}
	if s.user != nil {
		u := *s.user
		snap.User = &u
	}
	if s.status == StatusAuthenticated {
		if exp, ok := credentialExpiry(s.token); ok {
			snap.ExpiresAt = exp
		}
	}
	return snap
}

// UserID returns the signed-in user's id, or "".
func (s *Store) UserID() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.user == nil {
		return ""
	}
	return s.user.ID
}

func (s *Store) resolve(user *lending.User) Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	// A Login or Logout that raced the verification wins.
	if s.status != StatusInitializing {
		return s.status
	}
	if user == nil {
		s.user = nil
		s.token = ""
		s.status = StatusAnonymous
		return s.status
	}
	s.user = user
	s.status = StatusAuthenticated
	s.logger.Info("session restored", "user_id", user.ID)
	return s.status
}

func (s *Store) loadCredentialLocked() string {
	if s.creds == nil {
		return ""
	}
	token, _ := s.creds.Get(CredentialKey)
	return strings.TrimSpace(token)
}

func (s *Store) clearCredential() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.status != StatusInitializing {
		return
	}
	s.token = ""
	if s.creds == nil {
		return
	}
	if err := s.creds.Delete(CredentialKey); err != nil {
		s.logger.Warn("clear credential failed", "error", err)
	}
}
