package session

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/five82/bookshare/internal/lending"
	"github.com/five82/bookshare/internal/storage"
)

type fakeVerifier struct {
	user  lending.User
	err   error
	calls int
	token string
	store *Store
}

func (f *fakeVerifier) Verify(ctx context.Context) (lending.User, error) {
	f.calls++
	if f.store != nil {
		f.token = f.store.Token()
	}
	return f.user, f.err
}

func signedToken(t *testing.T, exp time.Time) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject:   "u1",
		ExpiresAt: jwt.NewNumericDate(exp),
	})
	signed, err := token.SignedString([]byte("test-secret"))
	if err != nil {
		t.Fatalf("SignedString: %v", err)
	}
	return signed
}

func TestStore_StartsInitializing(t *testing.T) {
	s := New(storage.NewMemory(), nil)
	snap := s.Snapshot()
	if snap.Status != StatusInitializing || snap.User != nil {
		t.Fatalf("snapshot = %#v, want initializing without user", snap)
	}
}

func TestStore_InitializeWithoutCredentialIsAnonymous(t *testing.T) {
	v := &fakeVerifier{}
	s := New(storage.NewMemory(), nil)

	if got := s.Initialize(context.Background(), v); got != StatusAnonymous {
		t.Fatalf("Initialize = %v, want anonymous", got)
	}
	if v.calls != 0 {
		t.Fatalf("verify calls = %d, want 0 without a credential", v.calls)
	}
	if s.Snapshot().User != nil {
		t.Fatal("user set for anonymous session")
	}
}

func TestStore_InitializeVerifiesStoredCredential(t *testing.T) {
	creds := storage.NewMemory()
	_ = creds.Set(CredentialKey, "opaque-token")
	s := New(creds, nil)
	v := &fakeVerifier{user: lending.User{ID: "u1", Name: "Ada"}, store: s}

	if got := s.Initialize(context.Background(), v); got != StatusAuthenticated {
		t.Fatalf("Initialize = %v, want authenticated", got)
	}
	if v.token != "opaque-token" {
		t.Fatalf("token during verify = %q, want opaque-token", v.token)
	}
	snap := s.Snapshot()
	if snap.User == nil || snap.User.ID != "u1" {
		t.Fatalf("user = %#v, want u1", snap.User)
	}

	// Later calls never re-verify and never re-enter initializing.
	if got := s.Initialize(context.Background(), v); got != StatusAuthenticated || v.calls != 1 {
		t.Fatalf("second Initialize = %v with %d calls, want authenticated with 1 call", got, v.calls)
	}
}

func TestStore_InitializeVerifyFailureClearsCredential(t *testing.T) {
	creds := storage.NewMemory()
	_ = creds.Set(CredentialKey, "stale")
	s := New(creds, nil)
	v := &fakeVerifier{err: &lending.APIError{Status: 401, Path: "/auth/verify"}}

	if got := s.Initialize(context.Background(), v); got != StatusAnonymous {
		t.Fatalf("Initialize = %v, want anonymous", got)
	}
	if _, ok := creds.Get(CredentialKey); ok {
		t.Fatal("credential not cleared after failed verify")
	}
	if s.Token() != "" {
		t.Fatalf("Token = %q, want empty", s.Token())
	}
}

func TestStore_InitializeSkipsVerifyForExpiredJWT(t *testing.T) {
	creds := storage.NewMemory()
	now := time.Date(2024, 1, 10, 12, 0, 0, 0, time.UTC)
	_ = creds.Set(CredentialKey, signedToken(t, now.Add(-time.Hour)))
	s := New(creds, nil)
	s.now = func() time.Time { return now }
	v := &fakeVerifier{user: lending.User{ID: "u1"}}

	if got := s.Initialize(context.Background(), v); got != StatusAnonymous {
		t.Fatalf("Initialize = %v, want anonymous", got)
	}
	if v.calls != 0 {
		t.Fatalf("verify calls = %d, want 0 for expired token", v.calls)
	}
	if _, ok := creds.Get(CredentialKey); ok {
		t.Fatal("expired credential not cleared")
	}
}

func TestStore_SnapshotReportsExpiry(t *testing.T) {
	exp := time.Now().Add(2 * time.Hour).Truncate(time.Second)
	s := New(storage.NewMemory(), nil)
	if err := s.PersistCredential(signedToken(t, exp)); err != nil {
		t.Fatalf("PersistCredential: %v", err)
	}
	s.Login(lending.User{ID: "u1"})

	snap := s.Snapshot()
	if !snap.ExpiresAt.Equal(exp) {
		t.Fatalf("ExpiresAt = %v, want %v", snap.ExpiresAt, exp)
	}
}

func TestStore_LoginLogoutInvariant(t *testing.T) {
	creds := storage.NewMemory()
	s := New(creds, nil)
	s.Initialize(context.Background(), nil)

	if err := s.PersistCredential("tok"); err != nil {
		t.Fatalf("PersistCredential: %v", err)
	}
	s.Login(lending.User{ID: "u1", Name: "Ada", Email: "ada@example.com"})

	snap := s.Snapshot()
	if !snap.Authenticated() || snap.User == nil {
		t.Fatalf("after Login snapshot = %#v", snap)
	}
	if got, _ := creds.Get(CredentialKey); got != "tok" {
		t.Fatalf("persisted credential = %q, want tok", got)
	}

	// Snapshot users are copies.
	snap.User.Name = "changed"
	if s.Snapshot().User.Name != "Ada" {
		t.Fatal("Snapshot leaked internal user pointer")
	}

	for i := 0; i < 2; i++ {
		if err := s.Logout(); err != nil {
			t.Fatalf("Logout #%d: %v", i+1, err)
		}
		snap = s.Snapshot()
		if snap.Status != StatusAnonymous || snap.User != nil {
			t.Fatalf("after Logout #%d snapshot = %#v", i+1, snap)
		}
	}
	if _, ok := creds.Get(CredentialKey); ok {
		t.Fatal("credential still stored after Logout")
	}
}

func TestStore_LogoutThenInitializeIsAnonymous(t *testing.T) {
	creds := storage.NewMemory()
	s := New(creds, nil)
	_ = s.PersistCredential("tok")
	s.Login(lending.User{ID: "u1"})
	_ = s.Logout()

	if got := s.Initialize(context.Background(), &fakeVerifier{}); got != StatusAnonymous {
		t.Fatalf("Initialize after Logout = %v, want anonymous", got)
	}
	if s.Snapshot().User != nil {
		t.Fatal("user present after Logout + Initialize")
	}

	// A fresh process sees no credential either.
	fresh := New(creds, nil)
	if got := fresh.Initialize(context.Background(), &fakeVerifier{}); got != StatusAnonymous {
		t.Fatalf("fresh Initialize = %v, want anonymous", got)
	}
}

type failingStore struct{ storage.MemoryStore }

func (f *failingStore) Set(string, string) error { return errors.New("disk full") }

func TestStore_PersistCredentialErrors(t *testing.T) {
	s := New(&failingStore{}, nil)
	if err := s.PersistCredential("  "); err == nil {
		t.Fatal("PersistCredential accepted an empty token")
	}
	if err := s.PersistCredential("tok"); err == nil {
		t.Fatal("PersistCredential returned nil error on storage failure")
	}
	if s.Token() != "" {
		t.Fatalf("Token = %q after failed persist, want empty", s.Token())
	}
}
