package gate

import (
	"bytes"
	"errors"
	"log/slog"
	"strings"
	"testing"

	"github.com/five82/bookshare/internal/lending"
	"github.com/five82/bookshare/internal/session"
	"github.com/five82/bookshare/internal/storage"
)

func TestAuthorize_Decisions(t *testing.T) {
	tests := []struct {
		name        string
		destination string
		status      session.Status
		want        Decision
	}{
		{"initializing waits", "/mybooks", session.StatusInitializing, Decision{Action: Wait, To: "/mybooks"}},
		{"authenticated allowed", "/mybooks", session.StatusAuthenticated, Decision{Action: Allow, To: "/mybooks"}},
		{"anonymous redirected", "/mybooks", session.StatusAnonymous, Decision{Action: Redirect, To: LoginPath}},
		{"public while initializing", "/browse", session.StatusInitializing, Decision{Action: Allow, To: "/browse"}},
		{"public while anonymous", "/", session.StatusAnonymous, Decision{Action: Allow, To: "/"}},
		{"login always public", "/login", session.StatusAnonymous, Decision{Action: Allow, To: LoginPath}},
		{"trailing slash normalized", "/mybooks/", session.StatusAuthenticated, Decision{Action: Allow, To: "/mybooks"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g := New(storage.NewMemory(), "/", "/browse")
			got, err := g.Authorize(tt.destination, tt.status, nil)
			if err != nil {
				t.Fatalf("Authorize returned error: %v", err)
			}
			if got != tt.want {
				t.Fatalf("Authorize = %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestAuthorize_OnlyAnonymousRecordsPending(t *testing.T) {
	g := New(storage.NewMemory())
	for _, status := range []session.Status{session.StatusInitializing, session.StatusAuthenticated} {
		if _, err := g.Authorize("/mybooks", status, nil); err != nil {
			t.Fatalf("Authorize returned error: %v", err)
		}
		if _, ok := g.ConsumePending(); ok {
			t.Fatalf("pending recorded for %v", status)
		}
	}
}

func TestPendingRoundTripPreservesPayload(t *testing.T) {
	g := New(storage.NewMemory(), "/")
	book := lending.Book{Key: "/works/OL45W", Title: "Dune", Authors: []string{"Frank Herbert"}}

	decision, err := g.Authorize("/mybooks/add", session.StatusAnonymous, book)
	if err != nil {
		t.Fatalf("Authorize returned error: %v", err)
	}
	if decision.Action != Redirect || decision.To != "/login" {
		t.Fatalf("decision = %+v, want redirect to /login", decision)
	}

	// After login the destination resumes with the book restored.
	pending := g.Resume()
	if pending.TargetPath != "/mybooks/add" {
		t.Fatalf("TargetPath = %q, want /mybooks/add", pending.TargetPath)
	}
	var restored lending.Book
	if !pending.Decode(&restored) {
		t.Fatal("Decode returned false, want restored book")
	}
	if restored.Title != "Dune" || restored.ExternalID() != "/works/OL45W" || len(restored.Authors) != 1 {
		t.Fatalf("restored = %#v", restored)
	}
}

func TestConsumePending_AtMostOnce(t *testing.T) {
	g := New(storage.NewMemory())
	if _, err := g.Authorize("/reservation", session.StatusAnonymous, map[string]string{"copy": "c1"}); err != nil {
		t.Fatalf("Authorize returned error: %v", err)
	}

	first, ok := g.ConsumePending()
	if !ok || first.TargetPath != "/reservation" {
		t.Fatalf("first ConsumePending = %+v, %v", first, ok)
	}
	if second, ok := g.ConsumePending(); ok {
		t.Fatalf("second ConsumePending = %+v, want none", second)
	}
}

func TestResume_DefaultsWithoutPending(t *testing.T) {
	g := New(storage.NewMemory())
	p := g.Resume()
	if p.TargetPath != DefaultAfterLogin || p.Payload != nil {
		t.Fatalf("Resume = %+v, want default destination without payload", p)
	}
	var dest lending.Book
	if p.Decode(&dest) {
		t.Fatal("Decode returned true for empty payload")
	}
}

func TestAuthorize_NewRedirectReplacesOldPayload(t *testing.T) {
	g := New(storage.NewMemory())
	_, _ = g.Authorize("/mybooks/add", session.StatusAnonymous, lending.Book{Title: "Dune"})
	_, _ = g.Authorize("/mybooks", session.StatusAnonymous, nil)

	p, ok := g.ConsumePending()
	if !ok || p.TargetPath != "/mybooks" {
		t.Fatalf("pending = %+v, %v, want /mybooks", p, ok)
	}
	if p.Payload != nil {
		t.Fatalf("payload = %s, want none", p.Payload)
	}
}

func TestAuthorize_UnencodablePayload(t *testing.T) {
	g := New(storage.NewMemory())
	decision, err := g.Authorize("/mybooks/add", session.StatusAnonymous, make(chan int))
	if err == nil {
		t.Fatal("Authorize returned nil error for unencodable payload")
	}
	if decision.Action != Redirect {
		t.Fatalf("decision = %+v, want redirect even on payload error", decision)
	}
	p, ok := g.ConsumePending()
	if !ok || p.TargetPath != "/mybooks/add" || p.Payload != nil {
		t.Fatalf("pending = %+v, %v, want target without payload", p, ok)
	}
}

// stickyStore keeps every value because Delete always fails.
type stickyStore struct {
	*storage.MemoryStore
}

func (stickyStore) Delete(key string) error {
	return errors.New("backend unavailable")
}

func TestConsumePending_AtMostOnceWhenDeleteFails(t *testing.T) {
	var logs bytes.Buffer
	g := New(stickyStore{storage.NewMemory()}).WithLogger(slog.New(slog.NewTextHandler(&logs, nil)))
	if _, err := g.Authorize("/mybooks/add", session.StatusAnonymous, lending.Book{Key: "/works/OL1W"}); err != nil {
		t.Fatalf("Authorize: %v", err)
	}

	if p, ok := g.ConsumePending(); !ok || p.TargetPath != "/mybooks/add" {
		t.Fatalf("first ConsumePending = %+v, %v", p, ok)
	}
	if p, ok := g.ConsumePending(); ok {
		t.Fatalf("second ConsumePending = %+v, want none", p)
	}
	if !strings.Contains(logs.String(), "clear pending target failed") {
		t.Fatalf("delete failure not logged: %q", logs.String())
	}

	// A new redirect is handed out again.
	if _, err := g.Authorize("/mybooks", session.StatusAnonymous, lending.Book{Key: "/works/OL2W"}); err != nil {
		t.Fatalf("Authorize: %v", err)
	}
	if p, ok := g.ConsumePending(); !ok || p.TargetPath != "/mybooks" {
		t.Fatalf("ConsumePending after new redirect = %+v, %v", p, ok)
	}
}
