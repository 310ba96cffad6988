package state

import (
	"sync"

	"github.com/google/uuid"
)

// Requests tracks the latest outstanding request per page so a response
// that arrives after a newer request, or after the page was left, can be
// discarded.
type Requests struct {
	mu     sync.Mutex
	latest map[string]string
}

// Begin starts a request for page and returns its identity. Any earlier
// request for the same page becomes stale.
func (r *Requests) Begin(page string) string {
	id := uuid.NewString()
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.latest == nil {
		r.latest = map[string]string{}
	}
	r.latest[page] = id
	return id
}

// Accept reports whether id is still the latest request for page. An
// accepted id is retired so a duplicate delivery is rejected.
func (r *Requests) Accept(page, id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if id == "" || r.latest[page] != id {
		return false
	}
	delete(r.latest, page)
	return true
}

// Pending reports whether page has an outstanding request.
func (r *Requests) Pending(page string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.latest[page]
	return ok
}

// Forget abandons any outstanding request for page.
func (r *Requests) Forget(page string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.latest, page)
}
