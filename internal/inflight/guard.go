// Package inflight prevents duplicate submission of a mutating action while
// an earlier submission is still waiting for the server.
package inflight

import "sync"

// Action names a mutating operation.
type Action string

const (
	Login             Action = "login"
	Signup            Action = "signup"
	AddCopy           Action = "add-copy"
	DeleteCopy        Action = "delete-copy"
	CreateReservation Action = "create-reservation"
	UpdateReservation Action = "update-reservation"
	CancelReservation Action = "cancel-reservation"
)

// Guard tracks which actions are pending. The zero value is ready to use.
type Guard struct {
	mu     sync.Mutex
	active map[Action]bool
}

// TryBegin marks action pending. It returns ok=false when the action is
// already pending; otherwise done must be called once the request settles.
// Calling done more than once is harmless.
func (g *Guard) TryBegin(action Action) (done func(), ok bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.active[action] {
		return func() {}, false
	}
	if g.active == nil {
		g.active = map[Action]bool{}
	}
	g.active[action] = true
	var once sync.Once
	return func() {
		once.Do(func() { g.End(action) })
	}, true
}

// End clears the pending mark for action.
func (g *Guard) End(action Action) {
	g.mu.Lock()
	defer g.mu.Unlock()
	delete(g.active, action)
}

// Pending reports whether action is in flight.
func (g *Guard) Pending(action Action) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.active[action]
}

// Any reports whether any action is in flight.
func (g *Guard) Any() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.active) > 0
}
