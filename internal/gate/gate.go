// Package gate decides whether a destination may be shown for the current
// session, and carries the blocked destination across the login round-trip.
package gate

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/five82/bookshare/internal/session"
	"github.com/five82/bookshare/internal/storage"
)

// Transient storage keys for the pending navigation.
const (
	TargetKey  = "redirectAfterLogin"
	PayloadKey = "payloadBeforeLogin"
)

// Well-known destinations.
const (
	LoginPath         = "/login"
	DefaultAfterLogin = "/mybooks"
)

// Action is the outcome of an authorization check.
type Action int

const (
	// Wait renders a loading affordance; the session is still initializing.
	Wait Action = iota
	// Allow renders the destination.
	Allow
	// Redirect navigates to Decision.To instead.
	Redirect
)

func (a Action) String() string {
	switch a {
	case Wait:
		return "wait"
	case Allow:
		return "allow"
	case Redirect:
		return "redirect"
	default:
		return fmt.Sprintf("action(%d)", int(a))
	}
}

// Decision is the result of Authorize.
type Decision struct {
	Action Action
	To     string
}

// Pending is a destination deferred until after login.
type Pending struct {
	TargetPath string
	Payload    json.RawMessage // nil when the caller supplied none
}

// Decode unmarshals the payload into dest. It reports false when there is no
// payload or it does not decode.
func (p Pending) Decode(dest any) bool {
	if len(p.Payload) == 0 {
		return false
	}
	return json.Unmarshal(p.Payload, dest) == nil
}

// Gate guards protected destinations.
type Gate struct {
	pending storage.Store
	public  map[string]bool
	logger  *slog.Logger

	// consumed is set when a consumed target could not be deleted from
	// the pending store, so it is not handed out twice.
	consumed bool
}

// New returns a Gate storing pending navigation in the given transient store.
// Destinations listed in public are always allowed.
func New(pending storage.Store, public ...string) *Gate {
	g := &Gate{
		pending: pending,
		public:  map[string]bool{LoginPath: true},
		logger:  slog.New(slog.DiscardHandler),
	}
	for _, p := range public {
		g.public[normalize(p)] = true
	}
	return g
}

// WithLogger sets the logger for pending store failures and returns g.
func (g *Gate) WithLogger(logger *slog.Logger) *Gate {
	if logger != nil {
		g.logger = logger.With("component", "gate")
	}
	return g
}

// IsPublic reports whether destination bypasses the gate.
func (g *Gate) IsPublic(destination string) bool {
	return g.public[normalize(destination)]
}

// Authorize decides what to do with a request for destination. When the
// session is anonymous it records destination and payload so they survive
// the login redirect.
func (g *Gate) Authorize(destination string, status session.Status, payload any) (Decision, error) {
	destination = normalize(destination)
	if g.IsPublic(destination) {
		return Decision{Action: Allow, To: destination}, nil
	}
	switch status {
	case session.StatusInitializing:
		return Decision{Action: Wait, To: destination}, nil
	case session.StatusAuthenticated:
		return Decision{Action: Allow, To: destination}, nil
	}

	if err := g.remember(destination, payload); err != nil {
		return Decision{Action: Redirect, To: LoginPath}, err
	}
	return Decision{Action: Redirect, To: LoginPath}, nil
}

// ConsumePending returns the stored pending navigation and deletes it. A
// second call returns false until Authorize records another.
func (g *Gate) ConsumePending() (Pending, bool) {
	target, ok := g.pending.Get(TargetKey)
	raw, hasPayload := g.pending.Get(PayloadKey)
	wasConsumed := g.consumed
	if err := g.pending.Delete(TargetKey); err != nil {
		g.logger.Error("clear pending target failed", "error", err)
		g.consumed = true
	} else {
		g.consumed = false
	}
	if err := g.pending.Delete(PayloadKey); err != nil {
		g.logger.Error("clear pending payload failed", "error", err)
	}
	if wasConsumed || !ok || strings.TrimSpace(target) == "" {
		return Pending{}, false
	}
	p := Pending{TargetPath: target}
	if hasPayload && raw != "" {
		p.Payload = json.RawMessage(raw)
	}
	return p, true
}

// Resume consumes the pending navigation, falling back to the default
// post-login destination.
func (g *Gate) Resume() Pending {
	if p, ok := g.ConsumePending(); ok {
		return p
	}
	return Pending{TargetPath: DefaultAfterLogin}
}

func (g *Gate) remember(destination string, payload any) error {
	if err := g.pending.Set(TargetKey, destination); err != nil {
		return fmt.Errorf("store pending target: %w", err)
	}
	g.consumed = false
	if payload == nil {
		return g.pending.Delete(PayloadKey)
	}
	var data []byte
	switch v := payload.(type) {
	case json.RawMessage:
		data = v
	default:
		encoded, err := json.Marshal(payload)
		if err != nil {
			_ = g.pending.Delete(PayloadKey)
			return fmt.Errorf("encode pending payload: %w", err)
		}
		data = encoded
	}
	if err := g.pending.Set(PayloadKey, string(data)); err != nil {
		return fmt.Errorf("store pending payload: %w", err)
	}
	return nil
}

func normalize(path string) string {
	trimmed := strings.TrimSpace(path)
	if trimmed == "" {
		return "/"
	}
	if !strings.HasPrefix(trimmed, "/") {
		trimmed = "/" + trimmed
	}
	if len(trimmed) > 1 {
		trimmed = strings.TrimRight(trimmed, "/")
	}
	return trimmed
}
