package app

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/five82/bookshare/internal/lending"
	"github.com/five82/bookshare/internal/session"
	"github.com/five82/bookshare/internal/state"
)

const (
	defaultPollInterval = 15 * time.Second
	maxBackoff          = 30 * time.Second
)

// Poller keeps the dashboard store current for the signed-in user.
type Poller struct {
	store   *state.Store
	client  lending.API
	session *session.Store
	logger  *slog.Logger
}

// NewPoller returns a Poller writing into store.
func NewPoller(store *state.Store, client lending.API, sess *session.Store, logger *slog.Logger) *Poller {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Poller{store: store, client: client, session: sess, logger: logger.With("component", "poller")}
}

// StartPoller launches a background goroutine that refreshes the store at a
// fixed cadence, backing off while the API is unreachable. It returns
// immediately.
func StartPoller(ctx context.Context, p *Poller, interval time.Duration) {
	if interval <= 0 {
		interval = defaultPollInterval
	}
	go p.run(ctx, interval)
}

func (p *Poller) run(ctx context.Context, interval time.Duration) {
	for {
		wait := interval
		if p.session.Status() == session.StatusAuthenticated {
			_ = p.Refresh(ctx)
			wait = calculateBackoff(p.store.Snapshot().ConsecutiveFailures, interval)
		}
		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
		}
	}
}

// Refresh fetches copies and reservations concurrently. An expired
// credential signs the user out and drops the cached data. Results are
// dropped when the store changed or the user signed out while fetching.
func (p *Poller) Refresh(ctx context.Context) error {
	gen := p.store.Generation()
	userID := p.session.UserID()
	var (
		copies       []lending.Copy
		reservations []lending.Reservation
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		list, err := p.client.ListMyCopies(gctx)
		if err != nil {
			return fmt.Errorf("list copies: %w", err)
		}
		copies = list
		return nil
	})
	g.Go(func() error {
		list, err := p.client.ListReservations(gctx)
		if err != nil {
			return fmt.Errorf("list reservations: %w", err)
		}
		reservations = list
		return nil
	})

	if err := g.Wait(); err != nil {
		if ctx.Err() != nil {
			return err
		}
		if !p.sameUser(userID) {
			return err
		}
		if lending.Classify(err) == lending.KindAuthExpired {
			p.logger.Warn("credential rejected during refresh", "error", err)
			if lerr := p.session.Logout(); lerr != nil {
				p.logger.Error("logout failed", "error", lerr)
			}
			p.store.Reset()
			return err
		}
		if p.store.UpdateAt(gen, nil, nil, err) {
			p.logger.Warn("refresh failed", "error", err, "failures", p.store.Snapshot().ConsecutiveFailures)
		}
		return err
	}
	if !p.sameUser(userID) || !p.store.UpdateAt(gen, copies, reservations, nil) {
		p.logger.Debug("stale refresh discarded")
		return nil
	}
	p.logger.Debug("refreshed", "copies", len(copies), "reservations", len(reservations))
	return nil
}

// sameUser reports whether userID is still the signed-in user.
func (p *Poller) sameUser(userID string) bool {
	return userID != "" && p.session.Status() == session.StatusAuthenticated && p.session.UserID() == userID
}

// calculateBackoff doubles base for each consecutive failure, capped at
// maxBackoff.
func calculateBackoff(failures int, base time.Duration) time.Duration {
	if failures <= 0 {
		return base
	}
	backoff := base
	for i := 0; i < failures; i++ {
		backoff *= 2
		if backoff >= maxBackoff {
			return maxBackoff
		}
	}
	return backoff
}
