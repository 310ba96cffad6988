// Package state provides thread-safe state shared between the background
// poller and the TUI.
//
// # Overview
//
// Two independent pieces live here:
//
//   - Store: the signed-in user's dashboard (own copies and reservations),
//     written by the poller and by confirmed mutations, read by the UI.
//   - Requests: per-page request identity used to drop late responses.
//
// # Store
//
//	Producer (Poller):               Consumer (UI):
//	┌──────────────────┐            ┌──────────────────┐
//	│ ListMyCopies()   │            │                  │
//	│ ListReservations │            │                  │
//	│      ↓           │            │                  │
//	│ store.Update()   │───────────→│ store.Snapshot() │
//	│      ↓           │  (mutex)   │      ↓           │
//	│  repeat...       │            │  render          │
//	└──────────────────┘            └──────────────────┘
//
// Update with a non-nil error keeps the previous lists and bumps
// ConsecutiveFailures; two failures in a row mark the snapshot offline.
// Snapshots are deep enough copies that callers may mutate them freely.
//
// RemoveCopy and RemoveReservation apply optimistic removal after the server
// confirmed a delete or cancellation. They return a Removal that
// RestoreCopy/RestoreReservation can roll back if a later refetch shows the
// server disagreed.
//
// # Requests
//
// Each page that fetches data calls Begin and tags the outgoing command with
// the returned id. When the response message arrives, Accept(page, id)
// reports whether it is still the newest request. Leaving a page calls
// Forget, so anything still in flight for it is ignored on arrival.
//
//	id := requests.Begin("search")
//	return searchCmd(ctx, client, query, id)
//
//	case searchResultMsg:
//		if !requests.Accept("search", msg.id) {
//			return m, nil // stale
//		}
//
// Ids are random UUIDs so two pages, or two program runs, never collide.
package state
