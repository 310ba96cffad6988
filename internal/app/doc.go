// Package app is the composition root for bookshare.
//
// # Overview
//
// Setup wires configuration, logging, the durable credential file, the
// session store and the lending API client. Run adds the dashboard store, the
// background poller and the navigation gate, then hands everything to the
// TUI. The one-shot CLI commands use Setup alone.
//
// # Data Flow
//
//	┌──────────────┐
//	│   Run()      │
//	└──────┬───────┘
//	       │
//	       ├─────> config.Load()         Read ~/.config/bookshare/config.toml
//	       ├─────> logging.Open()        JSON log file
//	       ├─────> storage.OpenFile()    Durable credential file
//	       ├─────> session.New()         Session store (Initializing)
//	       ├─────> lending.NewClient()   HTTP client, bearer from the session
//	       ├─────> StartPoller()         Background dashboard refresh
//	       └─────> ui.Run()              TUI (blocks); initializes the session
//
//	Background Poller Loop:
//	┌─────────────────────────────────────────┐
//	│ only while the session is authenticated │
//	│  ├─> ListMyCopies()      ┐ errgroup     │
//	│  ├─> ListReservations()  ┘              │
//	│  └─> store.UpdateAt()                   │
//	│      └─> UI reads store.Snapshot()      │
//	└─────────────────────────────────────────┘
//
// # Polling Behavior
//
// The poller waits the configured interval (default 15 seconds) between
// refreshes and doubles it for each consecutive failure, capped at 30
// seconds. A 401 signs the user out and clears the store; the TUI notices on
// its next tick and redirects to login.
package app
