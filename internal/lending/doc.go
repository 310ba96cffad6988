// Package lending provides an HTTP client for the book lending API.
//
// # Overview
//
// The lending service owns all durable state: accounts, listed copies and
// reservations, plus the rules around availability and loan limits. This
// package is a typed client for its REST surface and nothing more.
//
// # Architecture
//
//   - client.go: HTTP client, request construction and response decoding
//   - types.go: Data structures mirroring the API schema
//   - errors.go: APIError and the error taxonomy used by the TUI
//
// # Client Usage
//
//	client, err := lending.NewClient("http://localhost:5005",
//		lending.WithTokenSource(sessionStore))
//	if err != nil {
//		return fmt.Errorf("init lending client: %w", err)
//	}
//
//	books, err := client.SearchCatalog(ctx, "dune")
//
// # API Endpoints
//
//   - POST /auth/signup, POST /auth/login, GET /auth/verify
//   - GET /api/search-books?q= (external catalog passthrough)
//   - GET /api/search-available-books?q= (signed in, includes owners)
//   - GET /api/browse-available-books?q= (anonymous, public variant)
//   - POST /api/mybooks/add, GET /api/mybooks, DELETE /api/mybooks/:id
//   - POST /api/reservations, GET /api/reservations
//   - PUT /api/reservations/:id, DELETE /api/reservations/:id
//
// # Authentication
//
// Authenticated calls read the bearer credential from a TokenSource on every
// request, so a logout or a fresh login takes effect immediately. The client
// never persists tokens itself; Login only returns the token.
//
// # Error Handling
//
// Non-2xx responses become *APIError, which unwraps to a sentinel:
//
//   - 401 → ErrAuthExpired
//   - 404 → ErrNotFound
//   - other 4xx → ErrValidation (message taken from {message} or {error})
//   - 5xx → no sentinel
//
// Transport failures wrap ErrConnectivity. Classify and Message turn any of
// these into a Kind and a user-facing line of text.
//
// # Thread Safety
//
// The Client is safe for concurrent use.
package lending
