// Package ui implements the bookshare terminal interface on Bubble Tea.
//
// # Routes
//
// Every screen is a Route. Navigation always goes through the gate package:
//
//   - Allow enters the page and prepares it from the navigation payload
//   - Wait parks the request and shows a spinner until the session resolves
//   - Redirect shows the login form; the gate remembers the destination and
//     payload, and a successful login resumes them
//
// Public routes are the catalog, the borrow listing, signup and activity.
//
// # Commands
//
// Network calls run as tea.Cmd functions and report back with a message.
// Searches carry a request id from state.Requests so a late answer for an
// older query, or for a page already left, is dropped. Mutations are
// serialised per action with inflight.Guard. Deleting a copy or cancelling a
// reservation updates the dashboard store first and restores the row if the
// server refuses.
//
// # Errors
//
// An expired credential anywhere signs the user out and redirects to login
// with the current page remembered. Validation errors stay on the form;
// connectivity errors show a retry hint in the footer.
package ui
