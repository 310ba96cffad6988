package ui

import (
	"encoding/json"

	"github.com/five82/bookshare/internal/lending"
)

// Route is a destination inside the TUI.
type Route string

const (
	RouteCatalog         Route = "/"
	RouteBrowse          Route = "/browse"
	RouteLogin           Route = "/login"
	RouteSignup          Route = "/signup"
	RouteMyBooks         Route = "/mybooks"
	RouteAddCopy         Route = "/mybooks/add"
	RouteReservation     Route = "/reservation"
	RouteEditReservation Route = "/reservations/edit"
	RouteActivity        Route = "/activity"
)

// PublicRoutes lists the destinations reachable without signing in.
func PublicRoutes() []string {
	return []string{
		string(RouteCatalog),
		string(RouteBrowse),
		string(RouteSignup),
		string(RouteActivity),
	}
}

func (r Route) title() string {
	switch r {
	case RouteCatalog:
		return "Catalog"
	case RouteBrowse:
		return "Borrow"
	case RouteLogin:
		return "Log in"
	case RouteSignup:
		return "Sign up"
	case RouteMyBooks:
		return "My books"
	case RouteAddCopy:
		return "Add a copy"
	case RouteReservation:
		return "Reserve"
	case RouteEditReservation:
		return "Edit reservation"
	case RouteActivity:
		return "Activity"
	default:
		return string(r)
	}
}

// reservePayload carries the pre-selected copy to the reservation page.
type reservePayload struct {
	Book lending.Book `json:"book"`
	Copy lending.Copy `json:"copy"`
}

// decodePayload converts a navigation payload into dest. Payloads arrive
// either as typed values from in-process navigation or as raw JSON resumed
// after login, so both go through the same encoding.
func decodePayload(payload any, dest any) bool {
	if payload == nil {
		return false
	}
	raw, ok := payload.(json.RawMessage)
	if !ok {
		data, err := json.Marshal(payload)
		if err != nil {
			return false
		}
		raw = data
	}
	if len(raw) == 0 || string(raw) == "null" {
		return false
	}
	return json.Unmarshal(raw, dest) == nil
}
