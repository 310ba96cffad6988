package lending

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// User is the identity returned by /auth/verify.
type User struct {
	ID    string `json:"_id"`
	Name  string `json:"name"`
	Email string `json:"email"`
}

// Owner references the user who listed a copy. The API returns either a
// populated user object or a bare id string depending on the endpoint; the
// public browse endpoint omits it entirely.
type Owner struct {
	ID    string
	Name  string
	Email string
}

// UnmarshalJSON accepts a user object, an id string, or null.
func (o *Owner) UnmarshalJSON(data []byte) error {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		*o = Owner{}
		return nil
	}
	if trimmed[0] == '"' {
		var id string
		if err := json.Unmarshal(trimmed, &id); err != nil {
			return fmt.Errorf("decode owner id: %w", err)
		}
		*o = Owner{ID: id}
		return nil
	}
	var user User
	if err := json.Unmarshal(trimmed, &user); err != nil {
		return fmt.Errorf("decode owner: %w", err)
	}
	*o = Owner(user)
	return nil
}

// MarshalJSON encodes the owner as a user object.
func (o Owner) MarshalJSON() ([]byte, error) {
	return json.Marshal(User(o))
}

// Book is a catalog search result from the external book catalog.
type Book struct {
	Key           string   `json:"key,omitempty"`
	ID            string   `json:"id,omitempty"`
	Title         string   `json:"title"`
	Authors       []string `json:"authors"`
	CoverURL      string   `json:"coverUrl,omitempty"`
	PublishedYear int      `json:"publishedYear,omitempty"`
	ISBN          string   `json:"isbn,omitempty"`
	Language      string   `json:"language,omitempty"`
	Subjects      []string `json:"subjects,omitempty"`
}

// ExternalID returns the catalog identifier, preferring Key over ID.
func (b Book) ExternalID() string {
	if key := strings.TrimSpace(b.Key); key != "" {
		return key
	}
	return strings.TrimSpace(b.ID)
}

// Copy is one lendable instance of a book listed by a user.
type Copy struct {
	ID            string   `json:"_id"`
	ExternalID    string   `json:"externalId"`
	Title         string   `json:"title"`
	Authors       []string `json:"authors"`
	CoverURL      string   `json:"coverUrl,omitempty"`
	PublishedYear int      `json:"publishedYear,omitempty"`
	MaxDuration   int      `json:"maxDuration"`
	Available     bool     `json:"available"`
	Owner         *Owner   `json:"owner,omitempty"`
}

// OwnerID returns the owner's id, or "" when the owner is not resolvable.
func (c Copy) OwnerID() string {
	if c.Owner == nil {
		return ""
	}
	return strings.TrimSpace(c.Owner.ID)
}

// AvailableBook groups the available copies of one catalog book.
type AvailableBook struct {
	Book   Book   `json:"bookInfo"`
	Copies []Copy `json:"copies"`
}

// NewCopy is the payload for POST /api/mybooks/add.
type NewCopy struct {
	ExternalID    string   `json:"externalId"`
	Title         string   `json:"title"`
	Authors       []string `json:"authors"`
	CoverURL      string   `json:"coverUrl,omitempty"`
	PublishedYear int      `json:"publishedYear,omitempty"`
	MaxDuration   int      `json:"maxDuration"`
}

// NewCopyFromBook builds the add-copy payload for a catalog book.
func NewCopyFromBook(b Book, maxDuration int) NewCopy {
	authors := b.Authors
	if authors == nil {
		authors = []string{}
	}
	return NewCopy{
		ExternalID:    b.ExternalID(),
		Title:         b.Title,
		Authors:       authors,
		CoverURL:      b.CoverURL,
		PublishedYear: b.PublishedYear,
		MaxDuration:   maxDuration,
	}
}

// Reservation is a time-bounded claim by a borrower on a copy.
type Reservation struct {
	ID            string    `json:"_id"`
	Copy          *Copy     `json:"book,omitempty"`
	StartDate     time.Time `json:"startDate"`
	EndDate       time.Time `json:"endDate"`
	RequestedDays int       `json:"requestedDays,omitempty"`
}

// Title returns the reserved copy's title, or "" when unknown.
func (r Reservation) Title() string {
	if r.Copy == nil {
		return ""
	}
	return r.Copy.Title
}

// Credentials are submitted to /auth/login.
type Credentials struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Signup is submitted to /auth/signup.
type Signup struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

type loginResponse struct {
	AuthToken string `json:"authToken"`
}

type createReservationRequest struct {
	BookCopyID    string `json:"bookCopyId"`
	RequestedDays int    `json:"requestedDays"`
}

type updateReservationRequest struct {
	RequestedDays int       `json:"requestedDays"`
	EndDate       time.Time `json:"endDate"`
}

type errorResponse struct {
	Message string `json:"message"`
	Error   string `json:"error"`
}
