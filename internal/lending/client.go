package lending

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// API defines the lending operations the TUI and poller depend on.
// This interface is implemented by *Client and can be used for testing.
type API interface {
	Signup(ctx context.Context, req Signup) error
	Login(ctx context.Context, creds Credentials) (string, error)
	Verify(ctx context.Context) (User, error)
	SearchCatalog(ctx context.Context, query string) ([]Book, error)
	SearchAvailable(ctx context.Context, query string) ([]AvailableBook, error)
	AddCopy(ctx context.Context, listing NewCopy) (Copy, error)
	ListMyCopies(ctx context.Context) ([]Copy, error)
	DeleteCopy(ctx context.Context, id string) error
	CreateReservation(ctx context.Context, copyID string, days int) (Reservation, error)
	ListReservations(ctx context.Context) ([]Reservation, error)
	UpdateReservation(ctx context.Context, id string, days int, endDate time.Time) (Reservation, error)
	CancelReservation(ctx context.Context, id string) error
}

// Ensure Client implements API at compile time.
var _ API = (*Client)(nil)

// TokenSource supplies the bearer credential for authenticated calls.
type TokenSource interface {
	Token() string
}

// Client talks to the lending HTTP API.
type Client struct {
	baseURL   *url.URL
	http      *http.Client
	userAgent string
	tokens    TokenSource
}

const (
	defaultBaseURL   = "http://localhost:5005"
	defaultUserAgent = "bookshare/0.1"
	requestTimeout   = 5 * time.Second
)

// Option customizes a Client.
type Option func(*Client)

// WithTokenSource attaches the source of the bearer credential.
func WithTokenSource(ts TokenSource) Option {
	return func(c *Client) { c.tokens = ts }
}

// WithTimeout overrides the per-request timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.http.Timeout = d
		}
	}
}

// NewClient builds a Client for the API rooted at baseURL.
func NewClient(baseURL string, opts ...Option) (*Client, error) {
	base, err := parseBaseURL(baseURL)
	if err != nil {
		return nil, err
	}
	c := &Client{
		baseURL: base,
		http: &http.Client{
			Timeout: requestTimeout,
		},
		userAgent: defaultUserAgent,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Authenticated reports whether a bearer credential is available.
func (c *Client) Authenticated() bool {
	return c.token() != ""
}

// Signup registers a new account.
func (c *Client) Signup(ctx context.Context, req Signup) error {
	return c.do(ctx, http.MethodPost, "/auth/signup", false, req, nil)
}

// Login exchanges credentials for a bearer token. It does not persist the
// token; that belongs to the session store.
func (c *Client) Login(ctx context.Context, creds Credentials) (string, error) {
	var payload loginResponse
	if err := c.do(ctx, http.MethodPost, "/auth/login", false, creds, &payload); err != nil {
		return "", err
	}
	token := strings.TrimSpace(payload.AuthToken)
	if token == "" {
		return "", fmt.Errorf("login response missing authToken")
	}
	return token, nil
}

// Verify resolves the identity behind the current bearer credential.
func (c *Client) Verify(ctx context.Context) (User, error) {
	var user User
	if err := c.do(ctx, http.MethodGet, "/auth/verify", true, nil, &user); err != nil {
		return User{}, err
	}
	return user, nil
}

// SearchCatalog queries the external book catalog.
func (c *Client) SearchCatalog(ctx context.Context, query string) ([]Book, error) {
	var books []Book
	if err := c.doURL(ctx, http.MethodGet, searchURL("/api/search-books", query), false, nil, &books); err != nil {
		return nil, err
	}
	return books, nil
}

// SearchAvailable lists copies available to borrow. Signed-in users get the
// full variant with owner details; anonymous users get the public browse
// variant without them.
func (c *Client) SearchAvailable(ctx context.Context, query string) ([]AvailableBook, error) {
	path := "/api/browse-available-books"
	auth := c.Authenticated()
	if auth {
		path = "/api/search-available-books"
	}
	var books []AvailableBook
	if err := c.doURL(ctx, http.MethodGet, searchURL(path, query), auth, nil, &books); err != nil {
		return nil, err
	}
	return books, nil
}

// AddCopy lists a personal copy for lending.
func (c *Client) AddCopy(ctx context.Context, listing NewCopy) (Copy, error) {
	if strings.TrimSpace(listing.ExternalID) == "" {
		return Copy{}, fmt.Errorf("no valid external id for %q", listing.Title)
	}
	var created Copy
	if err := c.do(ctx, http.MethodPost, "/api/mybooks/add", true, listing, &created); err != nil {
		return Copy{}, err
	}
	return created, nil
}

// ListMyCopies returns the copies owned by the signed-in user.
func (c *Client) ListMyCopies(ctx context.Context) ([]Copy, error) {
	var copies []Copy
	if err := c.do(ctx, http.MethodGet, "/api/mybooks", true, nil, &copies); err != nil {
		return nil, err
	}
	return copies, nil
}

// DeleteCopy removes one of the signed-in user's copies.
func (c *Client) DeleteCopy(ctx context.Context, id string) error {
	path, err := resourcePath("/api/mybooks/", id)
	if err != nil {
		return err
	}
	return c.do(ctx, http.MethodDelete, path, true, nil, nil)
}

// CreateReservation reserves a copy for the requested number of days.
func (c *Client) CreateReservation(ctx context.Context, copyID string, days int) (Reservation, error) {
	if strings.TrimSpace(copyID) == "" {
		return Reservation{}, fmt.Errorf("copy id required")
	}
	req := createReservationRequest{BookCopyID: copyID, RequestedDays: days}
	var created Reservation
	if err := c.do(ctx, http.MethodPost, "/api/reservations", true, req, &created); err != nil {
		return Reservation{}, err
	}
	return created, nil
}

// ListReservations returns the signed-in user's reservations.
func (c *Client) ListReservations(ctx context.Context) ([]Reservation, error) {
	var reservations []Reservation
	if err := c.do(ctx, http.MethodGet, "/api/reservations", true, nil, &reservations); err != nil {
		return nil, err
	}
	return reservations, nil
}

// UpdateReservation changes a reservation's length.
func (c *Client) UpdateReservation(ctx context.Context, id string, days int, endDate time.Time) (Reservation, error) {
	path, err := resourcePath("/api/reservations/", id)
	if err != nil {
		return Reservation{}, err
	}
	req := updateReservationRequest{RequestedDays: days, EndDate: endDate.UTC()}
	var updated Reservation
	if err := c.do(ctx, http.MethodPut, path, true, req, &updated); err != nil {
		return Reservation{}, err
	}
	return updated, nil
}

// CancelReservation cancels one of the signed-in user's reservations.
func (c *Client) CancelReservation(ctx context.Context, id string) error {
	path, err := resourcePath("/api/reservations/", id)
	if err != nil {
		return err
	}
	return c.do(ctx, http.MethodDelete, path, true, nil, nil)
}

func (c *Client) token() string {
	if c == nil || c.tokens == nil {
		return ""
	}
	return strings.TrimSpace(c.tokens.Token())
}

func (c *Client) do(ctx context.Context, method, path string, auth bool, body, dest any) error {
	rel := &url.URL{Path: path}
	return c.doURL(ctx, method, rel, auth, body, dest)
}

func (c *Client) doURL(ctx context.Context, method string, rel *url.URL, auth bool, body, dest any) error {
	if c == nil {
		return fmt.Errorf("client is nil")
	}
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	reqURL := c.baseURL.ResolveReference(rel)
	req, err := http.NewRequestWithContext(ctx, method, reqURL.String(), reader)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", c.userAgent)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if auth {
		if token := c.token(); token != "" {
			req.Header.Set("Authorization", "Bearer "+token)
		}
	}

	resp, err := c.http.Do(req)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return fmt.Errorf("execute request: %w", ctxErr)
		}
		return fmt.Errorf("execute request: %w: %w", ErrConnectivity, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode >= 400 {
		return decodeAPIError(resp, rel.Path)
	}
	if dest == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}
	decoder := json.NewDecoder(resp.Body)
	if err := decoder.Decode(dest); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func decodeAPIError(resp *http.Response, path string) error {
	apiErr := &APIError{Status: resp.StatusCode, Path: path}
	var payload errorResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, 64*1024)).Decode(&payload); err == nil {
		apiErr.Message = strings.TrimSpace(payload.Error)
		if msg := strings.TrimSpace(payload.Message); msg != "" {
			apiErr.Message = msg
		}
	}
	return apiErr
}

func searchURL(path, query string) *url.URL {
	values := url.Values{}
	values.Set("q", strings.TrimSpace(query))
	return &url.URL{Path: path, RawQuery: values.Encode()}
}

func resourcePath(prefix, id string) (string, error) {
	trimmed := strings.TrimSpace(id)
	if trimmed == "" {
		return "", fmt.Errorf("id required")
	}
	if strings.ContainsAny(trimmed, "/?#") {
		return "", fmt.Errorf("invalid id %q", id)
	}
	return prefix + trimmed, nil
}

func parseBaseURL(raw string) (*url.URL, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		trimmed = defaultBaseURL
	}
	if !strings.Contains(trimmed, "://") {
		trimmed = "http://" + trimmed
	}
	u, err := url.Parse(trimmed)
	if err != nil {
		return nil, fmt.Errorf("parse api_url %q: %w", raw, err)
	}
	u.Path = ""
	u.RawQuery = ""
	u.Fragment = ""
	return u, nil
}
