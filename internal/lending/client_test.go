package lending

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

type staticToken string

func (s staticToken) Token() string { return string(s) }

func TestParseBaseURL_DefaultsAndNormalizes(t *testing.T) {
	u, err := parseBaseURL("")
	if err != nil {
		t.Fatalf("parseBaseURL returned error: %v", err)
	}
	if u.String() != defaultBaseURL {
		t.Fatalf("url = %q, want %q", u.String(), defaultBaseURL)
	}

	u, err = parseBaseURL("api.example.com:8080/path?x=1#frag")
	if err != nil {
		t.Fatalf("parseBaseURL returned error: %v", err)
	}
	if u.Scheme != "http" || u.Host != "api.example.com:8080" {
		t.Fatalf("url = %q, want http://api.example.com:8080", u.String())
	}
	if u.Path != "" || u.RawQuery != "" || u.Fragment != "" {
		t.Fatalf("url not normalized: %q", u.String())
	}
}

func TestClient_AuthFlow(t *testing.T) {
	t.Parallel()

	var gotLogin Credentials
	var gotVerifyAuth string
	var gotUserAgent string

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUserAgent = r.Header.Get("User-Agent")
		w.Header().Set("Content-Type", "application/json")
		switch r.URL.Path {
		case "/auth/login":
			if r.Method != http.MethodPost {
				t.Errorf("login method = %s, want POST", r.Method)
			}
			_ = json.NewDecoder(r.Body).Decode(&gotLogin)
			_ = json.NewEncoder(w).Encode(map[string]string{"authToken": "tok-123"})
		case "/auth/verify":
			gotVerifyAuth = r.Header.Get("Authorization")
			_, _ = w.Write([]byte(`{"_id":"u1","name":"Ada","email":"ada@example.com"}`))
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(server.Close)

	c, err := NewClient(server.URL, WithTokenSource(staticToken("tok-123")))
	if err != nil {
		t.Fatalf("NewClient returned error: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	t.Cleanup(cancel)

	token, err := c.Login(ctx, Credentials{Email: "ada@example.com", Password: "pw"})
	if err != nil {
		t.Fatalf("Login returned error: %v", err)
	}
	if token != "tok-123" {
		t.Fatalf("token = %q, want tok-123", token)
	}
	if gotLogin.Email != "ada@example.com" || gotLogin.Password != "pw" {
		t.Fatalf("login body = %#v", gotLogin)
	}

	user, err := c.Verify(ctx)
	if err != nil {
		t.Fatalf("Verify returned error: %v", err)
	}
	if user.ID != "u1" || user.Name != "Ada" {
		t.Fatalf("Verify user = %#v, want u1/Ada", user)
	}
	if gotVerifyAuth != "Bearer tok-123" {
		t.Fatalf("Authorization = %q, want Bearer tok-123", gotVerifyAuth)
	}
	if !strings.HasPrefix(gotUserAgent, "bookshare/") {
		t.Fatalf("User-Agent = %q, want bookshare/*", gotUserAgent)
	}
}

func TestClient_LoginMissingToken(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{}`))
	}))
	t.Cleanup(server.Close)

	c, err := NewClient(server.URL)
	if err != nil {
		t.Fatalf("NewClient returned error: %v", err)
	}
	if _, err := c.Login(context.Background(), Credentials{}); err == nil {
		t.Fatal("Login returned nil error, want missing authToken error")
	}
}

func TestClient_SearchAvailableVariantByAuthState(t *testing.T) {
	t.Parallel()

	type hit struct {
		path  string
		query string
		auth  string
	}
	var hits []hit

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits = append(hits, hit{r.URL.Path, r.URL.Query().Get("q"), r.Header.Get("Authorization")})
		_, _ = w.Write([]byte(`[{"bookInfo":{"key":"/works/OL1W","title":"Dune","authors":["Frank Herbert"]},
			"copies":[{"_id":"c1","title":"Dune","maxDuration":14,"owner":{"_id":"u2","name":"Bo"}},
			{"_id":"c2","title":"Dune","maxDuration":7,"owner":"u3"}]}]`))
	}))
	t.Cleanup(server.Close)

	anon, err := NewClient(server.URL)
	if err != nil {
		t.Fatalf("NewClient returned error: %v", err)
	}
	if _, err := anon.SearchAvailable(context.Background(), " dune "); err != nil {
		t.Fatalf("SearchAvailable (anonymous) returned error: %v", err)
	}

	authed, err := NewClient(server.URL, WithTokenSource(staticToken("tok")))
	if err != nil {
		t.Fatalf("NewClient returned error: %v", err)
	}
	books, err := authed.SearchAvailable(context.Background(), "dune")
	if err != nil {
		t.Fatalf("SearchAvailable (authenticated) returned error: %v", err)
	}

	if len(hits) != 2 {
		t.Fatalf("hits = %d, want 2", len(hits))
	}
	if hits[0].path != "/api/browse-available-books" || hits[0].auth != "" || hits[0].query != "dune" {
		t.Fatalf("anonymous hit = %#v", hits[0])
	}
	if hits[1].path != "/api/search-available-books" || hits[1].auth != "Bearer tok" {
		t.Fatalf("authenticated hit = %#v", hits[1])
	}

	if len(books) != 1 || len(books[0].Copies) != 2 {
		t.Fatalf("books = %#v, want 1 book with 2 copies", books)
	}
	if books[0].Book.ExternalID() != "/works/OL1W" {
		t.Fatalf("ExternalID = %q", books[0].Book.ExternalID())
	}
	if got := books[0].Copies[0].OwnerID(); got != "u2" {
		t.Fatalf("populated owner id = %q, want u2", got)
	}
	if got := books[0].Copies[1].OwnerID(); got != "u3" {
		t.Fatalf("bare owner id = %q, want u3", got)
	}
}

func TestClient_CopyAndReservationEndpoints(t *testing.T) {
	t.Parallel()

	var calls []string
	var gotAdd NewCopy
	var gotCreate createReservationRequest
	var gotUpdate updateReservationRequest

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls = append(calls, r.Method+" "+r.URL.Path)
		if r.Header.Get("Authorization") != "Bearer tok" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		switch r.Method + " " + r.URL.Path {
		case "POST /api/mybooks/add":
			_ = json.NewDecoder(r.Body).Decode(&gotAdd)
			_, _ = w.Write([]byte(`{"_id":"c9","title":"Dune","maxDuration":14}`))
		case "GET /api/mybooks":
			_, _ = w.Write([]byte(`[{"_id":"c9","title":"Dune"}]`))
		case "DELETE /api/mybooks/c9":
			w.WriteHeader(http.StatusNoContent)
		case "POST /api/reservations":
			_ = json.NewDecoder(r.Body).Decode(&gotCreate)
			_, _ = w.Write([]byte(`{"_id":"r1","startDate":"2024-01-01T00:00:00Z","endDate":"2024-01-08T00:00:00Z"}`))
		case "GET /api/reservations":
			_, _ = w.Write([]byte(`[{"_id":"r1","book":{"_id":"c9","title":"Dune","owner":{"_id":"u2","name":"Bo"}},
				"startDate":"2024-01-01T00:00:00Z","endDate":"2024-01-08T00:00:00Z"}]`))
		case "PUT /api/reservations/r1":
			_ = json.NewDecoder(r.Body).Decode(&gotUpdate)
			_, _ = w.Write([]byte(`{"_id":"r1"}`))
		case "DELETE /api/reservations/r1":
			_, _ = w.Write([]byte(`{"message":"Reservation cancelled"}`))
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(server.Close)

	c, err := NewClient(server.URL, WithTokenSource(staticToken("tok")))
	if err != nil {
		t.Fatalf("NewClient returned error: %v", err)
	}
	ctx := context.Background()

	book := Book{ID: "OL1", Title: "Dune", PublishedYear: 1965}
	if _, err := c.AddCopy(ctx, NewCopyFromBook(book, 14)); err != nil {
		t.Fatalf("AddCopy returned error: %v", err)
	}
	if gotAdd.ExternalID != "OL1" || gotAdd.MaxDuration != 14 || gotAdd.Authors == nil {
		t.Fatalf("add body = %#v", gotAdd)
	}

	copies, err := c.ListMyCopies(ctx)
	if err != nil || len(copies) != 1 {
		t.Fatalf("ListMyCopies = %#v, %v", copies, err)
	}
	if err := c.DeleteCopy(ctx, "c9"); err != nil {
		t.Fatalf("DeleteCopy returned error: %v", err)
	}

	created, err := c.CreateReservation(ctx, "c9", 5)
	if err != nil {
		t.Fatalf("CreateReservation returned error: %v", err)
	}
	if gotCreate.BookCopyID != "c9" || gotCreate.RequestedDays != 5 {
		t.Fatalf("create body = %#v", gotCreate)
	}
	if !created.EndDate.Equal(time.Date(2024, 1, 8, 0, 0, 0, 0, time.UTC)) {
		t.Fatalf("created.EndDate = %v", created.EndDate)
	}

	reservations, err := c.ListReservations(ctx)
	if err != nil || len(reservations) != 1 {
		t.Fatalf("ListReservations = %#v, %v", reservations, err)
	}
	if reservations[0].Title() != "Dune" || reservations[0].Copy.OwnerID() != "u2" {
		t.Fatalf("reservation = %#v", reservations[0])
	}

	end := time.Date(2024, 1, 11, 0, 0, 0, 0, time.UTC)
	if _, err := c.UpdateReservation(ctx, "r1", 10, end); err != nil {
		t.Fatalf("UpdateReservation returned error: %v", err)
	}
	if gotUpdate.RequestedDays != 10 || !gotUpdate.EndDate.Equal(end) {
		t.Fatalf("update body = %#v", gotUpdate)
	}
	if err := c.CancelReservation(ctx, "r1"); err != nil {
		t.Fatalf("CancelReservation returned error: %v", err)
	}

	want := []string{
		"POST /api/mybooks/add",
		"GET /api/mybooks",
		"DELETE /api/mybooks/c9",
		"POST /api/reservations",
		"GET /api/reservations",
		"PUT /api/reservations/r1",
		"DELETE /api/reservations/r1",
	}
	if strings.Join(calls, ",") != strings.Join(want, ",") {
		t.Fatalf("calls = %v, want %v", calls, want)
	}
}

func TestClient_RejectsMissingIDs(t *testing.T) {
	c, err := NewClient("127.0.0.1:1")
	if err != nil {
		t.Fatalf("NewClient returned error: %v", err)
	}
	ctx := context.Background()
	if err := c.DeleteCopy(ctx, " "); err == nil {
		t.Fatal("DeleteCopy returned nil error, want id required")
	}
	if err := c.CancelReservation(ctx, "a/b"); err == nil {
		t.Fatal("CancelReservation returned nil error, want invalid id")
	}
	if _, err := c.CreateReservation(ctx, "", 3); err == nil {
		t.Fatal("CreateReservation returned nil error, want copy id required")
	}
	if _, err := c.AddCopy(ctx, NewCopy{Title: "No id"}); err == nil {
		t.Fatal("AddCopy returned nil error, want external id error")
	}
}

func TestClient_ErrorTaxonomy(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch r.URL.Path {
		case "/auth/verify":
			w.WriteHeader(http.StatusUnauthorized)
			_, _ = w.Write([]byte(`{"message":"Token expired"}`))
		case "/api/reservations":
			w.WriteHeader(http.StatusBadRequest)
			_, _ = w.Write([]byte(`{"error":"Copy is not available"}`))
		case "/api/search-books":
			w.WriteHeader(http.StatusNotFound)
		case "/api/mybooks":
			w.WriteHeader(http.StatusInternalServerError)
		case "/api/search-available-books":
			_, _ = w.Write([]byte("{not-json"))
		}
	}))
	t.Cleanup(server.Close)

	c, err := NewClient(server.URL, WithTokenSource(staticToken("tok")))
	if err != nil {
		t.Fatalf("NewClient returned error: %v", err)
	}
	ctx := context.Background()

	_, err = c.Verify(ctx)
	if !errors.Is(err, ErrAuthExpired) || Classify(err) != KindAuthExpired {
		t.Fatalf("Verify error = %v, want ErrAuthExpired", err)
	}

	_, err = c.CreateReservation(ctx, "c1", 3)
	if Classify(err) != KindValidation {
		t.Fatalf("CreateReservation kind = %v, want validation", Classify(err))
	}
	if got := Message(err); got != "Copy is not available" {
		t.Fatalf("Message = %q, want server message", got)
	}

	_, err = c.SearchCatalog(ctx, "x")
	if Classify(err) != KindNotFound {
		t.Fatalf("SearchCatalog kind = %v, want not-found", Classify(err))
	}

	_, err = c.ListMyCopies(ctx)
	if Classify(err) != KindOther || !strings.Contains(err.Error(), "returned status 500") {
		t.Fatalf("ListMyCopies error = %v, want status 500", err)
	}

	_, err = c.SearchAvailable(ctx, "x")
	if err == nil || !strings.Contains(err.Error(), "decode response") {
		t.Fatalf("SearchAvailable error = %v, want decode response error", err)
	}
}

func TestClient_ConnectivityFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := server.URL
	server.Close()

	c, err := NewClient(url)
	if err != nil {
		t.Fatalf("NewClient returned error: %v", err)
	}
	_, err = c.SearchCatalog(context.Background(), "dune")
	if Classify(err) != KindConnectivity {
		t.Fatalf("kind = %v (%v), want connectivity", Classify(err), err)
	}
	if !strings.Contains(Message(err), "retry") {
		t.Fatalf("Message = %q, want retry hint", Message(err))
	}
}

func TestOwner_UnmarshalVariants(t *testing.T) {
	tests := []struct {
		name   string
		input  string
		wantID string
		nilPtr bool
	}{
		{"object", `{"owner":{"_id":"u1","name":"Ada"}}`, "u1", false},
		{"string", `{"owner":"u2"}`, "u2", false},
		{"null", `{"owner":null}`, "", true},
		{"missing", `{}`, "", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var c Copy
			if err := json.Unmarshal([]byte(tt.input), &c); err != nil {
				t.Fatalf("Unmarshal: %v", err)
			}
			if tt.nilPtr && c.Owner != nil && c.Owner.ID != "" {
				t.Fatalf("Owner = %#v, want unresolved", c.Owner)
			}
			if got := c.OwnerID(); got != tt.wantID {
				t.Fatalf("OwnerID = %q, want %q", got, tt.wantID)
			}
		})
	}
}
