package chatwoot

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
)

// newTestClient creates a client against the given server with fast retry
// timing and no pacing so tests don't sleep.
func newTestClient(t *testing.T, srv *httptest.Server, opts ...ClientOption) *Client {
	t.Helper()
	creds := Credentials{
		BaseURL:     srv.URL,
		AccessToken: "secret-token",
		AccountID:   "7",
	}
	base := []ClientOption{
		WithPacer(NewPacer(0, 0, 0, false)),
		WithRetry(3, time.Millisecond),
	}
	return NewClient(creds, append(base, opts...)...)
}

func TestClient_ListInboxes(t *testing.T) {
	var gotPath, gotToken string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotToken = r.Header.Get("api_access_token")
		fmt.Fprint(w, `{"payload":[{"id":1,"name":"WhatsApp"},{"id":2,"name":"Email"}]}`)
	}))
	defer srv.Close()

	c := newTestClient(t, srv)
	inboxes, err := c.ListInboxes(context.Background())
	if err != nil {
		t.Fatalf("ListInboxes() error = %v", err)
	}

	if gotPath != "/api/v1/accounts/7/inboxes" {
		t.Errorf("path = %q, want account-scoped inboxes path", gotPath)
	}
	if gotToken != "secret-token" {
		t.Errorf("api_access_token header = %q, want credentials token", gotToken)
	}

	want := []Inbox{{ID: 1, Name: "WhatsApp"}, {ID: 2, Name: "Email"}}
	if diff := cmp.Diff(want, inboxes); diff != "" {
		t.Errorf("inboxes mismatch (-want +got):\n%s", diff)
	}
}

func TestClient_UnauthorizedNotRetried(t *testing.T) {
	var calls atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		http.Error(w, `{"error":"invalid token"}`, http.StatusUnauthorized)
	}))
	defer srv.Close()

	c := newTestClient(t, srv)
	_, err := c.ListInboxes(context.Background())
	if err == nil {
		t.Fatal("ListInboxes() should fail on 401")
	}
	if !IsUnauthorized(err) {
		t.Errorf("IsUnauthorized(%v) = false, want true", err)
	}
	if IsExhausted(err) {
		t.Errorf("401 must not be classified as retry exhaustion: %v", err)
	}
	if n := calls.Load(); n != 1 {
		t.Errorf("server saw %d requests, want 1 (no retries on auth failure)", n)
	}
}

func TestClient_RetriesRateLimited(t *testing.T) {
	var calls atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.Header().Set("Retry-After", "0")
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		fmt.Fprint(w, `{"payload":[]}`)
	}))
	defer srv.Close()

	c := newTestClient(t, srv)
	if _, err := c.ListInboxes(context.Background()); err != nil {
		t.Fatalf("ListInboxes() error = %v, want recovery after 429", err)
	}
	if n := calls.Load(); n != 2 {
		t.Errorf("server saw %d requests, want 2", n)
	}
}

func TestClient_RateLimitedSlowsPacer(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	pacer := NewPacer(10*time.Microsecond, time.Microsecond, time.Millisecond, true)
	c := newTestClient(t, srv, WithPacer(pacer))

	before := pacer.Delay()
	_, err := c.ListInboxes(context.Background())
	if !IsExhausted(err) {
		t.Fatalf("ListInboxes() error = %v, want exhaustion", err)
	}
	if after := pacer.Delay(); after <= before {
		t.Errorf("pacer delay after 429s = %v, want > %v", after, before)
	}
}

func TestClient_SuccessEasesPacer(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"payload":[]}`)
	}))
	defer srv.Close()

	pacer := NewPacer(10*time.Microsecond, time.Microsecond, time.Millisecond, true)
	c := newTestClient(t, srv, WithPacer(pacer))

	before := pacer.Delay()
	if _, err := c.ListInboxes(context.Background()); err != nil {
		t.Fatalf("ListInboxes() error = %v", err)
	}
	if after := pacer.Delay(); after >= before {
		t.Errorf("pacer delay after success = %v, want < %v", after, before)
	}
}

func TestClient_ServerErrorsExhaustRetryBudget(t *testing.T) {
	var calls atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer srv.Close()

	c := newTestClient(t, srv)
	_, err := c.ListInboxes(context.Background())
	if !IsExhausted(err) {
		t.Fatalf("ListInboxes() error = %v, want ExhaustedError", err)
	}
	if n := calls.Load(); n != 3 {
		t.Errorf("server saw %d requests, want the full budget of 3", n)
	}
}

func TestClient_ClientErrorNotRetried(t *testing.T) {
	var calls atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		http.Error(w, "nope", http.StatusNotFound)
	}))
	defer srv.Close()

	c := newTestClient(t, srv)
	_, err := c.ListInboxes(context.Background())
	if err == nil {
		t.Fatal("ListInboxes() should fail on 404")
	}
	if IsExhausted(err) || IsUnauthorized(err) {
		t.Errorf("404 misclassified: %v", err)
	}
	if n := calls.Load(); n != 1 {
		t.Errorf("server saw %d requests, want 1", n)
	}
}

func TestClient_ListConversations_DataEnvelope(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		if q.Get("page") != "2" || q.Get("status") != "all" {
			t.Errorf("query = %v, want page=2 status=all", q)
		}
		if q.Get("since") != "2024-01-01" || q.Get("until") != "2024-06-30" {
			t.Errorf("query = %v, want date window forwarded", q)
		}
		fmt.Fprint(w, `{
			"data": {"payload": [
				{"id": 11, "inbox_id": 3, "created_at": 1700000000,
				 "meta": {"sender": {"name": "Ada", "email": "ada@example.com"}}}
			]},
			"meta": {"count": 40, "per_page": 25}
		}`)
	}))
	defer srv.Close()

	c := newTestClient(t, srv)
	page, err := c.ListConversations(context.Background(), 2, ListOptions{Since: "2024-01-01", Until: "2024-06-30"})
	if err != nil {
		t.Fatalf("ListConversations() error = %v", err)
	}

	want := &ConversationPage{
		Conversations: []Conversation{{
			ID: 11, InboxID: 3, ContactName: "Ada", ContactEmail: "ada@example.com", CreatedAt: 1700000000,
		}},
		TotalCount: 40,
		PerPage:    25,
	}
	if diff := cmp.Diff(want, page); diff != "" {
		t.Errorf("page mismatch (-want +got):\n%s", diff)
	}
}

func TestClient_ListConversations_FlatEnvelope(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"payload":[{"id":5,"inbox_id":1,"created_at":1700000001,
			"meta":{"sender":{"name":"Bob"}}}],"meta":{"count":1}}`)
	}))
	defer srv.Close()

	c := newTestClient(t, srv)
	page, err := c.ListConversations(context.Background(), 1, ListOptions{})
	if err != nil {
		t.Fatalf("ListConversations() error = %v", err)
	}
	if len(page.Conversations) != 1 || page.Conversations[0].ID != 5 {
		t.Errorf("flat envelope not parsed: %+v", page)
	}
}

func TestClient_ListMessages(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/v1/accounts/7/conversations/42/messages" {
			t.Errorf("path = %q", r.URL.Path)
		}
		fmt.Fprint(w, `{"payload":[
			{"id": 1, "content": "hello", "message_type": 0, "created_at": 1698414600,
			 "sender": {"name": "Ada", "email": "ada@example.com", "type": "Contact"}},
			{"id": 2, "content": "hi there", "message_type": "outgoing", "created_at": 1698414660,
			 "sender": {"name": "Sam Agent", "email": "sam@corp.example", "type": "User"}},
			{"id": 3, "content": "no sender or type"}
		]}`)
	}))
	defer srv.Close()

	c := newTestClient(t, srv)
	messages, err := c.ListMessages(context.Background(), 42)
	if err != nil {
		t.Fatalf("ListMessages() error = %v", err)
	}

	want := []RawMessage{
		{ID: 1, ConversationID: 42, MessageType: MessageIncoming, SenderName: "Ada",
			SenderType: "Contact", Content: "hello", CreatedAt: 1698414600},
		{ID: 2, ConversationID: 42, MessageType: MessageOutgoing, SenderName: "Sam Agent",
			SenderType: "User", Content: "hi there", CreatedAt: 1698414660,
			AgentEmail: "sam@corp.example"},
		{ID: 3, ConversationID: 42, MessageType: MessageOutgoing, Content: "no sender or type"},
	}
	if diff := cmp.Diff(want, messages); diff != "" {
		t.Errorf("messages mismatch (-want +got):\n%s", diff)
	}
}

func TestParseRetryAfter(t *testing.T) {
	tests := []struct {
		in   string
		want time.Duration
	}{
		{"", 0},
		{"5", 5 * time.Second},
		{"0", 0},
		{"-3", 0},
		{"garbage", 0},
	}
	for _, tc := range tests {
		if got := parseRetryAfter(tc.in); got != tc.want {
			t.Errorf("parseRetryAfter(%q) = %v, want %v", tc.in, got, tc.want)
		}
	}
}
