package chatwoot

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"time"
)

const (
	defaultTimeout     = 30 * time.Second
	defaultMaxAttempts = 3
	defaultBaseBackoff = 1 * time.Second
	defaultDelay       = 500 * time.Millisecond
	defaultMinDelay    = 100 * time.Millisecond
	defaultMaxDelay    = 30 * time.Second

	// maxErrorBody bounds how much of an error response ends up in messages.
	maxErrorBody = 512
)

// Client implements the Chatwoot API interface over HTTP.
type Client struct {
	httpClient  *http.Client
	creds       Credentials
	pacer       *Pacer
	backoff     Backoff
	maxAttempts int
	clock       Clock
	logger      *slog.Logger
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithLogger sets the logger for the client.
func WithLogger(logger *slog.Logger) ClientOption {
	return func(c *Client) {
		c.logger = logger
	}
}

// WithPacer sets a custom request pacer.
func WithPacer(p *Pacer) ClientOption {
	return func(c *Client) {
		c.pacer = p
	}
}

// WithRetry sets the retry budget and the base backoff between attempts.
func WithRetry(maxAttempts int, base time.Duration) ClientOption {
	return func(c *Client) {
		if maxAttempts >= 1 {
			c.maxAttempts = maxAttempts
		}
		if base > 0 {
			c.backoff.Base = base
		}
	}
}

// WithHTTPClient sets the underlying HTTP client.
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) {
		c.httpClient = hc
	}
}

// NewClient creates a new Chatwoot API client for one tenant account.
func NewClient(creds Credentials, opts ...ClientOption) *Client {
	c := &Client{
		httpClient:  &http.Client{Timeout: defaultTimeout},
		creds:       creds,
		backoff:     Backoff{Base: defaultBaseBackoff, Cap: defaultMaxDelay},
		maxAttempts: defaultMaxAttempts,
		clock:       realClock{},
		logger:      slog.Default(),
	}

	for _, opt := range opts {
		opt(c)
	}

	if c.pacer == nil {
		c.pacer = NewPacer(defaultDelay, defaultMinDelay, defaultMaxDelay, true)
	}

	return c
}

// get issues a GET request with pacing, retry and backoff, decoding the JSON
// response into v. Recoverable failures (429, 5xx, network errors) share one
// retry budget; 401/403 and other 4xx responses fail immediately.
func (c *Client) get(ctx context.Context, path string, params url.Values, v any) error {
	reqURL := c.creds.BaseURL + path
	if len(params) > 0 {
		reqURL += "?" + params.Encode()
	}

	var lastErr error
	var retryAfter time.Duration

	for attempt := 1; attempt <= c.maxAttempts; attempt++ {
		if attempt > 1 {
			wait := c.backoff.Delay(attempt - 1)
			if retryAfter > wait {
				wait = retryAfter
			}
			retryAfter = 0
			c.logger.Debug("retrying request", "attempt", attempt, "wait", wait, "path", path)

			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-c.clock.After(wait):
			}
		}

		// Inter-request pacing applies to every attempt.
		if err := c.pacer.Wait(ctx); err != nil {
			return err
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
		if err != nil {
			return fmt.Errorf("create request: %w", err)
		}
		req.Header.Set("api_access_token", c.creds.AccessToken)
		req.Header.Set("Content-Type", "application/json")

		resp, err := c.httpClient.Do(req)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			lastErr = fmt.Errorf("http request: %w", err)
			continue // Retry on network errors
		}

		body, err := io.ReadAll(resp.Body)
		resp.Body.Close()
		if err != nil {
			lastErr = fmt.Errorf("read response: %w", err)
			continue
		}

		if resp.StatusCode >= 200 && resp.StatusCode < 300 {
			c.pacer.Ease()
			if v == nil {
				return nil
			}
			if err := json.Unmarshal(body, v); err != nil {
				return fmt.Errorf("decode %s: %w", path, err)
			}
			return nil
		}

		switch {
		case resp.StatusCode == 401 || resp.StatusCode == 403:
			// Credentials are wrong for the whole run. Never retried.
			return &StatusError{StatusCode: resp.StatusCode, Path: path, Body: truncate(string(body))}

		case resp.StatusCode == 429:
			c.pacer.Slow()
			retryAfter = parseRetryAfter(resp.Header.Get("Retry-After"))
			c.logger.Debug("rate limited", "path", path, "attempt", attempt, "retry_after", retryAfter, "delay", c.pacer.Delay())
			lastErr = &StatusError{StatusCode: resp.StatusCode, Path: path}
			continue

		case resp.StatusCode >= 500:
			lastErr = &StatusError{StatusCode: resp.StatusCode, Path: path}
			continue

		default:
			// Other client errors are not retried.
			return &StatusError{StatusCode: resp.StatusCode, Path: path, Body: truncate(string(body))}
		}
	}

	return &ExhaustedError{Attempts: c.maxAttempts, Last: lastErr}
}

// parseRetryAfter parses a Retry-After header value in seconds.
func parseRetryAfter(s string) time.Duration {
	if s == "" {
		return 0
	}
	secs, err := strconv.Atoi(s)
	if err != nil || secs < 0 {
		return 0
	}
	return time.Duration(secs) * time.Second
}

func truncate(s string) string {
	if len(s) > maxErrorBody {
		return s[:maxErrorBody]
	}
	return s
}

// Chatwoot API JSON response types (unexported, used only for JSON unmarshaling).

type inboxJSON struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

type listInboxesResponse struct {
	Payload []inboxJSON `json:"payload"`
}

type senderJSON struct {
	Name  string `json:"name"`
	Email string `json:"email"`
	Type  string `json:"type"`
}

type conversationJSON struct {
	ID        int64 `json:"id"`
	InboxID   int64 `json:"inbox_id"`
	CreatedAt int64 `json:"created_at"`
	Meta      struct {
		Sender senderJSON `json:"sender"`
	} `json:"meta"`
}

type conversationMeta struct {
	Count   int64 `json:"count"`
	PerPage int   `json:"per_page"`
}

// listConversationsResponse tolerates both envelope shapes the API produces:
// {"data":{"payload":[...]},"meta":{...}} and {"payload":[...],"meta":{...}}.
type listConversationsResponse struct {
	Data *struct {
		Payload []conversationJSON `json:"payload"`
	} `json:"data"`
	Payload []conversationJSON `json:"payload"`
	Meta    conversationMeta   `json:"meta"`
}

func (r *listConversationsResponse) conversations() []conversationJSON {
	if r.Data != nil {
		return r.Data.Payload
	}
	return r.Payload
}

type messageJSON struct {
	ID          int64       `json:"id"`
	Content     string      `json:"content"`
	MessageType MessageType `json:"message_type"`
	CreatedAt   int64       `json:"created_at"`
	Sender      *senderJSON `json:"sender"`
}

type listMessagesResponse struct {
	Payload []messageJSON `json:"payload"`
}

// ListInboxes returns all inboxes configured for the account.
func (c *Client) ListInboxes(ctx context.Context) ([]Inbox, error) {
	var resp listInboxesResponse
	if err := c.get(ctx, c.creds.accountPath("/inboxes"), nil, &resp); err != nil {
		return nil, err
	}

	inboxes := make([]Inbox, len(resp.Payload))
	for i, in := range resp.Payload {
		inboxes[i] = Inbox{ID: in.ID, Name: in.Name}
	}
	return inboxes, nil
}

// ListConversations returns one page of conversations.
func (c *Client) ListConversations(ctx context.Context, page int, opts ListOptions) (*ConversationPage, error) {
	params := url.Values{}
	params.Set("page", strconv.Itoa(page))
	status := opts.Status
	if status == "" {
		status = "all"
	}
	params.Set("status", status)
	if opts.Since != "" {
		params.Set("since", opts.Since)
	}
	if opts.Until != "" {
		params.Set("until", opts.Until)
	}

	var resp listConversationsResponse
	if err := c.get(ctx, c.creds.accountPath("/conversations"), params, &resp); err != nil {
		return nil, err
	}

	payload := resp.conversations()
	conversations := make([]Conversation, len(payload))
	for i, cj := range payload {
		conversations[i] = Conversation{
			ID:           cj.ID,
			InboxID:      cj.InboxID,
			ContactName:  cj.Meta.Sender.Name,
			ContactEmail: cj.Meta.Sender.Email,
			CreatedAt:    cj.CreatedAt,
		}
	}

	return &ConversationPage{
		Conversations: conversations,
		TotalCount:    resp.Meta.Count,
		PerPage:       resp.Meta.PerPage,
	}, nil
}

// ListMessages returns all messages of a conversation in API order.
func (c *Client) ListMessages(ctx context.Context, conversationID int64) ([]RawMessage, error) {
	var resp listMessagesResponse
	if err := c.get(ctx, c.creds.conversationMessagesPath(conversationID), nil, &resp); err != nil {
		return nil, err
	}

	messages := make([]RawMessage, len(resp.Payload))
	for i, mj := range resp.Payload {
		msg := RawMessage{
			ID:             mj.ID,
			ConversationID: conversationID,
			MessageType:    mj.MessageType,
			Content:        mj.Content,
			CreatedAt:      mj.CreatedAt,
		}
		if mj.MessageType == "" {
			msg.MessageType = MessageOutgoing
		}
		if mj.Sender != nil {
			msg.SenderName = mj.Sender.Name
			msg.SenderType = mj.Sender.Type
			if mj.Sender.Type == "User" {
				msg.AgentEmail = mj.Sender.Email
			}
		}
		messages[i] = msg
	}
	return messages, nil
}

// Ensure Client implements API interface.
var _ API = (*Client)(nil)
