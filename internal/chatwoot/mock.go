package chatwoot

import (
	"context"
	"sync"
)

// MockAPI is a mock implementation of the Chatwoot API for testing.
type MockAPI struct {
	mu sync.Mutex

	// Inboxes to return
	Inboxes []Inbox

	// Conversation pages, in order. Page N (1-based) returns Pages[N-1];
	// pages past the end are empty.
	Pages [][]Conversation

	// Messages indexed by conversation ID
	Messages map[int64][]RawMessage

	// Error injection
	InboxesError       error
	ConversationsError map[int]error   // Per-page errors
	MessagesError      map[int64]error // Per-conversation errors

	// Call tracking for assertions
	InboxCalls        int
	ConversationCalls []int // pages requested
	LastListOptions   ListOptions
	MessageCalls      []int64
}

// NewMockAPI creates a new mock API with empty state.
func NewMockAPI() *MockAPI {
	return &MockAPI{
		Messages:           make(map[int64][]RawMessage),
		ConversationsError: make(map[int]error),
		MessagesError:      make(map[int64]error),
	}
}

// ListInboxes returns the mock inboxes.
func (m *MockAPI) ListInboxes(ctx context.Context) ([]Inbox, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.InboxCalls++

	if m.InboxesError != nil {
		return nil, m.InboxesError
	}
	return m.Inboxes, nil
}

// ListConversations returns the configured page, or an empty page past the end.
func (m *MockAPI) ListConversations(ctx context.Context, page int, opts ListOptions) (*ConversationPage, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ConversationCalls = append(m.ConversationCalls, page)
	m.LastListOptions = opts

	if err, ok := m.ConversationsError[page]; ok && err != nil {
		return nil, err
	}

	total := int64(0)
	for _, p := range m.Pages {
		total += int64(len(p))
	}

	if page < 1 || page > len(m.Pages) {
		return &ConversationPage{TotalCount: total}, nil
	}
	return &ConversationPage{
		Conversations: m.Pages[page-1],
		TotalCount:    total,
	}, nil
}

// ListMessages returns the mock messages for a conversation.
func (m *MockAPI) ListMessages(ctx context.Context, conversationID int64) ([]RawMessage, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.MessageCalls = append(m.MessageCalls, conversationID)

	if err, ok := m.MessagesError[conversationID]; ok && err != nil {
		return nil, err
	}
	return m.Messages[conversationID], nil
}

// AddConversation appends a conversation to the last page, creating the first
// page if needed, and registers its messages.
func (m *MockAPI) AddConversation(conv Conversation, messages ...RawMessage) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if len(m.Pages) == 0 {
		m.Pages = append(m.Pages, nil)
	}
	last := len(m.Pages) - 1
	m.Pages[last] = append(m.Pages[last], conv)

	for i := range messages {
		if messages[i].ConversationID == 0 {
			messages[i].ConversationID = conv.ID
		}
	}
	m.Messages[conv.ID] = append(m.Messages[conv.ID], messages...)
}

// Reset clears all state and call tracking.
func (m *MockAPI) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.Inboxes = nil
	m.Pages = nil
	m.Messages = make(map[int64][]RawMessage)
	m.InboxesError = nil
	m.ConversationsError = make(map[int]error)
	m.MessagesError = make(map[int64]error)

	m.InboxCalls = 0
	m.ConversationCalls = nil
	m.LastListOptions = ListOptions{}
	m.MessageCalls = nil
}

// Ensure MockAPI implements API interface.
var _ API = (*MockAPI)(nil)
