// Package chatwoot provides a Chatwoot API client with adaptive rate
// limiting and retry logic.
package chatwoot

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
)

// InboxLister provides read access to the account's inboxes.
type InboxLister interface {
	// ListInboxes returns all inboxes (channels) configured for the account.
	ListInboxes(ctx context.Context) ([]Inbox, error)
}

// ConversationLister provides paginated access to conversations.
type ConversationLister interface {
	// ListConversations returns one page of conversations. Pages are numbered
	// from 1. An empty page means the listing is finished.
	ListConversations(ctx context.Context, page int, opts ListOptions) (*ConversationPage, error)
}

// MessageLister provides read access to a conversation's messages.
type MessageLister interface {
	// ListMessages returns all messages of a conversation in the order the
	// API returns them.
	ListMessages(ctx context.Context, conversationID int64) ([]RawMessage, error)
}

// API defines the interface for Chatwoot operations.
// This interface enables mocking for tests without hitting the real API.
type API interface {
	InboxLister
	ConversationLister
	MessageLister
}

// Inbox represents a communication channel (WhatsApp, email, web widget, ...)
// through which conversations arrive.
type Inbox struct {
	ID   int64
	Name string
}

// ListOptions constrain a conversation listing.
type ListOptions struct {
	// Status filters conversations by state. Empty means "all".
	Status string

	// Since and Until are optional ISO date strings forwarded to the API
	// as query parameters.
	Since string
	Until string
}

// ConversationPage is one page of a conversation listing.
type ConversationPage struct {
	Conversations []Conversation

	// TotalCount is the API's reported total across all pages, 0 if the
	// response carried no meta block.
	TotalCount int64

	// PerPage is the API's page size, 0 if unreported.
	PerPage int
}

// Conversation is a thread of messages between a contact and the account,
// tied to one inbox.
type Conversation struct {
	ID           int64
	InboxID      int64
	ContactName  string
	ContactEmail string
	CreatedAt    int64 // Unix seconds
}

// Message direction values.
const (
	MessageIncoming = "incoming"
	MessageOutgoing = "outgoing"
)

// MessageType is the direction of a message. The API returns either the
// string form ("incoming"/"outgoing") or a numeric code (0 incoming,
// 1 outgoing), depending on endpoint and version.
type MessageType string

// UnmarshalJSON accepts both string and numeric message types.
// Unknown values default to outgoing.
func (t *MessageType) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		switch s {
		case MessageIncoming, MessageOutgoing:
			*t = MessageType(s)
		case "":
			*t = MessageOutgoing
		default:
			*t = MessageOutgoing
		}
		return nil
	}

	var n int
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("message_type: expected string or number, got %s", data)
	}
	if n == 0 {
		*t = MessageIncoming
	} else {
		*t = MessageOutgoing
	}
	return nil
}

// RawMessage is a single message as returned by the API, before flattening.
type RawMessage struct {
	ID             int64
	ConversationID int64
	MessageType    MessageType
	SenderName     string
	SenderType     string // "User" for agents, "Contact" for customers
	Content        string
	CreatedAt      int64  // Unix seconds, 0 when absent
	AgentEmail     string // empty unless the sender is an agent
}

// Credentials identify the tenant account for a run. They are immutable once
// the client is constructed.
type Credentials struct {
	BaseURL     string
	AccessToken string
	AccountID   string
}

// accountPath builds an account-scoped API path.
func (c Credentials) accountPath(suffix string) string {
	return "/api/v1/accounts/" + c.AccountID + suffix
}

// conversationMessagesPath builds the messages path for a conversation.
func (c Credentials) conversationMessagesPath(conversationID int64) string {
	return c.accountPath("/conversations/" + strconv.FormatInt(conversationID, 10) + "/messages")
}
