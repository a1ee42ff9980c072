package extract

import (
	"fmt"
	"time"

	"chatdump/internal/chatwoot"
)

// Placeholder values used when the API omits contact or sender identity.
const (
	unknownCustomer = "Unknown Customer"
	unknownAgent    = "Unknown Agent"
)

// Record is one flattened message, the join of a conversation, a message and
// the channel map.
type Record struct {
	ConversationID int64   `json:"conversation_id"`
	CustomerName   string  `json:"customer_name"`
	CustomerEmail  string  `json:"customer_email"`
	ChannelName    string  `json:"channel_name"`
	MessageType    string  `json:"message_type"`
	SenderName     string  `json:"sender_name"`
	Content        string  `json:"content"`
	CreatedAtISO   *string `json:"created_at_iso"`
	AgentEmail     *string `json:"agent_email"`
}

// Flatten builds the output record for one message. Missing fields degrade
// to placeholders or null; flattening never fails a record.
func Flatten(conv chatwoot.Conversation, msg chatwoot.RawMessage, channels ChannelMap) Record {
	customerName := conv.ContactName
	if customerName == "" {
		customerName = unknownCustomer
	}

	channelName, ok := channels[conv.InboxID]
	if !ok {
		channelName = fmt.Sprintf("Channel ID %d", conv.InboxID)
	}

	// The customer is the sender unless the message came from an agent.
	senderName := customerName
	if msg.SenderType == "User" {
		senderName = msg.SenderName
		if senderName == "" {
			senderName = unknownAgent
		}
	}

	var createdAtISO *string
	if msg.CreatedAt > 0 {
		iso := time.Unix(msg.CreatedAt, 0).UTC().Format("2006-01-02T15:04:05Z")
		createdAtISO = &iso
	}

	var agentEmail *string
	if msg.MessageType != chatwoot.MessageIncoming && msg.AgentEmail != "" {
		email := msg.AgentEmail
		agentEmail = &email
	}

	return Record{
		ConversationID: conv.ID,
		CustomerName:   customerName,
		CustomerEmail:  conv.ContactEmail,
		ChannelName:    channelName,
		MessageType:    string(msg.MessageType),
		SenderName:     senderName,
		Content:        msg.Content,
		CreatedAtISO:   createdAtISO,
		AgentEmail:     agentEmail,
	}
}
