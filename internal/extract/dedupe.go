package extract

import "chatdump/internal/chatwoot"

// messageKey identifies a message across pages and workers.
type messageKey struct {
	conversationID int64
	messageID      int64
}

// Dedupe drops all but the first occurrence of each (conversation, message)
// pair, preserving input order. The output is always a subsequence of the
// input, so applying Dedupe twice changes nothing.
func Dedupe(messages []chatwoot.RawMessage) []chatwoot.RawMessage {
	seen := make(map[messageKey]struct{}, len(messages))
	out := messages[:0:0]

	for _, msg := range messages {
		key := messageKey{conversationID: msg.ConversationID, messageID: msg.ID}
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, msg)
	}
	return out
}
