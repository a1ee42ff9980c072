package extract

import (
	"context"
	"fmt"

	"chatdump/internal/chatwoot"
)

// ConversationPager walks the account's conversation listing page by page.
// It is single-pass: construct a fresh pager per run. A page-level failure
// is fatal for the run, since a partial conversation list would be silently
// wrong.
type ConversationPager struct {
	client  chatwoot.ConversationLister
	opts    chatwoot.ListOptions
	page    int
	fetched int64
	total   int64
	done    bool
}

// NewConversationPager creates a pager starting at page 1.
func NewConversationPager(client chatwoot.ConversationLister, opts chatwoot.ListOptions) *ConversationPager {
	return &ConversationPager{client: client, opts: opts, page: 1}
}

// Next returns the next page of conversations in API order. It returns
// (nil, nil) once the listing is finished: when a page comes back empty, or
// when the API's reported total has been reached.
func (p *ConversationPager) Next(ctx context.Context) ([]chatwoot.Conversation, error) {
	if p.done {
		return nil, nil
	}

	resp, err := p.client.ListConversations(ctx, p.page, p.opts)
	if err != nil {
		p.done = true
		return nil, fmt.Errorf("list conversations page %d: %w", p.page, err)
	}

	if resp.TotalCount > 0 {
		p.total = resp.TotalCount
	}

	if len(resp.Conversations) == 0 {
		p.done = true
		return nil, nil
	}

	p.page++
	p.fetched += int64(len(resp.Conversations))
	if p.total > 0 && p.fetched >= p.total {
		p.done = true
	}

	return resp.Conversations, nil
}

// All drains the pager into one slice.
func (p *ConversationPager) All(ctx context.Context) ([]chatwoot.Conversation, error) {
	var all []chatwoot.Conversation
	for {
		page, err := p.Next(ctx)
		if err != nil {
			return nil, err
		}
		if page == nil {
			return all, nil
		}
		all = append(all, page...)
	}
}

// Total returns the API's reported conversation count, 0 if unknown.
func (p *ConversationPager) Total() int64 {
	return p.total
}
