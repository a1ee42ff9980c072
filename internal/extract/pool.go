package extract

import (
	"context"
	"log/slog"
	"sync/atomic"

	"golang.org/x/sync/errgroup"

	"chatdump/internal/chatwoot"
)

// DefaultWorkers is the default size of the message fetch pool.
const DefaultWorkers = 10

// ConversationMessages pairs a conversation with its fetched messages.
// A conversation whose fetch exhausted its retries carries zero messages and
// the recorded error.
type ConversationMessages struct {
	Conversation chatwoot.Conversation
	Messages     []chatwoot.RawMessage
	Err          error
}

// MessageFetcher fans conversation message fetches out over a bounded pool
// of workers. A failure on one conversation never cancels its siblings;
// only credential errors and context cancellation abort the pool.
type MessageFetcher struct {
	client  chatwoot.MessageLister
	workers int
	logger  *slog.Logger

	// onDone, if set, is called after each conversation completes with the
	// running done/failed counts.
	onDone func(done, failed int64)
}

// NewMessageFetcher creates a fetcher with the given pool size. A size of 1
// degrades to strictly sequential fetching with identical results.
func NewMessageFetcher(client chatwoot.MessageLister, workers int, logger *slog.Logger) *MessageFetcher {
	if workers < 1 {
		workers = DefaultWorkers
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &MessageFetcher{client: client, workers: workers, logger: logger}
}

// OnDone installs a per-conversation completion callback. The callback may
// be invoked from multiple goroutines.
func (f *MessageFetcher) OnDone(fn func(done, failed int64)) {
	f.onDone = fn
}

// FetchAll fetches every conversation's messages. Results are indexed by the
// input order; message order within a conversation matches the API.
func (f *MessageFetcher) FetchAll(ctx context.Context, conversations []chatwoot.Conversation) ([]ConversationMessages, error) {
	results := make([]ConversationMessages, len(conversations))
	sem := make(chan struct{}, f.workers)
	var done, failed atomic.Int64

	g, ctx := errgroup.WithContext(ctx)

	for i, conv := range conversations {
		i, conv := i, conv
		g.Go(func() error {
			select {
			case sem <- struct{}{}:
				defer func() { <-sem }()
			case <-ctx.Done():
				return ctx.Err()
			}

			messages, err := f.client.ListMessages(ctx, conv.ID)
			if err != nil {
				if ctx.Err() != nil {
					return ctx.Err()
				}
				if chatwoot.IsUnauthorized(err) {
					// Credentials are invalid for every remaining call.
					return err
				}
				f.logger.Warn("failed to fetch conversation messages",
					"conversation_id", conv.ID, "error", err)
				results[i] = ConversationMessages{Conversation: conv, Err: err}
				failed.Add(1)
				f.report(done.Add(1), failed.Load())
				return nil
			}

			results[i] = ConversationMessages{Conversation: conv, Messages: messages}
			f.report(done.Add(1), failed.Load())
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

func (f *MessageFetcher) report(done, failed int64) {
	if f.onDone != nil {
		f.onDone(done, failed)
	}
}
