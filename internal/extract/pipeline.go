package extract

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"chatdump/internal/chatwoot"
)

// Progress reports extraction progress to the caller.
type Progress interface {
	// OnChannels is called once the channel map is resolved.
	OnChannels(channels int)

	// OnConversations is called once the conversation listing is complete.
	OnConversations(total int)

	// OnFetched is called as conversations finish fetching.
	OnFetched(done, failed int64)

	// OnComplete is called when the run finishes.
	OnComplete(summary *Summary)
}

// NullProgress is a no-op progress reporter.
type NullProgress struct{}

func (NullProgress) OnChannels(channels int)      {}
func (NullProgress) OnConversations(total int)    {}
func (NullProgress) OnFetched(done, failed int64) {}
func (NullProgress) OnComplete(summary *Summary)  {}

// Summary contains statistics about a completed extraction run.
type Summary struct {
	StartTime           time.Time
	EndTime             time.Time
	Duration            time.Duration
	Channels            int
	Conversations       int
	FailedConversations int
	MessagesFetched     int
	Duplicates          int
	Records             int
}

// Options configures a pipeline run.
type Options struct {
	// Workers is the message fetch pool size (default DefaultWorkers).
	Workers int

	// Since and Until are optional ISO date filters forwarded to the
	// conversation listing.
	Since string
	Until string

	// RefreshChannels bypasses the channel cache.
	RefreshChannels bool
}

// Pipeline wires the extraction stages together: channel lookup, paginated
// conversation enumeration, bounded-parallel message fetch, dedup and
// flattening. The sink is the caller's concern.
type Pipeline struct {
	client   chatwoot.API
	channels *ChannelCache
	opts     Options
	logger   *slog.Logger
	progress Progress
}

// NewPipeline creates a pipeline over the given client and channel cache.
func NewPipeline(client chatwoot.API, channels *ChannelCache, opts Options, logger *slog.Logger) *Pipeline {
	if logger == nil {
		logger = slog.Default()
	}
	return &Pipeline{
		client:   client,
		channels: channels,
		opts:     opts,
		logger:   logger,
		progress: NullProgress{},
	}
}

// WithProgress sets the progress reporter.
func (p *Pipeline) WithProgress(progress Progress) *Pipeline {
	p.progress = progress
	return p
}

// Run executes the full extraction and returns the flattened records.
// Channel-map and conversation-list failures are fatal; per-conversation
// message failures are recorded and logged but never abort the run.
func (p *Pipeline) Run(ctx context.Context) ([]Record, *Summary, error) {
	summary := &Summary{StartTime: time.Now()}

	channels, err := p.channels.Get(ctx, p.opts.RefreshChannels)
	if err != nil {
		return nil, nil, fmt.Errorf("load channel map: %w", err)
	}
	summary.Channels = len(channels)
	p.progress.OnChannels(len(channels))
	p.logger.Info("channel map loaded", "channels", len(channels))

	pager := NewConversationPager(p.client, chatwoot.ListOptions{
		Since: p.opts.Since,
		Until: p.opts.Until,
	})
	conversations, err := pager.All(ctx)
	if err != nil {
		return nil, nil, err
	}
	summary.Conversations = len(conversations)
	p.progress.OnConversations(len(conversations))
	p.logger.Info("conversations listed", "conversations", len(conversations))

	fetcher := NewMessageFetcher(p.client, p.opts.Workers, p.logger)
	fetcher.OnDone(p.progress.OnFetched)
	fetched, err := fetcher.FetchAll(ctx, conversations)
	if err != nil {
		return nil, nil, fmt.Errorf("fetch messages: %w", err)
	}

	convByID := make(map[int64]chatwoot.Conversation, len(conversations))
	for _, conv := range conversations {
		convByID[conv.ID] = conv
	}

	var raw []chatwoot.RawMessage
	for _, cm := range fetched {
		if cm.Err != nil {
			summary.FailedConversations++
			continue
		}
		raw = append(raw, cm.Messages...)
	}
	summary.MessagesFetched = len(raw)

	deduped := Dedupe(raw)
	summary.Duplicates = len(raw) - len(deduped)

	records := make([]Record, 0, len(deduped))
	for _, msg := range deduped {
		conv, ok := convByID[msg.ConversationID]
		if !ok {
			// Should not happen: every message came from a listed conversation.
			conv = chatwoot.Conversation{ID: msg.ConversationID}
		}
		records = append(records, Flatten(conv, msg, channels))
	}
	summary.Records = len(records)

	summary.EndTime = time.Now()
	summary.Duration = summary.EndTime.Sub(summary.StartTime)
	p.progress.OnComplete(summary)

	p.logger.Info("extraction complete",
		"conversations", summary.Conversations,
		"failed_conversations", summary.FailedConversations,
		"records", summary.Records,
		"duplicates", summary.Duplicates,
		"duration", summary.Duration)

	return records, summary, nil
}
