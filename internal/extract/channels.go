// Package extract implements the conversation-history extraction pipeline:
// channel lookup, paginated conversation enumeration, bounded-parallel
// message fetch, deduplication and flattening into output records.
package extract

import (
	"context"
	"log/slog"
	"time"

	"chatdump/internal/cache"
	"chatdump/internal/chatwoot"
)

// ChannelMap maps inbox ids to channel names. Built once per run and
// immutable afterward.
type ChannelMap map[int64]string

// ChannelCache resolves the account's inbox map, backed by a TTL cache so
// repeated runs skip the network call.
type ChannelCache struct {
	client chatwoot.InboxLister
	store  cache.Store[ChannelMap]
	key    string
	ttl    time.Duration
	logger *slog.Logger
	now    func() time.Time
}

// NewChannelCache creates a channel cache keyed by account id.
func NewChannelCache(client chatwoot.InboxLister, store cache.Store[ChannelMap], accountID string, ttl time.Duration, logger *slog.Logger) *ChannelCache {
	if logger == nil {
		logger = slog.Default()
	}
	return &ChannelCache{
		client: client,
		store:  store,
		key:    "channels-" + accountID,
		ttl:    ttl,
		logger: logger,
		now:    time.Now,
	}
}

// Get returns the channel map, from cache when fresh, otherwise rebuilt from
// the API. Cache read and write failures are never fatal: they are logged
// and the map is rebuilt or returned unpersisted.
func (c *ChannelCache) Get(ctx context.Context, forceRefresh bool) (ChannelMap, error) {
	if !forceRefresh {
		entry, ok, err := c.store.Get(c.key)
		if err != nil {
			c.logger.Warn("channel cache unreadable, rebuilding", "key", c.key, "error", err)
		} else if ok && entry.Fresh(c.now()) {
			return entry.Payload, nil
		}
	}

	inboxes, err := c.client.ListInboxes(ctx)
	if err != nil {
		return nil, err
	}

	channels := make(ChannelMap, len(inboxes))
	for _, in := range inboxes {
		channels[in.ID] = in.Name
	}

	if err := c.store.Put(c.key, cache.Entry[ChannelMap]{
		Payload:   channels,
		WrittenAt: c.now(),
		TTL:       c.ttl,
	}); err != nil {
		c.logger.Warn("failed to persist channel cache", "key", c.key, "error", err)
	}

	return channels, nil
}
