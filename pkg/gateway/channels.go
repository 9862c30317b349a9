package gateway

import (
	"context"
	"fmt"

	"github.com/illmade-knight/go-gatewaycache/pkg/cache"
	"github.com/illmade-knight/go-gatewaycache/pkg/events"
)

// ChannelCreate announces a new channel and caches it.
func (h *Handler) ChannelCreate(ctx context.Context, ev *events.ChannelCreate) error {
	channel := ev.Channel.Clone()
	if err := h.dispatcher.ChannelCreate(ctx, &channel); err != nil {
		return fmt.Errorf("channel create %s: %w", ev.Channel.ID, err)
	}
	if err := live(ctx); err != nil {
		return fmt.Errorf("channel create %s: %w", ev.Channel.ID, err)
	}
	if err := h.caches.Channels.Set(ctx, cache.KindChannels, ev.Channel.ID, ev.Channel); err != nil {
		return fmt.Errorf("channel create %s: %w", ev.Channel.ID, err)
	}
	return nil
}

// ChannelUpdate announces the new channel state with the previous snapshot and
// replaces the cached copy.
func (h *Handler) ChannelUpdate(ctx context.Context, ev *events.ChannelUpdate) error {
	id := ev.Channel.ID
	old, err := snapshot(ctx, h.caches.Channels, cache.KindChannels, id)
	if err != nil {
		return fmt.Errorf("channel update %s: read snapshot: %w", id, err)
	}

	channel := ev.Channel.Clone()
	if err := h.dispatcher.ChannelUpdate(ctx, &channel, old); err != nil {
		return fmt.Errorf("channel update %s: %w", id, err)
	}
	if err := live(ctx); err != nil {
		return fmt.Errorf("channel update %s: %w", id, err)
	}
	if err := h.caches.Channels.Set(ctx, cache.KindChannels, id, ev.Channel); err != nil {
		return fmt.Errorf("channel update %s: %w", id, err)
	}
	return nil
}

// ChannelDelete announces the deletion with the cached snapshot and removes
// the channel from the cache. Cached messages of the channel are not touched.
func (h *Handler) ChannelDelete(ctx context.Context, ev *events.ChannelDelete) error {
	id := ev.Channel.ID
	old, err := snapshot(ctx, h.caches.Channels, cache.KindChannels, id)
	if err != nil {
		return fmt.Errorf("channel delete %s: read snapshot: %w", id, err)
	}

	channel := ev.Channel.Clone()
	if err := h.dispatcher.ChannelDelete(ctx, &channel, old); err != nil {
		return fmt.Errorf("channel delete %s: %w", id, err)
	}
	if err := live(ctx); err != nil {
		return fmt.Errorf("channel delete %s: %w", id, err)
	}
	if err := h.caches.Channels.Delete(ctx, cache.KindChannels, id); err != nil {
		return fmt.Errorf("channel delete %s: %w", id, err)
	}
	return nil
}
