package gateway

import (
	"context"
	"fmt"

	"github.com/illmade-knight/go-gatewaycache/pkg/cache"
	"github.com/illmade-knight/go-gatewaycache/pkg/events"
	"github.com/illmade-knight/go-gatewaycache/pkg/snowflake"
	"go.uber.org/multierr"
)

// GuildCreate announces the guild, caches it and caches every channel it
// carries. Channels are written concurrently; all are attempted.
func (h *Handler) GuildCreate(ctx context.Context, ev *events.GuildCreate) error {
	guild := ev.Guild.Clone()
	if err := h.dispatcher.GuildCreate(ctx, &guild); err != nil {
		return fmt.Errorf("guild create %s: %w", ev.Guild.ID, err)
	}
	if err := live(ctx); err != nil {
		return fmt.Errorf("guild create %s: %w", ev.Guild.ID, err)
	}

	// Channels live in their own table.
	stored := ev.Guild
	stored.Channels = nil
	err := h.caches.Guilds.Set(ctx, cache.KindGuilds, stored.ID, stored)
	if err != nil {
		err = fmt.Errorf("guild create %s: %w", ev.Guild.ID, err)
	}

	channelErr := fanOut(len(ev.Guild.Channels), func(i int) error {
		channel := ev.Guild.Channels[i]
		if channel.GuildID == 0 {
			channel.GuildID = ev.Guild.ID
		}
		if err := h.caches.Channels.Set(ctx, cache.KindChannels, channel.ID, channel); err != nil {
			return fmt.Errorf("guild create %s: channel %s: %w", ev.Guild.ID, channel.ID, err)
		}
		return nil
	})
	return multierr.Append(err, channelErr)
}

// GuildUpdate announces the new guild state with the previous snapshot and
// replaces the cached copy.
func (h *Handler) GuildUpdate(ctx context.Context, ev *events.GuildUpdate) error {
	id := ev.Guild.ID
	old, err := snapshot(ctx, h.caches.Guilds, cache.KindGuilds, id)
	if err != nil {
		return fmt.Errorf("guild update %s: read snapshot: %w", id, err)
	}

	guild := ev.Guild.Clone()
	if err := h.dispatcher.GuildUpdate(ctx, &guild, old); err != nil {
		return fmt.Errorf("guild update %s: %w", id, err)
	}
	if err := live(ctx); err != nil {
		return fmt.Errorf("guild update %s: %w", id, err)
	}

	stored := ev.Guild
	stored.Channels = nil
	if err := h.caches.Guilds.Set(ctx, cache.KindGuilds, id, stored); err != nil {
		return fmt.Errorf("guild update %s: %w", id, err)
	}
	return nil
}

// GuildDelete announces the removal with the cached snapshot. A guild that
// merely became unavailable stays cached, flagged unavailable; otherwise it is
// deleted.
func (h *Handler) GuildDelete(ctx context.Context, ev *events.GuildDelete) error {
	id, err := snowflake.Parse(ev.ID)
	if err != nil {
		return fmt.Errorf("guild delete: guild id: %w", err)
	}

	old, err := snapshot(ctx, h.caches.Guilds, cache.KindGuilds, id)
	if err != nil {
		return fmt.Errorf("guild delete %s: read snapshot: %w", id, err)
	}

	if err := h.dispatcher.GuildDelete(ctx, *ev, old); err != nil {
		return fmt.Errorf("guild delete %s: %w", id, err)
	}
	if err := live(ctx); err != nil {
		return fmt.Errorf("guild delete %s: %w", id, err)
	}

	if ev.Unavailable {
		if old == nil {
			return nil
		}
		flagged := *old
		flagged.Unavailable = true
		if err := h.caches.Guilds.Set(ctx, cache.KindGuilds, id, flagged); err != nil {
			return fmt.Errorf("guild delete %s: flag unavailable: %w", id, err)
		}
		return nil
	}

	if err := h.caches.Guilds.Delete(ctx, cache.KindGuilds, id); err != nil {
		return fmt.Errorf("guild delete %s: %w", id, err)
	}
	return nil
}
