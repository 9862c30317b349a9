package gateway

import (
	"context"
	"fmt"

	"github.com/illmade-knight/go-gatewaycache/pkg/cache"
	"github.com/illmade-knight/go-gatewaycache/pkg/entity"
	"github.com/illmade-knight/go-gatewaycache/pkg/events"
	"github.com/illmade-knight/go-gatewaycache/pkg/snowflake"
	"golang.org/x/sync/errgroup"
)

// MessageCreate announces a new message and caches it.
func (h *Handler) MessageCreate(ctx context.Context, ev *events.MessageCreate) error {
	message := ev.Message.Clone()
	if err := h.dispatcher.MessageCreate(ctx, &message); err != nil {
		return fmt.Errorf("message create %s: %w", ev.Message.ID, err)
	}
	if err := live(ctx); err != nil {
		return fmt.Errorf("message create %s: %w", ev.Message.ID, err)
	}
	if err := h.caches.Messages.Set(ctx, cache.KindMessages, ev.Message.ID, ev.Message); err != nil {
		return fmt.Errorf("message create %s: %w", ev.Message.ID, err)
	}
	return nil
}

// MessageUpdate announces an edit with the previously cached message and
// replaces the cached copy. Updates are stored as received, without merging.
func (h *Handler) MessageUpdate(ctx context.Context, ev *events.MessageUpdate) error {
	id := ev.Message.ID
	old, err := snapshot(ctx, h.caches.Messages, cache.KindMessages, id)
	if err != nil {
		return fmt.Errorf("message update %s: read snapshot: %w", id, err)
	}

	message := ev.Message.Clone()
	if err := h.dispatcher.MessageUpdate(ctx, &message, old); err != nil {
		return fmt.Errorf("message update %s: %w", id, err)
	}
	if err := live(ctx); err != nil {
		return fmt.Errorf("message update %s: %w", id, err)
	}
	if err := h.caches.Messages.Set(ctx, cache.KindMessages, id, ev.Message); err != nil {
		return fmt.Errorf("message update %s: %w", id, err)
	}
	return nil
}

// MessageDelete fetches the message and channel snapshots concurrently,
// announces the deletion with them and then removes the message from the cache.
func (h *Handler) MessageDelete(ctx context.Context, ev *events.MessageDelete) error {
	messageID, err := snowflake.Parse(ev.ID)
	if err != nil {
		return fmt.Errorf("message delete: message id: %w", err)
	}
	channelID, err := snowflake.Parse(ev.ChannelID)
	if err != nil {
		return fmt.Errorf("message delete %s: channel id: %w", ev.ID, err)
	}
	if err := validOptional(ev.GuildID); err != nil {
		return fmt.Errorf("message delete %s: guild id: %w", ev.ID, err)
	}

	var (
		message *entity.Message
		channel *entity.Channel
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		message, err = snapshot(gctx, h.caches.Messages, cache.KindMessages, messageID)
		return err
	})
	g.Go(func() error {
		var err error
		channel, err = snapshot(gctx, h.caches.Channels, cache.KindChannels, channelID)
		return err
	})
	if err := g.Wait(); err != nil {
		return fmt.Errorf("message delete %s: read snapshots: %w", ev.ID, err)
	}

	return h.announceMessageDelete(ctx, *ev, messageID, message, channel)
}

// MessageDeleteBulk fetches the channel snapshot once and runs the single
// deletion sequence for every id concurrently, sharing that snapshot. Every id
// is attempted; failures are returned together once all sequences finished.
func (h *Handler) MessageDeleteBulk(ctx context.Context, ev *events.MessageDeleteBulk) error {
	channelID, err := snowflake.Parse(ev.ChannelID)
	if err != nil {
		return fmt.Errorf("message delete bulk: channel id: %w", err)
	}
	if err := validOptional(ev.GuildID); err != nil {
		return fmt.Errorf("message delete bulk: guild id: %w", err)
	}

	channel, err := snapshot(ctx, h.caches.Channels, cache.KindChannels, channelID)
	if err != nil {
		return fmt.Errorf("message delete bulk in %s: read channel snapshot: %w", channelID, err)
	}

	h.logger.Debug().Str("channel_id", ev.ChannelID).Int("count", len(ev.IDs)).Msg("Deleting messages in bulk.")

	return fanOut(len(ev.IDs), func(i int) error {
		single := events.MessageDelete{ID: ev.IDs[i], ChannelID: ev.ChannelID, GuildID: ev.GuildID}
		messageID, err := snowflake.Parse(single.ID)
		if err != nil {
			return fmt.Errorf("message delete: message id: %w", err)
		}
		message, err := snapshot(ctx, h.caches.Messages, cache.KindMessages, messageID)
		if err != nil {
			return fmt.Errorf("message delete %s: read snapshot: %w", single.ID, err)
		}
		return h.announceMessageDelete(ctx, single, messageID, message, channel)
	})
}

// announceMessageDelete dispatches the deletion and, once the dispatch has
// returned successfully, issues the cache delete.
func (h *Handler) announceMessageDelete(
	ctx context.Context,
	ev events.MessageDelete,
	messageID snowflake.ID,
	message *entity.Message,
	channel *entity.Channel,
) error {
	if err := h.dispatcher.MessageDelete(ctx, ev, message, channel); err != nil {
		return fmt.Errorf("message delete %s: %w", ev.ID, err)
	}
	if err := live(ctx); err != nil {
		return fmt.Errorf("message delete %s: %w", ev.ID, err)
	}
	if err := h.caches.Messages.Delete(ctx, cache.KindMessages, messageID); err != nil {
		return fmt.Errorf("message delete %s: %w", ev.ID, err)
	}
	return nil
}

// validOptional checks an identifier that may be omitted.
func validOptional(text string) error {
	if text == "" {
		return nil
	}
	_, err := snowflake.Parse(text)
	return err
}
