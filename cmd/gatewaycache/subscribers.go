package main

import (
	"context"

	"github.com/illmade-knight/go-gatewaycache/pkg/entity"
	"github.com/illmade-knight/go-gatewaycache/pkg/events"
	"github.com/rs/zerolog"
)

// loggingHandlers records every announced change. It is the daemon's only
// subscriber and shows what the cache knew when each event arrived.
func loggingHandlers(logger zerolog.Logger) events.Handlers {
	logger = logger.With().Str("component", "AuditLog").Logger()

	return events.Handlers{
		MessageCreate: func(_ context.Context, m *entity.Message) error {
			logger.Debug().Stringer("message_id", m.ID).Stringer("channel_id", m.ChannelID).
				Stringer("author_id", m.Author.ID).Msg("Message created.")
			return nil
		},
		MessageUpdate: func(_ context.Context, m, old *entity.Message) error {
			logger.Debug().Stringer("message_id", m.ID).Bool("cached", old != nil).Msg("Message edited.")
			return nil
		},
		MessageDelete: func(_ context.Context, ev events.MessageDelete, m *entity.Message, c *entity.Channel) error {
			e := logger.Info().Str("message_id", ev.ID).Str("channel_id", ev.ChannelID)
			if m != nil {
				e = e.Stringer("author_id", m.Author.ID).Int("content_length", len(m.Content))
			}
			if c != nil {
				e = e.Str("channel_name", c.Name)
			}
			e.Bool("cached", m != nil).Msg("Message deleted.")
			return nil
		},
		ChannelCreate: func(_ context.Context, c *entity.Channel) error {
			logger.Info().Stringer("channel_id", c.ID).Str("name", c.Name).Msg("Channel created.")
			return nil
		},
		ChannelUpdate: func(_ context.Context, c, old *entity.Channel) error {
			e := logger.Info().Stringer("channel_id", c.ID).Str("name", c.Name)
			if old != nil && old.Name != c.Name {
				e = e.Str("previous_name", old.Name)
			}
			e.Msg("Channel updated.")
			return nil
		},
		ChannelDelete: func(_ context.Context, c, old *entity.Channel) error {
			logger.Info().Stringer("channel_id", c.ID).Bool("cached", old != nil).Msg("Channel deleted.")
			return nil
		},
		GuildCreate: func(_ context.Context, g *entity.Guild) error {
			logger.Info().Stringer("guild_id", g.ID).Str("name", g.Name).Int("channels", len(g.Channels)).Msg("Guild available.")
			return nil
		},
		GuildUpdate: func(_ context.Context, g, old *entity.Guild) error {
			logger.Info().Stringer("guild_id", g.ID).Str("name", g.Name).Bool("cached", old != nil).Msg("Guild updated.")
			return nil
		},
		GuildDelete: func(_ context.Context, ev events.GuildDelete, old *entity.Guild) error {
			e := logger.Info().Str("guild_id", ev.ID).Bool("unavailable", ev.Unavailable)
			if old != nil {
				e = e.Str("name", old.Name)
			}
			e.Msg("Guild removed.")
			return nil
		},
	}
}
