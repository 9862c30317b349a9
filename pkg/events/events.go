// Package events defines the gateway event records and the dispatcher that
// delivers them, together with cache snapshots, to application subscribers.
package events

import (
	"github.com/illmade-knight/go-gatewaycache/pkg/entity"
)

// Kind names a gateway dispatch event as it appears in the frame's "t" field.
type Kind string

const (
	KindMessageCreate     Kind = "MESSAGE_CREATE"
	KindMessageUpdate     Kind = "MESSAGE_UPDATE"
	KindMessageDelete     Kind = "MESSAGE_DELETE"
	KindMessageDeleteBulk Kind = "MESSAGE_DELETE_BULK"
	KindChannelCreate     Kind = "CHANNEL_CREATE"
	KindChannelUpdate     Kind = "CHANNEL_UPDATE"
	KindChannelDelete     Kind = "CHANNEL_DELETE"
	KindGuildCreate       Kind = "GUILD_CREATE"
	KindGuildUpdate       Kind = "GUILD_UPDATE"
	KindGuildDelete       Kind = "GUILD_DELETE"
)

// Envelope is a decoded gateway dispatch. Payload holds a pointer to one of the
// payload types below, matching Kind, or nil for kinds this layer does not model.
type Envelope struct {
	Kind     Kind
	Sequence int64
	Payload  any
}

// MessageCreate carries a newly sent message.
type MessageCreate struct {
	Message entity.Message
}

// MessageUpdate carries the new state of an edited message.
type MessageUpdate struct {
	Message entity.Message
}

// MessageDelete identifies a deleted message. Identifiers keep their wire form.
type MessageDelete struct {
	ID        string `json:"id"`
	ChannelID string `json:"channel_id"`
	GuildID   string `json:"guild_id,omitempty"`
}

// MessageDeleteBulk identifies several messages deleted from one channel at once.
type MessageDeleteBulk struct {
	IDs       []string `json:"ids"`
	ChannelID string   `json:"channel_id"`
	GuildID   string   `json:"guild_id,omitempty"`
}

// ChannelCreate carries a new channel.
type ChannelCreate struct {
	Channel entity.Channel
}

// ChannelUpdate carries the new state of a channel.
type ChannelUpdate struct {
	Channel entity.Channel
}

// ChannelDelete carries the channel that was deleted.
type ChannelDelete struct {
	Channel entity.Channel
}

// GuildCreate carries a guild becoming available, including its channels.
type GuildCreate struct {
	Guild entity.Guild
}

// GuildUpdate carries the new state of a guild.
type GuildUpdate struct {
	Guild entity.Guild
}

// GuildDelete reports a guild being left or becoming unavailable during an outage.
type GuildDelete struct {
	ID          string `json:"id"`
	Unavailable bool   `json:"unavailable,omitempty"`
}
