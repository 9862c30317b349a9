// Package entity holds the cached record shapes mirrored from gateway events.
// Only the fields the synchronization layer and its subscribers read are modeled.
package entity

import (
	"slices"
	"time"

	"github.com/illmade-knight/go-gatewaycache/pkg/snowflake"
)

// ChannelType enumerates the kinds of channel the platform reports.
type ChannelType int

const (
	ChannelTypeGuildText     ChannelType = 0
	ChannelTypeDM            ChannelType = 1
	ChannelTypeGuildVoice    ChannelType = 2
	ChannelTypeGroupDM       ChannelType = 3
	ChannelTypeGuildCategory ChannelType = 4
	ChannelTypeGuildNews     ChannelType = 5
	ChannelTypePublicThread  ChannelType = 11
	ChannelTypePrivateThread ChannelType = 12
)

// User is the public profile of an account.
type User struct {
	ID            snowflake.ID `json:"id"`
	Username      string       `json:"username"`
	Discriminator string       `json:"discriminator,omitempty"`
	Avatar        string       `json:"avatar,omitempty"`
	Bot           bool         `json:"bot,omitempty"`
}

// Member is a user's membership in one guild.
type Member struct {
	User     *User          `json:"user,omitempty"`
	Nick     string         `json:"nick,omitempty"`
	Roles    []snowflake.ID `json:"roles,omitempty"`
	JoinedAt time.Time      `json:"joined_at"`
}

// Attachment is a file attached to a message.
type Attachment struct {
	ID       snowflake.ID `json:"id"`
	Filename string       `json:"filename"`
	Size     int          `json:"size"`
	URL      string       `json:"url"`
}

// MessageReference points at the message a reply or crosspost originates from.
type MessageReference struct {
	MessageID snowflake.ID `json:"message_id,omitempty"`
	ChannelID snowflake.ID `json:"channel_id,omitempty"`
	GuildID   snowflake.ID `json:"guild_id,omitempty"`
}

// Message is a chat message.
type Message struct {
	ID               snowflake.ID      `json:"id"`
	ChannelID        snowflake.ID      `json:"channel_id"`
	GuildID          snowflake.ID      `json:"guild_id,omitempty"`
	Author           User              `json:"author"`
	Member           *Member           `json:"member,omitempty"`
	Content          string            `json:"content,omitempty"`
	Timestamp        time.Time         `json:"timestamp"`
	EditedTimestamp  *time.Time        `json:"edited_timestamp,omitempty"`
	TTS              bool              `json:"tts,omitempty"`
	MentionEveryone  bool              `json:"mention_everyone,omitempty"`
	MentionRoles     []snowflake.ID    `json:"mention_roles,omitempty"`
	Attachments      []Attachment      `json:"attachments,omitempty"`
	Pinned           bool              `json:"pinned,omitempty"`
	WebhookID        snowflake.ID      `json:"webhook_id,omitempty"`
	Type             int               `json:"type"`
	Flags            int               `json:"flags,omitempty"`
	MessageReference *MessageReference `json:"message_reference,omitempty"`
}

// Channel is a guild channel, thread or direct-message channel.
type Channel struct {
	ID            snowflake.ID `json:"id"`
	Type          ChannelType  `json:"type"`
	GuildID       snowflake.ID `json:"guild_id,omitempty"`
	Name          string       `json:"name,omitempty"`
	Topic         string       `json:"topic,omitempty"`
	Position      int          `json:"position,omitempty"`
	NSFW          bool         `json:"nsfw,omitempty"`
	ParentID      snowflake.ID `json:"parent_id,omitempty"`
	LastMessageID snowflake.ID `json:"last_message_id,omitempty"`
}

// Guild is a server. Channels is only populated on GUILD_CREATE.
type Guild struct {
	ID          snowflake.ID `json:"id"`
	Name        string       `json:"name"`
	OwnerID     snowflake.ID `json:"owner_id,omitempty"`
	MemberCount int          `json:"member_count,omitempty"`
	Unavailable bool         `json:"unavailable,omitempty"`
	Channels    []Channel    `json:"channels,omitempty"`
}

// Clone returns a copy of m that shares no memory with it.
func (m Member) Clone() Member {
	if m.User != nil {
		user := *m.User
		m.User = &user
	}
	m.Roles = slices.Clone(m.Roles)
	return m
}

// Clone returns a copy of m that shares no memory with it.
func (m Message) Clone() Message {
	if m.Member != nil {
		member := m.Member.Clone()
		m.Member = &member
	}
	if m.EditedTimestamp != nil {
		edited := *m.EditedTimestamp
		m.EditedTimestamp = &edited
	}
	if m.MessageReference != nil {
		ref := *m.MessageReference
		m.MessageReference = &ref
	}
	m.MentionRoles = slices.Clone(m.MentionRoles)
	m.Attachments = slices.Clone(m.Attachments)
	return m
}

// Clone returns a copy of c.
func (c Channel) Clone() Channel { return c }

// Clone returns a copy of g that shares no memory with it.
func (g Guild) Clone() Guild {
	g.Channels = slices.Clone(g.Channels)
	return g
}
