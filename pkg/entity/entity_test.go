package entity_test

import (
	"testing"

	"github.com/illmade-knight/go-gatewaycache/pkg/entity"
	"github.com/illmade-knight/go-gatewaycache/pkg/snowflake"
	"github.com/stretchr/testify/assert"
)

func TestMessage_CloneSharesNothing(t *testing.T) {
	original := entity.Message{
		ID:               1,
		Member:           &entity.Member{User: &entity.User{ID: 2, Username: "ada"}, Nick: "countess", Roles: []snowflake.ID{5}},
		MentionRoles:     []snowflake.ID{5},
		Attachments:      []entity.Attachment{{ID: 3, Filename: "a.png"}},
		MessageReference: &entity.MessageReference{MessageID: 9},
	}

	clone := original.Clone()
	clone.Member.Nick = "x"
	clone.Member.User.Username = "x"
	clone.Member.Roles[0] = 0
	clone.MentionRoles[0] = 0
	clone.Attachments[0].Filename = "x"
	clone.MessageReference.MessageID = 0

	assert.Equal(t, "countess", original.Member.Nick)
	assert.Equal(t, "ada", original.Member.User.Username)
	assert.Equal(t, snowflake.ID(5), original.Member.Roles[0])
	assert.Equal(t, snowflake.ID(5), original.MentionRoles[0])
	assert.Equal(t, "a.png", original.Attachments[0].Filename)
	assert.Equal(t, snowflake.ID(9), original.MessageReference.MessageID)
}

func TestMessage_CloneKeepsNilFields(t *testing.T) {
	original := entity.Message{ID: 1, Content: "hi"}

	assert.Equal(t, original, original.Clone())
}

func TestGuild_CloneCopiesChannels(t *testing.T) {
	original := entity.Guild{ID: 1, Channels: []entity.Channel{{ID: 10, Name: "general"}}}

	clone := original.Clone()
	clone.Channels[0].Name = "x"

	assert.Equal(t, "general", original.Channels[0].Name)
}
