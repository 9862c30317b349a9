package gateway_test

import (
	"context"
	"testing"

	"github.com/illmade-knight/go-gatewaycache/pkg/cache"
	"github.com/illmade-knight/go-gatewaycache/pkg/entity"
	"github.com/illmade-knight/go-gatewaycache/pkg/events"
	"github.com/illmade-knight/go-gatewaycache/pkg/snowflake"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGuildCreate_CachesGuildAndChannels(t *testing.T) {
	// Arrange
	var announced *entity.Guild
	f := newFixture(t, events.Handlers{
		GuildCreate: func(_ context.Context, g *entity.Guild) error {
			announced = g
			return nil
		},
	})
	guild := entity.Guild{
		ID:   1,
		Name: "gophers",
		Channels: []entity.Channel{
			{ID: 10, Name: "general"},
			{ID: 11, Name: "random", GuildID: 1},
		},
	}

	// Act
	err := f.handler.GuildCreate(context.Background(), &events.GuildCreate{Guild: guild})

	// Assert
	require.NoError(t, err)
	require.NotNil(t, announced)
	assert.Len(t, announced.Channels, 2, "subscribers see the full payload")

	cached, found := f.guild(t, 1)
	require.True(t, found)
	assert.Equal(t, "gophers", cached.Name)
	assert.Nil(t, cached.Channels, "channels are stored in their own table")

	for _, id := range []snowflake.ID{10, 11} {
		ch, found := f.channel(t, id)
		require.True(t, found)
		assert.Equal(t, snowflake.ID(1), ch.GuildID)
	}
}

func TestGuildCreate_ChannelFailuresCollected(t *testing.T) {
	f := newFixture(t, events.Handlers{})
	f.channels.failSet[10] = true

	err := f.handler.GuildCreate(context.Background(), &events.GuildCreate{Guild: entity.Guild{
		ID:       1,
		Channels: []entity.Channel{{ID: 10}, {ID: 11}},
	}})

	require.Error(t, err)
	assert.ErrorIs(t, err, cache.ErrCacheUnavailable)
	_, found := f.guild(t, 1)
	assert.True(t, found, "the guild itself is still written")
	_, found = f.channel(t, 11)
	assert.True(t, found, "one failing channel does not stop the others")
}

func TestGuildUpdate(t *testing.T) {
	var gotOld *entity.Guild
	f := newFixture(t, events.Handlers{
		GuildUpdate: func(_ context.Context, _ *entity.Guild, old *entity.Guild) error {
			gotOld = old
			return nil
		},
	})
	f.putGuild(t, entity.Guild{ID: 1, Name: "before"})

	err := f.handler.GuildUpdate(context.Background(), &events.GuildUpdate{Guild: entity.Guild{ID: 1, Name: "after"}})

	require.NoError(t, err)
	require.NotNil(t, gotOld)
	assert.Equal(t, "before", gotOld.Name)
	cached, found := f.guild(t, 1)
	require.True(t, found)
	assert.Equal(t, "after", cached.Name)
}

func TestGuildDelete(t *testing.T) {
	testCases := []struct {
		name        string
		cached      bool
		unavailable bool
		wantFound   bool
		wantFlagged bool
	}{
		{name: "removed", cached: true, unavailable: false, wantFound: false},
		{name: "outage keeps guild flagged", cached: true, unavailable: true, wantFound: true, wantFlagged: true},
		{name: "outage on uncached guild", cached: false, unavailable: true, wantFound: false},
		{name: "removed uncached guild", cached: false, unavailable: false, wantFound: false},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			var gotOld *entity.Guild
			var called bool
			f := newFixture(t, events.Handlers{
				GuildDelete: func(_ context.Context, _ events.GuildDelete, old *entity.Guild) error {
					called = true
					gotOld = old
					return nil
				},
			})
			if tc.cached {
				f.putGuild(t, entity.Guild{ID: 1, Name: "gophers"})
			}

			err := f.handler.GuildDelete(context.Background(), &events.GuildDelete{ID: "1", Unavailable: tc.unavailable})

			require.NoError(t, err)
			assert.True(t, called)
			assert.Equal(t, tc.cached, gotOld != nil)
			cached, found := f.guild(t, 1)
			assert.Equal(t, tc.wantFound, found)
			assert.Equal(t, tc.wantFlagged, cached.Unavailable)
		})
	}
}

func TestGuildCreate_SubscriberEditsDoNotReachCache(t *testing.T) {
	f := newFixture(t, events.Handlers{
		GuildCreate: func(_ context.Context, g *entity.Guild) error {
			g.Channels[0].Name = "rewritten"
			return nil
		},
	})

	err := f.handler.GuildCreate(context.Background(), &events.GuildCreate{Guild: entity.Guild{
		ID:       1,
		Channels: []entity.Channel{{ID: 10, Name: "general"}},
	}})

	require.NoError(t, err)
	ch, found := f.channel(t, 10)
	require.True(t, found)
	assert.Equal(t, "general", ch.Name)
}
