package gateway_test

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/illmade-knight/go-gatewaycache/pkg/cache"
	"github.com/illmade-knight/go-gatewaycache/pkg/entity"
	"github.com/illmade-knight/go-gatewaycache/pkg/events"
	"github.com/illmade-knight/go-gatewaycache/pkg/snowflake"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/multierr"
)

var (
	testChannel = entity.Channel{ID: 7, Name: "general", GuildID: 1}
	testMessage = entity.Message{
		ID:        42,
		ChannelID: 7,
		GuildID:   1,
		Author:    entity.User{ID: 3, Username: "ada"},
		Content:   "hello",
		Timestamp: time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC),
	}
)

func TestMessageDelete_CachedMessage(t *testing.T) {
	// Arrange
	recorder := &deleteRecorder{}
	f := newFixture(t, events.Handlers{MessageDelete: recorder.record})
	f.putMessage(t, testMessage)
	f.putChannel(t, testChannel)

	// Act
	err := f.handler.MessageDelete(context.Background(), &events.MessageDelete{ID: "42", ChannelID: "7"})

	// Assert
	require.NoError(t, err)
	calls := recorder.snapshot()
	require.Len(t, calls, 1)
	assert.Equal(t, events.MessageDelete{ID: "42", ChannelID: "7"}, calls[0].event)
	require.NotNil(t, calls[0].message)
	assert.Equal(t, testMessage, *calls[0].message)
	require.NotNil(t, calls[0].channel)
	assert.Equal(t, testChannel, *calls[0].channel)

	_, found := f.message(t, 42)
	assert.False(t, found, "message should be removed after the dispatch")
	_, found = f.channel(t, 7)
	assert.True(t, found, "channel must stay cached")
}

func TestMessageDelete_UncachedMessage(t *testing.T) {
	recorder := &deleteRecorder{}
	f := newFixture(t, events.Handlers{MessageDelete: recorder.record})
	f.putChannel(t, testChannel)

	err := f.handler.MessageDelete(context.Background(), &events.MessageDelete{ID: "1000", ChannelID: "7"})

	require.NoError(t, err)
	calls := recorder.snapshot()
	require.Len(t, calls, 1)
	assert.Nil(t, calls[0].message)
	require.NotNil(t, calls[0].channel)
	assert.Equal(t, testChannel, *calls[0].channel)
}

func TestMessageDelete_NoSubscriber(t *testing.T) {
	f := newFixture(t, events.Handlers{})
	f.putMessage(t, testMessage)

	err := f.handler.MessageDelete(context.Background(), &events.MessageDelete{ID: "42", ChannelID: "7"})

	require.NoError(t, err)
	_, found := f.message(t, 42)
	assert.False(t, found)
}

func TestMessageDelete_Idempotent(t *testing.T) {
	recorder := &deleteRecorder{}
	f := newFixture(t, events.Handlers{MessageDelete: recorder.record})
	f.putMessage(t, testMessage)
	f.putChannel(t, testChannel)
	ev := &events.MessageDelete{ID: "42", ChannelID: "7"}

	require.NoError(t, f.handler.MessageDelete(context.Background(), ev))
	require.NoError(t, f.handler.MessageDelete(context.Background(), ev))

	calls := recorder.snapshot()
	require.Len(t, calls, 2)
	assert.NotNil(t, calls[0].message)
	assert.Nil(t, calls[1].message, "second deletion should see the message already gone")
}

func TestMessageDelete_SnapshotPredatesDelete(t *testing.T) {
	var f *fixture
	var seenDuringDispatch atomic.Bool
	f = newFixture(t, events.Handlers{
		MessageDelete: func(ctx context.Context, _ events.MessageDelete, m *entity.Message, _ *entity.Channel) error {
			// The cache still holds the entry while subscribers run.
			cached, found, err := f.messages.Get(ctx, cache.KindMessages, 42)
			if err == nil && found && m != nil && cached.Content == m.Content {
				seenDuringDispatch.Store(true)
			}
			return nil
		},
	})
	f.putMessage(t, testMessage)

	require.NoError(t, f.handler.MessageDelete(context.Background(), &events.MessageDelete{ID: "42", ChannelID: "7"}))

	assert.True(t, seenDuringDispatch.Load(), "the delete must be issued only after the dispatch returns")
	_, found := f.message(t, 42)
	assert.False(t, found)
}

func TestMessageDelete_SnapshotIsPrivateCopy(t *testing.T) {
	f := newFixture(t, events.Handlers{
		MessageDelete: func(_ context.Context, _ events.MessageDelete, m *entity.Message, c *entity.Channel) error {
			c.Name = "mutated"
			return nil
		},
	})
	f.putMessage(t, testMessage)
	f.putChannel(t, testChannel)

	require.NoError(t, f.handler.MessageDelete(context.Background(), &events.MessageDelete{ID: "42", ChannelID: "7"}))

	cached, found := f.channel(t, 7)
	require.True(t, found)
	assert.Equal(t, "general", cached.Name)
}

func TestMessageDelete_SubscriberErrorSkipsDelete(t *testing.T) {
	callbackErr := errors.New("subscriber failed")
	f := newFixture(t, events.Handlers{
		MessageDelete: func(context.Context, events.MessageDelete, *entity.Message, *entity.Channel) error {
			return callbackErr
		},
	})
	f.putMessage(t, testMessage)

	err := f.handler.MessageDelete(context.Background(), &events.MessageDelete{ID: "42", ChannelID: "7"})

	require.Error(t, err)
	assert.ErrorIs(t, err, events.ErrSubscriber)
	assert.ErrorIs(t, err, callbackErr)
	_, found := f.message(t, 42)
	assert.True(t, found, "an unannounced deletion must not be applied")
}

func TestMessageDelete_InvalidIdentifier(t *testing.T) {
	testCases := []struct {
		name string
		ev   events.MessageDelete
	}{
		{name: "message id", ev: events.MessageDelete{ID: "abc", ChannelID: "7"}},
		{name: "empty message id", ev: events.MessageDelete{ID: "", ChannelID: "7"}},
		{name: "channel id", ev: events.MessageDelete{ID: "42", ChannelID: "18446744073709551616"}},
		{name: "guild id", ev: events.MessageDelete{ID: "42", ChannelID: "7", GuildID: "x"}},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			recorder := &deleteRecorder{}
			f := newFixture(t, events.Handlers{MessageDelete: recorder.record})
			f.putMessage(t, testMessage)

			err := f.handler.MessageDelete(context.Background(), &tc.ev)

			require.Error(t, err)
			assert.ErrorIs(t, err, snowflake.ErrInvalidIdentifier)
			assert.Empty(t, recorder.snapshot())
			assert.Equal(t, int32(0), f.messages.gets.Load(), "no cache access before identifiers are valid")
			_, found := f.message(t, 42)
			assert.True(t, found)
		})
	}
}

func TestMessageDelete_CacheUnavailable(t *testing.T) {
	recorder := &deleteRecorder{}
	f := newFixture(t, events.Handlers{MessageDelete: recorder.record})
	f.putMessage(t, testMessage)
	f.channels.failGet[7] = true

	err := f.handler.MessageDelete(context.Background(), &events.MessageDelete{ID: "42", ChannelID: "7"})

	require.Error(t, err)
	assert.ErrorIs(t, err, cache.ErrCacheUnavailable)
	assert.Empty(t, recorder.snapshot(), "nothing is dispatched when a snapshot cannot be read")
	_, found := f.message(t, 42)
	assert.True(t, found)
}

func TestMessageDelete_CancelledBeforeDelete(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	f := newFixture(t, events.Handlers{
		MessageDelete: func(context.Context, events.MessageDelete, *entity.Message, *entity.Channel) error {
			cancel()
			return nil
		},
	})
	f.putMessage(t, testMessage)

	err := f.handler.MessageDelete(ctx, &events.MessageDelete{ID: "42", ChannelID: "7"})

	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
	_, found := f.message(t, 42)
	assert.True(t, found, "a cancelled sequence leaves the entity cached")
}

func TestMessageDeleteBulk_SharedChannelSnapshot(t *testing.T) {
	// Arrange
	recorder := &deleteRecorder{}
	f := newFixture(t, events.Handlers{MessageDelete: recorder.record})
	channel := entity.Channel{ID: 9, Name: "bulk"}
	f.putChannel(t, channel)
	for _, id := range []snowflake.ID{1, 2, 3} {
		f.putMessage(t, entity.Message{ID: id, ChannelID: 9, Content: id.String()})
	}
	f.channels.gets.Store(0)

	// Act
	err := f.handler.MessageDeleteBulk(context.Background(), &events.MessageDeleteBulk{
		IDs:       []string{"1", "2", "3"},
		ChannelID: "9",
	})

	// Assert
	require.NoError(t, err)
	calls := recorder.snapshot()
	require.Len(t, calls, 3)
	assert.Equal(t, int32(1), f.channels.gets.Load(), "the channel is fetched once for the whole batch")

	seen := make(map[string]bool)
	for _, call := range calls {
		assert.Same(t, calls[0].channel, call.channel, "every dispatch shares one channel snapshot")
		assert.Equal(t, "9", call.event.ChannelID)
		require.NotNil(t, call.message)
		assert.Equal(t, call.event.ID, call.message.Content)
		seen[call.event.ID] = true
	}
	assert.Equal(t, map[string]bool{"1": true, "2": true, "3": true}, seen)
	require.NotNil(t, calls[0].channel)
	assert.Equal(t, channel, *calls[0].channel)

	for _, id := range []snowflake.ID{1, 2, 3} {
		_, found := f.message(t, id)
		assert.False(t, found, "message %s should be deleted", id)
	}
}

func TestMessageDeleteBulk_DuplicatesPreserved(t *testing.T) {
	recorder := &deleteRecorder{}
	f := newFixture(t, events.Handlers{MessageDelete: recorder.record})
	f.putMessage(t, entity.Message{ID: 1, ChannelID: 9})

	err := f.handler.MessageDeleteBulk(context.Background(), &events.MessageDeleteBulk{
		IDs:       []string{"1", "1"},
		ChannelID: "9",
	})

	require.NoError(t, err)
	calls := recorder.snapshot()
	require.Len(t, calls, 2)
	assert.Equal(t, "1", calls[0].event.ID)
	assert.Equal(t, "1", calls[1].event.ID)
	assert.Nil(t, calls[0].channel)
}

func TestMessageDeleteBulk_CollectsFailures(t *testing.T) {
	// Arrange: id "bad" is malformed, the subscriber rejects id "3" and the
	// cache cannot delete id "4". Ids "1" and "5" must still be processed.
	callbackErr := errors.New("rejected")
	recorder := &deleteRecorder{}
	f := newFixture(t, events.Handlers{
		MessageDelete: func(ctx context.Context, ev events.MessageDelete, m *entity.Message, c *entity.Channel) error {
			_ = recorder.record(ctx, ev, m, c)
			if ev.ID == "3" {
				return callbackErr
			}
			return nil
		},
	})
	for _, id := range []snowflake.ID{1, 3, 4, 5} {
		f.putMessage(t, entity.Message{ID: id, ChannelID: 9})
	}
	f.messages.failDelete[4] = true

	// Act
	err := f.handler.MessageDeleteBulk(context.Background(), &events.MessageDeleteBulk{
		IDs:       []string{"1", "bad", "3", "4", "5"},
		ChannelID: "9",
	})

	// Assert
	require.Error(t, err)
	assert.Len(t, multierr.Errors(err), 3)
	assert.ErrorIs(t, err, snowflake.ErrInvalidIdentifier)
	assert.ErrorIs(t, err, events.ErrSubscriber)
	assert.ErrorIs(t, err, cache.ErrCacheUnavailable)

	assert.Len(t, recorder.snapshot(), 4, "every valid id is dispatched")
	_, found := f.message(t, 1)
	assert.False(t, found)
	_, found = f.message(t, 3)
	assert.True(t, found, "a rejected announcement keeps the message")
	_, found = f.message(t, 4)
	assert.True(t, found)
	_, found = f.message(t, 5)
	assert.False(t, found)
}

func TestMessageDeleteBulk_InvalidChannel(t *testing.T) {
	recorder := &deleteRecorder{}
	f := newFixture(t, events.Handlers{MessageDelete: recorder.record})

	err := f.handler.MessageDeleteBulk(context.Background(), &events.MessageDeleteBulk{
		IDs:       []string{"1"},
		ChannelID: "nine",
	})

	require.Error(t, err)
	assert.ErrorIs(t, err, snowflake.ErrInvalidIdentifier)
	assert.Empty(t, recorder.snapshot())
}

func TestMessageDeleteBulk_Empty(t *testing.T) {
	recorder := &deleteRecorder{}
	f := newFixture(t, events.Handlers{MessageDelete: recorder.record})

	err := f.handler.MessageDeleteBulk(context.Background(), &events.MessageDeleteBulk{ChannelID: "9"})

	require.NoError(t, err)
	assert.Empty(t, recorder.snapshot())
}

func TestMessageCreate_DispatchesThenCaches(t *testing.T) {
	var cachedDuringDispatch atomic.Bool
	var f *fixture
	f = newFixture(t, events.Handlers{
		MessageCreate: func(ctx context.Context, m *entity.Message) error {
			_, found, _ := f.messages.Get(ctx, cache.KindMessages, m.ID)
			cachedDuringDispatch.Store(found)
			return nil
		},
	})

	require.NoError(t, f.handler.MessageCreate(context.Background(), &events.MessageCreate{Message: testMessage}))

	assert.False(t, cachedDuringDispatch.Load())
	cached, found := f.message(t, 42)
	assert.True(t, found)
	assert.Equal(t, testMessage, cached)
}

func TestMessageUpdate_DeliversPreviousSnapshot(t *testing.T) {
	var gotNew, gotOld *entity.Message
	f := newFixture(t, events.Handlers{
		MessageUpdate: func(_ context.Context, m, old *entity.Message) error {
			gotNew, gotOld = m, old
			return nil
		},
	})
	f.putMessage(t, testMessage)

	edited := testMessage
	edited.Content = "hello, edited"
	require.NoError(t, f.handler.MessageUpdate(context.Background(), &events.MessageUpdate{Message: edited}))

	require.NotNil(t, gotOld)
	assert.Equal(t, "hello", gotOld.Content)
	require.NotNil(t, gotNew)
	assert.Equal(t, "hello, edited", gotNew.Content)

	cached, found := f.message(t, 42)
	require.True(t, found)
	assert.Equal(t, "hello, edited", cached.Content)
}

func richMessage() entity.Message {
	m := testMessage
	m.Member = &entity.Member{User: &entity.User{ID: 3, Username: "ada"}, Nick: "countess", Roles: []snowflake.ID{11}}
	m.Attachments = []entity.Attachment{{ID: 90, Filename: "notes.txt", Size: 12}}
	m.MentionRoles = []snowflake.ID{11}
	m.MessageReference = &entity.MessageReference{MessageID: 41, ChannelID: 7}
	return m
}

func TestMessageDelete_SubscriberEditsDoNotReachCache(t *testing.T) {
	// Arrange
	f := newFixture(t, events.Handlers{
		MessageDelete: func(_ context.Context, _ events.MessageDelete, m *entity.Message, _ *entity.Channel) error {
			m.Attachments[0].Filename = "rewritten.txt"
			m.Member.Nick = "rewritten"
			m.Member.User.Username = "rewritten"
			m.Member.Roles[0] = 0
			m.MentionRoles[0] = 0
			m.MessageReference.MessageID = 0
			return errors.New("subscriber failed")
		},
	})
	f.putMessage(t, richMessage())

	// Act
	err := f.handler.MessageDelete(context.Background(), &events.MessageDelete{ID: "42", ChannelID: "7"})

	// Assert
	require.Error(t, err)
	cached, found := f.message(t, 42)
	require.True(t, found, "the failed dispatch must leave the message cached")
	assert.Equal(t, richMessage(), cached)
}

func TestMessageCreate_SubscriberEditsDoNotReachCache(t *testing.T) {
	f := newFixture(t, events.Handlers{
		MessageCreate: func(_ context.Context, m *entity.Message) error {
			m.Attachments[0].Filename = "rewritten.txt"
			m.Member.Nick = "rewritten"
			return nil
		},
	})
	received := richMessage()

	require.NoError(t, f.handler.MessageCreate(context.Background(), &events.MessageCreate{Message: received}))

	cached, found := f.message(t, 42)
	require.True(t, found)
	assert.Equal(t, richMessage(), cached)
	assert.Equal(t, "notes.txt", received.Attachments[0].Filename, "the event payload stays untouched")
}
