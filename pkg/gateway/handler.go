// Package gateway applies decoded gateway events to the entity cache.
//
// Every handler follows the same single-pass protocol: read the snapshots the
// event affects, dispatch the event together with those snapshots, and only
// then mutate the cache. A subscriber failure or a cancelled context stops the
// sequence before the mutation, so nothing is changed that was not announced.
package gateway

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/illmade-knight/go-gatewaycache/pkg/cache"
	"github.com/illmade-knight/go-gatewaycache/pkg/entity"
	"github.com/illmade-knight/go-gatewaycache/pkg/events"
	"github.com/illmade-knight/go-gatewaycache/pkg/snowflake"
	"github.com/rs/zerolog"
	"go.uber.org/multierr"
)

// ErrMalformedEvent is returned when a frame or payload does not match its event kind.
var ErrMalformedEvent = errors.New("gateway: malformed event")

// Caches are the entity tables the handlers read and write.
type Caches struct {
	Messages cache.Cache[entity.Message]
	Channels cache.Cache[entity.Channel]
	Guilds   cache.Cache[entity.Guild]
}

// Handler applies gateway events to Caches and notifies subscribers through a Dispatcher.
// It holds no state of its own and is safe for concurrent use.
type Handler struct {
	caches     Caches
	dispatcher *events.Dispatcher
	logger     zerolog.Logger
}

// NewHandler creates a Handler.
func NewHandler(caches Caches, dispatcher *events.Dispatcher, logger zerolog.Logger) (*Handler, error) {
	if caches.Messages == nil || caches.Channels == nil || caches.Guilds == nil {
		return nil, fmt.Errorf("messages, channels, and guilds caches cannot be nil")
	}
	if dispatcher == nil {
		return nil, fmt.Errorf("dispatcher cannot be nil")
	}
	return &Handler{
		caches:     caches,
		dispatcher: dispatcher,
		logger:     logger.With().Str("component", "GatewayHandler").Logger(),
	}, nil
}

// Handle routes a decoded envelope to the handler for its kind. Kinds this
// layer does not model are ignored.
func (h *Handler) Handle(ctx context.Context, env events.Envelope) error {
	h.logger.Debug().Str("event", string(env.Kind)).Int64("seq", env.Sequence).Msg("Handling gateway event.")

	var err error
	switch env.Kind {
	case events.KindMessageCreate:
		err = route(ctx, env, h.MessageCreate)
	case events.KindMessageUpdate:
		err = route(ctx, env, h.MessageUpdate)
	case events.KindMessageDelete:
		err = route(ctx, env, h.MessageDelete)
	case events.KindMessageDeleteBulk:
		err = route(ctx, env, h.MessageDeleteBulk)
	case events.KindChannelCreate:
		err = route(ctx, env, h.ChannelCreate)
	case events.KindChannelUpdate:
		err = route(ctx, env, h.ChannelUpdate)
	case events.KindChannelDelete:
		err = route(ctx, env, h.ChannelDelete)
	case events.KindGuildCreate:
		err = route(ctx, env, h.GuildCreate)
	case events.KindGuildUpdate:
		err = route(ctx, env, h.GuildUpdate)
	case events.KindGuildDelete:
		err = route(ctx, env, h.GuildDelete)
	default:
		h.logger.Debug().Str("event", string(env.Kind)).Msg("Ignoring unhandled gateway event.")
		return nil
	}

	if err != nil {
		return fmt.Errorf("handle %s (seq %d): %w", env.Kind, env.Sequence, err)
	}
	return nil
}

// route asserts the envelope payload type before calling fn.
func route[P any](ctx context.Context, env events.Envelope, fn func(context.Context, *P) error) error {
	payload, ok := env.Payload.(*P)
	if !ok || payload == nil {
		return fmt.Errorf("%w: unexpected payload %T", ErrMalformedEvent, env.Payload)
	}
	return fn(ctx, payload)
}

// cloner is an entity that can copy itself without sharing slices or pointers.
type cloner[V any] interface {
	Clone() V
}

// snapshot reads one entry and returns a pointer to a deep copy, or nil when
// absent. Subscribers may modify it without touching the stored entry.
func snapshot[V cloner[V]](ctx context.Context, c cache.Cache[V], kind cache.Kind, id snowflake.ID) (*V, error) {
	value, found, err := c.Get(ctx, kind, id)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, nil
	}
	value = value.Clone()
	return &value, nil
}

// live reports a context error when the caller gave up before the mutation was issued.
func live(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("mutation not issued: %w", err)
	}
	return nil
}

// fanOut runs task for every index concurrently, waits for all of them and
// returns the collected failures. One failing task never stops its siblings.
func fanOut(n int, task func(i int) error) error {
	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		errs error
	)
	wg.Add(n)
	for i := 0; i < n; i++ {
		go func(i int) {
			defer wg.Done()
			if err := task(i); err != nil {
				mu.Lock()
				errs = multierr.Append(errs, err)
				mu.Unlock()
			}
		}(i)
	}
	wg.Wait()
	return errs
}
