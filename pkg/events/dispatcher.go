package events

import (
	"context"
	"errors"
	"fmt"

	"github.com/illmade-knight/go-gatewaycache/pkg/entity"
)

// ErrSubscriber wraps every failure raised by a registered callback.
var ErrSubscriber = errors.New("events: subscriber failed")

// Handlers holds at most one callback per event kind. A nil field means nobody
// listens for that kind. Snapshot arguments are nil when the entity was not cached.
// They are private deep copies, except that the channel snapshot of a bulk
// deletion is shared by every MessageDelete call of that bulk.
type Handlers struct {
	MessageCreate func(ctx context.Context, message *entity.Message) error
	MessageUpdate func(ctx context.Context, message *entity.Message, old *entity.Message) error
	// MessageDelete also receives each id of a bulk deletion, all sharing one channel snapshot.
	MessageDelete func(ctx context.Context, event MessageDelete, message *entity.Message, channel *entity.Channel) error

	ChannelCreate func(ctx context.Context, channel *entity.Channel) error
	ChannelUpdate func(ctx context.Context, channel *entity.Channel, old *entity.Channel) error
	ChannelDelete func(ctx context.Context, channel *entity.Channel, old *entity.Channel) error

	GuildCreate func(ctx context.Context, guild *entity.Guild) error
	GuildUpdate func(ctx context.Context, guild *entity.Guild, old *entity.Guild) error
	GuildDelete func(ctx context.Context, event GuildDelete, old *entity.Guild) error
}

// Dispatcher invokes the registered callback for an event kind synchronously.
// It is built once during setup and read-only afterwards, so it is safe for
// concurrent use by every shard.
type Dispatcher struct {
	handlers Handlers
}

// NewDispatcher copies the callback table into a new Dispatcher.
func NewDispatcher(handlers Handlers) *Dispatcher {
	return &Dispatcher{handlers: handlers}
}

// Registered reports whether a callback listens for kind. Bulk deletions are
// delivered through the MessageDelete callback.
func (d *Dispatcher) Registered(kind Kind) bool {
	h := d.handlers
	switch kind {
	case KindMessageCreate:
		return h.MessageCreate != nil
	case KindMessageUpdate:
		return h.MessageUpdate != nil
	case KindMessageDelete, KindMessageDeleteBulk:
		return h.MessageDelete != nil
	case KindChannelCreate:
		return h.ChannelCreate != nil
	case KindChannelUpdate:
		return h.ChannelUpdate != nil
	case KindChannelDelete:
		return h.ChannelDelete != nil
	case KindGuildCreate:
		return h.GuildCreate != nil
	case KindGuildUpdate:
		return h.GuildUpdate != nil
	case KindGuildDelete:
		return h.GuildDelete != nil
	default:
		return false
	}
}

// MessageCreate announces a message that is about to be cached.
func (d *Dispatcher) MessageCreate(ctx context.Context, message *entity.Message) error {
	if d.handlers.MessageCreate == nil {
		return nil
	}
	return invoke(KindMessageCreate, func() error {
		return d.handlers.MessageCreate(ctx, message)
	})
}

// MessageUpdate announces an edit together with the previously cached message.
func (d *Dispatcher) MessageUpdate(ctx context.Context, message, old *entity.Message) error {
	if d.handlers.MessageUpdate == nil {
		return nil
	}
	return invoke(KindMessageUpdate, func() error {
		return d.handlers.MessageUpdate(ctx, message, old)
	})
}

// MessageDelete announces a deletion with the message and channel snapshots.
func (d *Dispatcher) MessageDelete(ctx context.Context, event MessageDelete, message *entity.Message, channel *entity.Channel) error {
	if d.handlers.MessageDelete == nil {
		return nil
	}
	return invoke(KindMessageDelete, func() error {
		return d.handlers.MessageDelete(ctx, event, message, channel)
	})
}

// ChannelCreate announces a channel that is about to be cached.
func (d *Dispatcher) ChannelCreate(ctx context.Context, channel *entity.Channel) error {
	if d.handlers.ChannelCreate == nil {
		return nil
	}
	return invoke(KindChannelCreate, func() error {
		return d.handlers.ChannelCreate(ctx, channel)
	})
}

// ChannelUpdate announces a channel change together with the previous snapshot.
func (d *Dispatcher) ChannelUpdate(ctx context.Context, channel, old *entity.Channel) error {
	if d.handlers.ChannelUpdate == nil {
		return nil
	}
	return invoke(KindChannelUpdate, func() error {
		return d.handlers.ChannelUpdate(ctx, channel, old)
	})
}

// ChannelDelete announces a channel removal together with the cached snapshot.
func (d *Dispatcher) ChannelDelete(ctx context.Context, channel, old *entity.Channel) error {
	if d.handlers.ChannelDelete == nil {
		return nil
	}
	return invoke(KindChannelDelete, func() error {
		return d.handlers.ChannelDelete(ctx, channel, old)
	})
}

// GuildCreate announces a guild becoming available, channels included.
func (d *Dispatcher) GuildCreate(ctx context.Context, guild *entity.Guild) error {
	if d.handlers.GuildCreate == nil {
		return nil
	}
	return invoke(KindGuildCreate, func() error {
		return d.handlers.GuildCreate(ctx, guild)
	})
}

// GuildUpdate announces a guild change together with the previous snapshot.
func (d *Dispatcher) GuildUpdate(ctx context.Context, guild, old *entity.Guild) error {
	if d.handlers.GuildUpdate == nil {
		return nil
	}
	return invoke(KindGuildUpdate, func() error {
		return d.handlers.GuildUpdate(ctx, guild, old)
	})
}

// GuildDelete announces a guild leaving or going unavailable.
func (d *Dispatcher) GuildDelete(ctx context.Context, event GuildDelete, old *entity.Guild) error {
	if d.handlers.GuildDelete == nil {
		return nil
	}
	return invoke(KindGuildDelete, func() error {
		return d.handlers.GuildDelete(ctx, event, old)
	})
}

// invoke runs fn and converts both returned errors and panics into ErrSubscriber
// failures tagged with the event kind.
func invoke(kind Kind, fn func() error) (err error) {
	defer func() {
		if recovered := recover(); recovered != nil {
			err = fmt.Errorf("dispatch %s: %w: panic recovered: %v", kind, ErrSubscriber, recovered)
		}
	}()

	if err := fn(); err != nil {
		return fmt.Errorf("dispatch %s: %w: %w", kind, ErrSubscriber, err)
	}
	return nil
}
