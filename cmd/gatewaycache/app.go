package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"cloud.google.com/go/firestore"
	"github.com/illmade-knight/go-gatewaycache/pkg/cache"
	"github.com/illmade-knight/go-gatewaycache/pkg/entity"
	"github.com/illmade-knight/go-gatewaycache/pkg/events"
	"github.com/illmade-knight/go-gatewaycache/pkg/gateway"
	"github.com/illmade-knight/go-gatewaycache/pkg/messagepipeline"
	"github.com/illmade-knight/go-gatewaycache/pkg/microservice"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"go.uber.org/multierr"
	"google.golang.org/api/iterator"
)

// app is the wired daemon: a frame source feeding the gateway handler through
// the streaming service, plus the probe server.
type app struct {
	cfg     *Config
	logger  zerolog.Logger
	caches  gateway.Caches
	server  *microservice.BaseServer
	source  messagepipeline.MessageConsumer
	service *messagepipeline.StreamingService[events.Envelope]
	closers []func() error
}

// newLogger builds the root logger from the log section.
func newLogger(cfg LogConfig, out io.Writer) zerolog.Logger {
	level, err := zerolog.ParseLevel(strings.ToLower(cfg.Level))
	if err != nil || level == zerolog.NoLevel {
		level = zerolog.InfoLevel
	}
	if cfg.Pretty {
		out = zerolog.ConsoleWriter{Out: out}
	}
	return zerolog.New(out).Level(level).With().Timestamp().Str("service", "gatewaycache").Logger()
}

// newApp opens every backend named by cfg. On failure whatever was already
// opened is closed again.
func newApp(ctx context.Context, cfg *Config, logger zerolog.Logger) (a *app, err error) {
	a = &app{
		cfg:    cfg,
		logger: logger,
		server: microservice.NewBaseServer(logger, cfg.HTTP.Port),
	}
	defer func() {
		if err != nil {
			err = multierr.Append(err, a.close())
			a = nil
		}
	}()

	if err := a.openCaches(ctx); err != nil {
		return a, err
	}
	if err := a.openSource(ctx); err != nil {
		return a, err
	}

	handler, err := gateway.NewHandler(a.caches, events.NewDispatcher(loggingHandlers(logger)), logger)
	if err != nil {
		return a, err
	}
	a.service, err = messagepipeline.NewStreamingService[events.Envelope](
		cfg.Pipeline, a.source, gateway.NewFrameTransformer(logger), handler.Processor(), logger)
	if err != nil {
		return a, fmt.Errorf("failed to create streaming service: %w", err)
	}
	return a, nil
}

// openCaches builds the three entity tables on the configured backend, each
// behind an LRU front when lru_size is set.
func (a *app) openCaches(ctx context.Context) error {
	cfg := a.cfg.Cache
	switch cfg.Backend {
	case BackendMemory:
		if cfg.LRUSize > 0 {
			return a.setCaches(
				withFront[entity.Message](cfg.LRUSize, nil),
				withFront[entity.Channel](cfg.LRUSize, nil),
				withFront[entity.Guild](cfg.LRUSize, nil),
			)
		}
		a.caches = gateway.Caches{
			Messages: cache.NewInMemoryCache[entity.Message](),
			Channels: cache.NewInMemoryCache[entity.Channel](),
			Guilds:   cache.NewInMemoryCache[entity.Guild](),
		}
		return nil

	case BackendRedis:
		client, err := cache.NewRedisClient(ctx, &cfg.Redis, a.logger)
		if err != nil {
			return err
		}
		a.closers = append(a.closers, client.Close)
		a.server.AddReadinessCheck("redis", func(ctx context.Context) error {
			return client.Ping(ctx).Err()
		})
		return a.setCaches(
			redisTable[entity.Message](cfg, client, a.logger),
			redisTable[entity.Channel](cfg, client, a.logger),
			redisTable[entity.Guild](cfg, client, a.logger),
		)

	case BackendFirestore:
		client, err := cache.NewFirestoreClient(ctx, &cfg.Firestore, a.logger)
		if err != nil {
			return err
		}
		a.closers = append(a.closers, client.Close)
		probe := cfg.Firestore.CollectionPrefix + string(cache.KindGuilds)
		a.server.AddReadinessCheck("firestore", func(ctx context.Context) error {
			return firestoreReachable(ctx, client, probe)
		})
		return a.setCaches(
			firestoreTable[entity.Message](cfg, client, a.logger),
			firestoreTable[entity.Channel](cfg, client, a.logger),
			firestoreTable[entity.Guild](cfg, client, a.logger),
		)

	default:
		return fmt.Errorf("unknown cache backend %q", cfg.Backend)
	}
}

// tableResult pairs a constructed table with its construction error.
type tableResult[V any] struct {
	table cache.Cache[V]
	err   error
}

func (a *app) setCaches(
	messages tableResult[entity.Message],
	channels tableResult[entity.Channel],
	guilds tableResult[entity.Guild],
) error {
	if err := multierr.Combine(messages.err, channels.err, guilds.err); err != nil {
		return fmt.Errorf("failed to create cache tables: %w", err)
	}
	a.caches = gateway.Caches{Messages: messages.table, Channels: channels.table, Guilds: guilds.table}
	return nil
}

// withFront puts an LRU of size entries in front of backing. A nil backing
// makes the LRU the store itself.
func withFront[V any](size int, backing cache.Cache[V]) tableResult[V] {
	if size <= 0 {
		return tableResult[V]{table: backing}
	}
	front, err := cache.NewLRUCache[V](size, backing)
	if err != nil {
		return tableResult[V]{err: err}
	}
	return tableResult[V]{table: front}
}

func redisTable[V any](cfg CacheConfig, client *redis.Client, logger zerolog.Logger) tableResult[V] {
	table, err := cache.NewRedisCache[V](&cfg.Redis, client, logger)
	if err != nil {
		return tableResult[V]{err: err}
	}
	return withFront[V](cfg.LRUSize, table)
}

func firestoreTable[V any](cfg CacheConfig, client *firestore.Client, logger zerolog.Logger) tableResult[V] {
	table, err := cache.NewFirestoreCache[V](&cfg.Firestore, client, logger)
	if err != nil {
		return tableResult[V]{err: err}
	}
	return withFront[V](cfg.LRUSize, table)
}

// firestoreReachable lists at most one document of collection.
func firestoreReachable(ctx context.Context, client *firestore.Client, collection string) error {
	iter := client.Collection(collection).Limit(1).Documents(ctx)
	defer iter.Stop()
	if _, err := iter.Next(); err != nil && !errors.Is(err, iterator.Done) {
		return err
	}
	return nil
}

// openSource builds the frame consumer for the configured source.
func (a *app) openSource(ctx context.Context) error {
	cfg := a.cfg.Source
	switch cfg.Type {
	case SourceFile:
		f, err := os.Open(cfg.File)
		if err != nil {
			return fmt.Errorf("open replay file: %w", err)
		}
		a.closers = append(a.closers, f.Close)
		a.source, err = messagepipeline.NewReaderConsumer(cfg.File, f, a.logger)
		return err

	case SourcePubsub:
		client, err := messagepipeline.NewPubsubClient(ctx, &cfg.Pubsub, a.logger)
		if err != nil {
			return err
		}
		a.closers = append(a.closers, client.Close)
		a.source, err = messagepipeline.NewGooglePubsubConsumer(&cfg.Pubsub, client, a.logger)
		if err != nil {
			return err
		}
		sub := client.Subscription(cfg.Pubsub.SubscriptionID)
		a.server.AddReadinessCheck("pubsub", func(ctx context.Context) error {
			ok, err := sub.Exists(ctx)
			if err == nil && !ok {
				err = fmt.Errorf("subscription %s does not exist", cfg.Pubsub.SubscriptionID)
			}
			return err
		})
		return nil

	default:
		return fmt.Errorf("unknown source type %q", cfg.Type)
	}
}

// run serves until ctx is cancelled or the source is exhausted, then shuts
// everything down in reverse order of startup.
func (a *app) run(ctx context.Context) error {
	if err := a.server.Start(); err != nil {
		return err
	}
	if err := a.service.Start(ctx); err != nil {
		return multierr.Append(err, a.shutdown())
	}
	a.logger.Info().Str("source", a.cfg.Source.Type).Str("cache_backend", a.cfg.Cache.Backend).Msg("Gateway cache running.")

	select {
	case <-ctx.Done():
		a.logger.Info().Msg("Shutdown signal received.")
	case <-a.source.Done():
		a.logger.Info().Msg("Frame source exhausted.")
	}
	return a.shutdown()
}

func (a *app) shutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), a.cfg.ShutdownTimeout)
	defer cancel()

	var err error
	if a.service != nil {
		err = multierr.Append(err, a.service.Stop(ctx))
	}
	err = multierr.Append(err, a.server.Shutdown(ctx))
	return multierr.Append(err, a.close())
}

// close releases the cache tables and clients in reverse order of opening.
func (a *app) close() error {
	var err error
	for _, c := range []io.Closer{a.caches.Messages, a.caches.Channels, a.caches.Guilds} {
		if c != nil {
			err = multierr.Append(err, c.Close())
		}
	}
	for i := len(a.closers) - 1; i >= 0; i-- {
		err = multierr.Append(err, a.closers[i]())
	}
	a.closers = nil
	return err
}
