package messagepipeline

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
)

// Outcome is what happened to one consumed message.
type Outcome int

const (
	// OutcomeAcked means the message was processed and acknowledged.
	OutcomeAcked Outcome = iota
	// OutcomeSkipped means the transformer dropped the message; it was acknowledged.
	OutcomeSkipped
	// OutcomeNacked means the message was handed back for redelivery.
	OutcomeNacked
)

func (o Outcome) String() string {
	switch o {
	case OutcomeAcked:
		return "acked"
	case OutcomeSkipped:
		return "skipped"
	case OutcomeNacked:
		return "nacked"
	default:
		return fmt.Sprintf("outcome(%d)", int(o))
	}
}

// StreamingStats counts message outcomes since the service started.
type StreamingStats struct {
	Acked    uint64
	Skipped  uint64
	Nacked   uint64
	TimedOut uint64
	Panicked uint64
}

// StreamingService feeds every consumed message through a transformer and a
// processor on a fixed pool of workers. A message is acked when processing
// succeeds or the transformer skips it, and nacked otherwise. With one worker
// messages are handled in the order the consumer delivers them.
type StreamingService[T any] struct {
	numWorkers     int
	handlerTimeout time.Duration
	consumer       MessageConsumer
	transformer    MessageTransformer[T]
	processor      StreamProcessor[T]
	logger         zerolog.Logger
	wg             sync.WaitGroup

	acked, skipped, nacked, timedOut, panicked atomic.Uint64
}

// StreamingServiceConfig holds configuration for a StreamingService.
type StreamingServiceConfig struct {
	NumWorkers int `yaml:"workers"`
	// HandlerTimeout bounds transform and process of one message. Zero disables it.
	HandlerTimeout time.Duration `yaml:"handler_timeout"`
}

// NewStreamingService creates a new StreamingService. NumWorkers defaults to 5.
func NewStreamingService[T any](
	cfg StreamingServiceConfig,
	consumer MessageConsumer,
	transformer MessageTransformer[T],
	processor StreamProcessor[T],
	logger zerolog.Logger,
) (*StreamingService[T], error) {
	if consumer == nil {
		return nil, fmt.Errorf("consumer cannot be nil")
	}
	if transformer == nil {
		return nil, fmt.Errorf("transformer cannot be nil")
	}
	if processor == nil {
		return nil, fmt.Errorf("processor cannot be nil")
	}
	if cfg.HandlerTimeout < 0 {
		return nil, fmt.Errorf("handler timeout cannot be negative")
	}
	if cfg.NumWorkers <= 0 {
		cfg.NumWorkers = 5
	}

	return &StreamingService[T]{
		numWorkers:     cfg.NumWorkers,
		handlerTimeout: cfg.HandlerTimeout,
		consumer:       consumer,
		transformer:    transformer,
		processor:      processor,
		logger:         logger.With().Str("component", "StreamingService").Logger(),
	}, nil
}

// Start starts the consumer, then the workers. Workers exit when ctx is done
// or the consumer closes its message channel.
func (s *StreamingService[T]) Start(ctx context.Context) error {
	if err := s.consumer.Start(ctx); err != nil {
		return fmt.Errorf("failed to start message consumer: %w", err)
	}

	s.wg.Add(s.numWorkers)
	for i := 0; i < s.numWorkers; i++ {
		go s.worker(ctx, i)
	}
	s.logger.Info().Int("worker_count", s.numWorkers).Dur("handler_timeout", s.handlerTimeout).Msg("Streaming service started.")
	return nil
}

// Stop stops the consumer and waits for in-flight messages until ctx expires.
func (s *StreamingService[T]) Stop(ctx context.Context) error {
	if err := s.consumer.Stop(ctx); err != nil {
		s.logger.Warn().Err(err).Msg("Error during consumer stop, continuing shutdown.")
	}

	workerDone := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(workerDone)
	}()

	select {
	case <-workerDone:
	case <-ctx.Done():
		s.logger.Error().Err(ctx.Err()).Msg("Timeout waiting for processing workers to finish.")
		return ctx.Err()
	}

	stats := s.Stats()
	s.logger.Info().
		Uint64("acked", stats.Acked).
		Uint64("skipped", stats.Skipped).
		Uint64("nacked", stats.Nacked).
		Uint64("timed_out", stats.TimedOut).
		Uint64("panicked", stats.Panicked).
		Msg("Streaming service stopped.")
	return nil
}

// Stats returns the outcome counters.
func (s *StreamingService[T]) Stats() StreamingStats {
	return StreamingStats{
		Acked:    s.acked.Load(),
		Skipped:  s.skipped.Load(),
		Nacked:   s.nacked.Load(),
		TimedOut: s.timedOut.Load(),
		Panicked: s.panicked.Load(),
	}
}

func (s *StreamingService[T]) worker(ctx context.Context, workerID int) {
	defer s.wg.Done()
	logger := s.logger.With().Int("worker_id", workerID).Logger()
	for {
		select {
		case <-ctx.Done():
			logger.Debug().Msg("Worker stopping on context cancellation.")
			return
		case msg, ok := <-s.consumer.Messages():
			if !ok {
				logger.Debug().Msg("Consumer channel closed, worker exiting.")
				return
			}
			s.settle(msg, s.handle(ctx, msg, logger))
		}
	}
}

// settle acks or nacks msg and counts the outcome.
func (s *StreamingService[T]) settle(msg Message, outcome Outcome) {
	switch outcome {
	case OutcomeNacked:
		s.nacked.Add(1)
		msg.Nack()
	case OutcomeSkipped:
		s.skipped.Add(1)
		msg.Ack()
	default:
		s.acked.Add(1)
		msg.Ack()
	}
}

// handle runs transformer and processor for one message under the handler
// timeout. A panic in either is contained and nacks the message.
func (s *StreamingService[T]) handle(ctx context.Context, msg Message, logger zerolog.Logger) (outcome Outcome) {
	logger = logger.With().Str("msg_id", msg.ID).Logger()

	handlerCtx := ctx
	if s.handlerTimeout > 0 {
		var cancel context.CancelFunc
		handlerCtx, cancel = context.WithTimeout(ctx, s.handlerTimeout)
		defer cancel()
	}

	defer func() {
		if recovered := recover(); recovered != nil {
			s.panicked.Add(1)
			logger.Error().Interface("panic", recovered).Msg("Message handler panicked, Nacking.")
			outcome = OutcomeNacked
		}
	}()

	payload, skip, err := s.transformer(handlerCtx, &msg)
	if err != nil {
		logger.Error().Err(err).Msg("Failed to transform message, Nacking.")
		return OutcomeNacked
	}
	if skip {
		logger.Debug().Msg("Transformer skipped message, Acking.")
		return OutcomeSkipped
	}

	if err := s.processor(handlerCtx, msg, payload); err != nil {
		// The handler deadline expiring while the service is still running is
		// reported apart from shutdown and plain processing failures.
		if errors.Is(err, context.DeadlineExceeded) && ctx.Err() == nil && handlerCtx.Err() != nil {
			s.timedOut.Add(1)
			logger.Warn().Err(err).Dur("handler_timeout", s.handlerTimeout).Msg("Message handler timed out, Nacking.")
			return OutcomeNacked
		}
		logger.Error().Err(err).Msg("Processor failed to handle message, Nacking.")
		return OutcomeNacked
	}

	logger.Debug().Msg("Message processed, Acking.")
	return OutcomeAcked
}
