package gateway

import (
	"context"
	"errors"

	"github.com/illmade-knight/go-gatewaycache/pkg/cache"
	"github.com/illmade-knight/go-gatewaycache/pkg/events"
	"github.com/illmade-knight/go-gatewaycache/pkg/messagepipeline"
	"github.com/rs/zerolog"
)

// NewFrameTransformer decodes raw frames into envelopes. Frames that can never
// decode are logged and skipped so the source does not redeliver them.
func NewFrameTransformer(logger zerolog.Logger) messagepipeline.MessageTransformer[events.Envelope] {
	logger = logger.With().Str("component", "FrameTransformer").Logger()
	return func(_ context.Context, msg *messagepipeline.Message) (*events.Envelope, bool, error) {
		env, err := DecodeEnvelope(msg.Payload)
		if err != nil {
			logger.Warn().Err(err).Str("msg_id", msg.ID).Msg("Dropping malformed gateway frame.")
			return nil, true, nil
		}
		return &env, false, nil
	}
}

// Processor returns a StreamProcessor applying envelopes to the cache.
// Only failures a redelivery can cure are returned, which makes the pipeline
// Nack the frame. Everything else is logged and acknowledged.
func (h *Handler) Processor() messagepipeline.StreamProcessor[events.Envelope] {
	return func(ctx context.Context, original messagepipeline.Message, env *events.Envelope) error {
		err := h.Handle(ctx, *env)
		if err == nil {
			return nil
		}
		if Retryable(err) {
			return err
		}
		h.logger.Warn().Err(err).Str("msg_id", original.ID).Str("event", string(env.Kind)).
			Int64("seq", env.Sequence).Msg("Gateway event failed permanently, acknowledging.")
		return nil
	}
}

// Retryable reports whether err came from an unreachable cache or an
// interrupted handler, so that handling the same event again may succeed.
func Retryable(err error) bool {
	return errors.Is(err, cache.ErrCacheUnavailable) ||
		errors.Is(err, context.Canceled) ||
		errors.Is(err, context.DeadlineExceeded)
}
