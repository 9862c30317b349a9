package messagepipeline

import (
	"context"
)

// ====================================================================================
// This file defines the contracts for consuming raw frames, decoding them and
// handing the decoded events to the cache synchronization layer.
// ====================================================================================

// --- Stage 1: Consumer ---

// MessageConsumer defines the interface for a frame source (e.g., Pub/Sub, a replay file).
type MessageConsumer interface {
	// Messages returns a read-only channel from which pipeline workers will receive messages.
	Messages() <-chan Message
	// Start begins the consumption process in the background.
	Start(ctx context.Context) error
	// Stop ceases consumption and waits for background tasks to finish.
	Stop(ctx context.Context) error
	// Done returns a channel that is closed when the consumer has completely shut down.
	Done() <-chan struct{}
}

// --- Stage 2: Transformer ---

// MessageTransformer decodes a raw Message into a payload of type T.
//
// Returning skip=true acknowledges the message without processing it, which is
// how input that can never succeed is dropped. A returned error Nacks the message.
type MessageTransformer[T any] func(ctx context.Context, msg *Message) (payload *T, skip bool, err error)

// --- Stage 3: Processor ---

// StreamProcessor handles one transformed payload. Returning an error Nacks the
// original message so the source can redeliver it.
type StreamProcessor[T any] func(ctx context.Context, original Message, payload *T) error
