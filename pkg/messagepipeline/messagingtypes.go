package messagepipeline

import (
	"time"
)

// Message is the internal representation of one raw gateway frame flowing
// through the pipeline, together with its acknowledgment handles.
type Message struct {
	// MessageData contains the frame bytes and source metadata.
	MessageData

	// Attributes holds metadata from the message broker (e.g., Pub/Sub attributes).
	Attributes map[string]string

	// Ack signals that the frame was handled and must not be redelivered.
	Ack func()

	// Nack signals that handling failed and the source should redeliver the frame.
	Nack func()
}

// MessageData holds the essential payload of a message.
type MessageData struct {
	// ID is the unique identifier for the message from the source.
	ID string `json:"id"`

	// Payload is the raw frame, normally a JSON gateway dispatch.
	Payload []byte `json:"payload"`

	// PublishTime is when the source received the frame.
	PublishTime time.Time `json:"publishTime"`
}
