package messagepipeline

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"io"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// maxFrameSize bounds a single replayed line. Guild payloads with large channel
// lists comfortably fit.
const maxFrameSize = 4 * 1024 * 1024

// ReaderConsumer replays newline-delimited gateway frames from an io.Reader,
// typically a capture file. Blank lines are skipped. A reader cannot redeliver,
// so Nack only counts and logs the failure.
type ReaderConsumer struct {
	source     string
	reader     io.Reader
	logger     zerolog.Logger
	outputChan chan Message
	doneChan   chan struct{}
	startOnce  sync.Once
	stopOnce   sync.Once
	mu         sync.Mutex
	cancel     context.CancelFunc
	acked      atomic.Int64
	nacked     atomic.Int64
}

// NewReaderConsumer creates a consumer over r. source names the input in logs
// and message attributes.
func NewReaderConsumer(source string, r io.Reader, logger zerolog.Logger) (*ReaderConsumer, error) {
	if r == nil {
		return nil, fmt.Errorf("reader cannot be nil")
	}
	return &ReaderConsumer{
		source:     source,
		reader:     r,
		logger:     logger.With().Str("component", "ReaderConsumer").Str("source", source).Logger(),
		outputChan: make(chan Message),
		doneChan:   make(chan struct{}),
	}, nil
}

// Messages returns the channel frames are delivered on. It is closed at end of input or after Stop.
func (c *ReaderConsumer) Messages() <-chan Message { return c.outputChan }

// Done is closed once the reading goroutine has exited.
func (c *ReaderConsumer) Done() <-chan struct{} { return c.doneChan }

// Start reads the input in the background until it is exhausted or ctx is cancelled.
func (c *ReaderConsumer) Start(ctx context.Context) error {
	c.startOnce.Do(func() {
		readCtx, cancel := context.WithCancel(ctx)
		c.mu.Lock()
		c.cancel = cancel
		c.mu.Unlock()
		go c.read(readCtx)
	})
	return nil
}

func (c *ReaderConsumer) read(ctx context.Context) {
	defer close(c.doneChan)
	defer close(c.outputChan)

	scanner := bufio.NewScanner(c.reader)
	scanner.Buffer(make([]byte, 0, 64*1024), maxFrameSize)

	line := 0
	for scanner.Scan() {
		line++
		data := bytes.TrimSpace(scanner.Bytes())
		if len(data) == 0 {
			continue
		}
		payload := make([]byte, len(data))
		copy(payload, data)

		id, lineNo := uuid.NewString(), line
		msg := Message{
			MessageData: MessageData{
				ID:          id,
				Payload:     payload,
				PublishTime: time.Now().UTC(),
			},
			Attributes: map[string]string{"source": c.source, "line": strconv.Itoa(lineNo)},
			Ack:        func() { c.acked.Add(1) },
			Nack: func() {
				c.nacked.Add(1)
				c.logger.Warn().Str("msg_id", id).Int("line", lineNo).Msg("Replayed frame failed and cannot be redelivered.")
			},
		}

		select {
		case c.outputChan <- msg:
		case <-ctx.Done():
			c.logger.Info().Int("line", line).Msg("Replay interrupted.")
			return
		}
	}
	if err := scanner.Err(); err != nil {
		c.logger.Error().Err(err).Int("line", line).Msg("Failed to read replay input.")
		return
	}
	c.logger.Info().Int("lines", line).Msg("Replay input exhausted.")
}

// Stop interrupts reading and waits for the goroutine to exit or for ctx to expire.
func (c *ReaderConsumer) Stop(ctx context.Context) error {
	var err error
	c.stopOnce.Do(func() {
		// Claim the start so a later Start cannot reopen the input.
		c.startOnce.Do(func() {})
		c.mu.Lock()
		cancel := c.cancel
		c.mu.Unlock()
		if cancel == nil {
			close(c.outputChan)
			close(c.doneChan)
			return
		}
		cancel()
		select {
		case <-c.doneChan:
		case <-ctx.Done():
			err = ctx.Err()
		}
	})
	return err
}

// Counts reports how many delivered frames were acknowledged and rejected.
func (c *ReaderConsumer) Counts() (acked, nacked int64) {
	return c.acked.Load(), c.nacked.Load()
}
