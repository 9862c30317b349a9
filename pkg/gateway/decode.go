package gateway

import (
	"encoding/json"
	"fmt"

	"github.com/illmade-knight/go-gatewaycache/pkg/events"
)

// opDispatch is the gateway opcode carrying an event.
const opDispatch = 0

// frame is the wire shape of a gateway message.
type frame struct {
	Op       int             `json:"op"`
	Type     events.Kind     `json:"t"`
	Sequence int64           `json:"s"`
	Data     json.RawMessage `json:"d"`
}

// DecodeEnvelope parses a dispatch frame such as
//
//	{"op":0,"t":"MESSAGE_DELETE","s":12,"d":{"id":"42","channel_id":"7"}}
//
// into an Envelope with a typed payload. Kinds without a payload type decode
// to an Envelope with a nil Payload.
func DecodeEnvelope(data []byte) (events.Envelope, error) {
	var f frame
	if err := json.Unmarshal(data, &f); err != nil {
		return events.Envelope{}, fmt.Errorf("%w: %w", ErrMalformedEvent, err)
	}
	if f.Op != opDispatch {
		return events.Envelope{}, fmt.Errorf("%w: opcode %d is not a dispatch", ErrMalformedEvent, f.Op)
	}
	if f.Type == "" {
		return events.Envelope{}, fmt.Errorf("%w: missing event type", ErrMalformedEvent)
	}

	env := events.Envelope{Kind: f.Type, Sequence: f.Sequence}

	var target any
	switch f.Type {
	case events.KindMessageCreate:
		p := &events.MessageCreate{}
		env.Payload, target = p, &p.Message
	case events.KindMessageUpdate:
		p := &events.MessageUpdate{}
		env.Payload, target = p, &p.Message
	case events.KindMessageDelete:
		p := &events.MessageDelete{}
		env.Payload, target = p, p
	case events.KindMessageDeleteBulk:
		p := &events.MessageDeleteBulk{}
		env.Payload, target = p, p
	case events.KindChannelCreate:
		p := &events.ChannelCreate{}
		env.Payload, target = p, &p.Channel
	case events.KindChannelUpdate:
		p := &events.ChannelUpdate{}
		env.Payload, target = p, &p.Channel
	case events.KindChannelDelete:
		p := &events.ChannelDelete{}
		env.Payload, target = p, &p.Channel
	case events.KindGuildCreate:
		p := &events.GuildCreate{}
		env.Payload, target = p, &p.Guild
	case events.KindGuildUpdate:
		p := &events.GuildUpdate{}
		env.Payload, target = p, &p.Guild
	case events.KindGuildDelete:
		p := &events.GuildDelete{}
		env.Payload, target = p, p
	default:
		return env, nil
	}

	if len(f.Data) == 0 || string(f.Data) == "null" {
		return events.Envelope{}, fmt.Errorf("%w: %s without data", ErrMalformedEvent, f.Type)
	}
	if err := json.Unmarshal(f.Data, target); err != nil {
		return events.Envelope{}, fmt.Errorf("%w: decode %s: %w", ErrMalformedEvent, f.Type, err)
	}
	return env, nil
}
