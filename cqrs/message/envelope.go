package message

import (
	"errors"
	"fmt"
	"time"

	"github.com/segmentio/encoding/json"
)

// MessageKind distinguishes commands from events.
type MessageKind string

const (
	KindCommand MessageKind = "command"
	KindEvent   MessageKind = "event"
)

var errPayloadTarget = errors.New("cqrs/message: decode target is nil")

// Payload is the JSON object body of a command or event.
type Payload map[string]any

// NewPayload converts a struct with json tags into a Payload.
func NewPayload(v any) (Payload, error) {
	if v == nil {
		return Payload{}, nil
	}

	if p, ok := v.(Payload); ok {
		return p, nil
	}

	raw, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encode payload: %w", err)
	}

	payload := Payload{}
	if err := json.Unmarshal(raw, &payload); err != nil {
		return nil, fmt.Errorf("encode payload: %w", err)
	}

	return payload, nil
}

// MustPayload is NewPayload for values that are known to encode.
func MustPayload(v any) Payload {
	p, err := NewPayload(v)
	if err != nil {
		panic(err)
	}

	return p
}

// Decode fills v (a pointer to a struct with json tags) from the payload.
func (p Payload) Decode(v any) error {
	if v == nil {
		return errPayloadTarget
	}

	raw, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("decode payload: %w", err)
	}

	if err := json.Unmarshal(raw, v); err != nil {
		return fmt.Errorf("decode payload: %w", err)
	}

	return nil
}

// String returns the string field key, or "" when absent or not a string.
func (p Payload) String(key string) string {
	s, _ := p[key].(string)

	return s
}

// Envelope is a command or event as it travels on the bus.
// Type is the routing key, e.g. "account.create" or "account.create-failed".
type Envelope struct {
	OccurredAt    time.Time
	Payload       Payload
	Metadata      map[string]string
	Type          string
	CorrelationID string
	Kind          MessageKind
}

// NewCommand builds a command envelope.
func NewCommand(routingKey, correlationID string, payload Payload) Envelope {
	return Envelope{Type: routingKey, CorrelationID: correlationID, Payload: payload, Kind: KindCommand}
}

// NewEvent builds an event envelope.
func NewEvent(routingKey, correlationID string, payload Payload) Envelope {
	return Envelope{Type: routingKey, CorrelationID: correlationID, Payload: payload, Kind: KindEvent}
}
