package message

import (
	"errors"
	"fmt"
	"time"

	wmmessage "github.com/ThreeDotsLabs/watermill/message"
	"github.com/google/uuid"
	"github.com/segmentio/encoding/json"
)

// SchemaVersion is stamped on every message this module produces.
const SchemaVersion = "v1"

var (
	errNilMessage      = errors.New("cqrs/message: message is nil")
	errEmptyPayload    = errors.New("cqrs/message: message payload is empty")
	errMissingType     = errors.New("cqrs/message: message type metadata is missing")
	errUnknownSchema   = errors.New("cqrs/message: unsupported schema version")
	errEmptyRoutingKey = errors.New("cqrs/message: envelope type is empty")
)

// Marshaler converts envelopes to and from Watermill messages.
type Marshaler interface {
	Marshal(env Envelope) (*wmmessage.Message, error)
	Unmarshal(msg *wmmessage.Message) (Envelope, error)
}

// JSONMarshaler encodes the payload as a JSON object body and keeps the
// routing key, correlation id and kind in metadata.
type JSONMarshaler struct {
	serviceName string
}

// NewJSONMarshaler builds a marshaler stamping serviceName on produced messages.
func NewJSONMarshaler(serviceName string) *JSONMarshaler {
	return &JSONMarshaler{serviceName: serviceName}
}

// Marshal encodes JSON payload and enriches metadata.
func (m *JSONMarshaler) Marshal(env Envelope) (*wmmessage.Message, error) {
	if env.Type == "" {
		return nil, errEmptyRoutingKey
	}

	payload := env.Payload
	if payload == nil {
		payload = Payload{}
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal json: %w", err)
	}

	wmMsg := wmmessage.NewMessage(uuid.NewString(), body)
	ensureMetadata(wmMsg)

	for k, v := range env.Metadata {
		wmMsg.Metadata.Set(k, v)
	}

	occurredAt := env.OccurredAt
	if occurredAt.IsZero() {
		occurredAt = time.Now()
	}

	wmMsg.Metadata.Set(MetadataMessageType, env.Type)
	wmMsg.Metadata.Set(MetadataSchemaVersion, SchemaVersion)
	wmMsg.Metadata.Set(MetadataContentType, "application/json")
	wmMsg.Metadata.Set(MetadataOccurredAt, occurredAt.UTC().Format(time.RFC3339Nano))

	if env.CorrelationID != "" {
		wmMsg.Metadata.Set(MetadataCorrelationID, env.CorrelationID)
	}

	if env.Kind != "" {
		wmMsg.Metadata.Set(MetadataMessageKind, string(env.Kind))
	}

	if m != nil && m.serviceName != "" && wmMsg.Metadata.Get(MetadataServiceName) == "" {
		wmMsg.Metadata.Set(MetadataServiceName, m.serviceName)
	}

	return wmMsg, nil
}

// Unmarshal decodes a Watermill message into an envelope.
func (m *JSONMarshaler) Unmarshal(msg *wmmessage.Message) (Envelope, error) {
	if msg == nil {
		return Envelope{}, errNilMessage
	}

	if len(msg.Payload) == 0 {
		return Envelope{}, errEmptyPayload
	}

	routingKey := msg.Metadata.Get(MetadataMessageType)
	if routingKey == "" {
		return Envelope{}, errMissingType
	}

	if version := msg.Metadata.Get(MetadataSchemaVersion); version != "" && version != SchemaVersion {
		return Envelope{}, fmt.Errorf("%w: %s", errUnknownSchema, version)
	}

	payload := Payload{}
	if err := json.Unmarshal(msg.Payload, &payload); err != nil {
		return Envelope{}, fmt.Errorf("unmarshal json: %w", err)
	}

	env := Envelope{
		Type:          routingKey,
		CorrelationID: CorrelationID(msg),
		Payload:       payload,
		Kind:          MessageKind(msg.Metadata.Get(MetadataMessageKind)),
		Metadata:      CopyMetadata(nil, msg.Metadata),
	}

	if raw := msg.Metadata.Get(MetadataOccurredAt); raw != "" {
		if ts, err := time.Parse(time.RFC3339Nano, raw); err == nil {
			env.OccurredAt = ts
		}
	}

	return env, nil
}
