package dlq

import (
	"encoding/base64"
	"errors"
	"time"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/google/uuid"
	"github.com/segmentio/encoding/json"
)

var errMissingOriginal = errors.New("dlq: event is missing the original message")

// Event describes the payload stored inside dead-letter messages.
type Event struct {
	FailedAt      time.Time        `json:"failed_at"`
	OriginalMsg   *message.Message `json:"-"`
	Reason        string           `json:"reason"`
	SourceTopic   string           `json:"source_topic,omitempty"`
	SourceHandler string           `json:"source_handler,omitempty"`
	ServiceName   string           `json:"service_name,omitempty"`
}

// BuildMessage serializes the Event and keeps the original metadata under an "original_" prefix.
func BuildMessage(event Event) (*message.Message, error) {
	if event.OriginalMsg == nil {
		return nil, errMissingOriginal
	}

	if event.FailedAt.IsZero() {
		event.FailedAt = time.Now().UTC()
	}

	payload, err := json.Marshal(event)
	if err != nil {
		return nil, err
	}

	msg := message.NewMessage(uuid.New().String(), payload)

	for k, v := range event.OriginalMsg.Metadata {
		msg.Metadata.Set("original_"+k, v)
	}

	// the correlation id stays queryable without the prefix
	if corr := event.OriginalMsg.Metadata.Get("correlation_id"); corr != "" {
		msg.Metadata.Set("correlation_id", corr)
	}

	msg.Metadata.Set("poison_reason", event.Reason)
	msg.Metadata.Set("service_name", event.ServiceName)
	msg.Metadata.Set("dlq_version", "1")

	return msg, nil
}

// MarshalJSON keeps the original payload inline when it is JSON, base64 otherwise.
func (event Event) MarshalJSON() ([]byte, error) {
	if event.OriginalMsg == nil {
		return nil, errMissingOriginal
	}

	original := originalMessageJSON{
		UUID:     event.OriginalMsg.UUID,
		Metadata: make(map[string]string, len(event.OriginalMsg.Metadata)),
	}

	for k, v := range event.OriginalMsg.Metadata {
		original.Metadata[k] = v
	}

	switch {
	case len(event.OriginalMsg.Payload) == 0:
		original.Payload = json.RawMessage("null")
	case json.Valid(event.OriginalMsg.Payload):
		original.Payload = json.RawMessage(event.OriginalMsg.Payload)
	default:
		original.PayloadBase64 = base64.StdEncoding.EncodeToString(event.OriginalMsg.Payload)
	}

	type alias struct {
		FailedAt      time.Time           `json:"failed_at"`
		Reason        string              `json:"reason"`
		SourceTopic   string              `json:"source_topic,omitempty"`
		SourceHandler string              `json:"source_handler,omitempty"`
		ServiceName   string              `json:"service_name,omitempty"`
		Original      originalMessageJSON `json:"original_message"`
	}

	return json.Marshal(alias{
		FailedAt:      event.FailedAt,
		Reason:        event.Reason,
		SourceTopic:   event.SourceTopic,
		SourceHandler: event.SourceHandler,
		ServiceName:   event.ServiceName,
		Original:      original,
	})
}

type originalMessageJSON struct {
	Metadata      map[string]string `json:"metadata"`
	UUID          string            `json:"uuid"`
	Payload       json.RawMessage   `json:"payload,omitempty"`
	PayloadBase64 string            `json:"payload_base64,omitempty"`
}
