package dlq

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/segmentio/encoding/json"
	"github.com/stretchr/testify/require"
)

type dlqPayload struct {
	Original struct {
		Metadata      map[string]string `json:"metadata"`
		Payload       json.RawMessage   `json:"payload"`
		PayloadBase64 string            `json:"payload_base64"`
	} `json:"original_message"`
	Reason      string `json:"reason"`
	SourceTopic string `json:"source_topic"`
}

func TestBuildMessagePreservesMetadata(t *testing.T) {
	original := message.NewMessage("original-123", []byte(`{"clientId":"c-1"}`))
	original.Metadata.Set("bank.message_type", "account.created")
	original.Metadata.Set("correlation_id", "corr-1")

	msg, err := BuildMessage(Event{
		FailedAt:    time.Unix(1, 0).UTC(),
		Reason:      "boom",
		SourceTopic: "bank.account.created",
		OriginalMsg: original,
		ServiceName: "projector",
	})
	require.NoError(t, err)

	require.Equal(t, "boom", msg.Metadata.Get("poison_reason"))
	require.Equal(t, "projector", msg.Metadata.Get("service_name"))
	require.Equal(t, "1", msg.Metadata.Get("dlq_version"))
	require.Equal(t, "account.created", msg.Metadata.Get("original_bank.message_type"))
	require.Equal(t, "corr-1", msg.Metadata.Get("correlation_id"))

	var payload dlqPayload
	require.NoError(t, json.Unmarshal(msg.Payload, &payload))
	require.JSONEq(t, `{"clientId":"c-1"}`, string(payload.Original.Payload))
	require.Equal(t, "bank.account.created", payload.SourceTopic)
	require.Equal(t, map[string]string(original.Metadata), payload.Original.Metadata)
}

func TestBuildMessageEncodesNonJSONPayload(t *testing.T) {
	original := message.NewMessage("original-456", []byte("{not json"))

	msg, err := BuildMessage(Event{Reason: "malformed", OriginalMsg: original})
	require.NoError(t, err)

	var payload dlqPayload
	require.NoError(t, json.Unmarshal(msg.Payload, &payload))
	require.NotEmpty(t, payload.Original.PayloadBase64)
}

func TestBuildMessageRequiresOriginal(t *testing.T) {
	_, err := BuildMessage(Event{Reason: "boom"})
	require.ErrorIs(t, err, errMissingOriginal)
}

func TestPermanent(t *testing.T) {
	cause := errors.New("malformed body")
	err := fmt.Errorf("project: %w", Permanent(cause))

	require.True(t, IsPermanent(err))
	require.ErrorIs(t, err, cause)
	require.False(t, IsPermanent(cause))
	require.NoError(t, Permanent(nil))
}
