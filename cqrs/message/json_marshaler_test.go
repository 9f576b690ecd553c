package message

import (
	"testing"
	"time"

	wmmessage "github.com/ThreeDotsLabs/watermill/message"
)

type openAccount struct {
	ClientID string `json:"clientId"`
	Salary   string `json:"salary"`
}

func TestJSONMarshalerMarshal(t *testing.T) {
	m := NewJSONMarshaler("bank")

	payload := MustPayload(openAccount{ClientID: "c-1", Salary: "2500.00"})
	msg, err := m.Marshal(NewCommand("account.create", "corr-1", payload))
	if err != nil {
		t.Fatalf("Marshal failed: %v", err)
	}

	if len(msg.Payload) == 0 {
		t.Fatal("payload is empty")
	}

	if got := msg.Metadata.Get(MetadataContentType); got != "application/json" {
		t.Errorf("expected content type 'application/json', got %s", got)
	}

	if got := msg.Metadata.Get(MetadataServiceName); got != "bank" {
		t.Errorf("expected service name 'bank', got %s", got)
	}

	if got := msg.Metadata.Get(MetadataMessageKind); got != string(KindCommand) {
		t.Errorf("expected message kind 'command', got %s", got)
	}

	if got := msg.Metadata.Get("correlation_id"); got != "corr-1" {
		t.Errorf("expected correlation id in transport metadata, got %q", got)
	}

	if got := msg.Metadata.Get(MetadataSchemaVersion); got != SchemaVersion {
		t.Errorf("expected schema %s, got %s", SchemaVersion, got)
	}
}

func TestJSONMarshalerRoundTrip(t *testing.T) {
	m := NewJSONMarshaler("bank")
	at := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)

	env := NewEvent("account.created", "corr-2", Payload{"clientId": "c-2", "saldo": "0.00"})
	env.OccurredAt = at

	msg, err := m.Marshal(env)
	if err != nil {
		t.Fatalf("Marshal failed: %v", err)
	}

	got, err := m.Unmarshal(msg)
	if err != nil {
		t.Fatalf("Unmarshal failed: %v", err)
	}

	if got.Type != "account.created" || got.CorrelationID != "corr-2" || got.Kind != KindEvent {
		t.Fatalf("unexpected envelope: %+v", got)
	}

	if !got.OccurredAt.Equal(at) {
		t.Errorf("occurred at: want %s got %s", at, got.OccurredAt)
	}

	var decoded struct {
		ClientID string `json:"clientId"`
	}
	if err := got.Payload.Decode(&decoded); err != nil || decoded.ClientID != "c-2" {
		t.Fatalf("decode: %v %+v", err, decoded)
	}
}

func TestJSONMarshalerRejectsMalformed(t *testing.T) {
	m := NewJSONMarshaler("bank")

	if _, err := m.Unmarshal(nil); err == nil {
		t.Error("expected error for nil message")
	}

	noType := wmmessage.NewMessage("1", []byte(`{}`))
	if _, err := m.Unmarshal(noType); err == nil {
		t.Error("expected error for missing type")
	}

	broken := wmmessage.NewMessage("2", []byte(`{not json`))
	broken.Metadata.Set(MetadataMessageType, "account.created")
	if _, err := m.Unmarshal(broken); err == nil {
		t.Error("expected error for malformed body")
	}

	future := wmmessage.NewMessage("3", []byte(`{}`))
	future.Metadata.Set(MetadataMessageType, "account.created")
	future.Metadata.Set(MetadataSchemaVersion, "v9")
	if _, err := m.Unmarshal(future); err == nil {
		t.Error("expected error for unknown schema version")
	}

	if _, err := m.Marshal(Envelope{}); err == nil {
		t.Error("expected error for empty routing key")
	}
}
