package message

import "testing"

func TestNamerTopic(t *testing.T) {
	namer := NewNamer("Bank", "Coordinator")

	if topic := namer.Topic("account.create"); topic != "bank.account.create" {
		t.Fatalf("unexpected topic: %s", topic)
	}

	if key := namer.RoutingKey("bank.account.create"); key != "account.create" {
		t.Fatalf("unexpected routing key: %s", key)
	}

	if namer.ServiceName() != "coordinator" {
		t.Fatalf("unexpected service: %s", namer.ServiceName())
	}
}

func TestNamerWithoutPrefix(t *testing.T) {
	namer := NewNamer("", "bank")

	if topic := namer.Topic("client.approve"); topic != "client.approve" {
		t.Fatalf("unexpected topic: %s", topic)
	}
}

func TestFailureKeys(t *testing.T) {
	if FailureKey("auth.create-user") != "auth.create-user-failed" {
		t.Fatal("unexpected failure key")
	}

	if !IsFailure("manager.notify-failed") || IsFailure("manager.notified") {
		t.Fatal("IsFailure misclassified")
	}

	if Domain("account.transaction") != "account" {
		t.Fatal("unexpected domain")
	}
}
