//go:build integration

package kafka

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/stretchr/testify/require"
	tc_kafka "github.com/testcontainers/testcontainers-go/modules/kafka"

	"github.com/shortlink-org/bank-saga/config"
	"github.com/shortlink-org/bank-saga/logger"
)

func TestBackendGroupsShareATopic(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Minute)
	defer cancel()

	container, err := tc_kafka.Run(ctx, "confluentinc/confluent-local:7.5.0")
	if err != nil {
		t.Skipf("kafka container not available: %v", err)
	}
	t.Cleanup(func() { _ = container.Terminate(context.Background()) })

	brokers, err := container.Brokers(ctx)
	require.NoError(t, err)

	backend, err := New(ctx, logger.NewNop(), config.NewWithValues(map[string]any{
		"MQ_KAFKA_BROKERS":        strings.Join(brokers, ","),
		"MQ_KAFKA_SARAMA_VERSION": "default",
	}))
	require.NoError(t, err)
	t.Cleanup(func() { _ = backend.Close() })

	topic := fmt.Sprintf("bank.transaction.recorded.%d", time.Now().UnixNano())

	journal, err := backend.SubscriberForGroup("journal")
	require.NoError(t, err)
	projection, err := backend.SubscriberForGroup("projection")
	require.NoError(t, err)

	fromJournal, err := journal.Subscribe(ctx, topic)
	require.NoError(t, err)
	fromProjection, err := projection.Subscribe(ctx, topic)
	require.NoError(t, err)

	msg := message.NewMessage(watermill.NewUUID(), []byte(`{"id":"tx-1"}`))
	require.NoError(t, backend.Publisher().Publish(topic, msg))

	for name, ch := range map[string]<-chan *message.Message{"journal": fromJournal, "projection": fromProjection} {
		select {
		case got := <-ch:
			require.Equal(t, msg.UUID, got.UUID, name)
			got.Ack()
		case <-time.After(time.Minute):
			t.Fatalf("%s group did not receive the message", name)
		}
	}
}
