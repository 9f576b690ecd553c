package kafka

import (
	"testing"
	"time"

	"github.com/IBM/sarama"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shortlink-org/bank-saga/config"
)

func TestNewKafkaConfigDefaults(t *testing.T) {
	cfg := config.NewWithValues(map[string]any{"SERVICE_NAME": "bank-worker"})

	kcfg, err := newKafkaConfig(cfg)
	require.NoError(t, err)

	assert.Equal(t, []string{"localhost:9092"}, kcfg.brokers)
	assert.Equal(t, "bank-worker", kcfg.consumerGroup)
	assert.Equal(t, "bank-worker", kcfg.clientID)
	assert.True(t, kcfg.enableOTEL)
	assert.Equal(t, sarama.OffsetOldest, kcfg.initialOffset)
	assert.Equal(t, sarama.RangeBalanceStrategyName, kcfg.rebalanceStrategy.Name())
	assert.Equal(t, 100*time.Millisecond, kcfg.nackSleep)
	assert.Equal(t, time.Second, kcfg.reconnectSleep)
	assert.Equal(t, sarama.MaxVersion, kcfg.version)
	assert.Equal(t, 10, kcfg.producerRetryMax)
	assert.Equal(t, sarama.CompressionSnappy, kcfg.compression)
	assert.True(t, kcfg.idempotentProducer)
}

func TestNewKafkaConfigOverrides(t *testing.T) {
	cfg := config.NewWithValues(map[string]any{
		"SERVICE_NAME":                        "ignored-by-override",
		"MQ_KAFKA_BROKERS":                    "broker1:9092, broker2:9092",
		"MQ_KAFKA_CONSUMER_GROUP":             "bank",
		"MQ_KAFKA_CLIENT_ID":                  "bank-client",
		"MQ_KAFKA_CONSUMER_INITIAL_OFFSET":    "latest",
		"MQ_KAFKA_REBALANCE_STRATEGY":         "roundrobin",
		"MQ_KAFKA_SARAMA_VERSION":             "2.5.0",
		"MQ_KAFKA_PRODUCER_COMPRESSION":       "gzip",
		"MQ_KAFKA_PRODUCER_RETRY_MAX":         42,
		"MQ_KAFKA_PRODUCER_IDEMPOTENT":        false,
		"MQ_KAFKA_OTEL_ENABLED":               false,
		"MQ_KAFKA_SUBSCRIBER_NACK_SLEEP":      "250ms",
		"MQ_KAFKA_SUBSCRIBER_RECONNECT_SLEEP": "2s",
	})

	kcfg, err := newKafkaConfig(cfg)
	require.NoError(t, err)

	assert.Equal(t, []string{"broker1:9092", "broker2:9092"}, kcfg.brokers)
	assert.Equal(t, "bank", kcfg.consumerGroup)
	assert.Equal(t, "bank-client", kcfg.clientID)
	assert.False(t, kcfg.enableOTEL)
	assert.Equal(t, sarama.OffsetNewest, kcfg.initialOffset)
	assert.Equal(t, sarama.RoundRobinBalanceStrategyName, kcfg.rebalanceStrategy.Name())

	expectedVersion, _ := sarama.ParseKafkaVersion("2.5.0")
	assert.Equal(t, expectedVersion, kcfg.version)
	assert.Equal(t, sarama.CompressionGZIP, kcfg.compression)
	assert.Equal(t, 42, kcfg.producerRetryMax)
	assert.False(t, kcfg.idempotentProducer)
	assert.Equal(t, 250*time.Millisecond, kcfg.nackSleep)
	assert.Equal(t, 2*time.Second, kcfg.reconnectSleep)
}

func TestNewKafkaConfigRejectsUnknownValues(t *testing.T) {
	for key, value := range map[string]string{
		"MQ_KAFKA_CONSUMER_INITIAL_OFFSET": "yesterday",
		"MQ_KAFKA_REBALANCE_STRATEGY":      "random",
		"MQ_KAFKA_SARAMA_VERSION":          "not-a-version",
		"MQ_KAFKA_PRODUCER_COMPRESSION":    "brotli",
	} {
		cfg := config.NewWithValues(map[string]any{key: value})

		_, err := newKafkaConfig(cfg)
		require.Error(t, err, key)
	}
}

func TestSubscriberConfigUsesGroup(t *testing.T) {
	settings, err := loadBackendSettings(config.NewWithValues(nil))
	require.NoError(t, err)

	sub := settings.subscriberConfig("bank.projector")
	assert.Equal(t, "bank.projector", sub.ConsumerGroup)
	assert.Equal(t, settings.brokers, sub.Brokers)
}
