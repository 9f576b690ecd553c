package kafka

import (
	"fmt"
	"strings"
	"time"

	"github.com/IBM/sarama"
	"github.com/ThreeDotsLabs/watermill-kafka/v3/pkg/kafka"

	"github.com/shortlink-org/bank-saga/config"
)

type backendSettings struct {
	brokers          []string
	consumerGroup    string
	enableOTEL       bool
	nackSleep        time.Duration
	reconnectSleep   time.Duration
	publisherSarama  *sarama.Config
	subscriberSarama *sarama.Config
}

type kafkaConfig struct {
	brokers            []string
	consumerGroup      string
	clientID           string
	enableOTEL         bool
	initialOffset      int64
	rebalanceStrategy  sarama.BalanceStrategy
	nackSleep          time.Duration
	reconnectSleep     time.Duration
	version            sarama.KafkaVersion
	producerRetryMax   int
	compression        sarama.CompressionCodec
	idempotentProducer bool
}

func (s *backendSettings) publisherConfig() kafka.PublisherConfig {
	return kafka.PublisherConfig{
		Brokers:               s.brokers,
		Marshaler:             kafka.DefaultMarshaler{},
		OverwriteSaramaConfig: s.publisherSarama,
		OTELEnabled:           s.enableOTEL,
	}
}

func (s *backendSettings) subscriberConfig(group string) kafka.SubscriberConfig {
	return kafka.SubscriberConfig{
		Brokers:               s.brokers,
		Unmarshaler:           kafka.DefaultMarshaler{},
		ConsumerGroup:         group,
		OverwriteSaramaConfig: s.subscriberSarama,
		NackResendSleep:       s.nackSleep,
		ReconnectRetrySleep:   s.reconnectSleep,
		OTELEnabled:           s.enableOTEL,
	}
}

func loadBackendSettings(cfg *config.Config) (*backendSettings, error) {
	kcfg, err := newKafkaConfig(cfg)
	if err != nil {
		return nil, err
	}

	pubSarama := kafka.DefaultSaramaSyncPublisherConfig()
	pubSarama.ClientID = kcfg.clientID
	pubSarama.Version = kcfg.version
	pubSarama.Producer.Retry.Max = kcfg.producerRetryMax
	pubSarama.Producer.RequiredAcks = sarama.WaitForAll
	pubSarama.Producer.Idempotent = kcfg.idempotentProducer
	pubSarama.Producer.Compression = kcfg.compression

	if kcfg.idempotentProducer {
		pubSarama.Net.MaxOpenRequests = 1
	}

	subSarama := kafka.DefaultSaramaSubscriberConfig()
	subSarama.ClientID = kcfg.clientID
	subSarama.Version = kcfg.version
	subSarama.Consumer.Offsets.Initial = kcfg.initialOffset
	subSarama.Consumer.Group.Rebalance.GroupStrategies = []sarama.BalanceStrategy{kcfg.rebalanceStrategy}

	return &backendSettings{
		brokers:          kcfg.brokers,
		consumerGroup:    kcfg.consumerGroup,
		enableOTEL:       kcfg.enableOTEL,
		nackSleep:        kcfg.nackSleep,
		reconnectSleep:   kcfg.reconnectSleep,
		publisherSarama:  pubSarama,
		subscriberSarama: subSarama,
	}, nil
}

func newKafkaConfig(cfg *config.Config) (*kafkaConfig, error) {
	cfg.SetDefault("MQ_KAFKA_BROKERS", "localhost:9092")
	cfg.SetDefault("MQ_KAFKA_CONSUMER_INITIAL_OFFSET", "oldest")
	cfg.SetDefault("MQ_KAFKA_REBALANCE_STRATEGY", "range")
	cfg.SetDefault("MQ_KAFKA_SARAMA_VERSION", "max")
	cfg.SetDefault("MQ_KAFKA_PRODUCER_COMPRESSION", "snappy")
	cfg.SetDefault("MQ_KAFKA_PRODUCER_RETRY_MAX", 10)
	cfg.SetDefault("MQ_KAFKA_PRODUCER_IDEMPOTENT", true)
	cfg.SetDefault("MQ_KAFKA_OTEL_ENABLED", true)
	cfg.SetDefault("MQ_KAFKA_SUBSCRIBER_NACK_SLEEP", "100ms")
	cfg.SetDefault("MQ_KAFKA_SUBSCRIBER_RECONNECT_SLEEP", "1s")

	brokers := cfg.GetStringSlice("MQ_KAFKA_BROKERS")
	if len(brokers) == 0 {
		return nil, fmt.Errorf("MQ_KAFKA_BROKERS must not be empty")
	}

	consumerGroup := firstNonEmpty(cfg.GetString("MQ_KAFKA_CONSUMER_GROUP"), cfg.GetString("SERVICE_NAME"), "bank")
	clientID := firstNonEmpty(cfg.GetString("MQ_KAFKA_CLIENT_ID"), consumerGroup)

	initialOffset, err := parseInitialOffset(cfg.GetString("MQ_KAFKA_CONSUMER_INITIAL_OFFSET"))
	if err != nil {
		return nil, err
	}

	strategy, err := parseRebalanceStrategy(cfg.GetString("MQ_KAFKA_REBALANCE_STRATEGY"))
	if err != nil {
		return nil, err
	}

	version, err := parseKafkaVersion(cfg.GetString("MQ_KAFKA_SARAMA_VERSION"))
	if err != nil {
		return nil, err
	}

	compression, err := parseCompressionCodec(cfg.GetString("MQ_KAFKA_PRODUCER_COMPRESSION"))
	if err != nil {
		return nil, err
	}

	return &kafkaConfig{
		brokers:            brokers,
		consumerGroup:      consumerGroup,
		clientID:           clientID,
		enableOTEL:         cfg.GetBool("MQ_KAFKA_OTEL_ENABLED"),
		initialOffset:      initialOffset,
		rebalanceStrategy:  strategy,
		nackSleep:          cfg.GetDuration("MQ_KAFKA_SUBSCRIBER_NACK_SLEEP"),
		reconnectSleep:     cfg.GetDuration("MQ_KAFKA_SUBSCRIBER_RECONNECT_SLEEP"),
		version:            version,
		producerRetryMax:   cfg.GetInt("MQ_KAFKA_PRODUCER_RETRY_MAX"),
		compression:        compression,
		idempotentProducer: cfg.GetBool("MQ_KAFKA_PRODUCER_IDEMPOTENT"),
	}, nil
}

func parseInitialOffset(raw string) (int64, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "", "oldest", "earliest":
		return sarama.OffsetOldest, nil
	case "latest", "newest":
		return sarama.OffsetNewest, nil
	default:
		return 0, fmt.Errorf("unsupported MQ_KAFKA_CONSUMER_INITIAL_OFFSET: %s", raw)
	}
}

func parseRebalanceStrategy(raw string) (sarama.BalanceStrategy, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "", "range":
		return sarama.NewBalanceStrategyRange(), nil
	case "roundrobin", "round_robin":
		return sarama.NewBalanceStrategyRoundRobin(), nil
	case "sticky":
		return sarama.NewBalanceStrategySticky(), nil
	default:
		return nil, fmt.Errorf("unsupported MQ_KAFKA_REBALANCE_STRATEGY: %s", raw)
	}
}

func parseKafkaVersion(raw string) (sarama.KafkaVersion, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "default":
		return sarama.DefaultVersion, nil
	case "", "max":
		return sarama.MaxVersion, nil
	default:
		version, err := sarama.ParseKafkaVersion(raw)
		if err != nil {
			return sarama.KafkaVersion{}, fmt.Errorf("invalid MQ_KAFKA_SARAMA_VERSION: %w", err)
		}

		return version, nil
	}
}

func parseCompressionCodec(raw string) (sarama.CompressionCodec, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "", "none":
		return sarama.CompressionNone, nil
	case "gzip":
		return sarama.CompressionGZIP, nil
	case "lz4":
		return sarama.CompressionLZ4, nil
	case "snappy":
		return sarama.CompressionSnappy, nil
	case "zstd":
		return sarama.CompressionZSTD, nil
	default:
		return sarama.CompressionNone, fmt.Errorf("unsupported MQ_KAFKA_PRODUCER_COMPRESSION: %s", raw)
	}
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}

	return ""
}
