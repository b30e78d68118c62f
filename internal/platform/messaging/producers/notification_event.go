package producers

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/finrecon/settlement-service/internal/config"
	"github.com/segmentio/kafka-go"
)

// NotificationEventProducer publishes lifecycle events drained from the
// outbox to the notification topic.
type NotificationEventProducer struct {
	logger *slog.Logger
	writer KafkaWriter
	topic  string
}

func NewNotificationEventProducer(ctx context.Context, logger *slog.Logger, cfg *config.KafkaConfig) (*NotificationEventProducer, error) {
	if cfg.NotificationTopic == "" {
		return nil, fmt.Errorf("kafka notification topic is not configured")
	}

	conn, err := kafka.Dial("tcp", cfg.Brokers)
	if err != nil {
		return nil, fmt.Errorf("failed to dial kafka for notification producer: %w", err)
	}
	defer conn.Close()

	err = createKafkaTopicIfNotExists(conn, cfg.NotificationTopic, cfg.NumPartitions, cfg.ReplicationFactor, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to ensure notification topic %s exists for notification producer: %w", cfg.NotificationTopic, err)
	}

	writer := &kafka.Writer{
		Addr:         kafka.TCP(cfg.Brokers),
		Topic:        cfg.NotificationTopic,
		Balancer:     &kafka.LeastBytes{},
		RequiredAcks: kafka.RequireAll,
		Async:        false, // Outbox drain retries on failure, so surface write errors
		WriteTimeout: cfg.MaxWait,
	}

	return &NotificationEventProducer{
		logger: logger,
		writer: writer,
		topic:  cfg.NotificationTopic,
	}, nil
}

func (p *NotificationEventProducer) Publish(ctx context.Context, key string, value interface{}) error {
	jsonValue, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to marshal message value for notification producer: %w", err)
	}

	msg := kafka.Message{
		Key:   []byte(key),
		Value: jsonValue,
	}

	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		p.logger.Error("Failed to publish message via notification producer",
			"topic", p.topic,
			"key", key,
			"error", err,
		)
		return fmt.Errorf("failed to publish message to %s via notification producer: %w", p.topic, err)
	}

	p.logger.Debug("Published message via notification producer",
		"topic", p.topic,
		"key", key,
	)
	return nil
}

func (p *NotificationEventProducer) Close() error {
	p.logger.Info("Closing notification Kafka message producer", "topic", p.topic)
	if err := p.writer.Close(); err != nil {
		return fmt.Errorf("failed to close notification kafka writer for topic %s: %w", p.topic, err)
	}
	return nil
}
