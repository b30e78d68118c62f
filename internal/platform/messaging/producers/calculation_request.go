package producers

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/finrecon/settlement-service/internal/config"
	"github.com/segmentio/kafka-go"
)

type CalculationReqMessageProducer struct {
	logger *slog.Logger
	writer KafkaWriter // Interface for testability
	topic  string
}

// Creates a new calculation request producer and ensures topic exists
func NewCalculationReqMessageProducer(ctx context.Context, logger *slog.Logger, cfg *config.KafkaConfig) (*CalculationReqMessageProducer, error) {
	if cfg.CalculationTopic == "" {
		return nil, fmt.Errorf("kafka calculation topic is not configured")
	}

	conn, err := kafka.Dial("tcp", cfg.Brokers)
	if err != nil {
		return nil, fmt.Errorf("failed to dial kafka for calculation producer: %w", err)
	}
	defer conn.Close()

	err = createKafkaTopicIfNotExists(conn, cfg.CalculationTopic, cfg.NumPartitions, cfg.ReplicationFactor, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to ensure calculation topic %s exists for calculation producer: %w", cfg.CalculationTopic, err)
	}

	writer := &kafka.Writer{
		Addr:         kafka.TCP(cfg.Brokers),
		Topic:        cfg.CalculationTopic,
		Balancer:     &kafka.LeastBytes{},
		RequiredAcks: kafka.RequireAll,
		Async:        false, // Calculation requests must not be lost, write synchronously
		WriteTimeout: cfg.MaxWait,
		Completion: func(messages []kafka.Message, err error) {
			if err != nil {
				logger.Error("Failed to write messages", "topic", cfg.CalculationTopic, "error", err, "count", len(messages))
			} else {
				logger.Debug("Successfully wrote messages", "topic", cfg.CalculationTopic, "count", len(messages))
			}
		},
	}

	return &CalculationReqMessageProducer{
		logger: logger,
		writer: writer,
		topic:  cfg.CalculationTopic,
	}, nil
}

func (p *CalculationReqMessageProducer) Publish(ctx context.Context, key string, value interface{}) error {
	jsonValue, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to marshal message value for calculation producer: %w", err)
	}

	msg := kafka.Message{
		Key:   []byte(key),
		Value: jsonValue,
	}

	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		p.logger.Error("Failed to publish message via calculation producer",
			"topic", p.topic,
			"key", key,
			"error", err,
		)
		return fmt.Errorf("failed to publish message to %s via calculation producer: %w", p.topic, err)
	}

	p.logger.Debug("Published message via calculation producer",
		"topic", p.topic,
		"key", key,
	)
	return nil
}

func (p *CalculationReqMessageProducer) Close() error {
	p.logger.Info("Closing calculation Kafka message producer", "topic", p.topic)
	if err := p.writer.Close(); err != nil {
		return fmt.Errorf("failed to close calculation kafka writer for topic %s: %w", p.topic, err)
	}
	return nil
}
