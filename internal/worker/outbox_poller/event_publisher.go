package outbox_poller

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/finrecon/settlement-service/internal/domain/outbox"
	"github.com/finrecon/settlement-service/internal/domain/shared"
	"github.com/finrecon/settlement-service/internal/platform/messaging/producers"
)

// EventPublisher publishes outbox messages as notification events
type EventPublisher interface {
	PublishEvent(ctx context.Context, message *outbox.Message) error
}

// EventPublisherImpl implements EventPublisher
type EventPublisherImpl struct {
	outboxRepo outbox.Repository
	producer   producers.MessagePublisher
	logger     *slog.Logger
}

// NewEventPublisher creates a new publisher
func NewEventPublisher(
	outboxRepo outbox.Repository,
	producer producers.MessagePublisher,
	logger *slog.Logger,
) EventPublisher {
	return &EventPublisherImpl{
		outboxRepo: outboxRepo,
		producer:   producer,
		logger:     logger,
	}
}

// PublishEvent decodes the stored transition event, publishes it to the
// notification topic, and marks the outbox message as processed
func (p *EventPublisherImpl) PublishEvent(ctx context.Context, message *outbox.Message) error {
	ev, err := message.GetEvent()
	if err != nil {
		p.logger.Error("Failed to unmarshal event from outbox payload",
			"outbox_id", message.ID, "event_id", message.EventID, "error", err,
		)
		// The payload will never become readable; park it instead of retrying
		if updateErr := p.outboxRepo.UpdateStatus(ctx, message.ID, shared.OutboxStatusFailedToPublish); updateErr != nil {
			p.logger.Error("Also failed to update outbox status to FAILED_TO_PUBLISH after unmarshal error", "outbox_id", message.ID, "update_error", updateErr)
		}
		return fmt.Errorf("unmarshal payload for outbox %d failed: %w", message.ID, err)
	}

	logger := p.logger
	if ev.CorrelationID != "" {
		logger = p.logger.With("correlation_id", ev.CorrelationID)
	}

	logger.Info("Publishing outbox event",
		"outbox_id", message.ID,
		"event_id", ev.ID.String(),
		"event_type", string(ev.Type),
		"entity_id", ev.EntityID.String(),
	)

	if err := p.producer.Publish(ctx, ev.EntityID.String(), ev); err != nil {
		return fmt.Errorf("failed to publish event %s: %w", ev.ID, err)
	}

	if err := p.outboxRepo.UpdateStatus(ctx, message.ID, shared.OutboxStatusProcessed); err != nil {
		logger.Error("Failed to update outbox message status to PROCESSED",
			"outbox_id", message.ID, "event_id", ev.ID.String(), "error", err,
		)
		return fmt.Errorf("event %s published, but failed to mark outbox %d as PROCESSED: %w", ev.ID, message.ID, err)
	}

	logger.Info("Outbox event published and marked as PROCESSED", "outbox_id", message.ID, "event_id", ev.ID.String())
	return nil
}
