package consumer

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/finrecon/settlement-service/internal/domain/shared"
	"github.com/finrecon/settlement-service/internal/platform/messaging/producers"
	"github.com/finrecon/settlement-service/internal/worker/service"
)

// CalculationEventHandler handles incoming calculation request messages from Kafka
type CalculationEventHandler struct {
	calculationService service.CalculationService
	producer           producers.DeadLetterPublisher
	logger             *slog.Logger
}

// NewCalculationEventHandler creates a new handler
func NewCalculationEventHandler(
	logger *slog.Logger,
	calculationService service.CalculationService,
	producer producers.DeadLetterPublisher,
) *CalculationEventHandler {
	return &CalculationEventHandler{
		calculationService: calculationService,
		producer:           producer,
		logger:             logger,
	}
}

// HandleMessage processes Kafka messages
func (h *CalculationEventHandler) HandleMessage(ctx context.Context, key []byte, value []byte) error {
	var request shared.CalculationRequest
	if err := json.Unmarshal(value, &request); err != nil {
		unmarshalErrorMsg := "Failed to unmarshal calculation request from Kafka message"
		h.logger.Error(unmarshalErrorMsg,
			"error", err,
			"message_key", string(key),
		)

		// Send to DLQ if available
		if h.producer != nil {
			dlqReason := fmt.Sprintf("%s: %s", unmarshalErrorMsg, err.Error())
			if dlqErr := h.producer.PublishToDLQ(ctx, string(key), value, dlqReason); dlqErr != nil {
				h.logger.Error("Failed to publish message to DLQ after unmarshal error",
					"dlq_error", dlqErr,
					"original_error", err,
					"message_key", string(key),
				)
			} else {
				h.logger.Info("Published unprocessable message to DLQ", "message_key", string(key), "reason", dlqReason)
				// Message handled, commit offset
				return nil
			}
		}
		// Allow Kafka retries
		return fmt.Errorf("failed to unmarshal message value: %w", err)
	}

	logger := h.logger
	if request.CorrelationID != "" {
		logger = h.logger.With("correlation_id", request.CorrelationID)
	}

	logger.Info("Received calculation request",
		"run_id", request.RunID.String(),
		"requested_by", request.RequestedBy.Name,
	)

	if err := h.calculationService.ProcessCalculationRequest(ctx, &request); err != nil {
		logger.Error("Failed to process calculation request",
			"run_id", request.RunID.String(),
			"error", err,
		)
		return fmt.Errorf("processing calculation request for run %s failed: %w", request.RunID.String(), err)
	}

	logger.Info("Calculation request handled", "run_id", request.RunID.String())
	return nil // Success, commit offset
}
