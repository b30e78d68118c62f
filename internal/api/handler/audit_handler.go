package handler

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/finrecon/settlement-service/internal/api/middleware"
	"github.com/finrecon/settlement-service/internal/domain/audit"
)

// AuditHandler serves the archived audit trail out of the compliance store.
// The archive lags the live trail by at most one write, so these endpoints
// are for compliance review rather than request-response flows.
type AuditHandler struct {
	archive audit.Archive
	logger  *slog.Logger
}

// NewAuditHandler creates a new audit handler
func NewAuditHandler(archive audit.Archive, logger *slog.Logger) *AuditHandler {
	return &AuditHandler{
		archive: archive,
		logger:  logger,
	}
}

// LogEntryResponse represents one archived operational log record
type LogEntryResponse struct {
	ID        int64  `json:"id"`
	Timestamp string `json:"timestamp"`
	Level     string `json:"level"`
	Message   string `json:"message"`
}

// ArchiveQueryParams represents pagination for archive reads
type ArchiveQueryParams struct {
	Limit  int `form:"limit,default=50" binding:"min=1,max=500"`
	Offset int `form:"offset,default=0" binding:"min=0"`
}

// GetHistory handles requests for an entity's archived history
func (h *AuditHandler) GetHistory(c *gin.Context) {
	entityType, entityID, params, ok := h.bindArchiveQuery(c)
	if !ok {
		return
	}

	entries, err := h.archive.HistoryForEntity(c.Request.Context(), entityType, entityID, params.Limit, params.Offset)
	if err != nil {
		h.handleArchiveError(c, err)
		return
	}

	RespondWithPaginatedData(c, http.StatusOK, mapHistoryToResponse(entries), params.Offset/params.Limit+1, params.Limit, len(entries))
}

// GetLogs handles requests for an entity's archived operational logs
func (h *AuditHandler) GetLogs(c *gin.Context) {
	entityType, entityID, params, ok := h.bindArchiveQuery(c)
	if !ok {
		return
	}

	entries, err := h.archive.LogsForEntity(c.Request.Context(), entityType, entityID, params.Limit, params.Offset)
	if err != nil {
		h.handleArchiveError(c, err)
		return
	}

	responses := make([]LogEntryResponse, 0, len(entries))
	for _, entry := range entries {
		responses = append(responses, LogEntryResponse{
			ID:        entry.ID,
			Timestamp: entry.Timestamp.Format(time.RFC3339Nano),
			Level:     string(entry.Level),
			Message:   entry.Message,
		})
	}

	RespondWithPaginatedData(c, http.StatusOK, responses, params.Offset/params.Limit+1, params.Limit, len(responses))
}

func (h *AuditHandler) bindArchiveQuery(c *gin.Context) (string, uuid.UUID, ArchiveQueryParams, bool) {
	entityType := c.Param("entityType")
	if entityType != "settlement_run" && entityType != "approval_request" {
		RespondBadRequest(c, "Unknown entity type")
		return "", uuid.Nil, ArchiveQueryParams{}, false
	}

	entityID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		RespondBadRequest(c, "Invalid entity ID format")
		return "", uuid.Nil, ArchiveQueryParams{}, false
	}

	var params ArchiveQueryParams
	if err := c.ShouldBindQuery(&params); err != nil {
		RespondBadRequest(c, "Invalid query parameters: "+err.Error())
		return "", uuid.Nil, ArchiveQueryParams{}, false
	}

	return entityType, entityID, params, true
}

func (h *AuditHandler) handleArchiveError(c *gin.Context, err error) {
	var notArchived audit.ErrEntityNotArchived
	if errors.As(err, &notArchived) {
		RespondNotFound(c, err.Error())
		return
	}

	h.logger.Error("Failed to read audit archive", "error", err, "correlation_id", middleware.GetCorrelationID(c))
	RespondInternalError(c)
}
