package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/finrecon/settlement-service/internal/api/middleware"
	"github.com/finrecon/settlement-service/internal/api/service"
	"github.com/finrecon/settlement-service/internal/domain/approval"
	"github.com/finrecon/settlement-service/internal/domain/shared"
)

// ApprovalHandler handles HTTP requests for approval requests
type ApprovalHandler struct {
	approvalService service.ApprovalService
	logger          *slog.Logger
}

// NewApprovalHandler creates a new approval handler
func NewApprovalHandler(approvalService service.ApprovalService, logger *slog.Logger) *ApprovalHandler {
	return &ApprovalHandler{
		approvalService: approvalService,
		logger:          logger,
	}
}

// GetRequest handles requests to retrieve an approval request by ID
func (h *ApprovalHandler) GetRequest(c *gin.Context) {
	requestID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		RespondBadRequest(c, "Invalid request ID format")
		return
	}

	request, err := h.approvalService.GetRequestByID(c.Request.Context(), requestID)
	if err != nil {
		h.handleApprovalError(c, err, "Failed to get approval request")
		return
	}

	RespondOK(c, mapRequestToResponse(request))
}

// ListRequests handles requests to list approval requests by status
func (h *ApprovalHandler) ListRequests(c *gin.Context) {
	var params ListApprovalsParams
	if err := c.ShouldBindQuery(&params); err != nil {
		RespondBadRequest(c, "Invalid query parameters: "+err.Error())
		return
	}

	requests, total, err := h.approvalService.ListRequestsByStatus(c.Request.Context(), approval.Status(params.Status), params.Page, params.PerPage)
	if err != nil {
		h.handleApprovalError(c, err, "Failed to list approval requests")
		return
	}

	responses := make([]ApprovalResponse, 0, len(requests))
	for _, request := range requests {
		responses = append(responses, mapRequestToResponse(request))
	}

	RespondWithPaginatedData(c, http.StatusOK, responses, params.Page, params.PerPage, int(total))
}

// GetRequestHistory handles requests for an approval request's audit history
func (h *ApprovalHandler) GetRequestHistory(c *gin.Context) {
	requestID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		RespondBadRequest(c, "Invalid request ID format")
		return
	}

	request, err := h.approvalService.GetRequestByID(c.Request.Context(), requestID)
	if err != nil {
		h.handleApprovalError(c, err, "Failed to get approval request")
		return
	}

	RespondOK(c, mapHistoryToResponse(request.OrderedHistory()))
}

// ApproveRequest handles requests to approve a pending approval request
func (h *ApprovalHandler) ApproveRequest(c *gin.Context) {
	h.decide(c, h.approvalService.Approve, "Failed to approve request")
}

// RejectRequest handles requests to reject a pending approval request
func (h *ApprovalHandler) RejectRequest(c *gin.Context) {
	h.decide(c, h.approvalService.Reject, "Failed to reject request")
}

// CancelRequest handles requests to cancel a pending approval request
func (h *ApprovalHandler) CancelRequest(c *gin.Context) {
	requestID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		RespondBadRequest(c, "Invalid request ID format")
		return
	}

	var req ActorRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondBadRequest(c, "Invalid request payload: "+err.Error())
		return
	}

	actor, err := mapActorPayload(req.Actor)
	if err != nil {
		RespondBadRequest(c, "Invalid actor ID format")
		return
	}

	request, err := h.approvalService.Cancel(c.Request.Context(), requestID, actor)
	if err != nil {
		h.handleApprovalError(c, err, "Failed to cancel request")
		return
	}

	RespondOK(c, mapRequestToResponse(request))
}

type decisionFunc func(ctx context.Context, id uuid.UUID, actor shared.Actor, comment string) (*approval.Request, error)

func (h *ApprovalHandler) decide(c *gin.Context, decision decisionFunc, failureMsg string) {
	requestID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		RespondBadRequest(c, "Invalid request ID format")
		return
	}

	var req DecisionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondBadRequest(c, "Invalid request payload: "+err.Error())
		return
	}

	actor, err := mapActorPayload(req.Actor)
	if err != nil {
		RespondBadRequest(c, "Invalid actor ID format")
		return
	}

	request, err := decision(c.Request.Context(), requestID, actor, req.Comment)
	if err != nil {
		h.handleApprovalError(c, err, failureMsg)
		return
	}

	RespondOK(c, mapRequestToResponse(request))
}

func (h *ApprovalHandler) handleApprovalError(c *gin.Context, err error, logMsg string) {
	var notFound approval.ErrRequestNotFound
	var invalidTransition approval.ErrInvalidTransition
	var selfApproval approval.ErrSelfApproval
	var notRequestor approval.ErrNotRequestor
	var concurrent approval.ErrConcurrentModification

	switch {
	case errors.As(err, &notFound):
		RespondNotFound(c, err.Error())
	case errors.As(err, &selfApproval):
		RespondForbidden(c, err.Error())
	case errors.As(err, &notRequestor):
		RespondForbidden(c, err.Error())
	case errors.As(err, &invalidTransition):
		RespondConflict(c, err.Error())
	case errors.As(err, &concurrent):
		RespondConflict(c, err.Error())
	case errors.Is(err, approval.ErrEmptyRejectionComment):
		RespondBadRequest(c, err.Error())
	default:
		h.logger.Error(logMsg, "error", err, "correlation_id", middleware.GetCorrelationID(c))
		RespondInternalError(c)
	}
}
