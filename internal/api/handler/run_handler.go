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
	"github.com/finrecon/settlement-service/internal/domain/settlement"
	"github.com/finrecon/settlement-service/internal/domain/shared"
)

// RunHandler handles HTTP requests for settlement runs
type RunHandler struct {
	runService service.RunService
	logger     *slog.Logger
}

// NewRunHandler creates a new run handler
func NewRunHandler(runService service.RunService, logger *slog.Logger) *RunHandler {
	return &RunHandler{
		runService: runService,
		logger:     logger,
	}
}

// CreateRun handles requests to create a new settlement run
func (h *RunHandler) CreateRun(c *gin.Context) {
	var req CreateRunRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondBadRequest(c, "Invalid request payload: "+err.Error())
		return
	}

	actor, err := mapActorPayload(req.Actor)
	if err != nil {
		RespondBadRequest(c, "Invalid actor ID format")
		return
	}

	partners := make([]settlement.PartnerRef, 0, len(req.Partners))
	for _, p := range req.Partners {
		partnerID, err := uuid.Parse(p.ID)
		if err != nil {
			RespondBadRequest(c, "Invalid partner ID format")
			return
		}
		partners = append(partners, settlement.PartnerRef{
			ID:   partnerID,
			Name: p.Name,
			Type: shared.PartnerType(p.Type),
		})
	}

	run, err := h.runService.CreateRun(c.Request.Context(), service.CreateRunParams{
		RunNumber:     req.RunNumber,
		PeriodStart:   req.PeriodStart,
		PeriodEnd:     req.PeriodEnd,
		Currency:      req.Currency,
		PaymentMethod: shared.PaymentMethod(req.PaymentMethod),
		CreatedBy:     actor,
		Partners:      partners,
	})
	if err != nil {
		h.handleRunError(c, err, "Failed to create settlement run")
		return
	}

	RespondCreated(c, mapRunToResponse(run))
}

// GetRun handles requests to retrieve a settlement run by ID
func (h *RunHandler) GetRun(c *gin.Context) {
	runID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		RespondBadRequest(c, "Invalid run ID format")
		return
	}

	run, err := h.runService.GetRunByID(c.Request.Context(), runID)
	if err != nil {
		h.handleRunError(c, err, "Failed to get settlement run")
		return
	}

	RespondOK(c, mapRunToResponse(run))
}

// ListRuns handles requests to list settlement runs with pagination
func (h *RunHandler) ListRuns(c *gin.Context) {
	var params PaginationParams
	if err := c.ShouldBindQuery(&params); err != nil {
		RespondBadRequest(c, "Invalid pagination parameters: "+err.Error())
		return
	}

	runs, total, err := h.runService.ListRuns(c.Request.Context(), params.Page, params.PerPage)
	if err != nil {
		h.handleRunError(c, err, "Failed to list settlement runs")
		return
	}

	responses := make([]RunResponse, 0, len(runs))
	for _, run := range runs {
		responses = append(responses, mapRunToResponse(run))
	}

	RespondWithPaginatedData(c, http.StatusOK, responses, params.Page, params.PerPage, int(total))
}

// GetRunHistory handles requests for a run's audit history
func (h *RunHandler) GetRunHistory(c *gin.Context) {
	runID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		RespondBadRequest(c, "Invalid run ID format")
		return
	}

	run, err := h.runService.GetRunByID(c.Request.Context(), runID)
	if err != nil {
		h.handleRunError(c, err, "Failed to get settlement run")
		return
	}

	RespondOK(c, mapHistoryToResponse(run.OrderedHistory()))
}

// CalculateRun handles requests to start aggregation for a run
func (h *RunHandler) CalculateRun(c *gin.Context) {
	runID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		RespondBadRequest(c, "Invalid run ID format")
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

	run, err := h.runService.RequestCalculation(c.Request.Context(), runID, actor, middleware.GetCorrelationID(c))
	if err != nil {
		h.handleRunError(c, err, "Failed to request calculation")
		return
	}

	RespondAccepted(c, mapRunToResponse(run))
}

// SubmitRun handles requests to submit a run for approval
func (h *RunHandler) SubmitRun(c *gin.Context) {
	runID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		RespondBadRequest(c, "Invalid run ID format")
		return
	}

	var req SubmitRunRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondBadRequest(c, "Invalid request payload: "+err.Error())
		return
	}

	actor, err := mapActorPayload(req.Actor)
	if err != nil {
		RespondBadRequest(c, "Invalid actor ID format")
		return
	}

	run, request, err := h.runService.SubmitForApproval(c.Request.Context(), runID, actor, req.RiskScore)
	if err != nil {
		h.handleRunError(c, err, "Failed to submit run for approval")
		return
	}

	RespondOK(c, gin.H{
		"run":              mapRunToResponse(run),
		"approval_request": mapRequestToResponse(request),
	})
}

// ProcessRun handles requests to start disbursing an approved run
func (h *RunHandler) ProcessRun(c *gin.Context) {
	h.transitionRun(c, h.runService.StartProcessing, "Failed to start processing")
}

// CompleteRun handles requests to complete a processing run
func (h *RunHandler) CompleteRun(c *gin.Context) {
	h.transitionRun(c, h.runService.CompleteRun, "Failed to complete run")
}

// FailRun handles operator requests to force-fail a run
func (h *RunHandler) FailRun(c *gin.Context) {
	runID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		RespondBadRequest(c, "Invalid run ID format")
		return
	}

	var req FailRunRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondBadRequest(c, "Invalid request payload: "+err.Error())
		return
	}

	actor, err := mapActorPayload(req.Actor)
	if err != nil {
		RespondBadRequest(c, "Invalid actor ID format")
		return
	}

	run, err := h.runService.FailRun(c.Request.Context(), runID, actor, req.Reason)
	if err != nil {
		h.handleRunError(c, err, "Failed to fail run")
		return
	}

	RespondOK(c, mapRunToResponse(run))
}

// AdjustPartner handles requests to apply a manual adjustment to one
// partner's settlement
func (h *RunHandler) AdjustPartner(c *gin.Context) {
	runID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		RespondBadRequest(c, "Invalid run ID format")
		return
	}

	partnerID, err := uuid.Parse(c.Param("partnerId"))
	if err != nil {
		RespondBadRequest(c, "Invalid partner ID format")
		return
	}

	var req AdjustPartnerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondBadRequest(c, "Invalid request payload: "+err.Error())
		return
	}

	actor, err := mapActorPayload(req.Actor)
	if err != nil {
		RespondBadRequest(c, "Invalid actor ID format")
		return
	}

	run, err := h.runService.AdjustPartner(c.Request.Context(), runID, partnerID, req.Delta, actor, req.Comment)
	if err != nil {
		h.handleRunError(c, err, "Failed to adjust partner settlement")
		return
	}

	RespondOK(c, mapRunToResponse(run))
}

type runTransition func(ctx context.Context, runID uuid.UUID, actor shared.Actor) (*settlement.Run, error)

func (h *RunHandler) transitionRun(c *gin.Context, transition runTransition, failureMsg string) {
	runID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		RespondBadRequest(c, "Invalid run ID format")
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

	run, err := transition(c.Request.Context(), runID, actor)
	if err != nil {
		h.handleRunError(c, err, failureMsg)
		return
	}

	RespondOK(c, mapRunToResponse(run))
}

func (h *RunHandler) handleRunError(c *gin.Context, err error, logMsg string) {
	var notFound settlement.ErrRunNotFound
	var invalidTransition settlement.ErrInvalidTransition
	var partnerNotFound settlement.ErrPartnerNotFound
	var concurrent settlement.ErrConcurrentModification

	switch {
	case errors.As(err, &notFound):
		RespondNotFound(c, err.Error())
	case errors.As(err, &partnerNotFound):
		RespondNotFound(c, err.Error())
	case errors.As(err, &invalidTransition):
		RespondConflict(c, err.Error())
	case errors.As(err, &concurrent):
		RespondConflict(c, err.Error())
	case errors.Is(err, settlement.ErrEmptyRunNumber),
		errors.Is(err, settlement.ErrInvalidPeriod),
		errors.Is(err, settlement.ErrNoPartners),
		errors.Is(err, settlement.ErrEmptyFailureReason),
		errors.Is(err, settlement.ErrNotSubmitted),
		errors.Is(err, shared.ErrInvalidCurrencyFormat):
		RespondBadRequest(c, err.Error())
	default:
		h.logger.Error(logMsg, "error", err, "correlation_id", middleware.GetCorrelationID(c))
		RespondInternalError(c)
	}
}

func mapActorPayload(payload ActorPayload) (shared.Actor, error) {
	id, err := uuid.Parse(payload.ID)
	if err != nil {
		return shared.Actor{}, err
	}
	return shared.Actor{ID: id, Name: payload.Name}, nil
}
