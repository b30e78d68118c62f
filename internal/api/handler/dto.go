package handler

import (
	"time"

	"github.com/finrecon/settlement-service/internal/domain/approval"
	"github.com/finrecon/settlement-service/internal/domain/audit"
	"github.com/finrecon/settlement-service/internal/domain/settlement"
)

// ActorPayload identifies the acting user in mutating requests
type ActorPayload struct {
	ID   string `json:"id" binding:"required,uuid"`
	Name string `json:"name" binding:"required"`
}

// PartnerPayload identifies one partner participating in a new run
type PartnerPayload struct {
	ID   string `json:"id" binding:"required,uuid"`
	Name string `json:"name" binding:"required"`
	Type string `json:"type" binding:"required,oneof=MERCHANT MARKETPLACE AGENT"`
}

// CreateRunRequest represents a request to create a new settlement run
type CreateRunRequest struct {
	RunNumber     string           `json:"run_number" binding:"required"`
	PeriodStart   time.Time        `json:"period_start" binding:"required"`
	PeriodEnd     time.Time        `json:"period_end" binding:"required"`
	Currency      string           `json:"currency" binding:"required,len=3"`
	PaymentMethod string           `json:"payment_method" binding:"required,oneof=BANK_TRANSFER WIRE WALLET"`
	Actor         ActorPayload     `json:"actor" binding:"required"`
	Partners      []PartnerPayload `json:"partners" binding:"required,min=1,dive"`
}

// ActorRequest carries only the acting user, for transitions without
// further input
type ActorRequest struct {
	Actor ActorPayload `json:"actor" binding:"required"`
}

// SubmitRunRequest represents a request to submit a run for approval
type SubmitRunRequest struct {
	Actor     ActorPayload `json:"actor" binding:"required"`
	RiskScore *int         `json:"risk_score,omitempty" binding:"omitempty,min=0,max=100"`
}

// FailRunRequest represents an operator force-fail of a run
type FailRunRequest struct {
	Actor  ActorPayload `json:"actor" binding:"required"`
	Reason string       `json:"reason" binding:"required"`
}

// AdjustPartnerRequest represents a manual correction to one partner's
// settlement. Delta is signed, in minor units.
type AdjustPartnerRequest struct {
	Actor   ActorPayload `json:"actor" binding:"required"`
	Delta   int64        `json:"delta" binding:"required"`
	Comment string       `json:"comment,omitempty"`
}

// DecisionRequest represents an approval or rejection decision
type DecisionRequest struct {
	Actor   ActorPayload `json:"actor" binding:"required"`
	Comment string       `json:"comment,omitempty"`
}

// PaymentDetailsResponse represents payment details in API responses
type PaymentDetailsResponse struct {
	Method    string `json:"method"`
	Reference string `json:"reference"`
	PaidAt    string `json:"paid_at"`
}

// PartnerSettlementResponse represents one partner's position in a run
type PartnerSettlementResponse struct {
	PartnerID        string                  `json:"partner_id"`
	PartnerName      string                  `json:"partner_name"`
	PartnerType      string                  `json:"partner_type"`
	Currency         string                  `json:"currency"`
	GrossAmount      int64                   `json:"gross_amount"`
	Fees             int64                   `json:"fees"`
	Adjustments      int64                   `json:"adjustments"`
	NetAmount        int64                   `json:"net_amount"`
	TransactionCount int                     `json:"transaction_count"`
	Status           string                  `json:"status"`
	PaymentDetails   *PaymentDetailsResponse `json:"payment_details,omitempty"`
}

// RunResponse represents a settlement run in API responses
type RunResponse struct {
	ID                string                      `json:"id"`
	RunNumber         string                      `json:"run_number"`
	PeriodStart       string                      `json:"period_start"`
	PeriodEnd         string                      `json:"period_end"`
	Status            string                      `json:"status"`
	Currency          string                      `json:"currency"`
	TotalAmount       int64                       `json:"total_amount"`
	PaymentMethod     string                      `json:"payment_method"`
	CreatedBy         ActorPayload                `json:"created_by"`
	ApprovedBy        *ActorPayload               `json:"approved_by,omitempty"`
	ApprovalRequestID string                      `json:"approval_request_id,omitempty"`
	CompletedAt       string                      `json:"completed_at,omitempty"`
	FailureReason     string                      `json:"failure_reason,omitempty"`
	Breakdown         []PartnerSettlementResponse `json:"breakdown"`
	Summary           settlement.Summary          `json:"summary"`
	Version           int                         `json:"version"`
	CreatedAt         string                      `json:"created_at"`
	UpdatedAt         string                      `json:"updated_at"`
}

// ApprovalResponse represents an approval request in API responses
type ApprovalResponse struct {
	ID              string        `json:"id"`
	Type            string        `json:"type"`
	Status          string        `json:"status"`
	Priority        string        `json:"priority"`
	Requestor       ActorPayload  `json:"requestor"`
	Approver        *ActorPayload `json:"approver,omitempty"`
	EntityType      string        `json:"entity_type"`
	EntityID        string        `json:"entity_id"`
	RiskScore       *int          `json:"risk_score,omitempty"`
	HighRisk        bool          `json:"high_risk"`
	Amount          *int64        `json:"amount,omitempty"`
	DecisionComment string        `json:"decision_comment,omitempty"`
	ApprovedAt      string        `json:"approved_at,omitempty"`
	RejectedAt      string        `json:"rejected_at,omitempty"`
	CancelledAt     string        `json:"cancelled_at,omitempty"`
	Version         int           `json:"version"`
	CreatedAt       string        `json:"created_at"`
	UpdatedAt       string        `json:"updated_at"`
}

// HistoryEntryResponse represents one audit history entry
type HistoryEntryResponse struct {
	ID        int64             `json:"id"`
	Timestamp string            `json:"timestamp"`
	Action    string            `json:"action"`
	Actor     ActorPayload      `json:"actor"`
	Comment   string            `json:"comment,omitempty"`
	Metadata  map[string]string `json:"metadata,omitempty"`
}

// PaginationParams represents pagination parameters for list endpoints
type PaginationParams struct {
	Page    int `form:"page,default=1" binding:"min=1"`
	PerPage int `form:"per_page,default=10" binding:"min=1,max=100"`
}

// ListApprovalsParams represents query parameters for the approvals list
type ListApprovalsParams struct {
	Status  string `form:"status,default=PENDING" binding:"oneof=PENDING APPROVED REJECTED CANCELLED"`
	Page    int    `form:"page,default=1" binding:"min=1"`
	PerPage int    `form:"per_page,default=10" binding:"min=1,max=100"`
}

func mapRunToResponse(run *settlement.Run) RunResponse {
	response := RunResponse{
		ID:            run.ID.String(),
		RunNumber:     run.RunNumber,
		PeriodStart:   run.PeriodStart.Format(time.RFC3339),
		PeriodEnd:     run.PeriodEnd.Format(time.RFC3339),
		Status:        string(run.Status),
		Currency:      run.Currency,
		TotalAmount:   run.TotalAmount,
		PaymentMethod: string(run.PaymentMethod),
		CreatedBy:     ActorPayload{ID: run.CreatedBy.ID.String(), Name: run.CreatedBy.Name},
		FailureReason: run.FailureReason,
		Summary:       run.Summary,
		Version:       run.Version,
		CreatedAt:     run.CreatedAt.Format(time.RFC3339),
		UpdatedAt:     run.UpdatedAt.Format(time.RFC3339),
	}

	if run.ApprovedBy != nil {
		response.ApprovedBy = &ActorPayload{ID: run.ApprovedBy.ID.String(), Name: run.ApprovedBy.Name}
	}
	if run.ApprovalRequestID != nil {
		response.ApprovalRequestID = run.ApprovalRequestID.String()
	}
	if run.CompletedAt != nil {
		response.CompletedAt = run.CompletedAt.Format(time.RFC3339)
	}

	for _, ps := range run.Breakdown {
		response.Breakdown = append(response.Breakdown, mapPartnerSettlementToResponse(ps))
	}

	return response
}

func mapPartnerSettlementToResponse(ps *settlement.PartnerSettlement) PartnerSettlementResponse {
	response := PartnerSettlementResponse{
		PartnerID:        ps.PartnerID.String(),
		PartnerName:      ps.PartnerName,
		PartnerType:      string(ps.PartnerType),
		Currency:         ps.Currency,
		GrossAmount:      ps.GrossAmount,
		Fees:             ps.Fees,
		Adjustments:      ps.Adjustments,
		NetAmount:        ps.NetAmount,
		TransactionCount: ps.TransactionCount,
		Status:           string(ps.Status),
	}

	if ps.PaymentDetails != nil {
		response.PaymentDetails = &PaymentDetailsResponse{
			Method:    string(ps.PaymentDetails.Method),
			Reference: ps.PaymentDetails.Reference,
			PaidAt:    ps.PaymentDetails.PaidAt.Format(time.RFC3339),
		}
	}

	return response
}

func mapRequestToResponse(request *approval.Request) ApprovalResponse {
	response := ApprovalResponse{
		ID:              request.ID.String(),
		Type:            string(request.Type),
		Status:          string(request.Status),
		Priority:        string(request.Priority),
		Requestor:       ActorPayload{ID: request.Requestor.ID.String(), Name: request.Requestor.Name},
		EntityType:      request.Metadata.EntityType,
		EntityID:        request.Metadata.EntityID.String(),
		RiskScore:       request.Metadata.RiskScore,
		HighRisk:        request.HighRisk(),
		Amount:          request.Metadata.Amount,
		DecisionComment: request.DecisionComment,
		Version:         request.Version,
		CreatedAt:       request.CreatedAt.Format(time.RFC3339),
		UpdatedAt:       request.UpdatedAt.Format(time.RFC3339),
	}

	if request.Approver != nil {
		response.Approver = &ActorPayload{ID: request.Approver.ID.String(), Name: request.Approver.Name}
	}
	if request.ApprovedAt != nil {
		response.ApprovedAt = request.ApprovedAt.Format(time.RFC3339)
	}
	if request.RejectedAt != nil {
		response.RejectedAt = request.RejectedAt.Format(time.RFC3339)
	}
	if request.CancelledAt != nil {
		response.CancelledAt = request.CancelledAt.Format(time.RFC3339)
	}

	return response
}

func mapHistoryToResponse(entries []audit.HistoryEntry) []HistoryEntryResponse {
	responses := make([]HistoryEntryResponse, 0, len(entries))
	for _, entry := range entries {
		responses = append(responses, HistoryEntryResponse{
			ID:        entry.ID,
			Timestamp: entry.Timestamp.Format(time.RFC3339Nano),
			Action:    string(entry.Action),
			Actor:     ActorPayload{ID: entry.Actor.ID.String(), Name: entry.Actor.Name},
			Comment:   entry.Comment,
			Metadata:  entry.Metadata,
		})
	}
	return responses
}
