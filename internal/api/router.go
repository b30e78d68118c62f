package api

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/finrecon/settlement-service/internal/api/handler"
	"github.com/finrecon/settlement-service/internal/api/middleware"
)

// setupRouter configures API routes and middleware for the application
func setupRouter(
	logger *slog.Logger,
	r *gin.Engine,
	runHandler *handler.RunHandler,
	approvalHandler *handler.ApprovalHandler,
	auditHandler *handler.AuditHandler,
) {
	r.Use(middleware.Recovery(logger))
	r.Use(middleware.Logger(logger))
	r.Use(middleware.CorrelationID())

	// API v1 endpoints
	v1 := r.Group("/api/v1")
	{
		// Settlement run lifecycle
		runs := v1.Group("/settlement-runs")
		{
			runs.POST("", runHandler.CreateRun)
			runs.GET("", runHandler.ListRuns)
			runs.GET("/:id", runHandler.GetRun)
			runs.GET("/:id/history", runHandler.GetRunHistory)
			runs.POST("/:id/calculate", runHandler.CalculateRun)
			runs.POST("/:id/submit", runHandler.SubmitRun)
			runs.POST("/:id/process", runHandler.ProcessRun)
			runs.POST("/:id/complete", runHandler.CompleteRun)
			runs.POST("/:id/fail", runHandler.FailRun)
			runs.POST("/:id/partners/:partnerId/adjust", runHandler.AdjustPartner)
		}

		// Maker-checker approvals
		approvals := v1.Group("/approval-requests")
		{
			approvals.GET("", approvalHandler.ListRequests)
			approvals.GET("/:id", approvalHandler.GetRequest)
			approvals.GET("/:id/history", approvalHandler.GetRequestHistory)
			approvals.POST("/:id/approve", approvalHandler.ApproveRequest)
			approvals.POST("/:id/reject", approvalHandler.RejectRequest)
			approvals.POST("/:id/cancel", approvalHandler.CancelRequest)
		}

		// Archived trails for compliance review
		auditGroup := v1.Group("/audit/:entityType/:id")
		{
			auditGroup.GET("/history", auditHandler.GetHistory)
			auditGroup.GET("/logs", auditHandler.GetLogs)
		}
	}

	// Health check endpoint for monitoring
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "timestamp": time.Now().UTC()})
	})
}
