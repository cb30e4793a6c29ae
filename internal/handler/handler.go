package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/aws-samples/amazon-pinpoint-facebookads-channel/internal/domain"
	"github.com/aws-samples/amazon-pinpoint-facebookads-channel/internal/dto"
)

// ExportRelayer splits one export event and enqueues its fragments
type ExportRelayer interface {
	Handle(ctx context.Context, export *domain.ExportEvent) error
}

// Handler is the local development HTTP surface. It lets an export event be
// pushed through the chunker and dispatcher without a Pinpoint campaign
// activation, against a local SQS-compatible endpoint.
type Handler struct {
	relay  ExportRelayer
	router *gin.Engine
	log    *zap.Logger
}

func NewHandler(relay ExportRelayer, log *zap.Logger) *Handler {
	h := &Handler{
		relay:  relay,
		router: gin.Default(),
		log:    log,
	}

	h.registerRoutes()

	return h
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.router.ServeHTTP(w, r)
}

func (h *Handler) registerRoutes() {
	h.router.GET("/health", h.healthCheck)
	h.router.POST("/exports", h.submitExport)
}

func (h *Handler) healthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "ok",
	})
}

// submitExport handles POST /exports
func (h *Handler) submitExport(c *gin.Context) {
	var req dto.SubmitExportRequest

	if err := c.ShouldBindJSON(&req); err != nil {
		h.log.Warn("Invalid export request", zap.Error(err))
		c.JSON(http.StatusBadRequest, dto.ErrorResponse{
			Error:   "validation_error",
			Message: err.Error(),
		})
		return
	}

	export := req.ToDomain()

	if err := h.relay.Handle(c.Request.Context(), export); err != nil {
		h.log.Error("Failed to relay export",
			zap.Error(err),
			zap.String("group_id", export.GroupID()))
		c.JSON(http.StatusInternalServerError, dto.ErrorResponse{
			Error:   "internal_error",
			Message: err.Error(),
		})
		return
	}

	h.log.Info("Export accepted",
		zap.String("group_id", export.GroupID()),
		zap.Int("endpoint_count", len(export.Endpoints)))

	c.JSON(http.StatusAccepted, dto.SubmitExportResponse{
		GroupID: export.GroupID(),
		Status:  "accepted",
	})
}
