package handlers

import (
	"github.com/gin-gonic/gin"

	"workshop/internal/domain/adjustment"
	"workshop/internal/infrastructure/http/v1/dto"
)

// AdjustmentHandler handles HTTP requests for stock adjustments.
type AdjustmentHandler struct {
	*BaseDocumentHandler[*adjustment.Adjustment, dto.AdjustmentRequest, dto.AdjustmentRequest]
	service *adjustment.Service
}

// NewAdjustmentHandler creates a new adjustment handler.
func NewAdjustmentHandler(base *BaseHandler, service *adjustment.Service) *AdjustmentHandler {
	cfg := BaseDocumentHandlerConfig[*adjustment.Adjustment, dto.AdjustmentRequest, dto.AdjustmentRequest]{
		Service: service,
		MapCreateDTO: func(req dto.AdjustmentRequest) *adjustment.Adjustment {
			return req.ToEntity()
		},
		MapUpdateDTO: func(req dto.AdjustmentRequest, existing *adjustment.Adjustment) *adjustment.Adjustment {
			req.ApplyTo(existing)
			return existing
		},
	}
	return &AdjustmentHandler{
		BaseDocumentHandler: NewBaseDocumentHandler(base, cfg),
		service:             service,
	}
}

// RetryPosting handles POST /adjustments/:id/post-stock-entries
// It posts a submitted adjustment whose posting is queued or failed.
func (h *AdjustmentHandler) RetryPosting(c *gin.Context) {
	adjID, ok := h.ParseID(c)
	if !ok {
		return
	}
	a, err := h.service.RetryPosting(c.Request.Context(), adjID)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, a)
}
