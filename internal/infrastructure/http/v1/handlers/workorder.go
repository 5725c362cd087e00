package handlers

import (
	"github.com/gin-gonic/gin"

	"workshop/internal/domain/workorder"
	"workshop/internal/infrastructure/http/v1/dto"
)

// WorkOrderHandler handles HTTP requests for work orders.
type WorkOrderHandler struct {
	*BaseDocumentHandler[*workorder.WorkOrder, dto.WorkOrderRequest, dto.WorkOrderRequest]
	service *workorder.Service
}

// NewWorkOrderHandler creates a new work order handler.
func NewWorkOrderHandler(base *BaseHandler, service *workorder.Service) *WorkOrderHandler {
	cfg := BaseDocumentHandlerConfig[*workorder.WorkOrder, dto.WorkOrderRequest, dto.WorkOrderRequest]{
		Service: service,
		MapCreateDTO: func(req dto.WorkOrderRequest) *workorder.WorkOrder {
			return req.ToEntity()
		},
		MapUpdateDTO: func(req dto.WorkOrderRequest, existing *workorder.WorkOrder) *workorder.WorkOrder {
			req.ApplyTo(existing)
			return existing
		},
	}
	return &WorkOrderHandler{
		BaseDocumentHandler: NewBaseDocumentHandler(base, cfg),
		service:             service,
	}
}

// SetStatus handles POST /work-orders/:id/status
func (h *WorkOrderHandler) SetStatus(c *gin.Context) {
	woID, ok := h.ParseID(c)
	if !ok {
		return
	}
	var req dto.WorkOrderStatusRequest
	if !h.BindJSON(c, &req) {
		return
	}
	w, err := h.service.SetStatus(c.Request.Context(), woID, req.Status)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, w)
}

// BillingSource handles GET /work-orders/:id/billing-source
func (h *WorkOrderHandler) BillingSource(c *gin.Context) {
	woID, ok := h.ParseID(c)
	if !ok {
		return
	}
	src, err := h.service.GetBillingSource(c.Request.Context(), woID)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, src)
}
