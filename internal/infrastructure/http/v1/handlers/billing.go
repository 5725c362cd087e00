package handlers

import (
	"github.com/gin-gonic/gin"

	"workshop/internal/domain/billing"
	"workshop/internal/infrastructure/http/v1/dto"
)

// BillingHandler handles HTTP requests for work order billings.
type BillingHandler struct {
	*BaseDocumentHandler[*billing.Billing, dto.CreateBillingRequest, dto.UpdateBillingRequest]
	service *billing.Service
}

// NewBillingHandler creates a new billing handler.
func NewBillingHandler(base *BaseHandler, service *billing.Service) *BillingHandler {
	cfg := BaseDocumentHandlerConfig[*billing.Billing, dto.CreateBillingRequest, dto.UpdateBillingRequest]{
		Service: service,
		MapCreateDTO: func(req dto.CreateBillingRequest) *billing.Billing {
			return req.ToEntity()
		},
		MapUpdateDTO: func(req dto.UpdateBillingRequest, existing *billing.Billing) *billing.Billing {
			req.ApplyTo(existing)
			return existing
		},
	}
	return &BillingHandler{
		BaseDocumentHandler: NewBaseDocumentHandler(base, cfg),
		service:             service,
	}
}

// Create handles POST /billings
// from_work_order builds the lines from the work order's billing source.
func (h *BillingHandler) Create(c *gin.Context) {
	var req dto.CreateBillingRequest
	if !h.BindJSON(c, &req) {
		return
	}

	if req.FromWorkOrder {
		b, err := h.service.CreateFromWorkOrder(c.Request.Context(), req.ToEntity().WorkOrder)
		if err != nil {
			h.Error(c, err)
			return
		}
		h.Created(c, b)
		return
	}

	b := req.ToEntity()
	if err := h.service.Create(c.Request.Context(), b); err != nil {
		h.Error(c, err)
		return
	}
	h.Created(c, b)
}

// Approve handles POST /billings/:id/approve
func (h *BillingHandler) Approve(c *gin.Context) {
	billingID, ok := h.ParseID(c)
	if !ok {
		return
	}
	b, err := h.service.Approve(c.Request.Context(), billingID)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, b)
}

// MakeSalesInvoice handles POST /billings/:id/sales-invoice
func (h *BillingHandler) MakeSalesInvoice(c *gin.Context) {
	billingID, ok := h.ParseID(c)
	if !ok {
		return
	}
	inv, err := h.service.MakeSalesInvoice(c.Request.Context(), billingID)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.Created(c, inv)
}

// ValidationSteps handles GET /billings/validation-steps
func (h *BillingHandler) ValidationSteps(c *gin.Context) {
	h.OK(c, gin.H{"steps": h.service.ValidationSteps()})
}
