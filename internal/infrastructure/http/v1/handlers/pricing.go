package handlers

import (
	"github.com/gin-gonic/gin"

	"workshop/internal/core/apperror"
	"workshop/internal/domain/pricing"
	"workshop/internal/infrastructure/http/v1/dto"
)

// PriceHandler handles service price maintenance and rate lookups.
type PriceHandler struct {
	*BaseDocumentHandler[*pricing.ServicePrice, dto.ServicePriceRequest, dto.UpdateServicePriceRequest]
	service *pricing.Service
}

// NewPriceHandler creates a new price handler.
func NewPriceHandler(base *BaseHandler, service *pricing.Service) *PriceHandler {
	cfg := BaseDocumentHandlerConfig[*pricing.ServicePrice, dto.ServicePriceRequest, dto.UpdateServicePriceRequest]{
		Service: service,
		MapCreateDTO: func(req dto.ServicePriceRequest) *pricing.ServicePrice {
			return req.ToEntity()
		},
		MapUpdateDTO: func(req dto.UpdateServicePriceRequest, existing *pricing.ServicePrice) *pricing.ServicePrice {
			req.ApplyTo(existing)
			return existing
		},
	}
	return &PriceHandler{
		BaseDocumentHandler: NewBaseDocumentHandler(base, cfg),
		service:             service,
	}
}

// Resolve handles GET /prices/resolve
func (h *PriceHandler) Resolve(c *gin.Context) {
	var q dto.ResolvePriceQuery
	if !h.BindQuery(c, &q) {
		return
	}
	date, err := q.Date()
	if err != nil {
		h.Error(c, apperror.NewValidation(err.Error()).WithDetail("field", "posting_date"))
		return
	}

	res, err := h.service.Resolve(c.Request.Context(), q.Reference(), q.PriceList, date)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, res)
}

// Activate handles POST /prices/:id/activate
func (h *PriceHandler) Activate(c *gin.Context) {
	ctx := c.Request.Context()
	priceID, ok := h.ParseID(c)
	if !ok {
		return
	}

	deactivated, err := h.service.Activate(ctx, priceID)
	if err != nil {
		h.Error(c, err)
		return
	}
	p, err := h.service.GetByID(ctx, priceID)
	if err != nil {
		h.Error(c, err)
		return
	}

	resp := dto.ActivateResponse{Price: p, Deactivated: make([]string, 0, len(deactivated))}
	for _, d := range deactivated {
		resp.Deactivated = append(resp.Deactivated, d.String())
	}
	h.OK(c, resp)
}

// Delete handles DELETE /prices/:id
func (h *PriceHandler) Delete(c *gin.Context) {
	priceID, ok := h.ParseID(c)
	if !ok {
		return
	}
	warning, err := h.service.Delete(c.Request.Context(), priceID)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, dto.DeletePriceResponse{Success: true, Warning: warning})
}
