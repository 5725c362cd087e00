package handlers

import (
	"github.com/gin-gonic/gin"

	"workshop/internal/domain/opname"
	"workshop/internal/infrastructure/http/v1/dto"
)

// OpnameHandler handles HTTP requests for stock opnames.
type OpnameHandler struct {
	*BaseDocumentHandler[*opname.Opname, dto.OpnameRequest, dto.OpnameRequest]
	service *opname.Service
}

// NewOpnameHandler creates a new opname handler.
func NewOpnameHandler(base *BaseHandler, service *opname.Service) *OpnameHandler {
	cfg := BaseDocumentHandlerConfig[*opname.Opname, dto.OpnameRequest, dto.OpnameRequest]{
		Service: service,
		MapCreateDTO: func(req dto.OpnameRequest) *opname.Opname {
			return req.ToEntity()
		},
		MapUpdateDTO: func(req dto.OpnameRequest, existing *opname.Opname) *opname.Opname {
			req.ApplyTo(existing)
			return existing
		},
	}
	return &OpnameHandler{
		BaseDocumentHandler: NewBaseDocumentHandler(base, cfg),
		service:             service,
	}
}

// CreateAdjustment handles POST /opnames/:id/adjustment
func (h *OpnameHandler) CreateAdjustment(c *gin.Context) {
	opnameID, ok := h.ParseID(c)
	if !ok {
		return
	}
	ref, err := h.service.CreateAdjustment(c.Request.Context(), opnameID)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.Created(c, ref)
}

// Variance handles GET /opnames/:id/variance
func (h *OpnameHandler) Variance(c *gin.Context) {
	opnameID, ok := h.ParseID(c)
	if !ok {
		return
	}
	lines, err := h.service.Variance(c.Request.Context(), opnameID)
	if err != nil {
		h.Error(c, err)
		return
	}
	if lines == nil {
		lines = []opname.VarianceLine{}
	}
	h.OK(c, dto.VarianceResponse{Opname: opnameID.String(), Lines: lines})
}
