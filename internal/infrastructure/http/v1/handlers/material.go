package handlers

import (
	"github.com/gin-gonic/gin"

	"workshop/internal/domain/material"
	"workshop/internal/infrastructure/http/v1/dto"
)

// MaterialIssueHandler handles HTTP requests for workshop material issues.
type MaterialIssueHandler struct {
	*BaseDocumentHandler[*material.Issue, dto.MaterialIssueRequest, dto.MaterialIssueRequest]
	service *material.IssueService
}

// NewMaterialIssueHandler creates a new material issue handler.
func NewMaterialIssueHandler(base *BaseHandler, service *material.IssueService) *MaterialIssueHandler {
	cfg := BaseDocumentHandlerConfig[*material.Issue, dto.MaterialIssueRequest, dto.MaterialIssueRequest]{
		Service: service,
		MapCreateDTO: func(req dto.MaterialIssueRequest) *material.Issue {
			return req.ToEntity()
		},
		MapUpdateDTO: func(req dto.MaterialIssueRequest, existing *material.Issue) *material.Issue {
			req.ApplyTo(existing)
			return existing
		},
	}
	return &MaterialIssueHandler{
		BaseDocumentHandler: NewBaseDocumentHandler(base, cfg),
		service:             service,
	}
}

type issuablePartsQuery struct {
	Warehouse string `form:"warehouse"`
}

// IssuableParts handles GET /work-orders/:id/issuable-parts?warehouse=
func (h *MaterialIssueHandler) IssuableParts(c *gin.Context) {
	woID, ok := h.ParseID(c)
	if !ok {
		return
	}
	var q issuablePartsQuery
	if !h.BindQuery(c, &q) {
		return
	}
	parts, err := h.service.IssuableParts(c.Request.Context(), woID, q.Warehouse)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, gin.H{"work_order": woID, "parts": parts})
}

// MaterialReturnHandler handles HTTP requests for material returns.
type MaterialReturnHandler struct {
	*BaseDocumentHandler[*material.Return, dto.MaterialReturnRequest, dto.MaterialReturnRequest]
	service *material.ReturnService
}

// NewMaterialReturnHandler creates a new material return handler.
func NewMaterialReturnHandler(base *BaseHandler, service *material.ReturnService) *MaterialReturnHandler {
	cfg := BaseDocumentHandlerConfig[*material.Return, dto.MaterialReturnRequest, dto.MaterialReturnRequest]{
		Service: service,
		MapCreateDTO: func(req dto.MaterialReturnRequest) *material.Return {
			return req.ToEntity()
		},
		MapUpdateDTO: func(req dto.MaterialReturnRequest, existing *material.Return) *material.Return {
			req.ApplyTo(existing)
			return existing
		},
	}
	return &MaterialReturnHandler{
		BaseDocumentHandler: NewBaseDocumentHandler(base, cfg),
		service:             service,
	}
}

// ReturnableParts handles GET /work-orders/:id/returnable-parts
func (h *MaterialReturnHandler) ReturnableParts(c *gin.Context) {
	woID, ok := h.ParseID(c)
	if !ok {
		return
	}
	parts, err := h.service.ReturnableParts(c.Request.Context(), woID)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, gin.H{"work_order": woID, "parts": parts})
}
