package handlers

import (
	"github.com/gin-gonic/gin"

	"workshop/internal/domain/catalog"
)

// CatalogHandler serves part lookups.
type CatalogHandler struct {
	*BaseHandler
	service *catalog.Service
}

// NewCatalogHandler creates a new catalog handler.
func NewCatalogHandler(base *BaseHandler, service *catalog.Service) *CatalogHandler {
	return &CatalogHandler{BaseHandler: base, service: service}
}

// PartFromBarcode handles GET /parts/barcode/:barcode
// An unknown barcode answers an empty object.
func (h *CatalogHandler) PartFromBarcode(c *gin.Context) {
	match, err := h.service.GetPartFromBarcode(c.Request.Context(), c.Param("barcode"))
	if err != nil {
		h.Error(c, err)
		return
	}
	if match == nil {
		h.OK(c, gin.H{})
		return
	}
	h.OK(c, match)
}

// ListParts handles GET /parts
func (h *CatalogHandler) ListParts(c *gin.Context) {
	var q struct {
		Search string `form:"search"`
		Limit  int    `form:"limit" binding:"omitempty,min=1,max=500"`
		Offset int    `form:"offset" binding:"omitempty,min=0"`
	}
	if !h.BindQuery(c, &q) {
		return
	}
	if q.Limit == 0 {
		q.Limit = 50
	}
	parts, err := h.service.ListParts(c.Request.Context(), q.Search, q.Limit, q.Offset)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, gin.H{"items": parts})
}

// GetPart handles GET /parts/:code
func (h *CatalogHandler) GetPart(c *gin.Context) {
	part, err := h.service.GetPart(c.Request.Context(), c.Param("code"))
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, part)
}

// LinkItem handles PUT /catalog/item-link
func (h *CatalogHandler) LinkItem(c *gin.Context) {
	var req struct {
		ReferenceType string `json:"reference_type" binding:"required"`
		ReferenceName string `json:"reference_name" binding:"required"`
		ItemCode      string `json:"item_code"`
	}
	if !h.BindJSON(c, &req) {
		return
	}
	kind, err := catalog.ParseReferenceKind(req.ReferenceType)
	if err != nil {
		h.Error(c, err)
		return
	}
	ref := catalog.Ref(kind, req.ReferenceName)
	if err := h.service.LinkItem(c.Request.Context(), ref, req.ItemCode); err != nil {
		h.Error(c, err)
		return
	}
	itemCode, err := h.service.ItemCode(c.Request.Context(), ref)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, gin.H{"reference": ref, "item_code": itemCode})
}
