package handlers

import (
	"github.com/gin-gonic/gin"

	"workshop/internal/core/entity"
	"workshop/internal/domain/registers/stock"
	"workshop/internal/infrastructure/http/v1/dto"
)

// StockHandler handles HTTP requests for the stock register.
type StockHandler struct {
	*BaseHandler
	service *stock.Service
}

// NewStockHandler creates a new stock register handler.
func NewStockHandler(base *BaseHandler, service *stock.Service) *StockHandler {
	return &StockHandler{
		BaseHandler: base,
		service:     service,
	}
}

// GetBalances handles GET /stock/balances?warehouse=
func (h *StockHandler) GetBalances(c *gin.Context) {
	var q dto.BalanceQuery
	if !h.BindQuery(c, &q) {
		return
	}
	balances, err := h.service.Balances(c.Request.Context(), q.Warehouse, q.ToFilter())
	if err != nil {
		h.Error(c, err)
		return
	}
	if balances == nil {
		balances = []entity.StockBalance{}
	}
	h.OK(c, gin.H{"items": balances})
}

// GetEntry handles GET /stock/entries/:id
func (h *StockHandler) GetEntry(c *gin.Context) {
	entryID, ok := h.ParseID(c)
	if !ok {
		return
	}
	e, err := h.service.GetEntry(c.Request.Context(), entryID)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, e)
}

// GetMovements handles GET /stock/entries/:id/movements
func (h *StockHandler) GetMovements(c *gin.Context) {
	entryID, ok := h.ParseID(c)
	if !ok {
		return
	}
	moves, err := h.service.Movements(c.Request.Context(), entryID)
	if err != nil {
		h.Error(c, err)
		return
	}
	if moves == nil {
		moves = []entity.StockMovement{}
	}
	h.OK(c, gin.H{"items": moves})
}

// CheckCancellation handles GET /stock/entries/:id/cancellation
func (h *StockHandler) CheckCancellation(c *gin.Context) {
	entryID, ok := h.ParseID(c)
	if !ok {
		return
	}
	el, err := h.service.CheckCancellation(c.Request.Context(), entryID)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, el)
}

// CancelEntry handles POST /stock/entries/:id/cancel
// Only entries not owned by another document can be cancelled here.
func (h *StockHandler) CancelEntry(c *gin.Context) {
	entryID, ok := h.ParseID(c)
	if !ok {
		return
	}
	if err := h.service.CancelStandalone(c.Request.Context(), entryID); err != nil {
		h.Error(c, err)
		return
	}
	h.NoContent(c)
}
