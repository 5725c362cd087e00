package handlers

import (
	"context"

	"github.com/gin-gonic/gin"

	"workshop/internal/core/apperror"
	"workshop/internal/core/id"
	"workshop/internal/domain"
	"workshop/internal/domain/audit"
	"workshop/internal/infrastructure/http/v1/dto"
)

// DocumentService is the part of a document service every document handler needs.
type DocumentService[T any] interface {
	GetByID(ctx context.Context, id id.ID) (T, error)
	List(ctx context.Context, f domain.ListFilter) (domain.ListResult[T], error)
	Create(ctx context.Context, doc T) error
	Update(ctx context.Context, doc T) error
}

// Submitter is implemented by services whose documents can be submitted.
type Submitter[T any] interface {
	Submit(ctx context.Context, id id.ID) (T, error)
}

// Canceller is implemented by services whose documents can be cancelled.
type Canceller[T any] interface {
	Cancel(ctx context.Context, id id.ID) (T, error)
}

// HistoryReader is implemented by services that keep a document history.
type HistoryReader interface {
	History(ctx context.Context, id id.ID, limit int) ([]audit.Entry, error)
}

// DocumentActions are the optional lifecycle routes of a document.
// A nil handler means the document does not support the action.
type DocumentActions struct {
	Submit  gin.HandlerFunc
	Cancel  gin.HandlerFunc
	History gin.HandlerFunc
}

// BaseDocumentHandler provides generic HTTP handlers for document entities.
type BaseDocumentHandler[T any, CreateDTO any, UpdateDTO any] struct {
	*BaseHandler
	service DocumentService[T]

	mapCreateDTO func(dto CreateDTO) T
	mapUpdateDTO func(dto UpdateDTO, existing T) T
}

// BaseDocumentHandlerConfig configures the document handler.
type BaseDocumentHandlerConfig[T any, CreateDTO any, UpdateDTO any] struct {
	Service      DocumentService[T]
	MapCreateDTO func(dto CreateDTO) T
	MapUpdateDTO func(dto UpdateDTO, existing T) T
}

// NewBaseDocumentHandler creates a new base document handler.
func NewBaseDocumentHandler[T any, CreateDTO any, UpdateDTO any](
	base *BaseHandler,
	cfg BaseDocumentHandlerConfig[T, CreateDTO, UpdateDTO],
) *BaseDocumentHandler[T, CreateDTO, UpdateDTO] {
	return &BaseDocumentHandler[T, CreateDTO, UpdateDTO]{
		BaseHandler:  base,
		service:      cfg.Service,
		mapCreateDTO: cfg.MapCreateDTO,
		mapUpdateDTO: cfg.MapUpdateDTO,
	}
}

// Get handles GET /{entity}/:id
func (h *BaseDocumentHandler[T, CreateDTO, UpdateDTO]) Get(c *gin.Context) {
	docID, ok := h.ParseID(c)
	if !ok {
		return
	}

	doc, err := h.service.GetByID(c.Request.Context(), docID)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, doc)
}

// List handles GET /{entity}
func (h *BaseDocumentHandler[T, CreateDTO, UpdateDTO]) List(c *gin.Context) {
	var q dto.ListQuery
	if !h.BindQuery(c, &q) {
		return
	}
	f, err := q.ToFilter()
	if err != nil {
		h.Error(c, apperror.NewValidation(err.Error()))
		return
	}

	res, err := h.service.List(c.Request.Context(), f)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, res)
}

// Create handles POST /{entity}
func (h *BaseDocumentHandler[T, CreateDTO, UpdateDTO]) Create(c *gin.Context) {
	var req CreateDTO
	if !h.BindJSON(c, &req) {
		return
	}

	doc := h.mapCreateDTO(req)
	if err := h.service.Create(c.Request.Context(), doc); err != nil {
		h.Error(c, err)
		return
	}
	h.Created(c, doc)
}

// Update handles PUT /{entity}/:id
// The request carries the version it was based on.
func (h *BaseDocumentHandler[T, CreateDTO, UpdateDTO]) Update(c *gin.Context) {
	ctx := c.Request.Context()

	docID, ok := h.ParseID(c)
	if !ok {
		return
	}

	var req UpdateDTO
	if !h.BindJSON(c, &req) {
		return
	}

	doc, err := h.service.GetByID(ctx, docID)
	if err != nil {
		h.Error(c, err)
		return
	}

	doc = h.mapUpdateDTO(req, doc)
	if err := h.service.Update(ctx, doc); err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, doc)
}

// Actions returns the lifecycle routes the service supports.
func (h *BaseDocumentHandler[T, CreateDTO, UpdateDTO]) Actions() DocumentActions {
	var a DocumentActions
	if s, ok := h.service.(Submitter[T]); ok {
		a.Submit = h.transition(s.Submit)
	}
	if s, ok := h.service.(Canceller[T]); ok {
		a.Cancel = h.transition(s.Cancel)
	}
	if s, ok := h.service.(HistoryReader); ok {
		a.History = h.history(s)
	}
	return a
}

// transition handles POST /{entity}/:id/{action}
func (h *BaseDocumentHandler[T, CreateDTO, UpdateDTO]) transition(
	fn func(ctx context.Context, id id.ID) (T, error),
) gin.HandlerFunc {
	return func(c *gin.Context) {
		docID, ok := h.ParseID(c)
		if !ok {
			return
		}
		doc, err := fn(c.Request.Context(), docID)
		if err != nil {
			h.Error(c, err)
			return
		}
		h.OK(c, doc)
	}
}

// history handles GET /{entity}/:id/history
func (h *BaseDocumentHandler[T, CreateDTO, UpdateDTO]) history(s HistoryReader) gin.HandlerFunc {
	return func(c *gin.Context) {
		docID, ok := h.ParseID(c)
		if !ok {
			return
		}
		var q dto.HistoryQuery
		if !h.BindQuery(c, &q) {
			return
		}
		if q.Limit == 0 {
			q.Limit = 50
		}
		entries, err := s.History(c.Request.Context(), docID, q.Limit)
		if err != nil {
			h.Error(c, err)
			return
		}
		h.OK(c, gin.H{"items": entries})
	}
}
