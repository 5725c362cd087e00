// Package v1 provides HTTP API version 1.
package v1

import (
	"github.com/gin-gonic/gin"

	"workshop/internal/infrastructure/http/v1/handlers"
	"workshop/internal/infrastructure/http/v1/middleware"
)

// DocumentRouteHandler defines the interface for document handlers.
type DocumentRouteHandler interface {
	List(c *gin.Context)
	Create(c *gin.Context)
	Get(c *gin.Context)
	Update(c *gin.Context)
	Actions() handlers.DocumentActions
}

// RegisterDocumentRoutes registers CRUD routes for a document plus the
// lifecycle routes its service supports. Permissions are resource:read,
// resource:write and resource:submit.
//
// Usage:
//
//	handler := handlers.NewOpnameHandler(baseHandler, opnameService)
//	RegisterDocumentRoutes(api.Group("/opnames"), handler, "stock")
func RegisterDocumentRoutes(group *gin.RouterGroup, handler DocumentRouteHandler, resource string) {
	read := middleware.RequirePermission(resource + ":read")
	write := middleware.RequirePermission(resource + ":write")
	submit := middleware.RequirePermission(resource + ":submit")

	group.GET("", read, handler.List)
	group.POST("", write, handler.Create)
	group.GET("/:id", read, handler.Get)
	group.PUT("/:id", write, handler.Update)

	actions := handler.Actions()
	if actions.Submit != nil {
		group.POST("/:id/submit", submit, actions.Submit)
	}
	if actions.Cancel != nil {
		group.POST("/:id/cancel", submit, actions.Cancel)
	}
	if actions.History != nil {
		group.GET("/:id/history", read, actions.History)
	}
}
