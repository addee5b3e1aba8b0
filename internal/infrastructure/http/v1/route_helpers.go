package v1

import (
	"github.com/gin-gonic/gin"
)

// ReferenceRouteHandler defines the endpoints served for reference allocation.
type ReferenceRouteHandler interface {
	AllocateAsli(c *gin.Context)
	AllocateExterna(c *gin.Context)
	Allocate(c *gin.Context)
	Preview(c *gin.Context)
	ListSchemes(c *gin.Context)
}

// RegisterReferenceRoutes registers allocation routes on group. The named routes
// keep the response shape of the legacy clients; /:scheme serves configured schemes.
func RegisterReferenceRoutes(group *gin.RouterGroup, handler ReferenceRouteHandler) {
	group.GET("/schemes", handler.ListSchemes)
	group.POST("/asli", handler.AllocateAsli)
	group.POST("/externa", handler.AllocateExterna)
	group.POST("/:scheme", handler.Allocate)
	group.GET("/:scheme/preview", handler.Preview)
}
