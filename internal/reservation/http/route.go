package http

import (
	"github.com/gin-gonic/gin"
)

// RegisterRoutes mounts the reservation endpoints. writeLimit guards the endpoints that
// run a full conflict check.
func RegisterRoutes(g *gin.RouterGroup, h *Handler, authMiddleware, writeLimit gin.HandlerFunc) {
	reservations := g.Group("/reservations")
	reservations.Use(authMiddleware)
	{
		reservations.GET("", h.List)
		reservations.GET("/:id", h.Get)
		reservations.POST("", writeLimit, h.Create)
		reservations.POST("/validate", writeLimit, h.Validate)
		reservations.POST("/:id/cancel", h.Cancel)
		reservations.POST("/:id/reschedule", writeLimit, h.Reschedule)
	}

	groups := g.Group("/reservation-groups")
	groups.Use(authMiddleware)
	{
		groups.GET("/:id/total", h.GroupTotal)
	}

	courts := g.Group("/courts")
	courts.Use(authMiddleware)
	{
		courts.GET("/:id/availability", h.Availability)
	}
}
