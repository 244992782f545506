package transport

import (
	"net/http"
	"time"

	"ticket-office/internal/transport/middleware"

	"github.com/gin-gonic/gin"
)

func InitRoutes(eventHandler *EventHandler, orderHandler *OrderHandler) *gin.Engine {

	router := gin.New()

	router.Use(func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Content-Type, Idempotency-Key")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	})

	// Middleware
	router.Use(gin.Recovery())
	router.Use(middleware.Logger())
	router.Use(middleware.Timeout(30))

	// API routes
	api := router.Group("/api/v1")
	{
		// Event routes
		events := api.Group("/events")
		{
			events.POST("", eventHandler.CreateEvent)
			events.GET("", eventHandler.GetAllEvents)
			events.GET("/upcoming", eventHandler.GetUpcomingEvents)
			events.GET("/:id", eventHandler.GetEvent)
			events.PUT("/:id", eventHandler.UpdateEvent)
			events.DELETE("/:id", eventHandler.DeleteEvent)
			events.POST("/:id/publish", eventHandler.PublishEvent)
			events.POST("/:id/cancel", eventHandler.CancelEvent)
			events.GET("/:id/orders", eventHandler.GetEventOrders)
			events.GET("/:id/stats", eventHandler.GetEventStats)
		}

		// Order routes
		orders := api.Group("/orders")
		{
			orders.POST("", orderHandler.PurchaseTickets)
			orders.GET("", orderHandler.GetOrders)
			orders.GET("/:id", orderHandler.GetOrder)
			orders.POST("/:id/cancel", orderHandler.CancelOrder)
		}

		// Admin routes
		admin := api.Group("/admin")
		{
			admin.POST("/orders/:id/refund", orderHandler.MarkRefunded)
		}
	}

	// Health check
	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":    "ok",
			"timestamp": time.Now().Format(time.RFC3339),
		})
	})

	return router
}
