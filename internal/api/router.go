package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"intel-correlation-service/internal/config"
)

func NewRouter(h *Handler, ws *WebSocketManager, cfg config.Config, logger *logrus.Logger) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(RequestLoggingMiddleware(logger))

	api := r.Group(cfg.API.BasePath)
	{
		// Jobs
		api.POST("/trigger/:kind", h.TriggerJob)
		api.GET("/status", h.GetStatus)
		api.GET("/job-events", h.ListJobEvents)
		api.POST("/job-events/test-send", h.TestSend)

		// Settings
		api.GET("/schedule", h.GetSettings)
		api.PUT("/schedule", h.UpdateSettings)

		// Threats
		api.GET("/threats", h.ListThreats)
		api.POST("/threats/:id/acknowledge", h.AcknowledgeThreat)
		api.POST("/threats/:id/resolve", h.ResolveThreat)

		// Live job event stream
		api.GET("/ws/events", h.StreamEvents(ws))
	}

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	return r
}
