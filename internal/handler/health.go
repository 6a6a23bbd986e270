package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"github.com/webapp-auth/backend/internal/config"
	"github.com/webapp-auth/backend/internal/model"
)

type Pinger interface {
	Ping(ctx context.Context) error
}

// Ping is the liveness probe.
func Ping(c *gin.Context) {
	c.JSON(http.StatusOK, model.PingResponse{Message: "pong"})
}

func Root(c *gin.Context) {
	c.JSON(http.StatusOK, model.RootResponse{
		Status:  "ok",
		Message: "webapp auth API is running",
	})
}

// Health godoc
// @Summary Service health
// @Tags health
// @Produce json
// @Success 200 {object} model.HealthResponse
// @Router /api/health [get]
func Health(c *gin.Context) {
	c.JSON(http.StatusOK, model.HealthResponse{
		Status:    "healthy",
		Timestamp: time.Now().UTC().Format(time.RFC3339Nano),
		Version:   config.Version,
	})
}

// Ready godoc
// @Summary Database readiness
// @Tags health
// @Produce json
// @Success 200 {object} model.StatusResponse
// @Failure 503 {object} model.ErrorResponse
// @Router /api/health/ready [get]
func Ready(store Pinger) gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := store.Ping(c.Request.Context()); err != nil {
			logrus.WithError(err).Warn("Readiness check failed")
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": "database unavailable"})
			return
		}
		c.JSON(http.StatusOK, model.StatusResponse{Status: "ready"})
	}
}
