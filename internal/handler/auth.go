package handler

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"github.com/webapp-auth/backend/internal/model"
	"github.com/webapp-auth/backend/internal/observability"
	"github.com/webapp-auth/backend/internal/service"
)

type AuthHandler struct {
	svc     *service.AuthService
	metrics *observability.Metrics
}

func NewAuthHandler(svc *service.AuthService, metrics *observability.Metrics) *AuthHandler {
	return &AuthHandler{svc: svc, metrics: metrics}
}

// Login godoc
// @Summary Login
// @Tags auth
// @Accept json
// @Produce json
// @Param request body model.LoginRequest true "Username and password"
// @Success 200 {object} model.LoginResponse
// @Failure 400 {object} model.ErrorResponse
// @Failure 401 {object} model.ErrorResponse
// @Failure 500 {object} model.ErrorResponse
// @Router /api/login [post]
func (h *AuthHandler) Login(c *gin.Context) {
	var req model.LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil || strings.TrimSpace(req.Username) == "" || req.Password == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Username and password required"})
		return
	}

	result, err := h.svc.Authenticate(c.Request.Context(), req.Username, req.Password)
	if err != nil {
		logrus.WithError(err).Error("Login failed")
		h.metrics.LoginAttemptsTotal.WithLabelValues(observability.LoginError).Inc()
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
		return
	}

	if !result.Success {
		logrus.WithField("username", req.Username).Info("Rejected login")
		h.metrics.LoginAttemptsTotal.WithLabelValues(observability.LoginFailure).Inc()
		c.JSON(http.StatusUnauthorized, gin.H{"error": result.Error})
		return
	}

	h.metrics.LoginAttemptsTotal.WithLabelValues(observability.LoginSuccess).Inc()
	c.JSON(http.StatusOK, model.LoginResponse{
		Message: "Login successful",
		Token:   result.Token,
		Expires: result.Expires.Format(time.RFC3339),
	})
}

// Logout godoc
// @Summary Logout
// @Description Deletes the session behind the bearer token.
// @Tags auth
// @Produce json
// @Security BearerAuth
// @Success 200 {object} model.LogoutResponse
// @Failure 401 {object} model.ErrorResponse
// @Router /api/logout [post]
func (h *AuthHandler) Logout(c *gin.Context) {
	user := GetAuthUser(c)
	if user == nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	if err := h.svc.Logout(c.Request.Context(), user.Token); err != nil {
		logrus.WithError(err).Error("Logout failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
		return
	}
	c.JSON(http.StatusOK, model.LogoutResponse{Status: "logged_out"})
}

// Me godoc
// @Summary Get current user
// @Tags auth
// @Produce json
// @Security BearerAuth
// @Success 200 {object} model.MeResponse
// @Failure 401 {object} model.ErrorResponse
// @Router /api/me [get]
func (h *AuthHandler) Me(c *gin.Context) {
	user := GetAuthUser(c)
	if user == nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}
	c.JSON(http.StatusOK, model.MeResponse{
		UserID:   user.ID,
		Username: user.Username,
	})
}
