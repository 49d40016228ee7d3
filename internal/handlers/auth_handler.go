package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/SAP-F-2025/clinic-service/internal/services"
	"github.com/SAP-F-2025/clinic-service/internal/utils"
	"github.com/SAP-F-2025/clinic-service/internal/validator"
)

type AuthHandler struct {
	BaseHandler
	sessions  services.SessionService
	validator *validator.Validator
}

func NewAuthHandler(sessions services.SessionService, validator *validator.Validator, logger utils.Logger) *AuthHandler {
	return &AuthHandler{
		BaseHandler: NewBaseHandler(logger),
		sessions:    sessions,
		validator:   validator,
	}
}

// Login signs in and verifies the claimed role
// @Summary Log in
// @Tags auth
// @Accept json
// @Produce json
// @Param credentials body services.LoginRequest true "Email, password and role"
// @Success 200 {object} services.LoginResponse
// @Failure 400 {object} ErrorResponse
// @Failure 401 {object} ErrorResponse
// @Failure 403 {object} ErrorResponse
// @Failure 429 {object} ErrorResponse
// @Router /auth/login [post]
func (h *AuthHandler) Login(c *gin.Context) {
	var req services.LoginRequest
	if !h.bindJSON(c, &req) {
		return
	}

	h.LogRequest(c, "Login attempt", "role", req.Role)

	sess, err := h.sessions.Login(c.Request.Context(), &req)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	snap := sess.Snapshot()
	c.JSON(http.StatusOK, services.LoginResponse{
		Token:   snap.Token,
		Session: snap,
	})
}

// Logout ends the caller's session
// @Summary Log out
// @Tags auth
// @Success 204
// @Router /auth/logout [post]
func (h *AuthHandler) Logout(c *gin.Context) {
	if err := h.sessions.Logout(c.Request.Context(), c.GetString("session_token")); err != nil {
		h.handleServiceError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// GetSession returns the current session snapshot
// @Summary Current session
// @Tags auth
// @Produce json
// @Success 200 {object} models.SessionSnapshot
// @Router /auth/session [get]
func (h *AuthHandler) GetSession(c *gin.Context) {
	sess, ok := h.currentSession(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, sess.Snapshot())
}

// SwitchView changes the dashboard view within the role's view set
// @Summary Switch dashboard view
// @Tags auth
// @Accept json
// @Produce json
// @Param view body services.SwitchViewRequest true "Target view"
// @Success 200 {object} models.SessionSnapshot
// @Failure 400 {object} ErrorResponse
// @Router /auth/session/view [put]
func (h *AuthHandler) SwitchView(c *gin.Context) {
	sess, ok := h.currentSession(c)
	if !ok {
		return
	}

	var req services.SwitchViewRequest
	if !h.bindJSON(c, &req) {
		return
	}
	if err := h.validator.Validate(&req); err != nil {
		h.handleServiceError(c, err)
		return
	}

	if err := sess.SwitchView(req.View); err != nil {
		h.handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, sess.Snapshot())
}

// Activity is a heartbeat for input events that do not otherwise reach the server.
// The auth middleware already re-armed the idle timer.
func (h *AuthHandler) Activity(c *gin.Context) {
	sess, ok := h.currentSession(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"state":         sess.State(),
		"last_activity": sess.Snapshot().LastActivity,
	})
}
