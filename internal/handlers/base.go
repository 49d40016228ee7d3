package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/SAP-F-2025/clinic-service/internal/models"
	"github.com/SAP-F-2025/clinic-service/internal/observability"
	"github.com/SAP-F-2025/clinic-service/internal/services"
	"github.com/SAP-F-2025/clinic-service/internal/utils"
	"github.com/SAP-F-2025/clinic-service/internal/validator"
)

// Context keys set by the session middleware
const (
	ctxUserID  = "user_id"
	ctxRole    = "user_role"
	ctxSession = "session"
)

type ErrorResponse struct {
	Message string      `json:"message"`
	Details interface{} `json:"details,omitempty"`
	Notice  string      `json:"notice,omitempty"`
}

type BaseHandler struct {
	logger utils.Logger
}

func NewBaseHandler(logger utils.Logger) BaseHandler {
	return BaseHandler{logger: logger}
}

func (h BaseHandler) LogRequest(c *gin.Context, msg string, args ...any) {
	utils.GinLogger(c, h.logger).Debug(msg, args...)
}

func (h BaseHandler) LogError(c *gin.Context, err error, msg string, args ...any) {
	args = append(args, "error", err)
	utils.GinLogger(c, h.logger).Error(msg, args...)
}

// bindJSON writes a 400 and returns false when the body does not decode
func (h BaseHandler) bindJSON(c *gin.Context, dst interface{}) bool {
	if err := c.ShouldBindJSON(dst); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Message: "Invalid request payload",
			Details: err.Error(),
		})
		return false
	}
	return true
}

// currentSession returns the session attached by SessionAuth
func (h BaseHandler) currentSession(c *gin.Context) (*services.Session, bool) {
	v, exists := c.Get(ctxSession)
	if !exists {
		c.JSON(http.StatusUnauthorized, ErrorResponse{
			Message: "User not authenticated",
		})
		return nil, false
	}
	return v.(*services.Session), true
}

func (h BaseHandler) currentUserID(c *gin.Context) (string, bool) {
	uid := c.GetString(ctxUserID)
	if uid == "" {
		c.JSON(http.StatusUnauthorized, ErrorResponse{
			Message: "User not authenticated",
		})
		return "", false
	}
	return uid, true
}

func (h BaseHandler) handleServiceError(c *gin.Context, err error) {
	var ended *services.SessionEndedError
	var verrs validator.ValidationErrors

	switch {
	case errors.As(err, &ended):
		c.JSON(http.StatusUnauthorized, ErrorResponse{
			Message: "Session ended",
			Notice:  ended.Notice(),
		})
	case errors.As(err, &verrs):
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Message: "Validation failed",
			Details: verrs,
		})
	case errors.Is(err, services.ErrValidationFailed):
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Message: "Validation failed",
			Details: err.Error(),
		})
	case errors.Is(err, services.ErrInvalidView):
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Message: "View not available for this role",
		})
	case errors.Is(err, services.ErrInvalidTransition):
		c.JSON(http.StatusConflict, ErrorResponse{
			Message: "Session is not in a state that allows this action",
		})
	case errors.Is(err, services.ErrAuthFailed):
		c.JSON(http.StatusUnauthorized, ErrorResponse{
			Message: "Invalid email or password",
		})
	case errors.Is(err, services.ErrUnauthorized):
		c.JSON(http.StatusUnauthorized, ErrorResponse{
			Message: "Unauthorized",
		})
	case errors.Is(err, services.ErrProfileMissing):
		c.JSON(http.StatusForbidden, ErrorResponse{
			Message: "No profile exists for this account",
		})
	case errors.Is(err, services.ErrAccountBlocked):
		c.JSON(http.StatusForbidden, ErrorResponse{
			Message: "Account is blocked",
		})
	case errors.Is(err, services.ErrRoleMismatch):
		c.JSON(http.StatusForbidden, ErrorResponse{
			Message: "Account does not have the selected role",
		})
	case errors.Is(err, services.ErrForbidden):
		c.JSON(http.StatusForbidden, ErrorResponse{
			Message: "Forbidden",
		})
	case errors.Is(err, services.ErrStudentNotFound):
		c.JSON(http.StatusNotFound, ErrorResponse{
			Message: "Student not found",
		})
	case errors.Is(err, services.ErrStationNotFound):
		c.JSON(http.StatusNotFound, ErrorResponse{
			Message: "Station not found",
		})
	case errors.Is(err, services.ErrUserNotFound):
		c.JSON(http.StatusNotFound, ErrorResponse{
			Message: "User not found",
		})
	case errors.Is(err, services.ErrNotFound):
		c.JSON(http.StatusNotFound, ErrorResponse{
			Message: "Not found",
		})
	case errors.Is(err, services.ErrConflict):
		c.JSON(http.StatusConflict, ErrorResponse{
			Message: "Conflict",
			Details: err.Error(),
		})
	case errors.Is(err, services.ErrSubscription):
		h.LogError(c, err, "Room subscription failed")
		c.JSON(http.StatusBadGateway, ErrorResponse{
			Message: "Live room unavailable",
		})
	default:
		h.LogError(c, err, "Unexpected service error")
		observability.CaptureRequestErr(err, c.GetString("request_id"), c.FullPath())
		c.JSON(http.StatusInternalServerError, ErrorResponse{
			Message: "Internal server error",
		})
	}
}

// sessionRole is the verified role of the request's session
func sessionRole(c *gin.Context) models.UserRole {
	if v, ok := c.Get(ctxRole); ok {
		if role, ok := v.(models.UserRole); ok {
			return role
		}
	}
	return ""
}
