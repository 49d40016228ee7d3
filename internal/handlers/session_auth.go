package handlers

import (
	"fmt"
	"net/http"
	"slices"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/SAP-F-2025/clinic-service/internal/models"
	"github.com/SAP-F-2025/clinic-service/internal/services"
	"github.com/SAP-F-2025/clinic-service/internal/utils"
)

// SessionAuthMiddleware authenticates requests against live client sessions
type SessionAuthMiddleware struct {
	BaseHandler
	sessions services.SessionService
}

func NewSessionAuthMiddleware(sessions services.SessionService, logger utils.Logger) *SessionAuthMiddleware {
	return &SessionAuthMiddleware{
		BaseHandler: NewBaseHandler(logger),
		sessions:    sessions,
	}
}

// AuthMiddleware resolves the bearer session key and counts the request as user activity
func (sam *SessionAuthMiddleware) AuthMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		token, ok := bearerToken(c.GetHeader("Authorization"))
		if !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, ErrorResponse{
				Message: "authorization header missing or malformed",
			})
			return
		}

		sess, err := sam.sessions.Resolve(c.Request.Context(), token)
		if err != nil {
			sam.handleServiceError(c, err)
			c.Abort()
			return
		}

		// every authenticated call is a qualifying input event
		if err := sess.Touch(); err != nil {
			sam.handleServiceError(c, err)
			c.Abort()
			return
		}

		profile, err := sess.Principal()
		if err != nil {
			sam.handleServiceError(c, err)
			c.Abort()
			return
		}

		c.Set(ctxSession, sess)
		c.Set(ctxUserID, profile.UID)
		c.Set(ctxRole, profile.Role)
		c.Set("session_token", token)
		c.Next()
	}
}

// RequireRoleMiddleware checks the session's verified role
func (sam *SessionAuthMiddleware) RequireRoleMiddleware(requiredRoles ...models.UserRole) gin.HandlerFunc {
	return func(c *gin.Context) {
		role := sessionRole(c)
		if role == "" {
			c.AbortWithStatusJSON(http.StatusForbidden, ErrorResponse{
				Message: "user role not found in context",
			})
			return
		}

		if !slices.Contains(requiredRoles, role) {
			c.AbortWithStatusJSON(http.StatusForbidden, ErrorResponse{
				Message: fmt.Sprintf("insufficient permissions, required role: %v", requiredRoles),
			})
			return
		}

		c.Next()
	}
}

func bearerToken(header string) (string, bool) {
	parts := strings.Fields(header)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") {
		return "", false
	}
	return parts[1], true
}
