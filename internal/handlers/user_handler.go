package handlers

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/SAP-F-2025/clinic-service/internal/models"
	"github.com/SAP-F-2025/clinic-service/internal/repositories"
	"github.com/SAP-F-2025/clinic-service/internal/services"
	"github.com/SAP-F-2025/clinic-service/internal/utils"
)

// UserHandler serves the admin dashboard: staff and student registration, user administration
type UserHandler struct {
	BaseHandler
	users    services.UserService
	students services.StudentService
}

func NewUserHandler(users services.UserService, students services.StudentService, logger utils.Logger) *UserHandler {
	return &UserHandler{
		BaseHandler: NewBaseHandler(logger),
		users:       users,
		students:    students,
	}
}

// RegisterSupervisor creates a supervisor identity and profile
// @Summary Register supervisor
// @Tags admin
// @Accept json
// @Produce json
// @Param supervisor body services.RegisterSupervisorRequest true "Supervisor data"
// @Success 201 {object} models.UserProfile
// @Failure 400 {object} ErrorResponse
// @Failure 409 {object} ErrorResponse
// @Router /admin/supervisors [post]
func (h *UserHandler) RegisterSupervisor(c *gin.Context) {
	var req services.RegisterSupervisorRequest
	if !h.bindJSON(c, &req) {
		return
	}

	h.LogRequest(c, "Registering supervisor", "staff_id", req.StaffID)

	profile, err := h.users.RegisterSupervisor(c.Request.Context(), &req)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusCreated, profile)
}

// RegisterClinicStaff creates a clinic staff identity and profile
// @Summary Register clinic staff
// @Tags admin
// @Accept json
// @Produce json
// @Param staff body services.RegisterClinicStaffRequest true "Clinic staff data"
// @Success 201 {object} models.UserProfile
// @Failure 400 {object} ErrorResponse
// @Failure 409 {object} ErrorResponse
// @Router /admin/clinic-staff [post]
func (h *UserHandler) RegisterClinicStaff(c *gin.Context) {
	var req services.RegisterClinicStaffRequest
	if !h.bindJSON(c, &req) {
		return
	}

	h.LogRequest(c, "Registering clinic staff", "staff_id", req.StaffID)

	profile, err := h.users.RegisterClinicStaff(c.Request.Context(), &req)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusCreated, profile)
}

// RegisterStudent adds a student record
// @Summary Register student
// @Tags admin
// @Accept json
// @Produce json
// @Param student body services.RegisterStudentRequest true "Student data"
// @Success 201 {object} models.Student
// @Failure 400 {object} ErrorResponse
// @Failure 409 {object} ErrorResponse
// @Router /admin/students [post]
func (h *UserHandler) RegisterStudent(c *gin.Context) {
	var req services.RegisterStudentRequest
	if !h.bindJSON(c, &req) {
		return
	}

	h.LogRequest(c, "Registering student", "student_id", req.StudentID)

	student, err := h.students.Register(c.Request.Context(), &req)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusCreated, student)
}

// ListUsers lists user profiles, newest first
// @Summary List users
// @Tags admin
// @Produce json
// @Param page query int false "Page number (default: 1)"
// @Param size query int false "Page size (default: 50, max: 500)"
// @Param role query string false "Comma separated roles (admin, supervisor, clinic)"
// @Success 200 {object} map[string]interface{}
// @Router /admin/users [get]
func (h *UserHandler) ListUsers(c *gin.Context) {
	h.LogRequest(c, "Listing users")

	filters := h.parseUserFilters(c)
	resp, err := h.users.List(c.Request.Context(), filters)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	page := (filters.Offset / max(filters.Limit, 1)) + 1
	c.JSON(http.StatusOK, gin.H{
		"users": resp.Users,
		"total": resp.Total,
		"page":  page,
		"size":  filters.Limit,
	})
}

// ToggleBlocked flips the blocked flag; blocking ends the user's live sessions
// @Summary Block or unblock user
// @Tags admin
// @Produce json
// @Param uid path string true "User ID"
// @Success 200 {object} models.UserProfile
// @Failure 403 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Router /admin/users/{uid}/block [post]
func (h *UserHandler) ToggleBlocked(c *gin.Context) {
	actor, ok := h.currentUserID(c)
	if !ok {
		return
	}
	uid := c.Param("uid")

	h.LogRequest(c, "Toggling user block", "uid", uid)

	profile, err := h.users.ToggleBlocked(c.Request.Context(), actor, uid)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, profile)
}

// DeleteUser removes a user profile and revokes their sessions
// @Summary Delete user
// @Tags admin
// @Param uid path string true "User ID"
// @Success 204
// @Failure 403 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Router /admin/users/{uid} [delete]
func (h *UserHandler) DeleteUser(c *gin.Context) {
	actor, ok := h.currentUserID(c)
	if !ok {
		return
	}
	uid := c.Param("uid")

	h.LogRequest(c, "Deleting user", "uid", uid)

	if err := h.users.Delete(c.Request.Context(), actor, uid); err != nil {
		h.handleServiceError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// ===== HELPER METHODS =====

func (h *UserHandler) parseUserFilters(c *gin.Context) repositories.UserFilters {
	page := 1
	size := 50

	if pageStr := c.Query("page"); pageStr != "" {
		if p, err := strconv.Atoi(pageStr); err == nil && p > 0 {
			page = p
		}
	}
	if sizeStr := c.Query("size"); sizeStr != "" {
		if s, err := strconv.Atoi(sizeStr); err == nil && s > 0 && s <= 500 {
			size = s
		}
	}

	filters := repositories.UserFilters{
		Limit:  size,
		Offset: (page - 1) * size,
	}
	if roles := c.Query("role"); roles != "" {
		for _, r := range strings.Split(roles, ",") {
			if role := models.UserRole(strings.TrimSpace(r)); role.IsValid() {
				filters.Roles = append(filters.Roles, role)
			}
		}
	}
	return filters
}
