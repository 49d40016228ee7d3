package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/SAP-F-2025/clinic-service/internal/models"
	"github.com/SAP-F-2025/clinic-service/internal/services"
	"github.com/SAP-F-2025/clinic-service/internal/utils"
	"github.com/SAP-F-2025/clinic-service/internal/validator"
)

type HandlerManager struct {
	authHandler    *AuthHandler
	userHandler    *UserHandler
	studentHandler *StudentHandler
	stationHandler *StationHandler
	chatHandler    *ChatHandler
	healthHandler  *HealthHandler
	authMiddleware *SessionAuthMiddleware
	loginLimiter   *RateLimiter
	metricsHandler http.Handler
}

func NewHandlerManager(
	serviceManager services.ServiceManager,
	validator *validator.Validator,
	logger utils.Logger,
	loginLimiter *RateLimiter,
	metricsHandler http.Handler,
) *HandlerManager {
	return &HandlerManager{
		authHandler:    NewAuthHandler(serviceManager.Session(), validator, logger),
		userHandler:    NewUserHandler(serviceManager.User(), serviceManager.Student(), logger),
		studentHandler: NewStudentHandler(serviceManager.Student(), logger),
		stationHandler: NewStationHandler(serviceManager.Station(), serviceManager.Export(), logger),
		chatHandler:    NewChatHandler(serviceManager.Chat(), logger),
		healthHandler:  NewHealthHandler(serviceManager, logger),
		authMiddleware: NewSessionAuthMiddleware(serviceManager.Session(), logger),
		loginLimiter:   loginLimiter,
		metricsHandler: metricsHandler,
	}
}

// SetupRoutes sets up all API routes
func (hm *HandlerManager) SetupRoutes(router *gin.Engine) {
	router.GET("/health", hm.healthHandler.Health)
	if hm.metricsHandler != nil {
		router.GET("/metrics", gin.WrapH(hm.metricsHandler))
	}

	v1 := router.Group("/api/v1")

	// Login is the only unauthenticated API route
	login := []gin.HandlerFunc{hm.authHandler.Login}
	if hm.loginLimiter != nil {
		login = append([]gin.HandlerFunc{hm.loginLimiter.Middleware()}, login...)
	}
	v1.POST("/auth/login", login...)

	api := v1.Group("")
	api.Use(hm.authMiddleware.AuthMiddleware())
	{
		auth := api.Group("/auth")
		{
			auth.POST("/logout", hm.authHandler.Logout)
			auth.GET("/session", hm.authHandler.GetSession)
			auth.PUT("/session/view", hm.authHandler.SwitchView)
			auth.POST("/activity", hm.authHandler.Activity)
		}

		// Admin dashboard
		admin := api.Group("/admin")
		admin.Use(hm.authMiddleware.RequireRoleMiddleware(models.RoleAdmin))
		{
			admin.POST("/supervisors", hm.userHandler.RegisterSupervisor)
			admin.POST("/clinic-staff", hm.userHandler.RegisterClinicStaff)
			admin.POST("/students", hm.userHandler.RegisterStudent)
			admin.GET("/users", hm.userHandler.ListUsers)
			admin.POST("/users/:uid/block", hm.userHandler.ToggleBlocked)
			admin.DELETE("/users/:uid", hm.userHandler.DeleteUser)
		}

		// Supervisor dashboard
		supervisor := hm.authMiddleware.RequireRoleMiddleware(models.RoleSupervisor)
		stations := api.Group("/stations", supervisor)
		{
			stations.GET("", hm.stationHandler.ListStations)
			stations.POST("/:station_id/assign", hm.stationHandler.AssignStation)
			stations.POST("/:station_id/release", hm.stationHandler.ReleaseStation)
		}
		codes := api.Group("/session-codes", supervisor)
		{
			codes.GET("", hm.stationHandler.ListSessionCodes)
			codes.GET("/export", hm.stationHandler.ExportSessionCodes)
		}

		// Clinic dashboard
		students := api.Group("/students")
		students.Use(hm.authMiddleware.RequireRoleMiddleware(models.RoleClinic))
		{
			students.GET("/lookup", hm.studentHandler.LookupStudent)
		}

		chat := api.Group("/chat")
		chat.Use(hm.authMiddleware.RequireRoleMiddleware(models.RoleAdmin, models.RoleSupervisor))
		{
			chat.GET("/contacts", hm.chatHandler.ListContacts)
			chat.GET("/peers/:peer_uid/messages", hm.chatHandler.GetMessages)
			chat.POST("/peers/:peer_uid/messages", hm.chatHandler.SendMessage)
			chat.GET("/peers/:peer_uid/stream", hm.chatHandler.StreamRoom)
		}
	}
}
