package services

import (
	"context"

	"github.com/SAP-F-2025/clinic-service/internal/models"
	"github.com/SAP-F-2025/clinic-service/internal/repositories"
	"github.com/SAP-F-2025/clinic-service/internal/validator"
)

// ===== REQUEST/RESPONSE DTOs =====

// Use business validator types
type LoginRequest = validator.LoginRequest
type SwitchViewRequest = validator.SwitchViewRequest
type RegisterSupervisorRequest = validator.RegisterSupervisorRequest
type RegisterClinicStaffRequest = validator.RegisterClinicStaffRequest
type RegisterStudentRequest = validator.RegisterStudentRequest
type AssignStationRequest = validator.AssignStationRequest
type SendMessageRequest = validator.SendMessageRequest

type LoginResponse struct {
	Token   string                  `json:"token"`
	Session *models.SessionSnapshot `json:"session"`
}

type UserListResponse struct {
	Users []*models.UserProfile `json:"users"`
	Total int64                 `json:"total"`
}

type AssignmentResult struct {
	Station *models.Station           `json:"station"`
	Record  *models.SessionCodeRecord `json:"record"`
}

type ExportFile struct {
	Name        string
	ContentType string
	Data        []byte
}

// ===== SERVICE INTERFACES =====

// SessionService owns every live client session of this instance
type SessionService interface {
	Login(ctx context.Context, req *LoginRequest) (*Session, error)
	// Resolve returns the live session for token after re-checking it with the Identity Store
	Resolve(ctx context.Context, token string) (*Session, error)
	Logout(ctx context.Context, token string) error
	ActiveCount() int

	// Run applies Identity Store change notifications until ctx is done
	Run(ctx context.Context) error
	Shutdown(ctx context.Context)
}

type ChatService interface {
	Contacts(ctx context.Context, session *Session) ([]*models.Contact, error)
	OpenRoom(ctx context.Context, session *Session, peerUID string) (*RoomStream, error)
	History(ctx context.Context, session *Session, peerUID string) (*models.RoomSnapshot, error)
	SendMessage(ctx context.Context, session *Session, peerUID string, req *SendMessageRequest) (*models.Message, error)
	SendToRoom(ctx context.Context, roomID, from, senderUID, text string) (*models.Message, error)

	// LoadSnapshot reads a room's ordered messages; it feeds the realtime layer
	LoadSnapshot(ctx context.Context, roomID string) (*models.RoomSnapshot, error)
}

type StationService interface {
	BootstrapPool(ctx context.Context) error
	List(ctx context.Context) ([]*models.Station, error)
	Assign(ctx context.Context, stationID string, req *AssignStationRequest, issuedBy string) (*AssignmentResult, error)
	Release(ctx context.Context, stationID string) (*models.Station, error)
	CodeHistory(ctx context.Context, filters repositories.SessionCodeFilters) ([]*models.SessionCodeRecord, error)
}

type StudentService interface {
	Register(ctx context.Context, req *RegisterStudentRequest) (*models.Student, error)
	// Lookup matches a student id first, then an exact name
	Lookup(ctx context.Context, query string) ([]*models.Student, error)
}

type UserService interface {
	RegisterSupervisor(ctx context.Context, req *RegisterSupervisorRequest) (*models.UserProfile, error)
	RegisterClinicStaff(ctx context.Context, req *RegisterClinicStaffRequest) (*models.UserProfile, error)
	List(ctx context.Context, filters repositories.UserFilters) (*UserListResponse, error)
	ToggleBlocked(ctx context.Context, actorUID, uid string) (*models.UserProfile, error)
	Delete(ctx context.Context, actorUID, uid string) error
}

type ExportService interface {
	SessionCodes(ctx context.Context, filters repositories.SessionCodeFilters) (*ExportFile, error)
}

// ServiceManager manages all services
type ServiceManager interface {
	Session() SessionService
	Chat() ChatService
	Station() StationService
	Student() StudentService
	User() UserService
	Export() ExportService

	Initialize(ctx context.Context) error
	HealthCheck(ctx context.Context) error
	Shutdown(ctx context.Context) error
}
