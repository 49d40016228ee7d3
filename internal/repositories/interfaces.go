package repositories

import (
	"context"
	"time"

	"github.com/SAP-F-2025/clinic-service/internal/models"
)

type StudentRepository interface {
	Create(ctx context.Context, student *models.Student) error
	GetByID(ctx context.Context, studentID string) (*models.Student, error)
	// FindByName returns exact name matches, oldest first
	FindByName(ctx context.Context, name string) ([]*models.Student, error)
	ExistsByID(ctx context.Context, studentID string) (bool, error)
}

type StationRepository interface {
	// Bootstrap creates S1..Sn only when the collection is empty; reports whether rows were written
	Bootstrap(ctx context.Context, n int) (bool, error)
	List(ctx context.Context) ([]*models.Station, error)
	GetByID(ctx context.Context, stationID string) (*models.Station, error)
	// GetForUpdate locks the row for the rest of the surrounding transaction
	GetForUpdate(ctx context.Context, stationID string) (*models.Station, error)
	Update(ctx context.Context, station *models.Station) error
	// CodeInUse reports whether an occupied station currently holds code
	CodeInUse(ctx context.Context, code string) (bool, error)
}

type SessionCodeFilters struct {
	Station string
	Student string
	Since   *time.Time
	Limit   int
}

type SessionCodeRepository interface {
	Append(ctx context.Context, record *models.SessionCodeRecord) error
	// List orders by timestamp descending
	List(ctx context.Context, filters SessionCodeFilters) ([]*models.SessionCodeRecord, error)
	CountByStation(ctx context.Context, stationID string) (int64, error)
}

type ChatRepository interface {
	// EnsureRoom creates the room row on first use and returns the stored room
	EnsureRoom(ctx context.Context, room *models.ConversationRoom) (*models.ConversationRoom, error)
	GetRoom(ctx context.Context, roomID string) (*models.ConversationRoom, error)
	AppendMessage(ctx context.Context, msg *models.Message) error
	// ListMessages orders by (ts, id) ascending
	ListMessages(ctx context.Context, roomID string) ([]*models.Message, error)
}
