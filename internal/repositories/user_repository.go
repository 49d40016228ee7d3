package repositories

import (
	"context"

	"github.com/SAP-F-2025/clinic-service/internal/models"
)

// UserFilters defines filters for profile listings
type UserFilters struct {
	Roles  []models.UserRole
	Limit  int
	Offset int
}

// UserRepository stores user profiles keyed by Identity Store uid
type UserRepository interface {
	Create(ctx context.Context, profile *models.UserProfile) error
	GetByID(ctx context.Context, uid string) (*models.UserProfile, error)
	// List orders by created_at descending
	List(ctx context.Context, filters UserFilters) ([]*models.UserProfile, int64, error)
	SetBlocked(ctx context.Context, uid string, blocked bool) error
	Delete(ctx context.Context, uid string) error
}
