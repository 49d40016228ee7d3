package postgres

import (
	"context"
	"fmt"
	"strings"

	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"github.com/SAP-F-2025/clinic-service/internal/cache"
	"github.com/SAP-F-2025/clinic-service/internal/models"
	"github.com/SAP-F-2025/clinic-service/internal/repositories"
)

type UserProfilePostgreSQL struct {
	db           *gorm.DB
	cacheManager *cache.CacheManager
}

func NewUserProfilePostgreSQL(db *gorm.DB, redisClient *redis.Client) repositories.UserRepository {
	return &UserProfilePostgreSQL{
		db:           db,
		cacheManager: cache.NewCacheManager(redisClient),
	}
}

func (r *UserProfilePostgreSQL) Create(ctx context.Context, profile *models.UserProfile) error {
	if err := r.db.WithContext(ctx).Create(profile).Error; err != nil {
		return handleDBError(err, "create user profile")
	}
	cache.InvalidateProfiles(ctx, r.cacheManager)
	return nil
}

// GetByID reads the row directly; login decides blocked and role from it
func (r *UserProfilePostgreSQL) GetByID(ctx context.Context, uid string) (*models.UserProfile, error) {
	var profile models.UserProfile
	if err := r.db.WithContext(ctx).Where("uid = ?", uid).First(&profile).Error; err != nil {
		return nil, handleDBError(err, "get user profile")
	}
	return &profile, nil
}

func (r *UserProfilePostgreSQL) List(ctx context.Context, filters repositories.UserFilters) ([]*models.UserProfile, int64, error) {
	limit := clampLimit(filters.Limit, 50, 500)
	offset := max(filters.Offset, 0)

	type page struct {
		Users []*models.UserProfile `json:"users"`
		Total int64                 `json:"total"`
	}

	key := fmt.Sprintf("list:%s:%d:%d", rolesKey(filters.Roles), offset, limit)
	result, err := cache.CacheOrExecute(ctx, r.cacheManager.Profile, key, func() (page, error) {
		query := r.db.WithContext(ctx).Model(&models.UserProfile{})
		if len(filters.Roles) > 0 {
			query = query.Where("role IN ?", filters.Roles)
		}

		var p page
		if err := query.Count(&p.Total).Error; err != nil {
			return p, handleDBError(err, "count user profiles")
		}
		if err := query.Order("created_at DESC").Order("uid").
			Limit(limit).Offset(offset).
			Find(&p.Users).Error; err != nil {
			return p, handleDBError(err, "list user profiles")
		}
		return p, nil
	})
	if err != nil {
		return nil, 0, err
	}
	return result.Users, result.Total, nil
}

func (r *UserProfilePostgreSQL) SetBlocked(ctx context.Context, uid string, blocked bool) error {
	res := r.db.WithContext(ctx).Model(&models.UserProfile{}).
		Where("uid = ?", uid).
		Update("blocked", blocked)
	if err := requireAffected(res, "set user blocked"); err != nil {
		return err
	}
	cache.InvalidateProfiles(ctx, r.cacheManager)
	return nil
}

func (r *UserProfilePostgreSQL) Delete(ctx context.Context, uid string) error {
	res := r.db.WithContext(ctx).Where("uid = ?", uid).Delete(&models.UserProfile{})
	if err := requireAffected(res, "delete user profile"); err != nil {
		return err
	}
	cache.InvalidateProfiles(ctx, r.cacheManager)
	return nil
}

func rolesKey(roles []models.UserRole) string {
	if len(roles) == 0 {
		return "all"
	}
	parts := make([]string, len(roles))
	for i, role := range roles {
		parts[i] = string(role)
	}
	return strings.Join(parts, ",")
}
