package postgres

import (
	"context"
	"errors"

	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"github.com/SAP-F-2025/clinic-service/internal/cache"
	"github.com/SAP-F-2025/clinic-service/internal/models"
	"github.com/SAP-F-2025/clinic-service/internal/repositories"
)

type StudentPostgreSQL struct {
	db           *gorm.DB
	cacheManager *cache.CacheManager
}

func NewStudentPostgreSQL(db *gorm.DB, redisClient *redis.Client) repositories.StudentRepository {
	return &StudentPostgreSQL{
		db:           db,
		cacheManager: cache.NewCacheManager(redisClient),
	}
}

func (r *StudentPostgreSQL) Create(ctx context.Context, student *models.Student) error {
	if err := r.db.WithContext(ctx).Create(student).Error; err != nil {
		return handleDBError(err, "create student")
	}
	cache.InvalidateStudent(ctx, r.cacheManager, student.StudentID)
	return nil
}

func (r *StudentPostgreSQL) GetByID(ctx context.Context, studentID string) (*models.Student, error) {
	return cache.CacheOrExecute(ctx, r.cacheManager.Student, "id:"+studentID, func() (*models.Student, error) {
		var student models.Student
		if err := r.db.WithContext(ctx).Where("student_id = ?", studentID).First(&student).Error; err != nil {
			return nil, handleDBError(err, "get student")
		}
		return &student, nil
	})
}

func (r *StudentPostgreSQL) FindByName(ctx context.Context, name string) ([]*models.Student, error) {
	var students []*models.Student
	if err := r.db.WithContext(ctx).
		Where("name = ?", name).
		Order("created_at ASC").
		Find(&students).Error; err != nil {
		return nil, handleDBError(err, "find students by name")
	}
	return students, nil
}

// ExistsByID is not cached: assignment must see a student registered a moment ago
func (r *StudentPostgreSQL) ExistsByID(ctx context.Context, studentID string) (bool, error) {
	var student models.Student
	err := r.db.WithContext(ctx).Select("student_id").Where("student_id = ?", studentID).Take(&student).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return false, nil
	}
	if err != nil {
		return false, handleDBError(err, "check student exists")
	}
	return true, nil
}
