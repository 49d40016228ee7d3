package postgres

import (
	"context"

	"gorm.io/gorm"

	"github.com/SAP-F-2025/clinic-service/internal/models"
	"github.com/SAP-F-2025/clinic-service/internal/repositories"
)

type SessionCodePostgreSQL struct {
	db *gorm.DB
}

func NewSessionCodePostgreSQL(db *gorm.DB) repositories.SessionCodeRepository {
	return &SessionCodePostgreSQL{db: db}
}

func (r *SessionCodePostgreSQL) Append(ctx context.Context, record *models.SessionCodeRecord) error {
	if err := r.db.WithContext(ctx).Create(record).Error; err != nil {
		return handleDBError(err, "append session code")
	}
	return nil
}

func (r *SessionCodePostgreSQL) List(ctx context.Context, filters repositories.SessionCodeFilters) ([]*models.SessionCodeRecord, error) {
	query := r.db.WithContext(ctx).Model(&models.SessionCodeRecord{})
	if filters.Station != "" {
		query = query.Where("station = ?", filters.Station)
	}
	if filters.Student != "" {
		query = query.Where("student = ?", filters.Student)
	}
	if filters.Since != nil {
		query = query.Where("timestamp >= ?", *filters.Since)
	}

	var records []*models.SessionCodeRecord
	if err := query.Order("timestamp DESC").Order("id DESC").
		Limit(clampLimit(filters.Limit, 200, 5000)).
		Find(&records).Error; err != nil {
		return nil, handleDBError(err, "list session codes")
	}
	return records, nil
}

func (r *SessionCodePostgreSQL) CountByStation(ctx context.Context, stationID string) (int64, error) {
	var count int64
	if err := r.db.WithContext(ctx).Model(&models.SessionCodeRecord{}).
		Where("station = ?", stationID).
		Count(&count).Error; err != nil {
		return 0, handleDBError(err, "count session codes")
	}
	return count, nil
}
