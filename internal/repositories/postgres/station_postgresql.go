package postgres

import (
	"context"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/SAP-F-2025/clinic-service/internal/models"
	"github.com/SAP-F-2025/clinic-service/internal/repositories"
)

type StationPostgreSQL struct {
	db *gorm.DB
}

func NewStationPostgreSQL(db *gorm.DB) repositories.StationRepository {
	return &StationPostgreSQL{db: db}
}

// Bootstrap seeds S1..Sn when the table is empty. Concurrent callers may both see an
// empty table; ON CONFLICT DO NOTHING keeps the outcome identical either way.
func (r *StationPostgreSQL) Bootstrap(ctx context.Context, n int) (bool, error) {
	var count int64
	if err := r.db.WithContext(ctx).Model(&models.Station{}).Count(&count).Error; err != nil {
		return false, handleDBError(err, "count stations")
	}
	if count > 0 {
		return false, nil
	}

	stations := make([]*models.Station, 0, n)
	for i := 1; i <= n; i++ {
		stations = append(stations, &models.Station{
			StationID: models.StationIDFor(i),
			Status:    models.StationAvailable,
			Position:  i,
		})
	}

	res := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(&stations)
	if res.Error != nil {
		return false, handleDBError(res.Error, "bootstrap stations")
	}
	return res.RowsAffected > 0, nil
}

func (r *StationPostgreSQL) List(ctx context.Context) ([]*models.Station, error) {
	var stations []*models.Station
	if err := r.db.WithContext(ctx).
		Order("position ASC").Order("station_id ASC").
		Find(&stations).Error; err != nil {
		return nil, handleDBError(err, "list stations")
	}
	return stations, nil
}

func (r *StationPostgreSQL) GetByID(ctx context.Context, stationID string) (*models.Station, error) {
	var station models.Station
	if err := r.db.WithContext(ctx).Where("station_id = ?", stationID).First(&station).Error; err != nil {
		return nil, handleDBError(err, "get station")
	}
	return &station, nil
}

func (r *StationPostgreSQL) GetForUpdate(ctx context.Context, stationID string) (*models.Station, error) {
	var station models.Station
	if err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("station_id = ?", stationID).
		First(&station).Error; err != nil {
		return nil, handleDBError(err, "lock station")
	}
	return &station, nil
}

// Update writes every assignment column so a release clears them to NULL
func (r *StationPostgreSQL) Update(ctx context.Context, station *models.Station) error {
	res := r.db.WithContext(ctx).Model(&models.Station{}).
		Where("station_id = ?", station.StationID).
		Updates(map[string]interface{}{
			"status":       station.Status,
			"assigned_to":  station.AssignedTo,
			"session_code": station.SessionCode,
			"assigned_at":  station.AssignedAt,
		})
	return requireAffected(res, "update station")
}

func (r *StationPostgreSQL) CodeInUse(ctx context.Context, code string) (bool, error) {
	var count int64
	if err := r.db.WithContext(ctx).Model(&models.Station{}).
		Where("status = ? AND session_code = ?", models.StationOccupied, code).
		Count(&count).Error; err != nil {
		return false, handleDBError(err, "check session code")
	}
	return count > 0, nil
}
