package services

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"log/slog"
	"math/big"

	"github.com/SAP-F-2025/clinic-service/internal/events"
	"github.com/SAP-F-2025/clinic-service/internal/metrics"
	"github.com/SAP-F-2025/clinic-service/internal/models"
	"github.com/SAP-F-2025/clinic-service/internal/repositories"
	"github.com/SAP-F-2025/clinic-service/internal/validator"
)

const (
	codeAlphabet   = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
	maxCodeRetries = 5
)

// CodeGenerator returns a fresh session code
type CodeGenerator func() (string, error)

// RandomCodes draws length characters uniformly from [A-Z0-9]
func RandomCodes(length int) CodeGenerator {
	alphabetSize := big.NewInt(int64(len(codeAlphabet)))
	return func() (string, error) {
		buf := make([]byte, length)
		for i := range buf {
			n, err := rand.Int(rand.Reader, alphabetSize)
			if err != nil {
				return "", fmt.Errorf("generate session code: %w", err)
			}
			buf[i] = codeAlphabet[n.Int64()]
		}
		return string(buf), nil
	}
}

type stationService struct {
	repo      repositories.Repository
	poolSize  int
	newCode   CodeGenerator
	clock     Clock
	metrics   metrics.Recorder
	publisher events.EventPublisher
	logger    *slog.Logger
	validator *validator.Validator
}

type StationServiceConfig struct {
	PoolSize   int
	CodeLength int
	Codes      CodeGenerator
	Clock      Clock
}

func NewStationService(repo repositories.Repository, cfg StationServiceConfig, recorder metrics.Recorder, publisher events.EventPublisher, logger *slog.Logger, validator *validator.Validator) StationService {
	if cfg.Codes == nil {
		cfg.Codes = RandomCodes(cfg.CodeLength)
	}
	if cfg.Clock == nil {
		cfg.Clock = SystemClock
	}
	if recorder == nil {
		recorder = metrics.Nop{}
	}
	return &stationService{
		repo:      repo,
		poolSize:  cfg.PoolSize,
		newCode:   cfg.Codes,
		clock:     cfg.Clock,
		metrics:   recorder,
		publisher: publisher,
		logger:    logger,
		validator: validator,
	}
}

// BootstrapPool creates S1..Sn once; it is a no-op when any station exists
func (s *stationService) BootstrapPool(ctx context.Context) error {
	created, err := s.repo.Station().Bootstrap(ctx, s.poolSize)
	if err != nil {
		return fmt.Errorf("failed to bootstrap station pool: %w", err)
	}
	if created {
		s.logger.Info("Station pool created", "size", s.poolSize)
	}
	return nil
}

func (s *stationService) List(ctx context.Context) ([]*models.Station, error) {
	if err := s.BootstrapPool(ctx); err != nil {
		return nil, err
	}
	stations, err := s.repo.Station().List(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list stations: %w", err)
	}
	return stations, nil
}

// Assign occupies a station for a registered student. The station update and the
// audit record commit together; a missing student leaves the station untouched.
func (s *stationService) Assign(ctx context.Context, stationID string, req *AssignStationRequest, issuedBy string) (*AssignmentResult, error) {
	if err := s.validator.Validate(req); err != nil {
		return nil, fmt.Errorf("validation failed: %w", err)
	}
	if stationID == "" {
		return nil, NewValidationError("station_id", "station_id is required", stationID)
	}

	var result *AssignmentResult
	err := s.repo.WithTransaction(ctx, func(tx repositories.Repository) error {
		exists, err := tx.Student().ExistsByID(ctx, req.StudentID)
		if err != nil {
			return fmt.Errorf("failed to check student: %w", err)
		}
		if !exists {
			return ErrStudentNotFound
		}

		station, err := tx.Station().GetForUpdate(ctx, stationID)
		if err != nil {
			if errors.Is(err, repositories.ErrNotFound) {
				return ErrStationNotFound
			}
			return fmt.Errorf("failed to get station: %w", err)
		}

		code, err := s.unusedCode(ctx, tx)
		if err != nil {
			return err
		}

		now := s.clock.Now()
		station.Occupy(req.StudentID, code, now)
		if err := tx.Station().Update(ctx, station); err != nil {
			return fmt.Errorf("failed to update station: %w", err)
		}

		record := &models.SessionCodeRecord{
			Station:   station.StationID,
			Student:   req.StudentID,
			Code:      code,
			IssuedBy:  issuedBy,
			Timestamp: now,
		}
		if err := tx.SessionCode().Append(ctx, record); err != nil {
			return fmt.Errorf("failed to record session code: %w", err)
		}

		result = &AssignmentResult{Station: station, Record: record}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.metrics.RecordStationAssigned()
	s.logger.Info("Station assigned", "station_id", stationID, "student_id", req.StudentID, "issued_by", issuedBy)
	publishEvent(ctx, s.publisher, s.logger, events.EventStationAssigned, map[string]interface{}{
		"station_id": stationID,
		"student_id": req.StudentID,
		"issued_by":  issuedBy,
	})
	return result, nil
}

// unusedCode regenerates while the code is held by another occupied station
func (s *stationService) unusedCode(ctx context.Context, tx repositories.Repository) (string, error) {
	for i := 0; i < maxCodeRetries; i++ {
		code, err := s.newCode()
		if err != nil {
			return "", err
		}
		inUse, err := tx.Station().CodeInUse(ctx, code)
		if err != nil {
			return "", fmt.Errorf("failed to check session code: %w", err)
		}
		if !inUse {
			return code, nil
		}
		s.logger.Warn("Session code collision", "attempt", i+1)
	}
	return "", ErrCodeSpaceExhausted
}

// Release resets a station whatever its state; releasing twice is the same as once
func (s *stationService) Release(ctx context.Context, stationID string) (*models.Station, error) {
	var released *models.Station
	err := s.repo.WithTransaction(ctx, func(tx repositories.Repository) error {
		station, err := tx.Station().GetForUpdate(ctx, stationID)
		if err != nil {
			if errors.Is(err, repositories.ErrNotFound) {
				return ErrStationNotFound
			}
			return fmt.Errorf("failed to get station: %w", err)
		}
		station.Release()
		if err := tx.Station().Update(ctx, station); err != nil {
			return fmt.Errorf("failed to update station: %w", err)
		}
		released = station
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.metrics.RecordStationReleased()
	s.logger.Info("Station released", "station_id", stationID)
	publishEvent(ctx, s.publisher, s.logger, events.EventStationReleased, map[string]interface{}{
		"station_id": stationID,
	})
	return released, nil
}

func (s *stationService) CodeHistory(ctx context.Context, filters repositories.SessionCodeFilters) ([]*models.SessionCodeRecord, error) {
	records, err := s.repo.SessionCode().List(ctx, filters)
	if err != nil {
		return nil, fmt.Errorf("failed to list session codes: %w", err)
	}
	return records, nil
}
