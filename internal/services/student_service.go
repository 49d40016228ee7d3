package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/SAP-F-2025/clinic-service/internal/events"
	"github.com/SAP-F-2025/clinic-service/internal/models"
	"github.com/SAP-F-2025/clinic-service/internal/repositories"
	"github.com/SAP-F-2025/clinic-service/internal/validator"
)

type studentService struct {
	repo      repositories.Repository
	publisher events.EventPublisher
	logger    *slog.Logger
	validator *validator.Validator
}

func NewStudentService(repo repositories.Repository, publisher events.EventPublisher, logger *slog.Logger, validator *validator.Validator) StudentService {
	return &studentService{
		repo:      repo,
		publisher: publisher,
		logger:    logger,
		validator: validator,
	}
}

func (s *studentService) Register(ctx context.Context, req *RegisterStudentRequest) (*models.Student, error) {
	s.logger.Info("Registering student", "student_id", req.StudentID)

	if err := s.validator.Validate(req); err != nil {
		return nil, fmt.Errorf("validation failed: %w", err)
	}

	student := &models.Student{
		StudentID:  strings.TrimSpace(req.StudentID),
		Name:       strings.TrimSpace(req.Name),
		Program:    req.Program,
		Year:       req.Year,
		Hostel:     req.Hostel,
		ClinicCard: req.ClinicCard,
		Age:        req.Age,
		Phone:      req.Phone,
	}
	if err := s.repo.Student().Create(ctx, student); err != nil {
		if errors.Is(err, repositories.ErrDuplicate) {
			return nil, ErrStudentExists
		}
		return nil, fmt.Errorf("failed to create student: %w", err)
	}

	publishEvent(ctx, s.publisher, s.logger, events.EventStudentRegistered, map[string]interface{}{
		"student_id": student.StudentID,
	})
	return student, nil
}

func (s *studentService) Lookup(ctx context.Context, query string) ([]*models.Student, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, NewValidationError("q", "enter a student id or name", query)
	}

	student, err := s.repo.Student().GetByID(ctx, query)
	switch {
	case err == nil:
		return []*models.Student{student}, nil
	case !errors.Is(err, repositories.ErrNotFound):
		return nil, fmt.Errorf("failed to get student: %w", err)
	}

	matches, err := s.repo.Student().FindByName(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to search students: %w", err)
	}
	if len(matches) == 0 {
		return nil, ErrStudentNotFound
	}
	return matches, nil
}
